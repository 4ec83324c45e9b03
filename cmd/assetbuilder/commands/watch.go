package commands

import (
	"context"
	"io"
	"log/slog"
	"os/signal"
	"path/filepath"
	"slices"
	"sync/atomic"
	"syscall"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/assetbuilder/internal/config"
	"git.home.luguber.info/inful/assetbuilder/internal/flush"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
	"git.home.luguber.info/inful/assetbuilder/internal/manager"
	"git.home.luguber.info/inful/assetbuilder/internal/metrics"
	"git.home.luguber.info/inful/assetbuilder/internal/server"
	"git.home.luguber.info/inful/assetbuilder/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Group []string `short:"g" help:"Group to watch (repeatable; default: all)"`
	Asset []string `short:"a" help:"Additional asset or collection to bundle (repeatable)"`
	Serve bool     `help:"Also serve the default group's public directory on server.addr"`
}

func (w *WatchCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := prom.NewRegistry()
	rec := metrics.NewPrometheusRecorder(reg)

	if w.Serve {
		srv, err := newServer(cfg, reg)
		if err != nil {
			return err
		}
		go func() {
			if err := srv.ListenAndServe(ctx, serverAddr(cfg)); err != nil {
				slog.Error("Static server stopped", logfields.Error(err))
				cancel()
			}
		}()
	}

	return RunWatch(ctx, cfg, w.Group, w.Asset, rec)
}

// RunWatch builds once, then rebuilds on every source or config change
// until ctx is done. The pipeline directories are flushed every
// watch.flush_interval when set.
func RunWatch(ctx context.Context, cfg *config.Config, groups, refs []string, rec metrics.Recorder) error {
	build := func(ctx context.Context, cfg *config.Config) {
		if _, err := RunBuild(ctx, cfg, BuildOptions{Groups: groups, Assets: refs, Recorder: rec}); err != nil {
			slog.Error("Rebuild failed", logfields.Error(err))
		}
	}
	build(ctx, cfg)

	dirs, ignore, err := watchDirs(cfg, groups)
	if err != nil {
		return err
	}

	var current atomic.Pointer[config.Config]
	current.Store(cfg)
	opts := watch.Options{
		Dirs:     dirs,
		Ignore:   ignore,
		Debounce: cfg.Watch.Debounce,
		OnChange: func(ctx context.Context, changed []string) {
			slog.Info("Sources changed, rebuilding", slog.Int("files", len(changed)))
			active := current.Load()
			if active.Path != "" && slices.Contains(changed, absPath(active.Path)) {
				reloaded, err := config.Load(active.Path)
				if err != nil {
					slog.Error("Keeping previous configuration", logfields.Error(err))
				} else {
					current.Store(reloaded)
				}
			}
			build(ctx, current.Load())
		},
	}
	if cfg.Path != "" {
		opts.Files = []string{cfg.Path}
	}

	watcher, err := watch.New(opts)
	if err != nil {
		return err
	}
	if err := watcher.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = watcher.Stop() }()

	if cfg.Watch.FlushInterval > 0 {
		sched, err := watch.NewScheduler()
		if err != nil {
			return err
		}
		_, err = sched.Every(ctx, "flush", cfg.Watch.FlushInterval, func(ctx context.Context) {
			active := current.Load()
			if err := RunFlush(ctx, io.Discard, active, groups, rec); err != nil {
				slog.Warn("Scheduled flush failed", logfields.Error(err))
			}
			build(ctx, active)
		})
		if err != nil {
			return err
		}
		sched.Start()
		defer func() { _ = sched.Stop() }()
	}

	<-ctx.Done()
	slog.Info("Watch stopped")
	return nil
}

// watchDirs returns the source directories of the selected groups and the
// pipeline directories to ignore.
func watchDirs(cfg *config.Config, groups []string) (dirs, ignore []string, err error) {
	names, err := cfg.Select(groups...)
	if err != nil {
		return nil, nil, err
	}
	opts := make([]manager.Options, 0, len(names))
	for _, n := range names {
		opts = append(opts, cfg.Groups[n])
		m, err := manager.New(cfg.Groups[n])
		if err != nil {
			return nil, nil, err
		}
		css, js := m.SourceDirs()
		for _, d := range []string{css, js} {
			p := absPath(filepath.Join(m.PublicDir(), filepath.FromSlash(d)))
			if !slices.Contains(dirs, p) {
				dirs = append(dirs, p)
			}
		}
	}
	return dirs, flush.Directories(opts), nil
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func serverAddr(cfg *config.Config) string {
	if cfg.Server.Addr != "" {
		return cfg.Server.Addr
	}
	return DefaultAddr
}

func newServer(cfg *config.Config, reg *prom.Registry) (*server.Server, error) {
	names, err := cfg.Select()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, ferrors.ConfigError("no group configured").Build()
	}
	m, err := manager.New(cfg.Groups[names[0]])
	if err != nil {
		return nil, err
	}
	opts := []server.Option{server.WithLogger(slog.Default())}
	if cfg.Server.Metrics && reg != nil {
		opts = append(opts, server.WithMetrics(metrics.HTTPHandler(reg)))
	}
	return server.New(m.PublicDir(), opts...), nil
}
