// Package commands implements the assetbuilder subcommands.
package commands

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"

	"git.home.luguber.info/inful/assetbuilder/internal/config"
	"git.home.luguber.info/inful/assetbuilder/internal/ledger"
	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
	"git.home.luguber.info/inful/assetbuilder/internal/manager"
	"git.home.luguber.info/inful/assetbuilder/internal/metrics"
	"git.home.luguber.info/inful/assetbuilder/internal/notify"
	"git.home.luguber.info/inful/assetbuilder/internal/pipeline"
)

// Global context passed to subcommands.
type Global struct {
	Logger *slog.Logger
	// Out receives user-facing output; stdout when nil.
	Out io.Writer
}

func (g *Global) out() io.Writer {
	if g == nil || g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path (default: first of assetbuilder.{yaml,yml,toml,jsonc,json})"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build   BuildCmd   `cmd:"" help:"Bundle the configured assets of each group"`
	Render  RenderCmd  `cmd:"" help:"Print the HTML tags of a group"`
	Flush   FlushCmd   `cmd:"" help:"Empty the pipeline directories"`
	Watch   WatchCmd   `cmd:"" help:"Rebuild bundles when sources change"`
	Serve   ServeCmd   `cmd:"" help:"Serve the public directory with precompressed bundles"`
	History HistoryCmd `cmd:"" help:"List artifacts recorded in the ledger"`
	Init    InitCmd    `cmd:"" help:"Write a sample configuration file"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(c.Verbose)}))
	slog.SetDefault(logger)
	return nil
}

// parseLogLevel honours --verbose first, then ASSETBUILDER_LOG_LEVEL.
func parseLogLevel(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv("ASSETBUILDER_LOG_LEVEL"))) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// loadConfig loads --config or the first discovered file.
func (c *CLI) loadConfig() (*config.Config, error) {
	path := c.Config
	if path == "" {
		found, err := config.Discover()
		if err != nil {
			return nil, err
		}
		path = found
	}
	return config.Load(path)
}

// newManager builds the manager of one group, wiring notifier into the
// pipeline when the group does not configure its own.
func newManager(opts manager.Options, cache *pipeline.Cache, notifier pipeline.Notifier) (*manager.Manager, error) {
	merged := make(manager.Options, len(opts)+1)
	for k, v := range opts {
		merged[k] = v
	}
	if _, ok := merged[manager.KeyNotifyCommand]; !ok && notifier != nil {
		merged[manager.KeyNotifyCommand] = notifier
	}
	return manager.New(merged, manager.WithCache(cache))
}

// sinks holds the optional ledger and NATS connection of a run.
type sinks struct {
	ledger ledger.Store
	nats   *notify.NATSClient
	cfg    config.NotifyConfig
}

func openSinks(ctx context.Context, cfg *config.Config) (*sinks, error) {
	s := &sinks{cfg: cfg.Notify}
	if cfg.Ledger.Path != "" {
		store, err := ledger.NewSQLiteStore(cfg.Ledger.Path)
		if err != nil {
			return nil, err
		}
		s.ledger = store
	}
	if cfg.Notify.NATSURL != "" {
		client, err := notify.NewNATSClient(ctx, notify.NATSConfig{
			URL:      cfg.Notify.NATSURL,
			Subject:  cfg.Notify.Subject,
			Stream:   cfg.Notify.Stream,
			KVBucket: cfg.Notify.KVBucket,
		})
		if err != nil {
			slog.Warn("NATS notifications disabled", logfields.Error(err))
		} else {
			s.nats = client
		}
	}
	return s, nil
}

// notifier returns the notifier for one group of one build, or nil.
func (s *sinks) notifier(scope notify.Scope) pipeline.Notifier {
	var multi notify.Multi
	if s.ledger != nil {
		multi = append(multi, notify.LedgerNotifier{Store: s.ledger, Scope: scope})
	}
	if s.nats != nil {
		multi = append(multi, notify.NATSNotifier{Publisher: s.nats, Subject: s.cfg.Subject, Scope: scope})
	}
	if len(multi) == 0 {
		return nil
	}
	return multi
}

func (s *sinks) Close() {
	if s.ledger != nil {
		_ = s.ledger.Close()
	}
	if s.nats != nil {
		_ = s.nats.Close()
	}
}

func newCache(rec metrics.Recorder) *pipeline.Cache {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return pipeline.NewCache(pipeline.WithRecorder(rec), pipeline.WithLogger(slog.Default()))
}

func notifyScope(group string) notify.Scope {
	return notify.Scope{BuildID: uuid.NewString(), Group: group}
}
