package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/assetbuilder/internal/assets"
	"git.home.luguber.info/inful/assetbuilder/internal/config"
	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
	"git.home.luguber.info/inful/assetbuilder/internal/metrics"
	"git.home.luguber.info/inful/assetbuilder/internal/notify"
	"git.home.luguber.info/inful/assetbuilder/internal/pipeline"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Group  []string `short:"g" help:"Group to build (repeatable; default: all)"`
	Asset  []string `short:"a" help:"Additional asset or collection to add before building (repeatable)"`
	Secure bool     `help:"Fetch protocol-relative links over https"`
}

// BuildResult is the outcome of one group.
type BuildResult struct {
	Group string
	CSS   pipeline.Result
	JS    pipeline.Result
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	results, err := RunBuild(ctx, cfg, BuildOptions{Groups: b.Group, Assets: b.Asset, Secure: b.Secure})
	if err != nil {
		return err
	}
	for _, r := range results {
		for _, res := range []pipeline.Result{r.CSS, r.JS} {
			if res.URL == "" {
				continue
			}
			state := "built"
			if res.Cached {
				state = "cached"
			}
			_, _ = fmt.Fprintf(g.out(), "%s\t%s\t%s\n", r.Group, state, res.URL)
		}
	}
	return nil
}

// BuildOptions selects what RunBuild bundles.
type BuildOptions struct {
	Groups   []string
	Assets   []string
	Secure   bool
	BuildID  string
	Recorder metrics.Recorder
	Cache    *pipeline.Cache
}

// RunBuild bundles the CSS and JS lists of each selected group concurrently.
func RunBuild(ctx context.Context, cfg *config.Config, opts BuildOptions) ([]BuildResult, error) {
	names, err := cfg.Select(opts.Groups...)
	if err != nil {
		return nil, err
	}
	if opts.BuildID == "" {
		opts.BuildID = uuid.NewString()
	}
	cache := opts.Cache
	if cache == nil {
		cache = newCache(opts.Recorder)
	}

	s, err := openSinks(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	start := time.Now()
	slog.Info("Starting asset build", logfields.BuildID(opts.BuildID), slog.Int("groups", len(names)))

	results := make([]BuildResult, len(names))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, name := range names {
		eg.Go(func() error {
			notifier := s.notifier(notify.Scope{BuildID: opts.BuildID, Group: name})
			m, err := newManager(cfg.Groups[name], cache, notifier)
			if err != nil {
				return err
			}
			m.Add(opts.Assets...)

			css, err := m.Pipeline(egCtx, assets.KindCSS, opts.Secure)
			if err != nil {
				return err
			}
			js, err := m.Pipeline(egCtx, assets.KindJS, opts.Secure)
			if err != nil {
				return err
			}
			results[i] = BuildResult{Group: name, CSS: css, JS: js}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	slog.Info("Asset build complete",
		logfields.BuildID(opts.BuildID),
		logfields.DurationMS(float64(time.Since(start).Milliseconds())))
	return results, nil
}
