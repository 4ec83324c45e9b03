package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"git.home.luguber.info/inful/assetbuilder/internal/config"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/ledger"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int    `short:"n" help:"Number of artifacts to list" default:"20"`
	Build string `help:"Only list artifacts of this build ID"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	return RunHistory(context.Background(), g.out(), cfg, h.Build, h.Limit)
}

// RunHistory prints ledger entries, newest first.
func RunHistory(ctx context.Context, w io.Writer, cfg *config.Config, buildID string, limit int) error {
	if cfg.Ledger.Path == "" {
		return ferrors.ValidationError("no ledger configured").
			WithContext("hint", "set ledger.path in the configuration file").Build()
	}
	store, err := ledger.NewSQLiteStore(cfg.Ledger.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	var entries []ledger.Entry
	if buildID != "" {
		entries, err = store.ByBuild(ctx, buildID)
	} else {
		entries, err = store.Recent(ctx, limit)
	}
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	bold := color.New(color.Bold, color.FgCyan)
	_, _ = bold.Fprintln(tw, "CREATED\tGROUP\tBUILD\tURL\tSOURCES\tGZIP")
	for _, e := range entries {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%t\n",
			e.CreatedAt.Local().Format(time.DateTime), e.Group, shortID(e.BuildID), e.URL, len(e.Sources), e.Gzipped)
	}
	return tw.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
