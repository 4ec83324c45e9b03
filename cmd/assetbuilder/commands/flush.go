package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"

	"git.home.luguber.info/inful/assetbuilder/internal/config"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/flush"
	"git.home.luguber.info/inful/assetbuilder/internal/manager"
	"git.home.luguber.info/inful/assetbuilder/internal/metrics"
)

// FlushCmd implements the 'flush' command.
type FlushCmd struct {
	Group []string `short:"g" help:"Group to flush (repeatable; default: all)"`
	Force bool     `short:"f" help:"Do not ask for confirmation"`
}

// Confirm asks the user before flushing. Replaced in tests.
var Confirm = func(message string) (bool, error) {
	ok := false
	err := survey.AskOne(&survey.Confirm{Message: message, Default: false}, &ok)
	return ok, err
}

func (f *FlushCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	if !f.Force {
		ok, err := Confirm("All content of the pipeline directories will be deleted. Continue?")
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryRuntime, "confirmation aborted").Build()
		}
		if !ok {
			_, _ = fmt.Fprintln(g.out(), "Nothing flushed.")
			return nil
		}
	}
	return RunFlush(context.Background(), g.out(), cfg, f.Group, nil)
}

// RunFlush empties the pipeline directories of the selected groups and
// reports one line per directory. It fails when any directory failed.
func RunFlush(ctx context.Context, w io.Writer, cfg *config.Config, groups []string, rec metrics.Recorder) error {
	names, err := cfg.Select(groups...)
	if err != nil {
		return err
	}
	opts := make([]manager.Options, 0, len(names))
	for _, n := range names {
		opts = append(opts, cfg.Groups[n])
	}

	report := flush.Purger{Recorder: rec}.Purge(ctx, flush.Directories(opts))
	var failed []string
	for _, r := range report.Results {
		if r.OK() {
			_, _ = fmt.Fprintf(w, "%s %s\n", color.GreenString("Ok:"), r.Dir)
			continue
		}
		_, _ = fmt.Fprintf(w, "%s %s (%v)\n", color.RedString("Error:"), r.Dir, r.Err)
		failed = append(failed, r.Dir)
	}
	if report.Failed() {
		return ferrors.StorageError("failed to flush pipeline directories").
			WithContext("dirs", strings.Join(failed, ", ")).Build()
	}
	return nil
}
