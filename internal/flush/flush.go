// Package flush empties pipeline output directories.
package flush

import (
	"context"
	"path/filepath"

	"git.home.luguber.info/inful/assetbuilder/internal/manager"
	"git.home.luguber.info/inful/assetbuilder/internal/metrics"
	"git.home.luguber.info/inful/assetbuilder/internal/pipeline"
	"git.home.luguber.info/inful/assetbuilder/internal/storage"
)

// Result is the outcome for one directory.
type Result struct {
	Dir string
	Err error
}

// OK reports whether the directory was purged.
func (r Result) OK() bool { return r.Err == nil }

// Report lists per-directory results in purge order.
type Report struct {
	Results []Result
}

// Failed reports whether any directory could not be purged.
func (r Report) Failed() bool {
	for _, res := range r.Results {
		if res.Err != nil {
			return true
		}
	}
	return false
}

// Directories returns the absolute CSS and JS pipeline directories of the
// given groups, deduplicated and in group order.
func Directories(groups []manager.Options) []string {
	var dirs []string
	seen := map[string]bool{}
	for _, opts := range groups {
		public := stringOpt(opts, manager.KeyPublicDir, "")
		pipelineDir := stringOpt(opts, manager.KeyPipelineDir, pipeline.DefaultDirName)
		for _, typeDir := range []string{
			stringOpt(opts, manager.KeyCSSDir, manager.DefaultCSSDir),
			stringOpt(opts, manager.KeyJSDir, manager.DefaultJSDir),
		} {
			dir := filepath.Join(public, filepath.FromSlash(typeDir), pipelineDir)
			if abs, err := filepath.Abs(dir); err == nil {
				dir = abs
			}
			if !seen[dir] {
				seen[dir] = true
				dirs = append(dirs, dir)
			}
		}
	}
	return dirs
}

// Purger empties directories, continuing past failures.
type Purger struct {
	Recorder metrics.Recorder
}

// Purge empties every directory. A missing directory counts as purged.
func (p Purger) Purge(ctx context.Context, dirs []string) Report {
	rec := p.Recorder
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	var report Report
	for _, dir := range dirs {
		err := storage.NewFSStore(dir).Purge(ctx, dir)
		rec.IncFlushResult(err == nil)
		report.Results = append(report.Results, Result{Dir: dir, Err: err})
	}
	return report
}

// Purge empties every directory without metrics.
func Purge(ctx context.Context, dirs []string) Report {
	return Purger{}.Purge(ctx, dirs)
}

func stringOpt(opts manager.Options, key, def string) string {
	if s, ok := opts[key].(string); ok && s != "" {
		return s
	}
	return def
}
