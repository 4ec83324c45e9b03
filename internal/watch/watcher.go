// Package watch rebuilds bundles when asset sources change and flushes
// pipeline directories on a schedule.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
)

// DefaultDebounce collapses bursts of events (editors often write twice).
const DefaultDebounce = 300 * time.Millisecond

// ChangeFunc receives the sorted set of paths changed during a debounce window.
type ChangeFunc func(ctx context.Context, changed []string)

// Options configures a Watcher.
type Options struct {
	// Dirs are watched recursively.
	Dirs []string
	// Files are watched through their parent directory.
	Files []string
	// Ignore lists directories whose events are dropped, typically the
	// pipeline output directories.
	Ignore   []string
	Debounce time.Duration
	OnChange ChangeFunc
}

// Watcher monitors asset sources and calls OnChange after a quiet period.
type Watcher struct {
	opts     Options
	watcher  *fsnotify.Watcher
	files    map[string]bool
	ignore   []string
	mu       sync.Mutex
	pending  map[string]struct{}
	timer    *time.Timer
	stopChan chan struct{}
	done     chan struct{}
}

// New creates a watcher; call Start to begin watching.
func New(opts Options) (*Watcher, error) {
	if opts.OnChange == nil {
		return nil, fmt.Errorf("watch: OnChange is required")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		opts:     opts,
		watcher:  fw,
		files:    map[string]bool{},
		pending:  map[string]struct{}{},
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, dir := range opts.Ignore {
		if abs, err := filepath.Abs(dir); err == nil {
			w.ignore = append(w.ignore, abs)
		}
	}
	return w, nil
}

// Start registers the watches and begins processing events.
func (w *Watcher) Start(ctx context.Context) error {
	for _, dir := range w.opts.Dirs {
		if err := w.addTree(dir); err != nil {
			_ = w.watcher.Close()
			return err
		}
	}
	for _, file := range w.opts.Files {
		abs, err := filepath.Abs(file)
		if err != nil {
			_ = w.watcher.Close()
			return fmt.Errorf("failed to resolve %s: %w", file, err)
		}
		w.files[abs] = true
		// Watching the directory survives editors that replace the file.
		if err := w.watcher.Add(filepath.Dir(abs)); err != nil {
			_ = w.watcher.Close()
			return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
		}
	}

	slog.Info("Starting asset watcher", slog.Int("dirs", len(w.opts.Dirs)), slog.Int("files", len(w.opts.Files)))
	go w.loop(ctx)
	return nil
}

// Stop stops watching and waits for the event loop to exit.
func (w *Watcher) Stop() error {
	select {
	case <-w.stopChan:
	default:
		close(w.stopChan)
	}
	err := w.watcher.Close()
	<-w.done

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return err
}

func (w *Watcher) addTree(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	return filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.ignored(p) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(p); err != nil {
			return fmt.Errorf("failed to watch %s: %w", p, err)
		}
		return nil
	})
}

func (w *Watcher) ignored(p string) bool {
	for _, dir := range w.ignore {
		if p == dir || strings.HasPrefix(p, dir+string(filepath.Separator)) {
			return true
		}
	}
	base := filepath.Base(p)
	return strings.HasPrefix(base, ".") && base != "."
}

func (w *Watcher) relevant(p string) bool {
	if w.files[p] {
		return true
	}
	if w.ignored(p) {
		return false
	}
	for _, dir := range w.opts.Dirs {
		abs, err := filepath.Abs(dir)
		if err == nil && (p == abs || strings.HasPrefix(p, abs+string(filepath.Separator))) {
			return true
		}
	}
	return false
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Asset watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	if !w.relevant(event.Name) {
		return
	}
	if event.Op&fsnotify.Create == fsnotify.Create {
		if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				slog.Warn("Failed to watch new directory", logfields.Dir(event.Name), logfields.Error(err))
			}
		}
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	slog.Debug("Asset change detected", logfields.Path(event.Name), slog.String("op", event.Op.String()))
	w.trigger(ctx, event.Name)
}

// trigger records p and restarts the debounce timer.
func (w *Watcher) trigger(ctx context.Context, p string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[p] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.opts.Debounce, func() { w.fire(ctx) })
}

func (w *Watcher) fire(ctx context.Context) {
	w.mu.Lock()
	changed := make([]string, 0, len(w.pending))
	for p := range w.pending {
		changed = append(changed, p)
	}
	w.pending = map[string]struct{}{}
	w.mu.Unlock()

	if len(changed) == 0 || ctx.Err() != nil {
		return
	}
	sort.Strings(changed)
	w.opts.OnChange(ctx, slices.Clip(changed))
}
