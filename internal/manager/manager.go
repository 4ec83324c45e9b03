// Package manager tracks the CSS and JavaScript references of a page and
// renders them as tags, bundling them through the pipeline when enabled.
package manager

import (
	"context"
	"log/slog"
	"sync"

	"git.home.luguber.info/inful/assetbuilder/internal/assets"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
	"git.home.luguber.info/inful/assetbuilder/internal/pipeline"
	"git.home.luguber.info/inful/assetbuilder/internal/storage"
)

// Manager owns one CSS list and one JavaScript list. All methods are safe to
// call from multiple goroutines.
type Manager struct {
	mu     sync.Mutex
	cfg    settings
	css    assets.List
	js     assets.List
	cache  *pipeline.Cache
	store  storage.Store
	logger *slog.Logger
}

// Option configures collaborators that are not part of Options.
type Option func(*Manager)

// WithCache shares a pipeline cache between managers.
func WithCache(c *pipeline.Cache) Option {
	return func(m *Manager) {
		if c != nil {
			m.cache = c
		}
	}
}

// WithStore replaces the filesystem artifact store rooted at public_dir.
func WithStore(s storage.Store) Option {
	return func(m *Manager) { m.store = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// New creates a Manager and applies opts.
func New(opts Options, deps ...Option) (*Manager, error) {
	m := &Manager{
		cfg:    defaultSettings(),
		logger: slog.Default(),
	}
	for _, dep := range deps {
		dep(m)
	}
	if m.cache == nil {
		m.cache = pipeline.NewCache(pipeline.WithLogger(m.logger))
	}
	if len(opts) > 0 {
		if err := m.Configure(opts); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Configure applies opts. Either every option is applied or, on error, none.
func (m *Manager) Configure(opts Options) error {
	m.mu.Lock()
	next := m.cfg.clone()
	autoload, err := next.apply(opts)
	if err != nil {
		m.mu.Unlock()
		return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid asset configuration").
			Fatal().UserAction().Build()
	}
	m.cfg = next
	m.mu.Unlock()

	if len(autoload) > 0 {
		m.Add(autoload...)
	}
	return nil
}

// Add classifies each reference and appends it to the matching list.
// Collection names are expanded; unrecognized references are dropped.
func (m *Manager) Add(refs ...string) *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()
	css, js := m.split(refs)
	m.css.Add(css...)
	m.js.Add(js...)
	return m
}

// Prepend is Add but places the references before existing entries, keeping
// their relative order.
func (m *Manager) Prepend(refs ...string) *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()
	css, js := m.split(refs)
	m.css.Prepend(css...)
	m.js.Prepend(js...)
	return m
}

// AddCSS appends stylesheet references without classification.
func (m *Manager) AddCSS(refs ...string) *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.css.Add(m.resolveAll(refs, m.cfg.cssDir)...)
	return m
}

// AddJS appends script references without classification.
func (m *Manager) AddJS(refs ...string) *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.js.Add(m.resolveAll(refs, m.cfg.jsDir)...)
	return m
}

// PrependCSS prepends stylesheet references without classification.
func (m *Manager) PrependCSS(refs ...string) *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.css.Prepend(m.resolveAll(refs, m.cfg.cssDir)...)
	return m
}

// PrependJS prepends script references without classification.
func (m *Manager) PrependJS(refs ...string) *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.js.Prepend(m.resolveAll(refs, m.cfg.jsDir)...)
	return m
}

// RegisterCollection adds or replaces a collection. The change is rejected
// if it would introduce a cycle.
func (m *Manager) RegisterCollection(name string, refs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.cfg.collections.Clone()
	next[name] = append([]string(nil), refs...)
	if err := next.Validate(); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid collection").
			WithContext("collection", name).Fatal().UserAction().Build()
	}
	m.cfg.collections = next
	return nil
}

// Reset empties both lists.
func (m *Manager) Reset() *Manager {
	return m.ResetCSS().ResetJS()
}

// ResetCSS empties the stylesheet list.
func (m *Manager) ResetCSS() *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.css.Reset()
	return m
}

// ResetJS empties the script list.
func (m *Manager) ResetJS() *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.js.Reset()
	return m
}

// CSSLinks returns the current stylesheet links.
func (m *Manager) CSSLinks() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.css.Items()
}

// JSLinks returns the current script links.
func (m *Manager) JSLinks() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.js.Items()
}

// PublicDir returns the configured public directory.
func (m *Manager) PublicDir() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.publicDir
}

// PipelineDirs returns the stylesheet and script bundle directories relative
// to the public directory.
func (m *Manager) PipelineDirs() (css, js string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.cssDir + "/" + m.cfg.pipelineDir, m.cfg.jsDir + "/" + m.cfg.pipelineDir
}

// SourceDirs returns the stylesheet and script directories relative to the
// public directory.
func (m *Manager) SourceDirs() (css, js string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.cssDir, m.cfg.jsDir
}

// PipelineEnabled reports whether rendering bundles the lists.
func (m *Manager) PipelineEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.mode.Enabled()
}

// split expands collections and classifies refs, returning resolved links
// per type in input order. Must be called with mu held.
func (m *Manager) split(refs []string) (css, js []string) {
	for _, ref := range refs {
		for _, leaf := range m.cfg.collections.Expand(ref) {
			switch m.cfg.resolver.Classify(leaf) {
			case assets.KindJS:
				js = append(js, m.cfg.resolver.Resolve(leaf, m.cfg.jsDir))
			case assets.KindCSS:
				css = append(css, m.cfg.resolver.Resolve(leaf, m.cfg.cssDir))
			default:
				m.logger.Debug("Ignoring unrecognized asset", logfields.Link(leaf))
			}
		}
	}
	return css, js
}

func (m *Manager) resolveAll(refs []string, typeDir string) []string {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		out = append(out, m.cfg.resolver.Resolve(ref, typeDir))
	}
	return out
}

// snapshot captures what a render pass needs so the lock is not held during
// pipeline I/O.
type snapshot struct {
	links    []string
	cfg      pipeline.Config
	subdir   string
	minifier pipeline.Minifier
	enabled  bool
}

func (m *Manager) snapshot(kind assets.Kind) snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := snapshot{
		cfg: pipeline.Config{
			Root:     m.cfg.publicDir,
			DirName:  m.cfg.pipelineDir,
			Mode:     m.cfg.mode,
			Gzip:     m.cfg.gzip,
			Hash:     m.cfg.hash,
			NoMinify: m.cfg.noMinify,
			Fetcher:  m.cfg.fetcher,
			Notifier: m.cfg.notifier,
			Store:    m.store,
		},
		enabled: m.cfg.mode.Enabled(),
	}
	switch kind {
	case assets.KindCSS:
		s.links = m.css.Items()
		s.subdir = m.cfg.cssDir
		s.minifier = m.cfg.cssMinifier
		if s.minifier == nil {
			s.minifier = pipeline.CSSMinifier()
		}
	case assets.KindJS:
		s.links = m.js.Items()
		s.subdir = m.cfg.jsDir
		s.minifier = m.cfg.jsMinifier
		if s.minifier == nil {
			s.minifier = pipeline.JSMinifier()
		}
	}
	return s
}

// Pipeline bundles the list of kind regardless of the configured pipeline
// mode. An empty list yields a zero Result.
func (m *Manager) Pipeline(ctx context.Context, kind assets.Kind, secure bool) (pipeline.Result, error) {
	s := m.snapshot(kind)
	if len(s.links) == 0 {
		return pipeline.Result{}, nil
	}
	return m.cache.Pipeline(ctx, s.cfg, pipeline.Request{
		Links:     s.links,
		Extension: kind.Extension(),
		Subdir:    s.subdir,
		Minifier:  s.minifier,
		Secure:    secure,
	})
}
