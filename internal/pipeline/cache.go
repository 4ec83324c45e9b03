package pipeline

import (
	"context"
	"log/slog"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"git.home.luguber.info/inful/assetbuilder/internal/assets"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
	"git.home.luguber.info/inful/assetbuilder/internal/metrics"
	"git.home.luguber.info/inful/assetbuilder/internal/storage"
)

// DefaultDirName is the bundle folder below each asset type directory.
const DefaultDirName = "min"

var defaultNoMinify = regexp.MustCompile(assets.DefaultNoMinifyPattern)

// Config carries the pipeline settings of one Manager. It is read-only
// during a call.
type Config struct {
	// Root is the public directory all local links are relative to.
	Root string
	// DirName is the bundle folder name (DefaultDirName when empty).
	DirName string
	Mode    Mode
	Gzip    GzipLevel
	Hash    HashAlgorithm
	// NoMinify matches links whose content is concatenated verbatim.
	NoMinify *regexp.Regexp
	Fetcher  Fetcher
	Notifier Notifier
	// Store overrides the filesystem store rooted at Root.
	Store storage.Store
}

func (c Config) dirName() string {
	if c.DirName == "" {
		return DefaultDirName
	}
	return c.DirName
}

func (c Config) noMinify() *regexp.Regexp {
	if c.NoMinify == nil {
		return defaultNoMinify
	}
	return c.NoMinify
}

func (c Config) fetcher() Fetcher {
	if c.Fetcher == nil {
		return DefaultFetcher
	}
	return c.Fetcher
}

func (c Config) store() storage.Store {
	if c.Store == nil {
		return storage.NewFSStore(c.Root)
	}
	return c.Store
}

// Request describes one bundle of a single asset type.
type Request struct {
	// Links are resolved references in bundle order. Must not be empty.
	Links []string
	// Extension of the bundle, ".css" or ".js".
	Extension string
	// Subdir is the asset type directory below Root, e.g. "css".
	Subdir string
	// Minifier applied to every link not matching Config.NoMinify.
	Minifier Minifier
	// Secure selects https for protocol-relative links.
	Secure bool
}

// Artifact describes a bundle on storage.
type Artifact struct {
	Hash     string
	Filename string
	// URL is the link relative to Root, without cache-bust token.
	URL string
	// Path is the absolute storage location.
	Path    string
	Sources []string
	Gzipped bool
}

// Result is the outcome of a pipeline call.
type Result struct {
	// URL to render, including the cache-bust token when configured.
	URL      string
	Artifact Artifact
	// Cached is true when the artifact already existed.
	Cached bool
	// CompressionErr holds a non-fatal gzip sibling failure.
	CompressionErr error
}

// Cache builds and memoizes bundles. It holds no state about artifacts
// beyond what storage holds, and is safe for concurrent use: concurrent
// builds of the same artifact are collapsed into one.
type Cache struct {
	group    singleflight.Group
	recorder metrics.Recorder
	logger   *slog.Logger
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) CacheOption {
	return func(c *Cache) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) CacheOption {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCache creates a Cache.
func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Pipeline returns the bundle for req, building it on a cache miss.
func (c *Cache) Pipeline(ctx context.Context, cfg Config, req Request) (Result, error) {
	if len(req.Links) == 0 {
		return Result{}, ferrors.ValidationError("pipeline called with no links").Build()
	}
	if cfg.Root == "" && cfg.Store == nil {
		return Result{}, ferrors.ConfigError("pipeline requires a public directory").Build()
	}

	links := slices.Clone(req.Links)
	hash := Identity(cfg.Hash, links, cfg.Mode.salt(cfg.Root, links))
	filename := hash + req.Extension
	rel := path.Join(req.Subdir, cfg.dirName(), filename)
	store := cfg.store()
	assetType := strings.TrimPrefix(req.Extension, ".")

	artifact := Artifact{
		Hash:     hash,
		Filename: filename,
		URL:      rel,
		Path:     store.Path(rel),
		Sources:  links,
	}

	if res, ok, err := c.lookup(ctx, store, artifact, cfg); err != nil || ok {
		if ok {
			c.recorder.IncCacheResult(assetType, metrics.CacheHit)
		}
		return res, err
	}

	// The shared build outlives any single caller; each caller still stops
	// waiting when its own context ends.
	buildCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(artifact.Path, func() (any, error) {
		// Another caller may have finished between lookup and DoChan.
		if res, ok, err := c.lookup(buildCtx, store, artifact, cfg); err != nil || ok {
			return res, err
		}
		return c.build(buildCtx, cfg, req, store, artifact, assetType)
	})
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return Result{}, r.Err
		}
		return r.Val.(Result), nil
	}
}

func (c *Cache) lookup(ctx context.Context, store storage.Store, artifact Artifact, cfg Config) (Result, bool, error) {
	ok, err := store.Exists(ctx, artifact.URL)
	if err != nil {
		return Result{}, false, ferrors.WrapError(err, ferrors.CategoryStorage, "check pipeline artifact").
			WithContext("path", artifact.Path).Build()
	}
	if !ok {
		return Result{}, false, nil
	}
	if cfg.Gzip.Enabled {
		gz, err := store.Exists(ctx, artifact.URL+".gz")
		if err != nil {
			c.logger.Debug("Failed to check gzip sibling",
				logfields.Path(artifact.Path+".gz"), logfields.Error(err))
		}
		artifact.Gzipped = gz
	}
	return Result{URL: artifact.URL + cfg.Mode.querySuffix(), Artifact: artifact, Cached: true}, true, nil
}

func (c *Cache) build(ctx context.Context, cfg Config, req Request, store storage.Store, artifact Artifact, assetType string) (Result, error) {
	start := time.Now()
	c.recorder.IncCacheResult(assetType, metrics.CacheMiss)

	buffer, err := c.pack(ctx, cfg, req)
	if err != nil {
		return Result{}, err
	}

	if err := store.Put(ctx, artifact.URL, buffer); err != nil {
		return Result{}, ferrors.WrapError(err, ferrors.CategoryStorage, "write pipeline artifact").
			WithContext("path", artifact.Path).Build()
	}

	res := Result{URL: artifact.URL + cfg.Mode.querySuffix()}

	if cfg.Gzip.Enabled {
		if err := c.writeGzip(ctx, store, artifact.URL, buffer, cfg.Gzip.Level); err != nil {
			res.CompressionErr = err
			c.recorder.IncCompressionFailure(assetType)
			c.logger.Warn("Failed to write gzip sibling",
				logfields.Path(artifact.Path+".gz"), logfields.Error(err))
		} else {
			artifact.Gzipped = true
		}
	}
	res.Artifact = artifact

	c.recorder.ObservePipelineDuration(assetType, time.Since(start))
	c.recorder.ObserveBundleSize(assetType, len(buffer))
	c.logger.Info("Pipeline artifact built",
		logfields.AssetType(assetType),
		logfields.URL(artifact.URL),
		logfields.Links(len(artifact.Sources)),
		logfields.Bytes(len(buffer)),
		logfields.Gzipped(artifact.Gzipped),
		logfields.DurationMS(float64(time.Since(start).Microseconds())/1000))

	if cfg.Notifier != nil {
		if err := cfg.Notifier.Notify(ctx, artifact); err != nil {
			c.recorder.IncNotifyFailure()
			c.logger.Warn("Pipeline notifier failed", logfields.URL(artifact.URL), logfields.Error(err))
		}
	}
	return res, nil
}

// pack fetches, minifies and concatenates every link in order.
func (c *Cache) pack(ctx context.Context, cfg Config, req Request) ([]byte, error) {
	fetcher := cfg.fetcher()
	skip := cfg.noMinify()
	minifier := req.Minifier
	if minifier == nil {
		minifier = Passthrough
	}

	var buffer []byte
	for _, link := range req.Links {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		target, source := c.target(cfg.Root, link, req.Secure)
		content, err := fetcher.Fetch(ctx, target)
		c.recorder.IncFetchResult(source, err == nil)
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryFetch, "fetch asset").
				WithContext("link", link).
				WithContext("target", target).
				Build()
		}

		if !skip.MatchString(link) {
			content, err = minifier.Minify(content)
			if err != nil {
				return nil, ferrors.WrapError(err, ferrors.CategoryBuild, "minify asset").
					WithContext("link", link).
					Build()
			}
		}

		buffer = append(buffer, content...)
		buffer = append(buffer, '\n')
	}
	return buffer, nil
}

// target maps a link to what the fetcher receives.
func (c *Cache) target(root, link string, secure bool) (string, metrics.FetchSource) {
	if assets.IsRemote(link) {
		if strings.HasPrefix(link, "//") {
			if secure {
				return "https:" + link, metrics.SourceRemote
			}
			return "http:" + link, metrics.SourceRemote
		}
		return link, metrics.SourceRemote
	}
	return filepath.Join(root, filepath.FromSlash(link)), metrics.SourceLocal
}

func (c *Cache) writeGzip(ctx context.Context, store storage.Store, name string, data []byte, level int) error {
	compressed, err := compress(data, level)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryCompression, "gzip pipeline artifact").Warning().Build()
	}
	if err := store.Put(ctx, name+".gz", compressed); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryCompression, "write gzip sibling").Warning().Build()
	}
	return nil
}
