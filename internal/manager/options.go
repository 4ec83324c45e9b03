package manager

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"git.home.luguber.info/inful/assetbuilder/internal/assets"
	"git.home.luguber.info/inful/assetbuilder/internal/pipeline"
)

// Options holds configuration values keyed by the Key* constants. Unknown
// keys are ignored.
type Options map[string]any

// Recognized option keys.
const (
	KeyPublicDir           = "public_dir"
	KeyCSSDir              = "css_dir"
	KeyJSDir               = "js_dir"
	KeyPackagesDir         = "packages_dir"
	KeyPipeline            = "pipeline"
	KeyPipelineDir         = "pipeline_dir"
	KeyPipelineGzip        = "pipeline_gzip"
	KeyPipelineHash        = "pipeline_hash"
	KeyAssetRegex          = "asset_regex"
	KeyCSSRegex            = "css_regex"
	KeyJSRegex             = "js_regex"
	KeyNoMinificationRegex = "no_minification_regex"
	KeyAssetDetection      = "asset_detection"
	KeyFetchCommand        = "fetch_command"
	KeyNotifyCommand       = "notify_command"
	KeyCSSMinifier         = "css_minifier"
	KeyJSMinifier          = "js_minifier"
	KeyCollections         = "collections"
	KeyAutoload            = "autoload"
)

// Defaults for the directory options.
const (
	DefaultCSSDir = "css"
	DefaultJSDir  = "js"
)

// settings is the effective configuration of a Manager. Configure builds a
// new value and swaps it in only when every option was valid.
type settings struct {
	publicDir   string
	cssDir      string
	jsDir       string
	pipelineDir string
	resolver    *assets.Resolver
	noMinify    *regexp.Regexp
	mode        pipeline.Mode
	gzip        pipeline.GzipLevel
	hash        pipeline.HashAlgorithm
	fetcher     pipeline.Fetcher
	notifier    pipeline.Notifier
	cssMinifier pipeline.Minifier
	jsMinifier  pipeline.Minifier
	collections assets.Collections
}

func defaultSettings() settings {
	return settings{
		cssDir:      DefaultCSSDir,
		jsDir:       DefaultJSDir,
		pipelineDir: pipeline.DefaultDirName,
		resolver:    assets.NewResolver(),
		noMinify:    regexp.MustCompile(assets.DefaultNoMinifyPattern),
		hash:        pipeline.HashMD5,
		collections: assets.Collections{},
	}
}

func (s settings) clone() settings {
	c := s
	c.resolver = s.resolver.Clone()
	c.collections = s.collections.Clone()
	return c
}

// apply folds opts into s. Returned autoload references are added by the
// caller after the new settings are committed.
func (s *settings) apply(opts Options) ([]string, error) {
	if err := s.applyPatterns(opts); err != nil {
		return nil, err
	}

	for key, dst := range map[string]*string{
		KeyPublicDir:   &s.publicDir,
		KeyCSSDir:      &s.cssDir,
		KeyJSDir:       &s.jsDir,
		KeyPackagesDir: &s.resolver.PackagesDir,
		KeyPipelineDir: &s.pipelineDir,
	} {
		v, ok := opts[key]
		if !ok || v == nil {
			continue
		}
		str, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%s must be a string, got %T", key, v)
		}
		*dst = str
	}

	if v, ok := opts[KeyPipeline]; ok {
		mode, err := pipeline.ParseMode(v)
		if err != nil {
			return nil, err
		}
		s.mode = mode
	}
	if v, ok := opts[KeyPipelineGzip]; ok {
		level, err := pipeline.ParseGzipLevel(v)
		if err != nil {
			return nil, err
		}
		s.gzip = level
	}
	if v, ok := opts[KeyPipelineHash]; ok && v != nil {
		name, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%s must be a string, got %T", KeyPipelineHash, v)
		}
		h, err := pipeline.ParseHashAlgorithm(name)
		if err != nil {
			return nil, err
		}
		s.hash = h
	}
	if v, ok := opts[KeyAssetDetection]; ok && v != nil {
		switch d := assets.Detection(fmt.Sprint(v)); d {
		case assets.DetectRegex, assets.DetectExtension:
			s.resolver.Detection = d
		default:
			return nil, fmt.Errorf("%s must be %q or %q, got %q", KeyAssetDetection, assets.DetectRegex, assets.DetectExtension, d)
		}
	}

	if err := s.applyCapabilities(opts); err != nil {
		return nil, err
	}

	if v, ok := opts[KeyCollections]; ok && v != nil {
		cols, err := toCollections(v)
		if err != nil {
			return nil, err
		}
		if err := cols.Validate(); err != nil {
			return nil, err
		}
		s.collections = cols
	}

	if s.mode.Enabled() {
		if s.publicDir == "" {
			return nil, fmt.Errorf("pipeline requires %s", KeyPublicDir)
		}
		fi, err := os.Stat(s.publicDir)
		if err != nil || !fi.IsDir() {
			return nil, fmt.Errorf("%s %q is not an existing directory", KeyPublicDir, s.publicDir)
		}
	}

	if v, ok := opts[KeyAutoload]; ok && v != nil {
		refs, err := toStrings(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", KeyAutoload, err)
		}
		return refs, nil
	}
	return nil, nil
}

// applyPatterns compiles the regex options. Invalid expressions keep the
// previous value.
func (s *settings) applyPatterns(opts Options) error {
	for key, dst := range map[string]**regexp.Regexp{
		KeyAssetRegex:          &s.resolver.AssetPattern,
		KeyCSSRegex:            &s.resolver.CSSPattern,
		KeyJSRegex:             &s.resolver.JSPattern,
		KeyNoMinificationRegex: &s.noMinify,
	} {
		v, ok := opts[key]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case *regexp.Regexp:
			*dst = t
		case string:
			re, err := assets.CompilePattern(t)
			if err != nil {
				continue
			}
			*dst = re
		default:
			return fmt.Errorf("%s must be a pattern string, got %T", key, v)
		}
	}
	return nil
}

func (s *settings) applyCapabilities(opts Options) error {
	if v, ok := opts[KeyFetchCommand]; ok && v != nil {
		f, err := toFetcher(v)
		if err != nil {
			return err
		}
		s.fetcher = f
	}
	if v, ok := opts[KeyNotifyCommand]; ok && v != nil {
		n, err := toNotifier(v)
		if err != nil {
			return err
		}
		s.notifier = n
	}
	if v, ok := opts[KeyCSSMinifier]; ok && v != nil {
		m, err := toMinifier(KeyCSSMinifier, v)
		if err != nil {
			return err
		}
		s.cssMinifier = m
	}
	if v, ok := opts[KeyJSMinifier]; ok && v != nil {
		m, err := toMinifier(KeyJSMinifier, v)
		if err != nil {
			return err
		}
		s.jsMinifier = m
	}
	return nil
}

func toFetcher(v any) (pipeline.Fetcher, error) {
	switch f := v.(type) {
	case pipeline.Fetcher:
		return f, nil
	case func(context.Context, string) ([]byte, error):
		return pipeline.FetcherFunc(f), nil
	case func(string) ([]byte, error):
		return pipeline.FetcherFunc(func(_ context.Context, target string) ([]byte, error) { return f(target) }), nil
	case func(string) string:
		return pipeline.FetcherFunc(func(_ context.Context, target string) ([]byte, error) { return []byte(f(target)), nil }), nil
	default:
		return nil, fmt.Errorf("%s must be a fetcher, got %T", KeyFetchCommand, v)
	}
}

func toNotifier(v any) (pipeline.Notifier, error) {
	switch n := v.(type) {
	case pipeline.Notifier:
		return n, nil
	case func(context.Context, pipeline.Artifact) error:
		return pipeline.NotifierFunc(n), nil
	case func(pipeline.Artifact):
		return pipeline.NotifierFunc(func(_ context.Context, a pipeline.Artifact) error { n(a); return nil }), nil
	default:
		return nil, fmt.Errorf("%s must be a notifier, got %T", KeyNotifyCommand, v)
	}
}

func toMinifier(key string, v any) (pipeline.Minifier, error) {
	switch m := v.(type) {
	case pipeline.Minifier:
		return m, nil
	case func([]byte) ([]byte, error):
		return pipeline.MinifierFunc(m), nil
	case func(string) string:
		return pipeline.MinifierFunc(func(src []byte) ([]byte, error) { return []byte(m(string(src))), nil }), nil
	default:
		return nil, fmt.Errorf("%s must be a minifier, got %T", key, v)
	}
}

func toCollections(v any) (assets.Collections, error) {
	switch t := v.(type) {
	case assets.Collections:
		return t.Clone(), nil
	case map[string][]string:
		return assets.Collections(t).Clone(), nil
	case map[string]any:
		out := make(assets.Collections, len(t))
		for name, raw := range t {
			refs, err := toStrings(raw)
			if err != nil {
				return nil, fmt.Errorf("collection %q: %w", name, err)
			}
			out[name] = refs
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s must be a mapping, got %T", KeyCollections, v)
	}
}

// toStrings accepts a single string or a sequence of strings.
func toStrings(v any) ([]string, error) {
	switch t := v.(type) {
	case string:
		return []string{t}, nil
	case []string:
		return append([]string(nil), t...), nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string, got %T", item)
			}
			out = append(out, strings.TrimSpace(s))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected string or list, got %T", v)
	}
}
