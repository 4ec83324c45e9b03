package pipeline

import "context"

// Fetcher retrieves the content of an absolute local path or a remote URL.
type Fetcher interface {
	Fetch(ctx context.Context, target string) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, target string) ([]byte, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, target string) ([]byte, error) {
	return f(ctx, target)
}

// Minifier transforms a source buffer into its minified form.
type Minifier interface {
	Minify(src []byte) ([]byte, error)
}

// MinifierFunc adapts a function to Minifier.
type MinifierFunc func(src []byte) ([]byte, error)

// Minify calls f.
func (f MinifierFunc) Minify(src []byte) ([]byte, error) {
	return f(src)
}

// Notifier is told about every artifact that was actually built. Errors are
// logged by the cache and never fail the pipeline call.
type Notifier interface {
	Notify(ctx context.Context, artifact Artifact) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, artifact Artifact) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, artifact Artifact) error {
	return f(ctx, artifact)
}

// Passthrough is a Minifier that returns its input unchanged.
var Passthrough Minifier = MinifierFunc(func(src []byte) ([]byte, error) { return src, nil })
