package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// DefaultFetchTimeout bounds a single remote retrieval.
const DefaultFetchTimeout = 30 * time.Second

// DefaultMaxRemoteBytes caps a remote response body.
const DefaultMaxRemoteBytes int64 = 32 << 20

// HTTPFetcher reads local paths from disk and retrieves http(s) URLs with a
// plain GET. Non-2xx responses are errors.
type HTTPFetcher struct {
	Client    *http.Client
	UserAgent string
	// MaxBytes rejects larger bodies (DefaultMaxRemoteBytes when zero).
	MaxBytes int64
}

// NewHTTPFetcher returns a fetcher with a client bounded by DefaultFetchTimeout.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		Client:    &http.Client{Timeout: DefaultFetchTimeout},
		UserAgent: "assetbuilder",
		MaxBytes:  DefaultMaxRemoteBytes,
	}
}

// DefaultFetcher is used when a Config has no Fetcher.
var DefaultFetcher Fetcher = NewHTTPFetcher()

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, target string) ([]byte, error) {
	if !isHTTP(target) {
		// #nosec G304 - target is a link resolved under the public directory
		return os.ReadFile(target)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}

	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultFetchTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("GET %s: unexpected status %d", target, resp.StatusCode)
	}
	limit := f.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxRemoteBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("GET %s: response exceeds %d bytes", target, limit)
	}
	return body, nil
}

func isHTTP(target string) bool {
	return strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://")
}
