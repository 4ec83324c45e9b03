package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/storage"
)

type countingFetcher struct {
	mu    sync.Mutex
	calls map[string]int
	total atomic.Int64
}

func newCountingFetcher() *countingFetcher {
	return &countingFetcher{calls: make(map[string]int)}
}

func (f *countingFetcher) Fetch(ctx context.Context, target string) ([]byte, error) {
	f.total.Add(1)
	f.mu.Lock()
	f.calls[target]++
	f.mu.Unlock()
	return DefaultFetcher.Fetch(ctx, target)
}

func upper() Minifier {
	return MinifierFunc(func(src []byte) ([]byte, error) {
		return bytes.ToUpper(src), nil
	})
}

func writeAsset(t *testing.T, root, rel, content string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func newTestCache() *Cache {
	return NewCache(WithLogger(nil))
}

func TestPipelineCacheHitSkipsFetch(t *testing.T) {
	root := t.TempDir()
	writeAsset(t, root, "js/a.js", "var a = 1;")
	writeAsset(t, root, "js/b.js", "var b = 2;")

	fetcher := newCountingFetcher()
	cfg := Config{Root: root, Mode: Mode{Kind: ModeSalt, Salt: "1"}, Fetcher: fetcher}
	req := Request{Links: []string{"js/a.js", "js/b.js"}, Extension: ".js", Subdir: "js", Minifier: Passthrough}

	cache := newTestCache()
	first, err := cache.Pipeline(context.Background(), cfg, req)
	require.NoError(t, err)
	require.False(t, first.Cached)

	second, err := cache.Pipeline(context.Background(), cfg, req)
	require.NoError(t, err)
	require.True(t, second.Cached)

	require.Equal(t, first.URL, second.URL)
	require.Equal(t, first.Artifact.Hash, second.Artifact.Hash)
	require.EqualValues(t, 2, fetcher.total.Load(), "each link fetched exactly once across two calls")
	require.True(t, strings.HasPrefix(first.URL, "js/min/"))
	require.True(t, strings.HasSuffix(first.URL, ".js"))

	data, err := os.ReadFile(first.Artifact.Path)
	require.NoError(t, err)
	require.Equal(t, "var a = 1;\nvar b = 2;\n", string(data))
}

func TestPipelineAutoSaltTracksModificationTime(t *testing.T) {
	root := t.TempDir()
	file := writeAsset(t, root, "css/a.css", "a{}")
	old := time.Unix(1500000000, 0)
	require.NoError(t, os.Chtimes(file, old, old))

	cfg := Config{Root: root, Mode: Mode{Kind: ModeAuto}}
	req := Request{Links: []string{"css/a.css"}, Extension: ".css", Subdir: "css", Minifier: Passthrough}

	cache := newTestCache()
	before, err := cache.Pipeline(context.Background(), cfg, req)
	require.NoError(t, err)

	newer := old.Add(time.Hour)
	require.NoError(t, os.Chtimes(file, newer, newer))

	after, err := cache.Pipeline(context.Background(), cfg, req)
	require.NoError(t, err)
	require.NotEqual(t, before.Artifact.Hash, after.Artifact.Hash)
	require.False(t, after.Cached)
}

func TestPipelineSkipsMinificationForMinifiedNames(t *testing.T) {
	root := t.TempDir()
	writeAsset(t, root, "css/foo.min.css", "keep.dot")
	writeAsset(t, root, "css/foo-min.css", "keep-dash")
	writeAsset(t, root, "css/foo.css", "shout")

	cfg := Config{Root: root, Mode: Mode{Kind: ModeSalt, Salt: "1"}}
	req := Request{
		Links:     []string{"css/foo.min.css", "css/foo-min.css", "css/foo.css"},
		Extension: ".css",
		Subdir:    "css",
		Minifier:  upper(),
	}

	res, err := newTestCache().Pipeline(context.Background(), cfg, req)
	require.NoError(t, err)
	data, err := os.ReadFile(res.Artifact.Path)
	require.NoError(t, err)
	require.Equal(t, "keep.dot\nkeep-dash\nSHOUT\n", string(data))
}

func TestPipelineOrderMatters(t *testing.T) {
	root := t.TempDir()
	writeAsset(t, root, "js/a.js", "A")
	writeAsset(t, root, "js/b.js", "B")
	cfg := Config{Root: root}
	cache := newTestCache()

	ab, err := cache.Pipeline(context.Background(), cfg, Request{Links: []string{"js/a.js", "js/b.js"}, Extension: ".js", Subdir: "js"})
	require.NoError(t, err)
	ba, err := cache.Pipeline(context.Background(), cfg, Request{Links: []string{"js/b.js", "js/a.js"}, Extension: ".js", Subdir: "js"})
	require.NoError(t, err)

	require.NotEqual(t, ab.Artifact.Hash, ba.Artifact.Hash)
	abData, _ := os.ReadFile(ab.Artifact.Path)
	baData, _ := os.ReadFile(ba.Artifact.Path)
	require.Equal(t, "A\nB\n", string(abData))
	require.Equal(t, "B\nA\n", string(baData))
}

func TestPipelineGzipSibling(t *testing.T) {
	root := t.TempDir()
	writeAsset(t, root, "css/a.css", strings.Repeat("body{margin:0}", 20))

	cfg := Config{Root: root, Gzip: GzipLevel{Enabled: true, Level: gzip.BestCompression}}
	res, err := newTestCache().Pipeline(context.Background(), cfg, Request{Links: []string{"css/a.css"}, Extension: ".css", Subdir: "css"})
	require.NoError(t, err)
	require.NoError(t, res.CompressionErr)
	require.True(t, res.Artifact.Gzipped)

	plain, err := os.ReadFile(res.Artifact.Path)
	require.NoError(t, err)
	f, err := os.Open(res.Artifact.Path + ".gz")
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	inflated, err := io.ReadAll(zr)
	require.NoError(t, err)
	require.Equal(t, plain, inflated)
}

type gzFailStore struct {
	*storage.MemStore
}

func (s gzFailStore) Put(ctx context.Context, name string, data []byte) error {
	if strings.HasSuffix(name, ".gz") {
		return errors.New("no space left")
	}
	return s.MemStore.Put(ctx, name, data)
}

func TestPipelineCompressionFailureKeepsArtifact(t *testing.T) {
	store := gzFailStore{storage.NewMemStore()}
	cfg := Config{
		Store: store,
		Gzip:  GzipLevel{Enabled: true, Level: gzip.DefaultCompression},
		Fetcher: FetcherFunc(func(context.Context, string) ([]byte, error) {
			return []byte("x"), nil
		}),
	}
	res, err := newTestCache().Pipeline(context.Background(), cfg, Request{Links: []string{"js/a.js"}, Extension: ".js", Subdir: "js"})
	require.NoError(t, err)
	require.Error(t, res.CompressionErr)
	require.True(t, ferrors.HasCategory(res.CompressionErr, ferrors.CategoryCompression))
	require.False(t, res.Artifact.Gzipped)

	ok, _ := store.Exists(context.Background(), res.Artifact.URL)
	require.True(t, ok)
}

func TestPipelineNotifiesOnlyOnBuild(t *testing.T) {
	root := t.TempDir()
	writeAsset(t, root, "js/a.js", "a")

	var notified []Artifact
	cfg := Config{
		Root: root,
		Notifier: NotifierFunc(func(_ context.Context, a Artifact) error {
			notified = append(notified, a)
			return errors.New("hook failures are not fatal")
		}),
	}
	req := Request{Links: []string{"js/a.js"}, Extension: ".js", Subdir: "js"}
	cache := newTestCache()

	res, err := cache.Pipeline(context.Background(), cfg, req)
	require.NoError(t, err)
	_, err = cache.Pipeline(context.Background(), cfg, req)
	require.NoError(t, err)

	require.Len(t, notified, 1)
	require.Equal(t, res.Artifact.Filename, notified[0].Filename)
	require.Equal(t, res.Artifact.URL, notified[0].URL)
	require.Equal(t, []string{"js/a.js"}, notified[0].Sources)
	require.Equal(t, res.Artifact.Path, notified[0].Path)
}

func TestPipelineTokenOnHitAndMiss(t *testing.T) {
	root := t.TempDir()
	writeAsset(t, root, "js/a.js", "a")
	mode, err := ParseMode(1700000000)
	require.NoError(t, err)

	cfg := Config{Root: root, Mode: mode}
	req := Request{Links: []string{"js/a.js"}, Extension: ".js", Subdir: "js"}
	cache := newTestCache()

	miss, err := cache.Pipeline(context.Background(), cfg, req)
	require.NoError(t, err)
	hit, err := cache.Pipeline(context.Background(), cfg, req)
	require.NoError(t, err)

	require.True(t, strings.HasSuffix(miss.URL, ".js?1700000000"))
	require.Equal(t, miss.URL, hit.URL)
	require.NotContains(t, miss.Artifact.URL, "?")
}

func TestPipelineMissingLocalFileIsFetchError(t *testing.T) {
	root := t.TempDir()
	_, err := newTestCache().Pipeline(context.Background(), Config{Root: root},
		Request{Links: []string{"css/nope.css"}, Extension: ".css", Subdir: "css"})
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryFetch))

	entries, _ := os.ReadDir(filepath.Join(root, "css", "min"))
	require.Empty(t, entries)
}

func TestPipelineMissingRootIsStorageError(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "public")
	cfg := Config{
		Root: missing,
		Fetcher: FetcherFunc(func(context.Context, string) ([]byte, error) {
			return []byte("x"), nil
		}),
	}
	_, err := newTestCache().Pipeline(context.Background(), cfg,
		Request{Links: []string{"http://cdn.example/x.js"}, Extension: ".js", Subdir: "js"})
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryStorage))
}

func TestPipelineProtocolRelativeScheme(t *testing.T) {
	for _, secure := range []bool{false, true} {
		var got string
		cfg := Config{
			Store: storage.NewMemStore(),
			Fetcher: FetcherFunc(func(_ context.Context, target string) ([]byte, error) {
				got = target
				return []byte("x"), nil
			}),
		}
		_, err := newTestCache().Pipeline(context.Background(), cfg,
			Request{Links: []string{"//cdn.example/lib.js"}, Extension: ".js", Subdir: "js", Secure: secure})
		require.NoError(t, err)
		if secure {
			require.Equal(t, "https://cdn.example/lib.js", got)
		} else {
			require.Equal(t, "http://cdn.example/lib.js", got)
		}
	}
}

func TestPipelineConcurrentCallersBuildOnce(t *testing.T) {
	var fetches atomic.Int64
	store := storage.NewMemStore()
	cfg := Config{
		Store: store,
		Fetcher: FetcherFunc(func(context.Context, string) ([]byte, error) {
			fetches.Add(1)
			time.Sleep(10 * time.Millisecond)
			return []byte("x"), nil
		}),
	}
	req := Request{Links: []string{"js/a.js"}, Extension: ".js", Subdir: "js"}
	cache := newTestCache()

	var wg sync.WaitGroup
	urls := make([]string, 8)
	for i := range urls {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := cache.Pipeline(context.Background(), cfg, req)
			if err == nil {
				urls[i] = res.URL
			}
		}(i)
	}
	wg.Wait()

	require.EqualValues(t, 1, fetches.Load())
	require.Equal(t, 1, store.Calls().Put)
	for _, u := range urls {
		require.Equal(t, urls[0], u)
	}
}

func TestPipelineSharedBuildSurvivesFirstCallerCancel(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var fetches atomic.Int64
	store := storage.NewMemStore()
	cfg := Config{
		Store: store,
		Fetcher: FetcherFunc(func(ctx context.Context, _ string) ([]byte, error) {
			if fetches.Add(1) == 1 {
				close(started)
			}
			<-release
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return []byte("x"), nil
		}),
	}
	req := Request{Links: []string{"js/a.js"}, Extension: ".js", Subdir: "js"}
	cache := newTestCache()

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := cache.Pipeline(ctxA, cfg, req)
		errA <- err
	}()
	<-started

	type outcome struct {
		res Result
		err error
	}
	resB := make(chan outcome, 1)
	go func() {
		res, err := cache.Pipeline(context.Background(), cfg, req)
		resB <- outcome{res, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	require.ErrorIs(t, <-errA, context.Canceled)

	close(release)
	b := <-resB
	require.NoError(t, b.err)
	require.True(t, strings.HasPrefix(b.res.URL, "js/min/"))
	require.EqualValues(t, 1, fetches.Load())
	require.Equal(t, 1, store.Calls().Put)
}

type gzCheckFailStore struct {
	*storage.MemStore
}

func (s gzCheckFailStore) Exists(ctx context.Context, name string) (bool, error) {
	if strings.HasSuffix(name, ".gz") {
		return false, errors.New("permission denied")
	}
	return s.MemStore.Exists(ctx, name)
}

func TestPipelineHitLogsGzipCheckFailure(t *testing.T) {
	var logs bytes.Buffer
	cache := NewCache(WithLogger(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))))
	cfg := Config{
		Store: gzCheckFailStore{storage.NewMemStore()},
		Gzip:  GzipLevel{Enabled: true, Level: gzip.DefaultCompression},
		Fetcher: FetcherFunc(func(context.Context, string) ([]byte, error) {
			return []byte("x"), nil
		}),
	}
	req := Request{Links: []string{"js/a.js"}, Extension: ".js", Subdir: "js"}

	_, err := cache.Pipeline(context.Background(), cfg, req)
	require.NoError(t, err)

	res, err := cache.Pipeline(context.Background(), cfg, req)
	require.NoError(t, err)
	require.True(t, res.Cached)
	require.False(t, res.Artifact.Gzipped)
	require.Contains(t, logs.String(), "Failed to check gzip sibling")
	require.Contains(t, logs.String(), "permission denied")
}

func TestPipelineRejectsEmptyLinks(t *testing.T) {
	_, err := newTestCache().Pipeline(context.Background(), Config{Root: t.TempDir()}, Request{Extension: ".css"})
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.js" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, "remote();")
	}))
	defer srv.Close()

	f := NewHTTPFetcher()
	data, err := f.Fetch(context.Background(), srv.URL+"/lib.js")
	require.NoError(t, err)
	require.Equal(t, "remote();", string(data))

	_, err = f.Fetch(context.Background(), srv.URL+"/missing.js")
	require.Error(t, err)
}

func TestHTTPFetcherRejectsOversizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, strings.Repeat("a", 64))
	}))
	defer srv.Close()

	f := NewHTTPFetcher()
	f.MaxBytes = 16
	_, err := f.Fetch(context.Background(), srv.URL+"/big.js")
	require.Error(t, err)
	require.Contains(t, err.Error(), "exceeds 16 bytes")

	f.MaxBytes = 64
	data, err := f.Fetch(context.Background(), srv.URL+"/big.js")
	require.NoError(t, err)
	require.Len(t, data, 64)

	store := storage.NewMemStore()
	f.MaxBytes = 16
	_, err = newTestCache().Pipeline(context.Background(), Config{Store: store, Fetcher: f},
		Request{Links: []string{srv.URL + "/big.js"}, Extension: ".js", Subdir: "js"})
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryFetch))
	require.Zero(t, store.Len())
}

func TestDefaultMinifiers(t *testing.T) {
	out, err := CSSMinifier().Minify([]byte("body {\n  color : red ;\n}\n"))
	require.NoError(t, err)
	require.Equal(t, "body{color:red}", string(out))

	out, err = JSMinifier().Minify([]byte("var   answer = 42 ;\n"))
	require.NoError(t, err)
	require.NotContains(t, string(out), "   ")
}
