package manager

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetbuilder/internal/assets"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/pipeline"
	"git.home.luguber.info/inful/assetbuilder/internal/render"
)

func newManager(t *testing.T, opts Options) *Manager {
	t.Helper()
	m, err := New(opts)
	require.NoError(t, err)
	return m
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
}

func TestEndToEndWithoutPipeline(t *testing.T) {
	m := newManager(t, Options{KeyCSSDir: "css", KeyJSDir: "js", KeyPipeline: false})
	m.Add("app.css", "app.js", "http://cdn/lib.js")

	css, err := m.CSS(context.Background(), RenderOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, strings.Count(css, "<link"))
	require.Contains(t, css, `href="css/app.css"`)

	js, err := m.JS(context.Background(), RenderOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, strings.Count(js, "<script"))
	first := strings.Index(js, `src="js/app.js"`)
	second := strings.Index(js, `src="http://cdn/lib.js"`)
	require.True(t, first >= 0 && second > first, "tags out of order: %s", js)
}

func TestEmptyListsRenderNothing(t *testing.T) {
	m := newManager(t, nil)
	css, err := m.CSS(context.Background(), RenderOptions{})
	require.NoError(t, err)
	require.Empty(t, css)

	called := false
	js, err := m.JS(context.Background(), RenderOptions{Render: func([]string) string { called = true; return "x" }})
	require.NoError(t, err)
	require.Empty(t, js)
	require.False(t, called)
}

func TestAddDeduplicates(t *testing.T) {
	m := newManager(t, nil)
	m.Add("a.css", "a.css").AddCSS("a.css", "css/a.css")
	require.Equal(t, []string{"css/a.css"}, m.CSSLinks())
}

func TestPrependKeepsBatchOrder(t *testing.T) {
	m := newManager(t, nil)
	m.Add("c.js")
	m.Prepend("a.js", "b.js", "x.css")
	require.Equal(t, []string{"js/a.js", "js/b.js", "js/c.js"}, m.JSLinks())
	require.Equal(t, []string{"css/x.css"}, m.CSSLinks())

	m.PrependJS("z.js", "a.js")
	require.Equal(t, []string{"js/z.js", "js/a.js", "js/b.js", "js/c.js"}, m.JSLinks())
}

func TestCollectionExpansion(t *testing.T) {
	m := newManager(t, Options{
		KeyCollections: map[string]any{
			"c":    []any{"a.js", "b.css"},
			"base": []any{"c", "vendor/pkg:extra.js"},
		},
	})
	m.Add("c")
	require.Len(t, m.JSLinks(), 1)
	require.True(t, strings.HasSuffix(m.JSLinks()[0], "a.js"))
	require.Len(t, m.CSSLinks(), 1)
	require.True(t, strings.HasSuffix(m.CSSLinks()[0], "b.css"))

	m.Reset().Add("base")
	require.Equal(t, []string{"js/a.js", "packages/vendor/pkg/js/extra.js"}, m.JSLinks())
}

func TestCollectionCycleIsConfigError(t *testing.T) {
	_, err := New(Options{KeyCollections: map[string][]string{"a": {"b"}, "b": {"a"}}})
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))

	var cycle *assets.CycleError
	require.ErrorAs(t, err, &cycle)

	m := newManager(t, Options{KeyCollections: map[string][]string{"a": {"x.js"}}})
	err = m.RegisterCollection("x.js", []string{"a"})
	require.Error(t, err)
	require.NoError(t, m.RegisterCollection("b", []string{"a", "y.css"}))
	m.Add("b")
	require.Equal(t, []string{"css/y.css"}, m.CSSLinks())
}

func TestPipelineWithoutPublicDirIsConfigError(t *testing.T) {
	_, err := New(Options{KeyPipeline: true, KeyPublicDir: filepath.Join(t.TempDir(), "missing")})
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))

	_, err = New(Options{KeyPipeline: "auto"})
	require.Error(t, err)
}

func TestConfigureIsAllOrNothing(t *testing.T) {
	m := newManager(t, Options{KeyCSSDir: "styles"})
	err := m.Configure(Options{
		KeyCSSDir:        "other",
		KeyNotifyCommand: "not callable",
	})
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))

	m.Add("a.css")
	require.Equal(t, []string{"styles/a.css"}, m.CSSLinks())
}

func TestPipelineHashMustBeString(t *testing.T) {
	_, err := New(Options{KeyPipelineHash: 256})
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
	require.Contains(t, err.Error(), KeyPipelineHash)

	m, err := New(Options{KeyPipelineHash: "blake3"})
	require.NoError(t, err)
	require.NotNil(t, m)
}

func TestInvalidRegexIsIgnored(t *testing.T) {
	m := newManager(t, Options{KeyCSSRegex: "([", KeyJSRegex: `/\.mjs$/i`})
	m.Add("a.css", "b.MJS", "c.js")
	require.Equal(t, []string{"css/a.css"}, m.CSSLinks())
	require.Equal(t, []string{"js/b.MJS"}, m.JSLinks())
}

func TestExtensionDetection(t *testing.T) {
	m := newManager(t, Options{KeyAssetDetection: "extension"})
	m.Add("http://cdn/lib.JS?v=1", "style.css#x", "readme.txt")
	require.Equal(t, []string{"http://cdn/lib.JS?v=1"}, m.JSLinks())
	require.Equal(t, []string{"css/style.css#x"}, m.CSSLinks())

	_, err := New(Options{KeyAssetDetection: "magic"})
	require.Error(t, err)
}

func TestAutoload(t *testing.T) {
	m := newManager(t, Options{
		KeyCollections: map[string]any{"jquery": "//code.jquery.com/jquery.min.js"},
		KeyAutoload:    []any{"jquery", "app.css"},
	})
	require.Equal(t, []string{"//code.jquery.com/jquery.min.js"}, m.JSLinks())
	require.Equal(t, []string{"css/app.css"}, m.CSSLinks())
}

func TestRenderAttributesAndOverride(t *testing.T) {
	m := newManager(t, nil)
	m.Add("a.css")

	css, err := m.CSS(context.Background(), RenderOptions{Attributes: render.Attrs("media", "print", "href", "x")})
	require.NoError(t, err)
	require.Equal(t, `<link href="css/a.css" media="print" type="text/css" rel="stylesheet"/>`+"\n", css)

	out, err := m.CSS(context.Background(), RenderOptions{Render: func(links []string) string {
		return strings.Join(links, ",")
	}})
	require.NoError(t, err)
	require.Equal(t, "css/a.css", out)
}

func TestRenderWithPipeline(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "js/a.js", "var a = 1;")
	writeFile(t, root, "js/b.min.js", "var b=2;")

	var fetches atomic.Int64
	var notified atomic.Int64
	m := newManager(t, Options{
		KeyPublicDir: root,
		KeyPipeline:  true,
		KeyFetchCommand: func(ctx context.Context, target string) ([]byte, error) {
			fetches.Add(1)
			return os.ReadFile(target)
		},
		KeyJSMinifier: func(src string) string { return strings.ReplaceAll(src, " ", "") },
		KeyNotifyCommand: func(a pipeline.Artifact) {
			notified.Add(1)
		},
		KeyPipelineGzip: 6,
	})
	m.Add("a.js", "b.min.js")

	var got []string
	_, err := m.JS(context.Background(), RenderOptions{Render: func(links []string) string {
		got = links
		return ""
	}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.True(t, strings.HasPrefix(got[0], "js/min/"))

	js, err := m.JS(context.Background(), RenderOptions{})
	require.NoError(t, err)
	require.Equal(t, `<script src="`+got[0]+`" type="text/javascript"></script>`+"\n", js)

	require.EqualValues(t, 2, fetches.Load())
	require.EqualValues(t, 1, notified.Load())

	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(got[0])))
	require.NoError(t, err)
	require.Equal(t, "vara=1;\nvar b=2;\n", string(data))
	_, err = os.Stat(filepath.Join(root, filepath.FromSlash(got[0])) + ".gz")
	require.NoError(t, err)
}

func TestRenderPipelineFetchFailure(t *testing.T) {
	root := t.TempDir()
	m := newManager(t, Options{KeyPublicDir: root, KeyPipeline: "v1"})
	m.Add("missing.css")

	_, err := m.CSS(context.Background(), RenderOptions{})
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryFetch))
}

func TestAddDir(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "assets/b.js", "")
	writeFile(t, root, "assets/a.css", "")
	writeFile(t, root, "assets/sub/c.js", "")
	writeFile(t, root, "assets/readme.md", "")

	m := newManager(t, Options{KeyPublicDir: root})
	require.NoError(t, m.AddDir("assets", ""))
	require.Equal(t, []string{"assets/a.css"}, m.CSSLinks())
	require.Equal(t, []string{"assets/b.js", "assets/sub/c.js"}, m.JSLinks())

	m.Reset()
	require.NoError(t, m.AddDirJS("assets"))
	require.Empty(t, m.CSSLinks())
	require.Len(t, m.JSLinks(), 2)

	m.Reset()
	require.NoError(t, m.AddDirCSS("assets"))
	require.Equal(t, []string{"assets/a.css"}, m.CSSLinks())

	require.NoError(t, m.AddDir("nope", ""))
	require.Error(t, m.AddDir("assets", "(["))
}

func TestDirectoryAccessors(t *testing.T) {
	m := newManager(t, Options{KeyPublicDir: "web", KeyCSSDir: "styles", KeyPipelineDir: "bundles"})
	require.Equal(t, "web", m.PublicDir())

	css, js := m.SourceDirs()
	require.Equal(t, "styles", css)
	require.Equal(t, DefaultJSDir, js)

	css, js = m.PipelineDirs()
	require.Equal(t, "styles/bundles", css)
	require.Equal(t, DefaultJSDir+"/bundles", js)
	require.False(t, m.PipelineEnabled())
}
