package assets

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsRemote(t *testing.T) {
	require.True(t, IsRemote("http://foo"))
	require.True(t, IsRemote("https://foo"))
	require.True(t, IsRemote("//foo"))
	require.False(t, IsRemote("/"))
	require.False(t, IsRemote("/foo"))
	require.False(t, IsRemote("foo"))
}

func TestParsePackageRef(t *testing.T) {
	pkg, ok := ParsePackageRef("VendorName.0/Pkg.Name-9:sub/dir/a.css")
	require.True(t, ok)
	require.Equal(t, PackageReference{Vendor: "VendorName.0", Package: "Pkg.Name-9", Path: "sub/dir/a.css"}, pkg)

	for _, ref := range []string{"foo", "foo/bar", "foo/bar/foo:bar", "foo:bar"} {
		_, ok := ParsePackageRef(ref)
		require.False(t, ok, ref)
	}
}

func TestResolve(t *testing.T) {
	r := NewResolver()

	require.Equal(t, "css/app.css", r.Resolve("app.css", "css"))
	require.Equal(t, "http://cdn/lib.js", r.Resolve("http://cdn/lib.js", "js"))
	require.Equal(t, "//cdn/lib.js", r.Resolve("//cdn/lib.js", "js"))
	require.Equal(t, "packages/acme/widgets/css/sub/a.css", r.Resolve("acme/widgets:sub/a.css", "css"))
	require.Equal(t, "packages/acme/widgets/js/a.js", r.Resolve("acme/widgets:a.js", "/js"))
	require.Equal(t, "/static/app.css", r.Resolve("/static/app.css", "css"))
	require.Equal(t, "app.css", r.Resolve("app.css", ""))
}

func TestResolveIsIdempotent(t *testing.T) {
	r := NewResolver()
	refs := []string{"app.css", "sub/theme.css", "acme/widgets:a.css", "https://cdn/x.css", "/abs.css"}
	for _, ref := range refs {
		once := r.Resolve(ref, "css")
		require.Equal(t, once, r.Resolve(once, "css"), ref)
	}
}

func TestResolvePackagesPrefixNeedsPackageShape(t *testing.T) {
	r := NewResolver()

	require.Equal(t, "css/packages/theme.css", r.Resolve("packages/theme.css", "css"))
	require.Equal(t, "css/packages/acme/widgets/js/a.css", r.Resolve("packages/acme/widgets/js/a.css", "css"))
	require.Equal(t, "packages/acme/widgets/css/a.css", r.Resolve("packages/acme/widgets/css/a.css", "css"))
	require.Equal(t, "packages/acme/widgets/js/a.js", r.Resolve("packages/acme/widgets/js/a.js", "/js"))
}

func TestClassifyRegex(t *testing.T) {
	r := NewResolver()
	require.Equal(t, KindCSS, r.Classify("app.css"))
	require.Equal(t, KindCSS, r.Classify("APP.CSS"))
	require.Equal(t, KindJS, r.Classify("http://cdn/lib.js"))
	require.Equal(t, KindUnknown, r.Classify("image.png"))
	require.Equal(t, KindUnknown, r.Classify(".css"))
	require.Equal(t, KindUnknown, r.Classify("http://cdn/lib.js?v=2"))
}

func TestClassifyExtension(t *testing.T) {
	r := NewResolver()
	r.Detection = DetectExtension
	require.Equal(t, KindJS, r.Classify("http://cdn/lib.js?v=2"))
	require.Equal(t, KindCSS, r.Classify("theme.CSS#x"))
	require.Equal(t, KindUnknown, r.Classify("README"))
}

func TestCompilePattern(t *testing.T) {
	re, err := CompilePattern(`/.\.css$/i`)
	require.NoError(t, err)
	require.True(t, re.MatchString("A.CSS"))

	re, err = CompilePattern(`{^x/y$}`)
	require.NoError(t, err)
	require.True(t, re.MatchString("x/y"))

	re, err = CompilePattern(`(?i).\.less$`)
	require.NoError(t, err)
	require.True(t, re.MatchString("a.LESS"))

	re, err = CompilePattern(`/css/.*\.css$`)
	require.NoError(t, err)
	require.True(t, re.MatchString("/css/a.css"))

	_, err = CompilePattern(`/a/x`)
	require.Error(t, err)

	_, err = CompilePattern(`(`)
	require.Error(t, err)
}

func TestKindExtension(t *testing.T) {
	require.Equal(t, ".css", KindCSS.Extension())
	require.Equal(t, ".js", KindJS.Extension())
	require.Equal(t, "", KindUnknown.Extension())
}
