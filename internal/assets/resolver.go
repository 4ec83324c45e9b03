package assets

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// Kind is the asset type a reference was classified as.
type Kind string

const (
	KindUnknown Kind = ""
	KindCSS     Kind = "css"
	KindJS      Kind = "js"
)

// Extension returns the pipeline file extension for the kind.
func (k Kind) Extension() string {
	switch k {
	case KindCSS:
		return ".css"
	case KindJS:
		return ".js"
	default:
		return ""
	}
}

// Detection selects how references are classified.
type Detection string

const (
	// DetectRegex matches the configured CSS/JS patterns against the whole reference.
	DetectRegex Detection = "regex"
	// DetectExtension uses the lowercased extension of the reference path.
	DetectExtension Detection = "extension"
)

// Default detection patterns.
const (
	DefaultAssetPattern      = `(?i).\.(css|js)$`
	DefaultCSSPattern        = `(?i).\.css$`
	DefaultJSPattern         = `(?i).\.js$`
	DefaultNoMinifyPattern   = `(?i).[-.]min\.(css|js)$`
	DefaultPackagesDirectory = "packages"
)

var packagePattern = regexp.MustCompile(`^([A-Za-z0-9_.-]+)/([A-Za-z0-9_.-]+):(.*)$`)

// PackageReference is the decomposition of a `vendor/package:path` reference.
type PackageReference struct {
	Vendor  string
	Package string
	Path    string
}

// Resolver classifies references and rewrites local ones into canonical links.
// The zero value is not usable; construct with NewResolver.
type Resolver struct {
	PackagesDir  string
	AssetPattern *regexp.Regexp
	CSSPattern   *regexp.Regexp
	JSPattern    *regexp.Regexp
	Detection    Detection
}

// NewResolver returns a Resolver with the default patterns.
func NewResolver() *Resolver {
	return &Resolver{
		PackagesDir:  DefaultPackagesDirectory,
		AssetPattern: regexp.MustCompile(DefaultAssetPattern),
		CSSPattern:   regexp.MustCompile(DefaultCSSPattern),
		JSPattern:    regexp.MustCompile(DefaultJSPattern),
		Detection:    DetectRegex,
	}
}

// Clone returns a shallow copy; compiled patterns are immutable and shared.
func (r *Resolver) Clone() *Resolver {
	c := *r
	return &c
}

// IsRemote reports whether ref is an absolute or protocol-relative URL.
func IsRemote(ref string) bool {
	return strings.HasPrefix(ref, "http://") ||
		strings.HasPrefix(ref, "https://") ||
		strings.HasPrefix(ref, "//")
}

// ParsePackageRef decomposes a package-qualified reference.
func ParsePackageRef(ref string) (PackageReference, bool) {
	m := packagePattern.FindStringSubmatch(ref)
	if m == nil {
		return PackageReference{}, false
	}
	return PackageReference{Vendor: m[1], Package: m[2], Path: m[3]}, true
}

// Resolve turns a local reference into a link rooted at typeDir, or at the
// package's typeDir for package-qualified references. Remote references, root
// absolute paths and links that are already resolved come back unchanged.
func (r *Resolver) Resolve(ref, typeDir string) string {
	if IsRemote(ref) || strings.HasPrefix(ref, "/") {
		return ref
	}
	if pkg, ok := ParsePackageRef(ref); ok {
		return r.PackagesDir + "/" + pkg.Vendor + "/" + pkg.Package + "/" + strings.TrimLeft(typeDir, "/") + "/" + pkg.Path
	}
	if typeDir == "" {
		return ref
	}
	if r.isResolved(ref, typeDir) {
		return ref
	}
	return typeDir + "/" + ref
}

func (r *Resolver) isResolved(ref, typeDir string) bool {
	if strings.HasPrefix(ref, typeDir+"/") {
		return true
	}
	if r.PackagesDir == "" {
		return false
	}
	// Only packagesDir/vendor/package/typeDir/inner counts as a package link.
	rest, ok := strings.CutPrefix(ref, r.PackagesDir+"/")
	if !ok {
		return false
	}
	parts := strings.SplitN(rest, "/", 4)
	return len(parts) == 4 && parts[0] != "" && parts[1] != "" &&
		parts[2] == strings.TrimLeft(typeDir, "/") && parts[3] != ""
}

// Classify returns the asset kind of ref, or KindUnknown.
func (r *Resolver) Classify(ref string) Kind {
	if r.Detection == DetectExtension {
		switch strings.ToLower(path.Ext(refPath(ref))) {
		case ".js":
			return KindJS
		case ".css":
			return KindCSS
		default:
			return KindUnknown
		}
	}
	switch {
	case r.JSPattern != nil && r.JSPattern.MatchString(ref):
		return KindJS
	case r.CSSPattern != nil && r.CSSPattern.MatchString(ref):
		return KindCSS
	default:
		return KindUnknown
	}
}

// refPath strips query strings and fragments so the extension can be read.
func refPath(ref string) string {
	if IsRemote(ref) {
		if u, err := url.Parse(ref); err == nil {
			return u.Path
		}
	}
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		return ref[:i]
	}
	return ref
}

var phpDelimiters = map[byte]byte{'/': '/', '#': '#', '~': '~', '!': '!', '@': '@', '%': '%', '|': '|', '{': '}'}

// CompilePattern compiles a Go regular expression. PHP-style delimited
// patterns such as `/.\.css$/i` are accepted and translated: the delimiters
// are removed and the i, m and s modifiers become inline flags.
func CompilePattern(expr string) (*regexp.Regexp, error) {
	if len(expr) >= 2 {
		if closing, ok := phpDelimiters[expr[0]]; ok {
			if end := strings.LastIndexByte(expr, closing); end > 0 && isModifierList(expr[end+1:]) {
				body, mods := expr[1:end], expr[end+1:]
				flags, err := translateModifiers(mods)
				if err != nil {
					return nil, err
				}
				return regexp.Compile(flags + body)
			}
		}
	}
	return regexp.Compile(expr)
}

func translateModifiers(mods string) (string, error) {
	var flags strings.Builder
	for _, m := range mods {
		switch m {
		case 'i', 'm', 's':
			flags.WriteRune(m)
		case 'u', 'D':
			// already RE2 defaults
		default:
			return "", fmt.Errorf("unsupported pattern modifier %q", m)
		}
	}
	if flags.Len() == 0 {
		return "", nil
	}
	return "(?" + flags.String() + ")", nil
}

func isModifierList(s string) bool {
	for i := 0; i < len(s); i++ {
		if (s[i] < 'a' || s[i] > 'z') && (s[i] < 'A' || s[i] > 'Z') {
			return false
		}
	}
	return true
}
