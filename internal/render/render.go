// Package render builds the HTML tags that reference CSS and JavaScript assets.
package render

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	TypeCSS = "text/css"
	TypeJS  = "text/javascript"
)

// Attr is an HTML attribute; an empty Val renders as `key=""`.
type Attr = html.Attribute

// Attrs is a convenience constructor from alternating key/value pairs.
func Attrs(kv ...string) []Attr {
	out := make([]Attr, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, Attr{Key: kv[i], Val: kv[i+1]})
	}
	return out
}

// Stylesheets renders one `<link>` tag per href, each followed by a newline.
// A caller supplied href is dropped; type and rel are added when absent.
func Stylesheets(hrefs []string, attrs []Attr) (string, error) {
	extra := withDefaults(without(attrs, "href"), Attr{Key: "type", Val: TypeCSS}, Attr{Key: "rel", Val: "stylesheet"})
	return tags(atom.Link, "href", hrefs, extra)
}

// Scripts renders one `<script>` tag per src, each followed by a newline.
// A caller supplied src is dropped; type is added when absent.
func Scripts(srcs []string, attrs []Attr) (string, error) {
	extra := withDefaults(without(attrs, "src"), Attr{Key: "type", Val: TypeJS})
	return tags(atom.Script, "src", srcs, extra)
}

func tags(a atom.Atom, urlKey string, urls []string, extra []Attr) (string, error) {
	var b strings.Builder
	for _, u := range urls {
		n := &html.Node{
			Type:     html.ElementNode,
			DataAtom: a,
			Data:     a.String(),
			Attr:     append([]Attr{{Key: urlKey, Val: u}}, extra...),
		}
		if err := html.Render(&b, n); err != nil {
			return "", err
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}

func without(attrs []Attr, key string) []Attr {
	out := make([]Attr, 0, len(attrs)+2)
	for _, a := range attrs {
		if strings.EqualFold(a.Key, key) {
			continue
		}
		out = append(out, a)
	}
	return out
}

func withDefaults(attrs []Attr, defaults ...Attr) []Attr {
	for _, d := range defaults {
		if !has(attrs, d.Key) {
			attrs = append(attrs, d)
		}
	}
	return attrs
}

func has(attrs []Attr, key string) bool {
	for _, a := range attrs {
		if strings.EqualFold(a.Key, key) {
			return true
		}
	}
	return false
}
