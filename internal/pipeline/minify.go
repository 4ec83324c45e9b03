package pipeline

import (
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/js"
)

const (
	mediaCSS = "text/css"
	mediaJS  = "application/javascript"
)

var minifier = newMinifier()

func newMinifier() *minify.M {
	m := minify.New()
	m.AddFunc(mediaCSS, css.Minify)
	m.AddFunc(mediaJS, js.Minify)
	return m
}

// CSSMinifier returns the default stylesheet minifier.
func CSSMinifier() Minifier {
	return MinifierFunc(func(src []byte) ([]byte, error) {
		return minifier.Bytes(mediaCSS, src)
	})
}

// JSMinifier returns the default script minifier.
func JSMinifier() Minifier {
	return MinifierFunc(func(src []byte) ([]byte, error) {
		return minifier.Bytes(mediaJS, src)
	})
}
