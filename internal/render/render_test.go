package render

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStylesheetsDefaults(t *testing.T) {
	out, err := Stylesheets([]string{"css/app.css"}, nil)
	require.NoError(t, err)
	require.Equal(t, `<link href="css/app.css" type="text/css" rel="stylesheet"/>`+"\n", out)
}

func TestStylesheetsCallerAttributesWin(t *testing.T) {
	out, err := Stylesheets([]string{"a.css", "b.css"}, Attrs("media", "print", "rel", "alternate stylesheet", "href", "ignored.css"))
	require.NoError(t, err)
	require.Equal(t,
		`<link href="a.css" media="print" rel="alternate stylesheet" type="text/css"/>`+"\n"+
			`<link href="b.css" media="print" rel="alternate stylesheet" type="text/css"/>`+"\n",
		out)
}

func TestScripts(t *testing.T) {
	out, err := Scripts([]string{"js/app.js", "http://cdn/lib.js"}, Attrs("src", "x.js", "defer", ""))
	require.NoError(t, err)
	require.Equal(t,
		`<script src="js/app.js" defer="" type="text/javascript"></script>`+"\n"+
			`<script src="http://cdn/lib.js" defer="" type="text/javascript"></script>`+"\n",
		out)
}

func TestAttributeEscaping(t *testing.T) {
	out, err := Scripts([]string{`a.js?x="1"&y=2`}, Attrs("type", "module"))
	require.NoError(t, err)
	require.Equal(t, `<script src="a.js?x=&#34;1&#34;&amp;y=2" type="module"></script>`+"\n", out)
}

func TestEmptyInput(t *testing.T) {
	out, err := Stylesheets(nil, nil)
	require.NoError(t, err)
	require.Empty(t, out)
}
