package render

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const resizerPath = "/js/iframe-resizer.js"

// ResizerSrc returns the iframe resizer script URL under baseURL.
func ResizerSrc(baseURL string) string {
	return strings.TrimSuffix(baseURL, "/") + resizerPath
}

// EnsureIframeResizer inserts the iframe resizer script before the first
// script of the document. It does nothing when the document has no script or
// already loads the resizer, and reports whether it inserted one.
func EnsureIframeResizer(d *goquery.Document, baseURL string) bool {
	src := ResizerSrc(baseURL)
	scripts := d.Find("script")
	if scripts.Length() == 0 {
		return false
	}

	loaded := scripts.FilterFunction(func(_ int, s *goquery.Selection) bool {
		v, _ := s.Attr("src")
		return v == src
	})
	if loaded.Length() > 0 {
		return false
	}

	scripts.First().BeforeNodes(&html.Node{
		Type:     html.ElementNode,
		Data:     "script",
		DataAtom: atom.Script,
		Attr: []html.Attribute{
			{Key: "src", Val: src},
			{Key: "async", Val: ""},
			{Key: "defer", Val: ""},
		},
	})
	return true
}
