// Package render rewrites embed anchors in HTML documents into the markup
// returned by the embed API.
package render

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/jonesrussell/north-cloud/embedder/internal/webembed"
)

// Kind names the way an embed was spliced into the page.
type Kind string

const (
	KindGist      Kind = "gist"
	KindInstagram Kind = "instagram"
	KindHTML      Kind = "html"

	// skippedLabel counts anchors left untouched in the anchors metric.
	skippedLabel = "skipped"
)

const (
	providerInstagram = "Instagram"
	providerFacebook  = "Facebook"
	gistHost          = "gist.github.com"
	// instagramPadding keeps the caption border from being clipped.
	instagramPadding = 5

	instagramOnload = "if (this.contentWindow && this.contentWindow.document.body.scrollHeight > 0) " +
		"{ this.height = this.contentWindow.document.body.scrollHeight; }"
	facebookInit = "<script>if (window.FB) { FB.init({version: 'v2.7', xfbml: true}); }</script>"
)

var (
	// ErrNoParent means the anchor has no container that can be rewritten.
	ErrNoParent = errors.New("anchor has no usable parent")
	// ErrNilEmbed means Apply was called without an embed.
	ErrNilEmbed = errors.New("nil embed")
)

// Renderer splices resolved embeds into documents.
type Renderer struct {
	resolver webembed.Resolver
	opts     Options

	mu       sync.Mutex
	now      func() time.Time
	lastGist int64
}

// Apply replaces the content of anchor's parent with the embed and reports
// which branch was taken.
func (r *Renderer) Apply(anchor *goquery.Selection, e *webembed.Embed) (Kind, error) {
	if e == nil {
		return "", ErrNilEmbed
	}

	parent := anchor.Parent()
	if parent.Length() == 0 {
		return "", ErrNoParent
	}
	switch goquery.NodeName(parent) {
	case "body", "html", "head":
		return "", ErrNoParent
	}

	switch {
	case strings.Contains(e.HTML, gistHost):
		r.applyGist(parent, e)
		return KindGist, nil
	case e.ProviderName == providerInstagram:
		applyInstagram(parent, e)
		return KindInstagram, nil
	default:
		parent.SetHtml(e.HTML)
		if e.ProviderName == providerFacebook {
			parent.AppendHtml(facebookInit)
		}
		return KindHTML, nil
	}
}

func (r *Renderer) applyGist(parent *goquery.Selection, e *webembed.Embed) {
	id := r.nextGistID()
	srcdoc := fmt.Sprintf(
		`<html><body onload="parent.adjustIframeSize('%s', document.body.scrollHeight)">%s</body></html>`,
		id, e.HTML,
	)

	replaceChildren(parent, iframe(
		html.Attribute{Key: "width", Val: "100%"},
		html.Attribute{Key: "frameborder", Val: "0"},
		html.Attribute{Key: "scrolling", Val: "no"},
		html.Attribute{Key: "id", Val: id},
		html.Attribute{Key: "srcdoc", Val: srcdoc},
	))
}

func applyInstagram(parent *goquery.Selection, e *webembed.Embed) {
	attrs := []html.Attribute{
		{Key: "srcdoc", Val: e.HTML},
	}
	if w, ok := e.Width.Int(); ok && w > 0 {
		attrs = append(attrs, html.Attribute{Key: "width", Val: strconv.Itoa(w)})
	} else if e.Width != "" {
		attrs = append(attrs, html.Attribute{Key: "width", Val: e.Width.String()})
	}
	if h, ok := e.ThumbnailHeight.Int(); ok && h > 0 {
		attrs = append(attrs, html.Attribute{Key: "height", Val: strconv.Itoa(h + instagramPadding)})
	}
	attrs = append(attrs,
		html.Attribute{Key: "style", Val: "overflow: hidden"},
		html.Attribute{Key: "scrolling", Val: "no"},
		html.Attribute{Key: "onload", Val: instagramOnload},
	)

	replaceChildren(parent, iframe(attrs...))
}

// nextGistID returns gist-<unix millis>, bumped forward when two gists are
// rendered within the same millisecond.
func (r *Renderer) nextGistID() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ms := r.now().UnixMilli()
	if ms <= r.lastGist {
		ms = r.lastGist + 1
	}
	r.lastGist = ms
	return "gist-" + strconv.FormatInt(ms, 10)
}

func iframe(attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     "iframe",
		DataAtom: atom.Iframe,
		Attr:     attrs,
	}
}

func replaceChildren(parent *goquery.Selection, n *html.Node) {
	parent.Empty()
	parent.AppendNodes(n)
}
