package render

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/sync/errgroup"

	"github.com/jonesrussell/north-cloud/embedder/internal/logger"
	"github.com/jonesrussell/north-cloud/embedder/internal/telemetry"
	"github.com/jonesrussell/north-cloud/embedder/internal/webembed"
)

const (
	// DefaultSelector matches the anchors the editor emits for embed cards.
	DefaultSelector    = "a.embed-card"
	defaultConcurrency = 4
)

var (
	// ErrEmptyDocument is returned for blank input.
	ErrEmptyDocument = errors.New("empty document")
	// ErrInvalidSelector is returned when the anchor selector does not compile.
	ErrInvalidSelector = errors.New("invalid selector")
)

// Options configures a Renderer.
type Options struct {
	Selector    string
	SiteHost    string
	Concurrency int
	// IframeResizer inserts the resizer script when a gist or Instagram
	// iframe was added.
	IframeResizer        bool
	IframeResizerBaseURL string
	Metrics              *telemetry.Metrics
	Logger               logger.Logger
}

// RenderOptions overrides Options for a single document.
type RenderOptions struct {
	Selector string
	SiteHost string
}

// Stats summarizes one RenderDocument call.
type Stats struct {
	Found    int          `json:"found"`
	Embedded int          `json:"embedded"`
	Skipped  int          `json:"skipped"`
	ByKind   map[Kind]int `json:"by_kind"`
}

// Result is the rewritten document.
type Result struct {
	HTML  string `json:"html"`
	Stats Stats  `json:"stats"`
}

// New creates a Renderer that resolves anchors through resolver.
func New(resolver webembed.Resolver, opts Options) *Renderer {
	if opts.Selector == "" {
		opts.Selector = DefaultSelector
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	return &Renderer{resolver: resolver, opts: opts, now: time.Now}
}

// WithClock replaces the time source used for gist ids. Intended for tests.
func (r *Renderer) WithClock(now func() time.Time) *Renderer {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
	return r
}

type resolved struct {
	embed *webembed.Embed
	err   error
}

// RenderDocument resolves every matching anchor and rewrites the document.
// Anchors that fail to resolve are left untouched and counted as skipped.
// Fragments come back as fragments; full documents as full documents.
func (r *Renderer) RenderDocument(ctx context.Context, doc string, opts RenderOptions) (*Result, error) {
	if strings.TrimSpace(doc) == "" {
		return nil, ErrEmptyDocument
	}

	selector := opts.Selector
	if selector == "" {
		selector = r.opts.Selector
	}
	siteHost := opts.SiteHost
	if siteHost == "" {
		siteHost = r.opts.SiteHost
	}

	if _, err := cascadia.Compile(selector); err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidSelector, selector, err)
	}

	fullDocument := isFullDocument(doc)
	d, err := parse(doc, fullDocument)
	if err != nil {
		return nil, err
	}

	var anchors []*goquery.Selection
	d.Find(selector).Each(func(_ int, s *goquery.Selection) {
		anchors = append(anchors, s)
	})

	stats := Stats{Found: len(anchors), ByKind: make(map[Kind]int)}

	results, err := r.resolveAll(ctx, anchors, siteHost)
	if err != nil {
		return nil, err
	}

	needsResizer := false
	for i, anchor := range anchors {
		res := results[hrefOf(anchor)]
		if res == nil || res.err != nil {
			stats.Skipped++
			r.opts.Metrics.ObserveAnchor(skippedLabel)
			continue
		}

		kind, applyErr := r.Apply(anchor, res.embed)
		if applyErr != nil {
			r.opts.Logger.Debug("Skipping embed anchor",
				logger.Int("index", i),
				logger.String("href", hrefOf(anchor)),
				logger.Error(applyErr),
			)
			stats.Skipped++
			r.opts.Metrics.ObserveAnchor(skippedLabel)
			continue
		}

		stats.Embedded++
		stats.ByKind[kind]++
		r.opts.Metrics.ObserveAnchor(string(kind))
		if kind == KindGist || kind == KindInstagram {
			needsResizer = true
		}
	}

	if needsResizer && r.opts.IframeResizer {
		EnsureIframeResizer(d, r.opts.IframeResizerBaseURL)
	}

	out, err := serialize(d, fullDocument)
	if err != nil {
		return nil, err
	}

	return &Result{HTML: out, Stats: stats}, nil
}

// isFullDocument reports whether doc opens with a doctype or an html, head or
// body start tag. Leading whitespace and comments are skipped; markup inside
// scripts or attributes is never looked at.
func isFullDocument(doc string) bool {
	z := html.NewTokenizer(strings.NewReader(doc))
	for {
		switch z.Next() {
		case html.CommentToken:
			continue
		case html.TextToken:
			if strings.TrimSpace(string(z.Text())) == "" {
				continue
			}
			return false
		case html.DoctypeToken:
			return true
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Html, atom.Head, atom.Body:
				return true
			}
			return false
		default:
			return false
		}
	}
}

// parse builds a goquery document. Fragments are parsed in a body context
// so leading scripts or styles are not hoisted into a synthesized head.
func parse(doc string, fullDocument bool) (*goquery.Document, error) {
	if fullDocument {
		d, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
		if err != nil {
			return nil, fmt.Errorf("parse document: %w", err)
		}
		return d, nil
	}

	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(doc), body)
	if err != nil {
		return nil, fmt.Errorf("parse fragment: %w", err)
	}
	for _, n := range nodes {
		body.AppendChild(n)
	}

	root := &html.Node{Type: html.DocumentNode}
	root.AppendChild(body)
	return goquery.NewDocumentFromNode(root), nil
}

// resolveAll resolves each distinct href once with bounded concurrency.
func (r *Renderer) resolveAll(ctx context.Context, anchors []*goquery.Selection, siteHost string) (map[string]*resolved, error) {
	results := make(map[string]*resolved, len(anchors))
	for _, a := range anchors {
		href := hrefOf(a)
		if href == "" {
			continue
		}
		if _, seen := results[href]; !seen {
			results[href] = &resolved{}
		}
	}

	var g errgroup.Group
	g.SetLimit(r.opts.Concurrency)

	for href, res := range results {
		g.Go(func() error {
			res.embed, res.err = r.resolver.Resolve(ctx, webembed.Request{URL: href, SiteHost: siteHost})
			if res.err != nil {
				r.opts.Logger.Warn("Failed to resolve embed",
					logger.String("href", href),
					logger.Error(res.err),
				)
			}
			return nil
		})
	}

	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("render cancelled: %w", err)
	}
	return results, nil
}

func hrefOf(s *goquery.Selection) string {
	href, _ := s.Attr("href")
	return strings.TrimSpace(href)
}

func serialize(d *goquery.Document, fullDocument bool) (string, error) {
	if fullDocument {
		out, err := d.Html()
		if err != nil {
			return "", fmt.Errorf("render document: %w", err)
		}
		return out, nil
	}

	out, err := d.Find("body").Html()
	if err != nil {
		return "", fmt.Errorf("render fragment: %w", err)
	}
	return out, nil
}
