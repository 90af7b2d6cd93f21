package webembed

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/jonesrussell/north-cloud/embedder/internal/provider"
)

const (
	// DefaultBaseURL is the public embed API.
	DefaultBaseURL = "https://webembeds.com"
	// DefaultMaxWidth is sent as maxwidth when none is configured.
	DefaultMaxWidth = 800

	apiPath = "/api/embed"
)

// URLBuilder turns a Request into the embed API URL for it.
type URLBuilder struct {
	BaseURL  string
	MaxWidth int
}

// Build returns the API URL for req together with the parsed link.
func (b URLBuilder) Build(req Request) (string, *url.URL, error) {
	link, err := ParseLink(req.URL)
	if err != nil {
		return "", nil, err
	}

	base := b.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	endpoint, err := url.Parse(strings.TrimSuffix(base, "/") + apiPath)
	if err != nil {
		return "", nil, fmt.Errorf("parse embed api base url: %w", err)
	}

	maxWidth := b.MaxWidth
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}

	href := strings.TrimSpace(req.URL)
	q := provider.QueryParams(href, req.SiteHost)
	q.Set("maxwidth", strconv.Itoa(maxWidth))
	// The API decodes url twice: once as a query value, once as a component.
	q.Set("url", provider.EncodeURIComponent(href))
	endpoint.RawQuery = q.Encode()

	return endpoint.String(), link, nil
}

// BuildURL returns only the API URL for req.
func (b URLBuilder) BuildURL(req Request) (string, error) {
	apiURL, _, err := b.Build(req)
	return apiURL, err
}

// BuildURL builds the API URL for req against the public embed API.
func BuildURL(req Request) (string, error) {
	return URLBuilder{}.BuildURL(req)
}

// ParseLink validates href as an absolute http(s) URL.
func ParseLink(href string) (*url.URL, error) {
	href = strings.TrimSpace(href)
	if href == "" {
		return nil, fmt.Errorf("%w: empty href", ErrInvalidURL)
	}

	u, err := url.Parse(href)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host in %q", ErrInvalidURL, href)
	}

	return u, nil
}
