// Package provider knows which link hosts the embed API renders natively and
// which extra query parameters each of them needs.
package provider

import (
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/cloudflare/ahocorasick"
)

// SupportedDomains lists domains with first-class embed support. Links that
// mention none of them are still sent to the embed API, but with
// forceFallback set.
var SupportedDomains = []string{
	"codepen.io",
	"twitter.com",
	"youtube.com",
	"youtu.be",
	"glitch.com",
	"github.com",
	"soundcloud.com",
	"anchor.fm",
	"spotify.com",
	"giphy.com",
	"gph.is",
	"codesandbox.io",
	"canva.com",
	"twitch.tv",
	"expo.io",
	"repl.it",
	"runkit.com",
	"vimeo.com",
	"loom.com",
	"hashnode.com",
	"facebook.com",
	"fb.watch",
	"instagram.com",
	"instagr.am",
	"snappify.io",
	"snappify.com",
	"stackblitz.com",
}

// Query parameter names understood by the embed API.
const (
	ParamCustomHost    = "customHost"
	ParamWidth         = "width"
	ParamHeight        = "height"
	ParamForceFallback = "forceFallback"
)

const (
	spotifyPlayerHost = "open.spotify.com"
	spotifyWidth      = 300
	spotifyHeight     = 380
	vimeoWidth        = 640
)

var (
	domainMatcher = ahocorasick.NewStringMatcher(SupportedDomains)

	twitchMatcher  = ahocorasick.NewStringMatcher([]string{"twitch.tv"})
	spotifyMatcher = ahocorasick.NewStringMatcher([]string{spotifyPlayerHost})
	vimeoMatcher   = ahocorasick.NewStringMatcher([]string{"vimeo.com"})
)

// Domains returns a copy of the supported domain list.
func Domains() []string {
	return slices.Clone(SupportedDomains)
}

// MatchDomain returns the first supported domain, in list order, that occurs
// anywhere in href. Matching is on the raw link text, so a domain in the path
// or query (https://example.com/?u=https://vimeo.com/1) counts as a match.
func MatchDomain(href string) (string, bool) {
	hits := domainMatcher.MatchThreadSafe([]byte(href))
	if len(hits) == 0 {
		return "", false
	}
	return SupportedDomains[slices.Min(hits)], true
}

// IsSupported reports whether href mentions a supported provider.
func IsSupported(href string) bool {
	return contains(domainMatcher, []byte(href))
}

// QueryParams returns the provider-specific parameters for href.
// siteHost is the host of the page the embed will be shown on.
func QueryParams(href, siteHost string) url.Values {
	params := url.Values{}
	raw := []byte(href)

	if contains(twitchMatcher, raw) {
		params.Set(ParamCustomHost, EncodeURIComponent(siteHost))
	}

	if contains(spotifyMatcher, raw) {
		params.Set(ParamWidth, strconv.Itoa(spotifyWidth))
		params.Set(ParamHeight, strconv.Itoa(spotifyHeight))
	}

	if contains(vimeoMatcher, raw) {
		params.Set(ParamWidth, strconv.Itoa(vimeoWidth))
	}

	if !IsSupported(href) {
		params.Set(ParamForceFallback, "1")
	}

	return params
}

// Label returns a low-cardinality provider name for metrics and logs.
func Label(href string) string {
	if domain, ok := MatchDomain(href); ok {
		return domain
	}
	return "other"
}

// contains is safe for concurrent use, unlike Matcher.Contains.
func contains(m *ahocorasick.Matcher, in []byte) bool {
	return len(m.MatchThreadSafe(in)) > 0
}

// componentEscaper undoes the differences between url.QueryEscape and the
// browser's encodeURIComponent, which leaves !'()* untouched and uses %20.
var componentEscaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// EncodeURIComponent encodes s the way browsers encode a URI component.
// The embed API decodes its url and customHost parameters with this scheme.
func EncodeURIComponent(s string) string {
	return componentEscaper.Replace(url.QueryEscape(s))
}
