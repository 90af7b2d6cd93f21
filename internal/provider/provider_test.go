package provider_test

import (
	"net/url"
	"sync"
	"testing"

	"github.com/jonesrussell/north-cloud/embedder/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSupported(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		href string
		want bool
	}{
		{"youtube", "https://youtube.com/watch?v=abc", true},
		{"youtube www", "https://www.youtube.com/watch?v=abc", true},
		{"youtu.be short link", "https://youtu.be/abc", true},
		{"spotify player subdomain", "https://open.spotify.com/track/1", true},
		{"gist is github", "https://gist.github.com/user/123", true},
		{"host with port", "https://stackblitz.com:443/edit/x", true},
		{"domain inside a longer host", "https://www.youtube.com.cdn.example/x", true},
		{"domain in path", "https://medium.com/p/github.com-tips", true},
		{"domain in query", "https://example.com/?u=https://vimeo.com/1", true},
		{"unsupported host", "https://example.com/video", false},
		{"matching is case sensitive", "https://WWW.VIMEO.COM/123", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, provider.IsSupported(tt.href))
		})
	}
}

func TestQueryParams(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		href     string
		siteHost string
		want     url.Values
	}{
		{
			name: "plain supported provider",
			href: "https://codepen.io/pen/abc",
			want: url.Values{},
		},
		{
			name:     "twitch gets the site host",
			href:     "https://www.twitch.tv/somechannel",
			siteHost: "blog.example.com",
			want:     url.Values{provider.ParamCustomHost: {"blog.example.com"}},
		},
		{
			name: "spotify player size",
			href: "https://open.spotify.com/episode/1",
			want: url.Values{provider.ParamWidth: {"300"}, provider.ParamHeight: {"380"}},
		},
		{
			name: "spotify non-player host has no size",
			href: "https://spotify.com/about",
			want: url.Values{},
		},
		{
			name: "vimeo width",
			href: "https://vimeo.com/123",
			want: url.Values{provider.ParamWidth: {"640"}},
		},
		{
			name: "vimeo link in the query of another site",
			href: "https://example.com/?u=https://vimeo.com/1",
			want: url.Values{provider.ParamWidth: {"640"}},
		},
		{
			name: "supported domain embedded in a longer host",
			href: "https://www.youtube.com.cdn.example/x",
			want: url.Values{},
		},
		{
			name: "supported domain in the path",
			href: "https://medium.com/p/github.com-tips",
			want: url.Values{},
		},
		{
			name: "unsupported forces fallback",
			href: "https://example.com/post",
			want: url.Values{provider.ParamForceFallback: {"1"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, provider.QueryParams(tt.href, tt.siteHost))
		})
	}
}

func TestMatchDomain(t *testing.T) {
	t.Parallel()

	domain, ok := provider.MatchDomain("https://gist.github.com/u/1")
	require.True(t, ok)
	assert.Equal(t, "github.com", domain)

	// Both youtube.com and vimeo.com occur; list order decides.
	domain, ok = provider.MatchDomain("https://vimeo.com/watch?from=youtube.com")
	require.True(t, ok)
	assert.Equal(t, "youtube.com", domain)

	_, ok = provider.MatchDomain("https://example.org")
	assert.False(t, ok)
}

func TestMatchDomain_Concurrent(t *testing.T) {
	t.Parallel()

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				assert.True(t, provider.IsSupported("https://youtu.be/abc"))
				assert.Equal(t, "codepen.io", provider.Label("https://codepen.io/pen/x"))
			}
		}()
	}
	wg.Wait()
}

func TestLabel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "youtube.com", provider.Label("https://m.youtube.com/x"))
	assert.Equal(t, "other", provider.Label("https://example.org"))
}

func TestDomains_ReturnsCopy(t *testing.T) {
	t.Parallel()

	domains := provider.Domains()
	require.Len(t, domains, len(provider.SupportedDomains))

	domains[0] = "mutated.example"
	assert.NotEqual(t, "mutated.example", provider.SupportedDomains[0])
}

func TestEncodeURIComponent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"https://youtu.be/abc?t=1", "https%3A%2F%2Fyoutu.be%2Fabc%3Ft%3D1"},
		{"a b", "a%20b"},
		{"it's (fine)!*", "it's%20(fine)!*"},
		{"-_.~", "-_.~"},
		{"é", "%C3%A9"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, provider.EncodeURIComponent(tt.in), "input %q", tt.in)
	}
}
