// Package httpclient builds the outbound HTTP client used for embed API calls.
package httpclient

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultTimeout               = 30 * time.Second
	DefaultMaxIdleConns          = 100
	DefaultMaxIdleConnsPerHost   = 10
	DefaultIdleConnTimeout       = 90 * time.Second
	DefaultResponseHeaderTimeout = 15 * time.Second
	DefaultTLSHandshakeTimeout   = 10 * time.Second
)

// Config configures an HTTP client. Zero values fall back to the defaults above.
type Config struct {
	// Timeout bounds the whole request including reading the body.
	Timeout               time.Duration
	MaxIdleConnsPerHost   int
	ResponseHeaderTimeout time.Duration
	// Transport replaces the default transport entirely, e.g. in tests.
	Transport http.RoundTripper
}

// New creates an *http.Client with pooled keep-alive connections.
// Every embed lookup targets the same API host, so the per-host idle pool is
// what keeps render fan-out from re-dialing. Requests carry client spans and
// trace context headers.
func New(cfg Config) *http.Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	var rt http.RoundTripper = NewTransport(cfg)
	if cfg.Transport != nil {
		rt = cfg.Transport
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(rt),
	}
}

// NewTransport returns the pooled transport New wraps.
func NewTransport(cfg Config) *http.Transport {
	perHost := cfg.MaxIdleConnsPerHost
	if perHost == 0 {
		perHost = DefaultMaxIdleConnsPerHost
	}

	headerTimeout := cfg.ResponseHeaderTimeout
	if headerTimeout == 0 {
		headerTimeout = DefaultResponseHeaderTimeout
	}

	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          DefaultMaxIdleConns,
		MaxIdleConnsPerHost:   perHost,
		IdleConnTimeout:       DefaultIdleConnTimeout,
		ResponseHeaderTimeout: headerTimeout,
		TLSHandshakeTimeout:   DefaultTLSHandshakeTimeout,
		ForceAttemptHTTP2:     true,
	}
}
