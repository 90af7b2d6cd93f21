// Package webembed resolves links into embeddable markup through the
// webembeds.com API.
package webembed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/jonesrussell/north-cloud/embedder/internal/circuitbreaker"
	"github.com/jonesrussell/north-cloud/embedder/internal/httpclient"
	"github.com/jonesrussell/north-cloud/embedder/internal/logger"
	"github.com/jonesrussell/north-cloud/embedder/internal/provider"
	"github.com/jonesrussell/north-cloud/embedder/internal/retry"
	"github.com/jonesrussell/north-cloud/embedder/internal/telemetry"
)

const (
	defaultUserAgent    = "Mozilla/5.0 (compatible; North-Cloud-Embedder/1.0)"
	defaultMaxBodyBytes = 2 << 20
)

// Resolver resolves a link into an Embed.
type Resolver interface {
	Resolve(ctx context.Context, req Request) (*Embed, error)
}

// Options configures a Client. Zero values fall back to sensible defaults.
type Options struct {
	BaseURL   string
	MaxWidth  int
	UserAgent string
	// RateLimit is the steady request rate in requests per second.
	// Zero disables limiting.
	RateLimit    float64
	RateBurst    int
	MaxBodyBytes int64
	Retry        retry.Config
	Breaker      circuitbreaker.Config
	HTTPClient   *http.Client
	Metrics      *telemetry.Metrics
	Logger       logger.Logger
}

// Client talks to the embed API.
type Client struct {
	builder      URLBuilder
	http         *http.Client
	userAgent    string
	maxBodyBytes int64
	limiter      *rate.Limiter
	retry        retry.Config
	breaker      *circuitbreaker.Breaker
	metrics      *telemetry.Metrics
	log          logger.Logger
}

// New creates a Client.
func New(opts Options) *Client {
	c := &Client{
		builder:      URLBuilder{BaseURL: opts.BaseURL, MaxWidth: opts.MaxWidth},
		http:         opts.HTTPClient,
		userAgent:    opts.UserAgent,
		maxBodyBytes: opts.MaxBodyBytes,
		retry:        opts.Retry,
		metrics:      opts.Metrics,
		log:          opts.Logger,
	}

	if c.http == nil {
		c.http = httpclient.New(httpclient.Config{})
	}
	if c.userAgent == "" {
		c.userAgent = defaultUserAgent
	}
	if c.maxBodyBytes <= 0 {
		c.maxBodyBytes = defaultMaxBodyBytes
	}
	if c.log == nil {
		c.log = logger.NewNop()
	}

	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	c.retry.IsRetryable = IsRetryable
	c.retry.OnRetry = func(attempt int, delay time.Duration, err error) {
		c.log.Debug("Retrying embed lookup",
			logger.Int("attempt", attempt),
			logger.Duration("delay", delay),
			logger.Error(err),
		)
	}

	breakerCfg := opts.Breaker
	breakerCfg.IsFailure = isBreakerFailure
	userHook := opts.Breaker.OnStateChange
	breakerCfg.OnStateChange = func(from, to circuitbreaker.State) {
		c.metrics.SetBreakerState(int(to))
		c.log.Warn("Embed API circuit breaker changed state",
			logger.String("from", from.String()),
			logger.String("to", to.String()),
		)
		if userHook != nil {
			userHook(from, to)
		}
	}
	c.breaker = circuitbreaker.New(breakerCfg)

	return c
}

// BuildURL returns the API URL Resolve would request for req.
func (c *Client) BuildURL(req Request) (string, error) {
	return c.builder.BuildURL(req)
}

// BreakerState reports the state of the upstream circuit breaker.
func (c *Client) BreakerState() circuitbreaker.State {
	return c.breaker.State()
}

// Resolve fetches the embed for req.
func (c *Client) Resolve(ctx context.Context, req Request) (*Embed, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "webembed.Resolve",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("embed.url", req.URL)),
	)
	defer span.End()

	start := time.Now()
	label := "other"

	var embed *Embed
	apiURL, err := c.builder.BuildURL(req)
	if err == nil {
		label = provider.Label(strings.TrimSpace(req.URL))
		embed, err = c.call(ctx, apiURL)
	}

	span.SetAttributes(attribute.String("embed.provider", label))
	c.metrics.ObserveResolve(label, Outcome(err), time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.String("embed.provider_name", embed.ProviderName))
	span.SetStatus(codes.Ok, "")
	return embed, nil
}

// call runs one lookup through the breaker, retry loop and rate limiter.
func (c *Client) call(ctx context.Context, apiURL string) (*Embed, error) {
	var embed *Embed
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return retry.Do(ctx, c.retry, func(ctx context.Context) error {
			if c.limiter != nil {
				if waitErr := c.limiter.Wait(ctx); waitErr != nil {
					return fmt.Errorf("rate limiter wait: %w", waitErr)
				}
			}

			e, fetchErr := c.fetch(ctx, apiURL)
			if fetchErr != nil {
				return fetchErr
			}
			embed = e
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("resolve embed: %w", err)
	}

	return embed, nil
}

func (c *Client) fetch(ctx context.Context, apiURL string) (*Embed, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request embed api: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, newStatusError(resp)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read embed response: %w", err)
	}
	if int64(len(body)) > c.maxBodyBytes {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", ErrMalformedPayload, c.maxBodyBytes)
	}

	return decodeEmbed(body)
}

func decodeEmbed(body []byte) (*Embed, error) {
	var payload apiResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	if msg, ok := payload.errorMessage(); ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderError, msg)
	}

	out := payload.Data.Output
	if out == nil {
		return nil, fmt.Errorf("%w: missing output", ErrMalformedPayload)
	}
	if out.HTML == "" {
		return nil, fmt.Errorf("%w: empty html", ErrMalformedPayload)
	}

	return out, nil
}

// isBreakerFailure counts only errors that say the API itself is unhealthy.
// A bad link or a provider refusing one URL should not open the circuit.
func isBreakerFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrInvalidURL) || errors.Is(err, ErrProviderError) || errors.Is(err, ErrMalformedPayload) {
		return false
	}
	// The caller gave up; that says nothing about the API.
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}
