package httpclient_test

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/embedder/internal/httpclient"
)

func TestNewTransport_Defaults(t *testing.T) {
	t.Parallel()

	transport := httpclient.NewTransport(httpclient.Config{})
	assert.Equal(t, httpclient.DefaultMaxIdleConnsPerHost, transport.MaxIdleConnsPerHost)
	assert.Equal(t, httpclient.DefaultResponseHeaderTimeout, transport.ResponseHeaderTimeout)
}

func TestNewTransport_Overrides(t *testing.T) {
	t.Parallel()

	transport := httpclient.NewTransport(httpclient.Config{
		MaxIdleConnsPerHost:   32,
		ResponseHeaderTimeout: time.Second,
	})
	assert.Equal(t, 32, transport.MaxIdleConnsPerHost)
	assert.Equal(t, time.Second, transport.ResponseHeaderTimeout)
}

func TestNew_Timeout(t *testing.T) {
	t.Parallel()

	assert.Equal(t, httpclient.DefaultTimeout, httpclient.New(httpclient.Config{}).Timeout)
	assert.Equal(t, 2*time.Second, httpclient.New(httpclient.Config{Timeout: 2 * time.Second}).Timeout)
}

type countingTransport struct {
	calls atomic.Int32
}

func (c *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c.calls.Add(1)
	return http.DefaultTransport.RoundTrip(req)
}

func TestNew_CustomTransportIsUsed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	rt := &countingTransport{}
	c := httpclient.New(httpclient.Config{Transport: rt})

	resp, err := c.Get(srv.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, int32(1), rt.calls.Load())
}
