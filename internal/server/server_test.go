package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/embedder/internal/logger"
	"github.com/jonesrussell/north-cloud/embedder/internal/server"
)

func TestBuilder_HealthRoutes(t *testing.T) {
	t.Parallel()

	srv := server.NewBuilder("embedder", 0).
		WithLogger(logger.NewNop()).
		WithVersion("2.0.0").
		WithHealthCheck("redis", server.RedisHealthChecker(func(context.Context) error { return nil })).
		Build()

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	require.Equal(t, http.StatusOK, w.Code)

	var body server.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, server.HealthStatusHealthy, body.Status)
	assert.Equal(t, "embedder", body.Service)
	assert.Equal(t, "2.0.0", body.Version)
	assert.Equal(t, server.HealthStatusHealthy, body.Checks["redis"].Status)

	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodHead, "/health", http.NoBody))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestHealth_StatusAggregation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		checks     map[string]server.HealthChecker
		wantStatus server.HealthStatus
		wantCode   int
	}{
		{
			name: "redis down is degraded",
			checks: map[string]server.HealthChecker{
				"redis": server.RedisHealthChecker(func(context.Context) error { return errors.New("refused") }),
			},
			wantStatus: server.HealthStatusDegraded,
			wantCode:   http.StatusOK,
		},
		{
			name: "open circuit is degraded",
			checks: map[string]server.HealthChecker{
				"embed_api": server.BreakerHealthChecker(func() string { return "open" }),
			},
			wantStatus: server.HealthStatusDegraded,
			wantCode:   http.StatusOK,
		},
		{
			name: "unhealthy wins",
			checks: map[string]server.HealthChecker{
				"embed_api": server.BreakerHealthChecker(func() string { return "open" }),
				"fatal": func(context.Context) server.CheckResult {
					return server.CheckResult{Status: server.HealthStatusUnhealthy}
				},
			},
			wantStatus: server.HealthStatusUnhealthy,
			wantCode:   http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			router := gin.New()
			server.RegisterHealthRoutes(router, server.HealthOptions{ServiceName: "embedder", Checks: tt.checks})

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
			require.Equal(t, tt.wantCode, w.Code)

			var body server.HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantStatus, body.Status)
		})
	}
}

func signedToken(t *testing.T, secret string, expires time.Time) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, server.Claims{
		Sub:              "user-1",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(expires)},
	})
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestProtectedGroup(t *testing.T) {
	t.Parallel()

	const secret = "test-secret"

	router := gin.New()
	v1 := server.ProtectedGroup(router, "/api/v1", secret)
	v1.GET("/whoami", func(c *gin.Context) {
		claims, ok := server.GetClaims(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, claims.Sub)
	})

	tests := []struct {
		name     string
		header   string
		wantCode int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"bad signature", "Bearer " + signedToken(t, "other", time.Now().Add(time.Hour)), http.StatusUnauthorized},
		{"expired", "Bearer " + signedToken(t, secret, time.Now().Add(-time.Hour)), http.StatusUnauthorized},
		{"valid", "Bearer " + signedToken(t, secret, time.Now().Add(time.Hour)), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/whoami", http.NoBody)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, "user-1", w.Body.String())
			}
		})
	}
}

func TestProtectedGroup_NoSecretIsOpen(t *testing.T) {
	t.Parallel()

	router := gin.New()
	server.ProtectedGroup(router, "/api/v1", "").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ping", http.NoBody))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_RunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	srv := server.NewBuilder("embedder", 0).
		WithHost("127.0.0.1").
		WithLogger(logger.NewNop()).
		Build()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after context cancellation")
	}
}

func TestServer_ServeOnListener(t *testing.T) {
	t.Parallel()

	srv := server.NewBuilder("embedder", 0).
		WithLogger(logger.NewNop()).
		Build()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, srv.Shutdown(context.Background()))
	require.NoError(t, <-done)
}
