package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(mw...)
	router.GET("/documents", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router
}

func get(router *gin.Engine, origin, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/documents", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if remote != "" {
		req.RemoteAddr = remote
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		origins     []string
		method      string
		origin      string
		wantStatus  int
		wantAllow   string
		wantCreds   string
		wantExposed bool
	}{
		{
			name:        "wildcard answers any origin",
			method:      http.MethodGet,
			origin:      "http://localhost:8081",
			wantStatus:  http.StatusOK,
			wantAllow:   "*",
			wantExposed: true,
		},
		{
			name:       "wildcard preflight",
			method:     http.MethodOptions,
			origin:     "http://localhost:8081",
			wantStatus: http.StatusNoContent,
			wantAllow:  "*",
		},
		{
			name:       "no origin header",
			method:     http.MethodGet,
			wantStatus: http.StatusOK,
		},
		{
			name:        "configured origin allowed with credentials",
			origins:     []string{"https://deck.example.com"},
			method:      http.MethodGet,
			origin:      "https://deck.example.com",
			wantStatus:  http.StatusOK,
			wantAllow:   "https://deck.example.com",
			wantCreds:   "true",
			wantExposed: true,
		},
		{
			name:       "unlisted origin rejected",
			origins:    []string{"https://deck.example.com"},
			method:     http.MethodGet,
			origin:     "https://evil.example.com",
			wantStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupTestRouter(CORS(DefaultCORSConfig().WithOrigins(tt.origins)))

			req := httptest.NewRequest(tt.method, "/documents", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.method == http.MethodOptions {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantAllow, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantCreds, w.Header().Get("Access-Control-Allow-Credentials"))
			if tt.wantExposed {
				assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "X-Trace-Id")
			}
		})
	}
}

func TestCORSWithOrigins(t *testing.T) {
	tests := []struct {
		name      string
		origins   []string
		want      []string
		wantCreds bool
	}{
		{name: "nil keeps wildcard", want: []string{"*"}},
		{name: "star keeps wildcard", origins: []string{"*"}, want: []string{"*"}},
		{name: "explicit list", origins: []string{"https://a.example", "https://b.example"}, want: []string{"https://a.example", "https://b.example"}, wantCreds: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultCORSConfig().WithOrigins(tt.origins)
			assert.Equal(t, tt.want, cfg.AllowOrigins)
			assert.Equal(t, tt.wantCreds, cfg.AllowCredentials)
		})
	}

	base := DefaultCORSConfig()
	_ = base.WithOrigins([]string{"https://a.example"})
	assert.Equal(t, []string{"*"}, base.AllowOrigins, "WithOrigins must not modify the receiver")
}

func TestDefaultCORSConfig(t *testing.T) {
	cfg := DefaultCORSConfig()

	assert.Equal(t, []string{"*"}, cfg.AllowOrigins)
	assert.ElementsMatch(t, []string{"GET", "POST", "OPTIONS"}, cfg.AllowMethods)
	assert.Contains(t, cfg.AllowHeaders, "Authorization")
	assert.False(t, cfg.AllowCredentials)
	assert.Equal(t, 12*time.Hour, cfg.MaxAge)
}

func TestRateLimit(t *testing.T) {
	router := setupTestRouter(RateLimit(RateLimitConfig{RequestsPerSecond: 1, Burst: 2}))

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, get(router, "", "10.0.0.1:1234").Code, "request %d", i+1)
	}

	w := get(router, "", "10.0.0.1:1234")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, w.Body.String())

	assert.Equal(t, http.StatusOK, get(router, "", "10.0.0.2:1234").Code, "other clients keep their own bucket")
}

func TestGlobalRateLimit(t *testing.T) {
	router := setupTestRouter(GlobalRateLimit(RateLimitConfig{RequestsPerSecond: 1, Burst: 2}))

	for i := 0; i < 2; i++ {
		w := get(router, "", fmt.Sprintf("10.0.1.%d:1234", i+1))
		assert.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
	}
	assert.Equal(t, http.StatusTooManyRequests, get(router, "", "10.0.1.9:1234").Code)
}

func TestClientLimitersRefillAndSweep(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newClientLimiters(RateLimitConfig{RequestsPerSecond: 1, Burst: 1}, start)

	require.True(t, l.allow("a", start))
	assert.False(t, l.allow("a", start))
	assert.True(t, l.allow("a", start.Add(time.Second)), "bucket refills after one interval")

	require.True(t, l.allow("b", start.Add(time.Second)))
	assert.Equal(t, 2, l.size())

	later := start.Add(clientIdleTTL + 2*time.Second)
	require.True(t, l.allow("c", later))
	assert.Equal(t, 1, l.size(), "idle clients are dropped on the next sweep")
}

func TestDefaultRateLimitConfig(t *testing.T) {
	cfg := DefaultRateLimitConfig()

	assert.Equal(t, 100, cfg.RequestsPerSecond)
	assert.Equal(t, 200, cfg.Burst)
}

func BenchmarkRateLimit(b *testing.B) {
	router := setupTestRouter(RateLimit(RateLimitConfig{RequestsPerSecond: 1 << 20, Burst: 1 << 20}))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		get(router, "", "10.0.0.1:1234")
	}
}
