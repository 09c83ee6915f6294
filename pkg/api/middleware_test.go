package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/quorum/pkg/analytics"
	"github.com/codeready-toolchain/quorum/pkg/backend"
)

func TestRateLimiter_Allow(t *testing.T) {
	base := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

	t.Run("within budget", func(t *testing.T) {
		r := newRateLimiter(3)
		for i := 0; i < 3; i++ {
			assert.True(t, r.allow("10.0.0.1", base.Add(time.Duration(i)*time.Second)))
		}
		assert.False(t, r.allow("10.0.0.1", base.Add(3*time.Second)))
	})

	t.Run("window slides", func(t *testing.T) {
		r := newRateLimiter(1)
		assert.True(t, r.allow("10.0.0.1", base))
		assert.False(t, r.allow("10.0.0.1", base.Add(30*time.Second)))
		assert.True(t, r.allow("10.0.0.1", base.Add(61*time.Second)))
	})

	t.Run("clients are independent", func(t *testing.T) {
		r := newRateLimiter(1)
		assert.True(t, r.allow("10.0.0.1", base))
		assert.True(t, r.allow("10.0.0.2", base))
	})

	t.Run("zero budget disables limiting", func(t *testing.T) {
		r := newRateLimiter(0)
		for i := 0; i < 100; i++ {
			assert.True(t, r.allow("10.0.0.1", base))
		}
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	handler := rateLimit(newRateLimiter(1))(func(c *echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	e := echo.New()
	call := func() error {
		req := httptest.NewRequest(http.MethodPost, "/ask", nil)
		req.RemoteAddr = "192.0.2.1:51234"
		rec := httptest.NewRecorder()
		return handler(e.NewContext(req, rec))
	}

	require.NoError(t, call())

	err := call()
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, he.Code)
}

func TestSecurityHeaders(t *testing.T) {
	handler := securityHeaders()(func(c *echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(req, rec)))

	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", rec.Header().Get("Referrer-Policy"))
	assert.Equal(t, "camera=(), microphone=(), geolocation=()", rec.Header().Get("Permissions-Policy"))
}

func TestMapServiceError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"conversation not found", analytics.ErrConversationNotFound, http.StatusNotFound, "conversation not found"},
		{"unknown backend", backend.ErrUnknownBackend, http.StatusBadRequest, "unknown backend"},
		{"wrapped sentinel", errors.Join(errors.New("query"), analytics.ErrConversationNotFound), http.StatusNotFound, "conversation not found"},
		{"unexpected", errors.New("connection reset"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			he := mapServiceError(tt.err)
			assert.Equal(t, tt.wantCode, he.Code)
			assert.Contains(t, he.Message, tt.wantMsg)
		})
	}
}

func TestHealthHandler_NoDatabase(t *testing.T) {
	s := &Server{}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, s.healthHandler(e.NewContext(req, rec)))

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, healthStatusDegraded, resp.Status)
	require.Contains(t, resp.Checks, "database")
	assert.Equal(t, "not configured", resp.Checks["database"].Message)
}
