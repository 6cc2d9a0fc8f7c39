package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	limiter "github.com/ulule/limiter/v3"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"
)

func memoryLimiter(t *testing.T, max int64) *limiter.Limiter {
	t.Helper()
	return limiter.New(memorystore.NewStore(), limiter.Rate{Period: time.Minute, Limit: max})
}

func TestMiddlewareAllowsWithinLimit(t *testing.T) {
	t.Parallel()
	h := Handler{Limiter: memoryLimiter(t, 3), Key: func(*http.Request) string { return "buyer" }}
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.Middleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products", nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
	}
}

func TestMiddlewareBlocksOverLimit(t *testing.T) {
	t.Parallel()
	h := Handler{Limiter: memoryLimiter(t, 1), Key: func(*http.Request) string { return "greedy" }}
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	rec := httptest.NewRecorder()
	h.Middleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.Middleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products", nil))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
	require.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestMiddlewareWithoutLimiterPassesThrough(t *testing.T) {
	t.Parallel()
	h := Handler{}
	rec := httptest.NewRecorder()
	h.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)
}
