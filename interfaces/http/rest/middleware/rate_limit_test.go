package middleware

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kondrei/TalkieMartin-BE/pkg/errors"
)

func TestSlidingWindowLimiter(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	limiter := NewSlidingWindowLimiter(2, time.Minute)
	limiter.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		ok, err := limiter.Allow(ctx, "ip:1")
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, _ := limiter.Allow(ctx, "ip:1")
	assert.False(t, ok, "third request in the window")

	ok, _ = limiter.Allow(ctx, "ip:2")
	assert.True(t, ok, "other clients have their own window")

	now = now.Add(61 * time.Second)
	ok, _ = limiter.Allow(ctx, "ip:1")
	assert.True(t, ok, "window slid past the old requests")

	require.NoError(t, limiter.Reset(ctx, "ip:1"))
	ok, _ = limiter.Allow(ctx, "ip:1")
	assert.True(t, ok)
}

func TestSlidingWindowLimiter_Prune(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	limiter := NewSlidingWindowLimiter(1, time.Minute)
	limiter.now = func() time.Time { return now }

	_, _ = limiter.Allow(ctx, "ip:old")
	now = now.Add(2 * time.Minute)
	_, _ = limiter.Allow(ctx, "ip:new")

	limiter.Prune()

	assert.NotContains(t, limiter.windows, "ip:old")
	assert.Contains(t, limiter.windows, "ip:new")
}

func TestSlidingWindowLimiter_ConcurrentPrune(t *testing.T) {
	ctx := context.Background()
	const limit = 50
	limiter := NewSlidingWindowLimiter(limit, time.Hour)

	var (
		wg      sync.WaitGroup
		allowed atomic.Int64
	)
	for i := 0; i < 200; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if ok, err := limiter.Allow(ctx, "ip:busy"); err == nil && ok {
				allowed.Add(1)
			}
		}()
		go func() {
			defer wg.Done()
			limiter.Prune()
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(limit), allowed.Load())
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, error) {
	return false, stderrors.New("store unavailable")
}
func (failingLimiter) Reset(context.Context, string) error { return nil }

func TestRateLimit(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	errorHandler := errors.NewErrorHandler(zap.NewNop(), false)

	t.Run("rejects over budget", func(t *testing.T) {
		handler := RateLimit(NewSlidingWindowLimiter(1, time.Minute), errorHandler, zap.NewNop())(ok)

		req := httptest.NewRequest(http.MethodPost, "/api/memories", nil)
		req.RemoteAddr = "10.0.0.1:5000"

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Contains(t, rec.Body.String(), "TOO_MANY_REQUESTS")
	})

	t.Run("limiter failure lets the request through", func(t *testing.T) {
		handler := RateLimit(failingLimiter{}, errorHandler, zap.NewNop())(ok)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:41000"
	assert.Equal(t, "ip:192.0.2.7", ClientKey(req))

	req.RemoteAddr = "192.0.2.7"
	assert.Equal(t, "ip:192.0.2.7", ClientKey(req))
}
