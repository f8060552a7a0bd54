package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kondrei/TalkieMartin-BE/pkg/errors"
)

// Idle windows are pruned once this many clients are tracked
const maxTrackedClients = 10_000

// RateLimiter decides whether a request identified by key may proceed
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}

// SlidingWindowLimiter allows at most limit requests per key within any
// window of the given size.
type SlidingWindowLimiter struct {
	mu         sync.Mutex
	windows    map[string]*window
	limit      int
	windowSize time.Duration
	now        func() time.Time
}

// window is guarded by the limiter's mutex so a prune never drops a window
// between its lookup and the append.
type window struct {
	requests []time.Time
}

// NewSlidingWindowLimiter creates a new sliding window rate limiter
func NewSlidingWindowLimiter(limit int, windowSize time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		windows:    make(map[string]*window),
		limit:      limit,
		windowSize: windowSize,
		now:        time.Now,
	}
}

// Allow records the request and reports whether it fits in the window
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok {
		if len(l.windows) >= maxTrackedClients {
			l.pruneLocked()
		}
		w = &window{}
		l.windows[key] = w
	}

	now := l.now()
	start := now.Add(-l.windowSize)

	kept := w.requests[:0]
	for _, at := range w.requests {
		if at.After(start) {
			kept = append(kept, at)
		}
	}
	w.requests = kept

	if len(w.requests) >= l.limit {
		return false, nil
	}
	w.requests = append(w.requests, now)
	return true, nil
}

// Reset forgets every request seen for key
func (l *SlidingWindowLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.windows, key)
	return nil
}

// Prune drops windows that saw no request within the window size
func (l *SlidingWindowLimiter) Prune() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneLocked()
}

func (l *SlidingWindowLimiter) pruneLocked() {
	start := l.now().Add(-l.windowSize)
	for key, w := range l.windows {
		if len(w.requests) == 0 || !w.requests[len(w.requests)-1].After(start) {
			delete(l.windows, key)
		}
	}
}

// ClientKey identifies the caller by remote address. RealIP runs earlier in
// the chain so proxies are already unwrapped.
func ClientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return fmt.Sprintf("ip:%s", host)
}

// RateLimit rejects requests over the limiter's budget with 429. Limiter
// errors let the request through.
func RateLimit(limiter RateLimiter, errorHandler *errors.ErrorHandler, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ClientKey(r)

			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.Warn("Rate limiter failed, allowing request", zap.String("client", key), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				errorHandler.Handle(w, r, errors.NewRateLimitError(key))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
