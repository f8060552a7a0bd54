package s3

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/kondrei/TalkieMartin-BE/application/ports"
	"github.com/kondrei/TalkieMartin-BE/pkg/errors"
)

// BreakerConfig holds configuration for the object store circuit breaker
type BreakerConfig struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// Trip once at least MinRequests were seen and the failure ratio
	// reaches FailureThreshold
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns a default configuration for circuit breaker
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// BreakerStore guards an object store with a circuit breaker. While the
// circuit is open calls fail immediately with the error kind the wrapped
// call would have produced.
type BreakerStore struct {
	next   ports.ObjectStore
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

// NewBreakerStore wraps next with a circuit breaker
func NewBreakerStore(next ports.ObjectStore, cfg BreakerConfig, logger *zap.Logger) *BreakerStore {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		// A cancelled request says nothing about the health of S3
		IsSuccessful: func(err error) bool {
			return err == nil || stderrors.Is(err, context.Canceled)
		},
	})

	return &BreakerStore{next: next, cb: cb, logger: logger}
}

func (b *BreakerStore) execute(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

func rejected(err error) bool {
	return err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests
}

// UploadFiles uploads through the breaker
func (b *BreakerStore) UploadFiles(ctx context.Context, bucket string, objects []ports.Object) error {
	err := b.execute(func() error { return b.next.UploadFiles(ctx, bucket, objects) })
	if rejected(err) {
		return errors.NewUploadError(fmt.Errorf("object store unavailable: %w", err))
	}
	return err
}

// DeleteFiles deletes through the breaker
func (b *BreakerStore) DeleteFiles(ctx context.Context, bucket string, keys []string) error {
	err := b.execute(func() error { return b.next.DeleteFiles(ctx, bucket, keys) })
	if rejected(err) {
		return fmt.Errorf("object store unavailable: %w", err)
	}
	return err
}

// DownloadURL signs through the breaker
func (b *BreakerStore) DownloadURL(ctx context.Context, bucket, key string) (string, error) {
	var url string
	err := b.execute(func() error {
		var err error
		url, err = b.next.DownloadURL(ctx, bucket, key)
		return err
	})
	if rejected(err) {
		return "", fmt.Errorf("object store unavailable: %w", err)
	}
	return url, err
}

// State reports the breaker state
func (b *BreakerStore) State() gobreaker.State {
	return b.cb.State()
}
