package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"consentd/internal/sentinel"
)

// Default circuit breaker settings.
const (
	defaultBreakerMaxFailures uint32        = 5
	defaultBreakerTimeout     time.Duration = 30 * time.Second
	defaultBreakerInterval    time.Duration = 60 * time.Second
)

// BreakerConfig configures when a failing backend is cut off.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32
	// Timeout is how long the circuit stays open before transitioning to half-open.
	Timeout time.Duration
	// Interval is the cyclic period of the closed state for clearing failure counts.
	Interval time.Duration
}

// BreakerSlots wraps a Slots backend with circuit breaker protection. While the
// circuit is open every call fails fast with sentinel.ErrUnavailable, which the
// manager handles like disabled storage.
type BreakerSlots struct {
	inner   Slots
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// NewBreakerSlots wraps inner. Zero-valued config fields fall back to defaults.
func NewBreakerSlots(inner Slots, cfg BreakerConfig, logger *slog.Logger) *BreakerSlots {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultBreakerMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultBreakerTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultBreakerInterval
	}

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "consent-slots",
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logger != nil {
				logger.Warn("circuit breaker state change",
					"breaker", name,
					"from", from.String(),
					"to", to.String(),
				)
			}
		},
		// Empty slots and oversized values are visitor-level outcomes, not
		// backend faults.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, sentinel.ErrNotFound) ||
				errors.Is(err, sentinel.ErrQuotaExceeded)
		},
	})
	return &BreakerSlots{inner: inner, breaker: cb}
}

// State returns the current circuit breaker state for monitoring.
func (b *BreakerSlots) State() gobreaker.State {
	return b.breaker.State()
}

func (b *BreakerSlots) Get(ctx context.Context, scope, key string) ([]byte, error) {
	value, err := b.breaker.Execute(func() ([]byte, error) {
		return b.inner.Get(ctx, scope, key)
	})
	return value, mapBreakerErr(err)
}

func (b *BreakerSlots) Set(ctx context.Context, scope, key string, value []byte) error {
	_, err := b.breaker.Execute(func() ([]byte, error) {
		return nil, b.inner.Set(ctx, scope, key, value)
	})
	return mapBreakerErr(err)
}

func (b *BreakerSlots) Delete(ctx context.Context, scope, key string) error {
	_, err := b.breaker.Execute(func() ([]byte, error) {
		return nil, b.inner.Delete(ctx, scope, key)
	})
	return mapBreakerErr(err)
}

func mapBreakerErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("consent slots circuit open: %w: %w", sentinel.ErrUnavailable, err)
	}
	return err
}
