package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"

	"consentd/internal/consent/store"
	"consentd/internal/platform/config"
	"consentd/internal/platform/health"
)

// openSlots connects the configured slot backend, puts it behind a circuit
// breaker and registers its readiness checks and pool metrics. The returned
// func releases the backend.
func openSlots(ctx context.Context, cfg config.Server, log *slog.Logger, reg prometheus.Registerer, h *health.Handler) (store.Slots, func(), error) {
	backend, err := store.Open(ctx, cfg.Slots())
	if err != nil {
		return nil, nil, err
	}
	if !backend.Durable() {
		log.Warn("no slot backend configured; consent decisions are kept in memory and lost on restart")
	}
	if err := backend.RegisterMetrics(reg); err != nil {
		backend.Close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, nil, err
	}
	if backend.Durable() {
		h.RegisterCheck("slots", backend.Ping)
	}

	breaker := store.NewBreakerSlots(backend.Slots, store.BreakerConfig{}, log)
	h.RegisterCheck("slots_breaker", func(context.Context) error {
		if breaker.State() == gobreaker.StateOpen {
			return errors.New("circuit open")
		}
		return nil
	})

	closeFunc := func() {
		if err := backend.Close(); err != nil {
			log.Error("failed to close slot backend", "backend", backend.Name, "error", err)
		}
	}
	return breaker, closeFunc, nil
}
