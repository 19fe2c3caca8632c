package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"consentd/internal/consent/gate"
	"consentd/internal/consent/handler"
	"consentd/internal/consent/metrics"
	"consentd/internal/consent/models"
	"consentd/internal/consent/policy"
	"consentd/internal/consent/region"
	"consentd/internal/consent/service"
	"consentd/internal/consent/visitor"
	jwttoken "consentd/internal/jwt_token"
	"consentd/internal/platform/config"
	"consentd/internal/platform/eventbus"
	"consentd/internal/platform/health"
	"consentd/internal/platform/logger"
	"consentd/pkg/platform/middleware/device"
	"consentd/pkg/platform/middleware/metadata"
	"consentd/pkg/platform/middleware/request"
	"consentd/pkg/platform/middleware/requesttime"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal consent packages.
func main() {
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	level, _ := config.ParseLevel(cfg.LogLevel)
	log := logger.New(level)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("initializing consentd",
		"addr", cfg.Addr,
		"slot_backend", cfg.Slots().Name(),
		"strict_us_ca", cfg.StrictUSCA,
	)
	if cfg.UsesDevSecret() {
		log.Warn("CONSENTD_SCOPE_SECRET not set; scope cookies are signed with the development secret")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	consentMetrics := metrics.New(reg)
	requestMetrics := request.NewMetrics(reg)

	healthHandler := health.New(cfg.Environment, health.WithBackend(cfg.Slots().Name()))
	slots, closeSlots, err := openSlots(ctx, cfg, log, reg, healthHandler)
	if err != nil {
		return err
	}
	defer closeSlots()

	catalog, err := gate.LoadCatalog(cfg.IntegrationsFile)
	if err != nil {
		return err
	}
	trusted, err := metadata.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return err
	}

	bus := eventbus.New(log)
	bus.Subscribe(models.EventConsentChanged, func(ctx context.Context, event eventbus.Event) {
		change, ok := event.Payload.(models.Change)
		if !ok {
			return
		}
		log.DebugContext(ctx, "consent changed",
			"event_id", event.ID,
			"consent_id", change.ConsentID,
			"source", string(change.Source),
			"region", string(change.Region),
			"persisted", change.Persisted,
			"cleared", change.Cleared,
		)
	})

	sessions := service.NewSessions(slots, cfg.ShadowTTL, log, consentMetrics)
	visitors := visitor.New(sessions, bus, catalog, policy.New(policy.WithStrictUSCA(cfg.StrictUSCA)),
		visitor.WithLogger(log),
		visitor.WithMetrics(consentMetrics),
		visitor.WithIdleTTL(cfg.VisitorIdleTTL),
	)
	tokens := jwttoken.NewScopeTokenService(cfg.ScopeSecret, cfg.ScopeTTL)
	consentHandler := handler.New(visitors, tokens, log, handler.WithSecureCookie(cfg.SecureCookie))

	r := chi.NewRouter()
	r.Use(request.Recovery(log))
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.NewMiddleware(&metadata.Config{TrustedProxies: trusted}).Handler)
	r.Use(device.Device(&device.Config{ExtraBotMarkers: cfg.BotMarkers}))
	r.Use(region.Middleware(region.NewHeaderResolver(cfg.CountryHeader, cfg.SubdivisionHeader)))
	r.Use(request.Logger(log))
	r.Use(request.LatencyMiddleware(requestMetrics))

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	healthHandler.Register(r)
	r.Group(func(r chi.Router) {
		r.Use(request.BodyLimit(cfg.MaxBodyBytes))
		r.Use(request.ContentTypeJSON)
		consentHandler.Register(r)
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		sweep(gctx, cfg.SweepInterval, log, sessions, visitors)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// sweep evicts expired shadows and idle bindings until ctx is done.
func sweep(ctx context.Context, interval time.Duration, log *slog.Logger, sessions *service.Sessions, visitors *visitor.Service) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			shadows := sessions.Shadows().Sweep()
			bindings := visitors.Sweep()
			if shadows > 0 || bindings > 0 {
				log.Debug("swept consent caches", "shadows", shadows, "bindings", bindings)
			}
		}
	}
}
