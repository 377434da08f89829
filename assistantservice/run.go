// Package assistantservice boots the assistant HTTP server: config, logger,
// store, AI pool, services, router, health-gated startup and graceful
// shutdown.
package assistantservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/diaria/diaria-assistant/internal/ai"
	"github.com/diaria/diaria-assistant/internal/api"
	"github.com/diaria/diaria-assistant/internal/config"
	"github.com/diaria/diaria-assistant/internal/factory"
	"github.com/diaria/diaria-assistant/internal/health"
	"github.com/diaria/diaria-assistant/internal/logger"
	"github.com/diaria/diaria-assistant/internal/reconcile"
	"github.com/diaria/diaria-assistant/internal/services"
	"github.com/diaria/diaria-assistant/internal/source"
	"github.com/diaria/diaria-assistant/internal/store"
	"github.com/diaria/diaria-assistant/internal/textmatch"
)

// Run starts the assistant service HTTP server and blocks until shutdown
// or error.
func Run() error {
	log := logger.New("assistant-service")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("failed to load configuration")
		return err
	}

	log.Info().
		Str("environment", string(cfg.Environment)).
		Str("db_driver", cfg.DBDriver).
		Int("http_port", cfg.HTTPPort).
		Str("source_base_url", cfg.SourceBaseURL).
		Msg("assistant service starting")

	ctx, stop := newServerContext()
	defer stop()

	st, err := factory.NewStore(ctx, cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("store unavailable")
		return err
	}

	planner := source.NewClient(cfg.SourceBaseURL, cfg.SourceAPIKey)
	pool := factory.NewAIPool(cfg, log)

	svcHealth := startHealthCheckers(ctx, cfg, log, st, planner)
	router := buildRouter(cfg, log, st, planner, pool, svcHealth)

	if err := waitUntilHealthy(ctx, cfg, svcHealth); err != nil {
		log.Error().Stack().Err(err).Msg("startup health check failed")
		return err
	}

	server := newHTTPServer(ctx, cfg, router)
	errCh := serveHTTP(server, log, cfg)

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Stack().Err(err).Msg("server forced to shutdown")
			return err
		}
		log.Info().Msg("server exited")
		return nil
	case err := <-errCh:
		log.Error().Stack().Err(err).Msg("HTTP server failed")
		return err
	}
}

// buildRouter constructs the domain services and wires them to routes.
func buildRouter(cfg *config.Config, log zerolog.Logger, st store.Store, planner *source.Client, pool *ai.Pool, svcHealth *health.ServiceHealthChecker) http.Handler {
	detector := &textmatch.Detector{
		Threshold:         cfg.SimilarityThreshold,
		MaxLevenshteinLen: textmatch.DefaultMaxLevenshteinLen,
	}
	filter := reconcile.Filter{
		ExcludedTitlePrefix: cfg.ExcludedTitlePrefix,
		ExcludedStatus:      cfg.ExcludedStatus,
		WorkdayStart:        cfg.WorkdayStartHour,
		WorkdayEnd:          cfg.WorkdayEndHour,
	}

	memorySvc := services.NewMemoryService(st, detector, pool)
	syncSvc := services.NewSyncService(st, planner, filter, log)
	explanationSvc := services.NewExplanationService(st, pool, log)
	summarySvc := services.NewSummaryService(st, memorySvc, pool, log)

	return api.NewRouter(api.Deps{
		Sync:         syncSvc,
		Memory:       memorySvc,
		Explanations: explanationSvc,
		Summary:      summarySvc,
		IsHealthy:    svcHealth.IsHealthy,
	})
}

// startHealthCheckers starts component checkers and the service aggregator.
func startHealthCheckers(ctx context.Context, cfg *config.Config, log zerolog.Logger, st store.Store, planner *source.Client) *health.ServiceHealthChecker {
	probeTimeout := time.Duration(cfg.HealthProbeTimeoutSeconds) * time.Second
	interval := time.Duration(cfg.HealthIntervalSeconds) * time.Second

	storeChecker := store.NewStoreHealthChecker(st, log, probeTimeout)
	go storeChecker.Start(ctx, interval)

	plannerChecker := source.NewPlannerHealthChecker(planner, log, probeTimeout)
	go plannerChecker.Start(ctx, interval)

	svcHealth := health.NewServiceHealthChecker(log, storeChecker, plannerChecker)
	go svcHealth.Start(ctx, interval)
	return svcHealth
}

func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger, cfg *config.Config) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// startupHealthTimeout is interval*2 with a 60 second minimum, giving
// checkers time to complete their first probe cycle.
func startupHealthTimeout(healthIntervalSeconds int) int {
	timeout := healthIntervalSeconds * 2
	if timeout < 60 {
		return 60
	}
	return timeout
}

// waitUntilHealthy blocks until service health reports healthy or the
// startup window expires.
func waitUntilHealthy(ctx context.Context, cfg *config.Config, svcHealth *health.ServiceHealthChecker) error {
	timeoutSeconds := startupHealthTimeout(cfg.HealthIntervalSeconds)
	deadline := time.Now().Add(time.Duration(timeoutSeconds) * time.Second)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		if svcHealth.IsHealthy() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("startup aborted: dependencies not healthy within %d seconds", timeoutSeconds)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// newServerContext returns a cancellable context bound to SIGINT/SIGTERM.
func newServerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
