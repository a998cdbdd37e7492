// Command api serves the ledger import API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FACorreiaa/poker-ledger/internal/app"
	"github.com/FACorreiaa/poker-ledger/pkg/config"
	"github.com/FACorreiaa/poker-ledger/pkg/interceptors"
	"github.com/FACorreiaa/poker-ledger/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	if err := cfg.RequireAuth(); err != nil {
		return err
	}

	deps, err := app.InitDependencies(cfg, log)
	if err != nil {
		return err
	}
	defer deps.Cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if deps.Scheduler != nil {
		if err := deps.Scheduler.Start(); err != nil {
			return err
		}
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           newRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	servers := []*http.Server{server}

	if cfg.Observability.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("GET /metrics", deps.Metrics.Handler())
		servers = append(servers, &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Observability.MetricsPort),
			Handler:           metricsMux,
			ReadHeaderTimeout: 5 * time.Second,
		})
	}

	errCh := make(chan error, len(servers))
	for _, s := range servers {
		go func(s *http.Server) {
			log.Info("server starting", slog.String("address", s.Addr))
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("server %s: %w", s.Addr, err)
			}
		}(s)
	}

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err = <-errCh:
		log.Error("server failed", slog.Any("error", err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, s := range servers {
		if shutdownErr := s.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Warn("server shutdown", slog.String("address", s.Addr), slog.Any("error", shutdownErr))
		}
	}
	log.Info("server stopped")
	return err
}

// newRouter mounts the authenticated API behind the shared middleware.
func newRouter(deps *app.Dependencies) http.Handler {
	cfg := deps.Config

	api := http.NewServeMux()
	deps.ImportHandler.Register(api)

	root := http.NewServeMux()
	root.Handle("/v1/", deps.Auth.Middleware(api))
	root.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := deps.DB.Pool.Ping(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	return interceptors.Chain(root,
		interceptors.Logging(deps.Logger),
		interceptors.CORS(cfg.Server.AllowedOrigins),
		interceptors.RateLimit(cfg.Server.RateLimitPerSecond, cfg.Server.RateLimitBurst, deps.Logger),
	)
}
