// main is the entry point of the Churn Prediction API.
//
// On start it reads the config, builds the logger and tries to load the
// persisted model. A missing or unreadable model does not stop the
// process: the API comes up degraded, /health reports "not loaded" and
// /predict answers with an error body until the service is restarted
// with a model in place.
//
//	go run ./cmd/churn-api --config=config/local.yaml
//	CONFIG_PATH=config/local.yaml go run ./cmd/churn-api
//
// SIGINT or SIGTERM drains in-flight requests before exiting.
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

	"github.com/aanand-mishra/churn-api/internal/config"
	"github.com/aanand-mishra/churn-api/internal/http/handlers/prediction"
	"github.com/aanand-mishra/churn-api/internal/http/middleware"
	"github.com/aanand-mishra/churn-api/internal/logger"
	"github.com/aanand-mishra/churn-api/internal/metrics"
	"github.com/aanand-mishra/churn-api/internal/serving"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg := config.MustLoad()

	log := logger.New(cfg.Env, cfg.LogFile)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("churn-api stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// run serves until ctx is cancelled, then shuts the server down.
func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	log.Info("starting churn-api",
		slog.String("env", cfg.Env),
		slog.String("model_path", cfg.Model.Path),
		slog.String("model_version", cfg.Model.Version),
	)

	predictor := serving.New(cfg.Model.Path, cfg.Model.Version, log)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	server := &http.Server{
		Addr:              cfg.HTTPServer.Addr,
		Handler:           newHandler(predictor, registry, log),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("listening", slog.String("address", server.Addr))
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down", slog.Duration("timeout", shutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

// newHandler wires the routes:
//
//	POST /predict  classify one customer
//	GET  /health   model load state and version
//	GET  /metrics  Prometheus exposition of reg
func newHandler(predictor *serving.Predictor, reg *prometheus.Registry, log *slog.Logger) http.Handler {
	m := metrics.NewPredictionMetrics(reg)
	m.SetModelLoaded(predictor.State() == serving.StateModelLoaded)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /predict", prediction.Predict(predictor, m))
	mux.HandleFunc("GET /health", prediction.Health(predictor))
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	return middleware.Logging(log, mux, metrics.NewHTTPMetrics(reg))(mux)
}
