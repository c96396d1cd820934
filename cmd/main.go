package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UnknownOlympus/hermes/internal/analysis"
	"github.com/UnknownOlympus/hermes/internal/api"
	"github.com/UnknownOlympus/hermes/internal/config"
	"github.com/UnknownOlympus/hermes/internal/geocoding"
	"github.com/UnknownOlympus/hermes/internal/metrics"
	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/UnknownOlympus/hermes/internal/repository"
	"github.com/UnknownOlympus/hermes/internal/service"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Constants for different environment types.
const (
	envLocal = "local"
	envDev   = "development"
	envProd  = "production"
)

// Supported specialist stores.
const (
	storePostgres = "postgres"
	storeElastic  = "elasticsearch"
)

const shutdownTimeout = 10 * time.Second

// pinger is a store whose reachability is reported by /healthz.
type pinger interface {
	Ping(ctx context.Context) error
}

// main is the entry point of the application.
func main() {
	// Create a context that will be canceled when an interrupt signal is received.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.MustLoad()
	logger := setupLogger(cfg.Env)

	// Separate registry so only our collectors and the runtime ones are exported.
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(reg)

	var geoProvider geocoding.Provider
	if cfg.Geocoder.ProviderType != "" {
		provider, err := geocoding.NewProvider(geocoding.ProviderConfig{
			Type:      geocoding.ProviderType(cfg.Geocoder.ProviderType),
			APIKey:    cfg.Geocoder.APIKey,
			RateLimit: cfg.Geocoder.RateLimit,
			Logger:    logger,
		})
		if err != nil {
			log.Fatalf("Failed to create geocoding provider: %v", err)
		}
		geoProvider = provider
		logger.InfoContext(ctx, "Geocoding provider initialized", "type", cfg.Geocoder.ProviderType)
	}

	var (
		finder repository.SpecialistFinder
		health pinger
	)
	switch cfg.Store {
	case storePostgres:
		dtb, err := repository.NewDatabase(ctx,
			cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Password, cfg.Database.Name,
		)
		if err != nil {
			log.Fatalf("Failed to connect to DB: %v", err)
		}
		defer dtb.Close()

		if cfg.Database.EnsureSchema {
			if err = repository.EnsureSchema(ctx, dtb); err != nil {
				log.Fatalf("Failed to prepare database schema: %v", err)
			}
		}

		repo := repository.NewRepository(dtb, logger)
		finder, health = repo, dtb

		if cfg.Locator.Enabled {
			if geoProvider == nil {
				log.Fatal("Locator is enabled but no geocoding provider is configured")
			}
			locator := service.NewLocator(logger, repo, geoProvider, appMetrics, service.LocatorOptions{
				ProviderName:  cfg.Geocoder.ProviderType,
				Workers:       cfg.Locator.Workers,
				PollInterval:  cfg.Locator.Interval,
				BatchSize:     cfg.Locator.BatchSize,
				MaxAttempts:   cfg.Locator.MaxAttempts,
				AddressPrefix: cfg.Locator.AddrPrefix,
			})
			go locator.Run(ctx)
		}
	case storeElastic:
		client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{cfg.Elastic.URL}})
		if err != nil {
			log.Fatalf("Failed to create Elasticsearch client: %v", err)
		}

		store := repository.NewElasticStore(client, cfg.Elastic.Index, logger)
		if err = store.CreateIndex(ctx); err != nil {
			log.Fatalf("Failed to prepare Elasticsearch index: %v", err)
		}
		finder, health = store, store

		if cfg.Locator.Enabled {
			logger.WarnContext(ctx, "Locator requires the postgres store and stays disabled", "store", cfg.Store)
		}
	default:
		log.Fatalf("Unsupported store %q, expected %q or %q", cfg.Store, storePostgres, storeElastic)
	}

	nearby := service.NewNearbyService(logger, finder, geoProvider, appMetrics, cfg.Nearby.MaxLimit, cfg.Database.QueryTimeout)
	forwarder, prober := setupAnalysis(cfg.Analysis, appMetrics, logger)
	aggregator := analysis.NewAggregator(forwarder, analysis.Weights{
		models.ModalityText:  cfg.Analysis.Weights.Text,
		models.ModalityVoice: cfg.Analysis.Weights.Voice,
		models.ModalityFace:  cfg.Analysis.Weights.Face,
	}, appMetrics, logger)

	handler := api.NewHandler(logger, nearby, forwarder, aggregator, prober)
	apiServer := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler: api.NewRouter(handler, api.RouterOptions{
			RateLimit:    cfg.HTTP.RateLimit,
			CORSOrigins:  cfg.HTTP.CORSOrigins,
			MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
		}),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	// Start the monitoring server in a goroutine to allow main to listen for signals.
	go startMonitoringServer(ctx, logger, reg, health, cfg.MonitoringPort)

	go func() {
		logger.InfoContext(ctx, "Starting API server", "port", cfg.HTTP.Port, "store", cfg.Store)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorContext(ctx, "API server failed", "error", err)
			stop()
		}
	}()

	logger.InfoContext(ctx, "Application started. Press Ctrl+C to stop.")

	// Wait for the context to be canceled (e.g., by Ctrl+C).
	<-ctx.Done()

	logger.InfoContext(ctx, "Shutdown signal received. Stopping application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.ErrorContext(shutdownCtx, "API server shutdown failed", "error", err)
	}

	logger.InfoContext(shutdownCtx, "Application stopped gracefully.")
}

// setupAnalysis builds one client per configured analysis service and the forwarder and prober over them.
// A modality without a base URL is left out and reported as not configured.
func setupAnalysis(
	cfg config.AnalysisConfig,
	appMetrics *metrics.Metrics,
	logger *slog.Logger,
) (*analysis.Forwarder, *analysis.Prober) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConnsPerHost: 16,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	settings := analysis.BreakerSettings{
		MinRequests:  cfg.Breaker.MinRequests,
		FailureRatio: cfg.Breaker.FailureRatio,
		Interval:     cfg.Breaker.Interval,
		OpenTimeout:  cfg.Breaker.OpenTimeout,
	}

	urls := map[models.Modality]string{
		models.ModalityText:  cfg.TextURL,
		models.ModalityVoice: cfg.VoiceURL,
		models.ModalityFace:  cfg.FaceURL,
	}
	analyzers := make(map[models.Modality]analysis.Analyzer, len(urls))
	checkers := make(map[models.Modality]analysis.HealthChecker, len(urls))
	for _, modality := range models.Modalities {
		url := urls[modality]
		if url == "" {
			logger.Warn("Analysis service not configured", "modality", modality)
			continue
		}
		client := analysis.NewClient(modality, url, httpClient, settings, appMetrics, logger)
		analyzers[modality] = client
		checkers[modality] = client
	}

	return analysis.NewForwarder(analyzers, cfg.Timeout, appMetrics, logger),
		analysis.NewProber(checkers, cfg.HealthTimeout, logger)
}

// startMonitoringServer starts an HTTP server that provides health check and metrics endpoints.
// It listens on the specified port and logs the server's status and any errors encountered.
//
// Parameters:
// - ctx: A context.Context for managing cancellation and timeouts.
// - log: A logger for logging server events and errors.
// - reg: A registry with Prometheus collectors.
// - store: The specialist store pinged by /healthz.
// - port: The port number on which the server will listen.
func startMonitoringServer(
	ctx context.Context,
	log *slog.Logger,
	reg *prometheus.Registry,
	store pinger,
	port int,
) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(writer http.ResponseWriter, req *http.Request) {
		log.DebugContext(ctx, "Performing health checks...")
		status, body := http.StatusOK, "OK"
		if err := store.Ping(req.Context()); err != nil {
			status, body = http.StatusServiceUnavailable, "store ping failed"
		}
		writer.WriteHeader(status)
		_, err := writer.Write([]byte(body))
		if err != nil {
			log.ErrorContext(ctx, "failed to write reply", "error", err)
		}

		log.DebugContext(ctx, "Health checks completed", "status", status)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	log.InfoContext(ctx, "Starting monitoring server", "port", port)
	readTimeout := 5
	writeTimeout := 10
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  time.Duration(readTimeout) * time.Second,
		WriteTimeout: time.Duration(writeTimeout) * time.Second,
	}
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.ErrorContext(ctx, "Monitoring server failed", "error", err)
	}
}

// setupLogger initializes and returns a logger based on the environment provided.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelDebug,
				AddSource: true,
			}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:       slog.LevelWarn,
				ReplaceAttr: dropTime,
			}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:       slog.LevelError,
				ReplaceAttr: dropTime,
			}),
		)

		log.Error(
			"The env parameter was not specified or was invalid. Logging will be minimal, by default.",
			slog.String("available_envs", "local, development, production"))
	}

	return log
}

func dropTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return a
}
