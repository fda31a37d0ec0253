// Package main provides the entrypoint for the RagPilot watchdog service.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/ragpilot/ragpilot/internal/alert"
	"github.com/ragpilot/ragpilot/internal/api"
	"github.com/ragpilot/ragpilot/internal/cache"
	"github.com/ragpilot/ragpilot/internal/embedding"
	"github.com/ragpilot/ragpilot/internal/llm"
	"github.com/ragpilot/ragpilot/internal/telemetry"
	"github.com/ragpilot/ragpilot/internal/vectordb"
	"github.com/ragpilot/ragpilot/internal/watchdog"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "ragpilot-watchdog"

	// Local development convenience; absent .env files are not an error.
	_ = godotenv.Load() //nolint:errcheck // optional

	cfg := watchdog.ConfigFromEnv()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	log := zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting RagPilot watchdog")

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry
	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        os.Getenv("OTEL_ENABLED") == "true",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	metrics, err := watchdog.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize watchdog metrics")
	}

	// Connect to the cache store. A failure here is not fatal: the monitor
	// reports the outage instead of the process refusing to start.
	var cacheClient watchdog.CacheStore
	redisClient, err := cache.Connect(ctx, cache.ConfigFromEnv())
	if err != nil {
		log.Warn().Err(err).Msg("redis unreachable at startup, monitor will report it")
	} else {
		cacheClient = redisClient
		defer redisClient.Close() //nolint:errcheck // best effort cleanup
		log.Info().Msg("redis connected")
	}

	vectorClient := vectordb.NewClient(vectordb.ClientConfig{
		BaseURL: os.Getenv("VECTORDB_URL"),
		Timeout: cfg.Timeout,
		Logger:  log,
	})

	embeddingClient := embedding.NewClient(embedding.ClientConfig{
		BaseURL: os.Getenv("EMBEDDINGS_URL"),
		Timeout: cfg.Timeout,
		Logger:  log,
	})

	llmClient := llm.NewClient(llm.ClientConfig{
		BaseURL:    os.Getenv("OLLAMA_URL"),
		APIKey:     os.Getenv("OLLAMA_API_KEY"),
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
		Logger:     log,
	})

	// Alert sinks: structured log always, webhook and Pub/Sub when configured.
	notifiers := alert.Multi{alert.NewLogNotifier(log)}

	if webhookURL := os.Getenv("ALERT_WEBHOOK_URL"); webhookURL != "" {
		notifiers = append(notifiers, alert.NewWebhookNotifier(alert.WebhookConfig{
			URL:     webhookURL,
			Timeout: cfg.Timeout,
		}))
		log.Info().Msg("webhook alert sink configured")
	}

	if projectID := os.Getenv("ALERT_PUBSUB_PROJECT"); projectID != "" {
		topicName := os.Getenv("ALERT_PUBSUB_TOPIC")
		if topicName == "" {
			topicName = "watchdog-alerts"
		}
		pubsubNotifier, pubsubErr := alert.NewPubSubNotifier(ctx, alert.PubSubConfig{
			ProjectID: projectID,
			TopicName: topicName,
		})
		if pubsubErr != nil {
			log.Error().Err(pubsubErr).Msg("failed to initialize pubsub alert sink")
		} else {
			notifiers = append(notifiers, pubsubNotifier)
			defer pubsubNotifier.Close() //nolint:errcheck // best effort cleanup
			log.Info().Str("topic", topicName).Msg("pubsub alert sink configured")
		}
	}

	dog := watchdog.New(watchdog.Options{
		Config:   cfg,
		Logger:   log,
		Notifier: notifiers,
		Monitors: []watchdog.Monitor{
			watchdog.NewCacheMonitor(cacheClient, cfg),
			watchdog.NewVectorMonitor(vectorClient, cfg),
			watchdog.NewEmbeddingMonitor(embeddingClient, cfg),
			watchdog.NewLLMMonitor(llmClient, cfg),
		},
	})

	// Start the monitoring loop in the background.
	go func() {
		if runErr := dog.Run(ctx, metrics); runErr != nil && runErr != context.Canceled {
			log.Error().Err(runErr).Msg("watchdog loop exited")
		}
	}()

	router := api.NewRouter(api.RouterConfig{
		Version:       Version,
		BuildTime:     BuildTime,
		Logger:        log,
		HealthService: dog,
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		if serveErr := server.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
			log.Fatal().Err(serveErr).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("watchdog stopped")
}
