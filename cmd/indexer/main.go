package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/emperorhan/prediction-indexer/internal/alert"
	"github.com/emperorhan/prediction-indexer/internal/config"
	"github.com/emperorhan/prediction-indexer/internal/domain/event"
	"github.com/emperorhan/prediction-indexer/internal/engine"
	"github.com/emperorhan/prediction-indexer/internal/publish"
	"github.com/emperorhan/prediction-indexer/internal/reconciliation"
	"github.com/emperorhan/prediction-indexer/internal/source"
	"github.com/emperorhan/prediction-indexer/internal/store/postgres"
	"github.com/emperorhan/prediction-indexer/internal/tracing"
)

const migrationsDir = "migrations"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	switch cfg.Log.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	chainNames := make([]string, 0, len(cfg.Chains))
	for _, ch := range cfg.Chains {
		chainNames = append(chainNames, ch.ID.String())
	}
	logger.Info("starting prediction-indexer", "chains", chainNames)

	shutdownTracing, err := tracing.Init(context.Background(), "prediction-indexer", cfg.Tracing.OTLPEndpoint, cfg.Tracing.Insecure)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown error", "error", err)
		}
	}()
	if cfg.Tracing.OTLPEndpoint != "" {
		logger.Info("tracing enabled", "endpoint", cfg.Tracing.OTLPEndpoint)
	}

	db, err := postgres.New(postgres.Config{
		URL:             cfg.DB.URL,
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to database")

	if err := db.RunMigrations(migrationsDir); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Error("invalid redis url", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to redis")

	publisher, err := publish.NewRedisPublisher(cfg.Redis.URL, cfg.Engine.StreamMaxLen)
	if err != nil {
		logger.Error("failed to create publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	alerter := buildAlerter(cfg, logger)

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "indexer"
	}

	st := postgres.NewStore(db)
	reader := postgres.NewReader(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runHealthServer(gCtx, cfg.Server.HealthPort, logger)
	})

	for _, ch := range cfg.Chains {
		chainID := ch.ID
		logsCh := make(chan event.Log, cfg.Engine.ChannelBufferSize)
		revertCh := make(chan event.Revert, cfg.Engine.ChannelBufferSize)

		consumer := source.New(
			redisClient, chainID, hostname, logsCh, revertCh, logger,
			source.WithBlockTimeout(cfg.Engine.BlockTimeout),
			source.WithBatchSize(int64(cfg.Engine.BatchSize)),
		)
		eng := engine.New(
			chainID, st, logsCh, revertCh, logger,
			engine.WithPublisher(publisher),
			engine.WithAlerter(alerter),
			engine.WithRetryConfig(cfg.Engine.RetryMaxAttempts, 100*time.Millisecond, time.Second),
			engine.WithDedupeCapacity(cfg.Engine.DedupeCapacity),
		)

		g.Go(func() error { return consumer.Run(gCtx) })
		g.Go(func() error { return eng.Run(gCtx) })

		if cfg.Reconcile.Enabled {
			svc := reconciliation.New(chainID, reader, cfg.Reconcile.Interval, logger, reconciliation.WithAlerter(alerter))
			g.Go(func() error { return svc.Run(gCtx) })
		}
	}

	g.Go(func() error {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("indexer exited with error", "error", err)
		os.Exit(1)
	}

	logger.Info("indexer shut down gracefully")
}

func buildAlerter(cfg *config.Config, logger *slog.Logger) alert.Alerter {
	var channels []alert.Alerter
	if cfg.Alert.SlackWebhookURL != "" {
		channels = append(channels, alert.NewSlackAlerter(cfg.Alert.SlackWebhookURL))
	}
	if cfg.Alert.WebhookURL != "" {
		channels = append(channels, alert.NewWebhookAlerter(cfg.Alert.WebhookURL))
	}
	if len(channels) == 0 {
		return &alert.NoopAlerter{}
	}
	return alert.NewMultiAlerter(cfg.Alert.Cooldown, logger, channels...)
}

func runHealthServer(ctx context.Context, port int, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			logger.Warn("failed to write health response", "error", err)
		}
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
			logger.Warn("health server shutdown error", "error", err)
		}
	}()

	logger.Info("health server started", "port", port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("health server: %w", err)
	}
	return nil
}
