package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cloudidian/mailsort/internal/api"
	"github.com/cloudidian/mailsort/internal/auth"
	"github.com/cloudidian/mailsort/internal/category"
	"github.com/cloudidian/mailsort/internal/config"
	"github.com/cloudidian/mailsort/internal/instrumentation"
	"github.com/cloudidian/mailsort/internal/logging"
	"github.com/cloudidian/mailsort/internal/queue"
	"github.com/cloudidian/mailsort/internal/server"
	"github.com/cloudidian/mailsort/internal/store"
)

func newServeCmd() *cobra.Command {
	var apiAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long: `Starts the HTTP API: Google login, job submission and status, job
cancellation and the category listing. Accepted jobs are published to
the task queue for a worker to execute.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(apiAddr)
		},
	}

	cmd.Flags().StringVar(&apiAddr, "addr", "", "listen address for the API server (default from API_ADDR)")
	return cmd
}

func runServe(apiAddr string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if apiAddr != "" {
		cfg.APIAddr = apiAddr
	}

	logger := logging.Setup(cfg.LogLevel)
	logger.Info("starting api server", "version", version, "addr", cfg.APIAddr)

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceName = "mailsort-api"
	instrConfig.ServiceVersion = version
	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return fmt.Errorf("creating instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Error("instrumentation shutdown failed", logging.Err(err))
		}
	}()

	s, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.SeedCategories(ctx, category.Default()); err != nil {
		return fmt.Errorf("seeding categories: %w", err)
	}

	redisClient, err := queue.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	canceller := queue.NewCanceller(redisClient, logger)

	publisher, err := queue.NewPublisher(cfg.AMQPURL, cfg.TaskQueue, logger)
	if err != nil {
		return fmt.Errorf("connecting to task queue: %w", err)
	}
	defer publisher.Close()

	cipher, err := auth.NewTokenCipher(cfg.EncryptionKey)
	if err != nil {
		return err
	}
	flow := auth.NewFlow(&cfg)
	creds := auth.NewCredentialProvider(s, cipher, flow, logger)
	sessions := auth.NewSessionManager(cfg.JWTSecret, cfg.JWTExpiry)

	health := server.NewHealthChecker(map[string]server.DependencyCheck{
		"database": s.Ping,
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
	})
	metricsServer := startMetricsServer(provider, cfg.MetricsAddr, health, logger)

	router := api.NewRouter(
		api.NewAuthHandler(flow, creds, sessions, s, logger),
		api.NewJobsHandler(s, publisher, canceller, logger),
		api.NewCategoriesHandler(s, logger),
		sessions,
		provider.Metrics(),
	)

	httpServer := &http.Server{
		Addr:    cfg.APIAddr,
		Handler: router,
	}
	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down api server")
	health.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown failed", logging.Err(err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics shutdown failed", logging.Err(err))
		}
	}
	return nil
}
