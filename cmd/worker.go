package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cloudidian/mailsort/internal/auth"
	"github.com/cloudidian/mailsort/internal/category"
	"github.com/cloudidian/mailsort/internal/classify"
	"github.com/cloudidian/mailsort/internal/config"
	"github.com/cloudidian/mailsort/internal/gmailapi"
	"github.com/cloudidian/mailsort/internal/instrumentation"
	"github.com/cloudidian/mailsort/internal/jobs"
	"github.com/cloudidian/mailsort/internal/logging"
	"github.com/cloudidian/mailsort/internal/queue"
	"github.com/cloudidian/mailsort/internal/server"
	"github.com/cloudidian/mailsort/internal/store"
)

func newWorkerCmd() *cobra.Command {
	var prefetch int

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run a classification job worker",
		Long: `Starts a worker that consumes classification job tasks from the
queue and executes them: listing the user's messages, classifying each
one and applying the matching Gmail label.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(prefetch)
		},
	}

	cmd.Flags().IntVar(&prefetch, "prefetch", 1, "number of unacknowledged tasks to hold at once")
	return cmd
}

func runWorker(prefetch int) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.Setup(cfg.LogLevel)
	logger.Info("starting worker", "version", version, "queue", cfg.TaskQueue)

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceName = "mailsort-worker"
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

	redisClient, err := queue.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	cipher, err := auth.NewTokenCipher(cfg.EncryptionKey)
	if err != nil {
		return err
	}
	flow := auth.NewFlow(&cfg)
	creds := auth.NewCredentialProvider(s, cipher, flow, logger)

	limiter := gmailapi.NewLimiter(cfg.GmailRatePerSecond)
	opener := jobs.NewGmailOpener(creds, limiter,
		gmailapi.WithPageSize(cfg.GmailPageSize),
		gmailapi.WithLogger(logger),
		gmailapi.WithMetrics(provider.Metrics()),
	)

	catalog := category.Default()
	runner := jobs.NewRunner(s, opener, classify.New(catalog, classify.WithLogger(logger)), catalog,
		jobs.WithMaxResults(int(cfg.GmailMaxResults)),
		jobs.WithCheckpointInterval(cfg.CheckpointInterval),
		jobs.WithCanceller(queue.NewCanceller(redisClient, logger)),
		jobs.WithProgress(queue.NewProgressPublisher(redisClient, logger)),
		jobs.WithMetrics(provider.Metrics()),
		jobs.WithLogger(logger),
	)

	consumer, err := queue.NewConsumer(cfg.AMQPURL, cfg.TaskQueue, prefetch, logger)
	if err != nil {
		return fmt.Errorf("connecting to task queue: %w", err)
	}
	defer consumer.Close()

	health := server.NewHealthChecker(map[string]server.DependencyCheck{
		"database": s.Ping,
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
	})
	metricsServer := startMetricsServer(provider, cfg.MetricsAddr, health, logger)
	defer func() {
		if metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}
	}()

	err = consumer.Run(ctx, runner.HandleTask)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("worker: %w", err)
	}
	logger.Info("worker stopped")
	return nil
}
