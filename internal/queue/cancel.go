package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cloudidian/mailsort/internal/logging"
)

// cancelTTL keeps revocation flags around long enough to outlive any
// queued task without accumulating forever.
const cancelTTL = 24 * time.Hour

// Canceller broadcasts job revocations through Redis. The API sets the
// flag; workers poll it at iteration boundaries.
type Canceller struct {
	client *redis.Client
	logger *slog.Logger
}

// NewCanceller builds a canceller over an existing Redis client.
func NewCanceller(client *redis.Client, logger *slog.Logger) *Canceller {
	return &Canceller{client: client, logger: logging.WithComponent(logger, "queue")}
}

// NewRedisClient parses a redis:// URL into a client.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func cancelKey(jobID string) string {
	return "mailsort:cancel:" + jobID
}

// Revoke flags the job as cancelled.
func (c *Canceller) Revoke(ctx context.Context, jobID string) error {
	if err := c.client.Set(ctx, cancelKey(jobID), "1", cancelTTL).Err(); err != nil {
		return fmt.Errorf("setting cancel flag: %w", err)
	}
	c.logger.Info("job revoked", logging.JobID(jobID))
	return nil
}

// Cancelled reports whether the job has been revoked. Redis failures
// are treated as not-cancelled so an outage never kills running jobs.
func (c *Canceller) Cancelled(ctx context.Context, jobID string) bool {
	n, err := c.client.Exists(ctx, cancelKey(jobID)).Result()
	if err != nil {
		c.logger.Warn("cancel flag check failed", logging.JobID(jobID), logging.Err(err))
		return false
	}
	return n > 0
}
