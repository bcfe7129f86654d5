package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cloudidian/mailsort/internal/logging"
	"github.com/cloudidian/mailsort/internal/model"
)

// ProgressEvent is the payload published on a job's progress channel.
type ProgressEvent struct {
	JobID          string               `json:"job_id"`
	Status         model.JobStatus      `json:"status"`
	Processed      int                  `json:"processed"`
	Total          int                  `json:"total"`
	ErrorCount     int                  `json:"error_count"`
	CategoryCounts model.CategoryCounts `json:"category_counts"`
	At             time.Time            `json:"at"`
}

// ProgressChannel returns the pub/sub channel name for a job.
func ProgressChannel(jobID string) string {
	return "mailsort:progress:" + jobID
}

// ProgressPublisher pushes job progress over Redis pub/sub. Delivery
// is best effort; publish failures are logged and ignored because
// progress display must never affect job outcomes.
type ProgressPublisher struct {
	client *redis.Client
	logger *slog.Logger
}

// NewProgressPublisher builds a publisher over an existing client.
func NewProgressPublisher(client *redis.Client, logger *slog.Logger) *ProgressPublisher {
	return &ProgressPublisher{client: client, logger: logging.WithComponent(logger, "queue")}
}

// Publish emits one progress event for the job.
func (p *ProgressPublisher) Publish(ctx context.Context, event ProgressEvent) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("marshaling progress event failed", logging.Err(err))
		return
	}
	if err := p.client.Publish(ctx, ProgressChannel(event.JobID), body).Err(); err != nil {
		p.logger.Debug("progress publish failed",
			logging.JobID(event.JobID),
			logging.Err(err))
	}
}
