package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cloudidian/mailsort/internal/model"
)

// CreateJob inserts a new job in PENDING state. Generates a UUID if the
// ID is empty and initializes counters and timestamps.
func (s *Store) CreateJob(ctx context.Context, job *model.Job) error {
	if job.UserID == "" {
		return fmt.Errorf("job user id must not be empty")
	}
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = model.StatusPending
	}
	if job.CategoryCounts == nil {
		job.CategoryCounts = model.CategoryCounts{}
	}
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO jobs (
			id, user_id, status, mode, scope,
			total_messages, processed_messages, error_count,
			category_counts, errors, task_id,
			created_at, updated_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		job.ID, job.UserID, job.Status, job.Mode, job.Scope,
		job.TotalMessages, job.ProcessedMessages, job.ErrorCount,
		job.CategoryCounts, job.Errors, job.TaskID,
		job.CreatedAt, job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("creating job: %w", err)
	}
	return nil
}

// GetJob loads a job by id. Returns ErrNotFound if it does not exist.
func (s *Store) GetJob(ctx context.Context, id string) (*model.Job, error) {
	var job model.Job
	err := s.db.GetContext(ctx, &job, s.rebind(`SELECT * FROM jobs WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading job %s: %w", id, err)
	}
	return &job, nil
}

// ListJobsByUser returns a user's jobs, newest first.
func (s *Store) ListJobsByUser(ctx context.Context, userID string, limit int) ([]model.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	var jobs []model.Job
	err := s.db.SelectContext(ctx, &jobs, s.rebind(`
		SELECT * FROM jobs WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`),
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing jobs for user: %w", err)
	}
	return jobs, nil
}

// SetJobTaskID records the opaque queue task handle on a job.
func (s *Store) SetJobTaskID(ctx context.Context, id, taskID string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE jobs SET task_id = ?, updated_at = ? WHERE id = ?`),
		taskID, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("setting job task id: %w", err)
	}
	return nil
}

// MarkJobRunning transitions a job from PENDING to RUNNING. Returns false
// without error if the job was not in PENDING (already claimed or already
// terminal), so a cancelled job is never silently restarted.
func (s *Store) MarkJobRunning(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE jobs SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`),
		model.StatusRunning, time.Now().UTC(), id, model.StatusPending)
	if err != nil {
		return false, fmt.Errorf("marking job running: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("marking job running: %w", err)
	}
	return n == 1, nil
}

// SetJobTotal records the size of the listed message set.
func (s *Store) SetJobTotal(ctx context.Context, id string, total int) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE jobs SET total_messages = ?, updated_at = ? WHERE id = ?`),
		total, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("setting job total: %w", err)
	}
	return nil
}

// CheckpointJob persists progress counters mid-run. Only the counter
// fields are touched so the checkpoint never clobbers status or errors
// written by other statements.
func (s *Store) CheckpointJob(ctx context.Context, id string, processed, errorCount int, counts model.CategoryCounts) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE jobs SET processed_messages = ?, error_count = ?, category_counts = ?, updated_at = ?
		WHERE id = ?`),
		processed, errorCount, counts, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("checkpointing job: %w", err)
	}
	return nil
}

// FinishJob transitions a job into a terminal state with its final
// counters and truncated error list. The transition is guarded: a job
// already in a terminal state is left untouched and false is returned.
// CompletedAt is stamped only for COMPLETED.
func (s *Store) FinishJob(ctx context.Context, id string, status model.JobStatus, processed, errorCount int, counts model.CategoryCounts, jobErrors model.JobErrors) (bool, error) {
	if !status.Terminal() {
		return false, fmt.Errorf("finish requires a terminal status, got %q", status)
	}
	if len(jobErrors) > model.MaxStoredErrors {
		jobErrors = jobErrors[:model.MaxStoredErrors]
	}
	if counts == nil {
		counts = model.CategoryCounts{}
	}

	now := time.Now().UTC()
	var completedAt *time.Time
	if status == model.StatusCompleted {
		completedAt = &now
	}

	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE jobs SET status = ?, processed_messages = ?, error_count = ?,
			category_counts = ?, errors = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND status NOT IN (?, ?, ?)`),
		status, processed, errorCount, counts, jobErrors, completedAt, now,
		id, model.StatusCompleted, model.StatusFailed, model.StatusCancelled)
	if err != nil {
		return false, fmt.Errorf("finishing job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("finishing job: %w", err)
	}
	return n == 1, nil
}

// CancelPendingJob moves a still-PENDING job straight to CANCELLED. Used
// by the API when the job has not been picked up by a worker yet. Returns
// false if the job already left PENDING.
func (s *Store) CancelPendingJob(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE jobs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`),
		model.StatusCancelled, time.Now().UTC(), id, model.StatusPending)
	if err != nil {
		return false, fmt.Errorf("cancelling pending job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cancelling pending job: %w", err)
	}
	return n == 1, nil
}
