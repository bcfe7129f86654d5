package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudidian/mailsort/internal/category"
	"github.com/cloudidian/mailsort/internal/gmailapi"
	"github.com/cloudidian/mailsort/internal/logging"
	"github.com/cloudidian/mailsort/internal/model"
	"github.com/cloudidian/mailsort/internal/queue"
	"github.com/cloudidian/mailsort/internal/store"
)

// Mailbox is the provider surface a job run needs, opened for one user.
type Mailbox interface {
	List(ctx context.Context, scope model.EmailScope, maxResults int) ([]string, error)
	Detail(ctx context.Context, id string) (*gmailapi.MessageDetail, error)
	NewLabelManager() LabelApplier
}

// LabelApplier resolves and applies category labels.
type LabelApplier interface {
	ResolveOrCreate(ctx context.Context, name string) (string, error)
	Apply(ctx context.Context, messageID, labelID string) bool
}

// MailboxOpener opens a Mailbox for the given user's stored credentials.
type MailboxOpener interface {
	Open(ctx context.Context, userID string) (Mailbox, error)
}

// Classifier assigns a category name to one message.
type Classifier interface {
	Classify(ctx context.Context, subject, sender, body string, mode model.ModelMode) string
}

// JobStore is the persistence surface the runner needs.
type JobStore interface {
	GetJob(ctx context.Context, id string) (*model.Job, error)
	MarkJobRunning(ctx context.Context, id string) (bool, error)
	SetJobTotal(ctx context.Context, id string, total int) error
	CheckpointJob(ctx context.Context, id string, processed, errorCount int, counts model.CategoryCounts) error
	FinishJob(ctx context.Context, id string, status model.JobStatus, processed, errorCount int, counts model.CategoryCounts, jobErrors model.JobErrors) (bool, error)
}

// CancelChecker reports whether a job has been revoked.
type CancelChecker interface {
	Cancelled(ctx context.Context, jobID string) bool
}

// ProgressNotifier receives best-effort progress events.
type ProgressNotifier interface {
	Publish(ctx context.Context, event queue.ProgressEvent)
}

// Recorder records job outcome metrics. A nil Recorder disables
// recording.
type Recorder interface {
	RecordJob(ctx context.Context, status model.JobStatus, duration time.Duration)
	RecordMessage(ctx context.Context, categoryName string)
}

// Runner executes classification jobs end to end: claim, list, fetch,
// classify, label, checkpoint, finish. One message's failure never
// aborts the job; only being unable to reach the mailbox at all does.
type Runner struct {
	store      JobStore
	opener     MailboxOpener
	classifier Classifier
	catalog    *category.Catalog
	canceller  CancelChecker
	progress   ProgressNotifier
	metrics    Recorder
	logger     *slog.Logger

	maxResults         int
	checkpointInterval int
	now                func() time.Time
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithMaxResults caps how many messages one job will process.
func WithMaxResults(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.maxResults = n
		}
	}
}

// WithCheckpointInterval sets how many messages are processed between
// persisted checkpoints.
func WithCheckpointInterval(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.checkpointInterval = n
		}
	}
}

// WithCanceller attaches a revocation checker.
func WithCanceller(c CancelChecker) RunnerOption {
	return func(r *Runner) { r.canceller = c }
}

// WithProgress attaches a progress notifier.
func WithProgress(p ProgressNotifier) RunnerOption {
	return func(r *Runner) { r.progress = p }
}

// WithMetrics attaches a job metrics recorder.
func WithMetrics(m Recorder) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// WithLogger sets the runner logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logger }
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// NewRunner wires a Runner over its dependencies.
func NewRunner(s JobStore, opener MailboxOpener, classifier Classifier, catalog *category.Catalog, opts ...RunnerOption) *Runner {
	r := &Runner{
		store:              s,
		opener:             opener,
		classifier:         classifier,
		catalog:            catalog,
		logger:             slog.Default(),
		maxResults:         500,
		checkpointInterval: 10,
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.WithComponent(r.logger, "jobs")
	return r
}

// HandleTask adapts Run to the queue consumer. Job-fatal failures are
// recorded on the job row and then returned, so the broker's failure
// bookkeeping sees them as well. A task naming an unknown job is
// dropped.
func (r *Runner) HandleTask(ctx context.Context, task queue.JobTask) error {
	_, err := r.Run(ctx, task.JobID)
	if err != nil && errors.Is(err, store.ErrNotFound) {
		r.logger.Error("task references unknown job", logging.JobID(task.JobID))
		return nil
	}
	return err
}

// Run executes the job and returns its terminal status. Per-message
// failures land on the job row only; a job-fatal failure is written to
// the row and also returned as the error.
func (r *Runner) Run(ctx context.Context, jobID string) (model.JobStatus, error) {
	logger := logging.WithJob(r.logger, jobID)
	start := r.now()

	job, err := r.store.GetJob(ctx, jobID)
	if err != nil {
		return "", err
	}
	if job.Status.Terminal() {
		logger.Info("job already finished", logging.Status(string(job.Status)))
		return job.Status, nil
	}

	// Revocation can land while the task sits in the queue; honor it
	// before claiming.
	if r.cancelled(ctx, jobID) {
		return r.finish(ctx, logger, start, jobID, model.StatusCancelled, runState{})
	}

	claimed, err := r.store.MarkJobRunning(ctx, jobID)
	if err != nil {
		return "", err
	}
	if !claimed {
		current, err := r.store.GetJob(ctx, jobID)
		if err != nil {
			return "", err
		}
		logger.Info("job claimed elsewhere", logging.Status(string(current.Status)))
		return current.Status, nil
	}
	logger.Info("job started",
		slog.String(logging.KeyScope, string(job.Scope)),
		slog.String(logging.KeyMode, string(job.Mode)))

	mailbox, err := r.opener.Open(ctx, job.UserID)
	if err != nil {
		return r.fail(ctx, logger, start, jobID, fmt.Errorf("opening mailbox: %w", err))
	}

	ids, err := mailbox.List(ctx, job.Scope, r.maxResults)
	if err != nil {
		return r.fail(ctx, logger, start, jobID, fmt.Errorf("listing messages: %w", err))
	}
	if err := r.store.SetJobTotal(ctx, jobID, len(ids)); err != nil {
		return "", err
	}

	state := runState{
		total:  len(ids),
		counts: model.CategoryCounts{},
	}
	labels := mailbox.NewLabelManager()

	// Resolve every category's label up front. This builds the job-scoped
	// cache and surfaces a broken label catalog before any message is
	// touched; a failure here is job-fatal, not per-message.
	for _, cat := range r.catalog.All() {
		if _, err := labels.ResolveOrCreate(ctx, cat.LabelName); err != nil {
			return r.fail(ctx, logger, start, jobID, fmt.Errorf("preparing label %q: %w", cat.LabelName, err))
		}
	}

	for _, id := range ids {
		if r.cancelled(ctx, jobID) {
			logger.Info("job cancelled mid-run", slog.Int("processed", state.processed))
			return r.finish(ctx, logger, start, jobID, model.StatusCancelled, state)
		}

		r.processMessage(ctx, logger, mailbox, labels, job.Mode, id, &state)

		if state.processed%r.checkpointInterval == 0 {
			if err := r.store.CheckpointJob(ctx, jobID, state.processed, state.errorCount, state.counts); err != nil {
				logger.Warn("checkpoint failed", logging.Err(err))
			}
			r.notify(ctx, jobID, model.StatusRunning, state)
		}
	}

	return r.finish(ctx, logger, start, jobID, model.StatusCompleted, state)
}

// runState accumulates per-run counters.
type runState struct {
	total      int
	processed  int
	errorCount int
	counts     model.CategoryCounts
	errors     model.JobErrors
}

// processMessage runs one message through fetch, classify and label.
// Every failure is recorded against the message and swallowed.
func (r *Runner) processMessage(ctx context.Context, logger *slog.Logger, mailbox Mailbox, labels LabelApplier, mode model.ModelMode, id string, state *runState) {
	state.processed++

	detail, err := mailbox.Detail(ctx, id)
	if err != nil {
		r.recordError(state, id, err)
		logger.Warn("fetching message failed", logging.MessageID(id), logging.Err(err))
		return
	}
	if detail == nil {
		// Deleted between listing and fetching. There is nothing to
		// classify, but the message was processed, so it must land in
		// the error tally for the counts to add up.
		r.recordError(state, id, fmt.Errorf("message no longer exists"))
		logger.Warn("message absent", logging.MessageID(id))
		return
	}

	name := r.classifier.Classify(ctx, detail.Subject, detail.Sender, detail.Body, mode)
	cat, ok := r.catalog.ByName(name)
	if !ok {
		r.recordError(state, id, fmt.Errorf("unknown category %q", name))
		return
	}

	labelID, err := labels.ResolveOrCreate(ctx, cat.LabelName)
	if err != nil {
		r.recordError(state, id, fmt.Errorf("resolving label %q: %w", cat.LabelName, err))
		logger.Warn("resolving label failed", logging.MessageID(id), logging.Err(err))
		return
	}
	if !labels.Apply(ctx, id, labelID) {
		r.recordError(state, id, fmt.Errorf("applying label %q", cat.LabelName))
		return
	}

	state.counts[name]++
	if r.metrics != nil {
		r.metrics.RecordMessage(ctx, name)
	}
	logger.Debug("message classified", logging.MessageID(id), logging.Category(name))
}

// recordError counts an error and stores it up to the retention cap.
func (r *Runner) recordError(state *runState, messageID string, err error) {
	state.errorCount++
	if len(state.errors) < model.MaxStoredErrors {
		state.errors = append(state.errors, model.JobError{
			MessageID: messageID,
			Error:     err.Error(),
		})
	}
}

// fail terminates the job with a single synthetic error entry. The
// cause is returned so the task framework sees the failure too.
func (r *Runner) fail(ctx context.Context, logger *slog.Logger, start time.Time, jobID string, cause error) (model.JobStatus, error) {
	logger.Error("job failed", logging.Err(cause))
	state := runState{
		errorCount: 1,
		errors:     model.JobErrors{{Error: cause.Error()}},
	}
	status, err := r.finish(ctx, logger, start, jobID, model.StatusFailed, state)
	if err != nil {
		return "", err
	}
	return status, cause
}

func (r *Runner) finish(ctx context.Context, logger *slog.Logger, start time.Time, jobID string, status model.JobStatus, state runState) (model.JobStatus, error) {
	applied, err := r.store.FinishJob(ctx, jobID, status, state.processed, state.errorCount, state.counts, state.errors)
	if err != nil {
		return "", err
	}
	if !applied {
		// Another writer reached a terminal state first; report theirs.
		current, err := r.store.GetJob(ctx, jobID)
		if err != nil {
			return "", err
		}
		return current.Status, nil
	}

	r.notify(ctx, jobID, status, state)
	if r.metrics != nil {
		r.metrics.RecordJob(ctx, status, r.now().Sub(start))
	}
	logger.Info("job finished",
		logging.Status(string(status)),
		slog.Int("processed", state.processed),
		slog.Int("errors", state.errorCount))
	return status, nil
}

func (r *Runner) cancelled(ctx context.Context, jobID string) bool {
	return r.canceller != nil && r.canceller.Cancelled(ctx, jobID)
}

func (r *Runner) notify(ctx context.Context, jobID string, status model.JobStatus, state runState) {
	if r.progress == nil {
		return
	}
	// Snapshot the tally; the run keeps mutating the live map after
	// mid-run notifications.
	counts := make(model.CategoryCounts, len(state.counts))
	for name, n := range state.counts {
		counts[name] = n
	}
	r.progress.Publish(ctx, queue.ProgressEvent{
		JobID:          jobID,
		Status:         status,
		Processed:      state.processed,
		Total:          state.total,
		ErrorCount:     state.errorCount,
		CategoryCounts: counts,
	})
}
