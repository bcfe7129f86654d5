package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cloudidian/mailsort/internal/logging"
	"github.com/cloudidian/mailsort/internal/model"
	"github.com/cloudidian/mailsort/internal/store"
)

// Enqueuer pushes accepted jobs onto the task queue.
type Enqueuer interface {
	EnqueueJob(ctx context.Context, jobID, userID string) (string, error)
}

// Revoker flags running jobs for cancellation.
type Revoker interface {
	Revoke(ctx context.Context, jobID string) error
}

// JobsHandler exposes the job lifecycle over HTTP.
type JobsHandler struct {
	store    *store.Store
	enqueuer Enqueuer
	revoker  Revoker
	logger   *slog.Logger
}

// NewJobsHandler wires the job endpoints.
func NewJobsHandler(s *store.Store, enqueuer Enqueuer, revoker Revoker, logger *slog.Logger) *JobsHandler {
	return &JobsHandler{
		store:    s,
		enqueuer: enqueuer,
		revoker:  revoker,
		logger:   logging.WithComponent(logger, "api"),
	}
}

type createJobRequest struct {
	Mode  string `json:"mode"`
	Scope string `json:"scope"`
}

// Create handles POST /api/jobs.
func (h *JobsHandler) Create(c *gin.Context) {
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	mode, err := model.ParseMode(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	scope, err := model.ParseScope(req.Scope)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	job := &model.Job{
		UserID: userID(c),
		Mode:   mode,
		Scope:  scope,
	}
	if err := h.store.CreateJob(ctx, job); err != nil {
		h.logger.Error("creating job failed", logging.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	taskID, err := h.enqueuer.EnqueueJob(ctx, job.ID, job.UserID)
	if err != nil {
		h.logger.Error("enqueueing job failed", logging.JobID(job.ID), logging.Err(err))
		// The row exists but no worker will pick it up; close it out.
		_, _ = h.store.FinishJob(ctx, job.ID, model.StatusFailed, 0, 1,
			nil, model.JobErrors{{Error: "failed to enqueue job"}})
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue unavailable"})
		return
	}
	if err := h.store.SetJobTaskID(ctx, job.ID, taskID); err != nil {
		h.logger.Warn("recording task id failed", logging.JobID(job.ID), logging.Err(err))
	}
	job.TaskID = taskID

	h.logger.Info("job accepted",
		logging.JobID(job.ID),
		slog.String(logging.KeyMode, string(mode)),
		slog.String(logging.KeyScope, string(scope)))
	c.JSON(http.StatusAccepted, job)
}

// Get handles GET /api/jobs/:id.
func (h *JobsHandler) Get(c *gin.Context) {
	job, ok := h.ownedJob(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, job)
}

// List handles GET /api/jobs.
func (h *JobsHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	jobs, err := h.store.ListJobsByUser(c.Request.Context(), userID(c), limit)
	if err != nil {
		h.logger.Error("listing jobs failed", logging.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

// Cancel handles DELETE /api/jobs/:id. A pending job is cancelled in
// place; a running one is flagged and the worker finishes it at the
// next iteration boundary.
func (h *JobsHandler) Cancel(c *gin.Context) {
	job, ok := h.ownedJob(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if job.Status.Terminal() {
		c.JSON(http.StatusConflict, gin.H{"error": "job already finished", "status": job.Status})
		return
	}

	// Flag first so a worker claiming the job mid-request sees it.
	if err := h.revoker.Revoke(ctx, job.ID); err != nil {
		h.logger.Error("revoking job failed", logging.JobID(job.ID), logging.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if job.Status == model.StatusPending {
		if cancelled, err := h.store.CancelPendingJob(ctx, job.ID); err != nil {
			h.logger.Error("cancelling job failed", logging.JobID(job.ID), logging.Err(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		} else if cancelled {
			c.JSON(http.StatusOK, gin.H{"status": model.StatusCancelled})
			return
		}
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "cancelling"})
}

// ownedJob loads the job in :id and enforces ownership. Jobs belonging
// to other users read as not found.
func (h *JobsHandler) ownedJob(c *gin.Context) (*model.Job, bool) {
	job, err := h.store.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		} else {
			h.logger.Error("loading job failed", logging.Err(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return nil, false
	}
	if job.UserID != userID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return nil, false
	}
	return job, true
}
