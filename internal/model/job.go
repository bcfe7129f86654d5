package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JobStatus represents the lifecycle state of a classification job.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status is absorbing. A job never leaves a
// terminal state.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// ModelMode selects the classification quality tier. FAST runs the rule
// pass only; BALANCED and ACCURATE additionally consult the trained
// predictor when no rule matches.
type ModelMode string

const (
	ModeFast     ModelMode = "fast"
	ModeBalanced ModelMode = "balanced"
	ModeAccurate ModelMode = "accurate"
)

// ParseMode validates a mode string supplied by an API caller.
func ParseMode(s string) (ModelMode, error) {
	switch ModelMode(s) {
	case ModeFast, ModeBalanced, ModeAccurate:
		return ModelMode(s), nil
	}
	return "", fmt.Errorf("invalid mode %q", s)
}

// EmailScope selects which subset of the mailbox a job enumerates.
type EmailScope string

const (
	ScopeUnread EmailScope = "unread"
	ScopeInbox  EmailScope = "inbox"
	ScopeRecent EmailScope = "recent"
	ScopeAll    EmailScope = "all"
)

// ParseScope validates a scope string supplied by an API caller.
func ParseScope(s string) (EmailScope, error) {
	switch EmailScope(s) {
	case ScopeUnread, ScopeInbox, ScopeRecent, ScopeAll:
		return EmailScope(s), nil
	}
	return "", fmt.Errorf("invalid scope %q", s)
}

// MaxStoredErrors bounds the number of per-message error records persisted
// on a job. ErrorCount keeps counting past the cap.
const MaxStoredErrors = 100

// JobError records a single per-message failure. MessageID is empty for
// the synthetic entry written when a job fails as a whole.
type JobError struct {
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error"`
}

// CategoryCounts maps category name to the number of messages labeled with
// it. Stored as a JSON text column.
type CategoryCounts map[string]int

// Value implements driver.Valuer.
func (c CategoryCounts) Value() (driver.Value, error) {
	if c == nil {
		return "{}", nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (c *CategoryCounts) Scan(src any) error {
	return scanJSON(src, c, "{}")
}

// JobErrors is the bounded ordered error list stored on a job, as a JSON
// text column.
type JobErrors []JobError

// Value implements driver.Valuer.
func (e JobErrors) Value() (driver.Value, error) {
	if e == nil {
		return "[]", nil
	}
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (e *JobErrors) Scan(src any) error {
	return scanJSON(src, e, "[]")
}

func scanJSON(src, dst any, empty string) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		data = []byte(empty)
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSON column", src)
	}
	if len(data) == 0 {
		data = []byte(empty)
	}
	return json.Unmarshal(data, dst)
}

// Job is one asynchronous classification run over a user's mailbox.
//
// Invariants: ProcessedMessages never exceeds TotalMessages once the total
// is set, and Status transitions are monotonic (no transition out of a
// terminal state). All mutation happens in the worker executing the job;
// API callers only read.
type Job struct {
	ID                string         `db:"id" json:"id"`
	UserID            string         `db:"user_id" json:"user_id"`
	Status            JobStatus      `db:"status" json:"status"`
	Mode              ModelMode      `db:"mode" json:"mode"`
	Scope             EmailScope     `db:"scope" json:"scope"`
	TotalMessages     int            `db:"total_messages" json:"total_messages"`
	ProcessedMessages int            `db:"processed_messages" json:"processed_messages"`
	ErrorCount        int            `db:"error_count" json:"error_count"`
	CategoryCounts    CategoryCounts `db:"category_counts" json:"category_counts"`
	Errors            JobErrors      `db:"errors" json:"errors,omitempty"`
	TaskID            string         `db:"task_id" json:"task_id,omitempty"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updated_at"`
	CompletedAt       *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
}
