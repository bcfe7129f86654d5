// Package logging provides structured logging helpers built on log/slog.
// It defines the canonical attribute keys used across the codebase so
// that log lines from the API, the worker and the Gmail client can be
// correlated, and utilities to log user identifiers without exposing PII.
package logging
