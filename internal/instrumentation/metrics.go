package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cloudidian/mailsort/internal/model"
)

// Metric attribute keys - using constants for consistency
const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrOperation = "operation"
	attrCategory  = "category"
)

// Metrics provides methods for recording observability metrics. The
// zero value is a no-op recorder.
type Metrics struct {
	// HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	// Job metrics
	jobsTotal   metric.Int64Counter
	jobDuration metric.Float64Histogram

	// Message metrics
	messagesTotal metric.Int64Counter

	// Gmail API metrics
	providerOpsTotal   metric.Int64Counter
	providerOpDuration metric.Float64Histogram
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	m.jobsTotal, err = meter.Int64Counter(
		"classification_jobs_total",
		metric.WithDescription("Total number of finished classification jobs"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create classification_jobs_total counter: %w", err)
	}

	m.jobDuration, err = meter.Float64Histogram(
		"classification_job_duration_seconds",
		metric.WithDescription("Classification job duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 1.0, 5.0, 15.0, 30.0, 60.0, 120.0, 300.0, 600.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create classification_job_duration_seconds histogram: %w", err)
	}

	m.messagesTotal, err = meter.Int64Counter(
		"messages_classified_total",
		metric.WithDescription("Total number of messages classified and labeled"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create messages_classified_total counter: %w", err)
	}

	m.providerOpsTotal, err = meter.Int64Counter(
		"gmail_api_operations_total",
		metric.WithDescription("Total number of Gmail API operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail_api_operations_total counter: %w", err)
	}

	m.providerOpDuration, err = meter.Float64Histogram(
		"gmail_api_operation_duration_seconds",
		metric.WithDescription("Gmail API operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail_api_operation_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request with method, route, status code, and duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordJob records one finished classification job with its terminal
// status and total runtime.
func (m *Metrics) RecordJob(ctx context.Context, status model.JobStatus, duration time.Duration) {
	if m.jobsTotal == nil || m.jobDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrStatus, string(status)),
	}

	m.jobsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.jobDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordMessage records one successfully classified and labeled message.
// The category set is small and fixed, so it is safe as a label.
func (m *Metrics) RecordMessage(ctx context.Context, categoryName string) {
	if m.messagesTotal == nil {
		return // Instrumentation not initialized
	}

	m.messagesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrCategory, categoryName),
	))
}

// RecordProviderCall records a Gmail API operation with its outcome and
// duration. Operation is the provider method (messages.list,
// messages.get, labels.list, labels.create, messages.modify).
func (m *Metrics) RecordProviderCall(ctx context.Context, operation string, duration time.Duration, err error) {
	if m.providerOpsTotal == nil || m.providerOpDuration == nil {
		return // Instrumentation not initialized
	}

	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	attrs := []attribute.KeyValue{
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.providerOpsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.providerOpDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
