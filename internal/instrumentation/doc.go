// Package instrumentation provides OpenTelemetry instrumentation for
// the mailsort services.
//
// This package enables production-grade observability through:
//   - OpenTelemetry metrics for HTTP requests, classification jobs, and Gmail API calls
//   - Prometheus metrics export via /metrics endpoint on a dedicated port
//
// # Metrics
//
// The package exposes the following metric categories:
//
// Server/HTTP Metrics:
//   - http_requests_total: Counter of HTTP requests by method, route, and status
//   - http_request_duration_seconds: Histogram of HTTP request durations
//
// Job Metrics:
//   - classification_jobs_total: Counter of finished jobs by terminal status
//   - classification_job_duration_seconds: Histogram of job runtimes
//   - messages_classified_total: Counter of labeled messages by category
//
// Gmail API Metrics:
//   - gmail_api_operations_total: Counter of Gmail API operations by operation and status
//   - gmail_api_operation_duration_seconds: Histogram of Gmail API operation durations
//
// # Configuration
//
// Instrumentation can be configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - OTEL_SERVICE_NAME: Service name (default: mailsort)
//   - OTEL_SERVICE_INSTANCE_ID: Instance identifier (default: hostname)
//   - PROMETHEUS_ENDPOINT: Metrics endpoint path (default: /metrics)
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.Config{
//		ServiceName:    "mailsort",
//		ServiceVersion: "0.1.0",
//		Enabled:        true,
//	})
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	recorder := provider.Metrics()
//	recorder.RecordHTTPRequest(ctx, "POST", "/api/jobs", 202, time.Since(start))
//	recorder.RecordProviderCall(ctx, "messages.list", time.Since(start), nil)
package instrumentation
