// Package gmailapi provides the Gmail provider client used by
// classification jobs.
//
// The package covers:
//   - Message listing with scope-based queries, pagination and a hard
//     result cap
//   - Full message fetching with plain-text body extraction
//   - Label resolution and application with a per-job name cache
//   - A shared provider rate limiter and a transient-error retry policy
//
// All calls go through one process-wide rate limiter so concurrently
// running jobs share the provider quota. Transient provider errors
// (rate limiting, 5xx, network timeouts) are retried with exponential
// backoff; permanent errors surface immediately.
//
// Example usage:
//
//	limiter := gmailapi.NewLimiter(10)
//	svc, err := gmailapi.NewService(ctx, tokenSource, limiter)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ids, err := svc.List(ctx, model.ScopeUnread, 500)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	labels := svc.NewLabelManager()
//	labelID, err := labels.ResolveOrCreate(ctx, "Cloudidian/Work")
package gmailapi
