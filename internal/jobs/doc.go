// Package jobs contains the classification job runner. A runner claims
// a queued job, lists the user's messages for the requested scope,
// classifies each one, applies the category label, checkpoints progress
// and drives the job to exactly one terminal state.
//
// The runner is written against narrow interfaces for its store,
// mailbox, cancellation and progress dependencies so the orchestration
// rules are testable without a broker or a live mailbox.
package jobs
