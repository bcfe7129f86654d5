// Package classify assigns a category to an email. Classification is a
// two-stage decision: a deterministic keyword-rule pass evaluated in a
// fixed priority order, then an optional trained predictor consulted only
// for the BALANCED and ACCURATE modes when no rule matched. The common
// case stays cheap and deterministic; model-based refinement is an
// explicit opt-in. Classification never fails: if both stages produce
// nothing the fallback category is returned.
package classify
