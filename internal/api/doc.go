// Package api is the HTTP surface: Google login, job submission,
// status and cancellation, and the category listing. Authenticated
// routes carry a bearer session token issued after the OAuth callback.
package api
