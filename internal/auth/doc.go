// Package auth owns everything identity-related: the Google OAuth
// authorization-code flow, encrypted at-rest storage of provider
// tokens, refreshing token sources for background jobs, and the JWT
// session tokens the HTTP API issues to browsers.
//
// Provider tokens never touch the database in the clear; TokenCipher
// seals them with AES-256-GCM under a key from the environment.
package auth
