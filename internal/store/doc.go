// Package store persists users, jobs and the category catalog. It speaks
// SQLite (the development default) or PostgreSQL, selected by the
// DATABASE_URL scheme. Job updates are partial by design: status,
// progress checkpoints, tokens and error lists each have their own
// statement so concurrent writers never clobber unrelated fields.
package store
