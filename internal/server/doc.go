// Package server hosts the operational HTTP surface shared by the API
// and worker processes: the Prometheus metrics listener on its own
// port and the Kubernetes liveness and readiness probes, with
// per-dependency pings for the database, broker and Redis.
package server
