// Package queue connects the API and the workers. Job tasks travel
// over a durable RabbitMQ topic exchange with manual acknowledgement;
// cancellation flags and best-effort progress events go through Redis,
// which both sides can reach without broker round-trips.
package queue
