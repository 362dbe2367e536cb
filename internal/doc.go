// Package internal holds the packages private to goRotate.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher and Sink implementations)
//   - config: environment configuration for the rotord service
//   - database: postgres pool and goose migrations
//   - flows: pure-function orchestration of every Engine operation
//   - httpapi: chi transport for the auth routes
//   - metrics: lock-free counters and latency histograms
//   - telemetry: OpenTelemetry tracing setup
//   - users: identity providers (in-memory and postgres)
package internal
