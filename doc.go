// Package goRotate issues HS256 access/refresh token pairs and rotates refresh
// tokens with single-use enforcement and reuse detection.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goRotate is the public surface. It exposes [Engine], [Builder], [Config], and value types
// ([TokenPair], [AuthResult], MetricsSnapshot). Flow orchestration, audit dispatch and
// metric storage live under internal/ and are never exported. Refresh records are kept
// in a caller-supplied [refresh.Store].
//
// # What this package must NOT do
//
//   - Read environment variables or any other ambient configuration.
//   - Retry store operations; storage failures surface as [ErrPersistence].
//   - Hold a lock across store calls. The store's conditional MarkUsed is the only
//     serialization point between concurrent rotations.
//
// # Performance contract
//
// ValidateAccess is the hot path. It performs no store round-trips. Login performs one
// store write, Refresh one read and two writes (three for stores that are not atomic).
package goRotate
