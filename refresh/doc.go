// Package refresh defines the refresh record model and the store contract the
// lifecycle engine rotates against.
//
// # Record model
//
// Every issued refresh token gets one [Record]. Records start unused and are
// marked used exactly once, either by the rotation that consumes them or by a
// logout. Records are never deleted here; retention is a backend concern.
// Stores keep only the SHA-256 hex digest of the token ([HashToken]).
//
// # Concurrency
//
// [Store.MarkUsed] is the single point of concurrency control: it must be a
// conditional update that reports whether it applied. Backends that cannot do
// that implement [AtomicMarker] and return false, and the engine re-checks the
// record before marking it.
//
// # Backends
//
//   - [MemoryStore]: in-process, for tests and single-node development.
//   - redisstore: Redis hashes with Lua scripts.
//   - pgstore: PostgreSQL via database/sql.
package refresh
