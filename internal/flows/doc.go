// Package flows contains the orchestration behind every Engine operation.
//
// Each flow function (RunLogin, RunRefresh, RunLogout, RunValidate) accepts a
// typed dependency struct and returns a result carrying a failure kind. The
// root package maps failure kinds to public errors, metrics and audit events.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goRotate (to avoid import cycles).
//   - Perform I/O directly. All I/O goes through the refresh store and the
//     principal lookup passed in the deps.
package flows
