// Package middleware exposes net/http adapters that enforce access tokens
// issued by goRotate.Engine.
//
// # Guards
//
//   - [Guard] rejects requests without a valid bearer access token.
//   - [Optional] attaches the identity when a valid token is present.
//
// Both read the Authorization header, call Engine.ValidateAccess and store the
// resulting [goRotate.AuthResult] in the request context. Access validation is
// stateless, so neither guard touches the refresh store.
package middleware
