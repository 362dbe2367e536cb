// Package httpapi serves the goRotate engine over HTTP.
//
// Routes live under /api/v1/auth: signup, login, refreshAccessToken, logout
// and a guarded /me endpoint. Refresh tokens travel only in the HTTP-only
// refreshToken cookie; access tokens are returned in the JSON body and
// presented as bearer tokens.
package httpapi
