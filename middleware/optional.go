package middleware

import (
	"context"
	"net/http"
)

// Optional attaches the identity of a valid bearer token when one is present
// and passes every request through. Handlers use [AuthResultFromContext] to
// tell anonymous callers apart.
func Optional(v AccessValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v != nil {
				if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
					if res, err := v.ValidateAccess(r.Context(), token); err == nil {
						r = r.WithContext(context.WithValue(r.Context(), authResultContextKey{}, res))
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
