package middleware

import (
	"context"
	"net/http"
	"strings"

	goRotate "github.com/MrEthical07/goRotate"
)

// AccessValidator verifies access tokens. *goRotate.Engine implements it.
type AccessValidator interface {
	ValidateAccess(ctx context.Context, token string) (*goRotate.AuthResult, error)
}

type authResultContextKey struct{}

// AuthResultFromContext returns the identity attached by [Guard] or [Optional].
func AuthResultFromContext(ctx context.Context) (*goRotate.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*goRotate.AuthResult)
	return res, ok && res != nil
}

// UserIDFromContext returns the authenticated user id, or "" when the request
// carried no valid access token.
func UserIDFromContext(ctx context.Context) string {
	if res, ok := AuthResultFromContext(ctx); ok {
		return res.UserID
	}
	return ""
}

// Guard rejects requests without a valid bearer access token with 401 and
// injects the verified identity into the request context otherwise.
func Guard(v AccessValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			res, err := v.ValidateAccess(r.Context(), token)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
