package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/hlog"

	goRotate "github.com/MrEthical07/goRotate"
)

const refreshCookieName = "refreshToken"

type messageResponse struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type tokenResponse struct {
	Message               string `json:"message"`
	AccessToken           string `json:"accessToken"`
	AccessTokenExpiresIn  int64  `json:"accessTokenExpiresIn"`
	RefreshTokenExpiresIn int64  `json:"refreshTokenExpiresIn"`
	UserID                string `json:"userId"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, m errorMapping, err error) {
	ev := hlog.FromRequest(r).Info()
	if m.status >= http.StatusInternalServerError {
		ev = hlog.FromRequest(r).Error()
	}
	ev.Err(err).Int("status", m.status).Msg("request failed")
	writeJSON(w, m.status, messageResponse{Message: m.message})
}

func (a *API) writeTokens(w http.ResponseWriter, message string, pair *goRotate.TokenPair) {
	a.setRefreshCookie(w, pair.RefreshToken, pair.RefreshTokenTTL)
	writeJSON(w, http.StatusOK, tokenResponse{
		Message:               message,
		AccessToken:           pair.AccessToken,
		AccessTokenExpiresIn:  pair.AccessTokenTTL.Milliseconds(),
		RefreshTokenExpiresIn: pair.RefreshTokenTTL.Milliseconds(),
		UserID:                pair.PrincipalID,
	})
}

func (a *API) setRefreshCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/api/v1/auth",
		Domain:   a.opts.CookieDomain,
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   a.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *API) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/api/v1/auth",
		Domain:   a.opts.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func refreshCookie(r *http.Request) (string, bool) {
	c, err := r.Cookie(refreshCookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}
