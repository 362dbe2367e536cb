package httpapi

import (
	"encoding/json"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"

	goRotate "github.com/MrEthical07/goRotate"
	"github.com/MrEthical07/goRotate/middleware"
)

func (a *API) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Bad request"})
		return
	}
	if err := req.Validate(); err != nil {
		var data any = err.Error()
		if errs, ok := err.(validation.Errors); ok {
			data = errs
		}
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Validation failed", Data: data})
		return
	}

	_, err := a.engine.CreateAccount(r.Context(), goRotate.CreateAccountRequest{
		FullName: req.FullName,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, r, mapError(err), err)
		return
	}

	writeJSON(w, http.StatusCreated, messageResponse{Message: "Signed Up successfully."})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Validate() != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Bad request"})
		return
	}

	pair, err := a.engine.LoginWithPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, mapError(err), err)
		return
	}

	a.writeTokens(w, "Success.", pair)
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	token, ok := refreshCookie(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, messageResponse{Message: "Not authenticated."})
		return
	}

	pair, err := a.engine.Refresh(r.Context(), token)
	if err != nil {
		if goRotate.KindOf(err) == goRotate.KindReusedToken {
			a.clearRefreshCookie(w)
		}
		writeError(w, r, mapTokenError(err), err)
		return
	}

	a.writeTokens(w, "Successfully created access token and refresh token", pair)
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, ok := refreshCookie(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, messageResponse{Message: "Not authenticated."})
		return
	}

	if err := a.engine.Logout(r.Context(), token); err != nil {
		writeError(w, r, mapTokenError(err), err)
		return
	}

	a.clearRefreshCookie(w)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Successfully logged out."})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	res, _ := middleware.AuthResultFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{
		"userId": res.UserID,
		"email":  res.Email,
	})
}
