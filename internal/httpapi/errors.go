package httpapi

import (
	"net/http"

	goRotate "github.com/MrEthical07/goRotate"
)

// StatusTokenInvalid is the non-standard status answered for a reused
// refresh token.
const StatusTokenInvalid = 498

type errorMapping struct {
	status  int
	message string
}

var errorTable = map[goRotate.ErrorKind]errorMapping{
	goRotate.KindInvalidToken:       {http.StatusUnauthorized, "Not authenticated."},
	goRotate.KindUnknownToken:       {http.StatusUnauthorized, "Not authenticated."},
	goRotate.KindReusedToken:        {StatusTokenInvalid, "Refresh token has already been used"},
	goRotate.KindUnknownPrincipal:   {http.StatusNotFound, "Email does not exists."},
	goRotate.KindPersistence:        {http.StatusServiceUnavailable, "Service temporarily unavailable."},
	goRotate.KindValidationFailed:   {http.StatusBadRequest, "Bad request"},
	goRotate.KindInvalidCredentials: {http.StatusUnauthorized, "Incorrect Password."},
	goRotate.KindAccountExists:      {http.StatusConflict, "E-mail address already exists"},
}

var internalError = errorMapping{http.StatusInternalServerError, "Something went wrong."}

func mapError(err error) errorMapping {
	if m, ok := errorTable[goRotate.KindOf(err)]; ok {
		return m
	}
	return internalError
}

// mapTokenError applies to cookie-driven routes, where a vanished principal
// is a token failure rather than a lookup miss.
func mapTokenError(err error) errorMapping {
	if goRotate.KindOf(err) == goRotate.KindUnknownPrincipal {
		return errorTable[goRotate.KindInvalidToken]
	}
	return mapError(err)
}
