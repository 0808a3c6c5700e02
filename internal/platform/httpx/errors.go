// Package httpx provides JSON response utilities and the shared error
// taxonomy used by every handler.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for the domain layer. Domain packages wrap these so a
// single RespondError call at the handler boundary picks the status code.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUpstream     = errors.New("upstream call failed")
)

// RespondError maps domain errors to HTTP responses using the standard
// envelope. Unrecognised errors become a 500 with the message surfaced.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		Fail(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrConflict):
		Fail(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrValidation):
		Fail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrForbidden):
		Fail(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrUnauthorized):
		Fail(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrUpstream):
		Fail(w, http.StatusBadGateway, err.Error())
	default:
		Fail(w, http.StatusInternalServerError, err.Error())
	}
}
