package handler

import (
	"errors"
	"net/http"

	"lims/internal/service"
)

// statusForError maps service-level errors onto HTTP status codes without
// leaking cause detail to the client.
func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrAccountLocked):
		return http.StatusLocked
	case errors.Is(err, service.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// messageForError returns the client-visible text. Internal errors are
// collapsed to a generic message; taxonomy errors carry their own.
func messageForError(err error) string {
	if statusForError(err) == http.StatusInternalServerError {
		return "internal error"
	}
	return err.Error()
}
