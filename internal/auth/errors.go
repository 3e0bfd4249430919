package auth

import (
	"errors"
	"net/http"
)

// Authentication and authorization failures. Wrapped errors keep their
// sentinel so callers can match with errors.Is.
var (
	ErrNoToken        = errors.New("no token provided")
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenRevoked   = errors.New("token revoked")
	ErrUserNotFound   = errors.New("user not found")
	ErrStore          = errors.New("user store unavailable")
	ErrForbidden      = errors.New("forbidden")
	ErrOriginRejected = errors.New("origin not allowed")
)

// StatusCode maps an error from this package to its HTTP status.
// Unknown errors are treated as internal faults.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrStore):
		return http.StatusInternalServerError
	case errors.Is(err, ErrNoToken),
		errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrTokenRevoked),
		errors.Is(err, ErrUserNotFound):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrOriginRejected):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Code returns a stable machine-readable code for err.
func Code(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrStore):
		return "store_error"
	case errors.Is(err, ErrNoToken):
		return "no_token"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, ErrTokenRevoked):
		return "token_revoked"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrOriginRejected):
		return "origin_rejected"
	default:
		return "internal_error"
	}
}

// IsRejection reports whether err is a definitive credential rejection,
// as opposed to an infrastructure fault.
func IsRejection(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}

var sentinels = []error{
	ErrStore, ErrNoToken, ErrInvalidToken, ErrTokenExpired, ErrTokenRevoked,
	ErrUserNotFound, ErrForbidden, ErrOriginRejected,
}

// Message returns the client-safe text for err: the matching sentinel's
// message without any wrapped detail.
func Message(err error) string {
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal server error"
}
