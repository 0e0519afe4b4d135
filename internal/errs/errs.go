// internal/errs/errs.go
package errs

import (
	"errors"
	"net/http"
)

// Sentinel errors for the lending engine. Services wrap these with context
// via fmt.Errorf("...: %w", ...); handlers map them to HTTP statuses.
var (
	// ErrNotFound signals that a referenced copy, loan, member or entry does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation signals invalid input detected before any mutation,
	// e.g. a missing borrower for a non-book category or malformed counters.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidState signals an illegal loan state transition.
	ErrInvalidState = errors.New("invalid state transition")

	// ErrConflict signals that stock became unavailable between check and
	// commit. The caller decides whether to retry or enqueue on the waitlist.
	ErrConflict = errors.New("conflict")
)

// HTTPStatus maps an engine error to the status code the existing API
// consumers expect. Unknown errors are treated as internal.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidState):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
