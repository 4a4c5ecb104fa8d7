// Package backend is the typed client for the persistence collaborator,
// layered on the gateway.
package backend

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jikime/music-player-app-sub000/internal/infra/gateway"
)

// Error taxonomy for backend operations. Callers classify with errors.Is.
var (
	// ErrValidation is malformed input, caught before or by the backend.
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized is a missing or invalid session on a write path.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is an ownership violation.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound is a missing entity.
	ErrNotFound = errors.New("not found")

	// ErrConflict is a uniqueness violation (duplicate bookmark,
	// duplicate playlist entry). Recoverable: the operation is a no-op
	// from the data perspective.
	ErrConflict = errors.New("conflict")
)

// APIError carries the backend's HTTP status and body alongside the
// taxonomy sentinel it unwraps to.
type APIError struct {
	Status int
	Body   string
	kind   error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend: %v (status %d)", e.kind, e.Status)
}

func (e *APIError) Unwrap() error {
	return e.kind
}

// classify maps a gateway error onto the taxonomy. Transient failures that
// exhausted their retries pass through unmodified.
func classify(err error) error {
	var serr *gateway.StatusError
	if !errors.As(err, &serr) {
		return err
	}

	var kind error
	switch serr.Status {
	case http.StatusBadRequest:
		kind = ErrValidation
	case http.StatusUnauthorized:
		kind = ErrUnauthorized
	case http.StatusForbidden:
		kind = ErrForbidden
	case http.StatusNotFound:
		kind = ErrNotFound
	case http.StatusConflict:
		kind = ErrConflict
	default:
		return err
	}

	return &APIError{Status: serr.Status, Body: string(serr.Body), kind: kind}
}
