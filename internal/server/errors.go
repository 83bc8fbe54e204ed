package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/ats-analyzer/internal/analysis"
	"github.com/jonathan/ats-analyzer/internal/backend"
)

// ErrNotFound indicates an unknown analysis id
type ErrNotFound struct {
	ID string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("analysis not found: %s", e.ID)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		notFound   *ErrNotFound
		validation *analysis.ValidationError
		transport  *backend.TransportError
		parse      *backend.ParseError
	)
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.Is(err, analysis.ErrCancelled):
		return http.StatusConflict
	case errors.As(err, &transport):
		if transport.StatusCode == http.StatusBadRequest || transport.StatusCode == http.StatusUnprocessableEntity {
			return http.StatusBadRequest
		}
		return http.StatusBadGateway
	case errors.As(err, &parse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
