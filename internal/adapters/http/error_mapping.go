package httpadapter

import (
	"net/http"

	"github.com/kirillkom/fitscore/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrValidation):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrStorage):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// publicErrorMessage keeps wrapped collaborator details out of responses.
func publicErrorMessage(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrValidation):
		return "No file uploaded"
	case domain.IsKind(err, domain.ErrTemporary):
		return "service temporarily unavailable"
	case domain.IsKind(err, domain.ErrStorage):
		return "failed to store document"
	default:
		return "internal server error"
	}
}
