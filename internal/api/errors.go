package api

import (
	"errors"
	"net/http"

	"cellar/internal/services"
)

// HTTPStatus maps a service error to the status code the HTTP layer returns.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConflict), errors.Is(err, services.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrProviderUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, services.ErrProviderError):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// NewErrorResponse builds the body for err.
func NewErrorResponse(err error) ErrorResponse {
	if err == nil {
		return ErrorResponse{}
	}
	return ErrorResponse{Error: err.Error(), Kind: services.Kind(err)}
}
