package errs

import (
	"errors"
	"net/http"
)

// HTTPStatus maps an error to the status and code written to API clients.
// Unknown errors map to 500/internal_error.
func HTTPStatus(err error) (int, string) {
	var (
		notFound   *NotFoundError
		exists     *AlreadyExistsError
		validation *ValidationError
		configErr  *ConfigurationError
		transient  *TransientIOError
		socket     *SocketError
		external   *ExternalServiceError
	)
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &exists):
		return http.StatusConflict, "already_exists"
	case errors.As(err, &validation), errors.As(err, &configErr):
		return http.StatusBadRequest, "invalid_input"
	case errors.As(err, &transient), errors.As(err, &socket):
		return http.StatusBadGateway, "source_unavailable"
	case errors.As(err, &external):
		if external.Transient {
			return http.StatusServiceUnavailable, "service_unavailable"
		}
		return http.StatusBadGateway, "service_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
