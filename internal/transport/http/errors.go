package http

import (
	"errors"
	"net/http"

	"caseboard-service/internal/domain"
	"github.com/rs/zerolog/log"
)

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) (int, errorBody) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, errorBody{Error: verr.Error(), Field: verr.Field}
	case errors.Is(err, domain.ErrDuplicateSubmission):
		return http.StatusConflict, errorBody{Error: domain.ErrDuplicateSubmission.Error()}
	case domain.IsNotFound(err):
		return http.StatusNotFound, errorBody{Error: err.Error()}
	default:
		log.Error().Err(err).Msg("request failed")
		return http.StatusInternalServerError, errorBody{Error: "internal error"}
	}
}
