package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"notes-sync-client/internal/service"
	"notes-sync-client/pkg/hash"
	"notes-sync-client/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// decodeAndValidate reads a JSON body into dst and runs the struct's
// validate tags. It writes the 400 itself and reports whether to go on.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.BadRequest(w, "Invalid request body")
		return false
	}

	if err := v.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			response.ValidationError(w, validationDetails(verrs))
			return false
		}
		response.BadRequest(w, err.Error())
		return false
	}
	return true
}

func validationDetails(verrs validator.ValidationErrors) []string {
	details := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		if fe.Param() != "" {
			details = append(details, fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
			continue
		}
		details = append(details, fmt.Sprintf("%s failed %s", field, fe.Tag()))
	}
	return details
}

// writeServiceError maps service errors to status codes. Anything it does not
// recognize is logged and answered with a 500.
func writeServiceError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrNoteNotFound):
		response.NotFound(w, "Note not found")
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(w, "User not found")
	case errors.Is(err, service.ErrOperationNotFound):
		response.NotFound(w, "Operation not found")
	case errors.Is(err, service.ErrInvalidPagination),
		errors.Is(err, service.ErrEmptyUpdate),
		errors.Is(err, hash.ErrPasswordTooShort):
		response.BadRequest(w, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Unauthorized(w, "Invalid email or password")
	case errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrNotAuthenticated):
		response.Unauthorized(w, err.Error())
	case errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, service.ErrUsernameTaken):
		response.Conflict(w, err.Error())
	default:
		logger.Error().Err(err).Msg("request failed")
		response.InternalError(w, "Internal server error")
	}
}
