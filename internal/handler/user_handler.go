package handler

import (
	"net/http"

	"notes-sync-client/internal/domain"
	"notes-sync-client/internal/middleware"
	"notes-sync-client/internal/service"
	"notes-sync-client/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type UserHandler struct {
	userService       *service.UserService
	preferenceService *service.PreferenceService
	validator         *validator.Validate
	logger            zerolog.Logger
}

func NewUserHandler(userService *service.UserService, preferenceService *service.PreferenceService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		userService:       userService,
		preferenceService: preferenceService,
		validator:         validator.New(),
		logger:            logger,
	}
}

func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.GetMe(r.Context(), middleware.GetUserID(r))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	response.Success(w, user)
}

func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateUserRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	user, err := h.userService.UpdateMe(r.Context(), middleware.GetUserID(r), &req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	response.Success(w, user)
}

func (h *UserHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.preferenceService.Get(r.Context()))
}

// UpdatePreferences replaces the stored preferences. Fields missing from the
// body keep their current values.
func (h *UserHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	prefs := h.preferenceService.Get(r.Context())
	if !decodeAndValidate(w, r, h.validator, &prefs) {
		return
	}

	saved, err := h.preferenceService.Update(r.Context(), prefs)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	response.Success(w, saved)
}
