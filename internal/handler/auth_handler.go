package handler

import (
	"net/http"

	"notes-sync-client/internal/domain"
	"notes-sync-client/internal/service"
	"notes-sync-client/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type AuthHandler struct {
	authService *service.AuthService
	validator   *validator.Validate
	logger      zerolog.Logger
}

func NewAuthHandler(authService *service.AuthService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validator:   validator.New(),
		logger:      logger,
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	user, err := h.authService.Register(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	response.Created(w, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	loginResp, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	response.Success(w, loginResp)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req domain.RefreshTokenRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	tokenResp, err := h.authService.RefreshToken(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	response.Success(w, tokenResp)
}

// Logout clears the session cache: token, profile, notes and queued work.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.authService.Logout(r.Context()); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	response.Success(w, map[string]string{"message": "Logged out"})
}
