package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/MoAftaab/crm-xeno/backend/handlers"
	"github.com/MoAftaab/crm-xeno/backend/middleware"
	"github.com/MoAftaab/crm-xeno/backend/models"
	"github.com/MoAftaab/crm-xeno/backend/services"
	"github.com/MoAftaab/crm-xeno/backend/utils"
	"go.uber.org/zap"
)

// Service performs the login exchange and session lookups behind the handler
type Service interface {
	Login(ctx context.Context, idToken string) (*services.LoginResult, error)
	CurrentUser(ctx context.Context, subjectID, email string) (*models.Identity, error)
	Logout(ctx context.Context, sessionID string, expiresAt time.Time) error
}

// LoginRequest is the body of POST /api/auth/google
type LoginRequest struct {
	Token string `json:"token" validate:"required" jsonschema:"description=Google identity token"`
}

// MeResponse is the body of GET /api/auth/me
type MeResponse struct {
	User models.Identity `json:"user"`
}

// Handler handles Google sign-in and session endpoints
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler creates a new auth handler
func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// HandleGoogleLogin exchanges a Google identity token for a session credential
func (h *Handler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		handlers.HandleValidationError(w, err, h.logger)
		return
	}

	result, err := h.service.Login(r.Context(), req.Token)
	if err != nil {
		h.logger.Warn("login failed",
			zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
			zap.Error(err))
		handlers.HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("failed to write login response", zap.Error(err))
	}
}

// HandleMe returns the authenticated user. Mounted behind RequireAuth.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		_ = utils.WriteUnauthorized(w, middleware.UnauthenticatedMessage)
		return
	}

	user, err := h.service.CurrentUser(r.Context(), identity.SubjectID, identity.Email)
	if err != nil {
		handlers.HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteJSON(w, http.StatusOK, MeResponse{User: *user}); err != nil {
		h.logger.Error("failed to write me response", zap.Error(err))
	}
}

// HandleLogout revokes the presented credential. Mounted behind RequireAuth.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		_ = utils.WriteUnauthorized(w, middleware.UnauthenticatedMessage)
		return
	}

	if err := h.service.Logout(r.Context(), identity.SessionID, identity.ExpiresAt); err != nil {
		handlers.HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("user signed out", zap.String("subject_id", identity.SubjectID))
	utils.WriteNoContent(w)
}
