package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"study-partner-backend/internal/middleware"
	"study-partner-backend/internal/models"
	"study-partner-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// UserManager registers, authenticates and updates profiles
type UserManager interface {
	Register(ctx context.Context, req services.RegisterRequest) (*models.Profile, error)
	VerifyCredentials(ctx context.Context, email, whatsapp string) (*services.AuthResponse, error)
	UpdateProfile(ctx context.Context, callerID, userID string, req services.UpdateRequest) (*models.Profile, error)
}

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	users UserManager
}

// NewUserHandler creates a new user handler
func NewUserHandler(users UserManager) *UserHandler {
	return &UserHandler{users: users}
}

// VerifyRequest holds login credentials
type VerifyRequest struct {
	Email    string `json:"email"`
	WhatsApp string `json:"whatsapp"`
}

// Register handles POST /api/v1/users
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	profile, err := h.users.Register(r.Context(), req)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			log.Error().Err(err).Msg("Failed to register user")
			respondError(w, "Failed to register user", status)
			return
		}
		respondError(w, err.Error(), status)
		return
	}

	respondJSON(w, profile, http.StatusCreated)
}

// Verify handles POST /api/v1/users/verify
func (h *UserHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	auth, err := h.users.VerifyCredentials(r.Context(), req.Email, req.WhatsApp)
	if err != nil {
		switch status := statusFor(err); status {
		case http.StatusNotFound:
			respondError(w, "Invalid credentials", http.StatusUnauthorized)
		case http.StatusInternalServerError:
			log.Error().Err(err).Msg("Failed to verify credentials")
			respondError(w, "Failed to verify credentials", status)
		default:
			respondError(w, err.Error(), status)
		}
		return
	}

	respondJSON(w, auth, http.StatusOK)
}

// Update handles PUT /api/v1/users/{userId}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callerID := middleware.GetUserID(ctx)
	userID := chi.URLParam(r, "userId")

	var req services.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	profile, err := h.users.UpdateProfile(ctx, callerID, userID, req)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to update user")
			respondError(w, "Failed to update user", status)
			return
		}
		respondError(w, err.Error(), status)
		return
	}

	log.Info().Str("user_id", userID).Msg("User updated")
	respondJSON(w, profile, http.StatusOK)
}
