package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"study-partner-backend/internal/middleware"
	"study-partner-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// AvatarUploader issues avatar upload URLs
type AvatarUploader interface {
	PresignUpload(ctx context.Context, userID, contentType string) (*services.UploadResponse, error)
}

// AvatarHandler handles avatar upload requests
type AvatarHandler struct {
	avatars AvatarUploader
}

// NewAvatarHandler creates a new avatar handler
func NewAvatarHandler(avatars AvatarUploader) *AvatarHandler {
	return &AvatarHandler{avatars: avatars}
}

// AvatarUploadRequest represents a request for an upload URL
type AvatarUploadRequest struct {
	ContentType string `json:"content_type"`
}

// Upload handles POST /api/v1/users/{userId}/avatar
func (h *AvatarHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userId")
	if middleware.GetUserID(ctx) != userID {
		respondError(w, "forbidden", http.StatusForbidden)
		return
	}

	var req AvatarUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ContentType == "" {
		req.ContentType = "image/jpeg"
	}

	response, err := h.avatars.PresignUpload(ctx, userID, req.ContentType)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			log.Error().
				Err(err).
				Str("user_id", userID).
				Str("content_type", req.ContentType).
				Msg("Failed to generate pre-signed URL")
			respondError(w, "Failed to generate upload URL", status)
			return
		}
		respondError(w, err.Error(), status)
		return
	}

	log.Info().Str("user_id", userID).Msg("Avatar upload URL issued")
	respondJSON(w, response, http.StatusOK)
}
