package services

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"study-partner-backend/internal/models"
)

func TestPresignUpload(t *testing.T) {
	store := newMemoryStore()
	store.add(profile("user-1", "beginner"), saoPaulo)

	svc, err := NewAvatarService(context.Background(), store, AvatarConfig{
		Region:    "us-east-1",
		Bucket:    "avatars-bucket",
		AccessKey: "test-access",
		SecretKey: "test-secret",
		Endpoint:  "http://localhost:9000",
	})
	if err != nil {
		t.Fatalf("NewAvatarService: %v", err)
	}

	resp, err := svc.PresignUpload(context.Background(), "user-1", "image/png")
	if err != nil {
		t.Fatalf("PresignUpload: %v", err)
	}
	if resp.ExpiresIn != 300 {
		t.Errorf("Expected 300s expiry, got %d", resp.ExpiresIn)
	}

	u, err := url.Parse(resp.UploadURL)
	if err != nil {
		t.Fatalf("parse upload url: %v", err)
	}
	if u.Host != "localhost:9000" || !strings.HasPrefix(u.Path, "/avatars-bucket/avatars/user-1/") {
		t.Errorf("Expected path-style URL on custom endpoint, got %s", resp.UploadURL)
	}
	if !strings.HasSuffix(u.Path, ".png") {
		t.Errorf("Expected .png key, got %s", u.Path)
	}
	if !strings.HasPrefix(resp.AvatarURL, "http://localhost:9000/avatars-bucket/avatars/user-1/") {
		t.Errorf("Unexpected avatar url %s", resp.AvatarURL)
	}
	if store.profiles["user-1"].AvatarURL != resp.AvatarURL {
		t.Error("Expected profile avatar url to be updated")
	}
}

func TestPresignUploadErrors(t *testing.T) {
	svc, err := NewAvatarService(context.Background(), newMemoryStore(), AvatarConfig{
		Region:    "us-east-1",
		Bucket:    "avatars-bucket",
		AccessKey: "test-access",
		SecretKey: "test-secret",
	})
	if err != nil {
		t.Fatalf("NewAvatarService: %v", err)
	}

	if _, err := svc.PresignUpload(context.Background(), "user-1", "application/pdf"); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for pdf, got %v", err)
	}
	if _, err := svc.PresignUpload(context.Background(), "missing", "image/jpeg"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
