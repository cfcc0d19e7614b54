package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"study-partner-backend/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const avatarURLExpiry = 5 * time.Minute

var avatarExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

// AvatarConfig holds the object storage settings for avatar uploads
type AvatarConfig struct {
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	// Endpoint points at S3-compatible storage and switches to path-style addressing
	Endpoint string
}

// AvatarService issues pre-signed upload URLs for profile pictures
type AvatarService struct {
	store    ProfileStore
	s3Client *s3.Client
	cfg      AvatarConfig
}

// NewAvatarService creates a new avatar service
func NewAvatarService(ctx context.Context, store ProfileStore, cfg AvatarConfig) (*AvatarService, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &AvatarService{
		store:    store,
		s3Client: s3Client,
		cfg:      cfg,
	}, nil
}

// UploadResponse represents the response with pre-signed URL
type UploadResponse struct {
	UploadURL string `json:"upload_url"`
	AvatarURL string `json:"avatar_url"`
	ExpiresIn int    `json:"expires_in"`
}

// PresignUpload generates a pre-signed URL for uploading an avatar and
// points the profile at the object it will create
func (s *AvatarService) PresignUpload(ctx context.Context, userID, contentType string) (*UploadResponse, error) {
	ext, ok := avatarExtensions[contentType]
	if !ok {
		return nil, invalid("unsupported content type " + contentType)
	}

	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	key := fmt.Sprintf("avatars/%s/%s.%s", userID, uuid.New().String(), ext)

	presignClient := s3.NewPresignClient(s.s3Client)
	request, err := presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = avatarURLExpiry
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate pre-signed URL: %w", err)
	}

	profile.AvatarURL = s.objectURL(key)
	profile.UpdatedAt = time.Now()
	if err := s.store.UpdateProfile(ctx, profile, nil); err != nil {
		return nil, fmt.Errorf("failed to update avatar url: %w", err)
	}

	return &UploadResponse{
		UploadURL: request.URL,
		AvatarURL: profile.AvatarURL,
		ExpiresIn: int(avatarURLExpiry.Seconds()),
	}, nil
}

func (s *AvatarService) objectURL(key string) string {
	if s.cfg.Endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.cfg.Endpoint, "/"), s.cfg.Bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, key)
}
