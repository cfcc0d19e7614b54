package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"slices"
	"strings"
	"time"

	"study-partner-backend/internal/geo"
	"study-partner-backend/internal/geocode"
	"study-partner-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultTokenTTL is the lifetime of issued tokens when none is configured
const DefaultTokenTTL = 30 * 24 * time.Hour

// UserService handles profile registration, credential checks and updates
type UserService struct {
	store     ProfileStore
	resolver  CoordinateResolver
	jwtSecret string
	tokenTTL  time.Duration
	now       func() time.Time
}

// NewUserService creates a new user service
func NewUserService(store ProfileStore, resolver CoordinateResolver, jwtSecret string, tokenTTL time.Duration) *UserService {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	return &UserService{
		store:     store,
		resolver:  resolver,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		now:       time.Now,
	}
}

// RegisterRequest holds the fields of a new profile
type RegisterRequest struct {
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	WhatsApp   string   `json:"whatsapp"`
	StudyTimes []string `json:"studyTimes"`
	CEP        string   `json:"cep"`
	Level      string   `json:"level"`
	About      string   `json:"about"`
	AvatarURL  string   `json:"avatarUrl"`
}

// UpdateRequest holds the profile fields to change; nil fields are left as is
type UpdateRequest struct {
	Name       *string  `json:"name"`
	WhatsApp   *string  `json:"whatsapp"`
	StudyTimes []string `json:"studyTimes"`
	CEP        *string  `json:"cep"`
	Level      *string  `json:"level"`
	About      *string  `json:"about"`
}

// AuthResponse is returned after successful credential verification
type AuthResponse struct {
	User  *models.Profile `json:"user"`
	Token string          `json:"token"`
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", models.ErrInvalidInput, msg)
}

func (r *RegisterRequest) validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	r.WhatsApp = strings.TrimSpace(r.WhatsApp)

	if r.Name == "" || r.Email == "" || r.WhatsApp == "" || r.CEP == "" || r.Level == "" || r.About == "" {
		return invalid("name, email, whatsapp, cep, level and about are required")
	}
	if len(r.StudyTimes) == 0 {
		return invalid("at least one study time is required")
	}
	if addr, err := mail.ParseAddress(r.Email); err != nil || addr.Address != r.Email {
		return invalid("malformed email")
	}
	if !geocode.ValidPostalCode(r.CEP) {
		return invalid("malformed cep")
	}
	return nil
}

func (r *UpdateRequest) validate() error {
	if r.StudyTimes != nil && len(r.StudyTimes) == 0 {
		return invalid("at least one study time is required")
	}
	if r.CEP != nil && !geocode.ValidPostalCode(*r.CEP) {
		return invalid("malformed cep")
	}
	return nil
}

// defaultAvatarURL returns a generated avatar for profiles registered without one
func defaultAvatarURL(email string) string {
	return "https://robohash.org/" + url.PathEscape(email) + "?set=set3&size=200x200"
}

// Register creates a profile and its location record
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*models.Profile, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	if _, err := s.store.GetProfileByEmail(ctx, req.Email); err == nil {
		return nil, models.ErrEmailTaken
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	res := s.resolver.ResolveDetailed(ctx, req.CEP)

	now := s.now()
	profile := &models.Profile{
		ID:         uuid.New().String(),
		Name:       req.Name,
		Email:      req.Email,
		WhatsApp:   req.WhatsApp,
		StudyTimes: req.StudyTimes,
		CEP:        req.CEP,
		Level:      req.Level,
		About:      req.About,
		AvatarURL:  req.AvatarURL,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if profile.AvatarURL == "" {
		profile.AvatarURL = defaultAvatarURL(profile.Email)
	}

	if err := s.store.CreateProfile(ctx, profile, res.Coordinate); err != nil {
		if errors.Is(err, models.ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	log.Info().
		Str("user_id", profile.ID).
		Str("geocode_source", string(res.Source)).
		Msg("Profile registered")

	return profile, nil
}

// VerifyCredentials returns the profile matching email and whatsapp with a signed token
func (s *UserService) VerifyCredentials(ctx context.Context, email, whatsapp string) (*AuthResponse, error) {
	email, whatsapp = strings.TrimSpace(email), strings.TrimSpace(whatsapp)
	if email == "" || whatsapp == "" {
		return nil, invalid("email and whatsapp are required")
	}

	profile, err := s.store.GetProfileByCredentials(ctx, email, whatsapp)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to verify credentials: %w", err)
	}

	token, err := s.GenerateJWT(profile.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &AuthResponse{User: profile, Token: token}, nil
}

// UpdateProfile applies req to the profile owned by callerID. The location
// record is rewritten with the profile, and re-geocoded when the CEP changes.
func (s *UserService) UpdateProfile(ctx context.Context, callerID, userID string, req UpdateRequest) (*models.Profile, error) {
	if callerID != userID {
		return nil, models.ErrForbidden
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	if req.Name != nil && *req.Name != "" {
		profile.Name = *req.Name
	}
	if req.WhatsApp != nil && *req.WhatsApp != "" {
		profile.WhatsApp = *req.WhatsApp
	}
	if req.Level != nil && *req.Level != "" {
		profile.Level = *req.Level
	}
	if req.About != nil && *req.About != "" {
		profile.About = *req.About
	}
	if req.StudyTimes != nil {
		profile.StudyTimes = slices.Clone(req.StudyTimes)
	}

	var coord *geo.Coordinate
	if req.CEP != nil && geocode.NormalizePostalCode(*req.CEP) != geocode.NormalizePostalCode(profile.CEP) {
		res := s.resolver.ResolveDetailed(ctx, *req.CEP)
		coord = &res.Coordinate
		profile.CEP = *req.CEP
	}

	profile.UpdatedAt = s.now()
	if err := s.store.UpdateProfile(ctx, profile, coord); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	return profile, nil
}

// GenerateJWT generates a JWT token for a user
func (s *UserService) GenerateJWT(userID string) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     now.Add(s.tokenTTL).Unix(),
		"iat":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT validates a JWT token and returns the user ID
func (s *UserService) ValidateJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	userID, ok := claims["user_id"].(string)
	if !ok {
		return "", fmt.Errorf("user_id not found in token")
	}

	return userID, nil
}
