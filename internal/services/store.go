package services

import (
	"context"

	"study-partner-backend/internal/geo"
	"study-partner-backend/internal/geocode"
	"study-partner-backend/internal/models"
)

// ProfileStore persists profiles together with their location projection
type ProfileStore interface {
	FindProfiles(ctx context.Context, f models.SearchFilters) ([]*models.Profile, error)
	GetProfilesByIDs(ctx context.Context, ids []string) ([]*models.Profile, error)
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error)
	GetProfileByCredentials(ctx context.Context, email, whatsapp string) (*models.Profile, error)
	CreateProfile(ctx context.Context, p *models.Profile, coord geo.Coordinate) error
	UpdateProfile(ctx context.Context, p *models.Profile, coord *geo.Coordinate) error
}

// LocationStore queries the location projection
type LocationStore interface {
	FindLocations(ctx context.Context, f models.SearchFilters) ([]*models.LocationRecord, error)
}

// CoordinateResolver turns postal codes into coordinates
type CoordinateResolver interface {
	ResolveDetailed(ctx context.Context, postalCode string) geocode.Resolution
}
