package models

import (
	"errors"
	"time"

	"study-partner-backend/internal/geo"
)

var (
	// ErrNotFound is returned when a requested profile does not exist
	ErrNotFound = errors.New("not found")
	// ErrEmailTaken is returned when registering an email that already exists
	ErrEmailTaken = errors.New("email already registered")
	// ErrForbidden is returned when a user acts on a profile they do not own
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidInput wraps request validation failures
	ErrInvalidInput = errors.New("invalid input")
)

// Profile represents a registered study partner
type Profile struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	WhatsApp   string    `json:"whatsapp"`
	StudyTimes []string  `json:"studyTimes"`
	CEP        string    `json:"cep"`
	Level      string    `json:"level"`
	About      string    `json:"about,omitempty"`
	AvatarURL  string    `json:"avatarUrl,omitempty"`
	CreatedAt  time.Time `json:"-"`
	UpdatedAt  time.Time `json:"-"`
}

// LocationRecord is the searchable projection of a profile
type LocationRecord struct {
	UserID     string         `json:"userId"`
	Coordinate geo.Coordinate `json:"location"`
	Level      string         `json:"level"`
	StudyTimes []string       `json:"studyTimes"`
}

// LocationFor builds the location projection of a profile at the given coordinate
func LocationFor(p *Profile, c geo.Coordinate) *LocationRecord {
	return &LocationRecord{
		UserID:     p.ID,
		Coordinate: c,
		Level:      p.Level,
		StudyTimes: p.StudyTimes,
	}
}

// SearchResult is a profile returned by a search, with the distance from
// the search center set for proximity searches only
type SearchResult struct {
	*Profile
	DistanceKm *float64 `json:"distance,omitempty"`
}
