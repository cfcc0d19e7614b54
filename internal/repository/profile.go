package repository

import (
	"context"
	"errors"
	"fmt"

	"study-partner-backend/internal/geo"
	"study-partner-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const profileColumns = `id, name, email, whatsapp, study_times, cep, level, about, avatar_url, created_at, updated_at`

// uniqueViolation is the PostgreSQL error code for unique constraint failures
const uniqueViolation = "23505"

// ProfileRepository handles database operations for profiles and their
// location projection
type ProfileRepository struct {
	db *pgxpool.Pool
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// CreateProfile inserts a profile and its location in one transaction
func (r *ProfileRepository) CreateProfile(ctx context.Context, p *models.Profile, coord geo.Coordinate) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO profiles (`+profileColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, p.ID, p.Name, p.Email, p.WhatsApp, textArray(p.StudyTimes), p.CEP, p.Level, p.About, p.AvatarURL, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return models.ErrEmailTaken
		}
		return fmt.Errorf("failed to create profile: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO locations (user_id, latitude, longitude, level, study_times)
		VALUES ($1, $2, $3, $4, $5)
	`, p.ID, coord.Latitude, coord.Longitude, p.Level, textArray(p.StudyTimes))
	if err != nil {
		return fmt.Errorf("failed to create location: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit profile: %w", err)
	}
	return nil
}

// UpdateProfile rewrites a profile and syncs its location projection in one
// transaction. The stored coordinate is replaced only when coord is non-nil.
func (r *ProfileRepository) UpdateProfile(ctx context.Context, p *models.Profile, coord *geo.Coordinate) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `
		UPDATE profiles
		SET name = $2, email = $3, whatsapp = $4, study_times = $5, cep = $6,
		    level = $7, about = $8, avatar_url = $9, updated_at = $10
		WHERE id = $1
	`, p.ID, p.Name, p.Email, p.WhatsApp, textArray(p.StudyTimes), p.CEP, p.Level, p.About, p.AvatarURL, p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return models.ErrEmailTaken
		}
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	var lat, lon *float64
	if coord != nil {
		lat, lon = &coord.Latitude, &coord.Longitude
	}
	_, err = tx.Exec(ctx, `
		UPDATE locations
		SET level = $2, study_times = $3,
		    latitude = COALESCE($4, latitude), longitude = COALESCE($5, longitude)
		WHERE user_id = $1
	`, p.ID, p.Level, textArray(p.StudyTimes), lat, lon)
	if err != nil {
		return fmt.Errorf("failed to update location: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit profile: %w", err)
	}
	return nil
}

// GetProfile retrieves a profile by ID
func (r *ProfileRepository) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	return r.getOne(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
}

// GetProfileByEmail retrieves a profile by email
func (r *ProfileRepository) GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	return r.getOne(ctx, `SELECT `+profileColumns+` FROM profiles WHERE email = $1`, email)
}

// GetProfileByCredentials retrieves the profile matching both email and WhatsApp number
func (r *ProfileRepository) GetProfileByCredentials(ctx context.Context, email, whatsapp string) (*models.Profile, error) {
	return r.getOne(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE email = $1 AND whatsapp = $2`,
		email, whatsapp,
	)
}

// FindProfiles returns profiles matching the level and study time filters
func (r *ProfileRepository) FindProfiles(ctx context.Context, f models.SearchFilters) ([]*models.Profile, error) {
	where, args := filterClause(f, nil)
	rows, err := r.db.Query(ctx, `SELECT `+profileColumns+` FROM profiles`+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	return collectProfiles(rows)
}

// GetProfilesByIDs returns the profiles with the given IDs; unknown IDs are skipped
func (r *ProfileRepository) GetProfilesByIDs(ctx context.Context, ids []string) ([]*models.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles by id: %w", err)
	}
	return collectProfiles(rows)
}

func (r *ProfileRepository) getOne(ctx context.Context, query string, args ...any) (*models.Profile, error) {
	p, err := scanProfile(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

func scanProfile(row pgx.Row) (*models.Profile, error) {
	var p models.Profile
	err := row.Scan(
		&p.ID, &p.Name, &p.Email, &p.WhatsApp, &p.StudyTimes, &p.CEP,
		&p.Level, &p.About, &p.AvatarURL, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func collectProfiles(rows pgx.Rows) ([]*models.Profile, error) {
	defer rows.Close()

	var profiles []*models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate profiles: %w", err)
	}
	return profiles, nil
}
