package repository

import (
	"context"
	"fmt"

	"study-partner-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// LocationRepository handles read queries on the location projection
type LocationRepository struct {
	db *pgxpool.Pool
}

// NewLocationRepository creates a new location repository
func NewLocationRepository(db *pgxpool.Pool) *LocationRepository {
	return &LocationRepository{db: db}
}

// FindLocations returns location records matching the level and study time filters
func (r *LocationRepository) FindLocations(ctx context.Context, f models.SearchFilters) ([]*models.LocationRecord, error) {
	where, args := filterClause(f, nil)
	query := `SELECT user_id, latitude, longitude, level, study_times FROM locations` + where

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query locations: %w", err)
	}
	defer rows.Close()

	var locations []*models.LocationRecord
	for rows.Next() {
		var loc models.LocationRecord
		if err := rows.Scan(
			&loc.UserID, &loc.Coordinate.Latitude, &loc.Coordinate.Longitude,
			&loc.Level, &loc.StudyTimes,
		); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locations = append(locations, &loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate locations: %w", err)
	}
	return locations, nil
}
