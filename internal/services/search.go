package services

import (
	"context"
	"fmt"
	"math"
	"sort"

	"study-partner-backend/internal/geo"
	"study-partner-backend/internal/models"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// DefaultBatchSize is the largest identifier list the document store accepts in one membership query
const DefaultBatchSize = 10

// SearchService handles partner search
type SearchService struct {
	profiles  ProfileStore
	locations LocationStore
	resolver  CoordinateResolver
	batchSize int
}

// NewSearchService creates a new search service
func NewSearchService(profiles ProfileStore, locations LocationStore, resolver CoordinateResolver, batchSize int) *SearchService {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &SearchService{
		profiles:  profiles,
		locations: locations,
		resolver:  resolver,
		batchSize: batchSize,
	}
}

// NearbyResult is the outcome of a proximity search
type NearbyResult struct {
	Center geo.Coordinate
	// Degraded is set when the center is the fallback coordinate
	Degraded bool
	Results  []*models.SearchResult
}

// SearchPartners returns profiles matching the filters in store order
func (s *SearchService) SearchPartners(ctx context.Context, f models.SearchFilters) ([]*models.Profile, error) {
	candidates, err := s.profiles.FindProfiles(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to find profiles: %w", err)
	}

	profiles := make([]*models.Profile, 0, len(candidates))
	for _, p := range candidates {
		if f.Matches(p) {
			profiles = append(profiles, p)
		}
	}
	return profiles, nil
}

// SearchNearby resolves postalCode to a center and ranks matching profiles
// within radiusKm of it. The postal code is expected to be well-formed.
func (s *SearchService) SearchNearby(ctx context.Context, postalCode string, radiusKm float64, f models.SearchFilters) (*NearbyResult, error) {
	res := s.resolver.ResolveDetailed(ctx, postalCode)

	results, err := s.RankNearby(ctx, res.Coordinate, radiusKm, f)
	if err != nil {
		return nil, err
	}

	return &NearbyResult{
		Center:   res.Coordinate,
		Degraded: res.Degraded(),
		Results:  results,
	}, nil
}

// RankNearby returns the profiles matching f whose location lies within
// radiusKm of center, sorted by ascending distance
func (s *SearchService) RankNearby(ctx context.Context, center geo.Coordinate, radiusKm float64, f models.SearchFilters) ([]*models.SearchResult, error) {
	if !(radiusKm > 0) || math.IsInf(radiusKm, 1) {
		return nil, invalid(fmt.Sprintf("radius must be a positive finite number, got %v", radiusKm))
	}

	locations, err := s.locations.FindLocations(ctx, models.SearchFilters{
		Level:      f.Level,
		StudyTimes: f.StudyTimes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find locations: %w", err)
	}

	distances := make(map[string]float64, len(locations))
	var ids []string
	for _, loc := range locations {
		d := geo.Distance(center, loc.Coordinate)
		if d > radiusKm {
			continue
		}
		if _, seen := distances[loc.UserID]; !seen {
			ids = append(ids, loc.UserID)
		}
		distances[loc.UserID] = d
	}

	results := []*models.SearchResult{}
	if len(ids) == 0 {
		return results, nil
	}

	profiles, err := s.hydrate(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, p := range profiles {
		if !f.Matches(p) {
			continue
		}
		d, ok := distances[p.ID]
		if !ok {
			continue
		}
		results = append(results, &models.SearchResult{Profile: p, DistanceKm: &d})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return *results[i].DistanceKm < *results[j].DistanceKm
	})

	log.Debug().
		Int("candidates", len(locations)).
		Int("in_radius", len(ids)).
		Int("results", len(results)).
		Float64("radius_km", radiusKm).
		Msg("Ranked nearby partners")

	return results, nil
}

// hydrate fetches profiles for ids in concurrent chunks of at most batchSize.
// Any failing chunk fails the whole call.
func (s *SearchService) hydrate(ctx context.Context, ids []string) ([]*models.Profile, error) {
	chunks := chunkIDs(ids, s.batchSize)
	batches := make([][]*models.Profile, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		g.Go(func() error {
			profiles, err := s.profiles.GetProfilesByIDs(gctx, chunk)
			if err != nil {
				return fmt.Errorf("failed to get profiles batch %d: %w", i, err)
			}
			batches[i] = profiles
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(ids))
	profiles := make([]*models.Profile, 0, len(ids))
	for _, batch := range batches {
		for _, p := range batch {
			if seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			profiles = append(profiles, p)
		}
	}
	return profiles, nil
}

func chunkIDs(ids []string, size int) [][]string {
	var chunks [][]string
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
