package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"testing"

	"study-partner-backend/internal/geo"
	"study-partner-backend/internal/geocode"
	"study-partner-backend/internal/models"
)

var (
	saoPaulo = geo.Coordinate{Latitude: -23.5505, Longitude: -46.6333}
	rio      = geo.Coordinate{Latitude: -22.9068, Longitude: -43.1729}
	campinas = geo.Coordinate{Latitude: -22.9099, Longitude: -47.0626}
	santos   = geo.Coordinate{Latitude: -23.9608, Longitude: -46.3336}
)

func profile(id, level string, times ...string) *models.Profile {
	return &models.Profile{
		ID:         id,
		Name:       id,
		Email:      id + "@example.com",
		Level:      level,
		StudyTimes: times,
	}
}

func newSearchFixture() (*SearchService, *memoryStore) {
	store := newMemoryStore()
	resolver := &fakeResolver{
		results: map[string]geocode.Resolution{
			"01001-000": {Coordinate: saoPaulo, Source: geocode.SourceAddress},
		},
		fallback: saoPaulo,
	}
	return NewSearchService(store, store, resolver, DefaultBatchSize), store
}

func TestRankNearbyKeepsOnlyWithinRadius(t *testing.T) {
	svc, store := newSearchFixture()
	store.add(profile("a", "beginner", "morning"), saoPaulo)
	store.add(profile("b", "beginner", "morning"), rio)

	results, err := svc.RankNearby(context.Background(), saoPaulo, 100, models.SearchFilters{})
	if err != nil {
		t.Fatalf("RankNearby: %v", err)
	}
	if len(results) != 1 || results[0].ID != "a" {
		t.Fatalf("Expected only a, got %v", ids(results))
	}
	if *results[0].DistanceKm != 0 {
		t.Errorf("Expected distance 0, got %v", *results[0].DistanceKm)
	}
}

func TestRankNearbySortsByDistance(t *testing.T) {
	svc, store := newSearchFixture()
	store.add(profile("rio", "beginner"), rio)
	store.add(profile("santos", "beginner"), santos)
	store.add(profile("center", "beginner"), saoPaulo)
	store.add(profile("campinas", "beginner"), campinas)

	results, err := svc.RankNearby(context.Background(), saoPaulo, 1000, models.SearchFilters{})
	if err != nil {
		t.Fatalf("RankNearby: %v", err)
	}

	got := ids(results)
	want := []string{"center", "santos", "campinas", "rio"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("Expected order %v, got %v", want, got)
	}
	for i := 1; i < len(results); i++ {
		if *results[i].DistanceKm < *results[i-1].DistanceKm {
			t.Errorf("Results not sorted at %d", i)
		}
	}
	for _, r := range results {
		if *r.DistanceKm > 1000 {
			t.Errorf("%s is outside the radius: %v", r.ID, *r.DistanceKm)
		}
	}
}

func TestRankNearbyAppliesFilters(t *testing.T) {
	svc, store := newSearchFixture()
	store.add(profile("morning", "beginner", "morning"), saoPaulo)
	store.add(profile("evening", "beginner", "evening"), saoPaulo)
	store.add(profile("advanced", "advanced", "morning"), saoPaulo)

	results, err := svc.RankNearby(context.Background(), saoPaulo, 10, models.SearchFilters{
		Level:      "beginner",
		StudyTimes: []string{"morning"},
	})
	if err != nil {
		t.Fatalf("RankNearby: %v", err)
	}
	if got := ids(results); len(got) != 1 || got[0] != "morning" {
		t.Errorf("Expected [morning], got %v", got)
	}
}

func TestRankNearbyExcludesExactlyOne(t *testing.T) {
	svc, store := newSearchFixture()
	store.add(profile("a", "beginner"), saoPaulo)
	store.add(profile("b", "beginner"), saoPaulo)
	store.add(profile("c", "beginner"), saoPaulo)

	results, err := svc.RankNearby(context.Background(), saoPaulo, 10, models.SearchFilters{ExcludeEmail: "b@example.com"})
	if err != nil {
		t.Fatalf("RankNearby: %v", err)
	}
	got := ids(results)
	sort.Strings(got)
	if fmt.Sprint(got) != "[a c]" {
		t.Errorf("Expected [a c], got %v", got)
	}
}

func TestRankNearbyEmptySkipsHydration(t *testing.T) {
	svc, store := newSearchFixture()
	store.add(profile("far", "beginner"), rio)

	results, err := svc.RankNearby(context.Background(), saoPaulo, 5, models.SearchFilters{})
	if err != nil {
		t.Fatalf("RankNearby: %v", err)
	}
	if results == nil || len(results) != 0 {
		t.Errorf("Expected empty non-nil results, got %v", results)
	}
	if len(store.batchCalls) != 0 {
		t.Errorf("Expected no hydration calls, got %d", len(store.batchCalls))
	}
}

func TestRankNearbyHydratesInChunks(t *testing.T) {
	svc, store := newSearchFixture()
	for i := 0; i < 23; i++ {
		store.add(profile(fmt.Sprintf("user-%02d", i), "beginner"), saoPaulo)
	}

	results, err := svc.RankNearby(context.Background(), saoPaulo, 1, models.SearchFilters{})
	if err != nil {
		t.Fatalf("RankNearby: %v", err)
	}
	if len(results) != 23 {
		t.Fatalf("Expected 23 results, got %d", len(results))
	}
	if len(store.batchCalls) != 3 {
		t.Errorf("Expected 3 batch calls, got %d", len(store.batchCalls))
	}

	seen := map[string]int{}
	for _, call := range store.batchCalls {
		if len(call) > DefaultBatchSize {
			t.Errorf("Batch of %d exceeds bound", len(call))
		}
		for _, id := range call {
			seen[id]++
		}
	}
	for _, r := range results {
		seen[r.ID] += 100
	}
	for id, n := range seen {
		if n != 101 {
			t.Errorf("%s requested or returned the wrong number of times (%d)", id, n)
		}
	}
}

func TestRankNearbyChunkFailureFailsSearch(t *testing.T) {
	svc, store := newSearchFixture()
	for i := 0; i < 15; i++ {
		store.add(profile(fmt.Sprintf("user-%02d", i), "beginner"), saoPaulo)
	}
	store.failBatch = "user-12"

	results, err := svc.RankNearby(context.Background(), saoPaulo, 1, models.SearchFilters{})
	if err == nil {
		t.Fatal("Expected error from failing chunk")
	}
	if results != nil {
		t.Errorf("Expected no partial results, got %d", len(results))
	}
}

func TestRankNearbyRejectsInvalidRadius(t *testing.T) {
	svc, store := newSearchFixture()
	store.add(profile("center", "beginner"), saoPaulo)
	store.add(profile("rio", "beginner"), rio)

	for _, radius := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), 0, -10} {
		results, err := svc.RankNearby(context.Background(), saoPaulo, radius, models.SearchFilters{})
		if !errors.Is(err, models.ErrInvalidInput) {
			t.Errorf("radius %v: expected ErrInvalidInput, got %v", radius, err)
		}
		if len(results) != 0 {
			t.Errorf("radius %v: expected no results, got %v", radius, ids(results))
		}
	}
	if len(store.batchCalls) != 0 {
		t.Errorf("Expected no hydration for invalid radii, got %d calls", len(store.batchCalls))
	}
}

func TestRankNearbyPropagatesStorageError(t *testing.T) {
	svc, store := newSearchFixture()
	storeErr := errors.New("connection refused")
	store.findErr = storeErr

	if _, err := svc.RankNearby(context.Background(), saoPaulo, 10, models.SearchFilters{}); !errors.Is(err, storeErr) {
		t.Errorf("Expected wrapped storage error, got %v", err)
	}
}

func TestSearchNearbyReportsDegradedCenter(t *testing.T) {
	svc, store := newSearchFixture()
	store.add(profile("a", "beginner"), saoPaulo)

	res, err := svc.SearchNearby(context.Background(), "01001-000", 100, models.SearchFilters{})
	if err != nil {
		t.Fatalf("SearchNearby: %v", err)
	}
	if res.Degraded {
		t.Error("Expected precise center")
	}
	if len(res.Results) != 1 {
		t.Errorf("Expected 1 result, got %d", len(res.Results))
	}

	res, err = svc.SearchNearby(context.Background(), "99999-999", 100, models.SearchFilters{})
	if err != nil {
		t.Fatalf("SearchNearby fallback: %v", err)
	}
	if !res.Degraded || res.Center != saoPaulo {
		t.Errorf("Expected degraded fallback center, got %+v degraded=%v", res.Center, res.Degraded)
	}
}

func TestSearchPartners(t *testing.T) {
	svc, store := newSearchFixture()
	store.add(profile("a", "beginner", "morning"), saoPaulo)
	store.add(profile("b", "beginner", "evening"), rio)
	store.add(profile("c", "advanced", "morning"), rio)
	store.add(profile("d", "beginner", "morning", "evening"), rio)

	got, err := svc.SearchPartners(context.Background(), models.SearchFilters{
		Level:        "beginner",
		StudyTimes:   []string{"morning"},
		ExcludeEmail: "a@example.com",
	})
	if err != nil {
		t.Fatalf("SearchPartners: %v", err)
	}
	if len(got) != 1 || got[0].ID != "d" {
		t.Errorf("Expected [d], got %v", got)
	}

	store.findErr = errors.New("boom")
	if _, err := svc.SearchPartners(context.Background(), models.SearchFilters{}); err == nil {
		t.Error("Expected storage error")
	}
}

func TestChunkIDs(t *testing.T) {
	ids := make([]string, 23)
	for i := range ids {
		ids[i] = fmt.Sprint(i)
	}
	chunks := chunkIDs(ids, 10)
	if len(chunks) != 3 || len(chunks[0]) != 10 || len(chunks[2]) != 3 {
		t.Errorf("Unexpected chunks: %v", chunks)
	}
	if chunkIDs(nil, 10) != nil {
		t.Error("Expected no chunks for no ids")
	}
}

func ids(results []*models.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ID
	}
	return out
}
