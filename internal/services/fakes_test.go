package services

import (
	"context"
	"errors"
	"sync"

	"study-partner-backend/internal/geo"
	"study-partner-backend/internal/geocode"
	"study-partner-backend/internal/models"
)

// memoryStore is an in-memory ProfileStore and LocationStore
type memoryStore struct {
	mu        sync.Mutex
	profiles  map[string]*models.Profile
	order     []string
	locations map[string]*models.LocationRecord

	batchCalls [][]string
	findErr    error
	batchErr   error
	// failBatch makes GetProfilesByIDs fail for the call containing this ID
	failBatch string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		profiles:  make(map[string]*models.Profile),
		locations: make(map[string]*models.LocationRecord),
	}
}

func (m *memoryStore) add(p *models.Profile, c geo.Coordinate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = p
	m.order = append(m.order, p.ID)
	m.locations[p.ID] = models.LocationFor(p, c)
}

func (m *memoryStore) FindProfiles(_ context.Context, f models.SearchFilters) ([]*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	var out []*models.Profile
	for _, id := range m.order {
		p := m.profiles[id]
		if f.MatchesLevel(p.Level) && f.MatchesStudyTimes(p.StudyTimes) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memoryStore) FindLocations(_ context.Context, f models.SearchFilters) ([]*models.LocationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	var out []*models.LocationRecord
	for _, id := range m.order {
		loc := m.locations[id]
		if f.MatchesLevel(loc.Level) && f.MatchesStudyTimes(loc.StudyTimes) {
			out = append(out, loc)
		}
	}
	return out, nil
}

func (m *memoryStore) GetProfilesByIDs(_ context.Context, ids []string) ([]*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchCalls = append(m.batchCalls, append([]string(nil), ids...))
	if m.batchErr != nil {
		return nil, m.batchErr
	}
	var out []*models.Profile
	for _, id := range ids {
		if id == m.failBatch {
			return nil, errors.New("batch unavailable")
		}
		if p, ok := m.profiles[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memoryStore) GetProfile(_ context.Context, id string) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memoryStore) GetProfileByEmail(_ context.Context, email string) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.profiles {
		if p.Email == email {
			return p, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memoryStore) GetProfileByCredentials(_ context.Context, email, whatsapp string) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.profiles {
		if p.Email == email && p.WhatsApp == whatsapp {
			return p, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memoryStore) CreateProfile(_ context.Context, p *models.Profile, coord geo.Coordinate) error {
	if _, err := m.GetProfileByEmail(context.Background(), p.Email); err == nil {
		return models.ErrEmailTaken
	}
	m.add(p, coord)
	return nil
}

func (m *memoryStore) UpdateProfile(_ context.Context, p *models.Profile, coord *geo.Coordinate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[p.ID]; !ok {
		return models.ErrNotFound
	}
	cp := *p
	m.profiles[p.ID] = &cp

	loc := m.locations[p.ID]
	c := loc.Coordinate
	if coord != nil {
		c = *coord
	}
	m.locations[p.ID] = models.LocationFor(&cp, c)
	return nil
}

// fakeResolver maps postal codes to fixed resolutions
type fakeResolver struct {
	mu       sync.Mutex
	results  map[string]geocode.Resolution
	fallback geo.Coordinate
	calls    []string
}

func (r *fakeResolver) ResolveDetailed(_ context.Context, postalCode string) geocode.Resolution {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, postalCode)
	if res, ok := r.results[postalCode]; ok {
		return res
	}
	return geocode.Resolution{
		PostalCode: postalCode,
		Coordinate: r.fallback,
		Source:     geocode.SourceFallback,
		Err:        geocode.ErrPostalCodeNotFound,
	}
}
