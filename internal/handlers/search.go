package handlers

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"study-partner-backend/internal/geocode"
	"study-partner-backend/internal/models"
	"study-partner-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// DegradedHeader is set on nearby responses whose center is the fallback coordinate
const DegradedHeader = "X-Geocode-Degraded"

// PartnerSearcher runs partner searches
type PartnerSearcher interface {
	SearchPartners(ctx context.Context, f models.SearchFilters) ([]*models.Profile, error)
	SearchNearby(ctx context.Context, postalCode string, radiusKm float64, f models.SearchFilters) (*services.NearbyResult, error)
}

// SearchHandler handles search HTTP requests
type SearchHandler struct {
	searcher      PartnerSearcher
	defaultRadius float64
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(searcher PartnerSearcher, defaultRadiusKm float64) *SearchHandler {
	return &SearchHandler{
		searcher:      searcher,
		defaultRadius: defaultRadiusKm,
	}
}

// maxStudyTimes bounds the study time filter to what the document store
// accepts in a single any-of query
const maxStudyTimes = 30

// parseFilters reads level, studyTimes and excludeEmail. studyTimes may be
// repeated, sent as studyTimes[] or given as a comma-separated list;
// duplicates are dropped.
func parseFilters(q url.Values) (models.SearchFilters, error) {
	var times []string
	seen := make(map[string]bool)
	for _, key := range []string{"studyTimes", "studyTimes[]"} {
		for _, v := range q[key] {
			for _, t := range strings.Split(v, ",") {
				if t = strings.TrimSpace(t); t != "" && !seen[t] {
					seen[t] = true
					times = append(times, t)
				}
			}
		}
	}
	if len(times) > maxStudyTimes {
		return models.SearchFilters{}, fmt.Errorf("%w: at most %d study times can be combined", models.ErrInvalidInput, maxStudyTimes)
	}

	return models.SearchFilters{
		Level:        strings.TrimSpace(q.Get("level")),
		StudyTimes:   times,
		ExcludeEmail: strings.TrimSpace(q.Get("excludeEmail")),
	}, nil
}

// respondSearchError writes validation failures as 400 and anything else as 500
func respondSearchError(w http.ResponseWriter, err error, message string) {
	if status := statusFor(err); status == http.StatusBadRequest {
		respondError(w, err.Error(), status)
		return
	}
	respondError(w, message, http.StatusInternalServerError)
}

// SearchPartners handles GET /api/v1/search/partners
func (h *SearchHandler) SearchPartners(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r.URL.Query())
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	profiles, err := h.searcher.SearchPartners(r.Context(), filters)
	if err != nil {
		log.Error().Err(err).Str("level", filters.Level).Msg("Failed to search partners")
		respondSearchError(w, err, "Failed to search partners")
		return
	}

	respondJSON(w, profiles, http.StatusOK)
}

// SearchNearby handles GET /api/v1/search/nearby
func (h *SearchHandler) SearchNearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	cep := strings.TrimSpace(q.Get("cep"))
	if cep == "" {
		respondError(w, "cep is required", http.StatusBadRequest)
		return
	}
	if !geocode.ValidPostalCode(cep) {
		respondError(w, "Invalid cep format", http.StatusBadRequest)
		return
	}

	radius := h.defaultRadius
	if raw := q.Get("radius"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) || parsed <= 0 {
			respondError(w, "radius must be a positive number", http.StatusBadRequest)
			return
		}
		radius = parsed
	}

	filters, err := parseFilters(q)
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.searcher.SearchNearby(r.Context(), cep, radius, filters)
	if err != nil {
		log.Error().
			Err(err).
			Str("cep", cep).
			Float64("radius_km", radius).
			Msg("Failed to search nearby partners")
		respondSearchError(w, err, "Failed to search nearby partners")
		return
	}

	if result.Degraded {
		w.Header().Set(DegradedHeader, "true")
	}
	respondJSON(w, result.Results, http.StatusOK)
}
