package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"study-partner-backend/internal/geo"
)

// Geocoder turns a free-text address into coordinates
type Geocoder interface {
	Search(ctx context.Context, query string, limit int) ([]geo.Coordinate, error)
}

// NominatimClient queries the OpenStreetMap Nominatim search API
type NominatimClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewNominatimClient creates a new Nominatim client
func NewNominatimClient(baseURL, userAgent string, httpClient *http.Client) *NominatimClient {
	return &NominatimClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: httpClient,
	}
}

type nominatimPlace struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Search returns up to limit coordinates for the query
func (c *NominatimClient) Search(ctx context.Context, query string, limit int) ([]geo.Coordinate, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create geocode request: %w", err)
	}
	// Nominatim usage policy requires an identifying User-Agent
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocode returned status %d", resp.StatusCode)
	}

	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return nil, fmt.Errorf("failed to decode geocode response: %w", err)
	}

	coords := make([]geo.Coordinate, 0, len(places))
	for _, p := range places {
		lat, err := strconv.ParseFloat(p.Lat, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid latitude %q: %w", p.Lat, err)
		}
		lon, err := strconv.ParseFloat(p.Lon, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid longitude %q: %w", p.Lon, err)
		}
		coords = append(coords, geo.Coordinate{Latitude: lat, Longitude: lon})
	}
	return coords, nil
}
