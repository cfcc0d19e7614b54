package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrPostalCodeNotFound is returned when the address lookup service does not know the postal code
	ErrPostalCodeNotFound = errors.New("postal code not found")
	// ErrNoGeocodeResult is returned when neither the street nor the city query geocodes
	ErrNoGeocodeResult = errors.New("no geocoding result for postal code")
)

// Address holds the locality fields of a postal code
type Address struct {
	Street       string `json:"logradouro"`
	Neighborhood string `json:"bairro"`
	City         string `json:"localidade"`
	State        string `json:"uf"`
}

// AddressLookup maps a normalized postal code to its locality
type AddressLookup interface {
	Lookup(ctx context.Context, postalCode string) (*Address, error)
}

// ViaCEPClient queries the ViaCEP address service
type ViaCEPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewViaCEPClient creates a new ViaCEP client
func NewViaCEPClient(baseURL string, httpClient *http.Client) *ViaCEPClient {
	return &ViaCEPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

type viaCEPResponse struct {
	Address
	// ViaCEP has answered both `true` and `"true"` here
	Erro any `json:"erro"`
}

// Lookup fetches the locality fields for a postal code
func (c *ViaCEPClient) Lookup(ctx context.Context, postalCode string) (*Address, error) {
	url := fmt.Sprintf("%s/%s/json/", c.baseURL, postalCode)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create address request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("address lookup failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound:
		return nil, ErrPostalCodeNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("address lookup returned status %d", resp.StatusCode)
	}

	var body viaCEPResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode address response: %w", err)
	}

	if isTruthy(body.Erro) {
		return nil, ErrPostalCodeNotFound
	}

	return &body.Address, nil
}

func isTruthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val == "true"
	default:
		return false
	}
}
