package geocode

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"study-partner-backend/internal/geo"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// postalCodeLength is the digit count of a normalized CEP
const postalCodeLength = 8

// Source tells where a resolved coordinate came from
type Source string

const (
	SourceCache    Source = "cache"
	SourceAddress  Source = "address"
	SourceCity     Source = "city"
	SourceFallback Source = "fallback"
)

// Resolution is the detailed outcome of resolving a postal code
type Resolution struct {
	PostalCode string
	Coordinate geo.Coordinate
	Source     Source
	// Err is set only for fallback resolutions
	Err error
}

// Degraded reports whether the coordinate is the fallback rather than a real location
func (r Resolution) Degraded() bool {
	return r.Source == SourceFallback
}

// ResolverConfig holds resolver tuning
type ResolverConfig struct {
	Country        string
	Fallback       geo.Coordinate
	PacingInterval time.Duration
	Timeout        time.Duration
}

// Resolver maps postal codes to coordinates through a cache, an address
// lookup and a forward geocoder, degrading to a fixed fallback coordinate
type Resolver struct {
	lookup   AddressLookup
	geocoder Geocoder
	cache    Cache
	pacer    *rate.Limiter
	cfg      ResolverConfig
}

// NewResolver creates a new resolver. The pacing gate is shared by every
// lookup made through this resolver.
func NewResolver(lookup AddressLookup, geocoder Geocoder, cache Cache, cfg ResolverConfig) *Resolver {
	pacer := rate.NewLimiter(rate.Inf, 1)
	if cfg.PacingInterval > 0 {
		pacer = rate.NewLimiter(rate.Every(cfg.PacingInterval), 1)
	}
	return &Resolver{
		lookup:   lookup,
		geocoder: geocoder,
		cache:    cache,
		pacer:    pacer,
		cfg:      cfg,
	}
}

// NormalizePostalCode strips every non-digit character
func NormalizePostalCode(postalCode string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, postalCode)
}

// Resolve returns the coordinate of a postal code. It never fails: any
// lookup problem yields the fallback coordinate.
func (r *Resolver) Resolve(ctx context.Context, postalCode string) geo.Coordinate {
	return r.ResolveDetailed(ctx, postalCode).Coordinate
}

// ResolveDetailed resolves a postal code and reports how the coordinate was obtained
func (r *Resolver) ResolveDetailed(ctx context.Context, postalCode string) Resolution {
	code := NormalizePostalCode(postalCode)

	if len(code) != postalCodeLength {
		return r.fallback(code, fmt.Errorf("%w: %q is not a %d digit code", ErrPostalCodeNotFound, postalCode, postalCodeLength))
	}

	if coord, ok := r.cached(ctx, code); ok {
		resolutionsTotal.WithLabelValues(string(SourceCache)).Inc()
		return Resolution{PostalCode: code, Coordinate: coord, Source: SourceCache}
	}

	lookupCtx := ctx
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	coord, source, err := r.resolveExternal(lookupCtx, code)
	if err != nil {
		return r.fallback(code, err)
	}

	// a canceled caller context must not block caching a good result
	if err := r.cache.Set(context.WithoutCancel(ctx), code, coord); err != nil {
		log.Warn().Err(err).Str("postal_code", code).Msg("Failed to cache coordinate")
	}

	resolutionsTotal.WithLabelValues(string(source)).Inc()
	log.Debug().
		Str("postal_code", code).
		Str("source", string(source)).
		Float64("lat", coord.Latitude).
		Float64("lon", coord.Longitude).
		Msg("Postal code resolved")

	return Resolution{PostalCode: code, Coordinate: coord, Source: source}
}

func (r *Resolver) cached(ctx context.Context, code string) (geo.Coordinate, bool) {
	coord, ok, err := r.cache.Get(ctx, code)
	if err != nil {
		log.Warn().Err(err).Str("postal_code", code).Msg("Coordinate cache read failed")
		return geo.Coordinate{}, false
	}
	return coord, ok
}

func (r *Resolver) resolveExternal(ctx context.Context, code string) (geo.Coordinate, Source, error) {
	addr, err := r.lookup.Lookup(ctx, code)
	if err != nil {
		return geo.Coordinate{}, "", err
	}

	coord, found, err := r.geocode(ctx, r.streetQuery(addr))
	if err != nil {
		return geo.Coordinate{}, "", err
	}
	if found {
		return coord, SourceAddress, nil
	}

	coord, found, err = r.geocode(ctx, r.cityQuery(addr))
	if err != nil {
		return geo.Coordinate{}, "", err
	}
	if found {
		return coord, SourceCity, nil
	}

	return geo.Coordinate{}, "", ErrNoGeocodeResult
}

// geocode waits on the shared pacing gate before every upstream call
func (r *Resolver) geocode(ctx context.Context, query string) (geo.Coordinate, bool, error) {
	if err := r.pacer.Wait(ctx); err != nil {
		return geo.Coordinate{}, false, fmt.Errorf("geocode pacing interrupted: %w", err)
	}

	coords, err := r.geocoder.Search(ctx, query, 1)
	if err != nil {
		return geo.Coordinate{}, false, err
	}
	if len(coords) == 0 {
		return geo.Coordinate{}, false, nil
	}
	return coords[0], true, nil
}

func (r *Resolver) streetQuery(addr *Address) string {
	return joinNonEmpty(addr.Street, addr.Neighborhood, addr.City, addr.State, r.cfg.Country)
}

func (r *Resolver) cityQuery(addr *Address) string {
	return joinNonEmpty(addr.City, addr.State, r.cfg.Country)
}

func (r *Resolver) fallback(code string, err error) Resolution {
	resolutionsTotal.WithLabelValues(string(SourceFallback)).Inc()

	reason := "unreachable"
	if errors.Is(err, ErrPostalCodeNotFound) {
		reason = "not_found"
	} else if errors.Is(err, ErrNoGeocodeResult) {
		reason = "no_result"
	}

	log.Warn().
		Err(err).
		Str("postal_code", code).
		Str("reason", reason).
		Float64("fallback_lat", r.cfg.Fallback.Latitude).
		Float64("fallback_lon", r.cfg.Fallback.Longitude).
		Msg("Postal code resolution degraded to fallback coordinate")

	return Resolution{
		PostalCode: code,
		Coordinate: r.cfg.Fallback,
		Source:     SourceFallback,
		Err:        err,
	}
}

func joinNonEmpty(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}

var postalCodePattern = regexp.MustCompile(`^\d{5}-?\d{3}$`)

// ValidPostalCode reports whether s is a well-formed CEP: five digits, an
// optional hyphen and three digits
func ValidPostalCode(s string) bool {
	return postalCodePattern.MatchString(s)
}
