package location

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/medassist/pkg/logging"
)

const nearbyCacheTTL = time.Hour

var locationTracer = otel.Tracer("medassist.internal.location")

// Geocoder resolves free text to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (Coordinates, bool, error)
}

// FacilitySource lists facilities around a point.
type FacilitySource interface {
	Nearby(ctx context.Context, at Coordinates, amenity Amenity) ([]Facility, error)
}

// Service answers location lookups. It never fails: every upstream error
// degrades to the city table or the mock facility list.
type Service struct {
	geocoder Geocoder
	source   FacilitySource
	cache    *redis.Client
	logger   *logging.Logger
}

// NewService wires the lookups. geocoder, source and cache may each be nil.
func NewService(geocoder Geocoder, source FacilitySource, cache *redis.Client, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{geocoder: geocoder, source: source, cache: cache, logger: logger}
}

// Locate resolves query, falling back to the city table and then Cairo.
func (s *Service) Locate(ctx context.Context, query string) Coordinates {
	query = strings.TrimSpace(query)
	if query == "" {
		query = defaultCityName
	}
	if s.geocoder == nil {
		return CityCoordinates(query)
	}
	ctx, cancel := context.WithTimeout(ctx, geocodeTimeout)
	defer cancel()

	at, ok, err := s.geocoder.Geocode(ctx, query)
	switch {
	case err != nil:
		s.logger.Warn("geocode failed, using city table", "query", query, "error", err)
	case !ok:
		s.logger.Info("geocode returned no results, using city table", "query", query)
	default:
		return at
	}
	return CityCoordinates(query)
}

// Nearby returns facilities around at, served from cache when possible.
func (s *Service) Nearby(ctx context.Context, at Coordinates, amenity Amenity) []Facility {
	ctx, span := locationTracer.Start(ctx, "location.nearby")
	defer span.End()
	span.SetAttributes(attribute.String("location.amenity", string(amenity)))

	key := cacheKey(amenity, at)
	if cached, ok := s.cached(ctx, key); ok {
		span.SetAttributes(attribute.Bool("location.cache_hit", true))
		return cached
	}
	if s.source == nil {
		return MockFacilities(amenity, at)
	}

	ctx, cancel := context.WithTimeout(ctx, overpassTimeout)
	defer cancel()
	facilities, err := s.source.Nearby(ctx, at, amenity)
	if err != nil {
		span.RecordError(err)
		s.logger.Warn("facility lookup failed, serving mock data", "amenity", amenity, "error", err)
		return MockFacilities(amenity, at)
	}
	s.store(ctx, key, facilities)
	return facilities
}

func (s *Service) cached(ctx context.Context, key string) ([]Facility, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("location cache read failed", "key", key, "error", err)
		}
		return nil, false
	}
	var out []Facility
	if err := json.Unmarshal(data, &out); err != nil {
		s.logger.Warn("location cache entry unreadable", "key", key, "error", err)
		return nil, false
	}
	return out, true
}

func (s *Service) store(ctx context.Context, key string, facilities []Facility) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(facilities)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, nearbyCacheTTL).Err(); err != nil {
		s.logger.Warn("location cache write failed", "key", key, "error", err)
	}
}
