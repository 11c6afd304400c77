package location

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	openCageURL     = "https://api.opencagedata.com/geocode/v1/json"
	geocodeTimeout  = 5 * time.Second
	defaultCityName = "cairo"
)

// Cairo is used when nothing better is known.
var Cairo = Coordinates{Lat: 30.0444, Lng: 31.2357}

// knownCities is scanned in order; longer names come before the names they contain.
var knownCities = []struct {
	name string
	at   Coordinates
}{
	{"new cairo", Coordinates{30.0074, 31.4913}},
	{"nasr city", Coordinates{30.0510, 31.3656}},
	{"heliopolis", Coordinates{30.0910, 31.3243}},
	{"maadi", Coordinates{29.9626, 31.2497}},
	{"cairo", Cairo},
	{"alexandria", Coordinates{31.2001, 29.9187}},
	{"giza", Coordinates{30.0131, 31.2089}},
	{"sharm el sheikh", Coordinates{27.9158, 34.3300}},
	{"luxor", Coordinates{25.6872, 32.6396}},
	{"aswan", Coordinates{24.0889, 32.8998}},
	{"hurghada", Coordinates{27.2579, 33.8116}},
	{"mansoura", Coordinates{31.0409, 31.3785}},
	{"zagazig", Coordinates{30.5833, 31.5167}},
	{"port said", Coordinates{31.2652, 32.3018}},
	{"ismailia", Coordinates{30.5965, 32.2715}},
	{"tanta", Coordinates{30.7865, 31.0004}},
}

// CityCoordinates matches query against the built-in city table and falls back to Cairo.
func CityCoordinates(query string) Coordinates {
	q := strings.ToLower(query)
	for _, c := range knownCities {
		if strings.Contains(q, c.name) {
			return c.at
		}
	}
	return Cairo
}

// OpenCageGeocoder calls the OpenCage forward geocoding API.
type OpenCageGeocoder struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewOpenCageGeocoder(apiKey string) *OpenCageGeocoder {
	return &OpenCageGeocoder{
		apiKey:     apiKey,
		baseURL:    openCageURL,
		httpClient: &http.Client{Timeout: geocodeTimeout},
	}
}

type openCageResponse struct {
	Results []struct {
		Geometry struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"geometry"`
	} `json:"results"`
}

// Geocode returns the first result for query. ok is false when nothing matched.
func (g *OpenCageGeocoder) Geocode(ctx context.Context, query string) (at Coordinates, ok bool, err error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("key", g.apiKey)
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return Coordinates{}, false, fmt.Errorf("location: build geocode request: %w", err)
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return Coordinates{}, false, fmt.Errorf("location: geocode: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Coordinates{}, false, fmt.Errorf("location: geocode: status %d", resp.StatusCode)
	}

	var body openCageResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Coordinates{}, false, fmt.Errorf("location: decode geocode: %w", err)
	}
	if len(body.Results) == 0 {
		return Coordinates{}, false, nil
	}
	g0 := body.Results[0].Geometry
	return Coordinates{Lat: g0.Lat, Lng: g0.Lng}, true, nil
}
