package location

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultOverpassURL = "https://overpass-api.de/api/interpreter"
	overpassTimeout    = 10 * time.Second
	searchRadiusMeters = 60000
)

// OverpassClient queries OpenStreetMap through the Overpass API.
type OverpassClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewOverpassClient(baseURL string) *OverpassClient {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultOverpassURL
	}
	return &OverpassClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: overpassTimeout},
	}
}

type overpassResponse struct {
	Elements []struct {
		Type   string  `json:"type"`
		ID     int64   `json:"id"`
		Lat    float64 `json:"lat"`
		Lon    float64 `json:"lon"`
		Center *struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		} `json:"center"`
		Tags map[string]string `json:"tags"`
	} `json:"elements"`
}

func overpassQuery(amenity Amenity, at Coordinates, radius int) string {
	around := fmt.Sprintf("(around:%d,%f,%f)", radius, at.Lat, at.Lng)
	return fmt.Sprintf(`[out:json][timeout:25];
(
  node["amenity"="%[1]s"]%[2]s;
  way["amenity"="%[1]s"]%[2]s;
  relation["amenity"="%[1]s"]%[2]s;
);
out center tags;`, amenity, around)
}

// Nearby lists tagged facilities of the given amenity within the search radius.
func (c *OverpassClient) Nearby(ctx context.Context, at Coordinates, amenity Amenity) ([]Facility, error) {
	form := url.Values{}
	form.Set("data", overpassQuery(amenity, at, searchRadiusMeters))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("location: build overpass request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("location: overpass: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("location: overpass: status %d", resp.StatusCode)
	}

	var body overpassResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("location: decode overpass: %w", err)
	}
	out := make([]Facility, 0, len(body.Elements))
	for _, el := range body.Elements {
		if len(el.Tags) == 0 {
			continue
		}
		lat, lon := el.Lat, el.Lon
		if el.Center != nil {
			lat, lon = el.Center.Lat, el.Center.Lon
		}
		out = append(out, Facility{
			ID:   strconv.FormatInt(el.ID, 10),
			Type: el.Type,
			Lat:  lat,
			Lon:  lon,
			Tags: el.Tags,
		})
	}
	return out, nil
}
