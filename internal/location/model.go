// Package location resolves a user's position and finds hospitals and
// pharmacies around it.
package location

import "fmt"

// Amenity is an OpenStreetMap amenity tag value.
type Amenity string

const (
	AmenityHospital Amenity = "hospital"
	AmenityPharmacy Amenity = "pharmacy"
)

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Facility is one nearby place.
type Facility struct {
	ID   string            `json:"id"`
	Type string            `json:"type"`
	Lat  float64           `json:"lat"`
	Lon  float64           `json:"lon"`
	Tags map[string]string `json:"tags"`
}

// Name returns the facility's display name, if tagged.
func (f Facility) Name() string {
	if n := f.Tags["name:ar"]; n != "" {
		return n
	}
	return f.Tags["name"]
}

func cacheKey(amenity Amenity, at Coordinates) string {
	return fmt.Sprintf("location:%s:%.3f:%.3f", amenity, at.Lat, at.Lng)
}
