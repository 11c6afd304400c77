package location

import (
	"fmt"
	"math"
)

const mockFacilityCount = 10

var hospitalNames = []string{
	"مستشفى القاهرة التخصصي", "المستشفى الجامعي", "مستشفى دار الفؤاد", "مستشفى السلام الدولي",
	"المستشفى العسكري", "مستشفى النيل", "مستشفى الشروق", "مستشفى الأمل",
	"مستشفى الرحمة", "مستشفى المعادي التخصصي",
}

var pharmacyNames = []string{
	"صيدلية العزبي", "صيدلية مصر", "صيدلية سيف", "صيدلية الشفاء", "صيدلية النهدي",
	"صيدلية الحياة", "صيدلية رشدي", "صيدلية البرج", "صيدلية الدواء", "صيدلية المجد",
}

// MockFacilities places a fixed ring of named facilities around at.
// Every entry carries the "mock-data" tag.
func MockFacilities(amenity Amenity, at Coordinates) []Facility {
	names := pharmacyNames
	if amenity == AmenityHospital {
		names = hospitalNames
	}
	out := make([]Facility, mockFacilityCount)
	for i := range out {
		angle := 2 * math.Pi * float64(i) / mockFacilityCount
		dist := 0.01 + 0.0015*float64(i)
		out[i] = Facility{
			ID:   fmt.Sprintf("mock-%s-%d", amenity, i),
			Type: "node",
			Lat:  at.Lat + dist*math.Cos(angle),
			Lon:  at.Lng + dist*math.Sin(angle),
			Tags: map[string]string{
				"name":      names[i%len(names)],
				"amenity":   string(amenity),
				"mock-data": "true",
			},
		}
	}
	return out
}
