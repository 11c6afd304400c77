package location

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCageGeocoder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Alexandria", r.URL.Query().Get("q"))
		assert.Equal(t, "key-1", r.URL.Query().Get("key"))
		_, _ = io.WriteString(w, `{"results":[{"geometry":{"lat":31.2,"lng":29.9}}]}`)
	}))
	defer srv.Close()

	g := NewOpenCageGeocoder("key-1")
	g.baseURL = srv.URL
	at, ok, err := g.Geocode(context.Background(), "Alexandria")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, Coordinates{Lat: 31.2, Lng: 29.9}, at)
}

func TestOpenCageGeocoderNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"results":[]}`)
	}))
	defer srv.Close()

	g := NewOpenCageGeocoder("k")
	g.baseURL = srv.URL
	_, ok, err := g.Geocode(context.Background(), "nowhere")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpenCageGeocoderHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer srv.Close()

	g := NewOpenCageGeocoder("k")
	g.baseURL = srv.URL
	_, _, err := g.Geocode(context.Background(), "cairo")
	assert.Error(t, err)
}

func TestOverpassNearby(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		body, _ := io.ReadAll(r.Body)
		form, err := url.ParseQuery(string(body))
		require.NoError(t, err)
		assert.Contains(t, form.Get("data"), `node["amenity"="pharmacy"](around:60000,`)
		_, _ = io.WriteString(w, `{"elements":[
			{"type":"node","id":1,"lat":30.1,"lon":31.2,"tags":{"name":"صيدلية مصر","amenity":"pharmacy"}},
			{"type":"way","id":2,"center":{"lat":30.2,"lon":31.3},"tags":{"amenity":"pharmacy"}},
			{"type":"node","id":3,"lat":30.3,"lon":31.4}
		]}`)
	}))
	defer srv.Close()

	facilities, err := NewOverpassClient(srv.URL).Nearby(context.Background(), Cairo, AmenityPharmacy)
	require.NoError(t, err)
	require.Len(t, facilities, 2)
	assert.Equal(t, "1", facilities[0].ID)
	assert.Equal(t, "صيدلية مصر", facilities[0].Name())
	assert.Equal(t, 30.2, facilities[1].Lat)
	assert.Equal(t, 31.3, facilities[1].Lon)
}

func TestOverpassDefaultsURL(t *testing.T) {
	assert.Equal(t, defaultOverpassURL, NewOverpassClient(" ").baseURL)
}
