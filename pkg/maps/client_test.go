package maps

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientAutocompleteRequest(t *testing.T) {
	const expectedURL = "http://maps.test/v1/places:autocomplete"
	respBody := `{"suggestions":[{"placePrediction":{"placeId":"place_123","text":{"text":"12 King St, Newtown NSW"}}}]}`

	var capturedURL string
	var capturedHeaders http.Header
	var payload map[string]any

	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		capturedHeaders = req.Header.Clone()
		bodyBytes, err := io.ReadAll(req.Body)
		if err != nil {
			t.Fatalf("read request body: %v", err)
		}
		if err := json.Unmarshal(bodyBytes, &payload); err != nil {
			t.Fatalf("unmarshal request body: %v", err)
		}
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(respBody)), Header: http.Header{}}, nil
	})

	client, err := NewClient("test-key", WithBaseURL("http://maps.test/v1"), WithHTTPClient(&http.Client{Transport: rt}))
	require.NoError(t, err)

	result, err := client.Autocomplete(context.Background(), "12 King St")
	require.NoError(t, err)
	require.Equal(t, expectedURL, capturedURL)
	require.Equal(t, "test-key", capturedHeaders.Get("X-Goog-Api-Key"))
	require.Equal(t, autocompleteFieldMask, capturedHeaders.Get("X-Goog-FieldMask"))
	require.Equal(t, "12 King St", payload["input"])
	require.Equal(t, []any{"AU"}, payload["includedRegionCodes"])
	require.Len(t, result, 1)
	require.Equal(t, "place_123", result[0].PlaceID)
}

func TestClientResolvePlaceMapsComponents(t *testing.T) {
	respBody := `{"id":"place_123","formattedAddress":"12 King St, Newtown NSW 2042","location":{"latitude":-33.89,"longitude":151.18},
	"addressComponents":[
		{"longText":"12","shortText":"12","types":["street_number"]},
		{"longText":"King Street","shortText":"King St","types":["route"]},
		{"longText":"Newtown","shortText":"Newtown","types":["locality","political"]},
		{"longText":"New South Wales","shortText":"NSW","types":["administrative_area_level_1"]},
		{"longText":"2042","shortText":"2042","types":["postal_code"]},
		{"longText":"Australia","shortText":"AU","types":["country"]}]}`

	var capturedURL string
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(respBody)), Header: http.Header{}}, nil
	})
	client, err := NewClient("test-key", WithBaseURL("http://maps.test/v1"), WithHTTPClient(&http.Client{Transport: rt}))
	require.NoError(t, err)

	details, err := client.ResolvePlace(context.Background(), "place_123")
	require.NoError(t, err)
	require.Equal(t, "http://maps.test/v1/places/place_123", capturedURL)
	require.Equal(t, "12 King Street", details.Line1)
	require.Equal(t, "Newtown", details.Suburb)
	require.Equal(t, "NSW", details.State)
	require.Equal(t, "2042", details.Postcode)
	require.Equal(t, "AU", details.Country)
	require.InDelta(t, -33.89, details.Location.Latitude, 1e-9)
}

func TestClientGeocodePostcode(t *testing.T) {
	var components, key string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		components = r.URL.Query().Get("components")
		key = r.URL.Query().Get("key")
		_, _ = w.Write([]byte(`{"status":"OK","results":[{"formatted_address":"Melbourne VIC 3000, Australia",
			"address_components":[{"long_name":"Melbourne","short_name":"Melbourne","types":["locality"]},
			{"long_name":"Victoria","short_name":"VIC","types":["administrative_area_level_1"]}],
			"geometry":{"location":{"lat":-37.8136,"lng":144.9631}}}]}`))
	}))
	defer srv.Close()

	client, err := NewClient("test-key", WithGeocodeURL(srv.URL))
	require.NoError(t, err)

	result, err := client.GeocodePostcode(context.Background(), "3000")
	require.NoError(t, err)
	require.Equal(t, "postal_code:3000|country:AU", components)
	require.Equal(t, "test-key", key)
	require.InDelta(t, -37.8136, result.Location.Latitude, 1e-9)
	require.InDelta(t, 144.9631, result.Location.Longitude, 1e-9)
	require.Equal(t, "Melbourne", result.Suburb)
	require.Equal(t, "VIC", result.State)
}

func TestClientGeocodePostcodeNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
	}))
	defer srv.Close()

	client, err := NewClient("test-key", WithGeocodeURL(srv.URL))
	require.NoError(t, err)

	_, err = client.GeocodePostcode(context.Background(), "0999")
	require.True(t, errors.Is(err, ErrNoResults))
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient("  ")
	require.Error(t, err)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
