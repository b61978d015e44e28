package maps

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/northcraft/cabinetry-backend/pkg/errors"
)

const (
	defaultPlacesURL            = "https://places.googleapis.com/v1"
	defaultGeocodeURL           = "https://maps.googleapis.com/maps/api/geocode/json"
	defaultRegion               = "AU"
	autocompleteFieldMask       = "suggestions.placePrediction.placeId,suggestions.placePrediction.text"
	placeResolveFieldMask       = "id,formattedAddress,location,addressComponents"
	responseReadLimit     int64 = 1024
)

var errAPIKeyRequired = errors.New("google maps api key is required")

// ErrNoResults is returned when geocoding finds nothing for the query.
var ErrNoResults = errors.New("no geocoding results")

// Client wraps the Google Places and Geocoding APIs used for address entry and
// postcode coordinates.
type Client struct {
	httpClient *http.Client
	placesURL  string
	geocodeURL string
	apiKey     string
	region     string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the Places base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.placesURL = trimmed
		}
	}
}

// WithGeocodeURL overrides the Geocoding endpoint.
func WithGeocodeURL(endpoint string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(endpoint); trimmed != "" {
			c.geocodeURL = trimmed
		}
	}
}

// WithRegion restricts lookups to an ISO 3166-1 country code.
func WithRegion(region string) Option {
	return func(c *Client) {
		if trimmed := strings.ToUpper(strings.TrimSpace(region)); trimmed != "" {
			c.region = trimmed
		}
	}
}

// NewClient builds the Google Maps client given an API key.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(apiKey)
	if trimmedKey == "" {
		return nil, errAPIKeyRequired
	}

	client := &Client{
		apiKey:     trimmedKey,
		placesURL:  defaultPlacesURL,
		geocodeURL: defaultGeocodeURL,
		region:     defaultRegion,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// AutocompleteSuggestion holds a single Places prediction.
type AutocompleteSuggestion struct {
	PlaceID     string `json:"place_id"`
	Description string `json:"description"`
}

// LatLng is a latitude/longitude pair in decimal degrees.
type LatLng struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// ResolvedAddress is a place broken into the fields of an address book entry.
type ResolvedAddress struct {
	PlaceID          string `json:"place_id"`
	FormattedAddress string `json:"formatted_address"`
	Line1            string `json:"line1"`
	Suburb           string `json:"suburb"`
	State            string `json:"state"`
	Postcode         string `json:"postcode"`
	Country          string `json:"country"`
	Location         LatLng `json:"location"`
}

// GeocodeResult is the location Google assigns to a postcode.
type GeocodeResult struct {
	Location         LatLng
	FormattedAddress string
	Suburb           string
	State            string
}

type addressComponent struct {
	LongName  string
	ShortName string
	Types     []string
}

// Autocomplete returns address suggestions for partial input.
func (c *Client) Autocomplete(ctx context.Context, input string) ([]AutocompleteSuggestion, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "google maps client not configured")
	}
	if strings.TrimSpace(input) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "autocomplete input is required")
	}

	payload, err := json.Marshal(map[string]any{
		"input":               input,
		"includedRegionCodes": []string{c.region},
		"languageCode":        "en",
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal autocomplete request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.placesEndpoint("places:autocomplete"), bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build autocomplete request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-FieldMask", autocompleteFieldMask)

	var apiResp struct {
		Suggestions []struct {
			Prediction struct {
				PlaceID string `json:"placeId"`
				Text    struct {
					Text string `json:"text"`
				} `json:"text"`
			} `json:"placePrediction"`
		} `json:"suggestions"`
	}
	if err := c.do(req, "autocomplete", &apiResp); err != nil {
		return nil, err
	}

	suggestions := make([]AutocompleteSuggestion, 0, len(apiResp.Suggestions))
	for _, s := range apiResp.Suggestions {
		suggestions = append(suggestions, AutocompleteSuggestion{
			PlaceID:     s.Prediction.PlaceID,
			Description: s.Prediction.Text.Text,
		})
	}
	return suggestions, nil
}

// ResolvePlace fetches a place and maps its components to address fields.
func (c *Client) ResolvePlace(ctx context.Context, placeID string) (*ResolvedAddress, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "google maps client not configured")
	}
	trimmed := strings.TrimSpace(placeID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "place ID is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.placesEndpoint("places/"+url.PathEscape(trimmed)), nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build place resolve request")
	}
	req.Header.Set("X-Goog-FieldMask", placeResolveFieldMask)

	var apiResp struct {
		ID               string `json:"id"`
		FormattedAddress string `json:"formattedAddress"`
		Location         struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"location"`
		AddressComponents []struct {
			LongName  string   `json:"longText"`
			ShortName string   `json:"shortText"`
			Types     []string `json:"types"`
		} `json:"addressComponents"`
	}
	if err := c.do(req, "place resolve", &apiResp); err != nil {
		return nil, err
	}

	components := make([]addressComponent, 0, len(apiResp.AddressComponents))
	for _, comp := range apiResp.AddressComponents {
		components = append(components, addressComponent{LongName: comp.LongName, ShortName: comp.ShortName, Types: comp.Types})
	}

	line1 := strings.TrimSpace(componentLong(components, "street_number") + " " + componentLong(components, "route"))
	return &ResolvedAddress{
		PlaceID:          apiResp.ID,
		FormattedAddress: apiResp.FormattedAddress,
		Line1:            line1,
		Suburb:           componentLong(components, "locality"),
		State:            componentShort(components, "administrative_area_level_1"),
		Postcode:         componentLong(components, "postal_code"),
		Country:          componentShort(components, "country"),
		Location:         LatLng{Latitude: apiResp.Location.Latitude, Longitude: apiResp.Location.Longitude},
	}, nil
}

// GeocodePostcode resolves the centroid of a postcode within the configured
// region.
func (c *Client) GeocodePostcode(ctx context.Context, postcode string) (*GeocodeResult, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "google maps client not configured")
	}
	trimmed := strings.TrimSpace(postcode)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "postcode is required")
	}

	query := url.Values{}
	query.Set("components", fmt.Sprintf("postal_code:%s|country:%s", trimmed, c.region))
	query.Set("key", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.geocodeURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build geocode request")
	}

	var apiResp struct {
		Status       string `json:"status"`
		ErrorMessage string `json:"error_message"`
		Results      []struct {
			FormattedAddress  string `json:"formatted_address"`
			AddressComponents []struct {
				LongName  string   `json:"long_name"`
				ShortName string   `json:"short_name"`
				Types     []string `json:"types"`
			} `json:"address_components"`
			Geometry struct {
				Location struct {
					Lat float64 `json:"lat"`
					Lng float64 `json:"lng"`
				} `json:"location"`
			} `json:"geometry"`
		} `json:"results"`
	}
	if err := c.do(req, "geocode", &apiResp); err != nil {
		return nil, err
	}

	switch apiResp.Status {
	case "OK":
	case "ZERO_RESULTS":
		return nil, ErrNoResults
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("%s: %s", apiResp.Status, apiResp.ErrorMessage), "geocode request rejected")
	}
	if len(apiResp.Results) == 0 {
		return nil, ErrNoResults
	}

	first := apiResp.Results[0]
	components := make([]addressComponent, 0, len(first.AddressComponents))
	for _, comp := range first.AddressComponents {
		components = append(components, addressComponent{LongName: comp.LongName, ShortName: comp.ShortName, Types: comp.Types})
	}
	return &GeocodeResult{
		Location:         LatLng{Latitude: first.Geometry.Location.Lat, Longitude: first.Geometry.Location.Lng},
		FormattedAddress: first.FormattedAddress,
		Suburb:           componentLong(components, "locality"),
		State:            componentShort(components, "administrative_area_level_1"),
	}, nil
}

func (c *Client) do(req *http.Request, operation string, out any) error {
	if req.Header.Get("X-Goog-FieldMask") != "" {
		req.Header.Set("X-Goog-Api-Key", c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute "+operation+" request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), operation+" request failed")
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode "+operation+" response")
	}
	return nil
}

func (c *Client) placesEndpoint(path string) string {
	return fmt.Sprintf("%s/%s", strings.TrimRight(c.placesURL, "/"), strings.TrimLeft(path, "/"))
}

func componentLong(components []addressComponent, kind string) string {
	if comp, ok := findComponent(components, kind); ok {
		return comp.LongName
	}
	return ""
}

func componentShort(components []addressComponent, kind string) string {
	if comp, ok := findComponent(components, kind); ok {
		return comp.ShortName
	}
	return ""
}

func findComponent(components []addressComponent, kind string) (addressComponent, bool) {
	for _, comp := range components {
		for _, t := range comp.Types {
			if t == kind {
				return comp, true
			}
		}
	}
	return addressComponent{}, false
}
