package geocoder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"restaurant-locator/geo"
)

// GoogleResponse is the subset of the Google Geocoding API answer we read.
type GoogleResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Google geocodes through the Google Maps Geocoding API.
type Google struct {
	client  HTTPDoer
	baseURL string
	apiKey  string
}

func NewGoogle(client HTTPDoer, baseURL, apiKey string) *Google {
	if client == nil {
		client = http.DefaultClient
	}
	return &Google{client: client, baseURL: baseURL, apiKey: apiKey}
}

func (g *Google) Name() string { return "google" }

func (g *Google) Geocode(ctx context.Context, address string) (geo.Point, error) {
	params := url.Values{}
	params.Set("address", address)
	params.Set("key", g.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return geo.Point{}, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return geo.Point{}, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return geo.Point{}, err
	}

	var body GoogleResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return geo.Point{}, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}

	switch body.Status {
	case "OK":
	case "ZERO_RESULTS":
		return geo.Point{}, fmt.Errorf("%w for %q", ErrNoResult, address)
	case "OVER_QUERY_LIMIT", "OVER_DAILY_LIMIT", "UNKNOWN_ERROR":
		return geo.Point{}, fmt.Errorf("%w: %s %s", ErrUnavailable, body.Status, body.ErrorMessage)
	default:
		return geo.Point{}, fmt.Errorf("%w: %s %s", ErrRejected, body.Status, body.ErrorMessage)
	}

	if len(body.Results) == 0 {
		return geo.Point{}, fmt.Errorf("%w for %q", ErrNoResult, address)
	}
	loc := body.Results[0].Geometry.Location
	return geo.Point{Lat: loc.Lat, Lng: loc.Lng}, nil
}

// checkStatus maps a non-200 HTTP status to a typed error.
func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("%w: unexpected status: %s", ErrUnavailable, resp.Status)
	default:
		return fmt.Errorf("%w: unexpected status: %s", ErrRejected, resp.Status)
	}
}
