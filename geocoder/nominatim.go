package geocoder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"restaurant-locator/geo"
)

// NominatimResponse is shaped for the OSM search API response.
type NominatimResponse []struct {
	PlaceID     int64  `json:"place_id"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Type        string `json:"type"`
}

// Nominatim geocodes through an OpenStreetMap Nominatim instance.
type Nominatim struct {
	client  HTTPDoer
	baseURL string
}

func NewNominatim(client HTTPDoer, baseURL string) *Nominatim {
	if client == nil {
		client = http.DefaultClient
	}
	return &Nominatim{client: client, baseURL: baseURL}
}

func (n *Nominatim) Name() string { return "nominatim" }

func (n *Nominatim) Geocode(ctx context.Context, address string) (geo.Point, error) {
	params := url.Values{}
	params.Set("q", address)
	params.Set("format", "json")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return geo.Point{}, err
	}
	// Nominatim's usage policy requires an identifying User-Agent.
	req.Header.Set("User-Agent", userAgent)

	resp, err := n.client.Do(req)
	if err != nil {
		return geo.Point{}, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return geo.Point{}, err
	}

	var results NominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return geo.Point{}, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if len(results) == 0 {
		return geo.Point{}, fmt.Errorf("%w for %q", ErrNoResult, address)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("%w: bad lat %q", ErrNoResult, results[0].Lat)
	}
	lng, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("%w: bad lon %q", ErrNoResult, results[0].Lon)
	}
	return geo.Point{Lat: lat, Lng: lng}, nil
}
