// Package geocoder turns free-text addresses into WGS84 points through an
// external provider. Providers report failures as typed errors; Resolver adds
// the timeout and retry policy and degrades every failure to "no location".
package geocoder

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"restaurant-locator/geo"
)

var (
	// ErrNoResult means the provider answered but knows no such address.
	ErrNoResult = errors.New("geocoder: no result")
	// ErrUnavailable is a transient provider failure (5xx, quota, throttling).
	ErrUnavailable = errors.New("geocoder: provider unavailable")
	// ErrRejected means the provider refused the request (bad key, bad request).
	ErrRejected = errors.New("geocoder: request rejected")
)

// Geocoder resolves a single address.
type Geocoder interface {
	Name() string
	Geocode(ctx context.Context, address string) (geo.Point, error)
}

// HTTPDoer is the part of *http.Client used by the providers.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

const userAgent = "restaurant-locator/1.0"

// ProviderConfig selects and configures a provider.
type ProviderConfig struct {
	Name         string
	GoogleURL    string
	GoogleAPIKey string
	NominatimURL string
}

// NewProvider builds the Geocoder named by cfg.Name ("google" or "nominatim").
func NewProvider(client HTTPDoer, cfg ProviderConfig) (Geocoder, error) {
	switch cfg.Name {
	case "", "google":
		if cfg.GoogleAPIKey == "" {
			return nil, errors.New("geocoder: google provider requires an API key")
		}
		return NewGoogle(client, cfg.GoogleURL, cfg.GoogleAPIKey), nil
	case "nominatim":
		return NewNominatim(client, cfg.NominatimURL), nil
	default:
		return nil, fmt.Errorf("geocoder: unknown provider %q", cfg.Name)
	}
}
