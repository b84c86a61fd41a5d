// Package webapp serves the server-rendered restaurant page. It talks to the
// JSON API over HTTP like any other client.
package webapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"restaurant-locator/auth"
	"restaurant-locator/serializers"
)

// ErrUpstream reports a failed or unexpected response from the API.
var ErrUpstream = errors.New("upstream api error")

// ErrNoCredentials is returned by Token when no account is configured.
var ErrNoCredentials = fmt.Errorf("%w: api credentials not configured", ErrUpstream)

const (
	tokenPath       = "/authentication/token/"
	restaurantsPath = "/api/restaurants"
)

// Client calls the restaurant API with a fixed account.
type Client struct {
	http     *http.Client
	baseURL  string
	username string
	password string
}

func NewClient(httpClient *http.Client, baseURL, username, password string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		http:     httpClient,
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
	}
}

// Token obtains an access token for the configured account.
func (c *Client) Token(ctx context.Context) (string, error) {
	if !c.HasCredentials() {
		return "", ErrNoCredentials
	}
	form := url.Values{"username": {c.username}, "password": {c.password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var pair auth.TokenPair
	if err := c.do(req, &pair); err != nil {
		return "", fmt.Errorf("fetch token: %w", err)
	}
	if pair.AccessToken == "" {
		return "", fmt.Errorf("fetch token: %w: empty access token", ErrUpstream)
	}
	return pair.AccessToken, nil
}

// HasCredentials reports whether both username and password are set.
func (c *Client) HasCredentials() bool {
	return c.username != "" && c.password != ""
}

// Restaurants lists restaurants. fragment is an optional "lat=..&lng=.."
// query that switches the API to distance ordering.
func (c *Client) Restaurants(ctx context.Context, token, fragment string) ([]serializers.Restaurant, error) {
	target := c.baseURL + restaurantsPath
	if fragment != "" {
		target += "?" + fragment
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	var out []serializers.Restaurant
	if err := c.do(req, &out); err != nil {
		return nil, fmt.Errorf("list restaurants: %w", err)
	}
	return out, nil
}

func (c *Client) do(req *http.Request, v any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
	}
	return nil
}
