package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"restaurant-locator/auth"
	"restaurant-locator/config"
	"restaurant-locator/geo"
	"restaurant-locator/middleware"
	"restaurant-locator/serializers"
	"restaurant-locator/services"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := serializers.RegisterValidators(); err != nil {
		panic(err)
	}
}

type mapLocator map[string]geo.Point

func (m mapLocator) Resolve(_ context.Context, address string) *geo.Point {
	p, ok := m[address]
	if !ok {
		return nil
	}
	return &p
}

var locations = mapLocator{
	"Keskuskatu 3, Helsinki":      {Lat: 60.1699, Lng: 24.9441},
	"Mannerheimintie 1, Helsinki": {Lat: 60.1685, Lng: 24.9402},
	"Hämeenkatu 1, Tampere":       {Lat: 61.4981, Lng: 23.7610},
}

type testServer struct {
	router *gin.Engine
	db     *gorm.DB
	token  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", name)), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatal(err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := config.Migrate(db); err != nil {
		t.Fatal(err)
	}

	users := services.NewUserService(db)
	tokens := services.NewTokenService(db, auth.NewIssuer([]byte("test"), time.Hour, time.Hour), users)
	restaurants := NewRestaurantHandler(services.NewRestaurantService(db, locations, nil, nil))
	accounts := NewAuthHandler(users, tokens)

	r := gin.New()
	r.GET("/health", Health(db))
	a := r.Group("/authentication")
	a.POST("/register/", accounts.Register)
	a.POST("/token/", accounts.Token)
	a.POST("/token/refresh/", accounts.Refresh)
	a.POST("/token/revoke/", accounts.Revoke)
	api := r.Group("/api", middleware.AuthRequired(tokens))
	api.GET("/restaurants", restaurants.List)
	api.POST("/restaurants", restaurants.Create)
	api.GET("/restaurants/:id", restaurants.Get)
	api.PUT("/restaurants/:id", restaurants.Update)

	if _, err := users.Register(context.Background(), "guest", "guest"); err != nil {
		t.Fatal(err)
	}
	pair, err := tokens.Issue(context.Background(), "guest", "guest")
	if err != nil {
		t.Fatal(err)
	}
	return &testServer{router: r, db: db, token: pair.AccessToken}
}

func (s *testServer) do(t *testing.T, method, target string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) count(t *testing.T) int64 {
	t.Helper()
	var n int64
	if err := s.db.Table("restaurants").Count(&n).Error; err != nil {
		t.Fatal(err)
	}
	return n
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestRequiresToken(t *testing.T) {
	s := newTestServer(t)
	body := map[string]string{"name": "Rest X", "address": "Keskuskatu 3, Helsinki"}

	cases := []struct {
		method, target, token string
	}{
		{http.MethodGet, "/api/restaurants", ""},
		{http.MethodPost, "/api/restaurants", ""},
		{http.MethodPost, "/api/restaurants", "not-a-token"},
		{http.MethodGet, "/api/restaurants/1", ""},
		{http.MethodPut, "/api/restaurants/1", ""},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.target, func(t *testing.T) {
			w := s.do(t, tc.method, tc.target, body, tc.token)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d; want 401", w.Code)
			}
		})
	}
	if n := s.count(t); n != 0 {
		t.Fatalf("%d restaurants stored by unauthenticated requests", n)
	}
}

func TestCreateAndRetrieve(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/restaurants", map[string]string{"name": "Rest X", "address": "Keskuskatu 3, Helsinki"}, s.token)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d; body %s", w.Code, w.Body)
	}
	created := decode[serializers.Restaurant](t, w)
	if created.ID == 0 || created.Location == nil || *created.Location != "SRID=4326;POINT(24.9441 60.1699)" {
		t.Fatalf("unexpected created record: %s", w.Body)
	}
	if strings.Contains(w.Body.String(), "distance") {
		t.Fatalf("create response should not include distance: %s", w.Body)
	}

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/restaurants/%d", created.ID), nil, s.token)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	got := decode[serializers.Restaurant](t, w)
	if got.Name != "Rest X" || got.Address != "Keskuskatu 3, Helsinki" || *got.Location != *created.Location {
		t.Fatalf("retrieved %+v; want %+v", got, created)
	}
}

func TestCreateWithoutLocation(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodPost, "/api/restaurants", map[string]string{"name": "Ghost", "address": "Nowhere 0"}, s.token)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d; body %s", w.Code, w.Body)
	}
	if !strings.Contains(w.Body.String(), `"location":null`) {
		t.Fatalf("expected null location: %s", w.Body)
	}
}

func TestCreateValidation(t *testing.T) {
	s := newTestServer(t)

	cases := []struct {
		name  string
		body  any
		field string
	}{
		{"empty body", nil, "name"},
		{"missing name", map[string]string{"address": "Keskuskatu 3, Helsinki"}, "name"},
		{"blank address", map[string]string{"name": "X", "address": "   "}, "address"},
		{"long name", map[string]string{"name": strings.Repeat("n", 101), "address": "a"}, "name"},
		{"wrong type", map[string]any{"name": 12, "address": "a"}, "name"},
		{"list body", []any{}, "non_field_errors"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/api/restaurants", tc.body, s.token)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d; want 400", w.Code)
			}
			resp := decode[struct {
				Fields map[string][]string `json:"fields"`
			}](t, w)
			if len(resp.Fields[tc.field]) == 0 {
				t.Fatalf("expected an error for %q, got %v", tc.field, resp.Fields)
			}
		})
	}
	if n := s.count(t); n != 0 {
		t.Fatalf("%d restaurants stored by invalid requests", n)
	}
}

func TestCreateFromForm(t *testing.T) {
	s := newTestServer(t)
	form := url.Values{"name": {"Form Cafe"}, "address": {"Hämeenkatu 1, Tampere"}}
	req := httptest.NewRequest(http.MethodPost, "/api/restaurants", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+s.token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d; body %s", w.Code, w.Body)
	}
}

func TestGetNotFound(t *testing.T) {
	s := newTestServer(t)
	for _, target := range []string{"/api/restaurants/42", "/api/restaurants/abc", "/api/restaurants/0"} {
		if w := s.do(t, http.MethodGet, target, nil, s.token); w.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d; want 404", target, w.Code)
		}
	}
	w := s.do(t, http.MethodPut, "/api/restaurants/42", map[string]string{"name": "a", "address": "b"}, s.token)
	if w.Code != http.StatusNotFound {
		t.Errorf("PUT status = %d; want 404", w.Code)
	}
}

func TestUpdate(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodPost, "/api/restaurants", map[string]string{"name": "Rest X", "address": "Keskuskatu 3, Helsinki"}, s.token)
	created := decode[serializers.Restaurant](t, w)
	target := fmt.Sprintf("/api/restaurants/%d", created.ID)

	w = s.do(t, http.MethodPut, target, map[string]string{"address": "Hämeenkatu 1, Tampere"}, s.token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("update without name status = %d; want 400", w.Code)
	}
	unchanged := decode[serializers.Restaurant](t, s.do(t, http.MethodGet, target, nil, s.token))
	if unchanged.Address != "Keskuskatu 3, Helsinki" || *unchanged.Location != *created.Location {
		t.Fatalf("record changed by rejected update: %+v", unchanged)
	}

	w = s.do(t, http.MethodPut, target, map[string]string{"name": "Rest Y", "address": "Hämeenkatu 1, Tampere"}, s.token)
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d; body %s", w.Code, w.Body)
	}
	updated := decode[serializers.Restaurant](t, w)
	if updated.Name != "Rest Y" || updated.Location == nil || *updated.Location != "SRID=4326;POINT(23.761 61.4981)" {
		t.Fatalf("unexpected updated record: %s", w.Body)
	}

	w = s.do(t, http.MethodPut, target, map[string]string{"name": "Rest Z", "address": "Unknown street"}, s.token)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"location":null`) {
		t.Fatalf("expected cleared location, got %d %s", w.Code, w.Body)
	}
}

var twoDecimals = regexp.MustCompile(`"distance":\d+\.\d{2}[,}]`)

func TestListByDistance(t *testing.T) {
	s := newTestServer(t)
	for _, r := range []map[string]string{
		{"name": "Tampere", "address": "Hämeenkatu 1, Tampere"},
		{"name": "Ghost", "address": "Nowhere"},
		{"name": "Station", "address": "Keskuskatu 3, Helsinki"},
		{"name": "Corner", "address": "Mannerheimintie 1, Helsinki"},
	} {
		if w := s.do(t, http.MethodPost, "/api/restaurants", r, s.token); w.Code != http.StatusCreated {
			t.Fatalf("seed status = %d", w.Code)
		}
	}

	w := s.do(t, http.MethodGet, "/api/restaurants?lat=60.1699&lng=24.9441", nil, s.token)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body %s", w.Code, w.Body)
	}
	list := decode[[]serializers.Restaurant](t, w)
	var names []string
	for _, r := range list {
		names = append(names, r.Name)
	}
	if got, want := strings.Join(names, ","), "Station,Corner,Tampere,Ghost"; got != want {
		t.Fatalf("order = %s; want %s", got, want)
	}
	for i := 1; i < 3; i++ {
		if list[i].Distance.Meters() < list[i-1].Distance.Meters() {
			t.Fatalf("distances not ascending: %v", names)
		}
	}
	if list[3].Distance != nil {
		t.Fatalf("restaurant without location should have no distance")
	}
	if n := len(twoDecimals.FindAllString(w.Body.String(), -1)); n != 3 {
		t.Fatalf("found %d two-decimal distances in %s; want 3", n, w.Body)
	}
	if !strings.Contains(w.Body.String(), `"distance":0.00`) {
		t.Fatalf("expected zero distance for the reference restaurant: %s", w.Body)
	}

	for _, query := range []string{"?lat=60.1699", "?lat=&lng=", "?lat=60.1699&lng=", "?lat=+&lng=24.9441"} {
		plain := s.do(t, http.MethodGet, "/api/restaurants"+query, nil, s.token)
		if plain.Code != http.StatusOK {
			t.Fatalf("GET %s status = %d; want 200", query, plain.Code)
		}
		if strings.Contains(plain.Body.String(), "distance") {
			t.Fatalf("GET %s should list without distances: %s", query, plain.Body)
		}
		if got := decode[[]serializers.Restaurant](t, plain); got[0].Name != "Tampere" {
			t.Fatalf("GET %s should be in insertion order, got %q first", query, got[0].Name)
		}
	}
}

func TestListInvalidCoordinates(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/api/restaurants?lat=north&lng=200", nil, s.token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", w.Code)
	}
	resp := decode[struct {
		Fields map[string][]string `json:"fields"`
	}](t, w)
	if len(resp.Fields["lat"]) == 0 || len(resp.Fields["lng"]) == 0 {
		t.Fatalf("expected lat and lng errors, got %v", resp.Fields)
	}
}

func TestTokenEndpoints(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/authentication/register/", map[string]string{"username": "alice", "password": "s3cret"}, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d; body %s", w.Code, w.Body)
	}
	if w := s.do(t, http.MethodPost, "/authentication/register/", map[string]string{"username": "alice", "password": "s3cret"}, ""); w.Code != http.StatusConflict {
		t.Fatalf("duplicate register status = %d; want 409", w.Code)
	}

	if w := s.do(t, http.MethodPost, "/authentication/token/", map[string]string{"username": "alice", "password": "nope"}, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad password status = %d; want 401", w.Code)
	}

	form := url.Values{"username": {"alice"}, "password": {"s3cret"}, "grant_type": {"password"}}
	req := httptest.NewRequest(http.MethodPost, "/authentication/token/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("token status = %d; body %s", w.Code, w.Body)
	}
	pair := decode[auth.TokenPair](t, w)
	if pair.TokenType != "Bearer" || pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("unexpected token pair: %s", w.Body)
	}

	w = s.do(t, http.MethodPost, "/authentication/token/refresh/", map[string]string{"refresh_token": pair.RefreshToken}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("refresh status = %d; body %s", w.Code, w.Body)
	}
	refreshed := decode[auth.TokenPair](t, w)
	if w := s.do(t, http.MethodPost, "/authentication/token/refresh/", map[string]string{"refresh_token": pair.RefreshToken}, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("reused refresh status = %d; want 401", w.Code)
	}

	if w := s.do(t, http.MethodGet, "/api/restaurants", nil, refreshed.AccessToken); w.Code != http.StatusOK {
		t.Fatalf("list with refreshed token status = %d", w.Code)
	}
	for i := 0; i < 2; i++ {
		if w := s.do(t, http.MethodPost, "/authentication/token/revoke/", map[string]string{"token": refreshed.AccessToken}, ""); w.Code != http.StatusOK {
			t.Fatalf("revoke status = %d", w.Code)
		}
	}
	if w := s.do(t, http.MethodGet, "/api/restaurants", nil, refreshed.AccessToken); w.Code != http.StatusUnauthorized {
		t.Fatalf("list with revoked token status = %d; want 401", w.Code)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/health", nil, "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"database":"ok"`) {
		t.Fatalf("health = %d %s", w.Code, w.Body)
	}
}
