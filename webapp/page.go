package webapp

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"restaurant-locator/serializers"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates parses the embedded page templates.
func Templates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"meters": func(d *serializers.Distance) string {
			return fmt.Sprintf("%.2f m", d.Meters())
		},
		"place": newPlace,
	}).ParseFS(templateFS, "templates/*.html")
}

// place is a restaurant location as shown on the page.
type place struct {
	Text   string
	MapURL string
}

// newPlace returns nil when the restaurant has no usable location.
func newPlace(r serializers.Restaurant) *place {
	p, err := r.Point()
	if err != nil || p == nil {
		return nil
	}
	lat := strconv.FormatFloat(p.Lat, 'f', -1, 64)
	lng := strconv.FormatFloat(p.Lng, 'f', -1, 64)
	return &place{
		Text:   fmt.Sprintf("%.5f, %.5f", p.Lat, p.Lng),
		MapURL: fmt.Sprintf("https://www.openstreetmap.org/?mlat=%s&mlon=%s#map=17/%s/%s", lat, lng, lat, lng),
	}
}

// API is the part of Client used by Page.
type API interface {
	Token(ctx context.Context) (string, error)
	Restaurants(ctx context.Context, token, fragment string) ([]serializers.Restaurant, error)
}

// QueryResolver turns a street into a "lat=..&lng=.." fragment.
type QueryResolver interface {
	ResolveQuery(ctx context.Context, address string) (string, bool)
}

type Page struct {
	api      API
	resolver QueryResolver
	log      *zap.Logger
}

func NewPage(api API, resolver QueryResolver, log *zap.Logger) *Page {
	if log == nil {
		log = zap.NewNop()
	}
	return &Page{api: api, resolver: resolver, log: log}
}

type homeData struct {
	SearchStreet string
	Restaurants  []serializers.Restaurant
	Notice       string
	Error        string
}

// Home renders every restaurant, sorted by distance from ?street= when the
// street can be located.
func (p *Page) Home(c *gin.Context) {
	ctx := c.Request.Context()
	data := homeData{SearchStreet: strings.TrimSpace(c.Query("street"))}

	var fragment string
	if data.SearchStreet != "" {
		var ok bool
		fragment, ok = p.resolver.ResolveQuery(ctx, data.SearchStreet)
		if !ok {
			data.Notice = fmt.Sprintf("Could not locate %q, showing all restaurants.", data.SearchStreet)
		}
	}

	restaurants, err := p.fetch(ctx, fragment)
	if err != nil {
		p.log.Error("restaurant api unavailable", zap.Error(err))
		_ = c.Error(err)
		data.Error = "Restaurants are unavailable right now. Please try again later."
		c.HTML(http.StatusBadGateway, "home.html", data)
		return
	}
	data.Restaurants = restaurants
	c.HTML(http.StatusOK, "home.html", data)
}

func (p *Page) fetch(ctx context.Context, fragment string) ([]serializers.Restaurant, error) {
	token, err := p.api.Token(ctx)
	if err != nil {
		return nil, err
	}
	return p.api.Restaurants(ctx, token, fragment)
}
