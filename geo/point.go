package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	orbgeo "github.com/paulmach/orb/geo"
)

// SRID of every point handled by the service (WGS84).
const SRID = 4326

// EarthRadius is the radius, in meters, used for haversine distances.
const EarthRadius = orb.EarthRadius

var ErrInvalidPoint = errors.New("invalid point")

var sridPrefix = fmt.Sprintf("SRID=%d", SRID)

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// FromOrb converts an x/y (lng lat) orb point.
func FromOrb(p orb.Point) Point {
	return Point{Lat: p.Lat(), Lng: p.Lon()}
}

// Orb returns the point in orb's x/y (lng lat) order.
func (p Point) Orb() orb.Point {
	return orb.Point{p.Lng, p.Lat}
}

// Valid reports whether the point lies within latitude/longitude bounds.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// WKT renders the point as extended well-known text in x/y (lng lat) order.
func (p Point) WKT() string {
	return sridPrefix + ";" + wkt.MarshalString(p.Orb())
}

// Query renders the point as a "lat=<lat>&lng=<lng>" query fragment.
func (p Point) Query() string {
	return "lat=" + formatCoord(p.Lat) + "&lng=" + formatCoord(p.Lng)
}

func (p Point) String() string {
	return p.WKT()
}

// ParseWKT parses "POINT(lng lat)" with an optional "SRID=4326;" prefix.
func ParseWKT(s string) (Point, error) {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, ";"); i >= 0 {
		prefix := strings.ToUpper(strings.TrimSpace(s[:i]))
		if prefix != sridPrefix {
			return Point{}, fmt.Errorf("%w: unsupported srid %q", ErrInvalidPoint, prefix)
		}
		s = strings.TrimSpace(s[i+1:])
	}

	op, err := wkt.UnmarshalPoint(strings.ToUpper(s))
	if err != nil {
		return Point{}, fmt.Errorf("%w: %q: %v", ErrInvalidPoint, s, err)
	}
	p := FromOrb(op)
	if !p.Valid() {
		return Point{}, fmt.Errorf("%w: out of range %q", ErrInvalidPoint, s)
	}
	return p, nil
}

// QueryError reports which of the lat/lng query values were rejected.
type QueryError struct {
	Lat bool
	Lng bool
}

func (e *QueryError) Error() string {
	var bad []string
	if e.Lat {
		bad = append(bad, "lat")
	}
	if e.Lng {
		bad = append(bad, "lng")
	}
	return fmt.Sprintf("%v: bad %s", ErrInvalidPoint, strings.Join(bad, ", "))
}

func (e *QueryError) Unwrap() error { return ErrInvalidPoint }

// ParseQuery builds a point from raw lat and lng query values. A failure is
// a *QueryError naming every rejected value.
func ParseQuery(lat, lng string) (Point, error) {
	la, latOK := parseCoord(lat, 90)
	ln, lngOK := parseCoord(lng, 180)
	if !latOK || !lngOK {
		return Point{}, &QueryError{Lat: !latOK, Lng: !lngOK}
	}
	return Point{Lat: la, Lng: ln}, nil
}

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b Point) float64 {
	return orbgeo.DistanceHaversine(a.Orb(), b.Orb())
}

func parseCoord(s string, limit float64) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.Abs(v) > limit {
		return 0, false
	}
	return v, true
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
