package serializers

import (
	"encoding/json"
	"math"
	"strconv"

	"restaurant-locator/geo"
	"restaurant-locator/models"
)

// Restaurant is the wire representation of a restaurant. Location and
// Distance are computed server side and ignored on input.
type Restaurant struct {
	ID       uint      `json:"id"`
	Name     string    `json:"name"`
	Address  string    `json:"address"`
	Location *string   `json:"location"`
	Distance *Distance `json:"distance,omitempty"`
}

// RestaurantInput is the accepted request body for create and full update.
type RestaurantInput struct {
	Name    string `json:"name" form:"name" binding:"required,notblank,max=100"`
	Address string `json:"address" form:"address" binding:"required,notblank,max=255"`
}

// Distance is a length in meters rendered with exactly two decimals.
type Distance float64

func (d Distance) MarshalJSON() ([]byte, error) {
	v := math.Round(float64(d)*100) / 100
	return []byte(strconv.FormatFloat(v, 'f', 2, 64)), nil
}

func (d *Distance) UnmarshalJSON(b []byte) error {
	// Accept both 12.30 and "12.30".
	var s json.Number
	if err := json.Unmarshal(b, &s); err != nil {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		s = json.Number(str)
	}
	f, err := s.Float64()
	if err != nil {
		return err
	}
	*d = Distance(f)
	return nil
}

// Meters returns the distance as a float.
func (d Distance) Meters() float64 {
	return float64(d)
}

// NewRestaurant serializes r. distance is included only when non-nil.
func NewRestaurant(r *models.Restaurant, distance *float64) Restaurant {
	out := Restaurant{
		ID:      r.ID,
		Name:    r.Name,
		Address: r.Address,
	}
	if loc := r.Location(); loc != nil {
		wkt := loc.WKT()
		out.Location = &wkt
	}
	if distance != nil {
		d := Distance(*distance)
		out.Distance = &d
	}
	return out
}

// Point parses the location back into a point, or nil when absent.
func (r Restaurant) Point() (*geo.Point, error) {
	if r.Location == nil {
		return nil, nil
	}
	p, err := geo.ParseWKT(*r.Location)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
