package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"restaurant-locator/geo"
	"restaurant-locator/models"
	"restaurant-locator/serializers"
	"restaurant-locator/services"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// RestaurantStore is the persistence and geocoding behaviour the handlers need.
type RestaurantStore interface {
	List(ctx context.Context, ref *geo.Point) ([]services.RestaurantResult, error)
	Get(ctx context.Context, id uint) (*models.Restaurant, error)
	Create(ctx context.Context, name, address string) (*models.Restaurant, error)
	Update(ctx context.Context, id uint, name, address string) (*models.Restaurant, error)
}

type RestaurantHandler struct {
	restaurants RestaurantStore
}

func NewRestaurantHandler(restaurants RestaurantStore) *RestaurantHandler {
	return &RestaurantHandler{restaurants: restaurants}
}

// List returns every restaurant, sorted by distance when lat and lng are given
func (h *RestaurantHandler) List(c *gin.Context) {
	ref, fields := referencePoint(c)
	if fields != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters", "fields": fields})
		return
	}

	results, err := h.restaurants.List(c.Request.Context(), ref)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list restaurants"})
		return
	}

	out := make([]serializers.Restaurant, len(results))
	for i := range results {
		out[i] = serializers.NewRestaurant(&results[i].Restaurant, results[i].Distance)
	}
	c.JSON(http.StatusOK, out)
}

// Create validates the input, geocodes the address and stores the restaurant
func (h *RestaurantHandler) Create(c *gin.Context) {
	input, ok := bindRestaurant(c)
	if !ok {
		return
	}

	restaurant, err := h.restaurants.Create(c.Request.Context(), input.Name, input.Address)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create restaurant"})
		return
	}
	c.JSON(http.StatusCreated, serializers.NewRestaurant(restaurant, nil))
}

// Get returns one restaurant; lat and lng add its distance from that point
func (h *RestaurantHandler) Get(c *gin.Context) {
	restaurant, ok := h.lookup(c)
	if !ok {
		return
	}
	ref, fields := referencePoint(c)
	if fields != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters", "fields": fields})
		return
	}

	var distance *float64
	if loc := restaurant.Location(); ref != nil && loc != nil {
		d := geo.Distance(*ref, *loc)
		distance = &d
	}
	c.JSON(http.StatusOK, serializers.NewRestaurant(restaurant, distance))
}

// Update replaces name and address and re-geocodes the restaurant
func (h *RestaurantHandler) Update(c *gin.Context) {
	restaurant, ok := h.lookup(c)
	if !ok {
		return
	}
	input, ok := bindRestaurant(c)
	if !ok {
		return
	}

	updated, err := h.restaurants.Update(c.Request.Context(), restaurant.ID, input.Name, input.Address)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Restaurant not found"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update restaurant"})
		return
	}
	c.JSON(http.StatusOK, serializers.NewRestaurant(updated, nil))
}

func (h *RestaurantHandler) lookup(c *gin.Context) (*models.Restaurant, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Restaurant not found"})
		return nil, false
	}
	restaurant, err := h.restaurants.Get(c.Request.Context(), uint(id))
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Restaurant not found"})
			return nil, false
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch restaurant"})
		return nil, false
	}
	return restaurant, true
}

// bindRestaurant decodes a JSON or form body. An empty body is validated as
// an empty object so that every missing field is reported.
func bindRestaurant(c *gin.Context) (serializers.RestaurantInput, bool) {
	var input serializers.RestaurantInput
	err := c.ShouldBind(&input)
	if errors.Is(err, io.EOF) {
		err = binding.Validator.ValidateStruct(&input)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid restaurant data", "fields": serializers.FieldErrors(err)})
		return input, false
	}
	return input, true
}

// referencePoint reads lat and lng from the query. A missing or empty lat
// or lng means no reference point.
func referencePoint(c *gin.Context) (*geo.Point, map[string][]string) {
	lat := strings.TrimSpace(c.Query("lat"))
	lng := strings.TrimSpace(c.Query("lng"))
	if lat == "" || lng == "" {
		return nil, nil
	}

	p, err := geo.ParseQuery(lat, lng)
	var qe *geo.QueryError
	switch {
	case err == nil:
		return &p, nil
	case errors.As(err, &qe):
		fields := map[string][]string{}
		if qe.Lat {
			fields["lat"] = []string{"Ensure this value is a number between -90 and 90."}
		}
		if qe.Lng {
			fields["lng"] = []string{"Ensure this value is a number between -180 and 180."}
		}
		return nil, fields
	default:
		return nil, map[string][]string{serializers.NonFieldErrors: {err.Error()}}
	}
}
