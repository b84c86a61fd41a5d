package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"restaurant-locator/geo"
	"restaurant-locator/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("record not found")

// Event kinds passed to a Notifier.
const (
	RestaurantCreated = "restaurant.created"
	RestaurantUpdated = "restaurant.updated"
)

// Locator resolves an address to a point, or nil when none is available.
type Locator interface {
	Resolve(ctx context.Context, address string) *geo.Point
}

// Notifier is told about every persisted restaurant change.
type Notifier interface {
	Notify(ctx context.Context, kind string, r *models.Restaurant) error
}

// RestaurantResult is a restaurant plus its distance in meters from the
// reference point of a query. Distance is nil without a reference point or
// when the restaurant has no location.
type RestaurantResult struct {
	models.Restaurant
	Distance *float64 `gorm:"column:distance"`
}

type RestaurantService struct {
	db       *gorm.DB
	locator  Locator
	notifier Notifier
	log      *zap.Logger
}

func NewRestaurantService(db *gorm.DB, locator Locator, notifier Notifier, log *zap.Logger) *RestaurantService {
	if log == nil {
		log = zap.NewNop()
	}
	return &RestaurantService{db: db, locator: locator, notifier: notifier, log: log}
}

// List returns every restaurant. Without ref the order is insertion (id)
// order. With ref, located restaurants come first by ascending distance,
// followed by restaurants without a location; ties are broken by id.
func (s *RestaurantService) List(ctx context.Context, ref *geo.Point) ([]RestaurantResult, error) {
	db := s.db.WithContext(ctx)
	if ref != nil && db.Dialector.Name() == "postgres" {
		return s.listByDistanceSQL(db, *ref)
	}

	var restaurants []models.Restaurant
	if err := db.Order("id ASC").Find(&restaurants).Error; err != nil {
		return nil, fmt.Errorf("list restaurants: %w", err)
	}

	results := make([]RestaurantResult, len(restaurants))
	for i := range restaurants {
		results[i].Restaurant = restaurants[i]
		if ref == nil {
			continue
		}
		if loc := restaurants[i].Location(); loc != nil {
			d := geo.Distance(*ref, *loc)
			results[i].Distance = &d
		}
	}

	if ref != nil {
		sort.SliceStable(results, func(i, j int) bool {
			a, b := results[i].Distance, results[j].Distance
			switch {
			case a == nil:
				return false
			case b == nil:
				return true
			default:
				return *a < *b
			}
		})
	}
	return results, nil
}

// haversineSQL computes the distance in meters; NULL when the row has no location.
var haversineSQL = `CASE WHEN latitude IS NULL OR longitude IS NULL THEN NULL
	ELSE 2 * ` + strconv.FormatFloat(geo.EarthRadius, 'f', -1, 64) + ` * asin(least(1, sqrt(
		power(sin(radians(latitude - ?) / 2), 2) +
		cos(radians(?)) * cos(radians(latitude)) * power(sin(radians(longitude - ?) / 2), 2)
	))) END`

// distanceQuery selects every restaurant with its distance from ref, nearest
// first and unlocated rows last.
func distanceQuery(db *gorm.DB, ref geo.Point) *gorm.DB {
	return db.Model(&models.Restaurant{}).
		Select("restaurants.*, "+haversineSQL+" AS distance", ref.Lat, ref.Lat, ref.Lng).
		Order("distance ASC NULLS LAST, id ASC")
}

func (s *RestaurantService) listByDistanceSQL(db *gorm.DB, ref geo.Point) ([]RestaurantResult, error) {
	var results []RestaurantResult
	if err := distanceQuery(db, ref).Find(&results).Error; err != nil {
		return nil, fmt.Errorf("list restaurants by distance: %w", err)
	}
	return results, nil
}

// Get returns one restaurant or ErrNotFound.
func (s *RestaurantService) Get(ctx context.Context, id uint) (*models.Restaurant, error) {
	var r models.Restaurant
	if err := s.db.WithContext(ctx).First(&r, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get restaurant %d: %w", id, err)
	}
	return &r, nil
}

// Create geocodes address and stores a new restaurant, with or without a location.
func (s *RestaurantService) Create(ctx context.Context, name, address string) (*models.Restaurant, error) {
	r := models.Restaurant{Name: name, Address: address}
	r.SetLocation(s.locator.Resolve(ctx, address))

	if err := s.db.WithContext(ctx).Create(&r).Error; err != nil {
		return nil, fmt.Errorf("create restaurant: %w", err)
	}
	s.notify(ctx, RestaurantCreated, &r)
	return &r, nil
}

// Update replaces name and address and re-geocodes, clearing the location
// when the new address cannot be resolved. Concurrent updates: last write wins.
func (s *RestaurantService) Update(ctx context.Context, id uint, name, address string) (*models.Restaurant, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	r.Name = name
	r.Address = address
	r.SetLocation(s.locator.Resolve(ctx, address))

	if err := s.db.WithContext(ctx).Save(r).Error; err != nil {
		return nil, fmt.Errorf("update restaurant %d: %w", id, err)
	}
	s.notify(ctx, RestaurantUpdated, r)
	return r, nil
}

func (s *RestaurantService) notify(ctx context.Context, kind string, r *models.Restaurant) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, kind, r); err != nil {
		s.log.Warn("failed to publish restaurant event",
			zap.String("kind", kind),
			zap.Uint("restaurant_id", r.ID),
			zap.Error(err))
	}
}
