package models

import (
	"time"

	"restaurant-locator/geo"
)

// Restaurant is a directory entry. Latitude/Longitude are derived from the
// address at write time and are both set or both nil.
type Restaurant struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"size:100;not null"`
	Address   string    `json:"address" gorm:"size:255;not null"`
	Latitude  *float64  `json:"latitude,omitempty" gorm:"column:latitude"`
	Longitude *float64  `json:"longitude,omitempty" gorm:"column:longitude"`
	CreatedAt time.Time `json:"created" gorm:"column:created;autoCreateTime"`
	UpdatedAt time.Time `json:"modified" gorm:"column:modified;autoUpdateTime"`
}

// Location returns the geocoded point, or nil when the address could not be resolved.
func (r *Restaurant) Location() *geo.Point {
	if r.Latitude == nil || r.Longitude == nil {
		return nil
	}
	return &geo.Point{Lat: *r.Latitude, Lng: *r.Longitude}
}

// SetLocation stores p, clearing the location when p is nil.
func (r *Restaurant) SetLocation(p *geo.Point) {
	if p == nil {
		r.Latitude, r.Longitude = nil, nil
		return
	}
	lat, lng := p.Lat, p.Lng
	r.Latitude, r.Longitude = &lat, &lng
}
