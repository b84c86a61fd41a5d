package models

import (
	"time"
)

// User is an API account able to request bearer tokens.
type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Username     string    `json:"username" gorm:"size:150;uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"not null"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RevokedToken records the id (jti) of a token that must no longer be accepted.
// Rows past ExpiresAt can be pruned since the token is rejected on expiry anyway.
type RevokedToken struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	TokenID   string    `json:"token_id" gorm:"size:64;uniqueIndex;not null"`
	ExpiresAt time.Time `json:"expires_at" gorm:"index;not null"`
	CreatedAt time.Time `json:"created_at"`
}
