package services

import (
	"context"
	"errors"
	"fmt"

	"restaurant-locator/auth"
	"restaurant-locator/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TokenService issues, refreshes, revokes and validates bearer tokens.
type TokenService struct {
	db     *gorm.DB
	issuer *auth.Issuer
	users  *UserService
}

func NewTokenService(db *gorm.DB, issuer *auth.Issuer, users *UserService) *TokenService {
	return &TokenService{db: db, issuer: issuer, users: users}
}

// Issue exchanges username and password for a token pair.
func (s *TokenService) Issue(ctx context.Context, username, password string) (*auth.TokenPair, error) {
	user, err := s.users.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}
	return s.issuer.IssuePair(user)
}

// Refresh exchanges a refresh token for a new pair. The used refresh token is
// revoked so it can only be exchanged once.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	claims, err := s.check(ctx, refreshToken, auth.RefreshToken)
	if err != nil {
		return nil, err
	}
	user, err := s.users.Get(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, auth.ErrInvalidToken
		}
		return nil, err
	}
	if err := s.revoke(ctx, claims); err != nil {
		return nil, err
	}
	return s.issuer.IssuePair(user)
}

// Revoke invalidates an access or refresh token. Unknown or already invalid
// tokens are accepted silently.
func (s *TokenService) Revoke(ctx context.Context, token string) error {
	claims, err := s.issuer.Parse(token, auth.AccessToken)
	if err != nil {
		claims, err = s.issuer.Parse(token, auth.RefreshToken)
	}
	if err != nil {
		return nil
	}
	if err := s.revoke(ctx, claims); err != nil && !errors.Is(err, auth.ErrRevokedToken) {
		return err
	}
	return nil
}

// Validate checks an access token, including revocation.
func (s *TokenService) Validate(ctx context.Context, token string) (*auth.Claims, error) {
	return s.check(ctx, token, auth.AccessToken)
}

func (s *TokenService) check(ctx context.Context, token string, typ auth.TokenType) (*auth.Claims, error) {
	claims, err := s.issuer.Parse(token, typ)
	if err != nil {
		return nil, err
	}
	var count int64
	err = s.db.WithContext(ctx).Model(&models.RevokedToken{}).
		Where("token_id = ?", claims.ID).
		Count(&count).Error
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if count > 0 {
		return nil, auth.ErrRevokedToken
	}
	return claims, nil
}

// revoke records claims as revoked. It reports ErrRevokedToken when another
// caller got there first, so a refresh token is exchanged at most once.
func (s *TokenService) revoke(ctx context.Context, claims *auth.Claims) error {
	row := models.RevokedToken{TokenID: claims.ID}
	if claims.ExpiresAt != nil {
		row.ExpiresAt = claims.ExpiresAt.Time
	}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "token_id"}}, DoNothing: true}).
		Create(&row)
	if result.Error != nil {
		return fmt.Errorf("revoke token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return auth.ErrRevokedToken
	}
	return nil
}
