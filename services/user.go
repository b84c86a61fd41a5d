package services

import (
	"context"
	"errors"
	"fmt"

	"restaurant-locator/auth"
	"restaurant-locator/models"

	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserExists         = errors.New("username already registered")
)

type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// Register creates a new account with a bcrypt-hashed password.
func (s *UserService) Register(ctx context.Context, username, password string) (*models.User, error) {
	db := s.db.WithContext(ctx)

	var existing models.User
	err := db.Where("username = ?", username).First(&existing).Error
	if err == nil {
		return nil, ErrUserExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := models.User{Username: username, PasswordHash: hash}
	if err := db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

// Authenticate returns the user when username and password match.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// Get returns the user with id or ErrNotFound.
func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return &user, nil
}

// EnsureUser registers username unless it already exists. The bool reports
// whether an account was created.
func (s *UserService) EnsureUser(ctx context.Context, username, password string) (bool, error) {
	_, err := s.Register(ctx, username, password)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrUserExists):
		return false, nil
	default:
		return false, err
	}
}
