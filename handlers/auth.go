package handlers

import (
	"context"
	"errors"
	"net/http"

	"restaurant-locator/auth"
	"restaurant-locator/models"
	"restaurant-locator/serializers"
	"restaurant-locator/services"

	"github.com/gin-gonic/gin"
)

// Accounts registers users.
type Accounts interface {
	Register(ctx context.Context, username, password string) (*models.User, error)
}

// Tokens issues and revokes bearer tokens.
type Tokens interface {
	Issue(ctx context.Context, username, password string) (*auth.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error)
	Revoke(ctx context.Context, token string) error
}

type RegisterRequest struct {
	Username string `json:"username" form:"username" binding:"required,notblank,max=150"`
	Password string `json:"password" form:"password" binding:"required,min=4"`
}

type TokenRequest struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" form:"refresh_token" binding:"required"`
}

type RevokeRequest struct {
	Token string `json:"token" form:"token" binding:"required"`
}

type AuthHandler struct {
	accounts Accounts
	tokens   Tokens
}

func NewAuthHandler(accounts Accounts, tokens Tokens) *AuthHandler {
	return &AuthHandler{accounts: accounts, tokens: tokens}
}

// Register creates a new user account
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid registration data", "fields": serializers.FieldErrors(err)})
		return
	}

	user, err := h.accounts.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrUserExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "Username already registered"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Account created successfully",
		"user": gin.H{
			"id":       user.ID,
			"username": user.Username,
		},
	})
}

// Token exchanges username and password for an access and refresh token
func (h *AuthHandler) Token(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid token request", "fields": serializers.FieldErrors(err)})
		return
	}

	pair, err := h.tokens.Issue(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}
	c.JSON(http.StatusOK, pair)
}

// Refresh exchanges a refresh token for a new pair
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid refresh request", "fields": serializers.FieldErrors(err)})
		return
	}

	pair, err := h.tokens.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrRevokedToken) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to refresh token"})
		return
	}
	c.JSON(http.StatusOK, pair)
}

// Revoke invalidates a token. Unknown tokens are accepted.
func (h *AuthHandler) Revoke(c *gin.Context) {
	var req RevokeRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid revoke request", "fields": serializers.FieldErrors(err)})
		return
	}
	if err := h.tokens.Revoke(c.Request.Context(), req.Token); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to revoke token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Token revoked"})
}
