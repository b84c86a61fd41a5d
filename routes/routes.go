package routes

import (
	"html/template"

	"restaurant-locator/handlers"
	"restaurant-locator/middleware"
	"restaurant-locator/webapp"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps holds everything the routes need.
type Deps struct {
	DB          *gorm.DB
	Tokens      middleware.TokenValidator
	Restaurants *handlers.RestaurantHandler
	Auth        *handlers.AuthHandler
	Page        *webapp.Page
	Templates   *template.Template
}

func SetupRoutes(r *gin.Engine, d Deps) {
	// ── Operational ────────────────────────────────────────────────
	r.GET("/health", handlers.Health(d.DB))
	r.GET("/metrics", middleware.PrometheusHandler())

	// ── Front end ──────────────────────────────────────────────────
	r.SetHTMLTemplate(d.Templates)
	r.GET("/", d.Page.Home)

	// ── Token endpoints ────────────────────────────────────────────
	authentication := r.Group("/authentication")
	{
		authentication.POST("/register/", d.Auth.Register)
		authentication.POST("/token/", d.Auth.Token)
		authentication.POST("/token/refresh/", d.Auth.Refresh)
		authentication.POST("/token/revoke/", d.Auth.Revoke)
	}

	// ── Authenticated API ──────────────────────────────────────────
	api := r.Group("/api")
	api.Use(middleware.AuthRequired(d.Tokens))
	{
		api.GET("/restaurants", d.Restaurants.List)
		api.POST("/restaurants", d.Restaurants.Create)
		api.GET("/restaurants/:id", d.Restaurants.Get)
		api.PUT("/restaurants/:id", d.Restaurants.Update)
	}
}
