package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"restaurant-locator/auth"
	"restaurant-locator/config"
	"restaurant-locator/events"
	"restaurant-locator/geocoder"
	"restaurant-locator/graceful"
	"restaurant-locator/handlers"
	"restaurant-locator/logger"
	"restaurant-locator/middleware"
	"restaurant-locator/routes"
	"restaurant-locator/serializers"
	"restaurant-locator/services"
	"restaurant-locator/webapp"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, envFile := config.Load()

	// Set Gin mode
	if cfg.GinMode == "" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(cfg.GinMode)
	}

	if err := logger.Init(cfg.AppEnv, cfg.LogLevel); err != nil {
		log.Fatal("Failed to initialise logger:", err)
	}
	defer logger.Sync()
	logr := logger.GetLogger("main")
	if !envFile {
		logr.Info("no .env file found, using process environment")
	}

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		logr.Fatal("failed to initialise database", zap.Error(err))
	}
	if err := serializers.RegisterValidators(); err != nil {
		logr.Fatal("failed to register validators", zap.Error(err))
	}

	ctx, stop := graceful.Context(context.Background(), logr)
	defer stop()

	users := services.NewUserService(db)
	if cfg.SeedUsername != "" && cfg.SeedPassword != "" {
		created, err := users.EnsureUser(ctx, cfg.SeedUsername, cfg.SeedPassword)
		if err != nil {
			logr.Fatal("failed to seed user", zap.Error(err))
		}
		if created {
			logr.Info("seeded user account", zap.String("username", cfg.SeedUsername))
		}
	}
	issuer := auth.NewIssuer(cfg.JWTSecret,
		time.Duration(cfg.JWTAccessTokenExpireMin)*time.Minute,
		time.Duration(cfg.JWTRefreshTokenExpireDays)*24*time.Hour)
	tokens := services.NewTokenService(db, issuer, users)

	provider, err := geocoder.NewProvider(&http.Client{}, geocoder.ProviderConfig{
		Name:         cfg.GeocoderProvider,
		GoogleURL:    cfg.GoogleGeocodeURL,
		GoogleAPIKey: cfg.GoogleAPIKey,
		NominatimURL: cfg.NominatimURL,
	})
	if err != nil {
		logr.Fatal("failed to configure geocoder", zap.Error(err))
	}
	resolver := geocoder.NewResolver(provider, logger.GetLogger("geocoder"),
		geocoder.WithTimeout(cfg.GeocoderTimeout),
		geocoder.WithRetries(cfg.GeocoderRetries),
		geocoder.WithBackoff(cfg.GeocoderBackoff))

	publisher := events.NewKafkaPublisher(cfg.KafkaBroker, cfg.KafkaTopic, logger.GetLogger("events"))
	defer func() {
		if err := publisher.Close(); err != nil {
			logr.Warn("failed to close event publisher", zap.Error(err))
		}
	}()

	restaurants := services.NewRestaurantService(db, resolver, publisher, logger.GetLogger("restaurants"))

	templates, err := webapp.Templates()
	if err != nil {
		logr.Fatal("failed to parse templates", zap.Error(err))
	}
	apiClient := webapp.NewClient(&http.Client{Timeout: cfg.UpstreamTimeout},
		cfg.APIBaseURL, cfg.FrontendUsername, cfg.FrontendPassword)
	if !apiClient.HasCredentials() {
		logr.Warn("FRONTEND_USERNAME or FRONTEND_PASSWORD is empty, the restaurant page will report the api as unavailable")
	}

	// Create Gin router with recovery and structured access logs
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger(logger.GetLogger("http")),
		middleware.Metrics(), middleware.CORS())

	// Register all routes
	routes.SetupRoutes(r, routes.Deps{
		DB:          db,
		Tokens:      tokens,
		Restaurants: handlers.NewRestaurantHandler(restaurants),
		Auth:        handlers.NewAuthHandler(users, tokens),
		Page:        webapp.NewPage(apiClient, resolver, logger.GetLogger("webapp")),
		Templates:   templates,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Sugar.Infof("Server running on http://localhost:%s (%s)", cfg.Port, cfg.AppEnv)
	if err := graceful.Serve(ctx, srv, 10*time.Second, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}
