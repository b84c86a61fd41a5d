package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port     string
	GinMode  string
	AppEnv   string
	LogLevel string

	// Database: Postgres when DatabaseURL is set, SQLite otherwise
	DatabaseURL string
	SQLitePath  string

	// JWT
	JWTSecret                 []byte
	JWTAccessTokenExpireMin   int
	JWTRefreshTokenExpireDays int

	// Geocoding
	GeocoderProvider string
	GoogleAPIKey     string
	GoogleGeocodeURL string
	NominatimURL     string
	GeocoderTimeout  time.Duration
	GeocoderRetries  int
	GeocoderBackoff  time.Duration

	// Front end
	APIBaseURL       string
	UpstreamTimeout  time.Duration
	FrontendUsername string
	FrontendPassword string

	// Account created at startup when missing
	SeedUsername string
	SeedPassword string

	// Kafka change events; disabled when KafkaBroker is empty
	KafkaBroker string
	KafkaTopic  string
}

// Load reads an optional .env file and builds the configuration from the
// environment. The returned bool reports whether a .env file was found.
func Load() (*Config, bool) {
	envFile := godotenv.Load() == nil

	port := getEnv("PORT", "8080")
	return &Config{
		Port:     port,
		GinMode:  getEnv("GIN_MODE", ""),
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		SQLitePath:  getEnv("SQLITE_PATH", "restaurants.db"),

		// JWTSecret used to sign tokens, read from env or fallback
		JWTSecret:                 []byte(getEnv("JWT_SECRET", "restaurant_locator_dev_secret")),
		JWTAccessTokenExpireMin:   getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRE_MINUTES", 60),
		JWTRefreshTokenExpireDays: getEnvAsInt("JWT_REFRESH_TOKEN_EXPIRE_DAYS", 7),

		GeocoderProvider: getEnv("GEOCODER_PROVIDER", "google"),
		GoogleAPIKey:     getEnv("GOOGLE_API_KEY", ""),
		GoogleGeocodeURL: getEnv("GOOGLE_GEOCODE_URL", "https://maps.googleapis.com/maps/api/geocode/json"),
		NominatimURL:     getEnv("NOMINATIM_URL", "https://nominatim.openstreetmap.org/search"),
		GeocoderTimeout:  getEnvAsDuration("GEOCODER_TIMEOUT", 5*time.Second),
		GeocoderRetries:  getEnvAsInt("GEOCODER_RETRIES", 2),
		GeocoderBackoff:  getEnvAsDuration("GEOCODER_BACKOFF", 200*time.Millisecond),

		APIBaseURL:       getEnv("API_BASE_URL", fmt.Sprintf("http://localhost:%s", port)),
		UpstreamTimeout:  getEnvAsDuration("UPSTREAM_TIMEOUT", 10*time.Second),
		FrontendUsername: getEnv("FRONTEND_USERNAME", ""),
		FrontendPassword: getEnv("FRONTEND_PASSWORD", ""),

		SeedUsername: getEnv("SEED_USERNAME", ""),
		SeedPassword: getEnv("SEED_PASSWORD", ""),

		KafkaBroker: getEnv("KAFKA_BROKER", ""),
		KafkaTopic:  getEnv("KAFKA_TOPIC", "restaurant-events"),
	}, envFile
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
