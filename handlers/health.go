package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Health reports service status and database reachability
func Health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, database, code := "healthy", "ok", http.StatusOK
		if err := ping(c.Request.Context(), db); err != nil {
			_ = c.Error(err)
			status, database, code = "unhealthy", "unreachable", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":   status,
			"service":  "Restaurant Locator API",
			"version":  "1.0.0",
			"database": database,
		})
	}
}

func ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}
