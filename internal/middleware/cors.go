package middleware

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/codearena/core/internal/config"
)

// CORS returns a CORS middleware allowing the configured origin, with
// credentials enabled for cookie-based auth. Grounded on the teacher's
// internal/middleware/cors.go (gin-contrib/cors with an explicit allow
// list), simplified to the single CORS_ORIGIN env var spec.md §6 names.
func CORS(cfg *config.Config) gin.HandlerFunc {
	origins := strings.Split(cfg.CORSOrigin, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}
