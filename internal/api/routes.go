// Package api wires the gin router. Grounded on the teacher's
// internal/api/routes.go (dev no-cache middleware, a versioned route
// group, GET/POST registration style), domain-specific game/payment
// groups replaced by the judge (4.D) and contest (4.F) route groups.
package api

import (
	"log"

	"github.com/gin-gonic/gin"

	"github.com/codearena/core/internal/api/handlers"
	"github.com/codearena/core/internal/config"
	"github.com/codearena/core/internal/judge"
	"github.com/codearena/core/internal/middleware"
	"github.com/codearena/core/internal/ports"
	"github.com/codearena/core/internal/session"
)

// SetupRoutes configures all API routes.
func SetupRoutes(router *gin.Engine, store ports.Store, queue *judge.Queue, gateway *session.Gateway, cfg *config.Config) {
	if cfg.Environment != "production" {
		router.Use(func(c *gin.Context) {
			c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
			c.Next()
		})
		log.Println("[DEV MODE] no-cache headers enabled for all routes")
	}

	router.GET("/health", handlers.HealthCheck)

	router.GET("/ws", gateway.HandleWebSocket)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck)

		code := v1.Group("/code")
		{
			code.POST("/run", handlers.RunCode(cfg, queue))
			code.POST("/submit", handlers.SubmitCode(cfg, queue))
			code.GET("/result/:jobId", handlers.PollCode(queue))
		}

		v1.GET("/get-all-problems", handlers.GetAllProblems(store))
		v1.GET("/get-problem/:problemId", handlers.GetProblem(cfg, store))
		v1.GET("/get-leaderboard/:contestId", handlers.GetLeaderboard(store))

		authed := v1.Group("/")
		authed.Use(middleware.RequireAuth(cfg, store))
		{
			authed.POST("/submit-solution/:contestId/:problemId", handlers.SubmitSolution(store))
			authed.GET("/get-problem/:contestId/:problemId", handlers.GetContestProblem(store))
		}
	}
}
