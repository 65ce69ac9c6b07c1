package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/codearena/core/internal/api"
	"github.com/codearena/core/internal/config"
	"github.com/codearena/core/internal/database"
	"github.com/codearena/core/internal/judge"
	"github.com/codearena/core/internal/matchmaking"
	"github.com/codearena/core/internal/middleware"
	"github.com/codearena/core/internal/migrations"
	"github.com/codearena/core/internal/platform/clock"
	"github.com/codearena/core/internal/platform/random"
	"github.com/codearena/core/internal/redis"
	"github.com/codearena/core/internal/room"
	"github.com/codearena/core/internal/session"
	"github.com/codearena/core/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if os.Getenv("MIGRATE_ON_START") == "true" {
		log.Println("↗ Running DB migrations on startup...")
		if err := migrations.RunMigrations(cfg.DatabaseURL); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	rdb, err := redis.Connect(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	dataStore := store.New(db)
	realClock := clock.New()

	judgeQueue := judge.New(rdb, dataStore, cfg.RunJobTTL, cfg.SubmitJobTTL)
	evaluator := room.NewJudgeEvaluator(judgeQueue, dataStore, realClock, cfg.EvaluatorPollInterval, cfg.EvaluatorDeadline)

	mmQueue := matchmaking.New(cfg.RatingWindow)
	roomManager := room.NewManager(dataStore, evaluator, realClock, random.New(), nil, cfg.MatchDuration)
	gateway := session.New(cfg, dataStore, realClock, mmQueue, roomManager)
	roomManager.Broadcast = gateway.Broadcaster()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	router.Use(middleware.CORS(cfg))

	api.SetupRoutes(router, dataStore, judgeQueue, gateway, cfg)

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting codearena server on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
