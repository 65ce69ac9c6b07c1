package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all process-wide settings, loaded once at startup.
type Config struct {
	// Environment
	Environment string

	// Database / cache
	DatabaseURL string
	RedisURL    string

	// Server
	Port       string
	CORSOrigin string

	// Auth
	AccessTokenSecret string

	// Matchmaking (4.B)
	MatchmakingTimeout time.Duration
	RatingWindow       int

	// Room (4.C)
	MatchDuration time.Duration

	// Judge queue (4.D)
	RunJobTTL    time.Duration
	SubmitJobTTL time.Duration

	// Synchronous Evaluator collaborator (4.C open question resolution)
	EvaluatorPollInterval time.Duration
	EvaluatorDeadline     time.Duration
}

func Load() *Config {
	// Load .env file if present; ignore absence.
	godotenv.Load()

	return &Config{
		Environment: getEnv("APP_ENV", "development"),

		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/codearena?sslmode=disable"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),

		Port:       getEnv("PORT", "8080"),
		CORSOrigin: getEnv("CORS_ORIGIN", "http://localhost:5173"),

		AccessTokenSecret: getEnv("ACCESS_TOKEN_SECRET", "change-me-in-production"),

		MatchmakingTimeout: getEnvDuration("MATCHMAKING_TIMEOUT_MS", 30_000*time.Millisecond),
		RatingWindow:       getEnvInt("MATCHMAKING_RATING_WINDOW", 200),

		MatchDuration: getEnvDuration("MATCH_DURATION_MINUTES", 30*time.Minute),

		RunJobTTL:    getEnvDuration("RUN_JOB_TTL_SECONDS", 120*time.Second),
		SubmitJobTTL: getEnvDuration("SUBMIT_JOB_TTL_SECONDS", 600*time.Second),

		EvaluatorPollInterval: getEnvDuration("EVALUATOR_POLL_INTERVAL_MS", 250*time.Millisecond),
		EvaluatorDeadline:     getEnvDuration("EVALUATOR_DEADLINE_SECONDS", 20*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration reads an integer env var and scales it to the unit implied
// by its suffix (_MS -> milliseconds, _MINUTES -> minutes, else seconds),
// matching the unit of defaultValue on parse failure or absence.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	unit := time.Second
	switch {
	case len(key) > 3 && key[len(key)-3:] == "_MS":
		unit = time.Millisecond
	case len(key) > 8 && key[len(key)-8:] == "_MINUTES":
		unit = time.Minute
	}
	return time.Duration(n) * unit
}
