// Package config reads process configuration from environment variables.
// Values are loaded once at startup; a .env file is honored via the godotenv
// autoload import in main.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every tunable for the server process.
type Config struct {
	// Port the HTTP/WebSocket listener binds to.
	Port string

	// RoomHints is the hint budget granted to a room at scenario start.
	RoomHints int
	// SingleHints is the hint budget for a single-player session.
	SingleHints int
	// MaxGuesses is the default guesses-remaining counter for an Answerer,
	// applied when room creation does not override it.
	MaxGuesses int

	// GeminiAPIKey authenticates the arbiter call. Empty disables the
	// arbiter; single-player verdicts then degrade to SKIP.
	GeminiAPIKey string
	// GeminiModel names the model invoked by the arbiter adapter.
	GeminiModel string
	// ArbiterTimeout bounds one arbiter call. On expiry the verdict is SKIP.
	ArbiterTimeout time.Duration
}

// Load builds a Config from the environment, applying defaults:
//   - PORT                8080
//   - SOUP_ROOM_HINTS     2
//   - SOUP_SINGLE_HINTS   5
//   - SOUP_MAX_GUESSES    3
//   - GEMINI_MODEL        gemini-1.5-flash
//   - ARBITER_TIMEOUT_MS  10000
func Load() Config {
	return Config{
		Port:           getEnv("PORT", "8080"),
		RoomHints:      getEnvInt("SOUP_ROOM_HINTS", 2),
		SingleHints:    getEnvInt("SOUP_SINGLE_HINTS", 5),
		MaxGuesses:     getEnvInt("SOUP_MAX_GUESSES", 3),
		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		ArbiterTimeout: time.Duration(getEnvInt("ARBITER_TIMEOUT_MS", 10000)) * time.Millisecond,
	}
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
