package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Load reads the .env file named by COGQUERY_ENV (or .env by default), then
// the matching .secret sidecar if it exists. Values already present in the
// environment win. All settings are flat env vars read by the accessors below.
func Load() error {
	envFile := os.Getenv("COGQUERY_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Missing files are fine: the environment alone is a valid configuration.
	_ = godotenv.Load(envFile)
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

// DatabaseURL is the Postgres journal DSN. Empty runs the store in memory only.
func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// APIKeys returns the comma-separated API_KEYS. No keys disables auth.
func APIKeys() []string {
	var keys []string
	for _, k := range strings.Split(os.Getenv("API_KEYS"), ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// TypesFile is an optional YAML file of extra atom types.
func TypesFile() string {
	return os.Getenv("TYPES_FILE")
}

// SearchLimit caps the solutions returned by one query.
// Defaults to 1000 if not set.
func SearchLimit() int {
	return positiveInt("SEARCH_LIMIT", 1000)
}

// ApplyWorkers is the parallelism of rule application.
// Defaults to 4 if not set.
func ApplyWorkers() int {
	return positiveInt("APPLY_WORKERS", 4)
}

func StoreStripes() int {
	return positiveInt("STORE_STRIPES", 64)
}

func positiveInt(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
