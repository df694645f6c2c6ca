package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by CREDO_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("CREDO_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
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

// StoreDriver returns the persistence backend.
// Defaults to "postgres" if not set.
// Valid values: postgres, sqlite
func StoreDriver() string {
	d := os.Getenv("STORE_DRIVER")
	if d == "" {
		return "postgres"
	}
	return d
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

func SQLitePath() string {
	p := os.Getenv("SQLITE_PATH")
	if p == "" {
		return "data/credo.db"
	}
	return p
}

func MigrationsPath() string {
	p := os.Getenv("MIGRATIONS_PATH")
	if p == "" {
		return "migrations"
	}
	return p
}

// APIKey is the bearer token required on /v1. Empty disables auth.
func APIKey() string {
	return os.Getenv("API_KEY")
}

func OpenAIAPIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

func OpenAIBaseURL() string {
	return os.Getenv("OPENAI_BASE_URL")
}

// EmbeddingProvider returns the configured embedding provider.
// Defaults to "openai" if not set.
// Valid values: openai, mock, none
func EmbeddingProvider() string {
	p := os.Getenv("EMBEDDING_PROVIDER")
	if p == "" {
		return "openai"
	}
	return p
}

// EmbeddingAPIKey returns the API key for the configured embedding provider.
func EmbeddingAPIKey() string {
	switch EmbeddingProvider() {
	case "openai":
		return OpenAIAPIKey()
	default:
		return ""
	}
}

// EmbeddingDimensions sizes the mock embedder's vectors. Defaults to 64.
func EmbeddingDimensions() int {
	n, err := strconv.Atoi(os.Getenv("EMBEDDING_DIMENSIONS"))
	if err != nil || n <= 0 {
		return 64
	}
	return n
}

// EmbeddingTimeout bounds a single embedding call. Defaults to 10s.
func EmbeddingTimeout() time.Duration {
	return duration("EMBEDDING_TIMEOUT", 10*time.Second)
}

// EmbedOnIngest embeds interactions synchronously when they are logged.
// Defaults to true.
func EmbedOnIngest() bool {
	v, err := strconv.ParseBool(os.Getenv("EMBED_ON_INGEST"))
	if err != nil {
		return true
	}
	return v
}

func EmbeddingWorkerInterval() time.Duration {
	return duration("EMBEDDING_WORKER_INTERVAL", 30*time.Second)
}

func EmbeddingBatchSize() int {
	n, err := strconv.Atoi(os.Getenv("EMBEDDING_BATCH_SIZE"))
	if err != nil || n <= 0 {
		return 50
	}
	return n
}

// IndexDir holds one similarity index snapshot per persona.
func IndexDir() string {
	p := os.Getenv("INDEX_DIR")
	if p == "" {
		return "data/index"
	}
	return p
}

func IndexFlushInterval() time.Duration {
	return duration("INDEX_FLUSH_INTERVAL", time.Minute)
}

// ConflictMinSeverity is the weakest contradiction verdict that moves a stance.
// Defaults to "moderate".
func ConflictMinSeverity() string {
	s := os.Getenv("CONFLICT_MIN_SEVERITY")
	if s == "" {
		return "moderate"
	}
	return s
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

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}

func duration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return def
	}
	return d
}
