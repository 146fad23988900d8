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
	APIPort            string
	WorkerEnabled      bool
	BackendAPIKey      string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Object storage (Supabase-compatible HTTP storage API)
	StorageURL        string
	StorageServiceKey string
	StorageBucket     string

	// Local encoder
	FFmpegTempDir string
	FontsDir      string // Bundled fonts for non-default caption scripts
	AubioBin      string // Beat detection binary; empty disables beat extraction
	EncodeTimeout time.Duration

	// Remote render service
	RemoteRenderEnabled bool // Feature flag: route short-bucket jobs to the remote renderer
	RemoteRenderURL     string
	RemoteRenderAPIKey  string
	RemoteComposition   string // Composition identifier the remote service renders

	// OpenAI (Whisper word-level timings for caption sources without them)
	OpenAIKey string

	// Mail delivery (best-effort completion notifications)
	MailAPIURL string
	MailAPIKey string
	MailFrom   string

	// Worker concurrency. Local encoding is CPU/memory-bound, remote
	// rendering is I/O-bound, so the two pools are sized independently.
	LocalEncodeConcurrency  int
	RemoteRenderConcurrency int
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:            getEnv("API_PORT", "8080"),
		WorkerEnabled:      getEnvBool("WORKER_ENABLED", true),
		BackendAPIKey:      getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", ""),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		StorageURL:         getEnv("STORAGE_URL", ""),
		StorageServiceKey:  getEnv("STORAGE_SERVICE_KEY", ""),
		StorageBucket:      getEnv("STORAGE_BUCKET", "reels-renders"),
		FFmpegTempDir:      getEnv("FFMPEG_TEMP_DIR", "/tmp/reels-render"),
		FontsDir:           getEnv("FONTS_DIR", "assets/fonts"),
		AubioBin:           getEnv("AUBIO_BIN", "aubio"),
		EncodeTimeout:      time.Duration(getEnvInt("ENCODE_TIMEOUT_MINUTES", 15)) * time.Minute,

		RemoteRenderEnabled: getEnvBool("REMOTE_RENDER_ENABLED", false),
		RemoteRenderURL:     getEnv("REMOTE_RENDER_URL", ""),
		RemoteRenderAPIKey:  getEnv("REMOTE_RENDER_API_KEY", ""),
		RemoteComposition:   getEnv("REMOTE_COMPOSITION", "ReelComposition"),

		OpenAIKey: getEnv("OPENAI_API_KEY", ""),

		MailAPIURL: getEnv("MAIL_API_URL", ""),
		MailAPIKey: getEnv("MAIL_API_KEY", ""),
		MailFrom:   getEnv("MAIL_FROM", "renders@reels.local"),

		LocalEncodeConcurrency:  getEnvInt("LOCAL_ENCODE_CONCURRENCY", 2),
		RemoteRenderConcurrency: getEnvInt("REMOTE_RENDER_CONCURRENCY", 8),
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.StorageURL == "" || cfg.StorageServiceKey == "" {
		return nil, fmt.Errorf("STORAGE_URL and STORAGE_SERVICE_KEY are required")
	}

	// Remote rendering can only be routed to when the service is reachable
	if cfg.RemoteRenderEnabled && cfg.RemoteRenderURL == "" {
		return nil, fmt.Errorf("REMOTE_RENDER_URL is required when REMOTE_RENDER_ENABLED=true")
	}

	if cfg.LocalEncodeConcurrency < 1 {
		cfg.LocalEncodeConcurrency = 1
	}
	if cfg.RemoteRenderConcurrency < 1 {
		cfg.RemoteRenderConcurrency = 1
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}
