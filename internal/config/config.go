package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config centralizes runtime settings for the API and the pipeline workers.
type Config struct {
	Port string

	StoreBackend   string
	DatabaseURL    string
	MongoURI       string
	MongoDatabase  string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string

	WorkersConfigPath string
	PythonBin         string
	WorkerScriptsDir  string

	ScrapeRatePerMinute    float64
	ScrapeRateBurst        int
	PipelineMaxConcurrency int

	CORSAllowedOrigins []string

	LogLevel  string
	LogFormat string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	ShutdownTimeout time.Duration
}

func Load() Config {
	return Config{
		Port: getEnv("PORT", "5000"),

		StoreBackend:   strings.ToLower(getEnv("STORE_BACKEND", "")),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		MongoURI:       getEnv("MONGODB_URI", ""),
		MongoDatabase:  getEnv("MONGODB_DATABASE", "review_radar"),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		RedisKeyPrefix: getEnv("REDIS_KEY_PREFIX", "reviewradar:"),

		WorkersConfigPath: getEnv("WORKERS_CONFIG", "workers.yaml"),
		PythonBin:         getEnv("PYTHON_BIN", "python3"),
		WorkerScriptsDir:  getEnv("WORKER_SCRIPTS_DIR", "python-scripts"),

		ScrapeRatePerMinute:    getEnvFloat("SCRAPE_RATE_PER_MINUTE", 30),
		ScrapeRateBurst:        getEnvInt("SCRAPE_RATE_BURST", 3),
		PipelineMaxConcurrency: getEnvInt("PIPELINE_MAX_CONCURRENCY", 4),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "review-radar-artifacts"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT_SECONDS", 30*time.Second),
	}
}

// ResolveStoreBackend picks the store from STORE_BACKEND, or from whichever
// connection setting is present when it is unset.
func (c Config) ResolveStoreBackend() string {
	if c.StoreBackend != "" {
		return c.StoreBackend
	}
	switch {
	case c.DatabaseURL != "":
		return "postgres"
	case c.MongoURI != "":
		return "mongo"
	case c.RedisAddr != "":
		return "redis"
	default:
		return "memory"
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvDuration reads a whole number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	seconds := getEnvInt(key, -1)
	if seconds < 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	items := make([]string, 0)
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}
