package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Catalog   CatalogConfig
	CourseAPI CourseAPIConfig
	Sessions  SessionConfig
	Redis     RedisConfig
	Exports   ExportsConfig
	Delivery  DeliveryConfig
	Chat      ChatConfig
	CORS      CORSConfig
	Log       LogConfig
}

type CatalogConfig struct {
	File string
}

// CourseAPIConfig configures the remote classroom/lesson/video API client.
type CourseAPIConfig struct {
	BaseURL            string
	Timeout            time.Duration
	UserAgent          string
	RequestsPerSecond  int
	ResolveConcurrency int
	MaxRetries         int
	Headers            map[string]string
}

// SessionConfig selects and bounds the per-chat selection store.
type SessionConfig struct {
	Store      string
	TTL        time.Duration
	MaxEntries int
	KeyPrefix  string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// ExportsConfig controls report generation and download links.
type ExportsConfig struct {
	StorageDir      string
	DefaultFormat   string
	Concurrency     int
	SignedURLSecret string
	SignedURLTTL    time.Duration
	CleanupInterval time.Duration
	PublicBaseURL   string
}

// DeliveryConfig tunes the worker pool that removes delivered reports.
type DeliveryConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// ChatConfig holds message shaping knobs for chat replies.
type ChatConfig struct {
	ChunkLimit      int
	FreshnessWindow time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Catalog = CatalogConfig{File: v.GetString("CATALOG_FILE")}

	cfg.CourseAPI = CourseAPIConfig{
		BaseURL:            strings.TrimRight(v.GetString("COURSE_API_BASE_URL"), "/"),
		Timeout:            parseDuration(v.GetString("COURSE_API_TIMEOUT"), 30*time.Second),
		UserAgent:          v.GetString("COURSE_API_USER_AGENT"),
		RequestsPerSecond:  v.GetInt("COURSE_API_RPS"),
		ResolveConcurrency: v.GetInt("COURSE_API_RESOLVE_CONCURRENCY"),
		MaxRetries:         v.GetInt("COURSE_API_MAX_RETRIES"),
		Headers:            parseHeaders(v.GetString("COURSE_API_HEADERS")),
	}

	cfg.Sessions = SessionConfig{
		Store:      strings.ToLower(v.GetString("SESSION_STORE")),
		TTL:        parseDuration(v.GetString("SESSION_TTL"), 24*time.Hour),
		MaxEntries: v.GetInt("SESSION_MAX_ENTRIES"),
		KeyPrefix:  v.GetString("SESSION_KEY_PREFIX"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Exports = ExportsConfig{
		StorageDir:      v.GetString("EXPORTS_STORAGE_DIR"),
		DefaultFormat:   strings.ToLower(v.GetString("EXPORTS_DEFAULT_FORMAT")),
		Concurrency:     v.GetInt("EXPORTS_CONCURRENCY"),
		SignedURLSecret: v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 30*time.Minute),
		CleanupInterval: parseDuration(v.GetString("EXPORTS_CLEANUP_INTERVAL"), 10*time.Minute),
		PublicBaseURL:   strings.TrimRight(v.GetString("EXPORTS_PUBLIC_BASE_URL"), "/"),
	}

	cfg.Delivery = DeliveryConfig{
		Workers:    v.GetInt("DELIVERY_WORKERS"),
		MaxRetries: v.GetInt("DELIVERY_RETRIES"),
		RetryDelay: parseDuration(v.GetString("DELIVERY_RETRY_DELAY"), time.Second),
	}

	cfg.Chat = ChatConfig{
		ChunkLimit:      v.GetInt("MESSAGE_CHUNK_LIMIT"),
		FreshnessWindow: parseDuration(v.GetString("FRESHNESS_WINDOW"), 30*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("CATALOG_FILE", "batches.json")

	v.SetDefault("COURSE_API_BASE_URL", "https://khan-sir-free-class.onrender.com/api")
	v.SetDefault("COURSE_API_TIMEOUT", "30s")
	v.SetDefault("COURSE_API_USER_AGENT", "batch-extractor-bot/1.0")
	v.SetDefault("COURSE_API_RPS", 10)
	v.SetDefault("COURSE_API_RESOLVE_CONCURRENCY", 1)
	v.SetDefault("COURSE_API_MAX_RETRIES", 0)
	v.SetDefault("COURSE_API_HEADERS", "")

	v.SetDefault("SESSION_STORE", SessionStoreMemory)
	v.SetDefault("SESSION_TTL", "24h")
	v.SetDefault("SESSION_MAX_ENTRIES", 10000)
	v.SetDefault("SESSION_KEY_PREFIX", "batchbot:session:")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_DEFAULT_FORMAT", "txt")
	v.SetDefault("EXPORTS_CONCURRENCY", 1)
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "30m")
	v.SetDefault("EXPORTS_CLEANUP_INTERVAL", "10m")
	v.SetDefault("EXPORTS_PUBLIC_BASE_URL", "")

	v.SetDefault("DELIVERY_WORKERS", 1)
	v.SetDefault("DELIVERY_RETRIES", 3)
	v.SetDefault("DELIVERY_RETRY_DELAY", "1s")

	v.SetDefault("MESSAGE_CHUNK_LIMIT", 4000)
	v.SetDefault("FRESHNESS_WINDOW", "720h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// parseHeaders reads "Name=value,Other=value" pairs; malformed pairs are skipped.
func parseHeaders(raw string) map[string]string {
	pairs := splitAndTrim(raw)
	if len(pairs) == 0 {
		return nil
	}
	headers := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers
}
