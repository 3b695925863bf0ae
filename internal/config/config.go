package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StorageMongo  = "mongo"
	StorageMemory = "memory"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	StorageDriver   string
	MongoDBURI      string
	MongoDBPassword string
	MongoDBDatabase string

	GeoapifyAPIKey  string
	GeoapifyBaseURL string
	LookupTimeout   time.Duration

	SessionSecret string
	SessionTTL    time.Duration

	SupabaseURL     string
	SupabaseAnonKey string

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	LookupCacheTTL time.Duration

	DefaultCity    string
	AllowedOrigins []string

	WriteRateLimit float64
	WriteRateBurst int
}

func LoadConfig() (*Config, error) {
	var errs []string
	cfg := &Config{
		Port:            getEnvWithDefault("PORT", "8080"),
		Environment:     getEnvWithDefault("ENVIRONMENT", "development"),
		LogLevel:        getEnvWithDefault("LOG_LEVEL", "info"),
		StorageDriver:   strings.ToLower(getEnvWithDefault("STORAGE_DRIVER", StorageMongo)),
		MongoDBURI:      os.Getenv("MONGODB_URI"),
		MongoDBPassword: os.Getenv("MONGODB_PASSWORD"),
		MongoDBDatabase: getEnvWithDefault("MONGODB_DATABASE", "citylist"),
		GeoapifyAPIKey:  os.Getenv("GEOAPIFY_API_KEY"),
		GeoapifyBaseURL: getEnvWithDefault("GEOAPIFY_BASE_URL", "https://api.geoapify.com"),
		SessionSecret:   os.Getenv("SESSION_SECRET"),
		SupabaseURL:     os.Getenv("SUPABASE_URL"),
		SupabaseAnonKey: os.Getenv("SUPABASE_URL_ANON_KEY"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		DefaultCity:     getEnvWithDefault("DEFAULT_CITY", "Chattanooga"),
		AllowedOrigins:  parseList(getEnvWithDefault("ALLOWED_ORIGINS", "http://localhost:3000")),
	}

	var err error
	if cfg.LookupTimeout, err = getDuration("LOOKUP_TIMEOUT", 5*time.Second); err != nil {
		errs = append(errs, err.Error())
	}
	if cfg.SessionTTL, err = getDuration("SESSION_TTL", 24*time.Hour); err != nil {
		errs = append(errs, err.Error())
	}
	if cfg.LookupCacheTTL, err = getDuration("LOOKUP_CACHE_TTL", 720*time.Hour); err != nil {
		errs = append(errs, err.Error())
	}
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		errs = append(errs, err.Error())
	}
	if cfg.WriteRateBurst, err = getInt("WRITE_RATE_BURST", 10); err != nil {
		errs = append(errs, err.Error())
	}
	if cfg.WriteRateLimit, err = getFloat("WRITE_RATE_LIMIT", 5); err != nil {
		errs = append(errs, err.Error())
	}

	// Validate required fields
	if cfg.SessionSecret == "" {
		errs = append(errs, "SESSION_SECRET is required")
	}
	switch cfg.StorageDriver {
	case StorageMongo:
		if cfg.MongoDBURI == "" {
			errs = append(errs, "MONGODB_URI is required")
		}
	case StorageMemory:
	default:
		errs = append(errs, fmt.Sprintf("STORAGE_DRIVER must be %q or %q", StorageMongo, StorageMemory))
	}
	if (cfg.SupabaseURL == "") != (cfg.SupabaseAnonKey == "") {
		errs = append(errs, "SUPABASE_URL and SUPABASE_URL_ANON_KEY must be set together")
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration", key)
	}
	return d, nil
}

func getInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}

func getFloat(key string, def float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("%s must be a positive number", key)
	}
	return f, nil
}

func parseList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) SupabaseEnabled() bool {
	return c.SupabaseURL != "" && c.SupabaseAnonKey != ""
}

func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}
