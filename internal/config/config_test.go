package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"PORT", "ENVIRONMENT", "LOG_LEVEL", "STORAGE_DRIVER", "MONGODB_URI", "MONGODB_PASSWORD",
	"MONGODB_DATABASE", "GEOAPIFY_API_KEY", "GEOAPIFY_BASE_URL", "LOOKUP_TIMEOUT", "SESSION_SECRET",
	"SESSION_TTL", "SUPABASE_URL", "SUPABASE_URL_ANON_KEY", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"LOOKUP_CACHE_TTL", "DEFAULT_CITY", "ALLOWED_ORIGINS", "WRITE_RATE_LIMIT", "WRITE_RATE_BURST",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("STORAGE_DRIVER", "memory")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StorageMemory, cfg.StorageDriver)
	assert.Equal(t, "citylist", cfg.MongoDBDatabase)
	assert.Equal(t, 5*time.Second, cfg.LookupTimeout)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "Chattanooga", cfg.DefaultCity)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
	assert.False(t, cfg.SupabaseEnabled())
	assert.False(t, cfg.RedisEnabled())
}

func TestLoadConfigOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("MONGODB_URI", "mongodb+srv://app:<password>@cluster.example")
	t.Setenv("LOOKUP_TIMEOUT", "2s")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("ENVIRONMENT", "production")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, StorageMongo, cfg.StorageDriver)
	assert.Equal(t, 2*time.Second, cfg.LookupTimeout)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.True(t, cfg.RedisEnabled())
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "missing secret", env: map[string]string{"STORAGE_DRIVER": "memory"}, want: "SESSION_SECRET"},
		{name: "missing mongo uri", env: map[string]string{"SESSION_SECRET": "x"}, want: "MONGODB_URI"},
		{name: "bad driver", env: map[string]string{"SESSION_SECRET": "x", "STORAGE_DRIVER": "sqlite"}, want: "STORAGE_DRIVER"},
		{name: "bad timeout", env: map[string]string{"SESSION_SECRET": "x", "STORAGE_DRIVER": "memory", "LOOKUP_TIMEOUT": "soon"}, want: "LOOKUP_TIMEOUT"},
		{name: "half supabase", env: map[string]string{"SESSION_SECRET": "x", "STORAGE_DRIVER": "memory", "SUPABASE_URL": "https://x.supabase.co"}, want: "SUPABASE_URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
