package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func setRequiredEnv(t *testing.T) {
	t.Setenv("DB_USER", "tracker")
	t.Setenv("DB_NAME", "task_tracker")
	t.Setenv("JWT_SECRET", testSecret)
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTP.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.HTTP.AllowOrigins)
	assert.Equal(t, "3306", cfg.DB.Port)
	assert.Equal(t, 24*time.Hour, cfg.JWT.AccessLifetime)
	assert.True(t, cfg.JWT.UpdateLastLogin)
	assert.Equal(t, 10, cfg.Pagination.PageSize)
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, time.Hour, cfg.Mail.ResetTokenLifetime)
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PAGE_SIZE", "25")
	t.Setenv("JWT_ACCESS_LIFETIME", "30m")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("CORS_ALLOW_ORIGINS", "http://a.example,http://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Pagination.PageSize)
	assert.Equal(t, 30*time.Minute, cfg.JWT.AccessLifetime)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.HTTP.AllowOrigins)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"short secret", map[string]string{"JWT_SECRET": "short"}},
		{"zero page size", map[string]string{"PAGE_SIZE": "0"}},
		{"negative lifetime", map[string]string{"JWT_ACCESS_LIFETIME": "-1h"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			setRequiredEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
