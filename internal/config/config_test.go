package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:                      "production",
		DBDriver:                 "postgres",
		DBSSLMode:                "require",
		JWTSecret:                "secure-secret-at-least-32-chars-long",
		DBPassword:               "secure-password",
		Port:                     "8080",
		FeedDefaultLimit:         25,
		FeedMaxLimit:             100,
		AvatarMaxUploadSizeMB:    5,
		DBConnMaxLifetimeMinutes: 1,
		RedisURL:                 "redis://localhost:6379",
		TracingSamplerRatio:      1,
	}
}

func TestConfig_ValidateSSLMode(t *testing.T) {
	tests := []struct {
		name        string
		env         string
		sslMode     string
		expectError bool
	}{
		{"Production with empty SSL mode", "production", "", true},
		{"Production with disable SSL mode", "production", "disable", true},
		{"Production with require SSL mode", "production", "require", false},
		{"Prod with verify-full SSL mode", "prod", "verify-full", false},
		{"Development with disable SSL mode", "development", "disable", false},
		{"Test with empty SSL mode", "test", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			c.Env = tt.env
			c.DBSSLMode = tt.sslMode

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"missing port", func(c *Config) { c.Port = "" }, "PORT is required"},
		{"missing secret", func(c *Config) { c.JWTSecret = "" }, "JWT_SECRET is required"},
		{"default secret in prod", func(c *Config) { c.JWTSecret = defaultJWTSecret }, "changed from the default"},
		{"short secret in prod", func(c *Config) { c.JWTSecret = "short" }, "at least 32 characters"},
		{"unknown driver", func(c *Config) { c.DBDriver = "mysql" }, "unsupported DB_DRIVER"},
		{"sqlite in prod", func(c *Config) { c.DBDriver = "sqlite" }, "not supported in production"},
		{"weak db password", func(c *Config) { c.DBPassword = "password" }, "DB_PASSWORD"},
		{"default above max", func(c *Config) { c.FeedDefaultLimit = 200 }, "FEED_DEFAULT_LIMIT"},
		{"sampler out of range", func(c *Config) { c.TracingSamplerRatio = 1.5 }, "TRACING_SAMPLER_RATIO"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	assert.NoError(t, validConfig().Validate())
}

func TestLoadConfig_EnvOverridesAndNormalization(t *testing.T) {
	defer viper.Reset()
	t.Setenv("APP_ENV", "development")
	t.Setenv("DB_SSLMODE", "  DISABLE  ")
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("FEED_DEFAULT_LIMIT", "10")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, "sqlite", c.DBDriver)
	assert.Equal(t, 10, c.FeedDefaultLimit)
	assert.Equal(t, 100, c.FeedMaxLimit)
	assert.Equal(t, "8375", c.Port)
}

func TestLoadConfig_MissingProfileFile(t *testing.T) {
	defer viper.Reset()
	t.Setenv("APP_ENV", "staging-without-file")

	_, err := LoadConfig()
	assert.Error(t, err)
}
