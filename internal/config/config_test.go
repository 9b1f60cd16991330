package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig(env, sslMode string) *Config {
	return &Config{
		Env:        env,
		DBSSLMode:  sslMode,
		JWTSecret:  "secure-secret-at-least-32-chars-long",
		DBPassword: "secure-password",
		Port:       "8080",
		RedisURL:   "redis://localhost:6379",
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
			err := validConfig(tt.env, tt.sslMode).Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateProductionSecrets(t *testing.T) {
	c := validConfig("production", "require")
	c.JWTSecret = defaultJWTSecret
	assert.Error(t, c.Validate())

	c = validConfig("production", "require")
	c.JWTSecret = "short"
	assert.Error(t, c.Validate())

	c = validConfig("production", "require")
	c.DBPassword = "password"
	assert.Error(t, c.Validate())

	c = validConfig("production", "require")
	c.DevBootstrapAdmin = true
	assert.Error(t, c.Validate())
}

func TestConfig_ValidateSampleRatio(t *testing.T) {
	c := validConfig("development", "disable")
	c.TracingSampleRatio = 1.5
	assert.Error(t, c.Validate())
}

func TestConfig_Durations(t *testing.T) {
	c := &Config{}
	assert.Equal(t, 15*time.Minute, c.AccessTokenTTL())
	assert.Equal(t, 14*24*time.Hour, c.RefreshTokenTTL())
	assert.Equal(t, 3*time.Second, c.ProfileFetchTimeout())
	assert.Equal(t, 10*time.Minute, c.SessionRefreshInterval())

	c = &Config{AccessTokenTTLMinutes: 30, SessionRefreshMinutes: 45, ProfileFetchTimeoutMS: 250}
	assert.Equal(t, 250*time.Millisecond, c.ProfileFetchTimeout())
	// Refresh interval must stay inside the access token lifetime.
	assert.Equal(t, 20*time.Minute, c.SessionRefreshInterval())
}

func TestLoadConfig_SSLModeNormalization(t *testing.T) {
	defer viper.Reset()

	t.Setenv("APP_ENV", "development")
	t.Setenv("DB_SSLMODE", "  DISABLE  ")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, 3000, c.ProfileFetchTimeoutMS)
}
