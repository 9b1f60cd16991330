package client

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultBaseURL         = "http://localhost:8080"
	DefaultRefreshInterval = 10 * time.Minute
	DefaultProfileTimeout  = 3 * time.Second
)

// Config configures a Client. Zero durations fall back to the defaults.
type Config struct {
	BaseURL string
	// APIKey is a pre-issued access token used when no credentials are given.
	APIKey string
	// RefreshInterval overrides the interval advertised by the server.
	RefreshInterval time.Duration
	ProfileTimeout  time.Duration
	HTTPClient      *http.Client
}

// LoadConfig reads CAMPUS_API_URL, CAMPUS_API_KEY, CAMPUS_REFRESH_INTERVAL
// and CAMPUS_PROFILE_TIMEOUT from the environment.
func LoadConfig() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CAMPUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("API_URL", DefaultBaseURL)
	v.SetDefault("API_KEY", "")
	v.SetDefault("REFRESH_INTERVAL", "0s")
	v.SetDefault("PROFILE_TIMEOUT", DefaultProfileTimeout.String())

	cfg := Config{
		BaseURL:         v.GetString("API_URL"),
		APIKey:          v.GetString("API_KEY"),
		RefreshInterval: v.GetDuration("REFRESH_INTERVAL"),
		ProfileTimeout:  v.GetDuration("PROFILE_TIMEOUT"),
	}
	return cfg, cfg.Validate()
}

// Validate rejects configurations the client cannot work with.
func (c Config) Validate() error {
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return errors.New("CAMPUS_API_URL must be an http(s) URL")
	}
	if c.RefreshInterval < 0 || c.ProfileTimeout < 0 {
		return errors.New("durations must not be negative")
	}
	return nil
}
