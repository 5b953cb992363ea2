package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Crawler.MinNewListings)
	assert.Equal(t, 50, cfg.Crawler.MaxCycles)
	assert.Equal(t, 2, cfg.Crawler.ConcurrentSessions)
	assert.Equal(t, 10*time.Second, cfg.Crawler.HarvestTimeout)
	assert.Equal(t, 5, cfg.Browser.StabilityRetries)
	assert.Equal(t, 750*time.Millisecond, cfg.Browser.IdleInterval)
	assert.Equal(t, 4*time.Second, cfg.Browser.IdleTimeout)
	assert.Equal(t, 5, cfg.Browser.MinFulfilled)
	assert.True(t, cfg.Browser.BlankImages)
	assert.Equal(t, "gemini-1.5-flash", cfg.Oracle.Model)
	assert.Equal(t, 3, cfg.Oracle.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.Oracle.RetryDelay)
	assert.Equal(t, "inventory-events", cfg.Redis.Stream)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("CRAWLER_MIN_NEW_LISTINGS", "5")
	t.Setenv("CRAWLER_MAX_CYCLES", "12")
	t.Setenv("CRAWLER_RETAILERS", "https://a.example.com,https://b.example.com")
	t.Setenv("BROWSER_HEADLESS", "false")
	t.Setenv("BROWSER_IDLE_INTERVAL", "1s")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Crawler.MinNewListings)
	assert.Equal(t, 12, cfg.Crawler.MaxCycles)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Crawler.Retailers)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, time.Second, cfg.Browser.IdleInterval)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("CRAWLER_MAX_CYCLES", "not-a-number")
	t.Setenv("BROWSER_IDLE_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Crawler.MaxCycles)
	assert.Equal(t, 4*time.Second, cfg.Browser.IdleTimeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"zero workers", func(c *Config) { c.Crawler.ConcurrentSessions = 0 }, true},
		{"negative threshold", func(c *Config) { c.Crawler.MinNewListings = -1 }, true},
		{"zero threshold is allowed", func(c *Config) { c.Crawler.MinNewListings = 0 }, false},
		{"zero max cycles", func(c *Config) { c.Crawler.MaxCycles = 0 }, true},
		{"inverted rate limits", func(c *Config) {
			c.Crawler.RateLimitMin = 10 * time.Second
			c.Crawler.RateLimitMax = time.Second
		}, true},
		{"missing catalog path", func(c *Config) { c.Catalog.ModelsPath = "" }, true},
		{"zero oracle attempts", func(c *Config) { c.Oracle.MaxAttempts = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
