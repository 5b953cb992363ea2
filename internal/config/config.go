package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Crawler  CrawlerConfig
	Browser  BrowserConfig
	Oracle   OracleConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Proxy    ProxyConfig
	Catalog  CatalogConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type CrawlerConfig struct {
	// MinNewListings is the number of genuinely new listing hrefs a scroll
	// round must surface for the scroll probe to keep going.
	MinNewListings int
	// MaxCycles bounds both the scroll probe and the pagination loop.
	MaxCycles          int
	HarvestTimeout     time.Duration
	ConcurrentSessions int
	RateLimitMin       time.Duration
	RateLimitMax       time.Duration
	StrategyCacheSize  int
	// Retailers and Manufacturers are the default crawl targets when the
	// command line does not name any.
	Retailers     []string
	Manufacturers []string
}

type BrowserConfig struct {
	Headless         bool
	Timeout          time.Duration
	ViewportWidth    int
	ViewportHeight   int
	UserAgent        string
	StabilityRetries int
	IdleInterval     time.Duration
	IdleTimeout      time.Duration
	MinFulfilled     int
	BlankImages      bool
}

type OracleConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxAttempts int
	RetryDelay  time.Duration
	Timeout     time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
}

type RedisConfig struct {
	Addr   string
	Stream string
}

type ProxyConfig struct {
	Token   string
	BaseURL string
}

type CatalogConfig struct {
	ModelsPath        string
	ManufacturersPath string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Addr:            getEnvOrDefault("SERVER_ADDR", ""),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Crawler: CrawlerConfig{
			MinNewListings:     getIntOrDefault("CRAWLER_MIN_NEW_LISTINGS", 1),
			MaxCycles:          getIntOrDefault("CRAWLER_MAX_CYCLES", 50),
			HarvestTimeout:     getDurationOrDefault("CRAWLER_HARVEST_TIMEOUT", 10*time.Second),
			ConcurrentSessions: getIntOrDefault("CRAWLER_CONCURRENT_SESSIONS", 2),
			RateLimitMin:       getDurationOrDefault("CRAWLER_RATE_LIMIT_MIN", 2*time.Second),
			RateLimitMax:       getDurationOrDefault("CRAWLER_RATE_LIMIT_MAX", 8*time.Second),
			StrategyCacheSize:  getIntOrDefault("CRAWLER_STRATEGY_CACHE_SIZE", 128),
			Retailers:          getStringSliceOrDefault("CRAWLER_RETAILERS", nil),
			Manufacturers:      getStringSliceOrDefault("CRAWLER_MANUFACTURERS", nil),
		},
		Browser: BrowserConfig{
			Headless:         getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:          getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			ViewportWidth:    getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight:   getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			UserAgent:        getEnvOrDefault("BROWSER_USER_AGENT", defaultUserAgent),
			StabilityRetries: getIntOrDefault("BROWSER_STABILITY_RETRIES", 5),
			IdleInterval:     getDurationOrDefault("BROWSER_IDLE_INTERVAL", 750*time.Millisecond),
			IdleTimeout:      getDurationOrDefault("BROWSER_IDLE_TIMEOUT", 4*time.Second),
			MinFulfilled:     getIntOrDefault("BROWSER_MIN_FULFILLED", 5),
			BlankImages:      getBoolOrDefault("BROWSER_BLANK_IMAGES", true),
		},
		Oracle: OracleConfig{
			APIKey:      os.Getenv("GEMINI_API_KEY"),
			Model:       getEnvOrDefault("ORACLE_MODEL", "gemini-1.5-flash"),
			BaseURL:     getEnvOrDefault("ORACLE_BASE_URL", "https://generativelanguage.googleapis.com"),
			MaxAttempts: getIntOrDefault("ORACLE_MAX_ATTEMPTS", 3),
			RetryDelay:  getDurationOrDefault("ORACLE_RETRY_DELAY", 5*time.Second),
			Timeout:     getDurationOrDefault("ORACLE_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "inventory"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxConns: int32(getIntOrDefault("DB_MAX_CONNS", 4)),
		},
		Redis: RedisConfig{
			Addr:   getEnvOrDefault("REDIS_ADDR", ""),
			Stream: getEnvOrDefault("REDIS_STREAM", "inventory-events"),
		},
		Proxy: ProxyConfig{
			Token:   os.Getenv("PROXY_TOKEN"),
			BaseURL: getEnvOrDefault("PROXY_BASE_URL", "https://proxy.webshare.io"),
		},
		Catalog: CatalogConfig{
			ModelsPath:        getEnvOrDefault("CATALOG_MODELS_PATH", "data/models.json"),
			ManufacturersPath: getEnvOrDefault("CATALOG_MANUFACTURERS_PATH", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Crawler.ConcurrentSessions < 1 {
		return fmt.Errorf("CRAWLER_CONCURRENT_SESSIONS must be at least 1")
	}

	if c.Crawler.MinNewListings < 0 {
		return fmt.Errorf("CRAWLER_MIN_NEW_LISTINGS cannot be negative")
	}

	if c.Crawler.MaxCycles < 1 {
		return fmt.Errorf("CRAWLER_MAX_CYCLES must be at least 1")
	}

	if c.Crawler.RateLimitMin > c.Crawler.RateLimitMax {
		return fmt.Errorf("CRAWLER_RATE_LIMIT_MIN cannot be greater than CRAWLER_RATE_LIMIT_MAX")
	}

	if c.Browser.StabilityRetries < 1 {
		return fmt.Errorf("BROWSER_STABILITY_RETRIES must be at least 1")
	}

	if c.Oracle.MaxAttempts < 1 {
		return fmt.Errorf("ORACLE_MAX_ATTEMPTS must be at least 1")
	}

	if c.Catalog.ModelsPath == "" {
		return fmt.Errorf("CATALOG_MODELS_PATH is required")
	}

	return nil
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
