package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultDirectSearchURL  = "https://search.wb.ru/exactmatch/ru/common/v7/search?ab_testing=false&appType=1&curr=rub&dest=-1257786&query=%s&resultset=catalog&sort=popular&spp=30&suppressSpellcheck=true&uclusters=0"
	defaultBrowserSearchURL = "https://www.wildberries.ru/__internal/search/exactmatch/ru/common/v18/search?ab_testing=false&appType=1&curr=rub&dest=-1116490&hide_dtype=9;11&hide_vflags=4294967296&inheritFilters=false&lang=ru&page=1&query=%s&resultset=catalog&sort=popular&spp=30&suppressSpellcheck=false&uclusters=3"
	defaultUserAgent        = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

type Config struct {
	Search   SearchConfig
	HTTP     HTTPConfig
	Browser  BrowserConfig
	Redis    RedisConfig
	Database DatabaseConfig
	Logging  LoggingConfig
}

// SearchConfig holds the search endpoint templates. Each must contain exactly one %s for the query.
type SearchConfig struct {
	DirectURL  string
	BrowserURL string
}

type HTTPConfig struct {
	Timeout         time.Duration
	UserAgent       string
	MaxIdleConns    int
	MaxConnsPerHost int
}

type BrowserConfig struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	StartDelay     time.Duration
	PageDelay      time.Duration
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Search: SearchConfig{
			DirectURL:  getEnvOrDefault("SEARCH_DIRECT_URL", defaultDirectSearchURL),
			BrowserURL: getEnvOrDefault("SEARCH_BROWSER_URL", defaultBrowserSearchURL),
		},
		HTTP: HTTPConfig{
			Timeout:         getDurationOrDefault("HTTP_TIMEOUT", 20*time.Second),
			UserAgent:       getEnvOrDefault("HTTP_USER_AGENT", defaultUserAgent),
			MaxIdleConns:    getIntOrDefault("HTTP_MAX_IDLE_CONNS", 100),
			MaxConnsPerHost: getIntOrDefault("HTTP_MAX_CONNS_PER_HOST", 100),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			UserAgent:      getEnvOrDefault("BROWSER_USER_AGENT", defaultUserAgent),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "ru-RU,ru;q=0.9,en;q=0.8"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "Europe/Moscow"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "ru-RU"),
			StartDelay:     getDurationOrDefault("BROWSER_START_DELAY", 2*time.Second),
			PageDelay:      getDurationOrDefault("BROWSER_PAGE_DELAY", 1500*time.Millisecond),
		},
		Redis: RedisConfig{
			Addr:      getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password:  getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:        getIntOrDefault("REDIS_DB", 0),
			KeyPrefix: getEnvOrDefault("REDIS_KEY_PREFIX", "parsing-count:checkpoint"),
		},
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "parsing_count"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "text"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	for name, tmpl := range map[string]string{
		"SEARCH_DIRECT_URL":  c.Search.DirectURL,
		"SEARCH_BROWSER_URL": c.Search.BrowserURL,
	} {
		if strings.Count(tmpl, "%s") != 1 {
			return fmt.Errorf("%s must contain exactly one %%s placeholder", name)
		}
	}

	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}

	if c.Browser.StartDelay < 0 || c.Browser.PageDelay < 0 {
		return fmt.Errorf("BROWSER_START_DELAY and BROWSER_PAGE_DELAY cannot be negative")
	}

	return nil
}

// DSN renders the Postgres connection string for the export sink.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

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
