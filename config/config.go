package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultSiteOrigin = "https://www.kleinanzeigen.de"
	DefaultSearchURL  = "https://www.kleinanzeigen.de/s-notebooks/preis::1400/rtx4060/k0c278"
)

// Config holds all application configuration.
type Config struct {
	// Storage
	DataDir string

	// Crawl
	SiteOrigin           string
	DefaultSearchURL     string
	PagesToScrape        int
	DelayBetweenPages    time.Duration
	DelayBetweenListings time.Duration
	RespectRobots        bool

	// Browser
	Headless      bool
	BrowserBin    string // optional explicit chrome binary
	BrowserURL    string // optional remote rod launcher / devtools URL
	ProxyURL      string
	RenderTimeout time.Duration

	// LLM
	LLMURL       string
	LLMModel     string
	LLMAPIKey    string
	LLMMaxTokens int
	LLMTimeout   time.Duration
	LLMRate      float64 // requests per second
	LLMRetries   int

	// HTTP server
	HTTPPort string
	APIKey   string

	// Logging
	LogLevel  string // "debug", "info", "warn", "error"
	LogFormat string // "text", "json"

	// Warnings collected while loading; reported once a logger exists.
	Warnings []string
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DataDir:              "data",
		SiteOrigin:           DefaultSiteOrigin,
		DefaultSearchURL:     DefaultSearchURL,
		PagesToScrape:        3,
		DelayBetweenPages:    5 * time.Second,
		DelayBetweenListings: 2 * time.Second,
		RespectRobots:        true,
		Headless:             true,
		RenderTimeout:        10 * time.Second,
		LLMURL:               "https://api.openai.com/v1/chat/completions",
		LLMModel:             "gpt-4o-mini",
		LLMMaxTokens:         600,
		LLMTimeout:           60 * time.Second,
		LLMRate:              1.0,
		LLMRetries:           1,
		HTTPPort:             "3030",
		LogLevel:             "info",
		LogFormat:            "text",
	}
}

// LoadFromEnv loads .env file (if present) then overrides config from environment variables.
func (c *Config) LoadFromEnv() {
	// Auto-load .env file; silently ignored if missing
	_ = godotenv.Load()

	if v := os.Getenv("ADSCOUT_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("ADSCOUT_SITE_ORIGIN"); v != "" {
		c.SiteOrigin = v
	}
	if v := os.Getenv("ADSCOUT_DEFAULT_SEARCH_URL"); v != "" {
		c.DefaultSearchURL = v
	}
	c.PagesToScrape = c.envInt("ADSCOUT_PAGES", c.PagesToScrape)
	c.DelayBetweenPages = c.envDuration("ADSCOUT_DELAY_PAGES", c.DelayBetweenPages)
	c.DelayBetweenListings = c.envDuration("ADSCOUT_DELAY_LISTINGS", c.DelayBetweenListings)
	c.RenderTimeout = c.envDuration("ADSCOUT_RENDER_TIMEOUT", c.RenderTimeout)
	c.Headless = c.envBool("ADSCOUT_HEADLESS", c.Headless)
	c.RespectRobots = c.envBool("ADSCOUT_RESPECT_ROBOTS", c.RespectRobots)
	if v := os.Getenv("ADSCOUT_BROWSER_BIN"); v != "" {
		c.BrowserBin = v
	} else if v := os.Getenv("ROD_BROWSER_BIN"); v != "" {
		c.BrowserBin = v
	}
	if v := os.Getenv("ADSCOUT_BROWSER_URL"); v != "" {
		c.BrowserURL = v
	}
	if v := os.Getenv("ADSCOUT_PROXY"); v != "" {
		c.ProxyURL = v
	}

	if v := os.Getenv("ADSCOUT_LLM_URL"); v != "" {
		c.LLMURL = v
	}
	if v := os.Getenv("ADSCOUT_LLM_MODEL"); v != "" {
		c.LLMModel = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.LLMAPIKey = v
	}
	if v := os.Getenv("ADSCOUT_LLM_API_KEY"); v != "" {
		c.LLMAPIKey = v
	}
	c.LLMMaxTokens = c.envInt("ADSCOUT_LLM_MAX_TOKENS", c.LLMMaxTokens)
	c.LLMTimeout = c.envDuration("ADSCOUT_LLM_TIMEOUT", c.LLMTimeout)
	c.LLMRetries = c.envInt("ADSCOUT_LLM_RETRIES", c.LLMRetries)
	if v := os.Getenv("ADSCOUT_LLM_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			c.LLMRate = f
		} else {
			c.warnf("ADSCOUT_LLM_RATE=%q is not a positive number, keeping %v", v, c.LLMRate)
		}
	}

	if v := os.Getenv("PORT"); v != "" {
		c.HTTPPort = v
	}
	if v := os.Getenv("ADSCOUT_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("ADSCOUT_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("ADSCOUT_LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
}

// ListingsFile is the JSON store of scraped listings.
func (c *Config) ListingsFile() string { return filepath.Join(c.DataDir, "listings.json") }

// SearchURLsFile holds the configured search URLs.
func (c *Config) SearchURLsFile() string { return filepath.Join(c.DataDir, "search_urls.json") }

// ScheduleFile holds the scheduler cadence.
func (c *Config) ScheduleFile() string { return filepath.Join(c.DataDir, "schedule_config.json") }

// CookiesFile is the persisted browser session.
func (c *Config) CookiesFile() string { return filepath.Join(c.DataDir, "cookies.json") }

// ProfileDir is the persistent browser profile.
func (c *Config) ProfileDir() string { return filepath.Join(c.DataDir, "chrome_profile") }

func (c *Config) envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		c.warnf("%s=%q is not an integer, keeping %d", key, v, def)
		return def
	}
	return n
}

func (c *Config) envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		c.warnf("%s=%q is not a boolean, keeping %t", key, v, def)
		return def
	}
	return b
}

// envDuration accepts Go durations ("1500ms") or plain seconds ("2").
func (c *Config) envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(f * float64(time.Second))
	}
	c.warnf("%s=%q is not a duration, keeping %s", key, v, def)
	return def
}

func (c *Config) warnf(format string, args ...any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}
