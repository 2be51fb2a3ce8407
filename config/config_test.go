package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("ADSCOUT_DATA_DIR", "/tmp/adscout")
	t.Setenv("ADSCOUT_PAGES", "5")
	t.Setenv("ADSCOUT_DELAY_PAGES", "1500ms")
	t.Setenv("ADSCOUT_DELAY_LISTINGS", "3")
	t.Setenv("ADSCOUT_HEADLESS", "false")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("PORT", "9090")

	cfg := DefaultConfig()
	cfg.LoadFromEnv()

	assert.Equal(t, "/tmp/adscout", cfg.DataDir)
	assert.Equal(t, 5, cfg.PagesToScrape)
	assert.Equal(t, 1500*time.Millisecond, cfg.DelayBetweenPages)
	assert.Equal(t, 3*time.Second, cfg.DelayBetweenListings)
	assert.False(t, cfg.Headless)
	assert.Equal(t, "sk-test", cfg.LLMAPIKey)
	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, filepath.Join("/tmp/adscout", "listings.json"), cfg.ListingsFile())
	assert.Empty(t, cfg.Warnings)
}

func TestLoadFromEnvKeepsDefaultsOnBadValues(t *testing.T) {
	t.Setenv("ADSCOUT_PAGES", "three")
	t.Setenv("ADSCOUT_HEADLESS", "maybe")
	t.Setenv("ADSCOUT_LLM_RATE", "-1")

	cfg := DefaultConfig()
	cfg.LoadFromEnv()

	assert.Equal(t, 3, cfg.PagesToScrape)
	assert.True(t, cfg.Headless)
	assert.Equal(t, 1.0, cfg.LLMRate)
	assert.Len(t, cfg.Warnings, 3)
}
