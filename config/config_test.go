package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 5, cfg.Search.MaxPartitions)
	assert.Equal(t, 2*time.Second, cfg.Search.TaskTimeout)
	assert.Equal(t, uint32(5), cfg.Breakers.ExternalAPI.FailureThreshold)
	assert.Equal(t, 60*time.Second, cfg.Breakers.InternalService.RecoveryTimeout)
	assert.Equal(t, 15*time.Second, cfg.Breakers.WebScraping.RequestTimeout)
	assert.Equal(t, 3600*time.Second, cfg.Cache.SearchResultsTTL)
	assert.Equal(t, 0.3, cfg.Quality.Threshold)
}

func TestDefault_ReturnsFreshMaps(t *testing.T) {
	a := Default()
	a.TTL.TechnologyFactors["react"] = 9
	b := Default()
	assert.Equal(t, 1.5, b.TTL.TechnologyFactors["react"])
}

func TestLoad(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, Default().Search, cfg.Search)
	})

	t.Run("file overlays defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "doccache.yaml")
		data := []byte(`
search:
  task_timeout: 750ms
  top_n: 10
ttl:
  technology_factors:
    svelte: 1.4
cache:
  backend: redis
  redis_addr: cache:6379
`)
		require.NoError(t, os.WriteFile(path, data, 0o644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 750*time.Millisecond, cfg.Search.TaskTimeout)
		assert.Equal(t, 10, cfg.Search.TopN)
		assert.Equal(t, 5, cfg.Search.MaxConcurrency, "untouched fields keep defaults")
		assert.Equal(t, 1.4, cfg.TTL.TechnologyFactors["svelte"])
		assert.Equal(t, 1.5, cfg.TTL.TechnologyFactors["react"], "default table entries survive")
		assert.Equal(t, "redis", cfg.Cache.Backend)
	})

	t.Run("invalid file is rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("cache:\n  backend: memcached\n"), 0o644))
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero concurrency", func(c *Config) { c.Search.MaxConcurrency = 0 }},
		{"max below min", func(c *Config) { c.TTL.Max = c.TTL.Min - time.Second }},
		{"negative factor", func(c *Config) { c.TTL.TechnologyFactors["go"] = -1 }},
		{"modifier at -100%", func(c *Config) { c.TTL.DeprecatedModifier = -1 }},
		{"threshold above one", func(c *Config) { c.Quality.Threshold = 1.2 }},
		{"zero weights", func(c *Config) { c.Quality.Weights = Weights{} }},
		{"zero breaker threshold", func(c *Config) { c.Breakers.WebScraping.FailureThreshold = 0 }},
		{"no default partition", func(c *Config) { c.Enrich.DefaultPartition = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
