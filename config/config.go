// Package config holds the engine configuration.
//
// A Config is built once at startup (Default, optionally overlaid by a YAML
// file through Load) and passed by value into each component constructor.
// Components copy what they need; nothing reads configuration from globals.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/poiesic/doccache/ai"
	"github.com/poiesic/doccache/core"
	"gopkg.in/yaml.v3"
)

// Config is the complete engine configuration.
type Config struct {
	Search    Search    `yaml:"search"`
	Breakers  Breakers  `yaml:"breakers"`
	TTL       TTL       `yaml:"ttl"`
	Cache     Cache     `yaml:"cache"`
	Quality   Quality   `yaml:"quality"`
	Enrich    Enrich    `yaml:"enrich"`
	Workspace Workspace `yaml:"workspace"`
	Storage   Storage   `yaml:"storage"`
	AI        ai.Config `yaml:"ai"`
}

// Search holds settings for workspace selection and fan-out.
type Search struct {
	// MaxPartitions bounds how many workspaces are searched per query (default 5).
	MaxPartitions int `yaml:"max_partitions"`

	// MaxConcurrency bounds simultaneous in-flight partition searches (default 5).
	MaxConcurrency int `yaml:"max_concurrency"`

	// TaskTimeout is the budget of a single partition search (default 2s).
	TaskTimeout time.Duration `yaml:"task_timeout"`

	// HitsPerPartition is the hit limit requested from each partition (default 20).
	HitsPerPartition int `yaml:"hits_per_partition"`

	// TopN is the size of the aggregated result set (default 20).
	TopN int `yaml:"top_n"`

	// TechnologyBoost multiplies scores of hits matching the query technology (default 1.2).
	TechnologyBoost float64 `yaml:"technology_boost"`

	// DefaultDeadline is the response deadline when the caller sets none (default 5s).
	DefaultDeadline time.Duration `yaml:"default_deadline"`
}

// Policy is the breaker policy of one destination category.
type Policy struct {
	FailureThreshold uint32        `yaml:"failure_threshold"`
	RecoveryTimeout  time.Duration `yaml:"recovery_timeout"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
}

// Breakers holds the three category policies.
type Breakers struct {
	ExternalAPI     Policy `yaml:"external_api"`
	InternalService Policy `yaml:"internal_service"`
	WebScraping     Policy `yaml:"web_scraping"`
}

// TTL holds the content lifetime model. Modifiers are fractions: 0.5 means +50%.
type TTL struct {
	Base time.Duration `yaml:"base"`
	Min  time.Duration `yaml:"min"`
	Max  time.Duration `yaml:"max"`

	TechnologyFactors   map[string]float64 `yaml:"technology_factors"`
	DocumentTypeFactors map[string]float64 `yaml:"document_type_factors"`

	StableModifier       float64 `yaml:"stable_modifier"`
	DeprecatedModifier   float64 `yaml:"deprecated_modifier"`
	ExperimentalModifier float64 `yaml:"experimental_modifier"`
	LatestModifier       float64 `yaml:"latest_modifier"`

	// PreReleaseModifiers maps version markers (alpha, beta, rc, ...) to modifiers.
	PreReleaseModifiers map[string]float64 `yaml:"pre_release_modifiers"`
}

// Cache holds the cache gateway settings.
type Cache struct {
	// Backend selects the key-value store: "badger" or "redis".
	Backend       string `yaml:"backend"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password,omitempty"`
	RedisDB       int    `yaml:"redis_db"`

	SearchResultsTTL    time.Duration `yaml:"search_results_ttl"`
	ProcessedContentTTL time.Duration `yaml:"processed_content_ttl"`
	EvaluationTTL       time.Duration `yaml:"evaluation_ttl"`
	RateLimitWindow     time.Duration `yaml:"rate_limit_window"`

	// EnrichCooldown suppresses repeat enrichment of one query (default 10m).
	EnrichCooldown time.Duration `yaml:"enrich_cooldown"`

	// StaleMultiplier scales SearchResultsTTL for the stale fallback copy (default 4).
	StaleMultiplier int `yaml:"stale_multiplier"`

	// RateLimit is the number of requests per window per client; 0 disables limiting.
	RateLimit int64 `yaml:"rate_limit"`
}

// Weights are the relative weights of the quality heuristics.
type Weights struct {
	Words     float64 `yaml:"words"`
	Headings  float64 `yaml:"headings"`
	Code      float64 `yaml:"code"`
	CodeRatio float64 `yaml:"code_ratio"`
	Links     float64 `yaml:"links"`
}

// Quality holds the content scorer settings.
type Quality struct {
	Threshold float64 `yaml:"threshold"`
	Weights   Weights `yaml:"weights"`
}

// Enrich holds the background acquisition settings.
type Enrich struct {
	Workers    int           `yaml:"workers"`
	QueueSize  int           `yaml:"queue_size"`
	JobTimeout time.Duration `yaml:"job_timeout"`

	// DefaultPartition receives content whose target names no partition and no technology.
	DefaultPartition string `yaml:"default_partition"`

	CodeHostBaseURL string `yaml:"code_host_base_url"`
	CodeHostToken   string `yaml:"code_host_token,omitempty"`
	UserAgent       string `yaml:"user_agent"`

	// MaxBodyBytes caps the size of a fetched document (default 4 MiB).
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// Sources seeds heuristic strategies: technology -> targets to acquire.
	Sources map[string][]core.AcquisitionTarget `yaml:"sources"`
}

// Workspace holds workspace selector settings.
type Workspace struct {
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// Storage holds local persistence locations.
type Storage struct {
	// DataDir is the BadgerDB directory. Empty runs in memory.
	DataDir string `yaml:"data_dir"`

	// ContentDSN is the sqlite DSN of the content record store.
	ContentDSN string `yaml:"content_dsn"`

	// SweepInterval is the period of the background expiry sweeper (default 15m).
	SweepInterval time.Duration `yaml:"sweep_interval"`

	// SweepBatchSize bounds each cleanup batch (default 100).
	SweepBatchSize int `yaml:"sweep_batch_size"`
}

// Default returns the configuration documented for the engine.
func Default() Config {
	return Config{
		Search: Search{
			MaxPartitions:    5,
			MaxConcurrency:   5,
			TaskTimeout:      2 * time.Second,
			HitsPerPartition: 20,
			TopN:             20,
			TechnologyBoost:  1.2,
			DefaultDeadline:  5 * time.Second,
		},
		Breakers: Breakers{
			ExternalAPI:     Policy{FailureThreshold: 5, RecoveryTimeout: 300 * time.Second, RequestTimeout: 30 * time.Second},
			InternalService: Policy{FailureThreshold: 3, RecoveryTimeout: 60 * time.Second, RequestTimeout: 30 * time.Second},
			WebScraping:     Policy{FailureThreshold: 3, RecoveryTimeout: 120 * time.Second, RequestTimeout: 15 * time.Second},
		},
		TTL: TTL{
			Base: 24 * time.Hour,
			Min:  time.Hour,
			Max:  90 * 24 * time.Hour,
			TechnologyFactors: map[string]float64{
				"react":      1.5,
				"vue":        1.5,
				"angular":    1.5,
				"nextjs":     1.0,
				"javascript": 1.2,
				"typescript": 1.5,
				"node":       1.2,
				"python":     2.0,
				"go":         2.0,
				"rust":       1.8,
				"java":       2.0,
				"docker":     1.5,
				"kubernetes": 1.2,
			},
			DocumentTypeFactors: map[string]float64{
				string(core.DocumentTypeReference): 2.5,
				string(core.DocumentTypeAPI):       2.0,
				string(core.DocumentTypeGuide):     1.5,
				string(core.DocumentTypeTutorial):  1.2,
				string(core.DocumentTypeBlog):      0.5,
				string(core.DocumentTypeOther):     1.0,
			},
			StableModifier:       0.5,
			DeprecatedModifier:   -0.5,
			ExperimentalModifier: -0.3,
			LatestModifier:       0.3,
			PreReleaseModifiers: map[string]float64{
				"alpha":    -0.4,
				"dev":      -0.4,
				"nightly":  -0.4,
				"snapshot": -0.4,
				"canary":   -0.4,
				"beta":     -0.3,
				"preview":  -0.3,
				"rc":       -0.2,
			},
		},
		Cache: Cache{
			Backend:             "badger",
			RedisAddr:           "localhost:6379",
			SearchResultsTTL:    3600 * time.Second,
			ProcessedContentTTL: 86400 * time.Second,
			EvaluationTTL:       7200 * time.Second,
			RateLimitWindow:     60 * time.Second,
			EnrichCooldown:      10 * time.Minute,
			StaleMultiplier:     4,
		},
		Quality: Quality{
			Threshold: 0.3,
			Weights: Weights{
				Words:     0.35,
				Headings:  0.20,
				Code:      0.20,
				CodeRatio: 0.15,
				Links:     0.10,
			},
		},
		Enrich: Enrich{
			Workers:          4,
			QueueSize:        64,
			JobTimeout:       2 * time.Minute,
			DefaultPartition: "general",
			CodeHostBaseURL:  "https://api.github.com",
			UserAgent:        "doccache/0.1",
			MaxBodyBytes:     4 << 20,
		},
		Workspace: Workspace{
			RefreshInterval: 5 * time.Minute,
		},
		Storage: Storage{
			ContentDSN:     "file:doccache.db",
			SweepInterval:  15 * time.Minute,
			SweepBatchSize: 100,
		},
		AI: *ai.DefaultConfig(),
	}
}

// Load reads a YAML file over the defaults and validates the result.
// An empty path returns the validated defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section and normalizes the AI section.
func (c *Config) Validate() error {
	var errs []error

	s := c.Search
	if s.MaxPartitions < 1 {
		errs = append(errs, errors.New("search.max_partitions must be at least 1"))
	}
	if s.MaxConcurrency < 1 {
		errs = append(errs, errors.New("search.max_concurrency must be at least 1"))
	}
	if s.TaskTimeout <= 0 || s.DefaultDeadline <= 0 {
		errs = append(errs, errors.New("search timeouts must be positive"))
	}
	if s.TopN < 1 || s.HitsPerPartition < 1 {
		errs = append(errs, errors.New("search.top_n and search.hits_per_partition must be at least 1"))
	}
	if s.TechnologyBoost <= 0 {
		errs = append(errs, errors.New("search.technology_boost must be positive"))
	}

	for name, p := range map[string]Policy{
		"external_api":     c.Breakers.ExternalAPI,
		"internal_service": c.Breakers.InternalService,
		"web_scraping":     c.Breakers.WebScraping,
	} {
		if p.FailureThreshold < 1 || p.RecoveryTimeout <= 0 || p.RequestTimeout <= 0 {
			errs = append(errs, fmt.Errorf("breakers.%s: threshold and timeouts must be positive", name))
		}
	}

	errs = append(errs, c.TTL.validate()...)

	switch c.Cache.Backend {
	case "badger", "redis":
	default:
		errs = append(errs, fmt.Errorf("cache.backend %q: must be badger or redis", c.Cache.Backend))
	}
	if c.Cache.SearchResultsTTL <= 0 || c.Cache.ProcessedContentTTL <= 0 ||
		c.Cache.EvaluationTTL <= 0 || c.Cache.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("cache TTLs must be positive"))
	}
	if c.Cache.StaleMultiplier < 1 {
		errs = append(errs, errors.New("cache.stale_multiplier must be at least 1"))
	}

	if c.Quality.Threshold < 0 || c.Quality.Threshold > 1 {
		errs = append(errs, errors.New("quality.threshold must be between 0 and 1"))
	}
	w := c.Quality.Weights
	if w.Words < 0 || w.Headings < 0 || w.Code < 0 || w.CodeRatio < 0 || w.Links < 0 ||
		w.Words+w.Headings+w.Code+w.CodeRatio+w.Links == 0 {
		errs = append(errs, errors.New("quality.weights must be non-negative and not all zero"))
	}

	if c.Enrich.Workers < 1 || c.Enrich.QueueSize < 1 || c.Enrich.JobTimeout <= 0 {
		errs = append(errs, errors.New("enrich workers, queue_size and job_timeout must be positive"))
	}
	if c.Enrich.DefaultPartition == "" {
		errs = append(errs, errors.New("enrich.default_partition is required"))
	}
	if c.Workspace.RefreshInterval <= 0 {
		errs = append(errs, errors.New("workspace.refresh_interval must be positive"))
	}
	if c.Storage.SweepInterval <= 0 || c.Storage.SweepBatchSize < 1 {
		errs = append(errs, errors.New("storage sweep interval and batch size must be positive"))
	}
	if err := c.AI.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (t TTL) validate() []error {
	var errs []error
	if t.Base <= 0 || t.Min <= 0 {
		errs = append(errs, errors.New("ttl.base and ttl.min must be positive"))
	}
	if t.Max < t.Min {
		errs = append(errs, errors.New("ttl.max must not be below ttl.min"))
	}
	for name, f := range t.TechnologyFactors {
		if f <= 0 {
			errs = append(errs, fmt.Errorf("ttl.technology_factors.%s must be positive", name))
		}
	}
	for name, f := range t.DocumentTypeFactors {
		if f <= 0 {
			errs = append(errs, fmt.Errorf("ttl.document_type_factors.%s must be positive", name))
		}
	}
	mods := map[string]float64{
		"stable_modifier":       t.StableModifier,
		"deprecated_modifier":   t.DeprecatedModifier,
		"experimental_modifier": t.ExperimentalModifier,
		"latest_modifier":       t.LatestModifier,
	}
	for marker, m := range t.PreReleaseModifiers {
		mods["pre_release_modifiers."+marker] = m
	}
	for name, m := range mods {
		if m <= -1 {
			errs = append(errs, fmt.Errorf("ttl.%s must be greater than -1", name))
		}
	}
	return errs
}
