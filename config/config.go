package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/toolcontext/cache"
)

// Config holds all service configuration.
type Config struct {
	Cache    Cache    `yaml:"cache"`
	Source   Source   `yaml:"source"`
	Refresh  Refresh  `yaml:"refresh"`
	Lookup   Lookup   `yaml:"lookup"`
	Budget   Budget   `yaml:"budget"`
	Required []string `yaml:"required"`
}

// Cache holds storage and staleness settings.
type Cache struct {
	Backend    string                   `yaml:"backend"` // "memory" | "sqlite"
	Dir        string                   `yaml:"dir"`     // sqlite data directory
	DefaultTTL time.Duration            `yaml:"default_ttl"`
	MaxTTL     time.Duration            `yaml:"max_ttl"`
	Overrides  map[string]time.Duration `yaml:"overrides"` // per-library TTLs
}

// Source holds upstream provider settings.
type Source struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"` // supports ${VAR} expansion
	Timeout time.Duration `yaml:"timeout"`
}

// Refresh holds background refresh settings.
type Refresh struct {
	Workers       int           `yaml:"workers"`
	MaxAttempts   int           `yaml:"max_attempts"`
	InitialDelay  time.Duration `yaml:"initial_delay"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	MaxQueueDepth int           `yaml:"max_queue_depth"`
}

// Lookup holds miss-path settings.
type Lookup struct {
	FetchTimeout     time.Duration `yaml:"fetch_timeout"`
	MissAttempts     int           `yaml:"miss_attempts"`
	AuthResetTimeout time.Duration `yaml:"auth_reset_timeout"`
}

// Budget holds per-agent context cap settings.
type Budget struct {
	DefaultCap int            `yaml:"default_cap"`
	Caps       map[string]int `yaml:"caps"` // per-agent token caps
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Cache: Cache{
			Backend:    "memory",
			Dir:        ".toolcontext",
			DefaultTTL: 7 * 24 * time.Hour,
			MaxTTL:     30 * 24 * time.Hour,
		},
		Source: Source{
			Timeout: 30 * time.Second,
		},
		Refresh: Refresh{
			Workers:       3,
			MaxAttempts:   5,
			InitialDelay:  time.Second,
			MaxDelay:      60 * time.Second,
			MaxQueueDepth: 256,
		},
		Lookup: Lookup{
			FetchTimeout:     10 * time.Second,
			MissAttempts:     2,
			AuthResetTimeout: 5 * time.Minute,
		},
		Budget: Budget{
			DefaultCap: 4000,
		},
	}
}

// Load reads a single YAML config file at path and returns a Config.
// For merging multiple config sources, use LoadLayered instead.
// If the file does not exist, defaults are returned without error.
// If the file contains invalid YAML or unknown fields, an error is returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if len(data) == 0 {
		return &cfg, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		// Comment-only YAML files produce EOF with no decoded content.
		if errors.Is(err, io.EOF) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return &cfg, nil
}

// LoadLayered loads config from multiple paths with increasing priority.
// Later paths override earlier ones. Missing files are skipped.
func LoadLayered(paths ...string) (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range paths {
		layer, err := loadLayer(path)
		if err != nil {
			return nil, err
		}
		if layer == nil {
			continue
		}
		cfg.merge(layer)
	}

	return &cfg, nil
}

// ApplyEnv applies environment variable overrides to the config.
// Supported variables: TOOLCONTEXT_BACKEND, TOOLCONTEXT_DIR,
// TOOLCONTEXT_BASE_URL, TOOLCONTEXT_API_KEY, TOOLCONTEXT_DEFAULT_TTL,
// TOOLCONTEXT_WORKERS, TOOLCONTEXT_DEFAULT_CAP.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("TOOLCONTEXT_BACKEND"); v != "" {
		c.Cache.Backend = v
	}
	if v := os.Getenv("TOOLCONTEXT_DIR"); v != "" {
		c.Cache.Dir = v
	}
	if v := os.Getenv("TOOLCONTEXT_BASE_URL"); v != "" {
		c.Source.BaseURL = v
	}
	if v := os.Getenv("TOOLCONTEXT_API_KEY"); v != "" {
		c.Source.APIKey = v
	}
	if v := os.Getenv("TOOLCONTEXT_DEFAULT_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: invalid TOOLCONTEXT_DEFAULT_TTL %q: %w", v, err)
		}
		c.Cache.DefaultTTL = d
	}
	if v := os.Getenv("TOOLCONTEXT_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid TOOLCONTEXT_WORKERS %q: %w", v, err)
		}
		c.Refresh.Workers = n
	}
	if v := os.Getenv("TOOLCONTEXT_DEFAULT_CAP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid TOOLCONTEXT_DEFAULT_CAP %q: %w", v, err)
		}
		c.Budget.DefaultCap = n
	}
	return nil
}

// ResolveSecrets expands ${VAR} references in secret-bearing fields.
// Referencing a variable that is not set is an error so a misdeployed
// service fails at startup, not on its first upstream call.
func (c *Config) ResolveSecrets() error {
	key, err := expandEnvStrict(c.Source.APIKey)
	if err != nil {
		return err
	}
	c.Source.APIKey = key
	return nil
}

// Validate checks that config values are usable.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "memory", "sqlite":
		// valid
	default:
		return fmt.Errorf("config: cache.backend must be \"memory\" or \"sqlite\", got %q", c.Cache.Backend)
	}
	if c.Cache.Backend == "sqlite" && c.Cache.Dir == "" {
		return errors.New("config: cache.dir cannot be empty with the sqlite backend")
	}
	if c.Cache.DefaultTTL <= 0 {
		return fmt.Errorf("config: cache.default_ttl must be positive, got %v", c.Cache.DefaultTTL)
	}
	if c.Cache.MaxTTL < c.Cache.DefaultTTL {
		return fmt.Errorf("config: cache.max_ttl %v is below cache.default_ttl %v", c.Cache.MaxTTL, c.Cache.DefaultTTL)
	}
	for library, ttl := range c.Cache.Overrides {
		if ttl <= 0 {
			return fmt.Errorf("config: cache.overrides[%q] must be positive, got %v", library, ttl)
		}
	}
	if c.Refresh.Workers <= 0 {
		return fmt.Errorf("config: refresh.workers must be positive, got %d", c.Refresh.Workers)
	}
	if c.Refresh.MaxAttempts <= 0 {
		return fmt.Errorf("config: refresh.max_attempts must be positive, got %d", c.Refresh.MaxAttempts)
	}
	if c.Budget.DefaultCap <= 0 {
		return fmt.Errorf("config: budget.default_cap must be positive, got %d", c.Budget.DefaultCap)
	}
	for agent, tokenCap := range c.Budget.Caps {
		if tokenCap <= 0 {
			return fmt.Errorf("config: budget.caps[%q] must be positive, got %d", agent, tokenCap)
		}
	}
	if _, err := c.RequiredKeys(); err != nil {
		return err
	}
	return nil
}

// RequiredKeys parses the required manifest into cache keys.
func (c *Config) RequiredKeys() ([]cache.Key, error) {
	keys := make([]cache.Key, 0, len(c.Required))
	for _, s := range c.Required {
		key, err := cache.ParseKey(s)
		if err != nil {
			return nil, fmt.Errorf("config: invalid required entry %q: %w", s, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// rawConfig mirrors Config but uses pointers to distinguish set vs unset fields.
type rawConfig struct {
	Cache    *rawCache   `yaml:"cache"`
	Source   *rawSource  `yaml:"source"`
	Refresh  *rawRefresh `yaml:"refresh"`
	Lookup   *rawLookup  `yaml:"lookup"`
	Budget   *rawBudget  `yaml:"budget"`
	Required *[]string   `yaml:"required"`
}

type rawCache struct {
	Backend    *string                   `yaml:"backend"`
	Dir        *string                   `yaml:"dir"`
	DefaultTTL *time.Duration            `yaml:"default_ttl"`
	MaxTTL     *time.Duration            `yaml:"max_ttl"`
	Overrides  *map[string]time.Duration `yaml:"overrides"`
}

type rawSource struct {
	BaseURL *string        `yaml:"base_url"`
	APIKey  *string        `yaml:"api_key"`
	Timeout *time.Duration `yaml:"timeout"`
}

type rawRefresh struct {
	Workers       *int           `yaml:"workers"`
	MaxAttempts   *int           `yaml:"max_attempts"`
	InitialDelay  *time.Duration `yaml:"initial_delay"`
	MaxDelay      *time.Duration `yaml:"max_delay"`
	MaxQueueDepth *int           `yaml:"max_queue_depth"`
}

type rawLookup struct {
	FetchTimeout     *time.Duration `yaml:"fetch_timeout"`
	MissAttempts     *int           `yaml:"miss_attempts"`
	AuthResetTimeout *time.Duration `yaml:"auth_reset_timeout"`
}

type rawBudget struct {
	DefaultCap *int            `yaml:"default_cap"`
	Caps       *map[string]int `yaml:"caps"`
}

// loadLayer reads a single config file into a rawConfig for selective merging.
// Returns nil if the file does not exist. Rejects unknown fields.
func loadLayer(path string) (*rawConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if len(data) == 0 {
		return nil, nil
	}

	var raw rawConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return &raw, nil
}

// merge applies non-nil fields from a rawConfig layer onto this Config.
// Maps and the required manifest replace wholesale rather than merging
// element by element.
func (c *Config) merge(layer *rawConfig) {
	if layer.Cache != nil {
		if layer.Cache.Backend != nil {
			c.Cache.Backend = *layer.Cache.Backend
		}
		if layer.Cache.Dir != nil {
			c.Cache.Dir = *layer.Cache.Dir
		}
		if layer.Cache.DefaultTTL != nil {
			c.Cache.DefaultTTL = *layer.Cache.DefaultTTL
		}
		if layer.Cache.MaxTTL != nil {
			c.Cache.MaxTTL = *layer.Cache.MaxTTL
		}
		if layer.Cache.Overrides != nil {
			c.Cache.Overrides = *layer.Cache.Overrides
		}
	}
	if layer.Source != nil {
		if layer.Source.BaseURL != nil {
			c.Source.BaseURL = *layer.Source.BaseURL
		}
		if layer.Source.APIKey != nil {
			c.Source.APIKey = *layer.Source.APIKey
		}
		if layer.Source.Timeout != nil {
			c.Source.Timeout = *layer.Source.Timeout
		}
	}
	if layer.Refresh != nil {
		if layer.Refresh.Workers != nil {
			c.Refresh.Workers = *layer.Refresh.Workers
		}
		if layer.Refresh.MaxAttempts != nil {
			c.Refresh.MaxAttempts = *layer.Refresh.MaxAttempts
		}
		if layer.Refresh.InitialDelay != nil {
			c.Refresh.InitialDelay = *layer.Refresh.InitialDelay
		}
		if layer.Refresh.MaxDelay != nil {
			c.Refresh.MaxDelay = *layer.Refresh.MaxDelay
		}
		if layer.Refresh.MaxQueueDepth != nil {
			c.Refresh.MaxQueueDepth = *layer.Refresh.MaxQueueDepth
		}
	}
	if layer.Lookup != nil {
		if layer.Lookup.FetchTimeout != nil {
			c.Lookup.FetchTimeout = *layer.Lookup.FetchTimeout
		}
		if layer.Lookup.MissAttempts != nil {
			c.Lookup.MissAttempts = *layer.Lookup.MissAttempts
		}
		if layer.Lookup.AuthResetTimeout != nil {
			c.Lookup.AuthResetTimeout = *layer.Lookup.AuthResetTimeout
		}
	}
	if layer.Budget != nil {
		if layer.Budget.DefaultCap != nil {
			c.Budget.DefaultCap = *layer.Budget.DefaultCap
		}
		if layer.Budget.Caps != nil {
			c.Budget.Caps = *layer.Budget.Caps
		}
	}
	if layer.Required != nil {
		c.Required = *layer.Required
	}
}
