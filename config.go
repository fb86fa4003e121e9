package compose

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Default engine configuration values.
const (
	// DefaultMaxConcurrency is the default number of node-processing workers.
	DefaultMaxConcurrency = 4

	// DefaultFreshnessWindow is how long a cached node output is reused
	// without recomputation after an unrelated nearby event.
	DefaultFreshnessWindow = 100 * time.Millisecond

	// DefaultPoolBudgetMB is the default texture pool memory budget.
	DefaultPoolBudgetMB = 256

	// DefaultBucketCap is the default free-list capacity per texture shape.
	DefaultBucketCap = 8

	// DefaultEvictionThreshold is the pool utilization fraction at which
	// adaptive cleanup starts trimming free lists.
	DefaultEvictionThreshold = 0.8
)

// Config holds engine tuning parameters. The zero value is not usable;
// start from DefaultConfig or LoadConfig.
type Config struct {
	// MaxConcurrency bounds how many independent nodes are processed in
	// parallel during an asynchronous pass.
	MaxConcurrency int `toml:"max_concurrency"`

	// FreshnessWindow is the memoization window for cached node outputs.
	FreshnessWindow time.Duration `toml:"freshness_window"`

	// PoolBudgetMB is the texture pool memory budget in megabytes.
	PoolBudgetMB int `toml:"pool_budget_mb"`

	// BucketCap caps the number of free textures retained per
	// (width, height, format) bucket.
	BucketCap int `toml:"bucket_cap"`

	// EvictionThreshold is the utilization fraction at which adaptive
	// cleanup starts evicting (0.0 to 1.0).
	EvictionThreshold float64 `toml:"eviction_threshold"`

	// Tier is the device capability tier used for strategy selection.
	// One of "low", "medium", "high". Defaults to "medium".
	Tier string `toml:"tier"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency:    DefaultMaxConcurrency,
		FreshnessWindow:   DefaultFreshnessWindow,
		PoolBudgetMB:      DefaultPoolBudgetMB,
		BucketCap:         DefaultBucketCap,
		EvictionThreshold: DefaultEvictionThreshold,
		Tier:              "medium",
	}
}

// LoadConfig reads a TOML config file and merges it over the defaults.
// Keys absent from the file keep their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg.normalized(), nil
}

// DeviceTier parses the configured tier name.
// Unknown names fall back to TierMedium.
func (c Config) DeviceTier() DeviceTier {
	switch c.Tier {
	case "low":
		return TierLow
	case "high":
		return TierHigh
	default:
		return TierMedium
	}
}

// normalized clamps out-of-range values back to the defaults.
func (c Config) normalized() Config {
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = DefaultMaxConcurrency
	}
	if c.FreshnessWindow < 0 {
		c.FreshnessWindow = DefaultFreshnessWindow
	}
	if c.PoolBudgetMB <= 0 {
		c.PoolBudgetMB = DefaultPoolBudgetMB
	}
	if c.BucketCap <= 0 {
		c.BucketCap = DefaultBucketCap
	}
	if c.EvictionThreshold <= 0 || c.EvictionThreshold > 1.0 {
		c.EvictionThreshold = DefaultEvictionThreshold
	}
	return c
}
