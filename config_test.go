package compose

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MaxConcurrency != DefaultMaxConcurrency {
		t.Errorf("MaxConcurrency = %d, want %d", cfg.MaxConcurrency, DefaultMaxConcurrency)
	}
	if cfg.FreshnessWindow != DefaultFreshnessWindow {
		t.Errorf("FreshnessWindow = %v, want %v", cfg.FreshnessWindow, DefaultFreshnessWindow)
	}
	if cfg.EvictionThreshold != DefaultEvictionThreshold {
		t.Errorf("EvictionThreshold = %v, want %v", cfg.EvictionThreshold, DefaultEvictionThreshold)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "compose.toml")
	doc := `
max_concurrency = 8
pool_budget_mb = 64
tier = "high"
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.MaxConcurrency != 8 {
		t.Errorf("MaxConcurrency = %d, want 8", cfg.MaxConcurrency)
	}
	if cfg.PoolBudgetMB != 64 {
		t.Errorf("PoolBudgetMB = %d, want 64", cfg.PoolBudgetMB)
	}
	if cfg.DeviceTier() != TierHigh {
		t.Errorf("DeviceTier = %v, want %v", cfg.DeviceTier(), TierHigh)
	}
	// Unset keys keep their defaults.
	if cfg.BucketCap != DefaultBucketCap {
		t.Errorf("BucketCap = %d, want default %d", cfg.BucketCap, DefaultBucketCap)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestConfigNormalized(t *testing.T) {
	cfg := Config{MaxConcurrency: -1, FreshnessWindow: -time.Second, EvictionThreshold: 3.0}
	n := cfg.normalized()
	if n.MaxConcurrency <= 0 {
		t.Error("normalized MaxConcurrency must be positive")
	}
	if n.FreshnessWindow <= 0 {
		t.Error("normalized FreshnessWindow must be positive")
	}
	if n.EvictionThreshold <= 0 || n.EvictionThreshold > 1 {
		t.Errorf("normalized EvictionThreshold = %v, want (0, 1]", n.EvictionThreshold)
	}
}
