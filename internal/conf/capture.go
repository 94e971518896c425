package conf

import (
	"fmt"
	"os"
	"time"

	"github.com/DevRickLin/chatlog-memory-bridge/internal/biz/usecase"
	"gopkg.in/yaml.v3"
)

// CaptureConfig contains the capture tuning knobs loaded from YAML
type CaptureConfig struct {
	WatchedFloor          int     `yaml:"watched_floor"`
	HighPriorityCutoff    int     `yaml:"high_priority_cutoff"`
	MinConfidence         float64 `yaml:"min_confidence"`
	BootstrapWindowsDays  []int   `yaml:"bootstrap_windows_days"`
	DeferredRetentionDays int     `yaml:"deferred_retention_days"`
}

// DefaultCaptureConfig returns the built-in tuning values
func DefaultCaptureConfig() *CaptureConfig {
	return &CaptureConfig{
		WatchedFloor:          70,
		HighPriorityCutoff:    85,
		MinConfidence:         0.3,
		BootstrapWindowsDays:  []int{3, 30, 365},
		DeferredRetentionDays: 7,
	}
}

// LoadCaptureConfig loads the tuning file, falling back to defaults when the
// path is empty or the file is missing. Zero-valued fields keep their
// defaults so partial files are fine.
func LoadCaptureConfig(path string) (*CaptureConfig, error) {
	cfg := DefaultCaptureConfig()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read capture config: %w", err)
	}

	var loaded CaptureConfig
	if err := yaml.Unmarshal(raw, &loaded); err != nil {
		return cfg, fmt.Errorf("failed to parse capture config: %w", err)
	}

	if loaded.WatchedFloor > 0 {
		cfg.WatchedFloor = loaded.WatchedFloor
	}
	if loaded.HighPriorityCutoff > 0 {
		cfg.HighPriorityCutoff = loaded.HighPriorityCutoff
	}
	if loaded.MinConfidence > 0 {
		cfg.MinConfidence = loaded.MinConfidence
	}
	if len(loaded.BootstrapWindowsDays) > 0 {
		cfg.BootstrapWindowsDays = loaded.BootstrapWindowsDays
	}
	if loaded.DeferredRetentionDays > 0 {
		cfg.DeferredRetentionDays = loaded.DeferredRetentionDays
	}
	return cfg, nil
}

// ToEvaluatorConfig converts to the policy evaluator tuning
func (c *CaptureConfig) ToEvaluatorConfig() usecase.EvaluatorConfig {
	if c == nil {
		return usecase.DefaultEvaluatorConfig
	}
	return usecase.EvaluatorConfig{
		WatchedFloor:       c.WatchedFloor,
		HighPriorityCutoff: c.HighPriorityCutoff,
		MinConfidence:      c.MinConfidence,
	}
}

// BootstrapWindows returns the ordered widening ladder of lookback windows
// tried when a talker has no checkpoint yet
func (c *CaptureConfig) BootstrapWindows() []time.Duration {
	days := []int{3, 30, 365}
	if c != nil && len(c.BootstrapWindowsDays) > 0 {
		days = c.BootstrapWindowsDays
	}
	out := make([]time.Duration, len(days))
	for i, d := range days {
		out[i] = time.Duration(d) * 24 * time.Hour
	}
	return out
}

// DeferredRetention returns how long deferred cache entries are kept
func (c *CaptureConfig) DeferredRetention() time.Duration {
	days := 7
	if c != nil && c.DeferredRetentionDays > 0 {
		days = c.DeferredRetentionDays
	}
	return time.Duration(days) * 24 * time.Hour
}
