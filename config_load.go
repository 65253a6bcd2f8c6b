package aigateway

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads and parses a config file from the given path.
// Supported formats: JSON (.json), YAML (.yaml, .yml).
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file extension %q: use .json, .yaml, or .yml", ext)
	}

	return &cfg, nil
}

// ValidateConfig validates a Config for correctness.
func ValidateConfig(cfg Config) error {
	// Default to single strategy when mode is omitted to match runtime behavior.
	mode := cfg.Strategy.Mode
	if mode == "" {
		mode = ModeSingle
	}

	switch mode {
	case ModeSingle, ModeFallback, ModeLoadBalance, ModeConditional:
	default:
		return fmt.Errorf("unknown strategy mode: %q", cfg.Strategy.Mode)
	}

	if len(cfg.Targets) == 0 {
		return fmt.Errorf("at least one target is required")
	}

	if mode == ModeConditional && len(cfg.Strategy.Conditions) == 0 {
		return fmt.Errorf("conditional strategy requires at least one condition")
	}

	if mode == ModeLoadBalance {
		var sum float64
		for _, t := range cfg.Targets {
			if t.Weight < 0 {
				return fmt.Errorf("target %q has negative weight", t.VirtualKey)
			}
			sum += t.Weight
		}
		if sum <= 0 {
			return fmt.Errorf("loadbalance strategy requires total weight > 0")
		}
	}

	if err := validateModelMappings(cfg.ModelMappings); err != nil {
		return err
	}
	if err := validateRouting(cfg.Routing, cfg.ModelMappings); err != nil {
		return err
	}
	if err := validateFallbacks(cfg.Fallbacks); err != nil {
		return err
	}
	if err := validateRateLimiting(cfg.RateLimiting); err != nil {
		return err
	}
	if err := validateCache(cfg.Cache); err != nil {
		return err
	}

	return nil
}

func validateCache(c CacheConfig) error {
	switch c.Backend {
	case "", "memory":
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("cache backend redis requires redis_addr")
		}
	default:
		return fmt.Errorf("unknown cache backend: %q", c.Backend)
	}
	return nil
}

// validateModelMappings rejects duplicate aliases and incomplete bindings.
// There is a single model-mappings namespace: Config.ModelMappings. Earlier
// gateway revisions referenced both an LLMRouting.ModelMappings and a
// Routing.ModelMappings field; this config shape collapses both into one,
// so a duplicate alias is the only way to define the "same" mapping twice.
func validateModelMappings(mappings []ModelMapping) error {
	seen := make(map[string]bool, len(mappings))
	for _, m := range mappings {
		if m.ID == "" {
			return fmt.Errorf("model mapping missing id")
		}
		if seen[m.ID] {
			return fmt.Errorf("duplicate model mapping id %q", m.ID)
		}
		seen[m.ID] = true
		if m.ProviderName == "" || m.ProviderModelID == "" {
			return fmt.Errorf("model mapping %q requires provider_name and provider_model_id", m.ID)
		}
	}
	return nil
}

func validateRouting(r RoutingConfig, mappings []ModelMapping) error {
	if r.EnableExperimentalRouting {
		if r.ExperimentalSamplingRate < 0 || r.ExperimentalSamplingRate > 1 {
			return fmt.Errorf("experimental_sampling_rate must be between 0 and 1")
		}
		if len(r.ExperimentalModels) == 0 {
			return fmt.Errorf("experimental routing requires at least one experimental model")
		}
	}
	if r.EnableContentBasedRouting && len(mappings) == 0 {
		return fmt.Errorf("content-based routing requires at least one model mapping")
	}
	return nil
}

func validateFallbacks(f FallbacksConfig) error {
	if !f.EnableFallbacks {
		return nil
	}
	if f.MaxFallbackAttempts < 0 {
		return fmt.Errorf("max_fallback_attempts must be non-negative")
	}
	for _, rule := range f.Rules {
		if rule.ModelID == "" {
			return fmt.Errorf("fallback rule missing model_id")
		}
		if len(rule.FallbackModels) == 0 {
			return fmt.Errorf("fallback rule for %q requires at least one fallback model", rule.ModelID)
		}
	}
	return nil
}

func validateRateLimiting(r RateLimitingConfig) error {
	if r.TokenLimit < 0 || r.TokensPerPeriod < 0 || r.ReplenishmentPeriodSeconds < 0 || r.QueueLimit < 0 {
		return fmt.Errorf("rate_limiting fields must be non-negative")
	}
	return nil
}
