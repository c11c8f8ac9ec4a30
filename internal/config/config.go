// Package config loads CORTEX's configuration from a YAML file, with
// environment-variable overrides for the operator-facing tunables.
// Each concern gets its own sub-struct in its own file (storage.go, memory.go,
// protection.go, router.go, templates.go, learning.go) rather than one
// monolithic struct.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all CORTEX configuration.
type Config struct {
	BrainDir          string           `yaml:"brain_dir"`
	Logging           LoggingConfig    `yaml:"logging"`
	Storage           StorageConfig    `yaml:"storage"`
	Memory            MemoryConfig     `yaml:"memory"`
	Protection        ProtectionConfig `yaml:"protection"`
	Router            RouterConfig     `yaml:"router"`
	Templates         TemplatesConfig  `yaml:"templates"`
	Learning          LearningConfig   `yaml:"learning"`
	Workspace         WorkspaceConfig  `yaml:"workspace"`
	RequestDeadlineMS int              `yaml:"request_deadline_ms"`
}

// LoggingConfig controls internal/logging.
type LoggingConfig struct {
	Debug bool `yaml:"debug"`
	JSON  bool `yaml:"json"`
}

// Default returns a configuration populated entirely with baseline defaults.
func Default() *Config {
	return &Config{
		BrainDir: ".cortex/brain",
		Logging: LoggingConfig{
			Debug: false,
			JSON:  true,
		},
		Storage:           DefaultStorageConfig(),
		Memory:            DefaultMemoryConfig(),
		Protection:        DefaultProtectionConfig(),
		Router:            DefaultRouterConfig(),
		Templates:         DefaultTemplatesConfig(),
		Learning:          DefaultLearningConfig(),
		Workspace:         DefaultWorkspaceConfig(),
		RequestDeadlineMS: 60000,
	}
}

// Load reads path (if non-empty and it exists) as YAML over the defaults,
// then applies environment-variable overrides. A missing path is not an
// error: defaults + env overrides are a valid configuration on their own.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that would violate invariants elsewhere
// in the system (e.g. a zero capacity would make every append an eviction).
func (c *Config) Validate() error {
	if c.BrainDir == "" {
		return fmt.Errorf("brain_dir must not be empty")
	}
	if c.Memory.Tier1Capacity <= 0 {
		return fmt.Errorf("memory.tier1_capacity must be positive")
	}
	if c.RequestDeadlineMS <= 0 {
		return fmt.Errorf("request_deadline_ms must be positive")
	}
	return nil
}

// applyEnvOverrides maps the supported environment variables onto
// the config, following the same env-override convention
// (internal/config/env_override_test.go): overrides are applied after YAML
// so the environment always wins.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CORTEX_BRAIN_DIR"); v != "" {
		cfg.BrainDir = v
	}
	if v := os.Getenv("CORTEX_CAPACITY_TIER1"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Memory.Tier1Capacity = n
		}
	}
	if v := os.Getenv("CORTEX_DECAY_DAYS"); v != "" {
		days := parseIntList(v)
		if len(days) == 4 {
			cfg.Learning.DecayDays = [4]int{days[0], days[1], days[2], days[3]}
		}
	}
	if v := os.Getenv("CORTEX_REQUEST_DEADLINE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RequestDeadlineMS = n
		}
	}
	if v := os.Getenv("CORTEX_LEARNING_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Learning.EventCountThreshold = n
		}
	}
	if v := os.Getenv("CORTEX_TOKEN_BUDGET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Router.TokenBudget = n
		}
	}
}

func parseIntList(s string) []int {
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if n, err := strconv.Atoi(p); err == nil {
			out = append(out, n)
		}
	}
	return out
}
