// Package config loads pipeline configuration from a YAML file with
// environment-variable overrides, in the style of the teacher's
// internal/config package: a DefaultConfig baseline, Load filling in
// from a file when present, and applyEnvOverrides layering secrets and
// per-deployment values on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"skillforge/internal/evalgate"
	"skillforge/internal/sandbox"
)

// Config holds every tunable the Evolution Controller, Promoter, and
// CLI commands need.
type Config struct {
	Paths     PathsConfig     `yaml:"paths"`
	Generator GeneratorConfig `yaml:"generator"`
	Sandbox   SandboxConfig   `yaml:"sandbox"`
	Eval      EvalConfig      `yaml:"eval"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// PathsConfig locates the file-backed state the pipeline reads and
// writes: the work queue, the registry, the staging/prod artifact
// trees, the audit log, and eval case directories.
type PathsConfig struct {
	Queue      string `yaml:"queue"`
	Registry   string `yaml:"registry"`
	Staging    string `yaml:"staging"`
	Prod       string `yaml:"prod"`
	AuditLog   string `yaml:"audit_log"`
	EvalCases  string `yaml:"eval_cases"`
}

// GeneratorConfig selects and configures the Generator collaborator.
type GeneratorConfig struct {
	// Provider is "gemini" or "stub". Defaults to "stub" so the
	// pipeline runs end to end without external credentials.
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"-"` // always sourced from environment, never from file
}

// SandboxConfig mirrors sandbox.Config's tunables in file-friendly
// form (durations as strings, per the teacher's pattern).
type SandboxConfig struct {
	Image            string `yaml:"image"`
	MemoryLimitBytes int64  `yaml:"memory_limit_bytes"`
	PidsLimit        int64  `yaml:"pids_limit"`
	CPUQuota         int64  `yaml:"cpu_quota"`
	Timeout          string `yaml:"timeout"`
	ScratchSizeBytes int64  `yaml:"scratch_size_bytes"`
}

// EvalConfig carries the per-category pass-rate thresholds.
type EvalConfig struct {
	ReplayThreshold     float64 `yaml:"replay_threshold"`
	RegressionThreshold float64 `yaml:"regression_threshold"`
	RedteamThreshold    float64 `yaml:"redteam_threshold"`
}

// LoggingConfig controls the zap logger construction.
type LoggingConfig struct {
	Debug bool   `yaml:"debug"`
	JSON  bool   `yaml:"json"`
	File  string `yaml:"file"`
}

// DefaultConfig returns the baseline configuration used when no file
// is present and nothing is overridden by environment variables.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			Queue:     "data/queue.json",
			Registry:  "data/registry.json",
			Staging:   "data/staging",
			Prod:      "data/prod",
			AuditLog:  "data/audit.log",
			EvalCases: "data/eval_cases",
		},
		Generator: GeneratorConfig{
			Provider: "stub",
			Model:    "gemini-2.0-flash",
		},
		Sandbox: SandboxConfig{
			Image:            "skillforge-harness:latest",
			MemoryLimitBytes: 512 * 1024 * 1024,
			PidsLimit:        128,
			CPUQuota:         100000,
			Timeout:          "30s",
			ScratchSizeBytes: 64 * 1024 * 1024,
		},
		Eval: EvalConfig{
			ReplayThreshold:     evalgate.ThresholdReplay,
			RegressionThreshold: evalgate.ThresholdRegression,
			RedteamThreshold:    evalgate.ThresholdRedteam,
		},
		Logging: LoggingConfig{
			Debug: false,
			JSON:  false,
			File:  "",
		},
	}
}

// Load reads path as YAML into a copy of DefaultConfig, then applies
// environment overrides. A missing file is not an error — it is
// treated identically to an empty file, matching the teacher's
// Load semantics.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes cfg to path as YAML, creating parent directories as
// needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Generator.APIKey = key
		if c.Generator.Provider == "" || c.Generator.Provider == "stub" {
			c.Generator.Provider = "gemini"
		}
	}
	if v := os.Getenv("SKILLFORGE_REGISTRY_PATH"); v != "" {
		c.Paths.Registry = v
	}
	if v := os.Getenv("SKILLFORGE_QUEUE_PATH"); v != "" {
		c.Paths.Queue = v
	}
	if v := os.Getenv("SKILLFORGE_STAGING_PATH"); v != "" {
		c.Paths.Staging = v
	}
	if v := os.Getenv("SKILLFORGE_PROD_PATH"); v != "" {
		c.Paths.Prod = v
	}
	if v := os.Getenv("SKILLFORGE_SANDBOX_IMAGE"); v != "" {
		c.Sandbox.Image = v
	}
}

// SandboxTimeout parses Sandbox.Timeout, falling back to 30s on a
// malformed value rather than failing config load outright.
func (c *Config) SandboxTimeout() time.Duration {
	d, err := time.ParseDuration(c.Sandbox.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// SandboxRunnerConfig projects the file-friendly SandboxConfig into
// sandbox.Config, filling unset numeric fields from sandbox.Defaults.
func (c *Config) SandboxRunnerConfig() sandbox.Config {
	defaults := sandbox.Defaults()
	cfg := sandbox.Config{
		Image:            c.Sandbox.Image,
		NetworkMode:      "none",
		MemoryLimitBytes: c.Sandbox.MemoryLimitBytes,
		PidsLimit:        c.Sandbox.PidsLimit,
		CPUQuota:         c.Sandbox.CPUQuota,
		Timeout:          c.SandboxTimeout(),
		ScratchPath:      defaults.ScratchPath,
		ScratchSizeBytes: c.Sandbox.ScratchSizeBytes,
	}
	if cfg.Image == "" {
		cfg.Image = defaults.Image
	}
	if cfg.MemoryLimitBytes == 0 {
		cfg.MemoryLimitBytes = defaults.MemoryLimitBytes
	}
	if cfg.PidsLimit == 0 {
		cfg.PidsLimit = defaults.PidsLimit
	}
	if cfg.CPUQuota == 0 {
		cfg.CPUQuota = defaults.CPUQuota
	}
	if cfg.ScratchSizeBytes == 0 {
		cfg.ScratchSizeBytes = defaults.ScratchSizeBytes
	}
	return cfg
}
