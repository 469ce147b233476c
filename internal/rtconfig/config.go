// Package rtconfig defines the runtime's configuration struct tree,
// unmarshalled with gopkg.in/yaml.v3. It defines and validates shape only:
// reading the file from disk, watching it, or persisting changes is outside
// this module's scope, except for skill packages themselves, which are a
// first-class input rather than configuration.
package rtconfig

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration tree for the skills runtime.
type Config struct {
	Skills  SkillsConfig  `yaml:"skills"`
	Cache   CacheConfig   `yaml:"cache"`
	Sandbox SandboxConfig `yaml:"sandbox"`
	Logging LoggingConfig `yaml:"logging"`
}

// SkillsConfig controls where skills are discovered from.
type SkillsConfig struct {
	// Roots are scanned in order; a later root wins a name collision.
	Roots []string `yaml:"roots"`

	// ExtraDirs are additional, individually-named skill directories outside
	// any Roots entry.
	ExtraDirs []string `yaml:"extra_dirs"`

	// Watch enables the fsnotify-backed incremental re-indexer.
	Watch bool `yaml:"watch"`
}

// CacheConfig overrides the default per-tier cache sizing and TTLs.
type CacheConfig struct {
	MetadataMaxSize  int           `yaml:"metadata_max_size"`
	MetadataTTL      time.Duration `yaml:"metadata_ttl"`
	ContentMaxSize   int           `yaml:"content_max_size"`
	ContentTTL       time.Duration `yaml:"content_ttl"`
	ResourcesMaxSize int           `yaml:"resources_max_size"`
	ResourcesTTL     time.Duration `yaml:"resources_ttl"`
}

// SandboxConfig sets the execution manager's default policy, narrowed (never
// widened) per-skill by each skill's own declared security block.
type SandboxConfig struct {
	DefaultTimeoutMs int    `yaml:"default_timeout_ms"`
	DefaultMemoryMb  int    `yaml:"default_memory_mb"`
	DefaultBackend   string `yaml:"default_backend"`
	DockerImage      string `yaml:"docker_image"`
	Concurrency      int    `yaml:"concurrency"`
	QueueDepth       int    `yaml:"queue_depth"`
}

// LoggingConfig controls the ambient logger's construction.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source"`
}

// Default returns a Config populated with the runtime's defaults.
func Default() Config {
	return Config{
		Cache: CacheConfig{
			MetadataMaxSize:  256,
			MetadataTTL:      time.Hour,
			ContentMaxSize:   32,
			ContentTTL:       30 * time.Minute,
			ResourcesMaxSize: 16,
			ResourcesTTL:     15 * time.Minute,
		},
		Sandbox: SandboxConfig{
			DefaultTimeoutMs: 3000,
			DefaultMemoryMb:  128,
			DefaultBackend:   "direct",
			DockerImage:      "skillrt-sandbox:latest",
			Concurrency:      16,
			QueueDepth:       64,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Parse unmarshals a YAML document into a Config seeded with defaults, then
// validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the struct tree's invariants independent of how it was
// constructed.
func (c Config) Validate() error {
	if len(c.Skills.Roots) == 0 && len(c.Skills.ExtraDirs) == 0 {
		return fmt.Errorf("config: at least one skills root or extra dir is required")
	}
	if c.Sandbox.Concurrency <= 0 {
		return fmt.Errorf("config: sandbox.concurrency must be positive")
	}
	if c.Sandbox.QueueDepth <= 0 {
		return fmt.Errorf("config: sandbox.queue_depth must be positive")
	}
	switch c.Sandbox.DefaultBackend {
	case "direct", "docker":
	default:
		return fmt.Errorf("config: sandbox.default_backend must be %q or %q", "direct", "docker")
	}
	return nil
}
