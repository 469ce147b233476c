package rtconfig

import (
	"strings"
	"testing"
)

func TestParseAppliesDefaultsAndOverrides(t *testing.T) {
	data := []byte(`
skills:
  roots: ["/srv/skills"]
sandbox:
  concurrency: 4
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(cfg.Skills.Roots) != 1 || cfg.Skills.Roots[0] != "/srv/skills" {
		t.Errorf("Skills.Roots = %v", cfg.Skills.Roots)
	}
	if cfg.Sandbox.Concurrency != 4 {
		t.Errorf("Sandbox.Concurrency = %d, want 4 (override)", cfg.Sandbox.Concurrency)
	}
	if cfg.Sandbox.QueueDepth != Default().Sandbox.QueueDepth {
		t.Errorf("Sandbox.QueueDepth = %d, want default preserved", cfg.Sandbox.QueueDepth)
	}
	if cfg.Sandbox.DefaultBackend != "direct" {
		t.Errorf("Sandbox.DefaultBackend = %q, want default 'direct'", cfg.Sandbox.DefaultBackend)
	}
}

func TestParseRejectsNoSkillSources(t *testing.T) {
	data := []byte("sandbox:\n  concurrency: 1\n")
	_, err := Parse(data)
	if err == nil {
		t.Fatal("Parse() error = nil, want error for missing skill roots/extra_dirs")
	}
}

func TestValidateRejectsBadBackend(t *testing.T) {
	cfg := Default()
	cfg.Skills.Roots = []string{"/srv/skills"}
	cfg.Sandbox.DefaultBackend = "kubernetes"

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "default_backend") {
		t.Errorf("Validate() error = %v, want default_backend complaint", err)
	}
}

func TestValidateRejectsNonPositiveConcurrency(t *testing.T) {
	cfg := Default()
	cfg.Skills.Roots = []string{"/srv/skills"}
	cfg.Sandbox.Concurrency = 0

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() error = nil, want error for zero concurrency")
	}
}

func TestValidateAcceptsExtraDirsWithoutRoots(t *testing.T) {
	cfg := Default()
	cfg.Skills.ExtraDirs = []string{"/srv/one-off-skill"}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil (extra_dirs alone is sufficient)", err)
	}
}
