package skills

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeSkill(t *testing.T, root, name, frontmatter string) {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(filepath.Join(dir, "scripts"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "scripts", "execute"), []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("WriteFile entry: %v", err)
	}
	content := "---\n" + frontmatter + "\n---\n"
	if err := os.WriteFile(filepath.Join(dir, SkillFilename), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile SKILL.md: %v", err)
	}
}

func TestDiscoverAllIndexesSkillDirectories(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "pdf-fill", "name: pdf-fill\ndescription: Fills PDF forms\ndomain: documents\nkeywords: [pdf, forms]\nttl: 60\n")
	writeSkill(t, root, "csv-merge", "name: csv-merge\ndescription: Merges CSV files\ndomain: documents\nkeywords: [csv]\nttl: 60\n")

	idx := NewSkillIndex(nil)
	if err := idx.DiscoverAll(context.Background(), []DiscoverySource{{Root: root, Priority: 0}}); err != nil {
		t.Fatalf("DiscoverAll() error = %v", err)
	}

	if stats := idx.Stats(); stats.TotalSkills != 2 {
		t.Errorf("TotalSkills = %d, want 2", stats.TotalSkills)
	}
	if _, ok := idx.Get("pdf-fill"); !ok {
		t.Error("Get(pdf-fill) = false, want true")
	}
}

func TestDiscoverAllSkipsInvalidSkillDirectory(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "good", "name: good\ndescription: a valid skill\ndomain: x\nkeywords: [a]\nttl: 10\n")
	badDir := filepath.Join(root, "bad")
	if err := os.MkdirAll(badDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	// No SKILL.md at all: invalid, should be skipped rather than aborting discovery.
	if err := os.WriteFile(filepath.Join(badDir, "README.txt"), []byte("not a skill"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	idx := NewSkillIndex(nil)
	if err := idx.DiscoverAll(context.Background(), []DiscoverySource{{Root: root, Priority: 0}}); err != nil {
		t.Fatalf("DiscoverAll() error = %v", err)
	}
	if stats := idx.Stats(); stats.TotalSkills != 1 {
		t.Errorf("TotalSkills = %d, want 1 (bad skill skipped)", stats.TotalSkills)
	}
}

func TestDiscoverAllHigherPriorityWins(t *testing.T) {
	lowRoot := t.TempDir()
	highRoot := t.TempDir()
	writeSkill(t, lowRoot, "pdf-fill", "name: pdf-fill\ndescription: low priority version\ndomain: x\nkeywords: [a]\nttl: 10\n")
	writeSkill(t, highRoot, "pdf-fill", "name: pdf-fill\ndescription: high priority version\ndomain: x\nkeywords: [a]\nttl: 10\n")

	idx := NewSkillIndex(nil)
	sources := []DiscoverySource{
		{Root: lowRoot, Priority: 0},
		{Root: highRoot, Priority: 10},
	}
	if err := idx.DiscoverAll(context.Background(), sources); err != nil {
		t.Fatalf("DiscoverAll() error = %v", err)
	}

	rec, ok := idx.Get("pdf-fill")
	if !ok {
		t.Fatal("Get(pdf-fill) = false, want true")
	}
	if rec.Metadata.Description != "high priority version" {
		t.Errorf("Description = %q, want the higher-priority source to win", rec.Metadata.Description)
	}
}

func TestFindRelevantSkillsScoresByKeywordOverlap(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "pdf-fill", "name: pdf-fill\ndescription: Fills a PDF form\ndomain: documents\nkeywords: [pdf, form, fill]\nttl: 60\n")
	writeSkill(t, root, "csv-merge", "name: csv-merge\ndescription: Merges CSV rows\ndomain: documents\nkeywords: [csv, merge]\nttl: 60\n")

	idx := NewSkillIndex(nil)
	if err := idx.DiscoverAll(context.Background(), []DiscoverySource{{Root: root, Priority: 0}}); err != nil {
		t.Fatalf("DiscoverAll() error = %v", err)
	}

	matches := idx.FindRelevantSkills("please fill this pdf form", FindOptions{MinConfidence: 0.1})
	if len(matches) == 0 {
		t.Fatal("FindRelevantSkills() returned no matches")
	}
	if matches[0].Record.Metadata.Name != "pdf-fill" {
		t.Errorf("top match = %q, want pdf-fill", matches[0].Record.Metadata.Name)
	}
}

func TestFindRelevantSkillsRequiredKeywordsFilter(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "pdf-fill", "name: pdf-fill\ndescription: Fills a PDF form\ndomain: documents\nkeywords: [pdf, form]\nttl: 60\n")

	idx := NewSkillIndex(nil)
	if err := idx.DiscoverAll(context.Background(), []DiscoverySource{{Root: root, Priority: 0}}); err != nil {
		t.Fatalf("DiscoverAll() error = %v", err)
	}

	matches := idx.FindRelevantSkills("fill a form", FindOptions{RequiredKeywords: []string{"csv"}})
	if len(matches) != 0 {
		t.Errorf("matches = %d, want 0 (required keyword not present)", len(matches))
	}
}

func TestFindRelevantSkillsDomainHintBreaksTie(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "doc-tool", "name: doc-tool\ndescription: handles files\ndomain: documents\nkeywords: [file]\nttl: 60\n")
	writeSkill(t, root, "img-tool", "name: img-tool\ndescription: handles files\ndomain: images\nkeywords: [file]\nttl: 60\n")

	idx := NewSkillIndex(nil)
	if err := idx.DiscoverAll(context.Background(), []DiscoverySource{{Root: root, Priority: 0}}); err != nil {
		t.Fatalf("DiscoverAll() error = %v", err)
	}

	matches := idx.FindRelevantSkills("handle this file", FindOptions{MinConfidence: 0.1, Domain: "images"})
	if len(matches) < 2 {
		t.Fatalf("matches = %d, want at least 2", len(matches))
	}
	if matches[0].Record.Metadata.Name != "img-tool" {
		t.Errorf("top match = %q, want img-tool (matching domain hint)", matches[0].Record.Metadata.Name)
	}
}

func TestReloadSkillUnknownName(t *testing.T) {
	idx := NewSkillIndex(nil)
	if _, err := idx.ReloadSkill("does-not-exist"); err == nil {
		t.Error("ReloadSkill() error = nil, want skill-not-found error")
	}
}
