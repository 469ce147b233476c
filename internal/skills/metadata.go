package skills

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/haasonsaas/skillrt/internal/skillerr"
)

// MaxMetadataTokens is the default budget a skill's rendered metadata
// (name + description + keywords) should stay under.
const MaxMetadataTokens = 50

var nameleadPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// LoadOptions controls metadata validation strictness.
type LoadOptions struct {
	// Strict promotes warnings (exceeded token budget, missing
	// helper/reference/asset files) to hard errors.
	Strict bool
}

// LoadResult is everything MetadataLoader produces for one skill directory.
type LoadResult struct {
	Metadata *Metadata
	Warnings []LoadWarning
}

// LoadMetadata reads a skill directory's descriptor (front-matter preferred,
// METADATA.yml sidecar as fallback), validates it, and normalizes its
// resource paths and security policy. It returns a *skillerr.Error with code
// InvalidMetadata or EntryMissing on any hard failure.
func LoadMetadata(dir string, opts LoadOptions) (*LoadResult, error) {
	skillFile := filepath.Join(dir, SkillFilename)
	data, err := os.ReadFile(skillFile)
	if err != nil {
		return nil, skillerr.Wrap(skillerr.InvalidMetadata, fmt.Errorf("read %s: %w", SkillFilename, err))
	}

	front, _, err := splitFrontmatter(data)
	if err != nil {
		return nil, skillerr.Wrap(skillerr.InvalidMetadata, err)
	}

	if len(bytes.TrimSpace(front)) == 0 {
		sidecar := filepath.Join(dir, MetadataSidecarFilename)
		front, err = os.ReadFile(sidecar)
		if err != nil {
			return nil, skillerr.Wrap(skillerr.InvalidMetadata, fmt.Errorf("no front-matter and no %s: %w", MetadataSidecarFilename, err))
		}
	}

	var meta Metadata
	if err := yaml.Unmarshal(front, &meta); err != nil {
		return nil, skillerr.Wrap(skillerr.InvalidMetadata, fmt.Errorf("decode metadata: %w", err))
	}

	var warnings []LoadWarning
	warn := func(format string, args ...any) {
		warnings = append(warnings, LoadWarning{SkillName: meta.Name, Message: fmt.Sprintf(format, args...)})
	}

	if err := validateRequired(&meta); err != nil {
		return nil, skillerr.Wrap(skillerr.InvalidMetadata, err)
	}

	normalizeSecurity(&meta, warn)

	if err := normalizeResources(&meta, dir, opts.Strict, warn); err != nil {
		return nil, err
	}

	checkCanonicalLayout(dir, warn)

	estimateAndCheckTokenBudget(&meta, opts.Strict, warn)

	meta.Path = dir
	meta.LoadedAt = time.Now()

	if opts.Strict && len(warnings) > 0 {
		return nil, skillerr.New(skillerr.InvalidMetadata, fmt.Sprintf("strict mode: %d warning(s) for skill %q", len(warnings), meta.Name))
	}

	return &LoadResult{Metadata: &meta, Warnings: warnings}, nil
}

func validateRequired(meta *Metadata) error {
	if strings.TrimSpace(meta.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if !nameleadPattern.MatchString(meta.Name) {
		return fmt.Errorf("name %q must match [a-z0-9-]+", meta.Name)
	}
	if strings.TrimSpace(meta.DisplayName) == "" {
		meta.DisplayName = meta.Name
	}
	if strings.TrimSpace(meta.Description) == "" {
		return fmt.Errorf("description is required")
	}
	if strings.TrimSpace(meta.Version) == "" {
		meta.Version = "0.0.0"
	}
	if strings.TrimSpace(meta.Domain) == "" {
		return fmt.Errorf("domain is required")
	}
	if len(meta.Keywords) == 0 {
		return fmt.Errorf("keywords must be non-empty")
	}
	if meta.TTL <= 0 {
		return fmt.Errorf("ttl must be > 0")
	}
	if meta.Permissions == nil {
		meta.Permissions = map[string]any{}
	}
	return nil
}

func normalizeSecurity(meta *Metadata, warn func(string, ...any)) {
	if meta.Security.Network == "allowlist" && len(meta.Security.NetworkAllowlist) == 0 {
		warn("security.network=allowlist with an empty allowlist; coercing to none")
		meta.Security.Network = "none"
	}
	if meta.Security.Filesystem == "read" {
		meta.Security.Filesystem = "read-only"
	}
}

// normalizeResourcePath strips a leading "./", rejects any path that
// escapes the skill root via "..", and returns the canonical "./..." form.
func normalizeResourcePath(p string) (string, error) {
	clean := strings.TrimPrefix(p, "./")
	clean = filepath.ToSlash(filepath.Clean(clean))
	if clean == ".." || strings.HasPrefix(clean, "../") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("resource path %q escapes the skill root", p)
	}
	return "./" + clean, nil
}

func normalizeResources(meta *Metadata, dir string, strict bool, warn func(string, ...any)) error {
	if strings.TrimSpace(meta.ResourceSpec.Entry) == "" {
		meta.ResourceSpec.Entry = "./scripts/execute"
	}
	entry, err := normalizeResourcePath(meta.ResourceSpec.Entry)
	if err != nil {
		return skillerr.Wrap(skillerr.InvalidMetadata, err)
	}
	meta.ResourceSpec.Entry = entry

	if _, err := os.Stat(filepath.Join(dir, entry)); err != nil {
		return skillerr.Wrap(skillerr.EntryMissing, fmt.Errorf("entry %q: %w", entry, err)).WithSkill(meta.Name)
	}

	normalizeList := func(kind string, paths []string) []string {
		out := make([]string, 0, len(paths))
		for _, p := range paths {
			np, err := normalizeResourcePath(p)
			if err != nil {
				warn("%s path %q rejected: %v", kind, p, err)
				continue
			}
			out = append(out, np)
			if _, err := os.Stat(filepath.Join(dir, np)); err != nil {
				msg := fmt.Sprintf("%s %q does not exist", kind, np)
				if strict {
					warn(msg + " (strict mode)")
				} else {
					warn(msg)
				}
			}
		}
		return out
	}

	meta.ResourceSpec.Helpers = normalizeList("helper", meta.ResourceSpec.Helpers)
	meta.ResourceSpec.References = normalizeList("reference", meta.ResourceSpec.References)
	meta.ResourceSpec.Assets = normalizeList("asset", meta.ResourceSpec.Assets)
	return nil
}

func checkCanonicalLayout(dir string, warn func(string, ...any)) {
	for _, sub := range []string{"scripts", "references", "assets"} {
		if info, err := os.Stat(filepath.Join(dir, sub)); err != nil || !info.IsDir() {
			warn("non-canonical layout: missing %s/ directory", sub)
		}
	}
}

func estimateAndCheckTokenBudget(meta *Metadata, strict bool, warn func(string, ...any)) {
	tokens := estimateTokens(meta.Name) + estimateTokens(meta.Description)
	for _, kw := range meta.Keywords {
		tokens += estimateTokens(kw)
	}
	if tokens > MaxMetadataTokens {
		msg := fmt.Sprintf("estimated metadata token count %d exceeds budget %d", tokens, MaxMetadataTokens)
		warn(msg)
		_ = strict // strict mode promotion happens in the caller via len(warnings) check
	}
}

// estimateTokens is a crude, dependency-free token estimate: roughly one
// token per four characters, rounded up, matching the order of magnitude of
// a real BPE tokenizer without requiring one.
func estimateTokens(s string) int {
	if s == "" {
		return 0
	}
	return (len(s) + 3) / 4
}

// splitFrontmatter scans data for a "---"-delimited YAML block at the top of
// the file and returns the front-matter bytes and the remaining body
// separately. If no front-matter block is present, front is empty and body
// is the entire input.
func splitFrontmatter(data []byte) (front, body []byte, err error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !scanner.Scan() {
		return nil, data, nil
	}
	first := scanner.Text()
	if strings.TrimSpace(first) != FrontmatterDelimiter {
		return nil, data, nil
	}

	var fm bytes.Buffer
	closed := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == FrontmatterDelimiter {
			closed = true
			break
		}
		fm.WriteString(line)
		fm.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("scan front-matter: %w", err)
	}
	if !closed {
		return nil, nil, fmt.Errorf("unterminated front-matter block")
	}

	var rest bytes.Buffer
	for scanner.Scan() {
		rest.WriteString(scanner.Text())
		rest.WriteByte('\n')
	}
	return fm.Bytes(), rest.Bytes(), nil
}
