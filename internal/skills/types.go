// Package skills implements skill discovery, metadata validation, and the
// composed loader facade (C1 SkillIndex, C2 MetadataLoader, C4
// InstructionLoader, C5 ResourceLoader, C6 SkillsLoader).
package skills

import (
	"time"

	"github.com/haasonsaas/skillrt/pkg/models"
)

// SkillFilename is the canonical documentation file a skill directory must
// contain, optionally carrying a YAML front-matter block.
const SkillFilename = "SKILL.md"

// MetadataSidecarFilename is the fallback descriptor consulted when
// SkillFilename has no front-matter block of its own.
const MetadataSidecarFilename = "METADATA.yml"

// FrontmatterDelimiter brackets the YAML front-matter block within
// SkillFilename.
const FrontmatterDelimiter = "---"

// Triggers narrows when a skill is considered a strong match for an intent,
// independent of its keyword/description score.
type Triggers struct {
	Intents    []string `yaml:"intents,omitempty" json:"intents,omitempty"`
	Phrases    []string `yaml:"phrases,omitempty" json:"phrases,omitempty"`
	EventTypes []string `yaml:"event_types,omitempty" json:"eventTypes,omitempty"`
	Priority   float64  `yaml:"priority,omitempty" json:"priority,omitempty"`
}

// Resources lists the files a skill declares, all paths relative to the
// skill root in normalized `./...` form.
type Resources struct {
	Entry      string   `yaml:"entry" json:"entry"`
	Helpers    []string `yaml:"helpers,omitempty" json:"helpers,omitempty"`
	References []string `yaml:"references,omitempty" json:"references,omitempty"`
	Assets     []string `yaml:"assets,omitempty" json:"assets,omitempty"`
}

// ValidationSpec constrains one tool parameter's accepted values.
type ValidationSpec struct {
	Min     *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max     *float64 `yaml:"max,omitempty" json:"max,omitempty"`
	Pattern string   `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Enum    []string `yaml:"enum,omitempty" json:"enum,omitempty"`
}

// ParameterSpec describes one named parameter of a declared tool.
type ParameterSpec struct {
	Type       string         `yaml:"type" json:"type"`
	Required   bool           `yaml:"required,omitempty" json:"required,omitempty"`
	Default    any            `yaml:"default,omitempty" json:"default,omitempty"`
	Validation ValidationSpec `yaml:"validation,omitempty" json:"validation,omitempty"`
}

// ReturnSpec describes the shape of a declared tool's result.
type ReturnSpec struct {
	Type        string `yaml:"type" json:"type"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// ToolSpec is one callable operation exposed by a skill.
type ToolSpec struct {
	Name        string                   `yaml:"name" json:"name"`
	Description string                   `yaml:"description" json:"description"`
	Parameters  map[string]ParameterSpec `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	Returns     ReturnSpec               `yaml:"returns,omitempty" json:"returns,omitempty"`
}

// SecurityPolicy is the front-matter's security block, decoded before being
// normalized into models.SecurityPolicy by the metadata loader.
type SecurityPolicy struct {
	TimeoutMs        int      `yaml:"timeout_ms,omitempty" json:"timeoutMs,omitempty"`
	MemoryMb         int      `yaml:"memory_mb,omitempty" json:"memoryMb,omitempty"`
	Network          string   `yaml:"network,omitempty" json:"network,omitempty"`
	NetworkAllowlist []string `yaml:"network_allowlist,omitempty" json:"networkAllowlist,omitempty"`
	Filesystem       string   `yaml:"filesystem,omitempty" json:"filesystem,omitempty"`
	Environment      []string `yaml:"environment,omitempty" json:"environment,omitempty"`
	Isolation        string   `yaml:"isolation,omitempty" json:"isolation,omitempty"`
}

// Metadata is one skill's fully validated, immutable descriptor.
type Metadata struct {
	Name        string   `yaml:"name" json:"name"`
	DisplayName string   `yaml:"displayName" json:"displayName"`
	Description string   `yaml:"description" json:"description"`
	Version     string   `yaml:"version" json:"version"`
	Type        string   `yaml:"type,omitempty" json:"type,omitempty"`
	Protocol    string   `yaml:"protocol,omitempty" json:"protocol,omitempty"`
	Domain      string   `yaml:"domain" json:"domain"`
	Keywords    []string `yaml:"keywords" json:"keywords"`
	Tags        []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	Capabilities []string `yaml:"capabilities,omitempty" json:"capabilities,omitempty"`

	Triggers *Triggers `yaml:"triggers,omitempty" json:"triggers,omitempty"`

	InputSchema  map[string]any `yaml:"input_schema,omitempty" json:"inputSchema,omitempty"`
	OutputSchema map[string]any `yaml:"output_schema,omitempty" json:"outputSchema,omitempty"`

	Security SecurityPolicy `yaml:"security,omitempty" json:"security,omitempty"`

	ResourceSpec Resources `yaml:"resources" json:"resources"`

	Cacheable bool `yaml:"cacheable" json:"cacheable"`
	TTL       int  `yaml:"ttl" json:"ttl"`

	Permissions map[string]any `yaml:"permissions,omitempty" json:"permissions,omitempty"`

	Tools []ToolSpec `yaml:"tools,omitempty" json:"tools,omitempty"`

	// Provenance, set by the loader rather than decoded from front-matter.
	Path     string    `yaml:"-" json:"path"`
	LoadedAt time.Time `yaml:"-" json:"loadedAt"`
}

// NormalizedSecurity converts the front-matter security block into the
// wire-level models.SecurityPolicy applied at execution time, defaulting any
// unset fields.
func (s SecurityPolicy) NormalizedSecurity() models.SecurityPolicy {
	p := models.SecurityPolicy{
		TimeoutMs:        s.TimeoutMs,
		MemoryMb:         s.MemoryMb,
		Network:          models.NetworkPolicy(s.Network),
		NetworkAllowlist: s.NetworkAllowlist,
		Filesystem:       models.FilesystemPolicy(s.Filesystem),
		Environment:      s.Environment,
		Isolation:        models.IsolationBackend(s.Isolation),
	}
	if p.TimeoutMs <= 0 {
		p.TimeoutMs = 3000
	}
	if p.MemoryMb <= 0 {
		p.MemoryMb = 128
	}
	if p.Network == "" {
		p.Network = models.NetworkNone
	}
	if p.Filesystem == "" {
		p.Filesystem = models.FilesystemReadOnly
	}
	if p.Filesystem == "read" {
		p.Filesystem = models.FilesystemReadOnly
	}
	if p.Isolation == "" {
		p.Isolation = models.IsolationDirect
	}
	return p
}

// LoadWarning is a non-fatal issue surfaced while loading one skill.
type LoadWarning struct {
	SkillName string
	Message   string
}

// Record is what the index stores for one successfully loaded skill: its
// validated metadata plus bookkeeping the index itself needs.
type Record struct {
	Metadata         *Metadata
	AbsolutePath     string
	DescriptionTokens int
	Warnings         []LoadWarning
	ScanSeq          uint64
}

// Section is a named block of a skill's documentation, split on level-2/3
// headings.
type Section struct {
	Title string
	Body  string
}

// CodeBlock is one fenced code block extracted from a skill's documentation.
type CodeBlock struct {
	Language string
	Code     string
}

// Content is the derived, cacheable documentation body for one skill.
type Content struct {
	Raw        string
	Sections   []Section
	CodeBlocks []CodeBlock
}

// ResourceFile describes one file enumerated under a skill's resource
// directories, without reading its body.
type ResourceFile struct {
	Path     string
	Size     int64
	MimeType string
}

// ResourceListing is the derived, cacheable enumeration of a skill's
// scripts/references/assets.
type ResourceListing struct {
	Scripts      []ResourceFile
	References   []ResourceFile
	Assets       []ResourceFile
	Dependencies []string
}

// Snapshot is a minimal, serializable view of a skill for catalog display.
type Snapshot struct {
	Name        string
	DisplayName string
	Description string
	Path        string
}
