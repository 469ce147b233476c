// Package tooldesc renders a skill catalog into one of three verbosity
// phases for inclusion in a composed system prompt.
package tooldesc

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/haasonsaas/skillrt/internal/skillerr"
	"github.com/haasonsaas/skillrt/internal/skills"
)

var titleCase = cases.Title(language.Und)

// Phase is a rendering verbosity level.
type Phase string

const (
	PhaseMetadata Phase = "metadata"
	PhaseBrief    Phase = "brief"
	PhaseFull     Phase = "full"
)

// DefaultPhase chooses the adaptive default phase by skill count: ≤3 full,
// 4-8 brief, ≥9 metadata.
func DefaultPhase(skillCount int) Phase {
	switch {
	case skillCount <= 3:
		return PhaseFull
	case skillCount <= 8:
		return PhaseBrief
	default:
		return PhaseMetadata
	}
}

// Generator (C12) renders skill catalogs deterministically (stable ordering
// by name) against an index-backed loader.
type Generator struct {
	loader *skills.SkillsLoader
}

// New constructs a Generator over a loader.
func New(loader *skills.SkillsLoader) *Generator {
	return &Generator{loader: loader}
}

// GetAllToolsDescription renders every indexed skill under phase. An empty
// phase selects the adaptive default.
func (g *Generator) GetAllToolsDescription(phase Phase) string {
	records := g.loader.Index().All()
	if phase == "" {
		phase = DefaultPhase(len(records))
	}

	var b strings.Builder
	for i, rec := range records {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(renderSkill(rec, phase))
	}
	return b.String()
}

// GetToolDescription renders one named skill under phase.
func (g *Generator) GetToolDescription(name string, phase Phase) (string, error) {
	rec, ok := g.loader.Index().Get(name)
	if !ok {
		return "", skillerr.Wrap(skillerr.SkillNotFound, skillerr.ErrSkillNotFound).WithSkill(name)
	}
	if phase == "" {
		phase = DefaultPhase(g.loader.Index().Stats().TotalSkills)
	}
	return renderSkill(rec, phase), nil
}

func renderSkill(rec *skills.Record, phase Phase) string {
	meta := rec.Metadata
	var b strings.Builder

	if phase == PhaseFull {
		fmt.Fprintf(&b, "## %s\n%s", titleCase.String(strings.ReplaceAll(meta.Name, "-", " ")), meta.Description)
	} else {
		fmt.Fprintf(&b, "## %s\n%s", meta.Name, meta.Description)
	}

	if phase == PhaseMetadata {
		return b.String()
	}

	tools := meta.Tools
	if len(tools) == 0 {
		tools = []skills.ToolSpec{{Name: meta.Name, Description: meta.Description}}
	}

	for _, t := range tools {
		b.WriteString("\n\nparameters:")
		names := make([]string, 0, len(t.Parameters))
		for n := range t.Parameters {
			names = append(names, n)
		}
		sort.Strings(names)
		if len(names) == 0 {
			b.WriteString(" (none)")
		}
		for _, n := range names {
			p := t.Parameters[n]
			fmt.Fprintf(&b, "\n  - %s: %s", n, p.Type)
			if p.Required {
				b.WriteString(" (required)")
			}
			if phase == PhaseFull {
				if p.Validation.Pattern != "" {
					fmt.Fprintf(&b, " pattern=%q", p.Validation.Pattern)
				}
				if len(p.Validation.Enum) > 0 {
					fmt.Fprintf(&b, " enum=%v", p.Validation.Enum)
				}
				if p.Default != nil {
					fmt.Fprintf(&b, " default=%v", p.Default)
				}
			}
		}

		if phase == PhaseFull {
			if t.Returns.Type != "" {
				fmt.Fprintf(&b, "\nreturns: %s", t.Returns.Type)
				if t.Returns.Description != "" {
					fmt.Fprintf(&b, " — %s", t.Returns.Description)
				}
			}
			fmt.Fprintf(&b, "\nexample: <tool_call>{\"tool\": %q, \"parameters\": {}}</tool_call>", meta.Name)
		}
	}

	return b.String()
}
