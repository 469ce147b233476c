// Package toolparse recovers structured tool calls from streamed, possibly
// noisy or truncated model text wrapped in <tool_call>...</tool_call>
// sentinels.
package toolparse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/haasonsaas/skillrt/pkg/models"
)

const (
	openSentinel  = "<tool_call>"
	closeSentinel = "</tool_call>"
)

var (
	// ErrUnterminated describes a call whose opener has no matching closer
	// yet. Parse logs it at debug level; it is not reported as an error.
	ErrUnterminated = fmt.Errorf("tool call opener without a closing sentinel")

	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// ParseResult is the tagged outcome of one parse attempt.
type ParseResult struct {
	Success   bool
	ToolCalls []models.ToolCall
	Error     string
	Fallback  string // "plain-text" when the span reverts to ordinary text
}

// Parser (C10) scans accumulated model text for tool-call spans.
type Parser struct {
	log    *slog.Logger
	strict bool
}

// New constructs a Parser. strict disables the bounded JSON repair pass:
// malformed payloads are rejected outright instead of patched.
func New(log *slog.Logger, strict bool) *Parser {
	if log == nil {
		log = slog.Default()
	}
	return &Parser{log: log, strict: strict}
}

// Parse scans buf for tool-call spans and returns every call it could
// recover. An unmatched opener at the end of buf is not an error: the call
// is still arriving, so Success is true, Error is empty, Fallback is
// "plain-text", and the calls completed before it are still returned. The
// caller parses again once more text arrives.
func (p *Parser) Parse(buf string) ParseResult {
	var result ParseResult
	cursor := 0
	for {
		openIdx := strings.Index(buf[cursor:], openSentinel)
		if openIdx < 0 {
			result.Success = true
			if len(result.ToolCalls) == 0 {
				result.Fallback = "plain-text"
			}
			return result
		}
		openIdx += cursor
		bodyStart := openIdx + len(openSentinel)

		closeIdx := strings.Index(buf[bodyStart:], closeSentinel)
		if closeIdx < 0 {
			p.log.Debug("tool call still arriving", "err", ErrUnterminated)
			result.Fallback = "plain-text"
			result.Success = true
			return result
		}
		closeIdx += bodyStart

		payload := strings.TrimSpace(buf[bodyStart:closeIdx])
		call, err := p.parseCall(payload, openIdx, closeIdx+len(closeSentinel))
		if err != nil {
			p.log.Debug("tool call payload rejected", "err", err)
			if p.strict {
				result.Error = err.Error()
			}
			cursor = closeIdx + len(closeSentinel)
			continue
		}
		result.ToolCalls = append(result.ToolCalls, call)
		cursor = closeIdx + len(closeSentinel)
	}
}

func (p *Parser) parseCall(payload string, start, end int) (models.ToolCall, error) {
	raw := []byte(payload)

	var decoded map[string]json.RawMessage
	err := json.Unmarshal(raw, &decoded)
	if err != nil && !p.strict {
		repaired, repairErr := repairJSON(payload)
		if repairErr == nil {
			if err2 := json.Unmarshal([]byte(repaired), &decoded); err2 == nil {
				err = nil
			}
		}
	}
	if err != nil {
		return models.ToolCall{}, fmt.Errorf("parse tool call json: %w", err)
	}

	toolRaw, ok := decoded["tool"]
	if !ok {
		return models.ToolCall{}, fmt.Errorf("missing required field: tool")
	}
	var tool string
	if err := json.Unmarshal(toolRaw, &tool); err != nil || tool == "" {
		return models.ToolCall{}, fmt.Errorf("field \"tool\" must be a non-empty string")
	}

	paramsRaw, ok := decoded["parameters"]
	if !ok {
		paramsRaw = json.RawMessage("{}")
	} else {
		var probe map[string]any
		if err := json.Unmarshal(paramsRaw, &probe); err != nil {
			return models.ToolCall{}, fmt.Errorf("field \"parameters\" must be an object: %w", err)
		}
	}

	id := ""
	if idRaw, ok := decoded["id"]; ok {
		_ = json.Unmarshal(idRaw, &id)
	}
	if id == "" {
		id = uuid.New().String()
	}

	return models.ToolCall{
		ID:         id,
		Tool:       tool,
		Parameters: paramsRaw,
		SourceSpan: models.Span{Start: start, End: end},
	}, nil
}

// repairJSON applies a bounded set of fixups to near-miss JSON: trims
// trailing commas before a closing brace/bracket and coerces single-quoted
// strings to double-quoted ones, the latter only when the payload holds no
// double quotes. Unbalanced quotes or braces are not repaired. It never
// attempts a full re-parse or unbounded backtracking.
func repairJSON(payload string) (string, error) {
	s := trailingCommaPattern.ReplaceAllString(payload, "$1")
	if strings.Count(s, "'") > 0 && strings.Count(s, `"`) == 0 {
		s = strings.ReplaceAll(s, "'", `"`)
	}
	return s, nil
}
