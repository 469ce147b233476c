package toolparse

import (
	"testing"
)

func TestParseSingleCall(t *testing.T) {
	p := New(nil, false)
	buf := `here it is <tool_call>{"tool":"pdf-fill","parameters":{"path":"a.pdf"}}</tool_call> done`

	result := p.Parse(buf)
	if !result.Success {
		t.Fatalf("Success = false, error = %q", result.Error)
	}
	if len(result.ToolCalls) != 1 {
		t.Fatalf("len(ToolCalls) = %d, want 1", len(result.ToolCalls))
	}
	call := result.ToolCalls[0]
	if call.Tool != "pdf-fill" {
		t.Errorf("Tool = %q, want pdf-fill", call.Tool)
	}
	if call.ID == "" {
		t.Errorf("ID is empty, want a generated uuid")
	}
	if call.SourceSpan.Start != 11 || call.SourceSpan.End != len(buf)-len(" done") {
		t.Errorf("SourceSpan = %+v, unexpected", call.SourceSpan)
	}
}

func TestParseMultipleCallsSpansAreSequential(t *testing.T) {
	p := New(nil, false)
	buf := `<tool_call>{"tool":"a"}</tool_call><tool_call>{"tool":"b"}</tool_call>`

	result := p.Parse(buf)
	if len(result.ToolCalls) != 2 {
		t.Fatalf("len(ToolCalls) = %d, want 2", len(result.ToolCalls))
	}
	first, second := result.ToolCalls[0], result.ToolCalls[1]
	if first.SourceSpan.End > second.SourceSpan.Start {
		t.Errorf("spans overlap: first.End=%d second.Start=%d", first.SourceSpan.End, second.SourceSpan.Start)
	}
	if buf[first.SourceSpan.Start:first.SourceSpan.End] != `<tool_call>{"tool":"a"}</tool_call>` {
		t.Errorf("first span does not bound its own sentinel text")
	}
}

func TestParseRepairsTrailingCommaAndSingleQuotes(t *testing.T) {
	p := New(nil, false)
	buf := `<tool_call>{'tool': 'pdf-fill', 'parameters': {'path': 'a.pdf',},}</tool_call>`

	result := p.Parse(buf)
	if len(result.ToolCalls) != 1 {
		t.Fatalf("len(ToolCalls) = %d, want 1 (expected repair to recover it), err=%q", len(result.ToolCalls), result.Error)
	}
	if result.ToolCalls[0].Tool != "pdf-fill" {
		t.Errorf("Tool = %q, want pdf-fill", result.ToolCalls[0].Tool)
	}
}

func TestParseStrictRejectsMalformedPayload(t *testing.T) {
	p := New(nil, true)
	buf := `<tool_call>{'tool': 'pdf-fill'}</tool_call>`

	result := p.Parse(buf)
	if len(result.ToolCalls) != 0 {
		t.Fatalf("strict parser recovered %d calls from single-quoted JSON, want 0", len(result.ToolCalls))
	}
}

func TestParseMissingToolField(t *testing.T) {
	p := New(nil, false)
	buf := `<tool_call>{"parameters":{}}</tool_call>`

	result := p.Parse(buf)
	if len(result.ToolCalls) != 0 {
		t.Fatalf("len(ToolCalls) = %d, want 0 for payload missing tool field", len(result.ToolCalls))
	}
}

func TestParseUnterminatedCallReportsFallback(t *testing.T) {
	p := New(nil, false)
	buf := `preamble <tool_call>{"tool":"pdf-fill"`

	result := p.Parse(buf)
	if result.Fallback != "plain-text" {
		t.Errorf("Fallback = %q, want plain-text", result.Fallback)
	}
	if !result.Success || result.Error != "" {
		t.Errorf("Success = %v, Error = %q, want success with no error for a call still arriving", result.Success, result.Error)
	}
	if len(result.ToolCalls) != 0 {
		t.Errorf("len(ToolCalls) = %d, want 0", len(result.ToolCalls))
	}
}

func TestParseDefaultsParametersToEmptyObject(t *testing.T) {
	p := New(nil, false)
	buf := `<tool_call>{"tool":"noop"}</tool_call>`

	result := p.Parse(buf)
	if len(result.ToolCalls) != 1 {
		t.Fatalf("len(ToolCalls) = %d, want 1", len(result.ToolCalls))
	}
	if string(result.ToolCalls[0].Parameters) != "{}" {
		t.Errorf("Parameters = %s, want {}", result.ToolCalls[0].Parameters)
	}
}

func TestParseNoCallsIsPlainTextFallback(t *testing.T) {
	p := New(nil, false)
	result := p.Parse("just chatting, no tools here")
	if !result.Success {
		t.Errorf("Success = false, want true")
	}
	if result.Fallback != "plain-text" {
		t.Errorf("Fallback = %q, want plain-text", result.Fallback)
	}
	if result.ToolCalls != nil {
		t.Errorf("ToolCalls = %v, want nil", result.ToolCalls)
	}
}
