package variables

import (
	"context"
	"testing"
)

type staticProvider struct {
	ns       string
	priority int
	value    string
	claims   bool
	calls    *int
}

func (p staticProvider) Namespace() string { return p.ns }
func (p staticProvider) Priority() int     { return p.priority }
func (p staticProvider) Expand(ctx context.Context, placeholder string, args []string, vctx Context) (string, bool) {
	if p.calls != nil {
		*p.calls++
	}
	return p.value, p.claims
}

func TestExpandSubstitutesRegisteredNamespace(t *testing.T) {
	e := New(nil)
	e.Register(staticProvider{ns: "env", priority: 0, value: "production", claims: true})

	got := e.Expand(context.Background(), "deploying to {{env:stage}}", Context{SessionID: "s1"})
	want := "deploying to production"
	if got != want {
		t.Errorf("Expand() = %q, want %q", got, want)
	}
}

func TestExpandLeavesUnknownNamespaceVerbatim(t *testing.T) {
	e := New(nil)
	got := e.Expand(context.Background(), "value is {{unknown:x}}", Context{})
	if got != "value is {{unknown:x}}" {
		t.Errorf("Expand() = %q, want placeholder left verbatim", got)
	}
}

func TestExpandFallsThroughToNextProviderByPriority(t *testing.T) {
	e := New(nil)
	firstCalls := 0
	e.Register(staticProvider{ns: "user", priority: 10, value: "low-priority", claims: true})
	e.Register(staticProvider{ns: "user", priority: 0, value: "high-priority", claims: false, calls: &firstCalls})

	got := e.Expand(context.Background(), "{{user:name}}", Context{})
	if got != "low-priority" {
		t.Errorf("Expand() = %q, want fall-through to the priority-10 provider after priority 0 declines", got)
	}
	if firstCalls != 1 {
		t.Errorf("priority-0 provider called %d times, want 1 (tried first)", firstCalls)
	}
}

func TestExpandCachesByPlaceholderAndFingerprint(t *testing.T) {
	e := New(nil)
	calls := 0
	e.Register(staticProvider{ns: "rand", priority: 0, value: "cached-value", claims: true, calls: &calls})

	vctx := Context{SessionID: "s1", Data: map[string]any{"k": "v"}}
	e.Expand(context.Background(), "{{rand:x}}", vctx)
	e.Expand(context.Background(), "{{rand:x}}", vctx)

	if calls != 1 {
		t.Errorf("provider called %d times, want 1 (second call should hit cache)", calls)
	}
}

func TestExpandDifferentFingerprintBypassesCache(t *testing.T) {
	e := New(nil)
	calls := 0
	e.Register(staticProvider{ns: "rand", priority: 0, value: "v", claims: true, calls: &calls})

	e.Expand(context.Background(), "{{rand:x}}", Context{SessionID: "s1"})
	e.Expand(context.Background(), "{{rand:x}}", Context{SessionID: "s2"})

	if calls != 2 {
		t.Errorf("provider called %d times, want 2 (different session fingerprints)", calls)
	}
}

func TestExpandRespectsCancelledContext(t *testing.T) {
	e := New(nil)
	e.Register(staticProvider{ns: "env", priority: 0, value: "x", claims: true})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := e.Expand(ctx, "a {{env:x}} b", Context{})
	if got != "a {{env:x}} b" {
		t.Errorf("Expand() with cancelled context = %q, want placeholders left verbatim", got)
	}
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"", nil},
		{":a", []string{"a"}},
		{":a:b:c", []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		got := splitArgs(tt.raw)
		if len(got) != len(tt.want) {
			t.Errorf("splitArgs(%q) = %v, want %v", tt.raw, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("splitArgs(%q)[%d] = %q, want %q", tt.raw, i, got[i], tt.want[i])
			}
		}
	}
}

func TestValueCoercionHelpers(t *testing.T) {
	if toString(nil) != "" {
		t.Errorf("toString(nil) != \"\"")
	}
	if toInt("42", 0) != 42 {
		t.Errorf("toInt(\"42\", 0) != 42")
	}
	if toInt("not-a-number", 7) != 7 {
		t.Errorf("toInt fallback not applied")
	}
	if !toBool("true") || toBool("false") || toBool("") {
		t.Errorf("toBool string coercion incorrect")
	}
	if defaultValue("fallback", "") != "fallback" {
		t.Errorf("defaultValue did not apply fallback for empty value")
	}
	if defaultValue("fallback", "set") != "set" {
		t.Errorf("defaultValue overrode a non-empty value")
	}
}
