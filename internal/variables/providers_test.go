package variables

import (
	"context"
	"testing"
)

func TestAgentProviderResolvesViaLookup(t *testing.T) {
	e := New(nil)
	RegisterDynamicProviders(e, func(id string) (string, bool) {
		if id == "concierge" {
			return "Concierge Agent", true
		}
		return "", false
	}, nil)

	got := e.Expand(context.Background(), "{{agent:concierge}}", Context{})
	if got != "Concierge Agent" {
		t.Errorf("Expand() = %q, want %q", got, "Concierge Agent")
	}
}

func TestAsyncProviderMissingLookupLeavesPlaceholder(t *testing.T) {
	e := New(nil)
	RegisterDynamicProviders(e, nil, nil)

	got := e.Expand(context.Background(), "{{async:job-1}}", Context{})
	if got != "{{async:job-1}}" {
		t.Errorf("Expand() = %q, want placeholder left verbatim when no lookup is wired", got)
	}
}

func TestDiaryProviderResolvesViaLookup(t *testing.T) {
	e := New(nil)
	RegisterRetrievalProviders(e, func(id string) (string, bool) {
		if id == "2026-07-29" {
			return "met with the ops team", true
		}
		return "", false
	}, nil)

	got := e.Expand(context.Background(), "yesterday: {{diary:2026-07-29}}", Context{})
	want := "yesterday: met with the ops team"
	if got != want {
		t.Errorf("Expand() = %q, want %q", got, want)
	}
}

func TestRAGProviderDefaultsToBasicModeWhenOmitted(t *testing.T) {
	e := New(nil)
	var gotStore, gotQuery, gotMode string
	RegisterRetrievalProviders(e, nil, func(store, query, mode string) (string, bool) {
		gotStore, gotQuery, gotMode = store, query, mode
		return "result", true
	})

	got := e.Expand(context.Background(), "{{rag:kb:refund policy}}", Context{})
	if got != "result" {
		t.Errorf("Expand() = %q, want %q", got, "result")
	}
	if gotStore != "kb" || gotQuery != "refund policy" || gotMode != "basic" {
		t.Errorf("lookup called with (%q, %q, %q), want (kb, refund policy, basic)", gotStore, gotQuery, gotMode)
	}
}

func TestRAGProviderRespectsExplicitMode(t *testing.T) {
	e := New(nil)
	var gotMode string
	RegisterRetrievalProviders(e, nil, func(store, query, mode string) (string, bool) {
		gotMode = mode
		return "ranked result", true
	})

	e.Expand(context.Background(), "{{rag:kb:refund policy:reranked}}", Context{})
	if gotMode != "reranked" {
		t.Errorf("mode = %q, want reranked", gotMode)
	}
}

func TestRAGProviderMissingQueryLeavesPlaceholder(t *testing.T) {
	e := New(nil)
	RegisterRetrievalProviders(e, nil, func(store, query, mode string) (string, bool) {
		return "unreachable", true
	})

	got := e.Expand(context.Background(), "{{rag:kb}}", Context{})
	if got != "{{rag:kb}}" {
		t.Errorf("Expand() = %q, want placeholder left verbatim when query arg missing", got)
	}
}
