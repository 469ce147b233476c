package variables

import (
	"context"
	"os"
	"time"
)

// systemProvider implements layer 1 (priority 10-30): time, date, datetime.
type systemProvider struct {
	namespace string
	priority  int
	layout    string
}

func (p systemProvider) Namespace() string { return p.namespace }
func (p systemProvider) Priority() int     { return p.priority }

func (p systemProvider) Expand(_ context.Context, _ string, _ []string, _ Context) (string, bool) {
	return time.Now().UTC().Format(p.layout), true
}

// RegisterSystemProviders wires the time/date/datetime layer.
func RegisterSystemProviders(e *Engine) {
	e.Register(systemProvider{namespace: "time", priority: 10, layout: "15:04:05"})
	e.Register(systemProvider{namespace: "date", priority: 20, layout: "2006-01-02"})
	e.Register(systemProvider{namespace: "datetime", priority: 30, layout: time.RFC3339})
}

// envProvider implements the `env:name` placeholder (layer 2).
type envProvider struct{}

func (envProvider) Namespace() string { return "env" }
func (envProvider) Priority() int     { return 40 }

func (envProvider) Expand(_ context.Context, _ string, args []string, _ Context) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	v, ok := os.LookupEnv(args[0])
	return v, ok
}

// scopedVarProvider implements `var:...` / `tag:...` against Context.Data
// (layer 2).
type scopedVarProvider struct {
	namespace string
	priority  int
}

func (p scopedVarProvider) Namespace() string { return p.namespace }
func (p scopedVarProvider) Priority() int     { return p.priority }

func (p scopedVarProvider) Expand(_ context.Context, _ string, args []string, vctx Context) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	v, ok := vctx.Data[args[0]]
	if !ok {
		return "", false
	}
	return toString(v), true
}

// RegisterConfigProviders wires the env/var/tag layer.
func RegisterConfigProviders(e *Engine) {
	e.Register(envProvider{})
	e.Register(scopedVarProvider{namespace: "var", priority: 50})
	e.Register(scopedVarProvider{namespace: "tag", priority: 60})
}

// AgentLookup resolves an agent/persona id to a display label.
type AgentLookup func(id string) (string, bool)

type agentProvider struct {
	lookup AgentLookup
}

func (agentProvider) Namespace() string { return "agent" }
func (agentProvider) Priority() int     { return 70 }

func (p agentProvider) Expand(_ context.Context, _ string, args []string, _ Context) (string, bool) {
	if len(args) == 0 || p.lookup == nil {
		return "", false
	}
	return p.lookup(args[0])
}

// DiaryLookup resolves a diary entry id to its recorded text.
type DiaryLookup func(id string) (string, bool)

type diaryProvider struct {
	lookup DiaryLookup
}

func (diaryProvider) Namespace() string { return "diary" }
func (diaryProvider) Priority() int     { return 75 }

func (p diaryProvider) Expand(_ context.Context, _ string, args []string, _ Context) (string, bool) {
	if len(args) == 0 || p.lookup == nil {
		return "", false
	}
	return p.lookup(args[0])
}

// RAGLookup resolves a `rag:store:query:mode` placeholder against a
// retrieval-augmented store. mode is one of "basic", "grouped", or
// "reranked"; callers decide what each mode means for their store.
type RAGLookup func(store, query, mode string) (string, bool)

type ragProvider struct {
	lookup RAGLookup
}

func (ragProvider) Namespace() string { return "rag" }
func (ragProvider) Priority() int     { return 85 }

func (p ragProvider) Expand(_ context.Context, _ string, args []string, _ Context) (string, bool) {
	if len(args) < 2 || p.lookup == nil {
		return "", false
	}
	mode := "basic"
	if len(args) >= 3 && args[2] != "" {
		mode = args[2]
	}
	return p.lookup(args[0], args[1], mode)
}

// RegisterRetrievalProviders wires the diary/rag layer (layer 3).
func RegisterRetrievalProviders(e *Engine, diary DiaryLookup, rag RAGLookup) {
	e.Register(diaryProvider{lookup: diary})
	e.Register(ragProvider{lookup: rag})
}

// AsyncResultLookup resolves a previously-dispatched async result by id.
type AsyncResultLookup func(id string) (string, bool)

type asyncProvider struct {
	lookup AsyncResultLookup
}

func (asyncProvider) Namespace() string { return "async" }
func (asyncProvider) Priority() int     { return 95 }

func (p asyncProvider) Expand(_ context.Context, _ string, args []string, _ Context) (string, bool) {
	if len(args) == 0 || p.lookup == nil {
		return "", false
	}
	return p.lookup(args[0])
}

// RegisterDynamicProviders wires the agent/async layer (layer 3, excluding
// the tool-catalog placeholder, which is registered separately by whatever
// owns a ToolDescriptionGenerator via RegisterToolCatalogProvider).
func RegisterDynamicProviders(e *Engine, agents AgentLookup, asyncResults AsyncResultLookup) {
	e.Register(agentProvider{lookup: agents})
	e.Register(asyncProvider{lookup: asyncResults})
}

// ToolCatalogRenderer renders the tool catalog for the `tools:all`
// placeholder, delegated to the ToolDescriptionGenerator (C12).
type ToolCatalogRenderer func(ctx context.Context) (string, error)

type toolCatalogProvider struct {
	render ToolCatalogRenderer
}

func (toolCatalogProvider) Namespace() string { return "tools" }
func (toolCatalogProvider) Priority() int     { return 80 }

func (p toolCatalogProvider) Expand(ctx context.Context, _ string, _ []string, _ Context) (string, bool) {
	if p.render == nil {
		return "", false
	}
	rendered, err := p.render(ctx)
	if err != nil {
		return "", false
	}
	return rendered, true
}

// RegisterToolCatalogProvider wires `tools:all` to C12.
func RegisterToolCatalogProvider(e *Engine, render ToolCatalogRenderer) {
	e.Register(toolCatalogProvider{render: render})
}
