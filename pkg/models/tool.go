// Package models holds the wire-level types shared across the skills
// runtime: tool calls recovered from model text, their execution results,
// and the lifecycle events emitted while a call is in flight.
package models

import "encoding/json"

// ToolCall is one tool invocation recovered from streamed model text by the
// protocol parser, or constructed directly by a caller that already knows
// which skill it wants to run.
type ToolCall struct {
	// ID uniquely identifies this call within a conversation turn. Generated
	// by the parser when the model text omits one.
	ID string `json:"id"`

	// Tool is the skill name the model asked to invoke.
	Tool string `json:"tool"`

	// Parameters is the raw JSON object passed to the skill.
	Parameters json.RawMessage `json:"parameters"`

	// SourceSpan marks the byte range of this call within the buffer it was
	// parsed from, so a caller can splice a result back into the stream.
	SourceSpan Span `json:"sourceSpan,omitempty"`
}

// Span is a half-open byte range [Start, End) within a text buffer.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// ResultFormat describes the shape of ExecutionResult.Data.
type ResultFormat string

const (
	FormatObject    ResultFormat = "object"
	FormatText      ResultFormat = "text"
	FormatBinary    ResultFormat = "binary"
	FormatVoid      ResultFormat = "void"
	FormatPrimitive ResultFormat = "primitive"
)

// ResultStatus is the normalized outcome of a skill execution.
type ResultStatus string

const (
	StatusSuccess ResultStatus = "success"
	StatusError   ResultStatus = "error"
)

// ExecutionResult is the normalized, successful half of an ExecutionResponse.
type ExecutionResult struct {
	Status  ResultStatus `json:"status"`
	Format  ResultFormat `json:"format,omitempty"`
	Data    any          `json:"data,omitempty"`
	Message string       `json:"message,omitempty"`
}

// ExecutionError is the normalized, failing half of an ExecutionResponse. Code
// is one of the stable error taxonomy values (see package skillerr).
type ExecutionError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

// ExecutionMetadata carries bookkeeping about one execution, independent of
// whether it succeeded.
type ExecutionMetadata struct {
	ExecutionTimeMs  int64          `json:"executionTime"`
	MemoryUsageBytes int64          `json:"memoryUsage,omitempty"`
	TokenUsage       int            `json:"tokenUsage,omitempty"`
	CacheHit         bool           `json:"cacheHit"`
	ExecutionType    string         `json:"executionType,omitempty"`
	Timestamp        int64          `json:"timestamp"`
	SecurityReport   map[string]any `json:"securityReport,omitempty"`
	ProfilerMetrics  map[string]any `json:"profilerMetrics,omitempty"`
}

// ExecutionRequest describes one request to run a skill.
type ExecutionRequest struct {
	SkillName           string            `json:"skillName"`
	Parameters          json.RawMessage   `json:"parameters"`
	Context             ExecutionContext  `json:"context,omitempty"`
	TimeoutMs           int               `json:"timeout,omitempty"`
	PermissionsOverride *SecurityPolicy   `json:"permissionsOverride,omitempty"`
}

// ExecutionContext carries caller-supplied correlation data. It is opaque to
// the runtime beyond being forwarded to providers and logs.
type ExecutionContext struct {
	SessionID      string         `json:"sessionId,omitempty"`
	UserID         string         `json:"userId,omitempty"`
	ConversationID string         `json:"conversationId,omitempty"`
	Locale         string         `json:"locale,omitempty"`
	Timezone       string         `json:"timezone,omitempty"`
	Channel        string         `json:"channel,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// ExecutionResponse is the complete, normalized outcome of one execution.
// Exactly one of Result or Error is populated.
type ExecutionResponse struct {
	Success  bool               `json:"success"`
	Result   *ExecutionResult   `json:"result,omitempty"`
	Error    *ExecutionError    `json:"error,omitempty"`
	Metadata ExecutionMetadata  `json:"metadata"`
	Warnings []string           `json:"warnings,omitempty"`
}

// NetworkPolicy is a skill's declared network access mode.
type NetworkPolicy string

const (
	NetworkNone      NetworkPolicy = "none"
	NetworkAllowlist NetworkPolicy = "allowlist"
)

// FilesystemPolicy is a skill's declared filesystem access mode.
type FilesystemPolicy string

const (
	FilesystemNone      FilesystemPolicy = "none"
	FilesystemReadOnly  FilesystemPolicy = "read-only"
	FilesystemReadWrite FilesystemPolicy = "read-write"
)

// IsolationBackend selects which SandboxExecutor backend runs a skill.
type IsolationBackend string

const (
	IsolationDirect IsolationBackend = "direct"
	IsolationDocker IsolationBackend = "docker"
)

// SecurityPolicy is a skill's sandboxing contract, declared in metadata and
// optionally narrowed (never widened) by an ExecutionRequest override.
type SecurityPolicy struct {
	TimeoutMs        int              `json:"timeoutMs"`
	MemoryMb         int              `json:"memoryMb"`
	Network          NetworkPolicy    `json:"network"`
	NetworkAllowlist []string         `json:"networkAllowlist,omitempty"`
	Filesystem       FilesystemPolicy `json:"filesystem"`
	Environment      []string         `json:"environment,omitempty"`
	Isolation        IsolationBackend `json:"isolation,omitempty"`
}

// ToolEventStage marks a point in a tool call's lifecycle.
type ToolEventStage string

const (
	StageExecuting ToolEventStage = "executing"
	StageSuccess   ToolEventStage = "success"
	StageError     ToolEventStage = "error"
)

// ToolEvent is emitted by the execution manager as a call progresses.
type ToolEvent struct {
	ToolCallID string         `json:"toolCallId"`
	ToolName   string         `json:"toolName"`
	Stage      ToolEventStage `json:"stage"`
	Error      string         `json:"error,omitempty"`
}
