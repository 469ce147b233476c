// Package execmgr implements the execution pipeline that resolves a skill,
// narrows its security policy, dispatches it to a sandbox backend, and
// normalizes the result, deduplicating concurrent identical requests.
package execmgr

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/haasonsaas/skillrt/internal/cache"
	"github.com/haasonsaas/skillrt/internal/sandbox"
	"github.com/haasonsaas/skillrt/internal/skillerr"
	"github.com/haasonsaas/skillrt/internal/skills"
	"github.com/haasonsaas/skillrt/internal/stats"
	"github.com/haasonsaas/skillrt/internal/usage"
	"github.com/haasonsaas/skillrt/pkg/models"
)

// DefaultConcurrency is the default number of executions allowed in flight.
const DefaultConcurrency = 16

// DefaultQueueDepth is the default number of executions allowed to wait for
// a free concurrency slot before a caller gets queue_full.
const DefaultQueueDepth = 64

// EventSink receives lifecycle events as an execution progresses.
type EventSink func(models.ToolEvent)

// Manager (C13) is the single entry point for running a skill.
type Manager struct {
	log     *slog.Logger
	loader  *skills.SkillsLoader
	direct  sandbox.Backend
	docker  sandbox.Backend
	usage   *usage.Tracker
	stats   *stats.Collector
	onEvent EventSink

	sem        chan struct{}
	queued     chan struct{}
	inFlight   *cache.AsyncCache[string, *models.ExecutionResponse]
}

// New constructs a Manager with the default concurrency cap and queue depth.
func New(log *slog.Logger, loader *skills.SkillsLoader, direct, docker sandbox.Backend, tracker *usage.Tracker, collector *stats.Collector, onEvent EventSink) *Manager {
	return NewWithLimits(log, loader, direct, docker, tracker, collector, onEvent, DefaultConcurrency, DefaultQueueDepth)
}

// NewWithLimits is New with an explicit concurrency cap and queue depth,
// typically sourced from rtconfig.SandboxConfig.
func NewWithLimits(log *slog.Logger, loader *skills.SkillsLoader, direct, docker sandbox.Backend, tracker *usage.Tracker, collector *stats.Collector, onEvent EventSink, concurrency, queueDepth int) *Manager {
	if log == nil {
		log = slog.Default()
	}
	if onEvent == nil {
		onEvent = func(models.ToolEvent) {}
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if queueDepth <= 0 {
		queueDepth = DefaultQueueDepth
	}
	return &Manager{
		log:      log,
		loader:   loader,
		direct:   direct,
		docker:   docker,
		usage:    tracker,
		stats:    collector,
		onEvent:  onEvent,
		sem:      make(chan struct{}, concurrency),
		queued:   make(chan struct{}, queueDepth),
		inFlight: cache.NewAsync[string, *models.ExecutionResponse](cache.Config{MaxSize: 256, DefaultTTL: 5 * time.Second}),
	}
}

// Execute runs req's skill end-to-end: resolve, narrow permissions, emit
// lifecycle events, dispatch to the sandbox, normalize, and record.
func (m *Manager) Execute(ctx context.Context, req models.ExecutionRequest) (*models.ExecutionResponse, error) {
	fingerprint := fingerprintOf(req)

	resp, cached, err := m.inFlight.Get(fingerprint, func(string) (*models.ExecutionResponse, error) {
		return m.executeUncached(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	if cached {
		dup := *resp
		dup.Metadata.CacheHit = true
		return &dup, nil
	}
	return resp, nil
}

func fingerprintOf(req models.ExecutionRequest) string {
	h := sha256.New()
	h.Write([]byte(req.SkillName))
	h.Write(req.Parameters)
	return hex.EncodeToString(h.Sum(nil))
}

func (m *Manager) executeUncached(ctx context.Context, req models.ExecutionRequest) (*models.ExecutionResponse, error) {
	start := time.Now()

	handle, err := m.loader.LoadSkill(req.SkillName, skills.LoadSkillOptions{IncludeResources: true})
	if err != nil {
		return errorResponse(err, time.Since(start)), nil
	}
	meta := handle.Metadata

	if err := validateAgainstSchema(meta.InputSchema, req.Parameters); err != nil {
		return errorResponse(skillerr.Wrap(skillerr.InvalidParameters, err).WithSkill(req.SkillName), time.Since(start)), nil
	}

	policy := narrowPolicy(meta.Security.NormalizedSecurity(), req.PermissionsOverride)
	if req.TimeoutMs > 0 && req.TimeoutMs < policy.TimeoutMs {
		policy.TimeoutMs = req.TimeoutMs
	}

	callID := req.Context.SessionID + ":" + req.SkillName
	m.onEvent(models.ToolEvent{ToolCallID: callID, ToolName: req.SkillName, Stage: models.StageExecuting})

	if !m.acquireSlot(ctx) {
		execErr := skillerr.New(skillerr.QueueFull, "execution queue full").WithSkill(req.SkillName)
		m.onEvent(models.ToolEvent{ToolCallID: callID, ToolName: req.SkillName, Stage: models.StageError, Error: execErr.Error()})
		return errorResponse(execErr, time.Since(start)), nil
	}
	defer m.releaseSlot()

	backend := sandbox.Select(m.direct, m.docker, policy.Isolation)
	spec := sandbox.Spec{
		SkillName:         meta.Name,
		EntryAbsolutePath: joinEntry(meta.Path, meta.ResourceSpec.Entry),
		Args:              []string{string(req.Parameters)},
		Env:               policy.Environment,
		Policy:            policy,
	}

	sbResult, sbErr := backend.Execute(ctx, spec)
	duration := time.Since(start)

	resp := normalizeResult(sbResult, sbErr, duration, req.SkillName)

	m.usage.RecordExecution(meta.Name, 1.0, duration, handle.CacheHit, "sandbox", len(meta.ResourceSpec.Assets) > 0)
	m.stats.Record(meta.Name, resp.Success, duration, resp.Metadata.TokenUsage)

	if resp.Success {
		m.onEvent(models.ToolEvent{ToolCallID: callID, ToolName: req.SkillName, Stage: models.StageSuccess})
	} else {
		m.onEvent(models.ToolEvent{ToolCallID: callID, ToolName: req.SkillName, Stage: models.StageError, Error: resp.Error.Message})
	}

	return resp, nil
}

func (m *Manager) acquireSlot(ctx context.Context) bool {
	select {
	case m.queued <- struct{}{}:
	default:
		return false
	}
	defer func() { <-m.queued }()

	select {
	case m.sem <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (m *Manager) releaseSlot() { <-m.sem }

// narrowPolicy applies req's override on top of the skill's declared
// policy, only ever making it more restrictive.
func narrowPolicy(declared models.SecurityPolicy, override *models.SecurityPolicy) models.SecurityPolicy {
	if override == nil {
		return declared
	}
	out := declared
	if override.TimeoutMs > 0 && override.TimeoutMs < out.TimeoutMs {
		out.TimeoutMs = override.TimeoutMs
	}
	if override.MemoryMb > 0 && override.MemoryMb < out.MemoryMb {
		out.MemoryMb = override.MemoryMb
	}
	if override.Network == models.NetworkNone {
		out.Network = models.NetworkNone
		out.NetworkAllowlist = nil
	}
	if override.Filesystem == models.FilesystemNone {
		out.Filesystem = models.FilesystemNone
	} else if override.Filesystem == models.FilesystemReadOnly && out.Filesystem == models.FilesystemReadWrite {
		out.Filesystem = models.FilesystemReadOnly
	}
	return out
}

func joinEntry(skillPath, entry string) string {
	rel := strings.TrimPrefix(entry, "./")
	return skillPath + "/" + rel
}

// executionTimeMs reports elapsed wall time in whole milliseconds, rounding
// up to 1 so metadata.executionTime > 0 holds even for sub-millisecond
// executions.
func executionTimeMs(elapsed time.Duration) int64 {
	ms := elapsed.Milliseconds()
	if ms <= 0 {
		return 1
	}
	return ms
}

func normalizeResult(r sandbox.Result, execErr error, duration time.Duration, skillName string) *models.ExecutionResponse {
	meta := models.ExecutionMetadata{
		ExecutionTimeMs: executionTimeMs(duration),
		Timestamp:       time.Now().Unix(),
		ExecutionType:   "sandbox",
	}

	if execErr != nil {
		return &models.ExecutionResponse{
			Success:  false,
			Error:    executionErrorOf(execErr),
			Metadata: meta,
		}
	}

	if r.ExitCode != 0 {
		tail := r.Stderr
		if len(tail) > 500 {
			tail = tail[len(tail)-500:]
		}
		if tail == "" {
			tail = fmt.Sprintf("process exited with code %d", r.ExitCode)
		}
		return &models.ExecutionResponse{
			Success: false,
			Error:   &models.ExecutionError{Code: string(skillerr.RuntimeError), Message: tail},
			Metadata: meta,
		}
	}

	var decoded any
	if err := json.Unmarshal([]byte(r.Stdout), &decoded); err == nil {
		return &models.ExecutionResponse{
			Success:  true,
			Result:   &models.ExecutionResult{Status: models.StatusSuccess, Format: models.FormatObject, Data: decoded},
			Metadata: meta,
		}
	}

	return &models.ExecutionResponse{
		Success:  true,
		Result:   &models.ExecutionResult{Status: models.StatusSuccess, Format: models.FormatText, Data: r.Stdout},
		Metadata: meta,
	}
}

func executionErrorOf(err error) *models.ExecutionError {
	code := skillerr.CodeOf(err)
	return &models.ExecutionError{Code: string(code), Message: err.Error()}
}

func errorResponse(err error, elapsed time.Duration) *models.ExecutionResponse {
	return &models.ExecutionResponse{
		Success: false,
		Error:   executionErrorOf(err),
		Metadata: models.ExecutionMetadata{
			ExecutionTimeMs: executionTimeMs(elapsed),
			Timestamp:       time.Now().Unix(),
		},
	}
}
