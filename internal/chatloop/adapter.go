// Package chatloop adapts a streamed assistant transcript into resolved,
// authorized, executed skill calls. It owns no skill logic, no cache, and no
// security policy of its own — every decision is delegated to the skills
// index/loader and the execution manager.
package chatloop

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/haasonsaas/skillrt/internal/execmgr"
	"github.com/haasonsaas/skillrt/internal/skillerr"
	"github.com/haasonsaas/skillrt/internal/skills"
	"github.com/haasonsaas/skillrt/internal/toolparse"
	"github.com/haasonsaas/skillrt/pkg/models"
)

// Decision is an authorization callback's verdict for one proposed call.
type Decision struct {
	Allow  bool
	Reason string
}

// Authorizer is the opaque, caller-supplied authorization predicate the spec
// requires the adapter to apply without interpreting further.
type Authorizer func(ctx context.Context, skillName string, parameters json.RawMessage, execCtx models.ExecutionContext) Decision

// ToolResultTurn is what the adapter injects back into the conversation once
// a tool call resolves, whether it succeeded, was denied, or failed.
type ToolResultTurn struct {
	ToolCallID string
	ToolName   string
	Response   *models.ExecutionResponse
}

// Adapter drives one conversation's tool-call lifecycle over a streamed
// text-chunk channel.
type Adapter struct {
	log        *slog.Logger
	parser     *toolparse.Parser
	index      *skills.SkillIndex
	manager    *execmgr.Manager
	authorize  Authorizer
	execCtx    models.ExecutionContext
}

// New constructs an Adapter. authorize may be nil, in which case every call
// is allowed.
func New(log *slog.Logger, parser *toolparse.Parser, index *skills.SkillIndex, manager *execmgr.Manager, authorize Authorizer, execCtx models.ExecutionContext) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	if authorize == nil {
		authorize = func(context.Context, string, json.RawMessage, models.ExecutionContext) Decision {
			return Decision{Allow: true}
		}
	}
	return &Adapter{log: log, parser: parser, index: index, manager: manager, authorize: authorize, execCtx: execCtx}
}

// Run consumes chunks from the stream until it closes (the transport's
// onEnd signal), accumulating a rolling buffer, parsing tool calls out of it
// as they complete, and emitting one ToolResultTurn per resolved call onto
// results. Run returns when chunks closes or ctx is cancelled.
func (a *Adapter) Run(ctx context.Context, chunks <-chan string, results chan<- ToolResultTurn) {
	defer close(results)

	var buf string
	var consumed int

	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-chunks:
			if !ok {
				return
			}
			buf += chunk
			base := consumed
			parsed := a.parser.Parse(buf[base:])
			for _, call := range parsed.ToolCalls {
				turn := a.resolveAndExecute(ctx, call)
				select {
				case results <- turn:
				case <-ctx.Done():
					return
				}
				if base+call.SourceSpan.End > consumed {
					consumed = base + call.SourceSpan.End
				}
			}
		}
	}
}

func (a *Adapter) resolveAndExecute(ctx context.Context, call models.ToolCall) ToolResultTurn {
	if _, ok := a.index.Get(call.Tool); !ok {
		return ToolResultTurn{
			ToolCallID: call.ID,
			ToolName:   call.Tool,
			Response: &models.ExecutionResponse{
				Success: false,
				Error:   &models.ExecutionError{Code: string(skillerr.SkillNotFound), Message: "skill not found"},
			},
		}
	}

	decision := a.authorize(ctx, call.Tool, call.Parameters, a.execCtx)
	if !decision.Allow {
		reason := decision.Reason
		if reason == "" {
			reason = "denied by policy"
		}
		return ToolResultTurn{
			ToolCallID: call.ID,
			ToolName:   call.Tool,
			Response:   deniedResponse(reason),
		}
	}

	resp, err := a.manager.Execute(ctx, models.ExecutionRequest{
		SkillName:  call.Tool,
		Parameters: call.Parameters,
		Context:    a.execCtx,
	})
	if err != nil {
		return ToolResultTurn{ToolCallID: call.ID, ToolName: call.Tool, Response: deniedResponse(err.Error())}
	}
	return ToolResultTurn{ToolCallID: call.ID, ToolName: call.Tool, Response: resp}
}

func deniedResponse(reason string) *models.ExecutionResponse {
	return &models.ExecutionResponse{
		Success: false,
		Error:   &models.ExecutionError{Code: "permission_denied", Message: reason},
	}
}
