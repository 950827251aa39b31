// Package agent composes streaming sessions and tool execution into one
// request/response cycle: generate, detect tool calls, execute, route
// sensitive results through human approval, inject results, regenerate.
// The loop is iterative with an explicit round counter, bounded by
// configuration.
package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aschepis/backscratcher/scribe/llm"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// DefaultMaxRounds bounds tool-call rounds per request when the caller does
// not configure a limit.
const DefaultMaxRounds = 2

// maxRepeatedFailures stops the loop when the model keeps issuing the same
// failing tool call with identical input.
const maxRepeatedFailures = 3

// ToolExecutor runs one tool call. A returned error is not fatal: the
// orchestrator converts it into an error payload the model can read.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, input []byte) (any, error)
}

// ApprovalGate is the human-in-the-loop checkpoint for tools that can leak
// private content. Review may suspend indefinitely waiting for input; it
// returns the approved subset of candidates. An empty subset is a valid
// outcome, not an error.
type ApprovalGate interface {
	Review(ctx context.Context, query string, candidates []any) ([]any, error)
}

// toolCallKey identifies a tool call by name and exact input, for repeated
// failure tracking.
type toolCallKey struct {
	toolName string
	input    string
}

// Orchestrator executes the tool calls of one model turn and formats their
// results. It lives for one request so repeated-failure counts carry across
// rounds.
type Orchestrator struct {
	executor         ToolExecutor
	gate             ApprovalGate
	gated            map[string]bool
	repeatedFailures map[toolCallKey]int
	logger           zerolog.Logger
}

// NewOrchestrator creates an orchestrator. gatedTools names the tools whose
// array results must pass the approval gate before the model sees them.
func NewOrchestrator(executor ToolExecutor, gate ApprovalGate, gatedTools []string, logger zerolog.Logger) *Orchestrator {
	gated := make(map[string]bool, len(gatedTools))
	for _, name := range gatedTools {
		gated[name] = true
	}
	return &Orchestrator{
		executor:         executor,
		gate:             gate,
		gated:            gated,
		repeatedFailures: make(map[toolCallKey]int),
		logger:           logger.With().Str("component", "orchestrator").Logger(),
	}
}

// ExecuteRound runs every tool call of one turn in order and returns the
// results as blocks for a single synthetic tool-results message. The only
// error is the repeated-failure hard stop; ordinary tool errors become error
// payloads in the results.
func (o *Orchestrator) ExecuteRound(ctx context.Context, calls []llm.ToolUseBlock) ([]llm.ToolResultBlock, error) {
	results := make([]llm.ToolResultBlock, 0, len(calls))
	for i := range calls {
		block, err := o.executeCall(ctx, &calls[i])
		if err != nil {
			return nil, err
		}
		results = append(results, block)
	}
	return results, nil
}

// executeCall runs one tool call, applying the approval gate to gated array
// results.
func (o *Orchestrator) executeCall(ctx context.Context, call *llm.ToolUseBlock) (llm.ToolResultBlock, error) {
	raw, err := json.Marshal(call.Input)
	if err != nil {
		o.logger.Warn().Err(err).Str("tool", call.Name).Msg("failed to marshal tool input")
		raw = []byte("{}")
	}

	o.logger.Debug().Str("tool", call.Name).RawJSON("input", raw).Msg("executing tool call")

	result, callErr := o.executor.Execute(ctx, call.Name, raw)
	key := toolCallKey{toolName: call.Name, input: string(raw)}

	if callErr != nil {
		o.repeatedFailures[key]++
		if o.repeatedFailures[key] >= maxRepeatedFailures {
			o.logger.Warn().
				Str("tool", call.Name).
				Int("failures", o.repeatedFailures[key]).
				Msg("tool repeatedly failed with identical input; stopping loop")
			return llm.ToolResultBlock{}, fmt.Errorf("tool %q repeatedly failed with same input after %d attempts: %w",
				call.Name, maxRepeatedFailures, callErr)
		}
		// The model gets the failure as data and may correct its call.
		result = map[string]any{"error": callErr.Error()}
	} else {
		delete(o.repeatedFailures, key)
		result = o.reviewIfGated(ctx, call, result)
	}

	payload, err := json.Marshal(result)
	if err != nil {
		payload = []byte(fmt.Sprintf(`{"error":%q}`, "unserializable tool result: "+err.Error()))
	}

	return llm.ToolResultBlock{
		ID:      call.ID,
		Content: string(payload),
		IsError: callErr != nil,
	}, nil
}

// reviewIfGated routes a gated tool's array result through the approval gate
// and replaces the payload with the approved subset. Non-gated tools and
// non-array results pass through untouched. Approving zero items is valid:
// the model simply receives an empty result set.
func (o *Orchestrator) reviewIfGated(ctx context.Context, call *llm.ToolUseBlock, result any) any {
	if !o.gated[call.Name] || o.gate == nil {
		return result
	}
	candidates, ok := result.([]any)
	if !ok {
		return result
	}

	query, _ := call.Input["query"].(string)
	approved, err := o.gate.Review(ctx, query, candidates)
	if err != nil {
		o.logger.Warn().Err(err).Str("tool", call.Name).Msg("approval review failed; withholding all candidates")
		return []any{}
	}
	if approved == nil {
		approved = []any{}
	}
	o.logger.Debug().
		Str("tool", call.Name).
		Int("candidates", len(candidates)).
		Int("approved", len(approved)).
		Msg("approval gate reviewed results")
	return approved
}

// buildAssistantTurnMessage reconstructs the assistant message for one turn:
// its visible text plus the tool use blocks, in that order.
func buildAssistantTurnMessage(turn *llm.ModelTurn) llm.Message {
	blocks := make([]llm.ContentBlock, 0, len(turn.ToolCalls)+1)
	if turn.Text != "" {
		blocks = append(blocks, llm.ContentBlock{
			Type: llm.ContentBlockTypeText,
			Text: turn.Text,
		})
	}
	for i := range turn.ToolCalls {
		blocks = append(blocks, llm.ContentBlock{
			Type:    llm.ContentBlockTypeToolUse,
			ToolUse: &turn.ToolCalls[i],
		})
	}
	return llm.Message{Role: llm.RoleAssistant, Content: blocks}
}

// buildToolResultMessage wraps tool results into the single synthetic user
// message injected before re-invoking the model. Results are deduplicated by
// tool use ID.
func buildToolResultMessage(results []llm.ToolResultBlock) llm.Message {
	seen := make(map[string]bool)
	blocks := lo.FilterMap(results, func(r llm.ToolResultBlock, _ int) (llm.ContentBlock, bool) {
		if seen[r.ID] {
			return llm.ContentBlock{}, false
		}
		seen[r.ID] = true
		block := r
		return llm.ContentBlock{
			Type:       llm.ContentBlockTypeToolResult,
			ToolResult: &block,
		}, true
	})
	return llm.Message{Role: llm.RoleUser, Content: blocks}
}
