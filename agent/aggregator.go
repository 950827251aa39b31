package agent

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/aschepis/backscratcher/scribe/llm"
	"github.com/aschepis/backscratcher/scribe/llm/wire"
	"github.com/aschepis/backscratcher/scribe/stream"
	"github.com/rs/zerolog"
)

// StreamClient is an llm.Client whose streams carry a known wire format.
type StreamClient interface {
	llm.Client
	Format() wire.Format
}

// MessagePersister saves the messages of a request cycle to durable session
// history: the user prompt, each tool call and its result, and the final
// assistant text. A nil persister disables persistence; persistence failures
// are logged and never fail the request.
type MessagePersister interface {
	AppendUserMessage(ctx context.Context, sessionID, content string) error
	AppendAssistantMessage(ctx context.Context, sessionID, content string) error
	AppendToolCall(ctx context.Context, sessionID, toolID, toolName string, toolInput any) error
	AppendToolResult(ctx context.Context, sessionID, toolID, toolName string, result any, isError bool) error
}

// Config holds the per-aggregator request parameters.
type Config struct {
	System      string
	Tools       []llm.ToolSpec
	GatedTools  []string
	MaxRounds   int // tool-call rounds per request; 0 means DefaultMaxRounds
	MaxTokens   int64
	Temperature *float64
}

// Response is the terminal outcome of one request cycle.
type Response struct {
	Text      string
	Citations []string
	Aborted   bool
}

// Aggregator is the top-level facade for one request/response cycle: it runs
// the streaming session, then the bounded tool-call loop, and returns the
// final text with its citation set. All collaborators (sink, executor, gate,
// persister) are passed in explicitly; the aggregator holds no global state.
type Aggregator struct {
	client    StreamClient
	sink      stream.Sink
	token     *stream.CancellationToken
	executor  ToolExecutor
	gate      ApprovalGate
	persister MessagePersister // optional
	rateLimit *RateLimitHandler
	cfg       Config
	logger    zerolog.Logger
}

// NewAggregator wires an aggregator from its collaborators. persister may be
// nil, in which case the exchange is not saved to session history.
func NewAggregator(
	client StreamClient,
	sink stream.Sink,
	token *stream.CancellationToken,
	executor ToolExecutor,
	gate ApprovalGate,
	persister MessagePersister,
	cfg Config,
	logger zerolog.Logger,
) *Aggregator {
	return &Aggregator{
		client:    client,
		sink:      sink,
		token:     token,
		executor:  executor,
		gate:      gate,
		persister: persister,
		rateLimit: NewRateLimitHandler(logger),
		cfg:       cfg,
		logger:    logger.With().Str("component", "aggregator").Logger(),
	}
}

// Respond runs one full request cycle for the given prompt and prior
// conversation, persisting the exchange to sessionID's history. Transport
// failures come back as error values so the caller can render them inline;
// abort comes back as a Response with Aborted set and empty text after full
// sink rollback.
func (a *Aggregator) Respond(ctx context.Context, sessionID, prompt string, history []llm.Message) (*Response, error) {
	maxRounds := a.cfg.MaxRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}

	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, llm.NewTextMessage(llm.RoleUser, prompt))

	if a.persister != nil {
		if err := a.persister.AppendUserMessage(ctx, sessionID, prompt); err != nil {
			a.logger.Warn().Err(err).Msg("failed to persist user message")
		}
	}

	orch := NewOrchestrator(a.executor, a.gate, a.cfg.GatedTools, a.logger)

	var text strings.Builder
	var citations []string
	citationSeen := make(map[string]bool)

	for round := 0; ; round++ {
		// Round boundary abort check. Mid-stream aborts are the session's
		// job; this catches a cancel that lands between rounds.
		if a.token.Aborted() {
			a.token.Reset()
			return &Response{Aborted: true}, nil
		}

		req := &llm.Request{
			Messages:    messages,
			System:      a.cfg.System,
			Tools:       a.cfg.Tools,
			MaxTokens:   a.cfg.MaxTokens,
			Temperature: a.cfg.Temperature,
		}

		a.logger.Debug().
			Int("round", round).
			Int("messages", len(messages)).
			Int("tools", len(req.Tools)).
			Msg("invoking model")

		providerStream, err := a.rateLimit.OpenStream(ctx, a.client, req)
		if err != nil {
			return nil, err
		}

		session := stream.NewSession(a.client.Format(), a.sink, a.token, a.logger)
		result, err := session.Consume(providerStream)
		if err != nil {
			return nil, err
		}
		if result.Aborted {
			return &Response{Aborted: true}, nil
		}

		text.WriteString(result.Turn.Text)
		for _, c := range result.Citations {
			if !citationSeen[c] {
				citationSeen[c] = true
				citations = append(citations, c)
			}
		}

		if !result.Turn.HasToolCalls() {
			break
		}
		if round >= maxRounds {
			// Hard termination: the round limit is the liveness guarantee.
			// The text generated so far is the answer; no further tool calls
			// are issued.
			a.logger.Warn().
				Int("max_rounds", maxRounds).
				Int("pending_calls", len(result.Turn.ToolCalls)).
				Msg("tool round limit reached; returning current text")
			break
		}

		a.persistToolCalls(ctx, sessionID, result.Turn.ToolCalls)
		results, err := orch.ExecuteRound(ctx, result.Turn.ToolCalls)
		if err != nil {
			return nil, err
		}
		a.persistToolResults(ctx, sessionID, result.Turn.ToolCalls, results)
		messages = append(messages,
			buildAssistantTurnMessage(result.Turn),
			buildToolResultMessage(results),
		)
	}

	final := text.String()
	if a.persister != nil && final != "" {
		if err := a.persister.AppendAssistantMessage(ctx, sessionID, final); err != nil {
			a.logger.Warn().Err(err).Msg("failed to persist assistant message")
		}
	}

	return &Response{
		Text:      final,
		Citations: citations,
	}, nil
}

// persistToolCalls saves the tool calls of one turn before they execute, so
// a crash mid-round still leaves the call on record.
func (a *Aggregator) persistToolCalls(ctx context.Context, sessionID string, calls []llm.ToolUseBlock) {
	if a.persister == nil {
		return
	}
	for i := range calls {
		call := &calls[i]
		if err := a.persister.AppendToolCall(ctx, sessionID, call.ID, call.Name, call.Input); err != nil {
			a.logger.Warn().Err(err).Str("tool", call.Name).Msg("failed to persist tool call")
		}
	}
}

// persistToolResults saves the results of one executed round. Result
// payloads are already JSON; they are stored verbatim.
func (a *Aggregator) persistToolResults(ctx context.Context, sessionID string, calls []llm.ToolUseBlock, results []llm.ToolResultBlock) {
	if a.persister == nil {
		return
	}
	names := make(map[string]string, len(calls))
	for i := range calls {
		names[calls[i].ID] = calls[i].Name
	}
	for i := range results {
		r := &results[i]
		if err := a.persister.AppendToolResult(ctx, sessionID, r.ID, names[r.ID], json.RawMessage(r.Content), r.IsError); err != nil {
			a.logger.Warn().Err(err).Str("tool", names[r.ID]).Msg("failed to persist tool result")
		}
	}
}
