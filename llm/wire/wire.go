// Package wire decodes raw provider wire lines into provider-neutral deltas.
//
// Each supported provider family has one decode function that converts a
// single raw line (one SSE field line, or one NDJSON object) into zero or one
// llm.Delta. Decoding never fails: empty lines, SSE comments, event-type
// lines, sentinel lines, and malformed JSON all decode to nil and the stream
// continues. Format selection is a plain dispatch table, not an interface
// hierarchy.
package wire

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aschepis/backscratcher/scribe/llm"
	"github.com/rs/zerolog"
)

// Format identifies a provider wire format family.
type Format string

const (
	// FormatOpenAI covers every OpenAI-compatible SSE endpoint: OpenAI,
	// OpenRouter, LM Studio.
	FormatOpenAI    Format = "openai"
	FormatAnthropic Format = "anthropic"
	FormatGemini    Format = "gemini"
	FormatOllama    Format = "ollama"
)

// Truncation markers surfaced inline when a provider reports
// finish_reason "length". Truncation is a warning, not an error.
const (
	// TruncationMarker replaces content when every choice was truncated.
	TruncationMarker = "\n\n[output truncated: token limit reached]"
	// PartialTruncationMarker is appended to the completed choice's content
	// when some, but not all, choices were truncated.
	PartialTruncationMarker = " [truncated]"
)

// FormatFor maps a provider name from the registry to its wire format.
// Unknown providers map to the empty Format, which Decode treats as unknown.
func FormatFor(provider string) Format {
	switch provider {
	case llm.ProviderOpenAI, llm.ProviderOpenRouter, llm.ProviderLMStudio:
		return FormatOpenAI
	case llm.ProviderAnthropic:
		return FormatAnthropic
	case llm.ProviderGemini:
		return FormatGemini
	case llm.ProviderOllama:
		return FormatOllama
	default:
		return Format("")
	}
}

// decodeFunc converts one raw line into zero-or-one delta, updating the
// session-scoped scratch state (citations, tool call accumulation, stream
// termination) as a side effect.
type decodeFunc func(line string, s *Scratch) *llm.Delta

var decoders = map[Format]decodeFunc{
	FormatOpenAI:    decodeOpenAI,
	FormatAnthropic: decodeAnthropic,
	FormatGemini:    decodeGemini,
	FormatOllama:    decodeOllama,
}

// Decoder turns raw wire lines of one format into deltas for one session.
// It owns the session-scoped scratch state and must not be shared between
// sessions.
type Decoder struct {
	format  Format
	scratch *Scratch
	logger  zerolog.Logger
	warned  bool
}

// NewDecoder creates a decoder for the given format.
func NewDecoder(format Format, logger zerolog.Logger) *Decoder {
	return &Decoder{
		format:  format,
		scratch: newScratch(),
		logger:  logger.With().Str("component", "wire_decoder").Str("format", string(format)).Logger(),
	}
}

// Decode converts one raw line into a delta, or nil if the line carries no
// renderable content. Decode never returns an error; lines it cannot
// understand are dropped.
func (d *Decoder) Decode(line string) *llm.Delta {
	fn, ok := decoders[d.format]
	if !ok {
		if !d.warned {
			d.logger.Warn().Msg("unknown wire format; dropping all lines")
			d.warned = true
		}
		return nil
	}
	return fn(line, d.scratch)
}

// Done reports whether the decoder has seen the format's termination signal
// ([DONE] sentinel or done:true, depending on the format).
func (d *Decoder) Done() bool {
	return d.scratch.done
}

// StopReason returns the provider-reported stop reason, if any.
func (d *Decoder) StopReason() string {
	return d.scratch.stopReason
}

// Citations returns the citation URLs accumulated so far, deduplicated in
// first-seen order.
func (d *Decoder) Citations() []string {
	return d.scratch.Citations()
}

// ToolCalls finalizes and returns the tool calls accumulated across the
// stream. Argument fragments that do not form valid JSON yield an empty
// input map rather than an error.
func (d *Decoder) ToolCalls() []llm.ToolUseBlock {
	return d.scratch.ToolCalls()
}

// Scratch is the session-scoped mutable state a decode function may update:
// the citation set, in-flight tool call accumulation, and stream termination.
// One Scratch belongs to exactly one stream session.
type Scratch struct {
	citations    []string
	citationSeen map[string]struct{}
	tools        []*toolAccum
	current      *toolAccum
	done         bool
	stopReason   string
}

type toolAccum struct {
	id    string
	name  string
	args  strings.Builder
	input map[string]interface{} // set directly when the provider sends complete arguments
}

func newScratch() *Scratch {
	return &Scratch{
		citationSeen: make(map[string]struct{}),
	}
}

// addCitations records citation URLs, keeping first-seen order and dropping
// duplicates.
func (s *Scratch) addCitations(urls []string) {
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, ok := s.citationSeen[u]; ok {
			continue
		}
		s.citationSeen[u] = struct{}{}
		s.citations = append(s.citations, u)
	}
}

// Citations returns the accumulated citation set in first-seen order.
func (s *Scratch) Citations() []string {
	out := make([]string, len(s.citations))
	copy(out, s.citations)
	return out
}

// startTool begins accumulating a new tool call and makes it current.
func (s *Scratch) startTool(id, name string) {
	acc := &toolAccum{id: id, name: name}
	s.tools = append(s.tools, acc)
	s.current = acc
}

// appendToolArgs appends an argument JSON fragment to the current tool call.
// Fragments arriving before any tool call started are dropped.
func (s *Scratch) appendToolArgs(fragment string) {
	if s.current == nil || fragment == "" {
		return
	}
	s.current.args.WriteString(fragment)
}

// setToolInput sets complete arguments on the current tool call, for
// providers that deliver arguments whole rather than as fragments.
func (s *Scratch) setToolInput(input map[string]interface{}) {
	if s.current == nil {
		return
	}
	s.current.input = input
}

// ToolCalls finalizes accumulated tool calls. Unparseable argument JSON
// becomes an empty input map; a missing ID gets a deterministic synthetic one.
func (s *Scratch) ToolCalls() []llm.ToolUseBlock {
	out := make([]llm.ToolUseBlock, 0, len(s.tools))
	for i, acc := range s.tools {
		input := acc.input
		if input == nil {
			input = make(map[string]interface{})
			if raw := acc.args.String(); raw != "" {
				if err := json.Unmarshal([]byte(raw), &input); err != nil {
					input = make(map[string]interface{})
				}
			}
		}
		id := acc.id
		if id == "" {
			id = fmt.Sprintf("tool_%s_%d", acc.name, i)
		}
		out = append(out, llm.ToolUseBlock{
			ID:    id,
			Name:  acc.name,
			Input: input,
		})
	}
	return out
}

// dataPayload strips the SSE "data:" prefix from a line. It returns false for
// anything that is not a data line: empty lines, comments, event-type lines.
func dataPayload(line string) (string, bool) {
	if !strings.HasPrefix(line, "data:") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(line, "data:")), true
}
