package wire

import (
	"encoding/json"

	"github.com/aschepis/backscratcher/scribe/llm"
	openai "github.com/sashabaranov/go-openai"
)

// doneSentinel terminates OpenAI-compatible SSE streams.
const doneSentinel = "[DONE]"

// openAIChunk is one OpenAI-compatible stream payload. Perplexity-style
// endpoints add a top-level citations array the upstream struct doesn't
// carry, so it is grafted on here.
type openAIChunk struct {
	openai.ChatCompletionStreamResponse
	Citations []string `json:"citations,omitempty"`
}

// decodeOpenAI handles OpenAI, OpenRouter and LM Studio SSE lines.
func decodeOpenAI(line string, s *Scratch) *llm.Delta {
	data, ok := dataPayload(line)
	if !ok || data == "" {
		return nil
	}
	if data == doneSentinel {
		s.done = true
		return nil
	}

	var chunk openAIChunk
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return nil
	}

	s.addCitations(chunk.Citations)

	if len(chunk.Choices) == 0 {
		return nil
	}

	// Tool call fragments ride on the first choice. A populated ID starts a
	// new call; argument fragments accumulate onto the current one.
	for _, tc := range chunk.Choices[0].Delta.ToolCalls {
		if tc.ID != "" && (s.current == nil || s.current.id != tc.ID) {
			s.startTool(tc.ID, tc.Function.Name)
		}
		s.appendToolArgs(tc.Function.Arguments)
	}

	// Truncation: finish_reason "length" on any choice. If every choice was
	// cut off, the marker replaces content entirely; if one choice completed,
	// its content is kept with a partial marker appended.
	truncated := 0
	var stopChoice *openai.ChatCompletionStreamChoice
	for i := range chunk.Choices {
		c := &chunk.Choices[i]
		switch c.FinishReason {
		case openai.FinishReasonLength:
			truncated++
		case openai.FinishReasonStop:
			if stopChoice == nil {
				stopChoice = c
			}
			s.stopReason = "stop"
		case openai.FinishReasonToolCalls:
			s.stopReason = "tool_calls"
		}
	}
	if truncated > 0 {
		if truncated == len(chunk.Choices) {
			s.stopReason = "length"
			return &llm.Delta{Text: TruncationMarker}
		}
		if stopChoice != nil {
			return &llm.Delta{Text: stopChoice.Delta.Content + PartialTruncationMarker}
		}
	}

	if text := chunk.Choices[0].Delta.Content; text != "" {
		return &llm.Delta{Text: text}
	}
	return nil
}
