package wire

import (
	"encoding/json"

	"github.com/aschepis/backscratcher/scribe/llm"
	"github.com/ollama/ollama/api"
)

// ollamaChunk is one NDJSON line from Ollama. Chat responses carry a message,
// generate responses carry a flat response string; both end with done:true
// rather than a sentinel line.
type ollamaChunk struct {
	Message    api.Message `json:"message"`
	Response   string      `json:"response"`
	Done       bool        `json:"done"`
	DoneReason string      `json:"done_reason"`
}

// decodeOllama handles Ollama NDJSON lines. Each line is a standalone JSON
// object; there is no SSE framing.
func decodeOllama(line string, s *Scratch) *llm.Delta {
	if line == "" {
		return nil
	}

	var chunk ollamaChunk
	if err := json.Unmarshal([]byte(line), &chunk); err != nil {
		return nil
	}

	for _, tc := range chunk.Message.ToolCalls {
		s.startTool("", tc.Function.Name)
		args := map[string]interface{}(tc.Function.Arguments)
		if args == nil {
			args = make(map[string]interface{})
		}
		s.setToolInput(args)
	}

	if chunk.Done {
		s.done = true
		if chunk.DoneReason != "" {
			s.stopReason = chunk.DoneReason
		}
	}

	text := chunk.Message.Content
	if text == "" {
		text = chunk.Response
	}
	if text == "" {
		return nil
	}
	return &llm.Delta{Text: text}
}
