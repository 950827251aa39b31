package wire

import (
	"encoding/json"
	"strings"

	"github.com/aschepis/backscratcher/scribe/llm"
)

// geminiChunk is one streamGenerateContent SSE payload.
type geminiChunk struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text         *string `json:"text"`
				FunctionCall *struct {
					Name string                 `json:"name"`
					Args map[string]interface{} `json:"args"`
				} `json:"functionCall"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

// decodeGemini handles Gemini SSE lines. Delta text is the concatenation of
// the first candidate's text parts, joined with no separator. functionCall
// parts arrive with complete arguments, not fragments.
func decodeGemini(line string, s *Scratch) *llm.Delta {
	data, ok := dataPayload(line)
	if !ok || data == "" {
		return nil
	}

	var chunk geminiChunk
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return nil
	}
	if len(chunk.Candidates) == 0 {
		return nil
	}

	cand := chunk.Candidates[0]
	if cand.FinishReason != "" {
		s.stopReason = strings.ToLower(cand.FinishReason)
	}

	var text strings.Builder
	for _, part := range cand.Content.Parts {
		if part.Text != nil {
			text.WriteString(*part.Text)
		}
		if part.FunctionCall != nil {
			s.startTool("", part.FunctionCall.Name)
			args := part.FunctionCall.Args
			if args == nil {
				args = make(map[string]interface{})
			}
			s.setToolInput(args)
		}
	}

	if text.Len() == 0 {
		return nil
	}
	return &llm.Delta{Text: text.String()}
}
