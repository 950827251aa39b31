package wire

import (
	"encoding/json"
	"strings"

	"github.com/aschepis/backscratcher/scribe/llm"
)

// anthropicEvent is the subset of the Anthropic messages-stream event shape
// this decoder cares about. The SDK's union event types decode whole SSE
// frames; here each raw line is decoded independently, so the shape is kept
// local.
type anthropicEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
		StopReason  string `json:"stop_reason"`
	} `json:"delta"`
	ContentBlock struct {
		Type string `json:"type"`
		Text string `json:"text"`
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"content_block"`
}

// decodeAnthropic handles Anthropic SSE lines. event: lines carry no payload
// and are ignored; the data: JSON type field selects the behavior.
func decodeAnthropic(line string, s *Scratch) *llm.Delta {
	if strings.HasPrefix(line, "event:") {
		return nil
	}
	data, ok := dataPayload(line)
	if !ok || data == "" {
		return nil
	}

	var ev anthropicEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return nil
	}

	switch ev.Type {
	case "content_block_delta":
		switch ev.Delta.Type {
		case "text_delta":
			if ev.Delta.Text != "" {
				return &llm.Delta{Text: ev.Delta.Text}
			}
		case "input_json_delta":
			s.appendToolArgs(ev.Delta.PartialJSON)
		}
	case "content_block_start":
		switch ev.ContentBlock.Type {
		case "text":
			if ev.ContentBlock.Text != "" {
				return &llm.Delta{Text: ev.ContentBlock.Text}
			}
		case "tool_use":
			s.startTool(ev.ContentBlock.ID, ev.ContentBlock.Name)
		}
	case "message_delta":
		if ev.Delta.StopReason != "" {
			s.stopReason = ev.Delta.StopReason
		}
	case "message_stop":
		s.done = true
	}
	return nil
}
