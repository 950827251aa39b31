package wire

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func newTestDecoder(f Format) *Decoder {
	return NewDecoder(f, zerolog.Nop())
}

func collectText(t *testing.T, d *Decoder, lines []string) string {
	t.Helper()
	var out strings.Builder
	for _, line := range lines {
		if delta := d.Decode(line); delta != nil {
			out.WriteString(delta.Text)
		}
	}
	return out.String()
}

func TestDecodeOpenAI_RoundTrip(t *testing.T) {
	d := newTestDecoder(FormatOpenAI)
	lines := []string{
		`data: {"choices":[{"delta":{"content":"He"}}]}`,
		`data: {"choices":[{"delta":{"content":"llo"}}]}`,
		`data: [DONE]`,
	}
	got := collectText(t, d, lines)
	if got != "Hello" {
		t.Errorf("expected %q, got %q", "Hello", got)
	}
	if !d.Done() {
		t.Error("decoder should be done after [DONE] sentinel")
	}
}

func TestDecodeOpenAI_SkipsMalformedLines(t *testing.T) {
	d := newTestDecoder(FormatOpenAI)
	lines := []string{
		``,
		`: keep-alive comment`,
		`event: message`,
		`data: {not json`,
		`data: {"choices":[{"delta":{"content":"ok"}}]}`,
	}
	got := collectText(t, d, lines)
	if got != "ok" {
		t.Errorf("expected only valid line to decode, got %q", got)
	}
}

func TestDecodeOpenAI_FullTruncation(t *testing.T) {
	d := newTestDecoder(FormatOpenAI)
	delta := d.Decode(`data: {"choices":[{"delta":{"content":"partial"},"finish_reason":"length"}]}`)
	if delta == nil {
		t.Fatal("expected a truncation delta")
	}
	if delta.Text != TruncationMarker {
		t.Errorf("expected full truncation marker, got %q", delta.Text)
	}
	if d.StopReason() != "length" {
		t.Errorf("expected stop reason length, got %q", d.StopReason())
	}
}

func TestDecodeOpenAI_PartialTruncation(t *testing.T) {
	d := newTestDecoder(FormatOpenAI)
	line := `data: {"choices":[{"index":0,"delta":{"content":"done"},"finish_reason":"stop"},{"index":1,"delta":{},"finish_reason":"length"}]}`
	delta := d.Decode(line)
	if delta == nil {
		t.Fatal("expected a delta")
	}
	want := "done" + PartialTruncationMarker
	if delta.Text != want {
		t.Errorf("expected %q, got %q", want, delta.Text)
	}
}

func TestDecodeOpenAI_CitationsDeduplicated(t *testing.T) {
	d := newTestDecoder(FormatOpenAI)
	lines := []string{
		`data: {"citations":["https://a.example","https://b.example"],"choices":[{"delta":{"content":"x"}}]}`,
		`data: {"citations":["https://b.example","https://c.example"],"choices":[{"delta":{"content":"y"}}]}`,
	}
	collectText(t, d, lines)

	got := d.Citations()
	want := []string{"https://a.example", "https://b.example", "https://c.example"}
	if len(got) != len(want) {
		t.Fatalf("expected %d citations, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("citation %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestDecodeOpenAI_ToolCallFragments(t *testing.T) {
	d := newTestDecoder(FormatOpenAI)
	lines := []string{
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"vault_search","arguments":""}}]}}]}`,
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"query\":"}}]}}]}`,
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"notes\"}"}}]},"finish_reason":"tool_calls"}]}`,
		`data: [DONE]`,
	}
	for _, line := range lines {
		d.Decode(line)
	}

	calls := d.ToolCalls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(calls))
	}
	if calls[0].ID != "call_1" || calls[0].Name != "vault_search" {
		t.Errorf("unexpected call identity: %+v", calls[0])
	}
	if q, _ := calls[0].Input["query"].(string); q != "notes" {
		t.Errorf("expected query argument %q, got %v", "notes", calls[0].Input)
	}
}

func TestDecodeAnthropic(t *testing.T) {
	d := newTestDecoder(FormatAnthropic)
	lines := []string{
		`event: message_start`,
		`data: {"type":"message_start","message":{}}`,
		`data: {"type":"content_block_start","content_block":{"type":"text","text":"Hi"}}`,
		`data: {"type":"content_block_delta","delta":{"type":"text_delta","text":" there"}}`,
		`data: {"type":"ping"}`,
		`data: {"type":"message_delta","delta":{"stop_reason":"end_turn"}}`,
		`data: {"type":"message_stop"}`,
	}
	got := collectText(t, d, lines)
	if got != "Hi there" {
		t.Errorf("expected %q, got %q", "Hi there", got)
	}
	if !d.Done() {
		t.Error("decoder should be done after message_stop")
	}
	if d.StopReason() != "end_turn" {
		t.Errorf("expected stop reason end_turn, got %q", d.StopReason())
	}
}

func TestDecodeAnthropic_ToolUse(t *testing.T) {
	d := newTestDecoder(FormatAnthropic)
	lines := []string{
		`data: {"type":"content_block_start","content_block":{"type":"tool_use","id":"toolu_1","name":"vault_search"}}`,
		`data: {"type":"content_block_delta","delta":{"type":"input_json_delta","partial_json":"{\"query\":\"re"}}`,
		`data: {"type":"content_block_delta","delta":{"type":"input_json_delta","partial_json":"cipe\"}"}}`,
		`data: {"type":"message_stop"}`,
	}
	for _, line := range lines {
		if delta := d.Decode(line); delta != nil {
			t.Errorf("tool-use lines should yield no delta, got %+v", delta)
		}
	}

	calls := d.ToolCalls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(calls))
	}
	if calls[0].ID != "toolu_1" {
		t.Errorf("expected id toolu_1, got %q", calls[0].ID)
	}
	if q, _ := calls[0].Input["query"].(string); q != "recipe" {
		t.Errorf("expected reassembled query %q, got %v", "recipe", calls[0].Input)
	}
}

func TestDecodeGemini_ConcatenatesParts(t *testing.T) {
	d := newTestDecoder(FormatGemini)
	line := `data: {"candidates":[{"content":{"parts":[{"text":"foo"},{"functionCall":{"name":"vault_search","args":{"query":"x"}}},{"text":"bar"}]}}]}`
	delta := d.Decode(line)
	if delta == nil {
		t.Fatal("expected a delta")
	}
	if delta.Text != "foobar" {
		t.Errorf("expected parts joined with no separator, got %q", delta.Text)
	}

	calls := d.ToolCalls()
	if len(calls) != 1 || calls[0].Name != "vault_search" {
		t.Fatalf("expected one vault_search call, got %v", calls)
	}
	if q, _ := calls[0].Input["query"].(string); q != "x" {
		t.Errorf("expected complete args, got %v", calls[0].Input)
	}
}

func TestDecodeGemini_EmptyCandidates(t *testing.T) {
	d := newTestDecoder(FormatGemini)
	if delta := d.Decode(`data: {"candidates":[]}`); delta != nil {
		t.Errorf("expected nil delta, got %+v", delta)
	}
}

func TestDecodeOllama(t *testing.T) {
	d := newTestDecoder(FormatOllama)
	lines := []string{
		`{"message":{"role":"assistant","content":"He"},"done":false}`,
		`{"message":{"role":"assistant","content":"llo"},"done":false}`,
		`{"message":{"role":"assistant","content":""},"done":true,"done_reason":"stop"}`,
	}
	got := collectText(t, d, lines)
	if got != "Hello" {
		t.Errorf("expected %q, got %q", "Hello", got)
	}
	if !d.Done() {
		t.Error("decoder should be done after done:true")
	}
}

func TestDecodeOllama_GenerateResponseField(t *testing.T) {
	d := newTestDecoder(FormatOllama)
	delta := d.Decode(`{"response":"plain","done":false}`)
	if delta == nil || delta.Text != "plain" {
		t.Errorf("expected response field fallback, got %+v", delta)
	}
}

func TestDecodeUnknownFormat(t *testing.T) {
	d := newTestDecoder(Format("carrier-pigeon"))
	if delta := d.Decode(`data: {"choices":[{"delta":{"content":"x"}}]}`); delta != nil {
		t.Errorf("unknown format should drop all lines, got %+v", delta)
	}
}

func TestFormatFor(t *testing.T) {
	cases := map[string]Format{
		"openai":     FormatOpenAI,
		"openrouter": FormatOpenAI,
		"lmstudio":   FormatOpenAI,
		"anthropic":  FormatAnthropic,
		"gemini":     FormatGemini,
		"ollama":     FormatOllama,
		"smoke":      Format(""),
	}
	for provider, want := range cases {
		if got := FormatFor(provider); got != want {
			t.Errorf("FormatFor(%q): expected %q, got %q", provider, want, got)
		}
	}
}
