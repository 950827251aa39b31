package tools

import (
	"context"
	"testing"

	"github.com/aschepis/backscratcher/scribe/mcp"
	"github.com/rs/zerolog"
)

type fakeMCPClient struct {
	defs    []mcp.ToolDefinition
	invoked []string
}

func (f *fakeMCPClient) Start(ctx context.Context) error { return nil }

func (f *fakeMCPClient) ListTools(ctx context.Context) ([]mcp.ToolDefinition, error) {
	return f.defs, nil
}

func (f *fakeMCPClient) InvokeTool(ctx context.Context, name string, input map[string]interface{}) (map[string]interface{}, error) {
	f.invoked = append(f.invoked, name)
	return map[string]interface{}{"text": "ok"}, nil
}

func (f *fakeMCPClient) Close() error { return nil }

func TestRegisterMCPTools(t *testing.T) {
	fake := &fakeMCPClient{
		defs: []mcp.ToolDefinition{
			{
				Name:        "messages.list",
				Description: "List messages",
				InputSchema: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"folder": map[string]interface{}{"type": "string"},
					},
					"required": []interface{}{"folder"},
				},
			},
		},
	}

	r := NewRegistry(zerolog.Nop())
	if err := r.RegisterMCPTools(context.Background(), "gmail", fake); err != nil {
		t.Fatalf("RegisterMCPTools returned error: %v", err)
	}

	specs := r.Specs()
	if len(specs) != 1 {
		t.Fatalf("got %d specs, want 1", len(specs))
	}
	spec := specs[0]
	if spec.Name != "gmail_messages_list" {
		t.Errorf("spec name = %q, want gmail_messages_list", spec.Name)
	}
	if len(spec.Schema.Required) != 1 || spec.Schema.Required[0] != "folder" {
		t.Errorf("required = %v", spec.Schema.Required)
	}

	// Dispatch goes through the safe name but invokes the original name.
	result, err := r.Execute(context.Background(), "gmail_messages_list", []byte(`{"folder":"inbox"}`))
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if len(fake.invoked) != 1 || fake.invoked[0] != "messages.list" {
		t.Errorf("invoked = %v, want original MCP name", fake.invoked)
	}
	out, ok := result.(map[string]interface{})
	if !ok || out["text"] != "ok" {
		t.Errorf("result = %v", result)
	}
}

func TestSafeName(t *testing.T) {
	if got := mcp.SafeName("a.b.c"); got != "a_b_c" {
		t.Errorf("SafeName = %q", got)
	}
}
