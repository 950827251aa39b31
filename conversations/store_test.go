package conversations

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/aschepis/backscratcher/scribe/agent"
	"github.com/aschepis/backscratcher/scribe/llm"
	"github.com/aschepis/backscratcher/scribe/migrations"
	"github.com/rs/zerolog"

	_ "github.com/mattn/go-sqlite3"
)

// The store is the aggregator's session-history persister.
var _ agent.MessagePersister = (*Store)(nil)

// setupTestDB creates an in-memory database and runs migrations.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	migrationsPath := filepath.Join(cwd, "..", "migrations")

	if err := migrations.Run(db, migrationsPath, zerolog.Nop()); err != nil {
		_ = db.Close() //nolint:errcheck // Cleanup on error
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close() //nolint:errcheck // Test cleanup
	})
	return db
}

func TestCreateSessionAndTextHistory(t *testing.T) {
	store := NewStore(setupTestDB(t))
	ctx := context.Background()

	session, err := store.CreateSession(ctx, "daily notes")
	if err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}
	if session.ID == "" {
		t.Fatal("session ID is empty")
	}

	if err := store.AppendUserMessage(ctx, session.ID, "summarize today"); err != nil {
		t.Fatalf("AppendUserMessage returned error: %v", err)
	}
	if err := store.AppendAssistantMessage(ctx, session.ID, "Here is the summary."); err != nil {
		t.Fatalf("AppendAssistantMessage returned error: %v", err)
	}

	history, err := store.History(ctx, session.ID)
	if err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("got %d messages, want 2", len(history))
	}
	if history[0].Role != llm.RoleUser || history[0].Content[0].Text != "summarize today" {
		t.Errorf("history[0] = %+v", history[0])
	}
	if history[1].Role != llm.RoleAssistant || history[1].Content[0].Text != "Here is the summary." {
		t.Errorf("history[1] = %+v", history[1])
	}
}

func TestToolCallRoundTrip(t *testing.T) {
	store := NewStore(setupTestDB(t))
	ctx := context.Background()

	session, err := store.CreateSession(ctx, "")
	if err != nil {
		t.Fatal(err)
	}

	input := map[string]any{"query": "kubernetes"}
	if err := store.AppendToolCall(ctx, session.ID, "call_1", "vault_search", input); err != nil {
		t.Fatalf("AppendToolCall returned error: %v", err)
	}
	if err := store.AppendToolResult(ctx, session.ID, "call_1", "vault_search", []string{"a.md"}, false); err != nil {
		t.Fatalf("AppendToolResult returned error: %v", err)
	}

	history, err := store.History(ctx, session.ID)
	if err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("got %d messages, want 2", len(history))
	}

	call := history[0]
	if call.Role != llm.RoleAssistant || call.Content[0].Type != llm.ContentBlockTypeToolUse {
		t.Fatalf("history[0] = %+v, want assistant tool use", call)
	}
	use := call.Content[0].ToolUse
	if use.ID != "call_1" || use.Name != "vault_search" || use.Input["query"] != "kubernetes" {
		t.Errorf("tool use = %+v", use)
	}

	result := history[1]
	if result.Content[0].Type != llm.ContentBlockTypeToolResult {
		t.Fatalf("history[1] = %+v, want tool result", result)
	}
	tr := result.Content[0].ToolResult
	if tr.ID != "call_1" || tr.IsError {
		t.Errorf("tool result = %+v", tr)
	}
	if tr.Content != `["a.md"]` {
		t.Errorf("tool result content = %q", tr.Content)
	}
}

func TestToolCallInsertIsIdempotent(t *testing.T) {
	store := NewStore(setupTestDB(t))
	ctx := context.Background()

	session, err := store.CreateSession(ctx, "")
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if err := store.AppendToolCall(ctx, session.ID, "call_dup", "vault_read", map[string]any{"path": "n.md"}); err != nil {
			t.Fatalf("AppendToolCall (attempt %d) returned error: %v", i+1, err)
		}
		if err := store.AppendToolResult(ctx, session.ID, "call_dup", "vault_read", "body", false); err != nil {
			t.Fatalf("AppendToolResult (attempt %d) returned error: %v", i+1, err)
		}
	}

	history, err := store.History(ctx, session.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 {
		t.Errorf("got %d messages after duplicate inserts, want 2", len(history))
	}
}

func TestHistory_EmptySession(t *testing.T) {
	store := NewStore(setupTestDB(t))
	history, err := store.History(context.Background(), "missing-session")
	if err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("got %d messages, want 0", len(history))
	}
}
