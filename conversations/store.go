// Package conversations persists scribe sessions and their message history
// in SQLite.
package conversations

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/aschepis/backscratcher/scribe/llm"
	"github.com/google/uuid"
)

// Session is one conversation with the model.
type Session struct {
	ID        string
	Title     string
	CreatedAt time.Time
}

// Store handles persistence of sessions and conversation messages.
type Store struct {
	db *sql.DB
}

// NewStore creates a new Store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for components that share the database,
// such as the notification inbox.
func (s *Store) DB() *sql.DB {
	return s.db
}

// CreateSession creates a new session and returns it.
func (s *Store) CreateSession(ctx context.Context, title string) (*Session, error) {
	session := &Session{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: time.Now(),
	}

	query := sq.Insert("sessions").
		Columns("id", "title", "created_at").
		Values(session.ID, session.Title, session.CreatedAt.Unix())

	queryStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, queryStr, args...); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// AppendUserMessage saves a user text message to the session history.
func (s *Store) AppendUserMessage(ctx context.Context, sessionID, content string) error {
	return s.appendText(ctx, sessionID, "user", content)
}

// AppendAssistantMessage saves an assistant text-only message to the session
// history.
func (s *Store) AppendAssistantMessage(ctx context.Context, sessionID, content string) error {
	return s.appendText(ctx, sessionID, "assistant", content)
}

func (s *Store) appendText(ctx context.Context, sessionID, role, content string) error {
	now := time.Now().Unix()
	query := sq.Insert("messages").
		Columns("session_id", "role", "content", "tool_name", "created_at").
		Values(sessionID, role, content, nil, now)

	queryStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	_, err = s.db.ExecContext(ctx, queryStr, args...)
	return err
}

// AppendToolCall saves a model tool call to the session history. Uses
// INSERT OR IGNORE so a crash between persist and response replay cannot
// duplicate a tool_use ID.
func (s *Store) AppendToolCall(ctx context.Context, sessionID, toolID, toolName string, toolInput any) error {
	toolUseData := map[string]interface{}{
		"id":    toolID,
		"input": toolInput,
		"name":  toolName,
	}
	contentJSON, err := json.Marshal(toolUseData)
	if err != nil {
		return fmt.Errorf("marshal tool use data: %w", err)
	}

	now := time.Now().Unix()
	query := sq.Insert("messages").
		Columns("session_id", "role", "content", "tool_name", "tool_id", "created_at").
		Values(sessionID, "assistant", string(contentJSON), toolName, toolID, now)

	queryStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	// SQLite wants "OR IGNORE" between INSERT and INTO.
	queryStr = strings.Replace(queryStr, "INSERT INTO", "INSERT OR IGNORE INTO", 1)

	_, err = s.db.ExecContext(ctx, queryStr, args...)
	return err
}

// AppendToolResult saves a tool result to the session history. isError marks
// results that carry an error payload rather than tool output.
func (s *Store) AppendToolResult(ctx context.Context, sessionID, toolID, toolName string, result any, isError bool) error {
	var resultStr string
	if resultBytes, err := json.Marshal(result); err == nil {
		resultStr = string(resultBytes)
	} else {
		resultStr = fmt.Sprintf("%v", result)
	}

	toolResultData := map[string]interface{}{
		"id":       toolID,
		"result":   resultStr,
		"is_error": isError,
	}
	contentJSON, err := json.Marshal(toolResultData)
	if err != nil {
		return fmt.Errorf("marshal tool result data: %w", err)
	}

	now := time.Now().Unix()
	query := sq.Insert("messages").
		Columns("session_id", "role", "content", "tool_name", "tool_id", "created_at").
		Values(sessionID, "tool", string(contentJSON), toolName, toolID, now)

	queryStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	queryStr = strings.Replace(queryStr, "INSERT INTO", "INSERT OR IGNORE INTO", 1)

	_, err = s.db.ExecContext(ctx, queryStr, args...)
	return err
}

// History loads the session's messages in order, as request messages. Tool
// call and tool result rows are folded back into their block forms.
func (s *Store) History(ctx context.Context, sessionID string) ([]llm.Message, error) {
	query := sq.Select("role", "content", "tool_name", "tool_id").
		From("messages").
		Where(sq.Eq{"session_id": sessionID}).
		OrderBy("id ASC")

	queryStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, queryStr, args...)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only rows close error can be ignored

	var messages []llm.Message
	for rows.Next() {
		var role, content string
		var toolName, toolID sql.NullString
		if err := rows.Scan(&role, &content, &toolName, &toolID); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}

		msg, err := rowToMessage(role, content, toolID.Valid)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// rowToMessage rebuilds one request message from a stored row.
func rowToMessage(role, content string, hasToolID bool) (llm.Message, error) {
	switch {
	case role == "tool":
		var data struct {
			ID      string `json:"id"`
			Result  string `json:"result"`
			IsError bool   `json:"is_error"`
		}
		if err := json.Unmarshal([]byte(content), &data); err != nil {
			return llm.Message{}, fmt.Errorf("decode tool result row: %w", err)
		}
		return llm.NewToolResultMessage([]llm.ToolResultBlock{{
			ID:      data.ID,
			Content: data.Result,
			IsError: data.IsError,
		}}), nil

	case role == "assistant" && hasToolID:
		var data struct {
			ID    string                 `json:"id"`
			Input map[string]interface{} `json:"input"`
			Name  string                 `json:"name"`
		}
		if err := json.Unmarshal([]byte(content), &data); err != nil {
			return llm.Message{}, fmt.Errorf("decode tool call row: %w", err)
		}
		return llm.NewToolUseMessage([]llm.ToolUseBlock{{
			ID:    data.ID,
			Name:  data.Name,
			Input: data.Input,
		}}), nil

	default:
		return llm.NewTextMessage(llm.MessageRole(role), content), nil
	}
}
