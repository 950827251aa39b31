package tools

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/gen2brain/beeep"
)

// RegisterNotificationTools registers notification-related tools.
func (r *Registry) RegisterNotificationTools(db *sql.DB) {
	r.logger.Info().Msg("Registering notification tools in registry")

	r.Register("send_user_notification", func(ctx context.Context, args json.RawMessage) (any, error) {
		var payload struct {
			Message          string `json:"message"`
			Title            string `json:"title"`
			RequiresResponse bool   `json:"requires_response"`
		}
		if err := json.Unmarshal(args, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
		}

		if payload.Message == "" {
			return nil, fmt.Errorf("message cannot be empty")
		}

		now := time.Now().Unix()

		query := sq.Insert("inbox").
			Columns("title", "message", "requires_response", "created_at").
			Values(payload.Title, payload.Message, payload.RequiresResponse, now)

		queryStr, queryArgs, err := query.ToSql()
		if err != nil {
			r.logger.Error().Err(err).Msg("Failed to build insert query")
			return nil, fmt.Errorf("build insert query: %w", err)
		}

		result, err := db.ExecContext(ctx, queryStr, queryArgs...)
		if err != nil {
			r.logger.Error().Err(err).Msg("Failed to insert notification into inbox")
			return nil, fmt.Errorf("failed to insert notification into inbox: %w", err)
		}

		inboxID, err := result.LastInsertId()
		if err != nil {
			r.logger.Warn().Err(err).Msg("Failed to get last insert ID for inbox")
		}

		notificationTitle := payload.Title
		if notificationTitle == "" {
			notificationTitle = "Scribe"
		}
		notificationMessage := payload.Message
		if payload.RequiresResponse {
			notificationMessage += " (Response required)"
		}

		// The inbox insert already succeeded; a failed desktop notification
		// is logged, not returned.
		if notifErr := beeep.Notify(notificationTitle, notificationMessage, ""); notifErr != nil {
			r.logger.Warn().Err(notifErr).Msg("Failed to send desktop notification")
		}

		r.logger.Info().Int64("id", inboxID).Str("message", payload.Message).Msg("Recorded user notification")
		return map[string]any{
			"id":        inboxID,
			"delivered": true,
		}, nil
	})
}
