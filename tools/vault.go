package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aschepis/backscratcher/scribe/vault"
)

// RegisterVaultTools registers note-vault tools backed by a Vault.
// vault_search returns an array of candidate notes; when gated, the
// orchestrator routes that array through the approval gate before the model
// sees it.
func (r *Registry) RegisterVaultTools(v *vault.Vault) {
	r.logger.Info().Str("root", v.Root()).Msg("Registering vault tools in registry")

	r.Register("vault_search", func(ctx context.Context, args json.RawMessage) (any, error) {
		var payload struct {
			Query string `json:"query"`
			Limit int    `json:"limit"`
		}
		if err := json.Unmarshal(args, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
		}

		results, err := v.Search(payload.Query, payload.Limit)
		if err != nil {
			return nil, err
		}
		r.logger.Info().Str("query", payload.Query).Int("result_count", len(results)).Msg("vault_search returned results")

		out := make([]any, 0, len(results))
		for _, res := range results {
			out = append(out, map[string]any{
				"path":    res.Path,
				"snippet": res.Snippet,
				"matches": res.Matches,
			})
		}
		return out, nil
	})

	r.Register("vault_read", func(ctx context.Context, args json.RawMessage) (any, error) {
		var payload struct {
			Path string `json:"path"`
		}
		if err := json.Unmarshal(args, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
		}
		if payload.Path == "" {
			return nil, fmt.Errorf("path cannot be empty")
		}

		content, err := v.Read(payload.Path)
		if err != nil {
			return nil, err
		}
		return content, nil
	})
}
