package schemas

// VaultSchemas returns schemas for note-vault tools.
func VaultSchemas() map[string]ToolSchema {
	return map[string]ToolSchema{
		"vault_search": {
			Description: "Search the note vault for markdown notes matching a query. Returns a list of matching notes with a snippet from each. Use this to find existing notes relevant to the current topic before writing new content.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "Text to search for in note content (case-insensitive)",
					},
					"limit": map[string]any{
						"type":        "integer",
						"description": "Maximum number of results to return (default: 10)",
					},
				},
				"required": []string{"query"},
			},
		},
		"vault_read": {
			Description: "Read the full content of a note from the vault. The path must be relative to the vault root, as returned by vault_search.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{
						"type":        "string",
						"description": "Note path relative to the vault root",
					},
				},
				"required": []string{"path"},
			},
		},
	}
}
