package schemas

// NotificationSchemas returns schemas for notification-related tools.
func NotificationSchemas() map[string]ToolSchema {
	return map[string]ToolSchema{
		"send_user_notification": {
			Description: "Send a notification to the user. Records the notification in the inbox and attempts to display a desktop notification. Use this to alert the user about something important or to notify them of completed work.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"message": map[string]any{
						"type":        "string",
						"description": "The notification message to send to the user",
					},
					"title": map[string]any{
						"type":        "string",
						"description": "Optional title for the notification (default: 'Scribe')",
					},
					"requires_response": map[string]any{
						"type":        "boolean",
						"description": "Whether this notification requires a response from the user",
					},
				},
				"required": []string{"message"},
			},
		},
	}
}
