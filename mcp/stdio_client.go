package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// StdioClient implements Client for STDIO transport.
type StdioClient struct {
	client  *client.Client
	command string
	logger  zerolog.Logger
}

// NewStdioClient creates a new STDIO MCP client. The command string may
// carry its own arguments; extra args are appended after them.
func NewStdioClient(logger zerolog.Logger, command string, args, env []string) (*StdioClient, error) {
	if command == "" {
		return nil, fmt.Errorf("command is required for STDIO MCP client")
	}

	logger = logger.With().Str("component", "mcp_stdio").Logger()

	parts := strings.Fields(command)
	cmd := parts[0]
	cmdArgs := append(append([]string{}, parts[1:]...), args...)

	mcpClient, err := client.NewStdioMCPClient(cmd, env, cmdArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to create stdio MCP client: %w", err)
	}

	logger.Info().Str("command", cmd).Strs("args", cmdArgs).Msg("Created STDIO MCP client")
	return &StdioClient{
		client:  mcpClient,
		command: cmd,
		logger:  logger,
	}, nil
}

// Start initializes the MCP client connection.
func (c *StdioClient) Start(ctx context.Context) error {
	initReq := mcpgo.InitializeRequest{
		Params: mcpgo.InitializeParams{
			ProtocolVersion: mcpgo.LATEST_PROTOCOL_VERSION,
			Capabilities:    mcpgo.ClientCapabilities{},
			ClientInfo: mcpgo.Implementation{
				Name:    "scribe",
				Version: "1.0.0",
			},
		},
	}

	if _, err := c.client.Initialize(ctx, initReq); err != nil {
		c.logger.Error().Str("command", c.command).Err(err).Msg("MCP initialize failed")
		return fmt.Errorf("failed to initialize MCP client: %w", err)
	}

	if err := c.client.Start(ctx); err != nil {
		c.logger.Error().Str("command", c.command).Err(err).Msg("MCP start failed")
		return fmt.Errorf("failed to start MCP client: %w", err)
	}

	c.logger.Info().Str("command", c.command).Msg("MCP client started")
	return nil
}

// ListTools returns all tools available from the MCP server.
func (c *StdioClient) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	result, err := c.client.ListTools(ctx, mcpgo.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	c.logger.Info().Str("command", c.command).Int("tool_count", len(result.Tools)).Msg("Received tools from MCP server")

	tools := lo.Map(result.Tools, func(tool mcpgo.Tool, _ int) ToolDefinition {
		inputSchema := map[string]interface{}{
			"type": tool.InputSchema.Type,
		}
		if tool.InputSchema.Properties != nil {
			inputSchema["properties"] = tool.InputSchema.Properties
		}
		if len(tool.InputSchema.Required) > 0 {
			inputSchema["required"] = tool.InputSchema.Required
		}

		return ToolDefinition{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: inputSchema,
		}
	})

	return tools, nil
}

// InvokeTool invokes a tool on the MCP server. Text content blocks are
// collapsed into a single "text" field; server-side tool errors surface in
// the output map rather than as call errors.
func (c *StdioClient) InvokeTool(ctx context.Context, name string, input map[string]interface{}) (map[string]interface{}, error) {
	req := mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Name:      name,
			Arguments: input,
		},
	}

	result, err := c.client.CallTool(ctx, req)
	if err != nil {
		c.logger.Error().Str("tool_name", name).Err(err).Msg("MCP tool call failed")
		return nil, fmt.Errorf("failed to invoke tool %s: %w", name, err)
	}

	output := make(map[string]interface{})
	var texts []string
	for _, content := range result.Content {
		if textContent, ok := mcpgo.AsTextContent(content); ok {
			texts = append(texts, textContent.Text)
		}
	}
	switch len(texts) {
	case 0:
	case 1:
		output["text"] = texts[0]
	default:
		output["text"] = texts
	}

	if result.IsError {
		output["error"] = true
		if len(texts) > 0 {
			output["error_message"] = texts[0]
		}
	}

	return output, nil
}

// Close closes the connection to the MCP server.
func (c *StdioClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
