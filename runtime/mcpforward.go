package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
)

// MCPForwarder invokes a tool on a stdio MCP server with each fired action
// payload, so a device-control bridge can execute actions directly.
type MCPForwarder struct {
	client  *mcpclient.Client
	command string
	tool    string
	logger  zerolog.Logger
}

// NewMCPForwarder launches the configured MCP server process and performs
// the protocol handshake. The command string may carry its own arguments;
// args are appended after them.
func NewMCPForwarder(ctx context.Context, command, tool string, args, env []string, logger zerolog.Logger) (*MCPForwarder, error) {
	if command == "" {
		return nil, fmt.Errorf("command is required for MCP forwarder")
	}
	if tool == "" {
		return nil, fmt.Errorf("tool is required for MCP forwarder")
	}

	parts := strings.Fields(command)
	cmd := parts[0]
	cmdArgs := make([]string, 0, len(parts)-1+len(args))
	cmdArgs = append(cmdArgs, parts[1:]...)
	cmdArgs = append(cmdArgs, args...)

	cli, err := mcpclient.NewStdioMCPClient(cmd, env, cmdArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to create stdio MCP client: %w", err)
	}

	initReq := mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			Capabilities:    mcp.ClientCapabilities{},
			ClientInfo: mcp.Implementation{
				Name:    "hearthd",
				Version: "1.0.0",
			},
		},
	}
	if _, err := cli.Initialize(ctx, initReq); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("failed to initialize MCP client: %w", err)
	}

	fwdLogger := logger.With().Str("component", "mcp_forwarder").Logger()
	fwdLogger.Info().
		Str("command", cmd).
		Str("tool", tool).
		Msg("MCP forwarder connected")

	return &MCPForwarder{
		client:  cli,
		command: cmd,
		tool:    tool,
		logger:  fwdLogger,
	}, nil
}

// Forward invokes the configured tool with the action payload as arguments.
// Object payloads become the tool arguments directly; anything else is
// wrapped under a "payload" key.
func (f *MCPForwarder) Forward(ctx context.Context, action json.RawMessage) error {
	args := map[string]interface{}{}
	if err := json.Unmarshal(action, &args); err != nil {
		args = map[string]interface{}{"payload": string(action)}
	}

	req := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      f.tool,
			Arguments: args,
		},
	}

	result, err := f.client.CallTool(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to invoke tool %s: %w", f.tool, err)
	}
	if result.IsError {
		msg := "tool reported an error"
		if len(result.Content) > 0 {
			if text, ok := mcp.AsTextContent(result.Content[0]); ok {
				msg = text.Text
			}
		}
		return fmt.Errorf("tool %s failed: %s", f.tool, msg)
	}

	f.logger.Debug().
		Str("method", "Forward").
		Str("tool", f.tool).
		Msg("Tool invocation succeeded")
	return nil
}

// Close shuts down the MCP server connection.
func (f *MCPForwarder) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}
