package mcp

import (
	"context"
	"fmt"
	"strings"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server exposes bot control tools over MCP
type Server struct {
	client *Client
	server *gomcp.Server
}

// NewServer creates the MCP server and registers its tools
func NewServer(client *Client, version string) *Server {
	s := &Server{
		client: client,
		server: gomcp.NewServer(&gomcp.Implementation{
			Name:    "botdeck",
			Version: version,
		}, nil),
	}
	s.registerTools()
	return s
}

// Run serves over stdio until ctx is cancelled or the client hangs up
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "bot_status",
		Description: "Get the bot connection state and aggregate statistics.",
	}, s.handleStatus)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "bot_start",
		Description: "Start the bot. Provide appState JSON, or username and password.",
	}, s.handleStart)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "bot_stop",
		Description: "Stop the bot and cancel any pending reconnect.",
	}, s.handleStop)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "bot_restart",
		Description: "Restart the bot with the credentials it was last started with.",
	}, s.handleRestart)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "bot_send_message",
		Description: "Send a text message to a thread through the connected bot.",
	}, s.handleSendMessage)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "bot_list_commands",
		Description: "List the bot commands with their enablement, cooldown and usage count.",
	}, s.handleListCommands)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "bot_toggle_command",
		Description: "Enable or disable a command by name. Without 'enabled' the current state is flipped.",
	}, s.handleToggleCommand)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "bot_logs",
		Description: "Read recent activity log entries, newest first.",
	}, s.handleLogs)
}

// Empty is the input of tools without arguments
type Empty struct{}

// StatusOutput combines lifecycle state and counters
type StatusOutput struct {
	Status *Status `json:"status"`
	Stats  *Stats  `json:"stats"`
}

func (s *Server) handleStatus(ctx context.Context, _ *gomcp.CallToolRequest, _ Empty) (*gomcp.CallToolResult, StatusOutput, error) {
	status, err := s.client.Status(ctx)
	if err != nil {
		return nil, StatusOutput{}, err
	}
	stats, err := s.client.Stats(ctx)
	if err != nil {
		return nil, StatusOutput{}, err
	}
	return nil, StatusOutput{Status: status, Stats: stats}, nil
}

// StartInput carries the login material
type StartInput struct {
	AppState string `json:"appState,omitempty" jsonschema:"session state JSON exported from the platform"`
	Username string `json:"username,omitempty" jsonschema:"login username, used with password"`
	Password string `json:"password,omitempty" jsonschema:"login password, used with username"`
	Proxy    string `json:"proxy,omitempty" jsonschema:"optional HTTP proxy URL"`
}

func (s *Server) handleStart(ctx context.Context, _ *gomcp.CallToolRequest, in StartInput) (*gomcp.CallToolResult, ActionResult, error) {
	creds := Credentials{
		Type:     "credentials",
		AppState: in.AppState,
		Username: in.Username,
		Password: in.Password,
		Proxy:    in.Proxy,
	}
	if in.AppState != "" {
		creds.Type = "appState"
	}
	r, err := s.client.Start(ctx, creds)
	if err != nil {
		return nil, ActionResult{}, err
	}
	return nil, *r, nil
}

func (s *Server) handleStop(ctx context.Context, _ *gomcp.CallToolRequest, _ Empty) (*gomcp.CallToolResult, ActionResult, error) {
	r, err := s.client.Stop(ctx)
	if err != nil {
		return nil, ActionResult{}, err
	}
	return nil, *r, nil
}

func (s *Server) handleRestart(ctx context.Context, _ *gomcp.CallToolRequest, _ Empty) (*gomcp.CallToolResult, ActionResult, error) {
	r, err := s.client.Restart(ctx)
	if err != nil {
		return nil, ActionResult{}, err
	}
	return nil, *r, nil
}

// SendMessageInput names the target thread and the text
type SendMessageInput struct {
	ThreadID string `json:"threadId" jsonschema:"the thread to send to"`
	Message  string `json:"message" jsonschema:"the message text"`
}

// SendMessageOutput reports the delivered message
type SendMessageOutput struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
}

func (s *Server) handleSendMessage(ctx context.Context, _ *gomcp.CallToolRequest, in SendMessageInput) (*gomcp.CallToolResult, SendMessageOutput, error) {
	id, err := s.client.SendMessage(ctx, in.ThreadID, in.Message)
	if err != nil {
		return nil, SendMessageOutput{}, err
	}
	return nil, SendMessageOutput{Success: true, MessageID: id}, nil
}

// CommandsOutput lists commands
type CommandsOutput struct {
	Commands []Command `json:"commands"`
}

func (s *Server) handleListCommands(ctx context.Context, _ *gomcp.CallToolRequest, _ Empty) (*gomcp.CallToolResult, CommandsOutput, error) {
	cmds, err := s.client.Commands(ctx)
	if err != nil {
		return nil, CommandsOutput{}, err
	}
	if cmds == nil {
		cmds = []Command{}
	}
	return nil, CommandsOutput{Commands: cmds}, nil
}

// ToggleCommandInput selects a command and its new state
type ToggleCommandInput struct {
	Name    string `json:"name" jsonschema:"the command name without prefix"`
	Enabled *bool  `json:"enabled,omitempty" jsonschema:"the new state; omitted flips the current one"`
}

// ToggleCommandOutput is the updated command
type ToggleCommandOutput struct {
	Command *Command `json:"command"`
}

func (s *Server) handleToggleCommand(ctx context.Context, _ *gomcp.CallToolRequest, in ToggleCommandInput) (*gomcp.CallToolResult, ToggleCommandOutput, error) {
	cmds, err := s.client.Commands(ctx)
	if err != nil {
		return nil, ToggleCommandOutput{}, err
	}

	name := strings.ToLower(strings.TrimSpace(in.Name))
	for _, c := range cmds {
		if c.Name != name {
			continue
		}
		enabled := !c.IsEnabled
		if in.Enabled != nil {
			enabled = *in.Enabled
		}
		updated, err := s.client.SetCommandEnabled(ctx, c.ID, enabled)
		if err != nil {
			return nil, ToggleCommandOutput{}, err
		}
		return nil, ToggleCommandOutput{Command: updated}, nil
	}
	return nil, ToggleCommandOutput{}, fmt.Errorf("command %q not found", in.Name)
}

// LogsInput filters the activity log
type LogsInput struct {
	Type  string `json:"type,omitempty" jsonschema:"one of info, warn, error, message"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum entries to return (default 100)"`
}

// LogsOutput lists log entries
type LogsOutput struct {
	Logs []LogEntry `json:"logs"`
}

func (s *Server) handleLogs(ctx context.Context, _ *gomcp.CallToolRequest, in LogsInput) (*gomcp.CallToolResult, LogsOutput, error) {
	logs, err := s.client.Logs(ctx, in.Type, in.Limit)
	if err != nil {
		return nil, LogsOutput{}, err
	}
	if logs == nil {
		logs = []LogEntry{}
	}
	return nil, LogsOutput{Logs: logs}, nil
}
