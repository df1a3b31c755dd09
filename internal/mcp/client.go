package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client talks to the botd REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Status is the bot lifecycle snapshot
type Status struct {
	State          string `json:"state"`
	Attempts       int    `json:"attempts"`
	HasCredentials bool   `json:"hasCredentials"`
	Gateway        string `json:"gateway"`
}

// Stats are the aggregate counters
type Stats struct {
	Uptime           int64  `json:"uptime"`
	TotalUsers       int    `json:"totalUsers"`
	TotalThreads     int    `json:"totalThreads"`
	MessagesReceived int64  `json:"messagesReceived"`
	MessagesSent     int64  `json:"messagesSent"`
	CommandsExecuted int64  `json:"commandsExecuted"`
	ConnectionStatus string `json:"connectionStatus"`
	ConnectionHealth int    `json:"connectionHealth"`
}

// Command is one row of the command table
type Command struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Cooldown    int    `json:"cooldown"`
	IsEnabled   bool   `json:"isEnabled"`
	UsageCount  int    `json:"usageCount"`
}

// LogEntry is one activity log entry
type LogEntry struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Credentials are the login material passed to start
type Credentials struct {
	Type     string `json:"type"`
	AppState string `json:"appState,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Proxy    string `json:"proxy,omitempty"`
}

// ActionResult is the reply of lifecycle actions
type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Status returns the lifecycle snapshot
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var s Status
	if err := c.get(ctx, "/api/bot/status", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Stats returns the aggregate counters
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	if err := c.get(ctx, "/api/stats", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Start connects the bot with creds
func (c *Client) Start(ctx context.Context, creds Credentials) (*ActionResult, error) {
	var r ActionResult
	if err := c.send(ctx, http.MethodPost, "/api/bot/start", creds, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Stop disconnects the bot
func (c *Client) Stop(ctx context.Context) (*ActionResult, error) {
	var r ActionResult
	if err := c.send(ctx, http.MethodPost, "/api/bot/stop", nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Restart reconnects with the stored credentials
func (c *Client) Restart(ctx context.Context) (*ActionResult, error) {
	var r ActionResult
	if err := c.send(ctx, http.MethodPost, "/api/bot/restart", nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// SendMessage posts text to a thread and returns the platform message id
func (c *Client) SendMessage(ctx context.Context, threadID, message string) (string, error) {
	var r struct {
		Receipt struct {
			MessageID string `json:"messageId"`
		} `json:"receipt"`
	}
	body := map[string]string{"threadId": threadID, "message": message}
	if err := c.send(ctx, http.MethodPost, "/api/bot/send", body, &r); err != nil {
		return "", err
	}
	return r.Receipt.MessageID, nil
}

// Commands lists the command table
func (c *Client) Commands(ctx context.Context) ([]Command, error) {
	var cmds []Command
	if err := c.get(ctx, "/api/commands", &cmds); err != nil {
		return nil, err
	}
	return cmds, nil
}

// SetCommandEnabled toggles the command with the given id
func (c *Client) SetCommandEnabled(ctx context.Context, id string, enabled bool) (*Command, error) {
	var cmd Command
	body := map[string]bool{"isEnabled": enabled}
	if err := c.send(ctx, http.MethodPatch, "/api/commands/"+url.PathEscape(id), body, &cmd); err != nil {
		return nil, err
	}
	return &cmd, nil
}

// Logs returns recent activity, newest first. Empty typ means all types.
func (c *Client) Logs(ctx context.Context, typ string, limit int) ([]LogEntry, error) {
	q := url.Values{}
	if typ != "" {
		q.Set("type", typ)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/logs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var logs []LogEntry
	if err := c.get(ctx, path, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

// ============ HTTP Helpers ============

func (c *Client) get(ctx context.Context, path string, result any) error {
	return c.send(ctx, http.MethodGet, path, nil, result)
}

func (c *Client) send(ctx context.Context, method, path string, body, result any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal body: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP %s failed: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
