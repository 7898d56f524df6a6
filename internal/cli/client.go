package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// ErrNotConnected is returned when a call is made before Connect.
var ErrNotConnected = errors.New("client not connected")

// CLIClient talks to a running serve instance over its control API.
type CLIClient struct {
	endpoint string
	version  string
	client   *client.Client
	timeout  time.Duration
}

// NewCLIClient creates a client for the control API at endpoint, the base
// URL without the /sse suffix.
func NewCLIClient(endpoint, version string) *CLIClient {
	return &CLIClient{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		version:  version,
		timeout:  30 * time.Second,
	}
}

// Connect opens the event stream and performs the MCP handshake.
func (c *CLIClient) Connect(ctx context.Context) error {
	sseClient, err := client.NewSSEMCPClient(c.endpoint + "/sse")
	if err != nil {
		return fmt.Errorf("failed to create SSE client: %w", err)
	}
	if err := sseClient.Start(ctx); err != nil {
		sseClient.Close()
		return fmt.Errorf("failed to reach control API at %s, is `intifacectl serve` running? %w", c.endpoint, err)
	}
	c.client = sseClient

	if err := c.initialize(ctx); err != nil {
		c.Close()
		return fmt.Errorf("initialization failed: %w", err)
	}
	return nil
}

// CallTool executes a tool and returns the raw result.
func (c *CLIClient) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	if c.client == nil {
		return nil, ErrNotConnected
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.client.CallTool(timeoutCtx, req)
	if err != nil {
		return nil, fmt.Errorf("tool call failed: %w", err)
	}
	return result, nil
}

// CallToolSimple executes a tool and returns its first text content. A
// tool-level failure is returned as an error.
func (c *CLIClient) CallToolSimple(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	result, err := c.CallTool(ctx, name, args)
	if err != nil {
		return "", err
	}
	texts := textContents(result)
	if result.IsError {
		return "", errors.New(strings.Join(texts, "\n"))
	}
	if len(texts) == 0 {
		return "", nil
	}
	return texts[0], nil
}

// Close closes the connection.
func (c *CLIClient) Close() error {
	if c.client != nil {
		err := c.client.Close()
		c.client = nil
		return err
	}
	return nil
}

func (c *CLIClient) initialize(ctx context.Context) error {
	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{
		Name:    "intifacectl-cli",
		Version: c.version,
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.client.Initialize(timeoutCtx, req)
	return err
}

func textContents(result *mcp.CallToolResult) []string {
	var out []string
	for _, content := range result.Content {
		if tc, ok := mcp.AsTextContent(content); ok {
			out = append(out, tc.Text)
		}
	}
	return out
}
