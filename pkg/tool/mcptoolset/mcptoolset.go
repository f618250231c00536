// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package mcptoolset provides a Toolset implementation for MCP servers.
//
// MCP (Model Context Protocol) allows connecting to external tool servers
// that expose tools via a standardized protocol.
//
// The toolset connects lazily: the MCP session is only established when
// Tools() is first called. All transports go through the mcp-go client:
//   - stdio: spawns Command and talks over its stdin/stdout
//   - sse: legacy HTTP+SSE transport
//   - streamable-http: single endpoint HTTP transport
package mcptoolset

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kadirpekel/scout/pkg/tool"
)

// Transport names.
const (
	TransportStdio          = "stdio"
	TransportSSE            = "sse"
	TransportStreamableHTTP = "streamable-http"
)

const (
	clientName      = "scout"
	protocolVersion = "2024-11-05"

	// DefaultCallTimeout bounds a single tool call.
	DefaultCallTimeout = 5 * time.Minute
)

// Config configures an MCP toolset.
type Config struct {
	// Name identifies this toolset.
	Name string

	// Transport specifies the MCP transport (stdio, sse, streamable-http).
	// Defaults to stdio when Command is set and sse otherwise.
	Transport string

	// URL is the MCP server URL (for HTTP transports).
	URL string

	// Command for stdio transport.
	Command string

	// Args for stdio transport.
	Args []string

	// Env for stdio transport.
	Env map[string]string

	// Filter limits which tools are exposed.
	Filter []string

	// CallTimeout bounds a single tool call (default: 5m).
	CallTimeout time.Duration

	// Version is reported to the server during initialization.
	Version string
}

// Client is the subset of the mcp-go client the toolset needs.
type Client interface {
	Start(ctx context.Context) error
	Initialize(ctx context.Context, request mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// Option configures a Toolset.
type Option func(*Toolset)

// WithClient makes the toolset use an already constructed client instead
// of dialing one from the config.
func WithClient(c Client) Option {
	return func(t *Toolset) {
		t.dial = func(context.Context) (Client, error) { return c, nil }
	}
}

// Toolset is an MCP-backed toolset with lazy initialization.
type Toolset struct {
	cfg  Config
	dial func(ctx context.Context) (Client, error)

	mu         sync.Mutex
	client     Client
	tools      []tool.Tool
	serverName string
	connected  bool
	filterSet  map[string]bool
}

// New creates a new MCP toolset.
func New(cfg Config, opts ...Option) (*Toolset, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("toolset name is required")
	}

	if cfg.Transport == "" {
		if cfg.Command != "" {
			cfg.Transport = TransportStdio
		} else {
			cfg.Transport = TransportSSE
		}
	}
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	var filterSet map[string]bool
	if len(cfg.Filter) > 0 {
		filterSet = make(map[string]bool, len(cfg.Filter))
		for _, name := range cfg.Filter {
			filterSet[name] = true
		}
	}

	t := &Toolset{
		cfg:       cfg,
		filterSet: filterSet,
	}
	t.dial = t.dialConfigured

	for _, opt := range opts {
		opt(t)
	}

	return t, nil
}

// Name returns the toolset name.
func (t *Toolset) Name() string {
	return t.cfg.Name
}

// ServerName returns the name the server reported during initialization.
func (t *Toolset) ServerName() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.serverName
}

// Tools returns the available tools, connecting lazily if needed.
func (t *Toolset) Tools(ctx context.Context) ([]tool.Tool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.connected {
		if err := t.connect(ctx); err != nil {
			return nil, fmt.Errorf("failed to connect to MCP server %q: %w", t.cfg.Name, err)
		}
	}

	return slices.Clone(t.tools), nil
}

func (t *Toolset) dialConfigured(ctx context.Context) (Client, error) {
	switch t.cfg.Transport {
	case TransportStdio:
		if t.cfg.Command == "" {
			return nil, fmt.Errorf("command is required for stdio transport")
		}
		return client.NewStdioMCPClient(t.cfg.Command, convertEnv(t.cfg.Env), t.cfg.Args...)
	case TransportSSE:
		if t.cfg.URL == "" {
			return nil, fmt.Errorf("url is required for sse transport")
		}
		return client.NewSSEMCPClient(t.cfg.URL)
	case TransportStreamableHTTP:
		if t.cfg.URL == "" {
			return nil, fmt.Errorf("url is required for streamable-http transport")
		}
		return client.NewStreamableHttpClient(t.cfg.URL)
	default:
		return nil, fmt.Errorf("unsupported MCP transport %q", t.cfg.Transport)
	}
}

// connect establishes the MCP session and lists the server's tools.
func (t *Toolset) connect(ctx context.Context) error {
	mcpClient, err := t.dial(ctx)
	if err != nil {
		return fmt.Errorf("failed to create MCP client: %w", err)
	}

	if err := mcpClient.Start(ctx); err != nil {
		_ = mcpClient.Close()
		return fmt.Errorf("failed to start MCP client: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    clientName,
		Version: t.cfg.Version,
	}
	initReq.Params.ProtocolVersion = protocolVersion

	initResp, err := mcpClient.Initialize(ctx, initReq)
	if err != nil {
		_ = mcpClient.Close()
		return fmt.Errorf("failed to initialize MCP: %w", err)
	}

	listResp, err := mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		_ = mcpClient.Close()
		return fmt.Errorf("failed to list tools: %w", err)
	}

	var tools []tool.Tool
	for _, remote := range listResp.Tools {
		if t.filterSet != nil && !t.filterSet[remote.Name] {
			continue
		}
		tools = append(tools, &mcpTool{
			toolset: t,
			desc: tool.Descriptor{
				Name:        remote.Name,
				Description: remote.Description,
				InputSchema: convertSchema(remote.InputSchema),
			},
		})
	}

	t.client = mcpClient
	t.tools = tools
	t.connected = true
	if initResp != nil {
		t.serverName = initResp.ServerInfo.Name
	}

	slog.Info("Connected to MCP server",
		"name", t.cfg.Name,
		"transport", t.cfg.Transport,
		"server", t.serverName,
		"tools", len(tools),
	)

	return nil
}

// Close closes the MCP connection.
func (t *Toolset) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.connected = false
	t.tools = nil
	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}

func (t *Toolset) session() (Client, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return nil, fmt.Errorf("MCP client not connected")
	}
	return t.client, nil
}

// mcpTool exposes one remote MCP tool as a tool.Tool.
type mcpTool struct {
	toolset *Toolset
	desc    tool.Descriptor
}

func (w *mcpTool) Descriptor() tool.Descriptor {
	return w.desc
}

func (w *mcpTool) Call(ctx context.Context, args map[string]any) (any, error) {
	mcpClient, err := w.toolset.session()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, w.toolset.cfg.CallTimeout)
	defer cancel()

	req := mcp.CallToolRequest{}
	req.Params.Name = w.desc.Name
	req.Params.Arguments = args

	resp, err := mcpClient.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("MCP call failed: %w", err)
	}

	text := resultText(resp)
	if resp.IsError {
		if text == "" {
			text = "unknown error"
		}
		return nil, fmt.Errorf("%s", text)
	}
	return text, nil
}

// resultText renders an MCP tool result as text. Text items and text
// resources are joined by newlines; a result without them falls back to
// its structured content.
func resultText(resp *mcp.CallToolResult) string {
	var texts []string
	for _, c := range resp.Content {
		switch tc := c.(type) {
		case mcp.TextContent:
			texts = append(texts, tc.Text)
		case *mcp.TextContent:
			texts = append(texts, tc.Text)
		case mcp.EmbeddedResource:
			texts = appendResourceText(texts, tc.Resource)
		case *mcp.EmbeddedResource:
			texts = appendResourceText(texts, tc.Resource)
		}
	}
	if len(texts) == 0 && resp.StructuredContent != nil {
		out, err := tool.Stringify(resp.StructuredContent)
		if err == nil {
			return out
		}
		slog.Warn("Discarding unencodable structured content", "error", err)
	}
	return strings.Join(texts, "\n")
}

func appendResourceText(texts []string, r mcp.ResourceContents) []string {
	switch rc := r.(type) {
	case mcp.TextResourceContents:
		return append(texts, rc.Text)
	case *mcp.TextResourceContents:
		return append(texts, rc.Text)
	}
	return texts
}

// convertEnv converts map to slice of "KEY=VALUE".
func convertEnv(env map[string]string) []string {
	if env == nil {
		return nil
	}
	result := make([]string, 0, len(env))
	for k, v := range env {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	return result
}

// convertSchema converts MCP tool schema to map.
func convertSchema(schema mcp.ToolInputSchema) map[string]any {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	return result
}

var (
	_ tool.Toolset = (*Toolset)(nil)
	_ tool.Tool    = (*mcpTool)(nil)
)
