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

package config

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"
	"time"
)

// MCP transports.
const (
	MCPTransportStdio          = "stdio"
	MCPTransportSSE            = "sse"
	MCPTransportStreamableHTTP = "streamable-http"
)

// MCPConfig lists the MCP servers whose tools the assistant may call.
type MCPConfig struct {
	// ConfigFile is an optional mcp_server.json in the
	// {"mcpServers": {...}} layout used by desktop MCP clients.
	ConfigFile string `yaml:"config_file,omitempty" json:"config_file,omitempty" jsonschema:"title=MCP Config File,description=Path to an mcp_server.json file"`

	// Servers are keyed by server name. Entries here override entries of
	// the same name in ConfigFile.
	Servers map[string]*MCPServerConfig `yaml:"servers,omitempty" json:"servers,omitempty" jsonschema:"title=Servers"`
}

// MCPServerConfig configures one MCP server connection.
type MCPServerConfig struct {
	// Transport is stdio, sse or streamable-http. Inferred when empty.
	Transport string `yaml:"transport,omitempty" json:"transport,omitempty" jsonschema:"title=Transport,enum=stdio,enum=sse,enum=streamable-http"`

	// URL of a remote server.
	URL string `yaml:"url,omitempty" json:"url,omitempty" jsonschema:"title=URL"`

	// Command launches a local stdio server.
	Command string            `yaml:"command,omitempty" json:"command,omitempty" jsonschema:"title=Command"`
	Args    []string          `yaml:"args,omitempty" json:"args,omitempty" jsonschema:"title=Arguments"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty" jsonschema:"title=Environment"`

	// Filter limits the exposed tools to these names.
	Filter []string `yaml:"filter,omitempty" json:"filter,omitempty" jsonschema:"title=Tool Filter"`

	// CallTimeout bounds a single tool call.
	CallTimeout time.Duration `yaml:"call_timeout,omitempty" json:"call_timeout,omitempty" jsonschema:"title=Call Timeout"`
}

// SetDefaults applies default values.
func (c *MCPConfig) SetDefaults() {
	if c.Servers == nil {
		c.Servers = make(map[string]*MCPServerConfig)
	}
	for _, s := range c.Servers {
		if s != nil {
			s.SetDefaults()
		}
	}
}

// Validate checks every server entry.
func (c *MCPConfig) Validate() error {
	for _, name := range slices.Sorted(maps.Keys(c.Servers)) {
		s := c.Servers[name]
		if s == nil {
			return fmt.Errorf("server %q is empty", name)
		}
		if err := s.Validate(); err != nil {
			return fmt.Errorf("server %q: %w", name, err)
		}
	}
	return nil
}

// SetDefaults infers the transport.
func (c *MCPServerConfig) SetDefaults() {
	if c.Transport == "" {
		if c.Command != "" {
			c.Transport = MCPTransportStdio
		} else {
			c.Transport = MCPTransportSSE
		}
	}
}

// Validate checks the server configuration.
func (c *MCPServerConfig) Validate() error {
	switch c.Transport {
	case MCPTransportStdio:
		if c.Command == "" {
			return fmt.Errorf("command is required for stdio transport")
		}
	case MCPTransportSSE, MCPTransportStreamableHTTP:
		if c.URL == "" {
			return fmt.Errorf("url is required for %s transport", c.Transport)
		}
	default:
		return fmt.Errorf("invalid transport %q (valid: stdio, sse, streamable-http)", c.Transport)
	}
	if c.CallTimeout < 0 {
		return fmt.Errorf("call_timeout must be non-negative")
	}
	return nil
}

// mcpServerFile is the mcp_server.json layout.
type mcpServerFile struct {
	MCPServers map[string]*MCPServerConfig `json:"mcpServers"`
}

// LoadMCPServerFile reads an mcp_server.json file. Env values are
// expanded.
func LoadMCPServerFile(path string) (map[string]*MCPServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read MCP config %s: %w", path, err)
	}

	var file mcpServerFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse MCP config %s: %w", path, err)
	}

	for name, s := range file.MCPServers {
		if s == nil {
			return nil, fmt.Errorf("server %q is empty", name)
		}
		s.Command = expandEnvString(s.Command)
		s.URL = expandEnvString(s.URL)
		for i, a := range s.Args {
			s.Args[i] = expandEnvString(a)
		}
		for k, v := range s.Env {
			s.Env[k] = expandEnvString(v)
		}
		s.SetDefaults()
	}
	return file.MCPServers, nil
}

// ResolveServers merges ConfigFile with Servers. Inline entries win.
func (c *MCPConfig) ResolveServers() (map[string]*MCPServerConfig, error) {
	out := make(map[string]*MCPServerConfig)
	if c.ConfigFile != "" {
		fromFile, err := LoadMCPServerFile(c.ConfigFile)
		if err != nil {
			return nil, err
		}
		maps.Copy(out, fromFile)
	}
	maps.Copy(out, c.Servers)

	for _, name := range slices.Sorted(maps.Keys(out)) {
		if err := out[name].Validate(); err != nil {
			return nil, fmt.Errorf("server %q: %w", name, err)
		}
	}
	return out, nil
}
