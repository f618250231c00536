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
	"fmt"
	"os"
)

// DefaultPrompt is used when an inbound A2A message carries no text.
const DefaultPrompt = "add two numbers 23 and 45"

// AgentConfig configures the assistant.
type AgentConfig struct {
	// Instruction replaces the built-in system prompt. It may contain the
	// {tools} and {working_dir} placeholders.
	Instruction string `yaml:"instruction,omitempty" json:"instruction,omitempty" jsonschema:"title=Instruction,description=System prompt template"`

	// WorkingDir is reported to the model. Defaults to MCP_FILESYSTEM_DIR,
	// then the process cwd.
	WorkingDir string `yaml:"working_dir,omitempty" json:"working_dir,omitempty" jsonschema:"title=Working Directory"`

	// DefaultPrompt is used for empty inbound messages.
	DefaultPrompt string `yaml:"default_prompt,omitempty" json:"default_prompt,omitempty" jsonschema:"title=Default Prompt"`

	// MaxToolConcurrency bounds parallel tool calls in one tool node visit.
	MaxToolConcurrency int `yaml:"max_tool_concurrency,omitempty" json:"max_tool_concurrency,omitempty" jsonschema:"title=Max Tool Concurrency,minimum=1,default=8"`

	// MaxIterations bounds assistant visits per turn. Zero means unbounded.
	MaxIterations int `yaml:"max_iterations,omitempty" json:"max_iterations,omitempty" jsonschema:"title=Max Iterations,minimum=0"`
}

// SetDefaults applies default values.
func (c *AgentConfig) SetDefaults() {
	if c.WorkingDir == "" {
		c.WorkingDir = os.Getenv("MCP_FILESYSTEM_DIR")
	}
	if c.WorkingDir == "" {
		if wd, err := os.Getwd(); err == nil {
			c.WorkingDir = wd
		}
	}
	if c.DefaultPrompt == "" {
		c.DefaultPrompt = DefaultPrompt
	}
	if c.MaxToolConcurrency == 0 {
		c.MaxToolConcurrency = 8
	}
}

// Validate checks the agent configuration.
func (c *AgentConfig) Validate() error {
	if c.MaxToolConcurrency < 1 {
		return fmt.Errorf("max_tool_concurrency must be at least 1")
	}
	if c.MaxIterations < 0 {
		return fmt.Errorf("max_iterations must be non-negative")
	}
	return nil
}
