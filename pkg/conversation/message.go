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

// Package conversation holds the conversation log of one thread.
//
// A conversation is an ordered, append-only sequence of messages. Three
// kinds of messages exist:
//
//   - user messages carry the text typed by the caller
//   - assistant messages carry generated text and the tool calls the model
//     asked for
//   - tool messages carry the result of one tool call, keyed by its ID
//
// The order of the log is the context window handed to the model, so
// messages are never removed or rewritten once appended.
package conversation

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the variant of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a tool invocation requested by the assistant.
type ToolCall struct {
	// ID is unique within a turn and links the call to its result.
	ID string `json:"id"`

	// Name must match a registered tool.
	Name string `json:"name"`

	// Arguments is the structured payload passed to the tool.
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Message is one entry of the conversation log.
//
// Role selects which fields are meaningful:
//   - RoleUser: Text
//   - RoleAssistant: Text, ToolCalls
//   - RoleTool: ToolCallID, ToolName, Text (the result), IsError
type Message struct {
	ID         string     `json:"id"`
	Role       Role       `json:"role"`
	Text       string     `json:"text,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
	IsError    bool       `json:"is_error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NewUserMessage creates a user message.
func NewUserMessage(text string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Text:      text,
		CreatedAt: time.Now(),
	}
}

// NewAssistantMessage creates an assistant message with optional tool calls.
func NewAssistantMessage(text string, calls ...ToolCall) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Text:      text,
		ToolCalls: calls,
		CreatedAt: time.Now(),
	}
}

// NewToolResultMessage creates the result message for call.
func NewToolResultMessage(call ToolCall, result string, isError bool) Message {
	return Message{
		ID:         uuid.NewString(),
		Role:       RoleTool,
		Text:       result,
		ToolCallID: call.ID,
		ToolName:   call.Name,
		IsError:    isError,
		CreatedAt:  time.Now(),
	}
}

// HasToolCalls reports whether m is an assistant message requesting tools.
func (m Message) HasToolCalls() bool {
	return m.Role == RoleAssistant && len(m.ToolCalls) > 0
}

// NewToolCallID returns a fresh tool call identifier.
func NewToolCallID() string {
	return "call_" + uuid.NewString()[:8]
}
