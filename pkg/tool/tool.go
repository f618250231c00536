// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tool defines the tools an agent can invoke.
//
// Tools are registered explicitly: every tool publishes a Descriptor
// (name, description, JSON schema of its input) built at startup. No
// schema is derived by inspecting Go functions.
//
// # Creating Tools
//
//	add := tool.NewFunc(tool.Descriptor{
//	    Name:        "add",
//	    Description: "Add two numbers",
//	    InputSchema: tool.ObjectSchema(map[string]any{
//	        "a": map[string]any{"type": "number"},
//	        "b": map[string]any{"type": "number"},
//	    }, "a", "b"),
//	}, func(ctx context.Context, args map[string]any) (any, error) {
//	    ...
//	})
//
//	registry, err := tool.NewRegistry(add)
//
// Toolsets group tools that are discovered at startup, such as the tools
// exposed by MCP servers (see mcptoolset).
package tool

import (
	"context"
)

// Descriptor describes a tool to the model.
type Descriptor struct {
	// Name is unique within a registry.
	Name string `json:"name"`

	// Description tells the model when to use the tool.
	Description string `json:"description"`

	// InputSchema is the JSON schema of the arguments object.
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

// Tool is a named callable with a fixed argument schema.
type Tool interface {
	// Descriptor returns the static description of the tool.
	Descriptor() Descriptor

	// Call executes the tool. The result is stringified by the registry
	// when it is not already text.
	Call(ctx context.Context, args map[string]any) (any, error)
}

// Toolset groups related tools resolved once at startup.
type Toolset interface {
	// Name returns the name of this toolset.
	Name() string

	// Tools returns the tools the set currently exposes.
	Tools(ctx context.Context) ([]Tool, error)

	// Close releases the resources held by the set.
	Close() error
}

// Registry resolves tool names and executes tools.
type Registry interface {
	// Descriptors returns every registered tool, sorted by name.
	Descriptors() []Descriptor

	// Call executes the named tool and returns its textual result.
	// It returns *UnknownToolError when name is not registered and
	// *ToolExecutionError when the tool fails.
	Call(ctx context.Context, name string, args map[string]any) (string, error)
}

// HandlerFunc is the signature of a function backed tool.
type HandlerFunc func(ctx context.Context, args map[string]any) (any, error)

// Func is a Tool backed by a plain function.
type Func struct {
	desc    Descriptor
	handler HandlerFunc
}

// NewFunc creates a function backed tool.
func NewFunc(desc Descriptor, handler HandlerFunc) *Func {
	return &Func{desc: desc, handler: handler}
}

func (f *Func) Descriptor() Descriptor { return f.desc }

func (f *Func) Call(ctx context.Context, args map[string]any) (any, error) {
	return f.handler(ctx, args)
}

// ObjectSchema builds a JSON schema for an object with the given
// properties and required keys.
func ObjectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

var _ Tool = (*Func)(nil)
