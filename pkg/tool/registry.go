package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

// StaticRegistry is a Registry whose tool set is fixed at construction.
type StaticRegistry struct {
	tools map[string]Tool
	descs []Descriptor
}

// NewRegistry creates a registry holding tools. Tool names must be unique
// and non-empty.
func NewRegistry(tools ...Tool) (*StaticRegistry, error) {
	r := &StaticRegistry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		desc := t.Descriptor()
		if strings.TrimSpace(desc.Name) == "" {
			return nil, fmt.Errorf("tool name is required")
		}
		if _, exists := r.tools[desc.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTool, desc.Name)
		}
		r.tools[desc.Name] = t
		r.descs = append(r.descs, desc)
	}
	slices.SortFunc(r.descs, func(a, b Descriptor) int {
		return strings.Compare(a.Name, b.Name)
	})
	return r, nil
}

// NewRegistryFromToolsets resolves every toolset and registers its tools
// alongside the given local tools.
func NewRegistryFromToolsets(ctx context.Context, toolsets []Toolset, local ...Tool) (*StaticRegistry, error) {
	all := slices.Clone(local)
	for _, ts := range toolsets {
		tools, err := ts.Tools(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load toolset %q: %w", ts.Name(), err)
		}
		slog.Debug("Loaded toolset", "toolset", ts.Name(), "tools", len(tools))
		all = append(all, tools...)
	}
	return NewRegistry(all...)
}

// Descriptors implements Registry.
func (r *StaticRegistry) Descriptors() []Descriptor {
	return slices.Clone(r.descs)
}

// Len returns the number of registered tools.
func (r *StaticRegistry) Len() int {
	return len(r.descs)
}

// Call implements Registry.
func (r *StaticRegistry) Call(ctx context.Context, name string, args map[string]any) (result string, err error) {
	t, ok := r.tools[name]
	if !ok {
		return "", &UnknownToolError{Name: name}
	}

	defer func() {
		if p := recover(); p != nil {
			slog.Error("Tool panicked", "tool", name, "panic", p)
			err = &ToolExecutionError{Name: name, Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	out, callErr := t.Call(ctx, args)
	if callErr != nil {
		return "", &ToolExecutionError{Name: name, Err: callErr}
	}

	text, err := Stringify(out)
	if err != nil {
		return "", &ToolExecutionError{Name: name, Err: err}
	}
	return text, nil
}

// Stringify renders a tool result as text. Strings pass through and
// everything else is encoded as JSON.
func Stringify(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case []byte:
		return string(val), nil
	case fmt.Stringer:
		return val.String(), nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode tool result: %w", err)
	}
	return string(data), nil
}

var _ Registry = (*StaticRegistry)(nil)
