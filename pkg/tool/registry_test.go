package tool_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/scout/pkg/tool"
)

func echoTool(name string, fn tool.HandlerFunc) tool.Tool {
	return tool.NewFunc(tool.Descriptor{
		Name:        name,
		Description: "test tool " + name,
		InputSchema: tool.ObjectSchema(map[string]any{"x": map[string]any{"type": "string"}}),
	}, fn)
}

type staticToolset struct {
	name  string
	tools []tool.Tool
	err   error
}

func (s *staticToolset) Name() string { return s.name }
func (s *staticToolset) Tools(context.Context) ([]tool.Tool, error) {
	return s.tools, s.err
}
func (s *staticToolset) Close() error { return nil }

func TestNewRegistry_RejectsDuplicates(t *testing.T) {
	noop := func(context.Context, map[string]any) (any, error) { return nil, nil }

	_, err := tool.NewRegistry(echoTool("add", noop), echoTool("add", noop))

	assert.ErrorIs(t, err, tool.ErrDuplicateTool)
}

func TestNewRegistry_RejectsEmptyName(t *testing.T) {
	_, err := tool.NewRegistry(echoTool(" ", nil))
	assert.Error(t, err)
}

func TestRegistry_DescriptorsSorted(t *testing.T) {
	noop := func(context.Context, map[string]any) (any, error) { return nil, nil }
	r, err := tool.NewRegistry(echoTool("multiply", noop), echoTool("add", noop))
	require.NoError(t, err)

	descs := r.Descriptors()
	require.Len(t, descs, 2)
	assert.Equal(t, "add", descs[0].Name)
	assert.Equal(t, "multiply", descs[1].Name)
	assert.Equal(t, "object", descs[0].InputSchema["type"])
}

func TestRegistry_CallUnknownTool(t *testing.T) {
	r, err := tool.NewRegistry()
	require.NoError(t, err)

	_, err = r.Call(context.Background(), "nonexistent_tool", nil)

	var unknown *tool.UnknownToolError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "nonexistent_tool", unknown.Name)
}

func TestRegistry_CallWrapsToolErrors(t *testing.T) {
	boom := errors.New("boom")
	r, err := tool.NewRegistry(echoTool("fail", func(context.Context, map[string]any) (any, error) {
		return nil, boom
	}))
	require.NoError(t, err)

	_, err = r.Call(context.Background(), "fail", nil)

	var execErr *tool.ToolExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, "fail", execErr.Name)
	assert.ErrorIs(t, err, boom)
}

func TestRegistry_CallRecoversPanics(t *testing.T) {
	r, err := tool.NewRegistry(echoTool("panics", func(context.Context, map[string]any) (any, error) {
		panic("kaboom")
	}))
	require.NoError(t, err)

	_, err = r.Call(context.Background(), "panics", nil)

	var execErr *tool.ToolExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Contains(t, err.Error(), "kaboom")
}

func TestRegistry_CallStringifiesResults(t *testing.T) {
	r, err := tool.NewRegistry(
		echoTool("text", func(_ context.Context, args map[string]any) (any, error) {
			return "hello " + args["x"].(string), nil
		}),
		echoTool("number", func(context.Context, map[string]any) (any, error) {
			return 42, nil
		}),
		echoTool("object", func(context.Context, map[string]any) (any, error) {
			return map[string]any{"ok": true}, nil
		}),
	)
	require.NoError(t, err)
	ctx := context.Background()

	out, err := r.Call(ctx, "text", map[string]any{"x": "world"})
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)

	out, err = r.Call(ctx, "number", nil)
	require.NoError(t, err)
	assert.Equal(t, "42", out)

	out, err = r.Call(ctx, "object", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, out)
}

func TestNewRegistryFromToolsets(t *testing.T) {
	noop := func(context.Context, map[string]any) (any, error) { return "ok", nil }
	ts := &staticToolset{name: "math", tools: []tool.Tool{echoTool("add", noop)}}

	r, err := tool.NewRegistryFromToolsets(context.Background(), []tool.Toolset{ts}, echoTool("local", noop))
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())

	failing := &staticToolset{name: "broken", err: errors.New("connection refused")}
	_, err = tool.NewRegistryFromToolsets(context.Background(), []tool.Toolset{failing})
	assert.ErrorContains(t, err, "broken")
}
