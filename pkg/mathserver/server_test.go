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

package mathserver

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInProcessClient(t *testing.T) *client.Client {
	t.Helper()

	c, err := client.NewInProcessClient(New("test").MCPServer())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "test", Version: "0"}
	_, err = c.Initialize(ctx, initReq)
	require.NoError(t, err)
	return c
}

func textOf(t *testing.T, content mcp.Content) string {
	t.Helper()
	switch c := content.(type) {
	case mcp.TextContent:
		return c.Text
	case *mcp.TextContent:
		return c.Text
	}
	t.Fatalf("unexpected content type %T", content)
	return ""
}

func TestServer_ListsTools(t *testing.T) {
	c := newInProcessClient(t)

	resp, err := c.ListTools(context.Background(), mcp.ListToolsRequest{})
	require.NoError(t, err)

	var names []string
	for _, tl := range resp.Tools {
		names = append(names, tl.Name)
	}
	assert.ElementsMatch(t, []string{"add", "multiply"}, names)
}

func TestServer_CallTools(t *testing.T) {
	c := newInProcessClient(t)
	ctx := context.Background()

	req := mcp.CallToolRequest{}
	req.Params.Name = "add"
	req.Params.Arguments = map[string]any{"a": 23, "b": 45}
	resp, err := c.CallTool(ctx, req)
	require.NoError(t, err)
	require.False(t, resp.IsError)
	require.Len(t, resp.Content, 1)
	assert.Equal(t, "The sum of 23 and 45 is 68", textOf(t, resp.Content[0]))

	req.Params.Name = "multiply"
	req.Params.Arguments = map[string]any{"a": 6, "b": 7}
	resp, err = c.CallTool(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "42", textOf(t, resp.Content[0]))
}

func TestServer_CallToolBadArguments(t *testing.T) {
	c := newInProcessClient(t)

	req := mcp.CallToolRequest{}
	req.Params.Name = "add"
	req.Params.Arguments = map[string]any{"a": "x", "b": 1}
	resp, err := c.CallTool(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, resp.IsError)
}

func TestServer_GreetUserPrompt(t *testing.T) {
	c := newInProcessClient(t)

	req := mcp.GetPromptRequest{}
	req.Params.Name = "greet_user"
	req.Params.Arguments = map[string]string{"name": "Ada", "style": "casual"}
	resp, err := c.GetPrompt(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "Please write a casual, relaxed greeting for someone named Ada.", textOf(t, resp.Messages[0].Content))
}
