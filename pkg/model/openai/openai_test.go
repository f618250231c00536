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

package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/scout/pkg/conversation"
	"github.com/kadirpekel/scout/pkg/model"
	"github.com/kadirpekel/scout/pkg/tool"
)

func sseServer(t *testing.T, chunks []string, captured *chatRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if captured != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}
		w.Header().Set("Content-Type", "text/event-stream")
		var b strings.Builder
		for _, c := range chunks {
			fmt.Fprintf(&b, "data: %s\n\n", c)
		}
		b.WriteString("data: [DONE]\n\n")
		_, _ = w.Write([]byte(b.String()))
	}))
}

func drain(t *testing.T, c *Client, req *model.Request) ([]*model.Response, error) {
	t.Helper()
	var out []*model.Response
	for resp, err := range c.GenerateContent(context.Background(), req) {
		if err != nil {
			return out, err
		}
		out = append(out, resp)
	}
	return out, nil
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestNew_GroqDefaults(t *testing.T) {
	c, err := New(Config{APIKey: "k", Provider: model.ProviderGroq})
	require.NoError(t, err)
	assert.Equal(t, GroqBaseURL, c.baseURL)
	assert.Equal(t, GroqDefaultModel, c.Name())
	assert.Equal(t, model.ProviderGroq, c.Provider())

	c, err = New(Config{APIKey: "k"}, WithModel("gpt-4o-mini"), WithTemperature(0))
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", c.Name())
	require.NotNil(t, c.temperature)
	assert.Equal(t, 0.0, *c.temperature)
}

func TestGenerateContent_Text(t *testing.T) {
	var captured chatRequest
	srv := sseServer(t, []string{
		`{"id":"1","choices":[{"index":0,"delta":{"role":"assistant","content":"The sum "}}]}`,
		`{"id":"1","choices":[{"index":0,"delta":{"content":"is 68."},"finish_reason":"stop"}]}`,
		`{"id":"1","choices":[],"usage":{"prompt_tokens":9,"completion_tokens":5,"total_tokens":14}}`,
	}, &captured)
	defer srv.Close()

	c, err := New(Config{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)

	resps, err := drain(t, c, &model.Request{
		SystemInstruction: "system prompt",
		Messages:          []conversation.Message{conversation.NewUserMessage("add 23 and 45")},
	})
	require.NoError(t, err)
	require.Len(t, resps, 3)

	final := resps[2]
	assert.Equal(t, "The sum is 68.", final.Message.Text)
	assert.Equal(t, 14, final.Usage.TotalTokens)
	assert.Equal(t, model.FinishReasonStop, final.FinishReason)

	assert.True(t, captured.Stream)
	require.NotNil(t, captured.StreamOptions)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
}

func TestGenerateContent_StreamedToolCalls(t *testing.T) {
	srv := sseServer(t, []string{
		`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_abc","type":"function","function":{"name":"add","arguments":""}}]}}]}`,
		`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"a\":23,"}}]}}]}`,
		`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"b\":45}"}}]}}]}`,
		`{"choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
	}, nil)
	defer srv.Close()

	c, err := New(Config{APIKey: "test-key", BaseURL: srv.URL, Provider: model.ProviderGroq})
	require.NoError(t, err)

	resps, err := drain(t, c, &model.Request{Messages: []conversation.Message{conversation.NewUserMessage("add")}})
	require.NoError(t, err)

	final := resps[len(resps)-1]
	require.True(t, final.HasToolCalls())
	call := final.Message.ToolCalls[0]
	assert.Equal(t, "call_abc", call.ID)
	assert.Equal(t, "add", call.Name)
	assert.Equal(t, map[string]any{"a": 23.0, "b": 45.0}, call.Arguments)
	assert.Equal(t, model.FinishReasonToolCalls, final.FinishReason)

	for _, r := range resps[:len(resps)-1] {
		assert.Equal(t, conversation.FragmentToolCall, r.Fragment.Kind)
		assert.Equal(t, "call_abc", r.Fragment.ToolCallID)
	}
}

func TestGenerateContent_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"invalid api key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, err := New(Config{APIKey: "bad", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = drain(t, c, &model.Request{Messages: []conversation.Message{conversation.NewUserMessage("hi")}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestBuildRequest_History(t *testing.T) {
	c, err := New(Config{APIKey: "k"})
	require.NoError(t, err)

	call := conversation.ToolCall{ID: "call_1", Name: "add", Arguments: map[string]any{"a": 1.0, "b": 2.0}}
	req := c.buildRequest(&model.Request{
		Messages: []conversation.Message{
			conversation.NewUserMessage("add 1 and 2"),
			conversation.NewAssistantMessage("", call),
			conversation.NewToolResultMessage(call, "3", false),
		},
		Tools: []tool.Descriptor{{Name: "add", Description: "Add"}},
	})

	require.Len(t, req.Messages, 3)
	assistant := req.Messages[1]
	assert.Nil(t, assistant.Content, "tool-only assistant turns carry no content")
	require.Len(t, assistant.ToolCalls, 1)
	assert.JSONEq(t, `{"a":1,"b":2}`, assistant.ToolCalls[0].Function.Arguments)

	result := req.Messages[2]
	assert.Equal(t, "tool", result.Role)
	assert.Equal(t, "call_1", result.ToolCallID)

	require.Len(t, req.Tools, 1)
	assert.Equal(t, "object", req.Tools[0].Function.Parameters["type"])
}
