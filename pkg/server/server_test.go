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

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/scout/pkg/checkpoint"
	"github.com/kadirpekel/scout/pkg/config"
	"github.com/kadirpekel/scout/pkg/conversation"
	"github.com/kadirpekel/scout/pkg/graph"
	"github.com/kadirpekel/scout/pkg/mathserver"
	"github.com/kadirpekel/scout/pkg/observability"
	"github.com/kadirpekel/scout/pkg/session"
	"github.com/kadirpekel/scout/pkg/testutils"
	"github.com/kadirpekel/scout/pkg/tool"
)

// fakeTurner yields fixed fragments and records its inputs.
type fakeTurner struct {
	mu      sync.Mutex
	frags   []conversation.Fragment
	err     error
	threads []string
	texts   []string
}

func (f *fakeTurner) Turn(_ context.Context, threadID, text string) iter.Seq2[conversation.Fragment, error] {
	f.mu.Lock()
	f.threads = append(f.threads, threadID)
	f.texts = append(f.texts, text)
	f.mu.Unlock()

	return func(yield func(conversation.Fragment, error) bool) {
		for _, frag := range f.frags {
			if !yield(frag, nil) {
				return
			}
		}
		if f.err != nil {
			yield(conversation.Fragment{}, f.err)
		}
	}
}

type rpcPart struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

type rpcResponse struct {
	Result struct {
		Kind      string `json:"kind"`
		ContextID string `json:"contextId"`
		Status    struct {
			State   string `json:"state"`
			Message *struct {
				Parts []rpcPart `json:"parts"`
			} `json:"message"`
		} `json:"status"`
		Artifacts []struct {
			Parts []rpcPart `json:"parts"`
		} `json:"artifacts"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newTestServer(t *testing.T, turner Turner, opts ...HTTPServerOption) *httptest.Server {
	t.Helper()
	srv := NewHTTPServer(&config.ServerConfig{}, turner, opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func sendMessage(t *testing.T, url, contextID, text string) rpcResponse {
	t.Helper()
	msg := map[string]any{
		"kind":      "message",
		"messageId": "msg-1",
		"role":      "user",
		"parts":     []map[string]any{{"kind": "text", "text": text}},
	}
	if contextID != "" {
		msg["contextId"] = contextID
	}
	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "message/send",
		"params":  map[string]any{"message": msg},
	})
	require.NoError(t, err)

	resp, err := http.Post(url+"/", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out rpcResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Nil(t, out.Error)
	return out
}

func artifactText(r rpcResponse) string {
	var b strings.Builder
	for _, a := range r.Result.Artifacts {
		for _, p := range a.Parts {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

func statusText(r rpcResponse) string {
	if r.Result.Status.Message == nil || len(r.Result.Status.Message.Parts) == 0 {
		return ""
	}
	return r.Result.Status.Message.Parts[0].Text
}

func TestHTTPServer_AgentCard(t *testing.T) {
	ts := newTestServer(t, &fakeTurner{})

	for _, path := range []string{a2asrv.WellKnownAgentCardPath, LegacyAgentCardPath} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)

		var card a2a.AgentCard
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&card))
		resp.Body.Close()

		assert.Equal(t, config.DefaultServerName, card.Name, path)
		assert.Equal(t, "http://localhost:9999/", card.URL)
		assert.Equal(t, "1.0.0", card.Version)
		assert.True(t, card.Capabilities.Streaming)
		require.Len(t, card.Skills, 1)
		assert.Equal(t, "scout_agent", card.Skills[0].ID)
		assert.Equal(t, []string{"scout", "mcp", "ai"}, card.Skills[0].Tags)
	}
}

func TestHTTPServer_Health(t *testing.T) {
	ts := newTestServer(t, &fakeTurner{})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestHTTPServer_CORSPreflight(t *testing.T) {
	ts := newTestServer(t, &fakeTurner{})

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://example.com")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestCORSMiddleware_AllowList(t *testing.T) {
	h := corsMiddleware([]string{"http://allowed.dev"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://allowed.dev")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "http://allowed.dev", rec.Header().Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "http://other.dev")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestExecutor_CompletesWithArtifact(t *testing.T) {
	turner := &fakeTurner{frags: []conversation.Fragment{
		conversation.TextFragment("The answer "),
		conversation.TextFragment("is 68.  "),
	}}
	ts := newTestServer(t, turner)

	out := sendMessage(t, ts.URL, "ctx-1", "What is 23 + 45?")
	assert.Equal(t, "task", out.Result.Kind)
	assert.Equal(t, "completed", out.Result.Status.State)
	assert.Equal(t, DoneMessage, statusText(out))
	assert.Equal(t, "The answer is 68.", artifactText(out))

	assert.Equal(t, []string{"ctx-1"}, turner.threads)
	assert.Equal(t, []string{"What is 23 + 45?"}, turner.texts)
}

func TestExecutor_BlankMessageUsesDefaultPrompt(t *testing.T) {
	turner := &fakeTurner{frags: []conversation.Fragment{conversation.TextFragment("ok")}}
	ts := newTestServer(t, turner, WithDefaultPrompt("say hi"))

	sendMessage(t, ts.URL, "ctx-1", "   ")
	assert.Equal(t, []string{"say hi"}, turner.texts)
}

func TestExecutor_FailureReportsCause(t *testing.T) {
	turner := &fakeTurner{
		frags: []conversation.Fragment{conversation.TextFragment("partial")},
		err:   errors.New("model down"),
	}
	ts := newTestServer(t, turner)

	out := sendMessage(t, ts.URL, "ctx-1", "hi")
	assert.Equal(t, "failed", out.Result.Status.State)
	assert.Equal(t, "❌ Executor failed: model down", statusText(out))
	assert.Equal(t, "partial", artifactText(out))
}

func TestExecutor_EmptyReplyHasNoArtifact(t *testing.T) {
	ts := newTestServer(t, &fakeTurner{})

	out := sendMessage(t, ts.URL, "ctx-1", "hi")
	assert.Equal(t, "completed", out.Result.Status.State)
	assert.Empty(t, out.Result.Artifacts)
}

func TestExecutor_ThreadsFollowContext(t *testing.T) {
	llm := testutils.NewScriptedLLM(
		testutils.Step{Calls: []conversation.ToolCall{testutils.ToolCall("call_1", "add", map[string]any{"a": 23.0, "b": 45.0})}},
		testutils.Step{Text: "The sum of 23 and 45 is 68."},
		testutils.Step{Text: "You asked about 23 and 45."},
	)
	registry, err := tool.NewRegistry(mathserver.Tools()...)
	require.NoError(t, err)
	g, err := graph.New(llm, registry)
	require.NoError(t, err)
	store := checkpoint.NewMemoryStore()
	runner, err := session.New(session.Config{Graph: g, Store: store})
	require.NoError(t, err)

	ts := newTestServer(t, runner)

	first := sendMessage(t, ts.URL, "thread-a", "add 23 and 45")
	assert.Equal(t, "completed", first.Result.Status.State)
	assert.Contains(t, artifactText(first), "68")

	second := sendMessage(t, ts.URL, "thread-a", "what did I ask?")
	assert.Contains(t, artifactText(second), "23 and 45")

	history, err := runner.History(context.Background(), "thread-a")
	require.NoError(t, err)
	assert.Len(t, history, 6)
	assert.Len(t, llm.Request(2).Messages, 5, "second turn sees the first turn's messages")
}

func TestHTTPServer_MetricsEndpoint(t *testing.T) {
	obs := observability.NewManager(observability.Config{
		Metrics: observability.MetricsConfig{Enabled: true, Endpoint: "/metrics", Namespace: "scout"},
	})
	require.NoError(t, obs.Initialize(context.Background()))
	t.Cleanup(func() { _ = obs.Shutdown(context.Background()) })

	ts := newTestServer(t, &fakeTurner{}, WithObservability(obs))

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "scout_http_requests_total")
}

func TestMessageText(t *testing.T) {
	assert.Equal(t, "", messageText(nil))

	msg := a2a.NewMessage(a2a.MessageRoleUser,
		a2a.TextPart{Text: "first"},
		a2a.DataPart{Data: map[string]any{"x": 1}},
		a2a.TextPart{Text: "second "},
	)
	assert.Equal(t, "first\nsecond", messageText(msg))
}
