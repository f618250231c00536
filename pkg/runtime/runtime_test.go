package runtime

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/scout/pkg/assembler"
	"github.com/kadirpekel/scout/pkg/checkpoint"
	"github.com/kadirpekel/scout/pkg/config"
	"github.com/kadirpekel/scout/pkg/conversation"
	"github.com/kadirpekel/scout/pkg/mathserver"
	"github.com/kadirpekel/scout/pkg/model"
	"github.com/kadirpekel/scout/pkg/testutils"
	"github.com/kadirpekel/scout/pkg/tool"
)

func scriptedFactory(llm model.LLM) func(*config.LLMConfig) (model.LLM, error) {
	return func(*config.LLMConfig) (model.LLM, error) {
		return llm, nil
	}
}

func newTestRuntime(t *testing.T, cfg *config.Config, llm *testutils.ScriptedLLM, opts ...Option) *Runtime {
	t.Helper()
	opts = append([]Option{
		WithLLMFactory(scriptedFactory(llm)),
		WithLocalTools(mathserver.Tools()...),
	}, opts...)
	rt, err := New(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(context.Background()) })
	return rt
}

func TestRuntime_TurnEndToEnd(t *testing.T) {
	llm := testutils.NewScriptedLLM(
		testutils.Step{Calls: []conversation.ToolCall{testutils.ToolCall("call_1", "add", map[string]any{"a": 23.0, "b": 45.0})}},
		testutils.Step{Text: "The sum of 23 and 45 is 68."},
	)
	rt := newTestRuntime(t, testutils.TestConfig(), llm)

	assert.Equal(t, 2, len(rt.Tools()))

	text, err := assembler.Collect(rt.Runner().Turn(context.Background(), "t1", "What is 23 + 45?"))
	require.NoError(t, err)
	assert.Contains(t, text, "68")
	assert.Contains(t, text, assembler.Marker("add"))

	history, err := rt.Runner().History(context.Background(), "t1")
	require.NoError(t, err)
	assert.Len(t, history, 4)

	req := llm.Request(0)
	assert.Contains(t, req.SystemInstruction, "/work")
	assert.Len(t, req.Tools, 2)
}

func TestRuntime_ApplyHotSwapsInstructionAndTemperature(t *testing.T) {
	llm := testutils.NewScriptedLLM(testutils.Step{Text: "ok"})
	rt := newTestRuntime(t, testutils.TestConfig(), llm)

	next := testutils.TestConfig()
	next.Agent.Instruction = "You are terse. Tools: {tools}"
	next.LLM.Temperature = config.Float64Ptr(0.7)
	rt.Apply(next)

	assert.Same(t, next, rt.Config())
	assert.Contains(t, rt.Graph().SystemInstruction(), "You are terse.")
	assert.Contains(t, rt.Graph().SystemInstruction(), "- add:")

	_, err := assembler.Collect(rt.Runner().Turn(context.Background(), "t1", "hi"))
	require.NoError(t, err)
	req := llm.Request(0)
	require.NotNil(t, req.Config)
	require.NotNil(t, req.Config.Temperature)
	assert.Equal(t, 0.7, *req.Config.Temperature)
}

func TestRuntime_RestartRequired(t *testing.T) {
	prev := testutils.TestConfig()

	same := testutils.TestConfig()
	same.Agent.Instruction = "changed"
	assert.False(t, restartRequired(prev, same))

	renamed := testutils.TestConfig()
	renamed.LLM.Model = "other"
	assert.True(t, restartRequired(prev, renamed))

	store := testutils.TestConfig()
	store.Checkpoint.Backend = config.CheckpointBackendSQL
	assert.True(t, restartRequired(prev, store))
}

func TestRuntime_MetricsRecordTurns(t *testing.T) {
	cfg := testutils.TestConfig()
	cfg.Observability.Metrics.Enabled = true
	rt := newTestRuntime(t, cfg, testutils.NewScriptedLLM(testutils.Step{Text: "hello"}))

	_, err := assembler.Collect(rt.Runner().Turn(context.Background(), "t1", "hi"))
	require.NoError(t, err)

	path, h, ok := rt.Observability().MetricsHandler()
	require.True(t, ok)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "scout_turns_total")
	assert.Contains(t, string(body), "scout_assistant_visits_total")
}

func TestRuntime_UsesProvidedStore(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	rt := newTestRuntime(t, testutils.TestConfig(), testutils.NewScriptedLLM(testutils.Step{Text: "hello"}), WithStore(store))
	assert.Same(t, store, rt.Store())

	_, err := assembler.Collect(rt.Runner().Turn(context.Background(), "t1", "hi"))
	require.NoError(t, err)

	threads, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, threads)
}

func TestRuntime_NewRequiresConfig(t *testing.T) {
	_, err := New(context.Background(), nil)
	assert.Error(t, err)
}

func TestRuntime_LLMFactoryError(t *testing.T) {
	_, err := New(context.Background(), testutils.TestConfig(), WithLLMFactory(func(*config.LLMConfig) (model.LLM, error) {
		return nil, errors.New("no credentials")
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no credentials")
}

func TestDefaultLLMFactory(t *testing.T) {
	groq, err := DefaultLLMFactory(&config.LLMConfig{
		Provider: config.LLMProviderGroq,
		Model:    "llama-3.1-8b-instant",
		APIKey:   "test-key",
	})
	require.NoError(t, err)
	assert.Equal(t, "llama-3.1-8b-instant", groq.Name())
	assert.Equal(t, model.ProviderGroq, groq.Provider())

	local, err := DefaultLLMFactory(&config.LLMConfig{Provider: config.LLMProviderOllama, Model: "llama3.1"})
	require.NoError(t, err)
	assert.Equal(t, model.ProviderOllama, local.Provider())

	_, err = DefaultLLMFactory(&config.LLMConfig{Provider: "bogus"})
	assert.Error(t, err)
}

type fakeToolset struct {
	name   string
	closed bool
}

func (f *fakeToolset) Name() string { return f.name }
func (f *fakeToolset) Tools(context.Context) ([]tool.Tool, error) { return nil, nil }
func (f *fakeToolset) Close() error {
	f.closed = true
	return nil
}

func TestBuildToolsets(t *testing.T) {
	servers := map[string]*config.MCPServerConfig{
		"zeta":  {URL: "http://z"},
		"alpha": {URL: "http://a"},
	}

	var built []*fakeToolset
	factory := func(name string, _ *config.MCPServerConfig) (tool.Toolset, error) {
		ts := &fakeToolset{name: name}
		built = append(built, ts)
		return ts, nil
	}

	toolsets, err := buildToolsets(servers, factory)
	require.NoError(t, err)
	require.Len(t, toolsets, 2)
	assert.Equal(t, "alpha", toolsets[0].Name())
	assert.Equal(t, "zeta", toolsets[1].Name())

	built = nil
	failing := func(name string, cfg *config.MCPServerConfig) (tool.Toolset, error) {
		if name == "zeta" {
			return nil, errors.New("unreachable")
		}
		return factory(name, cfg)
	}
	_, err = buildToolsets(servers, failing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"zeta"`)
	require.Len(t, built, 1)
	assert.True(t, built[0].closed, "earlier toolsets are closed on failure")
}
