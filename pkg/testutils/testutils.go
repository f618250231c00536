// Package testutils provides test doubles shared by Scout's package tests.
package testutils

import (
	"context"
	"iter"
	"strings"
	"sync"

	"github.com/kadirpekel/scout/pkg/config"
	"github.com/kadirpekel/scout/pkg/conversation"
	"github.com/kadirpekel/scout/pkg/model"
)

// TestConfig returns a minimal valid configuration for testing. It uses
// the ollama provider so no API key is needed, the in-memory checkpoint
// store and no MCP servers.
func TestConfig() *config.Config {
	cfg := &config.Config{
		LLM: config.LLMConfig{
			Provider: config.LLMProviderOllama,
			Model:    "test-model",
		},
		Agent: config.AgentConfig{
			WorkingDir: "/work",
		},
	}
	cfg.SetDefaults()
	return cfg
}

// Step is one scripted model answer.
type Step struct {
	// Text is streamed word by word.
	Text string

	// Calls are streamed after the text.
	Calls []conversation.ToolCall

	// Err is yielded instead of an answer.
	Err error

	// NoFinal ends the stream without a final response.
	NoFinal bool
}

// ScriptedLLM answers each request with the next Step. The last step
// repeats once the script is exhausted.
type ScriptedLLM struct {
	Steps []Step

	mu       sync.Mutex
	requests []*model.Request
}

// NewScriptedLLM creates a ScriptedLLM.
func NewScriptedLLM(steps ...Step) *ScriptedLLM {
	return &ScriptedLLM{Steps: steps}
}

func (s *ScriptedLLM) Name() string { return "scripted" }

func (s *ScriptedLLM) Provider() model.Provider { return model.ProviderOllama }

func (s *ScriptedLLM) Close() error { return nil }

func (s *ScriptedLLM) GenerateContent(_ context.Context, req *model.Request) iter.Seq2[*model.Response, error] {
	return func(yield func(*model.Response, error) bool) {
		s.mu.Lock()
		s.requests = append(s.requests, req)
		var st Step
		if len(s.Steps) > 0 {
			st = s.Steps[min(len(s.requests), len(s.Steps))-1]
		}
		s.mu.Unlock()

		if st.Err != nil {
			yield(nil, st.Err)
			return
		}
		if st.NoFinal {
			return
		}

		agg := model.NewStreamingAggregator()
		for _, word := range strings.SplitAfter(st.Text, " ") {
			for resp, err := range agg.ProcessTextDelta(word) {
				if !yield(resp, err) {
					return
				}
			}
		}
		for _, call := range st.Calls {
			for resp, err := range agg.ProcessToolCall(call) {
				if !yield(resp, err) {
					return
				}
			}
		}
		yield(agg.Close(), nil)
	}
}

// Calls returns how many requests were made.
func (s *ScriptedLLM) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Request returns the i-th request.
func (s *ScriptedLLM) Request(i int) *model.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[i]
}

// ToolCall builds a conversation.ToolCall.
func ToolCall(id, name string, args map[string]any) conversation.ToolCall {
	return conversation.ToolCall{ID: id, Name: name, Arguments: args}
}

var _ model.LLM = (*ScriptedLLM)(nil)
