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

// Package ollama provides an Ollama LLM implementation.
//
// It uses Ollama's streaming Chat API (/api/chat), which answers with
// newline-delimited JSON objects. Text deltas and tool calls are fed
// through model.StreamingAggregator.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/kadirpekel/scout/pkg/conversation"
	"github.com/kadirpekel/scout/pkg/httpclient"
	"github.com/kadirpekel/scout/pkg/model"
	"github.com/kadirpekel/scout/pkg/tool"
)

const (
	DefaultBaseURL   = "http://localhost:11434"
	DefaultModel     = "llama3.1"
	defaultTimeout   = 300 * time.Second
	defaultKeepAlive = "5m"
)

// Config configures the Ollama client.
type Config struct {
	// BaseURL is the Ollama server URL (default: http://localhost:11434)
	BaseURL string

	// Model is the model name. It must support tool calling.
	Model string

	// Temperature controls randomness (0-2)
	Temperature *float64

	// NumCtx sets the context window size
	NumCtx *int

	// KeepAlive controls how long the model stays loaded (default: "5m")
	KeepAlive string

	// Timeout for HTTP requests
	Timeout time.Duration

	// MaxRetries for HTTP requests with retry/backoff
	MaxRetries int
}

// Client is an Ollama LLM implementation.
type Client struct {
	httpClient  *httpclient.Client
	baseURL     string
	modelName   string
	temperature *float64
	numCtx      *int
	keepAlive   string
}

// New creates a new Ollama client.
func New(cfg Config) (*Client, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	modelName := cfg.Model
	if modelName == "" {
		modelName = DefaultModel
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	keepAlive := cfg.KeepAlive
	if keepAlive == "" {
		keepAlive = defaultKeepAlive
	}

	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}

	hc := httpclient.New(
		httpclient.WithHTTPClient(&http.Client{Timeout: timeout}),
		httpclient.WithMaxRetries(maxRetries),
		httpclient.WithBaseDelay(2*time.Second),
	)

	return &Client{
		httpClient:  hc,
		baseURL:     baseURL,
		modelName:   modelName,
		temperature: cfg.Temperature,
		numCtx:      cfg.NumCtx,
		keepAlive:   keepAlive,
	}, nil
}

// Name returns the model identifier.
func (c *Client) Name() string {
	return c.modelName
}

// Provider returns the provider type.
func (c *Client) Provider() model.Provider {
	return model.ProviderOllama
}

// Close releases resources.
func (c *Client) Close() error {
	return nil
}

// GenerateContent streams a chat completion.
func (c *Client) GenerateContent(ctx context.Context, req *model.Request) iter.Seq2[*model.Response, error] {
	return func(yield func(*model.Response, error) bool) {
		body, err := json.Marshal(c.buildRequest(req))
		if err != nil {
			yield(nil, fmt.Errorf("failed to marshal request: %w", err))
			return
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
		if err != nil {
			yield(nil, fmt.Errorf("failed to create request: %w", err))
			return
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			yield(nil, fmt.Errorf("request failed: %w", err))
			return
		}
		if err := httpclient.CheckResponse(resp); err != nil {
			yield(nil, err)
			return
		}
		defer resp.Body.Close()

		aggregator := model.NewStreamingAggregator()
		reader := bufio.NewReader(resp.Body)

		for {
			line, err := reader.ReadBytes('\n')
			if len(bytes.TrimSpace(line)) > 0 {
				var chunk chatResponse
				if jsonErr := json.Unmarshal(bytes.TrimSpace(line), &chunk); jsonErr != nil {
					yield(nil, fmt.Errorf("malformed stream chunk: %w", jsonErr))
					return
				}
				if chunk.Error != "" {
					yield(nil, fmt.Errorf("ollama error: %s", chunk.Error))
					return
				}

				for resp, err := range processChunk(&chunk, aggregator) {
					if !yield(resp, err) {
						return
					}
				}

				if chunk.Done {
					break
				}
			}
			if err != nil {
				if err == io.EOF {
					break
				}
				yield(nil, fmt.Errorf("stream read error: %w", err))
				return
			}
		}

		yield(aggregator.Close(), nil)
	}
}

// processChunk feeds one NDJSON object through the aggregator. Ollama
// sends each tool call complete and without an ID.
func processChunk(chunk *chatResponse, agg *model.StreamingAggregator) iter.Seq2[*model.Response, error] {
	return func(yield func(*model.Response, error) bool) {
		if chunk.Message != nil {
			for resp, err := range agg.ProcessTextDelta(chunk.Message.Content) {
				if !yield(resp, err) {
					return
				}
			}

			for _, tc := range chunk.Message.ToolCalls {
				if tc.Function == nil {
					continue
				}
				call := conversation.ToolCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				}
				for resp, err := range agg.ProcessToolCall(call) {
					if !yield(resp, err) {
						return
					}
				}
			}
		}

		if chunk.Done {
			if chunk.DoneReason == "length" {
				agg.SetFinishReason(model.FinishReasonLength)
			}
			agg.SetUsage(&model.Usage{
				PromptTokens:     chunk.PromptEvalCount,
				CompletionTokens: chunk.EvalCount,
				TotalTokens:      chunk.PromptEvalCount + chunk.EvalCount,
			})
		}
	}
}

// buildRequest creates an API request from model.Request.
func (c *Client) buildRequest(req *model.Request) *chatRequest {
	apiReq := &chatRequest{
		Model:     c.modelName,
		Stream:    true,
		KeepAlive: c.keepAlive,
	}

	options := make(map[string]any)
	if req.Config != nil && req.Config.Temperature != nil {
		options["temperature"] = *req.Config.Temperature
	} else if c.temperature != nil {
		options["temperature"] = *c.temperature
	}
	if req.Config != nil && req.Config.MaxTokens != nil {
		options["num_predict"] = *req.Config.MaxTokens
	}
	if c.numCtx != nil {
		options["num_ctx"] = *c.numCtx
	}
	if len(options) > 0 {
		apiReq.Options = options
	}

	if req.SystemInstruction != "" {
		apiReq.Messages = append(apiReq.Messages, &chatMessage{
			Role:    "system",
			Content: req.SystemInstruction,
		})
	}

	for _, msg := range req.Messages {
		apiReq.Messages = append(apiReq.Messages, convertMessage(msg))
	}

	if len(req.Tools) > 0 {
		apiReq.Tools = convertTools(req.Tools)
	}

	return apiReq
}

// convertMessage converts a conversation message to Ollama format.
func convertMessage(msg conversation.Message) *chatMessage {
	switch msg.Role {
	case conversation.RoleAssistant:
		out := &chatMessage{Role: "assistant", Content: msg.Text}
		for _, call := range msg.ToolCalls {
			args := call.Arguments
			if args == nil {
				args = map[string]any{}
			}
			out.ToolCalls = append(out.ToolCalls, &toolCall{
				Function: &functionCall{Name: call.Name, Arguments: args},
			})
		}
		return out
	case conversation.RoleTool:
		return &chatMessage{Role: "tool", Content: msg.Text, ToolName: msg.ToolName}
	default:
		return &chatMessage{Role: "user", Content: msg.Text}
	}
}

// convertTools converts tool descriptors to Ollama format.
func convertTools(tools []tool.Descriptor) []*apiTool {
	result := make([]*apiTool, len(tools))
	for i, t := range tools {
		result[i] = &apiTool{
			Type: "function",
			Function: &functionDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		}
	}
	return result
}

// API types

type chatRequest struct {
	Model     string         `json:"model"`
	Messages  []*chatMessage `json:"messages"`
	Tools     []*apiTool     `json:"tools,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
	Stream    bool           `json:"stream"`
	KeepAlive string         `json:"keep_alive,omitempty"`
}

type chatMessage struct {
	Role      string      `json:"role"`
	Content   string      `json:"content"`
	ToolCalls []*toolCall `json:"tool_calls,omitempty"`
	ToolName  string      `json:"tool_name,omitempty"`
}

type toolCall struct {
	Function *functionCall `json:"function,omitempty"`
}

type functionCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type apiTool struct {
	Type     string       `json:"type"`
	Function *functionDef `json:"function"`
}

type functionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type chatResponse struct {
	Model           string       `json:"model"`
	Message         *chatMessage `json:"message,omitempty"`
	Done            bool         `json:"done"`
	DoneReason      string       `json:"done_reason,omitempty"`
	PromptEvalCount int          `json:"prompt_eval_count,omitempty"`
	EvalCount       int          `json:"eval_count,omitempty"`
	Error           string       `json:"error,omitempty"`
}

var _ model.LLM = (*Client)(nil)
