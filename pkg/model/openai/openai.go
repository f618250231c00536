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

// Package openai provides an LLM implementation for OpenAI-compatible
// Chat Completions APIs. Groq is served by the same client with a
// different base URL.
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kadirpekel/scout/pkg/conversation"
	"github.com/kadirpekel/scout/pkg/httpclient"
	"github.com/kadirpekel/scout/pkg/model"
	"github.com/kadirpekel/scout/pkg/tool"
)

const (
	DefaultBaseURL     = "https://api.openai.com/v1"
	DefaultModel       = "gpt-4o"
	GroqBaseURL        = "https://api.groq.com/openai/v1"
	GroqDefaultModel   = "llama-3.1-8b-instant"
	defaultTimeout     = 120 * time.Second
	defaultMaxRetries  = 5
	streamDataPrefix   = "data: "
	streamDoneSentinel = "[DONE]"
)

// Config configures the client.
type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature *float64
	BaseURL     string
	Timeout     time.Duration
	MaxRetries  int

	// Provider labels the client; defaults to openai.
	Provider model.Provider
}

// Option configures the client.
type Option func(*Config)

// WithModel sets the model name.
func WithModel(model string) Option {
	return func(c *Config) {
		c.Model = model
	}
}

// WithTemperature sets the temperature.
func WithTemperature(temp float64) Option {
	return func(c *Config) {
		c.Temperature = &temp
	}
}

// WithBaseURL sets a custom base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// Client is a streaming Chat Completions client.
type Client struct {
	httpClient  *httpclient.Client
	apiKey      string
	baseURL     string
	modelName   string
	maxTokens   int
	temperature *float64
	provider    model.Provider
}

// New creates a new client.
func New(cfg Config, opts ...Option) (*Client, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	provider := cfg.Provider
	if provider == "" {
		provider = model.ProviderOpenAI
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
		if provider == model.ProviderGroq {
			baseURL = GroqBaseURL
		}
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	modelName := cfg.Model
	if modelName == "" {
		modelName = DefaultModel
		if provider == model.ProviderGroq {
			modelName = GroqDefaultModel
		}
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = defaultMaxRetries
	}

	return &Client{
		httpClient: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: timeout}),
			httpclient.WithMaxRetries(maxRetries),
		),
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		modelName:   modelName,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		provider:    provider,
	}, nil
}

// Name returns the model identifier.
func (c *Client) Name() string {
	return c.modelName
}

// Provider returns the provider type.
func (c *Client) Provider() model.Provider {
	return c.provider
}

// Close releases resources.
func (c *Client) Close() error {
	return nil
}

// GenerateContent streams a chat completion over server-sent events.
func (c *Client) GenerateContent(ctx context.Context, req *model.Request) iter.Seq2[*model.Response, error] {
	return func(yield func(*model.Response, error) bool) {
		body, err := json.Marshal(c.buildRequest(req))
		if err != nil {
			yield(nil, fmt.Errorf("failed to marshal request: %w", err))
			return
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			yield(nil, fmt.Errorf("failed to create request: %w", err))
			return
		}
		c.setHeaders(httpReq)

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
			if err != nil && err != io.EOF {
				yield(nil, fmt.Errorf("stream read error: %w", err))
				return
			}

			data, ok := bytes.CutPrefix(bytes.TrimSpace(line), []byte(streamDataPrefix))
			if ok {
				if string(data) == streamDoneSentinel {
					break
				}

				var chunk streamChunk
				if jsonErr := json.Unmarshal(data, &chunk); jsonErr != nil {
					slog.Debug("Failed to parse streaming chunk", "error", jsonErr)
				} else {
					if chunk.Error != nil {
						yield(nil, fmt.Errorf("%s error: %s", c.provider, chunk.Error.Message))
						return
					}
					for resp, err := range processChunk(&chunk, aggregator) {
						if !yield(resp, err) {
							return
						}
					}
				}
			}

			if err == io.EOF {
				break
			}
		}

		yield(aggregator.Close(), nil)
	}
}

// processChunk feeds one streamed chunk through the aggregator. Tool
// call deltas are grouped by their index.
func processChunk(chunk *streamChunk, agg *model.StreamingAggregator) iter.Seq2[*model.Response, error] {
	return func(yield func(*model.Response, error) bool) {
		for _, choice := range chunk.Choices {
			for resp, err := range agg.ProcessTextDelta(choice.Delta.Content) {
				if !yield(resp, err) {
					return
				}
			}

			for _, tc := range choice.Delta.ToolCalls {
				var name, args string
				if tc.Function != nil {
					name = tc.Function.Name
					args = tc.Function.Arguments
				}
				key := strconv.Itoa(tc.Index)
				for resp, err := range agg.ProcessToolCallDelta(key, tc.ID, name, args) {
					if !yield(resp, err) {
						return
					}
				}
			}

			switch choice.FinishReason {
			case "length":
				agg.SetFinishReason(model.FinishReasonLength)
			case "content_filter":
				agg.SetFinishReason(model.FinishReasonContent)
			}
		}

		if chunk.Usage != nil {
			agg.SetUsage(&model.Usage{
				PromptTokens:     chunk.Usage.PromptTokens,
				CompletionTokens: chunk.Usage.CompletionTokens,
				TotalTokens:      chunk.Usage.TotalTokens,
			})
		}
	}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
}

// buildRequest creates an API request from model.Request.
func (c *Client) buildRequest(req *model.Request) *chatRequest {
	apiReq := &chatRequest{
		Model:  c.modelName,
		Stream: true,
	}

	if c.provider == model.ProviderOpenAI {
		apiReq.StreamOptions = &streamOptions{IncludeUsage: true}
	}

	if c.maxTokens > 0 {
		apiReq.MaxTokens = &c.maxTokens
	}
	apiReq.Temperature = c.temperature
	if req.Config != nil {
		if req.Config.Temperature != nil {
			apiReq.Temperature = req.Config.Temperature
		}
		if req.Config.MaxTokens != nil {
			apiReq.MaxTokens = req.Config.MaxTokens
		}
	}

	if req.SystemInstruction != "" {
		apiReq.Messages = append(apiReq.Messages, chatMessage{
			Role:    "system",
			Content: &req.SystemInstruction,
		})
	}
	for _, msg := range req.Messages {
		apiReq.Messages = append(apiReq.Messages, convertMessage(msg))
	}

	for _, t := range req.Tools {
		apiReq.Tools = append(apiReq.Tools, apiTool{
			Type: "function",
			Function: functionDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  parametersOf(t),
			},
		})
	}

	return apiReq
}

// convertMessage converts a conversation message to the wire format.
// Tool results reference their call by ID.
func convertMessage(msg conversation.Message) chatMessage {
	text := msg.Text
	switch msg.Role {
	case conversation.RoleAssistant:
		out := chatMessage{Role: "assistant"}
		if text != "" || len(msg.ToolCalls) == 0 {
			out.Content = &text
		}
		for _, call := range msg.ToolCalls {
			args, err := json.Marshal(call.Arguments)
			if err != nil || call.Arguments == nil {
				args = []byte("{}")
			}
			out.ToolCalls = append(out.ToolCalls, wireToolCall{
				ID:   call.ID,
				Type: "function",
				Function: &wireFunction{
					Name:      call.Name,
					Arguments: string(args),
				},
			})
		}
		return out
	case conversation.RoleTool:
		return chatMessage{Role: "tool", Content: &text, ToolCallID: msg.ToolCallID}
	default:
		return chatMessage{Role: "user", Content: &text}
	}
}

func parametersOf(d tool.Descriptor) map[string]any {
	if d.InputSchema != nil {
		return d.InputSchema
	}
	return tool.ObjectSchema(map[string]any{})
}

// API types

type chatRequest struct {
	Model         string         `json:"model"`
	Messages      []chatMessage  `json:"messages"`
	Tools         []apiTool      `json:"tools,omitempty"`
	Temperature   *float64       `json:"temperature,omitempty"`
	MaxTokens     *int           `json:"max_tokens,omitempty"`
	Stream        bool           `json:"stream"`
	StreamOptions *streamOptions `json:"stream_options,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type chatMessage struct {
	Role       string         `json:"role"`
	Content    *string        `json:"content"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireToolCall struct {
	ID       string        `json:"id,omitempty"`
	Type     string        `json:"type,omitempty"`
	Function *wireFunction `json:"function,omitempty"`
}

type wireFunction struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments"`
}

type apiTool struct {
	Type     string      `json:"type"`
	Function functionDef `json:"function"`
}

type functionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

type streamChunk struct {
	ID      string         `json:"id"`
	Choices []streamChoice `json:"choices"`
	Usage   *apiUsage      `json:"usage,omitempty"`
	Error   *apiError      `json:"error,omitempty"`
}

type streamChoice struct {
	Index        int         `json:"index"`
	Delta        streamDelta `json:"delta"`
	FinishReason string      `json:"finish_reason"`
}

type streamDelta struct {
	Role      string          `json:"role,omitempty"`
	Content   string          `json:"content,omitempty"`
	ToolCalls []deltaToolCall `json:"tool_calls,omitempty"`
}

type deltaToolCall struct {
	Index    int           `json:"index"`
	ID       string        `json:"id,omitempty"`
	Function *wireFunction `json:"function,omitempty"`
}

type apiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

var _ model.LLM = (*Client)(nil)
