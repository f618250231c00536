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

// Package model defines the LLM interface used by the turn graph.
//
// Providers translate their wire chunks into provider-agnostic
// conversation.Fragment values:
//   - GenerateContent returns iter.Seq2[*Response, error]
//   - Partial responses (Partial=true) carry one Fragment each
//   - The stream ends with exactly one aggregated response (Partial=false)
//     whose Message is the complete assistant message
//
// Providers build that contract with StreamingAggregator.
package model

import (
	"context"
	"iter"

	"github.com/kadirpekel/scout/pkg/conversation"
	"github.com/kadirpekel/scout/pkg/tool"
)

// LLM is the interface for language models.
type LLM interface {
	// Name returns the model identifier.
	Name() string

	// Provider returns the provider type.
	Provider() Provider

	// GenerateContent streams the model's answer for req.
	//
	// Implementations yield zero or more partial responses followed by
	// one final response with Partial=false and Message set. On failure
	// they yield a non-nil error and stop.
	GenerateContent(ctx context.Context, req *Request) iter.Seq2[*Response, error]

	// Close releases any resources held by the LLM.
	Close() error
}

// Provider identifies the LLM provider.
type Provider string

const (
	// ProviderOpenAI represents the OpenAI chat completions API.
	ProviderOpenAI Provider = "openai"

	// ProviderGroq represents Groq, served through the OpenAI-compatible API.
	ProviderGroq Provider = "groq"

	// ProviderOllama represents Ollama local models.
	ProviderOllama Provider = "ollama"
)

// Request contains the input for an LLM call.
type Request struct {
	// SystemInstruction is prepended to the conversation.
	SystemInstruction string

	// Messages is the conversation history.
	Messages []conversation.Message

	// Tools available for the model to call.
	Tools []tool.Descriptor

	// Config contains generation configuration.
	Config *GenerateConfig
}

// GenerateConfig contains configuration for generation.
type GenerateConfig struct {
	// Temperature controls randomness (0-2).
	Temperature *float64

	// MaxTokens limits the response length.
	MaxTokens *int
}

// Clone creates a copy of the GenerateConfig.
func (c *GenerateConfig) Clone() *GenerateConfig {
	if c == nil {
		return nil
	}

	clone := *c
	if c.Temperature != nil {
		temp := *c.Temperature
		clone.Temperature = &temp
	}
	if c.MaxTokens != nil {
		maxTok := *c.MaxTokens
		clone.MaxTokens = &maxTok
	}
	return &clone
}

// Response contains one element of an LLM stream.
type Response struct {
	// Fragment is the streamed delta of a partial response.
	Fragment *conversation.Fragment

	// Message is the complete assistant message of the final response.
	Message *conversation.Message

	// Partial indicates whether this is a streaming chunk (true) or the
	// aggregated final response (false).
	Partial bool

	// Usage statistics, set on the final response when reported.
	Usage *Usage

	// FinishReason indicates why generation stopped.
	FinishReason FinishReason
}

// Usage contains token usage statistics.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// FinishReason indicates why generation stopped.
type FinishReason string

const (
	FinishReasonStop      FinishReason = "stop"
	FinishReasonLength    FinishReason = "length"
	FinishReasonToolCalls FinishReason = "tool_calls"
	FinishReasonContent   FinishReason = "content_filter"
	FinishReasonError     FinishReason = "error"
)

// HasToolCalls returns whether the final message requests tools.
func (r *Response) HasToolCalls() bool {
	return r != nil && r.Message != nil && r.Message.HasToolCalls()
}
