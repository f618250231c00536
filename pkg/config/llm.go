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

package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// LLMProvider identifies the LLM provider type.
type LLMProvider string

const (
	LLMProviderGroq   LLMProvider = "groq"
	LLMProviderOpenAI LLMProvider = "openai"
	LLMProviderOllama LLMProvider = "ollama"
)

// LLMConfig configures the LLM provider.
type LLMConfig struct {
	// Provider type (groq, openai, ollama).
	Provider LLMProvider `yaml:"provider,omitempty" json:"provider,omitempty" jsonschema:"title=Provider,description=LLM provider,enum=groq,enum=openai,enum=ollama,default=groq"`

	// Model name, e.g. "llama-3.1-8b-instant".
	Model string `yaml:"model,omitempty" json:"model,omitempty" jsonschema:"title=Model,description=Model identifier"`

	// APIKey for authentication. Supports ${VAR} expansion.
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty" jsonschema:"title=API Key,description=API key (use ${ENV_VAR})"`

	// BaseURL overrides the default API endpoint.
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty" jsonschema:"title=Base URL,description=Custom base URL for the API endpoint"`

	// Temperature for generation.
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty" jsonschema:"title=Temperature,minimum=0,maximum=2,default=0"`

	// MaxTokens limits response length. Zero leaves it to the provider.
	MaxTokens int `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty" jsonschema:"title=Max Tokens,minimum=0"`

	// Timeout bounds a single model request.
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"title=Timeout"`

	// MaxRetries for rate limits and transient server errors.
	MaxRetries int `yaml:"max_retries,omitempty" json:"max_retries,omitempty" jsonschema:"title=Max Retries,minimum=0"`
}

// SetDefaults fills unset fields from the environment, then from
// provider defaults.
func (c *LLMConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = detectProviderFromEnv()
	}
	c.Provider = LLMProvider(strings.ToLower(string(c.Provider)))

	if c.Model == "" {
		c.Model = modelFromEnv(c.Provider)
	}
	if c.APIKey == "" {
		c.APIKey = apiKeyFromEnv(c.Provider)
	}
	if c.BaseURL == "" && c.Provider == LLMProviderOllama {
		c.BaseURL = ollamaHostFromEnv()
	}

	if c.Temperature == nil && c.Provider != LLMProviderOllama {
		c.Temperature = Float64Ptr(0)
	}
	if c.Timeout == 0 {
		c.Timeout = 120 * time.Second
		if c.Provider == LLMProviderOllama {
			c.Timeout = 300 * time.Second
		}
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
}

// Validate checks the LLM configuration.
func (c *LLMConfig) Validate() error {
	switch c.Provider {
	case LLMProviderGroq, LLMProviderOpenAI:
		if c.APIKey == "" {
			return fmt.Errorf("api_key is required for provider %q (set %s)", c.Provider, apiKeyEnv(c.Provider))
		}
	case LLMProviderOllama:
	default:
		return fmt.Errorf("invalid provider %q (valid: groq, openai, ollama)", c.Provider)
	}

	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be non-negative")
	}
	return nil
}

// detectProviderFromEnv honours LLM_PROVIDER and otherwise picks the first
// provider with credentials, falling back to a local Ollama.
func detectProviderFromEnv() LLMProvider {
	if p := os.Getenv("LLM_PROVIDER"); p != "" {
		return LLMProvider(strings.ToLower(p))
	}
	if os.Getenv("GROQ_API_KEY") != "" {
		return LLMProviderGroq
	}
	if os.Getenv("OPENAI_API_KEY") != "" {
		return LLMProviderOpenAI
	}
	return LLMProviderOllama
}

func modelFromEnv(provider LLMProvider) string {
	switch provider {
	case LLMProviderGroq:
		return firstEnv("GROQ_LLM_MODEL", "GROQ_MODEL")
	case LLMProviderOpenAI:
		return os.Getenv("OPENAI_MODEL")
	case LLMProviderOllama:
		return os.Getenv("OLLAMA_LLM_MODEL")
	default:
		return ""
	}
}

func apiKeyEnv(provider LLMProvider) string {
	switch provider {
	case LLMProviderGroq:
		return "GROQ_API_KEY"
	case LLMProviderOpenAI:
		return "OPENAI_API_KEY"
	default:
		return ""
	}
}

func apiKeyFromEnv(provider LLMProvider) string {
	if name := apiKeyEnv(provider); name != "" {
		return os.Getenv(name)
	}
	return ""
}

// ollamaHostFromEnv reads OLLAMA_HOST, which Ollama itself accepts
// without a scheme.
func ollamaHostFromEnv() string {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		return ""
	}
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	return host
}

func firstEnv(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}
