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

package runtime

import (
	"fmt"
	"maps"
	"slices"

	"github.com/kadirpekel/scout"
	"github.com/kadirpekel/scout/pkg/config"
	"github.com/kadirpekel/scout/pkg/model"
	"github.com/kadirpekel/scout/pkg/model/ollama"
	"github.com/kadirpekel/scout/pkg/model/openai"
	"github.com/kadirpekel/scout/pkg/tool"
	"github.com/kadirpekel/scout/pkg/tool/mcptoolset"
)

// DefaultLLMFactory creates LLM instances based on provider type.
func DefaultLLMFactory(cfg *config.LLMConfig) (model.LLM, error) {
	switch cfg.Provider {
	case config.LLMProviderGroq, config.LLMProviderOpenAI:
		provider := model.ProviderOpenAI
		if cfg.Provider == config.LLMProviderGroq {
			provider = model.ProviderGroq
		}
		return openai.New(openai.Config{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			BaseURL:     cfg.BaseURL,
			Timeout:     cfg.Timeout,
			MaxRetries:  cfg.MaxRetries,
			Provider:    provider,
		})

	case config.LLMProviderOllama:
		return ollama.New(ollama.Config{
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
			MaxRetries:  cfg.MaxRetries,
		})

	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}

// DefaultToolsetFactory creates the MCP toolset for one configured
// server.
func DefaultToolsetFactory(name string, cfg *config.MCPServerConfig) (tool.Toolset, error) {
	return mcptoolset.New(mcptoolset.Config{
		Name:        name,
		Transport:   cfg.Transport,
		URL:         cfg.URL,
		Command:     cfg.Command,
		Args:        cfg.Args,
		Env:         cfg.Env,
		Filter:      cfg.Filter,
		CallTimeout: cfg.CallTimeout,
		Version:     scout.Version,
	})
}

// buildToolsets creates one toolset per server, in name order.
func buildToolsets(servers map[string]*config.MCPServerConfig, factory func(string, *config.MCPServerConfig) (tool.Toolset, error)) ([]tool.Toolset, error) {
	toolsets := make([]tool.Toolset, 0, len(servers))
	for _, name := range slices.Sorted(maps.Keys(servers)) {
		ts, err := factory(name, servers[name])
		if err != nil {
			closeToolsets(toolsets)
			return nil, fmt.Errorf("mcp server %q: %w", name, err)
		}
		toolsets = append(toolsets, ts)
	}
	return toolsets, nil
}

func closeToolsets(toolsets []tool.Toolset) {
	for _, ts := range toolsets {
		_ = ts.Close()
	}
}
