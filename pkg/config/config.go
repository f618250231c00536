// Package config loads Scout configuration from YAML files and the
// environment.
package config

import (
	"fmt"

	"github.com/kadirpekel/scout/pkg/observability"
)

// Config is the root configuration.
//
// Example:
//
//	llm:
//	  provider: groq
//	  model: llama-3.1-8b-instant
//	  api_key: ${GROQ_API_KEY}
//	mcp:
//	  servers:
//	    math:
//	      command: scout-mathserver
//	checkpoint:
//	  backend: sql
//	  database:
//	    driver: sqlite
//	    database: scout.db
type Config struct {
	Server        ServerConfig         `yaml:"server,omitempty" json:"server,omitempty" jsonschema:"title=Server,description=A2A server settings"`
	LLM           LLMConfig            `yaml:"llm,omitempty" json:"llm,omitempty" jsonschema:"title=LLM,description=Language model provider"`
	Agent         AgentConfig          `yaml:"agent,omitempty" json:"agent,omitempty" jsonschema:"title=Agent,description=Assistant behaviour"`
	MCP           MCPConfig            `yaml:"mcp,omitempty" json:"mcp,omitempty" jsonschema:"title=MCP,description=MCP tool servers"`
	Checkpoint    CheckpointConfig     `yaml:"checkpoint,omitempty" json:"checkpoint,omitempty" jsonschema:"title=Checkpoint,description=Conversation state persistence"`
	Logger        LoggerConfig         `yaml:"logger,omitempty" json:"logger,omitempty" jsonschema:"title=Logger,description=Logging settings"`
	Observability observability.Config `yaml:"observability,omitempty" json:"observability,omitempty" jsonschema:"title=Observability,description=Tracing and metrics"`
}

// SetDefaults applies default values to every section.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.LLM.SetDefaults()
	c.Agent.SetDefaults()
	c.MCP.SetDefaults()
	c.Checkpoint.SetDefaults()
	c.Logger.SetDefaults()
	c.Observability.SetDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if err := c.Agent.Validate(); err != nil {
		return fmt.Errorf("agent: %w", err)
	}
	if err := c.MCP.Validate(); err != nil {
		return fmt.Errorf("mcp: %w", err)
	}
	if err := c.Checkpoint.Validate(); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	if err := c.Logger.Validate(); err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	return nil
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool {
	return &b
}

// Float64Ptr returns a pointer to f.
func Float64Ptr(f float64) *float64 {
	return &f
}
