package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearLLMEnv isolates tests from the developer's environment.
func clearLLMEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"LLM_PROVIDER", "GROQ_API_KEY", "GROQ_LLM_MODEL", "GROQ_MODEL",
		"OPENAI_API_KEY", "OPENAI_MODEL", "OLLAMA_LLM_MODEL", "OLLAMA_HOST",
	} {
		t.Setenv(name, "")
	}
}

func TestParse_ExpandsEnvAndAppliesDefaults(t *testing.T) {
	clearLLMEnv(t)
	t.Setenv("TEST_GROQ_KEY", "gsk-test")

	cfg, err := Parse([]byte(`
llm:
  provider: groq
  api_key: ${TEST_GROQ_KEY}
  timeout: 45s
server:
  port: ${TEST_PORT:-8088}
mcp:
  servers:
    math:
      command: scout-mathserver
      args: ["--transport", "stdio"]
checkpoint:
  backend: sql
  database:
    driver: sqlite
    database: /tmp/scout-test.db
`))
	require.NoError(t, err)

	assert.Equal(t, LLMProviderGroq, cfg.LLM.Provider)
	assert.Equal(t, "gsk-test", cfg.LLM.APIKey)
	assert.Equal(t, 45*time.Second, cfg.LLM.Timeout)
	require.NotNil(t, cfg.LLM.Temperature)
	assert.Equal(t, 0.0, *cfg.LLM.Temperature)

	assert.Equal(t, 8088, cfg.Server.Port)
	assert.Equal(t, "http://localhost:8088/", cfg.Server.URL)
	assert.Equal(t, DefaultServerName, cfg.Server.Name)
	assert.Equal(t, "0.0.0.0:8088", cfg.Server.Address())

	math := cfg.MCP.Servers["math"]
	require.NotNil(t, math)
	assert.Equal(t, MCPTransportStdio, math.Transport)

	assert.Equal(t, "sqlite3", cfg.Checkpoint.Database.DriverName())
	assert.Equal(t, "scout_checkpoints", cfg.Checkpoint.Database.Table)
	assert.Equal(t, DefaultPrompt, cfg.Agent.DefaultPrompt)
	assert.Equal(t, "info", cfg.Logger.Level)
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	clearLLMEnv(t)
	_, err := Parse([]byte("llm:\n  provider: ollama\n  modle: typo\n"))
	require.Error(t, err)
}

func TestParse_ValidationErrors(t *testing.T) {
	clearLLMEnv(t)
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing groq key", "llm:\n  provider: groq\n", "GROQ_API_KEY"},
		{"bad provider", "llm:\n  provider: anthropic\n", "invalid provider"},
		{"bad port", "llm:\n  provider: ollama\nserver:\n  port: 70000\n", "port"},
		{"bad backend", "llm:\n  provider: ollama\ncheckpoint:\n  backend: s3\n", "invalid backend"},
		{"stdio without command", "llm:\n  provider: ollama\nmcp:\n  servers:\n    x:\n      transport: stdio\n", "command is required"},
		{"bad log level", "llm:\n  provider: ollama\nlogger:\n  level: loud\n", "invalid log level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDefault_ZeroConfigFromEnv(t *testing.T) {
	t.Run("ollama fallback", func(t *testing.T) {
		clearLLMEnv(t)
		t.Setenv("OLLAMA_HOST", "10.0.0.5:11434")
		t.Setenv("OLLAMA_LLM_MODEL", "qwen2.5")

		cfg, err := Default()
		require.NoError(t, err)
		assert.Equal(t, LLMProviderOllama, cfg.LLM.Provider)
		assert.Equal(t, "http://10.0.0.5:11434", cfg.LLM.BaseURL)
		assert.Equal(t, "qwen2.5", cfg.LLM.Model)
		assert.Nil(t, cfg.LLM.Temperature)
	})

	t.Run("explicit groq", func(t *testing.T) {
		clearLLMEnv(t)
		t.Setenv("LLM_PROVIDER", "GROQ")
		t.Setenv("GROQ_API_KEY", "gsk")
		t.Setenv("GROQ_MODEL", "llama-3.3-70b-versatile")

		cfg, err := Default()
		require.NoError(t, err)
		assert.Equal(t, LLMProviderGroq, cfg.LLM.Provider)
		assert.Equal(t, "llama-3.3-70b-versatile", cfg.LLM.Model)
	})

	t.Run("openai detected from key", func(t *testing.T) {
		clearLLMEnv(t)
		t.Setenv("OPENAI_API_KEY", "sk")

		cfg, err := Default()
		require.NoError(t, err)
		assert.Equal(t, LLMProviderOpenAI, cfg.LLM.Provider)
	})
}

func TestMCPConfig_ResolveServersMergesFile(t *testing.T) {
	t.Setenv("MATH_SERVER_BIN", "/usr/local/bin/scout-mathserver")
	dir := t.TempDir()
	path := filepath.Join(dir, "mcp_server.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "mcpServers": {
    "math": {"command": "${MATH_SERVER_BIN}", "args": ["--transport", "stdio"]},
    "weather": {"url": "http://localhost:8000/sse", "transport": "sse"}
  }
}`), 0o644))

	cfg := MCPConfig{
		ConfigFile: path,
		Servers: map[string]*MCPServerConfig{
			"weather": {URL: "http://weather.internal/sse"},
		},
	}
	cfg.SetDefaults()

	servers, err := cfg.ResolveServers()
	require.NoError(t, err)
	require.Len(t, servers, 2)
	assert.Equal(t, "/usr/local/bin/scout-mathserver", servers["math"].Command)
	assert.Equal(t, MCPTransportStdio, servers["math"].Transport)
	assert.Equal(t, "http://weather.internal/sse", servers["weather"].URL, "inline entries win")
	assert.Equal(t, MCPTransportSSE, servers["weather"].Transport)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	pg := &DatabaseConfig{Driver: "postgres", Host: "db", Database: "scout", Username: "u", Password: "p"}
	pg.SetDefaults()
	assert.Equal(t, "host=db port=5432 dbname=scout user=u password=p sslmode=disable", pg.DSN())

	my := &DatabaseConfig{Driver: "mysql", Host: "db", Database: "scout", Username: "u", Password: "p"}
	my.SetDefaults()
	assert.Equal(t, "u:p@tcp(db:3306)/scout?parseTime=true", my.DSN())

	lite := &DatabaseConfig{Driver: "sqlite3", Database: "scout.db"}
	lite.SetDefaults()
	assert.Equal(t, "sqlite", lite.Dialect())
	assert.Equal(t, "scout.db", lite.DSN())
	assert.Equal(t, 1, lite.MaxConns)
	assert.NoError(t, lite.Validate())

	noHost := &DatabaseConfig{Driver: "postgres", Database: "scout"}
	assert.Error(t, noHost.Validate())
}

func TestLoadFile_EmptyPathIsZeroConfig(t *testing.T) {
	clearLLMEnv(t)
	cfg, loader, err := LoadFile(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, loader)
	assert.Equal(t, LLMProviderOllama, cfg.LLM.Provider)
}

func TestLoader_WatchReloads(t *testing.T) {
	clearLLMEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "scout.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  provider: ollama\nagent:\n  instruction: first\n"), 0o644))

	reloaded := make(chan *Config, 4)
	loader, err := NewLoader(path, WithOnChange(func(c *Config) { reloaded <- c }))
	require.NoError(t, err)
	defer loader.Close()

	cfg, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", cfg.Agent.Instruction)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- loader.Watch(ctx) }()

	// Give the watcher time to register.
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  provider: ollama\nagent:\n  instruction: second\n"), 0o644))

	select {
	case c := <-reloaded:
		assert.Equal(t, "second", c.Agent.Instruction)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestSchema_DescribesSections(t *testing.T) {
	data, err := json.Marshal(Schema())
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"server", "llm", "agent", "mcp", "checkpoint", "logger", "observability"} {
		assert.Contains(t, props, key)
	}
}
