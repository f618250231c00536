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

// Command scout runs the Scout conversational agent.
//
// Usage:
//
//	scout serve --config scout.yaml
//	scout chat --thread 1
//	scout send --url http://localhost:9999 "add two numbers 23 and 45"
//	scout graph
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/scout"
	"github.com/kadirpekel/scout/pkg/config"
)

// CLI defines the command-line interface.
type CLI struct {
	Version VersionCmd `cmd:"" help:"Show version information."`
	Serve   ServeCmd   `cmd:"" help:"Start the A2A server."`
	Chat    ChatCmd    `cmd:"" help:"Chat with the agent in the terminal."`
	Send    SendCmd    `cmd:"" help:"Send a message to a running A2A agent."`
	Graph   GraphCmd   `cmd:"" help:"Print the turn graph as a Mermaid flowchart."`
	Schema  SchemaCmd  `cmd:"" help:"Print the configuration JSON Schema."`

	Config    string `short:"c" help:"Path to config file." type:"path" env:"SCOUT_CONFIG"`
	LogLevel  string `help:"Log level (debug, info, warn, error)."`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple, verbose, text)."`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(scout.CurrentBuild().String())
	return nil
}

// loadConfig loads the file at path, or the zero-config configuration
// when path is empty. The returned loader is nil in the latter case.
func loadConfig(ctx context.Context, path string, opts ...config.LoaderOption) (*config.Config, *config.Loader, error) {
	if path == "" {
		cfg, err := config.Default()
		if err != nil {
			return nil, nil, err
		}
		slog.Info("Using zero-config mode", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)
		return cfg, nil, nil
	}

	loader, err := config.NewLoader(path, opts...)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := loader.Load(ctx)
	if err != nil {
		_ = loader.Close()
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	slog.Info("Loaded configuration", "path", path)
	return cfg, loader, nil
}

func main() {
	if err := config.LoadEnvFiles(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("scout"),
		kong.Description("Scout - a tool-using conversational agent served over A2A"),
		kong.UsageOnError(),
	)

	cleanup, err := initLogger(cli.LogLevel, cli.LogFile, cli.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
