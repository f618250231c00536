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

// Command mathserver serves the add and multiply tools over MCP.
//
// Usage:
//
//	mathserver                              # stdio, for MCP clients that spawn it
//	mathserver --transport sse --port 8005  # HTTP+SSE
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/scout"
	"github.com/kadirpekel/scout/pkg/logger"
	"github.com/kadirpekel/scout/pkg/mathserver"
)

type CLI struct {
	Transport string `help:"Transport to serve." enum:"stdio,sse" default:"stdio"`
	Host      string `help:"Host to bind for sse." default:"0.0.0.0"`
	Port      int    `help:"Port for sse." default:"8005"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info" env:"LOG_LEVEL"`
}

func (c *CLI) Run() error {
	level, err := logger.ParseLevel(c.LogLevel)
	if err != nil {
		return err
	}
	// stdout carries the stdio protocol, so logs always go to stderr.
	logger.Init(level, os.Stderr, "simple")

	srv := mathserver.New(scout.Version)
	switch c.Transport {
	case "sse":
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return srv.ServeSSE(ctx, c.Host, c.Port)
	default:
		return srv.ServeStdio()
	}
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("mathserver"),
		kong.Description(fmt.Sprintf("%s - MCP math tools", mathserver.ServerName)),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run())
}
