package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/a2aproject/a2a-go/a2asrv"

	"github.com/kadirpekel/scout/pkg/config"
	"github.com/kadirpekel/scout/pkg/runtime"
	"github.com/kadirpekel/scout/pkg/server"
)

// ServeCmd starts the A2A server.
type ServeCmd struct {
	Host  string `help:"Host to bind (overrides config)."`
	Port  int    `help:"Port to listen on (overrides config)."`
	URL   string `name:"url" help:"Public URL advertised in the agent card."`
	Watch bool   `help:"Reload the config file on change."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var current atomic.Pointer[runtime.Runtime]
	cfg, loader, err := loadConfig(ctx, cli.Config, config.WithOnChange(func(next *config.Config) {
		if rt := current.Load(); rt != nil {
			rt.Apply(next)
		}
	}))
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}

	cleanup, err := applyConfigLogger(cli, &cfg.Logger)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	c.applyOverrides(&cfg.Server)

	rt, err := runtime.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create runtime: %w", err)
	}
	defer func() {
		if err := rt.Close(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("Runtime shutdown incomplete", "error", err)
		}
	}()
	current.Store(rt)

	if c.Watch && loader != nil {
		go func() {
			if err := loader.Watch(ctx); err != nil && ctx.Err() == nil {
				slog.Error("Config watch error", "error", err)
			}
		}()
	}

	srv := server.NewHTTPServer(&cfg.Server, rt.Runner(),
		server.WithObservability(rt.Observability()),
		server.WithDefaultPrompt(cfg.Agent.DefaultPrompt),
	)

	base := strings.TrimSuffix(cfg.Server.URL, "/")
	fmt.Printf("\nScout server ready\n")
	fmt.Printf("   Agent:       %s (%d tools)\n", cfg.Server.Name, len(rt.Tools()))
	fmt.Printf("   JSON-RPC:    %s/\n", base)
	fmt.Printf("   Agent Card:  %s%s\n", base, a2asrv.WellKnownAgentCardPath)
	fmt.Printf("   Health:      %s/health\n", base)
	if path, _, ok := rt.Observability().MetricsHandler(); ok {
		fmt.Printf("   Metrics:     %s%s\n", base, path)
	}
	fmt.Printf("   Checkpoints: %s\n", cfg.Checkpoint.Backend)
	fmt.Println("\nPress Ctrl+C to stop")

	return srv.Start(ctx)
}

func (c *ServeCmd) applyOverrides(cfg *config.ServerConfig) {
	if c.Host != "" {
		cfg.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Port = c.Port
		if c.URL == "" {
			cfg.URL = fmt.Sprintf("http://localhost:%d/", c.Port)
		}
	}
	if c.URL != "" {
		cfg.URL = c.URL
	}
}
