// Package runtime assembles a runnable agent from configuration: the LLM,
// the MCP toolsets and their registry, the turn graph, the checkpoint
// store, the session runner and observability.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/kadirpekel/scout/pkg/checkpoint"
	"github.com/kadirpekel/scout/pkg/config"
	"github.com/kadirpekel/scout/pkg/graph"
	"github.com/kadirpekel/scout/pkg/logger"
	"github.com/kadirpekel/scout/pkg/model"
	"github.com/kadirpekel/scout/pkg/observability"
	"github.com/kadirpekel/scout/pkg/session"
	"github.com/kadirpekel/scout/pkg/tool"
)

// Runtime owns every long-lived component of an agent.
type Runtime struct {
	mu  sync.RWMutex
	cfg *config.Config

	llm      model.LLM
	toolsets []tool.Toolset
	registry *tool.StaticRegistry
	graph    *graph.Graph
	store    checkpoint.Store
	runner   *session.Runner
	obs      *observability.Manager
}

type options struct {
	llmFactory     func(*config.LLMConfig) (model.LLM, error)
	toolsetFactory func(string, *config.MCPServerConfig) (tool.Toolset, error)
	store          checkpoint.Store
	localTools     []tool.Tool
}

// Option customizes how a Runtime is built.
type Option func(*options)

// WithLLMFactory replaces DefaultLLMFactory.
func WithLLMFactory(f func(*config.LLMConfig) (model.LLM, error)) Option {
	return func(o *options) {
		o.llmFactory = f
	}
}

// WithToolsetFactory replaces DefaultToolsetFactory.
func WithToolsetFactory(f func(string, *config.MCPServerConfig) (tool.Toolset, error)) Option {
	return func(o *options) {
		o.toolsetFactory = f
	}
}

// WithStore uses store instead of the configured checkpoint backend.
func WithStore(store checkpoint.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithLocalTools registers in-process tools next to the MCP tools.
func WithLocalTools(tools ...tool.Tool) Option {
	return func(o *options) {
		o.localTools = append(o.localTools, tools...)
	}
}

// New builds a Runtime from a validated configuration.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (_ *Runtime, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	o := &options{
		llmFactory:     DefaultLLMFactory,
		toolsetFactory: DefaultToolsetFactory,
	}
	for _, opt := range opts {
		opt(o)
	}

	r := &Runtime{cfg: cfg}
	defer func() {
		if err != nil {
			_ = r.Close(context.WithoutCancel(ctx))
		}
	}()

	r.obs = observability.NewManager(cfg.Observability)
	if err := r.obs.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}

	r.llm, err = o.llmFactory(&cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm: %w", err)
	}

	servers, err := cfg.MCP.ResolveServers()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve mcp servers: %w", err)
	}
	r.toolsets, err = buildToolsets(servers, o.toolsetFactory)
	if err != nil {
		return nil, err
	}

	r.registry, err = tool.NewRegistryFromToolsets(ctx, r.toolsets, o.localTools...)
	if err != nil {
		return nil, err
	}

	graphOpts := []graph.Option{
		graph.WithWorkingDir(cfg.Agent.WorkingDir),
		graph.WithGenerateConfig(generateConfig(&cfg.LLM)),
		graph.WithToolConcurrency(cfg.Agent.MaxToolConcurrency),
		graph.WithMaxIterations(cfg.Agent.MaxIterations),
		graph.WithTracer(r.obs.Tracer()),
		graph.WithRecorder(r.obs.Recorder()),
	}
	if cfg.Agent.Instruction != "" {
		graphOpts = append(graphOpts, graph.WithInstruction(cfg.Agent.Instruction))
	}
	r.graph, err = graph.New(r.llm, r.registry, graphOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build turn graph: %w", err)
	}

	r.store = o.store
	if r.store == nil {
		r.store, err = checkpoint.New(ctx, cfg.Checkpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to open checkpoint store: %w", err)
		}
	}

	r.runner, err = session.New(session.Config{Graph: r.graph, Store: r.store})
	if err != nil {
		return nil, err
	}

	slog.Info("Runtime ready",
		"provider", cfg.LLM.Provider,
		"model", r.llm.Name(),
		"tools", r.registry.Len(),
		"mcp_servers", len(r.toolsets),
		"checkpoint", cfg.Checkpoint.Backend)

	return r, nil
}

func generateConfig(cfg *config.LLMConfig) *model.GenerateConfig {
	gc := &model.GenerateConfig{}
	if cfg.Temperature != nil {
		t := *cfg.Temperature
		gc.Temperature = &t
	}
	if cfg.MaxTokens > 0 {
		n := cfg.MaxTokens
		gc.MaxTokens = &n
	}
	return gc
}

// Config returns the configuration currently applied.
func (r *Runtime) Config() *config.Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg
}

func (r *Runtime) LLM() model.LLM {
	return r.llm
}

func (r *Runtime) Graph() *graph.Graph {
	return r.graph
}

func (r *Runtime) Runner() *session.Runner {
	return r.runner
}

func (r *Runtime) Store() checkpoint.Store {
	return r.store
}

func (r *Runtime) Tools() []tool.Descriptor {
	return r.registry.Descriptors()
}

func (r *Runtime) Observability() *observability.Manager {
	return r.obs
}

// Apply hot-applies a reloaded configuration. Only the instruction, the
// temperature and the log level take effect; other changes are logged
// and need a restart.
func (r *Runtime) Apply(cfg *config.Config) {
	if cfg == nil {
		return
	}

	r.graph.SetInstruction(cfg.Agent.Instruction)
	r.graph.SetTemperature(cfg.LLM.Temperature)
	if level, err := logger.ParseLevel(cfg.Logger.Level); err == nil {
		logger.SetLevel(level)
	}

	r.mu.Lock()
	prev := r.cfg
	r.cfg = cfg
	r.mu.Unlock()

	if restartRequired(prev, cfg) {
		slog.Warn("Configuration change requires a restart to take effect",
			"sections", "llm provider/model, mcp, checkpoint, server")
	}
	slog.Info("Applied configuration", "log_level", cfg.Logger.Level)
}

func restartRequired(prev, next *config.Config) bool {
	return prev.LLM.Provider != next.LLM.Provider ||
		prev.LLM.Model != next.LLM.Model ||
		!reflect.DeepEqual(prev.MCP, next.MCP) ||
		!reflect.DeepEqual(prev.Checkpoint, next.Checkpoint) ||
		!reflect.DeepEqual(prev.Server, next.Server)
}

// Close releases every component.
func (r *Runtime) Close(ctx context.Context) error {
	var errs []error

	for _, ts := range r.toolsets {
		if err := ts.Close(); err != nil {
			errs = append(errs, fmt.Errorf("toolset %s: %w", ts.Name(), err))
		}
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("checkpoint store: %w", err))
		}
	}
	if r.llm != nil {
		if err := r.llm.Close(); err != nil {
			errs = append(errs, fmt.Errorf("llm: %w", err))
		}
	}
	if r.obs != nil {
		if err := r.obs.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("observability: %w", err))
		}
	}

	return errors.Join(errs...)
}
