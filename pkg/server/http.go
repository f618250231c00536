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

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kadirpekel/scout"
	"github.com/kadirpekel/scout/pkg/config"
	"github.com/kadirpekel/scout/pkg/observability"
)

// LegacyAgentCardPath is the pre-0.3 well-known card location, still
// requested by older clients.
const LegacyAgentCardPath = "/.well-known/agent.json"

// HTTPServer serves one agent over A2A JSON-RPC.
type HTTPServer struct {
	cfg    *config.ServerConfig
	card   *a2a.AgentCard
	router chi.Router
	server *http.Server

	executor      *Executor
	taskStore     a2asrv.TaskStore
	observability *observability.Manager
	defaultPrompt string
}

// HTTPServerOption configures the HTTP server.
type HTTPServerOption func(*HTTPServer)

// WithTaskStore sets the task store. Without it a2a-go keeps tasks in
// memory.
func WithTaskStore(store a2asrv.TaskStore) HTTPServerOption {
	return func(s *HTTPServer) {
		s.taskStore = store
	}
}

// WithObservability enables request tracing, request metrics and the
// metrics endpoint.
func WithObservability(obs *observability.Manager) HTTPServerOption {
	return func(s *HTTPServer) {
		s.observability = obs
	}
}

// WithDefaultPrompt sets the text used for messages without text.
func WithDefaultPrompt(prompt string) HTTPServerOption {
	return func(s *HTTPServer) {
		s.defaultPrompt = prompt
	}
}

// NewHTTPServer creates the server. cfg is completed with defaults.
func NewHTTPServer(cfg *config.ServerConfig, turner Turner, opts ...HTTPServerOption) *HTTPServer {
	cfg.SetDefaults()

	s := &HTTPServer{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}

	s.executor = NewExecutor(turner, s.defaultPrompt)
	s.card = BuildAgentCard(cfg)
	s.router = s.setupRoutes()
	return s
}

// BuildAgentCard describes the agent served at cfg.URL.
func BuildAgentCard(cfg *config.ServerConfig) *a2a.AgentCard {
	return &a2a.AgentCard{
		Name:               cfg.Name,
		Description:        cfg.Description,
		URL:                cfg.URL,
		Version:            cfg.Version,
		ProtocolVersion:    "0.3.0",
		DefaultInputModes:  []string{"text", "text/plain"},
		DefaultOutputModes: []string{"text", "text/plain"},
		Capabilities: a2a.AgentCapabilities{
			Streaming: true,
		},
		Skills: []a2a.AgentSkill{{
			ID:          "scout_agent",
			Name:        "Scout Agent",
			Description: "Answers questions and calls MCP tools such as add and multiply",
			Tags:        []string{"scout", "mcp", "ai"},
			Examples: []string{
				"add two numbers 23 and 45",
				"multiply 6 by 7",
			},
		}},
		PreferredTransport: a2a.TransportProtocolJSONRPC,
		Provider: &a2a.AgentProvider{
			Org: "Scout",
			URL: "https://github.com/kadirpekel/scout",
		},
	}
}

// AgentCard returns the served agent card.
func (s *HTTPServer) AgentCard() *a2a.AgentCard {
	return s.card
}

// Handler returns the root HTTP handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

// Address returns the listen address.
func (s *HTTPServer) Address() string {
	return s.cfg.Address()
}

func (s *HTTPServer) setupRoutes() chi.Router {
	r := chi.NewRouter()

	// Order: observability -> recover -> logging -> cors
	if s.observability != nil {
		r.Use(observability.HTTPMiddleware(s.observability.Tracer(), s.observability.Recorder()))
	}
	r.Use(middleware.Recoverer)
	r.Use(loggingMiddleware)
	r.Use(corsMiddleware(s.cfg.CORSOrigins))

	var handlerOpts []a2asrv.RequestHandlerOption
	if s.taskStore != nil {
		handlerOpts = append(handlerOpts, a2asrv.WithTaskStore(s.taskStore))
	}
	requestHandler := a2asrv.NewHandler(s.executor, handlerOpts...)
	cardHandler := a2asrv.NewStaticAgentCardHandler(s.card)

	r.Post("/", a2asrv.NewJSONRPCHandler(requestHandler).ServeHTTP)
	r.Get(a2asrv.WellKnownAgentCardPath, cardHandler.ServeHTTP)
	r.Get(LegacyAgentCardPath, cardHandler.ServeHTTP)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  "ok",
			"version": scout.Version,
		})
	})

	if s.observability != nil {
		if path, h, ok := s.observability.MetricsHandler(); ok {
			r.Get(path, h.ServeHTTP)
		}
	}

	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.cfg.Address(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	slog.Info("HTTP server starting",
		"address", s.cfg.Address(),
		"agent_card", strings.TrimSuffix(s.cfg.URL, "/")+a2asrv.WellKnownAgentCardPath)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		return s.Shutdown(context.WithoutCancel(ctx))
	}
}

// Shutdown stops accepting requests and waits for in-flight ones up to
// the configured shutdown timeout.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	slog.Info("HTTP server shutting down")
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start))
	})
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	allowAll := len(origins) == 0 || slices.Contains(origins, "*")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case allowAll:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case origin != "" && slices.Contains(origins, origin):
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
