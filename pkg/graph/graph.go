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

// Package graph implements the turn graph that drives one conversation
// turn.
//
// A turn alternates between two nodes until the model answers without
// requesting tools:
//
//	__start__ --> assistant
//	assistant -.-> tools      (assistant message has tool calls)
//	assistant -.-> __end__    (no tool calls)
//	tools --> assistant
//
// The assistant node sends the system instruction, the conversation
// snapshot and the tool descriptors to the model, streams its fragments
// to the caller and appends exactly one assistant message. The tool node
// executes every pending call and appends one result per call. Tool
// failures are reported to the model in-band; model failures end the
// turn with a *ModelInvocationError.
package graph

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/scout/pkg/conversation"
	"github.com/kadirpekel/scout/pkg/model"
	"github.com/kadirpekel/scout/pkg/observability"
	"github.com/kadirpekel/scout/pkg/tool"
)

const defaultToolConcurrency = 8

// Graph runs conversation turns against one model and one tool registry.
// The tool set is fixed for the lifetime of the graph. A Graph may run
// turns for many threads concurrently, but one State must never be
// driven by two turns at once.
type Graph struct {
	llm          model.LLM
	registry     tool.Registry
	tools        []tool.Descriptor
	workingDir   string
	concurrency  int
	maxVisits    int
	tracer       *observability.Tracer
	recorder     observability.Recorder
	onTransition func(threadID string, from, to State)

	mu          sync.RWMutex
	template    string
	instruction string
	genConfig   *model.GenerateConfig
}

// Option configures a Graph.
type Option func(*Graph)

// WithInstruction sets the system prompt template. It may contain the
// {tools} and {working_dir} placeholders.
func WithInstruction(template string) Option {
	return func(g *Graph) {
		g.template = template
	}
}

// WithWorkingDir sets the value of the {working_dir} placeholder.
func WithWorkingDir(dir string) Option {
	return func(g *Graph) {
		g.workingDir = dir
	}
}

// WithGenerateConfig sets the generation parameters sent on every call.
func WithGenerateConfig(cfg *model.GenerateConfig) Option {
	return func(g *Graph) {
		g.genConfig = cfg.Clone()
	}
}

// WithToolConcurrency bounds how many tool calls of one assistant
// message run at the same time.
func WithToolConcurrency(n int) Option {
	return func(g *Graph) {
		g.concurrency = n
	}
}

// WithMaxIterations bounds assistant visits per turn. Zero means no
// limit.
func WithMaxIterations(n int) Option {
	return func(g *Graph) {
		g.maxVisits = n
	}
}

// WithTracer enables spans for turns and nodes.
func WithTracer(t *observability.Tracer) Option {
	return func(g *Graph) {
		g.tracer = t
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r observability.Recorder) Option {
	return func(g *Graph) {
		if r != nil {
			g.recorder = r
		}
	}
}

// WithTransitionHook registers a callback invoked on every state change.
func WithTransitionHook(fn func(threadID string, from, to State)) Option {
	return func(g *Graph) {
		g.onTransition = fn
	}
}

// New creates a turn graph. A nil registry means no tools.
func New(llm model.LLM, registry tool.Registry, opts ...Option) (*Graph, error) {
	if llm == nil {
		return nil, fmt.Errorf("llm is required")
	}
	if registry == nil {
		empty, err := tool.NewRegistry()
		if err != nil {
			return nil, err
		}
		registry = empty
	}

	g := &Graph{
		llm:         llm,
		registry:    registry,
		tools:       registry.Descriptors(),
		template:    DefaultInstruction,
		concurrency: defaultToolConcurrency,
		recorder:    observability.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.concurrency <= 0 {
		g.concurrency = defaultToolConcurrency
	}
	if g.maxVisits < 0 {
		return nil, fmt.Errorf("max iterations must be >= 0, got %d", g.maxVisits)
	}

	g.instruction = RenderInstruction(g.template, g.tools, g.workingDir)
	return g, nil
}

// Tools returns the descriptors offered to the model.
func (g *Graph) Tools() []tool.Descriptor {
	return g.tools
}

// Model returns the model the graph invokes.
func (g *Graph) Model() model.LLM {
	return g.llm
}

// SystemInstruction returns the rendered system prompt.
func (g *Graph) SystemInstruction() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.instruction
}

// SetInstruction replaces the system prompt template. Turns already
// running keep the previous prompt for their current assistant visit.
func (g *Graph) SetInstruction(template string) {
	if template == "" {
		template = DefaultInstruction
	}
	rendered := RenderInstruction(template, g.tools, g.workingDir)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.template = template
	g.instruction = rendered
}

// SetTemperature replaces the sampling temperature. Nil restores the
// provider default.
func (g *Graph) SetTemperature(t *float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	cfg := g.genConfig.Clone()
	if cfg == nil {
		cfg = &model.GenerateConfig{}
	}
	cfg.Temperature = nil
	if t != nil {
		v := *t
		cfg.Temperature = &v
	}
	g.genConfig = cfg
}

func (g *Graph) generateConfig() *model.GenerateConfig {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.genConfig.Clone()
}

// Run executes one turn on state and streams the assistant's fragments.
//
// The turn starts in AwaitingAssistant, or in AwaitingTool when the last
// assistant message still has unanswered tool calls (a turn resumed from
// a checkpoint). It ends when the model answers without tool calls, when
// the caller stops iterating, or on a fatal error. A fatal error is
// yielded once and ends the sequence; messages appended before it stay
// in state.
func (g *Graph) Run(ctx context.Context, state *conversation.State) iter.Seq2[conversation.Fragment, error] {
	return func(yield func(conversation.Fragment, error) bool) {
		start := time.Now()
		ctx, span := g.tracer.Start(ctx, observability.SpanTurn,
			trace.WithAttributes(
				attribute.String(observability.AttrThreadID, state.ThreadID()),
				attribute.String(observability.AttrModel, g.llm.Name()),
			))

		var runErr error
		defer func() {
			if runErr != nil {
				span.RecordError(runErr)
				span.SetStatus(codes.Error, runErr.Error())
			}
			span.End()
			g.recorder.RecordTurn(ctx, time.Since(start), runErr)
		}()

		current := AwaitingAssistant
		if len(state.PendingToolCalls()) > 0 {
			current = AwaitingTool
		}

		// fail ends the turn in Terminal and reports err once.
		fail := func(err error) {
			runErr = err
			slog.Error("Turn failed", "thread", state.ThreadID(), "state", current, "error", err)
			g.transition(state.ThreadID(), current, Terminal)
			yield(conversation.Fragment{}, err)
		}

		visits := 0
		for current != Terminal {
			if err := ctx.Err(); err != nil {
				fail(err)
				return
			}

			var next State
			switch current {
			case AwaitingAssistant:
				if g.maxVisits > 0 && visits >= g.maxVisits {
					fail(&IterationLimitError{Limit: g.maxVisits})
					return
				}
				visits++

				msg, ok, err := g.assistant(ctx, state, yield)
				if err != nil {
					fail(err)
					return
				}
				if !ok {
					return
				}
				next = Terminal
				if msg.HasToolCalls() {
					next = AwaitingTool
				}

			case AwaitingTool:
				if err := g.runTools(ctx, state); err != nil {
					fail(err)
					return
				}
				next = AwaitingAssistant
			}

			g.transition(state.ThreadID(), current, next)
			current = next
		}

		slog.Debug("Turn finished",
			"thread", state.ThreadID(),
			"assistant_visits", visits,
			"messages", state.Len(),
			"duration", time.Since(start))
	}
}

// ResolvePending executes the tool calls an interrupted turn left
// unanswered, so a new user message never follows an open tool call.
// Results are appended even when ctx is done; the returned error is ctx's.
func (g *Graph) ResolvePending(ctx context.Context, state *conversation.State) error {
	pending := state.PendingToolCalls()
	if len(pending) == 0 {
		return nil
	}
	slog.Info("Resolving interrupted tool calls", "thread", state.ThreadID(), "count", len(pending))
	return g.runTools(ctx, state)
}

func (g *Graph) transition(threadID string, from, to State) {
	slog.Debug("Turn transition", "thread", threadID, "from", from, "to", to)
	if g.onTransition != nil {
		g.onTransition(threadID, from, to)
	}
}

// assistant invokes the model once and appends its message. ok is false
// when the caller stopped consuming fragments.
func (g *Graph) assistant(
	ctx context.Context,
	state *conversation.State,
	yield func(conversation.Fragment, error) bool,
) (msg conversation.Message, ok bool, err error) {
	start := time.Now()
	ctx, span := g.tracer.Start(ctx, observability.SpanAssistant,
		trace.WithAttributes(attribute.String(observability.AttrModel, g.llm.Name())))

	var usage *model.Usage
	defer func() {
		in, out := 0, 0
		if usage != nil {
			in, out = usage.PromptTokens, usage.CompletionTokens
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		g.recorder.RecordAssistantVisit(ctx, g.llm.Name(), time.Since(start), in, out, err)
	}()

	req := &model.Request{
		SystemInstruction: g.SystemInstruction(),
		Messages:          state.Snapshot(),
		Tools:             g.tools,
		Config:            g.generateConfig(),
	}

	var final *model.Response
	for resp, genErr := range g.llm.GenerateContent(ctx, req) {
		if genErr != nil {
			return msg, false, &ModelInvocationError{Model: g.llm.Name(), Err: genErr}
		}
		if resp == nil {
			continue
		}
		if resp.Partial {
			if resp.Fragment != nil && !yield(*resp.Fragment, nil) {
				return msg, false, nil
			}
			continue
		}
		final = resp
	}

	if final == nil || final.Message == nil {
		return msg, false, &ModelInvocationError{
			Model: g.llm.Name(),
			Err:   errors.New("stream ended without a final message"),
		}
	}
	usage = final.Usage

	msg = *final.Message
	msg.Role = conversation.RoleAssistant
	ensureCallIDs(msg.ToolCalls)

	if err := state.Append(msg); err != nil {
		return msg, false, err
	}

	span.SetAttributes(attribute.Int(observability.AttrToolCallCount, len(msg.ToolCalls)))
	return msg, true, nil
}

// ensureCallIDs fills missing tool call IDs and renames duplicates so
// every result can be matched to exactly one call. Models streaming
// through model.StreamingAggregator already do this before emitting
// fragments.
func ensureCallIDs(calls []conversation.ToolCall) {
	seen := make(map[string]struct{}, len(calls))
	for i := range calls {
		if _, dup := seen[calls[i].ID]; calls[i].ID == "" || dup {
			calls[i].ID = conversation.NewToolCallID()
		}
		seen[calls[i].ID] = struct{}{}
	}
}

// runTools executes every pending call and appends the results in call
// order once all of them have finished.
func (g *Graph) runTools(ctx context.Context, state *conversation.State) error {
	calls := state.PendingToolCalls()

	ctx, span := g.tracer.Start(ctx, observability.SpanTools,
		trace.WithAttributes(attribute.Int(observability.AttrToolCallCount, len(calls))))
	defer span.End()

	results := make([]conversation.Message, len(calls))

	var eg errgroup.Group
	eg.SetLimit(g.concurrency)
	for i, call := range calls {
		eg.Go(func() error {
			results[i] = g.execute(ctx, call)
			return nil
		})
	}
	_ = eg.Wait()

	for _, res := range results {
		if err := state.Append(res); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	return ctx.Err()
}

// execute runs one tool call. Every failure becomes an error result.
func (g *Graph) execute(ctx context.Context, call conversation.ToolCall) conversation.Message {
	start := time.Now()
	ctx, span := g.tracer.Start(ctx, observability.SpanToolCall,
		trace.WithAttributes(
			attribute.String(observability.AttrToolName, call.Name),
			attribute.String(observability.AttrToolCallID, call.ID),
		))
	defer span.End()

	out, err := g.registry.Call(ctx, call.Name, call.Arguments)
	isError := err != nil
	if isError {
		slog.Warn("Tool call failed", "tool", call.Name, "call_id", call.ID, "error", err)
		out = g.errorResult(err)
		span.RecordError(err)
	} else {
		slog.Debug("Tool call finished", "tool", call.Name, "call_id", call.ID, "duration", time.Since(start))
	}

	span.SetAttributes(attribute.Bool(observability.AttrToolIsError, isError))
	g.recorder.RecordToolCall(ctx, call.Name, time.Since(start), isError)

	return conversation.NewToolResultMessage(call, out, isError)
}

// errorResult is the text the model sees for a failed call.
func (g *Graph) errorResult(err error) string {
	var unknown *tool.UnknownToolError
	if errors.As(err, &unknown) {
		names := make([]string, 0, len(g.tools))
		for _, t := range g.tools {
			names = append(names, t.Name)
		}
		sort.Strings(names)
		if len(names) == 0 {
			return fmt.Sprintf("Error: %s is not a valid tool, no tools are available.", unknown.Name)
		}
		return fmt.Sprintf("Error: %s is not a valid tool, try one of [%s].", unknown.Name, strings.Join(names, ", "))
	}
	return fmt.Sprintf("Error: %v\n Please fix your mistakes.", err)
}
