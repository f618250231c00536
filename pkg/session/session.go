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

// Package session runs conversation turns against persisted threads.
//
// A thread is identified by an opaque ID. For each turn the Runner loads
// the thread's state from the checkpoint store (or starts a new one),
// appends the user message, drives the turn graph and saves the state
// again, also when the turn failed, so completed messages are kept. Tool
// calls left open by an interrupted turn are answered before the new user
// message is appended.
// Turns of the same thread are serialized.
package session

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync"

	"github.com/kadirpekel/scout/pkg/checkpoint"
	"github.com/kadirpekel/scout/pkg/conversation"
)

// TurnGraph executes one turn on a conversation state.
type TurnGraph interface {
	Run(ctx context.Context, state *conversation.State) iter.Seq2[conversation.Fragment, error]

	// ResolvePending answers tool calls left open by an interrupted turn.
	ResolvePending(ctx context.Context, state *conversation.State) error
}

// Config contains the configuration for creating a Runner.
type Config struct {
	// Graph runs the turns.
	Graph TurnGraph

	// Store persists thread state between turns.
	Store checkpoint.Store
}

// Runner orchestrates turns within threads.
type Runner struct {
	graph TurnGraph
	store checkpoint.Store

	mu    sync.Mutex
	locks map[string]*threadLock
}

// threadLock is a context-aware mutex shared by the turns of one thread.
type threadLock struct {
	ch   chan struct{}
	refs int
}

// New creates a new Runner.
func New(cfg Config) (*Runner, error) {
	if cfg.Graph == nil {
		return nil, fmt.Errorf("turn graph is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("checkpoint store is required")
	}
	return &Runner{
		graph: cfg.Graph,
		store: cfg.Store,
		locks: make(map[string]*threadLock),
	}, nil
}

// Turn appends text as a user message to the thread and runs one turn,
// streaming the assistant's fragments. Errors are yielded once and end
// the sequence.
func (r *Runner) Turn(ctx context.Context, threadID, text string) iter.Seq2[conversation.Fragment, error] {
	return func(yield func(conversation.Fragment, error) bool) {
		if strings.TrimSpace(threadID) == "" {
			yield(conversation.Fragment{}, fmt.Errorf("thread id is required"))
			return
		}
		if strings.TrimSpace(text) == "" {
			yield(conversation.Fragment{}, fmt.Errorf("message text is required"))
			return
		}

		unlock, err := r.lock(ctx, threadID)
		if err != nil {
			yield(conversation.Fragment{}, err)
			return
		}
		defer unlock()

		state, err := r.loadOrCreate(ctx, threadID)
		if err != nil {
			yield(conversation.Fragment{}, err)
			return
		}

		// A turn cancelled between the assistant's tool calls and their
		// results leaves them open. Answer them before the user speaks.
		if err := r.graph.ResolvePending(ctx, state); err != nil {
			if saveErr := r.save(ctx, state); saveErr != nil {
				slog.Error("Failed to save checkpoint", "thread", threadID, "error", saveErr)
			}
			yield(conversation.Fragment{}, fmt.Errorf("failed to resolve pending tool calls: %w", err))
			return
		}

		if err := state.Append(conversation.NewUserMessage(text)); err != nil {
			yield(conversation.Fragment{}, err)
			return
		}

		stopped := false
		failed := false
		for frag, err := range r.graph.Run(ctx, state) {
			if err != nil {
				failed = true
			}
			if !yield(frag, err) {
				stopped = true
				break
			}
		}

		if err := r.save(ctx, state); err != nil {
			slog.Error("Failed to save checkpoint", "thread", threadID, "error", err)
			if !stopped && !failed {
				yield(conversation.Fragment{}, fmt.Errorf("failed to save checkpoint: %w", err))
			}
		}
	}
}

// save persists state with a context that outlives cancellation of the
// turn.
func (r *Runner) save(ctx context.Context, state *conversation.State) error {
	if err := r.store.Save(context.WithoutCancel(ctx), state); err != nil {
		return err
	}
	slog.Debug("Saved checkpoint", "thread", state.ThreadID(), "messages", state.Len())
	return nil
}

// Reset deletes the thread's checkpoint. The next turn starts a fresh
// conversation.
func (r *Runner) Reset(ctx context.Context, threadID string) error {
	unlock, err := r.lock(ctx, threadID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := r.store.Delete(ctx, threadID); err != nil {
		return fmt.Errorf("failed to reset thread %s: %w", threadID, err)
	}
	slog.Debug("Reset thread", "thread", threadID)
	return nil
}

// History returns the messages of a thread. Unknown threads have no
// history.
func (r *Runner) History(ctx context.Context, threadID string) ([]conversation.Message, error) {
	state, err := r.store.Load(ctx, threadID)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return state.Snapshot(), nil
}

// Threads lists the saved thread IDs.
func (r *Runner) Threads(ctx context.Context) ([]string, error) {
	return r.store.List(ctx)
}

func (r *Runner) loadOrCreate(ctx context.Context, threadID string) (*conversation.State, error) {
	state, err := r.store.Load(ctx, threadID)
	if errors.Is(err, checkpoint.ErrNotFound) {
		slog.Debug("Starting new thread", "thread", threadID)
		return conversation.NewState(threadID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load thread %s: %w", threadID, err)
	}
	return state, nil
}

// lock acquires the thread's lock or fails when ctx is done first.
func (r *Runner) lock(ctx context.Context, threadID string) (func(), error) {
	r.mu.Lock()
	l, ok := r.locks[threadID]
	if !ok {
		l = &threadLock{ch: make(chan struct{}, 1)}
		r.locks[threadID] = l
	}
	l.refs++
	r.mu.Unlock()

	release := func() {
		r.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, threadID)
		}
		r.mu.Unlock()
	}

	select {
	case l.ch <- struct{}{}:
		return func() {
			<-l.ch
			release()
		}, nil
	case <-ctx.Done():
		release()
		return nil, ctx.Err()
	}
}
