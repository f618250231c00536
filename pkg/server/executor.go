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
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/a2aproject/a2a-go/a2asrv/eventqueue"
	"github.com/google/uuid"

	"github.com/kadirpekel/scout/pkg/assembler"
	"github.com/kadirpekel/scout/pkg/config"
	"github.com/kadirpekel/scout/pkg/conversation"
)

const (
	// DoneMessage is the status message of a completed task.
	DoneMessage = "✅ Done processing request."

	failedPrefix = "❌ Executor failed: "
)

// ErrCancelNotSupported is reported when a client cancels a task.
var ErrCancelNotSupported = errors.New("cancel not supported")

// Turner runs one conversational turn. session.Runner implements it.
type Turner interface {
	Turn(ctx context.Context, threadID, text string) iter.Seq2[conversation.Fragment, error]
}

// Executor implements a2asrv.AgentExecutor on top of a Turner.
//
// Event sequence for one message:
//   - TaskStateSubmitted for new tasks
//   - TaskStateWorking before the turn starts
//   - one artifact holding the assembled reply, when it is not empty
//   - TaskStateCompleted with DoneMessage, or TaskStateFailed with the
//     cause when the turn ended with an error
type Executor struct {
	turner        Turner
	defaultPrompt string
}

// NewExecutor creates an executor. An empty defaultPrompt uses
// config.DefaultPrompt.
func NewExecutor(turner Turner, defaultPrompt string) *Executor {
	if defaultPrompt == "" {
		defaultPrompt = config.DefaultPrompt
	}
	return &Executor{turner: turner, defaultPrompt: defaultPrompt}
}

// Execute implements a2asrv.AgentExecutor.
func (e *Executor) Execute(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	text := messageText(reqCtx.Message)
	if text == "" {
		text = e.defaultPrompt
	}

	threadID := reqCtx.ContextID
	if threadID == "" {
		threadID = uuid.NewString()
	}

	if reqCtx.StoredTask == nil {
		event := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateSubmitted, nil)
		if err := queue.Write(ctx, event); err != nil {
			return fmt.Errorf("failed to write submitted event: %w", err)
		}
	}

	working := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateWorking, nil)
	if err := queue.Write(ctx, working); err != nil {
		return fmt.Errorf("failed to write working event: %w", err)
	}

	slog.Debug("Executing turn", "thread", threadID, "task", string(reqCtx.TaskID))
	reply, turnErr := assembler.Collect(e.turner.Turn(ctx, threadID, text))

	if reply != "" {
		artifact := a2a.NewArtifactEvent(reqCtx, a2a.TextPart{Text: reply})
		artifact.LastChunk = true
		if err := queue.Write(ctx, artifact); err != nil {
			return fmt.Errorf("failed to write artifact: %w", err)
		}
	}

	if turnErr != nil {
		slog.Error("Turn failed", "thread", threadID, "error", turnErr)
		return queue.Write(ctx, failedEvent(reqCtx, turnErr))
	}

	done := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCompleted, agentMessage(reqCtx, DoneMessage))
	done.Final = true
	if err := queue.Write(ctx, done); err != nil {
		return fmt.Errorf("failed to write completed event: %w", err)
	}
	return nil
}

// Cancel implements a2asrv.AgentExecutor. Running turns cannot be
// interrupted, so the task is failed with ErrCancelNotSupported.
func (e *Executor) Cancel(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	return queue.Write(ctx, failedEvent(reqCtx, ErrCancelNotSupported))
}

func failedEvent(reqCtx *a2asrv.RequestContext, cause error) *a2a.TaskStatusUpdateEvent {
	ev := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateFailed, agentMessage(reqCtx, failedPrefix+cause.Error()))
	ev.Final = true
	return ev
}

var _ a2asrv.AgentExecutor = (*Executor)(nil)
