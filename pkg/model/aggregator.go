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

package model

import (
	"encoding/json"
	"iter"
	"log/slog"
	"strings"

	"github.com/kadirpekel/scout/pkg/conversation"
)

// StreamingAggregator aggregates partial streaming responses.
//
// It turns provider deltas into partial responses carrying one fragment
// each and builds the final assistant message on Close.
//
// Usage:
//
//	agg := NewStreamingAggregator()
//	for chunk := range chunks {
//	    for resp, err := range agg.ProcessTextDelta(chunk.Text) {
//	        if !yield(resp, err) {
//	            return
//	        }
//	    }
//	}
//	yield(agg.Close(), nil)
type StreamingAggregator struct {
	text         strings.Builder
	calls        []*pendingCall
	byKey        map[string]*pendingCall
	ids          map[string]struct{}
	usage        *Usage
	finishReason FinishReason
}

type pendingCall struct {
	id   string
	name string
	args strings.Builder

	// complete holds arguments delivered already parsed.
	complete map[string]any
}

// NewStreamingAggregator creates a new streaming aggregator.
func NewStreamingAggregator() *StreamingAggregator {
	return &StreamingAggregator{
		byKey: make(map[string]*pendingCall),
		ids:   make(map[string]struct{}),
	}
}

// claimID returns id, or a fresh one when id is empty or already used by
// another call of this response. Fragments carry the claimed ID, so every
// call streams under an ID of its own.
func (s *StreamingAggregator) claimID(id string) string {
	if _, taken := s.ids[id]; id == "" || taken {
		id = conversation.NewToolCallID()
	}
	s.ids[id] = struct{}{}
	return id
}

// ProcessTextDelta processes a text delta chunk.
func (s *StreamingAggregator) ProcessTextDelta(text string) iter.Seq2[*Response, error] {
	return func(yield func(*Response, error) bool) {
		if text == "" {
			return
		}
		s.text.WriteString(text)

		frag := conversation.TextFragment(text)
		yield(&Response{Fragment: &frag, Partial: true}, nil)
	}
}

// ProcessToolCallDelta processes a streamed piece of a tool call.
//
// key groups the deltas of one call (the provider's index or ID). The ID
// is fixed by the first delta; a missing or duplicate ID is replaced. The
// name is taken from the first delta that carries one; argument text is
// concatenated.
func (s *StreamingAggregator) ProcessToolCallDelta(key, id, name, argsDelta string) iter.Seq2[*Response, error] {
	return func(yield func(*Response, error) bool) {
		call, ok := s.byKey[key]
		if !ok {
			call = &pendingCall{}
			s.byKey[key] = call
			s.calls = append(s.calls, call)
		}
		if call.id == "" {
			call.id = s.claimID(id)
		}
		if call.name == "" && name != "" {
			call.name = name
		}
		call.args.WriteString(argsDelta)

		frag := conversation.ToolCallFragment(call.id, call.name, argsDelta)
		yield(&Response{Fragment: &frag, Partial: true}, nil)
	}
}

// ProcessToolCall processes a tool call delivered in one piece.
func (s *StreamingAggregator) ProcessToolCall(tc conversation.ToolCall) iter.Seq2[*Response, error] {
	return func(yield func(*Response, error) bool) {
		tc.ID = s.claimID(tc.ID)
		call := &pendingCall{id: tc.ID, name: tc.Name, complete: tc.Arguments}
		if call.complete == nil {
			call.complete = map[string]any{}
		}
		s.calls = append(s.calls, call)

		args, err := json.Marshal(call.complete)
		if err != nil {
			args = []byte("{}")
		}
		frag := conversation.ToolCallFragment(tc.ID, tc.Name, string(args))
		yield(&Response{Fragment: &frag, Partial: true}, nil)
	}
}

// SetUsage sets the usage statistics.
func (s *StreamingAggregator) SetUsage(usage *Usage) {
	s.usage = usage
}

// SetFinishReason sets the finish reason.
func (s *StreamingAggregator) SetFinishReason(reason FinishReason) {
	s.finishReason = reason
}

// Close generates the final aggregated response. It always returns a
// response, even when the model produced nothing.
func (s *StreamingAggregator) Close() *Response {
	calls := make([]conversation.ToolCall, 0, len(s.calls))
	for _, c := range s.calls {
		calls = append(calls, conversation.ToolCall{
			ID:        c.id,
			Name:      c.name,
			Arguments: c.arguments(),
		})
	}

	msg := conversation.NewAssistantMessage(s.text.String())
	if len(calls) > 0 {
		msg.ToolCalls = calls
	}

	reason := s.finishReason
	if reason == "" {
		reason = FinishReasonStop
		if len(calls) > 0 {
			reason = FinishReasonToolCalls
		}
	}

	resp := &Response{
		Message:      &msg,
		Partial:      false,
		Usage:        s.usage,
		FinishReason: reason,
	}

	s.clear()
	return resp
}

func (c *pendingCall) arguments() map[string]any {
	if c.complete != nil {
		return c.complete
	}

	raw := strings.TrimSpace(c.args.String())
	args := map[string]any{}
	if raw == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		slog.Warn("Discarding malformed tool call arguments", "tool", c.name, "error", err)
		return map[string]any{}
	}
	return args
}

func (s *StreamingAggregator) clear() {
	s.text.Reset()
	s.calls = nil
	s.byKey = make(map[string]*pendingCall)
	s.ids = make(map[string]struct{})
	s.usage = nil
	s.finishReason = ""
}
