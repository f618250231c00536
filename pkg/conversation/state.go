package conversation

import (
	"fmt"
	"slices"
)

// InvalidReferenceError is returned when a tool result references a tool
// call ID that no earlier assistant message emitted.
type InvalidReferenceError struct {
	ToolCallID string
}

func (e *InvalidReferenceError) Error() string {
	if e.ToolCallID == "" {
		return "tool result without tool call id"
	}
	return fmt.Sprintf("tool result references unknown tool call %q", e.ToolCallID)
}

// State is the message log of one conversation thread.
//
// State is not safe for concurrent use. One State must be driven by at
// most one turn at a time.
type State struct {
	threadID string
	messages []Message

	// issued holds every tool call ID emitted by an assistant message.
	issued map[string]struct{}
}

// NewState creates an empty conversation for threadID.
func NewState(threadID string) *State {
	return &State{
		threadID: threadID,
		issued:   make(map[string]struct{}),
	}
}

// ThreadID returns the identifier the state is keyed by.
func (s *State) ThreadID() string {
	return s.threadID
}

// Append adds m to the end of the log.
func (s *State) Append(m Message) error {
	if m.Role == RoleTool {
		if _, ok := s.issued[m.ToolCallID]; !ok || m.ToolCallID == "" {
			return &InvalidReferenceError{ToolCallID: m.ToolCallID}
		}
	}

	if m.Role == RoleAssistant {
		for _, call := range m.ToolCalls {
			s.issued[call.ID] = struct{}{}
		}
	}

	s.messages = append(s.messages, m)
	return nil
}

// Snapshot returns a copy of the full ordered log.
func (s *State) Snapshot() []Message {
	return slices.Clone(s.messages)
}

// Len returns the number of messages in the log.
func (s *State) Len() int {
	return len(s.messages)
}

// Last returns the most recent message.
func (s *State) Last() (Message, bool) {
	if len(s.messages) == 0 {
		return Message{}, false
	}
	return s.messages[len(s.messages)-1], true
}

// PendingToolCalls returns the tool calls of the latest assistant message
// that have no result yet, in the order they were requested.
func (s *State) PendingToolCalls() []ToolCall {
	answered := make(map[string]struct{})
	for i := len(s.messages) - 1; i >= 0; i-- {
		m := s.messages[i]
		switch m.Role {
		case RoleTool:
			answered[m.ToolCallID] = struct{}{}
		case RoleAssistant:
			var pending []ToolCall
			for _, call := range m.ToolCalls {
				if _, ok := answered[call.ID]; !ok {
					pending = append(pending, call)
				}
			}
			return pending
		default:
			return nil
		}
	}
	return nil
}
