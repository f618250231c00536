package conversation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_AppendRejectsOrphanToolResult(t *testing.T) {
	s := NewState("t1")
	require.NoError(t, s.Append(NewUserMessage("hi")))

	err := s.Append(NewToolResultMessage(ToolCall{ID: "call_missing", Name: "add"}, "3", false))

	var refErr *InvalidReferenceError
	require.True(t, errors.As(err, &refErr))
	assert.Equal(t, "call_missing", refErr.ToolCallID)
	assert.Equal(t, 1, s.Len(), "rejected message must not be appended")
}

func TestState_AppendAcceptsIssuedToolCall(t *testing.T) {
	s := NewState("t1")
	call := ToolCall{ID: "call_1", Name: "add", Arguments: map[string]any{"a": 1, "b": 2}}

	require.NoError(t, s.Append(NewUserMessage("add 1 and 2")))
	require.NoError(t, s.Append(NewAssistantMessage("", call)))
	require.NoError(t, s.Append(NewToolResultMessage(call, "3", false)))

	assert.Equal(t, 3, s.Len())
	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, RoleTool, last.Role)
	assert.Equal(t, "call_1", last.ToolCallID)
	assert.Equal(t, "add", last.ToolName)
}

func TestState_ToolResultWithoutIDIsInvalid(t *testing.T) {
	s := NewState("t1")
	require.NoError(t, s.Append(NewAssistantMessage("", ToolCall{ID: "call_1", Name: "add"})))

	err := s.Append(Message{Role: RoleTool, Text: "3"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "without tool call id")
}

func TestState_SnapshotIsACopy(t *testing.T) {
	s := NewState("t1")
	require.NoError(t, s.Append(NewUserMessage("one")))

	snap := s.Snapshot()
	snap[0].Text = "mutated"
	snap = append(snap, NewUserMessage("two"))

	assert.Len(t, snap, 2)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, "one", s.Snapshot()[0].Text)
}

func TestState_PendingToolCalls(t *testing.T) {
	s := NewState("t1")
	add := ToolCall{ID: "c1", Name: "add"}
	mul := ToolCall{ID: "c2", Name: "multiply"}

	assert.Empty(t, s.PendingToolCalls())

	require.NoError(t, s.Append(NewUserMessage("go")))
	assert.Empty(t, s.PendingToolCalls())

	require.NoError(t, s.Append(NewAssistantMessage("", add, mul)))
	assert.Equal(t, []ToolCall{add, mul}, s.PendingToolCalls())

	require.NoError(t, s.Append(NewToolResultMessage(mul, "6", false)))
	assert.Equal(t, []ToolCall{add}, s.PendingToolCalls())

	require.NoError(t, s.Append(NewToolResultMessage(add, "5", false)))
	assert.Empty(t, s.PendingToolCalls())
}

func TestState_LengthNeverDecreases(t *testing.T) {
	s := NewState("t1")
	prev := s.Len()
	msgs := []Message{
		NewUserMessage("a"),
		NewToolResultMessage(ToolCall{ID: "nope"}, "x", false),
		NewAssistantMessage("b", ToolCall{ID: "c1", Name: "add"}),
		NewToolResultMessage(ToolCall{ID: "c1", Name: "add"}, "ok", false),
		NewAssistantMessage("done"),
	}
	for _, m := range msgs {
		_ = s.Append(m)
		assert.GreaterOrEqual(t, s.Len(), prev)
		prev = s.Len()
	}
	assert.Equal(t, 4, s.Len())
}

func TestDecode_RestoresHistory(t *testing.T) {
	s := NewState("thread-42")
	call := ToolCall{ID: "c1", Name: "multiply", Arguments: map[string]any{"a": 6.0, "b": 7.0}}
	require.NoError(t, s.Append(NewUserMessage("6 times 7")))
	require.NoError(t, s.Append(NewAssistantMessage("", call)))
	require.NoError(t, s.Append(NewToolResultMessage(call, "42", false)))

	data, err := Encode(s)
	require.NoError(t, err)

	restored, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "thread-42", restored.ThreadID())
	require.Equal(t, 3, restored.Len())
	assert.Equal(t, call.Arguments, restored.Snapshot()[1].ToolCalls[0].Arguments)

	// Issued IDs are rebuilt, so further results for c1 are still accepted.
	assert.NoError(t, restored.Append(NewToolResultMessage(call, "42", false)))
}

func TestDecode_RejectsCorruptedHistory(t *testing.T) {
	data := []byte(`{"version":1,"thread_id":"t","messages":[{"role":"tool","tool_call_id":"ghost","text":"1"}]}`)

	_, err := Decode(data)

	var refErr *InvalidReferenceError
	assert.True(t, errors.As(err, &refErr))
}

func TestDecode_RejectsNewerVersion(t *testing.T) {
	_, err := Decode([]byte(`{"version":99,"thread_id":"t","messages":[]}`))
	assert.Error(t, err)
}
