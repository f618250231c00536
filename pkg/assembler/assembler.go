// Package assembler flattens the fragments of one turn into the reply
// text shown to users.
//
// Text fragments are concatenated as they are. Each tool call is
// introduced once by a marker line
//
//	< TOOL CALL: add >
//
// followed by its argument text as it streamed. The result is trimmed.
package assembler

import (
	"fmt"
	"iter"
	"strings"

	"github.com/kadirpekel/scout/pkg/conversation"
)

// Marker returns the line that introduces a tool call.
func Marker(name string) string {
	return fmt.Sprintf("< TOOL CALL: %s >", name)
}

// Builder assembles fragments incrementally. The zero value is ready to
// use. It is not safe for concurrent use.
type Builder struct {
	buf   strings.Builder
	calls map[string]struct{}
}

// Add appends one fragment and returns the text it contributed, so
// callers can echo a turn while it streams.
func (b *Builder) Add(f conversation.Fragment) string {
	var chunk string
	switch f.Kind {
	case conversation.FragmentText:
		chunk = f.Text

	case conversation.FragmentToolCall:
		chunk = f.Text
		if b.startsCall(f) {
			chunk = "\n\n" + Marker(f.ToolName) + "\n\n" + f.Text
		}
	}
	b.buf.WriteString(chunk)
	return chunk
}

// startsCall reports whether f is the first fragment of its call.
// Fragments without a call ID start a call whenever they carry a name.
func (b *Builder) startsCall(f conversation.Fragment) bool {
	if f.ToolCallID == "" {
		return f.ToolName != ""
	}
	if b.calls == nil {
		b.calls = make(map[string]struct{})
	}
	if _, seen := b.calls[f.ToolCallID]; seen {
		return false
	}
	b.calls[f.ToolCallID] = struct{}{}
	return true
}

// String returns the trimmed text assembled so far.
func (b *Builder) String() string {
	return strings.TrimSpace(b.buf.String())
}

// Reset clears the builder for the next turn.
func (b *Builder) Reset() {
	b.buf.Reset()
	b.calls = nil
}

// Assemble flattens a complete fragment sequence.
func Assemble(fragments []conversation.Fragment) string {
	var b Builder
	for _, f := range fragments {
		b.Add(f)
	}
	return b.String()
}

// Collect drains a turn and returns its assembled text. On error the text
// assembled before the failure is returned with it.
func Collect(seq iter.Seq2[conversation.Fragment, error]) (string, error) {
	var b Builder
	for f, err := range seq {
		if err != nil {
			return b.String(), err
		}
		b.Add(f)
	}
	return b.String(), nil
}
