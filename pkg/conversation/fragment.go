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

package conversation

// FragmentKind distinguishes streamed text from streamed tool calls.
type FragmentKind int

const (
	FragmentText FragmentKind = iota
	FragmentToolCall
)

func (k FragmentKind) String() string {
	switch k {
	case FragmentText:
		return "text"
	case FragmentToolCall:
		return "tool_call"
	default:
		return "unknown"
	}
}

// Fragment is an incremental piece of streamed assistant output.
//
// Fragments of one tool call are contiguous and share ToolCallID. Only
// the first of them is required to carry ToolName.
type Fragment struct {
	Kind FragmentKind

	// Text is the text delta for text fragments and the partial argument
	// text for tool call fragments.
	Text string

	ToolName   string
	ToolCallID string
}

// TextFragment creates a text fragment.
func TextFragment(text string) Fragment {
	return Fragment{Kind: FragmentText, Text: text}
}

// ToolCallFragment creates a tool call fragment carrying partial arguments.
func ToolCallFragment(id, name, partialArguments string) Fragment {
	return Fragment{
		Kind:       FragmentToolCall,
		Text:       partialArguments,
		ToolName:   name,
		ToolCallID: id,
	}
}
