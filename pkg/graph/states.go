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

package graph

// State is a node of the turn graph.
type State int

const (
	// AwaitingAssistant is the entry state of every turn.
	AwaitingAssistant State = iota

	// AwaitingTool is entered when the last assistant message requested
	// tools and left once each request has a result.
	AwaitingTool

	// Terminal ends the turn. Nothing leaves it.
	Terminal
)

func (s State) String() string {
	switch s {
	case AwaitingAssistant:
		return "awaiting_assistant"
	case AwaitingTool:
		return "awaiting_tool"
	case Terminal:
		return "terminal"
	default:
		return "unknown"
	}
}
