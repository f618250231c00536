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

import "strings"

// Node names used in rendered diagrams.
const (
	NodeStart     = "__start__"
	NodeEnd       = "__end__"
	NodeAssistant = "assistant"
	NodeTools     = "tools"
)

// Mermaid renders the turn graph as a Mermaid flowchart. Dotted edges
// are conditional on the assistant message carrying tool calls.
func Mermaid() string {
	var b strings.Builder
	b.WriteString("---\nconfig:\n  flowchart:\n    curve: linear\n---\n")
	b.WriteString("graph TD;\n")
	b.WriteString("\t" + NodeStart + "([<p>" + NodeStart + "</p>]):::first\n")
	b.WriteString("\t" + NodeAssistant + "(" + NodeAssistant + ")\n")
	b.WriteString("\t" + NodeTools + "(" + NodeTools + ")\n")
	b.WriteString("\t" + NodeEnd + "([<p>" + NodeEnd + "</p>]):::last\n")
	b.WriteString("\t" + NodeStart + " --> " + NodeAssistant + ";\n")
	b.WriteString("\t" + NodeAssistant + " -.-> " + NodeEnd + ";\n")
	b.WriteString("\t" + NodeAssistant + " -.-> " + NodeTools + ";\n")
	b.WriteString("\t" + NodeTools + " --> " + NodeAssistant + ";\n")
	b.WriteString("\tclassDef default fill:#f2f0ff,line-height:1.2\n")
	b.WriteString("\tclassDef first fill-opacity:0\n")
	b.WriteString("\tclassDef last fill:#bfb6fc\n")
	return b.String()
}
