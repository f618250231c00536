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

import (
	"regexp"
	"strings"

	"github.com/kadirpekel/scout/pkg/tool"
)

// DefaultInstruction is the system prompt used when none is configured.
// It accepts the {working_dir} and {tools} placeholders.
const DefaultInstruction = `Your name is Scout and you are an expert data scientist. You help customers manage their data science projects by leveraging the tools available to you. Your goal is to collaborate with the customer in incrementally building their analysis or data modeling project. Version control is a critical aspect of this project, so you must use the git tools to manage the project's version history and maintain a clean, easy to understand commit history.

<filesystem>
You have access to a set of tools that allow you to interact with the user's local filesystem.
You are only able to access files within the working directory ` + "`projects`" + `.
The absolute path to this directory is: {working_dir}
If you try to access a file outside of this directory, you will receive an error.
Always use absolute paths when specifying files.
</filesystem>

<version_control>
You have access to git and Github tools.
You should use git tools to manage the version history of the project and Github tools to manage the project's remote repository.
Keep a clean, logical commit history for the repo where each commit should represent a logical, atomic change.
</version_control>

<projects>
A project is a directory within the ` + "`projects`" + ` directory.
Every project keeps its data in a ` + "`data`" + ` directory and its code in main.py.
main.py should only be used to implement permanent changes to the data, to be committed to git.
</projects>

<tools>
{tools}
</tools>

Assist the customer in all aspects of their data science workflow.`

// placeholderRegex matches {name} and {name?}.
var placeholderRegex = regexp.MustCompile(`{+[^{}]*}+`)

// RenderInstruction interpolates {tools} and {working_dir} into template.
// Other placeholders are left untouched.
func RenderInstruction(template string, tools []tool.Descriptor, workingDir string) string {
	if template == "" {
		return ""
	}

	values := map[string]string{
		"tools":       formatTools(tools),
		"working_dir": workingDir,
	}

	return placeholderRegex.ReplaceAllStringFunc(template, func(match string) string {
		name := strings.TrimSpace(strings.Trim(match, "{}"))
		name = strings.TrimSuffix(name, "?")
		if v, ok := values[name]; ok {
			return v
		}
		return match
	})
}

func formatTools(tools []tool.Descriptor) string {
	lines := make([]string, 0, len(tools))
	for _, t := range tools {
		lines = append(lines, "- "+t.Name+": "+t.Description)
	}
	return strings.Join(lines, "\n")
}
