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

package mathserver

import (
	"context"

	"github.com/kadirpekel/scout/pkg/tool"
)

const (
	addDescription      = "Add two numbers and return as string."
	multiplyDescription = "Multiply two numbers and return the result."
)

func operandSchema() map[string]any {
	return tool.ObjectSchema(map[string]any{
		"a": map[string]any{"type": "integer", "description": "First operand"},
		"b": map[string]any{"type": "integer", "description": "Second operand"},
	}, "a", "b")
}

// Tools returns add and multiply as in-process tools.
func Tools() []tool.Tool {
	return []tool.Tool{
		tool.NewFunc(tool.Descriptor{
			Name:        "add",
			Description: addDescription,
			InputSchema: operandSchema(),
		}, func(_ context.Context, args map[string]any) (any, error) {
			a, b, err := operands(args)
			if err != nil {
				return nil, err
			}
			return Add(a, b), nil
		}),
		tool.NewFunc(tool.Descriptor{
			Name:        "multiply",
			Description: multiplyDescription,
			InputSchema: operandSchema(),
		}, func(_ context.Context, args map[string]any) (any, error) {
			a, b, err := operands(args)
			if err != nil {
				return nil, err
			}
			return Multiply(a, b), nil
		}),
	}
}
