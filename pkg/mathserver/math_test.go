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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/scout/pkg/tool"
)

func TestAdd(t *testing.T) {
	assert.Equal(t, "The sum of 23 and 45 is 68", Add(23, 45))
	assert.Equal(t, "The sum of -2 and 2 is 0", Add(-2, 2))
}

func TestMultiply(t *testing.T) {
	assert.Equal(t, int64(42), Multiply(6, 7))
}

func TestGreetPrompt(t *testing.T) {
	assert.Equal(t, "Please write a formal, professional greeting for someone named Ada.", GreetPrompt("Ada", "formal"))
	assert.Equal(t, "Please write a warm, friendly greeting for someone named Ada.", GreetPrompt("Ada", "unknown"))
}

func TestIntArg(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		want    int64
		wantErr bool
	}{
		{"float", 23.0, 23, false},
		{"int", 7, 7, false},
		{"json number", json.Number("45"), 45, false},
		{"string", " 12 ", 12, false},
		{"fractional", 1.5, 0, true},
		{"bool", true, 0, true},
		{"bad string", "twelve", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := intArg(map[string]any{"a": tt.value}, "a")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := intArg(map[string]any{}, "a")
	assert.ErrorContains(t, err, "missing")
}

func TestTools(t *testing.T) {
	registry, err := tool.NewRegistry(Tools()...)
	require.NoError(t, err)

	descs := registry.Descriptors()
	require.Len(t, descs, 2)
	assert.Equal(t, "add", descs[0].Name)
	assert.Equal(t, []string{"a", "b"}, descs[0].InputSchema["required"])

	out, err := registry.Call(context.Background(), "add", map[string]any{"a": 23.0, "b": 45.0})
	require.NoError(t, err)
	assert.Equal(t, "The sum of 23 and 45 is 68", out)

	out, err = registry.Call(context.Background(), "multiply", map[string]any{"a": 6.0, "b": 7.0})
	require.NoError(t, err)
	assert.Equal(t, "42", out)

	_, err = registry.Call(context.Background(), "add", map[string]any{"a": 1.0})
	var execErr *tool.ToolExecutionError
	assert.ErrorAs(t, err, &execErr)
}
