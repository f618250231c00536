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

// Package mathserver implements the arithmetic tool server used by the
// demo agent. The same operations are exposed over MCP (Server) and as
// in-process tools (Tools).
package mathserver

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Add returns the sentence reporting a + b.
func Add(a, b int64) string {
	return fmt.Sprintf("The sum of %d and %d is %d", a, b, a+b)
}

// Multiply returns a * b.
func Multiply(a, b int64) int64 {
	return a * b
}

// Greeting returns the greeting served for greeting://{name}.
func Greeting(name string) string {
	return fmt.Sprintf("Hello, %s!", name)
}

var greetingStyles = map[string]string{
	"friendly": "Please write a warm, friendly greeting",
	"formal":   "Please write a formal, professional greeting",
	"casual":   "Please write a casual, relaxed greeting",
}

// GreetPrompt builds the greet_user prompt text. Unknown styles fall back
// to friendly.
func GreetPrompt(name, style string) string {
	lead, ok := greetingStyles[style]
	if !ok {
		lead = greetingStyles["friendly"]
	}
	return fmt.Sprintf("%s for someone named %s.", lead, name)
}

// intArg reads an integer argument. JSON numbers arrive as float64 and
// must be integral.
func intArg(args map[string]any, key string) (int64, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return 0, fmt.Errorf("missing required argument %q", key)
	}

	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("argument %q must be an integer, got %v", key, v)
		}
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("argument %q must be an integer, got %q", key, v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("argument %q must be an integer, got %T", key, raw)
	}
}

func operands(args map[string]any) (int64, int64, error) {
	a, err := intArg(args, "a")
	if err != nil {
		return 0, 0, err
	}
	b, err := intArg(args, "b")
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}
