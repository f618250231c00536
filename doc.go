// Package scout is a tool-calling chat agent served over A2A.
//
// Scout runs a two-node turn graph: the assistant node asks a language
// model (Groq, OpenAI or Ollama) for the next message, and the tool node
// executes the tools that message requests, usually tools exposed by MCP
// servers. Conversation state is checkpointed per thread between turns.
//
// # Quick Start
//
// Start the bundled math MCP server and an agent that uses it:
//
//	export GROQ_API_KEY=...
//	scout serve --config scout.yaml
//
// with
//
//	llm:
//	  provider: groq
//	mcp:
//	  servers:
//	    math:
//	      command: scout-mathserver
//
// Talk to it from another terminal:
//
//	scout send --url http://localhost:9999 "add two numbers 23 and 45"
//
// or chat locally without a server:
//
//	scout chat --config scout.yaml
//
// # Packages
//
//   - pkg/conversation: append-only message log and stream fragments
//   - pkg/graph: the turn graph
//   - pkg/assembler: flattens fragments into reply text
//   - pkg/model: LLM interface and providers
//   - pkg/tool: tool registry and MCP toolsets
//   - pkg/checkpoint: thread state stores (memory, SQL, redis)
//   - pkg/session: runs turns against stored threads
//   - pkg/server: A2A JSON-RPC server
//   - pkg/config: YAML configuration
package scout
