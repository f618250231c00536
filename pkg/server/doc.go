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

// Package server exposes a session runner as an A2A agent.
//
// Executor implements a2asrv.AgentExecutor. Each inbound message becomes
// one turn on the thread named by the A2A context id; the assembled reply
// is published as a single artifact and the task completes with a short
// status message. HTTPServer mounts the a2a-go JSON-RPC handler and the
// agent card on a chi router together with health and metrics endpoints.
//
//	srv := server.NewHTTPServer(&cfg.Server, rt.Runner(),
//	    server.WithObservability(rt.Observability()),
//	    server.WithDefaultPrompt(cfg.Agent.DefaultPrompt))
//	err := srv.Start(ctx)
package server
