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

// Package checkpoint persists conversation state between turns.
//
// A Store is a key/value store keyed by thread ID. Values are the
// serialized form of conversation.State and are opaque to the store.
// Backends:
//   - memory: process local, lost on restart
//   - sql: sqlite, postgres or mysql through database/sql
//   - redis: one key per thread plus a sorted-set index
package checkpoint

import (
	"context"
	"errors"
	"strings"

	"github.com/kadirpekel/scout/pkg/conversation"
)

// ErrNotFound is returned by Load for threads without a checkpoint.
var ErrNotFound = errors.New("checkpoint not found")

// Store persists conversation state by thread ID.
type Store interface {
	// Load returns the saved state of a thread or ErrNotFound.
	Load(ctx context.Context, threadID string) (*conversation.State, error)

	// Save stores state under its thread ID, replacing any previous
	// checkpoint.
	Save(ctx context.Context, state *conversation.State) error

	// Delete removes a thread. Deleting an unknown thread is not an
	// error.
	Delete(ctx context.Context, threadID string) error

	// List returns the IDs of all saved threads, sorted.
	List(ctx context.Context) ([]string, error)

	// Close releases the store's connections.
	Close() error
}

func validThreadID(threadID string) error {
	if strings.TrimSpace(threadID) == "" {
		return errors.New("thread id is required")
	}
	return nil
}
