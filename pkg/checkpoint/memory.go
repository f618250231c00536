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

package checkpoint

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/kadirpekel/scout/pkg/conversation"
)

// MemoryStore keeps serialized checkpoints in a map. Loaded states never
// share memory with the stored copy.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{threads: make(map[string][]byte)}
}

func (m *MemoryStore) Load(_ context.Context, threadID string) (*conversation.State, error) {
	m.mu.RLock()
	data, ok := m.threads[threadID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return conversation.Decode(data)
}

func (m *MemoryStore) Save(_ context.Context, state *conversation.State) error {
	if state == nil {
		return fmt.Errorf("cannot save nil state")
	}
	if err := validThreadID(state.ThreadID()); err != nil {
		return err
	}
	data, err := conversation.Encode(state)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.threads[state.ThreadID()] = slices.Clone(data)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.threads, threadID)
	return nil
}

func (m *MemoryStore) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.threads))
	for id := range m.threads {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
