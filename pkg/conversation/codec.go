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

package conversation

import (
	"encoding/json"
	"fmt"
)

// codecVersion is bumped when the persisted layout changes.
const codecVersion = 1

type persistedState struct {
	Version  int       `json:"version"`
	ThreadID string    `json:"thread_id"`
	Messages []Message `json:"messages"`
}

// MarshalJSON encodes the state for checkpoint storage.
func (s *State) MarshalJSON() ([]byte, error) {
	messages := s.messages
	if messages == nil {
		messages = []Message{}
	}
	return json.Marshal(persistedState{
		Version:  codecVersion,
		ThreadID: s.threadID,
		Messages: messages,
	})
}

// UnmarshalJSON decodes a state, replaying every message through Append so
// a corrupted history is rejected instead of silently loaded.
func (s *State) UnmarshalJSON(data []byte) error {
	var p persistedState
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.Version > codecVersion {
		return fmt.Errorf("unsupported conversation version %d", p.Version)
	}

	restored := NewState(p.ThreadID)
	for i, m := range p.Messages {
		if err := restored.Append(m); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
	}

	*s = *restored
	return nil
}

// Encode serializes s.
func Encode(s *State) ([]byte, error) {
	return json.Marshal(s)
}

// Decode restores a state serialized with Encode.
func Decode(data []byte) (*State, error) {
	s := &State{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to decode conversation: %w", err)
	}
	return s, nil
}
