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

	"github.com/kadirpekel/scout/pkg/config"
)

// New creates the store selected by cfg.
func New(ctx context.Context, cfg config.CheckpointConfig) (Store, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid checkpoint configuration: %w", err)
	}

	switch cfg.Backend {
	case config.CheckpointBackendMemory:
		return NewMemoryStore(), nil
	case config.CheckpointBackendSQL:
		store, err := NewSQLStoreFromConfig(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.CheckpointBackendRedis:
		store, err := NewRedisStoreFromConfig(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported checkpoint backend: %s", cfg.Backend)
	}
}
