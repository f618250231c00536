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

package config

import (
	"fmt"
	"time"
)

// Checkpoint backends.
const (
	CheckpointBackendMemory = "memory"
	CheckpointBackendSQL    = "sql"
	CheckpointBackendRedis  = "redis"
)

// CheckpointConfig selects where conversation state is saved between
// turns.
type CheckpointConfig struct {
	// Backend is memory, sql or redis.
	Backend string `yaml:"backend,omitempty" json:"backend,omitempty" jsonschema:"title=Backend,enum=memory,enum=sql,enum=redis,default=memory"`

	// Database configures the sql backend.
	Database *DatabaseConfig `yaml:"database,omitempty" json:"database,omitempty" jsonschema:"title=Database"`

	// Redis configures the redis backend.
	Redis *RedisConfig `yaml:"redis,omitempty" json:"redis,omitempty" jsonschema:"title=Redis"`
}

// SetDefaults applies default values.
func (c *CheckpointConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = CheckpointBackendMemory
	}
	switch c.Backend {
	case CheckpointBackendSQL:
		if c.Database == nil {
			c.Database = &DatabaseConfig{Driver: "sqlite", Database: "scout.db"}
		}
		c.Database.SetDefaults()
	case CheckpointBackendRedis:
		if c.Redis == nil {
			c.Redis = &RedisConfig{}
		}
		c.Redis.SetDefaults()
	}
}

// Validate checks the checkpoint configuration.
func (c *CheckpointConfig) Validate() error {
	switch c.Backend {
	case CheckpointBackendMemory:
		return nil
	case CheckpointBackendSQL:
		if c.Database == nil {
			return fmt.Errorf("database is required for sql backend")
		}
		if err := c.Database.Validate(); err != nil {
			return fmt.Errorf("database: %w", err)
		}
		return nil
	case CheckpointBackendRedis:
		if c.Redis == nil {
			return fmt.Errorf("redis is required for redis backend")
		}
		if err := c.Redis.Validate(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("invalid backend %q (valid: memory, sql, redis)", c.Backend)
	}
}

// RedisConfig configures the redis checkpoint backend.
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty" json:"addr,omitempty" jsonschema:"title=Address,default=localhost:6379"`
	Password string `yaml:"password,omitempty" json:"password,omitempty" jsonschema:"title=Password"`
	DB       int    `yaml:"db,omitempty" json:"db,omitempty" jsonschema:"title=Database Index,minimum=0"`

	// KeyPrefix namespaces checkpoint keys.
	KeyPrefix string `yaml:"key_prefix,omitempty" json:"key_prefix,omitempty" jsonschema:"title=Key Prefix,default=scout:checkpoint:"`

	// TTL expires idle threads. Zero keeps them forever.
	TTL time.Duration `yaml:"ttl,omitempty" json:"ttl,omitempty" jsonschema:"title=TTL"`
}

// SetDefaults applies default values.
func (c *RedisConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "scout:checkpoint:"
	}
}

// Validate checks the redis configuration.
func (c *RedisConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if c.DB < 0 {
		return fmt.Errorf("db must be non-negative")
	}
	if c.TTL < 0 {
		return fmt.Errorf("ttl must be non-negative")
	}
	return nil
}
