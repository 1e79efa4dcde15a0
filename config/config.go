// Copyright 2026 The OpenTrusty Authors
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

// Package config loads store configuration from the environment for
// hosts that wire the adapters without their own configuration layer.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds the store connection parameters. The connection URI
// names the backend: a mongodb:// or mongodb+srv:// target for the
// MongoDB driver, a postgres:// DSN for the JSONB driver. Either way
// the target must resolve to a database name.
type Config struct {
	ConnectionURI   string `env:"IDENTITYSTORE_URI"`
	UsersCollection string `env:"IDENTITYSTORE_USERS_COLLECTION" envDefault:"users"`
	RolesCollection string `env:"IDENTITYSTORE_ROLES_COLLECTION" envDefault:"roles"`
	LogLevel        string `env:"IDENTITYSTORE_LOG_LEVEL" envDefault:"info"`
	LogFormat       string `env:"IDENTITYSTORE_LOG_FORMAT" envDefault:"json"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the startup-time requirements.
func (c *Config) Validate() error {
	if c.ConnectionURI == "" {
		return fmt.Errorf("IDENTITYSTORE_URI is required")
	}
	if c.UsersCollection == "" {
		return fmt.Errorf("IDENTITYSTORE_USERS_COLLECTION must not be empty")
	}
	if c.RolesCollection == "" {
		return fmt.Errorf("IDENTITYSTORE_ROLES_COLLECTION must not be empty")
	}
	return nil
}
