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

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("IDENTITYSTORE_URI", "mongodb://localhost:27017/identity")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "mongodb://localhost:27017/identity", cfg.ConnectionURI)
	assert.Equal(t, "users", cfg.UsersCollection)
	assert.Equal(t, "roles", cfg.RolesCollection)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("IDENTITYSTORE_URI", "postgres://app@db:5432/identity")
	t.Setenv("IDENTITYSTORE_USERS_COLLECTION", "accounts")
	t.Setenv("IDENTITYSTORE_ROLES_COLLECTION", "groups")
	t.Setenv("IDENTITYSTORE_LOG_LEVEL", "debug")
	t.Setenv("IDENTITYSTORE_LOG_FORMAT", "text")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "accounts", cfg.UsersCollection)
	assert.Equal(t, "groups", cfg.RolesCollection)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoad_MissingURI(t *testing.T) {
	t.Setenv("IDENTITYSTORE_URI", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IDENTITYSTORE_URI")
}

func TestValidate_EmptyCollections(t *testing.T) {
	cfg := &Config{ConnectionURI: "mongodb://localhost/identity"}
	require.Error(t, cfg.Validate())

	cfg.UsersCollection = "users"
	require.Error(t, cfg.Validate())

	cfg.RolesCollection = "roles"
	require.NoError(t, cfg.Validate())
}
