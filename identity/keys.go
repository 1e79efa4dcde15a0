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

package identity

import (
	"strconv"

	"github.com/google/uuid"
)

// KeyConverter maps a host-native key type to the opaque string form
// the framework hands around (cookies, route values, session state).
// Format and Parse are explicit per-key-type functions; the zero key
// maps to the empty string and back in both directions. Parse errors
// from malformed input propagate unwrapped.
type KeyConverter[K comparable] struct {
	Format func(K) string
	Parse  func(string) (K, error)
}

// ToString renders k in its string form. The zero key renders as "".
func (c KeyConverter[K]) ToString(k K) string {
	var zero K
	if k == zero {
		return ""
	}
	return c.Format(k)
}

// FromString parses s back into the native key type. The empty string
// yields the zero key without consulting Parse.
func (c KeyConverter[K]) FromString(s string) (K, error) {
	var zero K
	if s == "" {
		return zero, nil
	}
	return c.Parse(s)
}

// StringKey converts string keys, the identity mapping.
func StringKey() KeyConverter[string] {
	return KeyConverter[string]{
		Format: func(s string) string { return s },
		Parse:  func(s string) (string, error) { return s, nil },
	}
}

// UUIDKey converts uuid.UUID keys. uuid.Nil is the zero key.
func UUIDKey() KeyConverter[uuid.UUID] {
	return KeyConverter[uuid.UUID]{
		Format: func(id uuid.UUID) string { return id.String() },
		Parse:  uuid.Parse,
	}
}

// Int64Key converts int64 keys in base 10.
func Int64Key() KeyConverter[int64] {
	return KeyConverter[int64]{
		Format: func(id int64) string { return strconv.FormatInt(id, 10) },
		Parse:  func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) },
	}
}
