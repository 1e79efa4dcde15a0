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

// RoleDocument is the capability contract the generic role store binds
// to. *Role implements it; custom role types get it by embedding.
type RoleDocument interface {
	Document
	ClaimHolder
}

// Role is the default role document: a named group of users with its
// own embedded claims.
type Role struct {
	ID             string  `bson:"_id" json:"id"`
	Name           string  `bson:"name" json:"name"`
	NormalizedName string  `bson:"normalized_name" json:"normalized_name"`
	Claims         []Claim `bson:"claims,omitempty" json:"claims,omitempty"`
}

func (r *Role) Key() string      { return r.ID }
func (r *Role) SetKey(id string) { r.ID = id }

// AddClaim appends c unless an equal claim is already present.
func (r *Role) AddClaim(c Claim) bool { return addClaim(&r.Claims, c) }

// ReplaceClaim removes every claim equal to orig and inserts repl.
// It reports false, changing nothing, when orig is absent.
func (r *Role) ReplaceClaim(orig, repl Claim) bool { return replaceClaim(&r.Claims, orig, repl) }

// RemoveClaim removes every claim equal to c and returns the count removed.
func (r *Role) RemoveClaim(c Claim) int { return removeClaim(&r.Claims, c) }

// ClaimList returns a snapshot of the embedded claims.
func (r *Role) ClaimList() []Claim { return claimSnapshot(r.Claims) }
