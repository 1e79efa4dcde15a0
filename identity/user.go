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

// Package identity defines the document shapes persisted by the store
// adapters: users and roles with their embedded claims, logins, and
// tokens, plus the key-conversion contract used at the framework
// boundary.
//
// Documents carry both bson and json tags so the same shape works for
// every backing collection. Embedded collections are mutated through
// the methods below; the methods uphold the pair-uniqueness invariants
// that the raw slices cannot.
//
// Hosts with their own user shape embed User with `bson:",inline"` and
// pick up the UserDocument contract through promotion.
package identity

import (
	"time"

	"github.com/google/uuid"
)

// Document is the part of the contract every stored document satisfies:
// a string primary key, assigned by the caller before Create.
type Document interface {
	Key() string
	SetKey(id string)
}

// ClaimHolder is satisfied by documents carrying an embedded claim list.
type ClaimHolder interface {
	AddClaim(c Claim) bool
	ReplaceClaim(orig, repl Claim) bool
	RemoveClaim(c Claim) int
	ClaimList() []Claim
}

// UserDocument is the capability contract the generic user store binds
// to. *User implements it; custom document types get it by embedding.
type UserDocument interface {
	Document
	ClaimHolder

	AddLogin(l Login) bool
	RemoveLogin(provider, providerKey string) int
	LoginList() []Login

	SetToken(t Token)
	RemoveToken(provider, name string) bool
	LookupToken(provider, name string) (Token, bool)

	AddRole(name string) bool
	RemoveRole(name string) bool
	HasRole(name string) bool
	RoleList() []string

	IncrementAccessFailed() int
	ResetAccessFailed()
}

// User is the default user document. The identifier is immutable once
// assigned; callers populate the document and persist it explicitly
// through the store.
type User struct {
	ID                   string     `bson:"_id" json:"id"`
	UserName             string     `bson:"username" json:"username"`
	NormalizedUserName   string     `bson:"normalized_username" json:"normalized_username"`
	Email                string     `bson:"email" json:"email"`
	NormalizedEmail      string     `bson:"normalized_email" json:"normalized_email"`
	EmailConfirmed       bool       `bson:"email_confirmed" json:"email_confirmed"`
	PasswordHash         string     `bson:"password_hash,omitempty" json:"password_hash,omitempty"`
	SecurityStamp        string     `bson:"security_stamp,omitempty" json:"security_stamp,omitempty"`
	PhoneNumber          string     `bson:"phone_number,omitempty" json:"phone_number,omitempty"`
	PhoneNumberConfirmed bool       `bson:"phone_number_confirmed" json:"phone_number_confirmed"`
	TwoFactorEnabled     bool       `bson:"two_factor_enabled" json:"two_factor_enabled"`
	LockoutEnd           *time.Time `bson:"lockout_end,omitempty" json:"lockout_end,omitempty"`
	LockoutEnabled       bool       `bson:"lockout_enabled" json:"lockout_enabled"`
	AccessFailedCount    int        `bson:"access_failed_count" json:"access_failed_count"`

	Claims []Claim  `bson:"claims,omitempty" json:"claims,omitempty"`
	Logins []Login  `bson:"logins,omitempty" json:"logins,omitempty"`
	Tokens []Token  `bson:"tokens,omitempty" json:"tokens,omitempty"`
	Roles  []string `bson:"roles,omitempty" json:"roles,omitempty"`
}

// NewID returns a fresh client-side identifier for a document.
func NewID() string {
	return uuid.NewString()
}

func (u *User) Key() string      { return u.ID }
func (u *User) SetKey(id string) { u.ID = id }

// AddClaim appends c unless an equal claim is already present.
func (u *User) AddClaim(c Claim) bool { return addClaim(&u.Claims, c) }

// ReplaceClaim removes every claim equal to orig and inserts repl.
// It reports false, changing nothing, when orig is absent.
func (u *User) ReplaceClaim(orig, repl Claim) bool { return replaceClaim(&u.Claims, orig, repl) }

// RemoveClaim removes every claim equal to c and returns the count removed.
func (u *User) RemoveClaim(c Claim) int { return removeClaim(&u.Claims, c) }

// ClaimList returns a snapshot of the embedded claims.
func (u *User) ClaimList() []Claim { return claimSnapshot(u.Claims) }

// AddLogin appends l unless a login with the same (provider, key) pair
// is already present.
func (u *User) AddLogin(l Login) bool {
	for _, existing := range u.Logins {
		if existing.Provider == l.Provider && existing.ProviderKey == l.ProviderKey {
			return false
		}
	}
	u.Logins = append(u.Logins, l)
	return true
}

// RemoveLogin removes every login matching the (provider, key) pair and
// returns the count removed.
func (u *User) RemoveLogin(provider, providerKey string) int {
	kept := u.Logins[:0]
	removed := 0
	for _, existing := range u.Logins {
		if existing.Provider == provider && existing.ProviderKey == providerKey {
			removed++
			continue
		}
		kept = append(kept, existing)
	}
	u.Logins = kept
	return removed
}

// LoginList returns a snapshot of the embedded logins.
func (u *User) LoginList() []Login {
	out := make([]Login, len(u.Logins))
	copy(out, u.Logins)
	return out
}

// SetToken stores t, replacing any existing token with the same
// (provider, name) pair. Last write wins, no merge.
func (u *User) SetToken(t Token) {
	u.RemoveToken(t.Provider, t.Name)
	u.Tokens = append(u.Tokens, t)
}

// RemoveToken removes the token with the given (provider, name) pair
// and reports whether one was present.
func (u *User) RemoveToken(provider, name string) bool {
	kept := u.Tokens[:0]
	removed := false
	for _, existing := range u.Tokens {
		if existing.Provider == provider && existing.Name == name {
			removed = true
			continue
		}
		kept = append(kept, existing)
	}
	u.Tokens = kept
	return removed
}

// LookupToken returns the first token matching the (provider, name) pair.
func (u *User) LookupToken(provider, name string) (Token, bool) {
	for _, existing := range u.Tokens {
		if existing.Provider == provider && existing.Name == name {
			return existing, true
		}
	}
	return Token{}, false
}

// AddRole records membership in the named role. Idempotent.
func (u *User) AddRole(name string) bool {
	if u.HasRole(name) {
		return false
	}
	u.Roles = append(u.Roles, name)
	return true
}

// RemoveRole drops membership in the named role and reports whether the
// user was a member.
func (u *User) RemoveRole(name string) bool {
	kept := u.Roles[:0]
	removed := false
	for _, existing := range u.Roles {
		if existing == name {
			removed = true
			continue
		}
		kept = append(kept, existing)
	}
	u.Roles = kept
	return removed
}

// HasRole reports whether the user references the named role.
func (u *User) HasRole(name string) bool {
	for _, existing := range u.Roles {
		if existing == name {
			return true
		}
	}
	return false
}

// RoleList returns a snapshot of the referenced role names.
func (u *User) RoleList() []string {
	out := make([]string, len(u.Roles))
	copy(out, u.Roles)
	return out
}

// IncrementAccessFailed bumps the failed sign-in counter and returns
// the new count.
func (u *User) IncrementAccessFailed() int {
	u.AccessFailedCount++
	return u.AccessFailedCount
}

// ResetAccessFailed clears the failed sign-in counter.
func (u *User) ResetAccessFailed() {
	u.AccessFailedCount = 0
}
