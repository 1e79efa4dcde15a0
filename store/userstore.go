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

package store

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/opentrusty/identitystore/driver"
	"github.com/opentrusty/identitystore/identity"
)

// UserStore persists user documents in a single collection. T is the
// concrete document type, *identity.User or a host type embedding it.
//
// Safe for concurrent use against distinct documents; the store never
// serializes access to a single in-memory document, callers do.
type UserStore[T identity.UserDocument] struct {
	col    driver.Collection[T]
	cfg    settings
	closed atomic.Bool
}

// NewUserStore builds a user store over the given collection.
func NewUserStore[T identity.UserDocument](col driver.Collection[T], opts ...Option) *UserStore[T] {
	return &UserStore[T]{col: col, cfg: newSettings(opts)}
}

// Close marks the store closed. Idempotent; the store does not own the
// database connection, so no resources are released. Every operation
// after Close fails with ErrStoreClosed.
func (s *UserStore[T]) Close() error {
	s.closed.Store(true)
	return nil
}

func (s *UserStore[T]) guard(ctx context.Context) error {
	return guard(ctx, s.closed.Load())
}

// checkDoc applies the shared precondition checks for entity-scoped
// operations.
func (s *UserStore[T]) checkDoc(ctx context.Context, u T) error {
	if err := s.guard(ctx); err != nil {
		return err
	}
	if isNilDoc(u) {
		return ErrNilDocument
	}
	return nil
}

// fail converts a driver fault through the describer. Absence stays
// the bare ErrNotFound sentinel.
func (s *UserStore[T]) fail(op string, err error) error {
	if errors.Is(err, driver.ErrNoDocument) {
		return ErrNotFound
	}
	return s.cfg.describer.Describe(op, err)
}

// Create inserts a populated document. The identifier must already be
// assigned; the store never generates one.
func (s *UserStore[T]) Create(ctx context.Context, u T) error {
	if err := s.checkDoc(ctx, u); err != nil {
		return err
	}
	if u.Key() == "" {
		return ErrMissingKey
	}

	ctx, span := s.cfg.tracer.Start(ctx, "identitystore.users.create")
	err := s.col.Insert(ctx, u.Key(), u)
	endSpan(span, err)
	if err != nil {
		return s.fail("create_user", err)
	}

	s.cfg.log.DebugContext(ctx, "user document created",
		slog.String("collection", s.col.Name()), slog.String("id", u.Key()))
	return nil
}

// Update persists the document under its identifier. An identifier
// matching no stored document is a no-op, not an error.
func (s *UserStore[T]) Update(ctx context.Context, u T) error {
	if err := s.checkDoc(ctx, u); err != nil {
		return err
	}
	if u.Key() == "" {
		return ErrMissingKey
	}

	ctx, span := s.cfg.tracer.Start(ctx, "identitystore.users.update")
	err := s.col.Replace(ctx, u.Key(), u)
	endSpan(span, err)
	if err != nil {
		return s.fail("update_user", err)
	}

	s.cfg.log.DebugContext(ctx, "user document updated",
		slog.String("collection", s.col.Name()), slog.String("id", u.Key()))
	return nil
}

// Delete removes the document matching the identifier.
func (s *UserStore[T]) Delete(ctx context.Context, u T) error {
	if err := s.checkDoc(ctx, u); err != nil {
		return err
	}
	if u.Key() == "" {
		return ErrMissingKey
	}

	ctx, span := s.cfg.tracer.Start(ctx, "identitystore.users.delete")
	err := s.col.Delete(ctx, u.Key())
	endSpan(span, err)
	if err != nil {
		return s.fail("delete_user", err)
	}

	s.cfg.log.DebugContext(ctx, "user document deleted",
		slog.String("collection", s.col.Name()), slog.String("id", u.Key()))
	return nil
}

// FindByID returns the document with the given identifier, or
// ErrNotFound.
func (s *UserStore[T]) FindByID(ctx context.Context, id string) (T, error) {
	var zero T
	if err := s.guard(ctx); err != nil {
		return zero, err
	}
	if id == "" {
		return zero, ErrMissingKey
	}

	ctx, span := s.cfg.tracer.Start(ctx, "identitystore.users.find_by_id")
	u, err := s.col.FindID(ctx, id)
	endSpan(span, err)
	if err != nil {
		return zero, s.fail("find_user", err)
	}
	return u, nil
}

// FindByName returns the document with the given normalized username.
// At most one document is expected to match; with several the choice
// is unspecified.
func (s *UserStore[T]) FindByName(ctx context.Context, normalizedName string) (T, error) {
	return s.findOne(ctx, "find_by_name", driver.Eq("normalized_username", normalizedName))
}

// FindByEmail returns the document with the given normalized email.
func (s *UserStore[T]) FindByEmail(ctx context.Context, normalizedEmail string) (T, error) {
	return s.findOne(ctx, "find_by_email", driver.Eq("normalized_email", normalizedEmail))
}

// FindByLogin returns the document carrying an embedded login with the
// given (provider, key) pair.
func (s *UserStore[T]) FindByLogin(ctx context.Context, provider, providerKey string) (T, error) {
	return s.findOne(ctx, "find_by_login", driver.ElemMatch("logins", map[string]any{
		"provider":     provider,
		"provider_key": providerKey,
	}))
}

func (s *UserStore[T]) findOne(ctx context.Context, op string, cond driver.Cond) (T, error) {
	var zero T
	if err := s.guard(ctx); err != nil {
		return zero, err
	}

	ctx, span := s.cfg.tracer.Start(ctx, "identitystore.users."+op)
	u, err := s.col.FindOne(ctx, cond)
	endSpan(span, err)
	if err != nil {
		return zero, s.fail("find_user", err)
	}
	return u, nil
}

// UsersInRole returns every user referencing the named role.
func (s *UserStore[T]) UsersInRole(ctx context.Context, roleName string) ([]T, error) {
	return s.findAll(ctx, "users_in_role", driver.ArrayContains("roles", roleName))
}

// UsersForClaim returns every user carrying an equal embedded claim.
func (s *UserStore[T]) UsersForClaim(ctx context.Context, c identity.Claim) ([]T, error) {
	return s.findAll(ctx, "users_for_claim", driver.ElemMatch("claims", map[string]any{
		"type":  c.Type,
		"value": c.Value,
	}))
}

func (s *UserStore[T]) findAll(ctx context.Context, op string, cond driver.Cond) ([]T, error) {
	if err := s.guard(ctx); err != nil {
		return nil, err
	}

	ctx, span := s.cfg.tracer.Start(ctx, "identitystore.users."+op)
	defer span.End()

	var out []T
	for u, err := range s.col.Find(ctx, cond) {
		if err != nil {
			span.RecordError(err)
			return nil, s.fail("query_users", err)
		}
		out = append(out, u)
	}
	return out, nil
}

// All lazily streams the whole collection for arbitrary predicate
// queries beyond the fixed operation set.
func (s *UserStore[T]) All(ctx context.Context) iter.Seq2[T, error] {
	if err := s.guard(ctx); err != nil {
		return func(yield func(T, error) bool) {
			var zero T
			yield(zero, err)
		}
	}
	return s.col.Find(ctx)
}

// AddClaims appends each claim not already present. In-memory only.
func (s *UserStore[T]) AddClaims(ctx context.Context, u T, claims ...identity.Claim) error {
	if err := s.checkDoc(ctx, u); err != nil {
		return err
	}
	for _, c := range claims {
		u.AddClaim(c)
	}
	return nil
}

// ReplaceClaim swaps every claim equal to orig for repl. A missing
// orig leaves the document untouched.
func (s *UserStore[T]) ReplaceClaim(ctx context.Context, u T, orig, repl identity.Claim) error {
	if err := s.checkDoc(ctx, u); err != nil {
		return err
	}
	u.ReplaceClaim(orig, repl)
	return nil
}

// RemoveClaims removes every structural match of each claim.
func (s *UserStore[T]) RemoveClaims(ctx context.Context, u T, claims ...identity.Claim) error {
	if err := s.checkDoc(ctx, u); err != nil {
		return err
	}
	for _, c := range claims {
		u.RemoveClaim(c)
	}
	return nil
}

// Claims returns a snapshot of the embedded claims.
func (s *UserStore[T]) Claims(ctx context.Context, u T) ([]identity.Claim, error) {
	if err := s.checkDoc(ctx, u); err != nil {
		return nil, err
	}
	return u.ClaimList(), nil
}

// AddLogin appends the login unless its (provider, key) pair is taken.
func (s *UserStore[T]) AddLogin(ctx context.Context, u T, l identity.Login) error {
	if err := s.checkDoc(ctx, u); err != nil {
		return err
	}
	u.AddLogin(l)
	return nil
}

// RemoveLogin removes every login matching the (provider, key) pair.
func (s *UserStore[T]) RemoveLogin(ctx context.Context, u T, provider, providerKey string) error {
	if err := s.checkDoc(ctx, u); err != nil {
		return err
	}
	u.RemoveLogin(provider, providerKey)
	return nil
}

// Logins returns a snapshot of the embedded logins.
func (s *UserStore[T]) Logins(ctx context.Context, u T) ([]identity.Login, error) {
	if err := s.checkDoc(ctx, u); err != nil {
		return nil, err
	}
	return u.LoginList(), nil
}

// SetToken stores the token, replacing any existing (provider, name)
// entry. Last write wins.
func (s *UserStore[T]) SetToken(ctx context.Context, u T, t identity.Token) error {
	if err := s.checkDoc(ctx, u); err != nil {
		return err
	}
	u.SetToken(t)
	return nil
}

// RemoveToken removes the (provider, name) entry, if present.
func (s *UserStore[T]) RemoveToken(ctx context.Context, u T, provider, name string) error {
	if err := s.checkDoc(ctx, u); err != nil {
		return err
	}
	u.RemoveToken(provider, name)
	return nil
}

// Token returns the (provider, name) entry and whether it exists.
func (s *UserStore[T]) Token(ctx context.Context, u T, provider, name string) (identity.Token, bool, error) {
	if err := s.checkDoc(ctx, u); err != nil {
		return identity.Token{}, false, err
	}
	t, ok := u.LookupToken(provider, name)
	return t, ok, nil
}

// SetAuthenticatorKey stores the two-factor authenticator secret.
func (s *UserStore[T]) SetAuthenticatorKey(ctx context.Context, u T, key string) error {
	return s.SetToken(ctx, u, identity.Token{
		Provider: internalTokenProvider,
		Name:     authenticatorKeyName,
		Value:    key,
	})
}

// AuthenticatorKey returns the two-factor authenticator secret and
// whether one is set.
func (s *UserStore[T]) AuthenticatorKey(ctx context.Context, u T) (string, bool, error) {
	t, ok, err := s.Token(ctx, u, internalTokenProvider, authenticatorKeyName)
	if err != nil || !ok {
		return "", false, err
	}
	return t.Value, true, nil
}

// ReplaceRecoveryCodes replaces the whole recovery-code list. Codes
// must not contain the separator character.
func (s *UserStore[T]) ReplaceRecoveryCodes(ctx context.Context, u T, codes []string) error {
	return s.SetToken(ctx, u, identity.Token{
		Provider: internalTokenProvider,
		Name:     recoveryCodesName,
		Value:    strings.Join(codes, recoveryCodeSeparator),
	})
}

// RedeemRecoveryCode consumes a one-time code, reporting whether it
// was valid. Removal is atomic with respect to the in-memory document
// only; persisting the remainder is the caller's Update.
func (s *UserStore[T]) RedeemRecoveryCode(ctx context.Context, u T, code string) (bool, error) {
	if err := s.checkDoc(ctx, u); err != nil {
		return false, err
	}

	t, ok := u.LookupToken(internalTokenProvider, recoveryCodesName)
	if !ok {
		return false, nil
	}

	codes := splitRecoveryCodes(t.Value)
	remainder := codes[:0]
	found := false
	for _, c := range codes {
		if c == code {
			found = true
			continue
		}
		remainder = append(remainder, c)
	}
	if !found {
		return false, nil
	}

	u.SetToken(identity.Token{
		Provider: internalTokenProvider,
		Name:     recoveryCodesName,
		Value:    strings.Join(remainder, recoveryCodeSeparator),
	})
	return true, nil
}

// CountRecoveryCodes returns the number of unredeemed codes. A user
// with no codes ever set counts zero.
func (s *UserStore[T]) CountRecoveryCodes(ctx context.Context, u T) (int, error) {
	if err := s.checkDoc(ctx, u); err != nil {
		return 0, err
	}
	t, ok := u.LookupToken(internalTokenProvider, recoveryCodesName)
	if !ok {
		return 0, nil
	}
	return len(splitRecoveryCodes(t.Value)), nil
}

// AddToRole records membership in the named role. Idempotent.
func (s *UserStore[T]) AddToRole(ctx context.Context, u T, roleName string) error {
	if err := s.checkDoc(ctx, u); err != nil {
		return err
	}
	u.AddRole(roleName)
	return nil
}

// RemoveFromRole drops membership in the named role.
func (s *UserStore[T]) RemoveFromRole(ctx context.Context, u T, roleName string) error {
	if err := s.checkDoc(ctx, u); err != nil {
		return err
	}
	u.RemoveRole(roleName)
	return nil
}

// IsInRole reports whether the user references the named role.
func (s *UserStore[T]) IsInRole(ctx context.Context, u T, roleName string) (bool, error) {
	if err := s.checkDoc(ctx, u); err != nil {
		return false, err
	}
	return u.HasRole(roleName), nil
}

// Roles returns a snapshot of the referenced role names.
func (s *UserStore[T]) Roles(ctx context.Context, u T) ([]string, error) {
	if err := s.checkDoc(ctx, u); err != nil {
		return nil, err
	}
	return u.RoleList(), nil
}

// IncrementAccessFailed bumps the failed sign-in counter and returns
// the new count. In-memory only.
func (s *UserStore[T]) IncrementAccessFailed(ctx context.Context, u T) (int, error) {
	if err := s.checkDoc(ctx, u); err != nil {
		return 0, err
	}
	return u.IncrementAccessFailed(), nil
}

// ResetAccessFailed clears the failed sign-in counter. In-memory only.
func (s *UserStore[T]) ResetAccessFailed(ctx context.Context, u T) error {
	if err := s.checkDoc(ctx, u); err != nil {
		return err
	}
	u.ResetAccessFailed()
	return nil
}
