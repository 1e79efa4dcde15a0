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
	"sync/atomic"

	"github.com/opentrusty/identitystore/driver"
	"github.com/opentrusty/identitystore/identity"
)

// RoleStore persists role documents. The same shape as UserStore
// restricted to roles and their embedded claims: no logins, no tokens,
// no lockout.
type RoleStore[T identity.RoleDocument] struct {
	col    driver.Collection[T]
	cfg    settings
	closed atomic.Bool
}

// NewRoleStore builds a role store over the given collection.
func NewRoleStore[T identity.RoleDocument](col driver.Collection[T], opts ...Option) *RoleStore[T] {
	return &RoleStore[T]{col: col, cfg: newSettings(opts)}
}

// Close marks the store closed. Idempotent, flag only.
func (s *RoleStore[T]) Close() error {
	s.closed.Store(true)
	return nil
}

func (s *RoleStore[T]) guard(ctx context.Context) error {
	return guard(ctx, s.closed.Load())
}

func (s *RoleStore[T]) checkDoc(ctx context.Context, r T) error {
	if err := s.guard(ctx); err != nil {
		return err
	}
	if isNilDoc(r) {
		return ErrNilDocument
	}
	return nil
}

func (s *RoleStore[T]) fail(op string, err error) error {
	if errors.Is(err, driver.ErrNoDocument) {
		return ErrNotFound
	}
	return s.cfg.describer.Describe(op, err)
}

// Create inserts a populated role document with its identifier set.
func (s *RoleStore[T]) Create(ctx context.Context, r T) error {
	if err := s.checkDoc(ctx, r); err != nil {
		return err
	}
	if r.Key() == "" {
		return ErrMissingKey
	}

	ctx, span := s.cfg.tracer.Start(ctx, "identitystore.roles.create")
	err := s.col.Insert(ctx, r.Key(), r)
	endSpan(span, err)
	if err != nil {
		return s.fail("create_role", err)
	}

	s.cfg.log.DebugContext(ctx, "role document created",
		slog.String("collection", s.col.Name()), slog.String("id", r.Key()))
	return nil
}

// Update persists the document under its identifier. A missing
// identifier is a no-op, not an error.
func (s *RoleStore[T]) Update(ctx context.Context, r T) error {
	if err := s.checkDoc(ctx, r); err != nil {
		return err
	}
	if r.Key() == "" {
		return ErrMissingKey
	}

	ctx, span := s.cfg.tracer.Start(ctx, "identitystore.roles.update")
	err := s.col.Replace(ctx, r.Key(), r)
	endSpan(span, err)
	if err != nil {
		return s.fail("update_role", err)
	}

	s.cfg.log.DebugContext(ctx, "role document updated",
		slog.String("collection", s.col.Name()), slog.String("id", r.Key()))
	return nil
}

// Delete removes the document matching the identifier.
func (s *RoleStore[T]) Delete(ctx context.Context, r T) error {
	if err := s.checkDoc(ctx, r); err != nil {
		return err
	}
	if r.Key() == "" {
		return ErrMissingKey
	}

	ctx, span := s.cfg.tracer.Start(ctx, "identitystore.roles.delete")
	err := s.col.Delete(ctx, r.Key())
	endSpan(span, err)
	if err != nil {
		return s.fail("delete_role", err)
	}

	s.cfg.log.DebugContext(ctx, "role document deleted",
		slog.String("collection", s.col.Name()), slog.String("id", r.Key()))
	return nil
}

// FindByID returns the role with the given identifier, or ErrNotFound.
func (s *RoleStore[T]) FindByID(ctx context.Context, id string) (T, error) {
	var zero T
	if err := s.guard(ctx); err != nil {
		return zero, err
	}
	if id == "" {
		return zero, ErrMissingKey
	}

	ctx, span := s.cfg.tracer.Start(ctx, "identitystore.roles.find_by_id")
	r, err := s.col.FindID(ctx, id)
	endSpan(span, err)
	if err != nil {
		return zero, s.fail("find_role", err)
	}
	return r, nil
}

// FindByName returns the role with the given normalized name.
func (s *RoleStore[T]) FindByName(ctx context.Context, normalizedName string) (T, error) {
	var zero T
	if err := s.guard(ctx); err != nil {
		return zero, err
	}

	ctx, span := s.cfg.tracer.Start(ctx, "identitystore.roles.find_by_name")
	r, err := s.col.FindOne(ctx, driver.Eq("normalized_name", normalizedName))
	endSpan(span, err)
	if err != nil {
		return zero, s.fail("find_role", err)
	}
	return r, nil
}

// All lazily streams the whole collection.
func (s *RoleStore[T]) All(ctx context.Context) iter.Seq2[T, error] {
	if err := s.guard(ctx); err != nil {
		return func(yield func(T, error) bool) {
			var zero T
			yield(zero, err)
		}
	}
	return s.col.Find(ctx)
}

// AddClaims appends each claim not already present. In-memory only.
func (s *RoleStore[T]) AddClaims(ctx context.Context, r T, claims ...identity.Claim) error {
	if err := s.checkDoc(ctx, r); err != nil {
		return err
	}
	for _, c := range claims {
		r.AddClaim(c)
	}
	return nil
}

// ReplaceClaim swaps every claim equal to orig for repl. A missing
// orig leaves the document untouched.
func (s *RoleStore[T]) ReplaceClaim(ctx context.Context, r T, orig, repl identity.Claim) error {
	if err := s.checkDoc(ctx, r); err != nil {
		return err
	}
	r.ReplaceClaim(orig, repl)
	return nil
}

// RemoveClaims removes every structural match of each claim.
func (s *RoleStore[T]) RemoveClaims(ctx context.Context, r T, claims ...identity.Claim) error {
	if err := s.checkDoc(ctx, r); err != nil {
		return err
	}
	for _, c := range claims {
		r.RemoveClaim(c)
	}
	return nil
}

// Claims returns a snapshot of the embedded claims.
func (s *RoleStore[T]) Claims(ctx context.Context, r T) ([]identity.Claim, error) {
	if err := s.checkDoc(ctx, r); err != nil {
		return nil, err
	}
	return r.ClaimList(), nil
}
