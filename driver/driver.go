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

// Package driver defines the document-collection contract the stores
// are built on. A collection holds documents addressable by a string
// primary key; the stores never reach past this seam, so any backend
// that can satisfy it (MongoDB, Postgres JSONB, an in-memory fake for
// tests) plugs in unchanged.
package driver

import (
	"context"
	"errors"
	"iter"
)

// ErrNoDocument is returned by lookups that match nothing.
var ErrNoDocument = errors.New("no matching document")

// Cond is a single query condition. Exactly one of Value, Contains, or
// Elem is meaningful:
//
//   - Eq: the named field equals Value
//   - ArrayContains: the named array field contains the scalar Contains
//   - ElemMatch: the named array field has one element carrying every
//     pair in Elem
//
// Conditions combine with AND semantics. Field names refer to the
// serialized document shape, dotted paths are not supported.
type Cond struct {
	Field    string
	Value    any
	Contains any
	Elem     map[string]any
}

// Eq matches documents whose field equals value.
func Eq(field string, value any) Cond {
	return Cond{Field: field, Value: value}
}

// ArrayContains matches documents whose array field contains value.
func ArrayContains(field string, value any) Cond {
	return Cond{Field: field, Contains: value}
}

// ElemMatch matches documents whose array field has a single element
// carrying every given pair.
func ElemMatch(field string, pairs map[string]any) Cond {
	return Cond{Field: field, Elem: pairs}
}

// Collection is a key-addressed document collection. Every method is a
// single round trip; the collection imposes no retries and no locking.
type Collection[T any] interface {
	// Name returns the collection name.
	Name() string

	// Insert stores a new document under id.
	Insert(ctx context.Context, id string, doc T) error

	// Replace overwrites the document stored under id. A missing id is
	// a no-op, not an error.
	Replace(ctx context.Context, id string, doc T) error

	// Delete removes the document stored under id, if any.
	Delete(ctx context.Context, id string) error

	// FindID returns the document stored under id, or ErrNoDocument.
	FindID(ctx context.Context, id string) (T, error)

	// FindOne returns one document matching every condition, or
	// ErrNoDocument. With several matches the choice is unspecified.
	FindOne(ctx context.Context, conds ...Cond) (T, error)

	// Find lazily streams every document matching the conditions. With
	// no conditions it streams the whole collection. The sequence
	// yields a non-nil error at most once, as its final element.
	Find(ctx context.Context, conds ...Cond) iter.Seq2[T, error]
}
