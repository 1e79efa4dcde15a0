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
	"encoding/json"
	"fmt"
	"iter"
	"reflect"
	"sort"
	"sync"

	"github.com/opentrusty/identitystore/driver"
)

// memCollection is an in-memory driver.Collection. Documents are kept
// serialized so every fetch returns an independent copy, matching the
// separately-fetched-copies semantics of a real backend. Conditions
// are evaluated against the JSON shape, like the Postgres driver does.
type memCollection[T any] struct {
	name    string
	factory func() T

	mu   sync.Mutex
	docs map[string]json.RawMessage

	failWith error // when set, every round trip fails with it
}

func newMemCollection[T any](name string, factory func() T) *memCollection[T] {
	return &memCollection[T]{
		name:    name,
		factory: factory,
		docs:    make(map[string]json.RawMessage),
	}
}

func (c *memCollection[T]) Name() string { return c.name }

func (c *memCollection[T]) Insert(ctx context.Context, id string, doc T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWith != nil {
		return c.failWith
	}
	if _, ok := c.docs[id]; ok {
		return fmt.Errorf("duplicate document %s", id)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	c.docs[id] = raw
	return nil
}

func (c *memCollection[T]) Replace(ctx context.Context, id string, doc T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWith != nil {
		return c.failWith
	}
	if _, ok := c.docs[id]; !ok {
		return nil
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	c.docs[id] = raw
	return nil
}

func (c *memCollection[T]) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWith != nil {
		return c.failWith
	}
	delete(c.docs, id)
	return nil
}

func (c *memCollection[T]) FindID(ctx context.Context, id string) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	if c.failWith != nil {
		return zero, c.failWith
	}
	raw, ok := c.docs[id]
	if !ok {
		return zero, driver.ErrNoDocument
	}
	return c.decode(raw)
}

func (c *memCollection[T]) FindOne(ctx context.Context, conds ...driver.Cond) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	if c.failWith != nil {
		return zero, c.failWith
	}
	for _, id := range c.sortedIDs() {
		if matches(c.docs[id], conds) {
			return c.decode(c.docs[id])
		}
	}
	return zero, driver.ErrNoDocument
}

func (c *memCollection[T]) Find(ctx context.Context, conds ...driver.Cond) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		c.mu.Lock()
		defer c.mu.Unlock()
		var zero T
		if c.failWith != nil {
			yield(zero, c.failWith)
			return
		}
		for _, id := range c.sortedIDs() {
			if !matches(c.docs[id], conds) {
				continue
			}
			doc, err := c.decode(c.docs[id])
			if !yield(doc, err) {
				return
			}
		}
	}
}

func (c *memCollection[T]) decode(raw json.RawMessage) (T, error) {
	doc := c.factory()
	if err := json.Unmarshal(raw, doc); err != nil {
		var zero T
		return zero, err
	}
	return doc, nil
}

func (c *memCollection[T]) sortedIDs() []string {
	ids := make([]string, 0, len(c.docs))
	for id := range c.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func matches(raw json.RawMessage, conds []driver.Cond) bool {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return false
	}
	for _, cond := range conds {
		switch {
		case cond.Elem != nil:
			if !elemMatches(doc[cond.Field], cond.Elem) {
				return false
			}
		case cond.Contains != nil:
			if !arrayContains(doc[cond.Field], cond.Contains) {
				return false
			}
		default:
			if !reflect.DeepEqual(doc[cond.Field], normalize(cond.Value)) {
				return false
			}
		}
	}
	return true
}

func elemMatches(field any, pairs map[string]any) bool {
	items, ok := field.([]any)
	if !ok {
		return false
	}
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		all := true
		for k, v := range pairs {
			if !reflect.DeepEqual(obj[k], normalize(v)) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

func arrayContains(field, value any) bool {
	items, ok := field.([]any)
	if !ok {
		return false
	}
	want := normalize(value)
	for _, item := range items {
		if reflect.DeepEqual(item, want) {
			return true
		}
	}
	return false
}

// normalize round-trips a value through JSON so comparisons see the
// same shapes decoding produces.
func normalize(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}
