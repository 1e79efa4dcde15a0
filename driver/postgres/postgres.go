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

// Package postgres backs driver.Collection with PostgreSQL, storing
// each document as a JSONB value in a two-column table keyed by the
// document id. Query conditions compile to jsonb containment, which
// covers both field equality and embedded-array element matching.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/opentrusty/identitystore/driver"
)

// DB wraps the SQL connection handle.
type DB struct {
	db *sql.DB
}

// DatabaseName extracts the database name from a connection string.
// A DSN that resolves to no database name is a configuration error.
func DatabaseName(dsn string) (string, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return "", fmt.Errorf("failed to parse dsn: %w", err)
	}
	if cfg.Database == "" {
		return "", errors.New("dsn resolves to no database name")
	}
	return cfg.Database, nil
}

// Open connects to the database named by the DSN and verifies the
// connection. The caller owns the returned DB and closes it.
func Open(ctx context.Context, dsn string) (*DB, error) {
	if _, err := DatabaseName(dsn); err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{db: db}, nil
}

// NewDB wraps an existing handle, e.g. one opened by the host or a test.
func NewDB(db *sql.DB) *DB {
	return &DB{db: db}
}

// Close closes the underlying handle.
func (d *DB) Close() error {
	return d.db.Close()
}

// EnsureCollection creates the backing table for a collection if it
// does not exist yet.
func (d *DB) EnsureCollection(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	_, err := d.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %q (id text PRIMARY KEY, doc jsonb NOT NULL)`, name))
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	return nil
}

// Collection implements driver.Collection over a JSONB table. factory
// allocates a fresh document for decoding.
type Collection[T any] struct {
	db      *sql.DB
	name    string
	factory func() T
}

// NewCollection binds the named table of db. The name must be a plain
// lowercase identifier since it is interpolated into statements.
func NewCollection[T any](db *DB, name string, factory func() T) (*Collection[T], error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	return &Collection[T]{db: db.db, name: name, factory: factory}, nil
}

func (c *Collection[T]) Name() string {
	return c.name
}

func (c *Collection[T]) Insert(ctx context.Context, id string, doc T) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document %s: %w", id, err)
	}
	_, err = c.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %q (id, doc) VALUES ($1, $2)`, c.name), id, raw)
	if err != nil {
		return fmt.Errorf("failed to insert document %s: %w", id, err)
	}
	return nil
}

func (c *Collection[T]) Replace(ctx context.Context, id string, doc T) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document %s: %w", id, err)
	}
	// A missing id updates zero rows and stays a no-op.
	_, err = c.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %q SET doc = $2 WHERE id = $1`, c.name), id, raw)
	if err != nil {
		return fmt.Errorf("failed to replace document %s: %w", id, err)
	}
	return nil
}

func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	_, err := c.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %q WHERE id = $1`, c.name), id)
	if err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	return nil
}

func (c *Collection[T]) FindID(ctx context.Context, id string) (T, error) {
	row := c.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT doc FROM %q WHERE id = $1`, c.name), id)
	return c.scan(row)
}

func (c *Collection[T]) FindOne(ctx context.Context, conds ...driver.Cond) (T, error) {
	filter, err := containmentFilter(conds)
	if err != nil {
		var zero T
		return zero, err
	}
	row := c.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT doc FROM %q WHERE doc @> $1 LIMIT 1`, c.name), filter)
	return c.scan(row)
}

func (c *Collection[T]) scan(row *sql.Row) (T, error) {
	var zero T
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return zero, driver.ErrNoDocument
		}
		return zero, fmt.Errorf("failed to query collection %s: %w", c.name, err)
	}
	doc := c.factory()
	if err := json.Unmarshal(raw, doc); err != nil {
		return zero, fmt.Errorf("failed to decode document: %w", err)
	}
	return doc, nil
}

func (c *Collection[T]) Find(ctx context.Context, conds ...driver.Cond) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T

		var rows *sql.Rows
		var err error
		if len(conds) == 0 {
			rows, err = c.db.QueryContext(ctx,
				fmt.Sprintf(`SELECT doc FROM %q`, c.name))
		} else {
			var filter []byte
			filter, err = containmentFilter(conds)
			if err != nil {
				yield(zero, err)
				return
			}
			rows, err = c.db.QueryContext(ctx,
				fmt.Sprintf(`SELECT doc FROM %q WHERE doc @> $1`, c.name), filter)
		}
		if err != nil {
			yield(zero, fmt.Errorf("failed to query collection %s: %w", c.name, err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var raw []byte
			if err := rows.Scan(&raw); err != nil {
				yield(zero, fmt.Errorf("failed to scan document: %w", err))
				return
			}
			doc := c.factory()
			if err := json.Unmarshal(raw, doc); err != nil {
				yield(zero, fmt.Errorf("failed to decode document: %w", err))
				return
			}
			if !yield(doc, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(zero, fmt.Errorf("failed to iterate collection %s: %w", c.name, err))
		}
	}
}

// containmentFilter compiles conditions to a jsonb containment
// document. Field equality is {"f": v}, array containment of a scalar
// is {"f": [v]}, and an element match is {"f": [{pairs}]}.
func containmentFilter(conds []driver.Cond) ([]byte, error) {
	filter := make(map[string]any, len(conds))
	for _, cond := range conds {
		switch {
		case cond.Elem != nil:
			filter[cond.Field] = []any{cond.Elem}
		case cond.Contains != nil:
			filter[cond.Field] = []any{cond.Contains}
		default:
			filter[cond.Field] = cond.Value
		}
	}
	raw, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to encode filter: %w", err)
	}
	return raw, nil
}

func validateName(name string) error {
	if name == "" {
		return errors.New("collection name is empty")
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r == '_':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return fmt.Errorf("invalid collection name %q", name)
		}
	}
	return nil
}
