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

// Package mongodb backs driver.Collection with the official MongoDB
// driver. Documents live in one collection per store, addressed by the
// _id field; embedded claim/login/token lists serialize as nested
// arrays inside the owner document.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/url"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/opentrusty/identitystore/driver"
)

// DB wraps a connected client scoped to one database.
type DB struct {
	client *mongo.Client
	db     *mongo.Database
}

// DatabaseName extracts the database name from a MongoDB connection
// URI. A URI that carries no database name is a configuration error.
func DatabaseName(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("failed to parse connection uri: %w", err)
	}
	if u.Scheme != "mongodb" && u.Scheme != "mongodb+srv" {
		return "", fmt.Errorf("unsupported connection scheme %q", u.Scheme)
	}
	name := strings.Trim(u.Path, "/")
	if name == "" {
		return "", errors.New("connection uri resolves to no database name")
	}
	return name, nil
}

// Open connects to the database named by the URI and verifies the
// connection. The caller owns the returned DB and closes it.
func Open(ctx context.Context, uri string) (*DB, error) {
	name, err := DatabaseName(uri)
	if err != nil {
		return nil, err
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{client: client, db: client.Database(name)}, nil
}

// Close disconnects the underlying client.
func (d *DB) Close(ctx context.Context) error {
	return d.client.Disconnect(ctx)
}

// Database returns the underlying database handle.
func (d *DB) Database() *mongo.Database {
	return d.db
}

// Collection implements driver.Collection over a mongo collection.
// factory allocates a fresh document for decoding; custom document
// types supply their own.
type Collection[T any] struct {
	col     *mongo.Collection
	factory func() T
}

// NewCollection binds the named collection of db.
func NewCollection[T any](db *DB, name string, factory func() T) *Collection[T] {
	return &Collection[T]{col: db.db.Collection(name), factory: factory}
}

func (c *Collection[T]) Name() string {
	return c.col.Name()
}

func (c *Collection[T]) Insert(ctx context.Context, id string, doc T) error {
	if _, err := c.col.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert document %s: %w", id, err)
	}
	return nil
}

func (c *Collection[T]) Replace(ctx context.Context, id string, doc T) error {
	// No upsert: a missing id matches nothing and stays a no-op.
	if _, err := c.col.ReplaceOne(ctx, bson.M{"_id": id}, doc); err != nil {
		return fmt.Errorf("failed to replace document %s: %w", id, err)
	}
	return nil
}

func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	if _, err := c.col.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	return nil
}

func (c *Collection[T]) FindID(ctx context.Context, id string) (T, error) {
	return c.findOne(ctx, bson.M{"_id": id})
}

func (c *Collection[T]) FindOne(ctx context.Context, conds ...driver.Cond) (T, error) {
	return c.findOne(ctx, buildFilter(conds))
}

func (c *Collection[T]) findOne(ctx context.Context, filter bson.M) (T, error) {
	doc := c.factory()
	err := c.col.FindOne(ctx, filter).Decode(doc)
	if err != nil {
		var zero T
		if errors.Is(err, mongo.ErrNoDocuments) {
			return zero, driver.ErrNoDocument
		}
		return zero, fmt.Errorf("failed to query collection %s: %w", c.col.Name(), err)
	}
	return doc, nil
}

func (c *Collection[T]) Find(ctx context.Context, conds ...driver.Cond) iter.Seq2[T, error] {
	filter := buildFilter(conds)
	return func(yield func(T, error) bool) {
		var zero T
		cur, err := c.col.Find(ctx, filter)
		if err != nil {
			yield(zero, fmt.Errorf("failed to query collection %s: %w", c.col.Name(), err))
			return
		}
		defer cur.Close(ctx)

		for cur.Next(ctx) {
			doc := c.factory()
			if err := cur.Decode(doc); err != nil {
				yield(zero, fmt.Errorf("failed to decode document: %w", err))
				return
			}
			if !yield(doc, nil) {
				return
			}
		}
		if err := cur.Err(); err != nil {
			yield(zero, fmt.Errorf("failed to iterate collection %s: %w", c.col.Name(), err))
		}
	}
}

// buildFilter compiles conditions to a bson filter. Array containment
// of a scalar is plain field equality in MongoDB query semantics.
func buildFilter(conds []driver.Cond) bson.M {
	filter := bson.M{}
	for _, cond := range conds {
		switch {
		case cond.Elem != nil:
			filter[cond.Field] = bson.M{"$elemMatch": bson.M(cond.Elem)}
		case cond.Contains != nil:
			filter[cond.Field] = cond.Contains
		default:
			filter[cond.Field] = cond.Value
		}
	}
	return filter
}
