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

// Package store implements the identity persistence adapters: a user
// store and a role store that translate identity-domain operations
// into single-document round trips against a driver.Collection.
//
// The stores hold no cross-call state beyond a closed flag. Mutations
// of the embedded claim/login/token collections touch only the
// in-memory document; callers persist them with an explicit Update.
// Concurrent updates of the same document are last-writer-wins.
package store

import (
	"context"
	"log/slog"
	"reflect"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Token bookkeeping shared by the derived two-factor features. The
// authenticator key and the recovery-code list ride in the generic
// token table under a reserved provider name.
const (
	internalTokenProvider = "[identitystore]"
	authenticatorKeyName  = "authenticator_key"
	recoveryCodesName     = "recovery_codes"
	recoveryCodeSeparator = ";"
)

const tracerName = "github.com/opentrusty/identitystore/store"

type settings struct {
	describer Describer
	log       *slog.Logger
	tracer    trace.Tracer
}

func newSettings(opts []Option) settings {
	s := settings{
		describer: DefaultDescriber{},
		log:       slog.Default(),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Option configures a store at construction.
type Option func(*settings)

// WithDescriber overrides the failure-description strategy.
func WithDescriber(d Describer) Option {
	return func(s *settings) { s.describer = d }
}

// WithLogger sets the logger used for round-trip debug logging.
func WithLogger(log *slog.Logger) Option {
	return func(s *settings) { s.log = log }
}

// WithTracer sets the tracer wrapping each database round trip.
func WithTracer(t trace.Tracer) Option {
	return func(s *settings) { s.tracer = t }
}

// isNilDoc reports whether a generically-typed document is nil. The
// capability interfaces are implemented on pointer types, so a typed
// nil slips past a plain interface comparison.
func isNilDoc(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}

// guard applies the checks shared by every operation: a closed store
// fails first, then an already-cancelled context, before any state is
// touched.
func guard(ctx context.Context, closed bool) error {
	if closed {
		return ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

// splitRecoveryCodes splits the joined token value. The empty value
// means zero codes, not one empty code.
func splitRecoveryCodes(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, recoveryCodeSeparator)
}
