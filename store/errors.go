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
	"errors"
	"fmt"
	"strings"
)

// Failure sentinels. Preconditions and lifecycle violations are
// returned bare; database faults are wrapped in *StoreError.
var (
	// ErrNotFound reports that no document matched the lookup.
	ErrNotFound = errors.New("document not found")

	// ErrStoreClosed reports an operation on a closed store.
	ErrStoreClosed = errors.New("identity store is closed")

	// ErrNilDocument reports a nil document passed to an entity-scoped
	// operation. A programmer error, not an operational failure.
	ErrNilDocument = errors.New("document is nil")

	// ErrMissingKey reports a document or lookup with an empty
	// identifier.
	ErrMissingKey = errors.New("document identifier is empty")
)

// StoreError is a database fault converted into a structured failure:
// a stable code, a human-readable description, and the underlying
// cause reachable through errors.Unwrap.
type StoreError struct {
	Code        string
	Description string
	Err         error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("identity store: %s (%s)", e.Code, e.Description)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Describer maps an internal database fault to the user-facing failure
// shape. Hosts override it to localize or re-code failures.
type Describer interface {
	Describe(op string, err error) *StoreError
}

// DefaultDescriber derives the failure code from the failed operation.
type DefaultDescriber struct{}

func (DefaultDescriber) Describe(op string, err error) *StoreError {
	return &StoreError{
		Code:        op + "_failed",
		Description: fmt.Sprintf("the %s operation did not complete", strings.ReplaceAll(op, "_", " ")),
		Err:         err,
	}
}
