// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"errors"
	"fmt"
)

// ErrStoreRequired is returned when an engine is built without a store.
var ErrStoreRequired = errors.New("search: a store is required")

// Error is the error type returned by the query engine.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// ErrorKind classifies engine errors.
type ErrorKind int

const (
	// ErrorKindUnknown unclassified error.
	ErrorKindUnknown ErrorKind = iota
	// ErrorKindInvalidInterpretation the interpretation is not executable.
	ErrorKindInvalidInterpretation
	// ErrorKindStoreQuery the store rejected or failed a query.
	ErrorKindStoreQuery
	// ErrorKindNoViableStrategy no strategy applies to a valid interpretation.
	ErrorKindNoViableStrategy
)

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func kindOf(err error) ErrorKind {
	var searchErr *Error
	if errors.As(err, &searchErr) {
		return searchErr.Kind
	}

	return ErrorKindUnknown
}

// IsInvalidInterpretation reports whether err rejects an invalid interpretation.
func IsInvalidInterpretation(err error) bool {
	return kindOf(err) == ErrorKindInvalidInterpretation
}

// IsStoreQueryError reports whether err is a failure of the underlying store.
func IsStoreQueryError(err error) bool {
	return kindOf(err) == ErrorKindStoreQuery
}

// IsNoViableStrategy reports whether err is an engine invariant violation.
func IsNoViableStrategy(err error) bool {
	return kindOf(err) == ErrorKindNoViableStrategy
}

func storeError(op string, err error) error {
	return &Error{
		Kind:    ErrorKindStoreQuery,
		Message: op,
		Err:     err,
	}
}
