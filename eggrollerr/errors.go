// Copyright 2024 The FATE Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package eggrollerr defines the error taxonomy shared by every layer of
// the compute engine, mirroring the boundary contract in §7 of the spec.
package eggrollerr

import "fmt"

// Code enumerates the error kinds the engine's public boundary may return.
type Code int

const (
	// Internal indicates an unexpected, otherwise-unclassified failure.
	Internal Code = iota

	// NotInitialised indicates the default engine context was requested
	// before engine.SetDefault installed one.
	NotInitialised

	// InvalidArgument indicates a bad partition count or blank name/namespace.
	InvalidArgument

	// InvalidEnvironment indicates unexpected filesystem state (missing data
	// dir or namespace during cleanup).
	InvalidEnvironment

	// StorageIO indicates an underlying storage transaction failure.
	StorageIO

	// ClosureExecutionFailure indicates a user-supplied function raised
	// while a worker task was executing.
	ClosureExecutionFailure
)

func (c Code) String() string {
	switch c {
	case NotInitialised:
		return "not_initialised"
	case InvalidArgument:
		return "invalid_argument"
	case InvalidEnvironment:
		return "invalid_environment"
	case StorageIO:
		return "storage_io"
	case ClosureExecutionFailure:
		return "closure_execution_failure"
	default:
		return "internal"
	}
}

// Error is the error type returned across the engine's package boundary.
type Error struct {
	Code    Code
	Message string
	Wrapped error
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("eggroll error (%s): %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("eggroll error (%s): %s", e.Code, e.Message)
}

// Unwrap allows errors.Is/errors.As to reach the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// New constructs an *Error with no wrapped cause.
func New(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an *Error carrying an underlying cause.
func Wrap(code Code, cause error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Wrapped: cause}
}

// Is reports whether err is an *Error of the given code.
func Is(err error, code Code) bool {
	e, ok := err.(*Error)
	return ok && e.Code == code
}
