// Copyright 2024 The Gradb Authors
// This file is part of Gradb.
//
// Gradb is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Gradb is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Gradb. If not, see <http://www.gnu.org/licenses/>.

// Package dberrors implements the error taxonomy of the engine: parse,
// semantic, isolation, resource/IO and internal-invariant classes. All
// error values are wrapped with github.com/pkg/errors so callers keep a
// stack trace across package boundaries, and classified via Class() so
// a caller can decide whether a retry makes sense.
package dberrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Class partitions errors by how a caller should react to them.
type Class uint8

const (
	// ClassUnknown is what Classify returns for an error that is not,
	// and does not wrap, a *Error.
	ClassUnknown Class = iota
	// ClassParse covers representation errors in a supplied pattern or
	// function definition. Caller-fixable.
	ClassParse
	// ClassSemantic covers type inference, expression compilation,
	// write compilation and schema validation failures. Caller-fixable.
	ClassSemantic
	// ClassIsolation covers commit-time conflicts. Retryable.
	ClassIsolation
	// ClassResource covers IO, keyspace and encoding failures. Operator-fixable.
	ClassResource
	// ClassInternal covers invariant violations; always a bug.
	ClassInternal
)

func (c Class) String() string {
	switch c {
	case ClassParse:
		return "parse"
	case ClassSemantic:
		return "semantic"
	case ClassIsolation:
		return "isolation"
	case ClassResource:
		return "resource"
	case ClassInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Code identifies a specific error kind within its class.
type Code string

const (
	PatternDefinition  Code = "PatternDefinition"
	FunctionDefinition Code = "FunctionDefinition"
	QueryLanguageUsage Code = "QueryLanguageUsage"

	TypeInference      Code = "TypeInference"
	ExpressionCompile  Code = "ExpressionCompile"
	WriteCompilation   Code = "WriteCompilation"
	SchemaValidation   Code = "SchemaValidation"

	Conflict Code = "Conflict"

	IoError       Code = "IoError"
	KeyspaceError Code = "KeyspaceError"
	Encoding      Code = "Encoding"
	FormatError   Code = "FormatError"

	Unexpected  Code = "Unexpected"
	Interrupted Code = "Interrupted"

	// SchemaLockTimeout is raised when a schema transaction cannot
	// acquire the process-wide exclusive schema lock within its
	// configured bound.
	SchemaLockTimeout Code = "SchemaLockTimeout"
)

var codeClass = map[Code]Class{
	PatternDefinition:  ClassParse,
	FunctionDefinition: ClassParse,
	QueryLanguageUsage: ClassParse,
	TypeInference:      ClassSemantic,
	ExpressionCompile:  ClassSemantic,
	WriteCompilation:   ClassSemantic,
	SchemaValidation:   ClassSemantic,
	Conflict:           ClassIsolation,
	IoError:            ClassResource,
	KeyspaceError:      ClassResource,
	Encoding:           ClassResource,
	FormatError:        ClassResource,
	Unexpected:         ClassInternal,
	Interrupted:        ClassInternal,
	SchemaLockTimeout:  ClassResource,
}

// Error is the concrete error type returned across package boundaries.
// It carries the offending key for Conflict errors (see ConflictKey).
type Error struct {
	code    Code
	message string
	key     []byte
	cause   error
}

func (e *Error) Error() string {
	if e.key != nil {
		return fmt.Sprintf("%s: %s (key=%x)", e.code, e.message, e.key)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error { return e.cause }

// Code returns the error's taxonomy code.
func (e *Error) Code() Code { return e.code }

// Class returns the error's retry/ownership class.
func (e *Error) Class() Class { return codeClass[e.code] }

// ConflictKey returns the key that caused an Isolation(Conflict) error,
// or nil if the error is not a conflict.
func (e *Error) ConflictKey() []byte {
	if e.code != Conflict {
		return nil
	}
	return e.key
}

// New builds a typed error, wrapping it with a stack trace.
func New(code Code, format string, args ...any) error {
	return &Error{code: code, message: fmt.Sprintf(format, args...), cause: errors.New(fmt.Sprintf(format, args...))}
}

// Wrap attaches a typed code to an underlying cause, preserving its
// stack trace via pkg/errors.
func Wrap(code Code, cause error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return &Error{code: code, message: msg, cause: errors.Wrap(cause, msg)}
}

// WithConflictKey builds a Conflict error tagged with the offending key.
func WithConflictKey(key []byte) error {
	return &Error{code: Conflict, message: "concurrent write conflict", key: append([]byte(nil), key...)}
}

// Classify extracts the Class of err, walking wrapped causes. Returns
// ClassUnknown if err is not (and does not wrap) a *Error.
func Classify(err error) Class {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Class()
	}
	return ClassUnknown
}

// CodeOf extracts the Code of err, or "" if not a *Error.
func CodeOf(err error) Code {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Code()
	}
	return ""
}

// IsConflict reports whether err is an Isolation(Conflict) error —
// the sole retry-safe class
func IsConflict(err error) bool {
	return CodeOf(err) == Conflict
}

// IsInterrupted reports whether err resulted from cancellation, distinct
// from a plain internal error only by its code.
func IsInterrupted(err error) bool {
	return CodeOf(err) == Interrupted
}
