// Copyright 2023 The Cockroach Authors
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
//
// SPDX-License-Identifier: Apache-2.0

// Package kerrors defines the error kinds that cross component
// boundaries within kawai. Per-record errors (DecodeError, BadRow) are
// meant to be logged and counted by the caller, never propagated out of
// the ingest loop. BadSchema, SinkError and LifecycleError are created
// at their point of origin without errors.WithStack (callers may add
// context with errors.Wrap) and surfaced to whatever owns the affected
// topic or engine; resolution failures are recovered locally by the
// binary fallback.
package kerrors

import "github.com/pkg/errors"

// ConfigError indicates a missing or malformed configuration option.
// It is fatal at Engine.Init.
type ConfigError struct {
	Option string
	Reason string
}

func (e *ConfigError) Error() string {
	return "config: " + e.Option + ": " + e.Reason
}

// BadSchema indicates that schema translation produced a column shape
// the relational model cannot express: unbounded recursion, an empty
// struct, or decimal bounds outside 0 <= scale <= precision <= 38.
type BadSchema struct {
	Schema string
	Reason string
}

func (e *BadSchema) Error() string {
	return "bad schema " + e.Schema + ": " + e.Reason
}

// ErrRecursion's message is the Reason of the BadSchema returned when a
// named subschema refers to itself, directly or transitively, through
// the reference environment.
var ErrRecursion = errors.New("recursive schema reference")

// ResolveError indicates the registry was unreachable, or returned a
// schema the family parser rejected. The caller recovers locally by
// falling back to the binary serde for that binding.
type ResolveError struct {
	Topic string
	Role  string
	Cause error
}

func (e *ResolveError) Error() string {
	return "resolve " + e.Topic + "/" + e.Role + ": " + e.Cause.Error()
}

func (e *ResolveError) Unwrap() error { return e.Cause }

// DecodeError indicates a single record could not be decoded: magic
// byte mismatch, truncated payload, or an unknown union tag. The
// ingest loop logs it, increments a counter, and skips the record.
type DecodeError struct {
	Reason string
	Cause  error
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return "decode: " + e.Reason + ": " + e.Cause.Error()
	}
	return "decode: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// ErrBadMagic is the DecodeError cause when the leading byte of a
// schema-bearing payload is not the 0x00 magic byte.
var ErrBadMagic = errors.New("unrecognized magic byte")

// BadRow indicates a decoded value tree did not match the shape of the
// bound column definition: a missing non-nullable field, or a value
// of the wrong arity for a composite column.
type BadRow struct {
	Column string
	Reason string
}

func (e *BadRow) Error() string {
	return "bad row at " + e.Column + ": " + e.Reason
}

// SinkError indicates the analytic engine rejected an insert. It is
// worker-fatal: the topic is marked degraded and the loop is torn down.
type SinkError struct {
	Table string
	Cause error
}

func (e *SinkError) Error() string {
	return "sink " + e.Table + ": " + e.Cause.Error()
}

func (e *SinkError) Unwrap() error { return e.Cause }

// LifecycleError indicates an operation was attempted while the Engine
// was in the wrong state, e.g. Sync before Init, or a second Init.
type LifecycleError struct {
	Op       string
	State    string
	Expected string
}

func (e *LifecycleError) Error() string {
	return e.Op + ": engine is " + e.State + ", want " + e.Expected
}
