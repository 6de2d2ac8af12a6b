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

// Package ident provides quoted SQL identifiers, so that topic names
// and column names are always rendered through one choke point before
// they reach DDL or DML text (spec §6: "callers MUST restrict them to
// identifiers safe for the dialect").
package ident

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// safeRaw matches the identifiers kawai accepts verbatim as table or
// column names: ASCII letters, digits, and underscore, not starting
// with a digit. Anything else must be rejected before it reaches DDL,
// per spec §6.
var safeRaw = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// An Ident is a single identifier, safe to interpolate into DuckDB DDL
// and DML once quoted.
type Ident struct {
	raw string
}

// New validates raw as a safe identifier and returns an Ident.
func New(raw string) (Ident, error) {
	if !safeRaw.MatchString(raw) {
		return Ident{}, errors.Errorf("%q is not a safe identifier", raw)
	}
	return Ident{raw: raw}, nil
}

// Raw returns the unquoted identifier text.
func (i Ident) Raw() string { return i.raw }

// String renders the identifier double-quoted, with any embedded quote
// doubled, for use in generated DDL/DML.
func (i Ident) String() string {
	return `"` + strings.ReplaceAll(i.raw, `"`, `""`) + `"`
}

// IsZero reports whether i is the zero value.
func (i Ident) IsZero() bool { return i.raw == "" }

// Table identifies a topic's materialized table within the analytic
// engine's single (unnamed) catalog.
type Table struct {
	Ident
}

// NewTable validates topic as a table name.
func NewTable(topic string) (Table, error) {
	id, err := New(topic)
	if err != nil {
		return Table{}, errors.Wrap(err, "topic name is not a safe table identifier")
	}
	return Table{id}, nil
}
