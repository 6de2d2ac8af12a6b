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

// Package relation is kawai's column model (spec §3, §4.1): a closed,
// recursive algebraic type describing one relational column, a pure
// DDL renderer for DuckDB's dialect, and the flattening rule that
// turns a schema's root column into the positional shape of a row.
//
// The set of variants is fixed and known up front, so dispatch is a
// switch over Kind rather than an interface per variant (spec §9).
package relation

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/cockroachdb/kawai/internal/kerrors"
)

// Kind discriminates the variants of Column.
type Kind int

const (
	KindInvalid Kind = iota
	KindPrim
	KindDecimal
	KindFixed
	KindEnum
	KindList
	KindMap
	KindStruct
	KindUnion
)

// PrimKind enumerates the primitive leaf kinds named in spec §3.
type PrimKind int

const (
	PrimInvalid PrimKind = iota
	PrimBool
	PrimI8
	PrimI16
	PrimI32
	PrimI64
	PrimU8
	PrimU16
	PrimU32
	PrimU64
	PrimF32
	PrimF64
	PrimUTF8
	PrimBytes
	PrimDate
	PrimTimestampMicros
	PrimUUID
)

var primDDL = map[PrimKind]string{
	PrimBool:             "BOOLEAN",
	PrimI8:                "TINYINT",
	PrimI16:               "SMALLINT",
	PrimI32:               "INTEGER",
	PrimI64:               "BIGINT",
	PrimU8:                "UTINYINT",
	PrimU16:               "USMALLINT",
	PrimU32:               "UINTEGER",
	PrimU64:               "UBIGINT",
	PrimF32:               "FLOAT",
	PrimF64:               "DOUBLE",
	PrimUTF8:              "VARCHAR",
	PrimBytes:             "BLOB",
	PrimDate:              "DATE",
	PrimTimestampMicros:   "TIMESTAMP",
	PrimUUID:              "UUID",
}

// Nullability is the strategy carried by every column (spec §3).
type Nullability int

const (
	NotNull Nullability = iota
	Null
	Default
)

// Field is one named entry of a Struct or Union.
type Field struct {
	Name   string
	Column Column
}

// Column is the recursive description of a relational column. Exactly
// the fields relevant to Kind are meaningful; constructors below are
// the only supported way to build a valid value.
type Column struct {
	Kind   Kind
	Null   Nullability
	Default string // used when Null == Default

	Prim PrimKind

	// Decimal / Fixed
	Precision int
	Scale     int
	Width     int // Fixed

	// Enum
	EnumName    string
	EnumSymbols []string

	// List / Map
	Item Column
	Key  Column
	Elem Column // Map value

	// Struct / Union
	Fields []Field
}

// Prim constructs a primitive column.
func Prim(kind PrimKind) Column { return Column{Kind: KindPrim, Prim: kind} }

// NewDecimal constructs a Decimal(precision, scale) column. Per spec
// §8's boundary behaviors, 0 <= scale <= precision <= 38 is enforced at
// construction, not deferred to render time — Decimal(38, 0) (an
// integral decimal, scale zero) is accepted; Decimal(0, 1) is rejected
// because a positive scale can never fit inside zero digits of
// precision.
func NewDecimal(precision, scale int) (Column, error) {
	if precision < 1 || precision > 38 {
		return Column{}, &kerrors.BadSchema{Schema: "decimal", Reason: fmt.Sprintf("precision %d out of range [1,38]", precision)}
	}
	if scale < 0 || scale > precision {
		return Column{}, &kerrors.BadSchema{Schema: "decimal", Reason: fmt.Sprintf("scale %d out of range [0,%d]", scale, precision)}
	}
	return Column{Kind: KindDecimal, Precision: precision, Scale: scale}, nil
}

// NewFixed constructs a Fixed(n) column: a byte string of exact length n.
func NewFixed(n int) (Column, error) {
	if n < 0 {
		return Column{}, &kerrors.BadSchema{Schema: "fixed", Reason: "negative width"}
	}
	return Column{Kind: KindFixed, Width: n}, nil
}

// NewEnum constructs an Enum column. Symbols must be non-empty and
// unique; comparison between enum values is by string.
func NewEnum(name string, symbols []string) (Column, error) {
	seen := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		if s == "" {
			return Column{}, &kerrors.BadSchema{Schema: name, Reason: "empty enum symbol"}
		}
		if seen[s] {
			return Column{}, &kerrors.BadSchema{Schema: name, Reason: "duplicate enum symbol " + s}
		}
		seen[s] = true
	}
	cp := make([]string, len(symbols))
	copy(cp, symbols)
	return Column{Kind: KindEnum, EnumName: name, EnumSymbols: cp}, nil
}

// NewList constructs a List(item) column.
func NewList(item Column) Column {
	return Column{Kind: KindList, Item: item}
}

// NewMap constructs a Map(key, value) column. The key must be a
// stringifiable primitive or an enum.
func NewMap(key, value Column) (Column, error) {
	if !isStringifiable(key) {
		return Column{}, &kerrors.BadSchema{Schema: "map", Reason: "map keys must be a stringifiable primitive or enum"}
	}
	return Column{Kind: KindMap, Key: key, Elem: value}, nil
}

func isStringifiable(c Column) bool {
	switch c.Kind {
	case KindEnum:
		return true
	case KindPrim:
		switch c.Prim {
		case PrimUTF8, PrimI8, PrimI16, PrimI32, PrimI64, PrimU8, PrimU16, PrimU32, PrimU64, PrimUUID:
			return true
		}
	}
	return false
}

// NewStruct constructs a Struct(fields) column. Field names must be
// unique and non-empty, and the struct must have at least one field:
// an empty struct has no relational representation (spec §7).
func NewStruct(fields []Field) (Column, error) {
	if len(fields) == 0 {
		return Column{}, &kerrors.BadSchema{Schema: "struct", Reason: "struct has no fields"}
	}
	if err := checkUniqueNames(fields); err != nil {
		return Column{}, err
	}
	return Column{Kind: KindStruct, Fields: append([]Field(nil), fields...)}, nil
}

// NullTag is the reserved branch tag for a Union's null alternative.
const NullTag = "null"

// NewUnion constructs a Union(branches) column. At most one branch may
// be inhabited at a time; a branch tagged NullTag represents the
// explicit null alternative.
func NewUnion(branches []Field) (Column, error) {
	if len(branches) == 0 {
		return Column{}, &kerrors.BadSchema{Schema: "union", Reason: "union has no branches"}
	}
	if err := checkUniqueNames(branches); err != nil {
		return Column{}, err
	}
	return Column{Kind: KindUnion, Fields: append([]Field(nil), branches...)}, nil
}

func checkUniqueNames(fields []Field) error {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return &kerrors.BadSchema{Schema: "struct/union", Reason: "empty field name"}
		}
		if seen[f.Name] {
			return &kerrors.BadSchema{Schema: "struct/union", Reason: "duplicate field name " + f.Name}
		}
		seen[f.Name] = true
	}
	return nil
}

// WithNull returns a copy of c with its nullability strategy set.
func (c Column) WithNull(n Nullability) Column {
	c.Null = n
	return c
}

// WithDefault returns a copy of c whose nullability strategy is
// DEFAULT(expr).
func (c Column) WithDefault(expr string) Column {
	c.Null = Default
	c.Default = expr
	return c
}

// RenderDDL renders c as a type expression in DuckDB's SQL dialect. It
// is a pure function of c; compound types render by recursing into
// their children's bare types, so c's own nullability clause is the
// only one in the result (spec §4.1).
func (c Column) RenderDDL() (string, error) {
	base, err := c.renderType()
	if err != nil {
		return "", err
	}
	switch c.Null {
	case NotNull:
		return base + " NOT NULL", nil
	case Null:
		return base, nil
	case Default:
		return base + " DEFAULT " + c.Default, nil
	default:
		return base, nil
	}
}

func (c Column) renderType() (string, error) {
	switch c.Kind {
	case KindPrim:
		ddl, ok := primDDL[c.Prim]
		if !ok {
			return "", errors.Errorf("unknown primitive kind %d", c.Prim)
		}
		return ddl, nil
	case KindDecimal:
		return fmt.Sprintf("DECIMAL(%d,%d)", c.Precision, c.Scale), nil
	case KindFixed:
		return fmt.Sprintf("BLOB /* fixed(%d) */", c.Width), nil
	case KindEnum:
		quoted := make([]string, len(c.EnumSymbols))
		for i, s := range c.EnumSymbols {
			quoted[i] = "'" + strings.ReplaceAll(s, "'", "''") + "'"
		}
		return fmt.Sprintf("ENUM(%s)", strings.Join(quoted, ", ")), nil
	case KindList:
		item, err := c.Item.renderType()
		if err != nil {
			return "", err
		}
		return item + "[]", nil
	case KindMap:
		key, err := c.Key.renderType()
		if err != nil {
			return "", err
		}
		val, err := c.Elem.renderType()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("MAP(%s, %s)", key, val), nil
	case KindStruct:
		parts := make([]string, len(c.Fields))
		for i, f := range c.Fields {
			ddl, err := f.Column.renderType()
			if err != nil {
				return "", err
			}
			parts[i] = fmt.Sprintf("%s %s", f.Name, ddl)
		}
		return fmt.Sprintf("STRUCT(%s)", strings.Join(parts, ", ")), nil
	case KindUnion:
		parts := make([]string, len(c.Fields))
		for i, f := range c.Fields {
			ddl, err := f.Column.renderType()
			if err != nil {
				return "", err
			}
			parts[i] = fmt.Sprintf("%s %s", f.Name, ddl)
		}
		return fmt.Sprintf("UNION(%s)", strings.Join(parts, ", ")), nil
	default:
		return "", errors.Errorf("unknown column kind %d", c.Kind)
	}
}

// FlattenTopLevel yields the positional schema of the row shaped by c
// (spec §4.1, invariant 3): a root Struct's fields verbatim, or a
// single synthetic "value" field for anything else.
func (c Column) FlattenTopLevel() []Field {
	if c.Kind == KindStruct {
		return append([]Field(nil), c.Fields...)
	}
	return []Field{{Name: "value", Column: c}}
}
