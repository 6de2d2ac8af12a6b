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

// Package avro is kawai's record-oriented schema family (spec §4.3): it
// translates Avro schemas into relation.Column values and decodes Avro
// binary payloads against them, using hamba/avro/v2.
package avro

import (
	"context"

	"github.com/hamba/avro/v2"
	"github.com/pkg/errors"

	"github.com/cockroachdb/kawai/internal/kerrors"
	"github.com/cockroachdb/kawai/internal/relation"
	"github.com/cockroachdb/kawai/internal/schema"
	"github.com/cockroachdb/kawai/internal/schema/registry"
	"github.com/cockroachdb/kawai/internal/schema/translate"
)

func init() {
	schema.RegisterFamilyParser("avro", parser{})
}

// parser implements schema.FamilyParser for the Avro family.
type parser struct{}

func (parser) Parse(_ context.Context, text string, refs []registry.Ref, _ func(context.Context, registry.Ref) (registry.Info, error)) (*schema.Parsed, error) {
	// hamba/avro/v2 resolves named-type references by parsing them in
	// dependency order into a shared avro.SchemaCache; this parser does
	// not resolve refs (they are only recorded on Parsed), so named
	// Avro types have to be defined inline in text.
	parsed, err := avro.Parse(text)
	if err != nil {
		return nil, errors.Wrap(err, "parsing avro schema")
	}
	return &schema.Parsed{Family: schema.FamilyRecord, AST: parsed, Refs: toAny(refs)}, nil
}

func toAny(refs []registry.Ref) map[string]any {
	if len(refs) == 0 {
		return nil
	}
	m := make(map[string]any, len(refs))
	for _, r := range refs {
		m[r.Name] = r
	}
	return m
}

// ToColumn translates an Avro schema into a relation.Column (C3, spec
// §4.3).
func ToColumn(s avro.Schema) (relation.Column, error) {
	return toColumn(s, translate.NewSeen())
}

func toColumn(s avro.Schema, seen *translate.Seen) (relation.Column, error) {
	switch s.Type() {
	case avro.Boolean:
		return relation.Prim(relation.PrimBool).WithNull(relation.NotNull), nil
	case avro.Int:
		return intColumn(s), nil
	case avro.Long:
		return longColumn(s), nil
	case avro.Float:
		return relation.Prim(relation.PrimF32).WithNull(relation.NotNull), nil
	case avro.Double:
		return relation.Prim(relation.PrimF64).WithNull(relation.NotNull), nil
	case avro.String:
		return stringColumn(s), nil
	case avro.Bytes:
		return bytesColumn(s), nil
	case avro.Null:
		return relation.Column{}, &kerrors.BadSchema{Schema: "null", Reason: "a bare null schema has no relational representation"}

	case avro.Record:
		rec := s.(*avro.RecordSchema)
		done, err := seen.Enter(rec.FullName())
		if err != nil {
			return relation.Column{}, err
		}
		defer done()

		fields := make([]relation.Field, 0, len(rec.Fields()))
		for _, f := range rec.Fields() {
			col, err := toColumn(f.Type(), seen)
			if err != nil {
				return relation.Column{}, errors.Wrapf(err, "field %s of record %s", f.Name(), rec.FullName())
			}
			fields = append(fields, relation.Field{Name: f.Name(), Column: col})
		}
		st, err := relation.NewStruct(fields)
		if err != nil {
			return relation.Column{}, errors.Wrapf(err, "record %s", rec.FullName())
		}
		return st.WithNull(relation.NotNull), nil

	case avro.Enum:
		en := s.(*avro.EnumSchema)
		col, err := relation.NewEnum(en.Name(), en.Symbols())
		if err != nil {
			return relation.Column{}, err
		}
		return col.WithNull(relation.NotNull), nil

	case avro.Fixed:
		fx := s.(*avro.FixedSchema)
		if dec := decimalLogical(fx.Logical()); dec != nil {
			col, err := relation.NewDecimal(dec.Precision(), dec.Scale())
			if err != nil {
				return relation.Column{}, err
			}
			return col.WithNull(relation.NotNull), nil
		}
		col, err := relation.NewFixed(fx.Size())
		if err != nil {
			return relation.Column{}, err
		}
		return col.WithNull(relation.NotNull), nil

	case avro.Array:
		ar := s.(*avro.ArraySchema)
		item, err := toColumn(ar.Items(), seen)
		if err != nil {
			return relation.Column{}, errors.Wrap(err, "array items")
		}
		return relation.NewList(item).WithNull(relation.NotNull), nil

	case avro.Map:
		m := s.(*avro.MapSchema)
		val, err := toColumn(m.Values(), seen)
		if err != nil {
			return relation.Column{}, errors.Wrap(err, "map values")
		}
		col, err := relation.NewMap(relation.Prim(relation.PrimUTF8), val)
		if err != nil {
			return relation.Column{}, err
		}
		return col.WithNull(relation.NotNull), nil

	case avro.Union:
		u := s.(*avro.UnionSchema)
		branches := make([]relation.Field, 0, len(u.Types()))
		for _, branch := range u.Types() {
			if branch.Type() == avro.Null {
				branches = append(branches, relation.Field{Name: relation.NullTag, Column: relation.Column{Kind: relation.KindPrim, Prim: relation.PrimInvalid}})
				continue
			}
			col, err := toColumn(branch, seen)
			if err != nil {
				return relation.Column{}, errors.Wrap(err, "union branch")
			}
			branches = append(branches, relation.Field{Name: branchName(branch), Column: col})
		}
		if relaxed, ok := translate.RelaxOptional(branches); ok {
			return relaxed, nil
		}
		col, err := relation.NewUnion(branches)
		if err != nil {
			return relation.Column{}, err
		}
		return col.WithNull(relation.NotNull), nil

	case avro.Ref:
		// A named-type reference that hamba/avro/v2 left unresolved at
		// this point means the schema referred to a name it never saw
		// a definition for.
		return relation.Column{}, &kerrors.BadSchema{Schema: s.String(), Reason: "unresolved named reference"}

	default:
		return relation.Column{}, &kerrors.BadSchema{Schema: s.String(), Reason: "unsupported avro type"}
	}
}

func branchName(s avro.Schema) string {
	switch named := s.(type) {
	case *avro.RecordSchema:
		return named.FullName()
	case *avro.EnumSchema:
		return named.Name()
	case *avro.FixedSchema:
		return named.Name()
	default:
		return string(s.Type())
	}
}

func intColumn(s avro.Schema) relation.Column {
	if prim, ok := s.(*avro.PrimitiveSchema); ok {
		if dec := decimalLogical(prim.Logical()); dec != nil {
			col, err := relation.NewDecimal(dec.Precision(), dec.Scale())
			if err == nil {
				return col.WithNull(relation.NotNull)
			}
		}
		if logicalIs(prim.Logical(), avro.Date) {
			return relation.Prim(relation.PrimDate).WithNull(relation.NotNull)
		}
	}
	return relation.Prim(relation.PrimI32).WithNull(relation.NotNull)
}

func longColumn(s avro.Schema) relation.Column {
	if prim, ok := s.(*avro.PrimitiveSchema); ok {
		if dec := decimalLogical(prim.Logical()); dec != nil {
			col, err := relation.NewDecimal(dec.Precision(), dec.Scale())
			if err == nil {
				return col.WithNull(relation.NotNull)
			}
		}
		if logicalIs(prim.Logical(), avro.TimestampMicros) || logicalIs(prim.Logical(), avro.TimestampMillis) {
			return relation.Prim(relation.PrimTimestampMicros).WithNull(relation.NotNull)
		}
	}
	return relation.Prim(relation.PrimI64).WithNull(relation.NotNull)
}

func stringColumn(s avro.Schema) relation.Column {
	if prim, ok := s.(*avro.PrimitiveSchema); ok {
		if logicalIs(prim.Logical(), avro.UUID) {
			return relation.Prim(relation.PrimUUID).WithNull(relation.NotNull)
		}
	}
	return relation.Prim(relation.PrimUTF8).WithNull(relation.NotNull)
}

func bytesColumn(s avro.Schema) relation.Column {
	if prim, ok := s.(*avro.PrimitiveSchema); ok {
		if dec := decimalLogical(prim.Logical()); dec != nil {
			col, err := relation.NewDecimal(dec.Precision(), dec.Scale())
			if err == nil {
				return col.WithNull(relation.NotNull)
			}
		}
	}
	return relation.Prim(relation.PrimBytes).WithNull(relation.NotNull)
}

func decimalLogical(l *avro.LogicalSchema) *avro.DecimalLogicalSchema {
	if l == nil || l.Type() != avro.Decimal {
		return nil
	}
	dec, ok := any(l).(*avro.DecimalLogicalSchema)
	if !ok {
		return nil
	}
	return dec
}

func logicalIs(l *avro.LogicalSchema, want avro.LogicalType) bool {
	return l != nil && l.Type() == want
}
