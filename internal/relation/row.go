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

package relation

import (
	"fmt"

	"github.com/cockroachdb/kawai/internal/kerrors"
)

// Value is the decoded, family-agnostic value tree that family
// decoders (internal/schema/avro, jsonschema, protobuf) produce and
// that Shape walks in lockstep with a Column (spec §4.5).
//
// Exactly one of the fields is meaningful, selected by the shape of
// the Column being walked against:
//   - Leaf: primitive/decimal/fixed/enum values, passed through as-is.
//   - Items: the decoded elements of a List.
//   - Pairs: the decoded (key, value) entries of a Map, in wire order.
//   - Fields: the decoded entries of a Struct, by field name.
//   - Branch/Inner: the single inhabited alternative of a Union.
type Value struct {
	Leaf  any
	Items []Value
	Pairs []Pair
	Fields map[string]Value

	Branch string
	Inner  *Value
}

// Pair is one decoded map entry.
type Pair struct {
	Key   any
	Value Value
}

// Row is an ordered sequence of values positionally matching a
// prepared insert: [key, value-col-1, ..., value-col-k].
type Row []any

// Shape walks value against column and produces the row fragment it
// contributes: a scalar for a leaf column, a nested slice/map for a
// composite one, ready to be passed to a driver parameter (spec §4.5).
func Shape(value Value, column Column) (any, error) {
	switch column.Kind {
	case KindPrim, KindDecimal, KindFixed, KindEnum:
		return value.Leaf, nil

	case KindList:
		out := make([]any, len(value.Items))
		for i, item := range value.Items {
			shaped, err := Shape(item, column.Item)
			if err != nil {
				return nil, err
			}
			out[i] = shaped
		}
		return out, nil

	case KindMap:
		out := make(map[string]any, len(value.Pairs))
		for _, p := range value.Pairs {
			k, err := stringifyKey(p.Key)
			if err != nil {
				return nil, err
			}
			shaped, err := Shape(p.Value, column.Elem)
			if err != nil {
				return nil, err
			}
			out[k] = shaped
		}
		return out, nil

	case KindStruct:
		out := make([]any, len(column.Fields))
		for i, f := range column.Fields {
			fv, ok := value.Fields[f.Name]
			if !ok {
				if f.Column.Null == NotNull {
					return nil, &kerrors.BadRow{Column: f.Name, Reason: "missing field on a NOT NULL column"}
				}
				out[i] = nil
				continue
			}
			shaped, err := Shape(fv, f.Column)
			if err != nil {
				return nil, err
			}
			out[i] = shaped
		}
		return out, nil

	case KindUnion:
		if value.Branch == "" {
			return nil, &kerrors.BadRow{Column: "union", Reason: "no branch tag on decoded union value"}
		}
		if value.Branch == NullTag {
			return [2]any{NullTag, nil}, nil
		}
		var branchCol Column
		found := false
		for _, f := range column.Fields {
			if f.Name == value.Branch {
				branchCol = f.Column
				found = true
				break
			}
		}
		if !found {
			return nil, &kerrors.BadRow{Column: "union", Reason: "unknown branch tag " + value.Branch}
		}
		if value.Inner == nil {
			return nil, &kerrors.BadRow{Column: value.Branch, Reason: "union branch has no inner value"}
		}
		shaped, err := Shape(*value.Inner, branchCol)
		if err != nil {
			return nil, err
		}
		return [2]any{value.Branch, shaped}, nil

	default:
		return nil, &kerrors.BadRow{Column: "?", Reason: fmt.Sprintf("unknown column kind %d", column.Kind)}
	}
}

func stringifyKey(key any) (string, error) {
	switch k := key.(type) {
	case string:
		return k, nil
	case fmt.Stringer:
		return k.String(), nil
	default:
		return fmt.Sprintf("%v", k), nil
	}
}

// ShapeRow builds a complete positional Row: the shaped key followed
// by the flattened value columns (spec §4.5's top-level flattening
// rule). keyValue may be the zero Value when the record's key is
// empty/absent, in which case the key column is null.
func ShapeRow(keyValue Value, keyColumn Column, valueValue Value, valueColumn Column, hasValue bool) (Row, error) {
	shapedKey, err := Shape(keyValue, keyColumn)
	if err != nil {
		return nil, err
	}

	valueFields := valueColumn.FlattenTopLevel()
	row := make(Row, 0, 1+len(valueFields))
	row = append(row, shapedKey)

	if !hasValue {
		for range valueFields {
			row = append(row, nil)
		}
		return row, nil
	}

	if valueColumn.Kind == KindStruct {
		for _, f := range valueFields {
			fv, ok := valueValue.Fields[f.Name]
			if !ok {
				if f.Column.Null == NotNull {
					return nil, &kerrors.BadRow{Column: f.Name, Reason: "missing field on a NOT NULL column"}
				}
				row = append(row, nil)
				continue
			}
			shaped, err := Shape(fv, f.Column)
			if err != nil {
				return nil, err
			}
			row = append(row, shaped)
		}
		return row, nil
	}

	shaped, err := Shape(valueValue, valueColumn)
	if err != nil {
		return nil, err
	}
	row = append(row, shaped)
	return row, nil
}
