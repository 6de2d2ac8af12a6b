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

package avro

import (
	"github.com/hamba/avro/v2"
	"github.com/pkg/errors"

	"github.com/cockroachdb/kawai/internal/relation"
)

// Decode decodes body (the bytes following the Confluent magic-byte
// frame) against s, returning a relation.Value shaped the way
// relation.Shape expects (spec §4.4 step 3 hands this straight to
// relation.Shape).
func Decode(body []byte, s avro.Schema) (relation.Value, error) {
	var generic any
	if err := avro.Unmarshal(s, body, &generic); err != nil {
		return relation.Value{}, errors.Wrap(err, "decoding avro payload")
	}
	return fromGeneric(generic, s), nil
}

// fromGeneric walks the map[string]any/[]any/scalar tree hamba/avro/v2
// decodes into and wraps it as a relation.Value, picking the union
// branch tag the runtime value implies. This mirrors the shape
// relation.Shape already expects from the schema side, so no
// additional shaping concerns leak into this package.
func fromGeneric(v any, s avro.Schema) relation.Value {
	switch s.Type() {
	case avro.Record:
		rec := s.(*avro.RecordSchema)
		m, _ := v.(map[string]any)
		fields := make(map[string]relation.Value, len(rec.Fields()))
		for _, f := range rec.Fields() {
			fields[f.Name()] = fromGeneric(m[f.Name()], f.Type())
		}
		return relation.Value{Fields: fields}

	case avro.Array:
		ar := s.(*avro.ArraySchema)
		items, _ := v.([]any)
		out := make([]relation.Value, len(items))
		for i, item := range items {
			out[i] = fromGeneric(item, ar.Items())
		}
		return relation.Value{Items: out}

	case avro.Map:
		m := s.(*avro.MapSchema)
		raw, _ := v.(map[string]any)
		pairs := make([]relation.Pair, 0, len(raw))
		for k, val := range raw {
			pairs = append(pairs, relation.Pair{Key: k, Value: fromGeneric(val, m.Values())})
		}
		return relation.Value{Pairs: pairs}

	case avro.Union:
		u := s.(*avro.UnionSchema)
		if nonNull, ok := optionalNonNull(u.Types()); ok {
			// translate.RelaxOptional collapsed this union's column to
			// its sibling, so the decoded value must follow the same
			// shape instead of a Branch/Inner pair no column expects.
			if v == nil {
				return relation.Value{}
			}
			if m, ok := v.(map[string]any); ok {
				for _, val := range m {
					return fromGeneric(val, nonNull)
				}
			}
			return fromGeneric(v, nonNull)
		}
		if v == nil {
			return relation.Value{Branch: relation.NullTag}
		}
		// hamba/avro/v2 decodes a non-null union branch as
		// map[string]any{"<branch-name>": value}.
		if m, ok := v.(map[string]any); ok {
			for key, val := range m {
				for _, branch := range u.Types() {
					if branchName(branch) == key {
						inner := fromGeneric(val, branch)
						return relation.Value{Branch: key, Inner: &inner}
					}
				}
			}
		}
		return relation.Value{Branch: relation.NullTag}

	default:
		return relation.Value{Leaf: v}
	}
}

// optionalNonNull reports whether types is the two-branch {null, T}
// shape translate.RelaxOptional collapses at the column level, mirroring
// its condition exactly so decode and translate never disagree about
// which unions were relaxed.
func optionalNonNull(types []avro.Schema) (avro.Schema, bool) {
	if len(types) != 2 {
		return nil, false
	}
	nullIdx, otherIdx := -1, -1
	for i, t := range types {
		if t.Type() == avro.Null {
			nullIdx = i
		} else {
			otherIdx = i
		}
	}
	if nullIdx < 0 || otherIdx < 0 {
		return nil, false
	}
	return types[otherIdx], true
}
