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

package jsonschema

import (
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
	js "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/cockroachdb/kawai/internal/relation"
)

// Decode validates body against s and returns it as a relation.Value
// (spec §4.4: for the JSON family, the body is the schema-bearing
// record's entire JSON text; there is no separate binary envelope
// beyond the Confluent magic-byte frame).
func Decode(body []byte, s *js.Schema) (relation.Value, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return relation.Value{}, errors.Wrap(err, "parsing json payload")
	}
	if err := s.ValidateInterface(doc); err != nil {
		return relation.Value{}, errors.Wrap(err, "validating json payload against schema")
	}
	return fromGeneric(doc, s), nil
}

func fromGeneric(v any, s *js.Schema) relation.Value {
	if len(s.OneOf) > 0 {
		if nonNull, ok := optionalNonNull(s.OneOf); ok {
			// translate.RelaxOptional collapsed this oneOf's column to
			// its sibling, so the decoded value must follow the same
			// shape instead of a Branch/Inner pair no column expects.
			if v == nil {
				return relation.Value{}
			}
			return fromGeneric(v, nonNull)
		}

		for i, alt := range s.OneOf {
			if isNullSchema(alt) {
				if v == nil {
					return relation.Value{Branch: relation.NullTag}
				}
				continue
			}
			if alt.ValidateInterface(v) == nil {
				name := schemaName(alt)
				if name == "" {
					name = altLabel(i)
				}
				inner := fromGeneric(v, alt)
				return relation.Value{Branch: name, Inner: &inner}
			}
		}
		return relation.Value{Branch: relation.NullTag}
	}

	switch m := v.(type) {
	case map[string]any:
		fields := make(map[string]relation.Value, len(m))
		for name, propSchema := range s.Properties {
			fields[name] = fromGeneric(m[name], propSchema)
		}
		return relation.Value{Fields: fields}

	case []any:
		var itemSchema *js.Schema
		if sub, ok := s.Items2020.(*js.Schema); ok {
			itemSchema = sub
		}
		items := make([]relation.Value, len(m))
		for i, el := range m {
			items[i] = fromGeneric(el, itemSchema)
		}
		return relation.Value{Items: items}

	default:
		return relation.Value{Leaf: leafValue(v, s)}
	}
}

// leafValue narrows encoding/json's untyped float64 down to the Go
// type the translated column actually expects: an "integer"-typed
// schema produces an int64 column (toColumn's scalarOrContainer), not
// a float64 one, so the decoded leaf must follow suit.
func leafValue(v any, s *js.Schema) any {
	if n, ok := v.(float64); ok && len(s.Types) == 1 && s.Types[0] == "integer" {
		return int64(n)
	}
	return v
}

func altLabel(i int) string {
	return "branch" + strconv.Itoa(i)
}

// optionalNonNull reports whether alts is the two-branch {null, T}
// shape translate.RelaxOptional collapses at the column level,
// mirroring its condition exactly so decode and translate never
// disagree about which oneOfs were relaxed.
func optionalNonNull(alts []*js.Schema) (*js.Schema, bool) {
	if len(alts) != 2 {
		return nil, false
	}
	nullIdx, otherIdx := -1, -1
	for i, alt := range alts {
		if isNullSchema(alt) {
			nullIdx = i
		} else {
			otherIdx = i
		}
	}
	if nullIdx < 0 || otherIdx < 0 {
		return nil, false
	}
	return alts[otherIdx], true
}
