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

// Package jsonschema is kawai's json-oriented schema family (spec
// §4.3): it translates JSON Schema documents into relation.Column
// values and decodes JSON payloads against them, using
// santhosh-tekuri/jsonschema/v5.
package jsonschema

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/pkg/errors"
	js "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/cockroachdb/kawai/internal/kerrors"
	"github.com/cockroachdb/kawai/internal/relation"
	"github.com/cockroachdb/kawai/internal/schema"
	"github.com/cockroachdb/kawai/internal/schema/registry"
	"github.com/cockroachdb/kawai/internal/schema/translate"
)

func init() {
	schema.RegisterFamilyParser("json", parser{})
	schema.RegisterFamilyParser("jsonschema", parser{})
}

type parser struct{}

func (parser) Parse(ctx context.Context, text string, refs []registry.Ref, resolveRef func(context.Context, registry.Ref) (registry.Info, error)) (*schema.Parsed, error) {
	c := js.NewCompiler()
	c.Draft = js.Draft2020

	const rootURL = "kawai://root.json"
	if err := c.AddResource(rootURL, bytes.NewReader([]byte(text))); err != nil {
		return nil, errors.Wrap(err, "loading json schema")
	}

	for _, ref := range refs {
		info, err := resolveRef(ctx, ref)
		if err != nil {
			return nil, errors.Wrapf(err, "resolving reference %s", ref.Name)
		}
		refURL := "kawai://" + ref.Name + ".json"
		if err := c.AddResource(refURL, bytes.NewReader([]byte(info.Text))); err != nil {
			return nil, errors.Wrapf(err, "loading referenced schema %s", ref.Name)
		}
	}

	compiled, err := c.Compile(rootURL)
	if err != nil {
		return nil, errors.Wrap(err, "compiling json schema")
	}
	return &schema.Parsed{Family: schema.FamilyJSON, AST: compiled}, nil
}

// ToColumn translates a compiled JSON Schema into a relation.Column
// (C3, spec §4.3).
func ToColumn(s *js.Schema) (relation.Column, error) {
	return toColumn(s, translate.NewSeen())
}

func toColumn(s *js.Schema, seen *translate.Seen) (relation.Column, error) {
	if len(s.OneOf) > 0 {
		return oneOfColumn(s.OneOf, seen)
	}

	switch {
	case len(s.Types) == 1:
		return scalarOrContainer(s, s.Types[0], seen)
	case len(s.Types) == 0 && s.Properties != nil:
		return objectColumn(s, seen)
	case len(s.Types) == 0 && s.Items2020 != nil:
		return arrayColumn(s, seen)
	default:
		return relation.Column{}, &kerrors.BadSchema{Schema: schemaName(s), Reason: "schema declares no usable type, oneOf, properties, or items"}
	}
}

func scalarOrContainer(s *js.Schema, typ string, seen *translate.Seen) (relation.Column, error) {
	switch typ {
	case "boolean":
		return relation.Prim(relation.PrimBool).WithNull(relation.NotNull), nil
	case "integer":
		return relation.Prim(relation.PrimI64).WithNull(relation.NotNull), nil
	case "number":
		return relation.Prim(relation.PrimF64).WithNull(relation.NotNull), nil
	case "string":
		return stringColumn(s), nil
	case "object":
		return objectColumn(s, seen)
	case "array":
		return arrayColumn(s, seen)
	case "null":
		return relation.Column{}, &kerrors.BadSchema{Schema: schemaName(s), Reason: "a bare null type has no relational representation"}
	default:
		return relation.Column{}, &kerrors.BadSchema{Schema: schemaName(s), Reason: "unsupported json type " + typ}
	}
}

func stringColumn(s *js.Schema) relation.Column {
	switch s.Format {
	case "uuid":
		return relation.Prim(relation.PrimUUID).WithNull(relation.NotNull)
	case "date":
		return relation.Prim(relation.PrimDate).WithNull(relation.NotNull)
	case "date-time":
		return relation.Prim(relation.PrimTimestampMicros).WithNull(relation.NotNull)
	default:
		return relation.Prim(relation.PrimUTF8).WithNull(relation.NotNull)
	}
}

func objectColumn(s *js.Schema, seen *translate.Seen) (relation.Column, error) {
	name := schemaName(s)
	done, err := seen.Enter(name)
	if err != nil {
		return relation.Column{}, err
	}
	defer done()

	if s.AdditionalProperties != nil {
		if sub, ok := s.AdditionalProperties.(*js.Schema); ok {
			val, err := toColumn(sub, seen)
			if err != nil {
				return relation.Column{}, errors.Wrap(err, "additionalProperties")
			}
			col, err := relation.NewMap(relation.Prim(relation.PrimUTF8), val)
			if err != nil {
				return relation.Column{}, err
			}
			return col.WithNull(relation.NotNull), nil
		}
	}

	names := make([]string, 0, len(s.Properties))
	for propName := range s.Properties {
		names = append(names, propName)
	}
	sort.Strings(names)

	required := make(map[string]bool, len(s.Required))
	for _, r := range s.Required {
		required[r] = true
	}

	fields := make([]relation.Field, 0, len(names))
	for _, propName := range names {
		col, err := toColumn(s.Properties[propName], seen)
		if err != nil {
			return relation.Column{}, errors.Wrapf(err, "property %s", propName)
		}
		if !required[propName] {
			col = col.WithNull(relation.Null)
		}
		fields = append(fields, relation.Field{Name: propName, Column: col})
	}
	st, err := relation.NewStruct(fields)
	if err != nil {
		return relation.Column{}, errors.Wrapf(err, "object %s", name)
	}
	return st.WithNull(relation.NotNull), nil
}

func arrayColumn(s *js.Schema, seen *translate.Seen) (relation.Column, error) {
	var itemSchema *js.Schema
	switch v := s.Items2020.(type) {
	case *js.Schema:
		itemSchema = v
	default:
		return relation.Column{}, &kerrors.BadSchema{Schema: schemaName(s), Reason: "tuple-validation arrays are not supported, only a uniform items schema"}
	}
	item, err := toColumn(itemSchema, seen)
	if err != nil {
		return relation.Column{}, errors.Wrap(err, "array items")
	}
	return relation.NewList(item).WithNull(relation.NotNull), nil
}

func oneOfColumn(alts []*js.Schema, seen *translate.Seen) (relation.Column, error) {
	branches := make([]relation.Field, 0, len(alts))
	for i, alt := range alts {
		if isNullSchema(alt) {
			branches = append(branches, relation.Field{Name: relation.NullTag, Column: relation.Column{Kind: relation.KindPrim, Prim: relation.PrimInvalid}})
			continue
		}
		col, err := toColumn(alt, seen)
		if err != nil {
			return relation.Column{}, errors.Wrap(err, "oneOf branch")
		}
		name := schemaName(alt)
		if name == "" {
			name = fmt.Sprintf("branch%d", i)
		}
		branches = append(branches, relation.Field{Name: name, Column: col})
	}
	if relaxed, ok := translate.RelaxOptional(branches); ok {
		return relaxed, nil
	}
	col, err := relation.NewUnion(branches)
	if err != nil {
		return relation.Column{}, err
	}
	return col.WithNull(relation.NotNull), nil
}

func isNullSchema(s *js.Schema) bool {
	return len(s.Types) == 1 && s.Types[0] == "null"
}

func schemaName(s *js.Schema) string {
	if s == nil {
		return ""
	}
	return s.Location
}
