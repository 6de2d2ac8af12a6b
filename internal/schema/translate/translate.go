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

// Package translate holds the cross-family rules spec §4.3 describes
// once and expects every schema language to obey identically: numeric
// width widening, the nullable-union-is-optional relaxation, and
// recursive-reference detection. The three family packages
// (avro, jsonschema, protobuf) each walk their own AST but call into
// this package for the parts of the translation that do not vary by
// family, the same shared-policy/per-backend split the teacher uses
// between internal/target/apply and its per-dialect stdpool backends.
package translate

import (
	"fmt"

	"github.com/cockroachdb/kawai/internal/kerrors"
	"github.com/cockroachdb/kawai/internal/relation"
)

// Seen tracks the named subschemas currently being translated, so a
// self-referential schema returns a kerrors.BadSchema whose Reason is
// kerrors.ErrRecursion's message instead of recursing the host stack
// to death. Each family package constructs
// one Seen per top-level ToColumn call and threads it through its
// recursive walk.
type Seen struct {
	active map[string]bool
}

// NewSeen returns an empty recursion tracker.
func NewSeen() *Seen {
	return &Seen{active: make(map[string]bool)}
}

// Enter marks name as being translated and returns a func that must be
// deferred to unmark it on return. It returns an error if name is
// already on the active path.
func (s *Seen) Enter(name string) (func(), error) {
	if name == "" {
		return func() {}, nil
	}
	if s.active[name] {
		return nil, &kerrors.BadSchema{
			Schema: name,
			Reason: kerrors.ErrRecursion.Error(),
		}
	}
	s.active[name] = true
	return func() { delete(s.active, name) }, nil
}

// OptionalUnion reports whether branches is exactly {null, T} or
// {T, null} for some single inhabited alternative T, the shape spec
// §4.3 calls "optional" rather than a genuine union. sibling is the
// non-null branch's column when ok is true.
func OptionalUnion(branches []relation.Field) (sibling relation.Field, ok bool) {
	if len(branches) != 2 {
		return relation.Field{}, false
	}
	var nullIdx, otherIdx = -1, -1
	for i, f := range branches {
		if f.Name == relation.NullTag {
			nullIdx = i
		} else {
			otherIdx = i
		}
	}
	if nullIdx < 0 || otherIdx < 0 {
		return relation.Field{}, false
	}
	return branches[otherIdx], true
}

// RelaxOptional applies spec §4.3's optional-union rule: a two-branch
// union with one null alternative collapses to its sibling's column
// with nullability relaxed to Null, rather than surviving as a Union.
func RelaxOptional(branches []relation.Field) (relation.Column, bool) {
	sibling, ok := OptionalUnion(branches)
	if !ok {
		return relation.Column{}, false
	}
	return sibling.Column.WithNull(relation.Null), true
}

// IntWidth is the ordered set of signed-integer widths a family's
// native int type may widen to in spec §4.3's numeric width mapping.
type IntWidth int

const (
	Width8 IntWidth = 8
	Width16 IntWidth = 16
	Width32 IntWidth = 32
	Width64 IntWidth = 64
)

// WidenInt returns the relation.PrimKind for a signed integer of the
// requested bit width, the common step every family's translator takes
// when mapping its native fixed-width integer types onto spec §3's
// Prim set.
func WidenInt(width IntWidth) (relation.PrimKind, error) {
	switch width {
	case Width8:
		return relation.PrimI8, nil
	case Width16:
		return relation.PrimI16, nil
	case Width32:
		return relation.PrimI32, nil
	case Width64:
		return relation.PrimI64, nil
	default:
		return relation.PrimInvalid, fmt.Errorf("translate: unsupported integer width %d", width)
	}
}
