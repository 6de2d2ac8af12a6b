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

// Package schema is kawai's binding layer (C2, spec §4.2): it turns a
// topic+role directive into either a primitive serde tag or a parsed
// structural schema, consulting a registry client only when the
// directive requires it, and caches the result for the engine's
// lifetime.
package schema

import "github.com/cockroachdb/kawai/internal/relation"

// SerdeTag identifies how a topic's key or value bytes should be
// interpreted (spec §3). The seven Tag* leaf values need no schema at
// all; Latest and ByID are resolution directives that consult the
// registry; TagParsed marks a Resolved value whose Parsed field, not
// its Tag, carries the meaning.
type SerdeTag int

const (
	TagInvalid SerdeTag = iota
	TagShort
	TagInt
	TagLong
	TagFloat
	TagDouble
	TagString
	TagBinary
	TagLatest
	TagByID
	TagParsed
)

// LeafColumn returns the relational column a leaf SerdeTag decodes to.
// It panics if called on a non-leaf tag; callers only call it after
// confirming Tag is one of the seven primitive serdes.
func (t SerdeTag) LeafColumn() relation.Column {
	switch t {
	case TagShort:
		return relation.Prim(relation.PrimI16)
	case TagInt:
		return relation.Prim(relation.PrimI32)
	case TagLong:
		return relation.Prim(relation.PrimI64)
	case TagFloat:
		return relation.Prim(relation.PrimF32)
	case TagDouble:
		return relation.Prim(relation.PrimF64)
	case TagString:
		return relation.Prim(relation.PrimUTF8)
	case TagBinary:
		return relation.Prim(relation.PrimBytes)
	default:
		panic("schema: LeafColumn called on a non-leaf SerdeTag")
	}
}

// IsLeaf reports whether t is one of the seven primitive serdes that
// require no I/O to resolve.
func (t SerdeTag) IsLeaf() bool {
	switch t {
	case TagShort, TagInt, TagLong, TagFloat, TagDouble, TagString, TagBinary:
		return true
	}
	return false
}

// Family names a class of schema languages sharing a wire convention
// but distinct ASTs (spec GLOSSARY).
type Family int

const (
	FamilyInvalid Family = iota
	FamilyRecord        // Avro
	FamilyJSON          // JSON Schema
	FamilyDescriptor    // protobuf
)

// Parsed is a structural schema: a family tag, the family's native AST
// (opaque here; each family package knows how to assert it back), and
// an optional environment of named subschema references used to
// resolve `ref` style pointers during translation.
type Parsed struct {
	Family Family
	AST    any
	Refs   map[string]any

	// WriterID is the registry id the bytes were decoded against, if
	// resolution went through the registry; used for provenance and,
	// for families whose native decoder requires the exact writer
	// schema, to re-fetch it by id (spec §4.4 step 2).
	WriterID int32
}

// Resolved is the Either<SerdeTag, ParsedSchema> of spec §3. Exactly
// one side is meaningful: Tag, when it is a leaf serde; or Parsed,
// when Tag == TagParsed.
type Resolved struct {
	Tag    SerdeTag
	Parsed *Parsed
}

// FromLeaf builds a Resolved value around a leaf serde tag.
func FromLeaf(tag SerdeTag) Resolved { return Resolved{Tag: tag} }

// FromParsed builds a Resolved value around a structural schema.
func FromParsed(p *Parsed) Resolved { return Resolved{Tag: TagParsed, Parsed: p} }

// Binary is the fallback Resolved value used whenever resolution fails
// (spec §4.2, §7): registry unreachable, or the schema body failed to
// parse.
var Binary = FromLeaf(TagBinary)
