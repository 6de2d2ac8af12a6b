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

// Package decode implements C4 (spec §4.4): it strips the Confluent
// wire-format envelope from a record's key or value bytes and decodes
// the body against a resolved schema, producing the family-agnostic
// relation.Value tree that relation.Shape walks.
package decode

import (
	"context"
	"encoding/binary"
	"math"

	avrolib "github.com/hamba/avro/v2"
	"github.com/pkg/errors"
	js "github.com/santhosh-tekuri/jsonschema/v5"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/cockroachdb/kawai/internal/kerrors"
	"github.com/cockroachdb/kawai/internal/relation"
	"github.com/cockroachdb/kawai/internal/schema"
	"github.com/cockroachdb/kawai/internal/schema/avro"
	"github.com/cockroachdb/kawai/internal/schema/jsonschema"
	"github.com/cockroachdb/kawai/internal/schema/protobuf"
)

const magicByte = 0x00

// FetchByID re-fetches and parses the schema registered under a
// writer id. The decoder needs this when a topic's binding was
// resolved by "latest" (spec §4.2) but an individual record's magic
// header names an older writer id.
type FetchByID func(ctx context.Context, id int32) (*schema.Parsed, error)

// Decode implements C4 end-to-end: it decodes raw against resolved,
// consulting fetchByID only when resolved came from the registry (it
// carries a non-zero writer id) and raw's own schema id differs from
// that one (spec §4.4 step 2). Inline schemas are never refetched.
func Decode(ctx context.Context, raw []byte, resolved schema.Resolved, fetchByID FetchByID) (relation.Value, error) {
	if resolved.Tag.IsLeaf() {
		return decodeLeaf(raw, resolved.Tag)
	}
	if resolved.Tag != schema.TagParsed || resolved.Parsed == nil {
		return relation.Value{}, &kerrors.DecodeError{Reason: "resolved schema has neither a leaf tag nor a parsed schema"}
	}

	parsed := resolved.Parsed
	body := raw

	if parsed.Family == schema.FamilyRecord || parsed.Family == schema.FamilyJSON || parsed.Family == schema.FamilyDescriptor {
		id, rest, err := stripMagic(raw)
		if err != nil {
			return relation.Value{}, err
		}
		body = rest
		if parsed.WriterID != 0 && id != parsed.WriterID && fetchByID != nil {
			refetched, err := fetchByID(ctx, id)
			if err != nil {
				return relation.Value{}, &kerrors.DecodeError{Reason: "refetching writer schema", Cause: err}
			}
			parsed = refetched
		}
	}

	switch parsed.Family {
	case schema.FamilyRecord:
		s, ok := parsed.AST.(avrolib.Schema)
		if !ok {
			return relation.Value{}, &kerrors.DecodeError{Reason: "parsed avro schema has the wrong Go type"}
		}
		v, err := avro.Decode(body, s)
		if err != nil {
			return relation.Value{}, &kerrors.DecodeError{Reason: "avro decode failed", Cause: err}
		}
		return v, nil

	case schema.FamilyJSON:
		s, ok := parsed.AST.(*js.Schema)
		if !ok {
			return relation.Value{}, &kerrors.DecodeError{Reason: "parsed json schema has the wrong Go type"}
		}
		v, err := jsonschema.Decode(body, s)
		if err != nil {
			return relation.Value{}, &kerrors.DecodeError{Reason: "json decode failed", Cause: err}
		}
		return v, nil

	case schema.FamilyDescriptor:
		md, ok := parsed.AST.(protoreflect.MessageDescriptor)
		if !ok {
			return relation.Value{}, &kerrors.DecodeError{Reason: "parsed protobuf schema has the wrong Go type"}
		}
		v, err := protobuf.Decode(body, md)
		if err != nil {
			return relation.Value{}, &kerrors.DecodeError{Reason: "protobuf decode failed", Cause: err}
		}
		return v, nil

	default:
		return relation.Value{}, &kerrors.DecodeError{Reason: "unrecognized schema family"}
	}
}

func decodeLeaf(raw []byte, tag schema.SerdeTag) (relation.Value, error) {
	switch tag {
	case schema.TagShort:
		if len(raw) != 2 {
			return relation.Value{}, &kerrors.DecodeError{Reason: "short serde requires exactly 2 bytes"}
		}
		return relation.Value{Leaf: int16(binary.BigEndian.Uint16(raw))}, nil
	case schema.TagInt:
		if len(raw) != 4 {
			return relation.Value{}, &kerrors.DecodeError{Reason: "int serde requires exactly 4 bytes"}
		}
		return relation.Value{Leaf: int32(binary.BigEndian.Uint32(raw))}, nil
	case schema.TagLong:
		if len(raw) != 8 {
			return relation.Value{}, &kerrors.DecodeError{Reason: "long serde requires exactly 8 bytes"}
		}
		return relation.Value{Leaf: int64(binary.BigEndian.Uint64(raw))}, nil
	case schema.TagFloat:
		if len(raw) != 4 {
			return relation.Value{}, &kerrors.DecodeError{Reason: "float serde requires exactly 4 bytes"}
		}
		return relation.Value{Leaf: math.Float32frombits(binary.BigEndian.Uint32(raw))}, nil
	case schema.TagDouble:
		if len(raw) != 8 {
			return relation.Value{}, &kerrors.DecodeError{Reason: "double serde requires exactly 8 bytes"}
		}
		return relation.Value{Leaf: math.Float64frombits(binary.BigEndian.Uint64(raw))}, nil
	case schema.TagString:
		return relation.Value{Leaf: string(raw)}, nil
	case schema.TagBinary:
		cp := append([]byte(nil), raw...)
		return relation.Value{Leaf: cp}, nil
	default:
		return relation.Value{}, &kerrors.DecodeError{Reason: "unrecognized leaf serde tag"}
	}
}

func stripMagic(raw []byte) (id int32, body []byte, err error) {
	if len(raw) < 5 {
		return 0, nil, &kerrors.DecodeError{Reason: "payload shorter than the 5-byte schema envelope", Cause: kerrors.ErrBadMagic}
	}
	if raw[0] != magicByte {
		return 0, nil, &kerrors.DecodeError{Reason: "leading byte is not the magic byte", Cause: kerrors.ErrBadMagic}
	}
	id = int32(binary.BigEndian.Uint32(raw[1:5]))
	return id, raw[5:], nil
}

