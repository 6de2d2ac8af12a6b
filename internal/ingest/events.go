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

package ingest

import (
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

// columnFor translates a resolved schema binding into the relational
// column it describes (C1+C3, spec §4.1/§4.3). The ingest loop calls
// it at table-creation time and again for each record it handles.
func columnFor(resolved schema.Resolved) (relation.Column, error) {
	if resolved.Tag.IsLeaf() {
		return resolved.Tag.LeafColumn().WithNull(relation.NotNull), nil
	}
	if resolved.Tag != schema.TagParsed || resolved.Parsed == nil {
		return relation.Column{}, &kerrors.BadSchema{Schema: "resolved", Reason: "resolved schema has neither a leaf tag nor a parsed schema"}
	}

	switch resolved.Parsed.Family {
	case schema.FamilyRecord:
		s, ok := resolved.Parsed.AST.(avrolib.Schema)
		if !ok {
			return relation.Column{}, &kerrors.BadSchema{Schema: "avro", Reason: "parsed schema has the wrong Go type"}
		}
		return avro.ToColumn(s)

	case schema.FamilyJSON:
		s, ok := resolved.Parsed.AST.(*js.Schema)
		if !ok {
			return relation.Column{}, &kerrors.BadSchema{Schema: "jsonschema", Reason: "parsed schema has the wrong Go type"}
		}
		return jsonschema.ToColumn(s)

	case schema.FamilyDescriptor:
		md, ok := resolved.Parsed.AST.(protoreflect.MessageDescriptor)
		if !ok {
			return relation.Column{}, &kerrors.BadSchema{Schema: "protobuf", Reason: "parsed schema has the wrong Go type"}
		}
		return protobuf.ToColumn(md)

	default:
		return relation.Column{}, &kerrors.BadSchema{Schema: "resolved", Reason: "unrecognized schema family"}
	}
}

func wrapColumnErr(role string, err error) error {
	return errors.Wrapf(err, "translating %s schema to a column", role)
}
