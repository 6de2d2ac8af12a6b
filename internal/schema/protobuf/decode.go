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

package protobuf

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/cockroachdb/kawai/internal/relation"
)

// Decode unmarshals body (the bytes following the 5-byte magic-byte
// and schema-id frame, passed as-is; no protobuf message-index prefix
// is stripped) against md using a dynamicpb message, since kawai has
// no generated Go types for ingested schemas.
func Decode(body []byte, md protoreflect.MessageDescriptor) (relation.Value, error) {
	msg := dynamicpb.NewMessage(md)
	if err := proto.Unmarshal(body, msg); err != nil {
		return relation.Value{}, errors.Wrap(err, "decoding protobuf payload")
	}
	return fromMessage(msg), nil
}

func fromMessage(msg protoreflect.Message) relation.Value {
	md := msg.Descriptor()
	fields := make(map[string]relation.Value, md.Fields().Len())

	handledOneof := map[protoreflect.FullName]bool{}
	for i := 0; i < md.Oneofs().Len(); i++ {
		oo := md.Oneofs().Get(i)
		if oo.IsSynthetic() {
			continue
		}
		handledOneof[oo.FullName()] = true
		which := msg.WhichOneof(oo)
		if which == nil {
			fields[string(oo.Name())] = relation.Value{Branch: relation.NullTag}
			continue
		}
		inner := fromField(msg, which)
		fields[string(oo.Name())] = relation.Value{Branch: string(which.Name()), Inner: &inner}
	}

	flds := md.Fields()
	for i := 0; i < flds.Len(); i++ {
		fd := flds.Get(i)
		if oo := fd.ContainingOneof(); oo != nil && !oo.IsSynthetic() {
			continue
		}
		fields[string(fd.Name())] = fromField(msg, fd)
	}

	return relation.Value{Fields: fields}
}

func fromField(msg protoreflect.Message, fd protoreflect.FieldDescriptor) relation.Value {
	if fd.IsMap() {
		v := msg.Get(fd).Map()
		var pairs []relation.Pair
		v.Range(func(k protoreflect.MapKey, val protoreflect.Value) bool {
			pairs = append(pairs, relation.Pair{Key: k.Interface(), Value: fromScalarOrMessage(val, fd.MapValue())})
			return true
		})
		return relation.Value{Pairs: pairs}
	}

	if fd.IsList() {
		v := msg.Get(fd).List()
		items := make([]relation.Value, v.Len())
		for i := 0; i < v.Len(); i++ {
			items[i] = fromScalarOrMessage(v.Get(i), fd)
		}
		return relation.Value{Items: items}
	}

	return fromScalarOrMessage(msg.Get(fd), fd)
}

func fromScalarOrMessage(v protoreflect.Value, fd protoreflect.FieldDescriptor) relation.Value {
	switch fd.Kind() {
	case protoreflect.MessageKind, protoreflect.GroupKind:
		return fromMessage(v.Message())
	case protoreflect.EnumKind:
		enumDesc := fd.Enum().Values().ByNumber(v.Enum())
		if enumDesc == nil {
			return relation.Value{Leaf: int32(v.Enum())}
		}
		return relation.Value{Leaf: string(enumDesc.Name())}
	default:
		return relation.Value{Leaf: v.Interface()}
	}
}
