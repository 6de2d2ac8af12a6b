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

// Package protobuf is kawai's descriptor-oriented schema family (spec
// §4.3): it compiles protobuf FileDescriptorProtos with
// bufbuild/protocompile, translates protoreflect.MessageDescriptor
// values into relation.Column values, and decodes protobuf-encoded
// payloads against them using google.golang.org/protobuf's dynamicpb.
package protobuf

import (
	"context"

	"github.com/bufbuild/protocompile"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/cockroachdb/kawai/internal/kerrors"
	"github.com/cockroachdb/kawai/internal/relation"
	"github.com/cockroachdb/kawai/internal/schema"
	"github.com/cockroachdb/kawai/internal/schema/registry"
	"github.com/cockroachdb/kawai/internal/schema/translate"
)

func init() {
	schema.RegisterFamilyParser("protobuf", parser{})
}

type parser struct{}

// rootFile is the synthetic filename compiled schema text is presented
// under; protocompile resolves imports (registry refs) by filename.
const rootFile = "kawai/schema.proto"

func (parser) Parse(ctx context.Context, text string, refs []registry.Ref, resolveRef func(context.Context, registry.Ref) (registry.Info, error)) (*schema.Parsed, error) {
	accessor := protocompile.SourceAccessorFromMap(map[string]string{})
	files := map[string]string{rootFile: text}
	for _, ref := range refs {
		info, err := resolveRef(ctx, ref)
		if err != nil {
			return nil, errors.Wrapf(err, "resolving reference %s", ref.Name)
		}
		files[ref.Name+".proto"] = info.Text
	}
	accessor = protocompile.SourceAccessorFromMap(files)

	compiler := protocompile.Compiler{
		Resolver: &protocompile.SourceResolver{Accessor: accessor},
	}
	compiled, err := compiler.Compile(ctx, rootFile)
	if err != nil {
		return nil, errors.Wrap(err, "compiling protobuf schema")
	}
	if len(compiled) == 0 {
		return nil, errors.New("protobuf schema compiled to no files")
	}

	fd := compiled[0]
	msgs := fd.Messages()
	if msgs.Len() == 0 {
		return nil, errors.New("protobuf schema declares no top-level message")
	}
	return &schema.Parsed{Family: schema.FamilyDescriptor, AST: msgs.Get(0)}, nil
}

// ToColumn translates a protobuf message descriptor into a
// relation.Column (C3, spec §4.3).
func ToColumn(md protoreflect.MessageDescriptor) (relation.Column, error) {
	return toColumn(md, translate.NewSeen())
}

func toColumn(md protoreflect.MessageDescriptor, seen *translate.Seen) (relation.Column, error) {
	done, err := seen.Enter(string(md.FullName()))
	if err != nil {
		return relation.Column{}, err
	}
	defer done()

	oneofFields := map[protoreflect.Name]bool{}
	for i := 0; i < md.Oneofs().Len(); i++ {
		oo := md.Oneofs().Get(i)
		if oo.IsSynthetic() {
			continue // synthetic oneofs just model proto3 optional, not a real union.
		}
		for j := 0; j < oo.Fields().Len(); j++ {
			oneofFields[oo.Fields().Get(j).Name()] = true
		}
	}

	var fields []relation.Field
	handledOneof := map[protoreflect.FullName]bool{}

	flds := md.Fields()
	for i := 0; i < flds.Len(); i++ {
		fd := flds.Get(i)

		if oo := fd.ContainingOneof(); oo != nil && !oo.IsSynthetic() {
			if handledOneof[oo.FullName()] {
				continue
			}
			handledOneof[oo.FullName()] = true
			col, err := oneofColumn(oo, seen)
			if err != nil {
				return relation.Column{}, errors.Wrapf(err, "oneof %s", oo.Name())
			}
			fields = append(fields, relation.Field{Name: string(oo.Name()), Column: col})
			continue
		}

		col, err := fieldColumn(fd, seen)
		if err != nil {
			return relation.Column{}, errors.Wrapf(err, "field %s of message %s", fd.Name(), md.FullName())
		}
		fields = append(fields, relation.Field{Name: string(fd.Name()), Column: col})
	}

	st, err := relation.NewStruct(fields)
	if err != nil {
		return relation.Column{}, errors.Wrapf(err, "message %s", md.FullName())
	}
	return st.WithNull(relation.NotNull), nil
}

func oneofColumn(oo protoreflect.OneofDescriptor, seen *translate.Seen) (relation.Column, error) {
	branches := make([]relation.Field, 0, oo.Fields().Len())
	for i := 0; i < oo.Fields().Len(); i++ {
		fd := oo.Fields().Get(i)
		col, err := fieldColumn(fd, seen)
		if err != nil {
			return relation.Column{}, err
		}
		branches = append(branches, relation.Field{Name: string(fd.Name()), Column: col})
	}
	return relation.NewUnion(branches)
}

func fieldColumn(fd protoreflect.FieldDescriptor, seen *translate.Seen) (relation.Column, error) {
	if fd.IsMap() {
		keyCol, err := scalarColumn(fd.MapKey())
		if err != nil {
			return relation.Column{}, err
		}
		valCol, err := fieldColumn(fd.MapValue(), seen)
		if err != nil {
			return relation.Column{}, err
		}
		col, err := relation.NewMap(keyCol, valCol)
		if err != nil {
			return relation.Column{}, err
		}
		return col.WithNull(relation.NotNull), nil
	}

	base, err := scalarOrMessageColumn(fd, seen)
	if err != nil {
		return relation.Column{}, err
	}

	if fd.IsList() {
		return relation.NewList(base).WithNull(relation.NotNull), nil
	}
	if fd.HasOptionalKeyword() || fd.ContainingOneof() != nil {
		return base.WithNull(relation.Null), nil
	}
	return base.WithNull(relation.NotNull), nil
}

func scalarOrMessageColumn(fd protoreflect.FieldDescriptor, seen *translate.Seen) (relation.Column, error) {
	if fd.Kind() == protoreflect.MessageKind || fd.Kind() == protoreflect.GroupKind {
		return toColumn(fd.Message(), seen)
	}
	if fd.Kind() == protoreflect.EnumKind {
		return enumColumn(fd.Enum())
	}
	return scalarColumn(fd)
}

func enumColumn(ed protoreflect.EnumDescriptor) (relation.Column, error) {
	values := ed.Values()
	symbols := make([]string, values.Len())
	for i := 0; i < values.Len(); i++ {
		symbols[i] = string(values.Get(i).Name())
	}
	return relation.NewEnum(string(ed.FullName()), symbols)
}

func scalarColumn(fd protoreflect.FieldDescriptor) (relation.Column, error) {
	switch fd.Kind() {
	case protoreflect.BoolKind:
		return relation.Prim(relation.PrimBool), nil
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		return relation.Prim(relation.PrimI32), nil
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return relation.Prim(relation.PrimI64), nil
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		return relation.Prim(relation.PrimU32), nil
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return relation.Prim(relation.PrimU64), nil
	case protoreflect.FloatKind:
		return relation.Prim(relation.PrimF32), nil
	case protoreflect.DoubleKind:
		return relation.Prim(relation.PrimF64), nil
	case protoreflect.StringKind:
		return relation.Prim(relation.PrimUTF8), nil
	case protoreflect.BytesKind:
		return relation.Prim(relation.PrimBytes), nil
	default:
		return relation.Column{}, &kerrors.BadSchema{Schema: string(fd.FullName()), Reason: "unsupported protobuf field kind"}
	}
}
