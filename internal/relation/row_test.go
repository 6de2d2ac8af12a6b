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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShapeRowFlattensStructValue(t *testing.T) {
	valueCol, err := NewStruct([]Field{
		{Name: "a", Column: Prim(PrimI32).WithNull(NotNull)},
		{Name: "b", Column: Prim(PrimUTF8).WithNull(NotNull)},
	})
	require.NoError(t, err)

	valueValue := Value{Fields: map[string]Value{
		"a": {Leaf: int32(7)},
		"b": {Leaf: "x"},
	}}

	row, err := ShapeRow(Value{}, Prim(PrimUTF8).WithNull(Null), valueValue, valueCol, true)
	require.NoError(t, err)
	require.Equal(t, Row{nil, int32(7), "x"}, row)
}

func TestShapeRowSingleColumnForNonStruct(t *testing.T) {
	valueCol := Prim(PrimI64).WithNull(NotNull)
	row, err := ShapeRow(Value{}, Prim(PrimUTF8).WithNull(Null), Value{Leaf: int64(42)}, valueCol, true)
	require.NoError(t, err)
	require.Equal(t, Row{nil, int64(42)}, row)
}

func TestShapeRowNullValueProducesAllNullColumns(t *testing.T) {
	valueCol, err := NewStruct([]Field{
		{Name: "a", Column: Prim(PrimI32).WithNull(Null)},
		{Name: "b", Column: Prim(PrimUTF8).WithNull(Null)},
	})
	require.NoError(t, err)

	row, err := ShapeRow(Value{}, Prim(PrimUTF8).WithNull(Null), Value{}, valueCol, false)
	require.NoError(t, err)
	require.Equal(t, Row{nil, nil, nil}, row)
}

func TestShapeMissingRequiredFieldIsBadRow(t *testing.T) {
	valueCol, err := NewStruct([]Field{
		{Name: "a", Column: Prim(PrimI32).WithNull(NotNull)},
	})
	require.NoError(t, err)

	_, err = ShapeRow(Value{}, Prim(PrimUTF8), Value{Fields: map[string]Value{}}, valueCol, true)
	require.Error(t, err)
}

func TestShapeUnionNullBranch(t *testing.T) {
	u, err := NewUnion([]Field{
		{Name: NullTag, Column: Column{Kind: KindPrim}},
		{Name: "string", Column: Prim(PrimUTF8).WithNull(Null)},
	})
	require.NoError(t, err)

	shaped, err := Shape(Value{Branch: NullTag}, u)
	require.NoError(t, err)
	require.Equal(t, [2]any{NullTag, nil}, shaped)
}

func TestShapeUnionInhabitedBranch(t *testing.T) {
	u, err := NewUnion([]Field{
		{Name: NullTag, Column: Column{Kind: KindPrim}},
		{Name: "string", Column: Prim(PrimUTF8).WithNull(Null)},
	})
	require.NoError(t, err)

	inner := Value{Leaf: "hi"}
	shaped, err := Shape(Value{Branch: "string", Inner: &inner}, u)
	require.NoError(t, err)
	require.Equal(t, [2]any{"string", "hi"}, shaped)
}

func TestShapeEmptyListIsEmptyNotNil(t *testing.T) {
	l := NewList(Prim(PrimI32).WithNull(NotNull))
	shaped, err := Shape(Value{Items: []Value{}}, l)
	require.NoError(t, err)
	out, ok := shaped.([]any)
	require.True(t, ok)
	require.NotNil(t, out)
	require.Len(t, out, 0)
}
