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

func TestFlattenTopLevelStruct(t *testing.T) {
	s, err := NewStruct([]Field{
		{Name: "a", Column: Prim(PrimI32).WithNull(NotNull)},
		{Name: "b", Column: Prim(PrimUTF8).WithNull(Null)},
	})
	require.NoError(t, err)

	got := s.FlattenTopLevel()
	require.Equal(t, s.Fields, got)
}

func TestFlattenTopLevelNonStruct(t *testing.T) {
	c := Prim(PrimI64).WithNull(NotNull)
	got := c.FlattenTopLevel()
	require.Len(t, got, 1)
	require.Equal(t, "value", got[0].Name)
	require.Equal(t, c, got[0].Column)
}

func TestDecimalBounds(t *testing.T) {
	_, err := NewDecimal(38, 0)
	require.NoError(t, err, "Decimal(38, 0) is accepted per the boundary table")

	_, err = NewDecimal(0, 1)
	require.Error(t, err, "scale can never exceed precision")

	d, err := NewDecimal(10, 2)
	require.NoError(t, err)
	ddl, err := d.WithNull(NotNull).RenderDDL()
	require.NoError(t, err)
	require.Equal(t, "DECIMAL(10,2) NOT NULL", ddl)
}

func TestDecimalMaxPrecisionAccepted(t *testing.T) {
	_, err := NewDecimal(38, 38)
	require.NoError(t, err)
}

func TestListRenderDDL(t *testing.T) {
	l := NewList(Prim(PrimI32).WithNull(NotNull)).WithNull(NotNull)
	ddl, err := l.RenderDDL()
	require.NoError(t, err)
	require.Equal(t, "INTEGER[] NOT NULL", ddl)
}

func TestMapRequiresStringifiableKey(t *testing.T) {
	bad := NewList(Prim(PrimI32))
	_, err := NewMap(bad, Prim(PrimUTF8))
	require.Error(t, err)

	_, err = NewMap(Prim(PrimUTF8), Prim(PrimI32))
	require.NoError(t, err)
}

func TestUnionKeepsBranchNullability(t *testing.T) {
	// NewUnion keeps each branch column as given; collapsing an
	// optional union into its nullable sibling is
	// translate.RelaxOptional's job, not NewUnion's.
	sibling := Prim(PrimUTF8).WithNull(Null)
	u, err := NewUnion([]Field{
		{Name: NullTag, Column: Column{Kind: KindPrim, Prim: PrimInvalid}},
		{Name: "string", Column: sibling},
	})
	require.NoError(t, err)
	require.Len(t, u.Fields, 2)
	require.Equal(t, Null, u.Fields[1].Column.Null)
}

func TestStructRejectsDuplicateAndEmptyNames(t *testing.T) {
	_, err := NewStruct([]Field{
		{Name: "a", Column: Prim(PrimI32)},
		{Name: "a", Column: Prim(PrimUTF8)},
	})
	require.Error(t, err)

	_, err = NewStruct(nil)
	require.Error(t, err, "empty struct is rejected")
}

func TestEnumRejectsDuplicateSymbols(t *testing.T) {
	_, err := NewEnum("suit", []string{"clubs", "clubs"})
	require.Error(t, err)
}
