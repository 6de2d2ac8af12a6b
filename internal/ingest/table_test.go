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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cockroachdb/kawai/internal/relation"
)

func TestRenderTableDDLComputesArityFromFlattenTopLevel(t *testing.T) {
	keyColumn := relation.Prim(relation.PrimI64)

	valueStruct, err := relation.NewStruct([]relation.Field{
		{Name: "id", Column: relation.Prim(relation.PrimI32).WithNull(relation.NotNull)},
		{Name: "name", Column: relation.Prim(relation.PrimUTF8).WithNull(relation.Null)},
	})
	require.NoError(t, err)

	ddl, err := renderTableDDL(keyColumn, valueStruct.FlattenTopLevel())
	require.NoError(t, err)

	assert.Contains(t, ddl, `_key BIGINT, "id"`)
	assert.Contains(t, ddl, `"id" INTEGER NOT NULL`)
	assert.Contains(t, ddl, `"name" VARCHAR`)
}

func TestRenderInsertArityMatchesColumnCount(t *testing.T) {
	stmt := renderInsert(`"orders"`, 3)
	assert.Equal(t, `INSERT INTO "orders" VALUES (?, ?, ?)`, stmt)
}

func TestQuoteColumnEscapesEmbeddedQuotes(t *testing.T) {
	assert.Equal(t, `"a""b"`, quoteColumn(`a"b`))
}
