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

// Package ingest implements C6 (table manager) and C7 (the per-topic
// ingest loop) of spec §4.6/§4.7.
package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/cockroachdb/kawai/internal/analytic"
	"github.com/cockroachdb/kawai/internal/kerrors"
	"github.com/cockroachdb/kawai/internal/relation"
	"github.com/cockroachdb/kawai/internal/util/ident"
)

// Table owns the DDL and prepared insert for one topic's target table
// (C6, spec §4.6). The key column occupies the first positional slot;
// the value column's flattened fields (spec §4.1 invariant 3) occupy
// the rest — this computed arity is the single source of truth for
// insert-parameter count (Open Question (a), recorded in DESIGN.md).
type Table struct {
	Name string

	keyColumn   relation.Column
	valueColumn relation.Column
	valueFields []relation.Field

	insert *sql.Stmt
}

// EnsureTable creates the target table if it does not exist and
// prepares its insert statement.
func EnsureTable(ctx context.Context, db *analytic.DB, topic string, keyColumn, valueColumn relation.Column) (*Table, error) {
	tbl, err := ident.NewTable(topic)
	if err != nil {
		return nil, errors.Wrap(err, "deriving table name from topic")
	}

	valueFields := valueColumn.FlattenTopLevel()

	ddl, err := renderTableDDL(keyColumn, valueFields)
	if err != nil {
		return nil, err
	}
	if err := db.EnsureTable(ctx, tbl.String(), ddl); err != nil {
		return nil, &kerrors.SinkError{Table: tbl.String(), Cause: err}
	}

	insert, err := db.PrepareContext(ctx, renderInsert(tbl.String(), len(valueFields)+1))
	if err != nil {
		return nil, &kerrors.SinkError{Table: tbl.String(), Cause: errors.Wrap(err, "preparing insert")}
	}

	return &Table{
		Name:        tbl.String(),
		keyColumn:   keyColumn,
		valueColumn: valueColumn,
		valueFields: valueFields,
		insert:      insert,
	}, nil
}

func renderTableDDL(keyColumn relation.Column, valueFields []relation.Field) (string, error) {
	// Keys may be absent (spec: an empty key decodes to a null leaf),
	// so the key column must accept NULL rather than forcing NotNull.
	keyDDL, err := keyColumn.WithNull(relation.Null).RenderDDL()
	if err != nil {
		return "", errors.Wrap(err, "rendering key column")
	}

	cols := make([]string, 0, len(valueFields)+1)
	cols = append(cols, "_key "+keyDDL)
	for _, f := range valueFields {
		ddl, err := f.Column.RenderDDL()
		if err != nil {
			return "", errors.Wrapf(err, "rendering value field %s", f.Name)
		}
		cols = append(cols, quoteColumn(f.Name)+" "+ddl)
	}
	return strings.Join(cols, ", "), nil
}

func quoteColumn(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func renderInsert(table string, arity int) string {
	placeholders := make([]string, arity)
	for i := range placeholders {
		placeholders[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s VALUES (%s)", table, strings.Join(placeholders, ", "))
}

// Insert applies one already-shaped row (spec §4.5's output) to the
// table (C6, last step of C7).
func (t *Table) Insert(ctx context.Context, row relation.Row) error {
	args := make([]any, len(row))
	copy(args, row)
	if _, err := t.insert.ExecContext(ctx, args...); err != nil {
		return &kerrors.SinkError{Table: t.Name, Cause: err}
	}
	return nil
}

// Close releases the prepared statement.
func (t *Table) Close() error {
	if t.insert == nil {
		return nil
	}
	return t.insert.Close()
}
