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

// Package analytic opens and owns kawai's embedded analytic engine
// (spec §1/§6): a single DuckDB connection reached through
// database/sql, following the teacher's stdpool convention of opening
// one pool, registering a stopper-scoped closer, and handing back a
// thin wrapper rather than a bare *sql.DB.
package analytic

import (
	"context"
	"database/sql"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/cockroachdb/kawai/internal/util/stopper"
)

// DB is kawai's handle onto the embedded DuckDB instance.
type DB struct {
	*sql.DB

	// Path is the file the database was opened from, or ":memory:".
	Path string
}

// Open opens path (a file path, or ":memory:" for an ephemeral
// in-process database) and registers a closer against ctx, mirroring
// stdpool.OpenMySQLAsTarget's open/ping/register-closer shape.
func Open(ctx *stopper.Context, path string) (*DB, error) {
	if path == "" {
		path = ":memory:"
	}

	sqlDB, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening duckdb")
	}

	// DuckDB's single-writer model means a pool wider than one
	// connection just serializes behind file locks anyway; pin it so
	// errors surface as contention, not silent queuing.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrap(err, "pinging duckdb")
	}

	db := &DB{DB: sqlDB, Path: path}

	ctx.Go(func() error {
		<-ctx.Stopping()
		if err := db.Close(); err != nil {
			log.WithError(err).Warn("could not close duckdb connection")
		}
		return nil
	})

	return db, nil
}

// EnsureTable creates table if it does not already exist, using ddl as
// the full column-list portion of the CREATE TABLE statement (spec
// §4.6).
func (db *DB) EnsureTable(ctx context.Context, table, ddl string) error {
	stmt := "CREATE TABLE IF NOT EXISTS " + table + " (" + ddl + ")"
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return errors.Wrapf(err, "creating table %s", table)
	}
	return nil
}
