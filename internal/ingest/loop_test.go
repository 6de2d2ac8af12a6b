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

package ingest_test

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cockroachdb/kawai/internal/analytic"
	"github.com/cockroachdb/kawai/internal/ingest"
	"github.com/cockroachdb/kawai/internal/logsource"
	"github.com/cockroachdb/kawai/internal/logsource/logsourcetest"
	"github.com/cockroachdb/kawai/internal/schema"
	"github.com/cockroachdb/kawai/internal/util/stopper"
)

func TestWorkerIngestsLeafSerdeRecord(t *testing.T) {
	ctx := stopper.WithContext(context.Background())
	defer ctx.Stop()

	db, err := analytic.Open(ctx, ":memory:")
	require.NoError(t, err)

	src := logsourcetest.New()
	resolver := schema.NewResolver(nil)

	cfg := ingest.WorkerConfig{
		Topic:          "orders",
		KeyDirective:   schema.Directive{Kind: schema.DirectiveLeaf, Leaf: schema.TagLong},
		ValueDirective: schema.Directive{Kind: schema.DirectiveLeaf, Leaf: schema.TagString},
	}

	worker, err := ingest.NewWorker(ctx, cfg, src, resolver, db)
	require.NoError(t, err)

	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, 7)
	src.Produce(logsource.Record{Topic: "orders", Partition: 0, Offset: 1, Key: key, Value: []byte("hello")})

	runErr := make(chan error, 1)
	go func() { runErr <- worker.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for src.Committed("orders") == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for commit")
		case <-time.After(10 * time.Millisecond):
		}
	}
	require.Equal(t, int64(1), src.Committed("orders"))

	ctx.Stop()
	require.NoError(t, src.Close())
}
