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
	"context"
	"sync/atomic"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/cockroachdb/kawai/internal/analytic"
	"github.com/cockroachdb/kawai/internal/decode"
	"github.com/cockroachdb/kawai/internal/kerrors"
	"github.com/cockroachdb/kawai/internal/logsource"
	"github.com/cockroachdb/kawai/internal/relation"
	"github.com/cockroachdb/kawai/internal/schema"
	"github.com/cockroachdb/kawai/internal/util/logging"
	"github.com/cockroachdb/kawai/internal/util/metrics"
	"github.com/cockroachdb/kawai/internal/util/stopper"
)

// WorkerConfig is the per-topic binding configuration the engine (C8)
// assembles from spec §6's topic.bindings before starting a worker.
type WorkerConfig struct {
	Topic          string
	KeyDirective   schema.Directive
	ValueDirective schema.Directive
}

// Worker drains one topic end to end (C7, spec §4.7): resolve key and
// value schema once, translate to columns, create the target table,
// then loop reading, decoding, shaping and inserting records, adapted
// from the teacher's Dialect/Events drain loop down to a single
// Source->Sink worker since kawai has no cross-table transaction
// boundary to preserve (spec never asks for atomic multi-topic
// commits; each topic's target table is independent).
type Worker struct {
	cfg      WorkerConfig
	source   logsource.Source
	resolver *schema.Resolver
	table    *Table
	logger   *log.Entry

	// committed is the exclusive end of what this worker has durably
	// applied (one past the last committed offset, matching
	// HighWaterMark's convention), so Engine.Sync (C8, spec §4.7's
	// sync() barrier) can observe catch-up progress without calling
	// back into the source.
	committed atomic.Int64
}

// Topic returns the topic this worker drains, for Engine.Sync to pair
// with a source.HighWaterMark lookup.
func (w *Worker) Topic() string {
	return w.cfg.Topic
}

// Committed returns the exclusive end of what this worker has durably
// applied so far (0 if nothing has been committed yet).
func (w *Worker) Committed() int64 {
	return w.committed.Load()
}

// NewWorker resolves cfg's key and value bindings, translates them to
// columns, and ensures the target table exists (spec §4.7 steps 1-2).
func NewWorker(ctx context.Context, cfg WorkerConfig, source logsource.Source, resolver *schema.Resolver, db *analytic.DB) (*Worker, error) {
	keyResolved := resolver.Resolve(ctx, cfg.Topic, "key", cfg.KeyDirective)
	valueResolved := resolver.Resolve(ctx, cfg.Topic, "value", cfg.ValueDirective)

	keyColumn, err := columnFor(keyResolved)
	if err != nil {
		return nil, wrapColumnErr("key", err)
	}
	valueColumn, err := columnFor(valueResolved)
	if err != nil {
		return nil, wrapColumnErr("value", err)
	}

	table, err := EnsureTable(ctx, db, cfg.Topic, keyColumn, valueColumn)
	if err != nil {
		return nil, err
	}

	return &Worker{
		cfg:      cfg,
		source:   source,
		resolver: resolver,
		table:    table,
		logger:   logging.Topic(cfg.Topic, "ingest"),
	}, nil
}

// Run drains cfg.Topic until ctx stops or the sink rejects an insert
// (spec §4.7 step 4/5: a SinkError is worker-fatal and the topic is
// marked degraded; a DecodeError or BadRow is per-record and the
// record is skipped after being logged and counted).
func (w *Worker) Run(ctx *stopper.Context) error {
	if err := w.source.Subscribe(ctx, []string{w.cfg.Topic}); err != nil {
		return errors.Wrap(err, "subscribing to topic")
	}

	for {
		select {
		case <-ctx.Stopping():
			return w.table.Close()
		default:
		}

		rec, err := w.source.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return w.table.Close()
			}
			return errors.Wrap(err, "reading from log source")
		}

		if err := w.handle(ctx, rec); err != nil {
			var sinkErr *kerrors.SinkError
			if errors.As(err, &sinkErr) {
				metrics.TopicDegraded.WithLabelValues(w.cfg.Topic).Set(1)
				return err
			}
			w.logger.WithError(err).Warn("skipping record")
			continue
		}

		if err := w.source.CommitUpto(ctx, rec.Topic, rec.Partition, rec.Offset); err != nil {
			return errors.Wrap(err, "committing offset")
		}
		w.committed.Store(rec.Offset + 1)
		metrics.RecordsIngested.WithLabelValues(w.cfg.Topic).Inc()
	}
}

func (w *Worker) handle(ctx context.Context, rec logsource.Record) error {
	keyResolved := w.resolver.Resolve(ctx, w.cfg.Topic, "key", w.cfg.KeyDirective)
	valueResolved := w.resolver.Resolve(ctx, w.cfg.Topic, "value", w.cfg.ValueDirective)

	var keyValue relation.Value
	var err error
	if len(rec.Key) == 0 {
		// A null or empty key decodes to null without touching the
		// magic byte, even when the key is schema-bound.
		keyValue = relation.Value{}
	} else {
		keyValue, err = decode.Decode(ctx, rec.Key, keyResolved, w.resolver.FetchByID)
		if err != nil {
			metrics.DecodeErrors.WithLabelValues(w.cfg.Topic).Inc()
			return err
		}
	}

	var valueValue relation.Value
	if !rec.Tombstone {
		valueValue, err = decode.Decode(ctx, rec.Value, valueResolved, w.resolver.FetchByID)
		if err != nil {
			metrics.DecodeErrors.WithLabelValues(w.cfg.Topic).Inc()
			return err
		}
	}

	keyColumn, err := columnFor(keyResolved)
	if err != nil {
		return err
	}
	valueColumn, err := columnFor(valueResolved)
	if err != nil {
		return err
	}

	row, err := relation.ShapeRow(keyValue, keyColumn, valueValue, valueColumn, !rec.Tombstone)
	if err != nil {
		metrics.RowErrors.WithLabelValues(w.cfg.Topic).Inc()
		return err
	}

	if err := w.table.Insert(ctx, row); err != nil {
		metrics.InsertErrors.WithLabelValues(w.cfg.Topic).Inc()
		return err
	}
	return nil
}
