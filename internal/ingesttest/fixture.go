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

// Package ingesttest provides a complete set of in-process
// collaborators for exercising C1-C7 end to end without a live Kafka
// broker or schema registry, adapted from the teacher's
// internal/sinktest/all.Fixture.
package ingesttest

import (
	"context"

	"github.com/pkg/errors"

	"github.com/cockroachdb/kawai/internal/analytic"
	"github.com/cockroachdb/kawai/internal/ingest"
	"github.com/cockroachdb/kawai/internal/logsource"
	"github.com/cockroachdb/kawai/internal/logsource/logsourcetest"
	"github.com/cockroachdb/kawai/internal/schema"
	"github.com/cockroachdb/kawai/internal/schema/registry"
	"github.com/cockroachdb/kawai/internal/schema/registry/registrytest"
	"github.com/cockroachdb/kawai/internal/util/stopper"
)

// Fixture wires an in-memory DuckDB, a mock schema registry, and a
// mock log source together behind a Resolver, so a test can produce
// records and then query the table kawai materialized.
type Fixture struct {
	Context  *stopper.Context
	DB       *analytic.DB
	Registry *registrytest.Registry
	Source   *logsourcetest.Source
	Resolver *schema.Resolver
}

// NewFixture constructs a Fixture backed by an in-memory DuckDB database.
func NewFixture(ctx context.Context) (*Fixture, error) {
	stopperCtx := stopper.WithContext(ctx)

	db, err := analytic.Open(stopperCtx, ":memory:")
	if err != nil {
		stopperCtx.Stop()
		return nil, errors.Wrap(err, "opening analytic database")
	}

	reg := registrytest.New()
	src := logsourcetest.New()

	return &Fixture{
		Context:  stopperCtx,
		DB:       db,
		Registry: reg,
		Source:   src,
		Resolver: schema.NewResolver(reg),
	}, nil
}

// RegistryClient exposes Registry as the registry.Client interface, for
// callers that build a Resolver of their own against a different
// reachability setting.
func (f *Fixture) RegistryClient() registry.Client {
	return f.Registry
}

// StartWorker resolves cfg's bindings and starts draining its topic in
// the background, returning the constructed Worker so the caller can
// inspect the table it created.
func (f *Fixture) StartWorker(cfg ingest.WorkerConfig) (*ingest.Worker, error) {
	worker, err := ingest.NewWorker(f.Context, cfg, f.Source, f.Resolver, f.DB)
	if err != nil {
		return nil, err
	}
	f.Context.Go(func() error { return worker.Run(f.Context) })
	return worker, nil
}

// Produce enqueues one record on the mock log source for topic.
func (f *Fixture) Produce(rec logsource.Record) {
	f.Source.Produce(rec)
}

// Close stops every worker started against this fixture and releases
// the analytic database.
func (f *Fixture) Close() error {
	return f.Context.Close()
}
