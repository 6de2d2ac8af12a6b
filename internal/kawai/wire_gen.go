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

// Hand-written in the style of Wire-generated code, following the
// layered-cleanup pattern of the teacher's internal/source/cdc/wire_gen.go.

package kawai

import (
	"context"

	"github.com/pkg/errors"

	"github.com/cockroachdb/kawai/internal/analytic"
	"github.com/cockroachdb/kawai/internal/ingest"
	"github.com/cockroachdb/kawai/internal/logsource"
	"github.com/cockroachdb/kawai/internal/logsource/kafka"
	"github.com/cockroachdb/kawai/internal/logsource/logsourcetest"
	"github.com/cockroachdb/kawai/internal/schema"
	"github.com/cockroachdb/kawai/internal/schema/registry"
	"github.com/cockroachdb/kawai/internal/schema/registry/registrytest"
	"github.com/cockroachdb/kawai/internal/util/stopper"
)

// builtEngine is what buildEngine assembles: the stopper context every
// worker runs under, the workers themselves, and a cleanup closure
// that releases whatever was acquired before a later stage failed, or
// that Engine.Close calls on shutdown.
type builtEngine struct {
	ctx     *stopper.Context
	source  logsource.Source
	workers []*ingest.Worker
	cleanup func()
}

// buildEngine wires C1-C7 together: a registry Client, a schema
// Resolver, the analytic DB, a logsource.Source, and one ingest.Worker
// per bound topic (spec §4.8 step 2).
func buildEngine(parent context.Context, cfg Config) (*builtEngine, error) {
	stopperCtx := stopper.WithContext(parent)

	client, err := provideRegistryClient(cfg)
	if err != nil {
		stopperCtx.Stop()
		return nil, errors.Wrap(err, "provideRegistryClient")
	}

	resolver := schema.NewResolver(client)

	db, err := analytic.Open(stopperCtx, cfg.DuckDBPath)
	if err != nil {
		stopperCtx.Stop()
		return nil, errors.Wrap(err, "analytic.Open")
	}
	cleanup := func() { stopperCtx.Stop() }

	source, err := provideSource(cfg)
	if err != nil {
		cleanup()
		return nil, errors.Wrap(err, "provideSource")
	}
	source = ingest.WithFaultInjection(source, cfg.ChaosProbability)
	cleanup2 := func() {
		_ = source.Close()
		cleanup()
	}

	workers, err := provideWorkers(stopperCtx, cfg, resolver, db, source)
	if err != nil {
		cleanup2()
		return nil, errors.Wrap(err, "provideWorkers")
	}

	return &builtEngine{
		ctx:     stopperCtx,
		source:  source,
		workers: workers,
		cleanup: cleanup2,
	}, nil
}

// provideRegistryClient selects the in-process registrytest fake for
// "mock://" and the real HTTP client otherwise, mirroring the way the
// teacher's stdpool providers branch on a connection string's scheme.
func provideRegistryClient(cfg Config) (registry.Client, error) {
	if cfg.SchemaRegistryURL == "mock://" {
		return registrytest.New(), nil
	}
	return registry.New(cfg.SchemaRegistryURL, cfg.SchemaRegistryTimeout)
}

// provideSource selects the real Kafka source when brokers are
// configured, and an in-process mock otherwise so that a topics file
// can be exercised without a live broker (development and tests).
func provideSource(cfg Config) (logsource.Source, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return logsourcetest.New(), nil
	}
	return kafka.Open(kafka.Config{
		Brokers:       cfg.KafkaBrokers,
		ConsumerGroup: cfg.KafkaConsumerGroup,
		ClientID:      cfg.KafkaClientID,
	})
}

// provideWorkers parses every configured topic binding's directives
// and constructs one ingest.Worker per topic, failing closed at the
// first bad binding rather than starting a partially-configured
// engine.
func provideWorkers(ctx *stopper.Context, cfg Config, resolver *schema.Resolver, db *analytic.DB, source logsource.Source) ([]*ingest.Worker, error) {
	workers := make([]*ingest.Worker, 0, len(cfg.Topics))
	for _, binding := range cfg.Topics {
		keyDirective, err := directiveOrDefault(binding.Key, schema.DefaultKeyDirective)
		if err != nil {
			return nil, errors.Wrapf(err, "topic %s: key directive", binding.Topic)
		}
		valueDirective, err := directiveOrDefault(binding.Value, schema.DefaultValueDirective)
		if err != nil {
			return nil, errors.Wrapf(err, "topic %s: value directive", binding.Topic)
		}

		worker, err := ingest.NewWorker(ctx, ingest.WorkerConfig{
			Topic:          binding.Topic,
			KeyDirective:   keyDirective,
			ValueDirective: valueDirective,
		}, source, resolver, db)
		if err != nil {
			return nil, errors.Wrapf(err, "topic %s", binding.Topic)
		}
		workers = append(workers, worker)
	}
	return workers, nil
}

func directiveOrDefault(s string, def schema.Directive) (schema.Directive, error) {
	if s == "" {
		return def, nil
	}
	return schema.ParseDirective(s)
}
