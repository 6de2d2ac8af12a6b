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

package schema_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cockroachdb/kawai/internal/schema"
	"github.com/cockroachdb/kawai/internal/schema/registry"
	"github.com/cockroachdb/kawai/internal/schema/registry/registrytest"
)

type countingParser struct {
	calls atomic.Int32
}

func (p *countingParser) Parse(_ context.Context, text string, _ []registry.Ref, _ func(context.Context, registry.Ref) (registry.Info, error)) (*schema.Parsed, error) {
	p.calls.Add(1)
	return &schema.Parsed{Family: schema.FamilyRecord, AST: text}, nil
}

func TestResolveLeafDirectiveNeedsNoRegistry(t *testing.T) {
	r := schema.NewResolver(nil)
	got := r.Resolve(context.Background(), "orders", "key", schema.Directive{Kind: schema.DirectiveLeaf, Leaf: schema.TagLong})
	assert.Equal(t, schema.TagLong, got.Tag)
}

func TestResolveLatestFallsBackToBinaryWithoutRegistry(t *testing.T) {
	r := schema.NewResolver(nil)
	got := r.Resolve(context.Background(), "orders", "value", schema.Directive{Kind: schema.DirectiveLatest})
	assert.Equal(t, schema.TagBinary, got.Tag)
}

func TestResolveLatestFallsBackOnRegistryOutage(t *testing.T) {
	mock := registrytest.New()
	mock.SetReachable(false)
	r := schema.NewResolver(mock)
	got := r.Resolve(context.Background(), "orders", "value", schema.Directive{Kind: schema.DirectiveLatest})
	assert.Equal(t, schema.TagBinary, got.Tag)
}

func TestResolveLatestParsesRegisteredSchema(t *testing.T) {
	mock := registrytest.New()
	mock.Register("orders-value", "avro", `{"type":"record","name":"Order","fields":[]}`, nil)

	parser := &countingParser{}
	schema.RegisterFamilyParser("avro", parser)

	r := schema.NewResolver(mock)
	got := r.Resolve(context.Background(), "orders", "value", schema.Directive{Kind: schema.DirectiveLatest})
	require.Equal(t, schema.TagParsed, got.Tag)
	require.NotNil(t, got.Parsed)
	assert.Equal(t, schema.FamilyRecord, got.Parsed.Family)
}

func TestResolveIsSingleFlightPerTopicRole(t *testing.T) {
	mock := registrytest.New()
	mock.Register("orders-value", "avro", `{"type":"record","name":"Order","fields":[]}`, nil)

	parser := &countingParser{}
	schema.RegisterFamilyParser("avro", parser)

	r := schema.NewResolver(mock)

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			r.Resolve(context.Background(), "orders", "value", schema.Directive{Kind: schema.DirectiveLatest})
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, parser.calls.Load(), int32(1))
}

func TestInvalidateForcesReResolution(t *testing.T) {
	mock := registrytest.New()
	mock.Register("orders-value", "avro", `{"type":"record","name":"Order","fields":[]}`, nil)
	parser := &countingParser{}
	schema.RegisterFamilyParser("avro", parser)

	r := schema.NewResolver(mock)
	r.Resolve(context.Background(), "orders", "value", schema.Directive{Kind: schema.DirectiveLatest})
	r.Invalidate("orders", "value")
	r.Resolve(context.Background(), "orders", "value", schema.Directive{Kind: schema.DirectiveLatest})

	assert.Equal(t, int32(2), parser.calls.Load())
}
