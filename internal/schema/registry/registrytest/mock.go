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

// Package registrytest is the in-process fake registry selected by the
// "mock://" URL sentinel (spec §6). Its state is process-local and is
// dropped on Reset; the engine does not call Reset, it builds a fresh
// instance each time it starts.
package registrytest

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/cockroachdb/kawai/internal/schema/registry"
)

// Registry is an in-memory schema registry fake for tests.
type Registry struct {
	mu       sync.Mutex
	bySubj   map[string]registry.Info
	byID     map[int32]registry.Info
	nextID   int32
	reachable bool
}

// New returns an empty, reachable mock registry.
func New() *Registry {
	return &Registry{
		bySubj:    make(map[string]registry.Info),
		byID:      make(map[int32]registry.Info),
		nextID:    1,
		reachable: true,
	}
}

// Register adds or replaces the latest schema for a subject and
// returns the id it was assigned.
func (r *Registry) Register(subject, schemaType, text string, refs []registry.Ref) int32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	info := registry.Info{ID: id, SchemaType: schemaType, Text: text, Refs: refs}
	r.bySubj[subject] = info
	r.byID[id] = info
	return id
}

// SetReachable toggles whether the mock simulates a registry outage,
// used to exercise the binary-fallback path (spec §4.2, scenario 3).
func (r *Registry) SetReachable(reachable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reachable = reachable
}

// Reset drops all state, as required when the mock scope is closed
// with the rest of the engine.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bySubj = make(map[string]registry.Info)
	r.byID = make(map[int32]registry.Info)
	r.nextID = 1
}

var errUnreachable = errors.New("mock registry: simulated outage")

// LatestForSubject implements registry.Client.
func (r *Registry) LatestForSubject(_ context.Context, subject string) (registry.Info, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.reachable {
		return registry.Info{}, errUnreachable
	}
	info, ok := r.bySubj[subject]
	if !ok {
		return registry.Info{}, errors.Errorf("mock registry: no schema registered for subject %s", subject)
	}
	return info, nil
}

// ByID implements registry.Client.
func (r *Registry) ByID(_ context.Context, id int32) (registry.Info, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.reachable {
		return registry.Info{}, errUnreachable
	}
	info, ok := r.byID[id]
	if !ok {
		return registry.Info{}, errors.Errorf("mock registry: no schema registered with id %d", id)
	}
	return info, nil
}

var _ registry.Client = (*Registry)(nil)
