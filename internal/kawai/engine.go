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

package kawai

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/cockroachdb/kawai/internal/ingest"
	"github.com/cockroachdb/kawai/internal/kerrors"
	"github.com/cockroachdb/kawai/internal/logsource"
	"github.com/cockroachdb/kawai/internal/util/logging"
	"github.com/cockroachdb/kawai/internal/util/stopper"
)

// syncPollInterval is how often Sync re-checks worker progress while
// waiting for every topic to catch up to its snapshotted high-water
// mark.
const syncPollInterval = 20 * time.Millisecond

// state is C8's lifecycle: Uninitialized -> Configured -> Running ->
// Closed. Init and Start are each valid from exactly one predecessor
// state; Close is valid from any state and is idempotent.
type state int

const (
	stateUninitialized state = iota
	stateConfigured
	stateRunning
	stateClosed
)

func (s state) String() string {
	switch s {
	case stateUninitialized:
		return "uninitialized"
	case stateConfigured:
		return "configured"
	case stateRunning:
		return "running"
	case stateClosed:
		return "closed"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

// Engine is the process-wide singleton that owns every bound topic's
// worker (C8, spec §4.8). Instance returns the single Engine for this
// process; a second Init call is a LifecycleError, matching the
// teacher's convention that a sink's top-level handle is acquired once
// and shared.
type Engine struct {
	mu      sync.Mutex
	state   state
	cfg     Config
	ctx     *stopper.Context
	source  logsource.Source
	workers []*ingest.Worker
	cleanup func()
}

var (
	instanceOnce sync.Once
	instance     *Engine
)

// Instance returns the process-wide Engine, constructing it on first
// call.
func Instance() *Engine {
	instanceOnce.Do(func() { instance = &Engine{} })
	return instance
}

// CloseInstance tears down the process-wide Engine and resets the
// singleton, so a subsequent Instance/Init pair starts clean. Intended
// for tests; production processes simply exit.
func CloseInstance() error {
	e := Instance()
	err := e.Close()
	instanceOnce = sync.Once{}
	return err
}

// Init validates cfg and transitions Uninitialized -> Configured. It
// does not yet start any worker.
func (e *Engine) Init(cfg Config) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != stateUninitialized {
		return &kerrors.LifecycleError{Op: "Init", State: e.state.String(), Expected: stateUninitialized.String()}
	}
	if err := cfg.Preflight(); err != nil {
		return err
	}

	logging.SetJSON(cfg.LogJSON)
	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		logging.SetLevel(lvl)
	}

	e.cfg = cfg
	e.state = stateConfigured
	return nil
}

// Start wires C1-C7 together via buildEngine's provider functions and begins
// draining every bound topic, transitioning Configured -> Running.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != stateConfigured {
		return &kerrors.LifecycleError{Op: "Start", State: e.state.String(), Expected: stateConfigured.String()}
	}

	built, err := buildEngine(ctx, e.cfg)
	if err != nil {
		return errors.Wrap(err, "starting engine")
	}

	e.ctx = built.ctx
	e.source = built.source
	e.workers = built.workers
	e.cleanup = built.cleanup

	for _, w := range e.workers {
		worker := w
		e.ctx.Go(func() error { return worker.Run(e.ctx) })
	}

	e.state = stateRunning
	return nil
}

// Sync is C8's synchronize-to-current-offset barrier (spec §2/§4.7/
// §4.8, §8 scenario 6): it snapshots every bound topic's high-water
// mark as observed right now, then blocks until every worker's
// committed offset has caught up to its snapshot. It is permitted only
// while the engine is Running.
func (e *Engine) Sync(ctx context.Context) error {
	e.mu.Lock()
	if e.state != stateRunning {
		err := &kerrors.LifecycleError{Op: "Sync", State: e.state.String(), Expected: stateRunning.String()}
		e.mu.Unlock()
		return err
	}
	source := e.source
	workers := e.workers
	e.mu.Unlock()

	targets := make(map[*ingest.Worker]int64, len(workers))
	for _, w := range workers {
		mark, err := source.HighWaterMark(ctx, w.Topic())
		if err != nil {
			return errors.Wrapf(err, "observing high-water mark for topic %s", w.Topic())
		}
		targets[w] = mark
	}

	ticker := time.NewTicker(syncPollInterval)
	defer ticker.Stop()

	for {
		caughtUp := true
		for w, mark := range targets {
			if w.Committed() < mark {
				caughtUp = false
				break
			}
		}
		if caughtUp {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Wait blocks until every worker has stopped, returning the first
// error any of them reported.
func (e *Engine) Wait() error {
	e.mu.Lock()
	ctx := e.ctx
	e.mu.Unlock()

	if ctx == nil {
		return nil
	}
	return ctx.Wait()
}

// Close stops every running worker and releases the analytic database
// handle. It is valid from any state and safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == stateClosed {
		return nil
	}
	if e.ctx != nil {
		e.ctx.Stop()
		_ = e.ctx.Wait()
	}
	if e.cleanup != nil {
		e.cleanup()
	}
	e.state = stateClosed
	return nil
}
