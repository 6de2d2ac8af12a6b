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

// Package logsourcetest is an in-memory logsource.Source fake for
// tests, mirroring the in-process fixture convention of the teacher's
// sinktest packages.
package logsourcetest

import (
	"context"
	"sync"

	"github.com/cockroachdb/kawai/internal/logsource"
)

// Source is an in-memory logsource.Source. Tests call Produce to
// enqueue records and Read/CommitUpto exactly as the real
// implementations would be called by internal/ingest.
type Source struct {
	mu        sync.Mutex
	cond      *sync.Cond
	queue     []logsource.Record
	closed    bool
	committed map[string]int64 // topic -> highest committed offset
	highWater map[string]int64 // topic -> highest offset ever produced
}

// New returns an empty mock source.
func New() *Source {
	s := &Source{
		committed: make(map[string]int64),
		highWater: make(map[string]int64),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Produce enqueues a record for a future Read call.
func (s *Source) Produce(rec logsource.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, rec)
	// highWater is the exclusive end offset (one past the last
	// produced record), matching Kafka's own log-end-offset
	// convention, so a topic with nothing produced yet reports 0.
	if end := rec.Offset + 1; end > s.highWater[rec.Topic] {
		s.highWater[rec.Topic] = end
	}
	s.cond.Broadcast()
}

// Subscribe is a no-op: the mock has no notion of topic filtering,
// since tests control exactly which records are Produce'd.
func (s *Source) Subscribe(_ context.Context, _ []string) error {
	return nil
}

// Read implements logsource.Source, blocking until a record is
// produced, the source is closed, or ctx is done.
func (s *Source) Read(ctx context.Context) (logsource.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) == 0 && !s.closed {
		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				s.cond.Broadcast()
			case <-done:
			}
		}()
		s.cond.Wait()
		close(done)
		if ctx.Err() != nil {
			return logsource.Record{}, ctx.Err()
		}
	}
	if len(s.queue) == 0 {
		return logsource.Record{}, context.Canceled
	}
	rec := s.queue[0]
	s.queue = s.queue[1:]
	return rec, nil
}

// CommitUpto implements logsource.Source.
func (s *Source) CommitUpto(_ context.Context, topic string, _ int32, offset int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if offset > s.committed[topic] {
		s.committed[topic] = offset
	}
	return nil
}

// Committed returns the highest offset committed for topic, for test
// assertions.
func (s *Source) Committed(topic string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committed[topic]
}

// HighWaterMark implements logsource.Source: the exclusive end offset
// (one past the highest offset any record has been Produce'd with) for
// topic, 0 if nothing has been produced yet.
func (s *Source) HighWaterMark(_ context.Context, topic string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.highWater[topic], nil
}

// Close implements logsource.Source.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cond.Broadcast()
	return nil
}

var _ logsource.Source = (*Source)(nil)
