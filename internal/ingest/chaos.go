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
	"math/rand"

	"github.com/pkg/errors"

	"github.com/cockroachdb/kawai/internal/logsource"
)

// ErrChaos is the error injected by WithFaultInjection.
var ErrChaos = errors.New("chaos")

// WithFaultInjection wraps a logsource.Source so that Read and
// CommitUpto randomly fail, exercising C7's handling of source errors
// (the worker's Run returns the injected error; nothing retries it)
// without a live, flaky broker. Adapted from
// the teacher's WithChaos decorator, narrowed to the one collaborator
// kawai's loop actually depends on. delegate is returned unwrapped if
// prob <= 0.
func WithFaultInjection(delegate logsource.Source, prob float32) logsource.Source {
	if prob <= 0 {
		return delegate
	}
	return &chaosSource{delegate: delegate, prob: prob}
}

type chaosSource struct {
	delegate logsource.Source
	prob     float32
}

var _ logsource.Source = (*chaosSource)(nil)

func (s *chaosSource) Subscribe(ctx context.Context, topics []string) error {
	return s.delegate.Subscribe(ctx, topics)
}

func (s *chaosSource) Read(ctx context.Context) (logsource.Record, error) {
	if rand.Float32() < s.prob {
		return logsource.Record{}, doChaos("Read")
	}
	return s.delegate.Read(ctx)
}

func (s *chaosSource) CommitUpto(ctx context.Context, topic string, partition int32, offset int64) error {
	if rand.Float32() < s.prob {
		return doChaos("CommitUpto")
	}
	return s.delegate.CommitUpto(ctx, topic, partition, offset)
}

// HighWaterMark passes straight through: injecting chaos here would
// make Engine.Sync's barrier unreliable by construction, which is not
// the failure mode this decorator exists to exercise.
func (s *chaosSource) HighWaterMark(ctx context.Context, topic string) (int64, error) {
	return s.delegate.HighWaterMark(ctx, topic)
}

func (s *chaosSource) Close() error {
	return s.delegate.Close()
}

func doChaos(msg string) error {
	return errors.WithMessage(ErrChaos, msg)
}
