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

// Package logsource is the narrow collaborator interface spec §6
// describes: a source of ordered, offset-addressable records from one
// or more log topics, with explicit offset commit. internal/ingest
// depends only on Source; internal/logsource/kafka and
// internal/logsource/logsourcetest are its two implementations.
package logsource

import "context"

// Record is a single log record read from a topic (spec §6): raw key
// and value bytes (nil Value with Tombstone true models a
// compacted-topic delete, spec §4.5/§8), plus enough positional
// information to commit past it.
type Record struct {
	Topic     string
	Partition int32
	Offset    int64

	Key       []byte
	Value     []byte
	Tombstone bool
}

// Source is the log-source collaborator C7 drains. Read blocks until a
// record is available, ctx is done, or the source is exhausted.
// CommitUpto durably records that every record at or before offset for
// its topic/partition has been applied, so a restart resumes after it
// (spec §4.7 step 5).
type Source interface {
	Subscribe(ctx context.Context, topics []string) error
	Read(ctx context.Context) (Record, error)
	CommitUpto(ctx context.Context, topic string, partition int32, offset int64) error

	// HighWaterMark returns the exclusive end offset of topic (one past
	// the highest offset currently available), observed at call time. C8's sync() barrier (spec §4.7)
	// snapshots this as the target every worker must catch up to.
	HighWaterMark(ctx context.Context, topic string) (int64, error)

	Close() error
}
