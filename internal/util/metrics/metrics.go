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

// Package metrics declares the prometheus collectors shared across
// kawai's ingest pipeline. It plays the role that internal/staging/stage
// metrics.go plays in the teacher: one file, one set of label-aware
// vectors, everything else in the tree just calls .WithLabelValues.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// LatencyBuckets is shared by every histogram in this package so that
// dashboards built against one apply cleanly to the others.
var LatencyBuckets = prometheus.ExponentialBuckets(0.001, 2, 16)

// TopicLabels is the label set common to every per-topic collector.
var TopicLabels = []string{"topic"}

var (
	// DecodeErrors counts records that failed to decode (magic byte
	// mismatch, truncated payload, unknown union tag) and were
	// skipped, per spec §7/§8 invariant 5.
	DecodeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kawai_decode_errors_total",
		Help: "the number of records skipped because they failed to decode",
	}, TopicLabels)

	// RowErrors counts records whose decoded value tree did not match
	// the bound column shape (BadRow).
	RowErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kawai_row_errors_total",
		Help: "the number of records skipped because the decoded value did not match the column shape",
	}, TopicLabels)

	// InsertDuration measures the latency of a single prepared insert.
	InsertDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kawai_insert_duration_seconds",
		Help:    "the length of time it took to insert one row",
		Buckets: LatencyBuckets,
	}, TopicLabels)

	// InsertErrors counts fatal insert failures that degraded a topic.
	InsertErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kawai_insert_errors_total",
		Help: "the number of times an insert failed and the topic was marked degraded",
	}, TopicLabels)

	// RecordsIngested counts successfully inserted rows.
	RecordsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kawai_records_ingested_total",
		Help: "the number of records successfully inserted into a topic's table",
	}, TopicLabels)

	// ResolveFallbacks counts schema resolutions that fell back to the
	// binary serde because the registry was unreachable or the schema
	// failed to parse.
	ResolveFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kawai_resolve_fallbacks_total",
		Help: "the number of schema resolutions that fell back to the binary serde",
	}, []string{"topic", "role"})

	// TopicDegraded is 1 for a topic whose ingest loop has stopped
	// after a fatal SinkError, 0 otherwise. A BadSchema does not set
	// it: that error fails worker construction and engine start.
	TopicDegraded = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "kawai_topic_degraded",
		Help: "1 if the topic's ingest loop has been torn down after a fatal error",
	}, TopicLabels)
)
