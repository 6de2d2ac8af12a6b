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

// Package kafka is kawai's concrete logsource.Source: a thin wrapper
// around twmb/franz-go's client, configured for manual offset commit
// so internal/ingest controls exactly when a record is considered
// durably applied (spec §4.7 step 5).
package kafka

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/cockroachdb/kawai/internal/logsource"
)

// Config is the user-visible configuration for the Kafka log source.
type Config struct {
	Brokers       []string
	ConsumerGroup string
	ClientID      string
}

// Source implements logsource.Source over a franz-go client.
type Source struct {
	client *kgo.Client
	admin  *kadm.Client

	// pending buffers records already fetched from the client but not
	// yet returned from Read, since franz-go hands back whole fetch
	// batches rather than one record at a time.
	pending []*kgo.Record
}

// Open dials the configured brokers and joins the consumer group. The
// returned Source does not start consuming until Subscribe is called.
func Open(cfg Config) (*Source, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.ConsumerGroup),
		kgo.DisableAutoCommit(),
		kgo.FetchMaxWait(time.Second),
	}
	if cfg.ClientID != "" {
		opts = append(opts, kgo.ClientID(cfg.ClientID))
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "opening kafka client")
	}
	return &Source{client: client, admin: kadm.NewClient(client)}, nil
}

// Subscribe implements logsource.Source.
func (s *Source) Subscribe(_ context.Context, topics []string) error {
	s.client.AddConsumeTopics(topics...)
	return nil
}

// Read implements logsource.Source.
func (s *Source) Read(ctx context.Context) (logsource.Record, error) {
	for len(s.pending) == 0 {
		fetches := s.client.PollRecords(ctx, 1)
		if errs := fetches.Errors(); len(errs) > 0 {
			return logsource.Record{}, errors.Wrapf(errs[0].Err, "fetching from topic %s", errs[0].Topic)
		}
		s.pending = fetches.Records()
		if len(s.pending) == 0 {
			select {
			case <-ctx.Done():
				return logsource.Record{}, ctx.Err()
			default:
			}
		}
	}

	rec := s.pending[0]
	s.pending = s.pending[1:]

	return logsource.Record{
		Topic:     rec.Topic,
		Partition: rec.Partition,
		Offset:    rec.Offset,
		Key:       rec.Key,
		Value:     rec.Value,
		Tombstone: rec.Value == nil,
	}, nil
}

// CommitUpto implements logsource.Source.
func (s *Source) CommitUpto(ctx context.Context, topic string, partition int32, offset int64) error {
	rec := &kgo.Record{Topic: topic, Partition: partition, Offset: offset}
	return errors.Wrap(s.client.CommitRecords(ctx, rec), "committing kafka offset")
}

// HighWaterMark implements logsource.Source: the highest log-end
// offset (kadm's own exclusive-end convention, matching Kafka's) across
// topic's partitions, observed at call time.
func (s *Source) HighWaterMark(ctx context.Context, topic string) (int64, error) {
	ends, err := s.admin.ListEndOffsets(ctx, topic)
	if err != nil {
		return 0, errors.Wrapf(err, "listing end offsets for topic %s", topic)
	}
	var mark int64
	ends.Each(func(o kadm.ListedOffset) {
		if o.Err != nil {
			return
		}
		if o.Offset > mark {
			mark = o.Offset
		}
	})
	return mark, nil
}

// Close implements logsource.Source.
func (s *Source) Close() error {
	s.client.Close()
	return nil
}

var _ logsource.Source = (*Source)(nil)
