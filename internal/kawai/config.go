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

// Package kawai assembles C1-C7 into the engine described by C8 (spec
// §4.8): a single process-wide state machine that owns configuration,
// the schema resolver, the analytic database, and one ingest worker
// per bound topic.
package kawai

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/cockroachdb/kawai/internal/kerrors"
)

// TopicBinding names one topic and the key.serdes/value.serdes
// directive strings bound to it (spec §6).
type TopicBinding struct {
	Topic string `mapstructure:"topic"`
	Key   string `mapstructure:"key"`
	Value string `mapstructure:"value"`
}

// Config is kawai's user-visible configuration surface (A1/A6,
// following the teacher's server.Config.Bind/Preflight convention).
type Config struct {
	DuckDBPath string

	KafkaBrokers        []string
	KafkaConsumerGroup  string
	KafkaClientID       string

	SchemaRegistryURL     string
	SchemaRegistryTimeout time.Duration

	TopicsFile string
	Topics     []TopicBinding

	ChaosProbability float32

	LogLevel string
	LogJSON  bool
}

// Bind registers flags for every scalar option; Topics is populated
// separately by Preflight from TopicsFile, since a list of structured
// bindings does not map cleanly onto a single pflag value.
func (c *Config) Bind(flags *pflag.FlagSet) {
	flags.StringVar(&c.DuckDBPath, "duckdb.path", ":memory:",
		"path to the DuckDB database file, or \":memory:\" for an ephemeral database")

	flags.StringSliceVar(&c.KafkaBrokers, "kafka.brokers", nil,
		"comma-separated list of Kafka broker addresses")
	flags.StringVar(&c.KafkaConsumerGroup, "kafka.consumerGroup", "kawai",
		"the Kafka consumer group kawai joins")
	flags.StringVar(&c.KafkaClientID, "kafka.clientId", "kawai",
		"the Kafka client id kawai identifies itself with")

	flags.StringVar(&c.SchemaRegistryURL, "schema.registry.url", "mock://",
		"the Confluent-compatible schema registry URL, or mock:// for the in-process test fake")
	flags.DurationVar(&c.SchemaRegistryTimeout, "schema.registry.timeout", 10*time.Second,
		"timeout for schema registry HTTP requests")

	flags.StringVar(&c.TopicsFile, "topics.file", "",
		"path to a YAML/JSON file declaring topic -> key/value serde bindings")

	flags.Float32Var(&c.ChaosProbability, "chaos.probability", 0,
		"probability in [0,1) of injecting a simulated fault into the log source; for testing only")

	flags.StringVar(&c.LogLevel, "log.level", "info", "logrus level: trace, debug, info, warn, error")
	flags.BoolVar(&c.LogJSON, "log.json", false, "emit JSON-formatted logs")
}

// Preflight validates the bound flags and loads Topics from
// TopicsFile, following the teacher's Config.Preflight convention of
// failing fast, once, at startup rather than at first use.
func (c *Config) Preflight() error {
	if c.DuckDBPath == "" {
		return &kerrors.ConfigError{Option: "duckdb.path", Reason: "must not be empty"}
	}
	if c.SchemaRegistryURL == "" {
		return &kerrors.ConfigError{Option: "schema.registry.url", Reason: "must not be empty"}
	}
	if c.TopicsFile == "" {
		return &kerrors.ConfigError{Option: "topics.file", Reason: "must name a topic-bindings file"}
	}

	v := viper.New()
	v.SetConfigFile(c.TopicsFile)
	if err := v.ReadInConfig(); err != nil {
		return &kerrors.ConfigError{Option: "topics.file", Reason: errors.Wrap(err, "reading").Error()}
	}

	var wrapper struct {
		Topics []TopicBinding `mapstructure:"topics"`
	}
	if err := v.Unmarshal(&wrapper); err != nil {
		return &kerrors.ConfigError{Option: "topics.file", Reason: errors.Wrap(err, "parsing").Error()}
	}
	if len(wrapper.Topics) == 0 {
		return &kerrors.ConfigError{Option: "topics.file", Reason: "declares no topics"}
	}
	c.Topics = wrapper.Topics

	for _, t := range c.Topics {
		if t.Topic == "" {
			return &kerrors.ConfigError{Option: "topics.file", Reason: "a topic entry has an empty name"}
		}
	}

	if c.SchemaRegistryURL != "mock://" && len(c.KafkaBrokers) == 0 {
		return &kerrors.ConfigError{Option: "kafka.brokers", Reason: "must name at least one broker"}
	}

	return nil
}
