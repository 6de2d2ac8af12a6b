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

// Package logging centralizes kawai's logrus configuration so that
// every component logs with the same field conventions instead of
// reaching for the log standard-library package directly.
package logging

import (
	log "github.com/sirupsen/logrus"
)

// Topic returns a logger scoped to a single topic's ingest worker.
func Topic(topic, role string) *log.Entry {
	return log.WithFields(log.Fields{
		"topic": topic,
		"role":  role,
	})
}

// SetLevel adjusts the package-wide logrus level, e.g. from a -v flag.
func SetLevel(level log.Level) {
	log.SetLevel(level)
}

// SetJSON switches the formatter to JSON, for production deployments
// where logs are shipped to a collector.
func SetJSON(enabled bool) {
	if enabled {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}
