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

package schema

import (
	"context"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/cockroachdb/kawai/internal/schema/registry"
	"github.com/cockroachdb/kawai/internal/util/metrics"
)

// FamilyParser turns raw schema text plus its references into a Parsed
// structural schema. Each family package (avro, jsonschema, protobuf)
// supplies one and registers it under its Confluent schema-type name
// via RegisterFamilyParser, the same init()-time registration pattern
// benthos uses for its processors — this keeps the dependency arrow
// pointing from the family packages to schema, not the other way
// around.
type FamilyParser interface {
	Parse(ctx context.Context, text string, refs []registry.Ref, resolveRef func(ctx context.Context, ref registry.Ref) (registry.Info, error)) (*Parsed, error)
}

var (
	parserMu sync.RWMutex
	parsers  = map[string]FamilyParser{}
)

// RegisterFamilyParser registers parser under the Confluent schema-type
// name (e.g. "avro", "json", "protobuf"). It is meant to be called from
// a family package's init().
func RegisterFamilyParser(schemaType string, parser FamilyParser) {
	parserMu.Lock()
	defer parserMu.Unlock()
	parsers[schemaType] = parser
}

func lookupParser(schemaType string) (FamilyParser, bool) {
	parserMu.RLock()
	defer parserMu.RUnlock()
	schemaType = strings.ToLower(schemaType)
	if schemaType == "" {
		schemaType = "avro" // Confluent's default when schemaType is omitted.
	}
	p, ok := parsers[schemaType]
	return p, ok
}

// Resolver implements C2: resolve(topic, role) -> ResolvedSchema, with
// a per-(topic,role) cache and single-flight resolution (spec §4.2,
// §5, §9).
type Resolver struct {
	registry registry.Client

	mu      sync.Mutex
	entries map[cacheKey]*cacheEntry
}

type cacheKey struct {
	topic string
	role  string
}

type cacheEntry struct {
	once  sync.Once
	value Resolved
}

// NewResolver builds a Resolver backed by the given registry client.
// client may be nil if no topic's directives ever require the
// registry (spec §6: "empty disables remote resolution").
func NewResolver(client registry.Client) *Resolver {
	return &Resolver{
		registry: client,
		entries:  make(map[cacheKey]*cacheEntry),
	}
}

// Resolve implements C2's resolve(topic, role) -> ResolvedSchema
// contract. At most one resolution attempt is in flight per
// (topic, role); concurrent callers block on the same attempt and
// all observe the same result, including a fallback.
func (r *Resolver) Resolve(ctx context.Context, topic, role string, directive Directive) Resolved {
	key := cacheKey{topic: topic, role: role}

	r.mu.Lock()
	entry, ok := r.entries[key]
	if !ok {
		entry = &cacheEntry{}
		r.entries[key] = entry
	}
	r.mu.Unlock()

	entry.once.Do(func() {
		entry.value = r.resolveUncached(ctx, topic, role, directive)
	})
	return entry.value
}

// Invalidate drops any cached binding for (topic, role), so the next
// Resolve call re-resolves it. Not used in the steady-state ingest
// path; exposed for operators recovering from a bad fallback.
func (r *Resolver) Invalidate(topic, role string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, cacheKey{topic: topic, role: role})
}

func (r *Resolver) resolveUncached(ctx context.Context, topic, role string, directive Directive) Resolved {
	logger := log.WithFields(log.Fields{"topic": topic, "role": role})

	switch directive.Kind {
	case DirectiveLeaf:
		return FromLeaf(directive.Leaf)

	case DirectiveInline:
		parsed, err := r.parse(ctx, directive.SchemaType, directive.SchemaText, directive.Refs)
		if err != nil {
			logger.WithError(err).Warn("failed to parse inline schema, falling back to binary")
			metrics.ResolveFallbacks.WithLabelValues(topic, role).Inc()
			return Binary
		}
		return FromParsed(parsed)

	case DirectiveLatest:
		if r.registry == nil {
			logger.Warn("value.serdes/key.serdes requested latest but no schema.registry.url is configured; falling back to binary")
			metrics.ResolveFallbacks.WithLabelValues(topic, role).Inc()
			return Binary
		}
		subject := topic + "-" + role
		info, err := r.registry.LatestForSubject(ctx, subject)
		if err != nil {
			logger.WithError(err).Warn("schema registry unreachable, falling back to binary")
			metrics.ResolveFallbacks.WithLabelValues(topic, role).Inc()
			return Binary
		}
		parsed, err := r.parse(ctx, info.SchemaType, info.Text, info.Refs)
		if err != nil {
			logger.WithError(err).Warn("failed to parse registry schema, falling back to binary")
			metrics.ResolveFallbacks.WithLabelValues(topic, role).Inc()
			return Binary
		}
		parsed.WriterID = info.ID
		return FromParsed(parsed)

	case DirectiveByID:
		if r.registry == nil {
			logger.Warn("value.serdes/key.serdes requested id: but no schema.registry.url is configured; falling back to binary")
			metrics.ResolveFallbacks.WithLabelValues(topic, role).Inc()
			return Binary
		}
		info, err := r.registry.ByID(ctx, directive.ID)
		if err != nil {
			logger.WithError(err).Warn("schema registry unreachable, falling back to binary")
			metrics.ResolveFallbacks.WithLabelValues(topic, role).Inc()
			return Binary
		}
		parsed, err := r.parse(ctx, info.SchemaType, info.Text, info.Refs)
		if err != nil {
			logger.WithError(err).Warn("failed to parse registry schema, falling back to binary")
			metrics.ResolveFallbacks.WithLabelValues(topic, role).Inc()
			return Binary
		}
		parsed.WriterID = info.ID
		return FromParsed(parsed)

	default:
		logger.Warn("unrecognized serde directive kind, falling back to binary")
		metrics.ResolveFallbacks.WithLabelValues(topic, role).Inc()
		return Binary
	}
}

// FetchByID fetches and parses the schema registered under id. Used by
// the decoder (spec §4.4 step 2) when a family's native decoder
// requires the exact writer schema and the topic's binding was
// resolved by "latest" rather than the payload's own id.
func (r *Resolver) FetchByID(ctx context.Context, id int32) (*Parsed, error) {
	info, err := r.registry.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	parsed, err := r.parse(ctx, info.SchemaType, info.Text, info.Refs)
	if err != nil {
		return nil, err
	}
	parsed.WriterID = id
	return parsed, nil
}

func (r *Resolver) parse(ctx context.Context, schemaType, text string, refs []registry.Ref) (*Parsed, error) {
	parser, ok := lookupParser(schemaType)
	if !ok {
		return nil, errUnknownSchemaType(schemaType)
	}
	return parser.Parse(ctx, text, refs, r.resolveRef)
}

func (r *Resolver) resolveRef(ctx context.Context, ref registry.Ref) (registry.Info, error) {
	if r.registry == nil {
		return registry.Info{}, errNoRegistryForRef(ref.Subject)
	}
	return r.registry.LatestForSubject(ctx, ref.Subject)
}
