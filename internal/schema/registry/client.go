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

// Package registry is a client for a Confluent-compatible schema
// registry (spec §6): subject->latest-schema and id->schema lookups.
// A "mock://" URL selects the in-process fake in registrytest instead
// of making network calls, for tests and for the sentinel test mode
// named in spec §6.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Ref is a named reference to another subject's schema, carried
// alongside an inline or registry-fetched schema body.
type Ref struct {
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Version int    `json:"version"`
}

// Info is what the registry returns for a schema lookup: the id, the
// declared schema type (AVRO, JSON, PROTOBUF — empty means AVRO, the
// Confluent default), the raw schema text, and any references.
type Info struct {
	ID         int32
	SchemaType string
	Text       string
	Refs       []Ref
}

// Client is the narrow registry contract C2 depends on.
type Client interface {
	LatestForSubject(ctx context.Context, subject string) (Info, error)
	ByID(ctx context.Context, id int32) (Info, error)
}

// httpClient implements Client against the Confluent Schema Registry
// REST API.
type httpClient struct {
	base *url.URL
	hc   *http.Client
}

// New builds a Client for the registry reachable at rawURL. A URL
// whose scheme is "mock" must instead be routed to registrytest.New by
// the caller; this constructor rejects it.
func New(rawURL string, timeout time.Duration) (Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing schema.registry.url")
	}
	if u.Scheme == "mock" {
		return nil, errors.New("mock:// URLs are handled by registrytest.New, not registry.New")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &httpClient{base: u, hc: &http.Client{Timeout: timeout}}, nil
}

type subjectVersionResponse struct {
	ID         int32  `json:"id"`
	Schema     string `json:"schema"`
	SchemaType string `json:"schemaType"`
	References []Ref  `json:"references"`
}

func (c *httpClient) LatestForSubject(ctx context.Context, subject string) (Info, error) {
	u := *c.base
	u.Path = fmt.Sprintf("%s/subjects/%s/versions/latest", u.Path, url.PathEscape(subject))
	var resp subjectVersionResponse
	if err := c.getJSON(ctx, u.String(), &resp); err != nil {
		return Info{}, errors.Wrapf(err, "fetching latest schema for subject %s", subject)
	}
	return Info{ID: resp.ID, SchemaType: resp.SchemaType, Text: resp.Schema, Refs: resp.References}, nil
}

type byIDResponse struct {
	Schema     string `json:"schema"`
	SchemaType string `json:"schemaType"`
	References []Ref  `json:"references"`
}

func (c *httpClient) ByID(ctx context.Context, id int32) (Info, error) {
	u := *c.base
	u.Path = fmt.Sprintf("%s/schemas/ids/%s", u.Path, strconv.Itoa(int(id)))
	var resp byIDResponse
	if err := c.getJSON(ctx, u.String(), &resp); err != nil {
		return Info{}, errors.Wrapf(err, "fetching schema by id %d", id)
	}
	return Info{ID: id, SchemaType: resp.SchemaType, Text: resp.Schema, Refs: resp.References}, nil
}

func (c *httpClient) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.WithStack(err)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return errors.WithStack(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WithStack(err)
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("registry returned %s: %s", resp.Status, bytes.TrimSpace(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.WithStack(err)
	}
	return nil
}
