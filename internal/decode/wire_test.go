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

package decode_test

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cockroachdb/kawai/internal/decode"
	"github.com/cockroachdb/kawai/internal/schema"
)

func TestDecodeLeafLong(t *testing.T) {
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, 42)

	v, err := decode.Decode(context.Background(), raw, schema.FromLeaf(schema.TagLong), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.Leaf)
}

func TestDecodeLeafStringPassesThrough(t *testing.T) {
	v, err := decode.Decode(context.Background(), []byte("hello"), schema.FromLeaf(schema.TagString), nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", v.Leaf)
}

func TestDecodeLeafShortWrongLengthIsDecodeError(t *testing.T) {
	_, err := decode.Decode(context.Background(), []byte{1, 2, 3}, schema.FromLeaf(schema.TagShort), nil)
	require.Error(t, err)
}

func TestDecodeParsedRejectsBadMagic(t *testing.T) {
	parsed := &schema.Parsed{Family: schema.FamilyRecord}
	resolved := schema.FromParsed(parsed)

	raw := append([]byte{0x05}, make([]byte, 10)...)
	_, err := decode.Decode(context.Background(), raw, resolved, nil)
	require.Error(t, err)
}

func TestDecodeParsedRejectsShortPayload(t *testing.T) {
	parsed := &schema.Parsed{Family: schema.FamilyRecord}
	resolved := schema.FromParsed(parsed)

	_, err := decode.Decode(context.Background(), []byte{0x00, 0x00}, resolved, nil)
	require.Error(t, err)
}
