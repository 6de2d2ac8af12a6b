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
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/cockroachdb/kawai/internal/schema/registry"
)

// DirectiveKind discriminates the literal forms a key.serdes/value.serdes
// entry can take (spec §6).
type DirectiveKind int

const (
	DirectiveLeaf DirectiveKind = iota
	DirectiveLatest
	DirectiveByID
	DirectiveInline
)

// Directive is a parsed key.serdes/value.serdes entry.
type Directive struct {
	Kind DirectiveKind

	Leaf SerdeTag // DirectiveLeaf

	ID int32 // DirectiveByID

	SchemaType string        // DirectiveInline: "avro", "json", or "protobuf"
	SchemaText string        // DirectiveInline
	Refs       []registry.Ref // DirectiveInline
}

var leafTags = map[string]SerdeTag{
	"short":  TagShort,
	"int":    TagInt,
	"long":   TagLong,
	"float":  TagFloat,
	"double": TagDouble,
	"string": TagString,
	"binary": TagBinary,
}

// DefaultKeyDirective and DefaultValueDirective are the fallbacks spec
// §6 names for key.serdes and value.serdes respectively.
var (
	DefaultKeyDirective   = Directive{Kind: DirectiveLeaf, Leaf: TagBinary}
	DefaultValueDirective = Directive{Kind: DirectiveLatest}
)

// ParseDirective parses one of the literal forms named in spec §6:
// a leaf serde name, "latest", "id:<int>", or
// "inline:<type>:<base64-schema>[+refs…]".
func ParseDirective(s string) (Directive, error) {
	if tag, ok := leafTags[s]; ok {
		return Directive{Kind: DirectiveLeaf, Leaf: tag}, nil
	}
	if s == "latest" {
		return Directive{Kind: DirectiveLatest}, nil
	}
	if rest, ok := strings.CutPrefix(s, "id:"); ok {
		id, err := strconv.ParseInt(rest, 10, 32)
		if err != nil {
			return Directive{}, errors.Wrapf(err, "parsing serde directive %q", s)
		}
		return Directive{Kind: DirectiveByID, ID: int32(id)}, nil
	}
	if rest, ok := strings.CutPrefix(s, "inline:"); ok {
		return parseInline(s, rest)
	}
	return Directive{}, errors.Errorf("unrecognized serde directive %q", s)
}

func parseInline(original, rest string) (Directive, error) {
	// <type>:<base64-schema>[+refs...]
	parts := strings.SplitN(rest, ":", 2)
	if len(parts) != 2 {
		return Directive{}, errors.Errorf("malformed inline directive %q: want inline:<type>:<base64>", original)
	}
	schemaType := parts[0]

	body := parts[1]
	var refParts []string
	if idx := strings.Index(body, "+"); idx >= 0 {
		refParts = strings.Split(body[idx+1:], "+")
		body = body[:idx]
	}

	raw, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return Directive{}, errors.Wrapf(err, "decoding base64 schema body in %q", original)
	}

	var refs []registry.Ref
	for _, rp := range refParts {
		if rp == "" {
			continue
		}
		// name=subject@version
		nameRest := strings.SplitN(rp, "=", 2)
		if len(nameRest) != 2 {
			return Directive{}, errors.Errorf("malformed reference %q in %q", rp, original)
		}
		subjVer := strings.SplitN(nameRest[1], "@", 2)
		ref := registry.Ref{Name: nameRest[0], Subject: subjVer[0]}
		if len(subjVer) == 2 {
			v, err := strconv.Atoi(subjVer[1])
			if err != nil {
				return Directive{}, errors.Wrapf(err, "parsing reference version in %q", rp)
			}
			ref.Version = v
		}
		refs = append(refs, ref)
	}

	return Directive{
		Kind:       DirectiveInline,
		SchemaType: schemaType,
		SchemaText: string(raw),
		Refs:       refs,
	}, nil
}
