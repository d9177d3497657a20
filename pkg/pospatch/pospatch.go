/*-
 * Copyright (c) 2016-2021, F5 Networks, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package pospatch translates JSON patches between the positional form
// (list elements addressed by index, as RFC 6902 defines them) and a
// position independent form where every list index is replaced by
// "[<sha256 of the element>]". A position independent patch stays valid
// when the device reorders list entries between two reads.
package pospatch

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	log "github.com/F5Networks/f5-cccl-go/pkg/vlogger"
	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"
	jsonpatch "github.com/evanphx/json-patch/v5"
	gojsonpatch "gomodules.xyz/jsonpatch/v2"
)

// Operation is one JSON patch entry.
type Operation struct {
	Op    string      `json:"op"`
	Path  string      `json:"path"`
	From  string      `json:"from,omitempty"`
	Value interface{} `json:"value"`
}

// Patch is an ordered list of operations.
type Patch []Operation

// Create returns the positional patch that turns from into to.
func Create(from, to interface{}) (Patch, error) {
	a, err := json.Marshal(from)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(to)
	if err != nil {
		return nil, err
	}
	ops, err := gojsonpatch.CreatePatch(a, b)
	if err != nil {
		return nil, fmt.Errorf("creating patch: %v", err)
	}
	patch := make(Patch, 0, len(ops))
	for _, op := range ops {
		patch = append(patch, Operation{
			Op:    op.Operation,
			Path:  op.Path,
			Value: op.Value,
		})
	}
	return patch, nil
}

// Apply applies a positional patch to doc and returns the patched document.
// doc is not modified.
func Apply(doc interface{}, patch Patch) (interface{}, error) {
	if len(patch) == 0 {
		return doc, nil
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	rawPatch, err := json.Marshal(patch)
	if err != nil {
		return nil, err
	}
	decoded, err := jsonpatch.DecodePatch(rawPatch)
	if err != nil {
		return nil, err
	}
	patched, err := decoded.Apply(raw)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(patched, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Hash returns the content hash used for a list element: the hex SHA-256
// of its RFC 8785 canonical JSON. Scalars are canonicalized inside a
// one-element array, since the canonicalizer only takes objects and arrays.
func Hash(v interface{}) (string, error) {
	_, isMap := v.(map[string]interface{})
	_, isList := v.([]interface{})
	scalar := !isMap && !isList
	if scalar {
		v = []interface{}{v}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	canonical, err := jsoncanonicalizer.Transform(raw)
	if err != nil {
		return "", err
	}
	if scalar {
		canonical = canonical[1 : len(canonical)-1]
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// ToPositionIndependent replaces the list indexes of every path in patch
// by the hash of the element found at that index in source. Once a path
// leaves the structure of source the remaining segments are kept verbatim.
func ToPositionIndependent(source interface{}, patch Patch) (Patch, error) {
	out := make(Patch, 0, len(patch))
	for _, op := range patch {
		path, err := hashPath(source, op.Path)
		if err != nil {
			return nil, err
		}
		op.Path = path
		if op.From != "" {
			if op.From, err = hashPath(source, op.From); err != nil {
				return nil, err
			}
		}
		out = append(out, op)
	}
	return out, nil
}

// ToPositional resolves the hashes of a position independent patch against
// target. Entries that refer to an element no longer in target are
// dropped, as are "remove" entries whose key is gone.
func ToPositional(target interface{}, patch Patch) Patch {
	out := make(Patch, 0, len(patch))
	for _, op := range patch {
		path, ok := indexPath(target, op.Path, op.Op == "remove")
		if !ok {
			log.Debugf("[PosPatch] dropping stale patch entry %s %s", op.Op, op.Path)
			continue
		}
		op.Path = path
		if op.From != "" {
			from, ok := indexPath(target, op.From, true)
			if !ok {
				log.Debugf("[PosPatch] dropping stale patch entry %s from %s", op.Op, op.From)
				continue
			}
			op.From = from
		}
		out = append(out, op)
	}
	return out
}

func hashPath(doc interface{}, path string) (string, error) {
	ptr := doc
	walking := true
	var b strings.Builder
	for _, seg := range splitPointer(path) {
		b.WriteByte('/')
		if !walking {
			b.WriteString(seg)
			continue
		}
		switch node := ptr.(type) {
		case []interface{}:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				walking = false
				b.WriteString(seg)
				continue
			}
			h, err := Hash(node[idx])
			if err != nil {
				return "", err
			}
			b.WriteString("[" + h + "]")
			ptr = node[idx]
		case map[string]interface{}:
			b.WriteString(seg)
			if next, ok := node[unescape(seg)]; ok {
				ptr = next
			} else {
				walking = false
			}
		default:
			walking = false
			b.WriteString(seg)
		}
	}
	return b.String(), nil
}

// indexPath reports false when the path can no longer be applied to doc.
func indexPath(doc interface{}, path string, mustExist bool) (string, bool) {
	ptr := doc
	walking := true
	var b strings.Builder
	for _, seg := range splitPointer(path) {
		b.WriteByte('/')
		if !walking {
			b.WriteString(seg)
			continue
		}
		if isHashSegment(seg) {
			list, ok := ptr.([]interface{})
			if !ok {
				return "", false
			}
			idx := findByHash(list, seg[1:len(seg)-1])
			if idx < 0 {
				return "", false
			}
			b.WriteString(strconv.Itoa(idx))
			ptr = list[idx]
			continue
		}
		b.WriteString(seg)
		switch node := ptr.(type) {
		case map[string]interface{}:
			if next, ok := node[unescape(seg)]; ok {
				ptr = next
				continue
			}
		case []interface{}:
			if idx, err := strconv.Atoi(seg); err == nil && idx >= 0 && idx < len(node) {
				ptr = node[idx]
				continue
			}
		}
		if mustExist {
			return "", false
		}
		walking = false
	}
	return b.String(), true
}

func findByHash(list []interface{}, hash string) int {
	for i, elem := range list {
		h, err := Hash(elem)
		if err != nil {
			continue
		}
		if h == hash {
			return i
		}
	}
	return -1
}

func isHashSegment(seg string) bool {
	return len(seg) > 2 && seg[0] == '[' && seg[len(seg)-1] == ']'
}

// splitPointer drops the empty segment before the leading slash. Segments
// stay escaped.
func splitPointer(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(strings.TrimPrefix(path, "/"), "/")
}

func unescape(seg string) string {
	return strings.ReplaceAll(strings.ReplaceAll(seg, "~1", "/"), "~0", "~")
}
