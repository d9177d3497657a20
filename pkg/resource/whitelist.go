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

package resource

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"reflect"

	"github.com/F5Networks/f5-cccl-go/pkg/merge"
	"github.com/F5Networks/f5-cccl-go/pkg/pospatch"
	log "github.com/F5Networks/f5-cccl-go/pkg/vlogger"
	"github.com/klauspost/compress/zlib"
)

const (
	// WhitelistKey marks a device resource the user owns. It is merged
	// with the desired configuration but never deleted.
	WhitelistKey = "cccl-whitelist"
	// WhitelistUpdatesKey stores the reverse patch of the last merge.
	WhitelistUpdatesKey = "cccl-whitelist-updates"
)

// Whitelisted reports whether the resource is user owned.
func (r *Resource) Whitelisted() bool { return r.whitelist }

// HasStaleWhitelistUpdates reports an updates entry left behind after the
// user removed the whitelist flag. Such a resource must be rewritten so the
// entry goes away.
func (r *Resource) HasStaleWhitelistUpdates() bool {
	return !r.whitelistFlag && r.whitelistUpdates != ""
}

func (r *Resource) processMetadataFlags() {
	md := listValue(r.data, "metadata")
	updatesIdx := -1
	for i, entry := range md {
		m, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		switch stringValue(m, "name") {
		case WhitelistKey:
			r.whitelistFlag = true
			r.whitelist = isTrue(m["value"])
			log.Debugf("[CCCL] Resource %s %s: %v", r.Name(), WhitelistKey, r.whitelist)
		case WhitelistUpdatesKey:
			r.whitelistUpdates = stringValue(m, "value")
			updatesIdx = i
		}
	}
	// The updates entry is recomputed on every merge. Without the flag it
	// stays, so the resource miscompares and gets rewritten.
	if updatesIdx >= 0 && r.whitelistFlag {
		r.data["metadata"] = append(md[:updatesIdx:updatesIdx], md[updatesIdx+1:]...)
	}
}

func isTrue(v interface{}) bool {
	switch t := v.(type) {
	case string:
		return t == "true" || t == "True" || t == "TRUE" || t == "1"
	case float64:
		return t == 1
	case bool:
		return t
	}
	return false
}

// Merge folds desired into a whitelisted resource. The changes made by the
// previous merge are backed out first, then the new reverse patch is
// stored in the resource metadata. It reports whether the document
// changed and the device object has to be updated.
func (r *Resource) Merge(desired map[string]interface{}) (bool, error) {
	if !r.whitelist {
		return false, fmt.Errorf("cannot merge into the non-whitelisted resource %s", r.FullPath())
	}
	prev := r.previousUpdates()
	if len(desired) == 0 && prev == nil {
		return false, nil
	}

	prevData := r.Data()
	data := r.Data()

	if prev != nil {
		restored, err := pospatch.Apply(data, pospatch.ToPositional(data, prev))
		if err != nil {
			log.Warningf("[CCCL] Failed removing updates to resource %s: %v", r.Name(), err)
		} else if m, ok := restored.(map[string]interface{}); ok {
			data = m
		}
	}

	original := merge.DeepCopy(data)
	mergedDoc, _ := merge.Merge(data, desired)
	merged, ok := mergedDoc.(map[string]interface{})
	if !ok {
		return false, fmt.Errorf("merge of %s did not produce a document", r.FullPath())
	}
	if md := listValue(merged, "metadata"); md != nil {
		sortByName(md)
	}

	cur, err := pospatch.Create(merged, original)
	if err != nil {
		return false, err
	}
	cur, err = pospatch.ToPositionIndependent(merged, cur)
	if err != nil {
		return false, err
	}

	changed := !reflect.DeepEqual(merged, prevData)
	r.data = merged
	if err := r.saveUpdates(cur); err != nil {
		return false, err
	}
	return changed, nil
}

func (r *Resource) previousUpdates() pospatch.Patch {
	if r.whitelistUpdates == "" {
		return nil
	}
	patch, err := DecodeUpdates(r.whitelistUpdates)
	if err != nil {
		log.Errorf("[CCCL] Cannot process previous updates for the whitelisted resource %s: %v",
			r.FullPath(), err)
		return nil
	}
	return patch
}

func (r *Resource) saveUpdates(patch pospatch.Patch) error {
	if len(patch) == 0 {
		r.whitelistUpdates = ""
		return nil
	}
	encoded, err := EncodeUpdates(patch)
	if err != nil {
		return err
	}
	r.whitelistUpdates = encoded
	r.data["metadata"] = append(listValue(r.data, "metadata"), map[string]interface{}{
		"name":    WhitelistUpdatesKey,
		"persist": "true",
		"value":   encoded,
	})
	return nil
}

// EncodeUpdates serializes a patch for the metadata entry:
// base64(zlib(json)).
func EncodeUpdates(patch pospatch.Patch) (string, error) {
	raw, err := json.Marshal(patch)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeUpdates is the inverse of EncodeUpdates.
func DecodeUpdates(s string) (pospatch.Patch, error) {
	compressed, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	rd, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer rd.Close()
	raw, err := io.ReadAll(rd)
	if err != nil {
		return nil, err
	}
	var patch pospatch.Patch
	if err := json.Unmarshal(raw, &patch); err != nil {
		return nil, err
	}
	return patch, nil
}
