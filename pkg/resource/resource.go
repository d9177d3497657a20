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
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"github.com/F5Networks/f5-cccl-go/pkg/merge"
	log "github.com/F5Networks/f5-cccl-go/pkg/vlogger"
)

// Kind describes one BIG-IP resource type: where it lives in the REST tree
// and how two resources of the type compare.
type Kind struct {
	Name string
	// URI is the collection path below /mgmt/tm. Empty for nested
	// resources that are only deployed as part of their parent.
	URI string

	// equal defaults to document equality without metadata.
	equal func(a, b *Resource) bool
	// trimUpdate removes fields the device refuses on modify.
	trimUpdate func(payload map[string]interface{})
}

func (k *Kind) String() string { return k.Name }

// Resource is one canonical BIG-IP object. Its document is built once by a
// constructor and is not changed afterwards, except by Merge which replaces
// it as a whole.
type Resource struct {
	kind *Kind
	data map[string]interface{}

	whitelist        bool
	whitelistFlag    bool
	whitelistUpdates string

	// nodes compare addresses in the partition's default route domain
	defaultRouteDomain int
}

// field is one entry of a type's property table. A nil default leaves the
// property out when the input does not set it.
type field struct {
	name string
	def  interface{}
}

func newResource(kind *Kind, name, partition string) (*Resource, error) {
	if name == "" {
		return nil, fmt.Errorf("%s must have a name", kind.Name)
	}
	r := &Resource{
		kind: kind,
		data: map[string]interface{}{"name": name},
	}
	if partition != "" {
		r.data["partition"] = partition
	}
	return r, nil
}

// setFields copies the table's properties from src, filling defaults.
func (r *Resource) setFields(src map[string]interface{}, fields []field) {
	for _, f := range fields {
		if v, ok := src[f.name]; ok && v != nil {
			r.data[f.name] = merge.DeepCopy(v)
		} else if f.def != nil {
			r.data[f.name] = merge.DeepCopy(f.def)
		}
	}
}

// setMetadata keeps the metadata list and reads the whitelist flags in it.
func (r *Resource) setMetadata(src map[string]interface{}) {
	md, ok := src["metadata"].([]interface{})
	if !ok || len(md) == 0 {
		return
	}
	r.data["metadata"] = merge.DeepCopy(md)
	r.processMetadataFlags()
}

// toDoc turns a declaration or device struct into a JSON shaped document.
func toDoc(v interface{}) (map[string]interface{}, error) {
	if m, ok := v.(map[string]interface{}); ok {
		return normalize(m)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	doc := map[string]interface{}{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// normalize makes numbers float64 and copies the document.
func normalize(m map[string]interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	doc := map[string]interface{}{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// NewBareResource returns a resource holding only name and partition. It
// stands in for a device object whose representation could not be read so
// that it can still be updated or deleted.
func NewBareResource(kind *Kind, name, partition string) (*Resource, error) {
	return newResource(kind, name, partition)
}

func (r *Resource) Kind() *Kind { return r.kind }

func (r *Resource) Name() string { return stringValue(r.data, "name") }

func (r *Resource) Partition() string { return stringValue(r.data, "partition") }

// FullPath returns /<partition>/<name>.
func (r *Resource) FullPath() string {
	return fmt.Sprintf("/%s/%s", r.Partition(), r.Name())
}

// Data returns a copy of the document.
func (r *Resource) Data() map[string]interface{} {
	return merge.DeepCopy(r.data).(map[string]interface{})
}

// Get returns a copy of one property, nil when unset.
func (r *Resource) Get(key string) interface{} {
	return merge.DeepCopy(r.data[key])
}

// With returns a copy of the resource with one property replaced.
func (r *Resource) With(key string, value interface{}) *Resource {
	cp := *r
	cp.data = r.Data()
	cp.data[key] = merge.DeepCopy(value)
	return &cp
}

func (r *Resource) String() string {
	raw, err := json.Marshal(r.data)
	if err != nil {
		return r.FullPath()
	}
	return string(raw)
}

// Equal compares two resources with the rules of their kind. Metadata never
// takes part in the comparison.
func (r *Resource) Equal(other *Resource) bool {
	if other == nil || other.kind != r.kind {
		if other != nil {
			log.Warningf("[CCCL] Invalid comparison of %s with %s", r.kind, other.kind)
		}
		return false
	}
	if r.kind.equal != nil {
		return r.kind.equal(r, other)
	}
	return documentEqual(r.data, other.data)
}

func documentEqual(a, b map[string]interface{}) bool {
	return reflect.DeepEqual(withoutMetadata(a), withoutMetadata(b))
}

// propertiesEqual compares only the listed keys; a missing key equals nil.
func propertiesEqual(a, b map[string]interface{}, keys ...string) bool {
	for _, k := range keys {
		if !reflect.DeepEqual(a[k], b[k]) {
			return false
		}
	}
	return true
}

func withoutMetadata(m map[string]interface{}) map[string]interface{} {
	if _, ok := m["metadata"]; !ok {
		return m
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if k != "metadata" {
			out[k] = v
		}
	}
	return out
}

// Create deploys the resource. The document is sent as is.
func (r *Resource) Create(ctx context.Context, dev Device) error {
	if err := r.deployable(); err != nil {
		return err
	}
	log.Infof("[CCCL] Creating %s: %s", r.kind, r.FullPath())
	if _, err := dev.Create(ctx, r.kind.URI, r.Data()); err != nil {
		r.logError("create", err)
		return err
	}
	return nil
}

// Read loads the device representation of the resource.
func (r *Resource) Read(ctx context.Context, dev Device) (map[string]interface{}, error) {
	if err := r.deployable(); err != nil {
		return nil, err
	}
	log.Debugf("[CCCL] Loading %s: %s", r.kind, r.FullPath())
	obj, err := dev.Read(ctx, r.kind.URI, r.Partition(), r.Name())
	if err != nil {
		r.logError("load", err)
		return nil, err
	}
	return obj, nil
}

// Update replaces the device object with the document, minus the fields
// the kind cannot modify.
func (r *Resource) Update(ctx context.Context, dev Device) error {
	if err := r.deployable(); err != nil {
		return err
	}
	log.Infof("[CCCL] Updating %s: %s", r.kind, r.FullPath())
	payload := r.Data()
	if r.kind.trimUpdate != nil {
		r.kind.trimUpdate(payload)
	}
	if err := dev.Update(ctx, r.kind.URI, r.Partition(), r.Name(), payload); err != nil {
		r.logError("update", err)
		return err
	}
	return nil
}

func (r *Resource) Delete(ctx context.Context, dev Device) error {
	if err := r.deployable(); err != nil {
		return err
	}
	log.Infof("[CCCL] Deleting %s: %s", r.kind, r.FullPath())
	if err := dev.Delete(ctx, r.kind.URI, r.Partition(), r.Name()); err != nil {
		r.logError("delete", err)
		return err
	}
	return nil
}

func (r *Resource) deployable() error {
	if r.kind.URI == "" {
		return fmt.Errorf("%s %s is not managed on its own", r.kind, r.Name())
	}
	return nil
}

func (r *Resource) logError(op string, err error) {
	if code := StatusCode(err); code != 0 {
		log.Errorf("[CCCL] HTTP error(%d): %s %s %s failed", code, r.kind, r.FullPath(), op)
		return
	}
	log.Errorf("[CCCL] %s %s %s failed: %v", r.kind, r.FullPath(), op, err)
}

// SortedNames returns the keys of a resource map in order.
func SortedNames(m map[string]*Resource) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func stringValue(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func listValue(m map[string]interface{}, key string) []interface{} {
	l, _ := m[key].([]interface{})
	return l
}

func mapValue(m map[string]interface{}, key string) map[string]interface{} {
	v, _ := m[key].(map[string]interface{})
	return v
}

// sortByName orders a list of named maps.
func sortByName(list []interface{}) {
	sort.SliceStable(list, func(i, j int) bool {
		a, _ := list[i].(map[string]interface{})
		b, _ := list[j].(map[string]interface{})
		return stringValue(a, "name") < stringValue(b, "name")
	})
}
