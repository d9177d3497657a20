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

// Package test provides an in-memory BIG-IP for unit tests.
package test

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/F5Networks/f5-cccl-go/pkg/merge"
	"github.com/F5Networks/f5-cccl-go/pkg/resource"
)

// Call is one recorded device request.
type Call struct {
	Op        string
	URI       string
	Partition string
	Name      string
	Payload   map[string]interface{}
}

// MockBigIP stores objects per collection URI, keyed by full path. Create,
// Update and Delete behave like the REST API: 409 for an existing object,
// 404 for a missing one. Update merges the payload into the stored object.
type MockBigIP struct {
	sync.Mutex
	Objects map[string]map[string]map[string]interface{}
	// default route domain per partition
	Partitions map[string]int
	Calls      []Call
	failures   map[string]error
}

func NewMockBigIP(partitions ...string) *MockBigIP {
	m := &MockBigIP{
		Objects:    map[string]map[string]map[string]interface{}{},
		Partitions: map[string]int{"Common": 0},
		failures:   map[string]error{},
	}
	for _, p := range partitions {
		m.Partitions[p] = 0
	}
	return m
}

func key(partition, name string) string {
	return fmt.Sprintf("/%s/%s", partition, name)
}

func copyObject(obj map[string]interface{}) map[string]interface{} {
	return merge.DeepCopy(obj).(map[string]interface{})
}

// Add stores obj as it would be read from the device.
func (m *MockBigIP) Add(uri string, obj map[string]interface{}) {
	m.Lock()
	defer m.Unlock()
	m.store(uri, copyObject(obj))
}

func (m *MockBigIP) store(uri string, obj map[string]interface{}) {
	name, _ := obj["name"].(string)
	partition, _ := obj["partition"].(string)
	if m.Objects[uri] == nil {
		m.Objects[uri] = map[string]map[string]interface{}{}
	}
	m.Objects[uri][key(partition, name)] = obj
}

// Object returns a copy of a stored object.
func (m *MockBigIP) Object(uri, partition, name string) (map[string]interface{}, bool) {
	m.Lock()
	defer m.Unlock()
	obj, ok := m.Objects[uri][key(partition, name)]
	if !ok {
		return nil, false
	}
	return copyObject(obj), true
}

// Names lists the full paths stored under uri.
func (m *MockBigIP) Names(uri string) []string {
	m.Lock()
	defer m.Unlock()
	var names []string
	for k := range m.Objects[uri] {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Fail makes every op ("create", "read", "update", "delete", "list") on the
// object fail with err. For list, name is ignored.
func (m *MockBigIP) Fail(op, uri, partition, name string, err error) {
	m.Lock()
	defer m.Unlock()
	if op == "list" {
		name = ""
	}
	m.failures[op+" "+uri+" "+key(partition, name)] = err
}

// CallsFor returns the recorded calls of one op.
func (m *MockBigIP) CallsFor(op string) []Call {
	m.Lock()
	defer m.Unlock()
	var calls []Call
	for _, c := range m.Calls {
		if c.Op == op {
			calls = append(calls, c)
		}
	}
	return calls
}

// ResetCalls forgets the recorded calls.
func (m *MockBigIP) ResetCalls() {
	m.Lock()
	defer m.Unlock()
	m.Calls = nil
}

func (m *MockBigIP) record(op, uri, partition, name string, payload map[string]interface{}) error {
	var p map[string]interface{}
	if payload != nil {
		p = copyObject(payload)
	}
	m.Calls = append(m.Calls, Call{Op: op, URI: uri, Partition: partition, Name: name, Payload: p})
	if op == "list" {
		name = ""
	}
	return m.failures[op+" "+uri+" "+key(partition, name)]
}

// expand adds the subcollection references the device returns for
// virtual server profiles and policies.
func expand(uri string, obj map[string]interface{}) {
	if uri != resource.KindVirtual.URI {
		return
	}
	for _, ref := range []string{"profiles", "policies"} {
		if items, ok := obj[ref].([]interface{}); ok {
			obj[ref+"Reference"] = map[string]interface{}{
				"isSubcollection": true,
				"items":           merge.DeepCopy(items),
			}
			delete(obj, ref)
		}
	}
}

func (m *MockBigIP) Create(_ context.Context, uri string,
	payload map[string]interface{}) (map[string]interface{}, error) {
	m.Lock()
	defer m.Unlock()
	name, _ := payload["name"].(string)
	partition, _ := payload["partition"].(string)
	if err := m.record("create", uri, partition, name, payload); err != nil {
		return nil, err
	}
	if _, ok := m.Objects[uri][key(partition, name)]; ok {
		return nil, resource.NewDeviceError(409, fmt.Sprintf("%s already exists", key(partition, name)))
	}
	obj := copyObject(payload)
	expand(uri, obj)
	m.store(uri, obj)
	return copyObject(obj), nil
}

func (m *MockBigIP) Read(_ context.Context, uri, partition, name string) (map[string]interface{}, error) {
	m.Lock()
	defer m.Unlock()
	if err := m.record("read", uri, partition, name, nil); err != nil {
		return nil, err
	}
	obj, ok := m.Objects[uri][key(partition, name)]
	if !ok {
		return nil, resource.NewDeviceError(404, fmt.Sprintf("%s not found", key(partition, name)))
	}
	return copyObject(obj), nil
}

func (m *MockBigIP) Update(_ context.Context, uri, partition, name string,
	payload map[string]interface{}) error {
	m.Lock()
	defer m.Unlock()
	if err := m.record("update", uri, partition, name, payload); err != nil {
		return err
	}
	obj, ok := m.Objects[uri][key(partition, name)]
	if !ok {
		return resource.NewDeviceError(404, fmt.Sprintf("%s not found", key(partition, name)))
	}
	update := copyObject(payload)
	expand(uri, update)
	for k, v := range update {
		obj[k] = v
	}
	return nil
}

func (m *MockBigIP) Delete(_ context.Context, uri, partition, name string) error {
	m.Lock()
	defer m.Unlock()
	if err := m.record("delete", uri, partition, name, nil); err != nil {
		return err
	}
	k := key(partition, name)
	if _, ok := m.Objects[uri][k]; !ok {
		return resource.NewDeviceError(404, fmt.Sprintf("%s not found", k))
	}
	delete(m.Objects[uri], k)
	return nil
}

// List returns the objects under uri in name order, limited to partition
// when it is not empty.
func (m *MockBigIP) List(_ context.Context, uri, partition string, _ bool) ([]map[string]interface{}, error) {
	m.Lock()
	defer m.Unlock()
	if err := m.record("list", uri, partition, "", nil); err != nil {
		return nil, err
	}
	var keys []string
	for k, obj := range m.Objects[uri] {
		if partition == "" || obj["partition"] == partition {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	items := make([]map[string]interface{}, 0, len(keys))
	for _, k := range keys {
		items = append(items, copyObject(m.Objects[uri][k]))
	}
	return items, nil
}

// Get answers auth/partition/<name> with the partition's default route
// domain.
func (m *MockBigIP) Get(_ context.Context, path string) (map[string]interface{}, error) {
	m.Lock()
	defer m.Unlock()
	if err := m.record("get", path, "", "", nil); err != nil {
		return nil, err
	}
	if name := strings.TrimPrefix(path, "auth/partition/"); name != path {
		if rd, ok := m.Partitions[name]; ok {
			return map[string]interface{}{"name": name, "defaultRouteDomain": float64(rd)}, nil
		}
	}
	return nil, resource.NewDeviceError(404, fmt.Sprintf("%s not found", path))
}
