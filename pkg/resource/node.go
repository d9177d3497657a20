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
	"fmt"
	"strings"
)

var KindNode = &Kind{
	Name:       "Node",
	URI:        "ltm/node",
	equal:      nodeEqual,
	trimUpdate: func(p map[string]interface{}) { delete(p, "address") },
}

var nodeFields = []field{
	{"address", nil},
	{"state", nil},
	{"session", nil},
}

func newNode(name, partition string, defaultRouteDomain int, props map[string]interface{}) (*Resource, error) {
	r, err := newResource(KindNode, name, partition)
	if err != nil {
		return nil, err
	}
	r.defaultRouteDomain = defaultRouteDomain
	r.setFields(props, nodeFields)
	return r, nil
}

// NodeFromDevice builds a node from its REST representation.
func NodeFromDevice(obj map[string]interface{}, defaultRouteDomain int) (*Resource, error) {
	props, err := normalize(obj)
	if err != nil {
		return nil, err
	}
	return newNode(stringValue(props, "name"), stringValue(props, "partition"),
		defaultRouteDomain, props)
}

// NewDesiredNode is an existing node that pool members still use: enabled
// and marked up.
func NewDesiredNode(existing *Resource, defaultRouteDomain int) (*Resource, error) {
	if existing.kind != KindNode {
		return nil, fmt.Errorf("%s is not a node", existing.FullPath())
	}
	addr, _, _ := NormalizeAddressWithRouteDomain(
		stringValue(existing.data, "address"), defaultRouteDomain)
	return newNode(existing.Name(), existing.Partition(), defaultRouteDomain,
		map[string]interface{}{
			"address": addr,
			"state":   "user-up",
			"session": "user-enabled",
		})
}

// NodeAddress returns the node address in <ip>%<rd> form.
func NodeAddress(node *Resource, defaultRouteDomain int) string {
	addr, _, _ := NormalizeAddressWithRouteDomain(
		stringValue(node.data, "address"), defaultRouteDomain)
	return addr
}

// A node equals another with the same address when the other is up and
// enabled.
func nodeEqual(a, b *Resource) bool {
	if !propertiesEqual(a.data, b.data, "name", "partition") {
		return false
	}
	if NodeAddress(a, a.defaultRouteDomain) != NodeAddress(b, a.defaultRouteDomain) {
		return false
	}
	state := stringValue(b.data, "state")
	if state != "up" && state != "unchecked" {
		return false
	}
	return strings.Contains(stringValue(b.data, "session"), "enabled")
}
