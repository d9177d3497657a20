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

var KindVirtualAddress = &Kind{
	Name:       "VirtualAddress",
	URI:        "ltm/virtual-address",
	trimUpdate: func(p map[string]interface{}) { delete(p, "address") },
}

var virtualAddressFields = []field{
	{"address", nil},
	{"autoDelete", "false"},
	{"enabled", nil},
	{"description", nil},
	{"trafficGroup", "/Common/traffic-group-1"},
}

func newVirtualAddress(name, partition string, props map[string]interface{}) (*Resource, error) {
	r, err := newResource(KindVirtualAddress, name, partition)
	if err != nil {
		return nil, err
	}
	r.setFields(props, virtualAddressFields)
	r.setMetadata(props)
	return r, nil
}

// NewVirtualAddress builds the canonical virtual address of a declaration.
func NewVirtualAddress(va VirtualAddress, partition string) (*Resource, error) {
	props, err := toDoc(va)
	if err != nil {
		return nil, err
	}
	return newVirtualAddress(va.Name, partition, props)
}

func VirtualAddressFromDevice(obj map[string]interface{}) (*Resource, error) {
	props, err := normalize(obj)
	if err != nil {
		return nil, err
	}
	return newVirtualAddress(stringValue(props, "name"), stringValue(props, "partition"), props)
}

// VirtualAddressEnabled returns the enabled property, "yes" or "no".
func VirtualAddressEnabled(r *Resource) string {
	return stringValue(r.data, "enabled")
}
