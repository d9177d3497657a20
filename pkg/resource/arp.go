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

var KindArp = &Kind{Name: "Arp", URI: "net/arp", equal: arpEqual}

func newArp(name, partition string, props map[string]interface{}) (*Resource, error) {
	r, err := newResource(KindArp, name, partition)
	if err != nil {
		return nil, err
	}
	r.setFields(props, []field{{"ipAddress", nil}, {"macAddress", nil}})
	return r, nil
}

// NewArp builds a static ARP entry.
func NewArp(a Arp, partition string) (*Resource, error) {
	props, err := toDoc(a)
	if err != nil {
		return nil, err
	}
	return newArp(a.Name, partition, props)
}

func ArpFromDevice(obj map[string]interface{}) (*Resource, error) {
	props, err := normalize(obj)
	if err != nil {
		return nil, err
	}
	return newArp(stringValue(props, "name"), stringValue(props, "partition"), props)
}

func arpEqual(a, b *Resource) bool {
	return propertiesEqual(a.data, b.data, "name", "partition", "ipAddress", "macAddress")
}
