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

var KindInternalDataGroup = &Kind{
	Name:  "InternalDataGroup",
	URI:   "ltm/data-group/internal",
	equal: dataGroupEqual,
	// the type of a data group cannot change
	trimUpdate: func(p map[string]interface{}) { delete(p, "type") },
}

func newInternalDataGroup(name, partition string, props map[string]interface{}) (*Resource, error) {
	r, err := newResource(KindInternalDataGroup, name, partition)
	if err != nil {
		return nil, err
	}
	r.setFields(props, []field{{"type", ""}, {"records", []interface{}{}}})
	sortByName(listValue(r.data, "records"))
	r.setMetadata(props)
	return r, nil
}

// NewInternalDataGroup builds the canonical data group of a declaration,
// records ordered by name.
func NewInternalDataGroup(dg InternalDataGroup, partition string) (*Resource, error) {
	props, err := toDoc(dg)
	if err != nil {
		return nil, err
	}
	return newInternalDataGroup(dg.Name, partition, props)
}

func InternalDataGroupFromDevice(obj map[string]interface{}) (*Resource, error) {
	props, err := normalize(obj)
	if err != nil {
		return nil, err
	}
	return newInternalDataGroup(stringValue(props, "name"), stringValue(props, "partition"), props)
}

func dataGroupEqual(a, b *Resource) bool {
	return propertiesEqual(a.data, b.data, "name", "partition", "type", "records")
}
