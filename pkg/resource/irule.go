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

import "strings"

var KindIRule = &Kind{Name: "IRule", URI: "ltm/rule", equal: iruleEqual}

func newIRule(name, partition string, props map[string]interface{}) (*Resource, error) {
	r, err := newResource(KindIRule, name, partition)
	if err != nil {
		return nil, err
	}
	r.data["apiAnonymous"] = strings.TrimSpace(stringValue(props, "apiAnonymous"))
	r.setMetadata(props)
	return r, nil
}

// NewIRule builds the canonical iRule of a declaration.
func NewIRule(ir IRule, partition string) (*Resource, error) {
	props, err := toDoc(ir)
	if err != nil {
		return nil, err
	}
	return newIRule(ir.Name, partition, props)
}

func IRuleFromDevice(obj map[string]interface{}) (*Resource, error) {
	props, err := normalize(obj)
	if err != nil {
		return nil, err
	}
	return newIRule(stringValue(props, "name"), stringValue(props, "partition"), props)
}

// IRuleCode returns the TCL body of an iRule.
func IRuleCode(r *Resource) string {
	return stringValue(r.data, "apiAnonymous")
}

func iruleEqual(a, b *Resource) bool {
	return propertiesEqual(a.data, b.data, "name", "partition", "apiAnonymous")
}
