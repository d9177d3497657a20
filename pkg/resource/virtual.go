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
	"regexp"
	"sort"
)

var KindVirtual = &Kind{Name: "VirtualServer", URI: "ltm/virtual"}

var (
	ipv4DestRE = regexp.MustCompile(`\/([a-zA-Z][\w_\.-]+)\/((?:[a-zA-Z0-9_\-\.]+)(?:%\d+)?):(\d+)$`)
	ipv6DestRE = regexp.MustCompile(`\/([a-zA-Z][\w_\.-]+)\/((?:[a-fA-F0-9:]+)(?:%\d+)?)\.(\d+)$`)
)

var virtualFields = []field{
	{"description", nil},
	{"destination", nil},
	{"source", nil},
	{"ipProtocol", nil},
	{"enabled", nil},
	{"disabled", nil},
	{"vlansEnabled", nil},
	{"vlansDisabled", nil},
	{"vlans", []interface{}{}},
	{"sourceAddressTranslation", map[string]interface{}{}},
	{"connectionLimit", float64(0)},
	{"pool", nil},
	{"policies", []interface{}{}},
	{"profiles", []interface{}{}},
	{"rules", []interface{}{}},
}

func newVirtual(name, partition string, props map[string]interface{}) (*Resource, error) {
	r, err := newResource(KindVirtual, name, partition)
	if err != nil {
		return nil, err
	}
	r.setFields(props, virtualFields)

	vlans := listValue(r.data, "vlans")
	sort.SliceStable(vlans, func(i, j int) bool {
		return fmt.Sprint(vlans[i]) < fmt.Sprint(vlans[j])
	})
	profiles := make([]interface{}, 0, len(listValue(r.data, "profiles")))
	for _, p := range listValue(r.data, "profiles") {
		pm, _ := p.(map[string]interface{})
		prof, err := profileDoc(pm)
		if err != nil {
			return nil, fmt.Errorf("virtual %s: %v", name, err)
		}
		profiles = append(profiles, prof)
	}
	sortByName(profiles)
	r.data["profiles"] = profiles
	sortByName(listValue(r.data, "policies"))

	r.setMetadata(props)
	return r, nil
}

// NewVirtual builds the canonical virtual server of a declaration. The
// enabled flags become the mutually exclusive pairs the device uses.
func NewVirtual(v Virtual, partition string) (*Resource, error) {
	props, err := toDoc(v)
	if err != nil {
		return nil, err
	}
	delete(props, "enabled")
	delete(props, "vlansEnabled")
	if v.Enabled == nil || *v.Enabled {
		props["enabled"] = true
	} else {
		props["disabled"] = true
	}
	if v.VlansEnabled != nil && *v.VlansEnabled {
		props["vlansEnabled"] = true
	} else {
		props["vlansDisabled"] = true
	}
	return newVirtual(v.Name, partition, props)
}

// VirtualFromDevice builds a virtual server from its REST representation,
// read with expanded subcollections.
func VirtualFromDevice(obj map[string]interface{}) (*Resource, error) {
	props, err := normalize(obj)
	if err != nil {
		return nil, err
	}
	if sat := mapValue(props, "sourceAddressTranslation"); sat != nil {
		delete(sat, "poolReference")
	}

	profiles := []interface{}{}
	for _, item := range listValue(mapValue(props, "profilesReference"), "items") {
		pm, _ := item.(map[string]interface{})
		prof, err := profileDoc(pm)
		if err != nil {
			return nil, fmt.Errorf("virtual %s: failed to create profile: %v",
				stringValue(props, "name"), err)
		}
		profiles = append(profiles, prof)
	}
	props["profiles"] = profiles

	policies := []interface{}{}
	for _, item := range listValue(mapValue(props, "policiesReference"), "items") {
		pm, _ := item.(map[string]interface{})
		policies = append(policies, map[string]interface{}{
			"name":      pm["name"],
			"partition": pm["partition"],
		})
	}
	props["policies"] = policies

	return newVirtual(stringValue(props, "name"), stringValue(props, "partition"), props)
}

// VirtualDestination splits a virtual server destination
// (/<partition>/<address>[%<rd>]:<port>, "." before the port for IPv6).
// ok is false for an unexpected format.
func VirtualDestination(r *Resource) (partition, address, port string, ok bool) {
	dest := stringValue(r.data, "destination")
	for _, re := range []*regexp.Regexp{ipv4DestRE, ipv6DestRE} {
		if m := re.FindStringSubmatch(dest); m != nil {
			return m[1], m[2], m[3], true
		}
	}
	return "", "", "", false
}
