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
	"net"
)

var KindRoute = &Kind{Name: "Route", URI: "net/route", equal: routeEqual}

var routeFields = []field{
	{"network", nil},
	{"gw", nil},
	{"description", nil},
}

func newRoute(name, partition string, props map[string]interface{}) (*Resource, error) {
	r, err := newResource(KindRoute, name, partition)
	if err != nil {
		return nil, err
	}
	r.setFields(props, routeFields)
	return r, nil
}

// NewRoute builds a static route. The network is <ip>[/<cidr>][%<rd>] or
// "default".
func NewRoute(rt Route, partition string) (*Resource, error) {
	if rt.Network != "default" && rt.Network != "default-inet6" {
		ip, _, _ := SplitIPWithRouteDomainCIDR(rt.Network)
		if net.ParseIP(ip) == nil {
			return nil, fmt.Errorf("route %s: invalid network %q", rt.Name, rt.Network)
		}
	}
	props, err := toDoc(rt)
	if err != nil {
		return nil, err
	}
	return newRoute(rt.Name, partition, props)
}

func RouteFromDevice(obj map[string]interface{}) (*Resource, error) {
	props, err := normalize(obj)
	if err != nil {
		return nil, err
	}
	return newRoute(stringValue(props, "name"), stringValue(props, "partition"), props)
}

// RouteDescription is the description the route was created with.
func RouteDescription(r *Resource) string {
	return stringValue(r.data, "description")
}

func routeEqual(a, b *Resource) bool {
	return propertiesEqual(a.data, b.data, "name", "partition", "network", "gw", "description")
}
