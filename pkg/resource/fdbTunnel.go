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
	"reflect"
)

var KindFDBTunnel = &Kind{Name: "FDBTunnel", URI: "net/fdb/tunnel", equal: fdbTunnelEqual}

func newFDBTunnel(name, partition string, defaultRouteDomain int, records []interface{}) (*Resource, error) {
	r, err := newResource(KindFDBTunnel, name, partition)
	if err != nil {
		return nil, err
	}
	r.defaultRouteDomain = defaultRouteDomain
	recs := make([]interface{}, 0, len(records))
	for _, rec := range records {
		rm, _ := rec.(map[string]interface{})
		name := stringValue(rm, "name")
		if name == "" {
			return nil, fmt.Errorf("tunnel %s: record must have a name", r.Name())
		}
		endpoint, _, _ := NormalizeAddressWithRouteDomain(stringValue(rm, "endpoint"), defaultRouteDomain)
		recs = append(recs, map[string]interface{}{
			"name":     name,
			"endpoint": endpoint,
		})
	}
	r.data["records"] = recs
	return r, nil
}

// NewFDBTunnel builds an FDB tunnel whose record endpoints carry the
// default route domain when they have none.
func NewFDBTunnel(t FDBTunnel, partition string, defaultRouteDomain int) (*Resource, error) {
	props, err := toDoc(t)
	if err != nil {
		return nil, err
	}
	return newFDBTunnel(t.Name, partition, defaultRouteDomain, listValue(props, "records"))
}

// FDBTunnelFromDevice builds a tunnel from its REST representation with its
// records.
func FDBTunnelFromDevice(obj map[string]interface{}, defaultRouteDomain int) (*Resource, error) {
	props, err := normalize(obj)
	if err != nil {
		return nil, err
	}
	return newFDBTunnel(stringValue(props, "name"), stringValue(props, "partition"),
		defaultRouteDomain, listValue(props, "records"))
}

// IPv4ToMac derives the fake MAC of a VXLAN endpoint: 0a:0a followed by the
// four address bytes.
func IPv4ToMac(addr string) (string, error) {
	ip := net.ParseIP(addr).To4()
	if ip == nil {
		return "", fmt.Errorf("invalid IPv4 address %q", addr)
	}
	return fmt.Sprintf("0a:0a:%02x:%02x:%02x:%02x", ip[0], ip[1], ip[2], ip[3]), nil
}

// Records are compared regardless of order.
func fdbTunnelEqual(a, b *Resource) bool {
	if !propertiesEqual(a.data, b.data, "name", "partition") {
		return false
	}
	ar, br := listValue(a.data, "records"), listValue(b.data, "records")
	if len(ar) != len(br) {
		return false
	}
	for _, rec := range ar {
		found := false
		for _, other := range br {
			if reflect.DeepEqual(rec, other) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
