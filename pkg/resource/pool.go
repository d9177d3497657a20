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
	"regexp"
	"sort"
	"strings"
)

var (
	KindPool = &Kind{Name: "Pool", URI: "ltm/pool", equal: poolEqual}
	// members are deployed through their pool's membersReference
	KindPoolMember = &Kind{Name: "PoolMember", equal: poolMemberEqual}
)

var poolFields = []field{
	{"loadBalancingMode", "round-robin"},
	{"description", nil},
	{"monitor", "default"},
}

var poolMemberFields = []field{
	{"ratio", float64(1)},
	{"connectionLimit", float64(0)},
	{"priorityGroup", float64(0)},
	{"session", "user-enabled"},
	{"description", nil},
}

var poolMemberProperties = []string{
	"name", "partition", "ratio", "connectionLimit",
	"priorityGroup", "session", "description",
}

// <address>%<rd> followed by ':' (IPv4) or '.' (IPv6) and the port
var memberNameRE = regexp.MustCompile(`^(.*:?)%(\d+)[\.|\:](\d+)$`)

func newPool(name, partition string, props map[string]interface{}, members []*Resource) (*Resource, error) {
	r, err := newResource(KindPool, name, partition)
	if err != nil {
		return nil, err
	}
	r.setFields(props, poolFields)

	items := make([]interface{}, 0, len(members))
	for _, m := range members {
		items = append(items, m.data)
	}
	sortByName(items)
	r.data["membersReference"] = map[string]interface{}{
		"isSubcollection": true,
		"items":           items,
	}
	r.setMetadata(props)
	return r, nil
}

// NewPool builds the canonical pool of a declaration. Member names are
// derived from address and port in the partition's default route domain.
func NewPool(p Pool, partition string, defaultRouteDomain int) (*Resource, error) {
	props, err := toDoc(p)
	if err != nil {
		return nil, err
	}
	delete(props, "members")
	delete(props, "monitors")
	if len(p.MonitorNames) > 0 {
		monitors := append([]string(nil), p.MonitorNames...)
		sort.Strings(monitors)
		props["monitor"] = strings.Join(monitors, " and ")
	}

	members := make([]*Resource, 0, len(p.Members))
	for _, m := range p.Members {
		member, err := NewPoolMember(m, partition, defaultRouteDomain)
		if err != nil {
			return nil, fmt.Errorf("pool %s: %v", p.Name, err)
		}
		members = append(members, member)
	}
	return newPool(p.Name, partition, props, members)
}

// PoolFromDevice builds a pool from its REST representation, read with
// expanded subcollections.
func PoolFromDevice(obj map[string]interface{}) (*Resource, error) {
	props, err := normalize(obj)
	if err != nil {
		return nil, err
	}
	name := stringValue(props, "name")
	partition := stringValue(props, "partition")

	var members []*Resource
	for _, item := range listValue(mapValue(props, "membersReference"), "items") {
		mp, _ := item.(map[string]interface{})
		member, err := newPoolMember(stringValue(mp, "name"), partition, mp)
		if err != nil {
			return nil, fmt.Errorf("pool %s: %v", name, err)
		}
		members = append(members, member)
	}
	return newPool(name, partition, props, members)
}

func newPoolMember(name, partition string, props map[string]interface{}) (*Resource, error) {
	r, err := newResource(KindPoolMember, name, partition)
	if err != nil {
		return nil, err
	}
	r.setFields(props, poolMemberFields)
	return r, nil
}

// NewPoolMember builds a member named <ip>%<rd>:<port>, or <ip>%<rd>.<port>
// for IPv6.
func NewPoolMember(m Member, partition string, defaultRouteDomain int) (*Resource, error) {
	if m.Address == "" || m.Port == 0 {
		return nil, fmt.Errorf("pool member definition must contain address and port")
	}
	addr, ip, _ := NormalizeAddressWithRouteDomain(m.Address, defaultRouteDomain)
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return nil, fmt.Errorf("invalid pool member address %q", m.Address)
	}
	format := "%s:%d"
	if parsed.To4() == nil {
		format = "%s.%d"
	}
	props, err := toDoc(m)
	if err != nil {
		return nil, err
	}
	return newPoolMember(fmt.Sprintf(format, addr, m.Port), partition, props)
}

// PoolMembers returns the members of a pool.
func PoolMembers(pool *Resource) []*Resource {
	var members []*Resource
	for _, item := range listValue(mapValue(pool.data, "membersReference"), "items") {
		mp, _ := item.(map[string]interface{})
		members = append(members, &Resource{kind: KindPoolMember, data: mp})
	}
	return members
}

// PoolMonitors lists the monitor paths of a pool's monitor rule.
func PoolMonitors(pool *Resource) []string {
	return splitMonitorRule(stringValue(pool.data, "monitor"))
}

func splitMonitorRule(rule string) []string {
	var monitors []string
	for _, m := range strings.Split(rule, " and ") {
		if m = strings.TrimSpace(m); m != "" {
			monitors = append(monitors, m)
		}
	}
	sort.Strings(monitors)
	return monitors
}

// MemberAddress returns the node address, <ip>%<rd>, of a member name.
func MemberAddress(memberName string) string {
	if m := memberNameRE.FindStringSubmatch(memberName); m != nil {
		return m[1] + "%" + m[2]
	}
	sep := ":"
	if strings.Count(memberName, ":") > 1 {
		sep = "."
	}
	if i := strings.LastIndex(memberName, sep); i > 0 {
		return memberName[:i]
	}
	return memberName
}

func poolEqual(a, b *Resource) bool {
	if !propertiesEqual(a.data, b.data, "name", "partition", "loadBalancingMode", "description") {
		return false
	}
	am, bm := PoolMembers(a), PoolMembers(b)
	if len(am) != len(bm) {
		return false
	}
	byName := make(map[string]*Resource, len(bm))
	for _, m := range bm {
		byName[m.Name()] = m
	}
	for _, m := range am {
		other, ok := byName[m.Name()]
		if !ok || !m.Equal(other) {
			return false
		}
	}

	am1, bm1 := PoolMonitors(a), PoolMonitors(b)
	if len(am1) != len(bm1) {
		return false
	}
	for i := range am1 {
		if am1[i] != bm1[i] {
			return false
		}
	}
	return true
}

// An operational session reported by a monitor is not a difference.
func poolMemberEqual(a, b *Resource) bool {
	for _, k := range poolMemberProperties {
		if propertiesEqual(a.data, b.data, k) {
			continue
		}
		if k == "session" &&
			(strings.Contains(stringValue(a.data, k), "monitor") ||
				strings.Contains(stringValue(b.data, k), "monitor")) {
			continue
		}
		return false
	}
	return true
}
