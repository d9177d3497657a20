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
	"reflect"
	"sort"
	"strconv"

	log "github.com/F5Networks/f5-cccl-go/pkg/vlogger"
)

var KindPolicy = &Kind{Name: "Policy", URI: "ltm/policy", equal: policyEqual}

// Comparison and match options copied to a condition when set.
var conditionOptions = []string{
	"not", "missing", "caseSensitive",
	"contains", "equals", "startsWith", "endsWith", "matches",
}

func newPolicy(name, partition string, props map[string]interface{}, rules []interface{}) (*Resource, error) {
	r, err := newResource(KindPolicy, name, partition)
	if err != nil {
		return nil, err
	}
	r.setFields(props, []field{{"strategy", "/Common/first-match"}})

	built := make([]interface{}, 0, len(rules))
	for i, rule := range rules {
		rm, _ := rule.(map[string]interface{})
		br, err := buildRule(partition, i, rm)
		if err != nil {
			return nil, fmt.Errorf("policy %s: %v", name, err)
		}
		built = append(built, br)
	}
	r.data["rules"] = built

	r.data["legacy"] = true
	r.data["controls"] = []interface{}{"forwarding"}
	r.data["requires"] = []interface{}{"http"}
	r.setMetadata(props)
	return r, nil
}

// NewPolicy builds the canonical L7 policy of a declaration. Rules are
// evaluated in list order.
func NewPolicy(p Policy, partition string) (*Resource, error) {
	props, err := toDoc(p)
	if err != nil {
		return nil, err
	}
	return newPolicy(p.Name, partition, props, listValue(props, "rules"))
}

// PolicyFromDevice builds a policy from its REST representation, read with
// expanded subcollections. Rules are ordered by their ordinal.
func PolicyFromDevice(obj map[string]interface{}) (*Resource, error) {
	props, err := normalize(obj)
	if err != nil {
		return nil, err
	}
	rules := listValue(mapValue(props, "rulesReference"), "items")
	sort.SliceStable(rules, func(i, j int) bool {
		a, _ := rules[i].(map[string]interface{})
		b, _ := rules[j].(map[string]interface{})
		ai, _ := a["ordinal"].(float64)
		bi, _ := b["ordinal"].(float64)
		return ai < bi
	})
	flat := make([]interface{}, 0, len(rules))
	for _, rule := range rules {
		rm, _ := rule.(map[string]interface{})
		flat = append(flat, map[string]interface{}{
			"name":       rm["name"],
			"actions":    listValue(mapValue(rm, "actionsReference"), "items"),
			"conditions": listValue(mapValue(rm, "conditionsReference"), "items"),
		})
	}
	return newPolicy(stringValue(props, "name"), stringValue(props, "partition"), props, flat)
}

// PolicyActionPools returns the pools the forward actions of a policy use.
func PolicyActionPools(r *Resource) []string {
	var pools []string
	for _, rule := range listValue(r.data, "rules") {
		rm, _ := rule.(map[string]interface{})
		for _, action := range listValue(rm, "actions") {
			am, _ := action.(map[string]interface{})
			if pool := stringValue(am, "pool"); pool != "" {
				pools = append(pools, pool)
			}
		}
	}
	return pools
}

func buildRule(partition string, ordinal int, rule map[string]interface{}) (map[string]interface{}, error) {
	name := stringValue(rule, "name")
	if name == "" {
		return nil, fmt.Errorf("rule %d must have a name", ordinal)
	}
	doc := map[string]interface{}{
		"name":    name,
		"ordinal": float64(ordinal),
	}
	if partition != "" {
		doc["partition"] = partition
	}

	actions := []interface{}{}
	skipped := 0
	for i, a := range listValue(rule, "actions") {
		am, _ := a.(map[string]interface{})
		action, err := buildAction(strconv.Itoa(i-skipped), am)
		if err != nil {
			log.Debugf("[CCCL] Rule %s: skipping action %d: %v", name, i, err)
			skipped++
			continue
		}
		actions = append(actions, action)
	}
	doc["actions"] = actions

	conditions := []interface{}{}
	skipped = 0
	for i, c := range listValue(rule, "conditions") {
		cm, _ := c.(map[string]interface{})
		condition, err := buildCondition(strconv.Itoa(i-skipped), cm)
		if err != nil {
			log.Debugf("[CCCL] Rule %s: skipping condition %d: %v", name, i, err)
			skipped++
			continue
		}
		conditions = append(conditions, condition)
	}
	doc["conditions"] = conditions
	return doc, nil
}

// buildAction supports forward (to a pool or reset), redirect and
// setVariable actions on requests.
func buildAction(name string, data map[string]interface{}) (map[string]interface{}, error) {
	action := map[string]interface{}{
		"name":    name,
		"request": true,
	}
	switch {
	case truthy(data["forward"]):
		action["forward"] = true
		if pool := stringValue(data, "pool"); pool != "" {
			action["pool"] = pool
		} else if truthy(data["reset"]) {
			action["reset"] = true
		} else {
			return nil, fmt.Errorf("unsupported forward action, must be one of reset or forward to pool")
		}
	case truthy(data["redirect"]):
		action["redirect"] = true
		action["location"] = data["location"]
		action["httpReply"] = true
		if v, ok := data["httpReply"].(bool); ok {
			action["httpReply"] = v
		}
	case truthy(data["setVariable"]):
		action["setVariable"] = true
		action["tmName"] = data["tmName"]
		action["expression"] = data["expression"]
		action["tcl"] = true
	default:
		return nil, fmt.Errorf("unsupported action, must be one of forward, redirect, setVariable or reset")
	}
	return action, nil
}

// buildCondition supports httpHost, httpUri, httpHeader, httpCookie and tcp
// address matches.
func buildCondition(name string, data map[string]interface{}) (map[string]interface{}, error) {
	values := []interface{}{}
	for _, v := range listValue(data, "values") {
		values = append(values, v)
	}
	sort.SliceStable(values, func(i, j int) bool {
		return fmt.Sprint(values[i]) < fmt.Sprint(values[j])
	})

	cond := map[string]interface{}{
		"name":    name,
		"request": true,
		"values":  values,
	}
	switch {
	case truthy(data["httpHost"]):
		cond["httpHost"] = true
		cond["host"] = true
	case truthy(data["httpUri"]):
		cond["httpUri"] = true
		switch {
		case truthy(data["path"]):
			cond["path"] = true
		case truthy(data["pathSegment"]):
			cond["pathSegment"] = true
			cond["index"] = float64(1)
			if idx, ok := data["index"].(float64); ok {
				cond["index"] = idx
			}
		case truthy(data["extension"]):
			cond["extension"] = true
		case truthy(data["host"]):
			cond["host"] = true
		default:
			return nil, fmt.Errorf("must specify one of host, path, pathSegment, or extension for HTTP URI matching condition")
		}
	case truthy(data["httpHeader"]):
		cond["httpHeader"] = true
		cond["tmName"] = data["tmName"]
	case truthy(data["httpCookie"]):
		cond["httpCookie"] = true
		cond["tmName"] = data["tmName"]
	case truthy(data["tcp"]):
		cond["tcp"] = true
		if truthy(data["external"]) {
			cond["external"] = true
		} else if truthy(data["internal"]) {
			cond["internal"] = true
		}
		if truthy(data["matches"]) {
			cond["matches"] = true
		}
		if !truthy(data["address"]) {
			return nil, fmt.Errorf("must specify address for TCP matching condition")
		}
		cond["address"] = true
	default:
		return nil, fmt.Errorf("invalid match type must be one of: httpHost, httpUri, httpHeader, httpCookie or tcp")
	}

	for _, opt := range conditionOptions {
		if v, ok := data[opt]; ok && truthy(v) {
			cond[opt] = v
		}
	}
	return cond, nil
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case []interface{}:
		return len(t) > 0
	case map[string]interface{}:
		return len(t) > 0
	}
	return true
}

// Rules are compared in order, on name, ordinal, actions and conditions.
func policyEqual(a, b *Resource) bool {
	if !propertiesEqual(a.data, b.data, "name", "partition", "strategy") {
		return false
	}
	ar, br := listValue(a.data, "rules"), listValue(b.data, "rules")
	if len(ar) != len(br) {
		return false
	}
	for i := range ar {
		am, _ := ar[i].(map[string]interface{})
		bm, _ := br[i].(map[string]interface{})
		for _, k := range []string{"name", "ordinal", "actions", "conditions"} {
			if !reflect.DeepEqual(am[k], bm[k]) {
				return false
			}
		}
	}
	return true
}
