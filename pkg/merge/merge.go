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

// Package merge combines a desired document fragment with an existing
// BIG-IP document so that fields the device (or a user) added are kept.
//
// Documents are JSON shaped values as produced by encoding/json decoding
// into interface{}: map[string]interface{}, []interface{}, string, float64,
// bool and nil. Any other Go value is handled as a scalar.
package merge

import (
	"reflect"
)

type kind int

const (
	kindScalar kind = iota
	kindMap
	kindList
)

func kindOf(v interface{}) kind {
	switch v.(type) {
	case map[string]interface{}:
		return kindMap
	case []interface{}:
		return kindList
	default:
		return kindScalar
	}
}

// Merge returns existing with desired merged into it, and whether the
// result differs from existing. Neither argument is modified.
//
//   - differing types or scalars: desired wins
//   - maps: keys are unioned, shared keys are merged recursively
//   - lists of scalars: desired values, then existing values not in desired
//   - lists of maps: entries are matched by their "name" field; desired
//     entries (merged with the existing entry of the same name) come first,
//     then the existing entries whose name is not desired
//   - lists of lists: desired entries, then existing entries that are not
//     equal to any desired entry
func Merge(existing, desired interface{}) (interface{}, bool) {
	merged := merge(DeepCopy(existing), desired)
	return merged, !reflect.DeepEqual(merged, existing)
}

// merge may reuse dst; src is never modified.
func merge(dst, src interface{}) interface{} {
	if kindOf(dst) != kindOf(src) {
		return DeepCopy(src)
	}
	switch d := dst.(type) {
	case map[string]interface{}:
		return mergeMap(d, src.(map[string]interface{}))
	case []interface{}:
		return mergeList(d, src.([]interface{}))
	default:
		return DeepCopy(src)
	}
}

func mergeMap(dst, src map[string]interface{}) map[string]interface{} {
	for key, sv := range src {
		if dv, ok := dst[key]; ok {
			dst[key] = merge(dv, sv)
		} else {
			dst[key] = DeepCopy(sv)
		}
	}
	return dst
}

// The list flavour is decided by the first existing element; the device
// always returns uniform lists.
func mergeList(dst, src []interface{}) []interface{} {
	if len(dst) == 0 {
		return DeepCopy(src).([]interface{})
	}
	switch dst[0].(type) {
	case map[string]interface{}:
		return mergeNamedList(dst, src)
	default:
		return mergeValueList(dst, src)
	}
}

// mergeValueList serves lists of scalars and lists of lists. Existing
// entries already present in src are dropped so repeated merges do not
// grow the list.
func mergeValueList(dst, src []interface{}) []interface{} {
	merged := make([]interface{}, 0, len(src)+len(dst))
	for _, sv := range src {
		merged = append(merged, DeepCopy(sv))
	}
	for _, dv := range dst {
		if !contains(src, dv) {
			merged = append(merged, dv)
		}
	}
	return merged
}

func mergeNamedList(dst, src []interface{}) []interface{} {
	merged := make([]interface{}, 0, len(src)+len(dst))
	used := make([]bool, len(dst))
	var desiredNames []interface{}

	for _, sv := range src {
		name, named := nameOf(sv)
		if !named {
			merged = append(merged, DeepCopy(sv))
			continue
		}
		desiredNames = append(desiredNames, name)
		idx := indexByName(dst, name)
		if idx < 0 || used[idx] {
			merged = append(merged, DeepCopy(sv))
			continue
		}
		used[idx] = true
		merged = append(merged, merge(dst[idx], sv))
	}

	for i, dv := range dst {
		if used[i] {
			continue
		}
		if name, named := nameOf(dv); named {
			if contains(desiredNames, name) {
				continue
			}
		} else if contains(src, dv) {
			continue
		}
		merged = append(merged, dv)
	}
	return merged
}

func nameOf(v interface{}) (interface{}, bool) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, false
	}
	name, ok := m["name"]
	return name, ok
}

// A name of a different type never matches: "1" and 1 are distinct.
func indexByName(list []interface{}, name interface{}) int {
	for i, v := range list {
		if n, ok := nameOf(v); ok && reflect.DeepEqual(n, name) {
			return i
		}
	}
	return -1
}

func contains(list []interface{}, v interface{}) bool {
	for _, lv := range list {
		if reflect.DeepEqual(lv, v) {
			return true
		}
	}
	return false
}

// DeepCopy copies the maps and lists of a JSON shaped document. Scalars are
// returned as is.
func DeepCopy(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = DeepCopy(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = DeepCopy(e)
		}
		return out
	default:
		return v
	}
}
