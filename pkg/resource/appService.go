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
	"strings"

	"github.com/F5Networks/f5-cccl-go/pkg/merge"
)

var KindApplicationService = &Kind{
	Name:  "ApplicationService",
	URI:   "sys/application/service",
	equal: appServiceEqual,
	trimUpdate: func(p map[string]interface{}) {
		p["executeAction"] = "definition"
	},
}

var appServiceOptions = []string{
	"description",
	"inheritedTrafficGroup",
	"inheritedDevicegroup",
	"trafficGroup",
	"deviceGroup",
}

func newAppService(name, partition string, props map[string]interface{}) (*Resource, error) {
	r, err := newResource(KindApplicationService, name, partition)
	if err != nil {
		return nil, err
	}
	if opts := mapValue(props, "options"); opts != nil {
		for k, v := range opts {
			r.data[k] = merge.DeepCopy(v)
		}
	}
	for _, opt := range appServiceOptions {
		if v, ok := props[opt]; ok {
			r.data[opt] = merge.DeepCopy(v)
		}
	}
	r.data["template"] = props["template"]
	return r, nil
}

// NewAppService builds the canonical iApp application service of a
// declaration: variables become name/value pairs and the pool member table
// is expanded to one row per member.
func NewAppService(app IApp, partition string) (*Resource, error) {
	props, err := toDoc(app)
	if err != nil {
		return nil, err
	}
	r, err := newAppService(app.Name, partition, props)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(app.Variables))
	for k := range app.Variables {
		names = append(names, k)
	}
	sort.Strings(names)
	variables := make([]interface{}, 0, len(names))
	for _, k := range names {
		variables = append(variables, map[string]interface{}{
			"name":  k,
			"value": app.Variables[k],
		})
	}
	r.data["variables"] = variables

	tables, err := appServiceTables(app)
	if err != nil {
		return nil, fmt.Errorf("iapp %s: %v", app.Name, err)
	}
	r.data["tables"] = tables
	return r, nil
}

func appServiceTables(app IApp) ([]interface{}, error) {
	tables := []interface{}{}
	if pmt := app.PoolMemberTable; pmt != nil {
		columnNames := make([]interface{}, 0, len(pmt.Columns))
		for _, col := range pmt.Columns {
			columnNames = append(columnNames, col.Name)
		}
		rows := make([]interface{}, 0, len(pmt.Members))
		for _, m := range pmt.Members {
			row := []interface{}{}
			for _, col := range pmt.Columns {
				switch {
				case col.Value != "":
					row = append(row, col.Value)
				case col.Kind == "IPAddress":
					row = append(row, m.Address)
				case col.Kind == "Port":
					row = append(row, strconv.Itoa(int(m.Port)))
				case col.Kind != "":
					return nil, fmt.Errorf("unknown pool member column kind %q", col.Kind)
				}
			}
			rows = append(rows, map[string]interface{}{"row": row})
		}
		tables = append(tables, map[string]interface{}{
			"name":        pmt.Name,
			"columnNames": columnNames,
			"rows":        rows,
		})
	}

	names := make([]string, 0, len(app.Tables))
	for k := range app.Tables {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, name := range names {
		t := app.Tables[name]
		columnNames := make([]interface{}, 0, len(t.Columns))
		for _, c := range t.Columns {
			columnNames = append(columnNames, c)
		}
		rows := make([]interface{}, 0, len(t.Rows))
		for _, row := range t.Rows {
			cells := make([]interface{}, 0, len(row))
			for _, c := range row {
				cells = append(cells, c)
			}
			rows = append(rows, map[string]interface{}{"row": cells})
		}
		tables = append(tables, map[string]interface{}{
			"columnNames": columnNames,
			"name":        name,
			"rows":        rows,
		})
	}
	return tables, nil
}

// AppServiceFromDevice builds an application service from its REST
// representation. Encrypted flags are dropped from the variables and tables
// without rows get an empty row list.
func AppServiceFromDevice(obj map[string]interface{}) (*Resource, error) {
	props, err := normalize(obj)
	if err != nil {
		return nil, err
	}
	r, err := newAppService(stringValue(props, "name"), stringValue(props, "partition"), props)
	if err != nil {
		return nil, err
	}

	variables := listValue(props, "variables")
	if variables == nil {
		variables = []interface{}{}
	}
	for _, v := range variables {
		if vm, ok := v.(map[string]interface{}); ok {
			delete(vm, "encrypted")
		}
	}
	r.data["variables"] = variables

	tables := listValue(props, "tables")
	if tables == nil {
		tables = []interface{}{}
	}
	for _, t := range tables {
		if tm, ok := t.(map[string]interface{}); ok {
			if _, ok := tm["rows"]; !ok {
				tm["rows"] = []interface{}{}
			}
		}
	}
	r.data["tables"] = tables
	return r, nil
}

// The device may report more variables and tables than were declared.
func appServiceEqual(a, b *Resource) bool {
	if !containsAll(listValue(a.data, "variables"), listValue(b.data, "variables")) {
		return false
	}
	if !containsAll(listValue(a.data, "tables"), listValue(b.data, "tables")) {
		return false
	}
	for k, v := range a.data {
		switch k {
		case "variables", "tables", "metadata":
			continue
		}
		if reflect.DeepEqual(v, b.data[k]) {
			continue
		}
		// appsvcs_integration templates rewrite the description
		if k == "description" &&
			strings.Contains(stringValue(a.data, "template"), "appsvcs_integration") {
			continue
		}
		return false
	}
	return true
}

// containsAll reports whether every element of sub is in list.
func containsAll(list, sub []interface{}) bool {
	for _, s := range sub {
		found := false
		for _, l := range list {
			if reflect.DeepEqual(l, s) {
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
