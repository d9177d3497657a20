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
	"strings"
)

// Health monitor kinds, keyed by the declared monitor type.
var (
	KindHTTPMonitor  = &Kind{Name: "HTTPMonitor", URI: "ltm/monitor/http"}
	KindHTTPSMonitor = &Kind{Name: "HTTPSMonitor", URI: "ltm/monitor/https"}
	KindTCPMonitor   = &Kind{Name: "TCPMonitor", URI: "ltm/monitor/tcp"}
	KindICMPMonitor  = &Kind{Name: "ICMPMonitor", URI: "ltm/monitor/gateway-icmp"}
	KindUDPMonitor   = &Kind{Name: "UDPMonitor", URI: "ltm/monitor/udp"}

	MonitorKinds = map[string]*Kind{
		"http":  KindHTTPMonitor,
		"https": KindHTTPSMonitor,
		"tcp":   KindTCPMonitor,
		"icmp":  KindICMPMonitor,
		"udp":   KindUDPMonitor,
	}

	// MonitorTypes is the order monitors are processed in.
	MonitorTypes = []string{"http", "https", "tcp", "icmp", "udp"}
)

var monitorFields = []field{
	{"description", nil},
	{"interval", float64(5)},
	{"timeout", float64(16)},
}

var (
	httpMonitorFields = []field{
		{"send", `GET /\r\n`},
		{"recv", ""},
	}
	udpMonitorFields = []field{
		{"send", ""},
		{"recv", ""},
	}
)

func newMonitor(kind *Kind, name, partition string, props map[string]interface{}, validate bool) (*Resource, error) {
	r, err := newResource(kind, name, partition)
	if err != nil {
		return nil, err
	}
	r.setFields(props, monitorFields)
	switch kind {
	case KindHTTPMonitor, KindHTTPSMonitor:
		r.setFields(props, httpMonitorFields)
	case KindUDPMonitor:
		r.setFields(props, udpMonitorFields)
	}

	interval, _ := r.data["interval"].(float64)
	timeout, _ := r.data["timeout"].(float64)
	if validate && interval >= timeout {
		return nil, fmt.Errorf("Health Monitor interval (%v) must be less than timeout (%v)",
			interval, timeout)
	}
	return r, nil
}

// NewMonitor builds the canonical health monitor of a declaration.
func NewMonitor(m Monitor, partition string) (*Resource, error) {
	kind, ok := MonitorKinds[strings.ToLower(m.Type)]
	if !ok {
		return nil, fmt.Errorf("monitor %s: unsupported type %q", m.Name, m.Type)
	}
	props, err := toDoc(m)
	if err != nil {
		return nil, err
	}
	delete(props, "type")
	return newMonitor(kind, m.Name, partition, props, true)
}

// MonitorFromDevice builds a monitor of the given type from its REST
// representation. Legacy UDP monitors with an interval not below the
// timeout are accepted as they are.
func MonitorFromDevice(monitorType string, obj map[string]interface{}) (*Resource, error) {
	kind, ok := MonitorKinds[monitorType]
	if !ok {
		return nil, fmt.Errorf("unsupported monitor type %q", monitorType)
	}
	props, err := normalize(obj)
	if err != nil {
		return nil, err
	}
	return newMonitor(kind, stringValue(props, "name"), stringValue(props, "partition"),
		props, kind != KindUDPMonitor)
}

// IsMonitor reports whether r is one of the health monitor kinds.
func IsMonitor(r *Resource) bool {
	for _, k := range MonitorKinds {
		if r.kind == k {
			return true
		}
	}
	return false
}
