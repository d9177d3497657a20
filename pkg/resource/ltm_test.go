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
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LTM resources", func() {
	Context("pools", func() {
		declared := func() Pool {
			return Pool{
				Name:         "pool1",
				MonitorNames: []string{"/test/mon_tcp", "/test/mon_http"},
				Members: []Member{
					{Address: "10.2.3.4", Port: 80},
					{Address: "2001:db8::1%2", Port: 443},
				},
			}
		}

		It("names members by address, route domain and port", func() {
			pool, err := NewPool(declared(), "test", 0)
			Expect(err).NotTo(HaveOccurred())
			var names []string
			for _, m := range PoolMembers(pool) {
				names = append(names, m.Name())
			}
			Expect(names).To(ConsistOf("10.2.3.4%0:80", "2001:db8::1%2.443"))
			Expect(pool.Get("loadBalancingMode")).To(Equal("round-robin"))
		})

		It("joins monitors in sorted order", func() {
			pool, _ := NewPool(declared(), "test", 0)
			Expect(pool.Get("monitor")).To(Equal("/test/mon_http and /test/mon_tcp"))
			Expect(PoolMonitors(pool)).To(Equal([]string{"/test/mon_http", "/test/mon_tcp"}))

			noMon, _ := NewPool(Pool{Name: "p"}, "test", 0)
			Expect(noMon.Get("monitor")).To(Equal("default"))
		})

		It("rejects members without a port", func() {
			p := declared()
			p.Members = append(p.Members, Member{Address: "10.2.3.5"})
			_, err := NewPool(p, "test", 0)
			Expect(err).To(HaveOccurred())
		})

		It("equals the device pool", func() {
			pool, _ := NewPool(declared(), "test", 0)
			device, err := PoolFromDevice(map[string]interface{}{
				"name":              "pool1",
				"partition":         "test",
				"loadBalancingMode": "round-robin",
				"monitor":           "/test/mon_tcp and /test/mon_http ",
				"membersReference": map[string]interface{}{
					"isSubcollection": true,
					"items": []interface{}{
						map[string]interface{}{
							"name":            "2001:db8::1%2.443",
							"address":         "2001:db8::1%2",
							"ratio":           1,
							"connectionLimit": 0,
							"priorityGroup":   0,
							"session":         "monitor-enabled",
							"state":           "up",
						},
						map[string]interface{}{
							"name":            "10.2.3.4%0:80",
							"address":         "10.2.3.4%0",
							"ratio":           1,
							"connectionLimit": 0,
							"priorityGroup":   0,
							"session":         "user-enabled",
						},
					},
				},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(pool.Equal(device)).To(BeTrue())

			changed := declared()
			changed.Members[0].Ratio = 3
			other, _ := NewPool(changed, "test", 0)
			Expect(other.Equal(device)).To(BeFalse())

			fewer := declared()
			fewer.Members = fewer.Members[:1]
			other, _ = NewPool(fewer, "test", 0)
			Expect(other.Equal(device)).To(BeFalse())

			monitors := declared()
			monitors.MonitorNames = monitors.MonitorNames[:1]
			other, _ = NewPool(monitors, "test", 0)
			Expect(other.Equal(device)).To(BeFalse())
		})

		It("finds node addresses of member names", func() {
			Expect(MemberAddress("10.2.3.4%0:80")).To(Equal("10.2.3.4%0"))
			Expect(MemberAddress("2001:db8::1%2.443")).To(Equal("2001:db8::1%2"))
			Expect(MemberAddress("10.2.3.4:80")).To(Equal("10.2.3.4"))
			Expect(MemberAddress("2001:db8::1.443")).To(Equal("2001:db8::1"))
		})
	})

	Context("virtual servers", func() {
		disabled := false
		declared := func() Virtual {
			return Virtual{
				Name:        "vs1",
				Destination: "/test/10.1.1.1%0:80",
				IpProtocol:  "tcp",
				PoolName:    "/test/pool1",
				Vlans:       []string{"/Common/vlan2", "/Common/vlan1"},
				Profiles: []ProfileRef{
					{Name: "tcp", Partition: "Common"},
					{Name: "http", Partition: "Common", Context: "all"},
				},
				IRules: []string{"/test/rule1"},
			}
		}

		It("translates the enabled flags", func() {
			vs, err := NewVirtual(declared(), "test")
			Expect(err).NotTo(HaveOccurred())
			Expect(vs.Get("enabled")).To(Equal(true))
			Expect(vs.Get("disabled")).To(BeNil())
			Expect(vs.Get("vlansDisabled")).To(Equal(true))
			Expect(vs.Get("vlansEnabled")).To(BeNil())

			v := declared()
			v.Enabled = &disabled
			vs, _ = NewVirtual(v, "test")
			Expect(vs.Get("enabled")).To(BeNil())
			Expect(vs.Get("disabled")).To(Equal(true))
		})

		It("orders vlans and profiles", func() {
			vs, _ := NewVirtual(declared(), "test")
			Expect(vs.Get("vlans")).To(Equal([]interface{}{"/Common/vlan1", "/Common/vlan2"}))
			profiles := vs.Get("profiles").([]interface{})
			Expect(profiles).To(HaveLen(2))
			Expect(profiles[0]).To(Equal(map[string]interface{}{
				"name": "http", "partition": "Common", "context": "all",
			}))
			Expect(profiles[1]).To(HaveKeyWithValue("context", "all"))
		})

		It("equals the device virtual server", func() {
			vs, _ := NewVirtual(declared(), "test")
			device, err := VirtualFromDevice(map[string]interface{}{
				"name":            "vs1",
				"partition":       "test",
				"fullPath":        "/test/vs1",
				"destination":     "/test/10.1.1.1%0:80",
				"ipProtocol":      "tcp",
				"pool":            "/test/pool1",
				"enabled":         true,
				"vlansDisabled":   true,
				"vlans":           []interface{}{"/Common/vlan1", "/Common/vlan2"},
				"connectionLimit": 0,
				"rules":           []interface{}{"/test/rule1"},
				"sourceAddressTranslation": map[string]interface{}{
					"type": "none",
				},
				"profilesReference": map[string]interface{}{
					"items": []interface{}{
						map[string]interface{}{"name": "tcp", "partition": "Common", "context": "all"},
						map[string]interface{}{"name": "http", "partition": "Common", "context": "all"},
					},
				},
			})
			Expect(err).NotTo(HaveOccurred())

			v := declared()
			v.SourceAddrTranslation = &SourceAddrTranslation{Type: "none"}
			vs, _ = NewVirtual(v, "test")
			Expect(vs.Equal(device)).To(BeTrue())

			v.IRules = nil
			vs, _ = NewVirtual(v, "test")
			Expect(vs.Equal(device)).To(BeFalse())
		})

		It("drops the automap pool from source address translation", func() {
			device, err := VirtualFromDevice(map[string]interface{}{
				"name":        "vs1",
				"partition":   "test",
				"destination": "/test/10.1.1.1:80",
				"sourceAddressTranslation": map[string]interface{}{
					"type":          "snat",
					"pool":          "/test/snat",
					"poolReference": map[string]interface{}{"link": "https://localhost/mgmt/tm/ltm/snatpool"},
				},
				"policiesReference": map[string]interface{}{
					"items": []interface{}{
						map[string]interface{}{"name": "pol", "partition": "test", "fullPath": "/test/pol"},
					},
				},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(device.Get("sourceAddressTranslation")).To(Equal(map[string]interface{}{
				"type": "snat", "pool": "/test/snat",
			}))
			Expect(device.Get("policies")).To(Equal([]interface{}{
				map[string]interface{}{"name": "pol", "partition": "test"},
			}))
		})

		It("parses destinations", func() {
			vs, _ := NewVirtual(declared(), "test")
			partition, addr, port, ok := VirtualDestination(vs)
			Expect(ok).To(BeTrue())
			Expect(partition).To(Equal("test"))
			Expect(addr).To(Equal("10.1.1.1%0"))
			Expect(port).To(Equal("80"))

			v := declared()
			v.Destination = "/Common/2001:db8::5.443"
			vs, _ = NewVirtual(v, "test")
			_, addr, port, ok = VirtualDestination(vs)
			Expect(ok).To(BeTrue())
			Expect(addr).To(Equal("2001:db8::5"))
			Expect(port).To(Equal("443"))

			v.Destination = "bogus"
			vs, _ = NewVirtual(v, "test")
			_, _, _, ok = VirtualDestination(vs)
			Expect(ok).To(BeFalse())
		})
	})

	Context("virtual addresses", func() {
		It("fills defaults", func() {
			va, err := NewVirtualAddress(VirtualAddress{Name: "10.1.1.1", Address: "10.1.1.1"}, "test")
			Expect(err).NotTo(HaveOccurred())
			Expect(va.Get("autoDelete")).To(Equal("false"))
			Expect(va.Get("trafficGroup")).To(Equal("/Common/traffic-group-1"))

			device, _ := VirtualAddressFromDevice(map[string]interface{}{
				"name":         "10.1.1.1",
				"partition":    "test",
				"address":      "10.1.1.1",
				"autoDelete":   "false",
				"trafficGroup": "/Common/traffic-group-1",
				"arp":          "enabled",
			})
			Expect(va.Equal(device)).To(BeTrue())
			Expect(VirtualAddressEnabled(device)).To(Equal(""))
		})
	})

	Context("nodes", func() {
		device := func(state, session string) *Resource {
			n, err := NodeFromDevice(map[string]interface{}{
				"name":      "10.2.3.4%0",
				"partition": "test",
				"address":   "10.2.3.4%0",
				"state":     state,
				"session":   session,
			}, 0)
			Expect(err).NotTo(HaveOccurred())
			return n
		}

		It("equals an enabled node that is up", func() {
			existing := device("up", "monitor-enabled")
			desired, err := NewDesiredNode(existing, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(desired.Get("state")).To(Equal("user-up"))
			Expect(desired.Equal(existing)).To(BeTrue())
			Expect(desired.Equal(device("unchecked", "user-enabled"))).To(BeTrue())
		})

		It("differs from a disabled or down node", func() {
			existing := device("user-down", "user-disabled")
			desired, _ := NewDesiredNode(existing, 0)
			Expect(desired.Equal(existing)).To(BeFalse())
			Expect(desired.Equal(device("up", "user-disabled"))).To(BeFalse())
		})

		It("compares addresses in the default route domain", func() {
			n, _ := NodeFromDevice(map[string]interface{}{
				"name": "10.2.3.4", "partition": "test", "address": "10.2.3.4",
			}, 2)
			Expect(NodeAddress(n, 2)).To(Equal("10.2.3.4%2"))
		})
	})

	Context("monitors", func() {
		It("fills type defaults", func() {
			m, err := NewMonitor(Monitor{Name: "mon", Type: "http"}, "test")
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Kind()).To(Equal(KindHTTPMonitor))
			Expect(m.Get("send")).To(Equal(`GET /\r\n`))
			Expect(m.Get("recv")).To(Equal(""))
			Expect(m.Get("interval")).To(Equal(float64(5)))
			Expect(m.Get("timeout")).To(Equal(float64(16)))
			Expect(IsMonitor(m)).To(BeTrue())

			tcp, _ := NewMonitor(Monitor{Name: "mon", Type: "tcp"}, "test")
			Expect(tcp.Get("send")).To(BeNil())
		})

		It("requires the interval below the timeout", func() {
			_, err := NewMonitor(Monitor{Name: "mon", Type: "tcp", Interval: 20, Timeout: 10}, "test")
			Expect(err).To(HaveOccurred())
			_, err = NewMonitor(Monitor{Name: "mon", Type: "bogus"}, "test")
			Expect(err).To(HaveOccurred())
		})

		It("accepts legacy udp monitors from the device", func() {
			m, err := MonitorFromDevice("udp", map[string]interface{}{
				"name": "mon", "partition": "test", "interval": 30, "timeout": 10,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Get("send")).To(Equal(""))

			_, err = MonitorFromDevice("tcp", map[string]interface{}{
				"name": "mon", "partition": "test", "interval": 30, "timeout": 10,
			})
			Expect(err).To(HaveOccurred())
		})

		It("equals the device monitor", func() {
			m, _ := NewMonitor(Monitor{Name: "mon", Type: "https", Interval: 10, Timeout: 31}, "test")
			device, _ := MonitorFromDevice("https", map[string]interface{}{
				"name": "mon", "partition": "test", "interval": 10, "timeout": 31,
				"send": `GET /\r\n`, "defaultsFrom": "/Common/https",
			})
			Expect(m.Equal(device)).To(BeTrue())
		})
	})

	Context("iRules and data groups", func() {
		It("trims iRule code", func() {
			ir, _ := NewIRule(IRule{Name: "r", Code: "\n when HTTP_REQUEST {}\n"}, "test")
			device, _ := IRuleFromDevice(map[string]interface{}{
				"name": "r", "partition": "test", "apiAnonymous": "when HTTP_REQUEST {}",
			})
			Expect(ir.Equal(device)).To(BeTrue())
			Expect(IRuleCode(ir)).To(Equal("when HTTP_REQUEST {}"))
		})

		It("orders data group records", func() {
			dg, _ := NewInternalDataGroup(InternalDataGroup{
				Name: "dg",
				Type: "string",
				Records: []InternalDataGroupRecord{
					{Name: "b", Data: "2"},
					{Name: "a", Data: "1"},
				},
			}, "test")
			device, _ := InternalDataGroupFromDevice(map[string]interface{}{
				"name": "dg", "partition": "test", "type": "string",
				"records": []interface{}{
					map[string]interface{}{"name": "a", "data": "1"},
					map[string]interface{}{"name": "b", "data": "2"},
				},
			})
			Expect(dg.Equal(device)).To(BeTrue())
		})
	})
})
