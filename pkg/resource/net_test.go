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

var _ = Describe("Net resources", func() {
	It("compares arps", func() {
		a, err := NewArp(Arp{Name: "k8s-10.1.1.1", IPAddress: "10.1.1.1", MACAddress: "aa:bb:cc:dd:ee:ff"}, "test")
		Expect(err).NotTo(HaveOccurred())
		device, _ := ArpFromDevice(map[string]interface{}{
			"name": "k8s-10.1.1.1", "partition": "test",
			"ipAddress": "10.1.1.1", "macAddress": "aa:bb:cc:dd:ee:ff",
		})
		Expect(a.Equal(device)).To(BeTrue())
		Expect(a.Equal(device.With("macAddress", "aa:bb:cc:dd:ee:00"))).To(BeFalse())
	})

	Context("fdb tunnels", func() {
		declared := FDBTunnel{
			Name: "vxlan500",
			Records: []FDBRecord{
				{Name: "0a:0a:0a:01:01:01", Endpoint: "10.1.1.1"},
				{Name: "0a:0a:0a:01:01:02", Endpoint: "10.1.1.2%3"},
			},
		}

		It("adds the default route domain to endpoints", func() {
			t, err := NewFDBTunnel(declared, "test", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(t.Get("records")).To(Equal([]interface{}{
				map[string]interface{}{"name": "0a:0a:0a:01:01:01", "endpoint": "10.1.1.1%0"},
				map[string]interface{}{"name": "0a:0a:0a:01:01:02", "endpoint": "10.1.1.2%3"},
			}))
		})

		It("compares records regardless of order", func() {
			t, _ := NewFDBTunnel(declared, "test", 0)
			device, err := FDBTunnelFromDevice(map[string]interface{}{
				"name": "vxlan500", "partition": "test",
				"records": []interface{}{
					map[string]interface{}{"name": "0a:0a:0a:01:01:02", "endpoint": "10.1.1.2%3"},
					map[string]interface{}{"name": "0a:0a:0a:01:01:01", "endpoint": "10.1.1.1%0"},
				},
			}, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(t.Equal(device)).To(BeTrue())

			empty, _ := FDBTunnelFromDevice(map[string]interface{}{
				"name": "vxlan500", "partition": "test",
			}, 0)
			Expect(t.Equal(empty)).To(BeFalse())
		})

		It("derives fake MAC addresses", func() {
			mac, err := IPv4ToMac("10.1.1.2")
			Expect(err).NotTo(HaveOccurred())
			Expect(mac).To(Equal("0a:0a:0a:01:01:02"))
			_, err = IPv4ToMac("2001:db8::1")
			Expect(err).To(HaveOccurred())
		})
	})

	Context("routes", func() {
		It("validates the network", func() {
			r, err := NewRoute(Route{Name: "r1", Network: "10.2.0.0/16%2", Gateway: "10.1.1.254"}, "Common")
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Get("gw")).To(Equal("10.1.1.254"))

			_, err = NewRoute(Route{Name: "r1", Network: "default", Gateway: "10.1.1.254"}, "Common")
			Expect(err).NotTo(HaveOccurred())

			_, err = NewRoute(Route{Name: "r1", Network: "not-a-net", Gateway: "10.1.1.254"}, "Common")
			Expect(err).To(HaveOccurred())
		})

		It("compares descriptions", func() {
			r, _ := NewRoute(Route{Name: "r1", Network: "10.2.0.0/16", Gateway: "10.1.1.254", Description: "cis"}, "Common")
			device, _ := RouteFromDevice(map[string]interface{}{
				"name": "r1", "partition": "Common", "network": "10.2.0.0/16", "gw": "10.1.1.254",
			})
			Expect(r.Equal(device)).To(BeFalse())
			Expect(r.Equal(device.With("description", "cis"))).To(BeTrue())
			Expect(RouteDescription(r)).To(Equal("cis"))
		})
	})
})
