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

package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/F5Networks/f5-cccl-go/pkg/resource"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fakeResolver map[string]string

func (f fakeResolver) LookupHost(_ context.Context, host string) (string, error) {
	if addr, ok := f[host]; ok {
		return addr, nil
	}
	return "", fmt.Errorf("no such host %s", host)
}

func metadataValue(r *resource.Resource, name string) (string, bool) {
	md, _ := r.Get("metadata").([]interface{})
	for _, e := range md {
		m := e.(map[string]interface{})
		if m["name"] == name {
			return m["value"].(string), true
		}
	}
	return "", false
}

var _ = Describe("Reader", func() {
	var (
		reader *Reader
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		reader = NewReader("test", fakeResolver{"web.example.com": "10.4.4.4"})
	})

	It("reads a declaration", func() {
		raw := []byte(`
virtualServers:
  - name: vs1
    destination: /test/10.1.1.1:80
    pool: /test/pool1
    metadata:
      - name: user_agent
        value: old
      - name: owner
        value: team-a
pools:
  - name: pool1
    members:
      - address: 10.2.2.2
        port: 8080
      - address: web.example.com%3
        port: 80
monitors:
  - name: mon1
    type: HTTP
    interval: 5
    timeout: 16
  - name: mon2
    type: tcp
iRules:
  - name: rule1
    apiAnonymous: when HTTP_REQUEST {}
internalDataGroups:
  - name: dg1
    type: string
    records:
      - name: a
        data: b
`)
		doc, err := ToJSON(raw)
		Expect(err).NotTo(HaveOccurred())
		cfg, err := ParseLTMConfig(doc)
		Expect(err).NotTo(HaveOccurred())

		ltm, err := reader.ReadLTMConfig(ctx, cfg, 0, "cccl-test")
		Expect(err).NotTo(HaveOccurred())

		vs := ltm.Virtuals["vs1"]
		Expect(vs).NotTo(BeNil())
		Expect(vs.Partition()).To(Equal("test"))
		ua, ok := metadataValue(vs, UserAgentKey)
		Expect(ok).To(BeTrue())
		Expect(ua).To(Equal("cccl-test"))
		owner, ok := metadataValue(vs, "owner")
		Expect(ok).To(BeTrue())
		Expect(owner).To(Equal("team-a"))
		Expect(vs.Get("metadata")).To(HaveLen(2))

		pool := ltm.Pools["pool1"]
		Expect(pool).NotTo(BeNil())
		var names []string
		for _, m := range resource.PoolMembers(pool) {
			names = append(names, m.Name())
		}
		Expect(names).To(ConsistOf("10.2.2.2%0:8080", "10.4.4.4%3:80"))

		Expect(ltm.Monitors["http"]).To(HaveKey("mon1"))
		Expect(ltm.Monitors["tcp"]).To(HaveKey("mon2"))
		Expect(ltm.Monitors["udp"]).To(BeEmpty())

		_, ok = metadataValue(ltm.IRules["rule1"], UserAgentKey)
		Expect(ok).To(BeTrue())
		Expect(ltm.InternalDataGroups).To(HaveKey("dg1"))
		Expect(ltm.Policies).To(BeEmpty())
		Expect(ltm.IApps).To(BeEmpty())
	})

	It("leaves metadata alone without a user agent", func() {
		cfg := &resource.LTMConfig{
			IRules: []resource.IRule{{Name: "rule1", Code: "when HTTP_REQUEST {}"}},
		}
		ltm, err := reader.ReadLTMConfig(ctx, cfg, 0, "")
		Expect(err).NotTo(HaveOccurred())
		_, ok := metadataValue(ltm.IRules["rule1"], UserAgentKey)
		Expect(ok).To(BeFalse())
	})

	It("reports the resource that could not be read", func() {
		cfg := &resource.LTMConfig{
			Monitors: []resource.Monitor{
				{Name: "bad", Type: "http", Interval: 20, Timeout: 10},
			},
		}
		_, err := reader.ReadLTMConfig(ctx, cfg, 0, "")
		var rerr *ConfigurationReadError
		Expect(errors.As(err, &rerr)).To(BeTrue())
		Expect(rerr.Kind).To(Equal("Monitor"))
		Expect(rerr.Name).To(Equal("bad"))

		cfg = &resource.LTMConfig{
			Pools: []resource.Pool{{
				Name:    "pool1",
				Members: []resource.Member{{Address: "nowhere.example.com", Port: 80}},
			}},
		}
		_, err = reader.ReadLTMConfig(ctx, cfg, 0, "")
		Expect(errors.As(err, &rerr)).To(BeTrue())
		Expect(rerr.Kind).To(Equal("Pool"))
		Expect(rerr.Name).To(Equal("pool1"))
	})

	It("reads the network declaration", func() {
		cfg, err := ParseNetConfig([]byte(`{
			"arps": [{"name": "arp1", "ipAddress": "10.5.5.5", "macAddress": "12:ab:34:cd:56:ef"}],
			"fdbTunnels": [{"name": "vxlan", "records": [{"name": "0a:0a:0a:05:05:05", "endpoint": "10.5.5.5"}]}],
			"userFdbTunnels": [{"name": "/Common/flannel_vxlan"}, {"name": "user_vxlan"}],
			"routes": [{"name": "r1", "network": "10.6.0.0/16", "gw": "10.5.5.1"}],
			"cis-identifier": "cluster-1"
		}`))
		Expect(err).NotTo(HaveOccurred())

		net, err := reader.ReadNetConfig(cfg, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(net.Arps).To(HaveKey("arp1"))
		Expect(net.FDBTunnels).To(HaveKey("vxlan"))
		Expect(net.UserFDBTunnels).To(HaveKey("/Common/flannel_vxlan"))
		Expect(net.UserFDBTunnels).To(HaveKey("/test/user_vxlan"))
		Expect(net.Routes).To(HaveKey("r1"))
		Expect(net.CISIdentifier).To(Equal("cluster-1"))
	})

	It("splits full paths", func() {
		p, n, ok := splitFullPath("/Common/tunnel")
		Expect(ok).To(BeTrue())
		Expect(p).To(Equal("Common"))
		Expect(n).To(Equal("tunnel"))

		_, _, ok = splitFullPath("tunnel")
		Expect(ok).To(BeFalse())
		_, _, ok = splitFullPath("/Common/")
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("Load", func() {
	It("converts YAML declarations to JSON", func() {
		dir, err := os.MkdirTemp("", "cccl-load")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, dir)

		path := filepath.Join(dir, "config.yaml")
		Expect(os.WriteFile(path, []byte("pools:\n  - name: pool1\n"), 0644)).To(Succeed())
		doc, err := Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(doc).To(MatchJSON(`{"pools": [{"name": "pool1"}]}`))

		_, err = Load(filepath.Join(dir, "missing.yaml"))
		Expect(err).To(HaveOccurred())
	})

	It("rejects undecodable declarations", func() {
		_, err := ParseLTMConfig([]byte(`{"pools": {"name": 1}}`))
		var verr *ValidationError
		Expect(errors.As(err, &verr)).To(BeTrue())
	})
})
