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

var _ = Describe("Whitelisted resources", func() {
	whitelistEntry := map[string]interface{}{
		"name": WhitelistKey, "persist": "true", "value": "true",
	}

	deviceVirtual := func(rules []interface{}, metadata []interface{}) *Resource {
		r, err := VirtualFromDevice(map[string]interface{}{
			"name":          "vs1",
			"partition":     "test",
			"destination":   "/test/10.1.1.1:80",
			"enabled":       true,
			"vlansDisabled": true,
			"rules":         rules,
			"profilesReference": map[string]interface{}{
				"items": []interface{}{
					map[string]interface{}{"name": "http", "partition": "Common", "context": "all"},
				},
			},
			"metadata": metadata,
		})
		Expect(err).NotTo(HaveOccurred())
		return r
	}

	desiredVirtual := func(rule string) *Resource {
		r, err := NewVirtual(Virtual{
			Name:        "vs1",
			Destination: "/test/10.1.1.1:80",
			Profiles:    []ProfileRef{{Name: "http", Partition: "Common"}},
			IRules:      []string{rule},
		}, "test")
		Expect(err).NotTo(HaveOccurred())
		return r
	}

	// redeploy reads the merged document back the way the device returns it
	redeploy := func(r *Resource) *Resource {
		return deviceVirtual(r.Get("rules").([]interface{}), r.Get("metadata").([]interface{}))
	}

	It("reads the whitelist flag", func() {
		r := deviceVirtual(nil, []interface{}{whitelistEntry})
		Expect(r.Whitelisted()).To(BeTrue())
		Expect(r.HasStaleWhitelistUpdates()).To(BeFalse())

		r = deviceVirtual(nil, nil)
		Expect(r.Whitelisted()).To(BeFalse())
		_, err := r.Merge(desiredVirtual("/test/r1").Data())
		Expect(err).To(HaveOccurred())
	})

	It("flags updates left behind by a removed whitelist", func() {
		r := deviceVirtual(nil, []interface{}{
			map[string]interface{}{"name": WhitelistUpdatesKey, "persist": "true", "value": "abc"},
		})
		Expect(r.Whitelisted()).To(BeFalse())
		Expect(r.HasStaleWhitelistUpdates()).To(BeTrue())
	})

	It("merges desired data and records how to undo it", func() {
		r := deviceVirtual([]interface{}{"/Common/user_rule"}, []interface{}{whitelistEntry})
		changed, err := r.Merge(desiredVirtual("/test/r1").Data())
		Expect(err).NotTo(HaveOccurred())
		Expect(changed).To(BeTrue())
		Expect(r.Get("rules")).To(Equal([]interface{}{"/test/r1", "/Common/user_rule"}))

		var names []interface{}
		for _, md := range r.Get("metadata").([]interface{}) {
			names = append(names, md.(map[string]interface{})["name"])
		}
		Expect(names).To(Equal([]interface{}{WhitelistKey, WhitelistUpdatesKey}))
	})

	It("does not change when merged again", func() {
		r := deviceVirtual([]interface{}{"/Common/user_rule"}, []interface{}{whitelistEntry})
		_, err := r.Merge(desiredVirtual("/test/r1").Data())
		Expect(err).NotTo(HaveOccurred())

		again := redeploy(r)
		Expect(again.Whitelisted()).To(BeTrue())
		changed, err := again.Merge(desiredVirtual("/test/r1").Data())
		Expect(err).NotTo(HaveOccurred())
		Expect(changed).To(BeFalse())
		Expect(again.Get("rules")).To(Equal([]interface{}{"/test/r1", "/Common/user_rule"}))
	})

	It("backs out earlier merges", func() {
		r := deviceVirtual([]interface{}{"/Common/user_rule"}, []interface{}{whitelistEntry})
		_, err := r.Merge(desiredVirtual("/test/r1").Data())
		Expect(err).NotTo(HaveOccurred())

		next := redeploy(r)
		changed, err := next.Merge(desiredVirtual("/test/r2").Data())
		Expect(err).NotTo(HaveOccurred())
		Expect(changed).To(BeTrue())
		Expect(next.Get("rules")).To(Equal([]interface{}{"/test/r2", "/Common/user_rule"}))

		last := redeploy(next)
		changed, err = last.Merge(nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(changed).To(BeTrue())
		Expect(last.Get("rules")).To(Equal([]interface{}{"/Common/user_rule"}))
	})

	It("round trips encoded updates", func() {
		r := deviceVirtual([]interface{}{"/Common/user_rule"}, []interface{}{whitelistEntry})
		_, err := r.Merge(desiredVirtual("/test/r1").Data())
		Expect(err).NotTo(HaveOccurred())

		var encoded string
		for _, md := range r.Get("metadata").([]interface{}) {
			m := md.(map[string]interface{})
			if m["name"] == WhitelistUpdatesKey {
				encoded = m["value"].(string)
			}
		}
		patch, err := DecodeUpdates(encoded)
		Expect(err).NotTo(HaveOccurred())
		Expect(patch).NotTo(BeEmpty())
		again, err := EncodeUpdates(patch)
		Expect(err).NotTo(HaveOccurred())
		Expect(DecodeUpdates(again)).To(Equal(patch))
	})

	Context("with a list of numbers", func() {
		// fromDevice builds a whitelisted resource the way a read returns it
		fromDevice := func(data map[string]interface{}) *Resource {
			r, err := newResource(KindVirtual, "res", "test")
			Expect(err).NotTo(HaveOccurred())
			doc, err := normalize(data)
			Expect(err).NotTo(HaveOccurred())
			for k, v := range doc {
				r.data[k] = v
			}
			r.processMetadataFlags()
			return r
		}
		desired := map[string]interface{}{"c": []interface{}{float64(3), float64(4)}}

		It("merges, keeps a stable result and backs out", func() {
			r := fromDevice(map[string]interface{}{
				"a":        1,
				"c":        []interface{}{1, 2},
				"metadata": []interface{}{whitelistEntry},
			})
			changed, err := r.Merge(desired)
			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeTrue())
			Expect(r.Get("c")).To(Equal([]interface{}{float64(3), float64(4), float64(1), float64(2)}))

			again := fromDevice(r.Data())
			Expect(again.Whitelisted()).To(BeTrue())
			changed, err = again.Merge(desired)
			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeFalse())
			Expect(again.Get("c")).To(Equal([]interface{}{float64(3), float64(4), float64(1), float64(2)}))

			last := fromDevice(again.Data())
			changed, err = last.Merge(nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeTrue())
			Expect(last.Get("c")).To(Equal([]interface{}{float64(1), float64(2)}))
			Expect(last.Get("a")).To(Equal(float64(1)))
		})
	})
})

