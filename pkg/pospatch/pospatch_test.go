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

package pospatch

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func doc(s string) interface{} {
	var v interface{}
	Expect(json.Unmarshal([]byte(s), &v)).To(Succeed())
	return v
}

var _ = Describe("Position independent patches", func() {
	var source interface{}
	var patch Patch

	BeforeEach(func() {
		source = doc(`{"k": 1, "c": [{"name": "a", "v": 1}, {"name": "b", "v": 2}]}`)
		patch = Patch{
			{Op: "replace", Path: "/c/1/v", Value: float64(3)},
			{Op: "remove", Path: "/c/0"},
			{Op: "add", Path: "/c/2", Value: "x"},
			{Op: "add", Path: "/new/deep", Value: true},
		}
	})

	It("replaces list indexes with element hashes", func() {
		pi, err := ToPositionIndependent(source, patch)
		Expect(err).NotTo(HaveOccurred())

		hashB, _ := Hash(doc(`{"name": "b", "v": 2}`))
		hashA, _ := Hash(doc(`{"name": "a", "v": 1}`))
		Expect(pi[0].Path).To(Equal("/c/[" + hashB + "]/v"))
		Expect(pi[1].Path).To(Equal("/c/[" + hashA + "]"))
		Expect(pi[2].Path).To(Equal("/c/2"))
		Expect(pi[3].Path).To(Equal("/new/deep"))
	})

	It("round trips against an unchanged document", func() {
		pi, err := ToPositionIndependent(source, patch)
		Expect(err).NotTo(HaveOccurred())
		Expect(ToPositional(source, pi)).To(Equal(patch))
	})

	It("follows elements that were reordered", func() {
		pi, err := ToPositionIndependent(source, patch[:1])
		Expect(err).NotTo(HaveOccurred())

		reordered := doc(`{"k": 1, "c": [{"name": "b", "v": 2}, {"name": "a", "v": 1}]}`)
		positional := ToPositional(reordered, pi)
		Expect(positional).To(HaveLen(1))
		Expect(positional[0].Path).To(Equal("/c/0/v"))

		patched, err := Apply(reordered, positional)
		Expect(err).NotTo(HaveOccurred())
		Expect(patched).To(Equal(doc(
			`{"k": 1, "c": [{"name": "b", "v": 3}, {"name": "a", "v": 1}]}`)))
	})

	It("drops entries whose element changed", func() {
		pi, err := ToPositionIndependent(source, patch[:2])
		Expect(err).NotTo(HaveOccurred())

		changed := doc(`{"k": 1, "c": [{"name": "a", "v": 1}, {"name": "b", "v": 9}]}`)
		positional := ToPositional(changed, pi)
		Expect(positional).To(Equal(Patch{{Op: "remove", Path: "/c/0"}}))
	})

	It("drops removals of keys that are gone", func() {
		pi := Patch{
			{Op: "remove", Path: "/gone"},
			{Op: "add", Path: "/gone", Value: "v"},
		}
		positional := ToPositional(doc(`{"k": 1}`), pi)
		Expect(positional).To(Equal(Patch{{Op: "add", Path: "/gone", Value: "v"}}))
	})

	It("hashes independently of key order", func() {
		h1, err := Hash(map[string]interface{}{"b": 1, "a": "x"})
		Expect(err).NotTo(HaveOccurred())
		h2, err := Hash(doc(`{"a": "x", "b": 1}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(h1).To(Equal(h2))
		Expect(h1).To(MatchRegexp("^[0-9a-f]{64}$"))
	})

	It("creates patches that apply", func() {
		from := doc(`{"a": 1, "l": ["x", "y"], "m": {"n": "o"}}`)
		to := doc(`{"a": 2, "l": ["y"], "p": [1]}`)

		p, err := Create(from, to)
		Expect(err).NotTo(HaveOccurred())
		Expect(p).NotTo(BeEmpty())

		patched, err := Apply(from, p)
		Expect(err).NotTo(HaveOccurred())
		Expect(patched).To(Equal(to))
	})

	It("leaves the document alone for an empty patch", func() {
		d := doc(`{"a": 1}`)
		patched, err := Apply(d, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(patched).To(Equal(d))
	})
})

var _ = Describe("Patches over lists of scalars", func() {
	It("hashes strings, numbers and booleans", func() {
		h1, err := Hash("/Common/rule1")
		Expect(err).NotTo(HaveOccurred())
		Expect(h1).To(MatchRegexp("^[0-9a-f]{64}$"))

		h2, err := Hash("/Common/rule2")
		Expect(err).NotTo(HaveOccurred())
		Expect(h2).NotTo(Equal(h1))

		n, err := Hash(float64(1))
		Expect(err).NotTo(HaveOccurred())
		s, err := Hash("1")
		Expect(err).NotTo(HaveOccurred())
		Expect(n).NotTo(Equal(s))

		_, err = Hash(true)
		Expect(err).NotTo(HaveOccurred())
		_, err = Hash(nil)
		Expect(err).NotTo(HaveOccurred())
	})

	It("round trips a string list", func() {
		source := doc(`{"rules": ["/Common/r1", "/Common/r2", "/Common/r3"]}`)
		patch := Patch{
			{Op: "remove", Path: "/rules/1"},
			{Op: "replace", Path: "/rules/0", Value: "/Common/x"},
		}

		pi, err := ToPositionIndependent(source, patch)
		Expect(err).NotTo(HaveOccurred())
		hashR2, _ := Hash("/Common/r2")
		hashR1, _ := Hash("/Common/r1")
		Expect(pi[0].Path).To(Equal("/rules/[" + hashR2 + "]"))
		Expect(pi[1].Path).To(Equal("/rules/[" + hashR1 + "]"))

		Expect(ToPositional(source, pi)).To(Equal(patch))
	})

	It("follows reordered strings", func() {
		source := doc(`{"rules": ["/Common/r1", "/Common/r2", "/Common/r3"]}`)
		pi, err := ToPositionIndependent(source, Patch{{Op: "remove", Path: "/rules/1"}})
		Expect(err).NotTo(HaveOccurred())

		reordered := doc(`{"rules": ["/Common/r2", "/Common/r3", "/Common/r1"]}`)
		positional := ToPositional(reordered, pi)
		Expect(positional).To(Equal(Patch{{Op: "remove", Path: "/rules/0"}}))

		patched, err := Apply(reordered, positional)
		Expect(err).NotTo(HaveOccurred())
		Expect(patched).To(Equal(doc(`{"rules": ["/Common/r3", "/Common/r1"]}`)))
	})

	It("follows reordered numbers and drops the ones that are gone", func() {
		source := doc(`{"c": [1, 2]}`)
		pi, err := ToPositionIndependent(source, Patch{{Op: "remove", Path: "/c/1"}})
		Expect(err).NotTo(HaveOccurred())

		Expect(ToPositional(doc(`{"c": [2, 1]}`), pi)).
			To(Equal(Patch{{Op: "remove", Path: "/c/0"}}))
		Expect(ToPositional(doc(`{"c": [3, 4]}`), pi)).To(BeEmpty())
	})
})
