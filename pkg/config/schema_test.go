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
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Schema", func() {
	It("checks BIG-IP IPv4 addresses", func() {
		var schemaValidator BigIPv4FormatChecker

		type testDataType struct {
			address string
			isValid bool
		}
		testData := []testDataType{
			{
				address: "",
				isValid: false,
			}, {
				address: "1.2.3.4",
				isValid: true,
			}, {
				address: "http://bad",
				isValid: false,
			}, {
				address: "bad%0",
				isValid: false,
			}, {
				address: "1.2.3.4%bad",
				isValid: false,
			}, {
				address: "1.2.3.4%4",
				isValid: true,
			}, {
				address: "::",
				isValid: false,
			}, {
				address: "ff80::%12",
				isValid: false,
			},
		}

		for _, td := range testData {
			Expect(schemaValidator.IsFormat(td.address)).To(Equal(td.isValid), td.address)
		}
	})

	It("checks BIG-IP IPv6 addresses", func() {
		var schemaValidator BigIPv6FormatChecker

		type testDataType struct {
			address string
			isValid bool
		}
		testData := []testDataType{
			{
				address: "",
				isValid: false,
			}, {
				address: "1.2.3.4",
				isValid: true,
			}, {
				address: "bad%0",
				isValid: false,
			}, {
				address: "::",
				isValid: true,
			}, {
				address: "ff80::%12",
				isValid: true,
			}, {
				address: "ff80::%x",
				isValid: false,
			},
		}

		for _, td := range testData {
			Expect(schemaValidator.IsFormat(td.address)).To(Equal(td.isValid), td.address)
		}
	})

	Context("validator", func() {
		var v *Validator

		BeforeEach(func() {
			var err error
			v, err = NewValidator("")
			Expect(err).NotTo(HaveOccurred())
		})

		It("accepts a valid declaration", func() {
			Expect(v.Validate([]byte(`{
				"virtualServers": [{
					"name": "vs1",
					"destination": "/test/10.1.1.1:80",
					"pool": "/test/pool1",
					"profiles": [{"name": "http", "partition": "Common", "context": "all"}]
				}],
				"virtualAddresses": [{"name": "10.1.1.1", "address": "10.1.1.1%0"}],
				"pools": [{
					"name": "pool1",
					"members": [{"address": "10.2.2.2", "port": 8080}],
					"monitors": ["/test/mon1"]
				}],
				"monitors": [{"name": "mon1", "type": "http", "interval": 5, "timeout": 16}],
				"routes": [{"name": "r1", "network": "10.3.0.0/16", "gw": "10.1.1.254"}],
				"cis-identifier": "cluster-1"
			}`))).To(Succeed())
		})

		It("accepts decoded documents", func() {
			doc := map[string]interface{}{
				"iRules": []interface{}{
					map[string]interface{}{"name": "rule1", "apiAnonymous": "when HTTP_REQUEST {}"},
				},
			}
			Expect(v.Validate(doc)).To(Succeed())
		})

		It("rejects invalid declarations", func() {
			err := v.Validate([]byte(`{"pools": [{"name": "pool1", "members": [{"address": "10.2.2.2"}]}]}`))
			var verr *ValidationError
			Expect(errors.As(err, &verr)).To(BeTrue())
			Expect(verr.Details).NotTo(BeEmpty())

			err = v.Validate([]byte(`{"monitors": [{"name": "m", "type": "ftp"}]}`))
			Expect(errors.As(err, &verr)).To(BeTrue())

			err = v.Validate([]byte(`{"virtualAddresses": [{"name": "va", "address": "not-an-ip"}]}`))
			Expect(errors.As(err, &verr)).To(BeTrue())
		})

		It("rejects malformed input", func() {
			var verr *ValidationError
			Expect(errors.As(v.Validate([]byte(`{"pools": [`)), &verr)).To(BeTrue())
		})
	})

	Context("alternate schemas", func() {
		var dir string

		BeforeEach(func() {
			var err error
			dir, err = os.MkdirTemp("", "cccl-schema")
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(os.RemoveAll, dir)
		})

		It("loads JSON schemas", func() {
			path := filepath.Join(dir, "schema.json")
			Expect(os.WriteFile(path, []byte(`{
				"type": "object",
				"properties": {"pools": {"type": "array", "maxItems": 1}}
			}`), 0644)).To(Succeed())
			v, err := NewValidator(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(v.Validate([]byte(`{"pools": [{}, {}]}`))).NotTo(Succeed())
		})

		It("reports unusable schemas", func() {
			var serr *SchemaError

			_, err := NewValidator(filepath.Join(dir, "schema.txt"))
			Expect(errors.As(err, &serr)).To(BeTrue())

			_, err = NewValidator(filepath.Join(dir, "missing.yml"))
			Expect(errors.As(err, &serr)).To(BeTrue())
			Expect(serr.Msg).To(Equal("CCCL API schema could not be read."))

			path := filepath.Join(dir, "bad.json")
			Expect(os.WriteFile(path, []byte(`{"type": 5}`), 0644)).To(Succeed())
			_, err = NewValidator(path)
			Expect(errors.As(err, &serr)).To(BeTrue())
		})
	})
})
