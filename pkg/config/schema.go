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
	_ "embed"
	"encoding/json"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/F5Networks/f5-cccl-go/pkg/resource"
	log "github.com/F5Networks/f5-cccl-go/pkg/vlogger"
	"github.com/xeipuuv/gojsonschema"
	"sigs.k8s.io/yaml"
)

//go:embed schema/cccl-api-schema.yml
var defaultSchema []byte

// Big-IP ipv4/ipv6 checkers
type BigIPv4FormatChecker struct{}

func (f BigIPv4FormatChecker) IsFormat(input interface{}) bool {
	strInput, ok := input.(string)
	if !ok {
		return true
	}
	ip, ok := splitFormatAddress(strInput)
	if !ok {
		return false
	}
	address := net.ParseIP(ip)
	return address != nil && address.To4() != nil
}

// IPv4 addresses are valid IPv6 addresses, check for IPv4 first when the
// two must be told apart.
type BigIPv6FormatChecker struct{}

func (f BigIPv6FormatChecker) IsFormat(input interface{}) bool {
	strInput, ok := input.(string)
	if !ok {
		return true
	}
	ip, ok := splitFormatAddress(strInput)
	if !ok {
		return false
	}
	address := net.ParseIP(ip)
	return address != nil && address.To16() != nil
}

// splitFormatAddress strips a numeric route domain. ok is false for a
// malformed one.
func splitFormatAddress(s string) (string, bool) {
	if !strings.Contains(s, "%") {
		return s, true
	}
	ip, _, ok := resource.SplitIPWithRouteDomain(s)
	return ip, ok
}

var registerOnce sync.Once

// RegisterBigIPSchemaTypes adds the bigipv4 and bigipv6 formats to the
// schema library.
func RegisterBigIPSchemaTypes() {
	registerOnce.Do(func() {
		gojsonschema.FormatCheckers.Add("bigipv4", BigIPv4FormatChecker{})
		gojsonschema.FormatCheckers.Add("bigipv6", BigIPv6FormatChecker{})
	})
}

// Validator checks declarations against the CCCL API schema.
type Validator struct {
	schema *gojsonschema.Schema
}

// NewValidator loads the schema at path, a JSON or YAML file. An empty path
// selects the built-in schema.
func NewValidator(path string) (*Validator, error) {
	RegisterBigIPSchemaTypes()

	raw := defaultSchema
	if path != "" {
		lower := strings.ToLower(path)
		if !strings.HasSuffix(lower, ".json") && !strings.HasSuffix(lower, ".yaml") &&
			!strings.HasSuffix(lower, ".yml") {
			return nil, &SchemaError{Msg: "CCCL API schema json or yaml file expected."}
		}
		var err error
		if raw, err = os.ReadFile(path); err != nil {
			log.Errorf("[CCCL] %v", err)
			return nil, &SchemaError{Msg: "CCCL API schema could not be read.", Err: err}
		}
	}

	doc, err := yaml.YAMLToJSON(raw)
	if err != nil {
		log.Errorf("[CCCL] %v", err)
		return nil, &SchemaError{Msg: "CCCL API schema could not be decoded.", Err: err}
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		log.Errorf("[CCCL] %v", err)
		return nil, &SchemaError{Msg: "Invalid API schema", Err: err}
	}
	return &Validator{schema: schema}, nil
}

// Validate checks a declaration, given as JSON bytes or as a decoded
// document.
func (v *Validator) Validate(cfg interface{}) error {
	log.Debugf("[CCCL] Validating desired config against CCCL API schema.")
	start := time.Now()
	defer func() {
		log.Debugf("[CCCL] validate took %.5f seconds.", time.Since(start).Seconds())
	}()

	var loader gojsonschema.JSONLoader
	switch c := cfg.(type) {
	case []byte:
		loader = gojsonschema.NewBytesLoader(c)
	default:
		raw, err := json.Marshal(c)
		if err != nil {
			return &ValidationError{Msg: err.Error()}
		}
		loader = gojsonschema.NewBytesLoader(raw)
	}

	result, err := v.schema.Validate(loader)
	if err != nil {
		return &ValidationError{Msg: err.Error()}
	}
	if !result.Valid() {
		var msgs []string
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return &ValidationError{Msg: strings.Join(msgs, "; "), Details: msgs}
	}
	return nil
}
