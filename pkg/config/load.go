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
	"encoding/json"
	"fmt"
	"os"

	"github.com/F5Networks/f5-cccl-go/pkg/resource"
	"sigs.k8s.io/yaml"
)

// Load reads a declaration file. YAML is converted to JSON; JSON passes
// through unchanged.
func Load(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ToJSON(raw)
}

// ToJSON converts a YAML or JSON declaration to JSON.
func ToJSON(raw []byte) ([]byte, error) {
	doc, err := yaml.YAMLToJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("declaration is neither JSON nor YAML: %v", err)
	}
	return doc, nil
}

// ParseLTMConfig decodes the LTM part of a JSON declaration.
func ParseLTMConfig(raw []byte) (*resource.LTMConfig, error) {
	var cfg resource.LTMConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}
	return &cfg, nil
}

// ParseNetConfig decodes the network part of a JSON declaration.
func ParseNetConfig(raw []byte) (*resource.NetConfig, error) {
	var cfg resource.NetConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}
	return &cfg, nil
}
