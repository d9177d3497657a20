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

import "fmt"

// ValidationError is a declaration rejected by the API schema.
type ValidationError struct {
	Msg     string
	Details []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("desired config is invalid: %s", e.Msg)
}

// SchemaError is an API schema that cannot be read or compiled.
type SchemaError struct {
	Msg string
	Err error
}

func (e *SchemaError) Error() string { return e.Msg }

func (e *SchemaError) Unwrap() error { return e.Err }

// ConfigurationReadError is a valid declaration that still cannot be turned
// into resources.
type ConfigurationReadError struct {
	Kind string
	Name string
	Err  error
}

func (e *ConfigurationReadError) Error() string {
	return fmt.Sprintf("failed to read %s %s: %v", e.Kind, e.Name, e.Err)
}

func (e *ConfigurationReadError) Unwrap() error { return e.Err }
