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
	"errors"
	"fmt"
)

// DeviceError is a failed device REST call. Code is the HTTP status, or 0
// when the call never got a response.
type DeviceError struct {
	Code    int
	Message string
}

func (e *DeviceError) Error() string {
	if e.Code == 0 {
		return e.Message
	}
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Message)
}

// StatusCode returns the HTTP status of the failed call.
func (e *DeviceError) StatusCode() int { return e.Code }

// ConflictError means the resource already exists (HTTP 409).
type ConflictError struct{ DeviceError }

// NotFoundError means the resource does not exist (HTTP 404).
type NotFoundError struct{ DeviceError }

// RequestError means the device rejected the request (other HTTP 4xx).
type RequestError struct{ DeviceError }

// NewDeviceError classifies a device failure by HTTP status code.
func NewDeviceError(code int, msg string) error {
	de := DeviceError{Code: code, Message: msg}
	switch {
	case code == 404:
		return &NotFoundError{de}
	case code == 409:
		return &ConflictError{de}
	case code >= 400 && code < 500:
		return &RequestError{de}
	default:
		return &de
	}
}

func IsConflict(err error) bool {
	var e *ConflictError
	return errors.As(err, &e)
}

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

func IsRequestError(err error) bool {
	var e *RequestError
	return errors.As(err, &e)
}

// StatusCode returns the HTTP status carried by a device error, 0 for any
// other error.
func StatusCode(err error) int {
	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return 0
}
