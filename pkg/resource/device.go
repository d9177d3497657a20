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

import "context"

// Device is the REST handle resources are deployed through. uri is the
// collection path below /mgmt/tm (for example "ltm/pool"). Implementations
// must return errors built with NewDeviceError so callers can tell
// conflicts and missing resources apart from other failures.
type Device interface {
	Create(ctx context.Context, uri string, payload map[string]interface{}) (map[string]interface{}, error)
	Read(ctx context.Context, uri, partition, name string) (map[string]interface{}, error)
	Update(ctx context.Context, uri, partition, name string, payload map[string]interface{}) error
	Delete(ctx context.Context, uri, partition, name string) error
}
