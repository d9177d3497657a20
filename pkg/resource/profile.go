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

import "fmt"

// profileDoc is the canonical virtual server profile reference.
func profileDoc(p map[string]interface{}) (map[string]interface{}, error) {
	name := stringValue(p, "name")
	if name == "" {
		return nil, fmt.Errorf("profile must have a name")
	}
	doc := map[string]interface{}{
		"name":      name,
		"partition": p["partition"],
		"context":   "all",
	}
	if ctx := stringValue(p, "context"); ctx != "" {
		doc["context"] = ctx
	}
	return doc, nil
}
