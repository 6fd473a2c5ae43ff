// Licensed to the Apache Software Foundation (ASF) under one or more
// contributor license agreements.  See the NOTICE file distributed with
// this work for additional information regarding copyright ownership.
// The ASF licenses this file to You under the Apache License, Version 2.0
// (the "License"); you may not use this file except in compliance with
// the License.  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package zarr

import (
	"strings"
)

// Path is a normalized logical path within a store.
type Path []string

// NewPath normalizes a posix style logical path: backslashes become forward
// slashes, and leading, trailing and repeated separators are dropped.
func NewPath(posix string) Path {
	posix = strings.ReplaceAll(posix, `\`, "/")
	var p Path
	for _, e := range strings.Split(posix, "/") {
		if e != "" {
			p = append(p, e)
		}
	}
	return p
}

func (p Path) String() string {
	return strings.Join(p, "/")
}

// Base returns the last element, or "" for the root.
func (p Path) Base() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// Parent returns the path without its last element.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1:len(p)-1]
}

// Join returns a new path with elems appended.
func (p Path) Join(elems ...string) Path {
	out := make(Path, 0, len(p)+len(elems))
	out = append(out, p...)
	for _, e := range elems {
		out = append(out, NewPath(e)...)
	}
	return out
}

// Key returns the store key for the path.
func (p Path) Key() string { return p.String() }
