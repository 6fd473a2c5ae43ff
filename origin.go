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

package scanslice

// Origin records where a produced slice came from. It is attached to every
// slice an iterator yields and propagated, not recomputed, by operations.
//
// Origins are immutable. An operation that changes rank attaches a new
// Origin carrying the replacement SliceInformation.
type Origin struct {
	// SourcePath is the path of the file-like container, if known.
	SourcePath string
	// DatasetName is the parent array's name within its container.
	DatasetName string
	// Parent is the array the slice was read from.
	Parent LazyArray
	// Info is the slice's bookkeeping.
	Info SliceInformation
}

// WithInfo returns a copy of o carrying info.
func (o *Origin) WithInfo(info SliceInformation) *Origin {
	return &Origin{
		SourcePath:  o.SourcePath,
		DatasetName: o.DatasetName,
		Parent:      o.Parent,
		Info:        info,
	}
}
