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

// Package scanslice runs chains of rank-typed operations over very large,
// possibly still growing, N-dimensional arrays one slice at a time.
//
// An array's dimensions are split into data dimensions, which are handed
// whole to an operation, and scan dimensions, which are visited one position
// per step. Iterators produce a slice per step, tagged with [Origin] metadata
// that records where the slice came from and its [SliceInformation]. The
// [SeriesRunner] feeds each slice through the operation chain and re-derives
// the axis metadata whenever an operation changes rank, so that coordinates
// stay correct on the final result.
//
// Two iterators are provided:
//   - [StaticSliceIterator] walks a fixed-shape array.
//   - [DynamicSliceIterator] walks an array that is still being written,
//     polling progress arrays and a finished flag with a bounded wait.
//
// Scan positions advance in row-major order: the last scan dimension varies
// fastest, and SliceIndex follows that flattened order.
//
// Things that are deliberately absent:
//   - Persisting results. Visitors decide what to keep.
//   - Branching or merging chains. Only linear chains run.
//   - Plugin discovery. Embedders populate a [Registry] themselves.
package scanslice
