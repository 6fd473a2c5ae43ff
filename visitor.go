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

import (
	"cmp"
	"slices"
	"sync"
)

// Visitor receives the results of a run. The runner serialises calls, so
// implementations need no locking of their own.
type Visitor interface {
	// Init is called once before the first step.
	Init(chain []Operation, it SliceIterator) error
	// Executed is called for every step whose whole chain succeeded.
	// An error counts the step as failed.
	Executed(StepResult) error
	// Cancelled is polled at every step boundary.
	Cancelled() bool
}

// FailureVisitor is optionally implemented by a Visitor that wants to hear
// about failed steps.
type FailureVisitor interface {
	Failed(StepFailure)
}

// StepResult is what a visitor receives for a completed step.
type StepResult struct {
	// Index is the step's 1-based SliceIndex.
	Index int
	// Slice is the input slice read from the iterator.
	Slice *Dataset
	// Result is the last operation's result.
	Result *Result
	// Intermediates holds every operation's result in chain order, when
	// requested with the Intermediates option.
	Intermediates []*Result
	// Shape and DataDims describe the iteration when the step was read.
	Shape    []int
	DataDims []int
	Monitor  Monitor
}

// StepFailure describes a step that did not complete.
type StepFailure struct {
	Index int
	Slice *Dataset
	// Operation is the id of the failing operation, empty when the visitor
	// rejected the result.
	Operation string
	Err       error
	Log       []*LogEntry
}

// NopVisitor accepts every result and is never cancelled.
type NopVisitor struct{}

func (NopVisitor) Init([]Operation, SliceIterator) error { return nil }
func (NopVisitor) Executed(StepResult) error             { return nil }
func (NopVisitor) Cancelled() bool                       { return false }

// Collector is a Visitor that keeps everything it is given.
type Collector struct {
	mu       sync.Mutex
	Chain    []Operation
	Results  []StepResult
	Failures []StepFailure
}

var (
	_ Visitor        = (*Collector)(nil)
	_ FailureVisitor = (*Collector)(nil)
)

func (c *Collector) Init(chain []Operation, _ SliceIterator) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Chain = slices.Clone(chain)
	return nil
}

func (c *Collector) Executed(r StepResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Results = append(c.Results, r)
	return nil
}

func (c *Collector) Failed(f StepFailure) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Failures = append(c.Failures, f)
}

func (c *Collector) Cancelled() bool { return false }

// Sorted returns the results ordered by step index.
func (c *Collector) Sorted() []StepResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := slices.Clone(c.Results)
	slices.SortStableFunc(out, func(a, b StepResult) int { return cmp.Compare(a.Index, b.Index) })
	return out
}
