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
	"errors"
	"fmt"
)

var (
	// ErrInvalidRange is matched by every *InvalidRangeError.
	ErrInvalidRange = errors.New("invalid range")

	// ErrRankMismatch is matched by every *RankMismatchError.
	ErrRankMismatch = errors.New("rank mismatch")

	// ErrIteratorExhausted is returned by Next when no prior HasNext call
	// reported another slice.
	ErrIteratorExhausted = errors.New("iterator exhausted")

	// ErrNotLinearChain is returned when an operation graph branches or merges.
	ErrNotLinearChain = errors.New("not a linear chain")

	// ErrNoOrigin is returned when a slice carries no Origin metadata.
	ErrNoOrigin = errors.New("slice has no origin metadata")

	// ErrAllStepsFailed is returned by the runner when every step failed.
	ErrAllStepsFailed = errors.New("all steps failed")

	// ErrUnknownOperation is returned by a Registry for unregistered ids.
	ErrUnknownOperation = errors.New("unknown operation")

	// ErrEmptyChain is returned when a run is started without operations.
	ErrEmptyChain = errors.New("empty operation chain")
)

// InvalidRangeError reports bad Slice or SliceND bounds.
// It is always a programming or configuration error.
type InvalidRangeError struct {
	Dim               int
	Start, Stop, Step int
	Size              int
	Reason            string
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid range for dimension %d: [%d:%d:%d] over size %d: %s", e.Dim, e.Start, e.Stop, e.Step, e.Size, e.Reason)
}

func (e *InvalidRangeError) Is(target error) bool {
	return target == ErrInvalidRange
}

// RankMismatchError reports a slice or result whose dimensionality doesn't
// match what an operation declared.
type RankMismatchError struct {
	Operation string
	Want      Rank
	Got       int
	Output    bool // The mismatch was on the operation's result.
}

func (e *RankMismatchError) Error() string {
	side := "input"
	if e.Output {
		side = "output"
	}
	return fmt.Sprintf("operation %q %s rank mismatch: declared %v, got %d", e.Operation, side, e.Want, e.Got)
}

func (e *RankMismatchError) Is(target error) bool {
	return target == ErrRankMismatch
}
