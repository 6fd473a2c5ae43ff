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

package scanopts

import (
	"log/slog"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"lostluck.dev/scanslice/internal"
)

// Options is the common options type shared across scanslice packages.
type Options interface {
	// ScanOptions is exported so related scanslice packages can implement Options.
	ScanOptions(internal.NotForPublicUse)
}

// Toggle is a boolean option that remembers whether it was set.
type Toggle uint8

const (
	Unset Toggle = iota
	On
	Off
)

// Bool reports the toggle's value, falling back to def when unset.
func (t Toggle) Bool(def bool) bool {
	switch t {
	case On:
		return true
	case Off:
		return false
	}
	return def
}

// Canceller is polled at step boundaries and poll intervals.
type Canceller interface {
	Cancelled() bool
}

// Struct is the combination of all options in struct form.
// This is efficient to pass down the call stack and to query.
type Struct struct {
	Name string // The configured name of the runner or iterator. Otherwise it's autogenerated.

	MaxTimeout   time.Duration // Bounded wait inside a dynamic HasNext.
	PollInterval time.Duration // Interval between progress re-reads.
	Repeat       Toggle        // Re-offer the last slice when a wait times out.
	Wake         <-chan struct{}

	DataDims []int // Explicit data dimensions.
	AutoRank int   // Number of trailing dimensions used as data dimensions.
	Region   any   // *scanslice.SliceND restricting the iteration domain.

	Workers         int           // Parallel worker count, <= 1 is sequential.
	ParallelTimeout time.Duration // Bound on the whole parallel run.
	Intermediates   Toggle        // Deliver intermediate results to the visitor.

	Monitor    Canceller
	Logger     *slog.Logger
	Registerer prometheus.Registerer
}

func (dst *Struct) ScanOptions(internal.NotForPublicUse) {}

func (dst *Struct) Join(srcs ...Options) {
	for _, src := range srcs {
		switch src := src.(type) {
		case *Struct:
			if src.Name != "" {
				dst.Name = src.Name
			}
			if src.MaxTimeout != 0 {
				dst.MaxTimeout = src.MaxTimeout
			}
			if src.PollInterval != 0 {
				dst.PollInterval = src.PollInterval
			}
			if src.Repeat != Unset {
				dst.Repeat = src.Repeat
			}
			if src.Wake != nil {
				dst.Wake = src.Wake
			}
			if src.DataDims != nil {
				dst.DataDims = slices.Clone(src.DataDims)
				dst.AutoRank = 0
			}
			if src.AutoRank != 0 {
				dst.AutoRank = src.AutoRank
				dst.DataDims = nil
			}
			if src.Region != nil {
				dst.Region = src.Region
			}
			if src.Workers != 0 {
				dst.Workers = src.Workers
			}
			if src.ParallelTimeout != 0 {
				dst.ParallelTimeout = src.ParallelTimeout
			}
			if src.Intermediates != Unset {
				dst.Intermediates = src.Intermediates
			}
			if src.Monitor != nil {
				dst.Monitor = src.Monitor
			}
			if src.Logger != nil {
				dst.Logger = src.Logger
			}
			if src.Registerer != nil {
				dst.Registerer = src.Registerer
			}
		}
	}
}
