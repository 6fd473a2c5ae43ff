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
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"lostluck.dev/scanslice/internal/scanopts"
)

// Options configure iterators, Execute and the SeriesRunner.
// Each function takes a variadic list of options, where properties
// set in later options override the value of previously set properties.
type Options = scanopts.Options

// Name sets the name of the runner or iterator in question, typically
// to make it easier to refer to in logs and metrics.
func Name(name string) Options {
	return &scanopts.Struct{
		Name: name,
	}
}

// MaxTimeout bounds how long a dynamic iterator's HasNext waits for data.
func MaxTimeout(d time.Duration) Options {
	return &scanopts.Struct{
		MaxTimeout: d,
	}
}

// PollInterval sets how often a dynamic iterator re-reads its progress
// arrays while waiting.
func PollInterval(d time.Duration) Options {
	return &scanopts.Struct{
		PollInterval: d,
	}
}

// Repeat enables re-offering the most recent slice when a dynamic
// iterator's wait times out.
func Repeat(enabled bool) Options {
	return &scanopts.Struct{
		Repeat: toggle(enabled),
	}
}

// Wake supplies a channel whose sends make a waiting dynamic iterator
// re-check its progress arrays early, such as a filesystem watcher.
func Wake(ch <-chan struct{}) Options {
	return &scanopts.Struct{
		Wake: ch,
	}
}

// DataDims selects the dimensions kept whole in every slice.
// It overrides AutoRank.
func DataDims(dims ...int) Options {
	if dims == nil {
		dims = []int{}
	}
	return &scanopts.Struct{
		DataDims: dims,
	}
}

// AutoRank selects the trailing n dimensions as data dimensions.
// It overrides DataDims.
func AutoRank(n int) Options {
	return &scanopts.Struct{
		AutoRank: n,
	}
}

// Subslice restricts iteration to a region of the parent array.
func Subslice(s *SliceND) Options {
	return &scanopts.Struct{
		Region: s,
	}
}

// Workers sets the number of steps the SeriesRunner executes concurrently.
// Values of one or less run sequentially.
func Workers(n int) Options {
	return &scanopts.Struct{
		Workers: n,
	}
}

// ParallelTimeout bounds the whole of a parallel run. Steps see the deadline
// on their context; the runner stops waiting for steps that ignore it.
func ParallelTimeout(d time.Duration) Options {
	return &scanopts.Struct{
		ParallelTimeout: d,
	}
}

// Intermediates delivers every operation's result to the visitor, not
// just the last one.
func Intermediates(enabled bool) Options {
	return &scanopts.Struct{
		Intermediates: toggle(enabled),
	}
}

// WithMonitor attaches a cancellation Monitor polled at step boundaries and
// poll intervals.
func WithMonitor(m Monitor) Options {
	return &scanopts.Struct{
		Monitor: m,
	}
}

// Logger sets the logger used by iterators and runners. The default
// discards everything.
func Logger(l *slog.Logger) Options {
	return &scanopts.Struct{
		Logger: l,
	}
}

// Registerer registers runner metrics with r. Without it metrics
// are collected but not registered.
func Registerer(r prometheus.Registerer) Options {
	return &scanopts.Struct{
		Registerer: r,
	}
}

func toggle(b bool) scanopts.Toggle {
	if b {
		return scanopts.On
	}
	return scanopts.Off
}

func joinOptions(opts []Options) scanopts.Struct {
	var s scanopts.Struct
	s.Join(opts...)
	return s
}

// discardLogger is used when no Logger option is given.
var discardLogger = slog.New(slog.DiscardHandler)

func loggerOf(s *scanopts.Struct) *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return discardLogger
}
