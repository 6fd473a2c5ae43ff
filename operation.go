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
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"lostluck.dev/scanslice/internal/harness"
)

// Rank is the dimensionality an operation declares for its input or output.
// Non-negative values are exact.
type Rank int

const (
	// RankAny accepts any dimensionality.
	RankAny Rank = -1
	// RankSame is, for an input, the previous operation's output rank, and
	// for an output, the operation's input rank.
	RankSame Rank = -2
)

func (r Rank) String() string {
	switch r {
	case RankAny:
		return "any"
	case RankSame:
		return "same"
	}
	return strconv.Itoa(int(r))
}

// Exact reports whether r is a fixed dimensionality.
func (r Rank) Exact() bool { return r >= 0 }

// Operation is one rank-typed step of a chain.
//
// Process receives only the data dimensions of a slice, as a Dataset of
// the input rank, and returns its own output. The engine validates ranks,
// restores the scan dimensions and attaches updated Origin metadata.
// Axes set on the returned Dataset become the result's output axes.
//
// Operations must not retain or mutate the input between calls, and must be
// safe for concurrent use when run by a parallel SeriesRunner.
type Operation interface {
	// ID identifies the operation kind, as used by a Registry.
	ID() string
	// Name is a human readable name for logs.
	Name() string
	InputRank() Rank
	OutputRank() Rank
	Process(ctx context.Context, data *Dataset, pc *ProcessContext) (*Output, error)
}

// Output is what an operation computes for one slice.
type Output struct {
	Data *Dataset
	// Aux are side-channel datasets, reassembled alongside Data.
	Aux []*Dataset
}

// LogEntry is a recorded operation log message.
type LogEntry = harness.Entry

// SpanStatus tags log entries as part of a success or failure span.
type SpanStatus = harness.Status

const (
	SpanNone    = harness.StatusNone
	SpanSuccess = harness.StatusSuccess
	SpanFailure = harness.StatusFailure
)

// ProcessContext is handed to Operation.Process for each slice.
type ProcessContext struct {
	info   SliceInformation
	logger *slog.Logger
}

// Info returns a copy of the input slice's SliceInformation.
func (pc *ProcessContext) Info() SliceInformation {
	return pc.info.Clone()
}

// Logger returns a logger whose entries are recorded in the step's log.
func (pc *ProcessContext) Logger() *slog.Logger {
	return pc.logger
}

// Success records msg in a named success span.
func (pc *ProcessContext) Success(span, msg string, args ...any) {
	pc.logger.With(harness.WithSpan(span, harness.StatusSuccess)).Info(msg, args...)
}

// Failure records msg in a named failure span. It does not abort the chain,
// only a returned error does.
func (pc *ProcessContext) Failure(span, msg string, args ...any) {
	pc.logger.With(harness.WithSpan(span, harness.StatusFailure)).Warn(msg, args...)
}

// Result is the outcome of executing one operation on one slice.
type Result struct {
	// Data has the slice's scan dimensions, at length 1, followed by the
	// operation's output dimensions.
	Data *Dataset
	Aux  []*Dataset
	Log  []*LogEntry
}

// Failed reports whether any log entry is in a failure span.
func (r *Result) Failed() bool {
	for _, e := range r.Log {
		if e.Status == harness.StatusFailure {
			return true
		}
	}
	return false
}

// Execute runs op on slice, which must carry Origin metadata as produced
// by an iterator or a previous Execute.
//
// The number of data dimensions must match the operation's input rank, and
// the output's rank its output rank, or a *RankMismatchError is returned.
// On an operation error the partial Result carrying the log is returned
// with the error.
func Execute(ctx context.Context, op Operation, slice *Dataset, opts ...Options) (*Result, error) {
	s := joinOptions(opts)
	return execute(ctx, op, slice, op.InputRank(), loggerOf(&s))
}

// execute runs op with its input rank resolved to in.
func execute(ctx context.Context, op Operation, slice *Dataset, in Rank, logger *slog.Logger) (*Result, error) {
	o := slice.Origin()
	if o == nil {
		return nil, fmt.Errorf("executing %q on %v: %w", op.ID(), slice, ErrNoOrigin)
	}
	info := o.Info
	if slice.Rank() != info.Rank() {
		return nil, fmt.Errorf("executing %q: slice rank %d, slice information describes rank %d", op.ID(), slice.Rank(), info.Rank())
	}
	k := len(info.DataDims)
	if in.Exact() && int(in) != k {
		return nil, &RankMismatchError{Operation: op.ID(), Want: in, Got: k}
	}
	view, err := dataView(slice, info.DataDims)
	if err != nil {
		return nil, fmt.Errorf("executing %q: %w", op.ID(), err)
	}

	log := &harness.Log{}
	pc := &ProcessContext{
		info:   info.Clone(),
		logger: slog.New(harness.NewHandler(log, &harness.HandlerOptions{Operation: op.ID()})),
	}
	out, err := op.Process(ctx, view, pc)
	res := &Result{Log: log.Entries()}
	if err != nil {
		return res, fmt.Errorf("operation %q: %w", op.ID(), err)
	}
	if out == nil || out.Data == nil {
		return res, fmt.Errorf("operation %q returned no data", op.ID())
	}
	kOut := out.Data.Rank()
	switch want := op.OutputRank(); {
	case want == RankSame && kOut != k:
		return res, &RankMismatchError{Operation: op.ID(), Want: Rank(k), Got: kOut, Output: true}
	case want.Exact() && int(want) != kOut:
		return res, &RankMismatchError{Operation: op.ID(), Want: want, Got: kOut, Output: true}
	}

	data, newInfo, err := reassemble(slice, info, out.Data, true)
	if err != nil {
		return res, fmt.Errorf("operation %q: %w", op.ID(), err)
	}
	res.Data = data
	for i, aux := range out.Aux {
		if aux == nil {
			continue
		}
		a, _, err := reassemble(slice, info, aux, false)
		if err != nil {
			return res, fmt.Errorf("operation %q: auxiliary output %d: %w", op.ID(), i, err)
		}
		res.Aux = append(res.Aux, a)
	}
	logger.Debug("executed operation", "op", op.ID(), "slice", info.SliceIndex, "in", slice.shape, "out", data.shape, "dataDims", newInfo.DataDims)
	return res, nil
}
