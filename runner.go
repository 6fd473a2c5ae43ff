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
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// SeriesRunner drives an iterator through a linear chain of operations,
// one step per scan position.
type SeriesRunner struct {
	name          string
	workers       int
	timeout       time.Duration
	intermediates bool
	monitor       Monitor
	logger        *slog.Logger
	metrics       *metrics
}

// NewSeriesRunner returns a runner. By default steps run sequentially.
// With Workers(n) for n > 1, up to n steps run concurrently and
// ParallelTimeout bounds the whole run.
func NewSeriesRunner(opts ...Options) *SeriesRunner {
	s := joinOptions(opts)
	name := s.Name
	if name == "" {
		name = "series"
	}
	return &SeriesRunner{
		name:          name,
		workers:       s.Workers,
		timeout:       s.ParallelTimeout,
		intermediates: s.Intermediates.Bool(false),
		monitor:       monitorOf(s.Monitor),
		logger:        loggerOf(&s),
		metrics:       newMetrics(s.Registerer),
	}
}

// Report summarises a run.
type Report struct {
	RunID     string
	Completed int
	Failed    []StepFailure
	// Cancelled is set when dispatch stopped early because of the monitor,
	// the visitor or the context.
	Cancelled bool
	// TimedOut is set when the parallel timeout ended the run.
	TimedOut bool
}

// Errors returns the errors of the failed steps.
func (r *Report) Errors() []error {
	errs := make([]error, len(r.Failed))
	for i, f := range r.Failed {
		errs[i] = f.Err
	}
	return errs
}

func (r *Report) String() string {
	var s string
	if len(r.Failed) == 0 {
		s = fmt.Sprintf("completed %d steps", r.Completed)
	} else {
		s = fmt.Sprintf("completed with %d failed steps", len(r.Failed))
	}
	switch {
	case r.TimedOut:
		s += " (timed out)"
	case r.Cancelled:
		s += " (cancelled)"
	}
	return s
}

// RunGraph linearises the graph rooted at root and runs it. Graphs that
// branch or merge fail with ErrNotLinearChain before any step runs.
func (r *SeriesRunner) RunGraph(ctx context.Context, it SliceIterator, v Visitor, root *Node) (*Report, error) {
	ops, err := Linearize(root)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx, it, v, ops...)
}

// Run executes ops over every slice of it.
//
// Chain configuration errors and iterator errors abort the run. Failures of
// single steps, including panics, are recorded in the Report and passed to
// the visitor if it is a FailureVisitor, and other steps carry on. Run
// returns ErrAllStepsFailed only when every attempted step failed.
//
// Cancellation stops dispatching new steps. Steps already running finish.
// In a parallel run with a ParallelTimeout, Run returns at the deadline
// even if steps are still running; their results are dropped and the
// Report is marked TimedOut.
func (r *SeriesRunner) Run(ctx context.Context, it SliceIterator, v Visitor, ops ...Operation) (*Report, error) {
	if len(ops) == 0 {
		return nil, ErrEmptyChain
	}
	if v == nil {
		v = NopVisitor{}
	}
	ranks, err := resolveRanks(ops, len(it.DataDims()))
	if err != nil {
		return nil, fmt.Errorf("runner %q: %w", r.name, err)
	}
	rep := &Report{RunID: uuid.NewString()}
	logger := r.logger.With("runner", r.name, "run_id", rep.RunID)
	if err := v.Init(ops, it); err != nil {
		return nil, fmt.Errorf("runner %q: initialising visitor: %w", r.name, err)
	}

	parallel := r.workers > 1
	// Steps outlive caller cancellation, but not the run's deadline.
	stepCtx := context.WithoutCancel(ctx)
	if parallel && r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
		deadline, _ := ctx.Deadline()
		stepCtx, cancel = context.WithDeadline(stepCtx, deadline)
		defer cancel()
	}
	logger.Info("starting run", "operations", len(ops), "workers", max(r.workers, 1), "total", it.Total())

	st := &runState{
		r:      r,
		rep:    rep,
		v:      v,
		ops:    ops,
		ranks:  ranks,
		logger: logger,
	}
	var g errgroup.Group
	sem := semaphore.NewWeighted(int64(max(r.workers, 1)))
	release := func() {
		if parallel {
			sem.Release(1)
		}
	}
	var runErr error
	for {
		if cancelled(ctx, r.monitor) || st.visitorCancelled() {
			st.stopped(ctx)
			break
		}
		if parallel {
			// A worker slot is taken before the next slice is read.
			if err := sem.Acquire(ctx, 1); err != nil {
				st.stopped(ctx)
				break
			}
		}
		if !it.HasNext(ctx) {
			release()
			if e, ok := it.(interface{ Err() error }); ok && e.Err() != nil {
				runErr = e.Err()
			} else if c, ok := it.(interface{ Cancelled() bool }); ok && c.Cancelled() {
				st.stopped(ctx)
			}
			break
		}
		slice, err := it.Next(ctx)
		if err != nil {
			release()
			runErr = err
			break
		}
		at := stepContext{shape: it.Shape(), dataDims: it.DataDims(), total: it.Total()}
		if parallel {
			g.Go(func() error {
				defer sem.Release(1)
				st.step(stepCtx, slice, at)
				return nil
			})
		} else {
			st.step(stepCtx, slice, at)
		}
	}
	if !st.wait(&g, stepCtx.Done()) {
		logger.Warn("run deadline passed with steps still running", "completed", rep.Completed)
	}

	if runErr != nil {
		logger.Error("run aborted", "err", runErr, "completed", rep.Completed)
		return rep, fmt.Errorf("runner %q: %w", r.name, runErr)
	}
	logger.Info("finished run", "report", rep.String())
	if rep.Completed == 0 && len(rep.Failed) > 0 {
		return rep, fmt.Errorf("runner %q: %d steps: %w", r.name, len(rep.Failed), ErrAllStepsFailed)
	}
	return rep, nil
}

// runState is shared by the steps of one run. mu serialises the visitor
// and the report.
type runState struct {
	r      *SeriesRunner
	rep    *Report
	v      Visitor
	ops    []Operation
	ranks  []Rank
	logger *slog.Logger

	mu sync.Mutex

	// abandoned is set once Run has returned with steps still running.
	abandoned bool
}

func (st *runState) visitorCancelled() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.v.Cancelled()
}

// wait waits for the dispatched steps or until expired is closed. Steps
// still running then are abandoned and their results dropped.
func (st *runState) wait(g *errgroup.Group, expired <-chan struct{}) bool {
	done := make(chan struct{})
	go func() {
		g.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-expired:
	}
	select {
	case <-done:
		return true
	default:
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.abandoned = true
	st.rep.TimedOut, st.rep.Cancelled = true, true
	return false
}

func (st *runState) stopped(ctx context.Context) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		st.rep.TimedOut = true
	}
	st.rep.Cancelled = true
}

// stepContext is the iterator's view when a step was dispatched.
type stepContext struct {
	shape, dataDims []int
	total           int
}

// step runs the whole chain over slice.
func (st *runState) step(ctx context.Context, slice *Dataset, at stepContext) {
	index := 0
	if o := slice.Origin(); o != nil {
		index = o.Info.SliceIndex
	}
	ctx, span := tracer.Start(ctx, "scanslice.step", trace.WithAttributes(
		attribute.String("run_id", st.rep.RunID),
		attribute.Int("slice", index),
	))
	defer span.End()
	start := time.Now()

	fail := func(op string, err error, log []*LogEntry) {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		st.r.metrics.steps.WithLabelValues("failed").Inc()
		st.logger.Warn("step failed", "slice", index, "op", op, "err", err)
		f := StepFailure{Index: index, Slice: slice, Operation: op, Err: err, Log: log}
		st.mu.Lock()
		defer st.mu.Unlock()
		if st.abandoned {
			return
		}
		st.rep.Failed = append(st.rep.Failed, f)
		if fv, ok := st.v.(FailureVisitor); ok {
			fv.Failed(f)
		}
	}

	cur := slice
	var inter []*Result
	current := ""
	defer func() {
		if p := recover(); p != nil {
			st.logger.Debug("step panicked", "slice", index, "stack", string(debug.Stack()))
			fail(current, fmt.Errorf("panic in step %d: %v", index, p), nil)
		}
	}()
	var res *Result
	for i, op := range st.ops {
		current = op.ID()
		var err error
		res, err = execute(ctx, op, cur, st.ranks[i], st.logger)
		if err != nil {
			var log []*LogEntry
			if res != nil {
				log = res.Log
			}
			fail(op.ID(), err, log)
			return
		}
		if st.r.intermediates {
			inter = append(inter, res)
		}
		cur = res.Data
	}
	current = ""
	st.r.metrics.stepDuration.Observe(time.Since(start).Seconds())

	sr := StepResult{
		Index:         index,
		Slice:         slice,
		Result:        res,
		Intermediates: inter,
		Shape:         at.shape,
		DataDims:      at.dataDims,
		Monitor:       st.r.monitor,
	}
	if err := st.deliver(sr, at.total); err != nil {
		fail("", fmt.Errorf("visitor rejected step %d: %w", index, err), res.Log)
		return
	}
	st.r.metrics.steps.WithLabelValues("ok").Inc()
}

func (st *runState) deliver(sr StepResult, total int) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.abandoned {
		return nil
	}
	if err := st.v.Executed(sr); err != nil {
		return err
	}
	st.rep.Completed++
	if st.r.monitor != nil {
		st.r.monitor.Worked(st.rep.Completed, total)
	}
	return nil
}
