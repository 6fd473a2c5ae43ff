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
	"slices"
	"time"
)

// IteratorState is the state of a DynamicSliceIterator.
type IteratorState int

const (
	// Waiting is the state after a wait timed out with no new data.
	Waiting IteratorState = iota
	// Ready means the next position is available.
	Ready
	// StaleRepeat means Next will re-offer the previous slice.
	StaleRepeat
	// Done means the array is finished and every position was produced.
	Done
	// Cancelled means a wait was aborted by cancellation.
	Cancelled
)

func (s IteratorState) String() string {
	switch s {
	case Waiting:
		return "WAITING"
	case Ready:
		return "READY"
	case StaleRepeat:
		return "STALE_REPEAT"
	case Done:
		return "DONE"
	case Cancelled:
		return "CANCELLED"
	}
	return fmt.Sprintf("IteratorState(%d)", int(s))
}

const (
	defaultMaxTimeout   = time.Second
	defaultPollInterval = 100 * time.Millisecond
)

// DynamicSliceIterator iterates an array that is still being written.
//
// The first scan dimension grows. How many flattened scan positions are
// complete is read from the progress arrays, the smallest count winning and
// never beyond the array's refreshed shape, and the finished flag says no
// more will be added. Both are re-read on every poll and never cached.
type DynamicSliceIterator struct {
	sc       *scanner
	progress []Progress
	explicit bool
	finished FinishedFlag

	maxTimeout time.Duration
	poll       time.Duration
	repeat     bool
	wake       <-chan struct{}
	monitor    Monitor
	logger     *slog.Logger
	metrics    *metrics

	pos   int
	state IteratorState
	ready bool
	last  *Dataset
	whole *SliceND
	err   error
}

var _ SliceIterator = (*DynamicSliceIterator)(nil)

// NewDynamicIterator returns an iterator over a growing array.
//
// Without progress arrays, availability is taken from the array's own
// refreshed shape. A nil finished flag is never set, so iteration ends only
// by timeout or cancellation. Along the first scan dimension, a Subslice
// region's stop is ignored.
func NewDynamicIterator(array LazyArray, progress []Progress, finished FinishedFlag, opts ...Options) (*DynamicSliceIterator, error) {
	s := joinOptions(opts)
	sc, err := newScanner(array, &s)
	if err != nil {
		return nil, err
	}
	if len(sc.scanDims) > 0 {
		sc.open = sc.scanDims[0]
	}
	whole, err := sc.domain(array.Shape())
	if err != nil {
		return nil, err
	}
	explicit := len(progress) > 0
	if !explicit {
		progress = []Progress{shapeProgress{sc}}
	}
	it := &DynamicSliceIterator{
		sc:         sc,
		progress:   slices.Clone(progress),
		explicit:   explicit,
		finished:   finished,
		maxTimeout: s.MaxTimeout,
		poll:       s.PollInterval,
		repeat:     s.Repeat.Bool(false),
		wake:       s.Wake,
		monitor:    monitorOf(s.Monitor),
		logger:     loggerOf(&s).With("iterator", iteratorName(s.Name, array)),
		metrics:    newMetrics(s.Registerer),
		whole:      whole,
	}
	if it.maxTimeout <= 0 {
		it.maxTimeout = defaultMaxTimeout
	}
	if it.poll <= 0 {
		it.poll = defaultPollInterval
	}
	return it, nil
}

// SetMaxTimeout sets the bound on a single HasNext wait.
func (it *DynamicSliceIterator) SetMaxTimeout(d time.Duration) {
	it.maxTimeout = d
}

// State returns the state after the last HasNext call.
func (it *DynamicSliceIterator) State() IteratorState { return it.state }

// Cancelled reports whether the last HasNext returned false because of
// cancellation rather than timeout or completion.
func (it *DynamicSliceIterator) Cancelled() bool { return it.state == Cancelled }

// Err returns the first error reading progress or the finished flag.
// HasNext returns false once it is set.
func (it *DynamicSliceIterator) Err() error { return it.err }

// HasNext reports whether the next scan position is available, waiting up
// to the maximum timeout for it. It returns false when the array is
// finished, when the wait times out, or on cancellation. In repeat mode a
// timed out wait returns true and Next re-offers the previous slice.
//
// Done and Cancelled are final.
func (it *DynamicSliceIterator) HasNext(ctx context.Context) bool {
	switch it.state {
	case Done, Cancelled:
		it.ready = false
		return false
	}
	if it.err != nil {
		return false
	}
	if cancelled(ctx, it.monitor) {
		return it.cancel()
	}
	ok, fin := it.check(ctx)
	if ok || fin || it.err != nil {
		return it.ready
	}

	start := time.Now()
	timeout := time.NewTimer(it.maxTimeout)
	defer timeout.Stop()
	tick := time.NewTicker(it.poll)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			it.metrics.pollWaits.WithLabelValues("cancelled").Inc()
			return it.cancel()
		case <-timeout.C:
			return it.timedOut(start)
		case <-it.wake:
		case <-tick.C:
		}
		if it.monitor != nil && it.monitor.Cancelled() {
			it.metrics.pollWaits.WithLabelValues("cancelled").Inc()
			return it.cancel()
		}
		ok, fin := it.check(ctx)
		switch {
		case ok:
			it.metrics.pollWaits.WithLabelValues("ready").Inc()
			return true
		case fin:
			it.metrics.pollWaits.WithLabelValues("finished").Inc()
			return false
		case it.err != nil:
			return false
		}
	}
}

// check re-reads the finished flag and then the progress arrays, so data
// written before the flag is never missed. It sets the state when the next
// position is ready or will never come.
func (it *DynamicSliceIterator) check(ctx context.Context) (ready, finished bool) {
	fin := false
	if it.finished != nil {
		f, err := it.finished.Finished(ctx)
		if err != nil {
			return it.fail(err)
		}
		fin = f
	}
	avail, err := it.available(ctx)
	if err != nil {
		return it.fail(err)
	}
	switch {
	case it.pos < avail:
		it.state, it.ready = Ready, true
		return true, false
	case fin:
		it.state, it.ready = Done, false
		it.logger.Debug("dynamic iteration finished", "slices", it.pos)
		return false, true
	}
	return false, false
}

// fail records a progress read error. The position is no longer known to be
// available.
func (it *DynamicSliceIterator) fail(err error) (ready, finished bool) {
	it.err = err
	it.state, it.ready = Waiting, false
	return false, false
}

// available is the number of positions covered by every progress array and,
// when explicit progress arrays are given, by the parent's refreshed shape.
// Keys may run ahead of the published data.
func (it *DynamicSliceIterator) available(ctx context.Context) (int, error) {
	progress := it.progress
	if it.explicit {
		progress = append(slices.Clip(progress), shapeProgress{it.sc})
	}
	avail := -1
	for _, p := range progress {
		n, err := p.Available(ctx)
		if err != nil {
			return 0, err
		}
		if avail < 0 || n < avail {
			avail = n
		}
	}
	if len(it.sc.scanDims) == 0 && avail > 1 {
		// Without scan dimensions there is a single position.
		avail = 1
	}
	return avail, nil
}

func (it *DynamicSliceIterator) timedOut(start time.Time) bool {
	if it.repeat && it.last != nil {
		it.metrics.pollWaits.WithLabelValues("repeat").Inc()
		it.state, it.ready = StaleRepeat, true
		return true
	}
	it.metrics.pollWaits.WithLabelValues("timeout").Inc()
	it.state, it.ready = Waiting, false
	it.logger.Debug("dynamic wait timed out", "position", it.pos, "waited", time.Since(start))
	return false
}

func (it *DynamicSliceIterator) cancel() bool {
	it.state, it.ready = Cancelled, false
	it.logger.Debug("dynamic iteration cancelled", "position", it.pos)
	return false
}

// Next returns the slice at the next position, or for StaleRepeat the
// previous slice unchanged. The parent's shape is refreshed first.
func (it *DynamicSliceIterator) Next(ctx context.Context) (*Dataset, error) {
	if !it.ready {
		return nil, ErrIteratorExhausted
	}
	it.ready = false
	if it.state == StaleRepeat {
		return it.last, nil
	}
	if err := refresh(ctx, it.sc.array); err != nil {
		return nil, err
	}
	whole, err := it.sc.domain(it.sc.array.Shape())
	if err != nil {
		return nil, err
	}
	it.whole = whole
	d, err := it.sc.read(ctx, whole, it.pos, it.Total())
	if err != nil {
		return nil, err
	}
	it.pos++
	it.last = d
	return d, nil
}

// Position is the number of distinct slices produced.
func (it *DynamicSliceIterator) Position() int { return it.pos }

func (it *DynamicSliceIterator) Parent() LazyArray { return it.sc.array }
func (it *DynamicSliceIterator) Shape() []int      { return it.whole.Shape() }
func (it *DynamicSliceIterator) DataDims() []int   { return slices.Clone(it.sc.dataDims) }

// Total is the number of steps when the parent knows its maximum shape,
// otherwise -1.
func (it *DynamicSliceIterator) Total() int {
	ms, ok := it.sc.array.(MaxShaper)
	if !ok {
		return -1
	}
	final := ms.MaxShape()
	if slices.Contains(final, Unlimited) {
		return -1
	}
	whole, err := it.sc.domain(final)
	if err != nil {
		return -1
	}
	return product(it.sc.counts(whole))
}
