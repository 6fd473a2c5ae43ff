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
	"sync"
	"sync/atomic"
)

// Monitor is polled by iterators and the runner at step boundaries and at
// every poll interval of a dynamic wait.
type Monitor interface {
	// Cancelled reports whether work should stop.
	Cancelled() bool
	// Worked records progress: done of total steps, total is -1 if unknown.
	Worked(done, total int)
}

// ContextMonitor is a Monitor that is cancelled with its context or an
// explicit Cancel call.
type ContextMonitor struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	done, total int
	cancelled   atomic.Bool
}

// NewMonitor returns a Monitor that is cancelled when ctx is done.
func NewMonitor(ctx context.Context) *ContextMonitor {
	ctx, cancel := context.WithCancel(ctx)
	return &ContextMonitor{ctx: ctx, cancel: cancel, total: -1}
}

// Cancel cancels the monitor.
func (m *ContextMonitor) Cancel() {
	m.cancelled.Store(true)
	m.cancel()
}

// Cancelled implements Monitor.
func (m *ContextMonitor) Cancelled() bool {
	return m.cancelled.Load() || m.ctx.Err() != nil
}

// Done is closed when the monitor is cancelled.
func (m *ContextMonitor) Done() <-chan struct{} {
	return m.ctx.Done()
}

// Worked implements Monitor.
func (m *ContextMonitor) Worked(done, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.done, m.total = done, total
}

// Progress returns the last reported progress.
func (m *ContextMonitor) Progress() (done, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.done, m.total
}

func monitorOf(c any) Monitor {
	m, _ := c.(Monitor)
	return m
}

func cancelled(ctx context.Context, m Monitor) bool {
	return ctx.Err() != nil || (m != nil && m.Cancelled())
}
