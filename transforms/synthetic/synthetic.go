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

// Package synthetic produces slices and load.
// Typically used for load testing, and for exercising the dynamic iterator
// against data that is still being written.
package synthetic

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"lostluck.dev/scanslice"
)

// ErrInjected is returned by a Step chosen to fail.
var ErrInjected = errors.New("synthetic: injected failure")

// StepConfig controls a Step.
type StepConfig struct {
	// DelayMillis is slept per slice.
	DelayMillis int `json:"delay_ms" validate:"min=0"`
	// FailureRatio is the chance a slice returns ErrInjected.
	FailureRatio float64 `json:"failure_ratio" validate:"min=0,max=1"`
	// PanicRatio is the chance a slice panics.
	PanicRatio float64 `json:"panic_ratio" validate:"min=0,max=1"`
	Seed       uint64  `json:"seed"`
}

// Step is an Operation which can be controlled with prespecified
// parameters. Slices that pass through are returned unchanged.
type Step struct {
	cfg StepConfig

	mu  sync.Mutex
	rng *rand.Rand
}

// NewStep returns a Step with its own random source.
func NewStep(cfg StepConfig) *Step {
	return &Step{cfg: cfg, rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))}
}

func (s *Step) ID() string                 { return "synthetic" }
func (s *Step) Name() string               { return "synthetic" }
func (s *Step) InputRank() scanslice.Rank  { return scanslice.RankAny }
func (s *Step) OutputRank() scanslice.Rank { return scanslice.RankSame }

func (s *Step) draw() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

func (s *Step) Process(ctx context.Context, d *scanslice.Dataset, pc *scanslice.ProcessContext) (*scanslice.Output, error) {
	if s.cfg.DelayMillis > 0 {
		t := time.NewTimer(time.Duration(s.cfg.DelayMillis) * time.Millisecond)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, context.Cause(ctx)
		case <-t.C:
		}
	}
	// One draw decides the outcome, so the ratios partition [0, 1).
	r := s.draw()
	switch {
	case r < s.cfg.PanicRatio:
		panic("synthetic: injected panic")
	case r < s.cfg.PanicRatio+s.cfg.FailureRatio:
		pc.Failure("synthetic", "injecting failure", "slice", pc.Info().SliceIndex)
		return nil, ErrInjected
	}
	out, err := scanslice.NewDataset(d.Shape(), slices.Clone(d.Data()))
	if err != nil {
		return nil, err
	}
	for i, ax := range d.Axes() {
		if ax == nil {
			continue
		}
		if err := out.SetAxis(i, ax); err != nil {
			return nil, err
		}
	}
	pc.Success("synthetic", "passed")
	return &scanslice.Output{Data: out}, nil
}

// Register adds the synthetic step to reg.
func Register(reg *scanslice.Registry) error {
	return reg.Register("synthetic", scanslice.Typed(StepConfig{}, func(c StepConfig) (scanslice.Operation, error) {
		return NewStep(c), nil
	}))
}
