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

package synthetic

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"lostluck.dev/scanslice"
	"lostluck.dev/scanslice/zarr"
)

func TestStep(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name       string
		cfg        StepConfig
		wantFailed int
	}{
		{name: "passThrough", cfg: StepConfig{}, wantFailed: 0},
		{name: "allFail", cfg: StepConfig{FailureRatio: 1}, wantFailed: 6},
		{name: "allPanic", cfg: StepConfig{PanicRatio: 1}, wantFailed: 6},
		{name: "delayed", cfg: StepConfig{DelayMillis: 1}, wantFailed: 0},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			it, err := scanslice.NewStaticIterator(scanslice.Arange(6, 2), scanslice.DataDims(1))
			if err != nil {
				t.Fatal(err)
			}
			c := &scanslice.Collector{}
			rep, err := scanslice.NewSeriesRunner(scanslice.Workers(3)).Run(ctx, it, c, NewStep(test.cfg))
			if test.wantFailed == 6 {
				if !errors.Is(err, scanslice.ErrAllStepsFailed) {
					t.Errorf("Run() error = %v, want %v", err, scanslice.ErrAllStepsFailed)
				}
			} else if err != nil {
				t.Fatalf("Run() failed: %v", err)
			}
			if got := len(rep.Failed); got != test.wantFailed {
				t.Errorf("failed steps = %d, want %d", got, test.wantFailed)
			}
			if got, want := rep.Completed, 6-test.wantFailed; got != want {
				t.Errorf("completed steps = %d, want %d", got, want)
			}
			for _, r := range c.Sorted() {
				want, err := scanslice.Arange(6, 2).Extract(r.Slice.Origin().Info.FromInput)
				if err != nil {
					t.Fatal(err)
				}
				if d := cmp.Diff(want.Data(), r.Result.Data.Data()); d != "" {
					t.Errorf("slice %d diff (-want, +got):\n%v", r.Index, d)
				}
			}
		})
	}
}

func TestStepRatios(t *testing.T) {
	ctx := context.Background()
	it, err := scanslice.NewStaticIterator(scanslice.Arange(200, 1), scanslice.DataDims(1))
	if err != nil {
		t.Fatal(err)
	}
	rep, err := scanslice.NewSeriesRunner().Run(ctx, it, scanslice.NopVisitor{}, NewStep(StepConfig{FailureRatio: 0.5, Seed: 7}))
	if err != nil {
		t.Fatal(err)
	}
	if n := len(rep.Failed); n < 50 || n > 150 {
		t.Errorf("failed %d of 200 steps at ratio 0.5", n)
	}
	for _, err := range rep.Errors() {
		if !errors.Is(err, ErrInjected) {
			t.Fatalf("unexpected step error %v", err)
		}
	}
}

func TestRegister(t *testing.T) {
	reg := scanslice.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.New("synthetic", []byte(`{"failure_ratio": 2}`)); err == nil {
		t.Error("failure ratio of 2 accepted")
	}
	op, err := reg.New("SYNTHETIC", []byte(`{"delay_ms": 5, "seed": 3}`))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := op.(*Step).cfg, (StepConfig{DelayMillis: 5, Seed: 3}); got != want {
		t.Errorf("decoded config %+v, want %+v", got, want)
	}
}

func TestAcquisition(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	store := zarr.NewMemoryStore()
	cfg := AcquisitionConfig{Frames: 8, FrameShape: []int{2, 3}, Interval: time.Millisecond}
	acq, err := NewAcquisition(ctx, store, "scan", cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	live, err := OpenLive(ctx, store, "scan")
	if err != nil {
		t.Fatal(err)
	}
	it, err := live.Iterator(scanslice.PollInterval(time.Millisecond), scanslice.MaxTimeout(10*time.Second))
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- acq.Run(ctx) }()

	c := &scanslice.Collector{}
	rep, err := scanslice.NewSeriesRunner().Run(ctx, it, c, scanslice.MapElements("copy", func(v float64) float64 { return v }))
	if err != nil {
		t.Fatal(err)
	}
	if err := <-done; err != nil {
		t.Fatalf("acquisition failed: %v", err)
	}
	if got, want := rep.Completed, cfg.Frames; got != want {
		t.Fatalf("completed %d steps, want %d", got, want)
	}
	if got, want := it.State(), scanslice.Done; got != want {
		t.Errorf("iterator state %v, want %v", got, want)
	}
	for i, r := range c.Sorted() {
		if d := cmp.Diff(acq.Frame(i).Data(), r.Result.Data.Data()); d != "" {
			t.Errorf("frame %d diff (-want, +got):\n%v", i, d)
		}
		ax := r.Slice.Axis(0)
		if ax == nil {
			t.Errorf("frame %d has no frame axis", i)
			continue
		}
		if got := ax.Data()[0]; got != float64(i) {
			t.Errorf("frame %d axis value %v", i, got)
		}
	}
}

func TestAcquisitionCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := zarr.NewMemoryStore()
	acq, err := NewAcquisition(ctx, store, "scan", AcquisitionConfig{Frames: 1000, FrameShape: []int{1}, Interval: time.Hour}, nil)
	if err != nil {
		t.Fatal(err)
	}
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	if err := acq.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, want %v", err, context.Canceled)
	}
	live, err := OpenLive(context.Background(), store, "scan")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := live.Data.Shape(), []int{1, 1}; !cmp.Equal(got, want) {
		t.Errorf("data shape %v, want %v", got, want)
	}
	if fin, err := live.Finished.Finished(context.Background()); err != nil || fin {
		t.Errorf("Finished() = %v, %v; want false", fin, err)
	}

	if _, err := NewAcquisition(context.Background(), store, "bad", AcquisitionConfig{Frames: 1, FrameShape: []int{0}}, nil); err == nil {
		t.Error("zero length frame accepted")
	}
}
