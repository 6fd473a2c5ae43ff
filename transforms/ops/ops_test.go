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

package ops

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"lostluck.dev/scanslice"
)

// firstSlice returns the first slice of d iterated over the given data dims.
func firstSlice(t *testing.T, d *scanslice.Dataset, dataDims ...int) *scanslice.Dataset {
	t.Helper()
	it, err := scanslice.NewStaticIterator(d, scanslice.DataDims(dataDims...))
	if err != nil {
		t.Fatal(err)
	}
	if !it.HasNext(context.Background()) {
		t.Fatal("no slices")
	}
	s, err := it.Next(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func row(vals ...float64) *scanslice.Dataset {
	d, err := scanslice.NewDataset([]int{1, len(vals)}, vals)
	if err != nil {
		panic(err)
	}
	return d
}

var approx = cmpopts.EquateApprox(0, 1e-12)

func TestOps(t *testing.T) {
	tests := []struct {
		name      string
		op        scanslice.Operation
		in        *scanslice.Dataset
		dataDims  []int
		wantShape []int
		want      []float64
		failed    bool
	}{
		{
			name:      "sum",
			op:        NewSum(),
			in:        row(1, 2, 3, 4),
			dataDims:  []int{1},
			wantShape: []int{1},
			want:      []float64{10},
		}, {
			name:      "scale",
			op:        NewScale(ScaleConfig{Factor: 2, Offset: -1}),
			in:        row(0, 1, 2),
			dataDims:  []int{1},
			wantShape: []int{1, 3},
			want:      []float64{-1, 1, 3},
		}, {
			name:      "normalizeMax",
			op:        NewNormalize(NormalizeConfig{Mode: NormMax}),
			in:        row(1, -4, 2),
			dataDims:  []int{1},
			wantShape: []int{1, 3},
			want:      []float64{0.25, -1, 0.5},
		}, {
			name:      "normalizeL2",
			op:        NewNormalize(NormalizeConfig{Mode: NormL2}),
			in:        row(3, 4),
			dataDims:  []int{1},
			wantShape: []int{1, 2},
			want:      []float64{0.6, 0.8},
		}, {
			name:      "normalizeZero",
			op:        NewNormalize(NormalizeConfig{Mode: NormSum}),
			in:        row(1, -1),
			dataDims:  []int{1},
			wantShape: []int{1, 2},
			want:      []float64{1, -1},
			failed:    true,
		}, {
			name:      "projectRows",
			op:        NewProject(ProjectConfig{Axis: 1, Reduce: "sum"}),
			in:        scanslice.Arange(2, 3),
			dataDims:  []int{0, 1},
			wantShape: []int{2},
			want:      []float64{3, 12},
		}, {
			name:      "projectColumnsMean",
			op:        NewProject(ProjectConfig{Axis: 0, Reduce: "mean"}),
			in:        scanslice.Arange(2, 3),
			dataDims:  []int{0, 1},
			wantShape: []int{3},
			want:      []float64{1.5, 2.5, 3.5},
		}, {
			name:      "outer",
			op:        NewOuter(OuterConfig{Scale: 1}),
			in:        row(1, 2),
			dataDims:  []int{1},
			wantShape: []int{1, 2, 2},
			want:      []float64{1, 2, 2, 4},
		}, {
			name:      "stats",
			op:        NewStats(StatsConfig{}),
			in:        row(2, 4, 4, 4, 5, 5, 7, 9),
			dataDims:  []int{1},
			wantShape: []int{1, 4},
			want:      []float64{5, math.Sqrt(32.0 / 7), 2, 9},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			slice := firstSlice(t, test.in, test.dataDims...)
			res, err := scanslice.Execute(context.Background(), test.op, slice)
			if err != nil {
				t.Fatalf("Execute(%v) failed: %v", test.op.Name(), err)
			}
			if d := cmp.Diff(test.wantShape, res.Data.Shape()); d != "" {
				t.Errorf("result shape diff (-want, +got):\n%v", d)
			}
			if d := cmp.Diff(test.want, res.Data.Data(), approx); d != "" {
				t.Errorf("result data diff (-want, +got):\n%v", d)
			}
			if got, want := res.Failed(), test.failed; got != want {
				t.Errorf("Failed() = %v, want %v, log %v", got, want, res.Log)
			}
		})
	}
}

func TestProjectKeepsAxis(t *testing.T) {
	d := scanslice.Arange(2, 3)
	if err := d.SetAxis(0, mustDataset(t, []int{2}, []float64{100, 200})); err != nil {
		t.Fatal(err)
	}
	slice := firstSlice(t, d, 0, 1)
	res, err := scanslice.Execute(context.Background(), NewProject(ProjectConfig{Axis: 1, Reduce: "sum"}), slice)
	if err != nil {
		t.Fatal(err)
	}
	ax := res.Data.Axis(0)
	if ax == nil {
		t.Fatal("projection dropped the kept axis")
	}
	if d := cmp.Diff([]float64{100, 200}, ax.Data()); d != "" {
		t.Errorf("axis diff (-want, +got):\n%v", d)
	}
}

func TestStatsHistogram(t *testing.T) {
	slice := firstSlice(t, row(0, 1.5, 1.5, 2.5, 3.5, 3.5, 3.5, 4), 1)
	res, err := scanslice.Execute(context.Background(), NewStats(StatsConfig{Bins: 4}), slice)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Aux) != 1 {
		t.Fatalf("got %d auxiliary outputs, want 1", len(res.Aux))
	}
	hist := res.Aux[0]
	if d := cmp.Diff([]int{1, 4}, hist.Shape()); d != "" {
		t.Errorf("histogram shape diff (-want, +got):\n%v", d)
	}
	if d := cmp.Diff([]float64{1, 2, 1, 4}, hist.Data()); d != "" {
		t.Errorf("histogram diff (-want, +got):\n%v", d)
	}
}

func TestStatsEmpty(t *testing.T) {
	if _, err := NewStats(StatsConfig{}).Process(context.Background(), scanslice.Zeros(0), nil); err == nil {
		t.Error("stats of an empty slice succeeded")
	}
}

func TestRankChecks(t *testing.T) {
	slice := firstSlice(t, row(1, 2), 1)
	_, err := scanslice.Execute(context.Background(), NewProject(ProjectConfig{Reduce: "sum"}), slice)
	if !errors.Is(err, scanslice.ErrRankMismatch) {
		t.Errorf("project of a 1-d slice: got %v, want %v", err, scanslice.ErrRankMismatch)
	}
}

func mustDataset(t *testing.T, shape []int, data []float64) *scanslice.Dataset {
	t.Helper()
	d, err := scanslice.NewDataset(shape, data)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestRegister(t *testing.T) {
	reg := scanslice.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff([]string{"normalize", "outer", "project", "scale", "stats", "sum"}, reg.IDs()); d != "" {
		t.Errorf("registered ids diff (-want, +got):\n%v", d)
	}

	op, err := reg.New("Scale", []byte(`{"factor": 3}`))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := op.Name(), "scale(3x+0)"; got != want {
		t.Errorf("Name() = %q, want %q", got, want)
	}
	op, err = reg.New("normalize", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := op.Name(), "normalize(max)"; got != want {
		t.Errorf("default Name() = %q, want %q", got, want)
	}

	for _, bad := range []struct{ id, config string }{
		{"normalize", `{"mode": "median"}`},
		{"project", `{"axis": 2}`},
		{"outer", `{"scale": 0}`},
		{"scale", `{"factr": 2}`},
		{"stats", `{"bins": -1}`},
	} {
		if _, err := reg.New(bad.id, []byte(bad.config)); err == nil {
			t.Errorf("New(%q, %s) succeeded, want a config error", bad.id, bad.config)
		}
	}

	if err := Register(reg); err == nil {
		t.Error("registering twice succeeded")
	}
}
