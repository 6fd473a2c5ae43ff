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
	"testing"

	"github.com/google/go-cmp/cmp"
)

// withAxes returns Arange(shape...) with axis i holding 0..shape[i]-1 scaled
// by 10^i.
func withAxes(t *testing.T, shape ...int) *Dataset {
	t.Helper()
	d := Arange(shape...)
	d.SetName("frames")
	scale := 1.0
	for i, n := range shape {
		ax := Arange(n)
		for j := range ax.Data() {
			ax.Data()[j] *= scale
		}
		if err := d.SetAxis(i, ax); err != nil {
			t.Fatal(err)
		}
		scale *= 10
	}
	return d
}

func axisShapes(d *Dataset) [][]int {
	out := make([][]int, d.Rank())
	for i, ax := range d.Axes() {
		if ax != nil {
			out[i] = ax.Shape()
		}
	}
	return out
}

var sliceNDComparer = cmp.Comparer(func(a, b *SliceND) bool { return a.Equal(b) })

func TestStaticIterator_WorkedScenarios(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name      string
		dataDims  []int
		total     int
		shape     []int
		axes      [][]int
		dataStart float64
	}{
		{
			name:     "1D",
			dataDims: []int{3},
			total:    5 * 6 * 7,
			shape:    []int{1, 1, 1, 8},
			axes:     [][]int{{1, 1, 1, 1}, {1, 1, 1, 1}, {1, 1, 1, 1}, {1, 1, 1, 8}},
		}, {
			name:     "2Dfrom4D",
			dataDims: []int{2, 3},
			total:    5 * 6,
			shape:    []int{1, 1, 7, 8},
			axes:     [][]int{{1, 1, 1, 1}, {1, 1, 1, 1}, {1, 1, 7, 1}, {1, 1, 1, 8}},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			it, err := NewStaticIterator(withAxes(t, 5, 6, 7, 8), DataDims(test.dataDims...))
			if err != nil {
				t.Fatal(err)
			}
			if got := it.Total(); got != test.total {
				t.Errorf("Total() = %d, want %d", got, test.total)
			}
			if !it.HasNext(ctx) {
				t.Fatal("HasNext() = false on a fresh iterator")
			}
			s, err := it.Next(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if d := cmp.Diff(test.shape, s.Shape()); d != "" {
				t.Errorf("slice shape diff (-want, +got):\n%v", d)
			}
			if d := cmp.Diff(test.axes, axisShapes(s)); d != "" {
				t.Errorf("axis shapes diff (-want, +got):\n%v", d)
			}
			o := s.Origin()
			if o == nil {
				t.Fatal("slice has no origin")
			}
			if o.DatasetName != "frames" || o.Info.SliceIndex != 1 || o.Info.TotalSlices != test.total {
				t.Errorf("origin = %+v", o)
			}
			if d := cmp.Diff(test.dataDims, o.Info.DataDims); d != "" {
				t.Errorf("dataDims diff (-want, +got):\n%v", d)
			}
		})
	}
}

func TestExecute_RankIncreaseWithoutAxes(t *testing.T) {
	ctx := context.Background()
	it, err := NewStaticIterator(withAxes(t, 5, 6, 7, 8), DataDims(3))
	if err != nil {
		t.Fatal(err)
	}
	s, err := it.Next(ctx)
	if err != nil {
		t.Fatal(err)
	}
	outer := Map("outer", Rank(1), Rank(2), func(d *Dataset) (*Dataset, error) {
		n := d.Shape()[0]
		out := Zeros(n, n)
		for i := range n {
			for j := range n {
				out.Set(d.At(i)*d.At(j), i, j)
			}
		}
		return out, nil
	})
	res, err := Execute(ctx, outer, s)
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff([]int{1, 1, 1, 8, 8}, res.Data.Shape()); d != "" {
		t.Errorf("result shape diff (-want, +got):\n%v", d)
	}
	want := [][]int{{1, 1, 1, 1, 1}, {1, 1, 1, 1, 1}, {1, 1, 1, 1, 1}, nil, nil}
	if d := cmp.Diff(want, axisShapes(res.Data)); d != "" {
		t.Errorf("axis shapes diff (-want, +got):\n%v", d)
	}
	info := res.Data.Origin().Info
	if d := cmp.Diff([]int{3, 4}, info.DataDims); d != "" {
		t.Errorf("result dataDims diff (-want, +got):\n%v", d)
	}
	if d := cmp.Diff([]int{5, 6, 7, 8, 8}, info.OutputShape()); d != "" {
		t.Errorf("result output shape diff (-want, +got):\n%v", d)
	}
	// The input slice's information is untouched.
	if d := cmp.Diff([]int{3}, s.Origin().Info.DataDims); d != "" {
		t.Errorf("input dataDims diff (-want, +got):\n%v", d)
	}
}

// For every input rank k and output rank k', the result has R-k+k' axis
// entries: R-k all ones, then k' either nil or matching the output.
func TestExecute_RankTransformationLaw(t *testing.T) {
	ctx := context.Background()
	shape := []int{3, 4, 5, 6}
	r := len(shape)
	for k := 0; k <= r; k++ {
		for kOut := 0; kOut <= 3; kOut++ {
			dd := make([]int, k)
			for i := range dd {
				dd[i] = r - k + i
			}
			it, err := NewStaticIterator(withAxes(t, shape...), DataDims(dd...))
			if err != nil {
				t.Fatal(err)
			}
			s, err := it.Next(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			op := Map("reshape", Rank(k), Rank(kOut), func(d *Dataset) (*Dataset, error) {
				out := make([]int, kOut)
				for i := range out {
					out[i] = i + 2
				}
				return Zeros(out...), nil
			})
			res, err := Execute(ctx, op, s)
			if err != nil {
				t.Fatalf("k=%d k'=%d: %v", k, kOut, err)
			}
			axes := res.Data.Axes()
			if got, want := len(axes), r-k+kOut; got != want {
				t.Fatalf("k=%d k'=%d: %d axis entries, want %d", k, kOut, got, want)
			}
			for i, ax := range axes {
				if ax == nil {
					if i < r-k {
						t.Errorf("k=%d k'=%d: scan axis %d is nil", k, kOut, i)
					}
					continue
				}
				wantShape := onesShape(len(axes))
				if i >= r-k {
					wantShape[i] = res.Data.Shape()[i]
				}
				if d := cmp.Diff(wantShape, ax.Shape()); d != "" {
					t.Errorf("k=%d k'=%d: axis %d shape diff (-want, +got):\n%v", k, kOut, i, d)
				}
			}
		}
	}
}

func TestStaticIterator_RowMajorOrder(t *testing.T) {
	ctx := context.Background()
	it, err := NewStaticIterator(Arange(2, 3, 4), AutoRank(1))
	if err != nil {
		t.Fatal(err)
	}
	var firsts []float64
	var indices []int
	for it.HasNext(ctx) {
		s, err := it.Next(ctx)
		if err != nil {
			t.Fatal(err)
		}
		firsts = append(firsts, s.Data()[0])
		indices = append(indices, s.Origin().Info.SliceIndex)
	}
	if d := cmp.Diff([]float64{0, 4, 8, 12, 16, 20}, firsts); d != "" {
		t.Errorf("traversal diff (-want, +got):\n%v", d)
	}
	if d := cmp.Diff([]int{1, 2, 3, 4, 5, 6}, indices); d != "" {
		t.Errorf("slice index diff (-want, +got):\n%v", d)
	}
	if _, err := it.Next(ctx); !errors.Is(err, ErrIteratorExhausted) {
		t.Errorf("Next after the end = %v, want ErrIteratorExhausted", err)
	}
}

func TestStaticIterator_LeadingDataDim(t *testing.T) {
	ctx := context.Background()
	it, err := NewStaticIterator(Arange(2, 3), DataDims(0))
	if err != nil {
		t.Fatal(err)
	}
	var got [][]float64
	for it.HasNext(ctx) {
		s, err := it.Next(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if d := cmp.Diff([]int{2, 1}, s.Shape()); d != "" {
			t.Fatalf("slice shape diff (-want, +got):\n%v", d)
		}
		got = append(got, s.Data())
	}
	if d := cmp.Diff([][]float64{{0, 3}, {1, 4}, {2, 5}}, got); d != "" {
		t.Errorf("columns diff (-want, +got):\n%v", d)
	}
}

func TestStaticIterator_ResetIdempotent(t *testing.T) {
	ctx := context.Background()
	it, err := NewStaticIterator(withAxes(t, 3, 4, 5), DataDims(2))
	if err != nil {
		t.Fatal(err)
	}
	type step struct {
		Data []float64
		Axes [][]float64
		Info SliceInformation
	}
	pass := func() []step {
		var out []step
		for it.HasNext(ctx) {
			s, err := it.Next(ctx)
			if err != nil {
				t.Fatal(err)
			}
			st := step{Data: s.Data(), Info: s.Origin().Info}
			for _, ax := range s.Axes() {
				st.Axes = append(st.Axes, ax.Data())
			}
			out = append(out, st)
		}
		return out
	}
	first := pass()
	if len(first) != 12 {
		t.Fatalf("first pass produced %d slices, want 12", len(first))
	}
	it.Reset()
	if it.Position() != 0 {
		t.Errorf("Position() after Reset = %d, want 0", it.Position())
	}
	second := pass()
	if d := cmp.Diff(first, second, sliceNDComparer); d != "" {
		t.Errorf("second pass diff (-first, +second):\n%v", d)
	}
}

func TestStaticIterator_Subslice(t *testing.T) {
	ctx := context.Background()
	region, err := NewSliceNDFrom([]int{4, 5}, Slice{Start: 1, Stop: 4, Step: 2}, Slice{Start: 1, Stop: 3})
	if err != nil {
		t.Fatal(err)
	}
	it, err := NewStaticIterator(Arange(4, 5), AutoRank(1), Subslice(region))
	if err != nil {
		t.Fatal(err)
	}
	if got := it.Total(); got != 2 {
		t.Fatalf("Total() = %d, want 2", got)
	}
	var got [][]float64
	var inOut []string
	for it.HasNext(ctx) {
		s, err := it.Next(ctx)
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, s.Data())
		inOut = append(inOut, s.Origin().Info.InOutput.String())
	}
	if d := cmp.Diff([][]float64{{6, 7}, {16, 17}}, got); d != "" {
		t.Errorf("slices diff (-want, +got):\n%v", d)
	}
	if d := cmp.Diff([]string{"[0:1, :]", "[1:2, :]"}, inOut); d != "" {
		t.Errorf("InOutput diff (-want, +got):\n%v", d)
	}
}

func TestNewStaticIterator_BadDataDims(t *testing.T) {
	for _, opts := range [][]Options{
		{DataDims(4)},
		{DataDims(1, 1)},
		{AutoRank(5)},
		{AutoRank(-1)},
	} {
		if _, err := NewStaticIterator(Zeros(2, 2, 2), opts...); err == nil {
			t.Errorf("NewStaticIterator(%v) succeeded, want error", opts)
		}
	}
}
