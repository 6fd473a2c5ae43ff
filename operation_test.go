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

func firstSlice(t *testing.T, d *Dataset, opts ...Options) *Dataset {
	t.Helper()
	it, err := NewStaticIterator(d, opts...)
	if err != nil {
		t.Fatal(err)
	}
	s, err := it.Next(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// spanOp records log spans and returns an auxiliary sum.
type spanOp struct{}

func (spanOp) ID() string       { return "spans" }
func (spanOp) Name() string     { return "Spans" }
func (spanOp) InputRank() Rank  { return 1 }
func (spanOp) OutputRank() Rank { return RankSame }

func (spanOp) Process(_ context.Context, d *Dataset, pc *ProcessContext) (*Output, error) {
	sum := 0.0
	for _, v := range d.Data() {
		sum += v
	}
	pc.Success("sum", "summed", "total", sum)
	pc.Failure("check", "sum is suspicious")
	pc.Logger().Info("plain")
	if got := pc.Info().SliceIndex; got != 1 {
		return nil, errors.New("wrong slice information")
	}
	return &Output{Data: d, Aux: []*Dataset{Scalar(sum)}}, nil
}

func TestExecute_AxesCarryOverAndAux(t *testing.T) {
	s := firstSlice(t, withAxes(t, 3, 4), DataDims(1))
	res, err := Execute(context.Background(), spanOp{}, s)
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff(s.Data(), res.Data.Data()); d != "" {
		t.Errorf("identity data diff (-want, +got):\n%v", d)
	}
	ax := res.Data.Axis(1)
	if ax == nil {
		t.Fatal("data axis not carried over")
	}
	if d := cmp.Diff([]float64{0, 10, 20, 30}, ax.Data()); d != "" {
		t.Errorf("carried axis diff (-want, +got):\n%v", d)
	}
	if len(res.Aux) != 1 {
		t.Fatalf("got %d aux outputs, want 1", len(res.Aux))
	}
	if d := cmp.Diff([]int{1}, res.Aux[0].Shape()); d != "" {
		t.Errorf("aux shape diff (-want, +got):\n%v", d)
	}
	if got := res.Aux[0].Data()[0]; got != 6 {
		t.Errorf("aux sum = %v, want 6", got)
	}

	type entry struct {
		Msg, Span string
		Status    SpanStatus
	}
	var got []entry
	for _, e := range res.Log {
		got = append(got, entry{e.Message, e.Span, e.Status})
	}
	want := []entry{
		{"summed", "sum", SpanSuccess},
		{"sum is suspicious", "check", SpanFailure},
		{"plain", "", SpanNone},
	}
	if d := cmp.Diff(want, got); d != "" {
		t.Errorf("log diff (-want, +got):\n%v", d)
	}
	if !res.Failed() {
		t.Error("Failed() = false with a failure span")
	}
}

func TestExecute_RankMismatch(t *testing.T) {
	ctx := context.Background()
	s := firstSlice(t, Arange(3, 4, 5), AutoRank(2))

	identity := func(d *Dataset) (*Dataset, error) { return d, nil }
	_, err := Execute(ctx, Map("needs1", Rank(1), RankSame, identity), s)
	var rme *RankMismatchError
	if !errors.As(err, &rme) || rme.Output || rme.Got != 2 || rme.Want != 1 {
		t.Errorf("input mismatch error = %v", err)
	}
	if !errors.Is(err, ErrRankMismatch) {
		t.Errorf("errors.Is(%v, ErrRankMismatch) = false", err)
	}

	flatten := func(d *Dataset) (*Dataset, error) { return d.Reshape(d.Size()) }
	_, err = Execute(ctx, Map("flatten", RankAny, RankSame, flatten), s)
	if !errors.As(err, &rme) || !rme.Output {
		t.Errorf("output mismatch error = %v", err)
	}
	_, err = Execute(ctx, Map("flatten", RankAny, Rank(3), flatten), s)
	if !errors.Is(err, ErrRankMismatch) {
		t.Errorf("declared output mismatch error = %v", err)
	}
	if _, err := Execute(ctx, Map("flatten", RankAny, Rank(1), flatten), s); err != nil {
		t.Errorf("declared rank 1 output: %v", err)
	}
}

func TestExecute_Errors(t *testing.T) {
	ctx := context.Background()
	if _, err := Execute(ctx, MapElements("neg", func(v float64) float64 { return -v }), Arange(3)); !errors.Is(err, ErrNoOrigin) {
		t.Errorf("Execute without origin = %v, want ErrNoOrigin", err)
	}
	boom := errors.New("boom")
	op := Map("fails", RankAny, RankSame, func(*Dataset) (*Dataset, error) { return nil, boom })
	res, err := Execute(ctx, op, firstSlice(t, Arange(2, 2), AutoRank(1)))
	if !errors.Is(err, boom) {
		t.Errorf("Execute = %v, want %v", err, boom)
	}
	if res == nil {
		t.Error("no partial result on operation error")
	}
}

func TestExecute_Chained(t *testing.T) {
	ctx := context.Background()
	s := firstSlice(t, withAxes(t, 2, 3, 4), DataDims(1, 2))
	sumRows := Map("sumRows", Rank(2), Rank(1), func(d *Dataset) (*Dataset, error) {
		shape := d.Shape()
		out := Zeros(shape[1])
		for i := range shape[0] {
			for j := range shape[1] {
				out.Data()[j] += d.At(i, j)
			}
		}
		return out, nil
	})
	r1, err := Execute(ctx, sumRows, s)
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff([]int{1, 4}, r1.Data.Shape()); d != "" {
		t.Errorf("first result shape diff (-want, +got):\n%v", d)
	}
	if d := cmp.Diff([]float64{12, 15, 18, 21}, r1.Data.Data()); d != "" {
		t.Errorf("row sums diff (-want, +got):\n%v", d)
	}
	double := MapElements("double", func(v float64) float64 { return 2 * v })
	r2, err := Execute(ctx, double, r1.Data)
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff([]float64{24, 30, 36, 42}, r2.Data.Data()); d != "" {
		t.Errorf("doubled diff (-want, +got):\n%v", d)
	}
	info := r2.Data.Origin().Info
	if d := cmp.Diff([]int{1}, info.DataDims); d != "" {
		t.Errorf("dataDims diff (-want, +got):\n%v", d)
	}
	if d := cmp.Diff([]int{2, 4}, info.OutputShape()); d != "" {
		t.Errorf("output shape diff (-want, +got):\n%v", d)
	}
	if got := r2.Data.Origin().DatasetName; got != "frames" {
		t.Errorf("origin dataset name = %q, want frames", got)
	}
}
