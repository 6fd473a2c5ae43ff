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

// Package ops provides general purpose operations for slice chains, and
// registers them with a scanslice.Registry.
package ops

import (
	"context"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"lostluck.dev/scanslice"
)

type base struct {
	id      string
	in, out scanslice.Rank
}

func (b base) ID() string                 { return b.id }
func (b base) InputRank() scanslice.Rank  { return b.in }
func (b base) OutputRank() scanslice.Rank { return b.out }

func clone(d *scanslice.Dataset) []float64 {
	return slices.Clone(d.Data())
}

// Sum reduces a slice of any rank to the scalar sum of its elements.
type Sum struct{ base }

func NewSum() *Sum {
	return &Sum{base{id: "sum", in: scanslice.RankAny, out: 0}}
}

func (op *Sum) Name() string { return "sum" }

func (op *Sum) Process(_ context.Context, d *scanslice.Dataset, _ *scanslice.ProcessContext) (*scanslice.Output, error) {
	return &scanslice.Output{Data: scanslice.Scalar(floats.Sum(d.Data()))}, nil
}

// ScaleConfig configures Scale.
type ScaleConfig struct {
	Factor float64 `json:"factor"`
	Offset float64 `json:"offset"`
}

// Scale applies Factor*x + Offset to every element.
type Scale struct {
	base
	cfg ScaleConfig
}

func NewScale(cfg ScaleConfig) *Scale {
	return &Scale{base{id: "scale", in: scanslice.RankAny, out: scanslice.RankSame}, cfg}
}

func (op *Scale) Name() string {
	return fmt.Sprintf("scale(%gx%+g)", op.cfg.Factor, op.cfg.Offset)
}

func (op *Scale) Process(_ context.Context, d *scanslice.Dataset, _ *scanslice.ProcessContext) (*scanslice.Output, error) {
	v := clone(d)
	floats.Scale(op.cfg.Factor, v)
	floats.AddConst(op.cfg.Offset, v)
	out, err := scanslice.NewDataset(d.Shape(), v)
	if err != nil {
		return nil, err
	}
	return &scanslice.Output{Data: out}, nil
}

// Normalization modes.
const (
	NormMax = "max"
	NormSum = "sum"
	NormL2  = "l2"
)

// NormalizeConfig configures Normalize.
type NormalizeConfig struct {
	Mode string `json:"mode" validate:"oneof=max sum l2"`
}

// Normalize divides a slice by its maximum absolute value, its sum or its
// L2 norm. Slices with a zero norm pass through unchanged, under a failure
// span.
type Normalize struct {
	base
	cfg NormalizeConfig
}

func NewNormalize(cfg NormalizeConfig) *Normalize {
	return &Normalize{base{id: "normalize", in: scanslice.RankAny, out: scanslice.RankSame}, cfg}
}

func (op *Normalize) Name() string { return "normalize(" + op.cfg.Mode + ")" }

func (op *Normalize) Process(_ context.Context, d *scanslice.Dataset, pc *scanslice.ProcessContext) (*scanslice.Output, error) {
	v := clone(d)
	var norm float64
	switch op.cfg.Mode {
	case NormSum:
		norm = floats.Sum(v)
	case NormL2:
		norm = floats.Norm(v, 2)
	default:
		norm = floats.Norm(v, math.Inf(1))
	}
	if norm == 0 || math.IsNaN(norm) {
		pc.Failure("normalize", "zero norm, slice left unscaled", "mode", op.cfg.Mode)
	} else {
		floats.Scale(1/norm, v)
		pc.Success("normalize", "scaled", "mode", op.cfg.Mode, "norm", norm)
	}
	out, err := scanslice.NewDataset(d.Shape(), v)
	if err != nil {
		return nil, err
	}
	return &scanslice.Output{Data: out}, nil
}

// ProjectConfig configures Project.
type ProjectConfig struct {
	// Axis is the dimension reduced away.
	Axis   int    `json:"axis" validate:"min=0,max=1"`
	Reduce string `json:"reduce" validate:"oneof=sum mean"`
}

// Project reduces a 2-d slice to 1-d along one dimension. The kept
// dimension's axis becomes the output axis.
type Project struct {
	base
	cfg ProjectConfig
}

func NewProject(cfg ProjectConfig) *Project {
	return &Project{base{id: "project", in: 2, out: 1}, cfg}
}

func (op *Project) Name() string {
	return fmt.Sprintf("project(%s over %d)", op.cfg.Reduce, op.cfg.Axis)
}

func (op *Project) Process(_ context.Context, d *scanslice.Dataset, _ *scanslice.ProcessContext) (*scanslice.Output, error) {
	shape := d.Shape()
	m := mat.NewDense(max(shape[0], 1), max(shape[1], 1), nil)
	if d.Size() > 0 {
		m = mat.NewDense(shape[0], shape[1], clone(d))
	}
	keep := 1 - op.cfg.Axis
	n := shape[keep]
	res := make([]float64, n)
	for i := range res {
		var line []float64
		if keep == 0 {
			line = mat.Row(nil, i, m)
		} else {
			line = mat.Col(nil, i, m)
		}
		if op.cfg.Reduce == "mean" {
			res[i] = stat.Mean(line, nil)
		} else {
			res[i] = floats.Sum(line)
		}
	}
	out, err := scanslice.NewDataset([]int{n}, res)
	if err != nil {
		return nil, err
	}
	if ax := d.Axis(keep); ax != nil {
		a, err := scanslice.NewDataset([]int{n}, clone(ax))
		if err != nil {
			return nil, err
		}
		a.SetName(ax.Name())
		if err := out.SetAxis(0, a); err != nil {
			return nil, err
		}
	}
	return &scanslice.Output{Data: out}, nil
}

// OuterConfig configures Outer.
type OuterConfig struct {
	Scale float64 `json:"scale" validate:"ne=0"`
}

// Outer expands a 1-d slice x into the 2-d Scale * x xᵀ. The input axis, if
// any, becomes both output axes.
type Outer struct {
	base
	cfg OuterConfig
}

func NewOuter(cfg OuterConfig) *Outer {
	return &Outer{base{id: "outer", in: 1, out: 2}, cfg}
}

func (op *Outer) Name() string { return "outer" }

func (op *Outer) Process(_ context.Context, d *scanslice.Dataset, _ *scanslice.ProcessContext) (*scanslice.Output, error) {
	n := d.Size()
	if n == 0 {
		return &scanslice.Output{Data: scanslice.Zeros(0, 0)}, nil
	}
	x := mat.NewVecDense(n, clone(d))
	var m mat.Dense
	m.Outer(op.cfg.Scale, x, x)
	raw := m.RawMatrix()
	v := make([]float64, 0, n*n)
	for i := range n {
		v = append(v, raw.Data[i*raw.Stride:i*raw.Stride+n]...)
	}
	out, err := scanslice.NewDataset([]int{n, n}, v)
	if err != nil {
		return nil, err
	}
	if ax := d.Axis(0); ax != nil {
		for dim := range 2 {
			a, err := scanslice.NewDataset([]int{n}, clone(ax))
			if err != nil {
				return nil, err
			}
			if err := out.SetAxis(dim, a); err != nil {
				return nil, err
			}
		}
	}
	return &scanslice.Output{Data: out}, nil
}

// StatsConfig configures Stats.
type StatsConfig struct {
	// Bins is the histogram size; zero disables the histogram.
	Bins int `json:"bins" validate:"min=0,max=4096"`
}

// Stats summarises a slice of any rank as [mean, std, min, max]. With Bins
// set it adds a histogram auxiliary output.
type Stats struct {
	base
	cfg StatsConfig
}

func NewStats(cfg StatsConfig) *Stats {
	return &Stats{base{id: "stats", in: scanslice.RankAny, out: 1}, cfg}
}

func (op *Stats) Name() string { return "stats" }

func (op *Stats) Process(_ context.Context, d *scanslice.Dataset, pc *scanslice.ProcessContext) (*scanslice.Output, error) {
	v := clone(d)
	if len(v) == 0 {
		return nil, fmt.Errorf("stats of an empty slice")
	}
	mean, std := stat.MeanStdDev(v, nil)
	if len(v) == 1 {
		std = 0
	}
	lo, hi := floats.Min(v), floats.Max(v)
	out, err := scanslice.NewDataset([]int{4}, []float64{mean, std, lo, hi})
	if err != nil {
		return nil, err
	}
	res := &scanslice.Output{Data: out}
	pc.Logger().Debug("stats", "mean", mean, "std", std)
	if op.cfg.Bins == 0 {
		return res, nil
	}
	slices.Sort(v)
	dividers := floats.Span(make([]float64, op.cfg.Bins+1), lo, math.Nextafter(hi, math.Inf(1)))
	counts := stat.Histogram(nil, dividers, v, nil)
	hist, err := scanslice.NewDataset([]int{op.cfg.Bins}, counts)
	if err != nil {
		return nil, err
	}
	hist.SetName("histogram")
	edges, err := scanslice.NewDataset([]int{op.cfg.Bins}, dividers[:op.cfg.Bins])
	if err != nil {
		return nil, err
	}
	if err := hist.SetAxis(0, edges); err != nil {
		return nil, err
	}
	res.Aux = append(res.Aux, hist)
	return res, nil
}

// Register adds the operations of this package to reg.
func Register(reg *scanslice.Registry) error {
	for id, f := range map[string]scanslice.Factory{
		"sum": func([]byte) (scanslice.Operation, error) { return NewSum(), nil },
		"scale": scanslice.Typed(ScaleConfig{Factor: 1}, func(c ScaleConfig) (scanslice.Operation, error) {
			return NewScale(c), nil
		}),
		"normalize": scanslice.Typed(NormalizeConfig{Mode: NormMax}, func(c NormalizeConfig) (scanslice.Operation, error) {
			return NewNormalize(c), nil
		}),
		"project": scanslice.Typed(ProjectConfig{Reduce: "sum"}, func(c ProjectConfig) (scanslice.Operation, error) {
			return NewProject(c), nil
		}),
		"outer": scanslice.Typed(OuterConfig{Scale: 1}, func(c OuterConfig) (scanslice.Operation, error) {
			return NewOuter(c), nil
		}),
		"stats": scanslice.Typed(StatsConfig{}, func(c StatsConfig) (scanslice.Operation, error) {
			return NewStats(c), nil
		}),
	} {
		if err := reg.Register(id, f); err != nil {
			return err
		}
	}
	return nil
}
