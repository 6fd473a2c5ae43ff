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
	"slices"
)

// Dataset is an in-memory, row-major float64 N-dimensional array with
// optional axis metadata and Origin metadata.
//
// A Dataset is also a LazyArray over itself, which makes it a convenient
// parent for iteration in tests and for small arrays.
type Dataset struct {
	name   string
	shape  []int
	data   []float64
	axes   []*Dataset
	origin *Origin
}

var (
	_ LazyArray    = (*Dataset)(nil)
	_ AxisProvider = (*Dataset)(nil)
)

// NewDataset wraps data, which must have exactly product(shape) elements.
// The Dataset takes ownership of data.
func NewDataset(shape []int, data []float64) (*Dataset, error) {
	for i, n := range shape {
		if n < 0 {
			return nil, fmt.Errorf("dataset: negative dimension %d in shape %v", i, shape)
		}
	}
	if n := product(shape); n != len(data) {
		return nil, fmt.Errorf("dataset: shape %v needs %d elements, got %d", shape, n, len(data))
	}
	return &Dataset{shape: slices.Clone(shape), data: data}, nil
}

// Zeros returns a zero filled Dataset of the given shape.
func Zeros(shape ...int) *Dataset {
	d, err := NewDataset(shape, make([]float64, product(shape)))
	if err != nil {
		panic(err)
	}
	return d
}

// Arange returns a Dataset of the given shape whose elements are their own
// flat index.
func Arange(shape ...int) *Dataset {
	d := Zeros(shape...)
	for i := range d.data {
		d.data[i] = float64(i)
	}
	return d
}

// Scalar returns a rank 0 Dataset holding v.
func Scalar(v float64) *Dataset {
	return &Dataset{shape: []int{}, data: []float64{v}}
}

// Name returns the dataset's name.
func (d *Dataset) Name() string { return d.name }

// SetName sets the dataset's name.
func (d *Dataset) SetName(name string) { d.name = name }

// Shape returns a copy of the shape.
func (d *Dataset) Shape() []int { return slices.Clone(d.shape) }

// Rank is the number of dimensions.
func (d *Dataset) Rank() int { return len(d.shape) }

// Size is the number of elements.
func (d *Dataset) Size() int { return len(d.data) }

// Data returns the backing elements in row-major order. The slice is shared
// with the Dataset.
func (d *Dataset) Data() []float64 { return d.data }

// At returns the element at the given index.
func (d *Dataset) At(idx ...int) float64 {
	return d.data[d.offset(idx)]
}

// Set stores v at the given index.
func (d *Dataset) Set(v float64, idx ...int) {
	d.data[d.offset(idx)] = v
}

func (d *Dataset) offset(idx []int) int {
	if len(idx) != len(d.shape) {
		panic(fmt.Sprintf("dataset: index %v for rank %d", idx, len(d.shape)))
	}
	off := 0
	for i, x := range idx {
		if x < 0 || x >= d.shape[i] {
			panic(fmt.Sprintf("dataset: index %v out of range for shape %v", idx, d.shape))
		}
		off = off*d.shape[i] + x
	}
	return off
}

// Clone returns a copy with its own elements. Axes and Origin are shared.
func (d *Dataset) Clone() *Dataset {
	return &Dataset{
		name:   d.name,
		shape:  slices.Clone(d.shape),
		data:   slices.Clone(d.data),
		axes:   slices.Clone(d.axes),
		origin: d.origin,
	}
}

// Reshape returns a Dataset sharing elements with d in a new shape of the
// same size. Axes are dropped since they no longer line up, Origin is kept.
func (d *Dataset) Reshape(shape ...int) (*Dataset, error) {
	if product(shape) != len(d.data) {
		return nil, fmt.Errorf("dataset: cannot reshape %v to %v", d.shape, shape)
	}
	return &Dataset{name: d.name, shape: slices.Clone(shape), data: d.data, origin: d.origin}, nil
}

// Extract copies the region selected by s into a new Dataset of shape
// s.Shape(). Axes are sliced alongside the data.
func (d *Dataset) Extract(s *SliceND) (*Dataset, error) {
	if !slices.Equal(s.shape, d.shape) {
		return nil, fmt.Errorf("dataset: slice over %v applied to shape %v", s.shape, d.shape)
	}
	out := Zeros(s.Shape()...)
	out.name = d.name
	copyRegion(out.data, d.data, d.shape, s)
	if d.axes != nil {
		out.axes = make([]*Dataset, len(d.axes))
		for i, ax := range d.axes {
			if ax == nil {
				continue
			}
			as, err := axisSlice(ax.shape, s, i)
			if err != nil {
				return nil, fmt.Errorf("dataset: slicing axis %d: %w", i, err)
			}
			sub, err := ax.Extract(as)
			if err != nil {
				return nil, fmt.Errorf("dataset: slicing axis %d: %w", i, err)
			}
			out.axes[i] = sub
		}
	}
	return out, nil
}

// Slice implements LazyArray.
func (d *Dataset) Slice(_ context.Context, s *SliceND) (*Dataset, error) {
	return d.Extract(s)
}

// Axes returns the axis set: one entry per dimension, possibly nil.
func (d *Dataset) Axes() []*Dataset {
	if d.axes == nil {
		return make([]*Dataset, len(d.shape))
	}
	return slices.Clone(d.axes)
}

// Axis returns the axis for dimension i, or nil.
func (d *Dataset) Axis(i int) *Dataset {
	if d.axes == nil {
		return nil
	}
	return d.axes[i]
}

// AxisArrays implements AxisProvider.
func (d *Dataset) AxisArrays() []LazyArray {
	out := make([]LazyArray, len(d.shape))
	for i, ax := range d.Axes() {
		if ax != nil {
			out[i] = ax
		}
	}
	return out
}

// SetAxis attaches axis to dimension i. A rank 1 axis of the dimension's
// length is reshaped to its broadcast form; nil clears the axis.
func (d *Dataset) SetAxis(i int, axis *Dataset) error {
	if i < 0 || i >= len(d.shape) {
		return fmt.Errorf("dataset: no dimension %d in rank %d", i, len(d.shape))
	}
	if axis != nil {
		var err error
		if axis, err = broadcastAxis(axis, d.shape, i); err != nil {
			return err
		}
	}
	if d.axes == nil {
		d.axes = make([]*Dataset, len(d.shape))
	}
	d.axes[i] = axis
	return nil
}

// SetAxes replaces the whole axis set.
func (d *Dataset) SetAxes(axes ...*Dataset) error {
	if len(axes) != len(d.shape) {
		return fmt.Errorf("dataset: %d axes for rank %d", len(axes), len(d.shape))
	}
	d.axes = nil
	for i, ax := range axes {
		if err := d.SetAxis(i, ax); err != nil {
			return err
		}
	}
	return nil
}

// Origin returns the slice's origin metadata, or nil.
func (d *Dataset) Origin() *Origin { return d.origin }

// SetOrigin attaches origin metadata.
func (d *Dataset) SetOrigin(o *Origin) { d.origin = o }

func (d *Dataset) String() string {
	return fmt.Sprintf("Dataset(%q, shape=%v)", d.name, d.shape)
}

// broadcastAxis checks that axis lines up with dimension dim of shape, and
// returns it in broadcast form (all ones except dim).
func broadcastAxis(axis *Dataset, shape []int, dim int) (*Dataset, error) {
	if axis.Rank() == 1 && len(shape) != 1 {
		b := onesShape(len(shape))
		b[dim] = axis.shape[0]
		axis = &Dataset{name: axis.name, shape: b, data: axis.data}
	}
	if axis.Rank() != len(shape) {
		return nil, fmt.Errorf("dataset: axis %d has rank %d, want %d", dim, axis.Rank(), len(shape))
	}
	for j, n := range axis.shape {
		switch {
		case j == dim && n != shape[dim] && n != 1:
			return nil, fmt.Errorf("dataset: axis %d has length %d, dimension has %d", dim, n, shape[dim])
		case j != dim && n != 1:
			return nil, fmt.Errorf("dataset: axis %d shape %v isn't broadcastable along dimension %d", dim, axis.shape, j)
		}
	}
	return axis, nil
}

// axisSlice selects from an axis of shape axShape the part matching s on
// dimension dim.
func axisSlice(axShape []int, s *SliceND, dim int) (*SliceND, error) {
	as := NewSliceND(axShape)
	axDim := dim
	switch {
	case len(axShape) == s.Len():
	case len(axShape) == 1:
		axDim = 0
	default:
		return nil, fmt.Errorf("axis of rank %d for a rank %d slice", len(axShape), s.Len())
	}
	if axShape[axDim] > 1 {
		sl := s.Slice(dim)
		if err := as.SetSlice(axDim, sl.Start, sl.Stop, sl.Step); err != nil {
			return nil, err
		}
	}
	return as, nil
}

func onesShape(rank int) []int {
	s := make([]int, rank)
	for i := range s {
		s[i] = 1
	}
	return s
}

// copyRegion copies the region s of src (with shape) into dst, in row-major
// order of the region.
func copyRegion(dst, src []float64, shape []int, s *SliceND) {
	rank := len(shape)
	if rank == 0 {
		if len(dst) > 0 {
			dst[0] = src[0]
		}
		return
	}
	if len(dst) == 0 {
		return
	}
	strides := rowMajorStrides(shape)
	out := s.Shape()
	idx := make([]int, rank)
	for n := range dst {
		off := 0
		for i, x := range idx {
			off += s.slices[i].Index(x) * strides[i]
		}
		dst[n] = src[off]
		// Advance the odometer, last dimension fastest.
		for i := rank - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < out[i] {
				break
			}
			idx[i] = 0
		}
	}
}

func rowMajorStrides(shape []int) []int {
	strides := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= shape[i]
	}
	return strides
}
