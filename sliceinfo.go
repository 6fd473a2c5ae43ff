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
	"fmt"
	"slices"
)

// SliceInformation is the per-step bookkeeping attached to every produced
// slice through its Origin.
//
// It is created fresh by an iterator for every step and replaced, never
// mutated in place, when an operation changes rank.
type SliceInformation struct {
	// FromInput is the region actually read from the parent array.
	FromInput *SliceND
	// InOutput positions this step within the output of the whole scan:
	// scan dimensions select one step, data dimensions are whole.
	InOutput *SliceND
	// Whole is the iteration domain over the parent array.
	Whole *SliceND
	// DataDims are the dimensions of the current slice layout that are kept
	// whole, in increasing order.
	DataDims []int
	// TotalSlices is the number of steps in the scan, or -1 while unknown.
	TotalSlices int
	// SliceIndex is the 1-based position of this step among TotalSlices.
	SliceIndex int
}

// Clone returns a deep copy.
func (si SliceInformation) Clone() SliceInformation {
	return SliceInformation{
		FromInput:   si.FromInput.Clone(),
		InOutput:    si.InOutput.Clone(),
		Whole:       si.Whole.Clone(),
		DataDims:    slices.Clone(si.DataDims),
		TotalSlices: si.TotalSlices,
		SliceIndex:  si.SliceIndex,
	}
}

// Rank is the rank of the current slice layout.
func (si SliceInformation) Rank() int {
	if si.InOutput == nil {
		return 0
	}
	return si.InOutput.Len()
}

// ScanDims are the dimensions of the current slice layout that are not data
// dimensions, in increasing order.
func (si SliceInformation) ScanDims() []int {
	return complement(si.Rank(), si.DataDims)
}

// OutputShape is the shape of the whole scan's output in the current layout.
func (si SliceInformation) OutputShape() []int {
	if si.InOutput == nil {
		return nil
	}
	return si.InOutput.SourceShape()
}

// IsFirst reports whether this is the first step of the scan.
func (si SliceInformation) IsFirst() bool { return si.SliceIndex == 1 }

// IsLast reports whether this is known to be the final step of the scan.
func (si SliceInformation) IsLast() bool {
	return si.TotalSlices > 0 && si.SliceIndex == si.TotalSlices
}

func (si SliceInformation) String() string {
	return fmt.Sprintf("slice %d/%d %v of %v dataDims=%v", si.SliceIndex, si.TotalSlices, si.FromInput, si.Whole, si.DataDims)
}

// reshaped returns the SliceInformation for a result whose data dimensions
// were replaced by an output of shape outShape. The scan dimensions keep
// their order and step positions and come first, the output dimensions follow.
func (si SliceInformation) reshaped(outShape []int) SliceInformation {
	scan := si.ScanDims()
	whole := si.OutputShape()
	newWhole := make([]int, 0, len(scan)+len(outShape))
	for _, d := range scan {
		newWhole = append(newWhole, whole[d])
	}
	newWhole = append(newWhole, outShape...)

	inOut := NewSliceND(newWhole)
	for j, d := range scan {
		inOut.slices[j] = si.InOutput.Slice(d)
	}
	dd := make([]int, len(outShape))
	for m := range dd {
		dd[m] = len(scan) + m
	}
	return SliceInformation{
		FromInput:   si.FromInput.Clone(),
		InOutput:    inOut,
		Whole:       si.Whole.Clone(),
		DataDims:    dd,
		TotalSlices: si.TotalSlices,
		SliceIndex:  si.SliceIndex,
	}
}

// dataView returns the data dimensions of slice as a Dataset of rank
// len(dataDims), sharing elements, with the matching axes. Every other
// dimension must have length 1.
func dataView(slice *Dataset, dataDims []int) (*Dataset, error) {
	shape := slice.shape
	inData := make([]bool, len(shape))
	for _, d := range dataDims {
		if d < 0 || d >= len(shape) {
			return nil, fmt.Errorf("data dimension %d out of range for shape %v", d, shape)
		}
		inData[d] = true
	}
	for d, n := range shape {
		if !inData[d] && n != 1 {
			return nil, fmt.Errorf("scan dimension %d of shape %v has length %d, want 1", d, shape, n)
		}
	}
	k := len(dataDims)
	vshape := make([]int, k)
	for m, d := range dataDims {
		vshape[m] = shape[d]
	}
	view := &Dataset{name: slice.name, shape: vshape, data: slice.data, origin: slice.origin}
	for m, d := range dataDims {
		ax := slice.Axis(d)
		if ax == nil {
			continue
		}
		if view.axes == nil {
			view.axes = make([]*Dataset, k)
		}
		view.axes[m] = placeAxis(ax, k, m)
	}
	return view, nil
}

// reassemble builds the result of an operation that consumed the data
// dimensions of slice and produced out. The result has the scan dimensions
// of slice (length 1) followed by the dimensions of out. When carry is set
// and the rank was preserved, input data axes are carried over to output
// dimensions that kept their length and have no axis of their own.
func reassemble(slice *Dataset, info SliceInformation, out *Dataset, carry bool) (*Dataset, SliceInformation, error) {
	scan := info.ScanDims()
	s := len(scan)
	kOut := out.Rank()
	rank := s + kOut

	shape := append(onesShape(s), out.shape...)
	res := &Dataset{name: out.name, shape: shape, data: out.data}
	if res.name == "" {
		res.name = slice.name
	}
	axes := make([]*Dataset, rank)
	hasAxes := false
	for j, d := range scan {
		ax := slice.Axis(d)
		if ax == nil {
			continue
		}
		if ax.Size() != 1 {
			return nil, info, fmt.Errorf("scan axis %d has %d elements, want 1", d, ax.Size())
		}
		axes[j] = placeAxis(ax, rank, j)
		hasAxes = true
	}
	for m := 0; m < kOut; m++ {
		src := out.Axis(m)
		if src == nil && carry && kOut == len(info.DataDims) {
			in := info.DataDims[m]
			if out.shape[m] == slice.shape[in] {
				src = slice.Axis(in)
			}
		}
		if src == nil {
			continue
		}
		if n := src.Size(); n != out.shape[m] && n != 1 {
			return nil, info, fmt.Errorf("output axis %d has %d elements, dimension has %d", m, n, out.shape[m])
		}
		axes[s+m] = placeAxis(src, rank, s+m)
		hasAxes = true
	}
	if hasAxes {
		res.axes = axes
	}
	newInfo := info.reshaped(out.shape)
	if o := slice.origin; o != nil {
		res.origin = o.WithInfo(newInfo)
	}
	return res, newInfo, nil
}

// placeAxis reshapes an axis so its elements lie along dimension dim of a
// rank rank array.
func placeAxis(ax *Dataset, rank, dim int) *Dataset {
	shape := onesShape(rank)
	shape[dim] = ax.Size()
	return &Dataset{name: ax.name, shape: shape, data: ax.data}
}

// complement returns the dimensions in [0, rank) not in dims, in order.
func complement(rank int, dims []int) []int {
	out := make([]int, 0, rank)
	for d := 0; d < rank; d++ {
		if !slices.Contains(dims, d) {
			out = append(out, d)
		}
	}
	return out
}
