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

	"lostluck.dev/scanslice/internal/scanopts"
)

// SliceIterator yields the slices of a scan one step at a time.
//
// Scan positions are visited in row-major order: the last scan dimension
// varies fastest. Iterators are not safe for concurrent use.
type SliceIterator interface {
	// HasNext reports whether Next will produce another slice.
	HasNext(ctx context.Context) bool
	// Next returns the next slice with Origin metadata attached. It fails
	// with ErrIteratorExhausted unless the prior HasNext returned true.
	Next(ctx context.Context) (*Dataset, error)
	// Parent is the array being iterated.
	Parent() LazyArray
	// Shape is the current shape of the iteration domain.
	Shape() []int
	// DataDims are the dimensions kept whole in every slice.
	DataDims() []int
	// Total is the number of steps, or -1 while unknown.
	Total() int
}

// scanner holds what both iterators share: the parent, the data dimensions
// and the optional region restricting the iteration domain.
type scanner struct {
	array    LazyArray
	dataDims []int
	scanDims []int
	region   *SliceND
	source   string
	// open is the dimension whose extent follows the array as it grows,
	// or -1.
	open int
}

func newScanner(array LazyArray, s *scanopts.Struct) (*scanner, error) {
	shape := array.Shape()
	dd, err := resolveDataDims(len(shape), s)
	if err != nil {
		return nil, fmt.Errorf("iterating %q: %w", array.Name(), err)
	}
	sc := &scanner{
		array:    array,
		dataDims: dd,
		scanDims: complement(len(shape), dd),
		source:   sourcePath(array),
		open:     -1,
	}
	if s.Region != nil {
		r, ok := s.Region.(*SliceND)
		if !ok {
			return nil, fmt.Errorf("iterating %q: region is %T, want *SliceND", array.Name(), s.Region)
		}
		if r.Len() != len(shape) {
			return nil, fmt.Errorf("iterating %q: region %v has rank %d, array has rank %d", array.Name(), r, r.Len(), len(shape))
		}
		sc.region = r.Clone()
	}
	return sc, nil
}

// resolveDataDims picks the data dimensions for an array of the given rank.
func resolveDataDims(rank int, s *scanopts.Struct) ([]int, error) {
	if s.DataDims != nil {
		dd := slices.Clone(s.DataDims)
		slices.Sort(dd)
		for i, d := range dd {
			if d < 0 || d >= rank {
				return nil, fmt.Errorf("data dimension %d out of range for rank %d", d, rank)
			}
			if i > 0 && dd[i-1] == d {
				return nil, fmt.Errorf("data dimension %d given twice", d)
			}
		}
		return dd, nil
	}
	n := s.AutoRank
	switch {
	case n < 0:
		return nil, fmt.Errorf("negative data rank %d", n)
	case n == 0 && rank < 2:
		n = rank
	case n == 0:
		n = 2
	case n > rank:
		return nil, fmt.Errorf("data rank %d exceeds array rank %d", n, rank)
	}
	dd := make([]int, n)
	for i := range dd {
		dd[i] = rank - n + i
	}
	return dd, nil
}

// domain returns the iteration domain over shape: the region if any, with
// every dimension clamped to the shape. Along the open dimension the region's
// stop is ignored.
func (sc *scanner) domain(shape []int) (*SliceND, error) {
	whole := NewSliceND(shape)
	if sc.region == nil {
		return whole, nil
	}
	for d := range shape {
		r := sc.region.Slice(d)
		stop := min(r.Stop, shape[d])
		if d == sc.open {
			stop = shape[d]
		}
		start := min(r.Start, stop)
		if err := whole.SetSlice(d, start, stop, r.Step); err != nil {
			return nil, err
		}
	}
	return whole, nil
}

// counts returns the number of positions along each scan dimension.
func (sc *scanner) counts(whole *SliceND) []int {
	out := make([]int, len(sc.scanDims))
	for j, d := range sc.scanDims {
		out[j] = whole.Slice(d).Len()
	}
	return out
}

// unflatten converts flattened position p into per scan dimension
// positions, last fastest. The first count is not needed.
func unflatten(p int, counts []int) []int {
	pos := make([]int, len(counts))
	for j := len(counts) - 1; j > 0; j-- {
		if counts[j] == 0 {
			return pos
		}
		pos[j] = p % counts[j]
		p /= counts[j]
	}
	if len(pos) > 0 {
		pos[0] = p
	}
	return pos
}

// read materialises flattened scan position p of whole.
func (sc *scanner) read(ctx context.Context, whole *SliceND, p, total int) (*Dataset, error) {
	counts := sc.counts(whole)
	pos := unflatten(p, counts)

	from := whole.Clone()
	inOut := NewSliceND(whole.Shape())
	for j, d := range sc.scanDims {
		idx := whole.Slice(d).Index(pos[j])
		if err := from.SetSlice(d, idx, idx+1, 1); err != nil {
			return nil, fmt.Errorf("scan position %v of %q: %w", pos, sc.array.Name(), err)
		}
		if err := inOut.SetSlice(d, pos[j], pos[j]+1, 1); err != nil {
			return nil, fmt.Errorf("scan position %v of %q: %w", pos, sc.array.Name(), err)
		}
	}
	d, err := readSlice(ctx, sc.array, from)
	if err != nil {
		return nil, err
	}
	d.origin = &Origin{
		SourcePath:  sc.source,
		DatasetName: sc.array.Name(),
		Parent:      sc.array,
		Info: SliceInformation{
			FromInput:   from,
			InOutput:    inOut,
			Whole:       whole.Clone(),
			DataDims:    slices.Clone(sc.dataDims),
			TotalSlices: total,
			SliceIndex:  p + 1,
		},
	}
	return d, nil
}
