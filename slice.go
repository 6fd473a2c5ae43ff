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
	"strings"
)

// Whole is the Stop sentinel meaning "up to the end of the dimension".
const Whole = -1

// Slice selects positions [Start, Stop) every Step along one dimension.
// A zero Step is treated as 1, and a Stop of Whole is resolved against the
// dimension size when the Slice is placed in a SliceND.
type Slice struct {
	Start, Stop, Step int
}

// All selects the whole of a dimension.
func All() Slice {
	return Slice{Start: 0, Stop: Whole, Step: 1}
}

// At selects the single position i.
func At(i int) Slice {
	return Slice{Start: i, Stop: i + 1, Step: 1}
}

// Len is the number of positions selected.
func (s Slice) Len() int {
	step := s.Step
	if step == 0 {
		step = 1
	}
	if s.Stop <= s.Start {
		return 0
	}
	return (s.Stop - s.Start + step - 1) / step
}

// Index returns the source position of the i'th selected element.
func (s Slice) Index(i int) int {
	step := s.Step
	if step == 0 {
		step = 1
	}
	return s.Start + i*step
}

func (s Slice) String() string {
	switch {
	case s.Stop == Whole && s.Start == 0 && s.Step <= 1:
		return ":"
	case s.Step <= 1:
		return fmt.Sprintf("%d:%d", s.Start, s.Stop)
	default:
		return fmt.Sprintf("%d:%d:%d", s.Start, s.Stop, s.Step)
	}
}

// normalize resolves sentinels against size and validates the bounds.
func (s Slice) normalize(dim, size int) (Slice, error) {
	if s.Step == 0 {
		s.Step = 1
	}
	if s.Stop == Whole {
		s.Stop = size
	}
	bad := func(reason string) (Slice, error) {
		return s, &InvalidRangeError{Dim: dim, Start: s.Start, Stop: s.Stop, Step: s.Step, Size: size, Reason: reason}
	}
	switch {
	case s.Step < 1:
		return bad("step must be positive")
	case s.Start < 0:
		return bad("start is negative")
	case s.Start > s.Stop:
		return bad("start is after stop")
	case s.Stop > size:
		return bad("stop is beyond the dimension")
	}
	return s, nil
}

// SliceND is an ordered sequence of Slices, one per dimension of a shape.
//
// The zero value is a rank 0 slice of a scalar.
type SliceND struct {
	shape  []int
	slices []Slice
}

// NewSliceND returns a SliceND selecting the whole of shape.
// It panics if any dimension is negative.
func NewSliceND(shape []int) *SliceND {
	s := &SliceND{
		shape:  slices.Clone(shape),
		slices: make([]Slice, len(shape)),
	}
	for i, n := range shape {
		if n < 0 {
			panic(fmt.Sprintf("scanslice: negative dimension %d in shape %v", i, shape))
		}
		s.slices[i] = Slice{Start: 0, Stop: n, Step: 1}
	}
	return s
}

// NewSliceNDFrom returns a SliceND over shape with the given per-dimension
// selections. Missing trailing selections select the whole dimension.
func NewSliceNDFrom(shape []int, sel ...Slice) (*SliceND, error) {
	if len(sel) > len(shape) {
		return nil, &InvalidRangeError{Dim: len(shape), Size: len(shape), Reason: fmt.Sprintf("%d selections for rank %d", len(sel), len(shape))}
	}
	s := NewSliceND(shape)
	for i, sl := range sel {
		if err := s.SetSlice(i, sl.Start, sl.Stop, sl.Step); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// SetSlice replaces the selection on dim. Only that dimension is validated,
// and the receiver is unchanged on error.
func (s *SliceND) SetSlice(dim, start, stop, step int) error {
	if dim < 0 || dim >= len(s.shape) {
		return &InvalidRangeError{Dim: dim, Start: start, Stop: stop, Step: step, Reason: fmt.Sprintf("no dimension %d in rank %d", dim, len(s.shape))}
	}
	sl, err := Slice{Start: start, Stop: stop, Step: step}.normalize(dim, s.shape[dim])
	if err != nil {
		return err
	}
	s.slices[dim] = sl
	return nil
}

// Slice returns the normalized selection on dim.
func (s *SliceND) Slice(dim int) Slice {
	return s.slices[dim]
}

// Len is the number of dimensions, equal to the rank of the source shape.
func (s *SliceND) Len() int {
	return len(s.slices)
}

// SourceShape is the shape this SliceND selects from.
func (s *SliceND) SourceShape() []int {
	return slices.Clone(s.shape)
}

// Shape is the shape of the selected region.
func (s *SliceND) Shape() []int {
	out := make([]int, len(s.slices))
	for i, sl := range s.slices {
		out[i] = sl.Len()
	}
	return out
}

// Size is the number of elements selected.
func (s *SliceND) Size() int {
	return product(s.Shape())
}

// IsAll reports whether every dimension is selected whole.
func (s *SliceND) IsAll() bool {
	for i, sl := range s.slices {
		if sl.Start != 0 || sl.Stop != s.shape[i] || sl.Step != 1 {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (s *SliceND) Clone() *SliceND {
	if s == nil {
		return nil
	}
	return &SliceND{shape: slices.Clone(s.shape), slices: slices.Clone(s.slices)}
}

// Equal reports whether both select the same region of the same shape.
func (s *SliceND) Equal(o *SliceND) bool {
	if s == nil || o == nil {
		return s == o
	}
	return slices.Equal(s.shape, o.shape) && slices.Equal(s.slices, o.slices)
}

func (s *SliceND) String() string {
	if s == nil {
		return "<nil>"
	}
	parts := make([]string, len(s.slices))
	for i, sl := range s.slices {
		if sl.Start == 0 && sl.Stop == s.shape[i] && sl.Step == 1 {
			parts[i] = ":"
			continue
		}
		parts[i] = sl.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func product(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}
