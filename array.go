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
)

// LazyArray is an N-dimensional array that is read a region at a time.
//
// Implementations are provided by storage layers, such as the zarr package,
// and by Dataset for in-memory arrays.
type LazyArray interface {
	// Name identifies the array within its source.
	Name() string
	// Shape returns the array's current shape.
	Shape() []int
	// Slice reads the selected region into memory.
	Slice(ctx context.Context, s *SliceND) (*Dataset, error)
}

// Refresher is implemented by arrays whose shape may change while they are
// being written. Refresh re-queries the shape from the source.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// AxisProvider is implemented by arrays with per-dimension axis arrays.
// Entries may be nil. Each axis has the array's rank and is all ones except
// along its own dimension.
type AxisProvider interface {
	AxisArrays() []LazyArray
}

// MaxShaper is implemented by growing arrays that know their final extent.
// A dimension of Unlimited is not yet known.
type MaxShaper interface {
	MaxShape() []int
}

// Sourcer is implemented by arrays that know the path of their container.
type Sourcer interface {
	SourcePath() string
}

// Unlimited marks a dimension whose final extent is not yet known.
const Unlimited = -1

// readSlice reads s from array and attaches axes sliced from the array's
// AxisProvider, if any.
func readSlice(ctx context.Context, array LazyArray, s *SliceND) (*Dataset, error) {
	d, err := array.Slice(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("reading %v from %q: %w", s, array.Name(), err)
	}
	ap, ok := array.(AxisProvider)
	if !ok {
		return d, nil
	}
	// Datasets slice their own axes.
	if _, ok := array.(*Dataset); ok {
		return d, nil
	}
	for i, ax := range ap.AxisArrays() {
		if ax == nil || i >= d.Rank() {
			continue
		}
		as, err := axisSlice(ax.Shape(), s, i)
		if err != nil {
			// The axis hasn't caught up with a growing array yet.
			continue
		}
		sub, err := ax.Slice(ctx, as)
		if err != nil {
			return nil, fmt.Errorf("reading axis %d of %q: %w", i, array.Name(), err)
		}
		if err := d.SetAxis(i, sub); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func sourcePath(array LazyArray) string {
	if s, ok := array.(Sourcer); ok {
		return s.SourcePath()
	}
	return ""
}
