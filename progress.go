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

// Progress reports how many flattened scan positions of a growing array are
// complete. It is written by someone else and re-read on every poll.
type Progress interface {
	Available(ctx context.Context) (int, error)
}

// FinishedFlag reports whether a growing array will never grow again.
type FinishedFlag interface {
	Finished(ctx context.Context) (bool, error)
}

// ProgressFunc adapts a function to Progress.
type ProgressFunc func(ctx context.Context) (int, error)

func (f ProgressFunc) Available(ctx context.Context) (int, error) { return f(ctx) }

// FlagFunc adapts a function to FinishedFlag.
type FlagFunc func(ctx context.Context) (bool, error)

func (f FlagFunc) Finished(ctx context.Context) (bool, error) { return f(ctx) }

// LengthProgress returns a Progress reading the current length of a key
// array: the number of elements it holds is the number of complete
// positions. The array is refreshed before every read.
func LengthProgress(key LazyArray) Progress {
	return ProgressFunc(func(ctx context.Context) (int, error) {
		if err := refresh(ctx, key); err != nil {
			return 0, err
		}
		return product(key.Shape()), nil
	})
}

// FlagArray returns a FinishedFlag that is set once the first element of
// flag is non-zero. The array is refreshed before every read.
func FlagArray(flag LazyArray) FinishedFlag {
	return FlagFunc(func(ctx context.Context) (bool, error) {
		if err := refresh(ctx, flag); err != nil {
			return false, err
		}
		shape := flag.Shape()
		if product(shape) == 0 {
			return false, nil
		}
		first := NewSliceND(shape)
		for d := range shape {
			if err := first.SetSlice(d, 0, 1, 1); err != nil {
				return false, err
			}
		}
		v, err := flag.Slice(ctx, first)
		if err != nil {
			return false, fmt.Errorf("reading finished flag %q: %w", flag.Name(), err)
		}
		return v.data[0] != 0, nil
	})
}

// shapeProgress counts the positions covered by the parent's current shape.
type shapeProgress struct {
	sc *scanner
}

func (p shapeProgress) Available(ctx context.Context) (int, error) {
	if err := refresh(ctx, p.sc.array); err != nil {
		return 0, err
	}
	whole, err := p.sc.domain(p.sc.array.Shape())
	if err != nil {
		return 0, err
	}
	return product(p.sc.counts(whole)), nil
}

func refresh(ctx context.Context, a LazyArray) error {
	r, ok := a.(Refresher)
	if !ok {
		return nil
	}
	if err := r.Refresh(ctx); err != nil {
		return fmt.Errorf("refreshing %q: %w", a.Name(), err)
	}
	return nil
}
