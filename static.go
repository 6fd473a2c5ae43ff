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
	"log/slog"
	"slices"
)

// StaticSliceIterator iterates every scan position of an array whose shape
// is fixed.
type StaticSliceIterator struct {
	sc     *scanner
	whole  *SliceND
	total  int
	pos    int
	logger *slog.Logger
}

var _ SliceIterator = (*StaticSliceIterator)(nil)

// NewStaticIterator returns an iterator over array. Data dimensions come
// from the DataDims or AutoRank options, defaulting to the trailing two
// dimensions (or one, for rank 1 arrays). Subslice restricts iteration to
// a region.
func NewStaticIterator(array LazyArray, opts ...Options) (*StaticSliceIterator, error) {
	s := joinOptions(opts)
	sc, err := newScanner(array, &s)
	if err != nil {
		return nil, err
	}
	whole, err := sc.domain(array.Shape())
	if err != nil {
		return nil, err
	}
	it := &StaticSliceIterator{
		sc:     sc,
		whole:  whole,
		total:  product(sc.counts(whole)),
		logger: loggerOf(&s).With("iterator", iteratorName(s.Name, array)),
	}
	it.logger.Debug("static iteration", "whole", whole, "dataDims", sc.dataDims, "total", it.total)
	return it, nil
}

func iteratorName(name string, array LazyArray) string {
	if name != "" {
		return name
	}
	return array.Name()
}

// HasNext reports whether any scan position remains. It has no side effects.
func (it *StaticSliceIterator) HasNext(context.Context) bool {
	return it.pos < it.total
}

// Next reads the slice at the next scan position.
func (it *StaticSliceIterator) Next(ctx context.Context) (*Dataset, error) {
	if it.pos >= it.total {
		return nil, ErrIteratorExhausted
	}
	d, err := it.sc.read(ctx, it.whole, it.pos, it.total)
	if err != nil {
		return nil, err
	}
	it.pos++
	return d, nil
}

// Reset rewinds to the first scan position. Nothing is re-read.
func (it *StaticSliceIterator) Reset() {
	it.pos = 0
}

// Position is the number of slices produced since the last Reset.
func (it *StaticSliceIterator) Position() int { return it.pos }

func (it *StaticSliceIterator) Parent() LazyArray { return it.sc.array }
func (it *StaticSliceIterator) Shape() []int      { return it.whole.Shape() }
func (it *StaticSliceIterator) DataDims() []int   { return slices.Clone(it.sc.dataDims) }
func (it *StaticSliceIterator) Total() int        { return it.total }
