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

// Package zarr reads and writes chunked N-dimensional arrays in the zarr v2
// layout, and serves them to scanslice iterators as lazy arrays.
//
// Arrays may grow while they are read: a producer writes data past the
// current shape and then publishes it with Resize, and readers pick up the
// new shape on Refresh.
package zarr

import (
	"context"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/go-json-experiment/json"
	"github.com/pkg/errors"

	"lostluck.dev/scanslice"
)

// Array is a zarr array in a Store.
type Array struct {
	store Store
	path  Path

	mu    sync.RWMutex
	meta  ArrayMeta
	attrs Attributes
	fill  float64
	axes  []*Array
}

var (
	_ scanslice.LazyArray    = (*Array)(nil)
	_ scanslice.Refresher    = (*Array)(nil)
	_ scanslice.AxisProvider = (*Array)(nil)
	_ scanslice.MaxShaper    = (*Array)(nil)
	_ scanslice.Sourcer      = (*Array)(nil)
)

// Open opens the array at path. Dimensions named by the _ARRAY_DIMENSIONS
// attribute are backed by sibling rank 1 arrays of those names, when
// present.
func Open(ctx context.Context, store Store, path string) (*Array, error) {
	a := &Array{store: store, path: NewPath(path)}
	if err := a.load(ctx); err != nil {
		return nil, err
	}
	if err := a.resolveAxes(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// Create writes metadata for a new array at path, replacing any existing
// metadata, and opens it. Zero ZarrFormat and Order default to 2 and "C".
func Create(ctx context.Context, store Store, path string, meta ArrayMeta, attrs Attributes) (*Array, error) {
	if meta.ZarrFormat == 0 {
		meta.ZarrFormat = 2
	}
	if meta.Order == "" {
		meta.Order = "C"
	}
	if err := meta.Validate(); err != nil {
		return nil, errors.Wrapf(err, "creating array %q", path)
	}
	a := &Array{store: store, path: NewPath(path)}
	if err := a.writeMeta(ctx, meta); err != nil {
		return nil, err
	}
	if attrs != nil {
		if err := a.writeAttrs(ctx, attrs); err != nil {
			return nil, err
		}
	}
	return Open(ctx, store, path)
}

func (a *Array) metaKey(mt MetaType) string {
	return a.path.Join(string(mt)).Key()
}

func (a *Array) load(ctx context.Context) error {
	b, err := getAll(ctx, a.store, a.metaKey(MTArray))
	if err != nil {
		return errors.Wrapf(err, "opening array %q", a.path)
	}
	meta, err := DecodeArrayMeta(b)
	if err != nil {
		return errors.Wrapf(err, "array %q", a.path)
	}
	attrs := Attributes{}
	b, err = getAll(ctx, a.store, a.metaKey(MTAttributes))
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return errors.Wrapf(err, "array %q", a.path)
	default:
		if err := json.Unmarshal(b, &attrs); err != nil {
			return errors.Wrapf(err, "array %q attributes", a.path)
		}
	}
	fill, err := meta.fill()
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.meta.Shape != nil && len(a.meta.Shape) != len(meta.Shape) {
		return errors.Errorf("array %q changed rank from %d to %d", a.path, len(a.meta.Shape), len(meta.Shape))
	}
	a.meta, a.attrs, a.fill = meta, attrs, fill
	return nil
}

func (a *Array) resolveAxes(ctx context.Context) error {
	a.mu.RLock()
	names := a.attrs.Dimensions()
	rank := len(a.meta.Shape)
	a.mu.RUnlock()
	if len(names) != rank {
		return nil
	}
	axes := make([]*Array, rank)
	for i, name := range names {
		if name == "" || name == a.path.Base() {
			continue
		}
		ax := &Array{store: a.store, path: a.path.Parent().Join(name)}
		err := ax.load(ctx)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "axis %d of %q", i, a.path)
		}
		if len(ax.meta.Shape) == 1 {
			axes[i] = ax
		}
	}
	a.mu.Lock()
	a.axes = axes
	a.mu.Unlock()
	return nil
}

// Name is the last element of the array's path.
func (a *Array) Name() string {
	return a.path.Base()
}

// Path is the array's path within its store.
func (a *Array) Path() string {
	return a.path.String()
}

// SourcePath names the array's store location and path.
func (a *Array) SourcePath() string {
	loc := a.store.Type() + ":"
	if l, ok := a.store.(Locator); ok {
		loc = l.Location() + "/"
	}
	return loc + a.path.String()
}

// Shape returns the published shape.
func (a *Array) Shape() []int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.meta.Shape)
}

// Meta returns a copy of the array metadata.
func (a *Array) Meta() ArrayMeta {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.meta.clone()
}

// Attributes returns a copy of the array attributes.
func (a *Array) Attributes() Attributes {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return maps.Clone(a.attrs)
}

// MaxShape returns the max_shape attribute. Without one, every dimension
// is unlimited.
func (a *Array) MaxShape() []int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if ms, ok := a.attrs.MaxShape(len(a.meta.Shape)); ok {
		return ms
	}
	ms := make([]int, len(a.meta.Shape))
	for i := range ms {
		ms[i] = scanslice.Unlimited
	}
	return ms
}

// AxisArrays returns the sibling axis arrays per dimension.
func (a *Array) AxisArrays() []scanslice.LazyArray {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.axes == nil {
		return nil
	}
	out := make([]scanslice.LazyArray, len(a.axes))
	for i, ax := range a.axes {
		if ax != nil {
			out[i] = ax
		}
	}
	return out
}

// Refresh re-reads metadata and attributes of the array and its axes.
func (a *Array) Refresh(ctx context.Context) error {
	if err := a.load(ctx); err != nil {
		return err
	}
	a.mu.RLock()
	axes := slices.Clone(a.axes)
	a.mu.RUnlock()
	for _, ax := range axes {
		if ax == nil {
			continue
		}
		if err := ax.load(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (a *Array) snapshot() (ArrayMeta, float64) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.meta.clone(), a.fill
}

// Slice reads the selected region. Chunks that were never written read as
// the fill value.
func (a *Array) Slice(ctx context.Context, s *scanslice.SliceND) (*scanslice.Dataset, error) {
	meta, fill := a.snapshot()
	if got := s.SourceShape(); len(got) != len(meta.Shape) {
		return nil, errors.Errorf("array %q: selection of rank %d for rank %d", a.path, len(got), len(meta.Shape))
	}
	sel := make([]scanslice.Slice, len(meta.Shape))
	for d := range sel {
		sel[d] = s.Slice(d)
		if n := sel[d].Len(); n > 0 && sel[d].Index(n-1) >= meta.Shape[d] {
			return nil, errors.Wrapf(scanslice.ErrInvalidRange, "array %q: selection %v of dimension %d beyond extent %d", a.path, sel[d], d, meta.Shape[d])
		}
	}

	out := scanslice.Zeros(s.Shape()...)
	out.SetName(a.Name())
	data := out.Data()
	cache := map[string][]float64{}
	err := visit(meta, sel, func(i int, cc []int, off int) error {
		key := a.chunkKey(meta, cc)
		c, ok := cache[key]
		if !ok {
			var err error
			if c, err = a.readChunk(ctx, meta, key); err != nil {
				return err
			}
			cache[key] = c
		}
		if c == nil {
			data[i] = fill
			return nil
		}
		data[i] = c[off]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Write stores d with its first element at offset. The region may extend
// past the published shape, up to any limited max_shape; data written there
// becomes readable after Resize.
func (a *Array) Write(ctx context.Context, offset []int, d *scanslice.Dataset) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	meta := a.meta
	rank := len(meta.Shape)
	shape := d.Shape()
	if len(offset) != rank || len(shape) != rank {
		return errors.Errorf("array %q: writing rank %d data at offset %v into rank %d", a.path, len(shape), offset, rank)
	}
	limit, limited := a.attrs.MaxShape(rank)
	sel := make([]scanslice.Slice, rank)
	for i := range sel {
		sel[i] = scanslice.Slice{Start: offset[i], Stop: offset[i] + shape[i], Step: 1}
		if offset[i] < 0 || limited && limit[i] >= 0 && sel[i].Stop > limit[i] {
			return errors.Wrapf(scanslice.ErrInvalidRange, "array %q: writing %v on dimension %d", a.path, sel[i], i)
		}
	}

	vals := d.Data()
	chunks := map[string][]float64{}
	var order []string
	err := visit(meta, sel, func(i int, cc []int, off int) error {
		key := a.chunkKey(meta, cc)
		c, ok := chunks[key]
		if !ok {
			var err error
			if c, err = a.readChunk(ctx, meta, key); err != nil {
				return err
			}
			if c == nil {
				c = make([]float64, meta.chunkSize())
				for j := range c {
					c[j] = a.fill
				}
			}
			chunks[key] = c
			order = append(order, key)
		}
		c[off] = vals[i]
		return nil
	})
	if err != nil {
		return err
	}
	for _, key := range order {
		if err := a.writeChunk(ctx, meta, key, chunks[key]); err != nil {
			return err
		}
	}
	return nil
}

// Resize publishes a new shape of the same rank. Chunks outside it are kept.
func (a *Array) Resize(ctx context.Context, shape ...int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(shape) != len(a.meta.Shape) {
		return errors.Errorf("array %q: resizing rank %d to %v", a.path, len(a.meta.Shape), shape)
	}
	m := a.meta.clone()
	m.Shape = slices.Clone(shape)
	if err := m.Validate(); err != nil {
		return errors.Wrapf(err, "resizing %q", a.path)
	}
	if err := a.writeMeta(ctx, m); err != nil {
		return err
	}
	a.meta = m
	return nil
}

// SetAttributes replaces the array attributes.
func (a *Array) SetAttributes(ctx context.Context, attrs Attributes) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.writeAttrs(ctx, attrs); err != nil {
		return err
	}
	a.attrs = maps.Clone(attrs)
	return nil
}

func (a *Array) writeMeta(ctx context.Context, m ArrayMeta) error {
	b, err := m.Encode()
	if err != nil {
		return err
	}
	return putAll(ctx, a.store, a.metaKey(MTArray), b)
}

func (a *Array) writeAttrs(ctx context.Context, attrs Attributes) error {
	b, err := json.Marshal(attrs)
	if err != nil {
		return errors.Wrapf(err, "encoding %q attributes", a.path)
	}
	return putAll(ctx, a.store, a.metaKey(MTAttributes), b)
}

func (a *Array) chunkKey(m ArrayMeta, cc []int) string {
	if len(cc) == 0 {
		return a.path.Join("0").Key()
	}
	parts := make([]string, len(cc))
	for i, c := range cc {
		parts[i] = strconv.Itoa(c)
	}
	return a.path.Join(strings.Join(parts, m.separator())).Key()
}

// readChunk returns the decoded chunk, or nil if it was never written.
func (a *Array) readChunk(ctx context.Context, m ArrayMeta, key string) ([]float64, error) {
	rc, err := a.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading chunk %s", key)
	}
	defer rc.Close()
	r := rc
	if m.Compressor != nil {
		if r, err = m.Compressor.Decompressor(rc); err != nil {
			return nil, errors.Wrapf(err, "chunk %s", key)
		}
		defer r.Close()
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "reading chunk %s", key)
	}
	vals, err := m.Dtype.decode(raw, m.chunkSize())
	return vals, errors.Wrapf(err, "decoding chunk %s", key)
}

func (a *Array) writeChunk(ctx context.Context, m ArrayMeta, key string, vals []float64) error {
	raw, err := m.Dtype.encode(vals)
	if err != nil {
		return err
	}
	if m.Compressor != nil {
		if raw, err = m.Compressor.compress(raw); err != nil {
			return errors.Wrapf(err, "chunk %s", key)
		}
	}
	return putAll(ctx, a.store, key, raw)
}

// visit calls fn for every element of the selection in row-major order
// with the element's index, its chunk coordinates and its offset within the
// chunk.
func visit(m ArrayMeta, sel []scanslice.Slice, fn func(i int, chunk []int, off int) error) error {
	rank := len(sel)
	n := 1
	for _, s := range sel {
		n *= s.Len()
	}
	strides := chunkStrides(m)
	pos := make([]int, rank)
	cc := make([]int, rank)
	for i := range n {
		off := 0
		for d := range rank {
			src := sel[d].Index(pos[d])
			cc[d] = src / m.Chunks[d]
			off += (src % m.Chunks[d]) * strides[d]
		}
		if err := fn(i, cc, off); err != nil {
			return err
		}
		for d := rank - 1; d >= 0; d-- {
			pos[d]++
			if pos[d] < sel[d].Len() {
				break
			}
			pos[d] = 0
		}
	}
	return nil
}

func chunkStrides(m ArrayMeta) []int {
	rank := len(m.Chunks)
	strides := make([]int, rank)
	n := 1
	if m.Order == "F" {
		for d := range rank {
			strides[d] = n
			n *= m.Chunks[d]
		}
		return strides
	}
	for d := rank - 1; d >= 0; d-- {
		strides[d] = n
		n *= m.Chunks[d]
	}
	return strides
}
