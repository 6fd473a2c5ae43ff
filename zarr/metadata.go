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

package zarr

import (
	"math"
	"slices"

	"github.com/go-json-experiment/json"
	"github.com/pkg/errors"
)

// MetaType names the metadata keys of a store.
type MetaType string

const (
	// MTAttributes stores user metadata of an array or group.
	MTAttributes MetaType = ".zattrs"
	// MTArray stores ArrayMeta.
	MTArray MetaType = ".zarray"
	// MTGroup marks a group.
	MTGroup MetaType = ".zgroup"
)

// Attributes are the user metadata stored under .zattrs.
type Attributes map[string]any

const (
	// AttrDimensions lists a name per dimension. A sibling rank 1 array of
	// that name is read as the dimension's axis.
	AttrDimensions = "_ARRAY_DIMENSIONS"
	// AttrMaxShape holds the final extent of a growing array. Null or -1
	// entries are unlimited.
	AttrMaxShape = "max_shape"
)

// Dimensions returns the dimension names, if present.
func (a Attributes) Dimensions() []string {
	list, ok := a[AttrDimensions].([]any)
	if !ok {
		return nil
	}
	names := make([]string, len(list))
	for i, v := range list {
		names[i], _ = v.(string)
	}
	return names
}

// MaxShape returns the max_shape attribute for an array of the given rank.
func (a Attributes) MaxShape(rank int) ([]int, bool) {
	list, ok := a[AttrMaxShape].([]any)
	if !ok || len(list) != rank {
		return nil, false
	}
	out := make([]int, rank)
	for i, v := range list {
		switch n := v.(type) {
		case float64:
			out[i] = int(n)
			if n < 0 {
				out[i] = -1
			}
		case int:
			out[i] = max(n, -1)
		case nil:
			out[i] = -1
		default:
			return nil, false
		}
	}
	return out, true
}

// Group marks a group within a store.
type Group struct {
	ZarrFormat int `json:"zarr_format"`
}

// ArrayMeta is the configuration of an array, stored as JSON under the
// .zarray key.
type ArrayMeta struct {
	ZarrFormat int `json:"zarr_format"`
	// Shape is the length of each dimension.
	Shape []int `json:"shape"`
	// Chunks is the length of each dimension of a chunk. All chunks have the
	// same shape; edge chunks are padded.
	Chunks []int `json:"chunks"`
	Dtype  Dtype `json:"dtype"`
	// Compressor is the chunk codec, or nil for raw chunks.
	Compressor *CompressionMeta `json:"compressor"`
	// FillValue is used for chunks that were never written. It is a number,
	// one of the FillValue constants, or null.
	FillValue any `json:"fill_value"`
	// Order is "C" for row-major chunks or "F" for column-major.
	Order   string   `json:"order"`
	Filters []Filter `json:"filters"`
	// DimensionSeparator separates chunk coordinates in keys. Defaults to ".".
	DimensionSeparator string `json:"dimension_separator,omitempty"`
}

// Filter is a codec applied before compression.
type Filter struct {
	ID     string `json:"id"`
	Dtype  string `json:"dtype,omitempty"`
	AsType string `json:"astype,omitempty"`
}

const (
	FillValueNaN              = "NaN"
	FillValueInfinity         = "Infinity"
	FillValueNegativeInfinity = "-Infinity"
)

// DecodeArrayMeta parses and validates .zarray JSON.
func DecodeArrayMeta(b []byte) (ArrayMeta, error) {
	var m ArrayMeta
	if err := json.Unmarshal(b, &m); err != nil {
		return m, errors.Wrap(err, "decoding array metadata")
	}
	return m, m.Validate()
}

// Encode returns the .zarray JSON.
func (m ArrayMeta) Encode() ([]byte, error) {
	b, err := json.Marshal(m)
	return b, errors.Wrap(err, "encoding array metadata")
}

// Validate checks that the array can be read and written.
func (m ArrayMeta) Validate() error {
	if m.ZarrFormat != 2 {
		return errors.Errorf("unsupported zarr format %d", m.ZarrFormat)
	}
	if len(m.Chunks) != len(m.Shape) {
		return errors.Errorf("chunks %v don't match rank of shape %v", m.Chunks, m.Shape)
	}
	for i := range m.Shape {
		if m.Shape[i] < 0 || m.Chunks[i] <= 0 {
			return errors.Errorf("bad extent in shape %v, chunks %v", m.Shape, m.Chunks)
		}
	}
	if !m.Dtype.Numeric() {
		return errors.Errorf("unsupported dtype %v", m.Dtype)
	}
	if m.Order != "C" && m.Order != "F" {
		return errors.Errorf("unsupported order %q", m.Order)
	}
	if len(m.Filters) > 0 {
		return errors.Errorf("unsupported filter %q", m.Filters[0].ID)
	}
	switch m.DimensionSeparator {
	case "", ".", "/":
	default:
		return errors.Errorf("unsupported dimension separator %q", m.DimensionSeparator)
	}
	if m.Compressor != nil {
		if _, err := m.Compressor.format(); err != nil {
			return err
		}
	}
	_, err := m.fill()
	return err
}

func (m ArrayMeta) separator() string {
	if m.DimensionSeparator == "" {
		return "."
	}
	return m.DimensionSeparator
}

func (m ArrayMeta) fill() (float64, error) {
	switch v := m.FillValue.(type) {
	case nil:
		return 0, nil
	case float64:
		return v, nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		switch v {
		case FillValueNaN:
			return math.NaN(), nil
		case FillValueInfinity:
			return math.Inf(1), nil
		case FillValueNegativeInfinity:
			return math.Inf(-1), nil
		}
	}
	return 0, errors.Errorf("unsupported fill value %v", m.FillValue)
}

func (m ArrayMeta) chunkSize() int {
	n := 1
	for _, c := range m.Chunks {
		n *= c
	}
	return n
}

func (m ArrayMeta) clone() ArrayMeta {
	m.Shape = slices.Clone(m.Shape)
	m.Chunks = slices.Clone(m.Chunks)
	return m
}
