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

type mapper struct {
	id      string
	in, out Rank
	fn      func(*Dataset) (*Dataset, error)
}

func (m *mapper) ID() string       { return m.id }
func (m *mapper) Name() string     { return m.id }
func (m *mapper) InputRank() Rank  { return m.in }
func (m *mapper) OutputRank() Rank { return m.out }

func (m *mapper) Process(_ context.Context, data *Dataset, _ *ProcessContext) (*Output, error) {
	out, err := m.fn(data)
	if err != nil {
		return nil, err
	}
	return &Output{Data: out}, nil
}

// Map returns an Operation applying fn to the data dimensions of each slice.
func Map(id string, in, out Rank, fn func(*Dataset) (*Dataset, error)) Operation {
	if fn == nil {
		panic(fmt.Sprintf("scanslice.Map(%q): nil function", id))
	}
	return &mapper{id: id, in: in, out: out, fn: fn}
}

// MapElements returns a rank preserving Operation applying fn to every
// element. Axes carry over unchanged.
func MapElements(id string, fn func(float64) float64) Operation {
	return Map(id, RankAny, RankSame, func(d *Dataset) (*Dataset, error) {
		out := &Dataset{name: d.name, shape: d.Shape(), data: make([]float64, len(d.data))}
		for i, v := range d.data {
			out.data[i] = fn(v)
		}
		return out, nil
	})
}
