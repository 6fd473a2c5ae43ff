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

// Package coders encodes and decodes fixed size numeric elements, as stored
// in chunked array formats.
package coders

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"reflect"

	"golang.org/x/exp/constraints"
)

// Element is the set of types a Coder can be made for.
type Element interface {
	~bool | constraints.Integer | constraints.Float | constraints.Complex
}

// ByteOrder is a fixed-width byte order that can also append.
// binary.LittleEndian and binary.BigEndian satisfy it.
type ByteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// Encoder accumulates encoded elements.
type Encoder struct {
	order ByteOrder
	data  []byte
}

// NewEncoder returns a little endian Encoder.
func NewEncoder() *Encoder {
	return NewEncoderOrder(binary.LittleEndian)
}

// NewEncoderOrder returns an Encoder with the given byte order.
func NewEncoderOrder(order ByteOrder) *Encoder {
	return &Encoder{order: order}
}

// Data returns the encoded bytes.
func (e *Encoder) Data() []byte { return e.data }

// Grow ensures space for another n bytes.
func (e *Encoder) Grow(n int) {
	if cap(e.data)-len(e.data) < n {
		d := make([]byte, len(e.data), len(e.data)+n)
		copy(d, e.data)
		e.data = d
	}
}

func (e *Encoder) Bool(v bool) {
	if v {
		e.data = append(e.data, 1)
		return
	}
	e.data = append(e.data, 0)
}

func (e *Encoder) Uint8(v uint8)   { e.data = append(e.data, v) }
func (e *Encoder) Uint16(v uint16) { e.data = e.order.AppendUint16(e.data, v) }
func (e *Encoder) Uint32(v uint32) { e.data = e.order.AppendUint32(e.data, v) }
func (e *Encoder) Uint64(v uint64) { e.data = e.order.AppendUint64(e.data, v) }

// Decoder reads encoded elements. Reading past the end records
// io.ErrUnexpectedEOF in Err and returns zero values.
type Decoder struct {
	order ByteOrder
	data  []byte
	err   error
}

// NewDecoder returns a little endian Decoder over data.
func NewDecoder(data []byte) *Decoder {
	return NewDecoderOrder(data, binary.LittleEndian)
}

// NewDecoderOrder returns a Decoder over data with the given byte order.
func NewDecoderOrder(data []byte, order ByteOrder) *Decoder {
	return &Decoder{order: order, data: data}
}

// Err returns the first decoding error.
func (d *Decoder) Err() error { return d.err }

// Empty reports whether all data was read.
func (d *Decoder) Empty() bool { return len(d.data) == 0 }

func (d *Decoder) read(n int) []byte {
	if len(d.data) < n {
		if d.err == nil {
			d.err = io.ErrUnexpectedEOF
		}
		d.data = nil
		return make([]byte, n)
	}
	b := d.data[:n]
	d.data = d.data[n:]
	return b
}

func (d *Decoder) Bool() bool     { return d.read(1)[0] != 0 }
func (d *Decoder) Uint8() uint8   { return d.read(1)[0] }
func (d *Decoder) Uint16() uint16 { return d.order.Uint16(d.read(2)) }
func (d *Decoder) Uint32() uint32 { return d.order.Uint32(d.read(4)) }
func (d *Decoder) Uint64() uint64 { return d.order.Uint64(d.read(8)) }

// Coder encodes and decodes a single element type.
type Coder[E any] interface {
	Encode(e *Encoder, v E)
	Decode(d *Decoder) E
	// Size is the encoded size of one element in bytes.
	Size() int
}

type numCoder[E Element] struct {
	size   int
	encode func(*Encoder, E)
	decode func(*Decoder) E
}

func (c numCoder[E]) Encode(e *Encoder, v E) { c.encode(e, v) }
func (c numCoder[E]) Decode(d *Decoder) E    { return c.decode(d) }
func (c numCoder[E]) Size() int              { return c.size }

// MakeCoder returns the Coder for E. Plain int and uint use 8 bytes.
func MakeCoder[E Element]() Coder[E] {
	var zero E
	rv := reflect.ValueOf(&zero).Elem()
	switch rv.Kind() {
	case reflect.Bool:
		return numCoder[E]{1,
			func(e *Encoder, v E) { e.Bool(reflect.ValueOf(v).Bool()) },
			func(d *Decoder) E { return fromBool[E](d.Bool()) }}
	case reflect.Int8:
		return numCoder[E]{1,
			func(e *Encoder, v E) { e.Uint8(uint8(int8(asInt(v)))) },
			func(d *Decoder) E { return asE[E](int64(int8(d.Uint8()))) }}
	case reflect.Int16:
		return numCoder[E]{2,
			func(e *Encoder, v E) { e.Uint16(uint16(int16(asInt(v)))) },
			func(d *Decoder) E { return asE[E](int64(int16(d.Uint16()))) }}
	case reflect.Int32:
		return numCoder[E]{4,
			func(e *Encoder, v E) { e.Uint32(uint32(int32(asInt(v)))) },
			func(d *Decoder) E { return asE[E](int64(int32(d.Uint32()))) }}
	case reflect.Int64, reflect.Int:
		return numCoder[E]{8,
			func(e *Encoder, v E) { e.Uint64(uint64(asInt(v))) },
			func(d *Decoder) E { return asE[E](int64(d.Uint64())) }}
	case reflect.Uint8:
		return numCoder[E]{1,
			func(e *Encoder, v E) { e.Uint8(uint8(asUint(v))) },
			func(d *Decoder) E { return asEU[E](uint64(d.Uint8())) }}
	case reflect.Uint16:
		return numCoder[E]{2,
			func(e *Encoder, v E) { e.Uint16(uint16(asUint(v))) },
			func(d *Decoder) E { return asEU[E](uint64(d.Uint16())) }}
	case reflect.Uint32:
		return numCoder[E]{4,
			func(e *Encoder, v E) { e.Uint32(uint32(asUint(v))) },
			func(d *Decoder) E { return asEU[E](uint64(d.Uint32())) }}
	case reflect.Uint64, reflect.Uint, reflect.Uintptr:
		return numCoder[E]{8,
			func(e *Encoder, v E) { e.Uint64(asUint(v)) },
			func(d *Decoder) E { return asEU[E](d.Uint64()) }}
	case reflect.Float32:
		return numCoder[E]{4,
			func(e *Encoder, v E) { e.Uint32(math.Float32bits(float32(asFloat(v)))) },
			func(d *Decoder) E { return asEF[E](float64(math.Float32frombits(d.Uint32()))) }}
	case reflect.Float64:
		return numCoder[E]{8,
			func(e *Encoder, v E) { e.Uint64(math.Float64bits(asFloat(v))) },
			func(d *Decoder) E { return asEF[E](math.Float64frombits(d.Uint64())) }}
	case reflect.Complex64:
		return numCoder[E]{8,
			func(e *Encoder, v E) {
				c := asComplex(v)
				e.Uint32(math.Float32bits(float32(real(c))))
				e.Uint32(math.Float32bits(float32(imag(c))))
			},
			func(d *Decoder) E {
				re := math.Float32frombits(d.Uint32())
				im := math.Float32frombits(d.Uint32())
				return asEC[E](complex(float64(re), float64(im)))
			}}
	case reflect.Complex128:
		return numCoder[E]{16,
			func(e *Encoder, v E) {
				c := asComplex(v)
				e.Uint64(math.Float64bits(real(c)))
				e.Uint64(math.Float64bits(imag(c)))
			},
			func(d *Decoder) E {
				re := math.Float64frombits(d.Uint64())
				im := math.Float64frombits(d.Uint64())
				return asEC[E](complex(re, im))
			}}
	}
	panic(fmt.Sprintf("coders: unsupported element type %T", zero))
}

// The conversion helpers go through reflect since a type set mixing
// bool, integers, floats and complex numbers permits no direct conversions.

func asInt[E Element](v E) int64          { return reflect.ValueOf(v).Int() }
func asUint[E Element](v E) uint64        { return reflect.ValueOf(v).Uint() }
func asFloat[E Element](v E) float64      { return reflect.ValueOf(v).Float() }
func asComplex[E Element](v E) complex128 { return reflect.ValueOf(v).Complex() }

func asE[E Element](n int64) E {
	var v E
	reflect.ValueOf(&v).Elem().SetInt(n)
	return v
}

func asEU[E Element](n uint64) E {
	var v E
	reflect.ValueOf(&v).Elem().SetUint(n)
	return v
}

func asEF[E Element](f float64) E {
	var v E
	reflect.ValueOf(&v).Elem().SetFloat(f)
	return v
}

func asEC[E Element](c complex128) E {
	var v E
	reflect.ValueOf(&v).Elem().SetComplex(c)
	return v
}

func fromBool[E Element](b bool) E {
	var v E
	reflect.ValueOf(&v).Elem().SetBool(b)
	return v
}

// Number is the set of real numeric element types.
type Number interface {
	constraints.Integer | constraints.Float
}

// DecodeAll decodes n elements of type E and converts them to float64.
func DecodeAll[E Number](d *Decoder, n int) ([]float64, error) {
	c := MakeCoder[E]()
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(c.Decode(d))
	}
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("coders: decoding %d elements of %d bytes: %w", n, c.Size(), err)
	}
	return out, nil
}

// EncodeAll converts vals to E and encodes them.
func EncodeAll[E Number](e *Encoder, vals []float64) {
	c := MakeCoder[E]()
	e.Grow(len(vals) * c.Size())
	for _, v := range vals {
		c.Encode(e, E(v))
	}
}
