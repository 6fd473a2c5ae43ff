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
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"lostluck.dev/scanslice/coders"
)

// Dtype is a simple zarr data type following the NumPy typestr format: a
// byte order character ("<", ">" or "|"), a basic type character and the
// size in bytes, as in "<f8" or "|u1".
type Dtype struct {
	ByteOrder ByteOrder
	BasicType BasicType
	ByteSize  int
	Units     string
}

// ParseDtype parses a typestr.
func ParseDtype(s string) (dt Dtype, err error) {
	// Some writers HTML escape the byte order.
	s = strings.Replace(s, "&lt;", "<", 1)
	s = strings.Replace(s, "&gt;", ">", 1)

	if len(s) < 3 {
		return dt, errors.Errorf("invalid dtype %q: too short", s)
	}
	if dt.ByteOrder, err = ParseByteOrder(rune(s[0])); err != nil {
		return dt, err
	}
	if dt.BasicType, err = ParseBasicType(rune(s[1])); err != nil {
		return dt, err
	}
	size, units, _ := strings.Cut(s[2:], "[")
	n, err := strconv.Atoi(size)
	if err != nil || n <= 0 {
		return dt, errors.Errorf("invalid dtype %q: bad size %q", s, size)
	}
	dt.ByteSize = n
	if units != "" {
		dt.Units = "[" + units
	}
	return dt, nil
}

func (dt Dtype) String() string {
	return fmt.Sprintf("%c%c%d%s", dt.ByteOrder, dt.BasicType, dt.ByteSize, dt.Units)
}

// MarshalText encodes the dtype as its typestr.
func (dt Dtype) MarshalText() ([]byte, error) {
	return []byte(dt.String()), nil
}

// UnmarshalText parses a typestr.
func (dt *Dtype) UnmarshalText(b []byte) error {
	t, err := ParseDtype(string(b))
	if err != nil {
		return err
	}
	*dt = t
	return nil
}

// Numeric reports whether elements of the type decode to float64.
func (dt Dtype) Numeric() bool {
	switch dt.BasicType {
	case BTBoolean:
		return dt.ByteSize == 1
	case BTInteger, BTUnsigned:
		switch dt.ByteSize {
		case 1, 2, 4, 8:
			return true
		}
	case BTFloatingPoint:
		return dt.ByteSize == 4 || dt.ByteSize == 8
	}
	return false
}

func (dt Dtype) order() coders.ByteOrder {
	if dt.ByteOrder == BOBigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// decode converts n elements of raw chunk bytes to float64.
func (dt Dtype) decode(raw []byte, n int) ([]float64, error) {
	d := coders.NewDecoderOrder(raw, dt.order())
	switch dt.BasicType {
	case BTBoolean:
		return coders.DecodeAll[uint8](d, n)
	case BTInteger:
		switch dt.ByteSize {
		case 1:
			return coders.DecodeAll[int8](d, n)
		case 2:
			return coders.DecodeAll[int16](d, n)
		case 4:
			return coders.DecodeAll[int32](d, n)
		case 8:
			return coders.DecodeAll[int64](d, n)
		}
	case BTUnsigned:
		switch dt.ByteSize {
		case 1:
			return coders.DecodeAll[uint8](d, n)
		case 2:
			return coders.DecodeAll[uint16](d, n)
		case 4:
			return coders.DecodeAll[uint32](d, n)
		case 8:
			return coders.DecodeAll[uint64](d, n)
		}
	case BTFloatingPoint:
		switch dt.ByteSize {
		case 4:
			return coders.DecodeAll[float32](d, n)
		case 8:
			return coders.DecodeAll[float64](d, n)
		}
	}
	return nil, errors.Errorf("unsupported dtype %v", dt)
}

// encode converts vals to raw chunk bytes.
func (dt Dtype) encode(vals []float64) ([]byte, error) {
	if !dt.Numeric() {
		return nil, errors.Errorf("unsupported dtype %v", dt)
	}
	e := coders.NewEncoderOrder(dt.order())
	switch dt.BasicType {
	case BTBoolean:
		bs := make([]float64, len(vals))
		for i, v := range vals {
			if v != 0 {
				bs[i] = 1
			}
		}
		coders.EncodeAll[uint8](e, bs)
		return e.Data(), nil
	case BTInteger:
		switch dt.ByteSize {
		case 1:
			coders.EncodeAll[int8](e, vals)
		case 2:
			coders.EncodeAll[int16](e, vals)
		case 4:
			coders.EncodeAll[int32](e, vals)
		case 8:
			coders.EncodeAll[int64](e, vals)
		}
	case BTUnsigned:
		switch dt.ByteSize {
		case 1:
			coders.EncodeAll[uint8](e, vals)
		case 2:
			coders.EncodeAll[uint16](e, vals)
		case 4:
			coders.EncodeAll[uint32](e, vals)
		case 8:
			coders.EncodeAll[uint64](e, vals)
		}
	case BTFloatingPoint:
		switch dt.ByteSize {
		case 4:
			coders.EncodeAll[float32](e, vals)
		case 8:
			coders.EncodeAll[float64](e, vals)
		}
	}
	return e.Data(), nil
}

type ByteOrder rune

const (
	BONotRelevant  ByteOrder = '|'
	BOLittleEndian ByteOrder = '<'
	BOBigEndian    ByteOrder = '>'
)

func ParseByteOrder(r rune) (ByteOrder, error) {
	switch o := ByteOrder(r); o {
	case BONotRelevant, BOLittleEndian, BOBigEndian:
		return o, nil
	}
	return 0, errors.Errorf("unsupported byte order %q", r)
}

type BasicType rune

const (
	BTBoolean       BasicType = 'b'
	BTInteger       BasicType = 'i'
	BTUnsigned      BasicType = 'u'
	BTFloatingPoint BasicType = 'f'
	BTComplex       BasicType = 'c'
	BTTimedelta     BasicType = 'm'
	BTDatetime      BasicType = 'M'
	BTString        BasicType = 'S'
	BTUnicode       BasicType = 'U'
	BTOther         BasicType = 'V'
)

var basicTypes = map[BasicType]string{
	BTBoolean:       "bool",
	BTInteger:       "int",
	BTUnsigned:      "uint",
	BTFloatingPoint: "float",
	BTComplex:       "complex",
	BTTimedelta:     "timedelta",
	BTDatetime:      "datetime",
	BTString:        "string",
	BTUnicode:       "unicode",
	BTOther:         "other",
}

func ParseBasicType(r rune) (BasicType, error) {
	t := BasicType(r)
	if _, ok := basicTypes[t]; !ok {
		return t, errors.Errorf("unsupported basic type %q", r)
	}
	return t, nil
}

// Human returns a readable name for the type.
func (bt BasicType) Human() string {
	return basicTypes[bt]
}
