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
	"bytes"
	"compress/gzip"
	"io"

	"github.com/pkg/errors"
	"github.com/qri-io/dataset/compression"
)

// CompressionMeta identifies a chunk codec.
type CompressionMeta struct {
	ID      string `json:"id"`
	Cname   string `json:"cname,omitempty"`
	Clevel  int    `json:"clevel,omitempty"`
	Shuffle int    `json:"shuffle,omitempty"`
}

// Gzip returns gzip compression settings.
func Gzip(level int) *CompressionMeta {
	return &CompressionMeta{ID: "gzip", Clevel: level}
}

func (m *CompressionMeta) format() (string, error) {
	switch m.ID {
	case "gzip":
		return "gzip", nil
	case "zstd":
		return "zst", nil
	}
	return "", errors.Errorf("unsupported compressor %q", m.ID)
}

// Decompressor wraps r with the codec's reader.
func (m *CompressionMeta) Decompressor(r io.ReadCloser) (io.ReadCloser, error) {
	f, err := m.format()
	if err != nil {
		return nil, err
	}
	rc, err := compression.Decompressor(f, r)
	return rc, errors.Wrapf(err, "opening %s chunk", m.ID)
}

func (m *CompressionMeta) compress(raw []byte) ([]byte, error) {
	if m.ID != "gzip" {
		return nil, errors.Errorf("writing %q chunks is unsupported", m.ID)
	}
	level := m.Clevel
	if level == 0 {
		level = gzip.DefaultCompression
	}
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, errors.Wrap(err, "gzip")
	}
	if _, err := w.Write(raw); err != nil {
		return nil, errors.Wrap(err, "gzip")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "gzip")
	}
	return buf.Bytes(), nil
}
