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

package synthetic

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"lostluck.dev/scanslice"
	"lostluck.dev/scanslice/zarr"
)

// Array names written under an acquisition prefix.
const (
	DataArray     = "data"
	FrameArray    = "frame"
	KeysArray     = "keys"
	FinishedArray = "finished"
)

// AcquisitionConfig describes a live acquisition.
type AcquisitionConfig struct {
	// Frames is the number of scan positions written.
	Frames int `yaml:"frames" validate:"min=1"`
	// FrameShape is the shape of each frame.
	FrameShape []int `yaml:"frame_shape" validate:"dive,min=1"`
	// Interval is the wait between frames.
	Interval time.Duration `yaml:"interval" validate:"min=0"`
	// Noise is the amplitude of uniform noise added to each frame.
	Noise float64 `yaml:"noise" validate:"min=0"`
	Seed  uint64  `yaml:"seed"`
}

// Acquisition writes frames to a growing zarr array, the way a detector
// would during a scan. Each frame is written before the data shape is
// grown to publish it, then the keys array is grown to count it. The
// finished flag is set once all frames are written.
type Acquisition struct {
	cfg    AcquisitionConfig
	logger *slog.Logger
	rng    *rand.Rand

	data, frame, keys, finished *zarr.Array
}

// NewAcquisition creates the arrays of an acquisition under prefix.
func NewAcquisition(ctx context.Context, store zarr.Store, prefix string, cfg AcquisitionConfig, logger *slog.Logger) (*Acquisition, error) {
	if cfg.Frames < 1 {
		return nil, fmt.Errorf("synthetic: acquisition of %d frames", cfg.Frames)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	p := zarr.NewPath(prefix)
	f8, err := zarr.ParseDtype("<f8")
	if err != nil {
		return nil, err
	}
	i4, err := zarr.ParseDtype("<i4")
	if err != nil {
		return nil, err
	}
	u1, err := zarr.ParseDtype("|u1")
	if err != nil {
		return nil, err
	}

	dims := []any{FrameArray}
	maxShape := []any{cfg.Frames}
	for i, n := range cfg.FrameShape {
		if n < 1 {
			return nil, fmt.Errorf("synthetic: bad frame shape %v", cfg.FrameShape)
		}
		dims = append(dims, fmt.Sprintf("dim_%d", i+1))
		maxShape = append(maxShape, n)
	}
	shape := append([]int{0}, cfg.FrameShape...)
	chunks := append([]int{1}, cfg.FrameShape...)

	a := &Acquisition{
		cfg:    cfg,
		logger: logger,
		rng:    rand.New(rand.NewPCG(cfg.Seed, cfg.Seed+1)),
	}
	if a.frame, err = zarr.Create(ctx, store, p.Join(FrameArray).Key(),
		zarr.ArrayMeta{Shape: []int{0}, Chunks: []int{64}, Dtype: f8},
		zarr.Attributes{zarr.AttrDimensions: []any{FrameArray}, zarr.AttrMaxShape: []any{cfg.Frames}}); err != nil {
		return nil, err
	}
	if a.data, err = zarr.Create(ctx, store, p.Join(DataArray).Key(),
		zarr.ArrayMeta{Shape: shape, Chunks: chunks, Dtype: f8, FillValue: zarr.FillValueNaN},
		zarr.Attributes{zarr.AttrDimensions: dims, zarr.AttrMaxShape: maxShape}); err != nil {
		return nil, err
	}
	if a.keys, err = zarr.Create(ctx, store, p.Join(KeysArray).Key(),
		zarr.ArrayMeta{Shape: []int{0}, Chunks: []int{64}, Dtype: i4}, nil); err != nil {
		return nil, err
	}
	if a.finished, err = zarr.Create(ctx, store, p.Join(FinishedArray).Key(),
		zarr.ArrayMeta{Shape: []int{1}, Chunks: []int{1}, Dtype: u1}, nil); err != nil {
		return nil, err
	}
	return a, nil
}

// Frame returns the noise free content of frame i.
func (a *Acquisition) Frame(i int) *scanslice.Dataset {
	f := scanslice.Arange(append([]int{1}, a.cfg.FrameShape...)...)
	for j := range f.Data() {
		f.Data()[j] += float64(i * 1000)
	}
	return f
}

// Run writes all frames, waiting Interval between them. It stops early
// with the context's error, leaving the finished flag unset.
func (a *Acquisition) Run(ctx context.Context) error {
	ticker := time.NewTicker(max(a.cfg.Interval, time.Microsecond))
	defer ticker.Stop()
	offset := make([]int, 1+len(a.cfg.FrameShape))
	for i := range a.cfg.Frames {
		if i > 0 && a.cfg.Interval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.write(ctx, i, offset); err != nil {
			return fmt.Errorf("synthetic: frame %d: %w", i, err)
		}
		a.logger.Debug("acquired frame", "frame", i, "of", a.cfg.Frames)
	}
	one, err := scanslice.NewDataset([]int{1}, []float64{1})
	if err != nil {
		return err
	}
	if err := a.finished.Write(ctx, []int{0}, one); err != nil {
		return fmt.Errorf("synthetic: setting finished flag: %w", err)
	}
	a.logger.Info("acquisition finished", "frames", a.cfg.Frames)
	return nil
}

func (a *Acquisition) write(ctx context.Context, i int, offset []int) error {
	f := a.Frame(i)
	if a.cfg.Noise > 0 {
		for j := range f.Data() {
			f.Data()[j] += a.cfg.Noise * (2*a.rng.Float64() - 1)
		}
	}
	pos, err := scanslice.NewDataset([]int{1}, []float64{float64(i)})
	if err != nil {
		return err
	}
	if err := a.frame.Write(ctx, []int{i}, pos); err != nil {
		return err
	}
	if err := a.frame.Resize(ctx, i+1); err != nil {
		return err
	}
	offset[0] = i
	if err := a.data.Write(ctx, offset, f); err != nil {
		return err
	}
	if err := a.data.Resize(ctx, append([]int{i + 1}, a.cfg.FrameShape...)...); err != nil {
		return err
	}
	key, err := scanslice.NewDataset([]int{1}, []float64{float64(i + 1)})
	if err != nil {
		return err
	}
	if err := a.keys.Write(ctx, []int{i}, key); err != nil {
		return err
	}
	return a.keys.Resize(ctx, i+1)
}

// Live is the reading side of an acquisition.
type Live struct {
	Data     *zarr.Array
	Progress []scanslice.Progress
	Finished scanslice.FinishedFlag
}

// OpenLive opens the arrays of an acquisition under prefix for dynamic
// iteration.
func OpenLive(ctx context.Context, store zarr.Store, prefix string) (*Live, error) {
	p := zarr.NewPath(prefix)
	data, err := zarr.Open(ctx, store, p.Join(DataArray).Key())
	if err != nil {
		return nil, err
	}
	keys, err := zarr.Open(ctx, store, p.Join(KeysArray).Key())
	if err != nil {
		return nil, err
	}
	finished, err := zarr.Open(ctx, store, p.Join(FinishedArray).Key())
	if err != nil {
		return nil, err
	}
	return &Live{
		Data:     data,
		Progress: []scanslice.Progress{scanslice.LengthProgress(keys)},
		Finished: scanslice.FlagArray(finished),
	}, nil
}

// Iterator returns a dynamic iterator over the live data, with each frame
// as a slice.
func (l *Live) Iterator(opts ...scanslice.Options) (*scanslice.DynamicSliceIterator, error) {
	dims := make([]int, len(l.Data.Shape())-1)
	for i := range dims {
		dims[i] = i + 1
	}
	opts = append([]scanslice.Options{scanslice.DataDims(dims...)}, slices.Clone(opts)...)
	return scanslice.NewDynamicIterator(l.Data, l.Progress, l.Finished, opts...)
}
