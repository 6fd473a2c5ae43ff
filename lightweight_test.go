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

package scanslice_test

import (
	"context"
	"math"
	"testing"

	"lostluck.dev/scanslice"
)

func TestLightweight(t *testing.T) {
	ctx := context.Background()
	it, err := scanslice.NewStaticIterator(scanslice.Arange(3, 4), scanslice.AutoRank(1))
	if err != nil {
		t.Fatal(err)
	}
	norm := scanslice.Map("norm", 1, 0, func(d *scanslice.Dataset) (*scanslice.Dataset, error) {
		s := 0.0
		for _, v := range d.Data() {
			s += v * v
		}
		return scanslice.Scalar(math.Sqrt(s)), nil
	})
	c := &scanslice.Collector{}
	rep, err := scanslice.NewSeriesRunner(scanslice.Name("lightweight")).Run(ctx, it, c,
		scanslice.MapElements("shift", func(v float64) float64 { return v - 1 }), norm)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if got, want := rep.Completed, 3; got != want {
		t.Errorf("completed an unexpected amount, got %v, want %v", got, want)
	}
	// Row 0 shifted is [-1 0 1 2].
	if got, want := c.Sorted()[0].Result.Data.Data()[0], math.Sqrt(6); got != want {
		t.Errorf("norm of the first row, got %v, want %v", got, want)
	}
}

func TestMapNilPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Map with a nil function didn't panic")
		}
	}()
	scanslice.Map("nil", scanslice.RankAny, scanslice.RankSame, nil)
}
