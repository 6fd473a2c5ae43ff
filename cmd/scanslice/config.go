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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	"lostluck.dev/scanslice"
	"lostluck.dev/scanslice/transforms/synthetic"
	"lostluck.dev/scanslice/zarr"
)

// Config is the YAML description of a run.
type Config struct {
	Source    SourceConfig    `yaml:"source" validate:"required"`
	Iteration IterationConfig `yaml:"iteration"`
	Runner    RunnerConfig    `yaml:"runner"`
	Chain     []StepConfig    `yaml:"chain" validate:"required,min=1,dive"`
	// Live starts a synthetic acquisition under the source array path and
	// iterates it while it's written.
	Live *synthetic.AcquisitionConfig `yaml:"live"`
}

// SourceConfig locates the array.
type SourceConfig struct {
	Store    string `yaml:"store" validate:"required,oneof=memory local bucket badger"`
	Location string `yaml:"location" validate:"required_unless=Store memory"`
	Array    string `yaml:"array" validate:"required"`
}

// IterationConfig selects the iterator.
type IterationConfig struct {
	DataDims []int `yaml:"data_dims" validate:"dive,min=0"`
	AutoRank int   `yaml:"auto_rank" validate:"min=0"`
	// Dynamic iterates an array that may still grow.
	Dynamic bool `yaml:"dynamic"`
	// Progress lists key arrays counting complete positions.
	Progress []string `yaml:"progress"`
	// Finished is the array holding the finished flag.
	Finished     string        `yaml:"finished"`
	MaxTimeout   time.Duration `yaml:"max_timeout" validate:"min=0"`
	PollInterval time.Duration `yaml:"poll_interval" validate:"min=0"`
	Repeat       bool          `yaml:"repeat"`
	// Watch wakes the iterator on file changes of a local store.
	Watch bool `yaml:"watch"`
}

// RunnerConfig tunes the SeriesRunner.
type RunnerConfig struct {
	Workers         int           `yaml:"workers" validate:"min=0"`
	ParallelTimeout time.Duration `yaml:"parallel_timeout" validate:"min=0"`
}

// StepConfig names a registered operation and its JSON style config.
type StepConfig struct {
	Op     string         `yaml:"op" validate:"required"`
	Config map[string]any `yaml:"config"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func loadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseConfig(b)
}

func parseConfig(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.UnmarshalStrict(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// openStore returns the store and a function releasing it.
func openStore(ctx context.Context, c SourceConfig, logger *slog.Logger) (zarr.Store, func() error, error) {
	nop := func() error { return nil }
	switch c.Store {
	case "memory":
		return zarr.NewMemoryStore(), nop, nil
	case "local":
		s, err := zarr.NewLocalStore(c.Location)
		return s, nop, err
	case "bucket":
		s, err := zarr.OpenBucketStore(ctx, c.Location)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "badger":
		s, err := zarr.OpenBadgerStore(c.Location, logger.With("store", "badger"))
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store %q", c.Store)
}

// buildChain constructs the configured operations.
func buildChain(reg *scanslice.Registry, steps []StepConfig) ([]scanslice.Operation, error) {
	chain := make([]scanslice.Operation, 0, len(steps))
	for i, s := range steps {
		var cfg []byte
		if len(s.Config) > 0 {
			b, err := json.Marshal(jsonValue(s.Config))
			if err != nil {
				return nil, fmt.Errorf("step %d (%s): %w", i, s.Op, err)
			}
			cfg = b
		}
		op, err := reg.New(s.Op, cfg)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		chain = append(chain, op)
	}
	return chain, nil
}

// jsonValue converts the maps yaml.v2 produces into JSON objects.
func jsonValue(v any) any {
	switch v := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(v))
		for k, e := range v {
			m[fmt.Sprint(k)] = jsonValue(e)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(v))
		for k, e := range v {
			m[k] = jsonValue(e)
		}
		return m
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = jsonValue(e)
		}
		return out
	}
	return v
}
