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
	"os/signal"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"lostluck.dev/scanslice"
	"lostluck.dev/scanslice/transforms/synthetic"
	"lostluck.dev/scanslice/zarr"
)

func newRunCmd(rf *rootFlags) *cobra.Command {
	var (
		path    string
		workers int
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an operation chain described by a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := rf.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			cfg, err := loadConfig(path)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("workers") {
				cfg.Runner.Workers = workers
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			rep, err := run(ctx, cfg, logger)
			if rep != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "run %s %v\n", rep.RunID, rep)
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&path, "config", "c", "", "path of the YAML run description")
	cmd.Flags().IntVar(&workers, "workers", 0, "override runner.workers")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func run(ctx context.Context, cfg *Config, logger *slog.Logger) (*scanslice.Report, error) {
	store, closeStore, err := openStore(ctx, cfg.Source, logger)
	if err != nil {
		return nil, err
	}
	defer closeStore()

	reg, err := registry()
	if err != nil {
		return nil, err
	}
	chain, err := buildChain(reg, cfg.Chain)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	it, err := iterator(gctx, g, store, cfg, logger)
	if err != nil {
		return nil, err
	}

	runner := scanslice.NewSeriesRunner(
		scanslice.Name("scanslice"),
		scanslice.Workers(cfg.Runner.Workers),
		scanslice.ParallelTimeout(cfg.Runner.ParallelTimeout),
		scanslice.Logger(logger),
	)
	var rep *scanslice.Report
	g.Go(func() error {
		var err error
		rep, err = runner.Run(gctx, it, &logVisitor{logger: logger}, chain...)
		return err
	})
	err = g.Wait()
	return rep, err
}

func iterator(ctx context.Context, g *errgroup.Group, store zarr.Store, cfg *Config, logger *slog.Logger) (scanslice.SliceIterator, error) {
	ic := cfg.Iteration
	opts := []scanslice.Options{
		scanslice.Logger(logger),
		scanslice.MaxTimeout(ic.MaxTimeout),
		scanslice.PollInterval(ic.PollInterval),
		scanslice.Repeat(ic.Repeat),
	}
	switch {
	case len(ic.DataDims) > 0:
		opts = append(opts, scanslice.DataDims(ic.DataDims...))
	case ic.AutoRank > 0:
		opts = append(opts, scanslice.AutoRank(ic.AutoRank))
	}

	if cfg.Live != nil {
		acq, err := synthetic.NewAcquisition(ctx, store, cfg.Source.Array, *cfg.Live, logger.With("component", "acquisition"))
		if err != nil {
			return nil, err
		}
		live, err := synthetic.OpenLive(ctx, store, cfg.Source.Array)
		if err != nil {
			return nil, err
		}
		g.Go(func() error { return acq.Run(ctx) })
		return live.Iterator(opts...)
	}

	array, err := zarr.Open(ctx, store, cfg.Source.Array)
	if err != nil {
		return nil, err
	}
	if !ic.Dynamic {
		return scanslice.NewStaticIterator(array, opts...)
	}

	var progress []scanslice.Progress
	for _, p := range ic.Progress {
		key, err := zarr.Open(ctx, store, p)
		if err != nil {
			return nil, err
		}
		progress = append(progress, scanslice.LengthProgress(key))
	}
	var finished scanslice.FinishedFlag
	if ic.Finished != "" {
		flag, err := zarr.Open(ctx, store, ic.Finished)
		if err != nil {
			return nil, err
		}
		finished = scanslice.FlagArray(flag)
	}
	if ic.Watch {
		ls, ok := store.(*zarr.LocalStore)
		if !ok {
			return nil, fmt.Errorf("iteration.watch needs a local store, not %s", store.Type())
		}
		wake, err := ls.Watch(ctx, cfg.Source.Array, logger)
		if err != nil {
			return nil, err
		}
		opts = append(opts, scanslice.Wake(wake))
	}
	return scanslice.NewDynamicIterator(array, progress, finished, opts...)
}

// logVisitor logs every step.
type logVisitor struct {
	logger *slog.Logger
	chain  []scanslice.Operation
}

func (v *logVisitor) Init(chain []scanslice.Operation, it scanslice.SliceIterator) error {
	v.chain = chain
	v.logger.Info("starting run", "array", it.Parent().Name(), "shape", it.Shape(), "dataDims", it.DataDims(), "total", it.Total(), "ops", len(chain))
	return nil
}

func (v *logVisitor) Executed(r scanslice.StepResult) error {
	v.logger.Info("step", "index", r.Index, "shape", r.Result.Data.Shape(), "failedSpans", r.Result.Failed())
	return nil
}

func (v *logVisitor) Failed(f scanslice.StepFailure) {
	v.logger.Warn("step failed", "index", f.Index, "op", f.Operation, "error", f.Err)
}

func (v *logVisitor) Cancelled() bool { return false }
