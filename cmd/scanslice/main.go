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

// scanslice runs operation chains over slices of zarr arrays.
//
// A YAML file describes the source array, how it is iterated and the chain
// of registered operations applied to each slice:
//
//	scanslice run -c scan.yaml
//	scanslice inspect --store local --location ./data scan/frames
//	scanslice ops
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"lostluck.dev/scanslice"
	"lostluck.dev/scanslice/transforms/ops"
	"lostluck.dev/scanslice/transforms/synthetic"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootFlags struct {
	logLevel  string
	logFormat string
}

func newRootCmd() *cobra.Command {
	var rf rootFlags
	root := &cobra.Command{
		Use:           "scanslice",
		Short:         "Slice, iterate and process N-dimensional arrays",
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&rf.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	root.PersistentFlags().StringVar(&rf.logFormat, "log-format", "text", "log format: text or json")

	root.AddCommand(
		newRunCmd(&rf),
		newInspectCmd(),
		newOpsCmd(),
	)
	return root
}

var discard = slog.New(slog.DiscardHandler)

func (rf *rootFlags) logger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(rf.logLevel)); err != nil {
		return nil, fmt.Errorf("bad --log-level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(rf.logFormat) {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("bad --log-format %q", rf.logFormat)
}

// registry returns a registry with every operation the binary ships.
func registry() (*scanslice.Registry, error) {
	reg := scanslice.NewRegistry()
	if err := ops.Register(reg); err != nil {
		return nil, err
	}
	if err := synthetic.Register(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

func newOpsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ops",
		Short: "List the registered operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := registry()
			if err != nil {
				return err
			}
			for _, id := range reg.IDs() {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}
