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
	"fmt"
	"maps"
	"slices"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"lostluck.dev/scanslice"
	"lostluck.dev/scanslice/zarr"
)

func newInspectCmd() *cobra.Command {
	var src SourceConfig
	cmd := &cobra.Command{
		Use:   "inspect ARRAY",
		Short: "Print the metadata of a zarr array",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src.Array = args[0]
			if err := validate.Struct(&src); err != nil {
				return fmt.Errorf("invalid source: %w", err)
			}
			ctx := cmd.Context()
			store, closeStore, err := openStore(ctx, src, discard)
			if err != nil {
				return err
			}
			defer closeStore()
			a, err := zarr.Open(ctx, store, src.Array)
			if err != nil {
				return err
			}

			m := a.Meta()
			compressor := "none"
			if m.Compressor != nil {
				compressor = m.Compressor.ID
			}
			rows := [][]string{
				{"source", a.SourcePath()},
				{"shape", fmt.Sprint(m.Shape)},
				{"max shape", fmt.Sprint(a.MaxShape())},
				{"chunks", fmt.Sprint(m.Chunks)},
				{"dtype", fmt.Sprintf("%v (%s)", m.Dtype, m.Dtype.BasicType.Human())},
				{"order", m.Order},
				{"compressor", compressor},
				{"fill value", fmt.Sprint(m.FillValue)},
			}
			for i, ax := range a.AxisArrays() {
				if ax != nil {
					rows = append(rows, []string{fmt.Sprintf("axis %d", i), fmt.Sprintf("%s %v", ax.Name(), ax.Shape())})
				}
			}
			attrs := a.Attributes()
			for _, k := range slices.Sorted(maps.Keys(attrs)) {
				rows = append(rows, []string{"attr " + k, fmt.Sprint(attrs[k])})
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			table.SetBorder(false)
			table.SetNoWhiteSpace(true)
			table.SetTablePadding("    ")
			table.SetAutoWrapText(false)
			table.AppendBulk(rows)
			table.Render()

			// Slice count for the default data dimensions.
			it, err := scanslice.NewStaticIterator(a)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d slices over data dims %v\n", it.Total(), it.DataDims())
			return nil
		},
	}
	cmd.Flags().StringVar(&src.Store, "store", "local", "store kind: memory, local, bucket or badger")
	cmd.Flags().StringVar(&src.Location, "location", "", "store directory, bucket URL or database path")
	return cmd
}
