// Copyright © 2025 IO Finnet Group, Inc.
//
// This file is part of IO Finnet Group, Inc. The full IO Finnet Group, Inc. copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

package bench

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

// ScalingRow is one measured process count.
type ScalingRow struct {
	NP    int
	AvgMs float64
}

// Speedups divides the first row's average by each row's average.
func Speedups(rows []ScalingRow) []float64 {
	out := make([]float64, len(rows))
	if len(rows) == 0 {
		return out
	}
	baseline := rows[0].AvgMs
	for i, r := range rows {
		if r.AvgMs > 0 {
			out[i] = baseline / r.AvgMs
		}
	}
	return out
}

// ScalingTable renders np, avg ms and speedup relative to the first row.
func ScalingTable(w io.Writer, rows []ScalingRow) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"np", "avg ms", "speedup"})
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	speedups := Speedups(rows)
	for i, r := range rows {
		table.Append([]string{
			strconv.Itoa(r.NP),
			fmt.Sprintf("%.3f", r.AvgMs),
			fmt.Sprintf("%.3f", speedups[i]),
		})
	}
	table.Render()
}

// ResultTable renders a Run result as one row per operation.
func ResultTable(w io.Writer, res *Result) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"operation", "reps", "blocks", "mean ms", "stddev ms"})
	table.SetAutoFormatHeaders(false)
	for _, row := range []struct {
		name string
		s    Stats
	}{{"encrypt", res.Encrypt}, {"decrypt", res.Decrypt}} {
		table.Append([]string{
			row.name,
			strconv.Itoa(int(row.s.N)),
			strconv.Itoa(res.Blocks),
			fmt.Sprintf("%.3f", row.s.Mean()),
			fmt.Sprintf("%.9f", row.s.StdDev()),
		})
	}
	table.Render()
}
