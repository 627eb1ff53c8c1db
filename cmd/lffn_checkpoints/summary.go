// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// summaryTable has one column per checkpoint, and one row per property of the model.
func summaryTable(checkpoints []*checkpoint) *highlightTable {
	table := newTable(lipgloss.Right, lipgloss.Left)
	rowFn := func(title string, valueFn func(cp *checkpoint) string) {
		row := make([]string, 0, len(checkpoints)+1)
		row = append(row, title)
		for _, cp := range checkpoints {
			row = append(row, valueFn(cp))
		}
		table.AddRow(len(checkpoints) > 1 && !allEqual(row[1:]), row...)
	}
	rowFn("checkpoint", func(cp *checkpoint) string { return cp.name })
	rowFn("model", func(cp *checkpoint) string { return cp.index.Model })
	rowFn("trial", func(cp *checkpoint) string { return fmt.Sprint(cp.index.Trial) })
	rowFn("namespace", func(cp *checkpoint) string { return cp.index.Namespace })
	rowFn("created", func(cp *checkpoint) string { return cp.index.Created.Format(time.DateTime) })
	rowFn("complexity", func(cp *checkpoint) string { return humanize.Comma(cp.index.Complexity) })
	rowFn("# layers", func(cp *checkpoint) string { return humanize.Comma(int64(len(cp.index.Layers))) })
	rowFn("# variables", func(cp *checkpoint) string { return humanize.Comma(int64(len(cp.index.Variables))) })
	rowFn("# parameters", func(cp *checkpoint) string {
		var size int
		for _, v := range cp.index.Variables {
			size += v.Shape().Size()
		}
		return humanize.Comma(int64(size))
	})
	rowFn("# bytes", func(cp *checkpoint) string {
		var length int64
		for _, v := range cp.index.Variables {
			length += v.Length
		}
		return humanize.Bytes(uint64(length))
	})
	return table
}
