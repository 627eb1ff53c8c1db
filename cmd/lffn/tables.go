// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/lffn/pkg/srgraph"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)
	oddRowStyle = lipgloss.NewStyle().Faint(false).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Faint(true).
			PaddingLeft(1).PaddingRight(1)
)

// layersTable lists the layers of the model, followed by its totals.
func layersTable(info srgraph.ModelInfo) *lgtable.Table {
	table := lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			var s lipgloss.Style
			switch {
			case row < 0:
				return headerRowStyle
			case row%2 == 0:
				s = oddRowStyle
			default:
				s = evenRowStyle
			}
			if col >= 2 {
				return s.Align(lipgloss.Right)
			}
			return s
		})
	table.Headers("Layer", "Kind", "Kernel", "Features", "Parameters")
	for _, layer := range info.Layers {
		kernel := "-"
		if len(layer.Kernel) >= 2 {
			kernel = fmt.Sprintf("%dx%d", layer.Kernel[0], layer.Kernel[1])
		}
		table.Row(layer.Name, layer.Kind, kernel,
			fmt.Sprintf("%d→%d", layer.InputFeatures, layer.OutputFeatures),
			humanize.Comma(int64(layer.Parameters)))
	}
	table.Row("# parameters", "", "", "", humanize.Comma(int64(info.NumParameters)))
	table.Row("complexity", "", "", "", humanize.Comma(info.Complexity))
	table.Row("receptive field", "", "", "", fmt.Sprint(info.ReceptiveField))
	return table
}
