// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// layersTable lists the layers of the checkpoint model, in the order they were built.
func layersTable(cp *checkpoint) *highlightTable {
	table := newTable(lipgloss.Left, lipgloss.Left, lipgloss.Right)
	table.Headers("Layer", "Kind", "Kernel", "In", "Out", "Stride", "Activation", "Initializer", "Options", "Parameters")
	var total int
	for _, layer := range cp.index.Layers {
		kernel := make([]string, len(layer.Kernel))
		for ii, dim := range layer.Kernel {
			kernel[ii] = fmt.Sprint(dim)
		}
		var options []string
		if layer.UseBias {
			options = append(options, "bias")
		}
		if layer.BatchNorm {
			options = append(options, "batch_norm")
		}
		if layer.Dropout {
			options = append(options, "dropout")
		}
		table.AddRow(false, layer.Name, layer.Kind, strings.Join(kernel, "x"),
			fmt.Sprint(layer.InputFeatures), fmt.Sprint(layer.OutputFeatures), fmt.Sprint(layer.Stride),
			layer.Activation, layer.Initializer, strings.Join(options, ","),
			humanize.Comma(int64(layer.Parameters)))
		total += layer.Parameters
	}
	table.AddRow(false, "Total", "", "", "", "", "", "", "", "", humanize.Comma(int64(total)))
	return table
}
