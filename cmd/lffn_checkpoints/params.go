// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"slices"

	"github.com/gomlx/gomlx/pkg/support/sets"
	"golang.org/x/exp/maps"
)

// paramsTable lists the hyperparameters of all checkpoints. Values that differ are highlighted.
func paramsTable(checkpoints []*checkpoint) *highlightTable {
	table := newTable()
	headers := []string{"Name"}
	if len(checkpoints) == 1 {
		headers = append(headers, "Value")
	} else {
		for _, cp := range checkpoints {
			headers = append(headers, cp.name)
		}
	}
	table.Headers(headers...)

	keys := sets.Make[string]()
	for _, cp := range checkpoints {
		for key := range cp.index.Params {
			keys.Insert(key)
		}
	}
	sortedKeys := maps.Keys(keys)
	slices.Sort(sortedKeys)
	for _, key := range sortedKeys {
		row := make([]string, 0, len(checkpoints)+1)
		row = append(row, key)
		for _, cp := range checkpoints {
			value, found := cp.index.Params[key]
			if !found {
				value = "-"
			}
			row = append(row, value)
		}
		table.AddRow(!allEqual(row[1:]), row...)
	}
	return table
}
