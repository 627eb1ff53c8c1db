// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/compute"
	"github.com/gomlx/compute/dtypes"
	_ "github.com/gomlx/gomlx/backends/default"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/lffn/pkg/srgraph"
	"github.com/pkg/errors"
)

// variablesStats returns a function that calculates the MAV (mean absolute value), RMS (root mean square) and
// MaxAV (max absolute value) of a tensor.
func variablesStats(backend compute.Backend) (*Exec, error) {
	exec, err := NewExec(backend, func(x *Node) (mav, rms, maxAV *Node) {
		x = ConvertDType(x, dtypes.Float64)
		mav = ReduceAllMean(Abs(x))
		rms = Sqrt(ReduceAllMean(Square(x)))
		maxAV = ReduceAllMax(Abs(x))
		return
	})
	if err != nil {
		return nil, err
	}
	return exec.SetMaxCache(-1), nil
}

// variablesTable lists the variables of the checkpoint, sorted by scope and name.
// If withStats is set, it reads the values of the variables and include their statistics.
func variablesTable(cp *checkpoint, withStats bool) (*highlightTable, error) {
	table := newTable()
	headers := []string{"Scope", "Name", "Shape", "Size", "Bytes"}
	var statsExec *Exec
	var dataFile *os.File
	if withStats {
		headers = append(headers, "Scalar/MAV", "RMS", "MaxAV")
		backend, err := compute.New()
		if err != nil {
			return nil, err
		}
		defer backend.Finalize()
		statsExec, err = variablesStats(backend)
		if err != nil {
			return nil, err
		}
		dataFile, err = os.Open(cp.path + srgraph.DataSuffix)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open checkpoint data of %q", cp.path)
		}
		defer func() { _ = dataFile.Close() }()
	}
	table.Headers(headers...)

	savedVars := slices.Clone(cp.index.Variables)
	slices.SortFunc(savedVars, func(a, b srgraph.SavedVariable) int { return strings.Compare(a.Name, b.Name) })
	for _, v := range savedVars {
		scope, name := path.Split(v.Name)
		shape := v.Shape()
		row := []string{
			strings.TrimSuffix(scope, "/"), name, shape.String(),
			humanize.Comma(int64(shape.Size())),
			humanize.Bytes(uint64(v.Length)),
		}
		if withStats {
			value, err := v.ReadValue(dataFile)
			if err != nil {
				return nil, errors.WithMessagef(err, "checkpoint %q", cp.path)
			}
			switch {
			case shape.Size() == 1:
				row = append(row, fmt.Sprintf("%8v", value.Value()), "", "")
			case shape.DType.IsFloat():
				stats, err := statsExec.Exec(value)
				if err != nil {
					return nil, errors.WithMessagef(err, "statistics of variable %q", v.Name)
				}
				for _, stat := range stats {
					row = append(row, fmt.Sprintf("%.3g", stat.Value().(float64)))
				}
			default:
				row = append(row, "", "", "")
			}
			_ = value.FinalizeAll()
		}
		table.AddRow(false, row...)
	}
	return table, nil
}
