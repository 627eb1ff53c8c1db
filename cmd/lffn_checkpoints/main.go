// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// lffn_checkpoints reports on one or more checkpoints saved by srgraph.CheckpointManager.
//
// Usage:
//
//	lffn_checkpoints [-params] [-layers] [-vars [-stats]] <checkpoint> [<checkpoint>...]
//
// Where <checkpoint> is the checkpoint path (e.g.: "models/lffn_3.ckpt"), optionally with the index or data suffix.
// When more than one checkpoint is given, they are compared side by side, and the differences are highlighted.
package main

import (
	"flag"
	"fmt"
	"os"
	"slices"

	"github.com/gomlx/lffn/pkg/srgraph"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"
)

var (
	flagSummary = flag.Bool("summary", true, "Display a summary of the model: complexity and sizes.")
	flagParams  = flag.Bool("params", false, "Lists the hyperparameters the model was built with.")
	flagLayers  = flag.Bool("layers", false, "Lists the layers of the model.")
	flagVars    = flag.Bool("vars", false, "Lists the variables of the model.")
	flagStats   = flag.Bool("stats", false, "With -vars, include statistics of the variables values: "+
		"MAV (mean absolute value), RMS (root mean square) and MaxAV (max absolute value).")
)

// checkpoint read from disk.
type checkpoint struct {
	path, name string
	index      *srgraph.CheckpointIndex
}

// readCheckpoints reads the index of the checkpoints in paths.
func readCheckpoints(paths []string) ([]*checkpoint, error) {
	checkpoints := make([]*checkpoint, len(paths))
	paths = slices.Clone(paths)
	for ii := range paths {
		paths[ii] = checkpointPath(paths[ii])
	}
	names := columnNames(paths)
	for ii, path := range paths {
		index, err := srgraph.ReadCheckpointIndex(path)
		if err != nil {
			return nil, err
		}
		checkpoints[ii] = &checkpoint{path: path, name: names[ii], index: index}
	}
	return checkpoints, nil
}

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if flag.NArg() == 0 {
		klog.Errorf("Missing checkpoint to read from. See 'lffn_checkpoints -help'")
		os.Exit(1)
	}
	checkpoints := must.M1(readCheckpoints(flag.Args()))

	if *flagSummary {
		fmt.Println(titleStyle.Render("Summary"))
		fmt.Println(summaryTable(checkpoints).Render())
	}
	if *flagParams {
		fmt.Println(titleStyle.Render("Hyperparameters"))
		fmt.Println(paramsTable(checkpoints).Render())
	}
	for _, cp := range checkpoints {
		if *flagLayers {
			fmt.Println(titleStyle.Render(fmt.Sprintf("Layers of %q", cp.name)))
			fmt.Println(layersTable(cp).Render())
		}
		if *flagVars {
			fmt.Println(titleStyle.Render(fmt.Sprintf("Variables of %q", cp.name)))
			fmt.Println(must.M1(variablesTable(cp, *flagStats)).Render())
		}
	}
}
