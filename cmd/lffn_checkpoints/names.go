// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"path/filepath"
	"strings"

	"github.com/gomlx/lffn/pkg/srgraph"
)

// checkpointPath normalizes arg to the checkpoint path, removing the index or data suffix if given.
func checkpointPath(arg string) string {
	arg = filepath.Clean(arg)
	for _, suffix := range []string{srgraph.IndexSuffix, srgraph.DataSuffix} {
		arg = strings.TrimSuffix(arg, suffix)
	}
	return arg
}

// columnNames returns the shortest names that tell the checkpoints apart: the base name of the checkpoint, prefixed
// by the first directory where the paths differ, if needed.
func columnNames(paths []string) []string {
	names := make([]string, len(paths))
	parts := make([][]string, len(paths))
	for ii, path := range paths {
		names[ii] = strings.TrimSuffix(filepath.Base(path), srgraph.CheckpointSuffix)
		parts[ii] = strings.Split(filepath.Dir(path), string(filepath.Separator))
	}
	for ii := range paths {
		for jj := range paths {
			if ii == jj || names[ii] != strings.TrimSuffix(filepath.Base(paths[jj]), srgraph.CheckpointSuffix) {
				continue
			}
			// Same base name: prefix with the first directory that differs.
			for kk, dir := range parts[ii] {
				if kk >= len(parts[jj]) || parts[jj][kk] != dir {
					names[ii] = dir + "/" + names[ii]
					break
				}
			}
			break
		}
	}
	return names
}
