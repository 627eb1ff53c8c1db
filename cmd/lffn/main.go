// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// lffn builds the LFFN super-resolution model and upscales an image with it.
//
// The model hyperparameters are set with -set, e.g.: -set="lffn_scale=3;lffn_filters=48;save_images=true".
// Run with -help to see the list of hyperparameters.
//
// Example, upscaling an image with a previously saved checkpoint, and archiving the summaries written:
//
//	lffn -set="lffn_channels=3;save_images=true" -load=best -input=low.png -output=high.png -archive=run1
package main

import (
	"flag"
	"fmt"

	_ "github.com/gomlx/gomlx/backends/default"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/gomlx/lffn/pkg/models/lffn"
	"github.com/gomlx/lffn/pkg/srgraph"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"
)

var (
	flagName    = flag.String("name", "lffn", "Name of the model: used for the scope of its variables and for the checkpoint files.")
	flagInput   = flag.String("input", "", "Image to upscale. If empty, a synthetic gradient image of -height x -width is used.")
	flagHeight  = flag.Int("height", 64, "Height of the synthetic input image.")
	flagWidth   = flag.Int("width", 64, "Width of the synthetic input image.")
	flagOutput  = flag.String("output", "", "If set, the upscaled image is saved to this file. The format is given by the extension.")
	flagLoad    = flag.String("load", "", "Name of the checkpoint to load (\"default\" for the model name). If empty, the model is randomly initialized.")
	flagSave    = flag.String("save", "", "Name of the checkpoint to save the model to (\"default\" for the model name).")
	flagTrial   = flag.Int("trial", 0, "Trial number of the checkpoint loaded or saved. 0 for none.")
	flagArchive = flag.String("archive", "", "If set, the summaries log directory is archived under this name at the end.")
	flagLayers  = flag.Bool("layers", true, "Print the table of layers of the model.")
)

func main() {
	ctx := lffn.CreateDefaultContext()
	settings := commandline.CreateContextSettingsFlag(ctx, "")
	klog.InitFlags(nil)
	flag.Parse()
	paramsSet := must.M1(commandline.ParseContextSettings(ctx, *settings))
	klog.V(1).Infof("Hyperparameters set:\n%s", commandline.SprintModifiedContextSettings(ctx, paramsSet))

	report, err := run(ctx, options{
		name:    *flagName,
		input:   *flagInput,
		height:  *flagHeight,
		width:   *flagWidth,
		output:  *flagOutput,
		load:    *flagLoad,
		save:    *flagSave,
		trial:   *flagTrial,
		archive: *flagArchive,
	})
	if err != nil {
		if srgraph.IsFatal(err) {
			klog.Exitf("%v", err)
		}
		klog.Fatalf("%+v", err)
	}
	if *flagLayers {
		fmt.Println(titleStyle.Render(fmt.Sprintf("Model %q", report.info.Model)))
		fmt.Println(layersTable(report.info).Render())
	}
	fmt.Printf("Upscaled %s to %s\n", report.inputShape, report.outputShape)
}
