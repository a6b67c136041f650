// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maruel/thermvid/thermaltest"
)

func generateCmd(f *flags) *cobra.Command {
	var frames, width, height int
	var seed int64
	cmd := &cobra.Command{
		Use:   "generate <id>",
		Short: "Write a synthetic recording, to try the pipeline without a probe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if frames < 0 || width <= 0 || height <= 0 {
				return fmt.Errorf("invalid dimensions %d frames of %dx%d", frames, width, height)
			}
			b := thermaltest.Descent(frames, width, height, seed)
			if err := f.store().Save(args[0], b); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d frames of %dx%d\n", args[0], frames, width, height)
			return nil
		},
	}
	cmd.Flags().IntVar(&frames, "frames", 100, "number of frames")
	cmd.Flags().IntVar(&width, "width", thermaltest.DefaultWidth, "frame width")
	cmd.Flags().IntVar(&height, "height", thermaltest.DefaultWidth, "frame height")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed")
	return cmd
}
