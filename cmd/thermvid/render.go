// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/maruel/thermvid/render"
	"github.com/maruel/thermvid/report"
)

func renderCmd(f *flags) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "render <id>",
		Short: "Render the thermal video of a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			s, err := f.loadSettings()
			if err != nil {
				return err
			}
			dst := output
			if dst == "" {
				dst = filepath.Join(f.out, id, "thermal.avi")
			}
			c, err := f.catalog()
			if err != nil {
				return err
			}
			defer c.Close()
			job, err := c.Begin(id, report.Thermal, dst, &s)
			if err != nil {
				return err
			}
			ctx, cancel := interruptContext()
			defer cancel()
			w := cmd.OutOrStdout()
			res, err := f.renderer().Render(ctx, id, s, dst, func(p render.Progress) {
				fmt.Fprintf(w, "\r%d/%d frames", p.Frame, p.Total)
			})
			frames := 0
			if res != nil {
				frames = res.Frames
			}
			if err2 := c.Finish(job.ID, frames, err); err == nil {
				err = err2
			}
			if err != nil {
				fmt.Fprint(w, "\n")
				return err
			}
			fmt.Fprintf(w, "\n%s: %d frames %dx%d at %g fps in %s\n", res.Path, res.Frames, res.Size, res.Size, res.FPS, res.Elapsed.Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file; defaults to <out>/<id>/thermal.avi")
	return cmd
}

func classicCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "classic <id>",
		Short: "Copy the onboard camera video of a recording next to the thermal one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			dst := filepath.Join(f.out, id, "cam.mp4")
			c, err := f.catalog()
			if err != nil {
				return err
			}
			defer c.Close()
			job, err := c.Begin(id, report.Classic, dst, nil)
			if err != nil {
				return err
			}
			n, err := render.CopyCamera(f.store(), id, dst)
			if err2 := c.Finish(job.ID, 0, err); err == nil {
				err = err2
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d bytes\n", dst, n)
			return nil
		},
	}
}
