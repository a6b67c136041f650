// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/maruel/thermvid/video"
)

func inspectCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [id|file.avi]",
		Short: "List the recordings, describe one or probe a rendered video",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if len(args) == 0 {
				return listRecordings(w, f)
			}
			if strings.HasSuffix(args[0], ".avi") {
				return probeVideo(w, args[0])
			}
			info, err := f.store().Inspect(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "Recording: %s\n", info.ID)
			fmt.Fprintf(w, "Frames:    %d\n", info.Frames)
			fmt.Fprintf(w, "Size:      %dx%d\n", info.Width, info.Height)
			fmt.Fprintf(w, "Camera:    %t\n", info.Camera)
			for _, c := range info.Channels {
				fmt.Fprintf(w, "  %-10s %d samples\n", c.Name, c.Samples)
			}
			return nil
		},
	}
}

func listRecordings(w io.Writer, f *flags) error {
	entries, err := f.store().List()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Encrypted {
			fmt.Fprintf(w, "%s (encrypted)\n", e.ID)
		} else {
			fmt.Fprintf(w, "%s\n", e.ID)
		}
	}
	return nil
}

func probeVideo(w io.Writer, path string) error {
	info, err := video.Probe(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: %d frames %dx%d at %g fps\n", path, info.TotalFrames, info.Width, info.Height, info.FPS())
	return nil
}
