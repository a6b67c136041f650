// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maruel/thermvid/config"
)

func settingsCmd(f *flags) *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Print the video settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := f.loadSettings()
			if err != nil {
				return err
			}
			if write {
				if err := config.Write(f.settings, s); err != nil {
					return err
				}
			}
			data, err := json.MarshalIndent(&s, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", data)
			return nil
		},
	}
	cmd.Flags().BoolVar(&write, "write", false, "write the settings file normalized, with defaults for missing fields")
	return cmd
}
