// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/maruel/thermvid/config"
	"github.com/maruel/thermvid/server"
)

func serveCmd(f *flags) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the recordings and renders over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := f.loadSettings()
			if err != nil {
				return err
			}
			c, err := f.catalog()
			if err != nil {
				return err
			}
			defer c.Close()
			ctx, cancel := interruptContext()
			defer cancel()

			srv := server.New(f.renderer(), c, f.out, s)
			defer srv.Close()
			if err := os.MkdirAll(filepath.Dir(f.settings), 0o700); err == nil {
				go func() {
					if err := config.Watch(ctx, f.settings, srv.SetSettings); err != nil {
						log.Printf("settings watch stopped: %s", err)
					}
				}()
			}

			h := &http.Server{
				Addr:              fmt.Sprintf(":%d", port),
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
				BaseContext:       func(net.Listener) context.Context { return ctx },
			}
			go func() {
				<-ctx.Done()
				srv.Close()
				shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				h.Shutdown(shutdown)
			}()
			fmt.Fprintf(cmd.OutOrStdout(), "Listening on %d\n", port)
			if err := h.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 8010, "http port to listen on")
	return cmd
}
