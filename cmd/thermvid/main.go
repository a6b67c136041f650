// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// thermvid renders the thermal camera recordings of a descent probe into
// colorized videos.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime/pprof"
	"sync"

	"github.com/maruel/interrupt"
	"github.com/spf13/cobra"

	"github.com/maruel/thermvid/config"
	"github.com/maruel/thermvid/recording"
	"github.com/maruel/thermvid/render"
	"github.com/maruel/thermvid/report"
)

// flags shared by all the commands.
type flags struct {
	data       string
	out        string
	settings   string
	db         string
	workers    int
	verbose    bool
	cpuprofile string

	profile *os.File
}

func (f *flags) store() *recording.Store {
	return recording.NewStore(f.data)
}

func (f *flags) renderer() *render.Renderer {
	return &render.Renderer{Store: f.store(), Workers: f.workers}
}

func (f *flags) loadSettings() (config.Video, error) {
	return config.Load(f.settings)
}

// dbPath returns the catalog path. It defaults to the settings directory so
// it is never under --out, which the server exposes.
func (f *flags) dbPath() string {
	if f.db != "" {
		return f.db
	}
	return filepath.Join(filepath.Dir(f.settings), "renders.db")
}

func (f *flags) catalog() (*report.Catalog, error) {
	p := f.dbPath()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, err
	}
	return report.Open(p)
}

func (f *flags) setup() error {
	log.SetFlags(log.Lmicroseconds)
	if !f.verbose {
		log.SetOutput(io.Discard)
	}
	if f.cpuprofile != "" {
		p, err := os.Create(f.cpuprofile)
		if err != nil {
			return err
		}
		if err := pprof.StartCPUProfile(p); err != nil {
			p.Close()
			return err
		}
		f.profile = p
	}
	return nil
}

func (f *flags) teardown() {
	if f.profile != nil {
		pprof.StopCPUProfile()
		f.profile.Close()
		f.profile = nil
	}
}

var handleCtrlC sync.Once

// interruptContext returns a context canceled on Ctrl-C.
func interruptContext() (context.Context, context.CancelFunc) {
	handleCtrlC.Do(interrupt.HandleCtrlC)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-interrupt.Channel:
			log.Printf("interrupted")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:   "thermvid",
		Short: "Renders probe thermal recordings into videos",
		Long: `thermvid reads the recordings downloaded from the probe, upsamples the
thermal camera frames, colorizes them and writes a playable video.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return f.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			f.teardown()
		},
	}
	root.SetOut(stdout)
	pf := root.PersistentFlags()
	pf.StringVar(&f.data, "data", "data", "directory holding the recordings")
	pf.StringVar(&f.out, "out", "result", "directory where videos are written")
	pf.StringVar(&f.settings, "settings", config.DefaultPath(), "video settings file")
	pf.StringVar(&f.db, "db", "", "render catalog; defaults to renders.db next to the settings file")
	pf.IntVar(&f.workers, "workers", 0, "frames colorized concurrently; 0 means one per CPU")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "enable logging")
	pf.StringVar(&f.cpuprofile, "cpuprofile", "", "dump CPU profile in file")

	root.AddCommand(renderCmd(f))
	root.AddCommand(classicCmd(f))
	root.AddCommand(serveCmd(f))
	root.AddCommand(generateCmd(f))
	root.AddCommand(inspectCmd(f))
	root.AddCommand(settingsCmd(f))
	return root
}

func mainImpl() error {
	return newRootCmd(os.Stdout).Execute()
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "\nthermvid: %s.\n", err)
		os.Exit(1)
	}
}
