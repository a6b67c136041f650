// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package render turns a stored recording into a colorized thermal video.
package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/maruel/thermvid/config"
	"github.com/maruel/thermvid/palette"
	"github.com/maruel/thermvid/recording"
	"github.com/maruel/thermvid/thermal"
	"github.com/maruel/thermvid/video"
)

// Progress is reported after each frame written.
type Progress struct {
	Recording string
	Frame     int // Frames written so far.
	Total     int
}

// Result describes a rendered video.
type Result struct {
	Path    string
	Frames  int
	Size    int
	FPS     float64
	Elapsed time.Duration
}

// Renderer renders recordings from a Store.
//
// It is safe for concurrent use. Renders of the same recording are serialized.
type Renderer struct {
	Store   *recording.Store
	Workers int // Goroutines colorizing frames; 0 means runtime.NumCPU().
	Quality int // JPEG quality; 0 means video.DefaultQuality.

	locks keyedMutex
}

// Render writes the thermal video of recording id at dst using settings s.
//
// progress, if not nil, is called from the calling goroutine after each
// frame. On any failure or cancellation the partial file is removed.
func (r *Renderer) Render(ctx context.Context, id string, s config.Video, dst string, progress func(Progress)) (*Result, error) {
	start := time.Now()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	rng, err := s.Range()
	if err != nil {
		return nil, err
	}
	if err := r.locks.lock(ctx, id); err != nil {
		return nil, err
	}
	defer r.locks.unlock(id)

	rec, err := r.Store.Load(id)
	if err != nil {
		return nil, err
	}
	if w, h := rec.Bounds(); s.VideoSize < w || s.VideoSize < h {
		return nil, fmt.Errorf("render: %w: videoSize %d for %dx%d frames", thermal.ErrShrink, s.VideoSize, w, h)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return nil, err
	}
	enc := video.Encoder{Quality: r.Quality}
	if err := enc.Open(dst, s.FPS, image.Pt(s.VideoSize, s.VideoSize)); err != nil {
		return nil, err
	}
	log.Printf("render %s: %d frames -> %s (%dpx, %g fps)", id, rec.Len(), dst, s.VideoSize, s.FPS)
	err = r.colorize(ctx, rec.Frames, s.VideoSize, rng, func(i int, img *image.RGBA) error {
		if err := enc.Append(img); err != nil {
			return err
		}
		if progress != nil {
			progress(Progress{Recording: id, Frame: i + 1, Total: rec.Len()})
		}
		return nil
	})
	if err != nil {
		var ferr *video.FrameSizeMismatchError
		if errors.As(err, &ferr) {
			log.Printf("render %s: BUG: %s", id, err)
		}
		if err2 := enc.Abort(); err2 != nil {
			log.Printf("render %s: failed to remove %s: %s", id, dst, err2)
		}
		return nil, err
	}
	if err := enc.Close(); err != nil {
		os.Remove(dst)
		return nil, err
	}
	res := &Result{Path: dst, Frames: enc.Frames(), Size: s.VideoSize, FPS: s.FPS, Elapsed: time.Since(start)}
	log.Printf("render %s: done in %s", id, res.Elapsed.Round(time.Millisecond))
	return res, nil
}

// frameBudget caps the memory held by the frames in flight.
const frameBudget = 512 << 20

// inFlight returns the number of workers and the number of frames that may be
// in flight at once for frames of size x size pixels.
func inFlight(workers, size int) (int, int) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	// Upsampled float64 pixels plus the RGBA image.
	per := 12 * size * size
	if per < 1 {
		per = 1
	}
	window := 2 * workers
	if n := frameBudget / per; n < window {
		window = n
	}
	if window < 1 {
		window = 1
	}
	if workers > window {
		workers = window
	}
	return workers, window
}

// colorize upsamples and colorizes frames on worker goroutines and calls
// emit in frame order.
//
// At most 2*workers frames are in flight, fewer for large sizes. It stops
// after the current frame when ctx is canceled.
func (r *Renderer) colorize(ctx context.Context, frames []*thermal.Frame, size int, rng palette.Range, emit func(i int, img *image.RGBA) error) error {
	workers, window := inFlight(r.Workers, size)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		i   int
		img *image.RGBA
	}
	results := make(chan result, workers)
	slots := make(chan struct{}, window)
	// werr is set before results is closed.
	var werr error
	go func() {
		defer close(results)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
	feed:
		for i := range frames {
			select {
			case slots <- struct{}{}:
			case <-gctx.Done():
				break feed
			}
			i := i
			g.Go(func() error {
				f, err := thermal.Upsample(frames[i], size)
				if err != nil {
					return fmt.Errorf("frame %d: %w", i, err)
				}
				select {
				case results <- result{i, rng.Colorize(f)}:
					return nil
				case <-gctx.Done():
					return gctx.Err()
				}
			})
		}
		werr = g.Wait()
	}()

	var err error
	next := 0
	pending := map[int]*image.RGBA{}
	for res := range results {
		if err != nil {
			continue
		}
		pending[res.i] = res.img
		for img, ok := pending[next]; ok; img, ok = pending[next] {
			delete(pending, next)
			if err = emit(next, img); err != nil {
				cancel()
				break
			}
			next++
			<-slots
			if next == len(frames) {
				break
			}
			if err = ctx.Err(); err != nil {
				break
			}
		}
	}
	if err != nil {
		return err
	}
	if next == len(frames) {
		return nil
	}
	if werr != nil {
		return werr
	}
	return ctx.Err()
}

// CopyCamera copies the onboard camera video of recording id to dst.
func CopyCamera(store *recording.Store, id, dst string) (int64, error) {
	src, err := store.CameraPath(id)
	if err != nil {
		return 0, err
	}
	f, err := os.Open(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = recording.ErrNotFound
		}
		return 0, &recording.StoreReadError{ID: id, Path: src, Err: err}
	}
	defer f.Close()
	if err = os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, err
	}
	out, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".*")
	if err != nil {
		return 0, err
	}
	tmp := out.Name()
	n, err := out.ReadFrom(f)
	if err2 := out.Close(); err == nil {
		err = err2
	}
	if err == nil {
		err = os.Rename(tmp, dst)
	}
	if err != nil {
		os.Remove(tmp)
		return 0, err
	}
	log.Printf("classic %s: copied %d bytes -> %s", id, n, dst)
	return n, nil
}
