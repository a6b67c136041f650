// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package render

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/maruel/thermvid/config"
	"github.com/maruel/thermvid/recording"
	"github.com/maruel/thermvid/thermal"
	"github.com/maruel/thermvid/thermaltest"
	"github.com/maruel/thermvid/video"
)

func settings() config.Video {
	return config.Video{
		VideoSize:          16,
		FPS:                10,
		MinimalTemperature: 0,
		MaximalTemperature: 100,
		MediumColor:        [3]uint8{0, 255, 0},
	}
}

func newRenderer(t *testing.T, id string, b *recording.Bundle) *Renderer {
	s := recording.NewStore(t.TempDir())
	if b != nil {
		if err := s.Save(id, b); err != nil {
			t.Fatal(err)
		}
	}
	return &Renderer{Store: s, Workers: 4}
}

func TestRender(t *testing.T) {
	r := newRenderer(t, "flight", thermaltest.Descent(2, 8, 8, 0))
	dst := filepath.Join(t.TempDir(), "out", "thermal.avi")
	var got []Progress
	res, err := r.Render(context.Background(), "flight", settings(), dst, func(p Progress) { got = append(got, p) })
	if err != nil {
		t.Fatal(err)
	}
	if res.Path != dst || res.Frames != 2 || res.Size != 16 || res.FPS != 10 {
		t.Fatalf("got %#v", res)
	}
	want := []Progress{{"flight", 1, 2}, {"flight", 2, 2}}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %v", got)
	}
	info, err := video.Probe(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.TotalFrames != 2 || len(info.Frames) != 2 {
		t.Fatalf("got %d/%d frames", info.TotalFrames, len(info.Frames))
	}
	if info.Width != 16 || info.Height != 16 || info.FPS() != 10 {
		t.Fatalf("got %dx%d at %g fps", info.Width, info.Height, info.FPS())
	}
}

func TestRender_colors(t *testing.T) {
	r := newRenderer(t, "c", &recording.Bundle{Thermal: thermaltest.Uniform(8, 8, 0, 50, 100)})
	dst := filepath.Join(t.TempDir(), "thermal.avi")
	if _, err := r.Render(context.Background(), "c", settings(), dst, nil); err != nil {
		t.Fatal(err)
	}
	info, err := video.Probe(dst)
	if err != nil {
		t.Fatal(err)
	}
	want := []color.RGBA{{0, 0, 255, 255}, {0, 255, 0, 255}, {255, 0, 0, 255}}
	if len(info.Frames) != len(want) {
		t.Fatalf("got %d frames", len(info.Frames))
	}
	for i, data := range info.Frames {
		img, err := jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			t.Fatal(err)
		}
		if s := img.Bounds().Size(); s != image.Pt(16, 16) {
			t.Fatalf("frame %d: %v", i, s)
		}
		// JPEG is lossy; compare the dominant channel.
		r, g, b, _ := img.At(8, 8).RGBA()
		w := want[i]
		if (w.R == 255) != (r > 0x8000) || (w.G == 255) != (g > 0x8000) || (w.B == 255) != (b > 0x8000) {
			t.Fatalf("frame %d: unexpected color %x %x %x", i, r, g, b)
		}
	}
}

func TestRender_empty(t *testing.T) {
	r := newRenderer(t, "e", &recording.Bundle{Thermal: [][][]float64{}})
	dst := filepath.Join(t.TempDir(), "thermal.avi")
	res, err := r.Render(context.Background(), "e", settings(), dst, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Frames != 0 {
		t.Fatal(res.Frames)
	}
	info, err := video.Probe(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.TotalFrames != 0 {
		t.Fatal(info.TotalFrames)
	}
}

func TestRender_noThermal(t *testing.T) {
	r := newRenderer(t, "", nil)
	dir := filepath.Join(r.Store.Root, "normal", "gps-only")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	data, err := cbor.Marshal(map[string][]float64{"temp": {12, 11}})
	if err != nil {
		t.Fatal(err)
	}
	if err = os.WriteFile(filepath.Join(dir, "data.cbor"), data, 0o644); err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"gps-only", "missing"} {
		dst := filepath.Join(t.TempDir(), "thermal.avi")
		_, err := r.Render(context.Background(), id, settings(), dst, nil)
		var serr *recording.StoreReadError
		if !errors.As(err, &serr) {
			t.Fatalf("%s: got %v", id, err)
		}
		if _, err := os.Stat(dst); !os.IsNotExist(err) {
			t.Fatalf("%s: output created: %v", id, err)
		}
	}
}

func TestRender_invalid(t *testing.T) {
	r := newRenderer(t, "x", &recording.Bundle{Thermal: thermaltest.Uniform(8, 8, 10)})
	dst := filepath.Join(t.TempDir(), "thermal.avi")
	s := settings()
	s.VideoSize = 4
	if _, err := r.Render(context.Background(), "x", s, dst, nil); !errors.Is(err, thermal.ErrShrink) {
		t.Fatalf("got %v", err)
	}
	s = settings()
	s.FPS = 2.5
	var verr *config.ValidationError
	if _, err := r.Render(context.Background(), "x", s, dst, nil); !errors.As(err, &verr) {
		t.Fatalf("got %v", err)
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Fatalf("output created: %v", err)
	}
}

func TestRender_cancel(t *testing.T) {
	r := newRenderer(t, "long", thermaltest.Descent(50, 8, 8, 0))
	dst := filepath.Join(t.TempDir(), "thermal.avi")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	frames := 0
	_, err := r.Render(ctx, "long", settings(), dst, func(p Progress) {
		frames = p.Frame
		cancel()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v", err)
	}
	if frames != 1 {
		t.Fatalf("rendered %d frames after cancellation", frames)
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Fatalf("partial file left: %v", err)
	}
}

func TestRender_cancelAfterLast(t *testing.T) {
	r := newRenderer(t, "short", thermaltest.Descent(3, 8, 8, 0))
	dst := filepath.Join(t.TempDir(), "thermal.avi")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	res, err := r.Render(ctx, "short", settings(), dst, func(p Progress) {
		if p.Frame == p.Total {
			cancel()
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Frames != 3 {
		t.Fatal(res.Frames)
	}
	info, err := video.Probe(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.TotalFrames != 3 {
		t.Fatal(info.TotalFrames)
	}
}

func TestRender_concurrent(t *testing.T) {
	r := newRenderer(t, "a", thermaltest.Descent(10, 8, 8, 0))
	dir := t.TempDir()
	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dst := filepath.Join(dir, string(rune('a'+i))+".avi")
			_, errs[i] = r.Render(context.Background(), "a", settings(), dst, nil)
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("#%d: %v", i, err)
		}
	}
	if len(r.locks.locks) != 0 {
		t.Fatalf("leaked locks: %v", r.locks.locks)
	}
}

func TestColorize_order(t *testing.T) {
	b := thermaltest.Descent(40, 8, 6, 3)
	var frames []*thermal.Frame
	for _, rows := range b.Thermal {
		f, err := thermal.FromRows(rows)
		if err != nil {
			t.Fatal(err)
		}
		frames = append(frames, f)
	}
	s := settings()
	s.MaximalTemperature = 40
	rng, err := s.Range()
	if err != nil {
		t.Fatal(err)
	}
	r := Renderer{Workers: 8}
	next := 0
	err = r.colorize(context.Background(), frames, 16, rng, func(i int, img *image.RGBA) error {
		if i != next {
			t.Fatalf("got frame %d, expected %d", i, next)
		}
		f, err := thermal.Upsample(frames[i], 16)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(img.Pix, rng.Colorize(f).Pix) {
			t.Fatalf("frame %d differs", i)
		}
		next++
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if next != len(frames) {
		t.Fatal(next)
	}
}

func TestColorize_emitError(t *testing.T) {
	frames := make([]*thermal.Frame, 20)
	for i := range frames {
		frames[i] = thermal.NewFrame(4, 4)
	}
	s := settings()
	rng, err := s.Range()
	if err != nil {
		t.Fatal(err)
	}
	r := Renderer{Workers: 3}
	boom := errors.New("boom")
	calls := 0
	err = r.colorize(context.Background(), frames, 8, rng, func(i int, img *image.RGBA) error {
		calls++
		if i == 5 {
			return boom
		}
		return nil
	})
	if err != boom {
		t.Fatalf("got %v", err)
	}
	if calls != 6 {
		t.Fatal(calls)
	}
}

func TestColorize_upsampleError(t *testing.T) {
	frames := make([]*thermal.Frame, 10)
	for i := range frames {
		frames[i] = thermal.NewFrame(4, 4)
	}
	frames[7] = thermal.NewFrame(16, 16)
	s := settings()
	rng, err := s.Range()
	if err != nil {
		t.Fatal(err)
	}
	r := Renderer{Workers: 2}
	calls := 0
	err = r.colorize(context.Background(), frames, 8, rng, func(i int, img *image.RGBA) error {
		calls++
		return nil
	})
	if !errors.Is(err, thermal.ErrShrink) {
		t.Fatalf("got %v", err)
	}
	if calls > 7 {
		t.Fatal(calls)
	}
}

func TestInFlight(t *testing.T) {
	data := []struct {
		workers, size int
		wantWorkers   int
		wantWindow    int
	}{
		{4, 16, 4, 8},
		{1, 64, 1, 2},
		{16, 4096, 2, 2},
		{64, 2048, 10, 10},
		{3, 8192, 1, 1},
	}
	for i, line := range data {
		w, n := inFlight(line.workers, line.size)
		if w != line.wantWorkers || n != line.wantWindow {
			t.Fatalf("#%d: inFlight(%d, %d) = %d, %d", i, line.workers, line.size, w, n)
		}
	}
	if w, n := inFlight(0, 16); w < 1 || n != 2*w {
		t.Fatalf("got %d, %d", w, n)
	}
}

func TestKeyedMutex(t *testing.T) {
	var k keyedMutex
	ctx := context.Background()
	if err := k.lock(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if err := k.lock(ctx, "b"); err != nil {
		t.Fatal(err)
	}
	short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if err := k.lock(short, "a"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v", err)
	}
	k.unlock("b")
	k.unlock("a")
	if len(k.locks) != 0 {
		t.Fatalf("leaked %v", k.locks)
	}
}

func TestCopyCamera(t *testing.T) {
	r := newRenderer(t, "cam", &recording.Bundle{Thermal: thermaltest.Uniform(8, 8, 1)})
	src, err := r.Store.CameraPath("cam")
	if err != nil {
		t.Fatal(err)
	}
	want := []byte("not really an mp4")
	if err = os.WriteFile(src, want, 0o644); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(t.TempDir(), "out", "classic.mp4")
	n, err := CopyCamera(r.Store, "cam", dst)
	if err != nil {
		t.Fatal(err)
	}
	if n != int64(len(want)) {
		t.Fatal(n)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %q", got)
	}
	if err = os.Remove(src); err != nil {
		t.Fatal(err)
	}
	if _, err = CopyCamera(r.Store, "cam", dst+"2"); !errors.Is(err, recording.ErrNotFound) {
		t.Fatalf("got %v", err)
	}
}
