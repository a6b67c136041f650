// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package config

import (
	"context"
	"errors"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	v := Default()
	if err := v.Validate(); err != nil {
		t.Fatal(err)
	}
	r, err := v.Range()
	if err != nil {
		t.Fatal(err)
	}
	if r.Min != 0 || r.Max != 40 || r.Neutral != (color.RGBA{0, 255, 0, 255}) {
		t.Fatalf("got %#v", r)
	}
}

func TestValidate(t *testing.T) {
	data := []struct {
		mod   func(v *Video)
		field string
	}{
		{func(v *Video) { v.VideoSize = 0 }, "videoSize"},
		{func(v *Video) { v.VideoSize = -3 }, "videoSize"},
		{func(v *Video) { v.VideoSize = MaxVideoSize + 1 }, "videoSize"},
		{func(v *Video) { v.FPS = 0 }, "FPS"},
		{func(v *Video) { v.FPS = 12.5 }, "FPS"},
		{func(v *Video) { v.MinimalTemperature = math.NaN() }, "minimalTemperature"},
		{func(v *Video) { v.MaximalTemperature = math.Inf(1) }, "maximalTemperature"},
		{func(v *Video) { v.MinimalTemperature = 50 }, "minimalTemperature"},
	}
	for i, line := range data {
		v := Default()
		line.mod(&v)
		var verr *ValidationError
		if err := v.Validate(); !errors.As(err, &verr) || verr.Field != line.field {
			t.Fatalf("#%d: got %v", i, err)
		}
	}
	// An equal range is valid; every pixel then saturates.
	v := Default()
	v.MinimalTemperature = 20
	v.MaximalTemperature = 20
	if err := v.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	v, err := Load(filepath.Join(dir, "missing.json"))
	if err != nil {
		t.Fatal(err)
	}
	if v != Default() {
		t.Fatalf("got %#v", v)
	}

	p := filepath.Join(dir, "video.json")
	if err = os.WriteFile(p, []byte(`{"videoSize": 16, "FPS": 25, "mediumColor": [1, 2, 3]}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if v, err = Load(p); err != nil {
		t.Fatal(err)
	}
	want := Default()
	want.VideoSize = 16
	want.FPS = 25
	want.MediumColor = [3]uint8{1, 2, 3}
	if v != want {
		t.Fatalf("got %#v", v)
	}
}

func TestLoad_errors(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "video.json")
	if err := os.WriteFile(p, []byte(`{"videoSize": `), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(p); err == nil {
		t.Fatal("expected json error")
	}
	if err := os.WriteFile(p, []byte(`{"FPS": 0.5}`), 0o600); err != nil {
		t.Fatal(err)
	}
	var verr *ValidationError
	if _, err := Load(p); !errors.As(err, &verr) || verr.Field != "FPS" {
		t.Fatalf("got %v", err)
	}
}

func TestWrite(t *testing.T) {
	p := filepath.Join(t.TempDir(), "sub", "video.json")
	v := Default()
	v.VideoSize = 32
	if err := Write(p, v); err != nil {
		t.Fatal(err)
	}
	fi, err := os.Stat(p)
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode().Perm() != 0o600 {
		t.Fatalf("got %v", fi.Mode())
	}
	got, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if got != v {
		t.Fatalf("got %#v", got)
	}
	// Writing the same content again doesn't touch the file.
	old := fi.ModTime().Add(-time.Hour)
	if err := os.Chtimes(p, old, old); err != nil {
		t.Fatal(err)
	}
	if err := Write(p, v); err != nil {
		t.Fatal(err)
	}
	if fi, err = os.Stat(p); err != nil {
		t.Fatal(err)
	}
	if !fi.ModTime().Equal(old) {
		t.Fatal("file was rewritten")
	}
	v.FPS = 0
	if err := Write(p, v); err == nil {
		t.Fatal("invalid settings were written")
	}
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "video.json")
	if err := Write(p, Default()); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan Video, 1000)
	done := make(chan error)
	go func() {
		done <- Watch(ctx, p, func(v Video) {
			select {
			case got <- v:
			default:
			}
		})
	}()

	first := Default()
	first.VideoSize = 128
	second := Default()
	second.VideoSize = 32
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	timeout := time.After(10 * time.Second)
	// waitFor rewrites content until fn sees want; the watcher may not be
	// registered yet. Only first and second are valid settings.
	waitFor := func(want Video, content string) {
		for {
			select {
			case v := <-got:
				if err := v.Validate(); err != nil {
					t.Fatalf("invalid settings delivered: %v", err)
				}
				if v != first && v != second {
					t.Fatalf("unexpected settings %#v", v)
				}
				if v == want {
					return
				}
			case <-tick.C:
				if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
					t.Fatal(err)
				}
			case <-timeout:
				t.Fatalf("no reload to %d seen", want.VideoSize)
			}
		}
	}
	// Other files in the directory are ignored.
	if err := os.WriteFile(filepath.Join(dir, "other.json"), []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}
	waitFor(first, `{"videoSize": 128}`)
	for _, bad := range []string{`{"videoSize": `, `{"videoSize": 100000}`, `{"FPS": -1}`} {
		if err := os.WriteFile(p, []byte(bad), 0o600); err != nil {
			t.Fatal(err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	waitFor(second, `{"videoSize": 32}`)
	cancel()
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}
