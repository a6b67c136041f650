// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package config loads the video rendering settings.
//
// The file format is the one written by the ground station settings page:
//
//	{
//	  "FPS": 10,
//	  "maximalTemperature": 40,
//	  "mediumColor": [0, 255, 0],
//	  "minimalTemperature": 0,
//	  "videoSize": 64
//	}
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"io/fs"
	"math"
	"os"
	"os/user"
	"path/filepath"

	"github.com/maruel/thermvid/palette"
)

// MaxVideoSize is the largest accepted videoSize.
const MaxVideoSize = 4096

// Video is the thermal video settings. It is passed by value to each render
// so a reload never affects a render in progress.
type Video struct {
	VideoSize          int      `json:"videoSize"`
	FPS                float64  `json:"FPS"`
	MinimalTemperature float64  `json:"minimalTemperature"`
	MaximalTemperature float64  `json:"maximalTemperature"`
	MediumColor        [3]uint8 `json:"mediumColor"`
}

// Default returns the settings used when no file exists.
func Default() Video {
	return Video{
		VideoSize:          64,
		FPS:                10,
		MinimalTemperature: 0,
		MaximalTemperature: 40,
		MediumColor:        [3]uint8{0, 255, 0},
	}
}

// ValidationError describes an invalid setting.
type ValidationError struct {
	Field  string
	Reason string
}

func (v *ValidationError) Error() string {
	return fmt.Sprintf("config: %s %s", v.Field, v.Reason)
}

// Validate returns a *ValidationError for the first invalid field.
func (v *Video) Validate() error {
	if v.VideoSize <= 0 || v.VideoSize > MaxVideoSize {
		return &ValidationError{"videoSize", fmt.Sprintf("must be within [1, %d], got %d", MaxVideoSize, v.VideoSize)}
	}
	if v.FPS < 1 || v.FPS != math.Trunc(v.FPS) || v.FPS > 1000 {
		return &ValidationError{"FPS", fmt.Sprintf("must be a whole number within [1, 1000], got %g", v.FPS)}
	}
	for _, t := range []struct {
		name string
		v    float64
	}{{"minimalTemperature", v.MinimalTemperature}, {"maximalTemperature", v.MaximalTemperature}} {
		if math.IsNaN(t.v) || math.IsInf(t.v, 0) {
			return &ValidationError{t.name, "must be finite"}
		}
	}
	if v.MinimalTemperature > v.MaximalTemperature {
		return &ValidationError{"minimalTemperature", fmt.Sprintf("%g is above maximalTemperature %g", v.MinimalTemperature, v.MaximalTemperature)}
	}
	return nil
}

// Range returns the color gradient domain.
func (v *Video) Range() (palette.Range, error) {
	c := color.RGBA{R: v.MediumColor[0], G: v.MediumColor[1], B: v.MediumColor[2], A: 255}
	return palette.NewRange(v.MinimalTemperature, v.MaximalTemperature, c)
}

// DefaultPath returns ~/.config/thermvid/video.json.
func DefaultPath() string {
	home := os.Getenv("HOME")
	if usr, err := user.Current(); err == nil {
		home = usr.HomeDir
	}
	return filepath.Join(home, ".config", "thermvid", "video.json")
}

// Load reads the settings at path. Missing fields keep their default value
// and a missing file returns Default().
func Load(path string) (Video, error) {
	v := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return v, nil
	}
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("config: %s is invalid json: %w", path, err)
	}
	if err := v.Validate(); err != nil {
		return v, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// Write writes v normalized at path, creating the directory if needed. The
// file is left untouched when its content is already normalized.
func Write(path string, v Video) error {
	if err := v.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(&v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if src, err := os.ReadFile(path); err == nil && bytes.Equal(src, data) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
