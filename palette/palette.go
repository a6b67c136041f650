// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package palette maps temperatures to colors.
//
// The gradient pivots around the middle of the configured range: colder
// temperatures fade from green to blue, warmer ones from green to red and the
// exact middle is painted with a configurable neutral color.
package palette

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/maruel/thermvid/thermal"
)

// Range is the temperature domain of the gradient, in °C.
type Range struct {
	Min     float64
	Max     float64
	Neutral color.RGBA
}

// NewRange returns a validated Range.
func NewRange(min, max float64, neutral color.RGBA) (Range, error) {
	if math.IsNaN(min) || math.IsNaN(max) || math.IsInf(min, 0) || math.IsInf(max, 0) {
		return Range{}, fmt.Errorf("palette: invalid range %g..%g", min, max)
	}
	if min > max {
		return Range{}, fmt.Errorf("palette: minimum %g is above maximum %g", min, max)
	}
	return Range{Min: min, Max: max, Neutral: neutral}, nil
}

// Mid returns the pivot temperature.
func (r Range) Mid() float64 {
	return (r.Min + r.Max) / 2
}

// Map returns the color for temperature t.
//
// The intensity is the distance from the pivot normalized by half the range,
// so Min is pure blue and Max is pure red. Temperatures outside the range
// saturate. NaN samples, which a sensor reports on dropouts, are neutral.
func (r Range) Map(t float64) color.RGBA {
	m := r.Mid()
	if t == m || math.IsNaN(t) {
		return r.Neutral
	}
	d := 1.
	if half := (r.Max - r.Min) / 2; half > 0 {
		d = math.Min(math.Abs(t-m)/half, 1)
	}
	hot := channel(255 * d)
	cold := channel(255 * (1 - d))
	if t < m {
		return color.RGBA{R: 0, G: cold, B: hot, A: 255}
	}
	return color.RGBA{R: hot, G: cold, B: 0, A: 255}
}

// Colorize paints every sample of f. It is safe to call concurrently.
func (r Range) Colorize(f *thermal.Frame) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		off := y * img.Stride
		for x := 0; x < f.Width; x++ {
			c := r.Map(f.Pix[y*f.Width+x])
			img.Pix[off+0] = c.R
			img.Pix[off+1] = c.G
			img.Pix[off+2] = c.B
			img.Pix[off+3] = c.A
			off += 4
		}
	}
	return img
}

func channel(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(math.Round(v))
}
