// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package thermal holds thermal frames as recorded by a low resolution
// temperature sensor and the operations to grow them to a video resolution.
package thermal

import (
	"errors"
	"fmt"
)

// Frame is a grid of temperature readings in °C, stored row-major.
//
// A Frame read from a recording is never modified; every operation in this
// package returns a new Frame.
type Frame struct {
	Pix    []float64
	Width  int
	Height int
	Min    float64
	Max    float64
}

// NewFrame returns a zeroed frame of the given dimensions.
func NewFrame(width, height int) *Frame {
	return &Frame{Pix: make([]float64, width*height), Width: width, Height: height}
}

// FromRows converts a frame as persisted, one slice per row, into a Frame.
//
// All rows must have the same length.
func FromRows(rows [][]float64) (*Frame, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, errors.New("thermal: empty frame")
	}
	w := len(rows[0])
	f := NewFrame(w, len(rows))
	for y, row := range rows {
		if len(row) != w {
			return nil, fmt.Errorf("thermal: row %d has %d samples, expected %d", y, len(row), w)
		}
		copy(f.Pix[y*w:], row)
	}
	f.UpdateStats()
	return f, nil
}

// At returns the temperature at (x, y).
func (f *Frame) At(x, y int) float64 {
	return f.Pix[y*f.Width+x]
}

// Rows returns a copy of the frame as one slice per row.
func (f *Frame) Rows() [][]float64 {
	out := make([][]float64, f.Height)
	for y := range out {
		out[y] = append([]float64(nil), f.Pix[y*f.Width:(y+1)*f.Width]...)
	}
	return out
}

// UpdateStats refreshes Min and Max.
func (f *Frame) UpdateStats() {
	if len(f.Pix) == 0 {
		f.Min, f.Max = 0, 0
		return
	}
	f.Min, f.Max = f.Pix[0], f.Pix[0]
	for _, v := range f.Pix[1:] {
		if v > f.Max {
			f.Max = v
		}
		if v < f.Min {
			f.Min = v
		}
	}
}

// Equal returns true if both frames have the same dimensions and samples.
func (f *Frame) Equal(r *Frame) bool {
	if f.Width != r.Width || f.Height != r.Height {
		return false
	}
	for i := range f.Pix {
		if f.Pix[i] != r.Pix[i] {
			return false
		}
	}
	return true
}
