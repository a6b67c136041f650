// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package thermal

import (
	"errors"
	"fmt"
)

// ErrShrink is returned when the requested size is smaller than the frame.
var ErrShrink = errors.New("thermal: target size is smaller than the frame")

// Upsample grows src into a new size x size frame.
//
// Each axis is processed independently, rows first then columns. The original
// samples are kept verbatim and linearly interpolated samples are inserted
// between each pair of neighbors. When the target is larger than the source,
// one sample on each side is reserved for edge padding and filled by
// replicating the outermost interpolated value. An axis already at the target
// size is copied as is.
func Upsample(src *Frame, size int) (*Frame, error) {
	if src.Width == 0 || src.Height == 0 {
		return nil, errors.New("thermal: empty frame")
	}
	if size < src.Width || size < src.Height {
		return nil, fmt.Errorf("%w: %dx%d to %dx%d", ErrShrink, src.Width, src.Height, size, size)
	}
	wide := NewFrame(size, src.Height)
	for y := 0; y < src.Height; y++ {
		stretch(wide.Pix[y*size:(y+1)*size], src.Pix[y*src.Width:(y+1)*src.Width])
	}

	out := NewFrame(size, size)
	col := make([]float64, src.Height)
	dst := make([]float64, size)
	for x := 0; x < size; x++ {
		for y := range col {
			col[y] = wide.Pix[y*size+x]
		}
		stretch(dst, col)
		for y, v := range dst {
			out.Pix[y*size+x] = v
		}
	}
	out.UpdateStats()
	return out, nil
}

// stretch writes src widened to len(dst) into dst. len(dst) >= len(src).
func stretch(dst, src []float64) {
	n, s := len(src), len(dst)
	if s == n {
		copy(dst, src)
		return
	}
	pad := s - n
	if pad > 2 {
		pad = 2
	}
	// With a single spare sample only the leading edge is padded.
	lead := 1
	interior := dst[lead : s-(pad-lead)]
	interpolate(interior, src)
	dst[0] = interior[0]
	if pad == 2 {
		dst[s-1] = interior[len(interior)-1]
	}
}

// interpolate fills dst with src and len(dst)-len(src) samples inserted
// between neighbors. The remainder that doesn't divide evenly across the gaps
// is spread over them.
func interpolate(dst, src []float64) {
	n := len(src)
	if n == 1 {
		for i := range dst {
			dst[i] = src[0]
		}
		return
	}
	gaps := n - 1
	extra := len(dst) - n
	base, rem := extra/gaps, extra%gaps
	i := 0
	for g := 0; g < gaps; g++ {
		k := base
		if (g+1)*rem/gaps > g*rem/gaps {
			k++
		}
		a, b := src[g], src[g+1]
		dst[i] = a
		i++
		for j := 1; j <= k; j++ {
			dst[i] = a + (b-a)*float64(j)/float64(k+1)
			i++
		}
	}
	dst[i] = src[n-1]
}
