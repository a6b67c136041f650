// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package thermaltest implements a fake thermal sensor to generate
// recordings without a probe.
package thermaltest

import (
	"math"
	"math/rand"

	"github.com/maruel/thermvid/recording"
)

// DefaultWidth is the resolution of the probe's sensor.
const DefaultWidth = 8

// Sensor is a fake thermal sensor.
//
// It renders a few hot and cold spots drifting over a background that cools
// down at each frame, like a probe descending from the ground.
type Sensor struct {
	Width      int
	Height     int
	Background float64 // °C
	Cooling    float64 // °C lost per frame

	noise *noise
}

// New returns a deterministic Sensor for the seed.
func New(width, height int, seed int64) *Sensor {
	return &Sensor{
		Width:      width,
		Height:     height,
		Background: 25,
		Cooling:    0.5,
		noise:      makeNoise(width, height, seed),
	}
}

// Next returns the next frame, one slice per row.
func (s *Sensor) Next() [][]float64 {
	s.noise.update()
	out := s.noise.render(s.Width, s.Height, s.Background)
	s.Background -= s.Cooling
	return out
}

// Descent returns a bundle of frames as recorded during a descent, with
// synthetic position and air temperature channels.
func Descent(frames, width, height int, seed int64) *recording.Bundle {
	s := New(width, height, seed)
	b := &recording.Bundle{
		Thermal:  make([][][]float64, frames),
		Position: make([]recording.Position, frames),
		Channels: map[string][]float64{"temp": make([]float64, frames)},
	}
	alt := 1000.
	for i := range b.Thermal {
		b.Thermal[i] = s.Next()
		b.Position[i] = recording.Position{Lat: 48.8566 + float64(i)*1e-5, Lon: 2.3522, Alt: alt}
		b.Channels["temp"][i] = s.Background
		alt -= 10
	}
	return b
}

// Uniform returns one frame per value, every sample of frame i being
// values[i].
func Uniform(width, height int, values ...float64) [][][]float64 {
	out := make([][][]float64, len(values))
	for i, v := range values {
		out[i] = make([][]float64, height)
		for y := range out[i] {
			out[i][y] = make([]float64, width)
			for x := range out[i][y] {
				out[i][y][x] = v
			}
		}
	}
	return out
}

//

type vector struct {
	intensity float64
	x         float64
	y         float64
}

type noise struct {
	rand    *rand.Rand
	vectors []vector
}

func makeNoise(width, height int, seed int64) *noise {
	n := &noise{rand: rand.New(rand.NewSource(seed))}
	n.vectors = make([]vector, 4)
	for i := range n.vectors {
		n.vectors[i].intensity = n.rand.NormFloat64() * 10
		n.vectors[i].x = n.rand.Float64() * float64(width)
		n.vectors[i].y = n.rand.Float64() * float64(height)
	}
	return n
}

func (n *noise) update() {
	for i := range n.vectors {
		n.vectors[i].intensity += n.rand.NormFloat64() * 0.1
		n.vectors[i].x += n.rand.NormFloat64() * 0.1
		n.vectors[i].y += n.rand.NormFloat64() * 0.1
	}
}

func (n *noise) render(width, height int, background float64) [][]float64 {
	const dynamicRange = 15.
	out := make([][]float64, height)
	for y := range out {
		out[y] = make([]float64, width)
		fy := float64(y)
		for x := range out[y] {
			fx := float64(x)
			value := 0.
			for _, vect := range n.vectors {
				distance := (vect.x-fx)*(vect.x-fx) + (vect.y-fy)*(vect.y-fy) + 1
				value += vect.intensity / distance
			}
			value = math.Max(-dynamicRange, math.Min(dynamicRange, value))
			// Keep two decimals like the probe firmware.
			out[y][x] = math.Round((background+value)*100) / 100
		}
	}
	return out
}
