// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package video

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/image/riff"
)

var (
	aviForm      = riff.FourCC{'A', 'V', 'I', ' '}
	mainHeader   = riff.FourCC{'a', 'v', 'i', 'h'}
	videoChunkID = riff.FourCC{'0', '0', 'd', 'c'}
)

// Info describes an AVI file.
type Info struct {
	MicroSecPerFrame uint32
	TotalFrames      uint32
	Width            uint32
	Height           uint32
	Frames           [][]byte // Compressed frames ("00dc" chunks), in order.
}

// FPS returns the frame rate declared in the header.
func (i *Info) FPS() float64 {
	if i.MicroSecPerFrame == 0 {
		return 0
	}
	return float64(time.Second/time.Microsecond) / float64(i.MicroSecPerFrame)
}

// Probe reads the main header and the frames of the AVI file at path.
func Probe(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	form, r, err := riff.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("video: %s: %w", path, err)
	}
	if form != aviForm {
		return nil, fmt.Errorf("video: %s is not an AVI file", path)
	}
	info := &Info{}
	if err := info.walk(r); err != nil {
		return nil, fmt.Errorf("video: %s: %w", path, err)
	}
	return info, nil
}

// walk reads chunks recursively, descending into LIST chunks.
func (i *Info) walk(r *riff.Reader) error {
	for {
		id, n, data, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		switch id {
		case riff.LIST:
			_, list, err := riff.NewListReader(n, data)
			if err != nil {
				return err
			}
			if err := i.walk(list); err != nil {
				return err
			}
		case mainHeader:
			b, err := io.ReadAll(data)
			if err != nil {
				return err
			}
			if len(b) < 40 {
				return errors.New("avih is too short")
			}
			i.MicroSecPerFrame = binary.LittleEndian.Uint32(b[0:])
			i.TotalFrames = binary.LittleEndian.Uint32(b[16:])
			i.Width = binary.LittleEndian.Uint32(b[32:])
			i.Height = binary.LittleEndian.Uint32(b[36:])
		case videoChunkID:
			b, err := io.ReadAll(data)
			if err != nil {
				return err
			}
			i.Frames = append(i.Frames, b)
		}
	}
}
