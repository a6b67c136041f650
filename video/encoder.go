// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package video writes colorized frames into a playable AVI file.
//
// Frames are JPEG compressed and stored in an MJPEG AVI container, which any
// player can read without extra codecs.
package video

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io/fs"
	"math"
	"os"

	"github.com/icza/mjpeg"
)

// DefaultQuality is the JPEG quality used when Encoder.Quality is 0.
const DefaultQuality = 90

var (
	// ErrClosed is returned when appending to a closed Encoder.
	ErrClosed = errors.New("video: encoder is closed")
	// ErrNotOpen is returned when appending before Open.
	ErrNotOpen = errors.New("video: encoder is not open")
)

// EncoderOpenError is returned when the container cannot be created.
type EncoderOpenError struct {
	Path string
	Err  error
}

func (e *EncoderOpenError) Error() string {
	return fmt.Sprintf("video: failed to create %s: %s", e.Path, e.Err)
}

func (e *EncoderOpenError) Unwrap() error {
	return e.Err
}

// FrameSizeMismatchError is returned when a frame doesn't have the size
// declared to Open. It denotes a bug in the caller.
type FrameSizeMismatchError struct {
	Want image.Point
	Got  image.Point
}

func (f *FrameSizeMismatchError) Error() string {
	return fmt.Sprintf("video: frame is %dx%d, expected %dx%d", f.Got.X, f.Got.Y, f.Want.X, f.Want.Y)
}

type state int

const (
	uninitialized state = iota
	opened
	closed
)

// Encoder appends frames to a video file, in call order.
//
// The zero value is ready for Open. An Encoder is not safe for concurrent
// use.
type Encoder struct {
	Quality int // JPEG quality, 1-100. 0 means DefaultQuality.

	state  state
	path   string
	size   image.Point
	fps    int32
	avi    mjpeg.AviWriter
	buf    bytes.Buffer
	frames int
}

// Open creates the file at path. fps must be a positive whole number since
// the container stores an integral frame rate.
func (e *Encoder) Open(path string, fps float64, size image.Point) error {
	if e.state != uninitialized {
		return &EncoderOpenError{Path: path, Err: errors.New("encoder was already opened")}
	}
	if size.X <= 0 || size.Y <= 0 {
		return &EncoderOpenError{Path: path, Err: fmt.Errorf("invalid frame size %dx%d", size.X, size.Y)}
	}
	if fps < 1 || fps != math.Trunc(fps) || fps > math.MaxInt32 {
		return &EncoderOpenError{Path: path, Err: fmt.Errorf("invalid frame rate %g", fps)}
	}
	avi, err := mjpeg.New(path, int32(size.X), int32(size.Y), int32(fps))
	if err != nil {
		return &EncoderOpenError{Path: path, Err: err}
	}
	e.state = opened
	e.path = path
	e.size = size
	e.fps = int32(fps)
	e.avi = avi
	return nil
}

// Append encodes img as the next frame.
//
// A frame of the wrong size is rejected with *FrameSizeMismatchError and
// leaves the Encoder untouched.
func (e *Encoder) Append(img image.Image) error {
	switch e.state {
	case uninitialized:
		return ErrNotOpen
	case closed:
		return ErrClosed
	}
	if got := img.Bounds().Size(); got != e.size {
		return &FrameSizeMismatchError{Want: e.size, Got: got}
	}
	q := e.Quality
	if q == 0 {
		q = DefaultQuality
	}
	e.buf.Reset()
	if err := jpeg.Encode(&e.buf, img, &jpeg.Options{Quality: q}); err != nil {
		return fmt.Errorf("video: frame %d: %w", e.frames, err)
	}
	if err := e.avi.AddFrame(e.buf.Bytes()); err != nil {
		return fmt.Errorf("video: frame %d: %w", e.frames, err)
	}
	e.frames++
	return nil
}

// Frames returns the number of frames appended so far.
func (e *Encoder) Frames() int {
	return e.frames
}

// Path returns the file being written.
func (e *Encoder) Path() string {
	return e.path
}

// Close finalizes the file. Calling it more than once is a no-op.
func (e *Encoder) Close() error {
	if e.state != opened {
		e.state = closed
		return nil
	}
	e.state = closed
	err := e.avi.Close()
	e.avi = nil
	return err
}

// Abort closes the Encoder and deletes the file so no partial video is left
// behind.
func (e *Encoder) Abort() error {
	wasOpen := e.state == opened
	err := e.Close()
	if wasOpen {
		if err2 := os.Remove(e.path); err2 != nil && !errors.Is(err2, fs.ErrNotExist) && err == nil {
			err = err2
		}
	}
	return err
}
