// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package recording

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/fxamacker/cbor/v2"
	"github.com/maruel/thermvid/thermal"
)

// Channel names in a bundle.
const (
	ThermalChannel  = "therm"
	PositionChannel = "gps"
)

// Position is one GPS fix.
type Position struct {
	Lat float64 `cbor:"lat"`
	Lon float64 `cbor:"lon"`
	Alt float64 `cbor:"alt"`
}

// Bundle is a full capture as downloaded from the probe.
//
// Only Thermal is used to render videos. The other channels are carried so a
// bundle written by Store.Save round trips.
type Bundle struct {
	Thermal  [][][]float64        // frames, rows, columns
	Position []Position           //
	Channels map[string][]float64 // Other scalar sensors, e.g. "temp" or "pressure".
}

// ChannelInfo describes one channel of a stored bundle.
type ChannelInfo struct {
	Name    string
	Samples int
}

// Recording is the thermal channel of a bundle, in capture order.
type Recording struct {
	ID     string
	Frames []*thermal.Frame
}

// Len returns the number of frames.
func (r *Recording) Len() int {
	return len(r.Frames)
}

// Bounds returns the frames dimensions, 0x0 when empty.
func (r *Recording) Bounds() (width, height int) {
	if len(r.Frames) == 0 {
		return 0, 0
	}
	return r.Frames[0].Width, r.Frames[0].Height
}

func (b *Bundle) marshal() ([]byte, error) {
	m := make(map[string]interface{}, len(b.Channels)+2)
	for k, v := range b.Channels {
		if k == ThermalChannel || k == PositionChannel {
			return nil, fmt.Errorf("channel name %q is reserved", k)
		}
		m[k] = v
	}
	m[ThermalChannel] = b.Thermal
	if len(b.Position) != 0 {
		m[PositionChannel] = b.Position
	}
	return cbor.Marshal(m)
}

// decMode lifts the default array and map caps; a recording and its sensor
// channels have no length limit.
var decMode = func() cbor.DecMode {
	dm, err := cbor.DecOptions{MaxArrayElements: math.MaxInt32, MaxMapPairs: math.MaxInt32}.DecMode()
	if err != nil {
		panic(err)
	}
	return dm
}()

func decodeChannels(data []byte) (map[string]cbor.RawMessage, error) {
	var raw map[string]cbor.RawMessage
	if err := decMode.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformed, err)
	}
	return raw, nil
}

// decodeThermal extracts and validates the thermal channel.
func decodeThermal(id string, raw map[string]cbor.RawMessage) (*Recording, error) {
	therm, ok := raw[ThermalChannel]
	if !ok {
		return nil, ErrNoThermal
	}
	var frames [][][]float64
	if err := decMode.Unmarshal(therm, &frames); err != nil {
		return nil, fmt.Errorf("%w: thermal channel: %s", ErrMalformed, err)
	}
	out := &Recording{ID: id, Frames: make([]*thermal.Frame, len(frames))}
	for i, rows := range frames {
		f, err := thermal.FromRows(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: frame %d: %s", ErrMalformed, i, err)
		}
		if i != 0 && (f.Width != out.Frames[0].Width || f.Height != out.Frames[0].Height) {
			return nil, fmt.Errorf("%w: frame %d is %dx%d, expected %dx%d", ErrMalformed, i, f.Width, f.Height, out.Frames[0].Width, out.Frames[0].Height)
		}
		out.Frames[i] = f
	}
	return out, nil
}

func describe(raw map[string]cbor.RawMessage) ([]ChannelInfo, error) {
	out := make([]ChannelInfo, 0, len(raw))
	for name, v := range raw {
		var items []cbor.RawMessage
		if err := decMode.Unmarshal(v, &items); err != nil {
			return nil, fmt.Errorf("%w: channel %q is not a series", ErrMalformed, name)
		}
		out = append(out, ChannelInfo{Name: name, Samples: len(items)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Errors wrapped by StoreReadError.
var (
	ErrNotFound  = errors.New("no such recording")
	ErrEncrypted = errors.New("recording is encrypted")
	ErrNoThermal = errors.New("bundle has no thermal channel")
	ErrMalformed = errors.New("malformed bundle")
	ErrBadID     = errors.New("invalid recording id")
)

// StoreReadError is returned when a recording cannot be read. It is not
// retryable.
type StoreReadError struct {
	ID   string
	Path string
	Err  error
}

func (s *StoreReadError) Error() string {
	return fmt.Sprintf("recording %q: %s", s.ID, s.Err)
}

func (s *StoreReadError) Unwrap() error {
	return s.Err
}
