// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package recording reads and writes capture bundles downloaded from the
// probe.
//
// The store layout is:
//
//	<root>/normal/<id>/data.cbor     bundle, CBOR map of channels
//	<root>/normal/<id>/cam.mp4       onboard camera video, optional
//	<root>/encrypted/<id>/...        AES encrypted bundles, not readable
package recording

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

const (
	bundleName = "data.cbor"
	cameraName = "cam.mp4"
)

// Entry is one recording known to the store.
type Entry struct {
	ID        string
	Encrypted bool
}

// Info summarizes a stored bundle.
type Info struct {
	ID       string
	Frames   int
	Width    int
	Height   int
	Channels []ChannelInfo
	Camera   bool
}

// Store is an on-disk collection of bundles. It is safe for concurrent use as
// long as a given id is not written while being read.
type Store struct {
	Root string
}

// NewStore returns a Store rooted at root.
func NewStore(root string) *Store {
	return &Store{Root: root}
}

// Load returns the thermal recording of bundle id.
//
// All failures are returned as *StoreReadError.
func (s *Store) Load(id string) (*Recording, error) {
	raw, p, err := s.read(id)
	if err != nil {
		return nil, err
	}
	rec, err := decodeThermal(id, raw)
	if err != nil {
		return nil, &StoreReadError{ID: id, Path: p, Err: err}
	}
	return rec, nil
}

// Inspect returns a summary of bundle id.
func (s *Store) Inspect(id string) (*Info, error) {
	raw, p, err := s.read(id)
	if err != nil {
		return nil, err
	}
	channels, err := describe(raw)
	if err != nil {
		return nil, &StoreReadError{ID: id, Path: p, Err: err}
	}
	info := &Info{ID: id, Channels: channels}
	if rec, err := decodeThermal(id, raw); err == nil {
		info.Frames = rec.Len()
		info.Width, info.Height = rec.Bounds()
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(p), cameraName)); err == nil {
		info.Camera = true
	}
	return info, nil
}

// Save atomically writes bundle b as id, replacing any previous one.
func (s *Store) Save(id string, b *Bundle) error {
	if err := checkID(id); err != nil {
		return err
	}
	data, err := b.marshal()
	if err != nil {
		return err
	}
	dir := filepath.Join(s.Root, "normal", id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, bundleName+".*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err = f.Write(data); err == nil {
		err = f.Sync()
	}
	if err2 := f.Close(); err == nil {
		err = err2
	}
	if err == nil {
		err = os.Rename(tmp, filepath.Join(dir, bundleName))
	}
	if err != nil {
		os.Remove(tmp)
	}
	return err
}

// List returns the recordings in the store, sorted by id.
func (s *Store) List() ([]Entry, error) {
	var out []Entry
	for _, kind := range []string{"normal", "encrypted"} {
		entries, err := os.ReadDir(filepath.Join(s.Root, kind))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			if kind == "normal" {
				if _, err := os.Stat(filepath.Join(s.Root, kind, e.Name(), bundleName)); err != nil {
					continue
				}
			}
			out = append(out, Entry{ID: e.Name(), Encrypted: kind == "encrypted"})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ID != out[j].ID {
			return out[i].ID < out[j].ID
		}
		return !out[i].Encrypted
	})
	return out, nil
}

// CameraPath returns the path of the onboard camera video of id. The file
// may not exist.
func (s *Store) CameraPath(id string) (string, error) {
	if err := checkID(id); err != nil {
		return "", &StoreReadError{ID: id, Err: err}
	}
	return filepath.Join(s.Root, "normal", id, cameraName), nil
}

// Private details.

func (s *Store) read(id string) (map[string]cbor.RawMessage, string, error) {
	if err := checkID(id); err != nil {
		return nil, "", &StoreReadError{ID: id, Err: err}
	}
	p := filepath.Join(s.Root, "normal", id, bundleName)
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = ErrNotFound
			if fi, err2 := os.Stat(filepath.Join(s.Root, "encrypted", id)); err2 == nil && fi.IsDir() {
				err = ErrEncrypted
			}
		}
		return nil, p, &StoreReadError{ID: id, Path: p, Err: err}
	}
	raw, err := decodeChannels(data)
	if err != nil {
		return nil, p, &StoreReadError{ID: id, Path: p, Err: err}
	}
	return raw, p, nil
}

func checkID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w %q", ErrBadID, id)
	}
	return nil
}
