// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package config

import (
	"context"
	"log"
	"path/filepath"

	fsnotify "gopkg.in/fsnotify.v1"
)

// Watch calls fn with the new settings each time the file at path changes,
// until ctx is canceled.
//
// The parent directory is watched so editors replacing the file are handled.
// Invalid content is logged and skipped; fn only sees valid settings.
func Watch(ctx context.Context, path string, fn func(Video)) error {
	path = filepath.Clean(path)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err = watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case err = <-watcher.Errors:
			return err
		case e := <-watcher.Events:
			if filepath.Clean(e.Name) != path || e.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			v, err := Load(path)
			if err != nil {
				log.Printf("ignoring settings change: %s", err)
				continue
			}
			log.Printf("settings reloaded from %s", path)
			fn(v)
		}
	}
}
