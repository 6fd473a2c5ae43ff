// Licensed to the Apache Software Foundation (ASF) under one or more
// contributor license agreements.  See the NOTICE file distributed with
// this work for additional information regarding copyright ownership.
// The ASF licenses this file to You under the Apache License, Version 2.0
// (the "License"); you may not use this file except in compliance with
// the License.  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package zarr

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

// Watch reports changes to the keys under prefix. The returned channel
// receives a value, coalesced, after each write and is closed once ctx is
// done. It suits the Wake option of a dynamic iterator.
func (s *LocalStore) Watch(ctx context.Context, prefix string, logger *slog.Logger) (<-chan struct{}, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	dir := s.path(NewPath(prefix).Key())
	if err := os.MkdirAll(dir, dirPermissionBits); err != nil {
		return nil, errors.Wrap(err, "watch")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "watch")
	}
	if err := addTree(w, dir); err != nil {
		w.Close()
		return nil, errors.Wrapf(err, "watching %s", dir)
	}

	wake := make(chan struct{}, 1)
	go func() {
		defer close(wake)
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Create) {
					if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
						if err := addTree(w, ev.Name); err != nil {
							logger.Warn("zarr watch", "dir", ev.Name, "error", err)
						}
					}
				}
				if strings.HasPrefix(filepath.Base(ev.Name), ".put-") {
					continue
				}
				if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Rename) {
					select {
					case wake <- struct{}{}:
					default:
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("zarr watch", "dir", dir, "error", err)
			}
		}
	}()
	return wake, nil
}

// addTree watches dir and its subdirectories.
func addTree(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(p)
		}
		return nil
	})
}
