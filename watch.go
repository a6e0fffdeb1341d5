/* Copyright 2018-2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package botscript

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long Watch waits for a burst of file events
// to settle before reloading.
var DefaultDebounce = 500 * time.Millisecond

// localFiles returns the absolute filenames of the Conf's scripts
// that are local files.
func (s *System) localFiles() []string {
	var acc []string
	for _, loc := range s.Conf.Scripts {
		filename := loc
		if i := strings.Index(loc, "://"); 0 <= i {
			if loc[:i] != "file" {
				continue
			}
			filename = loc[i+3:]
		}
		if !filepath.IsAbs(filename) {
			filename = filepath.Join(s.Conf.Includes.Dir, filename)
		}
		abs, err := filepath.Abs(filename)
		if err != nil {
			continue
		}
		acc = append(acc, abs)
	}
	return acc
}

// Watch reloads the bot when a local script changes.  Returns when
// the context is done.
//
// Directories are watched rather than files so that editors that
// replace files on save are noticed.
func (s *System) Watch(ctx context.Context, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	files := make(map[string]bool)
	dirs := make(map[string]bool)
	for _, filename := range s.localFiles() {
		files[filename] = true
		dirs[filepath.Dir(filename)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return err
		}
		s.Logger.Info("watching", zap.String("dir", dir))
	}

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || !files[abs] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			s.Logger.Debug("script changed",
				zap.String("file", abs),
				zap.String("op", event.Op.String()))
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.Logger.Warn("watcher error", zap.Error(err))

		case <-timer.C:
			// Reload logs its own failure, and the old bot
			// stays.
			s.Reload(ctx)
		}
	}
}
