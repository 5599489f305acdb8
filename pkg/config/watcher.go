// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce coalesces the burst of events editors produce on save
const DefaultDebounce = 100 * time.Millisecond

// Watcher reloads a config file when it changes and hands the result to a
// callback. Invalid files are logged and skipped.
type Watcher struct {
	path     string
	base     Config
	changed  map[string]bool
	onChange func(Config)
	log      zerolog.Logger
	delay    time.Duration

	mu       sync.Mutex
	debounce *time.Timer
}

// NewWatcher watches path. base and changed are passed to Load on every
// reload so command line flags keep their precedence.
func NewWatcher(path string, base Config, changed map[string]bool, onChange func(Config), log zerolog.Logger) *Watcher {
	return &Watcher{
		path:     path,
		base:     base,
		changed:  changed,
		onChange: onChange,
		log:      log,
		delay:    DefaultDebounce,
	}
}

// Run watches the directory of the file until ctx is done. Watching the
// directory catches editors that replace the file instead of writing it.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("config watcher: watch %s: %w", dir, err)
	}

	name := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.debounce != nil {
				w.debounce.Stop()
			}
			w.mu.Unlock()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.scheduleReload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("Config watcher error")
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(w.delay, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := Load(w.base, w.path, w.changed)
	if err != nil {
		w.log.Warn().Err(err).Str("path", w.path).Msg("Config reload failed")
		return
	}
	w.log.Info().Str("path", w.path).Msg("Config reloaded")
	w.onChange(cfg)
}
