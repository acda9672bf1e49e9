// Copyright (C) 2026 HackVet Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rule_engine

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hackvet/hackvet/pkg/logging"
)

// watchDebounce batches rapid editor writes so a file being saved in
// chunks is loaded once, not per write.
const watchDebounce = 300 * time.Millisecond

// RuleWatcher keeps an engine in sync with a directory of declarative
// rule files. Every create or write of a .yaml/.yml/.json file in the
// watched directory is loaded through the engine's normal plugin path,
// so hot reloads go through the same all-or-nothing validation and
// locking as an explicit load; a removed file unloads its rules.
type RuleWatcher struct {
	engine  *Engine
	dir     string
	watcher *fsnotify.Watcher
	log     *logging.Logger

	stopOnce sync.Once
	done     chan struct{}
}

// NewRuleWatcher starts watching dir for rule-file changes against
// engine. Call Start to begin processing events and Stop to release
// the underlying watcher.
func NewRuleWatcher(engine *Engine, dir string, log *logging.Logger) (*RuleWatcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create rules watcher: %w", err)
	}
	if err := fsWatcher.Add(dir); err != nil {
		_ = fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch rules directory %q: %w", dir, err)
	}
	if log == nil {
		log = logging.Default()
	}
	return &RuleWatcher{
		engine:  engine,
		dir:     dir,
		watcher: fsWatcher,
		log:     log,
		done:    make(chan struct{}),
	}, nil
}

// Start processes events until ctx is cancelled or Stop is called.
// It blocks; run it in a goroutine when the caller has other work.
func (w *RuleWatcher) Start(ctx context.Context) {
	pending := make(map[string]fsnotify.Op)
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		for path, op := range pending {
			w.apply(path, op)
		}
		pending = make(map[string]fsnotify.Op)
		timerC = nil
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isRuleFile(event.Name) {
				continue
			}
			pending[event.Name] |= event.Op
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(watchDebounce)
			}
			timerC = timer.C
		case <-timerC:
			flush()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("rules watcher error", "dir", w.dir, "error", err)
		}
	}
}

// Stop shuts the watcher down. Safe to call more than once.
func (w *RuleWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.watcher.Close()
	})
}

// apply translates one debounced file event into an engine mutation.
func (w *RuleWatcher) apply(path string, op fsnotify.Op) {
	switch {
	case op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename):
		name := pluginNameFromPath(path)
		if err := w.engine.UnloadPlugin(name); err != nil {
			w.log.Debug("rules watcher skipped unload", "file", path, "error", err)
			return
		}
		w.log.Info("rule file unloaded", "file", path)
	case op.Has(fsnotify.Create) || op.Has(fsnotify.Write):
		if err := w.engine.LoadPlugin(path); err != nil {
			w.log.Warn("rule file rejected", "file", path, "error", err)
			return
		}
		w.log.Info("rule file loaded", "file", path)
	}
}

// isRuleFile reports whether path looks like a declarative rule file.
func isRuleFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}
