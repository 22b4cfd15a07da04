// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package hooks

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/des-work/Arcano-Desk-sub001/internal/model"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long a file must stay unchanged before it is
// imported. Copies into the inbox fire several write events.
const DefaultDebounce = 500 * time.Millisecond

// ImportResult reports one inbox import.
type ImportResult struct {
	Path string
	File model.FileRecord
	Err  error
}

// WatchInbox imports every document created in dir into courseID until ctx
// is cancelled. Results are sent on the returned channel, which is closed
// when watching stops. Files already in dir are left alone.
func (h *Hooks) WatchInbox(ctx context.Context, dir, courseID string, debounce time.Duration) (<-chan ImportResult, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}

	iw := &inboxWatcher{
		hooks:    h,
		watcher:  w,
		courseID: courseID,
		debounce: debounce,
		pending:  make(map[string]time.Time),
		results:  make(chan ImportResult, 16),
	}
	go iw.run(ctx)

	h.logger.Info("INBOX_WATCHING", zap.String("dir", dir), zap.String("course_id", courseID))
	return iw.results, nil
}

type inboxWatcher struct {
	hooks    *Hooks
	watcher  *fsnotify.Watcher
	courseID string
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]time.Time // path -> last change

	results chan ImportResult
}

func (iw *inboxWatcher) run(ctx context.Context) {
	defer close(iw.results)
	defer iw.watcher.Close()

	ticker := time.NewTicker(iw.debounce / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-iw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				iw.touch(event.Name)
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				iw.mu.Lock()
				delete(iw.pending, event.Name)
				iw.mu.Unlock()
			}

		case err, ok := <-iw.watcher.Errors:
			if !ok {
				return
			}
			iw.hooks.logger.Warn("INBOX_WATCH_ERROR", zap.Error(err))

		case now := <-ticker.C:
			for _, path := range iw.due(now) {
				res := iw.importFile(ctx, path)
				select {
				case iw.results <- res:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

func (iw *inboxWatcher) touch(path string) {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~$") {
		return
	}
	settings := iw.hooks.store.State().Settings
	if !settings.AllowsExtension(filepath.Ext(path)) {
		return
	}
	iw.mu.Lock()
	iw.pending[path] = time.Now()
	iw.mu.Unlock()
}

// due removes and returns the paths that have been quiet for the debounce
// interval.
func (iw *inboxWatcher) due(now time.Time) []string {
	iw.mu.Lock()
	defer iw.mu.Unlock()
	var ready []string
	for path, changed := range iw.pending {
		if now.Sub(changed) >= iw.debounce {
			ready = append(ready, path)
			delete(iw.pending, path)
		}
	}
	return ready
}

func (iw *inboxWatcher) importFile(ctx context.Context, path string) ImportResult {
	f, err := os.Open(path)
	if err != nil {
		return ImportResult{Path: path, Err: err}
	}
	defer f.Close()

	rec, err := iw.hooks.ImportDocument(ctx, path, f, iw.courseID)
	if err != nil {
		iw.hooks.logger.Warn("INBOX_IMPORT_FAILED", zap.String("path", path), zap.Error(err))
	}
	return ImportResult{Path: path, File: rec, Err: err}
}
