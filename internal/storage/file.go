// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/des-work/Arcano-Desk-sub001/internal/util"
)

// =============================================================================
// FILE BACKEND
// =============================================================================

// FileBackend keeps every key in one JSON document on disk. The whole
// document is rewritten atomically on each write, so a batch is atomic.
type FileBackend struct {
	mu   sync.Mutex
	path string
	data map[string]string
}

// OpenFile loads the document at path, or starts empty if it does not exist.
func OpenFile(path string) (*FileBackend, error) {
	b := &FileBackend{path: path, data: make(map[string]string)}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return b, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(raw) == 0 {
		return b, nil
	}
	if err := json.Unmarshal(raw, &b.data); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return b, nil
}

func (b *FileBackend) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.data[key]
	return v, ok, nil
}

func (b *FileBackend) Set(ctx context.Context, key, value string) error {
	return b.Batch(ctx, map[string]string{key: value})
}

func (b *FileBackend) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.data[key]; !ok {
		return nil
	}
	next := b.copyData()
	delete(next, key)
	return b.flush(next)
}

func (b *FileBackend) Batch(ctx context.Context, values map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	next := b.copyData()
	for k, v := range values {
		next[k] = v
	}
	return b.flush(next)
}

func (b *FileBackend) Close() error { return nil }

func (b *FileBackend) copyData() map[string]string {
	next := make(map[string]string, len(b.data)+1)
	for k, v := range b.data {
		next[k] = v
	}
	return next
}

// flush writes next to disk and only then makes it the live data.
func (b *FileBackend) flush(next map[string]string) error {
	err := util.AtomicWrite(b.path, 0o600, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(next)
	})
	if err != nil {
		return err
	}
	b.data = next
	return nil
}
