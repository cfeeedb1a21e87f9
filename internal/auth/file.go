// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/jeranaias/sermonchat/internal/util"
)

// MaxTokenFileSize bounds how much of a token file is read.
const MaxTokenFileSize = 16 * 1024

// ErrTokenFileTooLarge is returned for token files over MaxTokenFileSize.
var ErrTokenFileTooLarge = errors.New("auth: token file too large")

// =============================================================================
// FILE PROVIDER
// =============================================================================

// FileProvider serves a token stored in a file. The file is watched and
// re-read whenever it is written, created or replaced, so a token refreshed by
// another process is picked up without a restart. A missing file means no
// token.
type FileProvider struct {
	path   string
	logger *zap.Logger

	mu    sync.RWMutex
	token string
	err   error

	watcher *fsnotify.Watcher
	done    chan struct{}
	closed  sync.Once
}

// NewFileProvider loads path and starts watching it. The parent directory is
// watched rather than the file itself so that atomic replacements are seen.
func NewFileProvider(path string, logger *zap.Logger) (*FileProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	path = util.ExpandHome(path)
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("auth: resolve token path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("auth: create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("auth: watch %s: %w", filepath.Dir(abs), err)
	}

	fp := &FileProvider{
		path:    abs,
		logger:  logger,
		watcher: watcher,
		done:    make(chan struct{}),
	}
	fp.reload()

	go fp.processEvents()
	return fp, nil
}

// Path returns the watched file.
func (fp *FileProvider) Path() string {
	return fp.path
}

// Token implements TokenProvider.
func (fp *FileProvider) Token(context.Context) (string, bool, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()
	if fp.err != nil {
		return "", false, fp.err
	}
	return fp.token, fp.token != "", nil
}

// Close stops watching. It waits for the watch goroutine to exit.
func (fp *FileProvider) Close() error {
	var err error
	fp.closed.Do(func() {
		err = fp.watcher.Close()
		<-fp.done
	})
	return err
}

func (fp *FileProvider) processEvents() {
	defer close(fp.done)
	for {
		select {
		case event, ok := <-fp.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != fp.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				fp.reload()
			}

		case err, ok := <-fp.watcher.Errors:
			if !ok {
				return
			}
			fp.logger.Warn("Token file watcher error", zap.Error(err))
		}
	}
}

// reload re-reads the token file.
func (fp *FileProvider) reload() {
	token, err := readTokenFile(fp.path)

	fp.mu.Lock()
	changed := token != fp.token
	fp.token, fp.err = token, err
	fp.mu.Unlock()

	switch {
	case err != nil:
		fp.logger.Warn("Failed to read token file", zap.String("path", fp.path), zap.Error(err))
	case changed:
		fp.logger.Debug("Token file reloaded",
			zap.String("path", fp.path),
			zap.Bool("present", token != ""))
	}
}

// readTokenFile returns the first non-empty line of path. A missing file
// yields an empty token.
func readTokenFile(path string) (string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("auth: open token file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxTokenFileSize+1))
	if err != nil {
		return "", fmt.Errorf("auth: read token file: %w", err)
	}
	if len(data) > MaxTokenFileSize {
		return "", ErrTokenFileTooLarge
	}

	for _, line := range strings.Split(string(data), "\n") {
		if tok := strings.TrimSpace(line); tok != "" {
			return tok, nil
		}
	}
	return "", nil
}
