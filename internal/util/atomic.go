// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// AtomicWriteFile replaces path with data so that a reader (or a crash)
// sees either the previous file or the complete new one. Config files,
// transcripts and exports all go through here. Missing parent directories
// are created owner-only.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	return AtomicWriteFileWithDir(path, data, perm, 0o700)
}

// AtomicWriteFileWithDir is AtomicWriteFile with the mode for created parent
// directories.
func AtomicWriteFileWithDir(path string, data []byte, filePerm, dirPerm os.FileMode) error {
	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("atomic write %s: %w", path, err)
	}
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("atomic write %s: create directory: %w", path, err)
	}

	// The temp file lives next to the target so the rename cannot cross
	// filesystems.
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*")
	if err != nil {
		return fmt.Errorf("atomic write %s: %w", path, err)
	}
	if err := fillTemp(tmp, data, filePerm); err != nil {
		return errors.Join(fmt.Errorf("atomic write %s: %w", path, err), os.Remove(tmp.Name()))
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return errors.Join(fmt.Errorf("atomic write %s: %w", path, err), os.Remove(tmp.Name()))
	}
	return nil
}

// fillTemp writes, flushes and closes f. f is closed on every path; Windows
// refuses to rename an open file.
func fillTemp(f *os.File, data []byte, perm os.FileMode) error {
	err := f.Chmod(perm)
	if err == nil {
		_, err = f.Write(data)
	}
	if err == nil {
		err = f.Sync()
	}
	return errors.Join(err, f.Close())
}
