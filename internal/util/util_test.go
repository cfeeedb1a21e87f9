// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// =============================================================================
// ATOMIC WRITE TESTS
// =============================================================================

func TestAtomicWriteFile_Basic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.txt")
	data := []byte("hello, world!")

	if err := AtomicWriteFile(path, data, 0o644); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(content) != string(data) {
		t.Errorf("content = %q, want %q", content, data)
	}
}

func TestAtomicWriteFile_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "token")

	if err := AtomicWriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("file not created: %v", err)
	}
}

func TestAtomicWriteFile_OverwritesAndLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	for _, body := range []string{"first", "second"} {
		if err := AtomicWriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatalf("AtomicWriteFile failed: %v", err)
		}
	}

	content, _ := os.ReadFile(path)
	if string(content) != "second" {
		t.Errorf("content = %q, want second", content)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the target file, found %d entries", len(entries))
	}
}

func TestAtomicWriteFileWithDir_Permissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}
	dir := filepath.Join(t.TempDir(), "private")
	path := filepath.Join(dir, "f")

	if err := AtomicWriteFileWithDir(path, []byte("x"), 0o600, 0o700); err != nil {
		t.Fatalf("AtomicWriteFileWithDir failed: %v", err)
	}

	fi, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode().Perm() != 0o600 {
		t.Errorf("file mode = %v, want 0600", fi.Mode().Perm())
	}
	di, err := os.Stat(dir)
	if err != nil {
		t.Fatal(err)
	}
	if di.Mode().Perm() != 0o700 {
		t.Errorf("dir mode = %v, want 0700", di.Mode().Perm())
	}
}

// =============================================================================
// STRING TESTS
// =============================================================================

func TestTruncateRunes(t *testing.T) {
	testCases := []struct {
		input string
		max   int
		want  string
	}{
		{"hello", 10, "hello"},
		{"hello world", 8, "hello..."},
		{"日本語のテキスト", 5, "日本..."},
		{"hello", 3, "hel"},
		{"hello", 0, ""},
	}
	for _, tc := range testCases {
		if got := TruncateRunes(tc.input, tc.max); got != tc.want {
			t.Errorf("TruncateRunes(%q, %d) = %q, want %q", tc.input, tc.max, got, tc.want)
		}
	}
}

func TestTruncateWidth(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{"ascii short", "hello", 10, "hello"},
		{"ascii exact", "hello", 5, "hello"},
		{"ascii truncate", "hello world", 8, "hello..."},
		{"cjk truncate", "日本語", 5, "日..."},
		{"zero width", "hello", 0, ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := TruncateWidth(tc.input, tc.max)
			if got != tc.want {
				t.Errorf("TruncateWidth(%q, %d) = %q, want %q", tc.input, tc.max, got, tc.want)
			}
			if StringWidth(got) > tc.max {
				t.Errorf("result %q is wider than %d", got, tc.max)
			}
		})
	}
}

func TestPadRight(t *testing.T) {
	if got := PadRight("ab", 4); got != "ab  " {
		t.Errorf("PadRight = %q", got)
	}
	if got := PadRight("日本", 6); StringWidth(got) != 6 {
		t.Errorf("PadRight width = %d, want 6", StringWidth(got))
	}
}

func TestSingleLine(t *testing.T) {
	if got := SingleLine("a\n\n b\t c "); got != "a b c" {
		t.Errorf("SingleLine = %q", got)
	}
}

// =============================================================================
// PATH TESTS
// =============================================================================

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	if got := ExpandHome("~/.sermonchat/config.toml"); got != filepath.Join(home, ".sermonchat", "config.toml") {
		t.Errorf("ExpandHome = %q", got)
	}
	if got := ExpandHome("~"); got != home {
		t.Errorf("ExpandHome(~) = %q", got)
	}
	if got := ExpandHome("/etc/x"); got != "/etc/x" {
		t.Errorf("absolute path changed: %q", got)
	}
	if got := ExpandHome("~other/x"); got != "~other/x" {
		t.Errorf("~user form should be left alone: %q", got)
	}
}
