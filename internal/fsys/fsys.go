// Package fsys is the sole I/O boundary of the translation pipeline
// (spec.md §4.3). Every other component receives paths and bytes;
// only this package touches the operating system's filesystem.
//
// All path-manipulation helpers (Join, Base, Dir, ToPosix) are pure
// string operations and never touch disk, so the Parser, Evaluator, IR
// Builder, and Emitter can call them freely while remaining pure above
// the filesystem boundary (spec.md P2).
package fsys

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Boundary is the filesystem adapter. A real Boundary talks to the OS;
// tests substitute a MemBoundary (see mem.go) to keep the rest of the
// pipeline's tests free of real disk I/O.
type Boundary interface {
	// Exist reports whether path exists.
	Exist(path string) bool

	// ReadFile reads path and decodes it as UTF-8. Returns an error
	// wrapping the OS error on failure; callers translate that into a
	// diag.CodeFSRead diagnostic.
	ReadFile(path string) (string, error)

	// WriteFile writes content to path as UTF-8, creating parent
	// directories as needed. Uses a write-temp-rename sequence so a
	// partially written file is never observable at path.
	WriteFile(path string, content string) error

	// ListDir returns the stably sorted (lexicographic) names of path's
	// immediate children.
	ListDir(path string) ([]string, error)

	// AbsPosix resolves path to an absolute, forward-slash-normalized
	// form.
	AbsPosix(path string) (string, error)
}

// OS is the production Boundary backed by the real filesystem.
type OS struct{}

// New returns the production filesystem Boundary.
func New() Boundary { return OS{} }

func (OS) Exist(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (OS) ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// WriteFile writes via a temp file in the same directory followed by an
// atomic rename, the same sequence the teacher's recipe writer uses to
// avoid partially-written files being observed by a concurrent reader.
func (OS) WriteFile(path string, content string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".gmake2cmake-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename %s to %s: %w", tmpPath, path, err)
	}
	cleanup = false
	return nil
}

func (OS) ListDir(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", path, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (OS) AbsPosix(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	return ToPosix(abs), nil
}

// ToPosix normalizes an OS-native path to forward-slash form. Pure,
// never touches disk.
func ToPosix(path string) string {
	return filepath.ToSlash(path)
}

// Join joins path elements and normalizes the result to forward-slash
// form. Pure, never touches disk.
func Join(elem ...string) string {
	return ToPosix(filepath.Join(elem...))
}

// Base returns the last path element, posix-normalized. Pure.
func Base(path string) string {
	return filepath.Base(ToPosix(path))
}

// Dir returns the directory portion of path, posix-normalized. Pure.
func Dir(path string) string {
	return ToPosix(filepath.Dir(ToPosix(path)))
}

// Rel returns path relative to base, posix-normalized. Pure.
func Rel(base, path string) (string, error) {
	base = filepath.FromSlash(base)
	path = filepath.FromSlash(path)
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return "", fmt.Errorf("relativize %s against %s: %w", path, base, err)
	}
	return ToPosix(rel), nil
}

// TrimExt strips the file extension, if any. Pure.
func TrimExt(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext)
}
