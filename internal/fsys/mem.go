package fsys

import (
	"fmt"
	"sort"
	"strings"
)

// MemBoundary is an in-memory Boundary used by tests across the
// pipeline so the Discoverer, Parser, Evaluator, and Emitter can be
// exercised without touching real disk (spec.md P2: purity above the
// filesystem boundary).
type MemBoundary struct {
	files map[string]string
}

// NewMem returns a MemBoundary seeded with files, keyed by posix path.
func NewMem(files map[string]string) *MemBoundary {
	m := &MemBoundary{files: make(map[string]string, len(files))}
	for k, v := range files {
		m.files[ToPosix(k)] = v
	}
	return m
}

// Set adds or overwrites a file's content.
func (m *MemBoundary) Set(path, content string) {
	m.files[ToPosix(path)] = content
}

func (m *MemBoundary) Exist(path string) bool {
	_, ok := m.files[ToPosix(path)]
	return ok
}

func (m *MemBoundary) ReadFile(path string) (string, error) {
	content, ok := m.files[ToPosix(path)]
	if !ok {
		return "", fmt.Errorf("read %s: no such file", path)
	}
	return content, nil
}

func (m *MemBoundary) WriteFile(path string, content string) error {
	m.files[ToPosix(path)] = content
	return nil
}

func (m *MemBoundary) ListDir(path string) ([]string, error) {
	prefix := strings.TrimSuffix(ToPosix(path), "/") + "/"
	seen := make(map[string]struct{})
	for p := range m.files {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := strings.TrimPrefix(p, prefix)
		if i := strings.Index(rest, "/"); i >= 0 {
			rest = rest[:i]
		}
		seen[rest] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemBoundary) AbsPosix(path string) (string, error) {
	p := ToPosix(path)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p, nil
}

// Files returns the full file map, for test assertions.
func (m *MemBoundary) Files() map[string]string {
	return m.files
}
