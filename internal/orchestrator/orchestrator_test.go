package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinzenz/gmake2cmake/internal/diag"
	"github.com/vinzenz/gmake2cmake/internal/fsys"
)

func findArtifact(t *testing.T, result *Result, suffix string) string {
	t.Helper()
	for _, a := range result.Artifacts {
		if len(a.Path) >= len(suffix) && a.Path[len(a.Path)-len(suffix):] == suffix {
			return a.Content
		}
	}
	return ""
}

// TestRun_S1SingleExecutable reproduces spec.md §8 scenario S1.
func TestRun_S1SingleExecutable(t *testing.T) {
	fs := fsys.NewMem(map[string]string{
		"/src/Makefile": "app: main.o\n\tgcc -o app main.o\n\nmain.o: main.c\n\tgcc -c main.c -o main.o\n",
	})
	o := New(fs)
	result := o.Run(Options{SourceDir: "/src", OutputDir: "/out"})

	for _, d := range result.Diagnostics {
		assert.NotEqual(t, diag.ERROR, d.Severity, d.Message)
	}
	require.Equal(t, 0, result.ExitStatus)

	root := findArtifact(t, result, "/CMakeLists.txt")
	require.NotEmpty(t, root)
	assert.Contains(t, root, "cmake_minimum_required(VERSION 3.20)")
	assert.Contains(t, root, "add_executable(app")
	assert.Contains(t, root, "main.c")
}

// TestRun_S2InternalLibraryLinkedByExecutable reproduces spec.md §8 S2.
func TestRun_S2InternalLibraryLinkedByExecutable(t *testing.T) {
	fs := fsys.NewMem(map[string]string{
		"/src/Makefile": "libfoo.a: foo.c\n\tgcc -c foo.c -o foo.o\n\tar rcs libfoo.a foo.o\n\n" +
			"app: main.c\n\tgcc -o app main.c -lfoo\n",
	})
	o := New(fs)
	result := o.Run(Options{SourceDir: "/src", OutputDir: "/out"})
	require.Equal(t, 0, result.ExitStatus)

	root := findArtifact(t, result, "/CMakeLists.txt")
	require.NotEmpty(t, root)
	assert.Contains(t, root, "add_library(foo STATIC foo.c)")
	assert.Contains(t, root, "ALIAS foo)")
	assert.Contains(t, root, "target_link_libraries(app")
}

// TestRun_S4IncludeCycleShortCircuitsEmission reproduces spec.md §8 S4.
func TestRun_S4IncludeCycleShortCircuitsEmission(t *testing.T) {
	fs := fsys.NewMem(map[string]string{
		"/src/Makefile": "include B.mk\n",
		"/src/B.mk":     "include Makefile\n",
	})
	o := New(fs)
	result := o.Run(Options{SourceDir: "/src", OutputDir: "/out"})

	assert.Equal(t, 1, result.ExitStatus)
	assert.Empty(t, result.Artifacts)

	found := false
	for _, d := range result.Diagnostics {
		if d.Code == diag.CodeDiscoveryCycle {
			found = true
		}
	}
	assert.True(t, found)
}

// TestRun_MissingEntryIsErrorExitOne covers the invocation contract's
// exit-status monotonicity property (P9) for an unresolvable entry.
func TestRun_MissingEntryIsErrorExitOne(t *testing.T) {
	fs := fsys.NewMem(nil)
	o := New(fs)
	result := o.Run(Options{SourceDir: "/src", OutputDir: "/out"})

	assert.Equal(t, 1, result.ExitStatus)
	assert.Nil(t, result.Artifacts)
}

// TestRun_DryRunSkipsFlush verifies dry-run returns the file list
// without touching the filesystem boundary.
func TestRun_DryRunSkipsFlush(t *testing.T) {
	fs := fsys.NewMem(map[string]string{
		"/src/Makefile": "app: main.c\n\tgcc -o app main.c\n",
	})
	o := New(fs)
	result := o.Run(Options{SourceDir: "/src", OutputDir: "/out", DryRun: true})

	require.Equal(t, 0, result.ExitStatus)
	require.NotEmpty(t, result.Artifacts)
	assert.False(t, fs.Exist("/out/CMakeLists.txt"))
}

// TestRun_DumpConfigShortCircuitsBeforeDiscovery verifies the
// supplemented --dump-config seam exits before any stage that would
// need the source tree to exist.
func TestRun_DumpConfigShortCircuitsBeforeDiscovery(t *testing.T) {
	fs := fsys.NewMem(nil) // no Makefile at all
	o := New(fs)
	result := o.Run(Options{SourceDir: "/src", OutputDir: "/out", DumpConfig: true})

	require.Equal(t, 0, result.ExitStatus)
	assert.NotEmpty(t, result.ConfigYAML)
	assert.Empty(t, result.Diagnostics)
}

// TestRun_ParallelParseMergesUnknownsInDiscoveryOrder exercises the
// parallel-parse extension (spec.md §5): unrecognized constructs in
// the entry file and in its mandatory include must still come back
// with monotonic ids in parent-before-children order, even though the
// two files are parsed concurrently.
func TestRun_ParallelParseMergesUnknownsInDiscoveryOrder(t *testing.T) {
	fs := fsys.NewMem(map[string]string{
		"/src/Makefile":  "include common.mk\nvpath %.c src\napp: main.c\n\tgcc -o app main.c\n",
		"/src/common.mk": "export FOO := bar baz\n",
	})
	o := New(fs)
	result := o.Run(Options{SourceDir: "/src", OutputDir: "/out"})

	require.Len(t, result.Unknowns, 2)
	assert.Equal(t, "UC0001", result.Unknowns[0].ID)
	assert.Equal(t, "/src/Makefile", result.Unknowns[0].Location.Path)
	assert.Equal(t, "UC0002", result.Unknowns[1].ID)
	assert.Equal(t, "/src/common.mk", result.Unknowns[1].Location.Path)
}
