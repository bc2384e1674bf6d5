package discover

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinzenz/gmake2cmake/internal/diag"
	"github.com/vinzenz/gmake2cmake/internal/fsys"
)

func TestDiscover_MissingEntryReportsError(t *testing.T) {
	fs := fsys.NewMem(nil)
	sink := diag.NewSink()
	graph, files := Discover("/proj", "", fs, sink)
	assert.Nil(t, graph)
	assert.Nil(t, files)

	found := false
	for _, d := range sink.All() {
		if d.Code == diag.CodeDiscoveryEntryMissing {
			found = true
			assert.Equal(t, diag.ERROR, d.Severity)
		}
	}
	assert.True(t, found)
}

func TestDiscover_PrefersMakefileOverLowercaseVariants(t *testing.T) {
	fs := fsys.NewMem(map[string]string{
		"/proj/Makefile": "all:\n\techo hi\n",
		"/proj/makefile": "bogus\n",
	})
	_, files := Discover("/proj", "", fs, diag.NewSink())
	require.Len(t, files, 1)
	assert.Equal(t, "/proj/Makefile", files[0].Path)
}

func TestDiscover_MandatoryIncludeOrderedParentBeforeChild(t *testing.T) {
	fs := fsys.NewMem(map[string]string{
		"/proj/Makefile": "include common.mk\nall:\n\techo hi\n",
		"/proj/common.mk": "CFLAGS += -Wall\n",
	})
	graph, files := Discover("/proj", "", fs, diag.NewSink())
	require.NotNil(t, graph)
	require.Len(t, files, 2)
	assert.Equal(t, "/proj/Makefile", files[0].Path)
	assert.Equal(t, "/proj/common.mk", files[1].Path)
	assert.Equal(t, "", files[0].IncludedFrom)
	assert.Equal(t, "/proj/Makefile", files[1].IncludedFrom)

	require.Len(t, graph.Edges, 1)
	assert.Equal(t, EdgeInclude, graph.Edges[0].Kind)
}

func TestDiscover_OptionalIncludeMissingWarns(t *testing.T) {
	fs := fsys.NewMem(map[string]string{
		"/proj/Makefile": "-include optional.mk\nall:\n\techo hi\n",
	})
	sink := diag.NewSink()
	_, files := Discover("/proj", "", fs, sink)
	require.Len(t, files, 1)

	found := false
	for _, d := range sink.All() {
		if d.Code == diag.CodeDiscoveryIncludeOptionalMiss {
			found = true
			assert.Equal(t, diag.WARN, d.Severity)
		}
	}
	assert.True(t, found)
}

func TestDiscover_MandatoryIncludeMissingErrors(t *testing.T) {
	fs := fsys.NewMem(map[string]string{
		"/proj/Makefile": "include missing.mk\nall:\n\techo hi\n",
	})
	sink := diag.NewSink()
	Discover("/proj", "", fs, sink)

	found := false
	for _, d := range sink.All() {
		if d.Code == diag.CodeDiscoveryEntryMissing && d.Severity == diag.ERROR {
			found = true
		}
	}
	assert.True(t, found)
}

func TestDiscover_CycleDetectionReportsFullPath(t *testing.T) {
	fs := fsys.NewMem(map[string]string{
		"/proj/Makefile": "include b.mk\n",
		"/proj/b.mk":      "include Makefile\n",
	})
	sink := diag.NewSink()
	Discover("/proj", "", fs, sink)

	found := false
	for _, d := range sink.All() {
		if d.Code == diag.CodeDiscoveryCycle {
			found = true
			assert.Equal(t, diag.ERROR, d.Severity)
			assert.Contains(t, d.Message, "/proj/Makefile")
			assert.Contains(t, d.Message, "/proj/b.mk")
		}
	}
	assert.True(t, found)
}

func TestDiscover_SubdirInvocationFollowsNestedMakefile(t *testing.T) {
	fs := fsys.NewMem(map[string]string{
		"/proj/Makefile":   "all:\n\t$(MAKE) -C sub all\n",
		"/proj/sub/Makefile": "all:\n\techo sub\n",
	})
	graph, files := Discover("/proj", "", fs, diag.NewSink())
	require.NotNil(t, graph)
	require.Len(t, files, 2)
	assert.Equal(t, "/proj/Makefile", files[0].Path)
	assert.Equal(t, "/proj/sub/Makefile", files[1].Path)
	require.Len(t, graph.Edges, 1)
	assert.Equal(t, EdgeSubdir, graph.Edges[0].Kind)
}

func TestDiscover_EntryOverrideIsUsed(t *testing.T) {
	fs := fsys.NewMem(map[string]string{
		"/proj/Makefile":  "all:\n\techo default\n",
		"/proj/custom.mk": "all:\n\techo custom\n",
	})
	_, files := Discover("/proj", "custom.mk", fs, diag.NewSink())
	require.Len(t, files, 1)
	assert.Equal(t, "/proj/custom.mk", files[0].Path)
}
