package emit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinzenz/gmake2cmake/internal/config"
	"github.com/vinzenz/gmake2cmake/internal/diag"
	"github.com/vinzenz/gmake2cmake/internal/eval"
	"github.com/vinzenz/gmake2cmake/internal/fsys"
	"github.com/vinzenz/gmake2cmake/internal/ir"
)

func findArtifact(artifacts []Artifact, suffix string) *Artifact {
	for i := range artifacts {
		if strings.HasSuffix(artifacts[i].Path, suffix) {
			return &artifacts[i]
		}
	}
	return nil
}

func TestEmit_RootCMakeListsHasVersionAndProjectLines(t *testing.T) {
	proj := &ir.Project{Name: "demo", Version: "1.2.3", Namespace: "Demo", Languages: []string{"c"}}
	artifacts := Emit(proj, EmitOptions{OutputDir: "/out"}, diag.NewSink(), nil)

	root := findArtifact(artifacts, "/CMakeLists.txt")
	require.NotNil(t, root)
	assert.Contains(t, root.Content, "cmake_minimum_required(VERSION 3.20)")
	assert.Contains(t, root.Content, "project(demo VERSION 1.2.3 LANGUAGES C)")
}

func TestEmit_ExecutableTargetEmitsFixedOrder(t *testing.T) {
	proj := &ir.Project{
		Name: "demo",
		Targets: []*ir.Target{
			{
				PhysicalName:   "app",
				Type:           ir.TypeExecutable,
				Sources:        []ir.SourceFile{{Path: "main.c", Language: "c"}},
				IncludeDirs:    []string{"include"},
				Defines:        []string{"FOO"},
				CompileOptions: []string{"-O2"},
				LinkOptions:    []string{"-L/usr/lib"},
				LinkLibraries:  []ir.LinkItem{{Name: "pthread", Kind: ir.LinkExternal}},
				Visibility:     config.VisibilityPrivate,
			},
		},
	}
	artifacts := Emit(proj, EmitOptions{OutputDir: "/out"}, diag.NewSink(), nil)
	root := findArtifact(artifacts, "/CMakeLists.txt")
	require.NotNil(t, root)

	// Sources are listed on the creation call itself.
	createIdx := strings.Index(root.Content, "add_executable(app ")
	sourcesIdx := strings.Index(root.Content, " main.c)")
	includeIdx := strings.Index(root.Content, "target_include_directories(app")
	defineIdx := strings.Index(root.Content, "target_compile_definitions(app")
	optsIdx := strings.Index(root.Content, "target_compile_options(app")
	linkOptsIdx := strings.Index(root.Content, "target_link_options(app")
	linkLibsIdx := strings.Index(root.Content, "target_link_libraries(app")

	require.NotEqual(t, -1, createIdx)
	require.NotEqual(t, -1, sourcesIdx)
	require.NotEqual(t, -1, includeIdx)
	require.NotEqual(t, -1, defineIdx)
	require.NotEqual(t, -1, optsIdx)
	require.NotEqual(t, -1, linkOptsIdx)
	require.NotEqual(t, -1, linkLibsIdx)
	assert.True(t, createIdx < sourcesIdx)
	assert.True(t, sourcesIdx < includeIdx)
	assert.True(t, includeIdx < defineIdx)
	assert.True(t, defineIdx < optsIdx)
	assert.True(t, optsIdx < linkOptsIdx)
	assert.True(t, linkOptsIdx < linkLibsIdx)
}

func TestEmit_InternalLibraryGetsAliasLine(t *testing.T) {
	proj := &ir.Project{
		Namespace: "Demo",
		Targets: []*ir.Target{
			{PhysicalName: "widget", Alias: "Demo::widget", Type: ir.TypeStaticLibrary, Visibility: config.VisibilityPrivate},
		},
	}
	artifacts := Emit(proj, EmitOptions{OutputDir: "/out"}, diag.NewSink(), nil)
	root := findArtifact(artifacts, "/CMakeLists.txt")
	require.NotNil(t, root)
	assert.Contains(t, root.Content, "add_library(widget STATIC)")
	assert.Contains(t, root.Content, "add_library(Demo::widget ALIAS widget)")
}

func TestEmit_SubdirectoryGroupingBySourcePrefix(t *testing.T) {
	proj := &ir.Project{
		Targets: []*ir.Target{
			{PhysicalName: "app", Type: ir.TypeExecutable, Sources: []ir.SourceFile{{Path: "src/app/main.c"}}, Visibility: config.VisibilityPrivate},
		},
	}
	artifacts := Emit(proj, EmitOptions{OutputDir: "/out"}, diag.NewSink(), nil)
	root := findArtifact(artifacts, "/CMakeLists.txt")
	require.NotNil(t, root)
	assert.Contains(t, root.Content, "add_subdirectory(src/app)")

	sub := findArtifact(artifacts, "src/app/CMakeLists.txt")
	require.NotNil(t, sub)
	assert.Contains(t, sub.Content, "add_executable(app main.c)")
	assert.NotContains(t, sub.Content, "src/app/main.c")
}

func TestEmit_CustomTargetWithoutCommandsOrSourcesIsUnmappable(t *testing.T) {
	proj := &ir.Project{
		Targets: []*ir.Target{
			{PhysicalName: "mystery", Type: ir.TypeCustom, Visibility: config.VisibilityPrivate},
		},
	}
	sink := diag.NewSink()
	artifacts := Emit(proj, EmitOptions{OutputDir: "/out"}, sink, nil)
	root := findArtifact(artifacts, "/CMakeLists.txt")
	require.NotNil(t, root)
	assert.Contains(t, root.Content, "# unmappable target")

	found := false
	for _, d := range sink.All() {
		if d.Code == diag.CodeEmitUnknownType {
			found = true
			assert.Equal(t, diag.ERROR, d.Severity)
		}
	}
	assert.True(t, found)
}

func TestEmit_GlobalConfigRenderedWhenGlobalsPresent(t *testing.T) {
	proj := &ir.Project{
		Namespace: "Demo",
		Globals: eval.ProjectGlobals{
			Includes: map[eval.FlagBucket][]string{eval.BucketAll: {"include"}},
			Defines:  map[eval.FlagBucket][]string{},
			Flags:    map[eval.FlagBucket][]string{eval.BucketC: {"-Wall"}},
		},
	}
	artifacts := Emit(proj, EmitOptions{OutputDir: "/out"}, diag.NewSink(), nil)
	root := findArtifact(artifacts, "/CMakeLists.txt")
	require.NotNil(t, root)
	assert.Contains(t, root.Content, "include(${CMAKE_CURRENT_LIST_DIR}/ProjectGlobalConfig.cmake)")

	cfg := findArtifact(artifacts, "ProjectGlobalConfig.cmake")
	require.NotNil(t, cfg)
	assert.Contains(t, cfg.Content, `set(CMAKE_C_FLAGS_INIT "-Wall")`)
	assert.Contains(t, cfg.Content, "add_library(demo_global_options INTERFACE)")
	assert.Contains(t, cfg.Content, "add_library(Demo::GlobalOptions ALIAS demo_global_options)")
}

func TestEmit_PackagingArtifactsWhenEnabled(t *testing.T) {
	proj := &ir.Project{
		Name:      "demo",
		Namespace: "Demo",
		Targets: []*ir.Target{
			{PhysicalName: "widget", Type: ir.TypeStaticLibrary, Visibility: config.VisibilityPrivate},
		},
	}
	artifacts := Emit(proj, EmitOptions{OutputDir: "/out", PackagingEnabled: true}, diag.NewSink(), nil)

	install := findArtifact(artifacts, "install.cmake")
	require.NotNil(t, install)
	assert.Contains(t, install.Content, "install(TARGETS widget EXPORT demoTargets)")
	assert.Contains(t, install.Content, "install(EXPORT demoTargets NAMESPACE Demo:: DESTINATION lib/cmake/demo)")

	cfg := findArtifact(artifacts, "demoConfig.cmake")
	require.NotNil(t, cfg)
	cfgVersion := findArtifact(artifacts, "demoConfigVersion.cmake")
	require.NotNil(t, cfgVersion)
}

func TestFlush_WritesAllArtifactsViaMemBoundary(t *testing.T) {
	fs := fsys.NewMem(nil)
	artifacts := []Artifact{
		{Path: "/out/CMakeLists.txt", Content: "cmake_minimum_required(VERSION 3.20)\n"},
	}
	err := Flush(artifacts, fs, diag.NewSink())
	require.NoError(t, err)
	got, err := fs.ReadFile("/out/CMakeLists.txt")
	require.NoError(t, err)
	assert.Equal(t, artifacts[0].Content, got)
}
