// Package emit implements the Emitter (spec.md §4.9): a pure function
// from a Project to an ordered list of (path, content) file artifacts.
// Nothing in this package touches a filesystem directly; flushing goes
// through fsys.Boundary so dry-run and real runs share one code path.
package emit

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vinzenz/gmake2cmake/internal/config"
	"github.com/vinzenz/gmake2cmake/internal/diag"
	"github.com/vinzenz/gmake2cmake/internal/eval"
	"github.com/vinzenz/gmake2cmake/internal/fsys"
	"github.com/vinzenz/gmake2cmake/internal/ir"
	"github.com/vinzenz/gmake2cmake/internal/unknown"
)

const minCMakeVersion = "3.20"

// EmitOptions configures one Emit call (spec.md §4.9, §6).
type EmitOptions struct {
	OutputDir        string // posix directory all artifact paths are rooted under
	PackagingEnabled bool
}

// Artifact is one file the Emitter produced.
type Artifact struct {
	Path    string // absolute posix path
	Content string
}

// Emit renders proj into an ordered artifact list. The order is the
// order Flush writes in: root CMakeLists.txt first, then
// ProjectGlobalConfig.cmake if globals exist, then one file per
// subdirectory group in lexicographic order, then packaging artifacts.
func Emit(proj *ir.Project, opts EmitOptions, sink *diag.Sink, reg *unknown.Registry) []Artifact {
	e := &emitter{proj: proj, opts: opts, sink: sink, reg: reg}
	return e.run()
}

// Flush writes artifacts via fs in order, stopping at the first error
// (already-written files are not rolled back) and recording
// EMIT_WRITE_FAIL.
func Flush(artifacts []Artifact, fs fsys.Boundary, sink *diag.Sink) error {
	for _, a := range artifacts {
		if err := fs.WriteFile(a.Path, a.Content); err != nil {
			if sink != nil {
				sink.Add(diag.Diagnostic{
					Severity: diag.ERROR,
					Code:     diag.CodeEmitWriteFail,
					Message:  fmt.Sprintf("write %s: %v", a.Path, err),
					Origin:   "emit",
				})
			}
			return err
		}
	}
	return nil
}

type emitter struct {
	proj *ir.Project
	opts EmitOptions
	sink *diag.Sink
	reg  *unknown.Registry
}

func (e *emitter) run() []Artifact {
	groups, dirOrder := e.groupByDirectory()

	var artifacts []Artifact
	artifacts = append(artifacts, Artifact{Path: e.path("CMakeLists.txt"), Content: e.renderRoot(groups, dirOrder)})

	if e.hasGlobals() {
		artifacts = append(artifacts, Artifact{Path: e.path("ProjectGlobalConfig.cmake"), Content: e.renderGlobalConfig()})
	}

	for _, dir := range dirOrder {
		if dir == "" {
			continue // root-group targets are emitted directly into CMakeLists.txt
		}
		artifacts = append(artifacts, Artifact{Path: e.path(dir, "CMakeLists.txt"), Content: e.renderGroup(groups[dir], dir)})
	}

	if e.opts.PackagingEnabled {
		artifacts = append(artifacts, e.renderPackaging()...)
	}
	return artifacts
}

func (e *emitter) path(elems ...string) string {
	return fsys.Join(append([]string{e.opts.OutputDir}, elems...)...)
}

// groupByDirectory implements "Layout planning": targets are grouped by
// the longest common directory prefix of their source files, relative
// to the project root; sourceless targets own the root group.
func (e *emitter) groupByDirectory() (map[string][]*ir.Target, []string) {
	groups := make(map[string][]*ir.Target)
	for _, t := range e.proj.Targets {
		dir := commonSourceDir(t.Sources)
		groups[dir] = append(groups[dir], t)
	}
	dirs := make([]string, 0, len(groups))
	for d := range groups {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return groups, dirs
}

func commonSourceDir(sources []ir.SourceFile) string {
	if len(sources) == 0 {
		return ""
	}
	var segs []string
	for i, sf := range sources {
		d := fsys.Dir(sf.Path)
		if d == "." {
			d = ""
		}
		parts := strings.Split(d, "/")
		if i == 0 {
			segs = parts
			continue
		}
		segs = commonPrefix(segs, parts)
	}
	joined := strings.Join(segs, "/")
	if joined == "." {
		return ""
	}
	return joined
}

func commonPrefix(a, b []string) []string {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return a[:i]
}

func (e *emitter) hasGlobals() bool {
	g := e.proj.Globals
	if len(g.Toggles) > 0 {
		return true
	}
	for _, m := range []map[eval.FlagBucket][]string{g.Includes, g.Defines, g.Flags} {
		for _, v := range m {
			if len(v) > 0 {
				return true
			}
		}
	}
	return false
}

func (e *emitter) renderRoot(groups map[string][]*ir.Target, dirOrder []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "cmake_minimum_required(VERSION %s)\n", minCMakeVersion)
	if e.proj.Version != "" {
		fmt.Fprintf(&b, "project(%s VERSION %s LANGUAGES %s)\n", e.proj.Name, e.proj.Version, strings.Join(e.languages(), " "))
	} else {
		fmt.Fprintf(&b, "project(%s LANGUAGES %s)\n", e.proj.Name, strings.Join(e.languages(), " "))
	}
	b.WriteString("\n")

	if e.hasGlobals() {
		b.WriteString("include(${CMAKE_CURRENT_LIST_DIR}/ProjectGlobalConfig.cmake)\n\n")
	}

	if rootTargets, ok := groups[""]; ok {
		e.renderTargets(&b, rootTargets, "")
	}

	var subdirs []string
	for _, d := range dirOrder {
		if d != "" {
			subdirs = append(subdirs, d)
		}
	}
	if len(subdirs) > 0 {
		if rootTargets, ok := groups[""]; ok && len(rootTargets) > 0 {
			b.WriteString("\n")
		}
		for _, d := range subdirs {
			fmt.Fprintf(&b, "add_subdirectory(%s)\n", d)
		}
	}
	return b.String()
}

func (e *emitter) languages() []string {
	if len(e.proj.Languages) > 0 {
		return cmakeLanguages(e.proj.Languages)
	}
	seen := map[string]bool{}
	var langs []string
	for _, t := range e.proj.Targets {
		for _, sf := range t.Sources {
			cl := cmakeLanguage(sf.Language)
			if cl != "" && !seen[cl] {
				seen[cl] = true
				langs = append(langs, cl)
			}
		}
	}
	sort.Strings(langs)
	if len(langs) == 0 {
		return []string{"C"}
	}
	return langs
}

func cmakeLanguages(in []string) []string {
	out := make([]string, 0, len(in))
	for _, l := range in {
		out = append(out, cmakeLanguage(l))
	}
	return out
}

func cmakeLanguage(l string) string {
	switch l {
	case "c":
		return "C"
	case "cpp":
		return "CXX"
	case "asm":
		return "ASM"
	default:
		return ""
	}
}

func (e *emitter) renderInitFlags(b *strings.Builder) {
	all := e.proj.Globals.Flags[eval.BucketAll]
	c := append(append([]string(nil), all...), e.proj.Globals.Flags[eval.BucketC]...)
	cpp := append(append([]string(nil), all...), e.proj.Globals.Flags[eval.BucketCpp]...)
	if len(c) > 0 {
		fmt.Fprintf(b, "set(CMAKE_C_FLAGS_INIT \"%s\")\n", strings.Join(c, " "))
	}
	if len(cpp) > 0 {
		fmt.Fprintf(b, "set(CMAKE_CXX_FLAGS_INIT \"%s\")\n", strings.Join(cpp, " "))
	}
	if len(c) > 0 || len(cpp) > 0 {
		b.WriteString("\n")
	}
}

// renderToggles emits one option()/set() CACHE STRING per project-global
// feature toggle, sorted by name for deterministic output (spec.md §4.9,
// P1).
func (e *emitter) renderToggles(b *strings.Builder) {
	names := make([]string, 0, len(e.proj.Globals.Toggles))
	for name := range e.proj.Globals.Toggles {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t := e.proj.Globals.Toggles[name]
		if t.IsBool {
			state := "OFF"
			if t.BoolVal {
				state = "ON"
			}
			fmt.Fprintf(b, "option(%s \"\" %s)\n", name, state)
		} else {
			fmt.Fprintf(b, "set(%s \"%s\" CACHE STRING \"\")\n", name, t.StrVal)
		}
	}
	if len(names) > 0 {
		b.WriteString("\n")
	}
}

// renderGlobalConfig centralizes feature toggles and global compile
// settings into an INTERFACE library, per spec.md §4.9.
func (e *emitter) renderGlobalConfig() string {
	var b strings.Builder
	namespace := e.proj.Namespace
	if namespace == "" {
		namespace = "Project"
	}
	libName := strings.ToLower(namespace) + "_global_options"

	e.renderInitFlags(&b)
	e.renderToggles(&b)

	fmt.Fprintf(&b, "add_library(%s INTERFACE)\n", libName)

	g := e.proj.Globals
	for _, bucket := range []eval.FlagBucket{eval.BucketAll, eval.BucketC, eval.BucketCpp, eval.BucketAsm, eval.BucketLink} {
		if inc := g.Includes[bucket]; len(inc) > 0 {
			fmt.Fprintf(&b, "target_include_directories(%s INTERFACE %s)\n", libName, strings.Join(inc, " "))
		}
		if def := g.Defines[bucket]; len(def) > 0 {
			fmt.Fprintf(&b, "target_compile_definitions(%s INTERFACE %s)\n", libName, strings.Join(def, " "))
		}
	}
	if link := g.Flags[eval.BucketLink]; len(link) > 0 {
		fmt.Fprintf(&b, "target_link_options(%s INTERFACE %s)\n", libName, strings.Join(link, " "))
	}
	fmt.Fprintf(&b, "add_library(%s::GlobalOptions ALIAS %s)\n", namespace, libName)
	return b.String()
}

func (e *emitter) renderGroup(targets []*ir.Target, dir string) string {
	var b strings.Builder
	e.renderTargets(&b, targets, dir)
	return b.String()
}

func (e *emitter) renderTargets(b *strings.Builder, targets []*ir.Target, groupDir string) {
	for i, t := range targets {
		if i > 0 {
			b.WriteString("\n")
		}
		e.renderTarget(b, t, groupDir)
	}
}

func (e *emitter) renderTarget(b *strings.Builder, t *ir.Target, groupDir string) {
	if !e.canEmit(t) {
		fmt.Fprintf(b, "# unmappable target %q (type %s) — no create_call inferred; manual CMakeLists.txt entry required\n", t.PhysicalName, t.Type)
		e.warnUnknownType(t)
		return
	}

	srcs := make([]string, len(t.Sources))
	for i, sf := range t.Sources {
		srcs[i] = relativize(sf.Path, groupDir)
	}
	srcList := ""
	if len(srcs) > 0 {
		srcList = " " + strings.Join(srcs, " ")
	}

	switch t.Type {
	case ir.TypeExecutable:
		fmt.Fprintf(b, "add_executable(%s%s)\n", t.PhysicalName, srcList)
	case ir.TypeStaticLibrary:
		fmt.Fprintf(b, "add_library(%s STATIC%s)\n", t.PhysicalName, srcList)
	case ir.TypeSharedLibrary:
		fmt.Fprintf(b, "add_library(%s SHARED%s)\n", t.PhysicalName, srcList)
	case ir.TypeObjectLibrary:
		fmt.Fprintf(b, "add_library(%s OBJECT%s)\n", t.PhysicalName, srcList)
	case ir.TypeInterface:
		fmt.Fprintf(b, "add_library(%s INTERFACE)\n", t.PhysicalName)
	case ir.TypeImported:
		fmt.Fprintf(b, "add_library(%s UNKNOWN IMPORTED)\n", t.PhysicalName)
	case ir.TypeCustom:
		e.renderCustomTarget(b, t)
	}

	vis := string(t.Visibility)
	if vis == "" {
		vis = string(config.VisibilityPrivate)
	}

	if t.Type == ir.TypeInterface && len(t.Sources) > 0 {
		fmt.Fprintf(b, "target_sources(%s %s%s)\n", t.PhysicalName, vis, srcList)
	}
	if len(t.IncludeDirs) > 0 {
		fmt.Fprintf(b, "target_include_directories(%s %s %s)\n", t.PhysicalName, vis, strings.Join(t.IncludeDirs, " "))
	}
	if len(t.Defines) > 0 {
		fmt.Fprintf(b, "target_compile_definitions(%s %s %s)\n", t.PhysicalName, vis, strings.Join(t.Defines, " "))
	}
	if len(t.CompileOptions) > 0 {
		fmt.Fprintf(b, "target_compile_options(%s %s %s)\n", t.PhysicalName, vis, strings.Join(t.CompileOptions, " "))
	}
	if len(t.LinkOptions) > 0 {
		fmt.Fprintf(b, "target_link_options(%s %s %s)\n", t.PhysicalName, vis, strings.Join(t.LinkOptions, " "))
	}
	if len(t.LinkLibraries) > 0 {
		names := make([]string, len(t.LinkLibraries))
		for i, l := range t.LinkLibraries {
			names[i] = l.Name
		}
		fmt.Fprintf(b, "target_link_libraries(%s %s %s)\n", t.PhysicalName, vis, strings.Join(names, " "))
	}
	if t.Alias != "" && t.Type.IsLibrary() {
		fmt.Fprintf(b, "add_library(%s ALIAS %s)\n", t.Alias, t.PhysicalName)
	}
}

func (e *emitter) renderCustomTarget(b *strings.Builder, t *ir.Target) {
	if len(t.CustomCommands) == 0 {
		fmt.Fprintf(b, "add_custom_target(%s)\n", t.PhysicalName)
		return
	}
	fmt.Fprintf(b, "add_custom_target(%s\n", t.PhysicalName)
	for _, cmd := range t.CustomCommands {
		fmt.Fprintf(b, "  COMMAND %s\n", cmd)
	}
	b.WriteString(")\n")
}

// canEmit reports whether t carries enough information to produce a
// create-call: every type has one except custom targets with neither
// sources nor custom commands (spec.md §4.9 "unmappable" case).
func (e *emitter) canEmit(t *ir.Target) bool {
	if t.Type == ir.TypeCustom {
		return len(t.CustomCommands) > 0 || len(t.Sources) > 0
	}
	return true
}

func (e *emitter) warnUnknownType(t *ir.Target) {
	if e.sink != nil {
		e.sink.Add(diag.Diagnostic{
			Severity: diag.ERROR,
			Code:     diag.CodeEmitUnknownType,
			Message:  fmt.Sprintf("target %q has no inferable create call and no custom commands", t.PhysicalName),
			Origin:   "emit",
		})
	}
	if e.reg != nil {
		e.reg.Record(unknown.Construct{
			Category:        unknown.CategoryToolchainSpecific,
			RawSnippet:      t.PhysicalName,
			Impact:          unknown.Impact{Phase: unknown.PhaseCMakeGeneration, Severity: diag.ERROR},
			CMakeStatus:     unknown.StatusNotGenerated,
			SuggestedAction: unknown.ActionManualCustomCommand,
		})
	}
}

func relativize(path, groupDir string) string {
	if groupDir == "" {
		return path
	}
	if rel := strings.TrimPrefix(path, groupDir+"/"); rel != path {
		return rel
	}
	return "${CMAKE_SOURCE_DIR}/" + path
}

// renderPackaging emits install()/export() wiring plus a generated
// Config.cmake pair so downstream find_package(<Name>) resolves
// <Namespace>::<target> (spec.md §4.9).
func (e *emitter) renderPackaging() []Artifact {
	name := e.proj.Name
	if name == "" {
		name = "Project"
	}
	namespace := e.proj.Namespace
	if namespace == "" {
		namespace = "Project"
	}
	exportSet := name + "Targets"

	var install strings.Builder
	var libTargets []string
	for _, t := range e.proj.Targets {
		if t.Type == ir.TypeImported || t.Type == ir.TypeCustom {
			continue
		}
		libTargets = append(libTargets, t.PhysicalName)
	}
	sort.Strings(libTargets)
	if len(libTargets) > 0 {
		fmt.Fprintf(&install, "install(TARGETS %s EXPORT %s)\n", strings.Join(libTargets, " "), exportSet)
	}

	includeSet := map[string]bool{}
	var includes []string
	for _, t := range e.proj.Targets {
		for _, inc := range t.IncludeDirs {
			if !includeSet[inc] {
				includeSet[inc] = true
				includes = append(includes, inc)
			}
		}
	}
	sort.Strings(includes)
	for _, inc := range includes {
		fmt.Fprintf(&install, "install(DIRECTORY %s/ DESTINATION include)\n", inc)
	}
	fmt.Fprintf(&install, "install(EXPORT %s NAMESPACE %s:: DESTINATION lib/cmake/%s)\n", exportSet, namespace, name)
	fmt.Fprintf(&install, "export(EXPORT %s NAMESPACE %s:: FILE %sTargets.cmake)\n", exportSet, namespace, name)

	var cfg strings.Builder
	fmt.Fprintf(&cfg, "include(\"${CMAKE_CURRENT_LIST_DIR}/%sTargets.cmake\")\n", name)

	var cfgVersion strings.Builder
	version := e.proj.Version
	if version == "" {
		version = "0.0.0"
	}
	fmt.Fprintf(&cfgVersion, "set(PACKAGE_VERSION \"%s\")\n", version)
	cfgVersion.WriteString("if(PACKAGE_VERSION VERSION_LESS PACKAGE_FIND_VERSION)\n  set(PACKAGE_VERSION_COMPATIBLE FALSE)\nelse()\n  set(PACKAGE_VERSION_COMPATIBLE TRUE)\n  if(PACKAGE_VERSION STREQUAL PACKAGE_FIND_VERSION)\n    set(PACKAGE_VERSION_EXACT TRUE)\n  endif()\nendif()\n")

	return []Artifact{
		{Path: e.path("install.cmake"), Content: install.String()},
		{Path: e.path(name + "Config.cmake"), Content: cfg.String()},
		{Path: e.path(name + "ConfigVersion.cmake"), Content: cfgVersion.String()},
	}
}
