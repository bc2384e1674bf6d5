// Package ir implements the IR Builder (spec.md §4.8): it normalizes
// Evaluator BuildFacts plus the Configuration Model into a
// target-oriented Project the Emitter can render without any further
// knowledge of Make semantics.
package ir

import (
	"github.com/vinzenz/gmake2cmake/internal/config"
	"github.com/vinzenz/gmake2cmake/internal/eval"
)

// TargetType mirrors CMake's buildsystem target kinds plus the
// translator's own "custom" escape hatch (spec.md §3).
type TargetType string

const (
	TypeExecutable     TargetType = "executable"
	TypeStaticLibrary  TargetType = "static_library"
	TypeSharedLibrary  TargetType = "shared_library"
	TypeObjectLibrary  TargetType = "object_library"
	TypeInterface      TargetType = "interface"
	TypeImported       TargetType = "imported"
	TypeCustom         TargetType = "custom"
)

// IsLibrary reports whether t is one of the library kinds produced
// in-project and therefore eligible for a namespaced ALIAS (I2).
func (t TargetType) IsLibrary() bool {
	switch t {
	case TypeStaticLibrary, TypeSharedLibrary, TypeObjectLibrary:
		return true
	}
	return false
}

// LinkKind classifies a link reference's role (spec.md §4.8 "Library
// role classification").
type LinkKind string

const (
	LinkInternal LinkKind = "internal"
	LinkExternal LinkKind = "external"
	LinkImported LinkKind = "imported"
)

// LinkItem is one entry in a target's link_libraries list.
type LinkItem struct {
	Name string
	Kind LinkKind
}

// SourceFile is one source belonging to a target.
type SourceFile struct {
	Path     string
	Language string
	Flags    []string
}

// Target is one buildable or custom artifact in the Project.
type Target struct {
	PhysicalName   string
	Alias          string // "<Namespace>::<Logical>"; empty when Type is not a library
	Type           TargetType
	Sources        []SourceFile
	IncludeDirs    []string
	Defines        []string
	CompileOptions []string
	LinkOptions    []string
	LinkLibraries  []LinkItem
	Dependencies   []string
	Visibility     config.Visibility
	CustomCommands []string
}

// Project is the IR root the Emitter consumes (spec.md §3).
type Project struct {
	Name      string
	Version   string
	Namespace string
	Languages []string
	Targets   []*Target
	Globals   eval.ProjectGlobals
}

// FindTarget returns the target with the given physical name, or nil.
func (p *Project) FindTarget(physicalName string) *Target {
	for _, t := range p.Targets {
		if t.PhysicalName == physicalName {
			return t
		}
	}
	return nil
}
