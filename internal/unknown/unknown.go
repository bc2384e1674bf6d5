// Package unknown implements the Unknown-Construct Registry: the
// append-only bookkeeping of Make/CMake fragments the translator could
// not faithfully render, recorded with enough context to guide manual
// fix-up (spec.md §3, §4.2).
package unknown

import (
	"fmt"
	"strings"

	"github.com/vinzenz/gmake2cmake/internal/diag"
)

// Category classifies an unknown construct.
type Category string

const (
	CategoryMakeSyntax       Category = "make_syntax"
	CategoryMakeFunction     Category = "make_function"
	CategoryShellCommand     Category = "shell_command"
	CategoryConditionalLogic Category = "conditional_logic"
	CategoryToolchainSpecific Category = "toolchain_specific"
	CategoryOther            Category = "other"
)

// Phase is the pipeline stage that produced the construct.
type Phase string

const (
	PhaseParse           Phase = "parse"
	PhaseEvaluate        Phase = "evaluate"
	PhaseBuildGraph      Phase = "build_graph"
	PhaseCMakeGeneration Phase = "cmake_generation"
)

// phaseCategories mirrors the categorization table in spec.md §4.2: the
// set of categories considered valid for constructs reported from each
// phase. Used only for documentation/validation in tests; the producing
// code always picks the right category directly.
var phaseCategories = map[Phase][]Category{
	PhaseParse:           {CategoryMakeSyntax},
	PhaseEvaluate:        {CategoryMakeFunction, CategoryConditionalLogic, CategoryShellCommand},
	PhaseBuildGraph:      {CategoryOther},
	PhaseCMakeGeneration: {CategoryToolchainSpecific, CategoryOther},
}

// ValidForPhase reports whether cat is one of the categories the
// categorization table allows for phase p.
func ValidForPhase(p Phase, cat Category) bool {
	for _, c := range phaseCategories[p] {
		if c == cat {
			return true
		}
	}
	return false
}

// CMakeStatus describes how much of the construct the Emitter could
// translate.
type CMakeStatus string

const (
	StatusNotGenerated      CMakeStatus = "not_generated"
	StatusPartiallyGenerated CMakeStatus = "partially_generated"
	StatusApproximate       CMakeStatus = "approximate"
)

// SuggestedAction is the recommended manual follow-up.
type SuggestedAction string

const (
	ActionManualReview        SuggestedAction = "manual_review"
	ActionManualCustomCommand SuggestedAction = "manual_custom_command"
	ActionRequiresMapping     SuggestedAction = "requires_mapping"
)

// Context carries the enclosing scope of a construct at the point it
// was recorded.
type Context struct {
	EnclosingTargets []string
	VariablesInScope []string
	IncludeStack     []string
}

// Impact describes where and how severely a construct affected
// translation.
type Impact struct {
	Phase    Phase
	Severity diag.Severity
}

// Construct is one unmappable Make or CMake fragment.
type Construct struct {
	ID             string // "UC" + zero-padded monotonic counter, reset per run
	Category       Category
	Location       diag.Location
	RawSnippet     string // trimmed to 200 characters
	NormalizedForm string // best-effort structural summary; falls back to raw
	Context        Context
	Impact         Impact
	CMakeStatus    CMakeStatus
	SuggestedAction SuggestedAction
}

const maxSnippetLen = 200

// TrimSnippet trims s to the 200-character fallback length used when no
// better normalized form is available.
func TrimSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxSnippetLen {
		return s
	}
	return s[:maxSnippetLen]
}

// Registry assigns stable, monotonic ids to recorded Constructs and
// mirrors each one into a diag.Sink as a paired UNKNOWN_CONSTRUCT
// diagnostic (spec.md §4.2).
type Registry struct {
	sink    *diag.Sink
	counter int
	items   []Construct
}

// NewRegistry returns an empty Registry paired with sink. sink receives
// one diag.Diagnostic per recorded Construct.
func NewRegistry(sink *diag.Sink) *Registry {
	return &Registry{sink: sink}
}

// Record assigns c an id (overwriting any id already set), appends it,
// and emits the paired diagnostic. The returned Construct carries the
// assigned id.
func (r *Registry) Record(c Construct) Construct {
	r.counter++
	c.ID = fmt.Sprintf("UC%04d", r.counter)
	c.RawSnippet = TrimSnippet(c.RawSnippet)
	if c.NormalizedForm == "" {
		c.NormalizedForm = c.RawSnippet
	}
	r.items = append(r.items, c)

	if r.sink != nil {
		r.sink.Add(diag.Diagnostic{
			Severity: c.Impact.Severity,
			Code:     diag.CodeUnknownConstruct,
			Message:  fmt.Sprintf("%s: %s (%s)", c.ID, c.NormalizedForm, c.Category),
			Location: c.Location,
			Origin:   string(c.Impact.Phase),
		})
	}
	return c
}

// All returns every recorded Construct in insertion (id) order.
func (r *Registry) All() []Construct {
	out := make([]Construct, len(r.items))
	copy(out, r.items)
	return out
}

// Len reports the number of recorded constructs.
func (r *Registry) Len() int {
	return len(r.items)
}
