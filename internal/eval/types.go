// Package eval implements the Evaluator (spec.md §4.7): it walks the
// concatenated syntax tree produced by the Parser/Discoverer, expands
// variables and recognized function calls, classifies project-global
// assignments, and infers compiler invocations from recipe text. Its
// output, BuildFacts, is the sole input the IR Builder consumes.
package eval

import "github.com/vinzenz/gmake2cmake/internal/diag"

// FlagBucket partitions accumulated project-global flags by the
// toolchain they apply to (spec.md §4.7 "project-global capture").
type FlagBucket string

const (
	BucketC    FlagBucket = "c"
	BucketCpp  FlagBucket = "cpp"
	BucketAsm  FlagBucket = "asm"
	BucketLink FlagBucket = "link"
	BucketAll  FlagBucket = "all"
)

// Toggle is one project-global variable that does not fit the
// flag/define/include buckets — a feature switch or a plain string
// setting, emitted as a CMake `option()` or cached `set()` (spec.md §3
// "feature toggles (bool or string)", §4.9).
type Toggle struct {
	IsBool  bool
	BoolVal bool
	StrVal  string
}

// ProjectGlobals accumulates the includes, defines, flags, and feature
// toggles captured from assignments classified as project-global.
type ProjectGlobals struct {
	Includes map[FlagBucket][]string
	Defines  map[FlagBucket][]string
	Flags    map[FlagBucket][]string
	Toggles  map[string]Toggle
}

func newProjectGlobals() ProjectGlobals {
	return ProjectGlobals{
		Includes: make(map[FlagBucket][]string),
		Defines:  make(map[FlagBucket][]string),
		Flags:    make(map[FlagBucket][]string),
		Toggles:  make(map[string]Toggle),
	}
}

// InferredCompile is one recipe line recognized as a compiler
// invocation (spec.md §4.7 "compile inference").
type InferredCompile struct {
	Language string // "c", "cpp", or "asm"; empty if unresolved
	Sources  []string
	Includes []string
	Defines  []string
	Flags    []string
	Output   string // the -o argument; empty triggers EVAL_NO_SOURCE
	Location diag.Location
}

// EvaluatedRule is a non-pattern Rule after expansion, with its recipe
// lines partitioned into inferred compiles and opaque custom commands.
type EvaluatedRule struct {
	Targets        []string
	Prerequisites  []string
	Recipe         []string
	Compiles       []InferredCompile
	CustomCommands []string
	Location       diag.Location
}

// EvaluatedPatternRule is a PatternRule after expansion. No concrete
// target is known here: $@ and $< expand to the literal target and
// first prerequisite patterns (e.g. "%.o", "%.c"), which the IR Builder
// replaces with concrete names once the rule is matched; $* expands to
// the empty string and is not rebound later.
type EvaluatedPatternRule struct {
	TargetPattern  string
	PrereqPatterns []string
	Recipe         []string
	Compiles       []InferredCompile
	CustomCommands []string
	Location       diag.Location
}

// BuildFacts is the Evaluator's sole output: captured project globals
// plus every evaluated rule and pattern rule, in source order.
type BuildFacts struct {
	Globals      ProjectGlobals
	Rules        []EvaluatedRule
	PatternRules []EvaluatedPatternRule
}

// variable is one environment binding. A recursive binding (from "=",
// "?=", or "+=" onto an unbound or recursive name) stores its raw text
// unexpanded and re-expands it on every lookup; a simple binding (from
// ":=", or "+=" onto a simple name) stores its already-expanded value.
type variable struct {
	kind string // "simple" or "recursive"; see tagSimple/tagRecursive
	raw  string
}

const (
	tagSimple    = "simple"
	tagRecursive = "recursive"
)
