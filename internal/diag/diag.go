// Package diag implements the deduplicated, severity-tagged diagnostic
// sink shared by every stage of the translation pipeline.
//
// A Sink is created once by the Orchestrator and passed by reference
// through Discoverer, Parser, Evaluator, IR Builder, and Emitter. It is
// append-only: stages never remove or mutate a previously recorded
// Diagnostic. No component outside this package touches disk or a
// global; every Sink is an explicit value threaded through calls.
package diag

import "sort"

// Severity classifies a Diagnostic. Values increase with severity (INFO <
// WARN < ERROR); rank gives the presentation order (ERROR first).
type Severity int

const (
	INFO Severity = iota
	WARN
	ERROR
)

func (s Severity) String() string {
	switch s {
	case ERROR:
		return "ERROR"
	case WARN:
		return "WARN"
	default:
		return "INFO"
	}
}

// rank gives the descending presentation order: ERROR, WARN, INFO.
func (s Severity) rank() int {
	switch s {
	case ERROR:
		return 0
	case WARN:
		return 1
	default:
		return 2
	}
}

// Code is a stable short diagnostic identifier, e.g. "DISCOVERY_CYCLE".
type Code string

// Required codes from spec.md §6.
const (
	CodeConfigMissing                 Code = "CONFIG_MISSING"
	CodeConfigSchema                  Code = "CONFIG_SCHEMA"
	CodeDiscoveryEntryMissing         Code = "DISCOVERY_ENTRY_MISSING"
	CodeDiscoveryCycle                Code = "DISCOVERY_CYCLE"
	CodeDiscoveryIncludeOptionalMiss  Code = "DISCOVERY_INCLUDE_OPTIONAL_MISSING"
	CodeFSRead                        Code = "FS_READ"
	CodeParserConditional             Code = "PARSER_CONDITIONAL"
	CodeUnknownConstruct              Code = "UNKNOWN_CONSTRUCT"
	CodeEvalRecursiveLoop             Code = "EVAL_RECURSIVE_LOOP"
	CodeEvalUnsupportedFunc           Code = "EVAL_UNSUPPORTED_FUNC"
	CodeEvalNoSource                  Code = "EVAL_NO_SOURCE"
	CodeIRDupTarget                   Code = "IR_DUP_TARGET"
	CodeIRUnknownDep                  Code = "IR_UNKNOWN_DEP"
	CodeIRUnmappedFlag                Code = "IR_UNMAPPED_FLAG"
	CodeIRDuplicateFlag               Code = "IR_DUPLICATE_FLAG" // I6 open-question resolution
	CodeIRInvalidSources              Code = "IR_INVALID_SOURCES" // I3
	CodeEmitWriteFail                 Code = "EMIT_WRITE_FAIL"
	CodeEmitUnknownType               Code = "EMIT_UNKNOWN_TYPE"
	CodeInternal                      Code = "INTERNAL"
)

// Location is a source position. The zero value means "no location".
type Location struct {
	Path   string
	Line   int
	Column int
}

// IsZero reports whether the location carries no position information.
func (l Location) IsZero() bool {
	return l == Location{}
}

// Diagnostic is one pipeline-reported event. Equality for deduplication
// is the 5-tuple (Severity, Code, Message, Location, Origin).
type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Location Location // optional, zero value if absent
	Origin   string   // optional component tag, e.g. "parser"

	// insertionIndex is assigned by the Sink on first insertion and used
	// only to break ties in the sorted presentation view; it does not
	// participate in equality.
	insertionIndex int
}

func (d Diagnostic) key() Diagnostic {
	d.insertionIndex = 0
	return d
}

// Sink is an append-only, deduplicating collection of Diagnostics.
type Sink struct {
	seen    map[Diagnostic]struct{}
	ordered []Diagnostic
}

// NewSink returns an empty Sink.
func NewSink() *Sink {
	return &Sink{seen: make(map[Diagnostic]struct{})}
}

// Add appends d unless an equal Diagnostic (by the 5-tuple) was already
// recorded. Returns true if d was newly inserted.
func (s *Sink) Add(d Diagnostic) bool {
	k := d.key()
	if _, ok := s.seen[k]; ok {
		return false
	}
	d.insertionIndex = len(s.ordered)
	s.seen[k] = struct{}{}
	s.ordered = append(s.ordered, d)
	return true
}

// AnyError reports whether the sink contains at least one ERROR-severity
// Diagnostic. Used by the Orchestrator to short-circuit before emission
// and to compute the final exit status (P9).
func (s *Sink) AnyError() bool {
	for _, d := range s.ordered {
		if d.Severity == ERROR {
			return true
		}
	}
	return false
}

// All returns every recorded Diagnostic in insertion order.
func (s *Sink) All() []Diagnostic {
	out := make([]Diagnostic, len(s.ordered))
	copy(out, s.ordered)
	return out
}

// Len reports the number of distinct diagnostics recorded.
func (s *Sink) Len() int {
	return len(s.ordered)
}

// Sorted returns a presentation-ordered copy: severity descending, then
// code, then insertion index (spec.md §3).
func (s *Sink) Sorted() []Diagnostic {
	out := s.All()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Severity.rank() != out[j].Severity.rank() {
			return out[i].Severity.rank() < out[j].Severity.rank()
		}
		if out[i].Code != out[j].Code {
			return out[i].Code < out[j].Code
		}
		return out[i].insertionIndex < out[j].insertionIndex
	})
	return out
}
