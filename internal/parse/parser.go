package parse

import (
	"regexp"
	"strings"

	"github.com/vinzenz/gmake2cmake/internal/diag"
	"github.com/vinzenz/gmake2cmake/internal/unknown"
)

var (
	assignRe   = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_.]*)\s*(:=|\?=|\+=|=)\s*(.*)$`)
	includeRe  = regexp.MustCompile(`^(-include|sinclude|include)\s+(.+)$`)
	ifeqRe     = regexp.MustCompile(`^(ifeq|ifneq)\s*\((.*)\)\s*$`)
	ifdefRe    = regexp.MustCompile(`^(ifdef|ifndef)\s+(\S+)\s*$`)
)

// terminator reports why a block-parsing call returned.
type terminator int

const (
	termEndif terminator = iota
	termElse
	termEOF
)

// Parse turns content (one Makefile's full text) into a Tree. sink and
// reg receive PARSER_CONDITIONAL diagnostics and make_syntax unknown
// constructs respectively (spec.md §4.6); both may be nil in tests that
// don't care about side channels.
func Parse(path, content string, sink *diag.Sink, reg *unknown.Registry) *Tree {
	lines := joinContinuations(content)
	p := &parser{path: path, lines: lines, sink: sink, reg: reg}
	nodes, _, term := p.parseBlock(0, false)
	if term != termEOF {
		// A stray else/endif at the very top level was already reported
		// by parseBlock; nothing further to do.
		_ = term
	}
	return &Tree{Path: path, Nodes: nodes}
}

type parser struct {
	path  string
	lines []logicalLine
	sink  *diag.Sink
	reg   *unknown.Registry
}

func (p *parser) loc(line int) diag.Location {
	return diag.Location{Path: p.path, Line: line}
}

// parseBlock consumes lines starting at pos until it sees (a) an
// "else"/"endif" it does not own (inConditional controls which one
// terminates it), or (b) end of input. It returns the nodes collected,
// the index of the terminating line (or len(p.lines) on EOF), and why
// it stopped.
func (p *parser) parseBlock(pos int, inConditional bool) ([]Node, int, terminator) {
	var nodes []Node
	var curRule *Rule
	var curPattern *PatternRule

	closeRule := func() {
		if curRule != nil {
			nodes = append(nodes, curRule)
			curRule = nil
		}
		if curPattern != nil {
			nodes = append(nodes, curPattern)
			curPattern = nil
		}
	}

	for pos < len(p.lines) {
		ll := p.lines[pos]
		raw := ll.text

		// Tab-indented lines belong to the current rule body's recipe
		// regardless of their text (GNU Make treats the literal leading
		// TAB as the recipe marker, taking priority over any directive
		// keyword the text might otherwise resemble).
		if (curRule != nil || curPattern != nil) && strings.HasPrefix(raw, "\t") {
			recipeLine := raw[1:]
			if curRule != nil {
				curRule.Recipe = append(curRule.Recipe, recipeLine)
			} else {
				curPattern.Recipe = append(curPattern.Recipe, recipeLine)
			}
			pos++
			continue
		}

		trimmed := strings.TrimSpace(stripComment(raw))
		if trimmed == "" {
			// Blank (or comment-only) lines never end a rule body.
			pos++
			continue
		}

		switch {
		case trimmed == "else":
			closeRule()
			if inConditional {
				return nodes, pos, termElse
			}
			p.conditionalError(pos, "else without matching if")
			pos++
			continue

		case trimmed == "endif":
			closeRule()
			if inConditional {
				return nodes, pos, termEndif
			}
			p.conditionalError(pos, "endif without matching if")
			pos++
			continue

		case ifeqRe.MatchString(trimmed) || ifdefRe.MatchString(trimmed):
			closeRule()
			cond, next := p.parseConditional(pos, trimmed)
			nodes = append(nodes, cond)
			pos = next
			continue

		case includeRe.MatchString(trimmed):
			closeRule()
			m := includeRe.FindStringSubmatch(trimmed)
			nodes = append(nodes, &IncludeStmt{
				Paths:    strings.Fields(m[2]),
				Optional: m[1] != "include",
				Location: p.loc(ll.line),
			})
			pos++
			continue
		}

		// Rule vs. assignment: a top-level ':' not forming ":=" makes a
		// rule; otherwise fall through to assignment recognition.
		if idx := findTopLevelColon(trimmed); idx >= 0 && !(idx+1 < len(trimmed) && trimmed[idx+1] == '=') {
			closeRule()
			targets := strings.Fields(trimmed[:idx])
			prereqs := strings.Fields(trimmed[idx+1:])
			if containsPercent(targets) {
				curPattern = &PatternRule{
					TargetPattern:  firstOrEmpty(targets),
					PrereqPatterns: prereqs,
					Location:       p.loc(ll.line),
				}
			} else {
				curRule = &Rule{
					Targets:       targets,
					Prerequisites: prereqs,
					Location:      p.loc(ll.line),
				}
			}
			pos++
			continue
		}

		if m := assignRe.FindStringSubmatch(trimmed); m != nil {
			closeRule()
			nodes = append(nodes, &VariableAssign{
				Name:     m[1],
				RawValue: m[3],
				Kind:     assignKindOf(m[2]),
				Location: p.loc(ll.line),
			})
			pos++
			continue
		}

		// Unrecognized construct: record and continue (spec.md §4.6.6).
		closeRule()
		p.recordUnknown(ll, trimmed)
		pos++
	}

	closeRule()
	if inConditional {
		return nodes, pos, termEOF
	}
	return nodes, pos, termEOF
}

// parseConditional builds a Conditional node starting at the ifeq/
// ifneq/ifdef/ifndef line at pos, consuming through its matching endif
// (and optional else). Missing endif is reported once, at the opening
// line's location, per spec.md §4.6.1.
func (p *parser) parseConditional(pos int, testLine string) (*Conditional, int) {
	loc := p.loc(p.lines[pos].line)
	trueNodes, next, term := p.parseBlock(pos+1, true)

	var falseNodes []Node
	switch term {
	case termElse:
		falseNodes, next, term = p.parseBlock(next+1, true)
		if term == termEOF {
			p.conditionalErrorAt(loc, "missing endif")
		} else {
			next++ // consume the endif line
		}
	case termEndif:
		next++ // consume the endif line
	case termEOF:
		p.conditionalErrorAt(loc, "missing endif")
	}

	return &Conditional{RawTest: testLine, TrueBranch: trueNodes, FalseBranch: falseNodes, Location: loc}, next
}

func (p *parser) conditionalError(pos int, msg string) {
	line := 0
	if pos < len(p.lines) {
		line = p.lines[pos].line
	}
	p.conditionalErrorAt(p.loc(line), msg)
}

func (p *parser) conditionalErrorAt(loc diag.Location, msg string) {
	if p.sink == nil {
		return
	}
	p.sink.Add(diag.Diagnostic{
		Severity: diag.ERROR,
		Code:     diag.CodeParserConditional,
		Message:  msg,
		Location: loc,
		Origin:   "parser",
	})
}

func (p *parser) recordUnknown(ll logicalLine, text string) {
	if p.reg == nil {
		return
	}
	p.reg.Record(unknown.Construct{
		Category:        unknown.CategoryMakeSyntax,
		Location:        p.loc(ll.line),
		RawSnippet:      text,
		Impact:          unknown.Impact{Phase: unknown.PhaseParse, Severity: diag.WARN},
		CMakeStatus:     unknown.StatusNotGenerated,
		SuggestedAction: unknown.ActionManualReview,
	})
}

func assignKindOf(op string) AssignKind {
	switch op {
	case ":=":
		return KindSimple
	case "+=":
		return KindAppend
	case "?=":
		return KindConditional
	default:
		return KindRecursive
	}
}

func containsPercent(targets []string) bool {
	for _, t := range targets {
		if strings.Contains(t, "%") {
			return true
		}
	}
	return false
}

func firstOrEmpty(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

// findTopLevelColon returns the index of the first ':' not nested
// inside a $(...) or ${...} expansion, or -1 if none exists.
func findTopLevelColon(s string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch {
		case i+1 < len(s) && s[i] == '$' && (s[i+1] == '(' || s[i+1] == '{'):
			depth++
			i++
		case depth > 0 && (s[i] == ')' || s[i] == '}'):
			depth--
		case s[i] == ':' && depth == 0:
			return i
		}
	}
	return -1
}
