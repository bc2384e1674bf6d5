package eval

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/vinzenz/gmake2cmake/internal/diag"
)

var (
	ifeqFormRe  = regexp.MustCompile(`^(ifeq|ifneq)\s*\((.*)\)\s*$`)
	ifdefFormRe = regexp.MustCompile(`^(ifdef|ifndef)\s+(\S+)\s*$`)
)

// lookupExpanded resolves name to its fully expanded value, following
// a recursive binding's stored text if necessary.
func (e *Evaluator) lookupExpanded(name string) string {
	v, ok := e.env[name]
	if !ok {
		return ""
	}
	if v.kind != tagRecursive {
		return v.raw
	}
	return e.expand(v.raw, map[string]bool{name: true})
}

// expand performs textual expansion of $(NAME), ${NAME}, automatic
// variables, recognized function calls, and single-letter variable
// references in text, repeating until no $ remains reachable or a
// cycle is detected (spec.md §4.7 "Expansion").
func (e *Evaluator) expand(text string, inProgress map[string]bool) string {
	var out strings.Builder
	i := 0
	for i < len(text) {
		if text[i] != '$' || i+1 >= len(text) {
			out.WriteByte(text[i])
			i++
			continue
		}
		c := text[i+1]
		switch {
		case c == '(' || c == '{':
			closeIdx := matchDelim(text, i+1)
			if closeIdx < 0 {
				out.WriteByte(text[i])
				i++
				continue
			}
			inner := text[i+2 : closeIdx]
			out.WriteString(e.expandGroup(inner, inProgress))
			i = closeIdx + 1
		case c == '$':
			out.WriteByte('$')
			i += 2
		case isAutoVarChar(c):
			out.WriteString(e.autoVar(c))
			i += 2
		default:
			out.WriteString(e.expandVar(string(c), inProgress))
			i += 2
		}
	}
	return out.String()
}

// matchDelim returns the index of the delimiter matching text[open]
// ('(' or '{'), respecting nested delimiters of the same kind pair, or
// -1 if unterminated.
func matchDelim(text string, open int) int {
	openCh := text[open]
	var closeCh byte
	if openCh == '(' {
		closeCh = ')'
	} else {
		closeCh = '}'
	}
	depth := 1
	for i := open + 1; i < len(text); i++ {
		switch text[i] {
		case openCh:
			depth++
		case closeCh:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func isAutoVarChar(c byte) bool {
	return c == '@' || c == '<' || c == '^' || c == '?' || c == '*'
}

func (e *Evaluator) autoVar(c byte) string {
	switch c {
	case '@':
		return firstOrEmpty(e.curTargets)
	case '<':
		return firstOrEmpty(e.curPrereqs)
	case '^':
		return strings.Join(dedupPreserveOrder(e.curPrereqs), " ")
	case '?':
		return strings.Join(e.curPrereqs, " ")
	case '*':
		return e.curStem
	}
	return ""
}

func firstOrEmpty(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

func dedupPreserveOrder(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if !seen[it] {
			seen[it] = true
			out = append(out, it)
		}
	}
	return out
}

// expandVar resolves a variable reference, guarding against recursive
// self-reference cycles (spec.md §4.7).
func (e *Evaluator) expandVar(name string, inProgress map[string]bool) string {
	if inProgress[name] {
		e.reportLoop(name)
		return ""
	}
	v, ok := e.env[name]
	if !ok {
		return ""
	}
	if v.kind != tagRecursive {
		return v.raw
	}
	nested := make(map[string]bool, len(inProgress)+1)
	for k := range inProgress {
		nested[k] = true
	}
	nested[name] = true
	return e.expand(v.raw, nested)
}

func (e *Evaluator) reportLoop(name string) {
	if e.sink == nil || e.reportedLoops[name] {
		return
	}
	e.reportedLoops[name] = true
	e.sink.Add(diag.Diagnostic{
		Severity: diag.ERROR,
		Code:     diag.CodeEvalRecursiveLoop,
		Message:  fmt.Sprintf("recursive expansion loop closes on %q", name),
		Location: e.curLoc,
		Origin:   "eval",
	})
}

// expandGroup handles the content of a $(...) or ${...} expansion: a
// recognized/unrecognized function call if the leading token looks
// like a function name followed by whitespace, otherwise a plain
// variable reference.
func (e *Evaluator) expandGroup(inner string, inProgress map[string]bool) string {
	if head, rest, ok := splitFuncHead(inner); ok {
		if fn, known := knownFunctions[head]; known {
			return fn(e, rest, inProgress)
		}
		e.recordUnknownFunction(head, inner)
		return ""
	}
	return e.expandVar(strings.TrimSpace(inner), inProgress)
}

func (e *Evaluator) recordUnknownFunction(name, rawCall string) {
	if e.reg == nil {
		return
	}
	e.reg.Record(unknownFunctionConstruct(name, rawCall, e.curLoc))
}

func splitFuncHead(inner string) (head, rest string, ok bool) {
	idx := strings.IndexAny(inner, " \t")
	if idx < 0 {
		return "", "", false
	}
	head = inner[:idx]
	if !isFuncNameToken(head) {
		return "", "", false
	}
	return head, inner[idx+1:], true
}

func isFuncNameToken(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '-') {
			return false
		}
	}
	return true
}

// splitArgs splits a function's argument text on top-level commas,
// i.e. commas not nested inside a further $(...) or ${...} expansion.
func splitArgs(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '{':
			depth++
		case ')', '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}
