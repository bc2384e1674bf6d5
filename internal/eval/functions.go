package eval

import (
	"path"
	"strings"

	"github.com/vinzenz/gmake2cmake/internal/diag"
	"github.com/vinzenz/gmake2cmake/internal/unknown"
)

// knownFunctions is the closed set the Evaluator can execute (spec.md
// §4.7 "Function calls"). Anything else becomes an UnknownConstruct.
var knownFunctions = map[string]func(*Evaluator, string, map[string]bool) string{
	"wildcard":   (*Evaluator).fnWildcard,
	"patsubst":   (*Evaluator).fnPatsubst,
	"addprefix":  (*Evaluator).fnAddPrefix,
	"addsuffix":  (*Evaluator).fnAddSuffix,
	"notdir":     (*Evaluator).fnNotDir,
	"dir":        (*Evaluator).fnDir,
	"basename":   (*Evaluator).fnBasename,
	"filter":     (*Evaluator).fnFilter,
	"filter-out": (*Evaluator).fnFilterOut,
	"strip":      (*Evaluator).fnStrip,
	"subst":      (*Evaluator).fnSubst,
	"foreach":    (*Evaluator).fnForeach,
	"if":         (*Evaluator).fnIf,
}

func unknownFunctionConstruct(name, rawCall string, loc diag.Location) unknown.Construct {
	return unknown.Construct{
		Category:        unknown.CategoryMakeFunction,
		Location:        loc,
		RawSnippet:      "$(" + rawCall + ")",
		NormalizedForm:  "call to unsupported function " + name,
		Impact:          unknown.Impact{Phase: unknown.PhaseEvaluate, Severity: diag.WARN},
		CMakeStatus:     unknown.StatusNotGenerated,
		SuggestedAction: unknown.ActionManualReview,
	}
}

func (e *Evaluator) fnWildcard(args string, inProgress map[string]bool) string {
	pattern := strings.TrimSpace(e.expand(args, inProgress))
	if pattern == "" {
		return ""
	}
	matches := e.globFiles(pattern)
	return strings.Join(e.filterIgnored(matches), " ")
}

func (e *Evaluator) globFiles(pattern string) []string {
	dir := path.Dir(pattern)
	base := path.Base(pattern)
	if dir == "" {
		dir = "."
	}
	names, err := e.fs.ListDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, name := range names {
		ok, err := path.Match(base, name)
		if err != nil || !ok {
			continue
		}
		if dir == "." {
			out = append(out, name)
		} else {
			out = append(out, dir+"/"+name)
		}
	}
	return out
}

func (e *Evaluator) filterIgnored(paths []string) []string {
	if e.cfg == nil || len(e.cfg.IgnorePaths) == 0 {
		return paths
	}
	var out []string
	for _, p := range paths {
		ignored := false
		for _, pat := range e.cfg.IgnorePaths {
			if ignoreMatch(pat, p) {
				ignored = true
				break
			}
		}
		if !ignored {
			out = append(out, p)
		}
	}
	return out
}

func ignoreMatch(pattern, candidate string) bool {
	if ok, err := path.Match(pattern, candidate); err == nil && ok {
		return true
	}
	trimmed := strings.TrimSuffix(pattern, "/**")
	trimmed = strings.TrimSuffix(trimmed, "**")
	return trimmed != "" && strings.HasPrefix(candidate, trimmed)
}

func (e *Evaluator) fnPatsubst(args string, inProgress map[string]bool) string {
	parts := splitArgs(args)
	if len(parts) != 3 {
		return ""
	}
	pattern := strings.TrimSpace(e.expand(parts[0], inProgress))
	replacement := strings.TrimSpace(e.expand(parts[1], inProgress))
	words := strings.Fields(e.expand(parts[2], inProgress))
	out := make([]string, len(words))
	for i, w := range words {
		if r, ok := percentSubst(pattern, replacement, w); ok {
			out[i] = r
		} else {
			out[i] = w
		}
	}
	return strings.Join(out, " ")
}

func (e *Evaluator) fnAddPrefix(args string, inProgress map[string]bool) string {
	parts := splitArgs(args)
	if len(parts) != 2 {
		return ""
	}
	prefix := strings.TrimSpace(e.expand(parts[0], inProgress))
	words := strings.Fields(e.expand(parts[1], inProgress))
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = prefix + w
	}
	return strings.Join(out, " ")
}

func (e *Evaluator) fnAddSuffix(args string, inProgress map[string]bool) string {
	parts := splitArgs(args)
	if len(parts) != 2 {
		return ""
	}
	suffix := strings.TrimSpace(e.expand(parts[0], inProgress))
	words := strings.Fields(e.expand(parts[1], inProgress))
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = w + suffix
	}
	return strings.Join(out, " ")
}

func (e *Evaluator) fnNotDir(args string, inProgress map[string]bool) string {
	words := strings.Fields(e.expand(args, inProgress))
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = path.Base(w)
	}
	return strings.Join(out, " ")
}

func (e *Evaluator) fnDir(args string, inProgress map[string]bool) string {
	words := strings.Fields(e.expand(args, inProgress))
	out := make([]string, len(words))
	for i, w := range words {
		d := path.Dir(w)
		if !strings.HasSuffix(d, "/") {
			d += "/"
		}
		out[i] = d
	}
	return strings.Join(out, " ")
}

func (e *Evaluator) fnBasename(args string, inProgress map[string]bool) string {
	words := strings.Fields(e.expand(args, inProgress))
	out := make([]string, len(words))
	for i, w := range words {
		ext := path.Ext(w)
		out[i] = strings.TrimSuffix(w, ext)
	}
	return strings.Join(out, " ")
}

func (e *Evaluator) fnFilter(args string, inProgress map[string]bool) string {
	return e.filterByPatterns(args, inProgress, true)
}

func (e *Evaluator) fnFilterOut(args string, inProgress map[string]bool) string {
	return e.filterByPatterns(args, inProgress, false)
}

func (e *Evaluator) filterByPatterns(args string, inProgress map[string]bool, keepOnMatch bool) string {
	parts := splitArgs(args)
	if len(parts) != 2 {
		return ""
	}
	patterns := strings.Fields(e.expand(parts[0], inProgress))
	words := strings.Fields(e.expand(parts[1], inProgress))
	var out []string
	for _, w := range words {
		matched := false
		for _, p := range patterns {
			if percentMatch(p, w) {
				matched = true
				break
			}
		}
		if matched == keepOnMatch {
			out = append(out, w)
		}
	}
	return strings.Join(out, " ")
}

func (e *Evaluator) fnStrip(args string, inProgress map[string]bool) string {
	return strings.Join(strings.Fields(e.expand(args, inProgress)), " ")
}

func (e *Evaluator) fnSubst(args string, inProgress map[string]bool) string {
	parts := splitArgs(args)
	if len(parts) != 3 {
		return ""
	}
	from := e.expand(parts[0], inProgress)
	to := e.expand(parts[1], inProgress)
	text := e.expand(parts[2], inProgress)
	if from == "" {
		return text
	}
	return strings.ReplaceAll(text, from, to)
}

func (e *Evaluator) fnForeach(args string, inProgress map[string]bool) string {
	parts := splitArgs(args)
	if len(parts) != 3 {
		return ""
	}
	varName := strings.TrimSpace(parts[0])
	words := strings.Fields(e.expand(parts[1], inProgress))

	saved, hadSaved := e.env[varName]
	var results []string
	for _, w := range words {
		e.env[varName] = &variable{kind: tagSimple, raw: w}
		results = append(results, e.expand(parts[2], inProgress))
	}
	if hadSaved {
		e.env[varName] = saved
	} else {
		delete(e.env, varName)
	}
	return strings.Join(results, " ")
}

func (e *Evaluator) fnIf(args string, inProgress map[string]bool) string {
	parts := splitArgs(args)
	if len(parts) < 2 {
		return ""
	}
	cond := strings.TrimSpace(e.expand(parts[0], inProgress))
	if cond != "" {
		return strings.TrimSpace(e.expand(parts[1], inProgress))
	}
	if len(parts) > 2 {
		return strings.TrimSpace(e.expand(parts[2], inProgress))
	}
	return ""
}

// percentSubst applies a GNU Make %-pattern substitution to word,
// returning its replacement and true if the pattern matched.
func percentSubst(pattern, replacement, word string) (string, bool) {
	idx := strings.IndexByte(pattern, '%')
	if idx < 0 {
		if word == pattern {
			return replacement, true
		}
		return "", false
	}
	prefix, suffix := pattern[:idx], pattern[idx+1:]
	if !strings.HasPrefix(word, prefix) || !strings.HasSuffix(word, suffix) {
		return "", false
	}
	if len(word) < len(prefix)+len(suffix) {
		return "", false
	}
	stem := word[len(prefix) : len(word)-len(suffix)]
	ridx := strings.IndexByte(replacement, '%')
	if ridx < 0 {
		return replacement, true
	}
	return replacement[:ridx] + stem + replacement[ridx+1:], true
}

func percentMatch(pattern, word string) bool {
	idx := strings.IndexByte(pattern, '%')
	if idx < 0 {
		return word == pattern
	}
	prefix, suffix := pattern[:idx], pattern[idx+1:]
	return strings.HasPrefix(word, prefix) && strings.HasSuffix(word, suffix) && len(word) >= len(prefix)+len(suffix)
}
