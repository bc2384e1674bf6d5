package eval

import (
	"fmt"
	"path"
	"strings"

	"github.com/vinzenz/gmake2cmake/internal/config"
	"github.com/vinzenz/gmake2cmake/internal/diag"
	"github.com/vinzenz/gmake2cmake/internal/fsys"
	"github.com/vinzenz/gmake2cmake/internal/parse"
	"github.com/vinzenz/gmake2cmake/internal/unknown"
)

// Evaluator walks a node stream and accumulates BuildFacts.
type Evaluator struct {
	fs   fsys.Boundary
	cfg  *config.Config
	sink *diag.Sink
	reg  *unknown.Registry

	env           map[string]*variable
	globals       ProjectGlobals
	seenFirstRule bool

	rules        []EvaluatedRule
	patternRules []EvaluatedPatternRule

	// per-rule automatic-variable context, valid only while evaluating
	// that rule's recipe lines.
	curTargets []string
	curPrereqs []string
	curStem    string
	curLoc     diag.Location

	reportedLoops map[string]bool
}

// Evaluate runs the Evaluator over nodes (the Discoverer's concatenated
// node stream) and returns the resulting BuildFacts. fs must be non-nil
// when the nodes call $(wildcard ...); cfg, sink, and reg may be nil.
func Evaluate(nodes []parse.Node, cfg *config.Config, fs fsys.Boundary, sink *diag.Sink, reg *unknown.Registry) *BuildFacts {
	e := &Evaluator{
		fs:            fs,
		cfg:           cfg,
		sink:          sink,
		reg:           reg,
		env:           make(map[string]*variable),
		globals:       newProjectGlobals(),
		reportedLoops: make(map[string]bool),
	}
	e.run(nodes)
	return &BuildFacts{Globals: e.globals, Rules: e.rules, PatternRules: e.patternRules}
}

func (e *Evaluator) run(nodes []parse.Node) {
	for _, n := range nodes {
		e.execNode(n)
	}
}

func (e *Evaluator) execNode(n parse.Node) {
	switch v := n.(type) {
	case *parse.VariableAssign:
		e.processAssign(v)
	case *parse.Rule:
		e.seenFirstRule = true
		e.rules = append(e.rules, e.evalRule(v))
	case *parse.PatternRule:
		e.seenFirstRule = true
		e.patternRules = append(e.patternRules, e.evalPatternRule(v))
	case *parse.Conditional:
		e.execConditional(v)
	default:
		// IncludeStmt/RawCommand: includes are already flattened by the
		// Discoverer before evaluation, and loose shell lines outside any
		// rule body carry no build facts of their own.
	}
}

// --- assignment ---

func (e *Evaluator) processAssign(va *parse.VariableAssign) {
	e.curLoc = va.Location
	switch va.Kind {
	case parse.KindSimple:
		e.env[va.Name] = &variable{kind: tagSimple, raw: e.expand(va.RawValue, nil)}
	case parse.KindAppend:
		e.appendVar(va.Name, va.RawValue)
	case parse.KindConditional:
		if _, ok := e.env[va.Name]; !ok {
			e.env[va.Name] = &variable{kind: tagRecursive, raw: va.RawValue}
		}
	default: // KindRecursive
		e.env[va.Name] = &variable{kind: tagRecursive, raw: va.RawValue}
	}

	if e.isProjectGlobalOrigin(va.Location.Path) {
		e.captureGlobal(va.Name, e.lookupExpanded(va.Name))
	}
}

func (e *Evaluator) appendVar(name, rawValue string) {
	existing, ok := e.env[name]
	if !ok {
		e.env[name] = &variable{kind: tagRecursive, raw: rawValue}
		return
	}
	if existing.kind == tagSimple {
		addition := e.expand(rawValue, nil)
		existing.raw = joinNonEmpty(existing.raw, addition)
	} else {
		existing.raw = joinNonEmpty(existing.raw, rawValue)
	}
}

func joinNonEmpty(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	return a + " " + b
}

func (e *Evaluator) isProjectGlobalOrigin(originPath string) bool {
	if e.cfg != nil && e.cfg.IsGlobalConfigFile(fsys.Base(originPath)) {
		return true
	}
	return !e.seenFirstRule
}

func bucketForVarName(name string) FlagBucket {
	switch {
	case strings.HasSuffix(name, "CFLAGS"):
		return BucketC
	case strings.HasSuffix(name, "CXXFLAGS"), strings.HasSuffix(name, "CPPFLAGS"):
		return BucketCpp
	case strings.HasSuffix(name, "ASFLAGS"):
		return BucketAsm
	case strings.HasSuffix(name, "LDFLAGS"), strings.HasSuffix(name, "LIBS"):
		return BucketLink
	default:
		return BucketAll
	}
}

func (e *Evaluator) captureGlobal(name, expandedValue string) {
	bucket := bucketForVarName(name)
	if bucket == BucketAll && !looksLikeFlags(expandedValue) {
		e.globals.Toggles[name] = toggleFor(expandedValue)
		return
	}
	toks := strings.Fields(expandedValue)
	for i := 0; i < len(toks); i++ {
		tok := toks[i]
		switch {
		case strings.HasPrefix(tok, "-I") && len(tok) > 2:
			e.globals.Includes[bucket] = append(e.globals.Includes[bucket], tok[2:])
		case tok == "-I" && i+1 < len(toks):
			i++
			e.globals.Includes[bucket] = append(e.globals.Includes[bucket], toks[i])
		case strings.HasPrefix(tok, "-D") && len(tok) > 2:
			e.globals.Defines[bucket] = append(e.globals.Defines[bucket], tok[2:])
		case tok == "-D" && i+1 < len(toks):
			i++
			e.globals.Defines[bucket] = append(e.globals.Defines[bucket], toks[i])
		default:
			e.globals.Flags[bucket] = append(e.globals.Flags[bucket], tok)
		}
	}
}

// looksLikeFlags reports whether value is shaped like a compiler flag
// list (every token starts with '-'), as opposed to a feature-toggle
// value such as "yes" or a bare path.
func looksLikeFlags(value string) bool {
	toks := strings.Fields(value)
	if len(toks) == 0 {
		return false
	}
	for _, t := range toks {
		if !strings.HasPrefix(t, "-") {
			return false
		}
	}
	return true
}

var boolToggleValues = map[string]bool{
	"1": true, "0": false,
	"yes": true, "no": false,
	"true": true, "false": false,
	"on": true, "off": false,
}

// toggleFor classifies a project-global value as a boolean switch when
// it matches a recognized on/off spelling, otherwise a string setting
// (spec.md §3 "feature toggles (bool or string)").
func toggleFor(value string) Toggle {
	key := strings.ToLower(strings.TrimSpace(value))
	if b, ok := boolToggleValues[key]; ok {
		return Toggle{IsBool: true, BoolVal: b}
	}
	return Toggle{StrVal: value}
}

// --- conditionals ---

type condResult int

const (
	condTrue condResult = iota
	condFalse
	condIndeterminate
)

func (e *Evaluator) execConditional(cond *parse.Conditional) {
	switch e.evalConditionalTest(cond) {
	case condTrue:
		e.run(cond.TrueBranch)
	case condFalse:
		e.run(cond.FalseBranch)
	default:
		if e.reg != nil {
			e.reg.Record(unknown.Construct{
				Category:        unknown.CategoryConditionalLogic,
				Location:        cond.Location,
				RawSnippet:      cond.RawTest,
				Impact:          unknown.Impact{Phase: unknown.PhaseEvaluate, Severity: diag.WARN},
				CMakeStatus:     unknown.StatusNotGenerated,
				SuggestedAction: unknown.ActionManualReview,
			})
		}
	}
}

func (e *Evaluator) evalConditionalTest(cond *parse.Conditional) condResult {
	test := strings.TrimSpace(cond.RawTest)
	e.curLoc = cond.Location

	if m := ifeqFormRe.FindStringSubmatch(test); m != nil {
		parts := splitArgs(m[2])
		if len(parts) != 2 {
			return condIndeterminate
		}
		a := strings.TrimSpace(e.expand(unquote(parts[0]), nil))
		b := strings.TrimSpace(e.expand(unquote(parts[1]), nil))
		eq := a == b
		if m[1] == "ifneq" {
			eq = !eq
		}
		if eq {
			return condTrue
		}
		return condFalse
	}

	if m := ifdefFormRe.FindStringSubmatch(test); m != nil {
		nonEmpty := strings.TrimSpace(e.lookupExpanded(m[2])) != ""
		if m[1] == "ifndef" {
			nonEmpty = !nonEmpty
		}
		if nonEmpty {
			return condTrue
		}
		return condFalse
	}

	return condIndeterminate
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// --- rules ---

func (e *Evaluator) evalRule(r *parse.Rule) EvaluatedRule {
	e.curTargets = r.Targets
	e.curPrereqs = r.Prerequisites
	e.curStem = ""
	e.curLoc = r.Location

	out := EvaluatedRule{Targets: r.Targets, Prerequisites: r.Prerequisites, Location: r.Location}
	for _, raw := range r.Recipe {
		expanded, compile := e.evalRecipeLine(raw)
		out.Recipe = append(out.Recipe, expanded)
		if compile != nil {
			compile.Location = r.Location
			if compile.Output == "" && e.sink != nil {
				e.sink.Add(diag.Diagnostic{
					Severity: diag.WARN,
					Code:     diag.CodeEvalNoSource,
					Message:  fmt.Sprintf("compile recipe for %v has no -o output", r.Targets),
					Location: r.Location,
					Origin:   "eval",
				})
			}
			out.Compiles = append(out.Compiles, *compile)
		} else if expanded != "" {
			out.CustomCommands = append(out.CustomCommands, expanded)
		}
	}
	return out
}

func (e *Evaluator) evalPatternRule(r *parse.PatternRule) EvaluatedPatternRule {
	e.curTargets = []string{r.TargetPattern}
	e.curPrereqs = r.PrereqPatterns
	e.curStem = ""
	e.curLoc = r.Location

	out := EvaluatedPatternRule{TargetPattern: r.TargetPattern, PrereqPatterns: r.PrereqPatterns, Location: r.Location}
	for _, raw := range r.Recipe {
		expanded, compile := e.evalRecipeLine(raw)
		out.Recipe = append(out.Recipe, expanded)
		if compile != nil {
			compile.Location = r.Location
			out.Compiles = append(out.Compiles, *compile)
		} else if expanded != "" {
			out.CustomCommands = append(out.CustomCommands, expanded)
		}
	}
	return out
}

var compilerTokens = map[string]bool{
	"cc": true, "gcc": true, "clang": true, "c++": true,
	"g++": true, "clang++": true, "cl": true, "as": true, "nasm": true,
}

var sourceExts = map[string]bool{
	".c": true, ".cc": true, ".cpp": true, ".cxx": true, ".c++": true,
	".s": true, ".S": true, ".asm": true,
}

func (e *Evaluator) evalRecipeLine(raw string) (string, *InferredCompile) {
	expanded := e.expand(raw, nil)

	stripped := strings.TrimLeft(expanded, " \t")
	for len(stripped) > 0 && (stripped[0] == '@' || stripped[0] == '-') {
		stripped = strings.TrimLeft(stripped[1:], " \t")
	}

	fields := strings.Fields(stripped)
	idx := 0
	for idx < len(fields) && isInlineAssignment(fields[idx]) {
		idx++
	}
	if idx >= len(fields) {
		return expanded, nil
	}

	first := fields[idx]
	base := path.Base(first)
	if !compilerTokens[first] && !compilerTokens[base] {
		return expanded, nil
	}

	return expanded, e.buildInferredCompile(fields[idx:], base)
}

func isInlineAssignment(tok string) bool {
	if strings.HasPrefix(tok, "-") {
		return false
	}
	eq := strings.IndexByte(tok, '=')
	return eq > 0
}

func (e *Evaluator) buildInferredCompile(tokens []string, compilerBase string) *InferredCompile {
	c := &InferredCompile{Language: languageFromCompiler(compilerBase)}
	for i := 1; i < len(tokens); i++ {
		t := tokens[i]
		switch {
		case strings.HasPrefix(t, "-I") && len(t) > 2:
			c.Includes = append(c.Includes, t[2:])
		case t == "-I" && i+1 < len(tokens):
			i++
			c.Includes = append(c.Includes, tokens[i])
		case strings.HasPrefix(t, "-D") && len(t) > 2:
			c.Defines = append(c.Defines, t[2:])
		case t == "-D" && i+1 < len(tokens):
			i++
			c.Defines = append(c.Defines, tokens[i])
		case t == "-o" && i+1 < len(tokens):
			i++
			c.Output = tokens[i]
		case strings.HasPrefix(t, "-"):
			c.Flags = append(c.Flags, t)
		default:
			if looksLikeSource(t) {
				c.Sources = append(c.Sources, t)
				if c.Language == "" {
					c.Language = languageFromExt(path.Ext(t))
				}
			} else {
				c.Flags = append(c.Flags, t)
			}
		}
	}
	return c
}

func looksLikeSource(tok string) bool {
	return sourceExts[path.Ext(tok)]
}

func languageFromCompiler(base string) string {
	switch base {
	case "g++", "clang++", "c++":
		return "cpp"
	case "as", "nasm":
		return "asm"
	case "cc", "gcc", "clang", "cl":
		return "c"
	}
	return ""
}

func languageFromExt(ext string) string {
	switch ext {
	case ".cc", ".cpp", ".cxx", ".c++":
		return "cpp"
	case ".c":
		return "c"
	case ".s", ".S", ".asm":
		return "asm"
	}
	return ""
}
