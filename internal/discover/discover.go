// Package discover implements the Discoverer (spec.md §4.5): it resolves
// the entry Makefile, walks its include/subdir graph with a lightweight
// line scan (never the full Parser), detects cycles, and hands the
// Parser a topologically ordered read list.
package discover

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/vinzenz/gmake2cmake/internal/diag"
	"github.com/vinzenz/gmake2cmake/internal/fsys"
)

// entryCandidates is the default entry-file search order (spec.md §4.5).
var entryCandidates = []string{"Makefile", "makefile", "GNUmakefile"}

// EdgeKind classifies one include-graph edge.
type EdgeKind string

const (
	EdgeInclude         EdgeKind = "include"
	EdgeOptionalInclude EdgeKind = "optional_include"
	EdgeSubdir          EdgeKind = "subdir"
)

// Edge is one directed include-graph edge, From including/invoking To.
type Edge struct {
	From string
	To   string
	Kind EdgeKind
}

// Graph is the deduplicated, normalized include/subdir graph.
type Graph struct {
	Nodes []string // absolute posix paths, in discovery order
	Edges []Edge
}

// File is one node of the Discoverer's output read list.
type File struct {
	Path         string // absolute posix
	Content      string
	IncludedFrom string // "" for the entry file
}

// Discover resolves the entry file under sourceDir (entryOverride wins
// if non-empty), walks the include/subdir graph, and returns it plus a
// parent-before-children ordered read list. On an unresolvable entry
// file, the returned slice is nil and a DISCOVERY_ENTRY_MISSING
// diagnostic has been recorded.
func Discover(sourceDir, entryOverride string, fs fsys.Boundary, sink *diag.Sink) (*Graph, []File) {
	entry, ok := resolveEntry(sourceDir, entryOverride, fs)
	if !ok {
		if sink != nil {
			sink.Add(diag.Diagnostic{
				Severity: diag.ERROR,
				Code:     diag.CodeDiscoveryEntryMissing,
				Message:  fmt.Sprintf("no entry Makefile found under %q", sourceDir),
				Origin:   "discover",
			})
		}
		return nil, nil
	}

	d := &discoverer{fs: fs, sink: sink, entry: entry, colors: map[string]color{}, content: map[string]string{}, includedFrom: map[string]string{}}
	d.visit(entry, nil)

	files := make([]File, 0, len(d.order))
	for _, p := range d.order {
		files = append(files, File{Path: p, Content: d.content[p], IncludedFrom: d.includedFrom[p]})
	}
	return &Graph{Nodes: d.order, Edges: d.edges}, files
}

func resolveEntry(sourceDir, override string, fs fsys.Boundary) (string, bool) {
	if override != "" {
		p := fsys.Join(sourceDir, override)
		if fs.Exist(p) {
			abs, err := fs.AbsPosix(p)
			if err != nil {
				return "", false
			}
			return abs, true
		}
		return "", false
	}
	for _, name := range entryCandidates {
		p := fsys.Join(sourceDir, name)
		if fs.Exist(p) {
			abs, err := fs.AbsPosix(p)
			if err != nil {
				return "", false
			}
			return abs, true
		}
	}
	return "", false
}

type color int

const (
	white color = iota
	gray
	black
)

type discoverer struct {
	fs    fsys.Boundary
	sink  *diag.Sink
	entry string

	colors       map[string]color
	content      map[string]string
	includedFrom map[string]string
	order        []string
	edges        []Edge

	reportedCycles map[string]bool
}

// visit performs the gray/black-colored DFS (spec.md §4.5 step 4). stack
// carries the current root-to-node path for cycle-path reporting.
func (d *discoverer) visit(path string, stack []string) {
	switch d.colors[path] {
	case black:
		return
	case gray:
		d.reportCycle(stack, path)
		return
	}

	d.colors[path] = gray
	d.order = append(d.order, path)
	stack = append(stack, path)

	if _, ok := d.content[path]; !ok {
		text, err := d.fs.ReadFile(path)
		if err != nil {
			if d.sink != nil {
				d.sink.Add(diag.Diagnostic{
					Severity: diag.ERROR,
					Code:     diag.CodeFSRead,
					Message:  fmt.Sprintf("read %s: %v", path, err),
					Origin:   "discover",
				})
			}
			d.colors[path] = black
			return
		}
		d.content[path] = text
	}

	for _, ref := range scanReferences(d.content[path]) {
		d.resolveAndVisit(path, ref, stack)
	}

	d.colors[path] = black
}

func (d *discoverer) resolveAndVisit(from string, ref reference, stack []string) {
	dir := fsys.Dir(from)
	switch ref.kind {
	case EdgeSubdir:
		subdir := fsys.Join(dir, ref.target)
		target, ok := resolveEntry(subdir, "", d.fs)
		if !ok {
			return // a subdir invocation with no Makefile is not this translator's concern
		}
		d.addEdge(from, target, EdgeSubdir, stack)
	default:
		target := ref.target
		if !strings.HasPrefix(target, "/") {
			target = fsys.Join(dir, target)
		}
		abs, err := d.fs.AbsPosix(target)
		if err != nil {
			return
		}
		if !d.fs.Exist(abs) {
			d.warnMissingInclude(abs, ref.kind)
			return
		}
		d.addEdge(from, abs, ref.kind, stack)
	}
}

func (d *discoverer) addEdge(from, to string, kind EdgeKind, stack []string) {
	d.edges = append(d.edges, Edge{From: from, To: to, Kind: kind})
	if _, ok := d.includedFrom[to]; !ok && to != from && to != d.entry {
		d.includedFrom[to] = from
	}
	d.visit(to, stack)
}

func (d *discoverer) warnMissingInclude(path string, kind EdgeKind) {
	if d.sink == nil {
		return
	}
	if kind == EdgeOptionalInclude {
		d.sink.Add(diag.Diagnostic{
			Severity: diag.WARN,
			Code:     diag.CodeDiscoveryIncludeOptionalMiss,
			Message:  fmt.Sprintf("optional include %q does not exist", path),
			Origin:   "discover",
		})
		return
	}
	d.sink.Add(diag.Diagnostic{
		Severity: diag.ERROR,
		Code:     diag.CodeDiscoveryEntryMissing,
		Message:  fmt.Sprintf("mandatory include %q does not exist", path),
		Origin:   "discover",
	})
}

// reportCycle emits DISCOVERY_CYCLE with the full back-edge path: the
// stack segment from the first occurrence of closesAt up to the node
// that closed the cycle, plus closesAt again.
func (d *discoverer) reportCycle(stack []string, closesAt string) {
	if d.sink == nil {
		return
	}
	idx := -1
	for i, p := range stack {
		if p == closesAt {
			idx = i
			break
		}
	}
	var path []string
	if idx >= 0 {
		path = append(path, stack[idx:]...)
	} else {
		path = append(path, stack...)
	}
	path = append(path, closesAt)

	if d.reportedCycles == nil {
		d.reportedCycles = map[string]bool{}
	}
	key := strings.Join(path, " -> ")
	if d.reportedCycles[key] {
		return
	}
	d.reportedCycles[key] = true

	d.sink.Add(diag.Diagnostic{
		Severity: diag.ERROR,
		Code:     diag.CodeDiscoveryCycle,
		Message:  fmt.Sprintf("include cycle: %s", key),
		Origin:   "discover",
	})
}

type reference struct {
	kind   EdgeKind
	target string
}

var (
	includeLineRe = regexp.MustCompile(`^\s*(-include|sinclude|include)\s+(.+?)\s*$`)
	subdirRe      = regexp.MustCompile(`\$\(MAKE\)\s+-C\s*(\S+)`)
)

// scanReferences performs the lightweight line scan spec.md §4.5 step 2
// requires: backslash continuations are joined, but no further Make
// semantics (variable expansion, comment nuance) are applied.
func scanReferences(content string) []reference {
	var refs []reference
	physical := strings.Split(content, "\n")
	for i := 0; i < len(physical); i++ {
		line := physical[i]
		for strings.HasSuffix(strings.TrimRight(line, "\r"), "\\") && i+1 < len(physical) {
			line = strings.TrimSuffix(strings.TrimRight(line, "\r"), "\\") + " "
			i++
			line += physical[i]
		}
		if strings.HasPrefix(line, "\t") {
			// recipe line: only subdir invocations are of interest here
			if m := subdirRe.FindStringSubmatch(line); m != nil {
				refs = append(refs, reference{kind: EdgeSubdir, target: m[1]})
			}
			continue
		}
		trimmed := strings.TrimSpace(line)
		if m := includeLineRe.FindStringSubmatch(trimmed); m != nil {
			kind := EdgeInclude
			if m[1] == "-include" || m[1] == "sinclude" {
				kind = EdgeOptionalInclude
			}
			for _, tok := range strings.Fields(m[2]) {
				refs = append(refs, reference{kind: kind, target: tok})
			}
			continue
		}
		if m := subdirRe.FindStringSubmatch(trimmed); m != nil {
			refs = append(refs, reference{kind: EdgeSubdir, target: m[1]})
		}
	}
	return refs
}
