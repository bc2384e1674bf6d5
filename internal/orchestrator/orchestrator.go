// Package orchestrator wires the translation pipeline end to end
// (spec.md §4.10): Filesystem Boundary, Configuration Model,
// Discoverer, Parser, Evaluator, IR Builder, and Emitter, carrying one
// shared diagnostic sink and unknown-construct registry through every
// stage. A stage whose diagnostics contain any error causes the
// pipeline to short-circuit before emission; diagnostics are always
// rendered regardless.
package orchestrator

import (
	"fmt"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/vinzenz/gmake2cmake/internal/config"
	"github.com/vinzenz/gmake2cmake/internal/diag"
	"github.com/vinzenz/gmake2cmake/internal/discover"
	"github.com/vinzenz/gmake2cmake/internal/emit"
	"github.com/vinzenz/gmake2cmake/internal/eval"
	"github.com/vinzenz/gmake2cmake/internal/fsys"
	"github.com/vinzenz/gmake2cmake/internal/ir"
	"github.com/vinzenz/gmake2cmake/internal/log"
	"github.com/vinzenz/gmake2cmake/internal/parse"
	"github.com/vinzenz/gmake2cmake/internal/unknown"
)

// Options holds one translation run's invocation contract (spec.md
// §6 "Invocation contract").
type Options struct {
	SourceDir     string
	EntryOverride string
	OutputDir     string

	ConfigData   []byte // raw mapping document; nil means "use defaults"
	ConfigFormat config.Format

	DryRun           bool
	PackagingEnabled bool
	Strict           bool

	// DumpConfig short-circuits the run after loading the Configuration
	// Model: the effective config is returned as YAML in Result.ConfigYAML
	// and no further stage runs (spec.md SPEC_FULL.md §C.1).
	DumpConfig bool
}

// Result is everything an external caller (the CLI) needs to report a
// run's outcome.
type Result struct {
	ExitStatus  int
	Diagnostics []diag.Diagnostic
	Unknowns    []unknown.Construct
	Artifacts   []emit.Artifact // nil when any ERROR was recorded; computed but not written when DryRun
	ConfigYAML  string          // populated only for DumpConfig runs
}

// Orchestrator runs one translation over a Filesystem Boundary.
type Orchestrator struct {
	fs     fsys.Boundary
	logger log.Logger
}

// Option configures an Orchestrator at construction time.
type Option func(*Orchestrator)

// WithLogger sets the logger the Orchestrator uses to trace pipeline
// execution. Falls back to log.Default() if never set.
func WithLogger(logger log.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// New returns an Orchestrator bound to fs. Production callers pass
// fsys.New(); tests pass an *fsys.MemBoundary.
func New(fs fsys.Boundary, opts ...Option) *Orchestrator {
	o := &Orchestrator{fs: fs}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = log.Default()
	}
	return o
}

// Run executes the full pipeline for opts (spec.md §4.10).
func (o *Orchestrator) Run(opts Options) *Result {
	sink := diag.NewSink()
	reg := unknown.NewRegistry(sink)

	o.logger.Debug("translation started", "source_dir", opts.SourceDir, "output_dir", opts.OutputDir)

	cfg, ok := o.loadConfig(opts, sink)
	if !ok {
		o.logger.Warn("configuration model rejected run")
		return o.finish(sink, reg, nil)
	}

	if opts.DumpConfig {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			sink.Add(diag.Diagnostic{Severity: diag.ERROR, Code: diag.CodeInternal, Message: fmt.Sprintf("dump-config: %v", err), Origin: "orchestrator"})
			return o.finish(sink, reg, nil)
		}
		o.logger.Debug("dump-config short-circuit")
		return &Result{ExitStatus: 0, Diagnostics: sink.Sorted(), Unknowns: reg.All(), ConfigYAML: string(out)}
	}

	_, files := discover.Discover(opts.SourceDir, opts.EntryOverride, o.fs, sink)
	if sink.AnyError() {
		o.logger.Warn("discovery stage failed", "errors", len(sink.All()))
		return o.finish(sink, reg, nil)
	}
	o.logger.Debug("discovery complete", "files", len(files))

	nodes := o.parseAll(files, sink, reg)
	if sink.AnyError() {
		o.logger.Warn("parser stage failed")
		return o.finish(sink, reg, nil)
	}
	o.logger.Debug("parse complete", "nodes", len(nodes))

	facts := eval.Evaluate(nodes, cfg, o.fs, sink, reg)
	if sink.AnyError() {
		o.logger.Warn("evaluator stage failed")
		return o.finish(sink, reg, nil)
	}
	o.logger.Debug("evaluation complete", "rules", len(facts.Rules), "pattern_rules", len(facts.PatternRules))

	proj := ir.Build(facts, cfg, sink, reg)
	if sink.AnyError() {
		o.logger.Warn("ir builder stage failed")
		return o.finish(sink, reg, nil)
	}
	o.logger.Debug("ir build complete", "targets", len(proj.Targets))

	artifacts := emit.Emit(proj, emit.EmitOptions{OutputDir: opts.OutputDir, PackagingEnabled: opts.PackagingEnabled}, sink, reg)
	if sink.AnyError() {
		o.logger.Warn("emitter stage failed")
		return o.finish(sink, reg, nil)
	}
	o.logger.Debug("emit complete", "artifacts", len(artifacts))

	if !opts.DryRun {
		if err := emit.Flush(artifacts, o.fs, sink); err != nil {
			o.logger.Error("flush failed", "error", err)
			return o.finish(sink, reg, artifacts)
		}
	}

	o.logger.Debug("translation finished")
	return o.finish(sink, reg, artifacts)
}

// parseAll runs the Parser over every discovered file concurrently
// (spec.md §5's optional parallel-parse extension) and merges the
// results back in the Discoverer's parent-before-children order. Each
// worker parses into a local sink/registry so the parallel phase never
// touches shared mutable state; ids and diagnostic insertion order are
// assigned only during the serial merge that follows, keeping them
// monotonic in the merged order as §5 requires.
func (o *Orchestrator) parseAll(files []discover.File, sink *diag.Sink, reg *unknown.Registry) []parse.Node {
	type parsed struct {
		tree *parse.Tree
		sink *diag.Sink
		reg  *unknown.Registry
	}
	results := make([]parsed, len(files))

	var g errgroup.Group
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			localSink := diag.NewSink()
			localReg := unknown.NewRegistry(localSink)
			results[i] = parsed{
				tree: parse.Parse(f.Path, f.Content, localSink, localReg),
				sink: localSink,
				reg:  localReg,
			}
			return nil
		})
	}
	_ = g.Wait() // Parse never returns an error; the join is the merge barrier

	var nodes []parse.Node
	for _, r := range results {
		for _, c := range r.reg.All() {
			reg.Record(c) // re-assigned a fresh, serially-ordered id; mirrors into sink
		}
		for _, d := range r.sink.All() {
			if d.Code == diag.CodeUnknownConstruct {
				continue // already re-mirrored via reg.Record above
			}
			sink.Add(d)
		}
		nodes = append(nodes, r.tree.Nodes...)
	}
	return nodes
}

// loadConfig resolves the Configuration Model. A nil ConfigData yields
// config.Config's zero-mapping defaults (spec.md §4.4); a load/schema
// failure records a CONFIG_SCHEMA error and returns ok=false.
func (o *Orchestrator) loadConfig(opts Options, sink *diag.Sink) (*config.Config, bool) {
	if len(opts.ConfigData) == 0 {
		cfg, _ := config.FromMap(map[string]any{}, sink)
		cfg.Strict = opts.Strict
		cfg.PackagingEnabled = opts.PackagingEnabled
		return cfg, true
	}
	cfg, err := config.Load(opts.ConfigData, opts.ConfigFormat, sink)
	if err != nil {
		if !sink.AnyError() {
			sink.Add(diag.Diagnostic{Severity: diag.ERROR, Code: diag.CodeConfigSchema, Message: err.Error(), Origin: "config"})
		}
		return nil, false
	}
	cfg.Strict = cfg.Strict || opts.Strict
	cfg.PackagingEnabled = cfg.PackagingEnabled || opts.PackagingEnabled
	return cfg, true
}

// finish computes the final exit status (P9: 1 iff the sink contains
// at least one ERROR) and assembles the presentation-ordered Result.
func (o *Orchestrator) finish(sink *diag.Sink, reg *unknown.Registry, artifacts []emit.Artifact) *Result {
	status := 0
	if sink.AnyError() {
		status = 1
		artifacts = nil
	}
	return &Result{
		ExitStatus:  status,
		Diagnostics: sink.Sorted(),
		Unknowns:    reg.All(),
		Artifacts:   artifacts,
	}
}
