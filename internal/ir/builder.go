package ir

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vinzenz/gmake2cmake/internal/config"
	"github.com/vinzenz/gmake2cmake/internal/diag"
	"github.com/vinzenz/gmake2cmake/internal/eval"
	"github.com/vinzenz/gmake2cmake/internal/fsys"
	"github.com/vinzenz/gmake2cmake/internal/unknown"
)

// artifactGroup accumulates everything the Evaluator attributed to one
// raw Make artifact name (a rule's primary target) before it becomes a
// Target.
type artifactGroup struct {
	rawName        string
	compiles       []eval.InferredCompile
	customCommands []string
	prerequisites  []string
	locations      []diag.Location
}

// Build transforms facts and cfg into a validated Project. sink
// receives every IR_* diagnostic the build and validation passes
// produce; this stage records nothing in reg.
func Build(facts *eval.BuildFacts, cfg *config.Config, sink *diag.Sink, reg *unknown.Registry) *Project {
	b := &builder{cfg: cfg, sink: sink, reg: reg, warnedFlags: map[string]bool{}, warnedDeps: map[string]bool{}, warnedDup: map[string]bool{}}
	return b.build(facts)
}

type builder struct {
	cfg *config.Config
	sink *diag.Sink
	reg *unknown.Registry

	warnedFlags map[string]bool
	warnedDeps  map[string]bool
	warnedDup   map[string]bool
}

func (b *builder) build(facts *eval.BuildFacts) *Project {
	groups, order := b.groupArtifacts(facts)

	physicalOf := make(map[string]string, len(order)) // rawName -> physicalName
	seenPhysical := make(map[string]string, len(order)) // physicalName -> rawName (first winner)
	var targets []*Target

	for _, rawName := range order {
		g := groups[rawName]
		typ := classifyType(rawName)
		physical := sanitizePhysicalName(rawName)

		if existingRaw, dup := seenPhysical[physical]; dup {
			if b.sink != nil {
				b.sink.Add(diag.Diagnostic{
					Severity: diag.ERROR,
					Code:     diag.CodeIRDupTarget,
					Message:  fmt.Sprintf("artifacts %q and %q both sanitize to physical target name %q", existingRaw, rawName, physical),
					Location: firstLoc(g.locations),
					Origin:   "ir",
				})
			}
			continue
		}
		seenPhysical[physical] = rawName
		physicalOf[rawName] = physical

		t := &Target{PhysicalName: physical, Type: typ, Visibility: config.VisibilityPrivate}
		if typ.IsLibrary() {
			t.Alias = namespacedAlias(b.cfg, physical)
		}
		targets = append(targets, t)
	}

	// Second pass: populate sources/includes/defines/options/link info
	// now that every artifact's physical name is known (dependency
	// resolution needs the full name table).
	for i, rawName := range order {
		_ = i
		g := groups[rawName]
		t := targetByRaw(targets, physicalOf, rawName)
		if t == nil {
			continue // dropped as a duplicate in the first pass
		}
		b.populateTarget(t, g, physicalOf)
	}

	b.applyTargetMappings(targets, order, physicalOf)
	b.applyFlagMappings(targets)

	proj := &Project{
		Name:      b.cfg.ProjectName,
		Version:   b.cfg.Version,
		Namespace: b.cfg.Namespace,
		Languages: b.cfg.Languages,
		Targets:   targets,
		Globals:   facts.Globals,
	}
	b.attachDependencies(proj, groups, order, physicalOf)
	b.dedupAgainstGlobals(proj)
	b.validate(proj)
	b.sortProject(proj)
	return proj
}

// validate enforces I3: interface/imported targets never carry sources.
func (b *builder) validate(proj *Project) {
	for _, t := range proj.Targets {
		if (t.Type == TypeInterface || t.Type == TypeImported) && len(t.Sources) > 0 {
			if b.sink != nil {
				b.sink.Add(diag.Diagnostic{
					Severity: diag.WARN,
					Code:     diag.CodeIRInvalidSources,
					Message:  fmt.Sprintf("target %q of type %s cannot carry sources; sources dropped", t.PhysicalName, t.Type),
					Origin:   "ir",
				})
			}
			t.Sources = nil
		}
	}
}

func targetByRaw(targets []*Target, physicalOf map[string]string, rawName string) *Target {
	physical, ok := physicalOf[rawName]
	if !ok {
		return nil
	}
	for _, t := range targets {
		if t.PhysicalName == physical {
			return t
		}
	}
	return nil
}

// groupArtifacts maps every evaluated rule's primary target to an
// artifactGroup, preserving first-seen order (spec.md §4.8 "Target
// grouping"). Pattern rules are never added under their raw pattern
// text; they are instantiated against concrete prerequisites first
// (spec.md DESIGN NOTES §9).
func (b *builder) groupArtifacts(facts *eval.BuildFacts) (map[string]*artifactGroup, []string) {
	groups := make(map[string]*artifactGroup)
	var order []string

	add := func(name string, compiles []eval.InferredCompile, custom []string, prereqs []string, loc diag.Location) {
		if name == "" {
			return
		}
		g, ok := groups[name]
		if !ok {
			g = &artifactGroup{rawName: name}
			groups[name] = g
			order = append(order, name)
		}
		g.compiles = append(g.compiles, compiles...)
		g.customCommands = append(g.customCommands, custom...)
		g.prerequisites = append(g.prerequisites, prereqs...)
		g.locations = append(g.locations, loc)
	}

	for _, r := range facts.Rules {
		if len(r.Targets) == 0 {
			continue
		}
		add(r.Targets[0], r.Compiles, r.CustomCommands, r.Prerequisites, r.Location)
	}

	concretePrereqs := map[string]bool{}
	for _, r := range facts.Rules {
		for _, p := range r.Prerequisites {
			concretePrereqs[p] = true
		}
	}
	var concreteNames []string
	for name := range concretePrereqs {
		concreteNames = append(concreteNames, name)
	}
	sort.Strings(concreteNames)

	for _, r := range facts.PatternRules {
		if r.TargetPattern == "" || !strings.ContainsRune(r.TargetPattern, '%') {
			continue
		}
		for _, concrete := range concreteNames {
			stem, ok := matchStem(r.TargetPattern, concrete)
			if !ok {
				continue
			}
			sources := instantiatePatterns(r.PrereqPatterns, stem)
			compiles := instantiateCompiles(r.Compiles, r.TargetPattern, r.PrereqPatterns, concrete, stem)
			custom := instantiateCustomCommands(r.CustomCommands, r.TargetPattern, r.PrereqPatterns, concrete, stem)
			add(concrete, compiles, custom, sources, r.Location)
		}
	}
	return groups, order
}

// matchStem reports whether name matches pattern (exactly one '%') and,
// if so, the text the '%' stands for.
func matchStem(pattern, name string) (string, bool) {
	idx := strings.IndexByte(pattern, '%')
	if idx < 0 {
		return "", false
	}
	prefix, suffix := pattern[:idx], pattern[idx+1:]
	if len(name) < len(prefix)+len(suffix) {
		return "", false
	}
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
		return "", false
	}
	return name[len(prefix) : len(name)-len(suffix)], true
}

// substituteStem replaces the '%' in pattern with stem; patterns
// without '%' pass through unchanged.
func substituteStem(pattern, stem string) string {
	idx := strings.IndexByte(pattern, '%')
	if idx < 0 {
		return pattern
	}
	return pattern[:idx] + stem + pattern[idx+1:]
}

func instantiatePatterns(patterns []string, stem string) []string {
	out := make([]string, len(patterns))
	for i, p := range patterns {
		out[i] = substituteStem(p, stem)
	}
	return out
}

// instantiateCompiles rewrites the pattern rule's recipe-inferred
// compiles for one matched concrete target, substituting the literal
// pattern text the Evaluator left in place for $@ and $< (the
// Evaluator cannot resolve automatic variables without a concrete
// stem; see EvaluatedPatternRule). At most one InferredCompile is
// produced per matched concrete source (spec.md DESIGN NOTES §9).
func instantiateCompiles(compiles []eval.InferredCompile, targetPattern string, prereqPatterns []string, concreteTarget, stem string) []eval.InferredCompile {
	if len(compiles) == 0 {
		return nil
	}
	subst := map[string]string{targetPattern: concreteTarget}
	for _, pp := range prereqPatterns {
		subst[pp] = substituteStem(pp, stem)
	}
	c := compiles[0]
	out := eval.InferredCompile{
		Language: c.Language,
		Output:   substituteToken(c.Output, subst),
		Location: c.Location,
	}
	for _, s := range c.Sources {
		out.Sources = append(out.Sources, substituteToken(s, subst))
	}
	for _, inc := range c.Includes {
		out.Includes = append(out.Includes, substituteToken(inc, subst))
	}
	for _, def := range c.Defines {
		out.Defines = append(out.Defines, substituteToken(def, subst))
	}
	for _, f := range c.Flags {
		out.Flags = append(out.Flags, substituteToken(f, subst))
	}
	return []eval.InferredCompile{out}
}

func instantiateCustomCommands(commands []string, targetPattern string, prereqPatterns []string, concreteTarget, stem string) []string {
	if len(commands) == 0 {
		return nil
	}
	subst := map[string]string{targetPattern: concreteTarget}
	for _, pp := range prereqPatterns {
		subst[pp] = substituteStem(pp, stem)
	}
	out := make([]string, len(commands))
	for i, cmd := range commands {
		for from, to := range subst {
			cmd = strings.ReplaceAll(cmd, from, to)
		}
		out[i] = cmd
	}
	return out
}

func substituteToken(tok string, subst map[string]string) string {
	if replacement, ok := subst[tok]; ok {
		return replacement
	}
	return tok
}

func firstLoc(locs []diag.Location) diag.Location {
	if len(locs) == 0 {
		return diag.Location{}
	}
	return locs[0]
}

var typeBySuffix = map[string]TargetType{
	"":      TypeExecutable,
	".exe":  TypeExecutable,
	".a":    TypeStaticLibrary,
	".lib":  TypeStaticLibrary,
	".so":   TypeSharedLibrary,
	".dylib": TypeSharedLibrary,
	".dll":  TypeSharedLibrary,
	".o":    TypeObjectLibrary,
	".obj":  TypeObjectLibrary,
}

func classifyType(artifact string) TargetType {
	ext := strings.ToLower(extOf(artifact))
	if t, ok := typeBySuffix[ext]; ok {
		return t
	}
	return TypeCustom
}

func extOf(p string) string {
	idx := strings.LastIndexByte(p, '.')
	slash := strings.LastIndexByte(p, '/')
	if idx <= slash {
		return ""
	}
	return p[idx:]
}

func sanitizePhysicalName(artifact string) string {
	base := fsys.Base(artifact)
	base = fsys.TrimExt(base)
	base = strings.TrimPrefix(base, "lib")
	return base
}

func namespacedAlias(cfg *config.Config, logical string) string {
	ns := "Project"
	if cfg != nil && cfg.Namespace != "" {
		ns = cfg.Namespace
	}
	return ns + "::" + logical
}

// populateTarget merges an artifactGroup's compiles into t: sources,
// include dirs, defines, and the flag/link-library split.
func (b *builder) populateTarget(t *Target, g *artifactGroup, physicalOf map[string]string) {
	sourceSet := map[string]*SourceFile{}
	var sourceOrder []string
	includeSet := map[string]bool{}
	defineSet := map[string]bool{}
	compileOptSet := map[string]bool{}
	linkOptSet := map[string]bool{}
	linkRefSet := map[string]bool{}
	var includes, defines, compileOpts, linkOpts, linkRefs []string
	var languages []string
	langSeen := map[string]bool{}

	for _, c := range g.compiles {
		if c.Language != "" && !langSeen[c.Language] {
			langSeen[c.Language] = true
			languages = append(languages, c.Language)
		}
		for _, src := range c.Sources {
			p := fsys.ToPosix(src)
			if existing, ok := sourceSet[p]; ok {
				existing.Flags = mergeUnique(existing.Flags, c.Flags)
				continue
			}
			sf := &SourceFile{Path: p, Language: c.Language, Flags: append([]string(nil), c.Flags...)}
			sourceSet[p] = sf
			sourceOrder = append(sourceOrder, p)
		}
		for _, inc := range c.Includes {
			if !includeSet[inc] {
				includeSet[inc] = true
				includes = append(includes, inc)
			}
		}
		for _, def := range c.Defines {
			if !defineSet[def] {
				defineSet[def] = true
				defines = append(defines, def)
			}
		}
		for _, f := range c.Flags {
			switch {
			case strings.HasPrefix(f, "-l") && len(f) > 2:
				ref := f[2:]
				if !linkRefSet[ref] {
					linkRefSet[ref] = true
					linkRefs = append(linkRefs, ref)
				}
			case strings.HasPrefix(f, "-L"):
				if !linkOptSet[f] {
					linkOptSet[f] = true
					linkOpts = append(linkOpts, f)
				}
			default:
				if !compileOptSet[f] {
					compileOptSet[f] = true
					compileOpts = append(compileOpts, f)
				}
			}
		}
	}

	sort.Strings(sourceOrder)
	for _, p := range sourceOrder {
		t.Sources = append(t.Sources, *sourceSet[p])
	}
	t.IncludeDirs = includes
	t.Defines = defines
	t.CompileOptions = compileOpts
	t.LinkOptions = linkOpts
	t.CustomCommands = g.customCommands
	if len(languages) > 0 {
		sort.Strings(languages)
	}

	producedPhysical := make(map[string]string, len(physicalOf))
	for raw, phys := range physicalOf {
		producedPhysical[raw] = phys
		producedPhysical[phys] = phys
	}
	for _, ref := range linkRefs {
		t.LinkLibraries = append(t.LinkLibraries, b.classifyLinkRef(ref, producedPhysical))
	}
}

func mergeUnique(a, b []string) []string {
	seen := map[string]bool{}
	for _, x := range a {
		seen[x] = true
	}
	out := append([]string(nil), a...)
	for _, x := range b {
		if !seen[x] {
			seen[x] = true
			out = append(out, x)
		}
	}
	return out
}

func (b *builder) classifyLinkRef(ref string, producedPhysical map[string]string) LinkItem {
	if b.cfg != nil {
		if ov, ok := b.cfg.LinkOverrides[ref]; ok {
			switch ov.Classification {
			case config.ClassificationInternal:
				name := ov.Alias
				if name == "" {
					name = ref
				}
				return LinkItem{Name: name, Kind: LinkInternal}
			case config.ClassificationImported:
				name := ov.ImportedTarget
				if name == "" {
					name = ref
				}
				return LinkItem{Name: name, Kind: LinkImported}
			default:
				return LinkItem{Name: ref, Kind: LinkExternal}
			}
		}
	}
	if phys, ok := producedPhysical[ref]; ok {
		return LinkItem{Name: b.aliasOrPhysical(phys), Kind: LinkInternal}
	}
	if strings.HasPrefix(ref, "/") {
		return LinkItem{Name: ref, Kind: LinkImported}
	}
	return LinkItem{Name: ref, Kind: LinkExternal}
}

func (b *builder) aliasOrPhysical(physical string) string {
	return namespacedAlias(b.cfg, physical)
}

// attachDependencies sets each target's Dependencies from prerequisites
// that resolve to produced artifacts, warning IR_UNKNOWN_DEP for any
// non-source prerequisite that resolves to nothing (spec.md §4.8
// "Dependency attachment").
func (b *builder) attachDependencies(proj *Project, groups map[string]*artifactGroup, order []string, physicalOf map[string]string) {
	for _, rawName := range order {
		t := targetByPhysical(proj, physicalOf[rawName])
		if t == nil {
			continue
		}
		g := groups[rawName]
		seen := map[string]bool{}
		for _, prereq := range g.prerequisites {
			if isSourceLikePrereq(prereq) {
				continue
			}
			var resolved string
			if phys, ok := physicalOf[prereq]; ok {
				resolved = phys
			} else if _, ok := proj.targetExistsByPhysical(prereq); ok {
				resolved = prereq
			} else {
				resolved = prereq
				b.warnUnknownDep(prereq)
			}
			if !seen[resolved] {
				seen[resolved] = true
				t.Dependencies = append(t.Dependencies, resolved)
			}
		}
	}
}

func (p *Project) targetExistsByPhysical(name string) (string, bool) {
	for _, t := range p.Targets {
		if t.PhysicalName == name {
			return name, true
		}
	}
	return "", false
}

func targetByPhysical(p *Project, physical string) *Target {
	for _, t := range p.Targets {
		if t.PhysicalName == physical {
			return t
		}
	}
	return nil
}

var sourceLikeExts = map[string]bool{
	".c": true, ".cc": true, ".cpp": true, ".cxx": true, ".c++": true,
	".s": true, ".S": true, ".asm": true, ".h": true, ".hpp": true,
}

func isSourceLikePrereq(name string) bool {
	return sourceLikeExts[extOf(name)]
}

func (b *builder) warnUnknownDep(name string) {
	if b.warnedDeps[name] {
		return
	}
	b.warnedDeps[name] = true
	if b.sink != nil {
		b.sink.Add(diag.Diagnostic{
			Severity: diag.WARN,
			Code:     diag.CodeIRUnknownDep,
			Message:  fmt.Sprintf("dependency %q does not resolve to any produced artifact", name),
			Origin:   "ir",
		})
	}
}

// applyTargetMappings applies config.TargetMappings, keyed by the
// original raw Make artifact name (spec.md §4.8 "Application of
// configuration").
func (b *builder) applyTargetMappings(targets []*Target, order []string, physicalOf map[string]string) {
	if b.cfg == nil {
		return
	}
	for rawName, mapping := range b.cfg.TargetMappings {
		physical, ok := physicalOf[rawName]
		if !ok {
			continue
		}
		t := findByPhysical(targets, physical)
		if t == nil {
			continue
		}
		if mapping.DestName != "" {
			t.PhysicalName = mapping.DestName
			if t.Type.IsLibrary() {
				t.Alias = namespacedAlias(b.cfg, mapping.DestName)
			}
		}
		if mapping.TypeOverride != "" {
			t.Type = TargetType(mapping.TypeOverride)
			if t.Type.IsLibrary() && t.Alias == "" {
				t.Alias = namespacedAlias(b.cfg, t.PhysicalName)
			}
		}
		if mapping.Visibility != "" {
			t.Visibility = mapping.Visibility
		}
		t.IncludeDirs = mergeUnique(t.IncludeDirs, mapping.IncludeDirs)
		t.Defines = mergeUnique(t.Defines, mapping.Defines)
		t.CompileOptions = mergeUnique(t.CompileOptions, mapping.Options)
		for _, ref := range mapping.LinkLibs {
			t.LinkLibraries = append(t.LinkLibraries, b.classifyLinkRef(ref, map[string]string{}))
		}
	}
}

func findByPhysical(targets []*Target, physical string) *Target {
	for _, t := range targets {
		if t.PhysicalName == physical {
			return t
		}
	}
	return nil
}

// applyFlagMappings rewrites compile/link flags via config.FlagMappings,
// warning IR_UNMAPPED_FLAG once per distinct unmapped flag.
func (b *builder) applyFlagMappings(targets []*Target) {
	if b.cfg == nil {
		return
	}
	for _, t := range targets {
		t.CompileOptions = b.mapFlags(t.CompileOptions)
		t.LinkOptions = b.mapFlags(t.LinkOptions)
	}
}

func (b *builder) mapFlags(flags []string) []string {
	out := make([]string, len(flags))
	for i, f := range flags {
		if mapped, ok := b.cfg.FlagMappings[f]; ok {
			out[i] = mapped
			continue
		}
		out[i] = f
		b.warnUnmappedFlag(f)
	}
	return out
}

func (b *builder) warnUnmappedFlag(flag string) {
	if b.warnedFlags[flag] {
		return
	}
	b.warnedFlags[flag] = true
	if b.sink != nil {
		b.sink.Add(diag.Diagnostic{
			Severity: diag.WARN,
			Code:     diag.CodeIRUnmappedFlag,
			Message:  fmt.Sprintf("flag %q has no configured mapping", flag),
			Origin:   "ir",
		})
	}
}

// dedupAgainstGlobals removes target-level flags/includes/defines that
// already appear in the matching project-global bucket (I6), recording
// one INFO diagnostic per (target, value) pair the first time it fires.
func (b *builder) dedupAgainstGlobals(proj *Project) {
	for _, t := range proj.Targets {
		bucket := eval.BucketAll
		for _, sf := range t.Sources {
			switch sf.Language {
			case "c":
				bucket = eval.BucketC
			case "cpp":
				bucket = eval.BucketCpp
			case "asm":
				bucket = eval.BucketAsm
			}
			if bucket != eval.BucketAll {
				break
			}
		}
		global := append(append([]string(nil), proj.Globals.Flags[bucket]...), proj.Globals.Flags[eval.BucketAll]...)
		t.CompileOptions = b.removeDuplicates(t, "flag", t.CompileOptions, global)

		globalInc := append(append([]string(nil), proj.Globals.Includes[bucket]...), proj.Globals.Includes[eval.BucketAll]...)
		t.IncludeDirs = b.removeDuplicates(t, "include", t.IncludeDirs, globalInc)

		globalDef := append(append([]string(nil), proj.Globals.Defines[bucket]...), proj.Globals.Defines[eval.BucketAll]...)
		t.Defines = b.removeDuplicates(t, "define", t.Defines, globalDef)
	}
}

func (b *builder) removeDuplicates(t *Target, kind string, values, globals []string) []string {
	globalSet := map[string]bool{}
	for _, g := range globals {
		globalSet[g] = true
	}
	var out []string
	for _, v := range values {
		if globalSet[v] {
			key := t.PhysicalName + "|" + kind + "|" + v
			if !b.warnedDup[key] && b.sink != nil {
				b.warnedDup[key] = true
				b.sink.Add(diag.Diagnostic{
					Severity: diag.INFO,
					Code:     diag.CodeIRDuplicateFlag,
					Message:  fmt.Sprintf("%s %q on target %q duplicates a project-global setting; removed", kind, v, t.PhysicalName),
					Origin:   "ir",
				})
			}
			continue
		}
		out = append(out, v)
	}
	return out
}

// sortProject applies the deterministic ordering spec.md §4.8 requires:
// targets by physical name, sources within a target by path, link
// libraries partitioned internal/external/imported then lexicographic.
func (b *builder) sortProject(proj *Project) {
	sort.Slice(proj.Targets, func(i, j int) bool {
		return proj.Targets[i].PhysicalName < proj.Targets[j].PhysicalName
	})
	for _, t := range proj.Targets {
		sort.Slice(t.Sources, func(i, j int) bool { return t.Sources[i].Path < t.Sources[j].Path })
		sort.Strings(t.IncludeDirs)
		sort.Strings(t.Defines)
		sort.Strings(t.CompileOptions)
		sort.Strings(t.LinkOptions)
		sort.Strings(t.Dependencies)
		sortLinkLibraries(t.LinkLibraries)
	}
}

func sortLinkLibraries(items []LinkItem) {
	rank := func(k LinkKind) int {
		switch k {
		case LinkInternal:
			return 0
		case LinkExternal:
			return 1
		default:
			return 2
		}
	}
	sort.Slice(items, func(i, j int) bool {
		ri, rj := rank(items[i].Kind), rank(items[j].Kind)
		if ri != rj {
			return ri < rj
		}
		return items[i].Name < items[j].Name
	})
}
