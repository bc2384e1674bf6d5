// Package errmsg formats a Diagnostic into a human-facing message with
// possible causes and suggested next steps, for the CLI's non-quiet
// rendering of the diagnostic stream.
package errmsg

import (
	"fmt"
	"strings"

	"github.com/vinzenz/gmake2cmake/internal/diag"
)

// Context carries optional information the formatter can fold into a
// suggestion, e.g. the path the Orchestrator was invoked against.
type Context struct {
	SourceDir string
	OutputDir string
}

// Format returns d's message augmented with a "Possible causes" and
// "Suggestions" block for codes that have one. Codes without an
// enhanced formatter fall back to the bare diagnostic message, since
// those (IR_DUPLICATE_FLAG, UNKNOWN_CONSTRUCT, ...) are already
// self-explanatory one-liners. ctx may be nil.
func Format(d diag.Diagnostic, ctx *Context) string {
	switch d.Code {
	case diag.CodeConfigMissing, diag.CodeConfigSchema:
		return formatConfigError(d, ctx)
	case diag.CodeDiscoveryEntryMissing:
		return formatEntryMissing(d, ctx)
	case diag.CodeDiscoveryCycle:
		return formatCycle(d)
	case diag.CodeDiscoveryIncludeOptionalMiss:
		return formatOptionalIncludeMissing(d)
	case diag.CodeFSRead:
		return formatFSRead(d)
	case diag.CodeParserConditional:
		return formatParserConditional(d)
	case diag.CodeEvalRecursiveLoop:
		return formatRecursiveLoop(d)
	case diag.CodeEvalNoSource:
		return formatNoSource(d)
	case diag.CodeIRDupTarget:
		return formatDupTarget(d)
	case diag.CodeIRUnknownDep:
		return formatUnknownDep(d)
	case diag.CodeEmitWriteFail:
		return formatWriteFail(d, ctx)
	case diag.CodeInternal:
		return formatInternal(d)
	default:
		return render(d, nil, nil)
	}
}

// render assembles the base "SEVERITY CODE: message" line plus optional
// causes/suggestions blocks.
func render(d diag.Diagnostic, causes, suggestions []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s: %s", d.Severity, d.Code, d.Message)
	if !d.Location.IsZero() {
		fmt.Fprintf(&sb, " (%s:%d)", d.Location.Path, d.Location.Line)
	}
	sb.WriteString("\n")

	if len(causes) > 0 {
		sb.WriteString("\nPossible causes:\n")
		for _, c := range causes {
			fmt.Fprintf(&sb, "  - %s\n", c)
		}
	}
	if len(suggestions) > 0 {
		sb.WriteString("\nSuggestions:\n")
		for _, s := range suggestions {
			fmt.Fprintf(&sb, "  - %s\n", s)
		}
	}
	return sb.String()
}

func formatConfigError(d diag.Diagnostic, ctx *Context) string {
	causes := []string{
		"the configuration mapping has a missing or misspelled key",
		"a value's type does not match what the key expects (e.g. a string where a list is required)",
	}
	suggestions := []string{
		"check the mapping document against the configuration schema (project_name, version, namespace, languages, target_mappings, flag_mappings, ignore_paths, global_config_files, link_overrides, packaging_enabled, strict)",
	}
	if ctx != nil && ctx.SourceDir != "" {
		suggestions = append(suggestions, fmt.Sprintf("re-run without --strict to see the key demoted to a warning instead of an error in %s", ctx.SourceDir))
	}
	return render(d, causes, suggestions)
}

func formatEntryMissing(d diag.Diagnostic, ctx *Context) string {
	causes := []string{
		"none of Makefile, makefile, or GNUmakefile exist in the source directory",
		"an explicit entry override points at a file that does not exist",
		"a mandatory include resolves to a path with no file on disk",
	}
	suggestions := []string{"verify the source directory and any --entry override are correct"}
	if ctx != nil && ctx.SourceDir != "" {
		suggestions = append(suggestions, fmt.Sprintf("list the contents of %s to confirm an entry file is present", ctx.SourceDir))
	}
	return render(d, causes, suggestions)
}

func formatCycle(d diag.Diagnostic) string {
	return render(d,
		[]string{"two or more makefiles include each other, directly or transitively"},
		[]string{"break the cycle by removing one of the include directives, or merge the mutually-including files"},
	)
}

func formatOptionalIncludeMissing(d diag.Diagnostic) string {
	return render(d,
		[]string{"a `-include`/`sinclude` directive names a file that is not present"},
		[]string{"this is non-fatal; create the file if its contents were expected to contribute to the build"},
	)
}

func formatFSRead(d diag.Diagnostic) string {
	return render(d,
		[]string{"the file was removed between discovery and read", "insufficient permissions to read the file"},
		[]string{"check the file's permissions and that it still exists"},
	)
}

func formatParserConditional(d diag.Diagnostic) string {
	return render(d,
		[]string{"an `ifeq`/`ifneq`/`ifdef`/`ifndef` block is missing its matching `endif`", "an `else` appears without a preceding `if*`"},
		[]string{"check the conditional nesting around the reported location"},
	)
}

func formatRecursiveLoop(d diag.Diagnostic) string {
	return render(d,
		[]string{"a recursively-bound variable (`=`) expands to text that references itself, directly or through another variable"},
		[]string{"switch the binding to `:=` if the value does not need deferred expansion, or break the reference cycle"},
	)
}

func formatNoSource(d diag.Diagnostic) string {
	return render(d,
		[]string{"a rule's recipe invokes a compiler with no recognizable source argument", "the rule exists purely for side effects (phony-style) and was not meant to become a build target"},
		[]string{"add an explicit target_mapping override, or confirm the rule was meant to be translated at all"},
	)
}

func formatDupTarget(d diag.Diagnostic) string {
	return render(d,
		[]string{"two rules produce artifacts that sanitize to the same physical target name"},
		[]string{"add a target_mapping override to rename one of the conflicting targets"},
	)
}

func formatUnknownDep(d diag.Diagnostic) string {
	return render(d,
		[]string{"a prerequisite does not match any known target's physical name or any produced/imported library"},
		[]string{"add a link_override for the dependency, or confirm the prerequisite is spelled correctly in the Makefile"},
	)
}

func formatWriteFail(d diag.Diagnostic, ctx *Context) string {
	causes := []string{"insufficient permissions on the output directory", "the output directory is on a read-only or full filesystem"}
	suggestions := []string{"check permissions and free space on the output directory"}
	if ctx != nil && ctx.OutputDir != "" {
		suggestions = append(suggestions, fmt.Sprintf("verify %s is writable", ctx.OutputDir))
	}
	return render(d, causes, suggestions)
}

func formatInternal(d diag.Diagnostic) string {
	return render(d,
		[]string{"an internal invariant was violated; this is a translator bug, not a problem with the input"},
		[]string{"file an issue with the reported stage tag and a minimal reproducing Makefile"},
	)
}
