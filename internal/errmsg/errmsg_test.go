package errmsg

import (
	"strings"
	"testing"

	"github.com/vinzenz/gmake2cmake/internal/diag"
)

func TestFormat_DiscoveryCycle(t *testing.T) {
	d := diag.Diagnostic{Severity: diag.ERROR, Code: diag.CodeDiscoveryCycle, Message: "include cycle: /src/Makefile -> /src/B.mk -> /src/Makefile"}
	result := Format(d, nil)

	checks := []string{
		"ERROR DISCOVERY_CYCLE",
		"include cycle:",
		"Possible causes:",
		"include each other",
		"Suggestions:",
		"break the cycle",
	}
	for _, c := range checks {
		if !strings.Contains(result, c) {
			t.Errorf("expected result to contain %q, got:\n%s", c, result)
		}
	}
}

func TestFormat_EntryMissingUsesContext(t *testing.T) {
	d := diag.Diagnostic{Severity: diag.ERROR, Code: diag.CodeDiscoveryEntryMissing, Message: `no entry Makefile found under "/src"`}
	ctx := &Context{SourceDir: "/src"}
	result := Format(d, ctx)

	if !strings.Contains(result, "/src") {
		t.Errorf("expected the source dir to appear in the suggestion, got:\n%s", result)
	}
	if !strings.Contains(result, "Possible causes:") {
		t.Errorf("expected a causes block, got:\n%s", result)
	}
}

func TestFormat_WithLocationAppendsPosition(t *testing.T) {
	d := diag.Diagnostic{
		Severity: diag.WARN,
		Code:     diag.CodeParserConditional,
		Message:  "unterminated conditional",
		Location: diag.Location{Path: "/src/Makefile", Line: 12},
	}
	result := Format(d, nil)
	if !strings.Contains(result, "/src/Makefile:12") {
		t.Errorf("expected location to be rendered, got:\n%s", result)
	}
}

func TestFormat_UnenhancedCodeFallsBackToBareMessage(t *testing.T) {
	d := diag.Diagnostic{Severity: diag.INFO, Code: diag.CodeIRDuplicateFlag, Message: "duplicate flag -Wall dropped"}
	result := Format(d, nil)
	if !strings.Contains(result, "duplicate flag -Wall dropped") {
		t.Errorf("expected the bare message to appear, got:\n%s", result)
	}
	if strings.Contains(result, "Possible causes:") {
		t.Errorf("did not expect a causes block for an unenhanced code, got:\n%s", result)
	}
}

func TestFormat_InternalFault(t *testing.T) {
	d := diag.Diagnostic{Severity: diag.ERROR, Code: diag.CodeInternal, Message: "nil project passed to emit", Origin: "emit"}
	result := Format(d, nil)
	if !strings.Contains(result, "translator bug") {
		t.Errorf("expected an internal-bug cause, got:\n%s", result)
	}
}
