package main

import "os"

// Exit codes (spec.md §6 invocation contract: "integer exit status").
const (
	// ExitSuccess indicates a translation run with no ERROR diagnostics.
	ExitSuccess = 0

	// ExitTranslation indicates the diagnostic sink recorded at least one
	// ERROR (P9).
	ExitTranslation = 1

	// ExitUsage indicates invalid command-line arguments.
	ExitUsage = 2
)

func exitWithCode(code int) {
	os.Exit(code)
}
