package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vinzenz/gmake2cmake/internal/config"
	"github.com/vinzenz/gmake2cmake/internal/diag"
	"github.com/vinzenz/gmake2cmake/internal/errmsg"
	"github.com/vinzenz/gmake2cmake/internal/fsys"
	"github.com/vinzenz/gmake2cmake/internal/orchestrator"
)

var (
	entryFlag      string
	outputFlag     string
	configFlag     string
	dryRunFlag     bool
	packagingFlag  bool
	strictFlag     bool
	dumpConfigFlag bool
)

var translateCmd = &cobra.Command{
	Use:   "translate [source-dir]",
	Short: "Translate a GNU Make project into a CMake buildsystem",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTranslate,
}

func init() {
	translateCmd.Flags().StringVar(&entryFlag, "entry", "", "entry Makefile name, overriding the default Makefile/makefile/GNUmakefile search")
	translateCmd.Flags().StringVarP(&outputFlag, "output", "o", ".", "output directory for the generated CMake files")
	translateCmd.Flags().StringVarP(&configFlag, "config", "c", "", "path to a configuration mapping document (YAML or TOML)")
	translateCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "compute the file list without writing anything")
	translateCmd.Flags().BoolVar(&packagingFlag, "with-packaging", false, "emit install.cmake and the <Name>Config.cmake package files")
	translateCmd.Flags().BoolVar(&strictFlag, "strict", false, "promote unrecognized configuration keys from warnings to errors")
	translateCmd.Flags().BoolVar(&dumpConfigFlag, "dump-config", false, "print the resolved configuration as YAML and exit")
}

func runTranslate(cmd *cobra.Command, args []string) error {
	sourceDir := "."
	if len(args) == 1 {
		sourceDir = args[0]
	}

	opts := orchestrator.Options{
		SourceDir:        sourceDir,
		EntryOverride:    entryFlag,
		OutputDir:        outputFlag,
		DryRun:           dryRunFlag,
		PackagingEnabled: packagingFlag,
		Strict:           strictFlag,
		DumpConfig:       dumpConfigFlag,
	}

	if configFlag != "" {
		data, err := os.ReadFile(configFlag)
		if err != nil {
			return fmt.Errorf("reading config %s: %w", configFlag, err)
		}
		opts.ConfigData = data
		opts.ConfigFormat = config.DetectFormat(configFlag)
	}

	result := orchestrator.New(fsys.New()).Run(opts)

	if result.ConfigYAML != "" {
		fmt.Print(result.ConfigYAML)
		exitWithCode(ExitSuccess)
		return nil
	}

	errCtx := &errmsg.Context{SourceDir: sourceDir, OutputDir: outputFlag}
	for _, d := range result.Diagnostics {
		if quietFlag && d.Severity != diag.ERROR {
			continue
		}
		fmt.Fprint(os.Stderr, errmsg.Format(d, errCtx))
	}

	if len(result.Diagnostics) > 0 {
		printSummary(result.Diagnostics)
	}

	if !dryRunFlag && result.ExitStatus == 0 {
		printInfof("wrote %d file(s) under %s\n", len(result.Artifacts), outputFlag)
	}

	exitWithCode(result.ExitStatus)
	return nil
}

// printSummary prints one "N error(s), M warning(s)" line to stderr,
// colorized only when stderr is an actual terminal (golang.org/x/term):
// redirected output (CI logs, files) stays plain text.
func printSummary(diags []diag.Diagnostic) {
	var errs, warns int
	for _, d := range diags {
		switch d.Severity {
		case diag.ERROR:
			errs++
		case diag.WARN:
			warns++
		}
	}
	if errs == 0 && warns == 0 {
		return
	}

	line := fmt.Sprintf("%d error(s), %d warning(s)", errs, warns)
	if term.IsTerminal(int(os.Stderr.Fd())) {
		color := "32" // green
		if errs > 0 {
			color = "31" // red
		} else if warns > 0 {
			color = "33" // yellow
		}
		line = fmt.Sprintf("\x1b[%sm%s\x1b[0m", color, line)
	}
	fmt.Fprintln(os.Stderr, line)
}

func printInfof(format string, a ...interface{}) {
	if !quietFlag {
		fmt.Printf(format, a...)
	}
}
