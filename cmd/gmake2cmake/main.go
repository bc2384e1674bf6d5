package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vinzenz/gmake2cmake/internal/buildinfo"
	"github.com/vinzenz/gmake2cmake/internal/log"
)

var (
	quietFlag   bool
	verboseFlag bool
	debugFlag   bool
)

var rootCmd = &cobra.Command{
	Use:   "gmake2cmake",
	Short: "Translates GNU Make build descriptions into CMake",
	Long: `gmake2cmake discovers a GNU Make project's include graph, parses and
evaluates its rules, and emits an equivalent CMake buildsystem: a root
CMakeLists.txt, one per grouped source directory, an optional
ProjectGlobalConfig.cmake, and packaging files when requested.`,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "show errors only")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "show verbose output (INFO level)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "show debug output (includes timestamps and source locations)")

	rootCmd.PersistentPreRun = initLogger
	rootCmd.Version = buildinfo.Version()

	rootCmd.AddCommand(translateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		exitWithCode(ExitUsage)
	}
}

func initLogger(cmd *cobra.Command, args []string) {
	level := determineLogLevel()
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level, AddSource: level == slog.LevelDebug})
	log.SetDefault(log.New(handler))
}

// determineLogLevel returns the appropriate slog.Level. Priority:
// flags > environment variables > default (WARN).
func determineLogLevel() slog.Level {
	if debugFlag {
		return slog.LevelDebug
	}
	if verboseFlag {
		return slog.LevelInfo
	}
	if quietFlag {
		return slog.LevelError
	}

	if isTruthy(os.Getenv("GMAKE2CMAKE_DEBUG")) {
		return slog.LevelDebug
	}
	if isTruthy(os.Getenv("GMAKE2CMAKE_VERBOSE")) {
		return slog.LevelInfo
	}
	if isTruthy(os.Getenv("GMAKE2CMAKE_QUIET")) {
		return slog.LevelError
	}

	return slog.LevelWarn
}

func isTruthy(s string) bool {
	s = strings.ToLower(s)
	return s == "1" || s == "true" || s == "yes" || s == "on"
}
