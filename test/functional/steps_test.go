package functional

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

func aFileContaining(ctx context.Context, path, content string) (context.Context, error) {
	state := getState(ctx)
	full := filepath.Join(state.srcDir, path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return ctx, err
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return ctx, err
	}
	return ctx, nil
}

func iTranslateTheProject(ctx context.Context) (context.Context, error) {
	return runTranslate(ctx, nil)
}

func iTranslateTheProjectWith(ctx context.Context, flags string) (context.Context, error) {
	return runTranslate(ctx, strings.Fields(flags))
}

func iTranslateTheProjectUsingConfigWith(ctx context.Context, configPath, flags string) (context.Context, error) {
	state := getState(ctx)
	if state == nil {
		return ctx, fmt.Errorf("no test state; is the Before hook running?")
	}
	args := append([]string{"--config", filepath.Join(state.srcDir, configPath)}, strings.Fields(flags)...)
	return runTranslate(ctx, args)
}

// runTranslate invokes the built binary against the scenario's source tree,
// the same way a real caller would: "gmake2cmake translate <src> -o <out>".
func runTranslate(ctx context.Context, extraArgs []string) (context.Context, error) {
	state := getState(ctx)
	if state == nil {
		return ctx, fmt.Errorf("no test state; is the Before hook running?")
	}

	args := append([]string{"translate", state.srcDir, "-o", state.outDir}, extraArgs...)
	cmd := exec.Command(state.binPath, args...)
	cmd.Env = os.Environ()

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	state.stdout = stdout.String()
	state.stderr = stderr.String()

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			state.exitCode = exitErr.ExitCode()
		} else {
			return ctx, fmt.Errorf("command execution failed: %w", err)
		}
	} else {
		state.exitCode = 0
	}
	return ctx, nil
}

func theExitCodeIs(ctx context.Context, expected int) error {
	state := getState(ctx)
	if state.exitCode != expected {
		return fmt.Errorf("expected exit code %d, got %d\nstdout: %s\nstderr: %s",
			expected, state.exitCode, state.stdout, state.stderr)
	}
	return nil
}

func theOutputContains(ctx context.Context, text string) error {
	state := getState(ctx)
	if !strings.Contains(state.stdout, text) {
		return fmt.Errorf("expected stdout to contain %q, got:\n%s", text, state.stdout)
	}
	return nil
}

func theErrorOutputContains(ctx context.Context, text string) error {
	state := getState(ctx)
	if !strings.Contains(state.stderr, text) {
		return fmt.Errorf("expected stderr to contain %q, got:\n%s", text, state.stderr)
	}
	return nil
}

func theFileExists(ctx context.Context, path string) error {
	state := getState(ctx)
	full := filepath.Join(state.outDir, path)
	if _, err := os.Stat(full); os.IsNotExist(err) {
		return fmt.Errorf("expected file %q to exist", full)
	}
	return nil
}

func theFileDoesNotExist(ctx context.Context, path string) error {
	state := getState(ctx)
	full := filepath.Join(state.outDir, path)
	if _, err := os.Stat(full); err == nil {
		return fmt.Errorf("expected file %q not to exist", full)
	}
	return nil
}

func theFileContains(ctx context.Context, path, text string) error {
	state := getState(ctx)
	full := filepath.Join(state.outDir, path)
	data, err := os.ReadFile(full)
	if err != nil {
		return fmt.Errorf("reading %q: %w", full, err)
	}
	if !strings.Contains(string(data), text) {
		return fmt.Errorf("expected %q to contain %q, got:\n%s", full, text, string(data))
	}
	return nil
}
