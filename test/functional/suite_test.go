// Package functional drives the built gmake2cmake binary against real
// source trees end to end, reproducing spec.md §8's scenarios S1-S6 as
// gherkin features.
package functional

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cucumber/godog"
)

type stateKeyType struct{}

var stateKey = stateKeyType{}

type testState struct {
	binPath string
	srcDir  string
	outDir  string

	stdout   string
	stderr   string
	exitCode int
}

func getState(ctx context.Context) *testState {
	if s, ok := ctx.Value(stateKey).(*testState); ok {
		return s
	}
	return nil
}

func setState(ctx context.Context, s *testState) context.Context {
	return context.WithValue(ctx, stateKey, s)
}

func TestFeatures(t *testing.T) {
	binPath := os.Getenv("GMAKE2CMAKE_TEST_BINARY")
	if binPath == "" {
		t.Skip("GMAKE2CMAKE_TEST_BINARY not set; set it to the path of a built gmake2cmake binary")
	}

	absBin, err := filepath.Abs(binPath)
	if err != nil {
		t.Fatalf("resolving binary path: %v", err)
	}
	binPath = absBin

	opts := &godog.Options{
		Format:   "pretty",
		Paths:    []string{"features"},
		TestingT: t,
	}
	if tags := os.Getenv("GMAKE2CMAKE_TEST_TAGS"); tags != "" {
		opts.Tags = tags
	}

	suite := godog.TestSuite{
		ScenarioInitializer: func(ctx *godog.ScenarioContext) {
			initializeScenario(ctx, binPath)
		},
		Options: opts,
	}
	if suite.Run() != 0 {
		t.Fatal("functional tests failed")
	}
}

func initializeScenario(ctx *godog.ScenarioContext, binPath string) {
	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		root := filepath.Join(os.TempDir(), "gmake2cmake-functional", sanitize(sc.Name))
		os.RemoveAll(root)
		srcDir := filepath.Join(root, "src")
		outDir := filepath.Join(root, "out")
		if err := os.MkdirAll(srcDir, 0o755); err != nil {
			return ctx, err
		}
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return ctx, err
		}

		state := &testState{binPath: binPath, srcDir: srcDir, outDir: outDir}
		return setState(ctx, state), nil
	})

	ctx.Step(`^a file "([^"]*)" containing:$`, aFileContaining)
	ctx.Step(`^I translate the project$`, iTranslateTheProject)
	ctx.Step(`^I translate the project with "([^"]*)"$`, iTranslateTheProjectWith)
	ctx.Step(`^I translate the project using config "([^"]*)" with "([^"]*)"$`, iTranslateTheProjectUsingConfigWith)

	ctx.Step(`^the exit code is (\d+)$`, theExitCodeIs)
	ctx.Step(`^the output contains "([^"]*)"$`, theOutputContains)
	ctx.Step(`^the error output contains "([^"]*)"$`, theErrorOutputContains)
	ctx.Step(`^the file "([^"]*)" exists$`, theFileExists)
	ctx.Step(`^the file "([^"]*)" does not exist$`, theFileDoesNotExist)
	ctx.Step(`^the file "([^"]*)" contains "([^"]*)"$`, theFileContains)
}

func sanitize(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		if r == ' ' || r == '/' || r == '\\' {
			out = append(out, '_')
			continue
		}
		out = append(out, r)
	}
	return string(out)
}
