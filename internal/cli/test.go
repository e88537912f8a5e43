package cli

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jooh/expcontrol/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter string // scenario filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run scripted scenarios on virtual time",
		Long: `Run every scenario YAML file in a directory through the harness.

Each scenario replays scripted key presses against its design on a virtual
clock and checks the stored logs against its assertions.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  expcontrol test ./scenarios
  expcontrol test ./scenarios --filter "pulse*" --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if _, err := os.Stat(dir); err != nil {
		_ = formatter.Error(ErrCodeGeneric, fmt.Sprintf("scenarios directory not found: %s", dir), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir))
	}
	files, err := findScenarioFiles(dir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	result := TestResult{Scenarios: make([]ScenarioResult, 0, len(files)), Total: len(files)}
	var text strings.Builder
	for _, path := range files {
		sr := runScenario(ctx, path)
		formatter.VerboseLog("ran %s", path)
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
			fmt.Fprintf(&text, "✓ %s\n", sr.Name)
			continue
		}
		result.Failed++
		fmt.Fprintf(&text, "✗ %s\n", sr.Name)
		for _, e := range sr.Errors {
			fmt.Fprintf(&text, "  %s\n", strings.ReplaceAll(e, "\n", "\n  "))
		}
	}
	if len(files) == 0 {
		text.WriteString("No scenarios found.\n")
	} else {
		fmt.Fprintf(&text, "\n%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	}

	if err := formatter.Success(result, text.String()); err != nil {
		return err
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// findScenarioFiles finds all YAML scenario files under dir whose base
// name (without extension) matches filter.
func findScenarioFiles(dir, filter string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			matched, err := filepath.Match(filter, strings.TrimSuffix(filepath.Base(path), ext))
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

func runScenario(ctx context.Context, path string) ScenarioResult {
	sc, err := harness.LoadScenario(path)
	if err != nil {
		return ScenarioResult{
			Name:   filepath.Base(path),
			Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)},
		}
	}
	res, err := harness.Run(ctx, sc)
	if err != nil {
		return ScenarioResult{
			Name:   sc.Name,
			Errors: []string{fmt.Sprintf("execution failed: %v", err)},
		}
	}
	return ScenarioResult{Name: sc.Name, Pass: res.Pass, Errors: res.Errors}
}
