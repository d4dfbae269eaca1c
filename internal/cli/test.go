package cli

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/markout/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	GoldenDir string
	Update    bool
	Filter    string
}

// TestReport is the report of the test command.
type TestReport struct {
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Scenarios []ScenarioReport `json:"scenarios"`
}

// ScenarioReport is the outcome of one scenario file.
type ScenarioReport struct {
	Path   string   `json:"path"`
	Name   string   `json:"name,omitempty"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden"` // "match", "updated", "missing", "mismatch" or "skipped"
	Errors []string `json:"errors,omitempty"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run conformance scenarios",
		Long: `Runs every .yaml scenario in the directory and checks its expectations
and assertions. When a golden snapshot exists for a scenario
(<golden-dir>/<name>.golden) the run must also match it; --update
rewrites the snapshots instead.

Exits 1 when any scenario fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.GoldenDir, "golden", "", "golden snapshot directory (default: <scenarios-dir>/golden)")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "rewrite golden snapshots")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only run scenarios whose file name contains this string")

	return cmd
}

func runTest(cmd *cobra.Command, opts *TestOptions, dir string) error {
	out := opts.formatter(cmd)

	goldenDir := opts.GoldenDir
	if goldenDir == "" {
		goldenDir = filepath.Join(dir, "golden")
	}

	h := harness.New(harness.WithLogger(opts.logger()))
	files, err := h.RunDir(cmd.Context(), dir)
	if err != nil {
		return out.Fail(ExitCommandError, CodeScenario, "failed to run scenarios", err)
	}

	var report TestReport
	for _, fr := range files {
		if opts.Filter != "" && !strings.Contains(filepath.Base(fr.Path), opts.Filter) {
			continue
		}
		sr := scenarioReport(fr, goldenDir, opts.Update)
		out.VerboseLog("%s: pass=%t golden=%s", fr.Path, sr.Pass, sr.Golden)
		if sr.Pass {
			report.Passed++
		} else {
			report.Failed++
		}
		report.Scenarios = append(report.Scenarios, sr)
	}

	if err := out.Emit("", report, report.writeText); err != nil {
		return err
	}
	if report.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenarios failed", report.Failed))
	}
	return nil
}

func scenarioReport(fr harness.FileResult, goldenDir string, update bool) ScenarioReport {
	sr := ScenarioReport{Path: fr.Path, Name: fr.Scenario, Golden: "skipped"}
	if fr.Err != nil {
		sr.Errors = []string{fr.Err.Error()}
		return sr
	}
	sr.Pass = fr.Result.Pass
	sr.Errors = append(sr.Errors, fr.Result.Errors...)

	err := harness.CheckGolden(goldenDir, fr.Scenario, fr.Result, update)
	var mismatch *harness.GoldenMismatchError
	switch {
	case err == nil && update:
		sr.Golden = "updated"
	case err == nil:
		sr.Golden = "match"
	case errors.Is(err, harness.ErrNoGolden):
		sr.Golden = "missing"
	case errors.As(err, &mismatch):
		sr.Golden = "mismatch"
		sr.Pass = false
		sr.Errors = append(sr.Errors, err.Error())
	default:
		sr.Pass = false
		sr.Errors = append(sr.Errors, err.Error())
	}
	return sr
}

func (r TestReport) writeText(w io.Writer) error {
	for _, s := range r.Scenarios {
		mark := "✓"
		if !s.Pass {
			mark = "✗"
		}
		name := s.Name
		if name == "" {
			name = s.Path
		}
		fmt.Fprintf(w, "%s %s (golden: %s)\n", mark, name, s.Golden)
		for _, e := range s.Errors {
			fmt.Fprintf(w, "    %s\n", e)
		}
	}
	fmt.Fprintf(w, "\n%d passed, %d failed\n", r.Passed, r.Failed)
	return nil
}
