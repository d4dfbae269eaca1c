package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/markout/internal/enrich"
	"github.com/roach88/markout/internal/ir"
	"github.com/roach88/markout/internal/normalize"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	ConfigPath string
}

// ValidateResult is the report of the validate command.
type ValidateResult struct {
	Valid      bool        `json:"valid"`
	Records    int         `json:"records"`
	Groups     int         `json:"groups"`
	Violations []Violation `json:"violations,omitempty"`
	Warnings   []Violation `json:"warnings,omitempty"`
}

// Violation is one problem found in a group.
type Violation struct {
	GroupKey string `json:"group_key"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <input.csv>",
		Short: "Check a config and input file without matching",
		Long: `Loads the config and input, then checks every group for time ordering
and for events that cannot be signed (unknown sides). Nothing is stored.

Exits 1 when any group would fail.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "pipeline config file (.yaml or .cue)")

	return cmd
}

func runValidate(cmd *cobra.Command, opts *ValidateOptions, input string) error {
	out := opts.formatter(cmd)

	j, code, err := loadJob(opts.ConfigPath, input)
	if err != nil {
		return out.Fail(ExitCommandError, code, "load failed", err)
	}

	groups := enrich.Partition(j.table.Records)
	res := ValidateResult{Records: len(j.table.Records), Groups: len(groups)}
	for _, g := range groups {
		out.VerboseLog("Checking group %s (%d records)", g.Key, len(g.Records))
		res.check(g, j.cfg.Directions, j.cfg.Split())
	}
	res.Valid = len(res.Violations) == 0

	if err := out.Emit("", res, res.writeText); err != nil {
		return err
	}
	if !res.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("%d groups invalid", len(res.Violations)))
	}
	return nil
}

// check records the first problem that would fail the group, or the
// warnings raised while signing it.
func (r *ValidateResult) check(g enrich.Group, dirs ir.Directions, split bool) {
	if err := enrich.CheckOrder(g.Key, g.Records); err != nil {
		r.Violations = append(r.Violations, Violation{GroupKey: g.Key, Code: errorCode(err), Message: err.Error()})
		return
	}
	events := make([]ir.Event, len(g.Records))
	for i, rec := range g.Records {
		events[i] = rec.Event
	}
	_, warnings, err := normalize.Normalize(events, dirs, normalize.WithSplitReversals(split))
	if err != nil {
		r.Violations = append(r.Violations, Violation{GroupKey: g.Key, Code: errorCode(err), Message: err.Error()})
		return
	}
	for _, w := range warnings {
		r.Warnings = append(r.Warnings, Violation{GroupKey: g.Key, Code: "WARN", Message: w.Error()})
	}
}

func (r ValidateResult) writeText(w io.Writer) error {
	if r.Valid {
		fmt.Fprintf(w, "✓ %d records in %d groups are valid\n", r.Records, r.Groups)
	} else {
		fmt.Fprintf(w, "✗ %d of %d groups are invalid\n", len(r.Violations), r.Groups)
	}
	for _, v := range r.Violations {
		fmt.Fprintf(w, "  %s: %s\n", v.GroupKey, v.Message)
	}
	for _, v := range r.Warnings {
		fmt.Fprintf(w, "  warning %s: %s\n", v.GroupKey, v.Message)
	}
	return nil
}
