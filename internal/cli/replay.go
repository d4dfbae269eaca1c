package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/markout/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	ConfigPath string
	DBPath     string
	RunID      string
}

// ReplayResult is the report of the replay command.
type ReplayResult struct {
	RunID         string             `json:"run_id"`
	Groups        int                `json:"groups"`
	Deterministic bool               `json:"deterministic"`
	Divergences   []store.Divergence `json:"divergences,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <input.csv>",
		Short: "Rerun an input and compare it with a stored run",
		Long: `Reruns the matcher over the input with the given config and compares
each group's status, input digest and match digest with a stored run.
The stored run defaults to the most recent one. Nothing is written.

Exits 1 on any divergence or when the config differs from the run's.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "pipeline config file (.yaml or .cue)")
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "result database (default: config database)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to compare against (default: latest)")

	return cmd
}

func runReplay(cmd *cobra.Command, opts *ReplayOptions, input string) error {
	ctx := cmd.Context()
	out := opts.formatter(cmd)

	j, code, err := loadJob(opts.ConfigPath, input)
	if err != nil {
		return out.Fail(ExitCommandError, code, "load failed", err)
	}

	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = j.cfg.Database
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return out.Fail(ExitCommandError, CodeStore, "failed to open database", err)
	}
	defer st.Close()

	var run store.Run
	if opts.RunID != "" {
		run, err = st.GetRun(ctx, opts.RunID)
	} else {
		run, err = st.LatestRun(ctx)
	}
	if errors.Is(err, store.ErrNotFound) {
		return out.Fail(ExitCommandError, CodeReplay, "run not found", err)
	}
	if err != nil {
		return out.Fail(ExitCommandError, CodeStore, "failed to read run", err)
	}

	if run.ConfigDigest != j.digest {
		return out.Fail(ExitFailure, CodeReplay, "config differs from the stored run",
			fmt.Errorf("stored %s, replayed %s", run.ConfigDigest, j.digest))
	}

	results, err := j.run(ctx, false, opts.logger())
	if err != nil {
		return out.Fail(ExitCommandError, CodeEngine, "matching failed", err)
	}
	replayed := make([]store.GroupResult, 0, len(results))
	for i, g := range results {
		gr, _, err := groupRecord(run.ID, i+1, g)
		if err != nil {
			return out.Fail(ExitCommandError, CodeEngine, "failed to read matches", err)
		}
		replayed = append(replayed, gr)
	}

	divs, err := st.CompareRun(ctx, run.ID, replayed)
	if err != nil {
		return out.Fail(ExitCommandError, CodeStore, "failed to compare run", err)
	}

	res := ReplayResult{
		RunID:         run.ID,
		Groups:        len(replayed),
		Deterministic: len(divs) == 0,
		Divergences:   divs,
	}
	if err := out.Emit(run.ID, res, res.writeText); err != nil {
		return err
	}
	if !res.Deterministic {
		return NewExitError(ExitFailure, fmt.Sprintf("%d divergences from run %s", len(divs), run.ID))
	}
	return nil
}

func (r ReplayResult) writeText(w io.Writer) error {
	if r.Deterministic {
		fmt.Fprintf(w, "✓ Replay of run %s matches: %d groups\n", r.RunID, r.Groups)
		return nil
	}
	fmt.Fprintf(w, "✗ Replay of run %s diverges: %d differences\n", r.RunID, len(r.Divergences))
	for _, d := range r.Divergences {
		fmt.Fprintf(w, "  %s\n", d)
	}
	return nil
}
