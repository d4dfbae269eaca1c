package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/markout/internal/config"
	"github.com/roach88/markout/internal/ir"
	"github.com/roach88/markout/internal/source"
	"github.com/roach88/markout/internal/store"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	DBPath   string
	RunID    string
	GroupKey string
	Runs     bool
}

// ShowResult is the report of the show command.
type ShowResult struct {
	Run     *store.Run          `json:"run,omitempty"`
	Runs    []store.Run         `json:"runs,omitempty"`
	Groups  []store.GroupResult `json:"groups,omitempty"`
	Matches []ir.MatchRecord    `json:"matches,omitempty"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show stored runs, group results and matches",
		Long: `Prints the group results and matches of a stored run, by default the
most recent one. --group restricts the matches to one group; --runs lists
all runs instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "", "result database (default: $"+config.EnvDatabase+" or "+config.DefaultDatabase+")")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id (default: latest)")
	cmd.Flags().StringVar(&opts.GroupKey, "group", "", "only show matches of this group")
	cmd.Flags().BoolVar(&opts.Runs, "runs", false, "list runs")

	return cmd
}

func runShow(cmd *cobra.Command, opts *ShowOptions) error {
	ctx := cmd.Context()
	out := opts.formatter(cmd)

	st, err := store.Open(showDatabase(opts.DBPath))
	if err != nil {
		return out.Fail(ExitCommandError, CodeStore, "failed to open database", err)
	}
	defer st.Close()

	if opts.Runs {
		runs, err := st.ListRuns(ctx)
		if err != nil {
			return out.Fail(ExitCommandError, CodeStore, "failed to list runs", err)
		}
		res := ShowResult{Runs: runs}
		return out.Emit("", res, res.writeRuns)
	}

	var run store.Run
	if opts.RunID != "" {
		run, err = st.GetRun(ctx, opts.RunID)
	} else {
		run, err = st.LatestRun(ctx)
	}
	if errors.Is(err, store.ErrNotFound) {
		return out.Fail(ExitFailure, CodeStore, "run not found", err)
	}
	if err != nil {
		return out.Fail(ExitCommandError, CodeStore, "failed to read run", err)
	}

	groups, err := st.ReadGroups(ctx, run.ID)
	if err != nil {
		return out.Fail(ExitCommandError, CodeStore, "failed to read groups", err)
	}
	matches, err := st.ReadMatches(ctx, run.ID, opts.GroupKey)
	if err != nil {
		return out.Fail(ExitCommandError, CodeStore, "failed to read matches", err)
	}

	res := ShowResult{Run: &run, Groups: groups, Matches: matches}
	return out.Emit(run.ID, res, res.writeRun)
}

func showDatabase(flag string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv(config.EnvDatabase); env != "" {
		return env
	}
	return config.DefaultDatabase
}

func (r ShowResult) writeRuns(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tRUN\tINPUT\tCONFIG\tENGINE")
	for _, run := range r.Runs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", run.Seq, run.ID, run.Input, shortDigest(run.ConfigDigest), run.EngineVersion)
	}
	return tw.Flush()
}

func (r ShowResult) writeRun(w io.Writer) error {
	fmt.Fprintf(w, "Run %s (seq %d, input %s)\n\n", r.Run.ID, r.Run.Seq, r.Run.Input)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GROUP\tSTATUS\tINPUT\tMATCHES\tFLAGS\tERROR")
	for _, g := range r.Groups {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n", g.GroupKey, g.Status, g.InputCount, g.MatchCount, len(g.Flags), g.Error)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GROUP\tEPISODE\tSIDE\tENTRY\tEXIT\tQTY\tENTRY_PX\tEXIT_PX\tHOLD\tMARKOUT")
	for _, m := range r.Matches {
		exitIndex, exitPrice := "", ""
		if m.ExitIndex != nil {
			exitIndex = fmt.Sprint(*m.ExitIndex)
		}
		if m.ExitPrice != nil {
			exitPrice = m.ExitPrice.String()
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%s\t%d\t%s\t%s\t%s\t%s\n",
			m.GroupKey, m.EpisodeID, m.EntrySide, m.EntryIndex, exitIndex,
			m.MatchedQuantity, m.EntryPrice, exitPrice,
			source.FormatValue(m.HoldingPeriod), m.Markout)
	}
	return tw.Flush()
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
