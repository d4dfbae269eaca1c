package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/markout/internal/ir"
	"github.com/roach88/markout/internal/source"
	"github.com/roach88/markout/internal/store"
)

// MatchOptions holds flags for the match command.
type MatchOptions struct {
	*RootOptions
	ConfigPath string
	DBPath     string
	OutPath    string
	Positions  bool
}

// NewMatchCommand creates the match command.
func NewMatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "match <input.csv>",
		Short: "Match fills and store per-group results",
		Long: `Runs the matcher over every group of the input file and stores one
result per group in the database. Groups are independent: a failed group
is stored with its error and the others still complete.

Exits 1 when any group failed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatch(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "pipeline config file (.yaml or .cue)")
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "result database (default: config database)")
	cmd.Flags().StringVarP(&opts.OutPath, "out", "o", "", "write enriched match rows to this CSV file")
	cmd.Flags().BoolVar(&opts.Positions, "positions", false, "add signed_quantity and cumulative_position columns")

	return cmd
}

func runMatch(cmd *cobra.Command, opts *MatchOptions, input string) error {
	ctx := cmd.Context()
	out := opts.formatter(cmd)
	logger := opts.logger()

	j, code, err := loadJob(opts.ConfigPath, input)
	if err != nil {
		return out.Fail(ExitCommandError, code, "load failed", err)
	}
	out.VerboseLog("Loaded %d records from %s", len(j.table.Records), input)

	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = j.cfg.Database
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return out.Fail(ExitCommandError, CodeStore, "failed to open database", err)
	}
	defer st.Close()

	results, err := j.run(ctx, opts.Positions, logger)
	if err != nil {
		return out.Fail(ExitCommandError, CodeEngine, "matching failed", err)
	}

	run, err := st.BeginRun(ctx, store.Run{ConfigDigest: j.digest, Input: input}, nil)
	if err != nil {
		return out.Fail(ExitCommandError, CodeStore, "failed to record run", err)
	}

	sum := summary{RunID: run.ID, Seq: run.Seq, Records: len(j.table.Records)}
	var enriched []ir.Record
	for i, g := range results {
		gr, matches, err := groupRecord(run.ID, i+1, g)
		if err != nil {
			return out.Fail(ExitCommandError, CodeEngine, "failed to read matches", err)
		}
		if err := st.WriteGroup(ctx, gr, matches); err != nil {
			return out.Fail(ExitCommandError, CodeStore, "failed to store group", err)
		}
		errCode := ""
		if g.Err != nil {
			errCode = errorCode(g.Err)
		}
		sum.add(gr, errCode)
		enriched = append(enriched, g.Records...)
	}

	columns := j.outputColumns(opts.Positions)
	if opts.OutPath != "" {
		if err := writeRecordsFile(opts.OutPath, enriched, columns); err != nil {
			return out.Fail(ExitCommandError, CodeInput, "failed to write output", err)
		}
	}
	if j.cfg.ReplayDir != "" {
		path := filepath.Join(j.cfg.ReplayDir, run.ID+".csv")
		if err := writeRecordsFile(path, enriched, columns); err != nil {
			return out.Fail(ExitCommandError, CodeInput, "failed to write replay file", err)
		}
		out.VerboseLog("Wrote %s", path)
	}

	logger.Info("run stored",
		"run", run.ID,
		"seq", run.Seq,
		"groups", sum.Groups,
		"failed", sum.FailedGroups,
		"matches", sum.Matches,
	)

	if err := out.Emit(run.ID, sum, sum.writeText); err != nil {
		return err
	}
	if sum.FailedGroups > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d groups failed", sum.FailedGroups, sum.Groups))
	}
	return nil
}

func (s *summary) writeText(w io.Writer) error {
	fmt.Fprintf(w, "Run %s (seq %d)\n", s.RunID, s.Seq)
	fmt.Fprintf(w, "  records: %d  groups: %d  failed: %d  matches: %d  flags: %d\n",
		s.Records, s.Groups, s.FailedGroups, s.Matches, s.Flags)
	for _, f := range s.Failures {
		fmt.Fprintf(w, "  FAILED %s: %s\n", f.GroupKey, f.Error)
	}
	return nil
}

// writeRecordsFile writes records as CSV, creating parent directories.
func writeRecordsFile(path string, records []ir.Record, columns []string) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return source.WriteCSV(f, records, columns)
}
