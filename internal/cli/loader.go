package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/markout/internal/config"
	"github.com/roach88/markout/internal/enrich"
	"github.com/roach88/markout/internal/fifo"
	"github.com/roach88/markout/internal/ir"
	"github.com/roach88/markout/internal/normalize"
	"github.com/roach88/markout/internal/source"
	"github.com/roach88/markout/internal/store"
)

// job is a loaded configuration and input file, ready to run.
type job struct {
	cfg    *config.Config
	digest string
	table  *source.Table
}

// loadJob reads and validates the config, then reads the input with the
// column mapping the config selects.
func loadJob(configPath, inputPath string) (*job, string, error) {
	if configPath == "" {
		return nil, CodeConfig, errors.New("--config is required")
	}
	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return nil, CodeConfig, err
	}
	digest, err := cfg.Digest()
	if err != nil {
		return nil, CodeConfig, fmt.Errorf("config digest: %w", err)
	}
	mapping, err := cfg.Mapping()
	if err != nil {
		return nil, CodeConfig, err
	}
	table, err := source.ReadCSVFile(inputPath, mapping)
	if err != nil {
		return nil, CodeInput, fmt.Errorf("read %s: %w", inputPath, err)
	}
	return &job{cfg: cfg, digest: digest, table: table}, "", nil
}

// engine builds the enrichment engine: the position rule when requested,
// then the FIFO rule.
func (j *job) engine(positions bool, logger *slog.Logger) (*enrich.Engine, error) {
	var rules []enrich.Rule
	if positions {
		rules = append(rules, normalize.NewPositionRule(j.cfg.Directions,
			normalize.WithSplitReversals(j.cfg.Split()),
			normalize.WithLogger(logger),
		))
	}
	rules = append(rules, fifo.NewRule(j.cfg.Directions, j.cfg.FIFOOptions(logger)...))

	return enrich.New(rules,
		enrich.WithWorkers(j.cfg.Workers),
		enrich.WithSourceColumns(j.table.Columns...),
		enrich.WithLogger(logger),
	)
}

// run executes the engine over the whole input.
func (j *job) run(ctx context.Context, positions bool, logger *slog.Logger) ([]enrich.GroupResult, error) {
	eng, err := j.engine(positions, logger)
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	return eng.Run(ctx, j.table.Records)
}

// outputColumns lists the columns written after the base columns.
func (j *job) outputColumns(positions bool) []string {
	cols := append([]string{}, j.table.Columns...)
	if positions {
		cols = append(cols, normalize.FieldSignedQuantity, normalize.FieldCumulativePosition)
	}
	return append(cols, fifo.Fields()...)
}

// groupRecord converts an engine result into its stored form and the
// matches to persist with it.
func groupRecord(runID string, seq int, g enrich.GroupResult) (store.GroupResult, []ir.MatchRecord, error) {
	gr := store.GroupResult{
		RunID:       runID,
		GroupKey:    g.Key,
		Seq:         seq,
		Status:      store.StatusOK,
		InputCount:  g.InputCount,
		InputDigest: g.InputDigest,
	}
	for _, flag := range g.Flags {
		gr.Flags = append(gr.Flags, flag.Error())
	}

	if g.Err != nil {
		gr.Status = store.StatusFailed
		gr.Error = g.Err.Error()
		return gr, nil, nil
	}

	matches, err := fifo.Matches(g.Records)
	if err != nil {
		return gr, nil, fmt.Errorf("group %q: %w", g.Key, err)
	}
	digest, err := ir.MatchDigest(matches)
	if err != nil {
		return gr, nil, fmt.Errorf("group %q: %w", g.Key, err)
	}
	gr.MatchDigest = digest
	gr.MatchCount = len(matches)
	return gr, matches, nil
}

// errorCode names the failure class of a group error.
func errorCode(err error) string {
	var re *ir.RuntimeError
	if errors.As(err, &re) {
		return string(re.Code)
	}
	var oe *fifo.OversellError
	if errors.As(err, &oe) {
		return "ERR_OVERSELL"
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "ERR_CANCELLED"
	}
	return "ERR_INTERNAL"
}

// summary is the per-batch report printed by match.
type summary struct {
	RunID        string         `json:"run_id,omitempty"`
	Seq          int64          `json:"seq,omitempty"`
	Records      int            `json:"records"`
	Groups       int            `json:"groups"`
	FailedGroups int            `json:"failed_groups"`
	Matches      int            `json:"matches"`
	Flags        int            `json:"flags"`
	Failures     []groupFailure `json:"failures,omitempty"`
}

type groupFailure struct {
	GroupKey string `json:"group_key"`
	Code     string `json:"code"`
	Error    string `json:"error"`
}

func (s *summary) add(g store.GroupResult, code string) {
	s.Groups++
	s.Matches += g.MatchCount
	s.Flags += len(g.Flags)
	if g.Status == store.StatusFailed {
		s.FailedGroups++
		s.Failures = append(s.Failures, groupFailure{GroupKey: g.GroupKey, Code: code, Error: g.Error})
	}
}
