package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/roach88/markout/internal/enrich"
	"github.com/roach88/markout/internal/fifo"
	"github.com/roach88/markout/internal/ir"
)

// Harness runs scenarios.
type Harness struct {
	logger  *slog.Logger
	workers int
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger handed to the engine. Default: discard.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithWorkers sets the engine worker count. Default: 1.
func WithWorkers(n int) Option {
	return func(h *Harness) {
		if n > 0 {
			h.workers = n
		}
	}
}

// New creates a harness.
func New(opts ...Option) *Harness {
	h := &Harness{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		workers: 1,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes a scenario with default options.
func Run(scenario *Scenario) (*Result, error) {
	return New().Run(context.Background(), scenario)
}

// Run executes a scenario and returns the result.
//
// The returned error covers scenarios that cannot run at all (bad prices,
// an engine that cannot be built). Group failures and unmet expectations
// are reported in the Result.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	records, columns, err := scenarioRecords(scenario)
	if err != nil {
		return nil, err
	}

	policy, err := fifo.ParsePolicy(scenario.Options.OversellPolicy)
	if err != nil {
		return nil, err
	}
	rule := fifo.NewRule(scenario.Directions,
		fifo.WithSplitReversals(scenario.Options.Split()),
		fifo.WithPolicy(policy),
		fifo.WithLogger(h.logger),
	)
	eng, err := enrich.New([]enrich.Rule{rule},
		enrich.WithSourceColumns(columns...),
		enrich.WithWorkers(h.workers),
		enrich.WithLogger(h.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}

	groups, err := eng.Run(ctx, records)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	for _, g := range groups {
		outcome, err := h.collect(g, columns, result)
		if err != nil {
			return nil, err
		}
		result.Groups = append(result.Groups, outcome)
	}

	checkExpectations(scenario.Expect, result)
	evaluateAssertions(scenario, result)
	return result, nil
}

// collect converts one group result and appends its matches to the trace.
func (h *Harness) collect(g enrich.GroupResult, columns []string, result *Result) (GroupOutcome, error) {
	out := GroupOutcome{
		Key:         g.Key,
		Status:      "ok",
		InputDigest: g.InputDigest,
		Flags:       g.Flags,
		Matches:     []ir.MatchRecord{},
	}

	if g.Err != nil {
		out.Status = "failed"
		out.Error = g.Err.Error()
		var re *ir.RuntimeError
		var oe *fifo.OversellError
		switch {
		case errors.As(g.Err, &re):
			out.ErrorCode = string(re.Code)
		case errors.As(g.Err, &oe):
			out.ErrorCode = "ERR_OVERSELL"
		}
		return out, nil
	}

	for _, flag := range g.Flags {
		var oe *fifo.OversellError
		if errors.As(flag, &oe) {
			out.Oversell = append(out.Oversell, OversellFlag{
				Episode:   oe.EpisodeID,
				ExitIndex: oe.ExitIndex,
				Remaining: oe.Remaining,
			})
		}
	}

	for _, rec := range g.Records {
		m, err := fifo.MatchFromRecord(rec)
		if err != nil {
			return out, fmt.Errorf("group %q: %w", g.Key, err)
		}
		out.Matches = append(out.Matches, m)

		ev := TraceEvent{Seq: len(result.Trace) + 1, Match: m}
		for _, col := range columns {
			if v, ok := rec.Columns[col].(string); ok {
				if ev.Columns == nil {
					ev.Columns = map[string]string{}
				}
				ev.Columns[col] = v
			}
		}
		result.Trace = append(result.Trace, ev)
	}

	digest, err := ir.MatchDigest(out.Matches)
	if err != nil {
		return out, fmt.Errorf("group %q: %w", g.Key, err)
	}
	out.MatchDigest = digest
	return out, nil
}

// scenarioRecords builds input records; the original index is the event's
// position in the scenario. Returns the sorted passthrough column names.
func scenarioRecords(s *Scenario) ([]ir.Record, []string, error) {
	records := make([]ir.Record, len(s.Events))
	cols := map[string]bool{}
	for i, step := range s.Events {
		price, err := decimal.NewFromString(step.Price)
		if err != nil {
			return nil, nil, fmt.Errorf("events[%d]: price %q: %w", i, step.Price, err)
		}
		rec := ir.NewRecord(ir.Event{
			GroupKey:      step.Group,
			Time:          step.Time,
			Side:          ir.Side(step.Side),
			Quantity:      step.Quantity,
			Price:         price,
			OriginalIndex: i,
		})
		for k, v := range step.Columns {
			rec.Columns[k] = v
			cols[k] = true
		}
		records[i] = rec
	}
	return records, slices.Sorted(maps.Keys(cols)), nil
}
