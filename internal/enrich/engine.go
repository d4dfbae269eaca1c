package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/markout/internal/ir"
)

// TracerName is the instrumentation scope of engine spans.
const TracerName = "github.com/roach88/markout/internal/enrich"

// cancelCheckInterval is how many records are processed between context checks.
const cancelCheckInterval = 256

// GroupResult is the outcome of one group.
//
// Err is set when the group failed; Records is then nil. Flags holds
// recoverable errors raised while the group still completed.
type GroupResult struct {
	Key         string
	Records     []ir.Record
	Flags       []error
	Err         error
	InputDigest string
	InputCount  int
	Duration    time.Duration
}

// Group is one partition of a batch.
type Group struct {
	Key     string
	Records []ir.Record
}

// Engine applies a fixed rule list to groups of records.
//
// An Engine holds no per-group state and is safe for concurrent use.
type Engine struct {
	rules      []Rule // declaration order
	expand     int    // index of the KindExpand rule, or -1
	sourceCols []string
	workers    int
	logger     *slog.Logger
	tracer     trace.Tracer
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithWorkers bounds the number of groups processed concurrently.
//
// Default: runtime.GOMAXPROCS(0). Values below 1 mean 1.
func WithWorkers(n int) EngineOption {
	return func(e *Engine) {
		if n < 1 {
			n = 1
		}
		e.workers = n
	}
}

// WithSourceColumns declares passthrough columns of the input records.
// Rule fields may not reuse these names.
func WithSourceColumns(cols ...string) EngineOption {
	return func(e *Engine) {
		e.sourceCols = append(e.sourceCols, cols...)
	}
}

// WithLogger sets the engine logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an Engine for the given rules.
//
// The rules slice is copied so later mutation by the caller cannot change
// evaluation order. Two expanding rules, an unknown kind, or a field name
// that collides with a base column, a declared source column or another
// field is a configuration error.
func New(rules []Rule, opts ...EngineOption) (*Engine, error) {
	rulesCopy := make([]Rule, len(rules))
	copy(rulesCopy, rules)

	e := &Engine{
		rules:   rulesCopy,
		expand:  -1,
		workers: runtime.GOMAXPROCS(0),
		logger:  slog.Default(),
		tracer:  otel.Tracer(TracerName),
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := e.validate(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) validate() error {
	owner := make(map[string]string)
	for _, c := range ir.BaseColumns() {
		owner[c] = "base column"
	}
	for _, c := range e.sourceCols {
		if prev, ok := owner[c]; ok {
			return ir.NewConfigurationError("source column %q collides with %s", c, prev)
		}
		owner[c] = "source column"
	}

	names := make(map[string]bool)
	for i, r := range e.rules {
		if r == nil {
			return ir.NewConfigurationError("rule %d is nil", i)
		}
		name := r.Name()
		if name == "" {
			return ir.NewConfigurationError("rule %d has no name", i)
		}
		if names[name] {
			return ir.NewConfigurationError("duplicate rule name %q", name)
		}
		names[name] = true

		switch r.Kind() {
		case KindColumn:
		case KindExpand:
			if e.expand >= 0 {
				return ir.NewConfigurationError("rules %q and %q are both row-expanding",
					e.rules[e.expand].Name(), name)
			}
			e.expand = i
		default:
			return ir.NewConfigurationError("rule %q has unknown kind %d", name, r.Kind())
		}

		fields := r.Fields()
		if len(fields) == 0 {
			return ir.NewConfigurationError("rule %q declares no fields", name)
		}
		for _, f := range fields {
			if f == "" {
				return ir.NewConfigurationError("rule %q declares an empty field name", name)
			}
			if prev, ok := owner[f]; ok {
				return ir.NewConfigurationError("field %q of rule %q collides with %s", f, name, prev)
			}
			owner[f] = fmt.Sprintf("rule %q", name)
		}
	}
	return nil
}

// Rules returns the rules in declaration order.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Partition splits records by group key, keeping first-appearance order of
// keys and input order within each group.
func Partition(records []ir.Record) []Group {
	index := make(map[string]int)
	var groups []Group
	for _, rec := range records {
		i, ok := index[rec.GroupKey]
		if !ok {
			i = len(groups)
			index[rec.GroupKey] = i
			groups = append(groups, Group{Key: rec.GroupKey})
		}
		groups[i].Records = append(groups[i].Records, rec)
	}
	return groups
}

// CheckOrder verifies in one linear pass that every record belongs to the
// group, that original indexes are unique and that time never decreases.
// Records are never re-sorted.
func CheckOrder(key string, records []ir.Record) error {
	seen := make(map[int]struct{}, len(records))
	for i, rec := range records {
		if rec.GroupKey != key {
			return ir.NewInvalidEventError(key, rec.OriginalIndex,
				fmt.Errorf("record of group %q in group %q", rec.GroupKey, key))
		}
		if _, dup := seen[rec.OriginalIndex]; dup {
			return ir.NewInvalidEventError(key, rec.OriginalIndex,
				fmt.Errorf("duplicate original index %d", rec.OriginalIndex))
		}
		seen[rec.OriginalIndex] = struct{}{}
		if i > 0 && rec.Time < records[i-1].Time {
			return ir.NewOrderingViolation(key, rec.OriginalIndex, records[i-1].Time, rec.Time)
		}
	}
	return nil
}

// Run processes a batch: it partitions records by key and processes the
// groups in parallel on at most the configured number of workers.
//
// Per-group failures are reported in GroupResult.Err and never stop other
// groups. The returned error is non-nil only when ctx is cancelled; results
// of groups that finished before cancellation are still returned.
func (e *Engine) Run(ctx context.Context, records []ir.Record) ([]GroupResult, error) {
	groups := Partition(records)

	ctx, span := e.tracer.Start(ctx, "enrich.Run", trace.WithAttributes(
		attribute.Int("records", len(records)),
		attribute.Int("groups", len(groups)),
		attribute.Int("workers", e.workers),
	))
	defer span.End()

	e.logger.Info("enrichment starting",
		"records", len(records),
		"groups", len(groups),
		"workers", e.workers,
	)

	results := make([]GroupResult, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, grp := range groups {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = GroupResult{Key: grp.Key, Err: err, InputCount: len(grp.Records)}
				return err
			}
			results[i] = e.RunGroup(gctx, grp.Key, grp.Records)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return results, err
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	span.SetAttributes(attribute.Int("failed_groups", failed))
	e.logger.Info("enrichment finished", "groups", len(groups), "failed", failed)
	return results, nil
}

// RunGroup processes the records of one group sequentially.
func (e *Engine) RunGroup(ctx context.Context, key string, records []ir.Record) GroupResult {
	ctx, span := e.tracer.Start(ctx, "enrich.RunGroup", trace.WithAttributes(
		attribute.String("group", key),
		attribute.Int("records", len(records)),
	))
	defer span.End()

	start := time.Now()
	res := GroupResult{Key: key, InputCount: len(records)}
	fail := func(err error) GroupResult {
		res.Err = err
		res.Records = nil
		res.Duration = time.Since(start)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Error("group failed", "group", key, "error", err)
		return res
	}

	if err := CheckOrder(key, records); err != nil {
		return fail(err)
	}

	events := make([]ir.Event, len(records))
	for i, rec := range records {
		events[i] = rec.Event
	}
	digest, err := ir.InputDigest(events)
	if err != nil {
		return fail(fmt.Errorf("input digest: %w", err))
	}
	res.InputDigest = digest

	states := make([]State, len(e.rules))
	for i, r := range e.rules {
		states[i] = r.NewState(key)
	}

	var finisher Finisher
	var sources map[int]ir.Record
	if e.expand >= 0 {
		if f, ok := e.rules[e.expand].(Finisher); ok {
			finisher = f
			sources = make(map[int]ir.Record)
		}
	}

	for n, rec := range records {
		if n%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return fail(err)
			}
		}

		out := rec.Clone()
		var expanded []Row
		for i, r := range e.rules {
			rows, err := r.Apply(out, states[i])
			if err != nil {
				if !IsRecoverable(err) {
					return fail(fmt.Errorf("rule %s: %w", r.Name(), err))
				}
				res.Flags = append(res.Flags, err)
				e.logger.Warn("group flagged",
					"group", key,
					"rule", r.Name(),
					"index", rec.OriginalIndex,
					"error", err,
				)
			}

			if i == e.expand {
				for _, row := range rows {
					if err := checkRow(r, row); err != nil {
						return fail(ir.NewRuleContractError(key, rec.OriginalIndex, "%v", err))
					}
				}
				expanded = rows
				continue
			}

			switch {
			case len(rows) == 1:
				if err := checkRow(r, rows[0]); err != nil {
					return fail(ir.NewRuleContractError(key, rec.OriginalIndex, "%v", err))
				}
				mergeRow(&out, r.Fields(), rows[0])
			case len(rows) == 0 && err != nil:
				// Flagged record: fields present but empty.
				mergeRow(&out, r.Fields(), nil)
			default:
				return fail(ir.NewRuleContractError(key, rec.OriginalIndex,
					"column rule %q returned %d rows", r.Name(), len(rows)))
			}
		}

		if sources != nil {
			sources[rec.OriginalIndex] = out
		}
		if e.expand < 0 {
			res.Records = append(res.Records, out)
			continue
		}
		fields := e.rules[e.expand].Fields()
		for _, row := range expanded {
			c := out.Clone()
			mergeRow(&c, fields, row)
			res.Records = append(res.Records, c)
		}
	}

	if finisher != nil {
		r := e.rules[e.expand]
		trailing, err := finisher.Finish(states[e.expand])
		if err != nil {
			if !IsRecoverable(err) {
				return fail(fmt.Errorf("rule %s finish: %w", r.Name(), err))
			}
			res.Flags = append(res.Flags, err)
		}
		for _, tr := range trailing {
			src, ok := sources[tr.Source]
			if !ok {
				return fail(ir.NewRuleContractError(key, tr.Source,
					"rule %q emitted a trailing row for an unknown record", r.Name()))
			}
			if err := checkRow(r, tr.Row); err != nil {
				return fail(ir.NewRuleContractError(key, tr.Source, "%v", err))
			}
			c := src.Clone()
			mergeRow(&c, r.Fields(), tr.Row)
			res.Records = append(res.Records, c)
		}
	}

	res.Duration = time.Since(start)
	span.SetAttributes(
		attribute.Int("records_out", len(res.Records)),
		attribute.Int("flags", len(res.Flags)),
	)
	e.logger.Debug("group processed",
		"group", key,
		"records_in", len(records),
		"records_out", len(res.Records),
		"flags", len(res.Flags),
	)
	return res
}

// checkRow rejects keys the rule did not declare.
func checkRow(r Rule, row Row) error {
	for k := range row {
		declared := false
		for _, f := range r.Fields() {
			if f == k {
				declared = true
				break
			}
		}
		if !declared {
			return fmt.Errorf("rule %q returned undeclared field %q", r.Name(), k)
		}
	}
	return nil
}

func mergeRow(rec *ir.Record, fields []string, row Row) {
	for _, f := range fields {
		rec.Columns[f] = row[f]
	}
}
