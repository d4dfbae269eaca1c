package fifo

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/roach88/markout/internal/enrich"
	"github.com/roach88/markout/internal/ir"
)

// Output fields of the FIFO rule.
const (
	FieldEpisodeID       = "episode_id"
	FieldEntrySide       = "entry_side"
	FieldEntryIndex      = "entry_index"
	FieldExitIndex       = "exit_index"
	FieldEntryTime       = "entry_time"
	FieldExitTime        = "exit_time"
	FieldEntryPrice      = "entry_price"
	FieldExitPrice       = "exit_price"
	FieldMatchedQuantity = "matched_quantity"
	FieldHoldingPeriod   = "holding_period"
	FieldMarkout         = "markout"
	FieldClosed          = "is_closed"
)

// Fields lists the FIFO rule output fields in output order.
func Fields() []string {
	return []string{
		FieldEpisodeID, FieldEntrySide, FieldEntryIndex, FieldExitIndex,
		FieldEntryTime, FieldExitTime, FieldEntryPrice, FieldExitPrice,
		FieldMatchedQuantity, FieldHoldingPeriod, FieldMarkout, FieldClosed,
	}
}

// RuleName is the name of the FIFO rule.
const RuleName = "fifo"

// Rule adapts the FIFO pipeline as a row-expanding enrichment rule.
//
// Closed matches are emitted on the exit record, so the output carries the
// exit's passthrough columns. Unclosed lots are emitted at group end on the
// entry record that opened them.
type Rule struct {
	dirs ir.Directions
	opts []Option
}

var (
	_ enrich.Rule     = (*Rule)(nil)
	_ enrich.Finisher = (*Rule)(nil)
)

// NewRule creates the FIFO rule.
func NewRule(dirs ir.Directions, opts ...Option) *Rule {
	return &Rule{dirs: dirs, opts: opts}
}

func (r *Rule) Name() string      { return RuleName }
func (r *Rule) Kind() enrich.Kind { return enrich.KindExpand }
func (r *Rule) Fields() []string  { return Fields() }

// NewState creates the group's pipeline.
func (r *Rule) NewState(groupKey string) enrich.State {
	return NewPipeline(groupKey, r.dirs, r.opts...)
}

// Apply feeds one record to the group's pipeline.
func (r *Rule) Apply(rec ir.Record, state enrich.State) ([]enrich.Row, error) {
	p, ok := state.(*Pipeline)
	if !ok {
		return nil, fmt.Errorf("fifo: unexpected state %T", state)
	}
	recs, err := p.Push(rec.Event)
	rows := make([]enrich.Row, len(recs))
	for i, m := range recs {
		rows[i] = MatchRow(m)
	}
	return rows, err
}

// Finish emits the unclosed lots of the group's final episode.
func (r *Rule) Finish(state enrich.State) ([]enrich.Trailing, error) {
	p, ok := state.(*Pipeline)
	if !ok {
		return nil, fmt.Errorf("fifo: unexpected state %T", state)
	}
	recs := p.Finish()
	out := make([]enrich.Trailing, len(recs))
	for i, m := range recs {
		out[i] = enrich.Trailing{Source: m.EntryIndex, Row: MatchRow(m)}
	}
	return out, nil
}

// MatchRow renders a match record as rule output. Nullable exit fields are
// nil for unclosed records.
func MatchRow(m ir.MatchRecord) enrich.Row {
	row := enrich.Row{
		FieldEpisodeID:       m.EpisodeID,
		FieldEntrySide:       string(m.EntrySide),
		FieldEntryIndex:      m.EntryIndex,
		FieldExitIndex:       nil,
		FieldEntryTime:       m.EntryTime,
		FieldExitTime:        nil,
		FieldEntryPrice:      m.EntryPrice,
		FieldExitPrice:       nil,
		FieldMatchedQuantity: m.MatchedQuantity,
		FieldHoldingPeriod:   m.HoldingPeriod,
		FieldMarkout:         m.Markout,
		FieldClosed:          m.Closed,
	}
	if m.ExitIndex != nil {
		row[FieldExitIndex] = *m.ExitIndex
	}
	if m.ExitTime != nil {
		row[FieldExitTime] = *m.ExitTime
	}
	if m.ExitPrice != nil {
		row[FieldExitPrice] = *m.ExitPrice
	}
	return row
}

// MatchFromRecord recovers the match record carried by an output record of
// the FIFO rule.
func MatchFromRecord(rec ir.Record) (ir.MatchRecord, error) {
	m := ir.MatchRecord{GroupKey: rec.GroupKey, HoldingPeriod: math.Inf(1)}
	var err error
	get := func(name string) any {
		v, ok := rec.Columns[name]
		if !ok && err == nil {
			err = fmt.Errorf("record %d: missing column %q", rec.OriginalIndex, name)
		}
		return v
	}
	typed := func(name string, ok bool) {
		if !ok && err == nil {
			err = fmt.Errorf("record %d: column %q has type %T", rec.OriginalIndex, name, rec.Columns[name])
		}
	}

	var ok bool
	m.EpisodeID, ok = get(FieldEpisodeID).(int)
	typed(FieldEpisodeID, ok)
	side, ok := get(FieldEntrySide).(string)
	typed(FieldEntrySide, ok)
	m.EntrySide = ir.Side(side)
	m.EntryIndex, ok = get(FieldEntryIndex).(int)
	typed(FieldEntryIndex, ok)
	m.EntryTime, ok = get(FieldEntryTime).(int64)
	typed(FieldEntryTime, ok)
	m.EntryPrice, ok = get(FieldEntryPrice).(decimal.Decimal)
	typed(FieldEntryPrice, ok)
	m.MatchedQuantity, ok = get(FieldMatchedQuantity).(int64)
	typed(FieldMatchedQuantity, ok)
	m.HoldingPeriod, ok = get(FieldHoldingPeriod).(float64)
	typed(FieldHoldingPeriod, ok)
	m.Markout, ok = get(FieldMarkout).(decimal.Decimal)
	typed(FieldMarkout, ok)
	m.Closed, ok = get(FieldClosed).(bool)
	typed(FieldClosed, ok)

	if v := get(FieldExitIndex); v != nil {
		idx, ok := v.(int)
		typed(FieldExitIndex, ok)
		m.ExitIndex = &idx
	}
	if v := get(FieldExitTime); v != nil {
		t, ok := v.(int64)
		typed(FieldExitTime, ok)
		m.ExitTime = &t
	}
	if v := get(FieldExitPrice); v != nil {
		p, ok := v.(decimal.Decimal)
		typed(FieldExitPrice, ok)
		m.ExitPrice = &p
	}
	return m, err
}

// Matches extracts the match records of a group's output records in order.
func Matches(records []ir.Record) ([]ir.MatchRecord, error) {
	out := make([]ir.MatchRecord, 0, len(records))
	for _, rec := range records {
		m, err := MatchFromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
