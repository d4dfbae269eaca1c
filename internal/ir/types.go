package ir

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Side is a caller-supplied direction label, e.g. "Buy" or "B".
type Side string

// Directions is the two-valued direction enumeration supplied by the caller.
// Reference maps to a positive signed quantity, Opposite to a negative one.
type Directions struct {
	Reference Side `json:"reference" yaml:"reference"`
	Opposite  Side `json:"opposite" yaml:"opposite"`
}

// Validate checks that both labels are set and distinct.
func (d Directions) Validate() error {
	if d.Reference == "" || d.Opposite == "" {
		return fmt.Errorf("directions: reference and opposite labels are required")
	}
	if d.Reference == d.Opposite {
		return fmt.Errorf("directions: reference and opposite must differ (both %q)", d.Reference)
	}
	return nil
}

// Sign returns +1 for the reference side and -1 for the opposite side.
func (d Directions) Sign(s Side) (int64, error) {
	switch s {
	case d.Reference:
		return 1, nil
	case d.Opposite:
		return -1, nil
	default:
		return 0, fmt.Errorf("side %q is neither %q nor %q", s, d.Reference, d.Opposite)
	}
}

// SideOf returns the side whose sign matches the sign of position.
// Position must be nonzero.
func (d Directions) SideOf(position int64) Side {
	if position > 0 {
		return d.Reference
	}
	return d.Opposite
}

// Event is one fill of the input stream. Immutable once read.
type Event struct {
	GroupKey      string          `json:"group_key"`
	Time          int64           `json:"time"`
	Side          Side            `json:"side"`
	Quantity      int64           `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	OriginalIndex int             `json:"original_index"`
}

// SignedEvent is an Event with its signed position delta.
//
// A reversal event is replaced by two SignedEvents with SplitPart 1 (the
// half that closes to flat) and 2 (the half that opens the other side).
// Both keep the source OriginalIndex.
type SignedEvent struct {
	Event
	SignedQuantity     int64 `json:"signed_quantity"`
	PositionBefore     int64 `json:"position_before"`
	CumulativePosition int64 `json:"cumulative_position"`
	SplitPart          int   `json:"split_part,omitempty"`
	EpisodeID          int   `json:"episode_id,omitempty"`
}

// Synthetic reports whether the event is one half of a split reversal.
func (e SignedEvent) Synthetic() bool {
	return e.SplitPart != 0
}

// Episode is a maximal flat-to-flat run of events for one group.
type Episode struct {
	ID        int           `json:"id"`
	GroupKey  string        `json:"group_key"`
	EntrySide Side          `json:"entry_side"`
	Events    []SignedEvent `json:"events"`
}

// Lot is the unmatched remainder of one Entry.
type Lot struct {
	EntryIndex int
	EntryTime  int64
	EntryPrice decimal.Decimal
	Remaining  int64
}

// MatchRecord pairs quantity from one Entry with one Exit, or reports an
// Entry remainder that never closed.
type MatchRecord struct {
	GroupKey        string
	EpisodeID       int
	EntrySide       Side
	EntryIndex      int
	ExitIndex       *int
	EntryTime       int64
	ExitTime        *int64
	EntryPrice      decimal.Decimal
	ExitPrice       *decimal.Decimal
	MatchedQuantity int64
	HoldingPeriod   float64 // +Inf when unclosed
	Markout         decimal.Decimal
	Closed          bool
}

// Unclosed returns the record reported for a lot still open when its
// episode ends.
func Unclosed(groupKey string, episodeID int, entrySide Side, lot Lot) MatchRecord {
	return MatchRecord{
		GroupKey:        groupKey,
		EpisodeID:       episodeID,
		EntrySide:       entrySide,
		EntryIndex:      lot.EntryIndex,
		EntryTime:       lot.EntryTime,
		EntryPrice:      lot.EntryPrice,
		MatchedQuantity: lot.Remaining,
		HoldingPeriod:   math.Inf(1),
		Markout:         decimal.Zero,
	}
}

// matchRecordJSON is the wire form; holding_period is omitted when infinite.
type matchRecordJSON struct {
	GroupKey        string           `json:"group_key"`
	EpisodeID       int              `json:"episode_id"`
	EntrySide       Side             `json:"entry_side"`
	EntryIndex      int              `json:"entry_index"`
	ExitIndex       *int             `json:"exit_index"`
	EntryTime       int64            `json:"entry_time"`
	ExitTime        *int64           `json:"exit_time"`
	EntryPrice      decimal.Decimal  `json:"entry_price"`
	ExitPrice       *decimal.Decimal `json:"exit_price"`
	MatchedQuantity int64            `json:"matched_quantity"`
	HoldingPeriod   *int64           `json:"holding_period"`
	Markout         decimal.Decimal  `json:"markout"`
	Closed          bool             `json:"is_closed"`
}

// MarshalJSON encodes an infinite holding period as null.
func (m MatchRecord) MarshalJSON() ([]byte, error) {
	w := matchRecordJSON{
		GroupKey:        m.GroupKey,
		EpisodeID:       m.EpisodeID,
		EntrySide:       m.EntrySide,
		EntryIndex:      m.EntryIndex,
		ExitIndex:       m.ExitIndex,
		EntryTime:       m.EntryTime,
		ExitTime:        m.ExitTime,
		EntryPrice:      m.EntryPrice,
		ExitPrice:       m.ExitPrice,
		MatchedQuantity: m.MatchedQuantity,
		Markout:         m.Markout,
		Closed:          m.Closed,
	}
	if !math.IsInf(m.HoldingPeriod, 1) {
		hp := int64(m.HoldingPeriod)
		w.HoldingPeriod = &hp
	}
	return json.Marshal(w)
}

// UnmarshalJSON restores +Inf for a null holding period.
func (m *MatchRecord) UnmarshalJSON(data []byte) error {
	var w matchRecordJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*m = MatchRecord{
		GroupKey:        w.GroupKey,
		EpisodeID:       w.EpisodeID,
		EntrySide:       w.EntrySide,
		EntryIndex:      w.EntryIndex,
		ExitIndex:       w.ExitIndex,
		EntryTime:       w.EntryTime,
		ExitTime:        w.ExitTime,
		EntryPrice:      w.EntryPrice,
		ExitPrice:       w.ExitPrice,
		MatchedQuantity: w.MatchedQuantity,
		HoldingPeriod:   math.Inf(1),
		Markout:         w.Markout,
		Closed:          w.Closed,
	}
	if w.HoldingPeriod != nil {
		m.HoldingPeriod = float64(*w.HoldingPeriod)
	}
	return nil
}

// Base column names of a Record. Rule outputs may not reuse them.
const (
	ColGroupKey      = "group_key"
	ColTime          = "time"
	ColSide          = "side"
	ColQuantity      = "quantity"
	ColPrice         = "price"
	ColOriginalIndex = "original_index"
)

// BaseColumns lists the fixed-schema column names in declaration order.
func BaseColumns() []string {
	return []string{ColGroupKey, ColTime, ColSide, ColQuantity, ColPrice, ColOriginalIndex}
}

// Record is a fixed-schema Event plus caller-supplied passthrough columns.
type Record struct {
	Event
	Columns map[string]any
}

// NewRecord creates a record with an empty passthrough map.
func NewRecord(ev Event) Record {
	return Record{Event: ev, Columns: map[string]any{}}
}

// Get returns a column value, looking at base columns first.
func (r Record) Get(name string) (any, bool) {
	switch name {
	case ColGroupKey:
		return r.GroupKey, true
	case ColTime:
		return r.Time, true
	case ColSide:
		return string(r.Side), true
	case ColQuantity:
		return r.Quantity, true
	case ColPrice:
		return r.Price, true
	case ColOriginalIndex:
		return r.OriginalIndex, true
	}
	v, ok := r.Columns[name]
	return v, ok
}

// Clone returns a copy whose Columns map can be mutated independently.
func (r Record) Clone() Record {
	cols := make(map[string]any, len(r.Columns))
	for k, v := range r.Columns {
		cols[k] = v
	}
	return Record{Event: r.Event, Columns: cols}
}
