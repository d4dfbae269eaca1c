// Package normalize turns one group's fills into signed position deltas.
//
// Each event gets SignedQuantity = Quantity * Sign(Side) and the running
// CumulativePosition of its group. An event that flips the position from
// long to short (or back) without touching zero is a reversal; by default
// it is replaced by two synthetic events sharing its time, price, side and
// original index: the first closes exactly to zero, the second opens the
// new side.
//
// Events with zero or negative quantity are dropped with a Warning.
package normalize

import (
	"fmt"
	"log/slog"

	"github.com/roach88/markout/internal/ir"
)

// Warning reports an event dropped as a no-op. It satisfies error so it can
// travel with other recoverable flags; it is never fatal.
type Warning struct {
	GroupKey      string
	OriginalIndex int
	Quantity      int64
	Reason        string
}

func (w *Warning) Error() string {
	return fmt.Sprintf("warning: %s (group=%s, index=%d, quantity=%d)", w.Reason, w.GroupKey, w.OriginalIndex, w.Quantity)
}

// Recoverable always reports true.
func (w *Warning) Recoverable() bool { return true }

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithSplitReversals controls reversal splitting. Default: true.
// With splitting off a reversal passes through as one event, which lets an
// exit larger than the open position reach the matcher.
func WithSplitReversals(split bool) Option {
	return func(n *Normalizer) {
		n.split = split
	}
}

// WithLogger sets the logger used for warnings. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(n *Normalizer) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// Normalizer signs the events of one group, one at a time.
// Not safe for concurrent use; create one per group.
type Normalizer struct {
	dirs   ir.Directions
	split  bool
	logger *slog.Logger

	groupKey string
	started  bool
	lastTime int64
	position int64
}

// New creates a Normalizer for one group.
func New(dirs ir.Directions, opts ...Option) *Normalizer {
	n := &Normalizer{
		dirs:   dirs,
		split:  true,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Position returns the cumulative position after the last accepted event.
func (n *Normalizer) Position() int64 {
	return n.position
}

// Step signs one event.
//
// It returns zero events and a *Warning for a no-op, one event normally, or
// two synthetic events for a split reversal. Time going backwards is an
// ordering violation; an unknown side is an invalid event. Both are fatal
// for the group.
func (n *Normalizer) Step(ev ir.Event) ([]ir.SignedEvent, error) {
	if !n.started {
		n.started = true
		n.groupKey = ev.GroupKey
	} else {
		if ev.GroupKey != n.groupKey {
			return nil, ir.NewInvalidEventError(n.groupKey, ev.OriginalIndex,
				fmt.Errorf("record of group %q in group %q", ev.GroupKey, n.groupKey))
		}
		if ev.Time < n.lastTime {
			return nil, ir.NewOrderingViolation(n.groupKey, ev.OriginalIndex, n.lastTime, ev.Time)
		}
	}
	n.lastTime = ev.Time

	if ev.Quantity <= 0 {
		w := &Warning{
			GroupKey:      ev.GroupKey,
			OriginalIndex: ev.OriginalIndex,
			Quantity:      ev.Quantity,
			Reason:        "non-positive quantity dropped",
		}
		n.logger.Warn("dropping no-op event",
			"group", ev.GroupKey,
			"index", ev.OriginalIndex,
			"quantity", ev.Quantity,
		)
		return nil, w
	}

	sign, err := n.dirs.Sign(ev.Side)
	if err != nil {
		return nil, ir.NewInvalidEventError(ev.GroupKey, ev.OriginalIndex, err)
	}

	before := n.position
	after := before + sign*ev.Quantity
	n.position = after

	if n.split && before != 0 && after != 0 && (before > 0) != (after > 0) {
		closing := ev
		closing.Quantity = abs(before)
		opening := ev
		opening.Quantity = abs(after)

		n.logger.Debug("splitting reversal",
			"group", ev.GroupKey,
			"index", ev.OriginalIndex,
			"position_before", before,
			"position_after", after,
		)
		return []ir.SignedEvent{
			{
				Event:              closing,
				SignedQuantity:     -before,
				PositionBefore:     before,
				CumulativePosition: 0,
				SplitPart:          1,
			},
			{
				Event:              opening,
				SignedQuantity:     after,
				PositionBefore:     0,
				CumulativePosition: after,
				SplitPart:          2,
			},
		}, nil
	}

	return []ir.SignedEvent{{
		Event:              ev,
		SignedQuantity:     sign * ev.Quantity,
		PositionBefore:     before,
		CumulativePosition: after,
	}}, nil
}

// Normalize signs a whole group. Warnings are collected, not returned as
// errors; the first fatal error stops processing.
func Normalize(events []ir.Event, dirs ir.Directions, opts ...Option) ([]ir.SignedEvent, []*Warning, error) {
	n := New(dirs, opts...)
	out := make([]ir.SignedEvent, 0, len(events))
	var warnings []*Warning
	for _, ev := range events {
		signed, err := n.Step(ev)
		if err != nil {
			if w, ok := err.(*Warning); ok {
				warnings = append(warnings, w)
				continue
			}
			return out, warnings, err
		}
		out = append(out, signed...)
	}
	return out, warnings, nil
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
