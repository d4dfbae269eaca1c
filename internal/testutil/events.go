package testutil

import (
	"github.com/shopspring/decimal"

	"github.com/roach88/markout/internal/ir"
)

// Directions used throughout the tests.
var Directions = ir.Directions{Reference: "Buy", Opposite: "Sell"}

// GroupBuilder builds the events of one group in arrival order.
// OriginalIndex is assigned from a counter that can be shared between
// builders to mimic rows of one input file.
type GroupBuilder struct {
	key    string
	next   *int
	events []ir.Event
}

// NewGroup starts a builder with its own index counter.
func NewGroup(key string) *GroupBuilder {
	n := 0
	return &GroupBuilder{key: key, next: &n}
}

// Share returns a builder for another group continuing this one's counter.
func (g *GroupBuilder) Share(key string) *GroupBuilder {
	return &GroupBuilder{key: key, next: g.next}
}

// Buy appends a reference-side fill.
func (g *GroupBuilder) Buy(t, qty int64, price string) *GroupBuilder {
	return g.Add(t, Directions.Reference, qty, price)
}

// Sell appends an opposite-side fill.
func (g *GroupBuilder) Sell(t, qty int64, price string) *GroupBuilder {
	return g.Add(t, Directions.Opposite, qty, price)
}

// Add appends a fill with an arbitrary side label.
func (g *GroupBuilder) Add(t int64, side ir.Side, qty int64, price string) *GroupBuilder {
	g.events = append(g.events, ir.Event{
		GroupKey:      g.key,
		Time:          t,
		Side:          side,
		Quantity:      qty,
		Price:         decimal.RequireFromString(price),
		OriginalIndex: *g.next,
	})
	*g.next++
	return g
}

// Events returns a copy of the built events.
func (g *GroupBuilder) Events() []ir.Event {
	out := make([]ir.Event, len(g.events))
	copy(out, g.events)
	return out
}

// Records wraps the built events as records with empty passthrough maps.
func (g *GroupBuilder) Records() []ir.Record {
	out := make([]ir.Record, len(g.events))
	for i, ev := range g.events {
		out[i] = ir.NewRecord(ev)
	}
	return out
}
