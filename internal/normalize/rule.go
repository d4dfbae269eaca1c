package normalize

import (
	"errors"
	"fmt"

	"github.com/roach88/markout/internal/enrich"
	"github.com/roach88/markout/internal/ir"
)

// Output fields of the position rule.
const (
	FieldSignedQuantity     = "signed_quantity"
	FieldCumulativePosition = "cumulative_position"
)

// PositionRule is a column rule that annotates every record with its signed
// quantity and the group's cumulative position after it. A split reversal
// is reported as one value: the net signed quantity of both halves. A
// zero-quantity record gets nil values and no flag.
type PositionRule struct {
	dirs ir.Directions
	opts []Option
}

var _ enrich.Rule = (*PositionRule)(nil)

// NewPositionRule creates the position rule.
func NewPositionRule(dirs ir.Directions, opts ...Option) *PositionRule {
	return &PositionRule{dirs: dirs, opts: opts}
}

func (r *PositionRule) Name() string      { return "position" }
func (r *PositionRule) Kind() enrich.Kind { return enrich.KindColumn }
func (r *PositionRule) Fields() []string {
	return []string{FieldSignedQuantity, FieldCumulativePosition}
}

func (r *PositionRule) NewState(string) enrich.State {
	return New(r.dirs, r.opts...)
}

func (r *PositionRule) Apply(rec ir.Record, state enrich.State) ([]enrich.Row, error) {
	n, ok := state.(*Normalizer)
	if !ok {
		return nil, fmt.Errorf("position: unexpected state %T", state)
	}
	signed, err := n.Step(rec.Event)
	var w *Warning
	if errors.As(err, &w) {
		// The matching rule flags the same event.
		return []enrich.Row{{
			FieldSignedQuantity:     nil,
			FieldCumulativePosition: nil,
		}}, nil
	}
	if err != nil {
		return nil, err
	}
	var net int64
	for _, se := range signed {
		net += se.SignedQuantity
	}
	return []enrich.Row{{
		FieldSignedQuantity:     net,
		FieldCumulativePosition: n.Position(),
	}}, nil
}
