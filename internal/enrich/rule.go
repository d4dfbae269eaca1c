package enrich

import (
	"errors"

	"github.com/roach88/markout/internal/ir"
)

// Kind declares how many output rows a rule produces per input record.
type Kind int

const (
	// KindColumn rules return exactly one row per input. Its fields are
	// merged into the input record.
	KindColumn Kind = iota + 1

	// KindExpand rules return zero or more rows per input. Each row becomes
	// its own output record carrying the source record's other columns.
	KindExpand
)

func (k Kind) String() string {
	switch k {
	case KindColumn:
		return "column"
	case KindExpand:
		return "expand"
	default:
		return "unknown"
	}
}

// Row is one rule output: field name to value.
type Row map[string]any

// State is a rule's private per-group state.
type State any

// Rule is one pluggable enrichment step.
//
// The engine calls NewState once per group and passes that state to every
// Apply call for the group's records, in time order. State is never shared
// between groups.
type Rule interface {
	Name() string
	Kind() Kind
	Fields() []string
	NewState(groupKey string) State
	Apply(rec ir.Record, state State) ([]Row, error)
}

// Finisher is implemented by rules that emit trailing rows when a group
// ends, such as positions still open at the end of the data.
type Finisher interface {
	Finish(state State) ([]Trailing, error)
}

// Trailing is a row emitted at group end. Source is the original index of
// the record whose other columns the output carries.
type Trailing struct {
	Source int
	Row    Row
}

// Recoverable is implemented by errors that flag a group without failing it.
type Recoverable interface {
	Recoverable() bool
}

// IsRecoverable reports whether err flags rather than fails a group.
// Uses errors.As to handle wrapped errors.
func IsRecoverable(err error) bool {
	var r Recoverable
	if errors.As(err, &r) {
		return r.Recoverable()
	}
	return false
}
