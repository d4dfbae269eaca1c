package harness

import (
	"github.com/roach88/markout/internal/ir"
)

// TraceEvent is one match record of a run, in output order.
type TraceEvent struct {
	Seq     int               `json:"seq"`
	Match   ir.MatchRecord    `json:"match"`
	Columns map[string]string `json:"columns,omitempty"`
}

// GroupOutcome is the result of one group.
type GroupOutcome struct {
	Key         string `json:"group_key"`
	Status      string `json:"status"`
	InputDigest string `json:"input_digest"`
	MatchDigest string `json:"match_digest,omitempty"`
	// ErrorCode is the code of the group's fatal error, if any.
	ErrorCode string `json:"error_code,omitempty"`
	Error     string `json:"error,omitempty"`
	// Flags are the recoverable errors the group finished with.
	Flags    []error          `json:"-"`
	Oversell []OversellFlag   `json:"oversell,omitempty"`
	Matches  []ir.MatchRecord `json:"matches"`
}

// OversellFlag summarizes a recoverable oversell.
type OversellFlag struct {
	Episode   int   `json:"episode"`
	ExitIndex int   `json:"exit_index"`
	Remaining int64 `json:"remaining"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace holds every match record of the run in output order.
	Trace []TraceEvent `json:"trace"`

	// Groups holds per-group outcomes in first-appearance order.
	Groups []GroupOutcome `json:"groups"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Groups: []GroupOutcome{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Group returns the outcome of the named group.
func (r *Result) Group(key string) (GroupOutcome, bool) {
	for _, g := range r.Groups {
		if g.Key == key {
			return g, true
		}
	}
	return GroupOutcome{}, false
}
