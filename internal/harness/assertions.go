package harness

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/roach88/markout/internal/episode"
	"github.com/roach88/markout/internal/ir"
	"github.com/roach88/markout/internal/normalize"
)

// AssertionError is returned when an expectation or assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, ev := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s\n", ev.Seq, describeMatch(ev.Match))
	}
	return buf.String()
}

func describeMatch(m ir.MatchRecord) string {
	exit := "open"
	if m.ExitIndex != nil {
		exit = fmt.Sprint(*m.ExitIndex)
	}
	holding := "inf"
	if !math.IsInf(m.HoldingPeriod, 1) {
		holding = fmt.Sprint(int64(m.HoldingPeriod))
	}
	return fmt.Sprintf("group=%s episode=%d %s entry=%d exit=%s qty=%d holding=%s markout=%s",
		m.GroupKey, m.EpisodeID, m.EntrySide, m.EntryIndex, exit, m.MatchedQuantity, holding, m.Markout)
}

// checkExpectations compares the trace one for one with the expect list.
func checkExpectations(expect []MatchExpect, result *Result) {
	if len(expect) == 0 {
		return
	}
	if len(expect) != len(result.Trace) {
		result.AddError((&AssertionError{
			Type:     "expect",
			Expected: fmt.Sprintf("%d match records", len(expect)),
			Actual:   fmt.Sprintf("%d match records", len(result.Trace)),
			Trace:    result.Trace,
		}).Error())
		return
	}
	for i, want := range expect {
		if diff := matchDiff(want, result.Trace[i]); diff != "" {
			result.AddError((&AssertionError{
				Type:     fmt.Sprintf("expect[%d]", i),
				Expected: diff,
				Actual:   describeMatch(result.Trace[i].Match),
				Trace:    result.Trace,
			}).Error())
		}
	}
}

// matchDiff returns a description of the first mismatching field, or "".
func matchDiff(want MatchExpect, got TraceEvent) string {
	m := got.Match
	if want.Group != m.GroupKey {
		return fmt.Sprintf("group %q", want.Group)
	}
	if want.Episode != nil && *want.Episode != m.EpisodeID {
		return fmt.Sprintf("episode %d", *want.Episode)
	}
	if want.EntrySide != "" && ir.Side(want.EntrySide) != m.EntrySide {
		return fmt.Sprintf("entry_side %q", want.EntrySide)
	}
	if want.EntryIndex != nil && *want.EntryIndex != m.EntryIndex {
		return fmt.Sprintf("entry_index %d", *want.EntryIndex)
	}
	if want.ExitIndex != nil && (m.ExitIndex == nil || *want.ExitIndex != *m.ExitIndex) {
		return fmt.Sprintf("exit_index %d", *want.ExitIndex)
	}
	if want.MatchedQuantity != nil && *want.MatchedQuantity != m.MatchedQuantity {
		return fmt.Sprintf("matched_quantity %d", *want.MatchedQuantity)
	}
	if want.HoldingPeriod != nil && (math.IsInf(m.HoldingPeriod, 1) || *want.HoldingPeriod != int64(m.HoldingPeriod)) {
		return fmt.Sprintf("holding_period %d", *want.HoldingPeriod)
	}
	if want.Markout != nil {
		d, err := decimal.NewFromString(*want.Markout)
		if err != nil || !d.Equal(m.Markout) {
			return fmt.Sprintf("markout %s", *want.Markout)
		}
	}
	closed := want.ExitIndex != nil
	if want.Closed != nil {
		closed = *want.Closed
	}
	if (want.Closed != nil || want.ExitIndex != nil) && closed != m.Closed {
		return fmt.Sprintf("closed %t", closed)
	}
	if want.Closed != nil && !*want.Closed && !math.IsInf(m.HoldingPeriod, 1) {
		return "holding_period inf"
	}
	for k, v := range want.Columns {
		if got.Columns[k] != v {
			return fmt.Sprintf("column %s=%q", k, v)
		}
	}
	return ""
}

// evaluateAssertions runs every assertion of the scenario.
func evaluateAssertions(s *Scenario, result *Result) {
	for _, a := range s.Assertions {
		var err error
		switch a.Type {
		case AssertConservation:
			err = assertConservation(s, result)
		case AssertMatchCount:
			err = assertMatchCount(result, a)
		case AssertGroupStatus:
			err = assertGroupStatus(result, a)
		case AssertOversell:
			err = assertOversell(result, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			result.AddError(err.Error())
		}
	}
}

func assertMatchCount(result *Result, a Assertion) error {
	n := 0
	for _, ev := range result.Trace {
		if a.Group == "" || ev.Match.GroupKey == a.Group {
			n++
		}
	}
	if n != a.Count {
		scope := "run"
		if a.Group != "" {
			scope = "group " + a.Group
		}
		return &AssertionError{
			Type:     AssertMatchCount,
			Expected: fmt.Sprintf("%d match records in %s", a.Count, scope),
			Actual:   fmt.Sprintf("%d", n),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertGroupStatus(result *Result, a Assertion) error {
	g, ok := result.Group(a.Group)
	if !ok {
		return &AssertionError{Type: AssertGroupStatus, Expected: "group " + a.Group, Actual: "no such group"}
	}
	if g.Status != a.Status || (a.Error != "" && g.ErrorCode != a.Error) {
		return &AssertionError{
			Type:     AssertGroupStatus,
			Expected: fmt.Sprintf("group %s status %s %s", a.Group, a.Status, a.Error),
			Actual:   fmt.Sprintf("status %s %s (%s)", g.Status, g.ErrorCode, g.Error),
		}
	}
	return nil
}

func assertOversell(result *Result, a Assertion) error {
	g, ok := result.Group(a.Group)
	if !ok {
		return &AssertionError{Type: AssertOversell, Expected: "group " + a.Group, Actual: "no such group"}
	}
	for _, f := range g.Oversell {
		if a.ExitIndex != nil && f.ExitIndex != *a.ExitIndex {
			continue
		}
		if a.Remaining != nil && f.Remaining != *a.Remaining {
			continue
		}
		return nil
	}
	return &AssertionError{
		Type:     AssertOversell,
		Expected: fmt.Sprintf("oversell flag in group %s", a.Group),
		Actual:   fmt.Sprintf("%d oversell flags (status %s)", len(g.Oversell), g.Status),
		Trace:    result.Trace,
	}
}

// quantityKey identifies one side of one event within an episode.
type quantityKey struct {
	episode int
	index   int
	exit    bool
}

// assertConservation checks, for every successful group without an
// oversell flag, that each entry's matched plus unclosed quantity equals
// its quantity and each exit is fully matched.
func assertConservation(s *Scenario, result *Result) error {
	events := map[string][]ir.Event{}
	for i, step := range s.Events {
		price, err := decimal.NewFromString(step.Price)
		if err != nil {
			return err
		}
		events[step.Group] = append(events[step.Group], ir.Event{
			GroupKey: step.Group, Time: step.Time, Side: ir.Side(step.Side),
			Quantity: step.Quantity, Price: price, OriginalIndex: i,
		})
	}

	for _, g := range result.Groups {
		if g.Status != "ok" || len(g.Oversell) > 0 {
			continue
		}
		signed, _, err := normalize.Normalize(events[g.Key], s.Directions,
			normalize.WithSplitReversals(s.Options.Split()))
		if err != nil {
			return fmt.Errorf("conservation: group %s: %w", g.Key, err)
		}

		want := map[quantityKey]int64{}
		for _, ep := range episode.Assign(signed) {
			for _, ev := range ep.Events {
				k := quantityKey{episode: ep.ID, index: ev.OriginalIndex, exit: ev.Side != ep.EntrySide}
				want[k] += ev.Quantity
			}
		}
		got := map[quantityKey]int64{}
		for _, m := range g.Matches {
			got[quantityKey{episode: m.EpisodeID, index: m.EntryIndex}] += m.MatchedQuantity
			if m.ExitIndex != nil {
				got[quantityKey{episode: m.EpisodeID, index: *m.ExitIndex, exit: true}] += m.MatchedQuantity
			}
		}

		if diffs := quantityDiffs(want, got); len(diffs) > 0 {
			return &AssertionError{
				Type:     AssertConservation,
				Expected: fmt.Sprintf("balanced quantities in group %s", g.Key),
				Actual:   strings.Join(diffs, "; "),
				Trace:    result.Trace,
			}
		}
	}
	return nil
}

func quantityDiffs(want, got map[quantityKey]int64) []string {
	keys := map[quantityKey]bool{}
	for k := range want {
		keys[k] = true
	}
	for k := range got {
		keys[k] = true
	}
	var diffs []string
	for k := range keys {
		if want[k] != got[k] {
			role := "entry"
			if k.exit {
				role = "exit"
			}
			diffs = append(diffs, fmt.Sprintf("episode %d %s %d: quantity %d, matched %d",
				k.episode, role, k.index, want[k], got[k]))
		}
	}
	sort.Strings(diffs)
	return diffs
}
