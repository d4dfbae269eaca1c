package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/markout/internal/ir"
)

func TestRun_TestdataScenariosPass(t *testing.T) {
	results, err := New(WithWorkers(4)).RunDir(context.Background(), "testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, results)

	for _, fr := range results {
		t.Run(fr.Scenario, func(t *testing.T) {
			require.NoError(t, fr.Err)
			assert.True(t, fr.Passed(), "errors: %v", fr.Result.Errors)
		})
	}
}

func TestRun_ReversalEpisodesAndSides(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/reversal_split.yaml")
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	require.Len(t, result.Trace, 2)

	assert.Equal(t, 1, result.Trace[0].Match.EpisodeID)
	assert.Equal(t, ir.Side("Buy"), result.Trace[0].Match.EntrySide)
	assert.Equal(t, 2, result.Trace[1].Match.EpisodeID)
	assert.Equal(t, ir.Side("Sell"), result.Trace[1].Match.EntrySide)
	assert.Equal(t, []int{1, 2}, []int{result.Trace[0].Seq, result.Trace[1].Seq})
}

func TestRun_ExpectationMismatchFails(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: wrong_quantity
description: expectation that does not hold
directions: {reference: Buy, opposite: Sell}
events:
  - {group: X, time: 0, side: Buy, quantity: 100, price: "10"}
  - {group: X, time: 1, side: Sell, quantity: 100, price: "10"}
expect:
  - {group: X, entry_index: 0, exit_index: 1, matched_quantity: 99}
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "matched_quantity 99")
	assert.Contains(t, result.Errors[0], "Full trace")
}

func TestRun_ExpectCountMismatch(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: too_many
description: more expectations than records
directions: {reference: Buy, opposite: Sell}
events:
  - {group: X, time: 0, side: Buy, quantity: 1, price: "1"}
expect:
  - {group: X}
  - {group: X}
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "2 match records")
}

func TestRun_FailingAssertions(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: failing_assertions
description: every assertion type failing
directions: {reference: Buy, opposite: Sell}
events:
  - {group: X, time: 0, side: Buy, quantity: 1, price: "1"}
assertions:
  - {type: match_count, count: 5}
  - {type: group_status, group: X, status: failed}
  - {type: group_status, group: Nope, status: ok}
  - {type: oversell, group: X}
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Len(t, result.Errors, 4)
}

func TestRun_BadPrice(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: bad_price
description: unparsable price
directions: {reference: Buy, opposite: Sell}
events:
  - {group: X, time: 0, side: Buy, quantity: 1, price: "ten"}
assertions: [{type: conservation}]
`))
	require.NoError(t, err)

	_, err = Run(s)
	assert.ErrorContains(t, err, "events[0]")
}

func TestRun_InvalidSideFailsGroup(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: invalid_side
description: side outside the directions
directions: {reference: Buy, opposite: Sell}
events:
  - {group: X, time: 0, side: Hold, quantity: 1, price: "1"}
assertions:
  - {type: group_status, group: X, status: failed, error: ERR_INVALID_EVENT}
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_Deterministic(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/oversell_without_split.yaml")
	require.NoError(t, err)

	first, err := New(WithWorkers(1)).Run(context.Background(), s)
	require.NoError(t, err)
	second, err := New(WithWorkers(8)).Run(context.Background(), s)
	require.NoError(t, err)

	a, err := Snapshot(s.Name, first)
	require.NoError(t, err)
	b, err := Snapshot(s.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))

	for i := range first.Groups {
		assert.Equal(t, first.Groups[i].MatchDigest, second.Groups[i].MatchDigest)
		assert.Equal(t, first.Groups[i].InputDigest, second.Groups[i].InputDigest)
	}
}

func TestRunDir_ReportsLoadErrors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: ["), 0o644))

	results, err := New().RunDir(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
	assert.False(t, results[0].Passed())
}
