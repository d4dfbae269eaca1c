package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/markout/internal/ir"
)

func TestReadMatches_OrderedByGroupSeqThenMatchSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	run := createTestRun(t, s, "run-1")

	// Written out of seq order on purpose.
	require.NoError(t, s.WriteGroup(ctx, GroupResult{RunID: run.ID, GroupKey: "B", Seq: 2, Status: StatusOK},
		[]ir.MatchRecord{closedMatch("B", 0, 1, 1)}))
	require.NoError(t, s.WriteGroup(ctx, GroupResult{RunID: run.ID, GroupKey: "A", Seq: 1, Status: StatusOK},
		[]ir.MatchRecord{closedMatch("A", 5, 6, 1), closedMatch("A", 3, 7, 1)}))

	got, err := s.ReadMatches(ctx, run.ID, "")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "A", got[0].GroupKey)
	assert.Equal(t, 5, got[0].EntryIndex)
	assert.Equal(t, 3, got[1].EntryIndex)
	assert.Equal(t, "B", got[2].GroupKey)

	groups, err := s.ReadGroups(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "A", groups[0].GroupKey)
	assert.Equal(t, "B", groups[1].GroupKey)
}

func TestReadMatches_EmptyNotNil(t *testing.T) {
	s := createTestStore(t)
	got, err := s.ReadMatches(context.Background(), "none", "")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestReadMatches_UnclosedHoldingIsInfinite(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	run := createTestRun(t, s, "run-1")
	require.NoError(t, s.WriteGroup(ctx, GroupResult{RunID: run.ID, GroupKey: "X", Seq: 1, Status: StatusOK},
		[]ir.MatchRecord{openMatch("X", 0, 10)}))

	got, err := s.ReadMatches(ctx, run.ID, "X")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].HoldingPeriod > 1e300)
	assert.Equal(t, ir.Side("Sell"), got[0].EntrySide)
}

func TestListRuns_OrderedBySeq(t *testing.T) {
	s := createTestStore(t)
	createTestRun(t, s, "zzz")
	createTestRun(t, s, "aaa")

	runs, err := s.ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "zzz", runs[0].ID)
	assert.Equal(t, "aaa", runs[1].ID)
	assert.Equal(t, "fills.csv", runs[0].Input)

	latest, err := s.LatestRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "aaa", latest.ID)
}
