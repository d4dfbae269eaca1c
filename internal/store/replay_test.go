package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	run := createTestRun(t, s, "run-1")

	stored := []GroupResult{
		{RunID: run.ID, GroupKey: "A", Seq: 1, Status: StatusOK, InputDigest: "ia", MatchDigest: "ma"},
		{RunID: run.ID, GroupKey: "B", Seq: 2, Status: StatusOK, InputDigest: "ib", MatchDigest: "mb"},
	}
	for _, g := range stored {
		require.NoError(t, s.WriteGroup(ctx, g, nil))
	}

	t.Run("identical", func(t *testing.T) {
		divs, err := s.CompareRun(ctx, run.ID, stored)
		require.NoError(t, err)
		assert.Empty(t, divs)
	})

	t.Run("digest and presence", func(t *testing.T) {
		replayed := []GroupResult{
			{GroupKey: "A", Status: StatusOK, InputDigest: "ia", MatchDigest: "changed"},
			{GroupKey: "C", Status: StatusOK},
		}
		divs, err := s.CompareRun(ctx, run.ID, replayed)
		require.NoError(t, err)
		require.Len(t, divs, 3)
		assert.Equal(t, Divergence{GroupKey: "A", Field: "match_digest", Stored: "ma", Replayed: "changed"}, divs[0])
		assert.Equal(t, "B", divs[1].GroupKey)
		assert.Equal(t, "presence", divs[1].Field)
		assert.Equal(t, "C", divs[2].GroupKey)
		assert.Contains(t, divs[0].String(), "match_digest")
	})
}
