package episode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/markout/internal/ir"
	"github.com/roach88/markout/internal/normalize"
	"github.com/roach88/markout/internal/testutil"
)

func normalized(t *testing.T, events []ir.Event) []ir.SignedEvent {
	t.Helper()
	out, _, err := normalize.Normalize(events, testutil.Directions)
	require.NoError(t, err)
	return out
}

func TestAssign_FlatToFlat(t *testing.T) {
	events := testutil.NewGroup("X").
		Buy(0, 50, "1").
		Buy(1, 50, "1").
		Sell(2, 100, "1").
		Sell(3, 20, "1").
		Buy(4, 20, "1").
		Events()

	episodes := Assign(normalized(t, events))
	require.Len(t, episodes, 2)

	assert.Equal(t, 1, episodes[0].ID)
	assert.Equal(t, ir.Side("Buy"), episodes[0].EntrySide)
	assert.Len(t, episodes[0].Events, 3)

	assert.Equal(t, 2, episodes[1].ID)
	assert.Equal(t, ir.Side("Sell"), episodes[1].EntrySide)
	assert.Len(t, episodes[1].Events, 2)
	for _, ev := range episodes[1].Events {
		assert.Equal(t, 2, ev.EpisodeID)
	}
}

func TestAssign_InteriorPositionsNonzeroSameSign(t *testing.T) {
	events := testutil.NewGroup("X").
		Buy(0, 10, "1").
		Sell(1, 30, "1").
		Buy(2, 40, "1").
		Sell(3, 20, "1").
		Events()

	for _, ep := range Assign(normalized(t, events)) {
		last := len(ep.Events) - 1
		for i, ev := range ep.Events {
			if i == last {
				continue
			}
			assert.NotZero(t, ev.CumulativePosition, "episode %d event %d", ep.ID, i)
			assert.Equal(t, ep.Events[0].CumulativePosition > 0, ev.CumulativePosition > 0)
		}
	}
}

// A reversal closes one episode and opens the next on the reversal's side.
func TestAssign_ReversalOpensNewEpisode(t *testing.T) {
	events := testutil.NewGroup("X").
		Buy(0, 100, "10").
		Sell(5, 150, "11").
		Events()

	episodes := Assign(normalized(t, events))
	require.Len(t, episodes, 2)
	assert.Equal(t, int64(100), episodes[0].Events[1].Quantity)
	assert.Equal(t, ir.Side("Sell"), episodes[1].EntrySide)
	assert.Equal(t, int64(50), episodes[1].Events[0].Quantity)
}

func TestAssigner_Roles(t *testing.T) {
	a := NewAssigner()
	evs := normalized(t, testutil.NewGroup("X").Sell(0, 5, "1").Buy(1, 5, "1").Events())

	first := a.Step(evs[0])
	assert.True(t, first.Opens)
	assert.Equal(t, RoleEntry, first.Role)

	second := a.Step(evs[1])
	assert.Equal(t, RoleExit, second.Role)
	assert.True(t, second.Closes)

	_, _, open := a.Current()
	assert.False(t, open)
}

func TestAssigner_AbortOpensNextEpisode(t *testing.T) {
	a := NewAssigner()
	evs := normalized(t, testutil.NewGroup("X").Buy(0, 5, "1").Buy(1, 5, "1").Events())

	first := a.Step(evs[0])
	require.True(t, first.Opens)
	a.Abort()

	_, _, open := a.Current()
	assert.False(t, open)

	next := a.Step(evs[1])
	assert.True(t, next.Opens)
	assert.Equal(t, 2, next.Event.EpisodeID)
	assert.Equal(t, RoleEntry, next.Role)
}

func TestAssign_Empty(t *testing.T) {
	assert.Empty(t, Assign(nil))
}
