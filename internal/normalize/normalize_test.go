package normalize

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/markout/internal/ir"
	"github.com/roach88/markout/internal/testutil"
)

func TestNormalize_CumulativePosition(t *testing.T) {
	events := testutil.NewGroup("600000").
		Buy(0, 100, "10").
		Buy(1, 50, "10.1").
		Sell(2, 120, "10.2").
		Events()

	out, warnings, err := Normalize(events, testutil.Directions)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, out, 3)

	assert.Equal(t, int64(100), out[0].SignedQuantity)
	assert.Equal(t, int64(150), out[1].CumulativePosition)
	assert.Equal(t, int64(-120), out[2].SignedQuantity)
	assert.Equal(t, int64(150), out[2].PositionBefore)
	assert.Equal(t, int64(30), out[2].CumulativePosition)
	for _, ev := range out {
		assert.False(t, ev.Synthetic())
	}
}

func TestNormalize_SplitReversal(t *testing.T) {
	events := testutil.NewGroup("600000").
		Buy(0, 100, "10").
		Sell(5, 150, "11").
		Events()

	out, _, err := Normalize(events, testutil.Directions)
	require.NoError(t, err)
	require.Len(t, out, 3)

	closing, opening := out[1], out[2]
	assert.Equal(t, 1, closing.SplitPart)
	assert.Equal(t, int64(100), closing.Quantity)
	assert.Equal(t, int64(0), closing.CumulativePosition)
	assert.Equal(t, 2, opening.SplitPart)
	assert.Equal(t, int64(50), opening.Quantity)
	assert.Equal(t, int64(-50), opening.CumulativePosition)

	for _, half := range []ir.SignedEvent{closing, opening} {
		assert.Equal(t, events[1].Time, half.Time)
		assert.Equal(t, events[1].Side, half.Side)
		assert.True(t, events[1].Price.Equal(half.Price))
		assert.Equal(t, events[1].OriginalIndex, half.OriginalIndex)
	}
}

// The halves of every split reversal sum back to the source quantity and the
// final position does not depend on splitting.
func TestNormalize_SplitRoundTrip(t *testing.T) {
	events := testutil.NewGroup("X").
		Buy(0, 30, "1").
		Sell(1, 80, "1").
		Buy(2, 120, "1").
		Sell(3, 70, "1").
		Events()

	split, _, err := Normalize(events, testutil.Directions)
	require.NoError(t, err)
	unsplit, _, err := Normalize(events, testutil.Directions, WithSplitReversals(false))
	require.NoError(t, err)
	require.Len(t, unsplit, len(events))

	byIndex := map[int]int64{}
	for _, ev := range split {
		byIndex[ev.OriginalIndex] += ev.Quantity
	}
	for _, ev := range events {
		assert.Equal(t, ev.Quantity, byIndex[ev.OriginalIndex], "index %d", ev.OriginalIndex)
	}
	assert.Equal(t,
		unsplit[len(unsplit)-1].CumulativePosition,
		split[len(split)-1].CumulativePosition)
}

func TestNormalize_ZeroQuantityIsWarning(t *testing.T) {
	events := testutil.NewGroup("X").
		Buy(0, 0, "1").
		Buy(1, 10, "1").
		Sell(2, 0, "1").
		Events()

	out, warnings, err := Normalize(events, testutil.Directions)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 1, out[0].OriginalIndex)
	require.Len(t, warnings, 2)
	assert.Equal(t, 0, warnings[0].OriginalIndex)
	assert.True(t, warnings[1].Recoverable())
}

func TestNormalize_OrderingViolation(t *testing.T) {
	events := testutil.NewGroup("X").
		Buy(5, 10, "1").
		Sell(4, 10, "1").
		Events()

	_, _, err := Normalize(events, testutil.Directions)
	require.Error(t, err)
	assert.True(t, ir.IsOrderingViolation(err))

	var re *ir.RuntimeError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, 1, re.Index)
}

func TestNormalize_EqualTimesAllowed(t *testing.T) {
	events := testutil.NewGroup("X").
		Buy(5, 10, "1").
		Sell(5, 10, "1").
		Events()

	out, _, err := Normalize(events, testutil.Directions)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestNormalize_InvalidSide(t *testing.T) {
	events := testutil.NewGroup("X").
		Add(0, "Hold", 10, "1").
		Events()

	_, _, err := Normalize(events, testutil.Directions)
	require.Error(t, err)
	assert.True(t, ir.IsInvalidEventError(err))
}

func TestNormalizer_RejectsForeignGroup(t *testing.T) {
	n := New(testutil.Directions)
	_, err := n.Step(testutil.NewGroup("A").Buy(0, 1, "1").Events()[0])
	require.NoError(t, err)

	_, err = n.Step(testutil.NewGroup("B").Buy(1, 1, "1").Events()[0])
	assert.True(t, ir.IsInvalidEventError(err))
}
