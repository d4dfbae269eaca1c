package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/roach88/markout/internal/ir"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun begins a run with a fixed id.
func createTestRun(t *testing.T, s *Store, id string) Run {
	t.Helper()
	run, err := s.BeginRun(context.Background(), Run{ID: id, ConfigDigest: "cfg-digest", Input: "fills.csv"}, nil)
	require.NoError(t, err)
	return run
}

func closedMatch(group string, entry, exit int, qty int64) ir.MatchRecord {
	exitTime := int64(exit * 10)
	exitPrice := decimal.RequireFromString("10.6")
	return ir.MatchRecord{
		GroupKey:        group,
		EpisodeID:       1,
		EntrySide:       "Buy",
		EntryIndex:      entry,
		ExitIndex:       &exit,
		EntryTime:       int64(entry * 10),
		ExitTime:        &exitTime,
		EntryPrice:      decimal.RequireFromString("10.5"),
		ExitPrice:       &exitPrice,
		MatchedQuantity: qty,
		HoldingPeriod:   float64(exitTime - int64(entry*10)),
		Markout:         decimal.RequireFromString("0.1"),
		Closed:          true,
	}
}

func openMatch(group string, entry int, qty int64) ir.MatchRecord {
	return ir.MatchRecord{
		GroupKey:        group,
		EpisodeID:       2,
		EntrySide:       "Sell",
		EntryIndex:      entry,
		EntryTime:       int64(entry * 10),
		EntryPrice:      decimal.RequireFromString("9.99"),
		MatchedQuantity: qty,
		HoldingPeriod:   math.Inf(1),
		Markout:         decimal.Zero,
	}
}
