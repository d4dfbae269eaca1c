package ir

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortsKeys(t *testing.T) {
	obj := IRObject{
		"b": IRInt(2),
		"a": IRString("x"),
		"c": IRBool(true),
	}

	got, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","b":2,"c":true}`, string(got))
}

func TestMarshalCanonical_NoHTMLEscape(t *testing.T) {
	got, err := MarshalCanonical(IRString("<a&b>"))
	require.NoError(t, err)
	assert.Equal(t, `"<a&b>"`, string(got))
}

func TestMarshalCanonical_LineSeparatorsLiteral(t *testing.T) {
	got, err := MarshalCanonical(IRString("a\u2028b"))
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\"", string(got))

	// A literal backslash followed by "u2028" stays escaped.
	got, err = MarshalCanonical(IRString(`a\u2028b`))
	require.NoError(t, err)
	assert.Equal(t, `"a\\u2028b"`, string(got))
}

func TestMarshalCanonical_NFC(t *testing.T) {
	// "e" + combining acute accent normalizes to U+00E9.
	got, err := MarshalCanonical(IRString("e\u0301"))
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(got))
}

func TestMarshalCanonical_RejectsFloatsAndNull(t *testing.T) {
	_, err := MarshalCanonical(1.5)
	assert.Error(t, err)

	_, err = MarshalCanonical(nil)
	assert.Error(t, err)

	_, err = MarshalCanonical(IRArray{IRInt(1), nil})
	assert.Error(t, err)
}

func TestMatchDigest_Deterministic(t *testing.T) {
	exit := 3
	exitTime := int64(10)
	exitPrice := decimal.RequireFromString("101.5")
	records := []MatchRecord{
		{
			GroupKey:        "600000",
			EpisodeID:       1,
			EntrySide:       "Buy",
			EntryIndex:      0,
			ExitIndex:       &exit,
			EntryTime:       0,
			ExitTime:        &exitTime,
			EntryPrice:      decimal.RequireFromString("100"),
			ExitPrice:       &exitPrice,
			MatchedQuantity: 100,
			HoldingPeriod:   10,
			Markout:         decimal.RequireFromString("1.5"),
			Closed:          true,
		},
		Unclosed("600000", 1, "Buy", Lot{EntryIndex: 1, EntryTime: 2, EntryPrice: decimal.RequireFromString("99"), Remaining: 20}),
	}

	d1 := MustMatchDigest(records)
	d2 := MustMatchDigest(records)
	assert.Equal(t, d1, d2)
	assert.Len(t, d1, 64)

	// Order matters.
	d3 := MustMatchDigest([]MatchRecord{records[1], records[0]})
	assert.NotEqual(t, d1, d3)
}

func TestInputDigest_DomainSeparated(t *testing.T) {
	events := []Event{{GroupKey: "a", Time: 1, Side: "Buy", Quantity: 1, Price: decimal.NewFromInt(1)}}
	in, err := InputDigest(events)
	require.NoError(t, err)

	matches, err := MatchDigest(nil)
	require.NoError(t, err)
	empty, err := InputDigest(nil)
	require.NoError(t, err)

	assert.NotEqual(t, in, empty)
	assert.NotEqual(t, matches, empty, "same payload under different domains must differ")
}

func TestMatchRecordIR_UnclosedOmitsExit(t *testing.T) {
	m := Unclosed("g", 2, "Sell", Lot{EntryIndex: 4, EntryTime: 7, EntryPrice: decimal.NewFromInt(5), Remaining: 3})
	obj := m.IR()

	assert.Equal(t, IRString("inf"), obj["holding_period"])
	assert.Equal(t, IRBool(false), obj["is_closed"])
	_, hasExit := obj["exit_index"]
	assert.False(t, hasExit)
	assert.True(t, math.IsInf(m.HoldingPeriod, 1))
}
