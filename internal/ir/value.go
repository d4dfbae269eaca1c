package ir

import (
	"math"
	"slices"
	"unicode/utf16"
)

// IRValue is a sealed interface over the value types allowed in canonical
// encodings. There is no float variant: prices travel as decimal strings.
type IRValue interface {
	irValue()
}

// IRString represents a string value.
type IRString string

func (IRString) irValue() {}

// IRInt represents an integer value.
type IRInt int64

func (IRInt) irValue() {}

// IRBool represents a boolean value.
type IRBool bool

func (IRBool) irValue() {}

// IRArray represents an array of values.
type IRArray []IRValue

func (IRArray) irValue() {}

// IRObject represents a map of string keys to values.
// Use SortedKeys() for deterministic iteration.
type IRObject map[string]IRValue

func (IRObject) irValue() {}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's string comparison uses UTF-8 which orders some keys differently.
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}

// IR returns the canonical object form of an event.
func (e Event) IR() IRObject {
	return IRObject{
		"group_key":      IRString(e.GroupKey),
		"time":           IRInt(e.Time),
		"side":           IRString(e.Side),
		"quantity":       IRInt(e.Quantity),
		"price":          IRString(e.Price.String()),
		"original_index": IRInt(e.OriginalIndex),
	}
}

// IR returns the canonical object form of a match record. Nullable fields
// are omitted when nil; an infinite holding period is encoded as "inf".
func (m MatchRecord) IR() IRObject {
	obj := IRObject{
		"group_key":        IRString(m.GroupKey),
		"episode_id":       IRInt(m.EpisodeID),
		"entry_side":       IRString(m.EntrySide),
		"entry_index":      IRInt(m.EntryIndex),
		"entry_time":       IRInt(m.EntryTime),
		"entry_price":      IRString(m.EntryPrice.String()),
		"matched_quantity": IRInt(m.MatchedQuantity),
		"markout":          IRString(m.Markout.String()),
		"is_closed":        IRBool(m.Closed),
	}
	if math.IsInf(m.HoldingPeriod, 1) {
		obj["holding_period"] = IRString("inf")
	} else {
		obj["holding_period"] = IRInt(int64(m.HoldingPeriod))
	}
	if m.ExitIndex != nil {
		obj["exit_index"] = IRInt(*m.ExitIndex)
	}
	if m.ExitTime != nil {
		obj["exit_time"] = IRInt(*m.ExitTime)
	}
	if m.ExitPrice != nil {
		obj["exit_price"] = IRString(m.ExitPrice.String())
	}
	return obj
}
