// Package fifo matches entries against exits in arrival order within
// flat-to-flat position episodes.
//
// An exit consumes the oldest open lots first and may be split across
// several of them; a lot may be split across several exits. Lots still
// open when an episode ends are reported as unclosed records with an
// infinite holding period.
package fifo

import (
	"github.com/shopspring/decimal"

	"github.com/roach88/markout/internal/episode"
	"github.com/roach88/markout/internal/ir"
)

// Matcher holds the lot queue of the episode being processed for one group.
// Not safe for concurrent use.
type Matcher struct {
	groupKey string
	dirs     ir.Directions
	policy   Policy

	episodeID int
	entrySide ir.Side
	sign      decimal.Decimal
	queue     *lotDeque
}

// NewMatcher creates a Matcher for one group.
func NewMatcher(groupKey string, dirs ir.Directions, policy Policy) *Matcher {
	if policy == "" {
		policy = DefaultPolicy
	}
	return &Matcher{
		groupKey: groupKey,
		dirs:     dirs,
		policy:   policy,
		queue:    newLotDeque(),
	}
}

// Open returns the number of open lots and their summed quantity.
func (m *Matcher) Open() (lots int, quantity int64) {
	return m.queue.Len(), m.queue.Total()
}

// Push processes one assigned event and returns the records it completes.
//
// Entries open a lot. Exits match the queue front to back; an exit the
// queue cannot cover returns the records matched so far together with an
// *OversellError. An event that brings the position to zero also returns
// the unclosed records of any lot left over.
func (m *Matcher) Push(a episode.Assignment) ([]ir.MatchRecord, error) {
	var out []ir.MatchRecord
	ev := a.Event

	if a.Opens || ev.EpisodeID != m.episodeID {
		out = append(out, m.Close()...)
		sign, err := m.dirs.Sign(a.EntrySide)
		if err != nil {
			return out, ir.NewInvalidEventError(m.groupKey, ev.OriginalIndex, err)
		}
		m.episodeID = ev.EpisodeID
		m.entrySide = a.EntrySide
		m.sign = decimal.NewFromInt(sign)
	}

	switch a.Role {
	case episode.RoleEntry:
		m.queue.PushBack(ir.Lot{
			EntryIndex: ev.OriginalIndex,
			EntryTime:  ev.Time,
			EntryPrice: ev.Price,
			Remaining:  ev.Quantity,
		})
	case episode.RoleExit:
		remaining := ev.Quantity
		for remaining > 0 && m.queue.Len() > 0 {
			lot := m.queue.Front()
			qty := min(remaining, lot.Remaining)
			out = append(out, m.closed(*lot, ev, qty))
			lot.Remaining -= qty
			remaining -= qty
			if lot.Remaining == 0 {
				m.queue.PopFront()
			}
		}
		if remaining > 0 {
			return out, &OversellError{
				GroupKey:  m.groupKey,
				EpisodeID: m.episodeID,
				ExitIndex: ev.OriginalIndex,
				ExitTime:  ev.Time,
				Remaining: remaining,
				Policy:    m.policy,
			}
		}
	}

	if a.Closes {
		out = append(out, m.Close()...)
	}
	return out, nil
}

// Close ends the current episode, returning one unclosed record per lot
// still in the queue, oldest first.
func (m *Matcher) Close() []ir.MatchRecord {
	if m.queue.Len() == 0 {
		return nil
	}
	lots := m.queue.Drain()
	out := make([]ir.MatchRecord, len(lots))
	for i, lot := range lots {
		out[i] = ir.Unclosed(m.groupKey, m.episodeID, m.entrySide, lot)
	}
	return out
}

// Discard drops every open lot without reporting it.
func (m *Matcher) Discard() {
	m.queue.Drain()
}

func (m *Matcher) closed(lot ir.Lot, exit ir.SignedEvent, qty int64) ir.MatchRecord {
	exitIndex := exit.OriginalIndex
	exitTime := exit.Time
	exitPrice := exit.Price
	return ir.MatchRecord{
		GroupKey:        m.groupKey,
		EpisodeID:       m.episodeID,
		EntrySide:       m.entrySide,
		EntryIndex:      lot.EntryIndex,
		ExitIndex:       &exitIndex,
		EntryTime:       lot.EntryTime,
		ExitTime:        &exitTime,
		EntryPrice:      lot.EntryPrice,
		ExitPrice:       &exitPrice,
		MatchedQuantity: qty,
		HoldingPeriod:   float64(exit.Time - lot.EntryTime),
		Markout:         exit.Price.Sub(lot.EntryPrice).Mul(m.sign),
		Closed:          true,
	}
}

// MatchEpisode matches one episode on its own. Lots left open at the end
// are reported as unclosed. On oversell the records matched before it are
// returned with the error.
func MatchEpisode(ep ir.Episode, dirs ir.Directions) ([]ir.MatchRecord, error) {
	m := NewMatcher(ep.GroupKey, dirs, DefaultPolicy)
	var out []ir.MatchRecord
	for i, ev := range ep.Events {
		ev.EpisodeID = ep.ID
		role := episode.RoleExit
		if ev.Side == ep.EntrySide {
			role = episode.RoleEntry
		}
		recs, err := m.Push(episode.Assignment{
			Event:     ev,
			EntrySide: ep.EntrySide,
			Role:      role,
			Opens:     i == 0,
			Closes:    ev.CumulativePosition == 0,
		})
		out = append(out, recs...)
		if err != nil {
			return out, err
		}
	}
	return append(out, m.Close()...), nil
}
