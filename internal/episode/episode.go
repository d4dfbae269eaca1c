// Package episode partitions a signed event stream into flat-to-flat
// position episodes.
//
// An episode opens at the first event seen while flat and closes
// (inclusively) at the event that brings the cumulative position back to
// exactly zero. Its entry side is the side of its first event: events on
// that side are entries, events on the other side are exits.
package episode

import "github.com/roach88/markout/internal/ir"

// Role classifies an event within its episode.
type Role int

const (
	// RoleEntry adds to the open position.
	RoleEntry Role = iota + 1
	// RoleExit reduces the open position.
	RoleExit
)

func (r Role) String() string {
	switch r {
	case RoleEntry:
		return "entry"
	case RoleExit:
		return "exit"
	default:
		return "unknown"
	}
}

// Assignment is one event annotated with its episode.
type Assignment struct {
	Event     ir.SignedEvent // EpisodeID is set
	EntrySide ir.Side
	Role      Role
	Opens     bool // first event of the episode
	Closes    bool // position is flat after this event
}

// Assigner numbers episodes for one group. Ids start at 1.
type Assigner struct {
	lastID    int
	open      bool
	entrySide ir.Side
}

// NewAssigner creates an Assigner in the flat state.
func NewAssigner() *Assigner {
	return &Assigner{}
}

// Step assigns one event to the current episode, opening one if flat.
func (a *Assigner) Step(ev ir.SignedEvent) Assignment {
	opens := false
	if !a.open {
		a.lastID++
		a.open = true
		a.entrySide = ev.Side
		opens = true
	}
	ev.EpisodeID = a.lastID

	role := RoleExit
	if ev.Side == a.entrySide {
		role = RoleEntry
	}

	closes := ev.CumulativePosition == 0
	if closes {
		a.open = false
	}
	return Assignment{
		Event:     ev,
		EntrySide: a.entrySide,
		Role:      role,
		Opens:     opens,
		Closes:    closes,
	}
}

// Abort ends the open episode without a flat position. The next event
// opens a new episode.
func (a *Assigner) Abort() {
	a.open = false
}

// Current returns the id and entry side of the open episode.
func (a *Assigner) Current() (id int, entrySide ir.Side, open bool) {
	return a.lastID, a.entrySide, a.open
}

// Assign groups a whole normalized stream into episodes.
// The final episode may still be open.
func Assign(events []ir.SignedEvent) []ir.Episode {
	a := NewAssigner()
	var episodes []ir.Episode
	for _, ev := range events {
		as := a.Step(ev)
		if as.Opens {
			episodes = append(episodes, ir.Episode{
				ID:        as.Event.EpisodeID,
				GroupKey:  ev.GroupKey,
				EntrySide: as.EntrySide,
			})
		}
		cur := &episodes[len(episodes)-1]
		cur.Events = append(cur.Events, as.Event)
	}
	return episodes
}
