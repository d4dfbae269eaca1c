package fifo

import (
	"errors"
	"fmt"
)

// Policy decides what an oversell does to its group.
type Policy string

const (
	// PolicyAbortEpisode keeps matches emitted before the oversell and flags
	// the group. Later events are skipped until the position is flat or
	// crosses zero; a crossing opens a new episode with the part beyond zero.
	PolicyAbortEpisode Policy = "abort_episode"

	// PolicyAbortGroup fails the whole group.
	PolicyAbortGroup Policy = "abort_group"
)

// DefaultPolicy is used when no policy is configured.
const DefaultPolicy = PolicyAbortEpisode

// ParsePolicy validates a policy name. The empty string means DefaultPolicy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "":
		return DefaultPolicy, nil
	case PolicyAbortEpisode, PolicyAbortGroup:
		return Policy(s), nil
	default:
		return "", fmt.Errorf("unknown oversell policy %q (want %q or %q)", s, PolicyAbortEpisode, PolicyAbortGroup)
	}
}

// OversellError reports an exit larger than the open position of its
// episode. Remaining is the exit quantity left once the queue was empty.
type OversellError struct {
	GroupKey  string
	EpisodeID int
	ExitIndex int
	ExitTime  int64
	Remaining int64
	Policy    Policy
}

// Error implements the error interface.
func (e *OversellError) Error() string {
	return fmt.Sprintf("ERR_OVERSELL: exit exceeds open position by %d (group=%s, episode=%d, index=%d, time=%d)",
		e.Remaining, e.GroupKey, e.EpisodeID, e.ExitIndex, e.ExitTime)
}

// Recoverable reports whether the group continues after this oversell.
func (e *OversellError) Recoverable() bool {
	return e.Policy != PolicyAbortGroup
}

// IsOversellError returns true if the error is an oversell.
// Uses errors.As to handle wrapped errors.
func IsOversellError(err error) bool {
	var oe *OversellError
	return errors.As(err, &oe)
}
