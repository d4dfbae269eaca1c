package store

import (
	"context"
	"fmt"
)

// Divergence is one difference between a stored run and a replay.
type Divergence struct {
	GroupKey string `json:"group_key"`
	Field    string `json:"field"`
	Stored   string `json:"stored"`
	Replayed string `json:"replayed"`
}

func (d Divergence) String() string {
	return fmt.Sprintf("%s: %s stored=%q replayed=%q", d.GroupKey, d.Field, d.Stored, d.Replayed)
}

// CompareRun compares replayed group results against the stored results of
// runID. Groups are matched by key; a group present on only one side is a
// divergence on field "presence". Divergences follow stored group order,
// then replay order for groups the run never stored.
func (s *Store) CompareRun(ctx context.Context, runID string, replayed []GroupResult) ([]Divergence, error) {
	stored, err := s.ReadGroups(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("compare run %q: %w", runID, err)
	}

	byKey := make(map[string]GroupResult, len(replayed))
	for _, g := range replayed {
		byKey[g.GroupKey] = g
	}

	var out []Divergence
	seen := make(map[string]bool, len(stored))
	for _, st := range stored {
		seen[st.GroupKey] = true
		rp, ok := byKey[st.GroupKey]
		if !ok {
			out = append(out, Divergence{GroupKey: st.GroupKey, Field: "presence", Stored: "present", Replayed: "missing"})
			continue
		}
		out = append(out, diffGroup(st, rp)...)
	}
	for _, rp := range replayed {
		if !seen[rp.GroupKey] {
			out = append(out, Divergence{GroupKey: rp.GroupKey, Field: "presence", Stored: "missing", Replayed: "present"})
		}
	}
	return out, nil
}

func diffGroup(st, rp GroupResult) []Divergence {
	var out []Divergence
	check := func(field, a, b string) {
		if a != b {
			out = append(out, Divergence{GroupKey: st.GroupKey, Field: field, Stored: a, Replayed: b})
		}
	}
	check("status", string(st.Status), string(rp.Status))
	check("input_digest", st.InputDigest, rp.InputDigest)
	check("match_digest", st.MatchDigest, rp.MatchDigest)
	check("match_count", fmt.Sprint(st.MatchCount), fmt.Sprint(rp.MatchCount))
	return out
}

// FailedGroups returns the failed groups of a run in seq order.
// These are the groups a caller may want to reprocess.
func (s *Store) FailedGroups(ctx context.Context, runID string) ([]GroupResult, error) {
	groups, err := s.ReadGroups(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed groups: %w", err)
	}
	failed := []GroupResult{}
	for _, g := range groups {
		if g.Status == StatusFailed {
			failed = append(failed, g)
		}
	}
	return failed, nil
}
