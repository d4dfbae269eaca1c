package fifo

import (
	"errors"
	"log/slog"

	"github.com/roach88/markout/internal/episode"
	"github.com/roach88/markout/internal/ir"
	"github.com/roach88/markout/internal/normalize"
)

// Option configures a Pipeline, MatchGroup or the FIFO rule.
type Option func(*options)

type options struct {
	split  bool
	policy Policy
	logger *slog.Logger
}

func defaultOptions() options {
	return options{
		split:  true,
		policy: DefaultPolicy,
		logger: slog.Default(),
	}
}

// WithSplitReversals controls reversal splitting in the normalizer.
// Default: true. Oversells can only happen with splitting off.
func WithSplitReversals(split bool) Option {
	return func(o *options) {
		o.split = split
	}
}

// WithPolicy sets the oversell policy. Default: PolicyAbortEpisode.
func WithPolicy(p Policy) Option {
	return func(o *options) {
		if p != "" {
			o.policy = p
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Pipeline runs normalize, episode assignment and matching for one group,
// one event at a time.
type Pipeline struct {
	groupKey string
	norm     *normalize.Normalizer
	asg      *episode.Assigner
	matcher  *Matcher
	policy   Policy
	logger   *slog.Logger

	// skipping is set once an oversell aborts an episode. Events are dropped
	// until the position is flat or crosses zero again.
	skipping bool
}

// NewPipeline creates a Pipeline for one group.
func NewPipeline(groupKey string, dirs ir.Directions, opts ...Option) *Pipeline {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Pipeline{
		groupKey: groupKey,
		norm:     normalize.New(dirs, normalize.WithSplitReversals(o.split), normalize.WithLogger(o.logger)),
		asg:      episode.NewAssigner(),
		matcher:  NewMatcher(groupKey, dirs, o.policy),
		policy:   o.policy,
		logger:   o.logger,
	}
}

// Push feeds one event and returns the records it completes.
//
// A *normalize.Warning or a recoverable *OversellError is returned together
// with any records; the pipeline stays usable. Any other error is fatal for
// the group.
func (p *Pipeline) Push(ev ir.Event) ([]ir.MatchRecord, error) {
	signed, err := p.norm.Step(ev)
	if err != nil {
		return nil, err
	}

	var out []ir.MatchRecord
	var flagged error
	for _, se := range signed {
		if p.skipping {
			opening, resumed := p.resume(se)
			if !resumed {
				continue
			}
			se = opening
		}
		a := p.asg.Step(se)
		recs, err := p.matcher.Push(a)
		out = append(out, recs...)
		if err == nil {
			continue
		}

		var oe *OversellError
		if !errors.As(err, &oe) || !oe.Recoverable() {
			return out, err
		}
		p.logger.Warn("oversell, skipping rest of episode",
			"group", p.groupKey,
			"episode", oe.EpisodeID,
			"index", oe.ExitIndex,
			"remaining", oe.Remaining,
		)
		p.matcher.Discard()
		p.asg.Abort()
		p.skipping = true
		flagged = err
	}
	return out, flagged
}

// resume ends skipping when se leaves the position flat or on the other
// side of zero. In the second case the part beyond zero is returned as the
// opening event of a new episode, as a reversal split would produce it.
func (p *Pipeline) resume(se ir.SignedEvent) (ir.SignedEvent, bool) {
	before, after := se.PositionBefore, se.CumulativePosition
	switch {
	case after == 0:
		p.skipping = false
	case before != 0 && (before > 0) != (after > 0):
		p.skipping = false
		opening := se
		opening.Quantity = max(after, -after)
		opening.SignedQuantity = after
		opening.PositionBefore = 0
		opening.SplitPart = 2
		p.logger.Debug("position crossed zero after oversell, opening episode",
			"group", p.groupKey,
			"index", se.OriginalIndex,
			"position", after,
		)
		return opening, true
	}
	p.logger.Debug("skipping event after oversell",
		"group", p.groupKey,
		"index", se.OriginalIndex,
		"position", after,
	)
	return se, false
}

// Finish ends the group and returns unclosed records of the final episode.
func (p *Pipeline) Finish() []ir.MatchRecord {
	return p.matcher.Close()
}

// GroupMatch is the outcome of MatchGroup.
type GroupMatch struct {
	Records   []ir.MatchRecord
	Warnings  []*normalize.Warning
	Oversells []*OversellError
}

// MatchGroup normalizes, assigns and matches the events of one group.
// Events must share a group key and be sorted by time.
func MatchGroup(events []ir.Event, dirs ir.Directions, opts ...Option) (GroupMatch, error) {
	var gm GroupMatch
	if len(events) == 0 {
		return gm, nil
	}

	p := NewPipeline(events[0].GroupKey, dirs, opts...)
	for _, ev := range events {
		recs, err := p.Push(ev)
		gm.Records = append(gm.Records, recs...)
		if err == nil {
			continue
		}
		var w *normalize.Warning
		var oe *OversellError
		switch {
		case errors.As(err, &w):
			gm.Warnings = append(gm.Warnings, w)
		case errors.As(err, &oe) && oe.Recoverable():
			gm.Oversells = append(gm.Oversells, oe)
		default:
			return gm, err
		}
	}
	gm.Records = append(gm.Records, p.Finish()...)
	return gm, nil
}
