package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/markout/internal/fifo"
	"github.com/roach88/markout/internal/ir"
)

// Scenario defines a matching scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	Directions ir.Directions `yaml:"directions"`
	Options    Options       `yaml:"options,omitempty"`

	// Events are the input fills in input order.
	Events []EventStep `yaml:"events"`

	// Expect, if non-empty, lists every expected match record in order.
	Expect []MatchExpect `yaml:"expect,omitempty"`

	// Assertions validate the run as a whole.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Options are the matching options of a scenario.
type Options struct {
	// SplitReversals defaults to true.
	SplitReversals *bool  `yaml:"split_reversals,omitempty"`
	OversellPolicy string `yaml:"oversell_policy,omitempty"`
}

// Split reports whether reversals are split.
func (o Options) Split() bool {
	return o.SplitReversals == nil || *o.SplitReversals
}

// EventStep is one input fill.
type EventStep struct {
	Group    string `yaml:"group"`
	Time     int64  `yaml:"time"`
	Side     string `yaml:"side"`
	Quantity int64  `yaml:"quantity"`
	Price    string `yaml:"price"`

	// Columns are passthrough columns carried onto output records.
	Columns map[string]string `yaml:"columns,omitempty"`
}

// MatchExpect is a subset match against one match record.
// Unset fields are not checked.
type MatchExpect struct {
	Group           string  `yaml:"group"`
	Episode         *int    `yaml:"episode,omitempty"`
	EntrySide       string  `yaml:"entry_side,omitempty"`
	EntryIndex      *int    `yaml:"entry_index,omitempty"`
	ExitIndex       *int    `yaml:"exit_index,omitempty"`
	MatchedQuantity *int64  `yaml:"matched_quantity,omitempty"`
	HoldingPeriod   *int64  `yaml:"holding_period,omitempty"`
	Markout         *string `yaml:"markout,omitempty"`
	// Closed defaults to true when ExitIndex is set.
	Closed *bool `yaml:"closed,omitempty"`

	// Columns are expected passthrough values.
	Columns map[string]string `yaml:"columns,omitempty"`
}

// Assertion validates the run.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Group restricts match_count and names the group for group_status
	// and oversell.
	Group string `yaml:"group,omitempty"`

	// Count is the expected number of match records (match_count).
	Count int `yaml:"count,omitempty"`

	// Status is "ok" or "failed" (group_status).
	Status string `yaml:"status,omitempty"`

	// Error is the expected error code of a failed group, e.g. ERR_ORDERING.
	Error string `yaml:"error,omitempty"`

	// ExitIndex is the oversold exit (oversell).
	ExitIndex *int `yaml:"exit_index,omitempty"`

	// Remaining is the expected unmatched exit quantity (oversell).
	Remaining *int64 `yaml:"remaining,omitempty"`
}

// Assertion type constants.
const (
	AssertConservation = "conservation"
	AssertMatchCount   = "match_count"
	AssertGroupStatus  = "group_status"
	AssertOversell     = "oversell"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if err := s.Directions.Validate(); err != nil {
		return err
	}
	if _, err := fifo.ParsePolicy(s.Options.OversellPolicy); err != nil {
		return fmt.Errorf("options: %w", err)
	}
	if len(s.Events) == 0 {
		return fmt.Errorf("events list is required and must be non-empty")
	}
	if len(s.Expect) == 0 && len(s.Assertions) == 0 {
		return fmt.Errorf("at least one of expect or assertions is required")
	}

	for i, ev := range s.Events {
		if ev.Group == "" {
			return fmt.Errorf("events[%d]: group is required", i)
		}
		if ev.Side == "" {
			return fmt.Errorf("events[%d]: side is required", i)
		}
		if ev.Price == "" {
			return fmt.Errorf("events[%d]: price is required", i)
		}
	}

	for i, m := range s.Expect {
		if m.Group == "" {
			return fmt.Errorf("expect[%d]: group is required", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertConservation:
	case AssertMatchCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for match_count", index)
		}
	case AssertGroupStatus:
		if a.Group == "" {
			return fmt.Errorf("assertions[%d]: group is required for group_status", index)
		}
		if a.Status != "ok" && a.Status != "failed" {
			return fmt.Errorf("assertions[%d]: status must be ok or failed for group_status", index)
		}
	case AssertOversell:
		if a.Group == "" {
			return fmt.Errorf("assertions[%d]: group is required for oversell", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
