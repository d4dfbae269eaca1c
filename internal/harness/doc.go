// Package harness runs matching scenarios as executable contract tests.
//
// A scenario lists fills in input order, the matching options, the match
// records each group is expected to produce and assertions over the whole
// run. Scenarios execute through the enrichment engine with the FIFO rule,
// exactly as the CLI does, so they exercise the real code path.
//
// # Scenario Format
//
//	name: partial_exit
//	description: "Exit split across two entries"
//	directions: {reference: Buy, opposite: Sell}
//	options:
//	  split_reversals: true
//	  oversell_policy: abort_episode
//	events:
//	  - {group: X, time: 0, side: Buy, quantity: 50, price: "10"}
//	  - {group: X, time: 1, side: Buy, quantity: 50, price: "11"}
//	  - {group: X, time: 2, side: Sell, quantity: 80, price: "12"}
//	expect:
//	  - {group: X, entry_index: 0, exit_index: 2, matched_quantity: 50, holding_period: 2}
//	  - {group: X, entry_index: 1, exit_index: 2, matched_quantity: 30, holding_period: 1}
//	  - {group: X, entry_index: 1, matched_quantity: 20, closed: false}
//	assertions:
//	  - type: conservation
//	  - type: match_count
//	    count: 3
//
// Events get their original index from their position in the list. An
// expect list, when present, must match the run's match records one for
// one in output order; each entry checks only the fields it sets.
//
// # Assertion Types
//
//   - conservation: entries and exits balance in every unflagged group
//   - match_count: the run (or one group) produced exactly Count records
//   - group_status: a group finished with Status, optionally with Error code
//   - oversell: a group was flagged with an oversell at ExitIndex
//
// # Golden Files
//
// RunWithGolden compares the canonical JSON snapshot of a run against
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
//
// CheckGolden does the same comparison outside go test; it backs the
// markout test command.
package harness
