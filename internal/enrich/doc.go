// Package enrich runs pluggable single-pass rules over grouped,
// time-ordered records.
//
// ARCHITECTURE:
//
// Groups are independent units of work. Engine.Run partitions a batch by
// group key, in order of first appearance, and processes groups on a
// bounded worker pool. Within one group processing is strictly sequential:
//  1. A single linear pass checks that time never decreases
//  2. Each rule gets a fresh State for the group
//  3. Every record is passed through the rules in declaration order;
//     column rule outputs are merged into the record as they come
//  4. The one row-expanding rule, if any, turns each record into zero or
//     more output records
//  5. A Finisher on the expanding rule emits trailing rows at group end
//
// A group either produces its full output or fails as a whole. Recoverable
// errors (see Recoverable) are collected as flags and do not stop the group.
//
// INVARIANTS:
//   - rule order NEVER changes after construction
//   - at most one rule is KindExpand
//   - rule fields never collide with base columns, declared source columns
//     or each other
//   - results are returned in first-appearance group order regardless of
//     worker scheduling
package enrich
