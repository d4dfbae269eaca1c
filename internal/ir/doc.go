// Package ir provides the shared record types for markout.
//
// This package contains type definitions and their canonical encoding only.
// All other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Quantities are int64, prices and markouts are decimal.Decimal
//   - Time is an int64 tick count whose unit the caller chooses
//   - Directions are caller-supplied labels; nothing here knows buy or sell
//   - Canonical JSON has no floats and no nulls; digests are computed from it
package ir
