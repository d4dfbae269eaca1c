package ir

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while processing a group.
//
// Runtime errors include:
//   - Ordering violation: time decreases within a group
//   - Invalid event: side is neither direction, or a record belongs to another group
//   - Configuration: rules or columns collide when an engine is built
//
// RuntimeError includes structured fields for diagnostics.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// GroupKey identifies the affected group, if any.
	GroupKey string

	// Index is the original index of the offending record, or -1.
	Index int

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeOrdering indicates records of a group are not sorted by time.
	ErrCodeOrdering RuntimeErrorCode = "ERR_ORDERING"

	// ErrCodeInvalidEvent indicates an event that cannot be signed or grouped.
	ErrCodeInvalidEvent RuntimeErrorCode = "ERR_INVALID_EVENT"

	// ErrCodeConfiguration indicates an engine or rule set that cannot be built.
	ErrCodeConfiguration RuntimeErrorCode = "ERR_CONFIGURATION"

	// ErrCodeRuleContract indicates a rule returned output its kind forbids.
	ErrCodeRuleContract RuntimeErrorCode = "ERR_RULE_CONTRACT"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.GroupKey != "" && e.Index >= 0 {
		return fmt.Sprintf("%s: %s (group=%s, index=%d)", e.Code, e.Message, e.GroupKey, e.Index)
	}
	if e.GroupKey != "" {
		return fmt.Sprintf("%s: %s (group=%s)", e.Code, e.Message, e.GroupKey)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsOrderingViolation returns true if the error is an ordering violation.
// Uses errors.As to handle wrapped errors.
func IsOrderingViolation(err error) bool {
	return hasCode(err, ErrCodeOrdering)
}

// IsInvalidEventError returns true if the error is an invalid event error.
func IsInvalidEventError(err error) bool {
	return hasCode(err, ErrCodeInvalidEvent)
}

// IsConfigurationError returns true if the error is a configuration error.
func IsConfigurationError(err error) bool {
	return hasCode(err, ErrCodeConfiguration)
}

// NewOrderingViolation creates a RuntimeError for a time that goes backwards.
func NewOrderingViolation(groupKey string, index int, prev, cur int64) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodeOrdering,
		Message:  fmt.Sprintf("time decreased within group (%d after %d)", cur, prev),
		GroupKey: groupKey,
		Index:    index,
		Details: map[string]string{
			"previous_time": fmt.Sprintf("%d", prev),
			"time":          fmt.Sprintf("%d", cur),
		},
	}
}

// NewInvalidEventError creates a RuntimeError for an event that cannot be processed.
func NewInvalidEventError(groupKey string, index int, cause error) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodeInvalidEvent,
		Message:  cause.Error(),
		GroupKey: groupKey,
		Index:    index,
	}
}

// NewConfigurationError creates a RuntimeError for an invalid rule set.
func NewConfigurationError(format string, args ...any) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeConfiguration,
		Message: fmt.Sprintf(format, args...),
		Index:   -1,
	}
}

// NewRuleContractError creates a RuntimeError for a rule that broke its kind.
func NewRuleContractError(groupKey string, index int, format string, args ...any) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodeRuleContract,
		Message:  fmt.Sprintf(format, args...),
		GroupKey: groupKey,
		Index:    index,
	}
}
