/*
errors.go - Error taxonomy for the allocation engine

PURPOSE:
  All error types in one place. Callers use errors.Is against the sentinels,
  or errors.As against the structured types for context.

ERROR CATEGORIES:
  1. Fatal run errors - abort the run before any result is returned
     (empty eligible set, insufficient budget, no valid scores, invalid rule)
  2. Recovered errors - logged and reported as warnings, never fatal
     (invalid coefficient configuration)
  3. Collaborator errors - lookups that found nothing (pool, rule, run)

SEE ALSO:
  - engine.go: Returns fatal errors
  - coefficient.go: Produces InvalidCoefficientError warnings
*/
package allocation

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrEmptyEligibleSet is returned when no employee passes the scope and
	// score filters.
	ErrEmptyEligibleSet = errors.New("no eligible employees")

	// ErrInsufficientBudget is returned when the budget after reserve is not
	// positive.
	ErrInsufficientBudget = errors.New("insufficient budget")

	// ErrNoValidScores is returned when the scores of the eligible set sum to
	// zero or less.
	ErrNoValidScores = errors.New("no valid scores")

	// ErrInvalidCoefficient marks a malformed weight. Never fatal.
	ErrInvalidCoefficient = errors.New("invalid coefficient")

	// ErrInvalidRule is returned when a rule fails validation.
	ErrInvalidRule = errors.New("invalid allocation rule")

	// ErrInvalidPool is returned when a pool's reserve ratio is outside [0,1).
	ErrInvalidPool = errors.New("invalid bonus pool")

	// ErrPoolNotFound is returned when a referenced bonus pool doesn't exist.
	ErrPoolNotFound = errors.New("bonus pool not found")

	// ErrRuleNotFound is returned when a referenced rule doesn't exist.
	ErrRuleNotFound = errors.New("allocation rule not found")

	// ErrRunNotFound is returned when a referenced run doesn't exist.
	ErrRunNotFound = errors.New("allocation run not found")

	// ErrPoolNotActive is returned when a pool's status forbids allocation.
	ErrPoolNotActive = errors.New("bonus pool does not accept allocation")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// EmptyEligibleSetError reports how many rows were considered and dropped.
type EmptyEligibleSetError struct {
	Period      Period
	Considered  int
	NonPositive int
	OutOfScope  int
}

func (e *EmptyEligibleSetError) Error() string {
	return fmt.Sprintf("no eligible employees for period %q: %d considered, %d without positive score, %d out of scope",
		e.Period, e.Considered, e.NonPositive, e.OutOfScope)
}

func (e *EmptyEligibleSetError) Unwrap() error { return ErrEmptyEligibleSet }

// InsufficientBudgetError reports the budget that was rejected.
type InsufficientBudgetError struct {
	PoolID    PoolID
	Available decimal.Decimal
}

func (e *InsufficientBudgetError) Error() string {
	return fmt.Sprintf("insufficient budget for pool %s: available %s", e.PoolID, e.Available.StringFixed(2))
}

func (e *InsufficientBudgetError) Unwrap() error { return ErrInsufficientBudget }

// NoValidScoresError reports the degenerate score sum.
type NoValidScoresError struct {
	Method   DistributionMethod
	ScoreSum float64
}

func (e *NoValidScoresError) Error() string {
	return fmt.Sprintf("no valid scores: %s score sum is %g", e.Method, e.ScoreSum)
}

func (e *NoValidScoresError) Unwrap() error { return ErrNoValidScores }

// InvalidCoefficientError describes a weight that was reset to 1.0.
type InvalidCoefficientError struct {
	EmployeeID EmployeeID
	Factor     string // "base", "performance", "position", "department", "special"
	Key        string // lookup key, if any
	Value      float64
}

func (e *InvalidCoefficientError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("invalid %s coefficient %g for %q (employee %s), using 1.0",
			e.Factor, e.Value, e.Key, e.EmployeeID)
	}
	return fmt.Sprintf("invalid %s coefficient %g (employee %s), using 1.0", e.Factor, e.Value, e.EmployeeID)
}

func (e *InvalidCoefficientError) Unwrap() error { return ErrInvalidCoefficient }

// RuleValidationError wraps the validator output for a rule.
type RuleValidationError struct {
	RuleID RuleID
	Err    error
}

func (e *RuleValidationError) Error() string {
	return fmt.Sprintf("invalid allocation rule %s: %v", e.RuleID, e.Err)
}

func (e *RuleValidationError) Unwrap() []error { return []error{ErrInvalidRule, e.Err} }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsFatal returns true if the error aborts an allocation run.
func IsFatal(err error) bool {
	return errors.Is(err, ErrEmptyEligibleSet) ||
		errors.Is(err, ErrInsufficientBudget) ||
		errors.Is(err, ErrNoValidScores) ||
		errors.Is(err, ErrInvalidRule) ||
		errors.Is(err, ErrInvalidPool)
}

// IsClientError returns true if the error is caused by caller input or
// configuration rather than infrastructure.
func IsClientError(err error) bool {
	return IsFatal(err) || errors.Is(err, ErrPoolNotActive)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPoolNotFound) ||
		errors.Is(err, ErrRuleNotFound) ||
		errors.Is(err, ErrRunNotFound)
}
