/*
Package allocation provides the bonus pool allocation engine.

PURPOSE:
  Given a fixed bonus budget and a scored population of employees, the engine
  computes a budget-constrained monetary distribution using configurable
  coefficient models, distribution curves and floor/ceiling bounds, then
  reports distribution-quality metrics over the result.

KEY CONCEPTS IN THIS FILE (types.go):
  - BonusPool: The budget for one period, minus a withheld reserve
  - AllocationRule: Versioned, immutable configuration for a run
  - EligibleEmployee: One scored employee row for a period
  - AllocationResult: The engine's per-employee output
  - WeightTable: Typed weight lookup with an explicit 1.0 default

PIPELINE:
  Filter -> Coefficients (parallel) -> Distribution -> Constraints -> Fairness

DESIGN PRINCIPLES:
  1. Purity: No I/O inside the engine; collaborators live in store.go
  2. Precision: Money is decimal.Decimal, rounded to cents
  3. Determinism: Same inputs produce identical results, in input order
  4. Immutability: Results are created per run and never patched

SEE ALSO:
  - engine.go: Pipeline orchestration
  - errors.go: Error taxonomy
  - store.go: Collaborator interfaces
*/
package allocation

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type PoolID string
type RuleID string
type RunID string

// Period identifies a performance period, e.g. "2025" or "2025-H1".
type Period string

// =============================================================================
// BONUS POOL - Budget for one period
// =============================================================================

type PoolStatus string

const (
	PoolDraft     PoolStatus = "draft"
	PoolActive    PoolStatus = "active"
	PoolAllocated PoolStatus = "allocated"
	PoolClosed    PoolStatus = "closed"
)

// BonusPool is read-only to the engine. AllocatedAmount, AllocatedCount and
// LatestRunID are written back by the caller after a run.
type BonusPool struct {
	ID           PoolID
	Name         string
	Period       Period
	TotalAmount  decimal.Decimal
	ReserveRatio float64 // [0,1), withheld from distribution
	Status       PoolStatus

	AllocatedAmount decimal.Decimal
	AllocatedCount  int
	LatestRunID     RunID
}

// AvailableAmount is TotalAmount x (1 - ReserveRatio), rounded to cents.
func (p BonusPool) AvailableAmount() decimal.Decimal {
	keep := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(p.ReserveRatio))
	return p.TotalAmount.Mul(keep).Round(2)
}

// CanAllocate reports whether the pool is in a state that accepts a run.
func (p BonusPool) CanAllocate() bool {
	return p.Status == PoolDraft || p.Status == PoolActive || p.Status == PoolAllocated
}

// =============================================================================
// ALLOCATION RULE - Versioned run configuration
// =============================================================================

type AllocationMethod string

const (
	MethodScoreBased     AllocationMethod = "score_based"
	MethodTierBased      AllocationMethod = "tier_based"
	MethodPoolPercentage AllocationMethod = "pool_percentage"
	MethodFixedAmount    AllocationMethod = "fixed_amount"
	MethodHybrid         AllocationMethod = "hybrid"
)

type DistributionMethod string

const (
	DistributionLinear      DistributionMethod = "linear"
	DistributionExponential DistributionMethod = "exponential"
	DistributionLogarithmic DistributionMethod = "logarithmic"
	DistributionStep        DistributionMethod = "step"
)

// SurplusPolicy decides what happens to money freed or consumed by bound
// enforcement.
type SurplusPolicy string

const (
	// SurplusRetain leaves clamped surplus undistributed. The post-bound sum
	// may differ from the available budget.
	SurplusRetain SurplusPolicy = "retain"

	// SurplusRedistribute spreads the clamped surplus (or deficit) over
	// employees that did not hit a bound, proportionally to their totals.
	SurplusRedistribute SurplusPolicy = "redistribute"
)

// SpecialRules toggles the special coefficient adjustments.
type SpecialRules struct {
	NewHireReduction  bool
	NewHireMonths     int // default 12
	ExcellenceBonus   bool
	KeyPositionBonus  bool
	KeyPositionLevels []string
}

// Scope restricts which employees a rule applies to. Empty lists mean no
// restriction.
type Scope struct {
	BusinessLines  []string
	Departments    []string
	PositionLevels []string
}

type AllocationRule struct {
	ID      RuleID
	Name    string
	Version int

	AllocationMethod           AllocationMethod   `validate:"oneof=score_based tier_based pool_percentage fixed_amount hybrid"`
	BaseAllocationRatio        float64            `validate:"gte=0,lte=1"`
	PerformanceAllocationRatio float64            `validate:"gte=0,lte=1"`
	ScoreDistributionMethod    DistributionMethod `validate:"oneof=linear exponential logarithmic step"`
	ExponentialFactor          float64            `validate:"gt=0"`

	PositionLevelWeights WeightTable
	DepartmentWeights    WeightTable
	SpecialRules         SpecialRules
	BaseCoefficient      float64
	ScoreScale           float64 `validate:"gt=0"`

	MinBonusAmount decimal.Decimal // zero disables
	MaxBonusAmount decimal.Decimal // zero disables
	MinBonusRatio  float64         `validate:"gte=0"` // of the per-employee average, zero disables
	MaxBonusRatio  float64         `validate:"gte=0"` // of the per-employee average, zero disables

	TotalAllocationLimit float64 `validate:"gt=0,lte=1"`
	FixedAmount          decimal.Decimal
	BoundSurplusPolicy   SurplusPolicy `validate:"oneof=retain redistribute"`

	Scope Scope
}

// Default values applied by WithDefaults.
const (
	DefaultExponentialFactor = 2.0
	DefaultNewHireMonths     = 12
)

// WithDefaults returns a copy with unset fields filled in.
func (r AllocationRule) WithDefaults() AllocationRule {
	if r.AllocationMethod == "" {
		r.AllocationMethod = MethodScoreBased
	}
	if r.ScoreDistributionMethod == "" {
		r.ScoreDistributionMethod = DistributionLinear
	}
	if r.ExponentialFactor <= 0 {
		r.ExponentialFactor = DefaultExponentialFactor
	}
	if r.TotalAllocationLimit <= 0 {
		r.TotalAllocationLimit = 1
	}
	if r.BaseCoefficient == 0 {
		r.BaseCoefficient = 1
	}
	if r.ScoreScale <= 0 {
		r.ScoreScale = 1
	}
	if r.SpecialRules.NewHireMonths <= 0 {
		r.SpecialRules.NewHireMonths = DefaultNewHireMonths
	}
	if r.BoundSurplusPolicy == "" {
		r.BoundSurplusPolicy = SurplusRetain
	}
	return r
}

// IsKeyPosition reports whether a position level is flagged senior.
func (s SpecialRules) IsKeyPosition(level string) bool {
	for _, l := range s.KeyPositionLevels {
		if l == level {
			return true
		}
	}
	return false
}

// =============================================================================
// WEIGHT TABLE - Typed config lookup
// =============================================================================

// WeightTable maps a key (position level, department id) to a weight.
// A missing key resolves to DefaultWeight. A present but non-positive or
// non-finite weight also resolves to DefaultWeight, and Lookup reports it.
type WeightTable map[string]float64

// DefaultWeight is the neutral multiplier used on a lookup miss.
const DefaultWeight = 1.0

// Lookup returns the weight for key and whether the configured value was
// rejected.
func (w WeightTable) Lookup(key string) (weight float64, rejected bool) {
	v, ok := w[key]
	if !ok {
		return DefaultWeight, false
	}
	if !validFactor(v) {
		return DefaultWeight, true
	}
	return v, false
}

// =============================================================================
// ELIGIBLE EMPLOYEE - Engine input row
// =============================================================================

// EligibleEmployee is one scored employee for a period, as produced by the
// upstream scoring system.
type EligibleEmployee struct {
	EmployeeID     EmployeeID
	Name           string
	Period         Period
	FinalScore     float64
	ScoreRank      int
	PercentileRank float64 // 0-100
	PositionLevel  string
	DepartmentID   string
	BusinessLine   string
	WorkMonths     int
}

// =============================================================================
// ALLOCATION RESULT - Engine output row
// =============================================================================

// Coefficients records every factor applied to one employee.
type Coefficients struct {
	Base        float64 `json:"base"`
	Performance float64 `json:"performance"`
	Position    float64 `json:"position"`
	Department  float64 `json:"department"`
	Special     float64 `json:"special"`
	Final       float64 `json:"final"`
}

// AllocationResult is one employee's outcome. TotalAmount always equals
// BaseAmount + PerformanceAmount + AdjustmentAmount.
type AllocationResult struct {
	RunID          RunID
	EmployeeID     EmployeeID
	DepartmentID   string
	PositionLevel  string
	PercentileRank float64

	OriginalScore     float64
	FinalScore        float64 // OriginalScore / ScoreScale
	DistributionRatio float64

	BaseAmount        decimal.Decimal
	PerformanceAmount decimal.Decimal
	AdjustmentAmount  decimal.Decimal
	TotalAmount       decimal.Decimal

	AppliedCoefficients Coefficients

	MinAmountApplied         bool
	MaxAmountApplied         bool
	OriginalCalculatedAmount decimal.Decimal // before bound enforcement
}

// recomputeTotal restores the TotalAmount invariant.
func (r *AllocationResult) recomputeTotal() {
	r.TotalAmount = r.BaseAmount.Add(r.PerformanceAmount).Add(r.AdjustmentAmount)
}

// SumTotals adds up TotalAmount over a result set.
func SumTotals(results []AllocationResult) decimal.Decimal {
	sum := decimal.Zero
	for _, r := range results {
		sum = sum.Add(r.TotalAmount)
	}
	return sum
}
