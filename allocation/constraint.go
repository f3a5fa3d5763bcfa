/*
constraint.go - Budget rescale and per-employee bound enforcement

PURPOSE:
  Brings the raw distribution within the budget, then clamps individual
  totals to the configured floor and ceiling.

PASS 1 - BUDGET RESCALE:
  If sum(base+perf) exceeds the cap (available x totalAllocationLimit), every
  employee is scaled by cap/sum. Base and performance amounts keep their
  computed values; the (negative) delta goes to AdjustmentAmount. Scaled
  totals are rounded down to the cent so the sum never exceeds the cap.

PASS 2 - BOUNDS:
  avg = available / n
  floor   = max(minBonusAmount, avg x minBonusRatio)   (enabled terms only)
  ceiling = min(maxBonusAmount, avg x maxBonusRatio)   (enabled terms only)
  A total under the floor is raised; otherwise a total over the ceiling is
  capped. The change is folded into AdjustmentAmount and
  OriginalCalculatedAmount keeps the pre-bound total.

SURPLUS:
  With SurplusRetain nothing is renormalized after pass 2, so the final sum
  can drift from the pre-bound sum (a capped surplus stays unallocated).
  With SurplusRedistribute the drift is spread over unclamped employees.

SEE ALSO:
  - distribution.go: Produces the raw results
  - fairness.go: Reports AllocationRatio, which exposes the drift
*/
package allocation

import (
	"github.com/shopspring/decimal"
)

var cent = decimal.New(1, -2)

// BudgetCap is the most a run may hand out.
func BudgetCap(available decimal.Decimal, rule AllocationRule) decimal.Decimal {
	limit := rule.TotalAllocationLimit
	if limit <= 0 || limit > 1 {
		limit = 1
	}
	return available.Mul(decimal.NewFromFloat(limit)).RoundFloor(2)
}

// Bounds are the per-employee floor and ceiling of a run.
type Bounds struct {
	Floor      decimal.Decimal
	HasFloor   bool
	Ceiling    decimal.Decimal
	HasCeiling bool
}

// ComputeBounds derives the floor and ceiling for n employees sharing
// available.
func ComputeBounds(available decimal.Decimal, n int, rule AllocationRule) Bounds {
	var b Bounds
	if n <= 0 {
		return b
	}
	avg := available.Div(decimal.NewFromInt(int64(n)))

	if rule.MinBonusAmount.IsPositive() {
		b.Floor, b.HasFloor = rule.MinBonusAmount, true
	}
	if rule.MinBonusRatio > 0 {
		f := avg.Mul(decimal.NewFromFloat(rule.MinBonusRatio)).Round(2)
		if !b.HasFloor || f.GreaterThan(b.Floor) {
			b.Floor, b.HasFloor = f, true
		}
	}

	if rule.MaxBonusAmount.IsPositive() {
		b.Ceiling, b.HasCeiling = rule.MaxBonusAmount, true
	}
	if rule.MaxBonusRatio > 0 {
		c := avg.Mul(decimal.NewFromFloat(rule.MaxBonusRatio)).Round(2)
		if !b.HasCeiling || c.LessThan(b.Ceiling) {
			b.Ceiling, b.HasCeiling = c, true
		}
	}
	return b
}

// RescaleToBudget is pass 1. It reports whether a rescale happened.
func RescaleToBudget(results []AllocationResult, limit decimal.Decimal) bool {
	sum := decimal.Zero
	for _, r := range results {
		sum = sum.Add(r.BaseAmount).Add(r.PerformanceAmount)
	}
	if !sum.GreaterThan(limit) {
		return false
	}

	for i := range results {
		r := &results[i]
		original := r.BaseAmount.Add(r.PerformanceAmount)
		scaled := original.Mul(limit).Div(sum).RoundFloor(2)
		r.AdjustmentAmount = scaled.Sub(original)
		r.recomputeTotal()
	}
	return true
}

// EnforceBounds is pass 2. OriginalCalculatedAmount is set to the pre-bound
// total of every employee.
func EnforceBounds(results []AllocationResult, b Bounds) {
	for i := range results {
		r := &results[i]
		r.OriginalCalculatedAmount = r.TotalAmount

		switch {
		case b.HasFloor && r.TotalAmount.LessThan(b.Floor):
			r.AdjustmentAmount = r.AdjustmentAmount.Add(b.Floor.Sub(r.TotalAmount))
			r.MinAmountApplied = true
		case b.HasCeiling && r.TotalAmount.GreaterThan(b.Ceiling):
			r.AdjustmentAmount = r.AdjustmentAmount.Sub(r.TotalAmount.Sub(b.Ceiling))
			r.MaxAmountApplied = true
		}
		r.recomputeTotal()
	}
}

// RedistributeSurplus moves the sum of results back to target by spreading
// the difference over employees that did not hit a bound, proportionally to
// their totals. Employees pushed across a bound are clamped and drop out of
// the next round.
func RedistributeSurplus(results []AllocationResult, target decimal.Decimal, b Bounds) {
	for round := 0; round <= len(results); round++ {
		delta := target.Sub(SumTotals(results))
		if delta.Abs().LessThan(cent) {
			return
		}

		freeSum := decimal.Zero
		for _, r := range results {
			if !r.MinAmountApplied && !r.MaxAmountApplied {
				freeSum = freeSum.Add(r.TotalAmount)
			}
		}
		if !freeSum.IsPositive() {
			return
		}

		moved := false
		for i := range results {
			r := &results[i]
			if r.MinAmountApplied || r.MaxAmountApplied {
				continue
			}
			share := delta.Mul(r.TotalAmount).Div(freeSum).Truncate(2)
			if share.IsZero() {
				continue
			}
			next := r.TotalAmount.Add(share)
			switch {
			case b.HasCeiling && next.GreaterThan(b.Ceiling):
				next = b.Ceiling
				r.MaxAmountApplied = true
			case b.HasFloor && next.LessThan(b.Floor):
				next = b.Floor
				r.MinAmountApplied = true
			case next.IsNegative():
				next = decimal.Zero
			}
			if next.Equal(r.TotalAmount) {
				continue
			}
			r.AdjustmentAmount = r.AdjustmentAmount.Add(next.Sub(r.TotalAmount))
			r.recomputeTotal()
			moved = true
		}
		if !moved {
			return
		}
	}
}

// EnforceConstraints runs both passes and, when the rule asks for it, the
// surplus redistribution.
func EnforceConstraints(results []AllocationResult, available decimal.Decimal, rule AllocationRule) Bounds {
	limit := BudgetCap(available, rule)
	RescaleToBudget(results, limit)
	preBound := SumTotals(results)

	b := ComputeBounds(available, len(results), rule)
	EnforceBounds(results, b)

	if rule.BoundSurplusPolicy == SurplusRedistribute {
		RedistributeSurplus(results, decimal.Min(preBound, limit), b)
	}
	return b
}
