/*
distribution.go - Converts scores into monetary shares of the budget

PURPOSE:
  Computes a distribution ratio per employee under the selected curve, then
  turns ratios and coefficients into base and performance amounts.

CURVES:
  linear:      r = s / sum(s)
  exponential: r = s^k / sum(s^k)
  logarithmic: r = ln(s+1) / sum(ln(s+1))
  step:        r = (s / sum(s)) x m(percentile), NOT renormalized

  Step multipliers: >=90th 2.0, >=70th 1.5, >=40th 1.0, >=20th 0.8, else 0.6.
  Because step ratios can sum above 1, the raw pool may exceed the budget;
  the constraint pass rescales it.

ALLOCATION METHODS:
  score_based:     both portions use the configured curve
  tier_based:      both portions use the step curve
  pool_percentage: both portions use the equal ratio 1/n
  hybrid:          base uses 1/n, performance uses the configured curve
  fixed_amount:    base = FixedAmount x coefficient, performance = 0

AMOUNTS:
  base = A x baseAllocationRatio x r x coeff
  perf = A x performanceAllocationRatio x r x coeff
  Both floored at zero and rounded to cents. The sum need not equal A here.

SEE ALSO:
  - constraint.go: Budget rescale and bounds
*/
package allocation

import (
	"math"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DISTRIBUTION RATIOS
// =============================================================================

// Tier identifies a percentile band of the step curve.
type Tier string

const (
	TierTop    Tier = "top"    // >= 90th percentile
	TierHigh   Tier = "high"   // >= 70th
	TierMiddle Tier = "middle" // >= 40th
	TierLow    Tier = "low"    // >= 20th
	TierBottom Tier = "bottom"
)

// TierFor maps a percentile rank (0-100) to its tier.
func TierFor(percentile float64) Tier {
	switch {
	case percentile >= 90:
		return TierTop
	case percentile >= 70:
		return TierHigh
	case percentile >= 40:
		return TierMiddle
	case percentile >= 20:
		return TierLow
	default:
		return TierBottom
	}
}

// StepMultiplier returns the step-curve multiplier for a percentile rank.
func StepMultiplier(percentile float64) float64 {
	switch TierFor(percentile) {
	case TierTop:
		return 2.0
	case TierHigh:
		return 1.5
	case TierMiddle:
		return 1.0
	case TierLow:
		return 0.8
	default:
		return 0.6
	}
}

// DistributionRatios computes r_i for every employee under method.
// k is the exponent of the exponential curve.
func DistributionRatios(method DistributionMethod, k float64, employees []EligibleEmployee) ([]float64, error) {
	weights := make([]float64, len(employees))
	for i, e := range employees {
		switch method {
		case DistributionExponential:
			weights[i] = math.Pow(e.FinalScore, k)
		case DistributionLogarithmic:
			weights[i] = math.Log(e.FinalScore + 1)
		default:
			weights[i] = e.FinalScore
		}
	}

	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if !(sum > 0) || math.IsInf(sum, 0) {
		return nil, &NoValidScoresError{Method: method, ScoreSum: sum}
	}

	ratios := make([]float64, len(employees))
	for i, w := range weights {
		ratios[i] = w / sum
		if method == DistributionStep {
			ratios[i] *= StepMultiplier(employees[i].PercentileRank)
		}
	}
	return ratios, nil
}

// EqualRatios returns 1/n for every employee.
func EqualRatios(n int) []float64 {
	ratios := make([]float64, n)
	for i := range ratios {
		ratios[i] = 1 / float64(n)
	}
	return ratios
}

// =============================================================================
// AMOUNTS
// =============================================================================

// Distribute produces unconstrained results for the eligible set. coeffs must
// be index-aligned with employees.
func Distribute(available decimal.Decimal, rule AllocationRule, employees []EligibleEmployee, coeffs []Coefficients) ([]AllocationResult, error) {
	if !available.IsPositive() {
		return nil, &InsufficientBudgetError{Available: available}
	}

	baseRatios, perfRatios, err := methodRatios(rule, employees)
	if err != nil {
		return nil, err
	}

	baseShare := available.Mul(decimal.NewFromFloat(rule.BaseAllocationRatio))
	perfShare := available.Mul(decimal.NewFromFloat(rule.PerformanceAllocationRatio))

	results := make([]AllocationResult, len(employees))
	for i, e := range employees {
		coeff := decimal.NewFromFloat(coeffs[i].Final)

		var base, perf decimal.Decimal
		if rule.AllocationMethod == MethodFixedAmount {
			base = rule.FixedAmount.Mul(coeff)
			perf = decimal.Zero
		} else {
			base = baseShare.Mul(decimal.NewFromFloat(baseRatios[i])).Mul(coeff)
			perf = perfShare.Mul(decimal.NewFromFloat(perfRatios[i])).Mul(coeff)
		}

		r := AllocationResult{
			EmployeeID:          e.EmployeeID,
			DepartmentID:        e.DepartmentID,
			PositionLevel:       e.PositionLevel,
			PercentileRank:      e.PercentileRank,
			OriginalScore:       e.FinalScore,
			FinalScore:          performanceScore(rule, e.FinalScore),
			BaseAmount:          nonNegative(base).Round(2),
			PerformanceAmount:   nonNegative(perf).Round(2),
			AdjustmentAmount:    decimal.Zero,
			AppliedCoefficients: coeffs[i],
		}
		if perfRatios != nil {
			r.DistributionRatio = perfRatios[i]
		}
		r.recomputeTotal()
		r.OriginalCalculatedAmount = r.TotalAmount
		results[i] = r
	}
	return results, nil
}

// methodRatios returns the ratio vectors for the base and performance
// portions under the rule's allocation method.
func methodRatios(rule AllocationRule, employees []EligibleEmployee) (base, perf []float64, err error) {
	n := len(employees)
	switch rule.AllocationMethod {
	case MethodFixedAmount:
		// Scores still have to be usable even though amounts ignore them.
		if _, err := DistributionRatios(DistributionLinear, 0, employees); err != nil {
			return nil, nil, err
		}
		return nil, nil, nil
	case MethodPoolPercentage:
		eq := EqualRatios(n)
		return eq, eq, nil
	case MethodTierBased:
		r, err := DistributionRatios(DistributionStep, rule.ExponentialFactor, employees)
		return r, r, err
	case MethodHybrid:
		r, err := DistributionRatios(rule.ScoreDistributionMethod, rule.ExponentialFactor, employees)
		return EqualRatios(n), r, err
	default:
		r, err := DistributionRatios(rule.ScoreDistributionMethod, rule.ExponentialFactor, employees)
		return r, r, err
	}
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
