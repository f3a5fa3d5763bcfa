package allocation

import (
	"context"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Coefficient bounds and factor values.
const (
	MinFinalCoefficient   = 0.1
	MinSpecialCoefficient = 0.1
	MaxSpecialCoefficient = 5.0

	highPerformanceThreshold = 0.8
	lowPerformanceThreshold  = 0.4
	highPerformanceFactor    = 1.2
	lowPerformanceFactor     = 0.8

	newHireFactor       = 0.5
	excellenceThreshold = 0.9
	excellenceFactor    = 1.3
	keyPositionFactor   = 1.1
)

// validFactor reports whether v can be used as a multiplier.
func validFactor(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

// SanitizeFactor returns v when it is a positive finite number and 1.0
// otherwise. The second result is false when v was replaced.
func SanitizeFactor(v float64) (float64, bool) {
	if !validFactor(v) {
		return DefaultWeight, false
	}
	return v, true
}

// ComputeCoefficients derives the multiplicative adjustment for one employee.
// Every factor is sanitized before multiplication; replaced factors are
// reported as InvalidCoefficientError and never abort the computation.
func ComputeCoefficients(rule AllocationRule, e EligibleEmployee) (Coefficients, []*InvalidCoefficientError) {
	var warnings []*InvalidCoefficientError
	check := func(factor, key string, v float64) float64 {
		out, ok := SanitizeFactor(v)
		if !ok {
			warnings = append(warnings, &InvalidCoefficientError{
				EmployeeID: e.EmployeeID, Factor: factor, Key: key, Value: v,
			})
		}
		return out
	}

	score := performanceScore(rule, e.FinalScore)

	c := Coefficients{}
	c.Base = check("base", "", rule.BaseCoefficient)
	c.Performance = check("performance", "", performanceFactor(score))

	pos, rejected := rule.PositionLevelWeights.Lookup(e.PositionLevel)
	if rejected {
		check("position", e.PositionLevel, rule.PositionLevelWeights[e.PositionLevel])
	}
	c.Position = pos

	dept, rejected := rule.DepartmentWeights.Lookup(e.DepartmentID)
	if rejected {
		check("department", e.DepartmentID, rule.DepartmentWeights[e.DepartmentID])
	}
	c.Department = dept

	c.Special = check("special", "", specialFactor(rule.SpecialRules, e, score))

	c.Final = math.Max(c.Base*c.Performance*c.Position*c.Department*c.Special, MinFinalCoefficient)
	return c, warnings
}

func performanceScore(rule AllocationRule, score float64) float64 {
	scale := rule.ScoreScale
	if scale <= 0 {
		scale = 1
	}
	return score / scale
}

func performanceFactor(score float64) float64 {
	switch {
	case score > highPerformanceThreshold:
		return highPerformanceFactor
	case score < lowPerformanceThreshold:
		return lowPerformanceFactor
	default:
		return 1.0
	}
}

func specialFactor(rules SpecialRules, e EligibleEmployee, score float64) float64 {
	f := 1.0
	months := rules.NewHireMonths
	if months <= 0 {
		months = DefaultNewHireMonths
	}
	if rules.NewHireReduction && e.WorkMonths < months {
		f *= newHireFactor
	}
	if rules.ExcellenceBonus && score > excellenceThreshold {
		f *= excellenceFactor
	}
	if rules.KeyPositionBonus && rules.IsKeyPosition(e.PositionLevel) {
		f *= keyPositionFactor
	}
	return math.Min(math.Max(f, MinSpecialCoefficient), MaxSpecialCoefficient)
}

// computeAll fans coefficient computation out over a bounded worker pool.
// Each worker writes only its own index, so no locking is needed and the
// output order matches the input order.
func computeAll(ctx context.Context, rule AllocationRule, employees []EligibleEmployee, workers int) ([]Coefficients, []*InvalidCoefficientError, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	coeffs := make([]Coefficients, len(employees))
	perEmployee := make([][]*InvalidCoefficientError, len(employees))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range employees {
		g.Go(func() error {
			coeffs[i], perEmployee[i] = ComputeCoefficients(rule, employees[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var warnings []*InvalidCoefficientError
	for _, w := range perEmployee {
		warnings = append(warnings, w...)
	}
	return coeffs, warnings, nil
}
