package allocation

import (
	"math"
)

// FilterEligible selects the employees of period that take part in a run.
//
// A row is kept when its FinalScore is finite and strictly positive and it
// belongs to every non-empty scope list of the rule. Rows from other periods
// are ignored; an empty period matches all rows.
func FilterEligible(period Period, rows []EligibleEmployee, scope Scope) ([]EligibleEmployee, error) {
	businessLines := toSet(scope.BusinessLines)
	departments := toSet(scope.Departments)
	levels := toSet(scope.PositionLevels)

	var (
		eligible    []EligibleEmployee
		considered  int
		nonPositive int
		outOfScope  int
	)
	for _, row := range rows {
		if period != "" && row.Period != "" && row.Period != period {
			continue
		}
		considered++

		if math.IsNaN(row.FinalScore) || math.IsInf(row.FinalScore, 0) || row.FinalScore <= 0 {
			nonPositive++
			continue
		}
		if !inScope(businessLines, row.BusinessLine) ||
			!inScope(departments, row.DepartmentID) ||
			!inScope(levels, row.PositionLevel) {
			outOfScope++
			continue
		}
		eligible = append(eligible, row)
	}

	if len(eligible) == 0 {
		return nil, &EmptyEligibleSetError{
			Period:      period,
			Considered:  considered,
			NonPositive: nonPositive,
			OutOfScope:  outOfScope,
		}
	}
	return eligible, nil
}

// AssignRanks fills ScoreRank and PercentileRank from FinalScore when the
// feed supplied neither. Rank is 1 + the number of strictly higher scores;
// percentile is the share of other employees scoring strictly lower.
func AssignRanks(employees []EligibleEmployee) {
	for _, e := range employees {
		if e.ScoreRank != 0 || e.PercentileRank != 0 {
			return
		}
	}

	n := len(employees)
	for i := range employees {
		higher, lower := 0, 0
		for j := range employees {
			switch {
			case employees[j].FinalScore > employees[i].FinalScore:
				higher++
			case employees[j].FinalScore < employees[i].FinalScore:
				lower++
			}
		}
		employees[i].ScoreRank = higher + 1
		if n == 1 {
			employees[i].PercentileRank = 100
		} else {
			employees[i].PercentileRank = 100 * float64(lower) / float64(n-1)
		}
	}
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// inScope treats a nil set as unrestricted.
func inScope(set map[string]struct{}, value string) bool {
	if set == nil {
		return true
	}
	_, ok := set[value]
	return ok
}
