package allocation_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/bonus-engine/allocation"
)

func resultsWithTotals(totals ...string) []allocation.AllocationResult {
	out := make([]allocation.AllocationResult, len(totals))
	for i, t := range totals {
		amount := dec(t)
		out[i] = allocation.AllocationResult{
			EmployeeID:               allocation.EmployeeID(string(rune('a' + i))),
			DepartmentID:             "eng",
			FinalScore:               float64(i+1) / 10,
			BaseAmount:               amount,
			PerformanceAmount:        decimal.Zero,
			AdjustmentAmount:         decimal.Zero,
			TotalAmount:              amount,
			OriginalCalculatedAmount: amount,
		}
	}
	return out
}

func TestGini(t *testing.T) {
	assert.Equal(t, 0.0, allocation.Gini([]float64{500, 500, 500, 500}))
	assert.Equal(t, 0.0, allocation.Gini(nil))
	assert.Equal(t, 0.0, allocation.Gini([]float64{0, 0}))

	// One person holds everything: (n-1)/n
	assert.InDelta(t, 0.75, allocation.Gini([]float64{0, 0, 0, 100}), 1e-12)

	// Order does not matter
	assert.InDelta(t, allocation.Gini([]float64{1, 2, 3}), allocation.Gini([]float64{3, 1, 2}), 1e-12)
}

func TestPearson(t *testing.T) {
	assert.InDelta(t, 1.0, allocation.Pearson([]float64{1, 2, 3}, []float64{10, 20, 30}), 1e-12)
	assert.InDelta(t, -1.0, allocation.Pearson([]float64{1, 2, 3}, []float64{3, 2, 1}), 1e-12)
	assert.Equal(t, 0.0, allocation.Pearson([]float64{5, 5, 5}, []float64{1, 2, 3}))
	assert.Equal(t, 0.0, allocation.Pearson([]float64{1}, []float64{1}))
}

func TestDescribe(t *testing.T) {
	st := allocation.Describe([]float64{4, 2, 8, 6})

	assert.Equal(t, 4, st.Count)
	assert.Equal(t, 20.0, st.Sum)
	assert.Equal(t, 5.0, st.Mean)
	assert.Equal(t, 5.0, st.Median)
	assert.Equal(t, 2.0, st.Min)
	assert.Equal(t, 8.0, st.Max)
	assert.InDelta(t, 2.2360679775, st.StdDev, 1e-9)
	assert.InDelta(t, 2.2360679775/5, st.VariationCoefficient, 1e-9)
}

func TestOutlierIndices(t *testing.T) {
	values := []float64{10, 11, 12, 13, 100}
	assert.Equal(t, []int{4}, allocation.OutlierIndices(values))

	assert.Nil(t, allocation.OutlierIndices([]float64{1, 2, 100}), "too few values for quartiles")
}

func TestAnalyze_EmptyInput(t *testing.T) {
	s := allocation.Analyze(nil, dec("1000"), dec("1000"))

	assert.True(t, s.TotalAllocated.IsZero())
	assert.Equal(t, 0, s.Statistics.Count)
	assert.Equal(t, 0.0, s.Gini)
	assert.Empty(t, s.Quality.Issues)
}

func TestAnalyze_DoesNotMutate(t *testing.T) {
	results := resultsWithTotals("300", "100", "200")
	before := append([]allocation.AllocationResult(nil), results...)

	allocation.Analyze(results, dec("600"), dec("600"))

	assert.Equal(t, before, results)
}

func TestAnalyze_EqualAllocation(t *testing.T) {
	// GIVEN: Four employees with the same amount
	// WHEN: Analyzing
	// THEN: Gini is 0, the full budget is used and no issue is raised

	s := allocation.Analyze(resultsWithTotals("250", "250", "250", "250"), dec("1000"), dec("1000"))

	assert.Equal(t, 0.0, s.Gini)
	assert.InDelta(t, 1.0, s.AllocationRatio, 1e-12)
	assert.InDelta(t, 1.0, s.BudgetUtilization, 1e-12)
	assert.Equal(t, 0.0, s.Statistics.StdDev)
	assert.Empty(t, s.Quality.Issues)
}

func TestAnalyze_QualityIssues(t *testing.T) {
	// GIVEN: Amounts that fall as scores rise, above the cap, mostly clamped
	// WHEN: Analyzing
	// THEN: Every matching issue is reported

	results := resultsWithTotals("900", "50", "30", "20")
	results[1].MinAmountApplied = true
	results[2].MinAmountApplied = true

	s := allocation.Analyze(results, dec("1000"), dec("900"))

	codes := make([]string, 0, len(s.Quality.Issues))
	for _, i := range s.Quality.Issues {
		codes = append(codes, i.Code)
	}
	assert.Contains(t, codes, allocation.IssueOverBudget)
	assert.Contains(t, codes, allocation.IssueNegativeMerit)
	assert.Contains(t, codes, allocation.IssueHighInequality)
	assert.Contains(t, codes, allocation.IssueBoundHeavy)
	assert.Equal(t, 2, s.Quality.MinBoundApplied)
	assert.Greater(t, s.Gini, 0.5)
	assert.Less(t, s.ScoreCorrelation, 0.0)
}

func TestAnalyze_Breakdowns(t *testing.T) {
	results := resultsWithTotals("100", "200", "300")
	results[0].DepartmentID = "sales"
	results[0].PercentileRank = 95
	results[1].PercentileRank = 50
	results[2].PercentileRank = 50

	s := allocation.Analyze(results, dec("600"), dec("600"))

	require.Len(t, s.Departments, 2)
	assert.Equal(t, "eng", s.Departments[0].Key)
	assert.Equal(t, 2, s.Departments[0].Count)
	assert.Equal(t, 500.0, s.Departments[0].Total)
	assert.Equal(t, 250.0, s.Departments[0].Mean)
	assert.Equal(t, "sales", s.Departments[1].Key)

	require.Len(t, s.Tiers, 2)
	assert.Equal(t, string(allocation.TierMiddle), s.Tiers[0].Key)
	assert.Equal(t, string(allocation.TierTop), s.Tiers[1].Key)
}
