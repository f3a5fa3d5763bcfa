/*
fairness.go - Distribution statistics and equity metrics

PURPOSE:
  Read-only analysis of a final result set for reporting and validation.
  Never mutates its input. An empty input yields a zeroed summary.

METRICS:
  - Count, sum, mean, median, min, max, population standard deviation
  - Variation coefficient: stdDev / mean
  - Gini: sum((2i - n - 1) x_i) / (n sum(x)), x ascending, i 1-indexed
  - Pearson correlation between TotalAmount and FinalScore
  - Outliers: outside [Q1 - 1.5 IQR, Q3 + 1.5 IQR] on TotalAmount
  - Per-department and per-tier breakdowns
  - Quality metrics: bound applications, outliers, issues
*/
package allocation

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SUMMARY TYPES
// =============================================================================

// Statistics describes a set of amounts.
type Statistics struct {
	Count                int     `json:"count"`
	Sum                  float64 `json:"sum"`
	Mean                 float64 `json:"mean"`
	Median               float64 `json:"median"`
	Min                  float64 `json:"min"`
	Max                  float64 `json:"max"`
	StdDev               float64 `json:"std_dev"`
	VariationCoefficient float64 `json:"variation_coefficient"`
}

// GroupBreakdown aggregates results sharing a department or tier.
type GroupBreakdown struct {
	Key   string  `json:"key"`
	Count int     `json:"count"`
	Total float64 `json:"total"`
	Mean  float64 `json:"mean"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// QualityIssue flags a property of the distribution worth a reviewer's look.
type QualityIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	IssueOverBudget     = "over_budget"
	IssueNegativeMerit  = "negative_merit_correlation"
	IssueHighInequality = "high_inequality"
	IssueBoundHeavy     = "bound_heavy"

	highInequalityGini = 0.5
	boundHeavyShare    = 0.3
)

type QualityMetrics struct {
	MinBoundApplied int            `json:"min_bound_applied"`
	MaxBoundApplied int            `json:"max_bound_applied"`
	OutlierCount    int            `json:"outlier_count"`
	Outliers        []EmployeeID   `json:"outliers,omitempty"`
	Issues          []QualityIssue `json:"issues,omitempty"`
}

// AllocationSummary is a derived view over a result set.
type AllocationSummary struct {
	AvailableAmount   decimal.Decimal `json:"available_amount"`
	BudgetCap         decimal.Decimal `json:"budget_cap"`
	TotalAllocated    decimal.Decimal `json:"total_allocated"`
	AllocationRatio   float64         `json:"allocation_ratio"`   // total / available
	BudgetUtilization float64         `json:"budget_utilization"` // total / cap

	Statistics       Statistics `json:"statistics"`
	Gini             float64    `json:"gini"`
	ScoreCorrelation float64    `json:"score_correlation"`

	Departments []GroupBreakdown `json:"departments"`
	Tiers       []GroupBreakdown `json:"tiers"`

	Quality QualityMetrics `json:"quality_metrics"`
}

// =============================================================================
// ANALYZER
// =============================================================================

// Analyze summarizes results against the available budget and cap.
func Analyze(results []AllocationResult, available, budgetCap decimal.Decimal) AllocationSummary {
	s := AllocationSummary{
		AvailableAmount: available,
		BudgetCap:       budgetCap,
		TotalAllocated:  decimal.Zero,
	}
	if len(results) == 0 {
		return s
	}

	amounts := make([]float64, len(results))
	scores := make([]float64, len(results))
	for i, r := range results {
		amounts[i] = r.TotalAmount.InexactFloat64()
		scores[i] = r.FinalScore
	}

	s.TotalAllocated = SumTotals(results)
	if available.IsPositive() {
		s.AllocationRatio = s.TotalAllocated.Div(available).InexactFloat64()
	}
	if budgetCap.IsPositive() {
		s.BudgetUtilization = s.TotalAllocated.Div(budgetCap).InexactFloat64()
	}

	s.Statistics = Describe(amounts)
	s.Gini = Gini(amounts)
	s.ScoreCorrelation = Pearson(amounts, scores)

	s.Departments = breakdown(results, func(r AllocationResult) string { return r.DepartmentID })
	s.Tiers = breakdown(results, func(r AllocationResult) string { return string(TierFor(r.PercentileRank)) })

	for _, r := range results {
		if r.MinAmountApplied {
			s.Quality.MinBoundApplied++
		}
		if r.MaxAmountApplied {
			s.Quality.MaxBoundApplied++
		}
	}
	for _, i := range OutlierIndices(amounts) {
		s.Quality.Outliers = append(s.Quality.Outliers, results[i].EmployeeID)
	}
	s.Quality.OutlierCount = len(s.Quality.Outliers)
	s.Quality.Issues = qualityIssues(s, len(results))
	return s
}

func qualityIssues(s AllocationSummary, n int) []QualityIssue {
	var issues []QualityIssue
	if s.BudgetCap.IsPositive() && s.TotalAllocated.GreaterThan(s.BudgetCap) {
		issues = append(issues, QualityIssue{
			Code:    IssueOverBudget,
			Message: "allocated total " + s.TotalAllocated.StringFixed(2) + " exceeds cap " + s.BudgetCap.StringFixed(2),
		})
	}
	if s.ScoreCorrelation < 0 {
		issues = append(issues, QualityIssue{
			Code:    IssueNegativeMerit,
			Message: "bonus amounts move against performance scores",
		})
	}
	if s.Gini > highInequalityGini {
		issues = append(issues, QualityIssue{
			Code:    IssueHighInequality,
			Message: "gini coefficient above 0.5",
		})
	}
	bound := s.Quality.MinBoundApplied + s.Quality.MaxBoundApplied
	if n > 0 && float64(bound)/float64(n) > boundHeavyShare {
		issues = append(issues, QualityIssue{
			Code:    IssueBoundHeavy,
			Message: "more than 30% of employees were clamped to a bound",
		})
	}
	return issues
}

func breakdown(results []AllocationResult, key func(AllocationResult) string) []GroupBreakdown {
	groups := make(map[string]*GroupBreakdown)
	for _, r := range results {
		k := key(r)
		v := r.TotalAmount.InexactFloat64()
		g, ok := groups[k]
		if !ok {
			g = &GroupBreakdown{Key: k, Min: v, Max: v}
			groups[k] = g
		}
		g.Count++
		g.Total += v
		g.Min = math.Min(g.Min, v)
		g.Max = math.Max(g.Max, v)
	}

	out := make([]GroupBreakdown, 0, len(groups))
	for _, g := range groups {
		g.Mean = g.Total / float64(g.Count)
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// =============================================================================
// STATISTICS
// =============================================================================

// Describe computes descriptive statistics. Standard deviation is the
// population form.
func Describe(values []float64) Statistics {
	n := len(values)
	if n == 0 {
		return Statistics{}
	}
	sorted := sortedCopy(values)

	st := Statistics{Count: n, Min: sorted[0], Max: sorted[n-1]}
	for _, v := range sorted {
		st.Sum += v
	}
	st.Mean = st.Sum / float64(n)
	st.Median = quantile(sorted, 0.5)

	variance := 0.0
	for _, v := range sorted {
		d := v - st.Mean
		variance += d * d
	}
	st.StdDev = math.Sqrt(variance / float64(n))
	if st.Mean != 0 {
		st.VariationCoefficient = st.StdDev / st.Mean
	}
	return st
}

// Gini returns the Gini coefficient of non-negative values; 0 is perfectly
// equal.
func Gini(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := sortedCopy(values)

	sum, weighted := 0.0, 0.0
	for i, x := range sorted {
		sum += x
		weighted += float64(2*(i+1)-n-1) * x
	}
	if sum == 0 {
		return 0
	}
	return weighted / (float64(n) * sum)
}

// Pearson returns the correlation coefficient of xs and ys, or 0 when either
// has no variance.
func Pearson(xs, ys []float64) float64 {
	n := len(xs)
	if n < 2 || len(ys) != n {
		return 0
	}
	mx, my := 0.0, 0.0
	for i := range xs {
		mx += xs[i]
		my += ys[i]
	}
	mx /= float64(n)
	my /= float64(n)

	var cov, vx, vy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return 0
	}
	return cov / math.Sqrt(vx*vy)
}

// OutlierIndices returns, in input order, the indices of values outside the
// 1.5 x IQR fences.
func OutlierIndices(values []float64) []int {
	if len(values) < 4 {
		return nil
	}
	sorted := sortedCopy(values)
	q1, q3 := quantile(sorted, 0.25), quantile(sorted, 0.75)
	iqr := q3 - q1
	lo, hi := q1-1.5*iqr, q3+1.5*iqr

	var out []int
	for i, v := range values {
		if v < lo || v > hi {
			out = append(out, i)
		}
	}
	return out
}

// quantile interpolates linearly between closest ranks of sorted.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (pos-float64(lo))*(sorted[hi]-sorted[lo])
}

func sortedCopy(values []float64) []float64 {
	out := append([]float64(nil), values...)
	sort.Float64s(out)
	return out
}
