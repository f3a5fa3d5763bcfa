package allocation_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/bonus-engine/allocation"
)

func sum(values []float64) float64 {
	s := 0.0
	for _, v := range values {
		s += v
	}
	return s
}

func TestDistributionRatios_Curves(t *testing.T) {
	employees := threeEmployees()

	t.Run("linear", func(t *testing.T) {
		r, err := allocation.DistributionRatios(allocation.DistributionLinear, 2, employees)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, sum(r), 1e-12)
		assert.InDelta(t, 0.5, r[0], 1e-12)
	})

	t.Run("exponential", func(t *testing.T) {
		r, err := allocation.DistributionRatios(allocation.DistributionExponential, 2, employees)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, sum(r), 1e-12)
		assert.InDelta(t, 0.81/1.26, r[0], 1e-12)
		assert.InDelta(t, 0.09/1.26, r[2], 1e-12)
	})

	t.Run("logarithmic", func(t *testing.T) {
		r, err := allocation.DistributionRatios(allocation.DistributionLogarithmic, 2, employees)
		require.NoError(t, err)
		total := math.Log(1.9) + math.Log(1.6) + math.Log(1.3)
		assert.InDelta(t, 1.0, sum(r), 1e-12)
		assert.InDelta(t, math.Log(1.9)/total, r[0], 1e-12)
	})

	t.Run("exponential concentrates more than linear", func(t *testing.T) {
		lin, _ := allocation.DistributionRatios(allocation.DistributionLinear, 2, employees)
		exp, _ := allocation.DistributionRatios(allocation.DistributionExponential, 3, employees)
		log, _ := allocation.DistributionRatios(allocation.DistributionLogarithmic, 2, employees)
		assert.Greater(t, exp[0], lin[0])
		assert.Less(t, log[0], lin[0])
	})
}

func TestDistributionRatios_StepIsNotRenormalized(t *testing.T) {
	// GIVEN: Everyone in the top tier
	// WHEN: Computing step ratios
	// THEN: Ratios sum to 2.0, and the constraint pass must deal with it

	employees := threeEmployees()
	for i := range employees {
		employees[i].PercentileRank = 95
	}

	r, err := allocation.DistributionRatios(allocation.DistributionStep, 2, employees)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, sum(r), 1e-12)
}

func TestDistributionRatios_DegenerateScores(t *testing.T) {
	_, err := allocation.DistributionRatios(allocation.DistributionLinear, 2, []allocation.EligibleEmployee{})
	assert.ErrorIs(t, err, allocation.ErrNoValidScores)

	var nv *allocation.NoValidScoresError
	_, err = allocation.DistributionRatios(allocation.DistributionExponential, 2,
		[]allocation.EligibleEmployee{employee("a", 1e-300)})
	require.ErrorAs(t, err, &nv)
	assert.Equal(t, allocation.DistributionExponential, nv.Method)
}

func TestTierFor(t *testing.T) {
	tests := []struct {
		percentile float64
		tier       allocation.Tier
		multiplier float64
	}{
		{100, allocation.TierTop, 2.0},
		{90, allocation.TierTop, 2.0},
		{89.9, allocation.TierHigh, 1.5},
		{70, allocation.TierHigh, 1.5},
		{40, allocation.TierMiddle, 1.0},
		{20, allocation.TierLow, 0.8},
		{19.99, allocation.TierBottom, 0.6},
		{0, allocation.TierBottom, 0.6},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.tier, allocation.TierFor(tt.percentile), "percentile %g", tt.percentile)
		assert.Equal(t, tt.multiplier, allocation.StepMultiplier(tt.percentile))
	}
}

func TestDistribute_RejectsNonPositiveBudget(t *testing.T) {
	_, err := allocation.Distribute(dec("0"), linearRule().WithDefaults(), threeEmployees(), unitCoefficients(3))
	assert.ErrorIs(t, err, allocation.ErrInsufficientBudget)
}

func TestDistribute_AppliesCoefficient(t *testing.T) {
	coeffs := unitCoefficients(3)
	coeffs[0].Final = 1.5

	results, err := allocation.Distribute(dec("90000"), linearRule().WithDefaults(), threeEmployees(), coeffs)
	require.NoError(t, err)

	assert.InDelta(t, 67500, results[0].TotalAmount.InexactFloat64(), 0.01)
	assert.True(t, results[0].OriginalCalculatedAmount.Equal(results[0].TotalAmount))
	assert.True(t, results[0].AdjustmentAmount.IsZero())
	assert.Equal(t, 1.5, results[0].AppliedCoefficients.Final)
	assertTotalInvariant(t, results)
}
