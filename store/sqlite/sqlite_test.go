package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/bonus-engine/allocation"
	"github.com/warp/bonus-engine/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPools(t *testing.T) {
	// GIVEN: A stored pool
	// WHEN: Writing an allocation back and re-saving the configuration
	// THEN: The allocation fields survive the configuration update

	ctx := context.Background()
	store := newStore(t)

	pool := allocation.BonusPool{
		ID:           "pool-2025",
		Name:         "FY25",
		Period:       "2025",
		TotalAmount:  decimal.RequireFromString("100000.50"),
		ReserveRatio: 0.1,
		Status:       allocation.PoolActive,
	}
	require.NoError(t, store.SavePool(ctx, pool))

	err := store.UpdatePoolAllocation(ctx, "pool-2025", allocation.PoolAllocationUpdate{
		AllocatedAmount: decimal.RequireFromString("90000.45"),
		AllocatedCount:  12,
		Status:          allocation.PoolAllocated,
		RunID:           "run-1",
	})
	require.NoError(t, err)

	pool.Name = "FY25 renamed"
	pool.Status = allocation.PoolAllocated
	require.NoError(t, store.SavePool(ctx, pool))

	got, err := store.GetPool(ctx, "pool-2025")
	require.NoError(t, err)
	assert.Equal(t, "FY25 renamed", got.Name)
	assert.Equal(t, "100000.5", got.TotalAmount.String())
	assert.Equal(t, "90000.45", got.AllocatedAmount.String())
	assert.Equal(t, 12, got.AllocatedCount)
	assert.Equal(t, allocation.RunID("run-1"), got.LatestRunID)
	assert.Equal(t, 0.1, got.ReserveRatio)

	pools, err := store.ListPools(ctx)
	require.NoError(t, err)
	assert.Len(t, pools, 1)

	_, err = store.GetPool(ctx, "missing")
	assert.ErrorIs(t, err, allocation.ErrPoolNotFound)
	err = store.UpdatePoolAllocation(ctx, "missing", allocation.PoolAllocationUpdate{})
	assert.ErrorIs(t, err, allocation.ErrPoolNotFound)
}

func TestRules_AreVersioned(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	rule := allocation.AllocationRule{
		ID:                         "annual",
		Name:                       "Annual",
		BaseAllocationRatio:        0.6,
		PerformanceAllocationRatio: 0.4,
		PositionLevelWeights:       allocation.WeightTable{"P5": 1.3},
		MinBonusAmount:             decimal.NewFromInt(250),
	}.WithDefaults()

	v1, err := store.SaveRule(ctx, rule)
	require.NoError(t, err)
	rule.BaseAllocationRatio = 0.5
	rule.PerformanceAllocationRatio = 0.5
	v2, err := store.SaveRule(ctx, rule)
	require.NoError(t, err)
	assert.Equal(t, 1, v1)
	assert.Equal(t, 2, v2)

	latest, err := store.GetRule(ctx, "annual")
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Version)
	assert.Equal(t, 0.5, latest.BaseAllocationRatio)
	assert.Equal(t, 1.3, latest.PositionLevelWeights["P5"])
	assert.True(t, latest.MinBonusAmount.Equal(decimal.NewFromInt(250)))

	first, err := store.GetRuleVersion(ctx, "annual", 1)
	require.NoError(t, err)
	assert.Equal(t, 0.6, first.BaseAllocationRatio)

	rules, err := store.ListRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, 2, rules[0].Version)

	_, err = store.GetRule(ctx, "missing")
	assert.True(t, allocation.IsNotFound(err))
}

func TestScores_KeepImportOrder(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	require.NoError(t, store.AddScores(ctx, "2025", []allocation.EligibleEmployee{
		{EmployeeID: "c", FinalScore: 0.3, DepartmentID: "ops"},
		{EmployeeID: "a", FinalScore: 0.9, DepartmentID: "eng", WorkMonths: 30},
	}))
	// Re-import replaces the row in place and appends new ones.
	require.NoError(t, store.AddScores(ctx, "2025", []allocation.EligibleEmployee{
		{EmployeeID: "c", FinalScore: 0.4, DepartmentID: "ops"},
		{EmployeeID: "b", FinalScore: 0.6},
	}))

	rows, err := store.ScoredEmployees(ctx, "2025")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, allocation.EmployeeID("c"), rows[0].EmployeeID)
	assert.Equal(t, 0.4, rows[0].FinalScore)
	assert.Equal(t, allocation.EmployeeID("a"), rows[1].EmployeeID)
	assert.Equal(t, 30, rows[1].WorkMonths)
	assert.Equal(t, allocation.EmployeeID("b"), rows[2].EmployeeID)
	assert.Equal(t, allocation.Period("2025"), rows[2].Period)

	empty, err := store.ScoredEmployees(ctx, "2024")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRuns_RoundTripAndAppendOnly(t *testing.T) {
	// GIVEN: A run with results
	// WHEN: Loading it back
	// THEN: Amounts, flags and coefficients are identical and order is kept;
	//       saving the same run id again fails

	ctx := context.Background()
	store := newStore(t)
	t0 := time.Date(2025, 12, 1, 10, 0, 0, 0, time.UTC)

	results := []allocation.AllocationResult{
		{
			RunID: "run-1", EmployeeID: "b", DepartmentID: "eng", PositionLevel: "P3",
			PercentileRank: 100, OriginalScore: 0.9, FinalScore: 0.9, DistributionRatio: 0.5,
			BaseAmount:        decimal.RequireFromString("27000"),
			PerformanceAmount: decimal.RequireFromString("18000"),
			AdjustmentAmount:  decimal.RequireFromString("-9000"),
			TotalAmount:       decimal.RequireFromString("36000"),
			AppliedCoefficients: allocation.Coefficients{
				Base: 1, Performance: 1.2, Position: 1, Department: 1, Special: 1, Final: 1.2,
			},
			MaxAmountApplied:         true,
			OriginalCalculatedAmount: decimal.RequireFromString("45000"),
		},
		{
			RunID: "run-1", EmployeeID: "a", OriginalScore: 0.3, FinalScore: 0.3,
			BaseAmount: decimal.RequireFromString("9000"), PerformanceAmount: decimal.RequireFromString("6000"),
			AdjustmentAmount: decimal.Zero, TotalAmount: decimal.RequireFromString("15000"),
			OriginalCalculatedAmount: decimal.RequireFromString("15000"),
		},
	}
	run := allocation.RunRecord{
		ID: "run-1", PoolID: "pool", RuleID: "rule", RuleVersion: 3, Period: "2025",
		AvailableAmount: decimal.NewFromInt(90000), BudgetCap: decimal.NewFromInt(90000),
		AllocatedAmount: decimal.NewFromInt(51000), AllocatedCount: 2, WarningCount: 1,
		CreatedBy: "alice", CreatedAt: t0,
	}
	require.NoError(t, store.SaveRun(ctx, run, results))

	gotRun, gotResults, err := store.LoadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 3, gotRun.RuleVersion)
	assert.Equal(t, "alice", gotRun.CreatedBy)
	assert.True(t, gotRun.CreatedAt.Equal(t0))
	assert.Equal(t, "51000", gotRun.AllocatedAmount.String())

	require.Len(t, gotResults, 2)
	assert.Equal(t, allocation.EmployeeID("b"), gotResults[0].EmployeeID)
	assert.Equal(t, "-9000", gotResults[0].AdjustmentAmount.String())
	assert.True(t, gotResults[0].MaxAmountApplied)
	assert.False(t, gotResults[0].MinAmountApplied)
	assert.Equal(t, results[0].AppliedCoefficients, gotResults[0].AppliedCoefficients)
	assert.Equal(t, allocation.RunID("run-1"), gotResults[1].RunID)

	err = store.SaveRun(ctx, run, nil)
	assert.True(t, errors.Is(err, sqlite.ErrDuplicateRun))

	_, _, err = store.LoadRun(ctx, "run-x")
	assert.ErrorIs(t, err, allocation.ErrRunNotFound)
}

func TestListRuns_NewestFirst(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	t0 := time.Date(2025, 12, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []allocation.RunID{"r1", "r2", "r3"} {
		require.NoError(t, store.SaveRun(ctx, allocation.RunRecord{
			ID: id, PoolID: "pool", RuleID: "rule", RuleVersion: 1, Period: "2025",
			CreatedAt: t0.Add(time.Duration(i) * 500 * time.Millisecond),
		}, nil))
	}
	require.NoError(t, store.SaveRun(ctx, allocation.RunRecord{ID: "other", PoolID: "pool-b", CreatedAt: t0}, nil))

	runs, err := store.ListRuns(ctx, "pool")
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, allocation.RunID("r3"), runs[0].ID)
	assert.Equal(t, allocation.RunID("r1"), runs[2].ID)
}
