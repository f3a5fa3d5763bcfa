package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/bonus-engine/allocation"
	"github.com/warp/bonus-engine/allocation/store"
	"github.com/warp/bonus-engine/service"
)

func setup(t *testing.T, status allocation.PoolStatus) (*service.Service, *store.Memory) {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()

	require.NoError(t, mem.SavePool(ctx, allocation.BonusPool{
		ID:           "pool-2025",
		Period:       "2025",
		TotalAmount:  decimal.NewFromInt(100000),
		ReserveRatio: 0.1,
		Status:       status,
	}))
	_, err := mem.SaveRule(ctx, allocation.AllocationRule{
		ID:                         "annual",
		BaseAllocationRatio:        0.6,
		PerformanceAllocationRatio: 0.4,
	})
	require.NoError(t, err)
	require.NoError(t, mem.AddScores(ctx, "2025", []allocation.EligibleEmployee{
		{EmployeeID: "a", FinalScore: 0.7, DepartmentID: "eng", WorkMonths: 24},
		{EmployeeID: "b", FinalScore: 0.6, DepartmentID: "eng", WorkMonths: 24},
		{EmployeeID: "c", FinalScore: 0.5, DepartmentID: "ops", WorkMonths: 24},
	}))

	svc := service.New(mem, allocation.NewEngine(nil, 2), nil)
	n := 0
	svc.NewID = func() string { n++; return fmt.Sprintf("run-%d", n) }
	svc.Now = func() time.Time { return time.Date(2025, 12, 15, 9, 0, 0, 0, time.UTC).Add(time.Duration(n) * time.Minute) }
	return svc, mem
}

func TestAllocateBonusPool_StoresRunAndUpdatesPool(t *testing.T) {
	// GIVEN: An active pool, a rule and a scored feed
	// WHEN: Allocating
	// THEN: The run is stored and the pool is marked allocated with its totals

	ctx := context.Background()
	svc, mem := setup(t, allocation.PoolActive)

	res, err := svc.AllocateBonusPool(ctx, service.AllocateRequest{PoolID: "pool-2025", RuleID: "annual", RequestedBy: "hr"})
	require.NoError(t, err)
	assert.False(t, res.DryRun)
	assert.Equal(t, allocation.RunID("run-1"), res.Run.ID)
	assert.Equal(t, 1, res.Run.RuleVersion)
	assert.Equal(t, 3, res.Run.AllocatedCount)
	assert.InDelta(t, 90000, res.Run.AllocatedAmount.InexactFloat64(), 0.05)

	pool, err := mem.GetPool(ctx, "pool-2025")
	require.NoError(t, err)
	assert.Equal(t, allocation.PoolAllocated, pool.Status)
	assert.Equal(t, 3, pool.AllocatedCount)
	assert.Equal(t, allocation.RunID("run-1"), pool.LatestRunID)
	assert.True(t, pool.AllocatedAmount.Equal(res.Output.AllocatedAmount))

	run, results, err := mem.LoadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "hr", run.CreatedBy)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, allocation.RunID("run-1"), r.RunID)
	}
}

func TestAllocateBonusPool_RerunAppendsNewRun(t *testing.T) {
	ctx := context.Background()
	svc, mem := setup(t, allocation.PoolActive)

	_, err := svc.AllocateBonusPool(ctx, service.AllocateRequest{PoolID: "pool-2025", RuleID: "annual"})
	require.NoError(t, err)
	second, err := svc.AllocateBonusPool(ctx, service.AllocateRequest{PoolID: "pool-2025", RuleID: "annual"})
	require.NoError(t, err)

	runs, err := mem.ListRuns(ctx, "pool-2025")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.Run.ID, runs[0].ID)

	pool, _ := mem.GetPool(ctx, "pool-2025")
	assert.Equal(t, second.Run.ID, pool.LatestRunID)
}

func TestAllocateBonusPool_DryRunWritesNothing(t *testing.T) {
	ctx := context.Background()
	svc, mem := setup(t, allocation.PoolDraft)

	res, err := svc.AllocateBonusPool(ctx, service.AllocateRequest{PoolID: "pool-2025", RuleID: "annual", DryRun: true})
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Len(t, res.Output.Results, 3)

	runs, err := mem.ListRuns(ctx, "pool-2025")
	require.NoError(t, err)
	assert.Empty(t, runs)

	pool, _ := mem.GetPool(ctx, "pool-2025")
	assert.Equal(t, allocation.PoolDraft, pool.Status)
	assert.True(t, pool.AllocatedAmount.IsZero())
}

func TestAllocateBonusPool_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("closed pool", func(t *testing.T) {
		svc, _ := setup(t, allocation.PoolClosed)
		_, err := svc.AllocateBonusPool(ctx, service.AllocateRequest{PoolID: "pool-2025", RuleID: "annual"})
		assert.ErrorIs(t, err, allocation.ErrPoolNotActive)
		assert.True(t, allocation.IsClientError(err))
	})

	t.Run("unknown pool", func(t *testing.T) {
		svc, _ := setup(t, allocation.PoolActive)
		_, err := svc.AllocateBonusPool(ctx, service.AllocateRequest{PoolID: "nope", RuleID: "annual"})
		assert.True(t, allocation.IsNotFound(err))
	})

	t.Run("unknown rule", func(t *testing.T) {
		svc, _ := setup(t, allocation.PoolActive)
		_, err := svc.AllocateBonusPool(ctx, service.AllocateRequest{PoolID: "pool-2025", RuleID: "nope"})
		assert.ErrorIs(t, err, allocation.ErrRuleNotFound)
	})

	t.Run("empty feed leaves pool untouched", func(t *testing.T) {
		svc, mem := setup(t, allocation.PoolActive)
		require.NoError(t, mem.SavePool(ctx, allocation.BonusPool{
			ID: "pool-2026", Period: "2026", TotalAmount: decimal.NewFromInt(5000), Status: allocation.PoolActive,
		}))

		_, err := svc.AllocateBonusPool(ctx, service.AllocateRequest{PoolID: "pool-2026", RuleID: "annual"})
		assert.ErrorIs(t, err, allocation.ErrEmptyEligibleSet)

		pool, _ := mem.GetPool(ctx, "pool-2026")
		assert.Equal(t, allocation.PoolActive, pool.Status)
		runs, _ := mem.ListRuns(ctx, "pool-2026")
		assert.Empty(t, runs)
	})
}

func TestRunSummary_RecomputesFromStoredResults(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t, allocation.PoolActive)

	res, err := svc.AllocateBonusPool(ctx, service.AllocateRequest{PoolID: "pool-2025", RuleID: "annual"})
	require.NoError(t, err)

	_, summary, err := svc.RunSummary(ctx, res.Run.ID)
	require.NoError(t, err)
	assert.True(t, summary.TotalAllocated.Equal(res.Output.Summary.TotalAllocated))
	assert.Equal(t, res.Output.Summary.Gini, summary.Gini)
	assert.Len(t, summary.Departments, 2)

	_, _, err = svc.RunSummary(ctx, "missing")
	assert.ErrorIs(t, err, allocation.ErrRunNotFound)
}
