/*
Package service orchestrates allocation runs around the pure engine.

PURPOSE:
  The engine does no I/O. This package is the caller-side half of a run:

    1. Load the pool and check its status accepts a run
    2. Load the latest version of the rule
    3. Load the scored feed for the pool's period
    4. Run the engine
    5. Persist the run and its results (append-only)
    6. Write allocatedAmount / allocatedCount back onto the pool

  With DryRun set, steps 5 and 6 are skipped and nothing is written.

RUN IDS:
  Run ids come from NewID (uuid by default) and are generated here, never in
  the engine, so engine output stays a pure function of its inputs.

SEE ALSO:
  - allocation/engine.go: The pipeline
  - allocation/store.go: Collaborator interfaces
*/
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/bonus-engine/allocation"
)

// Store is everything a run reads from and writes to.
type Store interface {
	allocation.Feed
	allocation.PoolSource
	allocation.RuleSource
	allocation.ResultStore
}

// Service runs allocations against a Store.
type Service struct {
	store  Store
	engine *allocation.Engine
	logger *zap.Logger

	// NewID and Now are replaceable for tests.
	NewID func() string
	Now   func() time.Time
}

// New creates a service. A nil logger is replaced by a no-op logger.
func New(store Store, engine *allocation.Engine, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if engine == nil {
		engine = allocation.NewEngine(logger, 0)
	}
	return &Service{
		store:  store,
		engine: engine,
		logger: logger,
		NewID:  uuid.NewString,
		Now:    time.Now,
	}
}

// AllocateRequest selects the pool and rule of a run.
type AllocateRequest struct {
	PoolID      allocation.PoolID
	RuleID      allocation.RuleID
	DryRun      bool
	RequestedBy string
}

// AllocateResult is a finished run. Run is populated for dry runs too but
// is not stored.
type AllocateResult struct {
	Run    allocation.RunRecord
	Output *allocation.RunOutput
	DryRun bool
}

// AllocateBonusPool runs one allocation for a pool.
func (s *Service) AllocateBonusPool(ctx context.Context, req AllocateRequest) (*AllocateResult, error) {
	logger := s.logger.With(
		zap.String("pool_id", string(req.PoolID)),
		zap.String("rule_id", string(req.RuleID)),
		zap.Bool("dry_run", req.DryRun),
	)

	pool, err := s.store.GetPool(ctx, req.PoolID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pool: %w", err)
	}
	if !pool.CanAllocate() {
		return nil, fmt.Errorf("%w: pool %s is %s", allocation.ErrPoolNotActive, pool.ID, pool.Status)
	}

	rule, err := s.store.GetRule(ctx, req.RuleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rule: %w", err)
	}

	employees, err := s.store.ScoredEmployees(ctx, pool.Period)
	if err != nil {
		return nil, fmt.Errorf("failed to load scored employees: %w", err)
	}

	runID := allocation.RunID(s.NewID())
	logger = logger.With(zap.String("run_id", string(runID)), zap.String("period", string(pool.Period)))
	logger.Info("Starting allocation",
		zap.Int("feed_rows", len(employees)),
		zap.Int("rule_version", rule.Version))

	out, err := s.engine.Run(ctx, allocation.RunInput{
		RunID:     runID,
		Pool:      *pool,
		Rule:      *rule,
		Employees: employees,
	})
	if err != nil {
		logger.Warn("Allocation failed", zap.Error(err))
		return nil, err
	}

	run := allocation.RunRecord{
		ID:              runID,
		PoolID:          pool.ID,
		RuleID:          rule.ID,
		RuleVersion:     rule.Version,
		Period:          pool.Period,
		AvailableAmount: out.Summary.AvailableAmount,
		BudgetCap:       out.Summary.BudgetCap,
		AllocatedAmount: out.AllocatedAmount,
		AllocatedCount:  out.AllocatedCount,
		WarningCount:    len(out.Warnings),
		CreatedBy:       req.RequestedBy,
		CreatedAt:       s.Now().UTC(),
	}

	if req.DryRun {
		logger.Info("Dry run finished, nothing stored",
			zap.String("allocated", out.AllocatedAmount.StringFixed(2)),
			zap.Int("count", out.AllocatedCount))
		return &AllocateResult{Run: run, Output: out, DryRun: true}, nil
	}

	if err := s.store.SaveRun(ctx, run, out.Results); err != nil {
		return nil, fmt.Errorf("failed to save run: %w", err)
	}
	err = s.store.UpdatePoolAllocation(ctx, pool.ID, allocation.PoolAllocationUpdate{
		AllocatedAmount: out.AllocatedAmount,
		AllocatedCount:  out.AllocatedCount,
		Status:          allocation.PoolAllocated,
		RunID:           runID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update pool: %w", err)
	}

	logger.Info("Allocation stored",
		zap.String("allocated", out.AllocatedAmount.StringFixed(2)),
		zap.Int("count", out.AllocatedCount),
		zap.Int("warnings", len(out.Warnings)),
		zap.Float64("allocation_ratio", out.Summary.AllocationRatio))

	return &AllocateResult{Run: run, Output: out}, nil
}

// RunSummary recomputes the summary of a stored run from its results.
func (s *Service) RunSummary(ctx context.Context, id allocation.RunID) (*allocation.RunRecord, *allocation.AllocationSummary, error) {
	run, results, err := s.store.LoadRun(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	summary := allocation.Analyze(results, run.AvailableAmount, run.BudgetCap)
	return run, &summary, nil
}
