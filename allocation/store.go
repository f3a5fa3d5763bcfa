/*
store.go - Collaborator interfaces around the engine

PURPOSE:
  The engine itself does no I/O. These interfaces describe what the
  surrounding system provides (scored feed, pool and rule configuration) and
  what it keeps (run results). Implementations:

  - allocation/store/memory.go: In-memory, for tests and dry runs
  - store/sqlite/sqlite.go:     SQLite

APPEND-ONLY RUNS:
  A run and its results are written once by SaveRun. Re-running a pool
  creates a new run; earlier runs are never patched or deleted.

SEE ALSO:
  - service/allocate.go: Uses every interface in this file
*/
package allocation

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Feed provides scored employees for a period.
type Feed interface {
	ScoredEmployees(ctx context.Context, period Period) ([]EligibleEmployee, error)
}

// PoolSource reads bonus pools and accepts the post-run write-back.
type PoolSource interface {
	GetPool(ctx context.Context, id PoolID) (*BonusPool, error)
	UpdatePoolAllocation(ctx context.Context, id PoolID, update PoolAllocationUpdate) error
}

// PoolAllocationUpdate carries the aggregate fields written back after a run.
type PoolAllocationUpdate struct {
	AllocatedAmount decimal.Decimal
	AllocatedCount  int
	Status          PoolStatus
	RunID           RunID
}

// RuleSource reads allocation rules. GetRule returns the latest version.
type RuleSource interface {
	GetRule(ctx context.Context, id RuleID) (*AllocationRule, error)
}

// RunRecord is the header row of a persisted run.
type RunRecord struct {
	ID              RunID
	PoolID          PoolID
	RuleID          RuleID
	RuleVersion     int
	Period          Period
	AvailableAmount decimal.Decimal
	BudgetCap       decimal.Decimal
	AllocatedAmount decimal.Decimal
	AllocatedCount  int
	WarningCount    int
	CreatedBy       string
	CreatedAt       time.Time
}

// ResultStore persists runs. Append-only.
type ResultStore interface {
	SaveRun(ctx context.Context, run RunRecord, results []AllocationResult) error
	LoadRun(ctx context.Context, id RunID) (*RunRecord, []AllocationResult, error)
	ListRuns(ctx context.Context, poolID PoolID) ([]RunRecord, error)
}
