/*
engine.go - Allocation pipeline

PURPOSE:
  Runs one allocation over an in-memory employee set:

    1. FilterEligible       - scope and score filter, fatal when empty
    2. ComputeCoefficients  - per employee, on a bounded worker pool
    3. Distribute           - needs the complete eligible set
    4. EnforceConstraints   - needs the complete result set
    5. Analyze              - read-only summary

  Each stage waits for the previous one to finish. Fatal errors abort the
  run before any result is returned; partial results are never surfaced.

STATE:
  Engine holds only its logger and worker count. It keeps no caches and no
  metrics, so one Engine can serve concurrent runs for different pools.

DETERMINISM:
  The engine generates no IDs and reads no clock. The caller supplies the
  RunID, so identical inputs produce identical results.

USAGE:
  engine := allocation.NewEngine(logger, 8)
  out, err := engine.Run(ctx, allocation.RunInput{RunID: id, Pool: pool, Rule: rule, Employees: rows})
  if errors.Is(err, allocation.ErrEmptyEligibleSet) { ... }

SEE ALSO:
  - service/allocate.go: Loads inputs, persists outputs
*/
package allocation

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var validate = validator.New()

// Engine computes bonus allocations.
type Engine struct {
	Logger  *zap.Logger
	Workers int // coefficient workers, <= 0 means GOMAXPROCS
}

// NewEngine creates an engine. A nil logger is replaced by a no-op logger.
func NewEngine(logger *zap.Logger, workers int) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{Logger: logger, Workers: workers}
}

// RunInput is everything a run reads. None of it is modified.
type RunInput struct {
	RunID     RunID
	Pool      BonusPool
	Rule      AllocationRule
	Employees []EligibleEmployee
}

// RunOutput is everything a run produces.
type RunOutput struct {
	RunID    RunID
	PoolID   PoolID
	RuleID   RuleID
	Period   Period
	Results  []AllocationResult
	Summary  AllocationSummary
	Bounds   Bounds
	Warnings []*InvalidCoefficientError

	// Values the caller writes back onto the pool.
	AllocatedAmount decimal.Decimal
	AllocatedCount  int
}

// ValidateRule checks a rule after defaults are applied.
func ValidateRule(rule AllocationRule) error {
	if err := validate.Struct(rule); err != nil {
		return &RuleValidationError{RuleID: rule.ID, Err: err}
	}
	return nil
}

// Run executes the pipeline.
func (e *Engine) Run(ctx context.Context, in RunInput) (*RunOutput, error) {
	logger := e.logger().With(
		zap.String("run_id", string(in.RunID)),
		zap.String("pool_id", string(in.Pool.ID)),
		zap.String("period", string(in.Pool.Period)),
	)

	rule := in.Rule.WithDefaults()
	if err := ValidateRule(rule); err != nil {
		return nil, err
	}
	if in.Pool.ReserveRatio < 0 || in.Pool.ReserveRatio >= 1 {
		return nil, fmt.Errorf("%w: reserve ratio %g outside [0,1)", ErrInvalidPool, in.Pool.ReserveRatio)
	}

	eligible, err := FilterEligible(in.Pool.Period, in.Employees, rule.Scope)
	if err != nil {
		return nil, err
	}
	// Copy before ranking so the caller's slice is never written.
	eligible = append([]EligibleEmployee(nil), eligible...)
	AssignRanks(eligible)

	available := in.Pool.AvailableAmount()
	if !in.Pool.TotalAmount.IsPositive() || !available.IsPositive() {
		return nil, &InsufficientBudgetError{PoolID: in.Pool.ID, Available: available}
	}

	coeffs, warnings, err := computeAll(ctx, rule, eligible, e.Workers)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		logger.Warn("Invalid coefficient reset to 1.0",
			zap.String("employee_id", string(w.EmployeeID)),
			zap.String("factor", w.Factor),
			zap.String("key", w.Key),
			zap.Float64("value", w.Value),
		)
	}

	results, err := Distribute(available, rule, eligible, coeffs)
	if err != nil {
		return nil, err
	}

	bounds := EnforceConstraints(results, available, rule)
	for i := range results {
		results[i].RunID = in.RunID
	}

	summary := Analyze(results, available, BudgetCap(available, rule))
	logger.Debug("Allocation computed",
		zap.Int("eligible", len(eligible)),
		zap.String("available", available.StringFixed(2)),
		zap.String("allocated", summary.TotalAllocated.StringFixed(2)),
		zap.Float64("gini", summary.Gini),
		zap.Int("warnings", len(warnings)),
	)

	return &RunOutput{
		RunID:           in.RunID,
		PoolID:          in.Pool.ID,
		RuleID:          rule.ID,
		Period:          in.Pool.Period,
		Results:         results,
		Summary:         summary,
		Bounds:          bounds,
		Warnings:        warnings,
		AllocatedAmount: summary.TotalAllocated,
		AllocatedCount:  len(results),
	}, nil
}

func (e *Engine) logger() *zap.Logger {
	if e == nil || e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}
