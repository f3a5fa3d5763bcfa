/*
Package sqlite provides a SQLite-backed implementation of the allocation
collaborator interfaces.

PURPOSE:
  Implements every collaborator interface of the engine (Feed, PoolSource,
  RuleSource, ResultStore) plus the management calls the API needs. In
  production the same patterns apply to PostgreSQL, with only minor SQL
  dialect differences.

INTERFACES IMPLEMENTED:
  allocation.Feed:        Scored employees per period
  allocation.PoolSource:  Bonus pools and the post-run write-back
  allocation.RuleSource:  Latest version of a rule
  allocation.ResultStore: Runs and their results

APPEND-ONLY ENFORCEMENT:
  allocation_runs and allocation_results are only ever INSERTed. A re-run is a
  new run id; the pool row points at the latest one.

VERSIONED RULES:
  allocation_rules is keyed by (id, version). SaveRule always inserts
  version max+1; GetRule reads the highest version. Older versions stay
  readable so a run can be traced back to the exact configuration it used.

KEY TABLES:
  bonus_pools:        One budget per period
  allocation_rules:   Rule documents (config_json), versioned
  scored_employees:   The upstream scoring feed, one row per (period, employee)
  allocation_runs:    Run headers
  allocation_results: Per-employee results, in input order

MONEY:
  Decimals are stored as TEXT and parsed back with decimal.NewFromString so
  no precision is lost through REAL.

USAGE:
  store, err := sqlite.New("./data/bonus.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := service.New(store, engine, logger)

SEE ALSO:
  - allocation/store.go: Interface definitions
  - allocation/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/bonus-engine/allocation"
	"github.com/warp/bonus-engine/factory"
)

// ErrDuplicateRun is returned when a run id is saved twice.
var ErrDuplicateRun = errors.New("allocation run already stored")

// Store implements all collaborator interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ allocation.Feed        = (*Store)(nil)
	_ allocation.PoolSource  = (*Store)(nil)
	_ allocation.RuleSource  = (*Store)(nil)
	_ allocation.ResultStore = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Bonus pools
	CREATE TABLE IF NOT EXISTS bonus_pools (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		period TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		reserve_ratio REAL NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'active',
		allocated_amount TEXT NOT NULL DEFAULT '0',
		allocated_count INTEGER NOT NULL DEFAULT 0,
		latest_run_id TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_bonus_pools_period
		ON bonus_pools(period);

	-- Allocation rules (versioned, never updated in place)
	CREATE TABLE IF NOT EXISTS allocation_rules (
		id TEXT NOT NULL,
		version INTEGER NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		config_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (id, version)
	);

	-- Scored employee feed
	CREATE TABLE IF NOT EXISTS scored_employees (
		period TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		final_score REAL NOT NULL,
		score_rank INTEGER NOT NULL DEFAULT 0,
		percentile_rank REAL NOT NULL DEFAULT 0,
		position_level TEXT NOT NULL DEFAULT '',
		department_id TEXT NOT NULL DEFAULT '',
		business_line TEXT NOT NULL DEFAULT '',
		work_months INTEGER NOT NULL DEFAULT 0,
		seq INTEGER NOT NULL,
		PRIMARY KEY (period, employee_id)
	);

	-- Allocation runs (append-only)
	CREATE TABLE IF NOT EXISTS allocation_runs (
		id TEXT PRIMARY KEY,
		pool_id TEXT NOT NULL,
		rule_id TEXT NOT NULL,
		rule_version INTEGER NOT NULL,
		period TEXT NOT NULL,
		available_amount TEXT NOT NULL,
		budget_cap TEXT NOT NULL,
		allocated_amount TEXT NOT NULL,
		allocated_count INTEGER NOT NULL,
		warning_count INTEGER NOT NULL DEFAULT 0,
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_allocation_runs_pool
		ON allocation_runs(pool_id, created_at DESC);

	-- Allocation results (append-only)
	CREATE TABLE IF NOT EXISTS allocation_results (
		run_id TEXT NOT NULL REFERENCES allocation_runs(id),
		seq INTEGER NOT NULL,
		employee_id TEXT NOT NULL,
		department_id TEXT NOT NULL DEFAULT '',
		position_level TEXT NOT NULL DEFAULT '',
		percentile_rank REAL NOT NULL DEFAULT 0,
		original_score REAL NOT NULL,
		final_score REAL NOT NULL,
		distribution_ratio REAL NOT NULL,
		base_amount TEXT NOT NULL,
		performance_amount TEXT NOT NULL,
		adjustment_amount TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		coefficients_json TEXT NOT NULL,
		min_amount_applied BOOLEAN NOT NULL DEFAULT FALSE,
		max_amount_applied BOOLEAN NOT NULL DEFAULT FALSE,
		original_calculated_amount TEXT NOT NULL,
		PRIMARY KEY (run_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_allocation_results_employee
		ON allocation_results(employee_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// POOL STORE (allocation.PoolSource)
// =============================================================================

const poolColumns = `id, name, period, total_amount, reserve_ratio, status,
	allocated_amount, allocated_count, latest_run_id`

// SavePool inserts a pool or replaces its configuration. Allocation fields
// are left untouched on update.
func (s *Store) SavePool(ctx context.Context, pool allocation.BonusPool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO bonus_pools (id, name, period, total_amount, reserve_ratio, status,
			allocated_amount, allocated_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, '0', 0, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			period = excluded.period,
			total_amount = excluded.total_amount,
			reserve_ratio = excluded.reserve_ratio,
			status = excluded.status,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, query,
		pool.ID, pool.Name, pool.Period, pool.TotalAmount.String(),
		pool.ReserveRatio, pool.Status, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save pool: %w", err)
	}
	return nil
}

// GetPool retrieves a pool by ID.
func (s *Store) GetPool(ctx context.Context, id allocation.PoolID) (*allocation.BonusPool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+poolColumns+" FROM bonus_pools WHERE id = ?", id)
	p, err := scanPool(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", allocation.ErrPoolNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPools returns all pools, newest period first.
func (s *Store) ListPools(ctx context.Context) ([]allocation.BonusPool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+poolColumns+" FROM bonus_pools ORDER BY period DESC, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query pools: %w", err)
	}
	defer rows.Close()

	var pools []allocation.BonusPool
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, err
		}
		pools = append(pools, p)
	}
	return pools, rows.Err()
}

// UpdatePoolAllocation writes the aggregate result of a run back onto a pool.
func (s *Store) UpdatePoolAllocation(ctx context.Context, id allocation.PoolID, u allocation.PoolAllocationUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE bonus_pools
		SET allocated_amount = ?, allocated_count = ?, status = ?, latest_run_id = ?, updated_at = ?
		WHERE id = ?`,
		u.AllocatedAmount.String(), u.AllocatedCount, u.Status, nullString(string(u.RunID)),
		time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update pool allocation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", allocation.ErrPoolNotFound, id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPool(row scanner) (allocation.BonusPool, error) {
	var (
		p           allocation.BonusPool
		total       string
		allocated   string
		latestRunID sql.NullString
	)
	err := row.Scan(&p.ID, &p.Name, &p.Period, &total, &p.ReserveRatio, &p.Status,
		&allocated, &p.AllocatedCount, &latestRunID)
	if err != nil {
		return p, err
	}
	p.TotalAmount = parseDecimal(total)
	p.AllocatedAmount = parseDecimal(allocated)
	p.LatestRunID = allocation.RunID(latestRunID.String)
	return p, nil
}

// =============================================================================
// RULE STORE (allocation.RuleSource)
// =============================================================================

// SaveRule stores a new version of a rule and returns the version number.
func (s *Store) SaveRule(ctx context.Context, rule allocation.AllocationRule) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current int
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM allocation_rules WHERE id = ?", rule.ID,
	).Scan(&current); err != nil {
		return 0, fmt.Errorf("failed to read rule version: %w", err)
	}

	rule.Version = current + 1
	configJSON, err := factory.MarshalRule(rule)
	if err != nil {
		return 0, fmt.Errorf("failed to encode rule: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO allocation_rules (id, version, name, config_json, created_at) VALUES (?, ?, ?, ?, ?)",
		rule.ID, rule.Version, rule.Name, string(configJSON), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save rule: %w", err)
	}
	return rule.Version, tx.Commit()
}

// GetRule returns the latest version of a rule.
func (s *Store) GetRule(ctx context.Context, id allocation.RuleID) (*allocation.AllocationRule, error) {
	return s.getRule(ctx, `
		SELECT config_json, version FROM allocation_rules
		WHERE id = ? ORDER BY version DESC LIMIT 1`, id)
}

// GetRuleVersion returns one specific version of a rule.
func (s *Store) GetRuleVersion(ctx context.Context, id allocation.RuleID, version int) (*allocation.AllocationRule, error) {
	return s.getRule(ctx, "SELECT config_json, version FROM allocation_rules WHERE id = ? AND version = ?", id, version)
}

func (s *Store) getRule(ctx context.Context, query string, id allocation.RuleID, args ...any) (*allocation.AllocationRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		configJSON string
		version    int
	)
	err := s.db.QueryRowContext(ctx, query, append([]any{id}, args...)...).Scan(&configJSON, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", allocation.ErrRuleNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return decodeRule(configJSON, version)
}

// ListRules returns the latest version of every rule, ordered by name.
func (s *Store) ListRules(ctx context.Context) ([]allocation.AllocationRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.config_json, r.version FROM allocation_rules r
		JOIN (SELECT id, MAX(version) AS version FROM allocation_rules GROUP BY id) latest
		  ON latest.id = r.id AND latest.version = r.version
		ORDER BY r.name, r.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var rules []allocation.AllocationRule
	for rows.Next() {
		var (
			configJSON string
			version    int
		)
		if err := rows.Scan(&configJSON, &version); err != nil {
			return nil, err
		}
		rule, err := decodeRule(configJSON, version)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

func decodeRule(configJSON string, version int) (*allocation.AllocationRule, error) {
	rule, err := factory.ParseRule([]byte(configJSON))
	if err != nil {
		return nil, fmt.Errorf("stored rule is unreadable: %w", err)
	}
	rule.Version = version
	return rule, nil
}

// =============================================================================
// SCORED FEED (allocation.Feed)
// =============================================================================

// AddScores upserts scored rows for a period. Re-importing an employee
// replaces their row but keeps its original position in the feed.
func (s *Store) AddScores(ctx context.Context, period allocation.Period, rows []allocation.EligibleEmployee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) FROM scored_employees WHERE period = ?", period,
	).Scan(&next); err != nil {
		return fmt.Errorf("failed to read feed position: %w", err)
	}

	query := `
		INSERT INTO scored_employees (period, employee_id, name, final_score, score_rank,
			percentile_rank, position_level, department_id, business_line, work_months, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(period, employee_id) DO UPDATE SET
			name = excluded.name,
			final_score = excluded.final_score,
			score_rank = excluded.score_rank,
			percentile_rank = excluded.percentile_rank,
			position_level = excluded.position_level,
			department_id = excluded.department_id,
			business_line = excluded.business_line,
			work_months = excluded.work_months
	`
	for _, r := range rows {
		next++
		_, err := tx.ExecContext(ctx, query,
			period, r.EmployeeID, r.Name, r.FinalScore, r.ScoreRank, r.PercentileRank,
			r.PositionLevel, r.DepartmentID, r.BusinessLine, r.WorkMonths, next,
		)
		if err != nil {
			return fmt.Errorf("failed to store score for %s: %w", r.EmployeeID, err)
		}
	}
	return tx.Commit()
}

// ScoredEmployees returns a period's feed in import order.
func (s *Store) ScoredEmployees(ctx context.Context, period allocation.Period) ([]allocation.EligibleEmployee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_id, name, period, final_score, score_rank, percentile_rank,
		       position_level, department_id, business_line, work_months
		FROM scored_employees WHERE period = ? ORDER BY seq`, period)
	if err != nil {
		return nil, fmt.Errorf("failed to query scores: %w", err)
	}
	defer rows.Close()

	var out []allocation.EligibleEmployee
	for rows.Next() {
		var e allocation.EligibleEmployee
		if err := rows.Scan(&e.EmployeeID, &e.Name, &e.Period, &e.FinalScore, &e.ScoreRank,
			&e.PercentileRank, &e.PositionLevel, &e.DepartmentID, &e.BusinessLine, &e.WorkMonths); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// RESULT STORE (allocation.ResultStore)
// =============================================================================

// runTimeLayout is fixed-width so created_at sorts lexically.
const runTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const runColumns = `id, pool_id, rule_id, rule_version, period, available_amount, budget_cap,
	allocated_amount, allocated_count, warning_count, created_by, created_at`

// SaveRun stores a run header and its results atomically.
func (s *Store) SaveRun(ctx context.Context, run allocation.RunRecord, results []allocation.AllocationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO allocation_runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.PoolID, run.RuleID, run.RuleVersion, run.Period,
		run.AvailableAmount.String(), run.BudgetCap.String(), run.AllocatedAmount.String(),
		run.AllocatedCount, run.WarningCount, nullString(run.CreatedBy),
		createdAt.UTC().Format(runTimeLayout),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateRun, run.ID)
		}
		return fmt.Errorf("failed to save run: %w", err)
	}

	query := `
		INSERT INTO allocation_results (run_id, seq, employee_id, department_id, position_level,
			percentile_rank, original_score, final_score, distribution_ratio, base_amount,
			performance_amount, adjustment_amount, total_amount, coefficients_json,
			min_amount_applied, max_amount_applied, original_calculated_amount)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for i, r := range results {
		coeffJSON, _ := json.Marshal(r.AppliedCoefficients)
		_, err := tx.ExecContext(ctx, query,
			run.ID, i, r.EmployeeID, r.DepartmentID, r.PositionLevel,
			r.PercentileRank, r.OriginalScore, r.FinalScore, r.DistributionRatio,
			r.BaseAmount.String(), r.PerformanceAmount.String(), r.AdjustmentAmount.String(),
			r.TotalAmount.String(), string(coeffJSON),
			r.MinAmountApplied, r.MaxAmountApplied, r.OriginalCalculatedAmount.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to save result for %s: %w", r.EmployeeID, err)
		}
	}

	return tx.Commit()
}

// LoadRun returns a run header and its results in input order.
func (s *Store) LoadRun(ctx context.Context, id allocation.RunID) (*allocation.RunRecord, []allocation.AllocationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, err := scanRun(s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM allocation_runs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("%w: %s", allocation.ErrRunNotFound, id)
	}
	if err != nil {
		return nil, nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_id, department_id, position_level, percentile_rank, original_score,
		       final_score, distribution_ratio, base_amount, performance_amount,
		       adjustment_amount, total_amount, coefficients_json, min_amount_applied,
		       max_amount_applied, original_calculated_amount
		FROM allocation_results WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var results []allocation.AllocationResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, nil, err
		}
		r.RunID = id
		results = append(results, r)
	}
	return &run, results, rows.Err()
}

// ListRuns returns a pool's runs, newest first.
func (s *Store) ListRuns(ctx context.Context, poolID allocation.PoolID) ([]allocation.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM allocation_runs WHERE pool_id = ? ORDER BY created_at DESC, rowid DESC", poolID)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []allocation.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanRun(row scanner) (allocation.RunRecord, error) {
	var (
		run       allocation.RunRecord
		available string
		budgetCap string
		allocated string
		createdBy sql.NullString
		createdAt string
	)
	err := row.Scan(&run.ID, &run.PoolID, &run.RuleID, &run.RuleVersion, &run.Period,
		&available, &budgetCap, &allocated, &run.AllocatedCount, &run.WarningCount,
		&createdBy, &createdAt)
	if err != nil {
		return run, err
	}
	run.AvailableAmount = parseDecimal(available)
	run.BudgetCap = parseDecimal(budgetCap)
	run.AllocatedAmount = parseDecimal(allocated)
	run.CreatedBy = createdBy.String
	run.CreatedAt, _ = time.Parse(runTimeLayout, createdAt)
	return run, nil
}

func scanResult(rows *sql.Rows) (allocation.AllocationResult, error) {
	var (
		r                             allocation.AllocationResult
		base, perf, adjustment, total string
		orig, coeffJSON               string
	)
	err := rows.Scan(&r.EmployeeID, &r.DepartmentID, &r.PositionLevel, &r.PercentileRank,
		&r.OriginalScore, &r.FinalScore, &r.DistributionRatio, &base, &perf, &adjustment,
		&total, &coeffJSON, &r.MinAmountApplied, &r.MaxAmountApplied, &orig)
	if err != nil {
		return r, fmt.Errorf("failed to scan result: %w", err)
	}
	r.BaseAmount = parseDecimal(base)
	r.PerformanceAmount = parseDecimal(perf)
	r.AdjustmentAmount = parseDecimal(adjustment)
	r.TotalAmount = parseDecimal(total)
	r.OriginalCalculatedAmount = parseDecimal(orig)
	if err := json.Unmarshal([]byte(coeffJSON), &r.AppliedCoefficients); err != nil {
		return r, fmt.Errorf("failed to decode coefficients: %w", err)
	}
	return r, nil
}

// =============================================================================
// MAINTENANCE
// =============================================================================

// Reset clears all data. Intended for demos and tests.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"allocation_results", "allocation_runs", "scored_employees", "allocation_rules", "bonus_pools"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
		se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
