// Package store provides in-memory implementations of the allocation
// collaborator interfaces.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/bonus-engine/allocation"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dry runs)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	pools   map[allocation.PoolID]allocation.BonusPool
	rules   map[allocation.RuleID][]allocation.AllocationRule // versions, ascending
	scores  map[allocation.Period][]allocation.EligibleEmployee
	runs    map[allocation.RunID]allocation.RunRecord
	results map[allocation.RunID][]allocation.AllocationResult
	order   []allocation.RunID
}

var (
	_ allocation.Feed        = (*Memory)(nil)
	_ allocation.PoolSource  = (*Memory)(nil)
	_ allocation.RuleSource  = (*Memory)(nil)
	_ allocation.ResultStore = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		pools:   make(map[allocation.PoolID]allocation.BonusPool),
		rules:   make(map[allocation.RuleID][]allocation.AllocationRule),
		scores:  make(map[allocation.Period][]allocation.EligibleEmployee),
		runs:    make(map[allocation.RunID]allocation.RunRecord),
		results: make(map[allocation.RunID][]allocation.AllocationResult),
	}
}

// SavePool inserts or replaces a pool.
func (m *Memory) SavePool(_ context.Context, pool allocation.BonusPool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pools[pool.ID] = pool
	return nil
}

func (m *Memory) GetPool(_ context.Context, id allocation.PoolID) (*allocation.BonusPool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pools[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", allocation.ErrPoolNotFound, id)
	}
	return &p, nil
}

func (m *Memory) UpdatePoolAllocation(_ context.Context, id allocation.PoolID, u allocation.PoolAllocationUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pools[id]
	if !ok {
		return fmt.Errorf("%w: %s", allocation.ErrPoolNotFound, id)
	}
	p.AllocatedAmount = u.AllocatedAmount
	p.AllocatedCount = u.AllocatedCount
	p.Status = u.Status
	p.LatestRunID = u.RunID
	m.pools[id] = p
	return nil
}

// SaveRule appends a new version of a rule and returns the stored version.
func (m *Memory) SaveRule(_ context.Context, rule allocation.AllocationRule) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	versions := m.rules[rule.ID]
	rule.Version = len(versions) + 1
	m.rules[rule.ID] = append(versions, rule)
	return rule.Version, nil
}

func (m *Memory) GetRule(_ context.Context, id allocation.RuleID) (*allocation.AllocationRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	versions := m.rules[id]
	if len(versions) == 0 {
		return nil, fmt.Errorf("%w: %s", allocation.ErrRuleNotFound, id)
	}
	r := versions[len(versions)-1]
	return &r, nil
}

// AddScores appends scored rows to a period's feed.
func (m *Memory) AddScores(_ context.Context, period allocation.Period, rows []allocation.EligibleEmployee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		r.Period = period
		m.scores[period] = append(m.scores[period], r)
	}
	return nil
}

func (m *Memory) ScoredEmployees(_ context.Context, period allocation.Period) ([]allocation.EligibleEmployee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]allocation.EligibleEmployee, len(m.scores[period]))
	copy(out, m.scores[period])
	return out, nil
}

// SaveRun stores a run once. A second save of the same run id fails.
func (m *Memory) SaveRun(_ context.Context, run allocation.RunRecord, results []allocation.AllocationResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.runs[run.ID]; exists {
		return fmt.Errorf("run %s already stored", run.ID)
	}
	m.runs[run.ID] = run
	m.results[run.ID] = append([]allocation.AllocationResult(nil), results...)
	m.order = append(m.order, run.ID)
	return nil
}

func (m *Memory) LoadRun(_ context.Context, id allocation.RunID) (*allocation.RunRecord, []allocation.AllocationResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", allocation.ErrRunNotFound, id)
	}
	results := append([]allocation.AllocationResult(nil), m.results[id]...)
	return &run, results, nil
}

// ListRuns returns a pool's runs, newest first.
func (m *Memory) ListRuns(_ context.Context, poolID allocation.PoolID) ([]allocation.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []allocation.RunRecord
	for i := len(m.order) - 1; i >= 0; i-- {
		run := m.runs[m.order[i]]
		if run.PoolID == poolID {
			out = append(out, run)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
