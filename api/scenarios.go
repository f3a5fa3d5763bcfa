/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with a pool, a
	rule and a scored feed, ready for POST /api/pools/{id}/allocate. Each
	scenario pairs the same demo population with a different rule preset.

AVAILABLE SCENARIOS:

	standard-annual:      60/40 split, linear curve, floor and ceiling
	performance-weighted: Exponential curve, excellence bonus, new-hire cut
	tiered-key-positions: Percentile tiers, level weights, redistribution
	flat-bonus:           Fixed amount per head

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create the rule via a factory preset
 3. Create the pool for the demo period
 4. Import the demo scored feed

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "standard-annual"}

	POST /api/pools/demo-2025/allocate?rule_id=<scenario rule id>

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Allocate handler
  - factory/presets.go: Rule presets
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/bonus-engine/allocation"
	"github.com/warp/bonus-engine/factory"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

const (
	demoPoolID = allocation.PoolID("demo-2025")
	demoPeriod = allocation.Period("2025")
)

type scenario struct {
	ScenarioDTO
	ruleID   string
	ruleJSON func(id string) string
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "standard-annual",
			Name:        "Standard Annual Bonus",
			Description: "60/40 base/performance split on the linear curve with floor and ceiling",
			Method:      string(allocation.MethodScoreBased),
		},
		ruleID: "annual",
		ruleJSON: func(id string) string {
			return factory.StandardRuleJSON(id, "Annual bonus")
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "performance-weighted",
			Name:        "Performance Weighted",
			Description: "Exponential curve concentrating the pool on top performers",
			Method:      string(allocation.MethodScoreBased),
		},
		ruleID: "top-heavy",
		ruleJSON: func(id string) string {
			return factory.PerformanceWeightedRuleJSON(id, "Top heavy", 2.0)
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "tiered-key-positions",
			Name:        "Tiered With Key Positions",
			Description: "Percentile tiers, senior level weights and surplus redistribution",
			Method:      string(allocation.MethodTierBased),
		},
		ruleID: "tiered",
		ruleJSON: func(id string) string {
			return factory.TieredRuleJSON(id, "Tiered", []string{"P5", "P6"})
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "flat-bonus",
			Name:        "Flat Bonus",
			Description: "Fixed amount per head, scaled down if the pool falls short",
			Method:      string(allocation.MethodFixedAmount),
		},
		ruleID: "flat",
		ruleJSON: func(id string) string {
			return factory.FlatRuleJSON(id, "Flat", 5000)
		},
	},
}

// demoEmployees is the scored feed shared by every scenario.
var demoEmployees = []allocation.EligibleEmployee{
	{EmployeeID: "emp-001", Name: "Alice Martin", FinalScore: 0.95, PositionLevel: "P6", DepartmentID: "engineering", BusinessLine: "platform", WorkMonths: 60},
	{EmployeeID: "emp-002", Name: "Bruno Silva", FinalScore: 0.88, PositionLevel: "P5", DepartmentID: "engineering", BusinessLine: "platform", WorkMonths: 42},
	{EmployeeID: "emp-003", Name: "Chen Wei", FinalScore: 0.82, PositionLevel: "P4", DepartmentID: "engineering", BusinessLine: "platform", WorkMonths: 30},
	{EmployeeID: "emp-004", Name: "Dana Cohen", FinalScore: 0.76, PositionLevel: "P3", DepartmentID: "engineering", BusinessLine: "platform", WorkMonths: 8},
	{EmployeeID: "emp-005", Name: "Elif Kaya", FinalScore: 0.91, PositionLevel: "P5", DepartmentID: "sales", BusinessLine: "commercial", WorkMonths: 50},
	{EmployeeID: "emp-006", Name: "Farid Haddad", FinalScore: 0.70, PositionLevel: "P4", DepartmentID: "sales", BusinessLine: "commercial", WorkMonths: 26},
	{EmployeeID: "emp-007", Name: "Grace Osei", FinalScore: 0.64, PositionLevel: "P3", DepartmentID: "sales", BusinessLine: "commercial", WorkMonths: 18},
	{EmployeeID: "emp-008", Name: "Hugo Lefevre", FinalScore: 0.58, PositionLevel: "P2", DepartmentID: "sales", BusinessLine: "commercial", WorkMonths: 5},
	{EmployeeID: "emp-009", Name: "Ines Duarte", FinalScore: 0.80, PositionLevel: "P4", DepartmentID: "operations", BusinessLine: "commercial", WorkMonths: 36},
	{EmployeeID: "emp-010", Name: "Jonas Berg", FinalScore: 0.67, PositionLevel: "P3", DepartmentID: "operations", BusinessLine: "commercial", WorkMonths: 40},
	{EmployeeID: "emp-011", Name: "Kenji Sato", FinalScore: 0.55, PositionLevel: "P2", DepartmentID: "operations", BusinessLine: "commercial", WorkMonths: 14},
	{EmployeeID: "emp-012", Name: "Lea Fischer", FinalScore: 0.49, PositionLevel: "P1", DepartmentID: "operations", BusinessLine: "commercial", WorkMonths: 3},
}

func findScenario(id string) (scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = s.ScenarioDTO
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	s, ok := findScenario(current)
	if !ok {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, s.ScenarioDTO)
}

// LoadScenario resets the database and loads a demo scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decodeBody(w, r, &req) {
		return
	}

	s, ok := findScenario(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	if err := h.loadScenario(r.Context(), s); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = s.ID
	h.mu.Unlock()

	h.Logger.Info("Scenario loaded", zap.String("scenario", s.ID))
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"scenario": s.ID,
		"pool_id":  string(demoPoolID),
		"rule_id":  s.ruleID,
	})
}

func (h *Handler) loadScenario(ctx context.Context, s scenario) error {
	if err := h.Store.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset: %w", err)
	}

	rule, err := factory.ParseRule([]byte(s.ruleJSON(s.ruleID)))
	if err != nil {
		return fmt.Errorf("failed to parse rule: %w", err)
	}
	if _, err := h.Store.SaveRule(ctx, *rule); err != nil {
		return fmt.Errorf("failed to save rule: %w", err)
	}

	err = h.Store.SavePool(ctx, allocation.BonusPool{
		ID:              demoPoolID,
		Name:            "Demo annual pool",
		Period:          demoPeriod,
		TotalAmount:     decimal.NewFromInt(120000),
		ReserveRatio:    0.1,
		Status:          allocation.PoolActive,
		AllocatedAmount: decimal.Zero,
	})
	if err != nil {
		return fmt.Errorf("failed to save pool: %w", err)
	}

	rows := make([]allocation.EligibleEmployee, len(demoEmployees))
	for i, e := range demoEmployees {
		e.Period = demoPeriod
		rows[i] = e
	}
	if err := h.Store.AddScores(ctx, demoPeriod, rows); err != nil {
		return fmt.Errorf("failed to import scores: %w", err)
	}
	return nil
}
