/*
scenario.go - Pool, employee and scenario documents

PURPOSE:
  Document forms of the other engine inputs. The API accepts PoolJSON and
  EmployeeJSON bodies; bonusctl reads a whole ScenarioJSON (pool, rule and
  scored employees) from one YAML or JSON file and runs it offline.

SCENARIO FILE:
  pool:
    id: pool-2025
    period: "2025"
    total_amount: 100000
    reserve_ratio: 0.1
  rule:
    id: annual
    base_allocation_ratio: 0.6
    performance_allocation_ratio: 0.4
  employees:
    - employee_id: e-1
      final_score: 0.9
      position_level: P3
      department_id: eng
*/
package factory

import (
	"fmt"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/warp/bonus-engine/allocation"
)

// PoolJSON is the document representation of a bonus pool.
type PoolJSON struct {
	ID           string  `json:"id" yaml:"id" validate:"required"`
	Name         string  `json:"name,omitempty" yaml:"name,omitempty"`
	Period       string  `json:"period" yaml:"period" validate:"required"`
	TotalAmount  float64 `json:"total_amount" yaml:"total_amount" validate:"gt=0"`
	ReserveRatio float64 `json:"reserve_ratio,omitempty" yaml:"reserve_ratio,omitempty" validate:"gte=0,lt=1"`
	Status       string  `json:"status,omitempty" yaml:"status,omitempty" validate:"omitempty,oneof=draft active allocated closed"`
}

// EmployeeJSON is one scored employee row.
type EmployeeJSON struct {
	EmployeeID     string  `json:"employee_id" yaml:"employee_id" validate:"required"`
	Name           string  `json:"name,omitempty" yaml:"name,omitempty"`
	Period         string  `json:"period,omitempty" yaml:"period,omitempty"`
	FinalScore     float64 `json:"final_score" yaml:"final_score"`
	ScoreRank      int     `json:"score_rank,omitempty" yaml:"score_rank,omitempty"`
	PercentileRank float64 `json:"percentile_rank,omitempty" yaml:"percentile_rank,omitempty" validate:"gte=0,lte=100"`
	PositionLevel  string  `json:"position_level,omitempty" yaml:"position_level,omitempty"`
	DepartmentID   string  `json:"department_id,omitempty" yaml:"department_id,omitempty"`
	BusinessLine   string  `json:"business_line,omitempty" yaml:"business_line,omitempty"`
	WorkMonths     int     `json:"work_months,omitempty" yaml:"work_months,omitempty" validate:"gte=0"`
}

// ScenarioJSON bundles every input of one offline run.
type ScenarioJSON struct {
	Pool      PoolJSON       `json:"pool" yaml:"pool"`
	Rule      RuleJSON       `json:"rule" yaml:"rule"`
	Employees []EmployeeJSON `json:"employees" yaml:"employees"`
}

// Scenario is a parsed, validated ScenarioJSON.
type Scenario struct {
	Pool      allocation.BonusPool
	Rule      allocation.AllocationRule
	Employees []allocation.EligibleEmployee
}

// PoolFromJSON converts a pool document. Status defaults to active.
func PoolFromJSON(pj PoolJSON) (*allocation.BonusPool, error) {
	if err := validate.Struct(pj); err != nil {
		return nil, fmt.Errorf("%w: %v", allocation.ErrInvalidPool, err)
	}
	status := allocation.PoolStatus(pj.Status)
	if status == "" {
		status = allocation.PoolActive
	}
	return &allocation.BonusPool{
		ID:              allocation.PoolID(pj.ID),
		Name:            pj.Name,
		Period:          allocation.Period(pj.Period),
		TotalAmount:     decimal.NewFromFloat(pj.TotalAmount).Round(2),
		ReserveRatio:    pj.ReserveRatio,
		Status:          status,
		AllocatedAmount: decimal.Zero,
	}, nil
}

// EmployeesFromJSON converts scored rows. Rows without a period inherit
// period. Score values are passed through as-is; the eligibility filter
// decides what to do with non-positive ones.
func EmployeesFromJSON(period allocation.Period, rows []EmployeeJSON) ([]allocation.EligibleEmployee, error) {
	out := make([]allocation.EligibleEmployee, 0, len(rows))
	for i, ej := range rows {
		if err := validate.Struct(ej); err != nil {
			return nil, fmt.Errorf("employee row %d: %w", i, err)
		}
		p := allocation.Period(ej.Period)
		if p == "" {
			p = period
		}
		out = append(out, allocation.EligibleEmployee{
			EmployeeID:     allocation.EmployeeID(ej.EmployeeID),
			Name:           ej.Name,
			Period:         p,
			FinalScore:     ej.FinalScore,
			ScoreRank:      ej.ScoreRank,
			PercentileRank: ej.PercentileRank,
			PositionLevel:  ej.PositionLevel,
			DepartmentID:   ej.DepartmentID,
			BusinessLine:   ej.BusinessLine,
			WorkMonths:     ej.WorkMonths,
		})
	}
	return out, nil
}

// ParseScenario parses a YAML (or JSON) scenario file.
func ParseScenario(data []byte) (*Scenario, error) {
	var sj ScenarioJSON
	if err := yaml.Unmarshal(data, &sj); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}

	pool, err := PoolFromJSON(sj.Pool)
	if err != nil {
		return nil, err
	}
	rule, err := FromJSON(sj.Rule)
	if err != nil {
		return nil, err
	}
	employees, err := EmployeesFromJSON(pool.Period, sj.Employees)
	if err != nil {
		return nil, err
	}
	return &Scenario{Pool: *pool, Rule: *rule, Employees: employees}, nil
}
