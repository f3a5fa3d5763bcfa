/*
Package factory provides JSON/YAML to Go allocation rule conversion.

PURPOSE:
  Converts rule documents into allocation.AllocationRule values and back.
  Compensation teams edit rules as documents; the factory applies defaults,
  validates the result and produces the struct the engine consumes.

DOCUMENT SCHEMA:
  {
    "id": "annual-standard",
    "name": "Annual standard",
    "allocation_method": "score_based",
    "base_allocation_ratio": 0.6,
    "performance_allocation_ratio": 0.4,
    "score_distribution_method": "linear",
    "position_level_weights": {"P5": 1.3, "P6": 1.5},
    "department_weights": {"eng": 1.05},
    "special_rules": {
      "new_hire_reduction": true,
      "excellence_bonus": true,
      "key_position_bonus": true,
      "key_position_levels": ["P6"]
    },
    "min_bonus_ratio": 0.3,
    "max_bonus_ratio": 3.0,
    "total_allocation_limit": 1.0,
    "bound_surplus_policy": "retain",
    "scope": {"departments": ["eng", "ops"]}
  }

  Amounts are plain numbers in the document and decimals in Go.
  Omitted fields take the engine defaults (see AllocationRule.WithDefaults).

USAGE:
  rule, err := factory.ParseRule(jsonBytes)
  rule, err := factory.ParseRuleYAML(yamlBytes)
  doc := factory.ToJSON(rule)

SEE ALSO:
  - allocation/types.go: AllocationRule definition
  - factory/presets.go: Ready-made rule documents
  - factory/scenario.go: Offline scenario documents for bonusctl
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/warp/bonus-engine/allocation"
)

var validate = validator.New()

// =============================================================================
// DOCUMENT TYPES
// =============================================================================

// RuleJSON is the document representation of an allocation rule.
type RuleJSON struct {
	ID      string `json:"id" yaml:"id" validate:"required"`
	Name    string `json:"name" yaml:"name"`
	Version int    `json:"version,omitempty" yaml:"version,omitempty"`

	AllocationMethod           string  `json:"allocation_method,omitempty" yaml:"allocation_method,omitempty"`
	BaseAllocationRatio        float64 `json:"base_allocation_ratio" yaml:"base_allocation_ratio"`
	PerformanceAllocationRatio float64 `json:"performance_allocation_ratio" yaml:"performance_allocation_ratio"`
	ScoreDistributionMethod    string  `json:"score_distribution_method,omitempty" yaml:"score_distribution_method,omitempty"`
	ExponentialFactor          float64 `json:"exponential_factor,omitempty" yaml:"exponential_factor,omitempty"`

	PositionLevelWeights map[string]float64 `json:"position_level_weights,omitempty" yaml:"position_level_weights,omitempty"`
	DepartmentWeights    map[string]float64 `json:"department_weights,omitempty" yaml:"department_weights,omitempty"`
	SpecialRules         *SpecialRulesJSON  `json:"special_rules,omitempty" yaml:"special_rules,omitempty"`
	BaseCoefficient      float64            `json:"base_coefficient,omitempty" yaml:"base_coefficient,omitempty"`
	ScoreScale           float64            `json:"score_scale,omitempty" yaml:"score_scale,omitempty" validate:"gte=0"`

	MinBonusAmount float64 `json:"min_bonus_amount,omitempty" yaml:"min_bonus_amount,omitempty" validate:"gte=0"`
	MaxBonusAmount float64 `json:"max_bonus_amount,omitempty" yaml:"max_bonus_amount,omitempty" validate:"gte=0"`
	MinBonusRatio  float64 `json:"min_bonus_ratio,omitempty" yaml:"min_bonus_ratio,omitempty"`
	MaxBonusRatio  float64 `json:"max_bonus_ratio,omitempty" yaml:"max_bonus_ratio,omitempty"`

	TotalAllocationLimit float64 `json:"total_allocation_limit,omitempty" yaml:"total_allocation_limit,omitempty"`
	FixedAmount          float64 `json:"fixed_amount,omitempty" yaml:"fixed_amount,omitempty" validate:"gte=0"`
	BoundSurplusPolicy   string  `json:"bound_surplus_policy,omitempty" yaml:"bound_surplus_policy,omitempty"`

	Scope *ScopeJSON `json:"scope,omitempty" yaml:"scope,omitempty"`
}

// SpecialRulesJSON represents the special coefficient toggles.
type SpecialRulesJSON struct {
	NewHireReduction  bool     `json:"new_hire_reduction,omitempty" yaml:"new_hire_reduction,omitempty"`
	NewHireMonths     int      `json:"new_hire_months,omitempty" yaml:"new_hire_months,omitempty"`
	ExcellenceBonus   bool     `json:"excellence_bonus,omitempty" yaml:"excellence_bonus,omitempty"`
	KeyPositionBonus  bool     `json:"key_position_bonus,omitempty" yaml:"key_position_bonus,omitempty"`
	KeyPositionLevels []string `json:"key_position_levels,omitempty" yaml:"key_position_levels,omitempty"`
}

// ScopeJSON restricts a rule to parts of the organisation.
type ScopeJSON struct {
	BusinessLines  []string `json:"business_lines,omitempty" yaml:"business_lines,omitempty"`
	Departments    []string `json:"departments,omitempty" yaml:"departments,omitempty"`
	PositionLevels []string `json:"position_levels,omitempty" yaml:"position_levels,omitempty"`
}

// =============================================================================
// PARSING
// =============================================================================

// ParseRule parses a JSON rule document.
func ParseRule(data []byte) (*allocation.AllocationRule, error) {
	var rj RuleJSON
	if err := json.Unmarshal(data, &rj); err != nil {
		return nil, fmt.Errorf("failed to parse rule JSON: %w", err)
	}
	return FromJSON(rj)
}

// ParseRuleYAML parses a YAML rule document.
func ParseRuleYAML(data []byte) (*allocation.AllocationRule, error) {
	var rj RuleJSON
	if err := yaml.Unmarshal(data, &rj); err != nil {
		return nil, fmt.Errorf("failed to parse rule YAML: %w", err)
	}
	return FromJSON(rj)
}

// FromJSON converts a rule document into a validated AllocationRule with
// defaults applied.
func FromJSON(rj RuleJSON) (*allocation.AllocationRule, error) {
	if err := validate.Struct(rj); err != nil {
		return nil, &allocation.RuleValidationError{RuleID: allocation.RuleID(rj.ID), Err: err}
	}

	rule := allocation.AllocationRule{
		ID:                         allocation.RuleID(rj.ID),
		Name:                       rj.Name,
		Version:                    rj.Version,
		AllocationMethod:           allocation.AllocationMethod(rj.AllocationMethod),
		BaseAllocationRatio:        rj.BaseAllocationRatio,
		PerformanceAllocationRatio: rj.PerformanceAllocationRatio,
		ScoreDistributionMethod:    allocation.DistributionMethod(rj.ScoreDistributionMethod),
		ExponentialFactor:          rj.ExponentialFactor,
		PositionLevelWeights:       allocation.WeightTable(rj.PositionLevelWeights),
		DepartmentWeights:          allocation.WeightTable(rj.DepartmentWeights),
		BaseCoefficient:            rj.BaseCoefficient,
		ScoreScale:                 rj.ScoreScale,
		MinBonusAmount:             parseAmount(rj.MinBonusAmount),
		MaxBonusAmount:             parseAmount(rj.MaxBonusAmount),
		MinBonusRatio:              rj.MinBonusRatio,
		MaxBonusRatio:              rj.MaxBonusRatio,
		TotalAllocationLimit:       rj.TotalAllocationLimit,
		FixedAmount:                parseAmount(rj.FixedAmount),
		BoundSurplusPolicy:         allocation.SurplusPolicy(rj.BoundSurplusPolicy),
	}
	if rj.SpecialRules != nil {
		rule.SpecialRules = parseSpecialRules(*rj.SpecialRules)
	}
	if rj.Scope != nil {
		rule.Scope = allocation.Scope{
			BusinessLines:  rj.Scope.BusinessLines,
			Departments:    rj.Scope.Departments,
			PositionLevels: rj.Scope.PositionLevels,
		}
	}

	rule = rule.WithDefaults()
	if err := allocation.ValidateRule(rule); err != nil {
		return nil, err
	}
	if rule.AllocationMethod == allocation.MethodFixedAmount && !rule.FixedAmount.IsPositive() {
		return nil, &allocation.RuleValidationError{
			RuleID: rule.ID,
			Err:    fmt.Errorf("fixed_amount method requires a positive fixed_amount"),
		}
	}
	return &rule, nil
}

// ToJSON converts an AllocationRule to its document form.
func ToJSON(rule allocation.AllocationRule) RuleJSON {
	rj := RuleJSON{
		ID:                         string(rule.ID),
		Name:                       rule.Name,
		Version:                    rule.Version,
		AllocationMethod:           string(rule.AllocationMethod),
		BaseAllocationRatio:        rule.BaseAllocationRatio,
		PerformanceAllocationRatio: rule.PerformanceAllocationRatio,
		ScoreDistributionMethod:    string(rule.ScoreDistributionMethod),
		ExponentialFactor:          rule.ExponentialFactor,
		PositionLevelWeights:       rule.PositionLevelWeights,
		DepartmentWeights:          rule.DepartmentWeights,
		BaseCoefficient:            rule.BaseCoefficient,
		ScoreScale:                 rule.ScoreScale,
		MinBonusAmount:             rule.MinBonusAmount.InexactFloat64(),
		MaxBonusAmount:             rule.MaxBonusAmount.InexactFloat64(),
		MinBonusRatio:              rule.MinBonusRatio,
		MaxBonusRatio:              rule.MaxBonusRatio,
		TotalAllocationLimit:       rule.TotalAllocationLimit,
		FixedAmount:                rule.FixedAmount.InexactFloat64(),
		BoundSurplusPolicy:         string(rule.BoundSurplusPolicy),
	}

	sr := rule.SpecialRules
	if sr.NewHireReduction || sr.ExcellenceBonus || sr.KeyPositionBonus || len(sr.KeyPositionLevels) > 0 {
		rj.SpecialRules = &SpecialRulesJSON{
			NewHireReduction:  sr.NewHireReduction,
			NewHireMonths:     sr.NewHireMonths,
			ExcellenceBonus:   sr.ExcellenceBonus,
			KeyPositionBonus:  sr.KeyPositionBonus,
			KeyPositionLevels: sr.KeyPositionLevels,
		}
	}

	sc := rule.Scope
	if len(sc.BusinessLines)+len(sc.Departments)+len(sc.PositionLevels) > 0 {
		rj.Scope = &ScopeJSON{
			BusinessLines:  sc.BusinessLines,
			Departments:    sc.Departments,
			PositionLevels: sc.PositionLevels,
		}
	}
	return rj
}

// MarshalRule renders a rule as an indented JSON document.
func MarshalRule(rule allocation.AllocationRule) ([]byte, error) {
	return json.MarshalIndent(ToJSON(rule), "", "  ")
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseAmount(v float64) decimal.Decimal {
	if v <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v).Round(2)
}

func parseSpecialRules(sj SpecialRulesJSON) allocation.SpecialRules {
	return allocation.SpecialRules{
		NewHireReduction:  sj.NewHireReduction,
		NewHireMonths:     sj.NewHireMonths,
		ExcellenceBonus:   sj.ExcellenceBonus,
		KeyPositionBonus:  sj.KeyPositionBonus,
		KeyPositionLevels: sj.KeyPositionLevels,
	}
}
