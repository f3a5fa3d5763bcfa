package factory

import (
	"encoding/json"
)

// =============================================================================
// PRESET RULES
// =============================================================================
//
// Ready-made rule documents for common compensation setups. They return JSON
// so they go through the same parsing and validation as user documents:
//
//   rule, err := factory.ParseRule([]byte(factory.StandardRuleJSON("annual", "Annual")))

// StandardRuleJSON returns a 60/40 base/performance rule on the linear curve
// with a floor at 30% and a ceiling at 3x the per-employee average.
func StandardRuleJSON(id, name string) string {
	rj := map[string]interface{}{
		"id":                           id,
		"name":                         name,
		"allocation_method":            "score_based",
		"base_allocation_ratio":        0.6,
		"performance_allocation_ratio": 0.4,
		"score_distribution_method":    "linear",
		"min_bonus_ratio":              0.3,
		"max_bonus_ratio":              3.0,
		"total_allocation_limit":       1.0,
		"bound_surplus_policy":         "retain",
	}
	b, _ := json.MarshalIndent(rj, "", "  ")
	return string(b)
}

// PerformanceWeightedRuleJSON returns a rule that concentrates the pool on
// top performers with the exponential curve and rewards excellence.
func PerformanceWeightedRuleJSON(id, name string, exponent float64) string {
	rj := map[string]interface{}{
		"id":                           id,
		"name":                         name,
		"allocation_method":            "score_based",
		"base_allocation_ratio":        0.3,
		"performance_allocation_ratio": 0.7,
		"score_distribution_method":    "exponential",
		"exponential_factor":           exponent,
		"special_rules": map[string]interface{}{
			"excellence_bonus":   true,
			"new_hire_reduction": true,
		},
		"max_bonus_ratio": 4.0,
	}
	b, _ := json.MarshalIndent(rj, "", "  ")
	return string(b)
}

// TieredRuleJSON returns a percentile-tier rule with level weights for senior
// grades.
func TieredRuleJSON(id, name string, keyLevels []string) string {
	rj := map[string]interface{}{
		"id":                           id,
		"name":                         name,
		"allocation_method":            "tier_based",
		"base_allocation_ratio":        0.5,
		"performance_allocation_ratio": 0.5,
		"position_level_weights": map[string]float64{
			"P1": 0.8, "P2": 0.9, "P3": 1.0, "P4": 1.15, "P5": 1.3, "P6": 1.5,
		},
		"special_rules": map[string]interface{}{
			"key_position_bonus":  true,
			"key_position_levels": keyLevels,
		},
		"min_bonus_ratio":      0.2,
		"bound_surplus_policy": "redistribute",
	}
	b, _ := json.MarshalIndent(rj, "", "  ")
	return string(b)
}

// FlatRuleJSON returns a fixed amount per head, scaled down if the pool
// cannot cover everyone.
func FlatRuleJSON(id, name string, amount float64) string {
	rj := map[string]interface{}{
		"id":                           id,
		"name":                         name,
		"allocation_method":            "fixed_amount",
		"base_allocation_ratio":        1.0,
		"performance_allocation_ratio": 0.0,
		"fixed_amount":                 amount,
	}
	b, _ := json.MarshalIndent(rj, "", "  ")
	return string(b)
}
