/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the allocation model from the external API contract. Money is rendered as
  fixed two-decimal strings so clients never see float rounding.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Pool:
    PoolDTO (create requests use factory.PoolJSON)

  Rule:
    RuleDTO (wraps factory.RuleJSON)

  Scores:
    ImportScoresRequest, ImportScoresResponse

  Runs:
    RunDTO, ResultDTO, AllocateResponse, RunDetailResponse, RunSummaryResponse

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Validation is done by the factory package (validator struct tags), not here.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/rule.go, factory/scenario.go: Document types
*/
package api

import (
	"time"

	"github.com/warp/bonus-engine/allocation"
	"github.com/warp/bonus-engine/factory"
)

// =============================================================================
// POOLS
// =============================================================================

// PoolDTO represents a bonus pool in API responses.
type PoolDTO struct {
	ID              string  `json:"id"`
	Name            string  `json:"name,omitempty"`
	Period          string  `json:"period"`
	TotalAmount     string  `json:"total_amount"`
	ReserveRatio    float64 `json:"reserve_ratio"`
	AvailableAmount string  `json:"available_amount"`
	Status          string  `json:"status"`
	AllocatedAmount string  `json:"allocated_amount"`
	AllocatedCount  int     `json:"allocated_count"`
	LatestRunID     string  `json:"latest_run_id,omitempty"`
}

func toPoolDTO(p allocation.BonusPool) PoolDTO {
	return PoolDTO{
		ID:              string(p.ID),
		Name:            p.Name,
		Period:          string(p.Period),
		TotalAmount:     p.TotalAmount.StringFixed(2),
		ReserveRatio:    p.ReserveRatio,
		AvailableAmount: p.AvailableAmount().StringFixed(2),
		Status:          string(p.Status),
		AllocatedAmount: p.AllocatedAmount.StringFixed(2),
		AllocatedCount:  p.AllocatedCount,
		LatestRunID:     string(p.LatestRunID),
	}
}

// =============================================================================
// RULES
// =============================================================================

// RuleDTO represents one version of a rule in API responses.
type RuleDTO struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	Version int              `json:"version"`
	Config  factory.RuleJSON `json:"config"`
}

func toRuleDTO(r allocation.AllocationRule) RuleDTO {
	return RuleDTO{
		ID:      string(r.ID),
		Name:    r.Name,
		Version: r.Version,
		Config:  factory.ToJSON(r),
	}
}

// =============================================================================
// SCORES
// =============================================================================

// ImportScoresRequest carries scored feed rows for one period.
type ImportScoresRequest struct {
	Employees []factory.EmployeeJSON `json:"employees"`
}

// ImportScoresResponse reports an import.
type ImportScoresResponse struct {
	Period   string `json:"period"`
	Imported int    `json:"imported"`
	Total    int    `json:"total"`
}

// =============================================================================
// RUNS
// =============================================================================

// RunDTO is the header of an allocation run.
type RunDTO struct {
	ID              string `json:"id"`
	PoolID          string `json:"pool_id"`
	RuleID          string `json:"rule_id"`
	RuleVersion     int    `json:"rule_version"`
	Period          string `json:"period"`
	AvailableAmount string `json:"available_amount"`
	BudgetCap       string `json:"budget_cap"`
	AllocatedAmount string `json:"allocated_amount"`
	AllocatedCount  int    `json:"allocated_count"`
	WarningCount    int    `json:"warning_count"`
	CreatedBy       string `json:"created_by,omitempty"`
	CreatedAt       string `json:"created_at,omitempty"`
}

func toRunDTO(r allocation.RunRecord) RunDTO {
	dto := RunDTO{
		ID:              string(r.ID),
		PoolID:          string(r.PoolID),
		RuleID:          string(r.RuleID),
		RuleVersion:     r.RuleVersion,
		Period:          string(r.Period),
		AvailableAmount: r.AvailableAmount.StringFixed(2),
		BudgetCap:       r.BudgetCap.StringFixed(2),
		AllocatedAmount: r.AllocatedAmount.StringFixed(2),
		AllocatedCount:  r.AllocatedCount,
		WarningCount:    r.WarningCount,
		CreatedBy:       r.CreatedBy,
	}
	if !r.CreatedAt.IsZero() {
		dto.CreatedAt = r.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

// ResultDTO is one employee's allocation.
type ResultDTO struct {
	EmployeeID               string                  `json:"employee_id"`
	DepartmentID             string                  `json:"department_id,omitempty"`
	PositionLevel            string                  `json:"position_level,omitempty"`
	PercentileRank           float64                 `json:"percentile_rank"`
	OriginalScore            float64                 `json:"original_score"`
	FinalScore               float64                 `json:"final_score"`
	DistributionRatio        float64                 `json:"distribution_ratio"`
	BaseAmount               string                  `json:"base_amount"`
	PerformanceAmount        string                  `json:"performance_amount"`
	AdjustmentAmount         string                  `json:"adjustment_amount"`
	TotalAmount              string                  `json:"total_amount"`
	OriginalCalculatedAmount string                  `json:"original_calculated_amount"`
	MinAmountApplied         bool                    `json:"min_amount_applied"`
	MaxAmountApplied         bool                    `json:"max_amount_applied"`
	Coefficients             allocation.Coefficients `json:"coefficients"`
}

func toResultDTOs(results []allocation.AllocationResult) []ResultDTO {
	dtos := make([]ResultDTO, len(results))
	for i, r := range results {
		dtos[i] = ResultDTO{
			EmployeeID:               string(r.EmployeeID),
			DepartmentID:             r.DepartmentID,
			PositionLevel:            r.PositionLevel,
			PercentileRank:           r.PercentileRank,
			OriginalScore:            r.OriginalScore,
			FinalScore:               r.FinalScore,
			DistributionRatio:        r.DistributionRatio,
			BaseAmount:               r.BaseAmount.StringFixed(2),
			PerformanceAmount:        r.PerformanceAmount.StringFixed(2),
			AdjustmentAmount:         r.AdjustmentAmount.StringFixed(2),
			TotalAmount:              r.TotalAmount.StringFixed(2),
			OriginalCalculatedAmount: r.OriginalCalculatedAmount.StringFixed(2),
			MinAmountApplied:         r.MinAmountApplied,
			MaxAmountApplied:         r.MaxAmountApplied,
			Coefficients:             r.AppliedCoefficients,
		}
	}
	return dtos
}

// WarningDTO is a coefficient that was replaced by its default.
type WarningDTO struct {
	EmployeeID string `json:"employee_id"`
	Message    string `json:"message"`
}

func toWarningDTOs(warnings []*allocation.InvalidCoefficientError) []WarningDTO {
	dtos := make([]WarningDTO, len(warnings))
	for i, w := range warnings {
		dtos[i] = WarningDTO{EmployeeID: string(w.EmployeeID), Message: w.Error()}
	}
	return dtos
}

// AllocateResponse is returned by POST /api/pools/{id}/allocate.
type AllocateResponse struct {
	DryRun   bool                         `json:"dry_run"`
	Run      RunDTO                       `json:"run"`
	Results  []ResultDTO                  `json:"results"`
	Summary  allocation.AllocationSummary `json:"summary"`
	Warnings []WarningDTO                 `json:"warnings"`
}

// NewAllocateResponse renders a finished run, stored or not.
func NewAllocateResponse(run allocation.RunRecord, out *allocation.RunOutput, dryRun bool) AllocateResponse {
	return AllocateResponse{
		DryRun:   dryRun,
		Run:      toRunDTO(run),
		Results:  toResultDTOs(out.Results),
		Summary:  out.Summary,
		Warnings: toWarningDTOs(out.Warnings),
	}
}

// RunDetailResponse is a stored run with its results.
type RunDetailResponse struct {
	Run     RunDTO      `json:"run"`
	Results []ResultDTO `json:"results"`
}

// RunSummaryResponse is a stored run with its recomputed summary.
type RunSummaryResponse struct {
	Run     RunDTO                       `json:"run"`
	Summary allocation.AllocationSummary `json:"summary"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Method      string `json:"method"`
}

// LoadScenarioRequest selects a scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
