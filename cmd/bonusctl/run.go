package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"go.uber.org/zap"

	"github.com/warp/bonus-engine/allocation"
	"github.com/warp/bonus-engine/api"
	"github.com/warp/bonus-engine/factory"
	"github.com/warp/bonus-engine/logging"
)

type allocateOptions struct {
	RunID   string
	Workers int
	JSON    bool
	Logger  *zap.Logger
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if !verbose {
		return zap.NewNop(), nil
	}
	return logging.New("dev")
}

// runAllocate parses a scenario, runs it and writes the result to w.
func runAllocate(ctx context.Context, w io.Writer, data []byte, opts allocateOptions) error {
	sc, err := factory.ParseScenario(data)
	if err != nil {
		return err
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}

	engine := allocation.NewEngine(opts.Logger, opts.Workers)
	out, err := engine.Run(ctx, allocation.RunInput{
		RunID:     allocation.RunID(opts.RunID),
		Pool:      sc.Pool,
		Rule:      sc.Rule,
		Employees: sc.Employees,
	})
	if err != nil {
		return err
	}

	run := allocation.RunRecord{
		ID:              out.RunID,
		PoolID:          out.PoolID,
		RuleID:          out.RuleID,
		RuleVersion:     sc.Rule.Version,
		Period:          out.Period,
		AvailableAmount: out.Summary.AvailableAmount,
		BudgetCap:       out.Summary.BudgetCap,
		AllocatedAmount: out.AllocatedAmount,
		AllocatedCount:  out.AllocatedCount,
		WarningCount:    len(out.Warnings),
	}
	if opts.JSON {
		return printJSON(w, api.NewAllocateResponse(run, out, true))
	}

	renderResults(w, out)
	renderSummary(w, out.Summary)
	renderDepartments(w, out.Summary.Departments)
	renderNotes(w, out)
	return nil
}

// runValidateRule parses a rule document, choosing the format by extension.
func runValidateRule(w io.Writer, name string, data []byte, asJSON bool) error {
	var (
		rule *allocation.AllocationRule
		err  error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		rule, err = factory.ParseRuleYAML(data)
	default:
		rule, err = factory.ParseRule(data)
	}
	if err != nil {
		return err
	}

	if asJSON {
		return printJSON(w, factory.ToJSON(*rule))
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetTitle("Rule %s is valid", rule.ID)
	tw.AppendRows([]table.Row{
		{"Method", rule.AllocationMethod},
		{"Base / performance", fmt.Sprintf("%.2f / %.2f", rule.BaseAllocationRatio, rule.PerformanceAllocationRatio)},
		{"Curve", curveLabel(*rule)},
		{"Floor", boundLabel(rule.MinBonusAmount.StringFixed(2), rule.MinBonusAmount.IsZero(), rule.MinBonusRatio)},
		{"Ceiling", boundLabel(rule.MaxBonusAmount.StringFixed(2), rule.MaxBonusAmount.IsZero(), rule.MaxBonusRatio)},
		{"Allocation limit", fmt.Sprintf("%.0f%%", rule.TotalAllocationLimit*100)},
		{"Surplus", rule.BoundSurplusPolicy},
	})
	tw.Render()
	return nil
}

func presetRule(kind, id, name string) (string, error) {
	if name == "" && kind != "" {
		name = strings.ToUpper(kind[:1]) + kind[1:] + " bonus"
	}
	switch kind {
	case "standard":
		return factory.StandardRuleJSON(id, name), nil
	case "performance":
		return factory.PerformanceWeightedRuleJSON(id, name, allocation.DefaultExponentialFactor), nil
	case "tiered":
		return factory.TieredRuleJSON(id, name, []string{"P5", "P6"}), nil
	case "flat":
		return factory.FlatRuleJSON(id, name, 1000), nil
	default:
		return "", fmt.Errorf("unknown preset %q (standard, performance, tiered, flat)", kind)
	}
}

// =============================================================================
// RENDERING
// =============================================================================

func renderResults(w io.Writer, out *allocation.RunOutput) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetTitle("Allocation %s (%s, pool %s)", out.RunID, out.Period, out.PoolID)
	tw.AppendHeader(table.Row{"Employee", "Dept", "Level", "Score", "Pctl", "Coef", "Base", "Performance", "Adjustment", "Total", "Bound"})
	for _, r := range out.Results {
		bound := ""
		switch {
		case r.MinAmountApplied:
			bound = "floor"
		case r.MaxAmountApplied:
			bound = "ceiling"
		}
		tw.AppendRow(table.Row{
			r.EmployeeID, r.DepartmentID, r.PositionLevel,
			fmt.Sprintf("%.3f", r.FinalScore),
			fmt.Sprintf("%.0f", r.PercentileRank),
			fmt.Sprintf("%.3f", r.AppliedCoefficients.Final),
			r.BaseAmount.StringFixed(2),
			r.PerformanceAmount.StringFixed(2),
			r.AdjustmentAmount.StringFixed(2),
			r.TotalAmount.StringFixed(2),
			bound,
		})
	}
	tw.AppendFooter(table.Row{"", "", "", "", "", "", "", "", "Total", out.AllocatedAmount.StringFixed(2), ""})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight},
		{Number: 9, Align: text.AlignRight},
		{Number: 10, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})
	tw.Render()
}

func renderSummary(w io.Writer, s allocation.AllocationSummary) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetTitle("Summary")
	tw.AppendRows([]table.Row{
		{"Available", s.AvailableAmount.StringFixed(2)},
		{"Budget cap", s.BudgetCap.StringFixed(2)},
		{"Allocated", s.TotalAllocated.StringFixed(2)},
		{"Allocation ratio", fmt.Sprintf("%.4f", s.AllocationRatio)},
		{"Budget utilization", fmt.Sprintf("%.4f", s.BudgetUtilization)},
		{"Mean / median", fmt.Sprintf("%.2f / %.2f", s.Statistics.Mean, s.Statistics.Median)},
		{"Min / max", fmt.Sprintf("%.2f / %.2f", s.Statistics.Min, s.Statistics.Max)},
		{"Std dev (cv)", fmt.Sprintf("%.2f (%.4f)", s.Statistics.StdDev, s.Statistics.VariationCoefficient)},
		{"Gini", fmt.Sprintf("%.4f", s.Gini)},
		{"Score correlation", fmt.Sprintf("%.4f", s.ScoreCorrelation)},
		{"Floor / ceiling applied", fmt.Sprintf("%d / %d", s.Quality.MinBoundApplied, s.Quality.MaxBoundApplied)},
	})
	tw.Render()
}

func renderDepartments(w io.Writer, groups []allocation.GroupBreakdown) {
	if len(groups) == 0 {
		return
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetTitle("By department")
	tw.AppendHeader(table.Row{"Department", "Count", "Total", "Mean", "Min", "Max"})
	for _, g := range groups {
		tw.AppendRow(table.Row{
			g.Key, g.Count,
			fmt.Sprintf("%.2f", g.Total),
			fmt.Sprintf("%.2f", g.Mean),
			fmt.Sprintf("%.2f", g.Min),
			fmt.Sprintf("%.2f", g.Max),
		})
	}
	tw.Render()
}

func renderNotes(w io.Writer, out *allocation.RunOutput) {
	for _, issue := range out.Summary.Quality.Issues {
		fmt.Fprintf(w, "issue: %s: %s\n", issue.Code, issue.Message)
	}
	for _, warn := range out.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn.Error())
	}
}

func curveLabel(rule allocation.AllocationRule) string {
	if rule.ScoreDistributionMethod == allocation.DistributionExponential {
		return fmt.Sprintf("%s (k=%g)", rule.ScoreDistributionMethod, rule.ExponentialFactor)
	}
	return string(rule.ScoreDistributionMethod)
}

func boundLabel(amount string, amountUnset bool, ratio float64) string {
	var parts []string
	if !amountUnset {
		parts = append(parts, amount)
	}
	if ratio > 0 {
		parts = append(parts, fmt.Sprintf("%gx average", ratio))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
