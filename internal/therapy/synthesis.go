// Package therapy turns glucose patterns into suggested insulin-therapy adjustments
package therapy

import (
	"fmt"
	"math"

	"github.com/mrcode/nightscout-therapy/internal/models"
)

// Closing lines appended to every warning list
const (
	DisclaimerConsultProvider = "Always consult with your healthcare provider before making therapy adjustments."
	DisclaimerOneChange       = "Make only one change at a time and monitor for 3-5 days before making additional adjustments."
)

// narrative is what the synthesizer reads: unrounded stats plus the suggestion lists
type narrative struct {
	stats Stats
	basal []models.AdjustmentSuggestion
	carb  []models.AdjustmentSuggestion
}

func countPriority(list []models.AdjustmentSuggestion, p models.Priority) int {
	n := 0
	for _, s := range list {
		if s.Priority == p {
			n++
		}
	}
	return n
}

func (n narrative) hasAdjustments() bool {
	return len(n.basal) > 0 || len(n.carb) > 0
}

// block emits zero or more lines; blocks run in order
type block func(n narrative) []string

var recommendationBlocks = []block{
	func(n narrative) []string {
		switch {
		case n.stats.InRangePct < 50:
			return []string{fmt.Sprintf("⚠️ URGENT: Time in range is only %.1f%% (target >70%%). This indicates very poor glucose control requiring immediate attention.", n.stats.InRangePct)}
		case n.stats.InRangePct < 70:
			return []string{fmt.Sprintf("Time in range is %.1f%%. Target is >70%%. Focus on the suggested adjustments below.", n.stats.InRangePct)}
		}
		return nil
	},
	func(n narrative) []string {
		if n.stats.BelowPct > hypoThresholdPct {
			return []string{fmt.Sprintf("❗ SAFETY PRIORITY: Time below range is %.1f%%. This exceeds the 4%% safety threshold. Prioritize reducing hypoglycemia risk first.", n.stats.BelowPct)}
		}
		return nil
	},
	func(n narrative) []string {
		if n.stats.AbovePct > 50 {
			return []string{fmt.Sprintf("Time above range is %.1f%% which is very high. Multiple therapy adjustments may be needed.", n.stats.AbovePct)}
		}
		return nil
	},
	func(n narrative) []string {
		switch {
		case n.stats.CVPct > 50:
			return []string{fmt.Sprintf("Glucose variability is very high at %.1f%%. Consider reviewing meal timing, carb counting accuracy, and stress management.", n.stats.CVPct)}
		case n.stats.CVPct > 36:
			return []string{fmt.Sprintf("Glucose variability is %.1f%%. Consider more consistent meal timing and carb counting.", n.stats.CVPct)}
		}
		return nil
	},
	func(n narrative) []string {
		if len(n.basal) == 0 {
			return nil
		}
		var lines []string
		if high := countPriority(n.basal, models.PriorityHigh); high > 0 {
			lines = append(lines, fmt.Sprintf("🔴 %d high-priority basal adjustments suggested. These should be addressed first.", high))
		}
		return append(lines, fmt.Sprintf("%d basal rate adjustments suggested. Start with the highest priority changes.", len(n.basal)))
	},
	func(n narrative) []string {
		if len(n.carb) == 0 {
			return nil
		}
		var lines []string
		if high := countPriority(n.carb, models.PriorityHigh); high > 0 {
			lines = append(lines, fmt.Sprintf("🔴 %d high-priority carb ratio adjustments suggested.", high))
		}
		return append(lines, fmt.Sprintf("%d carb ratio adjustments suggested. Test one change at a time.", len(n.carb)))
	},
	func(n narrative) []string {
		if n.stats.InRangePct < 50 && n.hasAdjustments() {
			return []string{
				"With your current control, consider working with your healthcare team to implement multiple changes systematically.",
				"Document all changes and monitor glucose patterns for 3-5 days after each adjustment.",
			}
		}
		return nil
	},
	func(n narrative) []string {
		if n.stats.InRangePct < 50 {
			return []string{"⚠️ With very poor glucose control, consider scheduling an urgent appointment with your endocrinologist."}
		}
		return nil
	},
}

// Warning texts, also used to recognise warnings downstream
const (
	WarningHypoRisk           = "🚨 HIGH HYPOGLYCEMIA RISK: Time below range exceeds 4%. Prioritize safety over tight control."
	WarningExtremeVariability = "🚨 EXTREME VARIABILITY: Glucose swings are dangerous. Immediate medical consultation recommended."
	WarningHighVariability    = "⚠️ VERY HIGH VARIABILITY: Glucose swings are significant. Consider reviewing overall diabetes management strategy."
	WarningLargeBasal         = "⚠️ LARGE BASAL INCREASES: Some suggested increases are >15%. Consider smaller incremental changes or consult your healthcare provider."
	WarningLargeCarbRatio     = "⚠️ SIGNIFICANT CARB RATIO CHANGES: Large adjustments suggested. Test carefully with known meals."
	WarningManyHighPriority   = "⚠️ MULTIPLE HIGH-PRIORITY CHANGES: Several urgent adjustments suggested. Consider professional guidance for systematic implementation."
)

var warningBlocks = []block{
	func(n narrative) []string {
		if n.stats.BelowPct > hypoThresholdPct {
			return []string{WarningHypoRisk}
		}
		return nil
	},
	func(n narrative) []string {
		switch {
		case n.stats.CVPct > 60:
			return []string{WarningExtremeVariability}
		case n.stats.CVPct > 50:
			return []string{WarningHighVariability}
		}
		return nil
	},
	func(n narrative) []string {
		for _, s := range n.basal {
			if s.PercentageDelta > 15 {
				return []string{WarningLargeBasal}
			}
		}
		return nil
	},
	func(n narrative) []string {
		for _, s := range n.carb {
			if math.Abs(s.PercentageDelta) > 15 {
				return []string{WarningLargeCarbRatio}
			}
		}
		return nil
	},
	func(n narrative) []string {
		if countPriority(n.basal, models.PriorityHigh)+countPriority(n.carb, models.PriorityHigh) > 3 {
			return []string{WarningManyHighPriority}
		}
		return nil
	},
	func(narrative) []string {
		return []string{DisclaimerConsultProvider, DisclaimerOneChange}
	},
}

func runBlocks(blocks []block, n narrative) []string {
	out := make([]string, 0)
	for _, b := range blocks {
		out = append(out, b(n)...)
	}
	return out
}

func synthesize(n narrative) (recommendations, warnings []string) {
	return runBlocks(recommendationBlocks, n), runBlocks(warningBlocks, n)
}
