// Package patterns detects treatment-logging habits that hint at a weak carb ratio
package patterns

import (
	"fmt"
	"sort"

	"github.com/mrcode/nightscout-therapy/internal/models"
)

// Per-day frequencies above which a treatment kind counts as frequent
const (
	frequentCorrectionsPerDay = 3
	frequentCarbsPerDay       = 4
	frequentTempBasalsPerDay  = 2

	highPriorityCarbsPerDay   = 6
	mediumPriorityCarbsPerDay = 5
)

// Analyzer is the default treatment pattern analyzer
type Analyzer struct {
	// Label prefixes the reasoning text
	Label string
}

// NewAnalyzer creates an analyzer with the default "Meal times" label
func NewAnalyzer() *Analyzer {
	return &Analyzer{Label: "Meal times"}
}

// Analyze counts treatment kinds over the given number of days
func (a *Analyzer) Analyze(treatments []models.Treatment, days float64) models.TreatmentAnalysis {
	var result models.TreatmentAnalysis
	seen := make(map[string]bool)

	for i := range treatments {
		t := &treatments[i]
		if t.EventType != "" && !seen[t.EventType] {
			seen[t.EventType] = true
			result.UniqueEventTypes = append(result.UniqueEventTypes, t.EventType)
		}
		if t.HasCarbs() {
			result.TreatmentsWithCarbs++
		}
		if t.IsCorrection() {
			result.CorrectionCount++
		}
		if t.IsCarbTreatment() {
			result.CarbCount++
		}
		if t.IsTempBasal() {
			result.TempBasalCount++
		}
	}
	sort.Strings(result.UniqueEventTypes)

	result.FrequentCorrections = float64(result.CorrectionCount) > days*frequentCorrectionsPerDay
	result.FrequentCarbs = float64(result.CarbCount) > days*frequentCarbsPerDay
	result.FrequentTempBasals = float64(result.TempBasalCount) > days*frequentTempBasalsPerDay

	return result
}

// ShouldAdjust reports whether the carb ratio should be strengthened
func (a *Analyzer) ShouldAdjust(analysis models.TreatmentAnalysis, _ float64) bool {
	return analysis.FrequentCarbs
}

// Priority grades the adjustment by carb treatments per day
func (a *Analyzer) Priority(analysis models.TreatmentAnalysis, days float64) models.Priority {
	perDay := carbsPerDay(analysis, days)
	switch {
	case perDay > highPriorityCarbsPerDay:
		return models.PriorityHigh
	case perDay > mediumPriorityCarbsPerDay:
		return models.PriorityMedium
	default:
		return models.PriorityLow
	}
}

// Reasoning explains the adjustment
func (a *Analyzer) Reasoning(analysis models.TreatmentAnalysis, days float64) string {
	label := a.Label
	if label == "" {
		label = "Meal times"
	}
	return fmt.Sprintf("%s analysis: %d carb treatments in %g days (%.1f per day). Consider stronger carb ratio to reduce post-meal corrections.",
		label, analysis.CarbCount, days, carbsPerDay(analysis, days))
}

func carbsPerDay(analysis models.TreatmentAnalysis, days float64) float64 {
	if days <= 0 {
		return 0
	}
	return float64(analysis.CarbCount) / days
}
