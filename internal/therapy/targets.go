// Package therapy turns glucose patterns into suggested insulin-therapy adjustments
package therapy

import (
	"fmt"

	"github.com/mrcode/nightscout-therapy/internal/models"
)

const (
	sensitivityReviewCV = 40.0
	targetLowRaise      = 10.0 // mg/dL
	// Reported for every raised low target regardless of its current value
	targetLowRaisePct = 9.1
	hypoThresholdPct  = 4.0
)

// analyzeSensitivity never proposes a concrete sensitivity change. High variability only
// produces a review note.
func analyzeSensitivity(stats Stats) ([]models.AdjustmentSuggestion, string) {
	review := ""
	if stats.CVPct > sensitivityReviewCV {
		review = fmt.Sprintf("High glucose variability (%.1f%%). Consider reviewing insulin sensitivity with healthcare provider.",
			stats.CVPct)
	}
	return make([]models.AdjustmentSuggestion, 0), review
}

// analyzeTargets raises every low target when time below range is excessive
func analyzeTargets(targetLow []Segment, stats Stats) []models.AdjustmentSuggestion {
	out := make([]models.AdjustmentSuggestion, 0)
	if stats.BelowPct <= hypoThresholdPct {
		return out
	}

	rationale := fmt.Sprintf("%.1f%% time below range. Consider raising low target for safety.", stats.BelowPct)
	for _, seg := range targetLow {
		out = append(out, models.AdjustmentSuggestion{
			Category:        models.CategoryTarget,
			TimeSlot:        seg.Start,
			CurrentValue:    seg.Value,
			SuggestedValue:  seg.Value + targetLowRaise,
			PercentageDelta: targetLowRaisePct,
			Rationale:       rationale,
			Confidence:      models.ConfidenceHigh,
			Priority:        models.PriorityHigh,
		})
	}
	return out
}
