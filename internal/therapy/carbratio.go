// Package therapy turns glucose patterns into suggested insulin-therapy adjustments
package therapy

import (
	"fmt"
	"math"

	"github.com/mrcode/nightscout-therapy/internal/models"
)

const (
	minMealWindowReadings = 20
	minCarbRatio          = 1.0 // g/U
	patternAdjustmentPct  = -7
	patternTimeSlot       = "Meal Times"
)

// PatternAnalyzer inspects logged treatments for habits that point at a weak carb ratio
type PatternAnalyzer interface {
	Analyze(treatments []models.Treatment, days float64) models.TreatmentAnalysis
	ShouldAdjust(a models.TreatmentAnalysis, days float64) bool
	Priority(a models.TreatmentAnalysis, days float64) models.Priority
	Reasoning(a models.TreatmentAnalysis, days float64) string
}

// MealWindow is a set of meal hours plus the ratio start times that usually cover them
type MealWindow struct {
	Name       string
	Hours      []int
	Candidates []string
}

// MealWindows are evaluated in this order
var MealWindows = []MealWindow{
	{Name: "Breakfast", Hours: []int{6, 7, 8, 9, 10}, Candidates: []string{"00:00", "06:00", "06:30", "07:00"}},
	{Name: "Lunch", Hours: []int{11, 12, 13, 14, 15}, Candidates: []string{"10:30", "11:00", "12:00"}},
	{Name: "Dinner", Hours: []int{17, 18, 19, 20, 21}, Candidates: []string{"15:30", "17:00", "18:00"}},
}

func mealTriggered(ws windowStats, th models.Thresholds) bool {
	return ws.AbovePct > 30 || ws.Mean > th.High+25 || (ws.Mean > 200 && ws.AbovePct > 20)
}

// Strengthening only; a lower g/U ratio means more insulin per gram
var carbRatioLadder = []rule{
	{
		when:     func(ws windowStats, _ models.Thresholds) bool { return ws.Mean > 220 },
		pct:      -15,
		priority: models.PriorityHigh,
	},
	{
		when: func(ws windowStats, th models.Thresholds) bool {
			return ws.AbovePct > 50 || ws.Mean > th.High+40
		},
		pct:      -12,
		priority: models.PriorityHigh,
	},
	{
		when:     func(ws windowStats, _ models.Thresholds) bool { return ws.AbovePct > 30 },
		pct:      -8,
		priority: models.PriorityMedium,
	},
	{
		when:     func(windowStats, models.Thresholds) bool { return true },
		pct:      -5,
		priority: models.PriorityLow,
	},
}

// mealSegments returns the ratio segments a meal window applies to: every real segment starting
// at a candidate time, else the segment active at the window's middle hour.
func mealSegments(segs []Segment, meal MealWindow) []Segment {
	candidates := make(map[int]bool, len(meal.Candidates))
	for _, c := range meal.Candidates {
		if m, err := models.ParseClock(c); err == nil {
			candidates[m] = true
		}
	}

	var out []Segment
	for _, s := range segs {
		if !s.Synthetic && candidates[s.Minute] {
			out = append(out, s)
		}
	}
	if len(out) > 0 {
		return out
	}

	mid := meal.Hours[len(meal.Hours)/2]
	if s, ok := ActiveSegment(segs, mid*60); ok {
		out = append(out, s)
	}
	return out
}

// analyzeCarbRatios runs the meal-window ladder. Duplicate slots across meals are kept.
func analyzeCarbRatios(buckets *hourlyValues, segs []Segment, th models.Thresholds) []models.AdjustmentSuggestion {
	out := make([]models.AdjustmentSuggestion, 0)

	for _, meal := range MealWindows {
		values := buckets.window(meal.Hours)
		if len(values) < minMealWindowReadings {
			continue
		}
		ws := summarize(values, th)
		if !mealTriggered(ws, th) {
			continue
		}
		r, _ := firstMatch(carbRatioLadder, ws, th)
		rationale := fmt.Sprintf("%s: %.1f%% above target, average %.0f mg/dL. Consider stronger carb ratio.",
			meal.Name, ws.AbovePct, ws.Mean)

		for _, seg := range mealSegments(segs, meal) {
			out = append(out, models.AdjustmentSuggestion{
				Category:        models.CategoryCarbRatio,
				TimeSlot:        seg.Start,
				CurrentValue:    seg.Value,
				SuggestedValue:  math.Max(minCarbRatio, round1(seg.Value*(1+r.pct/100))),
				PercentageDelta: r.pct,
				Rationale:       rationale,
				Confidence:      models.ConfidenceMedium,
				Priority:        r.priority,
			})
		}
	}
	return out
}

// patternSuggestion asks the analyzer whether the treatment log calls for a stronger ratio
func patternSuggestion(pa PatternAnalyzer, treatments []models.Treatment, days float64, segs []Segment) (models.AdjustmentSuggestion, bool) {
	if pa == nil || len(treatments) == 0 || days <= 0 || len(segs) == 0 {
		return models.AdjustmentSuggestion{}, false
	}

	analysis := pa.Analyze(append([]models.Treatment(nil), treatments...), days)
	if !pa.ShouldAdjust(analysis, days) {
		return models.AdjustmentSuggestion{}, false
	}

	seg := segs[0]
	return models.AdjustmentSuggestion{
		Category:        models.CategoryCarbRatio,
		TimeSlot:        patternTimeSlot,
		CurrentValue:    seg.Value,
		SuggestedValue:  math.Max(minCarbRatio, round1(seg.Value*(1+patternAdjustmentPct/100.0))),
		PercentageDelta: patternAdjustmentPct,
		Rationale:       pa.Reasoning(analysis, days),
		Confidence:      models.ConfidenceMedium,
		Priority:        pa.Priority(analysis, days),
	}, true
}
