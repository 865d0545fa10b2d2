// Package therapy turns glucose patterns into suggested insulin-therapy adjustments
package therapy

import (
	"fmt"
	"math"
	"sort"

	"github.com/mrcode/nightscout-therapy/internal/models"
)

const (
	minBasalWindowReadings = 15
	minBasalRate           = 0.05 // U/h
)

// rule is one row of a decision ladder: the first row whose predicate matches wins
type rule struct {
	when       func(ws windowStats, th models.Thresholds) bool
	pct        float64
	priority   models.Priority
	confidence models.Confidence
	rationale  func(ws windowStats, th models.Thresholds, part DayPart) string
}

func firstMatch(ladder []rule, ws windowStats, th models.Thresholds) (rule, bool) {
	for _, r := range ladder {
		if r.when(ws, th) {
			return r, true
		}
	}
	return rule{}, false
}

// elevated gates the increase tiers of the basal ladder
func elevated(ws windowStats, th models.Thresholds) bool {
	return ws.AbovePct > 40 || ws.Mean > th.High+30
}

func lowRationale(ws windowStats, th models.Thresholds, part DayPart) string {
	return fmt.Sprintf("%.1f%% of %s readings below %g mg/dL. Reduce basal rate for safety.",
		ws.BelowPct, part.Label, th.Low)
}

var basalLadder = []rule{
	{
		when:       func(ws windowStats, _ models.Thresholds) bool { return ws.BelowPct > 10 },
		pct:        -20,
		priority:   models.PriorityHigh,
		confidence: models.ConfidenceHigh,
		rationale:  lowRationale,
	},
	{
		when:       func(ws windowStats, _ models.Thresholds) bool { return ws.BelowPct > 4 },
		pct:        -15,
		priority:   models.PriorityMedium,
		confidence: models.ConfidenceHigh,
		rationale:  lowRationale,
	},
	{
		when: func(ws windowStats, th models.Thresholds) bool {
			return elevated(ws, th) && ws.Mean > 220
		},
		pct:        20,
		priority:   models.PriorityHigh,
		confidence: models.ConfidenceHigh,
		rationale: func(ws windowStats, _ models.Thresholds, part DayPart) string {
			return fmt.Sprintf("%s average is %.0f mg/dL (very high). Consider significant basal increase.",
				part.Name, ws.Mean)
		},
	},
	{
		when: func(ws windowStats, th models.Thresholds) bool {
			return elevated(ws, th) && (ws.AbovePct > 60 || ws.Mean > th.High+50)
		},
		pct:        15,
		priority:   models.PriorityHigh,
		confidence: models.ConfidenceHigh,
		rationale: func(ws windowStats, th models.Thresholds, part DayPart) string {
			return fmt.Sprintf("%.1f%% of %s readings above %g mg/dL. Average: %.0f mg/dL. Consider basal increase.",
				ws.AbovePct, part.Label, th.High, ws.Mean)
		},
	},
	{
		when: func(ws windowStats, th models.Thresholds) bool {
			return elevated(ws, th) && ws.AbovePct > 40
		},
		pct:        10,
		priority:   models.PriorityMedium,
		confidence: models.ConfidenceHigh,
		rationale: func(ws windowStats, th models.Thresholds, part DayPart) string {
			return fmt.Sprintf("%.1f%% of %s readings above %g mg/dL. Consider modest basal increase.",
				ws.AbovePct, part.Label, th.High)
		},
	},
	{
		when:       elevated,
		pct:        8,
		priority:   models.PriorityMedium,
		confidence: models.ConfidenceHigh,
		rationale: func(ws windowStats, _ models.Thresholds, part DayPart) string {
			return fmt.Sprintf("%s average of %.0f mg/dL is elevated. Consider small basal increase.",
				part.Name, ws.Mean)
		},
	},
	{
		when:       func(ws windowStats, th models.Thresholds) bool { return ws.Mean > th.High+15 },
		pct:        5,
		priority:   models.PriorityLow,
		confidence: models.ConfidenceMedium,
		rationale: func(ws windowStats, _ models.Thresholds, part DayPart) string {
			return fmt.Sprintf("%s average of %.0f mg/dL is moderately elevated. Consider small basal increase.",
				part.Name, ws.Mean)
		},
	},
}

// outranks reports whether candidate should replace existing for the same slot.
// Ties keep the existing entry.
func outranks(candidate, existing models.AdjustmentSuggestion) bool {
	if candidate.Priority != existing.Priority {
		return candidate.Priority > existing.Priority
	}
	return candidate.Confidence > existing.Confidence
}

// analyzeBasal runs the basal ladder per day part and resolves conflicts per time slot
func analyzeBasal(buckets *hourlyValues, segs []Segment, th models.Thresholds) []models.AdjustmentSuggestion {
	bySlot := make(map[string]models.AdjustmentSuggestion)
	slotMinute := make(map[string]int)

	for _, part := range DayParts {
		values := buckets.window(part.Hours)
		if len(values) < minBasalWindowReadings {
			continue
		}
		ws := summarize(values, th)
		r, ok := firstMatch(basalLadder, ws, th)
		if !ok {
			continue
		}
		rationale := r.rationale(ws, th, part)

		for _, seg := range TouchedSegments(segs, part.Hours) {
			suggested := math.Max(minBasalRate, round2(seg.Value*(1+r.pct/100)))
			candidate := models.AdjustmentSuggestion{
				Category:        models.CategoryBasal,
				TimeSlot:        seg.Start,
				CurrentValue:    seg.Value,
				SuggestedValue:  suggested,
				PercentageDelta: r.pct,
				Rationale:       rationale,
				Confidence:      r.confidence,
				Priority:        r.priority,
			}
			if existing, ok := bySlot[seg.Start]; ok && !outranks(candidate, existing) {
				continue
			}
			bySlot[seg.Start] = candidate
			slotMinute[seg.Start] = seg.Minute
		}
	}

	out := make([]models.AdjustmentSuggestion, 0, len(bySlot))
	for _, s := range bySlot {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return slotMinute[out[i].TimeSlot] < slotMinute[out[j].TimeSlot]
	})
	return out
}
