package therapy

import (
	"testing"

	"github.com/mrcode/nightscout-therapy/internal/models"
)

type stubPatterns struct {
	adjust   bool
	priority models.Priority
	gotDays  float64
}

func (s *stubPatterns) Analyze(treatments []models.Treatment, days float64) models.TreatmentAnalysis {
	s.gotDays = days
	return models.TreatmentAnalysis{CarbCount: len(treatments)}
}

func (s *stubPatterns) ShouldAdjust(models.TreatmentAnalysis, float64) bool { return s.adjust }

func (s *stubPatterns) Priority(models.TreatmentAnalysis, float64) models.Priority { return s.priority }

func (s *stubPatterns) Reasoning(a models.TreatmentAnalysis, _ float64) string {
	return "frequent carbs"
}

func TestMealTriggered(t *testing.T) {
	tests := []struct {
		name string
		ws   windowStats
		want bool
	}{
		{"often above", windowStats{AbovePct: 31, Mean: 150}, true},
		{"mean above high+25", windowStats{AbovePct: 10, Mean: 206}, true},
		{"very high mean and some highs", windowStats{AbovePct: 21, Mean: 201}, true},
		{"quiet", windowStats{AbovePct: 20, Mean: 190}, false},
	}
	for _, tt := range tests {
		if got := mealTriggered(tt.ws, testThresholds); got != tt.want {
			t.Errorf("%s: mealTriggered() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestAnalyzeCarbRatios_Tiers(t *testing.T) {
	segs := mustNormalize(models.TherapySegment{Start: "00:00", Value: 10})

	tests := []struct {
		name     string
		values   []models.GlucoseReading
		wantPct  float64
		priority models.Priority
	}{
		{"mean over 220", atHour(8, 20, 240), -15, models.PriorityHigh},
		{"mostly above", append(atHour(8, 11, 200), atHour(9, 9, 150)...), -12, models.PriorityHigh},
		{"often above", append(atHour(8, 8, 200), atHour(9, 12, 150)...), -8, models.PriorityMedium},
		{"mean just high", atHour(8, 20, 178), 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buckets := bucketsOf(tt.values)
			got := analyzeCarbRatios(&buckets, segs, testThresholds)
			if tt.wantPct == 0 {
				if len(got) != 0 {
					t.Errorf("got %v, want no suggestion", got)
				}
				return
			}
			if len(got) != 1 {
				t.Fatalf("len = %d, want 1", len(got))
			}
			if got[0].PercentageDelta != tt.wantPct || got[0].Priority != tt.priority {
				t.Errorf("got (%v, %s), want (%v, %s)", got[0].PercentageDelta, got[0].Priority, tt.wantPct, tt.priority)
			}
			if got[0].Confidence != models.ConfidenceMedium {
				t.Errorf("Confidence = %s, want medium", got[0].Confidence)
			}
		})
	}
}

func TestAnalyzeCarbRatios_LowTier(t *testing.T) {
	// 25% above with a mean over 200 triggers but no stronger tier matches
	values := append(atHour(12, 5, 300), atHour(13, 15, 170)...)
	buckets := bucketsOf(values)
	segs := mustNormalize(models.TherapySegment{Start: "00:00", Value: 10})

	got := analyzeCarbRatios(&buckets, segs, testThresholds)
	if len(got) != 1 || got[0].PercentageDelta != -5 || got[0].Priority != models.PriorityLow {
		t.Errorf("got %+v, want one -5%% low suggestion", got)
	}
}

func TestAnalyzeCarbRatios_SegmentSelection(t *testing.T) {
	high := atHour(13, 20, 240)

	t.Run("exact candidate matches", func(t *testing.T) {
		segs := mustNormalize(
			models.TherapySegment{Start: "00:00", Value: 10},
			models.TherapySegment{Start: "11:00", Value: 8},
			models.TherapySegment{Start: "12:00", Value: 7},
		)
		buckets := bucketsOf(high)
		got := analyzeCarbRatios(&buckets, segs, testThresholds)
		if len(got) != 2 || got[0].TimeSlot != "11:00" || got[1].TimeSlot != "12:00" {
			t.Fatalf("got %+v, want 11:00 and 12:00", got)
		}
		if got[0].SuggestedValue != 6.8 {
			t.Errorf("SuggestedValue = %v, want 6.8", got[0].SuggestedValue)
		}
	})

	t.Run("falls back to active segment at midpoint", func(t *testing.T) {
		segs := mustNormalize(
			models.TherapySegment{Start: "00:00", Value: 10},
			models.TherapySegment{Start: "05:00", Value: 12},
			models.TherapySegment{Start: "16:00", Value: 9},
		)
		buckets := bucketsOf(high)
		got := analyzeCarbRatios(&buckets, segs, testThresholds)
		if len(got) != 1 || got[0].TimeSlot != "05:00" {
			t.Fatalf("got %+v, want the 05:00 segment", got)
		}
	})

	t.Run("synthetic midnight is not a candidate match", func(t *testing.T) {
		segs := mustNormalize(models.TherapySegment{Start: "09:00", Value: 10})
		buckets := bucketsOf(atHour(7, 20, 240))
		got := analyzeCarbRatios(&buckets, segs, testThresholds)
		// Breakfast midpoint 08:00 resolves to the synthetic midnight entry
		if len(got) != 1 || got[0].TimeSlot != "00:00" || got[0].CurrentValue != 10 {
			t.Fatalf("got %+v", got)
		}
	})
}

func TestAnalyzeCarbRatios_SkipsSparseMeals(t *testing.T) {
	buckets := bucketsOf(atHour(8, 19, 300))
	segs := mustNormalize(models.TherapySegment{Start: "00:00", Value: 10})
	if got := analyzeCarbRatios(&buckets, segs, testThresholds); len(got) != 0 {
		t.Errorf("got %v, want nothing for 19 readings", got)
	}
}

func TestAnalyzeCarbRatios_Floor(t *testing.T) {
	buckets := bucketsOf(atHour(8, 20, 300))
	segs := mustNormalize(models.TherapySegment{Start: "00:00", Value: 1})
	got := analyzeCarbRatios(&buckets, segs, testThresholds)
	if len(got) != 1 || got[0].SuggestedValue != minCarbRatio {
		t.Errorf("got %+v, want value floored at %v", got, minCarbRatio)
	}
}

func TestPatternSuggestion(t *testing.T) {
	segs := mustNormalize(models.TherapySegment{Start: "06:00", Value: 12}, models.TherapySegment{Start: "18:00", Value: 9})
	treatments := []models.Treatment{{EventType: "Meal Bolus", Carbs: 40}}

	t.Run("adjust", func(t *testing.T) {
		pa := &stubPatterns{adjust: true, priority: models.PriorityHigh}
		s, ok := patternSuggestion(pa, treatments, 3, segs)
		if !ok {
			t.Fatal("patternSuggestion() = false, want a suggestion")
		}
		if s.TimeSlot != "Meal Times" || s.PercentageDelta != -7 || s.CurrentValue != 12 {
			t.Errorf("suggestion = %+v", s)
		}
		if s.SuggestedValue != 11.2 {
			t.Errorf("SuggestedValue = %v, want 11.2", s.SuggestedValue)
		}
		if s.Priority != models.PriorityHigh || s.Confidence != models.ConfidenceMedium {
			t.Errorf("priority/confidence = %s/%s", s.Priority, s.Confidence)
		}
		if pa.gotDays != 3 {
			t.Errorf("analyzer saw %v days, want 3", pa.gotDays)
		}
	})

	t.Run("no adjust", func(t *testing.T) {
		if _, ok := patternSuggestion(&stubPatterns{}, treatments, 3, segs); ok {
			t.Error("patternSuggestion() should respect ShouldAdjust")
		}
	})

	t.Run("missing inputs", func(t *testing.T) {
		pa := &stubPatterns{adjust: true}
		if _, ok := patternSuggestion(pa, nil, 3, segs); ok {
			t.Error("no treatments should yield nothing")
		}
		if _, ok := patternSuggestion(pa, treatments, 0, segs); ok {
			t.Error("zero days should yield nothing")
		}
		if _, ok := patternSuggestion(nil, treatments, 3, segs); ok {
			t.Error("nil analyzer should yield nothing")
		}
	})
}
