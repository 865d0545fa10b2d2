package models

import (
	"testing"
	"time"
)

func TestTreatment_Time(t *testing.T) {
	ts := time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)

	withDate := Treatment{Date: ts.UnixMilli()}
	if !withDate.Time().Equal(ts) {
		t.Errorf("Time() = %v, want %v", withDate.Time(), ts)
	}

	withCreatedAt := Treatment{CreatedAt: ts.Format(time.RFC3339)}
	if !withCreatedAt.Time().Equal(ts) {
		t.Errorf("Time() from created_at = %v, want %v", withCreatedAt.Time(), ts)
	}

	broken := Treatment{CreatedAt: "yesterday"}
	if !broken.Time().IsZero() {
		t.Errorf("Time() for unparsable created_at = %v, want zero", broken.Time())
	}
}

func TestTreatment_Classification(t *testing.T) {
	tests := []struct {
		name       string
		treatment  Treatment
		correction bool
		carb       bool
		tempBasal  bool
	}{
		{"correction bolus", Treatment{EventType: "Correction Bolus", Insulin: 1}, true, false, false},
		{"plain bolus", Treatment{EventType: "Bolus", Insulin: 2}, true, false, false},
		{"bolus with carbs", Treatment{EventType: "Bolus", Insulin: 2, Carbs: 30}, true, true, false},
		{"meal bolus without carbs", Treatment{EventType: "Meal Bolus"}, false, true, false},
		{"carb correction", Treatment{EventType: "Carb Correction", Carbs: 15}, false, true, false},
		{"note with carbs", Treatment{EventType: "Note", Carbs: 10}, false, true, false},
		{"temp basal", Treatment{EventType: "Temp Basal", Percent: -30}, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.treatment.IsCorrection(); got != tt.correction {
				t.Errorf("IsCorrection() = %v, want %v", got, tt.correction)
			}
			if got := tt.treatment.IsCarbTreatment(); got != tt.carb {
				t.Errorf("IsCarbTreatment() = %v, want %v", got, tt.carb)
			}
			if got := tt.treatment.IsTempBasal(); got != tt.tempBasal {
				t.Errorf("IsTempBasal() = %v, want %v", got, tt.tempBasal)
			}
		})
	}
}
