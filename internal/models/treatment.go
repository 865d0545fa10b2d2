// Package models contains data structures used throughout the application
package models

import "time"

// Treatment represents a treatment entry from Nightscout (insulin, carbs, etc.)
type Treatment struct {
	ID        string  `json:"_id,omitempty" yaml:"id,omitempty"`
	EventType string  `json:"eventType" yaml:"eventType"`
	Date      int64   `json:"date,omitempty" yaml:"date,omitempty"` // Unix timestamp in milliseconds
	CreatedAt string  `json:"created_at,omitempty" yaml:"createdAt,omitempty"`
	Insulin   float64 `json:"insulin,omitempty" yaml:"insulin,omitempty"` // Units of insulin
	Carbs     float64 `json:"carbs,omitempty" yaml:"carbs,omitempty"`     // Grams of carbohydrates
	Duration  float64 `json:"duration,omitempty" yaml:"duration,omitempty"`
	Percent   float64 `json:"percent,omitempty" yaml:"percent,omitempty"`   // Temp basal change in percent
	Absolute  float64 `json:"absolute,omitempty" yaml:"absolute,omitempty"` // Temp basal absolute rate
	Notes     string  `json:"notes,omitempty" yaml:"notes,omitempty"`
	EnteredBy string  `json:"enteredBy,omitempty" yaml:"enteredBy,omitempty"`
}

// Time returns the time of the treatment
func (t *Treatment) Time() time.Time {
	if t.Date > 0 {
		return time.UnixMilli(t.Date)
	}
	// Fallback to created_at
	parsed, err := time.Parse(time.RFC3339, t.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

// HasCarbs returns true if this treatment includes carbohydrates
func (t *Treatment) HasCarbs() bool {
	return t.Carbs > 0
}

// IsCorrection returns true for correction-style boluses
func (t *Treatment) IsCorrection() bool {
	return t.EventType == TreatmentEventTypes.CorrectionBolus || t.EventType == TreatmentEventTypes.Bolus
}

// IsCarbTreatment returns true if the treatment records carbohydrate intake in any form
func (t *Treatment) IsCarbTreatment() bool {
	switch t.EventType {
	case TreatmentEventTypes.Carb, TreatmentEventTypes.MealBolus, TreatmentEventTypes.CarbCorrection:
		return true
	}
	return t.HasCarbs()
}

// IsTempBasal returns true for temporary basal events
func (t *Treatment) IsTempBasal() bool {
	return t.EventType == TreatmentEventTypes.TempBasal
}

// TreatmentAnalysis summarizes how often each kind of treatment was logged over a period
type TreatmentAnalysis struct {
	CorrectionCount     int      `json:"correctionCount"`
	CarbCount           int      `json:"carbCount"`
	TempBasalCount      int      `json:"tempBasalCount"`
	FrequentCorrections bool     `json:"frequentCorrections"`
	FrequentCarbs       bool     `json:"frequentCarbs"`
	FrequentTempBasals  bool     `json:"frequentTempBasals"`
	UniqueEventTypes    []string `json:"uniqueEventTypes"`
	TreatmentsWithCarbs int      `json:"treatmentsWithCarbs"`
}

// TreatmentEventTypes contains common Nightscout event types
var TreatmentEventTypes = struct {
	BGCheck         string
	Bolus           string
	SnackBolus      string
	MealBolus       string
	CorrectionBolus string
	Carb            string
	CarbCorrection  string
	ComboBolus      string
	Note            string
	Exercise        string
	SiteChange      string
	SensorChange    string
	TempBasal       string
	ProfileSwitch   string
	TemporaryTarget string
}{
	BGCheck:         "BG Check",
	Bolus:           "Bolus",
	SnackBolus:      "Snack Bolus",
	MealBolus:       "Meal Bolus",
	CorrectionBolus: "Correction Bolus",
	Carb:            "Carb",
	CarbCorrection:  "Carb Correction",
	ComboBolus:      "Combo Bolus",
	Note:            "Note",
	Exercise:        "Exercise",
	SiteChange:      "Site Change",
	SensorChange:    "Sensor Change",
	TempBasal:       "Temp Basal",
	ProfileSwitch:   "Profile Switch",
	TemporaryTarget: "Temporary Target",
}
