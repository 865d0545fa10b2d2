// Package models contains data structures used throughout the application
package models

import "fmt"

// Category is the profile setting an adjustment applies to
type Category string

const (
	CategoryBasal       Category = "basal"
	CategoryCarbRatio   Category = "carbRatio"
	CategorySensitivity Category = "sensitivity"
	CategoryTarget      Category = "target"
)

// Priority is an ordered severity tag, Low < Medium < High
type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityMedium
	PriorityHigh
)

// Confidence is an ordered reliability tag, Low < Medium < High
type Confidence int

const (
	ConfidenceLow Confidence = iota + 1
	ConfidenceMedium
	ConfidenceHigh
)

var levelNames = map[int]string{1: "low", 2: "medium", 3: "high"}

func parseLevel(kind, s string) (int, error) {
	for level, name := range levelNames {
		if name == s {
			return level, nil
		}
	}
	return 0, fmt.Errorf("unknown %s %q", kind, s)
}

func (p Priority) String() string { return levelNames[int(p)] }

// MarshalText implements encoding.TextMarshaler
func (p Priority) MarshalText() ([]byte, error) {
	if _, ok := levelNames[int(p)]; !ok {
		return nil, fmt.Errorf("invalid priority %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (p *Priority) UnmarshalText(b []byte) error {
	level, err := parseLevel("priority", string(b))
	if err != nil {
		return err
	}
	*p = Priority(level)
	return nil
}

func (c Confidence) String() string { return levelNames[int(c)] }

// MarshalText implements encoding.TextMarshaler
func (c Confidence) MarshalText() ([]byte, error) {
	if _, ok := levelNames[int(c)]; !ok {
		return nil, fmt.Errorf("invalid confidence %d", int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (c *Confidence) UnmarshalText(b []byte) error {
	level, err := parseLevel("confidence", string(b))
	if err != nil {
		return err
	}
	*c = Confidence(level)
	return nil
}

// AdjustmentSuggestion is one proposed change to a profile segment
type AdjustmentSuggestion struct {
	Category        Category   `json:"category" yaml:"category"`
	TimeSlot        string     `json:"timeSlot" yaml:"timeSlot"`
	CurrentValue    float64    `json:"currentValue" yaml:"currentValue"`
	SuggestedValue  float64    `json:"suggestedValue" yaml:"suggestedValue"`
	PercentageDelta float64    `json:"percentageDelta" yaml:"percentageDelta"`
	Rationale       string     `json:"rationale" yaml:"rationale"`
	Confidence      Confidence `json:"confidence" yaml:"confidence"`
	Priority        Priority   `json:"priority" yaml:"priority"`
}

// DataQuality classifies reading density
type DataQuality string

const (
	DataQualityPoor      DataQuality = "poor"
	DataQualityFair      DataQuality = "fair"
	DataQualityGood      DataQuality = "good"
	DataQualityExcellent DataQuality = "excellent"
)

// GlycemicMetrics are the published summary statistics, rounded to whole numbers
type GlycemicMetrics struct {
	TimeInRangePct            float64     `json:"timeInRange" yaml:"timeInRange"`
	TimeAbovePct              float64     `json:"timeAboveRange" yaml:"timeAboveRange"`
	TimeBelowPct              float64     `json:"timeBelowRange" yaml:"timeBelowRange"`
	MeanGlucose               float64     `json:"averageGlucose" yaml:"averageGlucose"`
	CoefficientOfVariationPct float64     `json:"glucoseVariability" yaml:"glucoseVariability"`
	DataQuality               DataQuality `json:"dataQuality" yaml:"dataQuality"`
}

// AnalysisResult is the output of one therapy analysis
type AnalysisResult struct {
	BasalAdjustments       []AdjustmentSuggestion `json:"basalAdjustments" yaml:"basalAdjustments"`
	CarbRatioAdjustments   []AdjustmentSuggestion `json:"carbRatioAdjustments" yaml:"carbRatioAdjustments"`
	SensitivityAdjustments []AdjustmentSuggestion `json:"sensitivityAdjustments" yaml:"sensitivityAdjustments"`
	TargetAdjustments      []AdjustmentSuggestion `json:"targetAdjustments" yaml:"targetAdjustments"`
	SensitivityReview      string                 `json:"sensitivityReview,omitempty" yaml:"sensitivityReview,omitempty"` // Non-actionable, set when variability is high
	OverallRecommendations []string               `json:"overallRecommendations" yaml:"overallRecommendations"`
	SafetyWarnings         []string               `json:"safetyWarnings" yaml:"safetyWarnings"`
	Metrics                GlycemicMetrics        `json:"analysisMetrics" yaml:"analysisMetrics"`
}

// AllAdjustments returns every suggestion in category order
func (r *AnalysisResult) AllAdjustments() []AdjustmentSuggestion {
	all := make([]AdjustmentSuggestion, 0,
		len(r.BasalAdjustments)+len(r.CarbRatioAdjustments)+len(r.SensitivityAdjustments)+len(r.TargetAdjustments))
	all = append(all, r.BasalAdjustments...)
	all = append(all, r.CarbRatioAdjustments...)
	all = append(all, r.SensitivityAdjustments...)
	all = append(all, r.TargetAdjustments...)
	return all
}
