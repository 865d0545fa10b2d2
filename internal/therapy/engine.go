// Package therapy turns glucose patterns into suggested insulin-therapy adjustments
package therapy

import (
	"time"

	"github.com/mrcode/nightscout-therapy/internal/models"
)

// readingsPerAnalysisDay is the minimum sample density required by the gate
const readingsPerAnalysisDay = 24

// Input is everything one analysis needs
type Input struct {
	Readings     []models.GlucoseReading
	Profile      *models.TherapyProfile
	Thresholds   models.Thresholds
	AnalysisDays int
	// Optional; only read by the pattern analyzer
	Treatments  []models.Treatment
	ElapsedDays float64
}

// Engine runs the therapy analysis. It holds no mutable state and is safe for concurrent use.
type Engine struct {
	Patterns PatternAnalyzer
	// Location used to read clock hours off timestamps; nil uses each timestamp's own zone
	Location *time.Location
}

// NewEngine creates an engine. patterns may be nil to disable treatment-based suggestions.
func NewEngine(patterns PatternAnalyzer) *Engine {
	return &Engine{Patterns: patterns}
}

// MinimumReadings returns the sample count required for an analysis window of days
func MinimumReadings(days int) int {
	if days < 1 {
		days = 1
	}
	return days * readingsPerAnalysisDay
}

// normalizedProfile is the engine's private copy of the profile segment lists
type normalizedProfile struct {
	basal     []Segment
	carbRatio []Segment
	targetLow []Segment
}

func requiredSegments(field string, in []models.TherapySegment) ([]Segment, error) {
	if len(in) == 0 {
		return nil, &InvalidProfileError{Field: field}
	}
	segs, err := NormalizeSegments(in)
	if err != nil {
		return nil, &InvalidProfileError{Field: field, Err: err}
	}
	return segs, nil
}

func normalizeProfile(p *models.TherapyProfile) (*normalizedProfile, error) {
	if p == nil {
		return nil, &InvalidProfileError{Field: "profile"}
	}

	basal, err := requiredSegments("basal", p.Basal)
	if err != nil {
		return nil, err
	}
	carbRatio, err := requiredSegments("carbratio", p.CarbRatio)
	if err != nil {
		return nil, err
	}
	if len(p.TargetLow) == 0 {
		return nil, &InvalidProfileError{Field: "target_low"}
	}
	// Every low target is reported as given, so no midnight entry is added
	targetLow, err := sortedSegments(p.TargetLow)
	if err != nil {
		return nil, &InvalidProfileError{Field: "target_low", Err: err}
	}

	// Optional lists only need to parse
	if _, err := sortedSegments(p.Sensitivity); err != nil {
		return nil, &InvalidProfileError{Field: "sens", Err: err}
	}
	if _, err := sortedSegments(p.TargetHigh); err != nil {
		return nil, &InvalidProfileError{Field: "target_high", Err: err}
	}

	return &normalizedProfile{basal: basal, carbRatio: carbRatio, targetLow: targetLow}, nil
}

// Analyze checks the input and produces the full analysis result.
// Errors, in check order: ErrNoData, ErrInvalidProfile, ErrInsufficientData.
func (e *Engine) Analyze(in Input) (*models.AnalysisResult, error) {
	if len(in.Readings) == 0 {
		return nil, ErrNoData
	}

	profile, err := normalizeProfile(in.Profile)
	if err != nil {
		return nil, err
	}

	if required := MinimumReadings(in.AnalysisDays); len(in.Readings) < required {
		return nil, &InsufficientDataError{Readings: len(in.Readings), Required: required}
	}

	stats, err := ComputeStats(in.Readings, in.Thresholds)
	if err != nil {
		return nil, err
	}

	buckets := bucketByHour(in.Readings, e.Location)

	basal := analyzeBasal(&buckets, profile.basal, in.Thresholds)
	carbRatio := analyzeCarbRatios(&buckets, profile.carbRatio, in.Thresholds)
	if s, ok := patternSuggestion(e.Patterns, in.Treatments, in.ElapsedDays, profile.carbRatio); ok {
		carbRatio = append(carbRatio, s)
	}
	sensitivity, review := analyzeSensitivity(stats)
	targets := analyzeTargets(profile.targetLow, stats)

	recommendations, warnings := synthesize(narrative{stats: stats, basal: basal, carb: carbRatio})

	return &models.AnalysisResult{
		BasalAdjustments:       basal,
		CarbRatioAdjustments:   carbRatio,
		SensitivityAdjustments: sensitivity,
		TargetAdjustments:      targets,
		SensitivityReview:      review,
		OverallRecommendations: recommendations,
		SafetyWarnings:         warnings,
		Metrics:                stats.Metrics(),
	}, nil
}
