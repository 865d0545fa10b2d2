// Package models contains data structures used throughout the application
package models

import "time"

// AnalysisRun is one stored analysis: the result plus the context it was produced in
type AnalysisRun struct {
	ID           string          `json:"id" yaml:"id"`
	CreatedAt    time.Time       `json:"createdAt" yaml:"createdAt"`
	AnalysisDays int             `json:"analysisDays" yaml:"analysisDays"`
	ReadingCount int             `json:"readingCount" yaml:"readingCount"`
	Thresholds   Thresholds      `json:"thresholds" yaml:"thresholds"`
	Source       string          `json:"source" yaml:"source"` // "nightscout" or "file"
	Latest       *LatestReading  `json:"latest,omitempty" yaml:"latest,omitempty"`
	Result       *AnalysisResult `json:"result" yaml:"result"`
}

// LatestReading is the newest glucose value of the analysis window
type LatestReading struct {
	Time   time.Time `json:"time" yaml:"time"`
	MgDL   int       `json:"mgdl" yaml:"mgdl"`
	MmolL  float64   `json:"mmol" yaml:"mmol"`
	Trend  string    `json:"trend" yaml:"trend"`
	Status string    `json:"status" yaml:"status"` // low, normal or high
}

// ShortID returns the first eight characters of the run ID
func (r *AnalysisRun) ShortID() string {
	if len(r.ID) > 8 {
		return r.ID[:8]
	}
	return r.ID
}
