// Package models contains data structures used throughout the application
package models

import (
	"math"
	"time"
)

// ReadingSource tells where a glucose reading came from
type ReadingSource string

const (
	SourceManual     ReadingSource = "manual"
	SourceDeviceSync ReadingSource = "device-sync"
)

// GlucoseReading is a single blood-glucose measurement as consumed by the analysis engine
type GlucoseReading struct {
	Value     float64       `json:"value" yaml:"value"` // mg/dL
	Timestamp time.Time     `json:"timestamp" yaml:"timestamp"`
	Direction string        `json:"direction,omitempty" yaml:"direction,omitempty"`
	Source    ReadingSource `json:"source" yaml:"source"`
}

// Thresholds is the low/high glucose band used to classify readings (mg/dL)
type Thresholds struct {
	Low  float64 `json:"low" yaml:"low"`
	High float64 `json:"high" yaml:"high"`
}

// GlucoseEntry represents a single glucose reading from Nightscout
type GlucoseEntry struct {
	ID        string `json:"_id"`
	SGV       int    `json:"sgv"`  // Sensor glucose value in mg/dL
	Date      int64  `json:"date"` // Unix timestamp in milliseconds
	DateStr   string `json:"dateString"`
	Trend     int    `json:"trend"`     // Trend direction (1-7)
	Direction string `json:"direction"` // Trend direction as string
	Device    string `json:"device"`
	Type      string `json:"type"`
	Mills     int64  `json:"mills"`
}

// Time returns the time of the glucose entry
func (g *GlucoseEntry) Time() time.Time {
	return time.UnixMilli(g.Date)
}

// ValueMgDL returns the glucose value in mg/dL
func (g *GlucoseEntry) ValueMgDL() int {
	return g.SGV
}

// ValueMmolL returns the glucose value in mmol/L
func (g *GlucoseEntry) ValueMmolL() float64 {
	return ToMmol(float64(g.SGV))
}

// ToReading converts a Nightscout entry into an engine reading
func (g *GlucoseEntry) ToReading() GlucoseReading {
	return GlucoseReading{
		Value:     float64(g.SGV),
		Timestamp: g.Time(),
		Direction: g.Direction,
		Source:    SourceDeviceSync,
	}
}

// EntryFromReading converts a reading back into the Nightscout entry shape
func EntryFromReading(r GlucoseReading) GlucoseEntry {
	return GlucoseEntry{
		SGV:       int(math.Round(r.Value)),
		Date:      r.Timestamp.UnixMilli(),
		Direction: r.Direction,
	}
}

// EntriesToReadings converts Nightscout entries, dropping entries without a glucose value
func EntriesToReadings(entries []GlucoseEntry) []GlucoseReading {
	readings := make([]GlucoseReading, 0, len(entries))
	for i := range entries {
		if entries[i].SGV <= 0 || entries[i].Date <= 0 {
			continue
		}
		readings = append(readings, entries[i].ToReading())
	}
	return readings
}

// TrendArrow returns the Unicode arrow character for the trend
func (g *GlucoseEntry) TrendArrow() string {
	arrows := map[string]string{
		"DoubleUp":          "⇈",
		"SingleUp":          "↑",
		"FortyFiveUp":       "↗",
		"Flat":              "→",
		"FortyFiveDown":     "↘",
		"SingleDown":        "↓",
		"DoubleDown":        "⇊",
		"NOT COMPUTABLE":    "?",
		"RATE OUT OF RANGE": "⚠",
	}

	if g.Direction != "" {
		if arrow, ok := arrows[g.Direction]; ok {
			return arrow
		}
	}

	// Fallback to numeric trend
	numericArrows := map[int]string{
		1: "⇈",
		2: "↑",
		3: "↗",
		4: "→",
		5: "↘",
		6: "↓",
		7: "⇊",
	}

	if arrow, ok := numericArrows[g.Trend]; ok {
		return arrow
	}

	return "-"
}

// ServerStatus represents the Nightscout server status
type ServerStatus struct {
	Status            string         `json:"status"`
	Name              string         `json:"name"`
	Version           string         `json:"version"`
	ServerTime        string         `json:"serverTime"`
	APIEnabled        bool           `json:"apiEnabled"`
	CareportalEnabled bool           `json:"careportalEnabled"`
	Head              string         `json:"head"`
	Settings          ServerSettings `json:"settings,omitempty"`
}

// ServerSettings contains Nightscout server settings
type ServerSettings struct {
	Units      string           `json:"units"`
	TimeFormat int              `json:"timeFormat"`
	Language   string           `json:"language"`
	Thresholds ServerThresholds `json:"thresholds,omitempty"`
}

// ServerThresholds contains glucose threshold settings as configured on the server
type ServerThresholds struct {
	BGHigh         int `json:"bgHigh"`
	BGLow          int `json:"bgLow"`
	BGTargetTop    int `json:"bgTargetTop"`
	BGTargetBottom int `json:"bgTargetBottom"`
}

// ToMmol converts a mg/dL value to mmol/L
func ToMmol(mgdl float64) float64 {
	return mgdl / 18.0182
}

// ToMgdl converts a mmol/L value to mg/dL
func ToMgdl(mmol float64) float64 {
	return mmol * 18.0182
}
