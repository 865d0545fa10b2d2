// Package models contains data structures used throughout the application
package models

import (
	"fmt"
	"strconv"
	"strings"
)

// TherapySegment is a time-anchored profile value, active from Start until the next segment
type TherapySegment struct {
	Start string  `json:"time" yaml:"time"` // "HH:MM"
	Value float64 `json:"value" yaml:"value"`
}

// Minutes returns the segment start as minutes since midnight
func (s TherapySegment) Minutes() (int, error) {
	return ParseClock(s.Start)
}

// TherapyProfile is the insulin-therapy profile the analysis is run against
type TherapyProfile struct {
	Basal       []TherapySegment `json:"basal" yaml:"basal"`             // U/h
	CarbRatio   []TherapySegment `json:"carbratio" yaml:"carbratio"`     // g/U
	Sensitivity []TherapySegment `json:"sens" yaml:"sens"`               // mg/dL per U
	TargetLow   []TherapySegment `json:"target_low" yaml:"target_low"`   // mg/dL
	TargetHigh  []TherapySegment `json:"target_high" yaml:"target_high"` // mg/dL
	DIA         float64          `json:"dia" yaml:"dia"`                 // Duration of insulin action, hours
	Units       string           `json:"units" yaml:"units"`
}

// Clone returns a deep copy of the profile
func (p *TherapyProfile) Clone() *TherapyProfile {
	return &TherapyProfile{
		Basal:       cloneSegments(p.Basal),
		CarbRatio:   cloneSegments(p.CarbRatio),
		Sensitivity: cloneSegments(p.Sensitivity),
		TargetLow:   cloneSegments(p.TargetLow),
		TargetHigh:  cloneSegments(p.TargetHigh),
		DIA:         p.DIA,
		Units:       p.Units,
	}
}

func cloneSegments(in []TherapySegment) []TherapySegment {
	if in == nil {
		return nil
	}
	out := make([]TherapySegment, len(in))
	copy(out, in)
	return out
}

// ParseClock parses "HH:MM" (or "H:MM", or a bare hour) into minutes since midnight
func ParseClock(s string) (int, error) {
	hourPart, minutePart, hasMinutes := strings.Cut(strings.TrimSpace(s), ":")
	hour, err := strconv.Atoi(hourPart)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	minute := 0
	if hasMinutes {
		minute, err = strconv.Atoi(minutePart)
		if err != nil {
			return 0, fmt.Errorf("invalid time %q: %w", s, err)
		}
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("time %q out of range", s)
	}
	return hour*60 + minute, nil
}

// FormatClock renders minutes since midnight as "HH:MM"
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
