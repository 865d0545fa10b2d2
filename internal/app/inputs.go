// Package app provides the main application logic
package app

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mrcode/nightscout-therapy/internal/models"
	"gopkg.in/yaml.v3"
)

// fileReading accepts both the plain reading format and Nightscout sgv entries
type fileReading struct {
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
	Direction string    `json:"direction"`
	SGV       int       `json:"sgv"`
	Date      int64     `json:"date"`
}

// LoadReadings reads a JSON array of readings ({"value","timestamp"}) or Nightscout entries ({"sgv","date"})
func LoadReadings(path string) ([]models.GlucoseReading, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Input path is chosen by the user
	if err != nil {
		return nil, err
	}

	var raw []fileReading
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing readings %s: %w", path, err)
	}

	readings := make([]models.GlucoseReading, 0, len(raw))
	for i, r := range raw {
		if r.SGV > 0 {
			entry := models.GlucoseEntry{SGV: r.SGV, Date: r.Date, Direction: r.Direction}
			if entry.Date <= 0 {
				return nil, fmt.Errorf("reading %d in %s has no date", i, path)
			}
			readings = append(readings, entry.ToReading())
			continue
		}
		if r.Timestamp.IsZero() {
			return nil, fmt.Errorf("reading %d in %s has no timestamp", i, path)
		}
		readings = append(readings, models.GlucoseReading{
			Value:     r.Value,
			Timestamp: r.Timestamp,
			Direction: r.Direction,
			Source:    models.SourceManual,
		})
	}
	return readings, nil
}

// LoadProfile reads a therapy profile from YAML or JSON
func LoadProfile(path string) (*models.TherapyProfile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Input path is chosen by the user
	if err != nil {
		return nil, err
	}

	var profile models.TherapyProfile
	// JSON is valid YAML, one decoder covers both
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parsing profile %s: %w", path, err)
	}
	return &profile, nil
}

// LoadTreatments reads a JSON array of Nightscout treatments
func LoadTreatments(path string) ([]models.Treatment, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Input path is chosen by the user
	if err != nil {
		return nil, err
	}

	var treatments []models.Treatment
	if err := json.Unmarshal(data, &treatments); err != nil {
		return nil, fmt.Errorf("parsing treatments %s: %w", path, err)
	}
	return treatments, nil
}
