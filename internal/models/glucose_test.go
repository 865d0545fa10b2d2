package models

import (
	"testing"
	"time"
)

func TestGlucoseEntry_TrendArrow(t *testing.T) {
	tests := []struct {
		name      string
		direction string
		trend     int
		expected  string
	}{
		{"DoubleUp direction", "DoubleUp", 0, "⇈"},
		{"Flat direction", "Flat", 0, "→"},
		{"DoubleDown direction", "DoubleDown", 0, "⇊"},
		{"Empty direction with trend 1", "", 1, "⇈"},
		{"Empty direction with trend 7", "", 7, "⇊"},
		{"Unknown direction", "Unknown", 0, "-"},
		{"NOT COMPUTABLE", "NOT COMPUTABLE", 0, "?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &GlucoseEntry{
				Direction: tt.direction,
				Trend:     tt.trend,
			}
			result := entry.TrendArrow()
			if result != tt.expected {
				t.Errorf("TrendArrow() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestGlucoseEntry_ValueMmolL(t *testing.T) {
	tests := []struct {
		name     string
		sgv      int
		expected float64
	}{
		{"100 mg/dL", 100, 5.55},
		{"180 mg/dL", 180, 9.99},
		{"70 mg/dL", 70, 3.89},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &GlucoseEntry{SGV: tt.sgv}
			result := entry.ValueMmolL()
			if result < tt.expected-0.1 || result > tt.expected+0.1 {
				t.Errorf("ValueMmolL() = %f, want approximately %f", result, tt.expected)
			}
		})
	}
}

func TestGlucoseEntry_ToReading(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)
	entry := &GlucoseEntry{SGV: 142, Date: now.UnixMilli(), Direction: "FortyFiveUp"}

	r := entry.ToReading()
	if r.Value != 142 {
		t.Errorf("Value = %v, want 142", r.Value)
	}
	if !r.Timestamp.Equal(now) {
		t.Errorf("Timestamp = %v, want %v", r.Timestamp, now)
	}
	if r.Source != SourceDeviceSync {
		t.Errorf("Source = %s, want %s", r.Source, SourceDeviceSync)
	}
	if r.Direction != "FortyFiveUp" {
		t.Errorf("Direction = %s, want FortyFiveUp", r.Direction)
	}
}

func TestEntriesToReadings_SkipsEmpty(t *testing.T) {
	entries := []GlucoseEntry{
		{SGV: 110, Date: 1000},
		{SGV: 0, Date: 2000},
		{SGV: 120, Date: 0},
		{SGV: 130, Date: 3000},
	}

	readings := EntriesToReadings(entries)
	if len(readings) != 2 {
		t.Fatalf("len(readings) = %d, want 2", len(readings))
	}
	if readings[1].Value != 130 {
		t.Errorf("readings[1].Value = %v, want 130", readings[1].Value)
	}
}

func TestUnitConversionRoundTrip(t *testing.T) {
	got := ToMgdl(ToMmol(180))
	if got < 179.99 || got > 180.01 {
		t.Errorf("ToMgdl(ToMmol(180)) = %f, want 180", got)
	}
}
