package therapy

import (
	"time"

	"github.com/mrcode/nightscout-therapy/internal/models"
)

var (
	testDay        = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	testThresholds = models.Thresholds{Low: 70, High: 180}
)

// atHour returns count readings of value spread across the given clock hour of testDay
func atHour(hour, count int, value float64) []models.GlucoseReading {
	out := make([]models.GlucoseReading, 0, count)
	for i := 0; i < count; i++ {
		ts := testDay.Add(time.Duration(hour)*time.Hour + time.Duration(i%60)*time.Minute)
		out = append(out, models.GlucoseReading{Value: value, Timestamp: ts, Source: models.SourceDeviceSync})
	}
	return out
}

// spread returns count readings of value evenly spaced over days starting at testDay
func spread(days, count int, value float64) []models.GlucoseReading {
	step := time.Duration(days) * 24 * time.Hour / time.Duration(count)
	out := make([]models.GlucoseReading, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, models.GlucoseReading{
			Value:     value,
			Timestamp: testDay.Add(time.Duration(i) * step),
			Source:    models.SourceDeviceSync,
		})
	}
	return out
}

func testProfile() *models.TherapyProfile {
	return &models.TherapyProfile{
		Basal:       []models.TherapySegment{{Start: "00:00", Value: 0.8}, {Start: "06:00", Value: 1.0}},
		CarbRatio:   []models.TherapySegment{{Start: "00:00", Value: 10}},
		Sensitivity: []models.TherapySegment{{Start: "00:00", Value: 50}},
		TargetLow:   []models.TherapySegment{{Start: "00:00", Value: 90}, {Start: "22:00", Value: 100}},
		TargetHigh:  []models.TherapySegment{{Start: "00:00", Value: 120}},
		DIA:         4,
		Units:       "mg/dl",
	}
}

func testEngine() *Engine {
	e := NewEngine(nil)
	e.Location = time.UTC
	return e
}

func bucketsOf(readings ...[]models.GlucoseReading) hourlyValues {
	var all []models.GlucoseReading
	for _, r := range readings {
		all = append(all, r...)
	}
	return bucketByHour(all, time.UTC)
}

func mustNormalize(in ...models.TherapySegment) []Segment {
	segs, err := NormalizeSegments(in)
	if err != nil {
		panic(err)
	}
	return segs
}
