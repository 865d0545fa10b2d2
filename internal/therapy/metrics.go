// Package therapy turns glucose patterns into suggested insulin-therapy adjustments
package therapy

import (
	"math"
	"sort"
	"time"

	"github.com/mrcode/nightscout-therapy/internal/models"
)

// Data-quality cut-offs in readings per day
const (
	excellentReadingsPerDay = 250
	goodReadingsPerDay      = 200
	fairReadingsPerDay      = 100
)

// Stats holds the unrounded glucose statistics for a reading series
type Stats struct {
	Count          int
	Mean           float64
	StdDev         float64
	InRangePct     float64
	AbovePct       float64
	BelowPct       float64
	CVPct          float64
	ReadingsPerDay float64
	DataQuality    models.DataQuality
}

// ComputeStats calculates the summary statistics of a reading series
func ComputeStats(readings []models.GlucoseReading, th models.Thresholds) (Stats, error) {
	if len(readings) == 0 {
		return Stats{}, ErrNoData
	}

	var sum float64
	var inRange, belowRange, aboveRange int

	for _, r := range readings {
		sum += r.Value

		switch {
		case r.Value < th.Low:
			belowRange++
		case r.Value > th.High:
			aboveRange++
		default:
			inRange++
		}
	}

	n := float64(len(readings))
	stats := Stats{Count: len(readings), Mean: sum / n}

	// Population standard deviation
	var sumSq float64
	for _, r := range readings {
		diff := r.Value - stats.Mean
		sumSq += diff * diff
	}
	stats.StdDev = math.Sqrt(sumSq / n)

	stats.InRangePct = float64(inRange) / n * 100
	stats.BelowPct = float64(belowRange) / n * 100
	stats.AbovePct = float64(aboveRange) / n * 100

	if stats.Mean > 0 {
		stats.CVPct = (stats.StdDev / stats.Mean) * 100
	}

	stats.ReadingsPerDay = readingsPerDay(readings)
	stats.DataQuality = classifyDataQuality(stats.ReadingsPerDay)

	return stats, nil
}

// Metrics rounds the statistics into the published form
func (s Stats) Metrics() models.GlycemicMetrics {
	return models.GlycemicMetrics{
		TimeInRangePct:            math.Round(s.InRangePct),
		TimeAbovePct:              math.Round(s.AbovePct),
		TimeBelowPct:              math.Round(s.BelowPct),
		MeanGlucose:               math.Round(s.Mean),
		CoefficientOfVariationPct: math.Round(s.CVPct),
		DataQuality:               s.DataQuality,
	}
}

// readingsPerDay divides the sample count by the ascending first-to-last span in days.
// A zero span counts as one day.
func readingsPerDay(readings []models.GlucoseReading) float64 {
	times := make([]time.Time, len(readings))
	for i := range readings {
		times[i] = readings[i].Timestamp
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	days := times[len(times)-1].Sub(times[0]).Hours() / 24
	if days <= 0 {
		days = 1
	}
	return float64(len(readings)) / days
}

func classifyDataQuality(perDay float64) models.DataQuality {
	switch {
	case perDay >= excellentReadingsPerDay:
		return models.DataQualityExcellent
	case perDay >= goodReadingsPerDay:
		return models.DataQualityGood
	case perDay >= fairReadingsPerDay:
		return models.DataQualityFair
	default:
		return models.DataQualityPoor
	}
}

// windowStats are the statistics the rule ladders evaluate for one day-part window
type windowStats struct {
	Count    int
	Mean     float64
	BelowPct float64
	AbovePct float64
}

func summarize(values []float64, th models.Thresholds) windowStats {
	if len(values) == 0 {
		return windowStats{}
	}
	var sum float64
	var lows, highs int
	for _, v := range values {
		sum += v
		if v < th.Low {
			lows++
		}
		if v > th.High {
			highs++
		}
	}
	n := float64(len(values))
	return windowStats{
		Count:    len(values),
		Mean:     sum / n,
		BelowPct: float64(lows) / n * 100,
		AbovePct: float64(highs) / n * 100,
	}
}

// hourlyValues buckets reading values by local clock hour
type hourlyValues [24][]float64

func bucketByHour(readings []models.GlucoseReading, loc *time.Location) hourlyValues {
	var buckets hourlyValues
	for _, r := range readings {
		ts := r.Timestamp
		if loc != nil {
			ts = ts.In(loc)
		}
		h := ts.Hour()
		buckets[h] = append(buckets[h], r.Value)
	}
	return buckets
}

// window gathers the values for the given hours, in hour order
func (hv *hourlyValues) window(hours []int) []float64 {
	var out []float64
	for _, h := range hours {
		out = append(out, hv[h]...)
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
