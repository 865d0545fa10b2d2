// Package telemetry exposes analysis results as Prometheus metrics for the node_exporter textfile collector
package telemetry

import (
	"fmt"

	"github.com/mrcode/nightscout-therapy/internal/models"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "nightscout_therapy"

var (
	categories = []models.Category{
		models.CategoryBasal, models.CategoryCarbRatio, models.CategorySensitivity, models.CategoryTarget,
	}
	priorities = []models.Priority{models.PriorityLow, models.PriorityMedium, models.PriorityHigh}
	qualities  = []models.DataQuality{
		models.DataQualityPoor, models.DataQualityFair, models.DataQualityGood, models.DataQualityExcellent,
	}
)

// Collector holds the gauges for the latest analysis run in its own registry
type Collector struct {
	registry *prometheus.Registry

	timeInRange prometheus.Gauge
	timeAbove   prometheus.Gauge
	timeBelow   prometheus.Gauge
	meanGlucose prometheus.Gauge
	variability prometheus.Gauge
	readings    prometheus.Gauge
	warnings    prometheus.Gauge
	lastRun     prometheus.Gauge
	suggestions *prometheus.GaugeVec
	dataQuality *prometheus.GaugeVec
}

func gauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
}

// NewCollector creates a collector with a fresh registry
func NewCollector() *Collector {
	c := &Collector{
		registry:    prometheus.NewRegistry(),
		timeInRange: gauge("time_in_range_percent", "Percent of readings inside the target range."),
		timeAbove:   gauge("time_above_range_percent", "Percent of readings above the target range."),
		timeBelow:   gauge("time_below_range_percent", "Percent of readings below the target range."),
		meanGlucose: gauge("mean_glucose_mgdl", "Mean glucose in mg/dL."),
		variability: gauge("glucose_cv_percent", "Coefficient of variation of glucose in percent."),
		readings:    gauge("readings", "Number of readings analyzed."),
		warnings:    gauge("safety_warnings", "Number of safety warnings in the last analysis."),
		lastRun:     gauge("last_run_timestamp_seconds", "Unix time of the last analysis run."),
		suggestions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "suggestions",
			Help:      "Suggested adjustments by category and priority.",
		}, []string{"category", "priority"}),
		dataQuality: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "data_quality",
			Help:      "Data quality of the last analysis, 1 for the active level.",
		}, []string{"level"}),
	}

	c.registry.MustRegister(
		c.timeInRange, c.timeAbove, c.timeBelow, c.meanGlucose, c.variability,
		c.readings, c.warnings, c.lastRun, c.suggestions, c.dataQuality,
	)
	return c
}

// Registry returns the registry holding the gauges
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Observe sets every gauge from a run
func (c *Collector) Observe(run *models.AnalysisRun) error {
	if run == nil || run.Result == nil {
		return fmt.Errorf("no analysis result to observe")
	}
	m := run.Result.Metrics

	c.timeInRange.Set(m.TimeInRangePct)
	c.timeAbove.Set(m.TimeAbovePct)
	c.timeBelow.Set(m.TimeBelowPct)
	c.meanGlucose.Set(m.MeanGlucose)
	c.variability.Set(m.CoefficientOfVariationPct)
	c.readings.Set(float64(run.ReadingCount))
	c.warnings.Set(float64(len(run.Result.SafetyWarnings)))
	c.lastRun.Set(float64(run.CreatedAt.Unix()))

	// Every label pair is written so absent suggestions read as zero
	counts := make(map[models.Category]map[models.Priority]int)
	for _, s := range run.Result.AllAdjustments() {
		if counts[s.Category] == nil {
			counts[s.Category] = make(map[models.Priority]int)
		}
		counts[s.Category][s.Priority]++
	}
	for _, cat := range categories {
		for _, p := range priorities {
			c.suggestions.WithLabelValues(string(cat), p.String()).Set(float64(counts[cat][p]))
		}
	}

	for _, q := range qualities {
		v := 0.0
		if q == m.DataQuality {
			v = 1
		}
		c.dataQuality.WithLabelValues(string(q)).Set(v)
	}
	return nil
}

// WriteTextfile writes the registry in the text exposition format, atomically replacing path
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
