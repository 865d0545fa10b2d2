// Package cli implements the nightscout-therapy command line
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/mrcode/nightscout-therapy/internal/history"
	"github.com/mrcode/nightscout-therapy/internal/models"
	"gopkg.in/yaml.v3"
)

// render writes v as JSON or YAML, or calls table for the table format
func render(w io.Writer, format string, v any, table func(io.Writer) error) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "table", "":
		return table(w)
	default:
		return fmt.Errorf("unknown output format %q (use table, json or yaml)", format)
	}
}

func formatMean(mgdl float64, unit string) string {
	if unit == "mmol/L" {
		return fmt.Sprintf("%.1f mmol/L", models.ToMmol(mgdl))
	}
	return fmt.Sprintf("%.0f mg/dL", mgdl)
}

// printRun writes the human readable view of one run
func printRun(w io.Writer, run *models.AnalysisRun, unit string) error {
	res := run.Result
	m := res.Metrics

	fmt.Fprintf(w, "Analysis %s  (%d days, %d readings, data quality %s)\n",
		run.ShortID(), run.AnalysisDays, run.ReadingCount, m.DataQuality)
	fmt.Fprintf(w, "Created:  %s\n", run.CreatedAt.Local().Format("2006-01-02 15:04"))
	if l := run.Latest; l != nil {
		fmt.Fprintf(w, "Latest:   %s %s (%s) at %s\n",
			formatMean(float64(l.MgDL), unit), l.Trend, l.Status, l.Time.Local().Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(w, "In range: %.0f%%   below: %.0f%%   above: %.0f%%   average: %s   CV: %.0f%%\n\n",
		m.TimeInRangePct, m.TimeBelowPct, m.TimeAbovePct, formatMean(m.MeanGlucose, unit), m.CoefficientOfVariationPct)

	all := res.AllAdjustments()
	if len(all) == 0 {
		fmt.Fprintln(w, "No adjustments suggested.")
	} else {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "CATEGORY\tSLOT\tCURRENT\tSUGGESTED\tCHANGE\tPRIORITY\tCONFIDENCE")
		for _, s := range all {
			fmt.Fprintf(tw, "%s\t%s\t%g\t%g\t%+.1f%%\t%s\t%s\n",
				s.Category, s.TimeSlot, s.CurrentValue, s.SuggestedValue, s.PercentageDelta, s.Priority, s.Confidence)
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		fmt.Fprintln(w)
		fmt.Fprintln(w, "Why:")
		for _, s := range all {
			fmt.Fprintf(w, "  %s %s: %s\n", s.Category, s.TimeSlot, s.Rationale)
		}
	}

	if res.SensitivityReview != "" {
		fmt.Fprintf(w, "\nSensitivity: %s\n", res.SensitivityReview)
	}

	if len(res.OverallRecommendations) > 0 {
		fmt.Fprintln(w, "\nRecommendations:")
		for _, r := range res.OverallRecommendations {
			fmt.Fprintf(w, "  - %s\n", r)
		}
	}

	fmt.Fprintln(w, "\nSafety:")
	for _, s := range res.SafetyWarnings {
		fmt.Fprintf(w, "  %s\n", s)
	}
	return nil
}

// printSummaries writes the history list table
func printSummaries(w io.Writer, runs []history.Summary, unit string) error {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No stored analyses.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tDAYS\tREADINGS\tTIR\tBELOW\tABOVE\tAVERAGE\tCV\tQUALITY\tSUGGESTIONS")
	for _, r := range runs {
		id := r.ID
		if len(id) > 8 {
			id = id[:8]
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.0f%%\t%.0f%%\t%.0f%%\t%s\t%.0f%%\t%s\t%d\n",
			id, r.CreatedAt.Local().Format("2006-01-02 15:04"), r.AnalysisDays, r.ReadingCount,
			r.TimeInRange, r.TimeBelow, r.TimeAbove, formatMean(r.MeanGlucose, unit), r.CV, r.DataQuality, r.Suggestions)
	}
	return tw.Flush()
}
