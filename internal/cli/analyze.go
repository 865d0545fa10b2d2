// Package cli implements the nightscout-therapy command line
package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/mrcode/nightscout-therapy/internal/app"
	"github.com/mrcode/nightscout-therapy/internal/history"
	"github.com/mrcode/nightscout-therapy/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type analyzeFlags struct {
	days       int
	readings   string
	profile    string
	treatments string
	report     string
	notify     bool
	export     bool
	noHistory  bool
	timezone   string
	timeout    time.Duration
}

func newAnalyzeCmd() *cobra.Command {
	var f analyzeFlags

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze glucose data and suggest therapy adjustments",
		Long: `Analyze CGM readings against the therapy profile.

Inputs come from Nightscout unless given as files. At least 24 readings per
analyzed day are required.

Examples:
  nightscout-therapy analyze --days 7
  nightscout-therapy analyze --readings week.json --profile profile.yaml -o json
  nightscout-therapy analyze --report therapy.png --notify --export`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, f)
		},
	}

	cmd.Flags().IntVarP(&f.days, "days", "d", 0, "Days to analyze, 1-7 (default: settings)")
	cmd.Flags().StringVar(&f.readings, "readings", "", "Readings JSON file instead of Nightscout entries")
	cmd.Flags().StringVar(&f.profile, "profile", "", "Profile YAML or JSON file instead of the Nightscout profile")
	cmd.Flags().StringVar(&f.treatments, "treatments", "", "Treatments JSON file instead of Nightscout treatments")
	cmd.Flags().StringVar(&f.report, "report", "", "Write a PNG report to this path")
	cmd.Flags().BoolVar(&f.notify, "notify", false, "Send a desktop notification for safety warnings")
	cmd.Flags().BoolVar(&f.export, "export", false, "Upload the run and report to the configured S3 bucket")
	cmd.Flags().BoolVar(&f.noHistory, "no-history", false, "Do not store the run in the history database")
	cmd.Flags().StringVar(&f.timezone, "tz", "", "Time zone for hourly analysis, e.g. Europe/Berlin (default: reading timestamps)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 2*time.Minute, "Overall timeout for fetching and export")
	return cmd
}

func runAnalyze(cmd *cobra.Command, f analyzeFlags) error {
	settings, cfgPath, err := loadSettings()
	if err != nil {
		return err
	}

	req := app.Request{
		Days:           f.days,
		ReadingsFile:   f.readings,
		ProfileFile:    f.profile,
		TreatmentsFile: f.treatments,
		ReportPath:     f.report,
		Notify:         f.notify,
		Export:         f.export,
		SaveHistory:    !f.noHistory,
	}
	if f.timezone != "" {
		loc, err := time.LoadLocation(f.timezone)
		if err != nil {
			return fmt.Errorf("invalid --tz: %w", err)
		}
		req.Location = loc
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), f.timeout)
	defer cancel()

	opts := []app.Option{app.WithConfigPath(cfgPath)}
	if req.SaveHistory {
		store, err := openHistory(ctx, settings)
		if err != nil {
			// History is on by default, a broken store should not block the analysis
			log.Warn().Err(err).Msg("history unavailable, run will not be stored")
			req.SaveHistory = false
		} else {
			defer func() { _ = store.Close() }()
			opts = append(opts, app.WithHistory(store))
		}
	}

	svc := app.NewService(settings, opts...)
	run, runErr := svc.Analyze(ctx, req)
	if run == nil {
		return runErr
	}

	// A run can come back together with a history error; show it before failing
	unit := svc.GetSettings().Unit
	err = render(cmd.OutOrStdout(), flags.output, run.AnalysisRun, func(w io.Writer) error {
		if err := printRun(w, run.AnalysisRun, unit); err != nil {
			return err
		}
		printArtifacts(w, run)
		return nil
	})
	if runErr != nil {
		return runErr
	}
	return err
}

// openHistory opens the configured history store
func openHistory(ctx context.Context, settings *models.Settings) (*history.Store, error) {
	dsn, err := historyDSN(settings)
	if err != nil {
		return nil, err
	}
	return history.Open(ctx, dsn)
}

func printArtifacts(w io.Writer, run *app.Run) {
	if run.ReportPath == "" && len(run.ExportKeys) == 0 && !run.HistorySaved && !run.Notified {
		return
	}
	fmt.Fprintln(w)
	if run.HistorySaved {
		fmt.Fprintf(w, "Saved as %s\n", run.ShortID())
	}
	if run.ReportPath != "" {
		fmt.Fprintf(w, "Report: %s\n", run.ReportPath)
	}
	for _, k := range run.ExportKeys {
		fmt.Fprintf(w, "Exported: %s\n", k)
	}
	if run.Notified {
		fmt.Fprintln(w, "Safety notification sent")
	}
}
