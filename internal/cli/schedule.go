// Package cli implements the nightscout-therapy command line
package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/mrcode/nightscout-therapy/internal/schedule"
	"github.com/spf13/cobra"
)

func newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the analysis once a day in the background",
		Long: `Install a daily analysis job: a systemd user timer on Linux, a LaunchAgent
on macOS or a scheduled task on Windows. The job runs 'analyze' with the
saved settings, so history, reports, metrics and export follow the config.

Examples:
  nightscout-therapy schedule enable --at 07:30 --notify
  nightscout-therapy schedule status
  nightscout-therapy schedule disable`,
	}
	cmd.AddCommand(newScheduleEnableCmd(), newScheduleDisableCmd(), newScheduleStatusCmd())
	return cmd
}

type scheduleFlags struct {
	at     string
	days   int
	notify bool
	export bool
}

// scheduledArgs builds the analyze invocation the job runs
func scheduledArgs(f scheduleFlags, cfgFile string) ([]string, error) {
	args := []string{"analyze"}
	if cfgFile != "" {
		abs, err := filepath.Abs(cfgFile)
		if err != nil {
			return nil, err
		}
		args = append(args, "--config", abs)
	}
	if f.days > 0 {
		args = append(args, "--days", strconv.Itoa(f.days))
	}
	if f.notify {
		args = append(args, "--notify")
	}
	if f.export {
		args = append(args, "--export")
	}
	return args, nil
}

func newScheduleEnableCmd() *cobra.Command {
	var f scheduleFlags

	cmd := &cobra.Command{
		Use:   "enable",
		Short: "Install or replace the daily job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.days < 0 || f.days > 7 {
				return fmt.Errorf("--days must be between 1 and 7, got %d", f.days)
			}
			jobArgs, err := scheduledArgs(f, flags.cfgFile)
			if err != nil {
				return err
			}
			if err := schedule.Enable(schedule.Job{At: f.at, Args: jobArgs}); err != nil {
				return fmt.Errorf("enabling schedule: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Daily analysis scheduled at %s\n", f.at)
			return nil
		},
	}
	cmd.Flags().StringVar(&f.at, "at", "07:00", "Local time of day to run (HH:MM)")
	cmd.Flags().IntVarP(&f.days, "days", "d", 0, "Analysis window in days (default: from settings)")
	cmd.Flags().BoolVar(&f.notify, "notify", true, "Send a desktop notification for safety warnings")
	cmd.Flags().BoolVar(&f.export, "export", false, "Upload each run to the configured S3 bucket")
	return cmd
}

func newScheduleDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable",
		Short: "Remove the daily job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := schedule.Disable(); err != nil {
				return fmt.Errorf("disabling schedule: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Daily analysis removed")
			return nil
		},
	}
}

func newScheduleStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the daily job is installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled, err := schedule.IsEnabled()
			if err != nil {
				return err
			}
			status := map[string]bool{"enabled": enabled}
			return render(cmd.OutOrStdout(), flags.output, status, func(w io.Writer) error {
				if enabled {
					_, err := fmt.Fprintln(w, "Daily analysis: enabled")
					return err
				}
				_, err := fmt.Fprintln(w, "Daily analysis: disabled")
				return err
			})
		},
	}
}
