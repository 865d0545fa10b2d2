// Package cli implements the nightscout-therapy command line
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/mrcode/nightscout-therapy/internal/app"
	"github.com/mrcode/nightscout-therapy/internal/models"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show and initialize settings",
		Long: `View and manage nightscout-therapy settings.

Settings are stored as JSON in the user config directory unless --config
points elsewhere.

Examples:
  nightscout-therapy config init --url https://my.nightscout.site --secret s3cret
  nightscout-therapy config show -o json
  nightscout-therapy config test`,
	}
	cmd.AddCommand(newConfigShowCmd(), newConfigInitCmd(), newConfigTestCmd(), newConfigNotifyTestCmd())
	return cmd
}

const secretMask = "********"

// settingsView flattens settings for display with secrets masked
func settingsView(s *models.Settings) (map[string]any, error) {
	data, err := json.Marshal(s.Clone())
	if err != nil {
		return nil, err
	}
	var view map[string]any
	if err := json.Unmarshal(data, &view); err != nil {
		return nil, err
	}
	for _, key := range []string{"apiSecret", "apiToken"} {
		if v, ok := view[key].(string); ok && v != "" {
			view[key] = secretMask
		}
	}
	return view, nil
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the resolved settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, path, err := loadSettings()
			if err != nil {
				return err
			}
			view, err := settingsView(settings)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), flags.output, view, func(w io.Writer) error {
				fmt.Fprintf(w, "Settings file: %s\n\n", path)
				keys := make([]string, 0, len(view))
				for k := range view {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Fprintf(w, "  %-26s %v\n", k+":", view[k])
				}
				return nil
			})
		},
	}
}

type initFlags struct {
	url        string
	secret     string
	token      string
	unit       string
	low        int
	high       int
	days       int
	historyDSN string
	reportDir  string
	bucket     string
	endpoint   string
	metrics    string
	force      bool
}

func newConfigInitCmd() *cobra.Command {
	var f initFlags

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a settings file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !f.force {
				return fmt.Errorf("%s already exists, use --force to overwrite", path)
			}

			settings := models.DefaultSettings()
			settings.NightscoutURL = f.url
			settings.APISecret = f.secret
			settings.APIToken = f.token
			settings.UseToken = f.token != ""
			settings.Unit = f.unit
			settings.TargetLow = f.low
			settings.TargetHigh = f.high
			settings.AnalysisDays = f.days
			settings.HistoryDSN = f.historyDSN
			settings.ReportDir = f.reportDir
			settings.ExportBucket = f.bucket
			settings.ExportEndpoint = f.endpoint
			settings.ExportPathStyle = f.endpoint != ""
			settings.MetricsTextfile = f.metrics

			svc := app.NewService(models.DefaultSettings(), app.WithConfigPath(path))
			if err := svc.SaveSettings(settings); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Settings written to %s\n", path)
			return nil
		},
	}

	defaults := models.DefaultSettings()
	cmd.Flags().StringVar(&f.url, "url", "", "Nightscout URL")
	cmd.Flags().StringVar(&f.secret, "secret", "", "Nightscout API secret (hashed before sending)")
	cmd.Flags().StringVar(&f.token, "token", "", "Nightscout access token, used instead of the secret")
	cmd.Flags().StringVar(&f.unit, "unit", defaults.Unit, "Display unit (mg/dL or mmol/L)")
	cmd.Flags().IntVar(&f.low, "low", defaults.TargetLow, "Target range low in mg/dL")
	cmd.Flags().IntVar(&f.high, "high", defaults.TargetHigh, "Target range high in mg/dL")
	cmd.Flags().IntVar(&f.days, "days", defaults.AnalysisDays, "Default analysis window in days (1-7)")
	cmd.Flags().StringVar(&f.historyDSN, "history-dsn", "", "History SQLite path or postgres:// DSN")
	cmd.Flags().StringVar(&f.reportDir, "report-dir", "", "Write a PNG report here after every analysis")
	cmd.Flags().StringVar(&f.bucket, "export-bucket", "", "S3 bucket for --export")
	cmd.Flags().StringVar(&f.endpoint, "export-endpoint", "", "S3-compatible endpoint, e.g. MinIO (enables path-style)")
	cmd.Flags().StringVar(&f.metrics, "metrics-textfile", "", "Prometheus textfile written after every analysis")
	cmd.Flags().BoolVar(&f.force, "force", false, "Overwrite an existing settings file")
	return cmd
}

func newConfigTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Test the Nightscout connection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, _, err := loadSettings()
			if err != nil {
				return err
			}
			if !settings.IsConfigured() {
				return app.ErrNotConfigured
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			s := settings.Clone()
			svc := app.NewService(settings)
			if err := svc.TestConnection(ctx, s.NightscoutURL, s.APISecret, s.APIToken, s.UseToken); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Connected to %s\n", s.NightscoutURL)
			return nil
		},
	}
}

func newConfigNotifyTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notify-test",
		Short: "Send a test desktop notification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, _, err := loadSettings()
			if err != nil {
				return err
			}
			return app.NewService(settings).SendTestNotification()
		},
	}
}
