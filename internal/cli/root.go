// Package cli implements the nightscout-therapy command line
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mrcode/nightscout-therapy/internal/app"
	"github.com/mrcode/nightscout-therapy/internal/models"
	"github.com/mrcode/nightscout-therapy/internal/therapy"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Global flags
type globalFlags struct {
	verbose bool
	output  string
	cfgFile string
}

var flags globalFlags

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nightscout-therapy",
		Short: "Suggest insulin therapy adjustments from Nightscout data",
		Long: `nightscout-therapy reviews up to seven days of CGM readings against your
therapy profile and suggests basal, carb ratio and target adjustments.

Suggestions are informational. Discuss every change with your healthcare
provider and change one setting at a time.

Core Commands:
  analyze   Run an analysis from Nightscout or local files
  history   List and show stored analyses
  config    Show and initialize settings
  schedule  Run the analysis once a day in the background
  version   Show version information`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(cmd.ErrOrStderr(), flags.verbose)
		},
	}

	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().StringVarP(&flags.output, "output", "o", "table", "Output format (table, json, yaml)")
	cmd.PersistentFlags().StringVar(&flags.cfgFile, "config", "", "Settings file (default: <user config dir>/nightscout-therapy/settings.json)")

	cmd.AddCommand(newAnalyzeCmd(), newHistoryCmd(), newConfigCmd(), newScheduleCmd(), newVersionCmd())
	return cmd
}

// Execute runs the root command and exits non-zero on error
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", friendlyError(err))
		os.Exit(1)
	}
}

func setupLogging(w io.Writer, verbose bool) {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
}

// configPath returns the --config flag or the default settings path
func configPath() (string, error) {
	if p := strings.TrimSpace(flags.cfgFile); p != "" {
		return p, nil
	}
	return models.GetConfigPath()
}

// loadSettings reads settings, falling back to defaults when the file does not exist
func loadSettings() (*models.Settings, string, error) {
	path, err := configPath()
	if err != nil {
		return nil, "", err
	}
	settings := models.DefaultSettings()
	if err := settings.LoadFrom(path); err != nil {
		return nil, "", fmt.Errorf("loading settings: %w", err)
	}
	return settings, path, nil
}

// historyDSN returns the configured history DSN or the default SQLite file
func historyDSN(settings *models.Settings) (string, error) {
	if dsn := settings.Clone().HistoryDSN; dsn != "" {
		return dsn, nil
	}
	return models.DefaultHistoryDSN()
}

// friendlyError maps analysis gate errors to messages a user can act on
func friendlyError(err error) string {
	var insufficient *therapy.InsufficientDataError
	var invalidProfile *therapy.InvalidProfileError

	switch {
	case errors.As(err, &insufficient):
		return fmt.Sprintf("not enough glucose data: %d readings, at least %d needed for this window. Try a shorter --days window.",
			insufficient.Readings, insufficient.Required)
	case errors.Is(err, therapy.ErrNoData):
		return "no glucose readings found for the selected window"
	case errors.As(err, &invalidProfile):
		return fmt.Sprintf("therapy profile is missing or incomplete (%s). Check your Nightscout profile or --profile file.",
			invalidProfile.Field)
	case errors.Is(err, app.ErrNotConfigured):
		return "Nightscout is not configured. Run 'nightscout-therapy config init --url <url>' or pass --readings and --profile."
	default:
		return err.Error()
	}
}
