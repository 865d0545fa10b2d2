// Package app provides the main application logic
package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mrcode/nightscout-therapy/internal/export"
	"github.com/mrcode/nightscout-therapy/internal/history"
	"github.com/mrcode/nightscout-therapy/internal/models"
	"github.com/mrcode/nightscout-therapy/internal/nightscout"
	"github.com/mrcode/nightscout-therapy/internal/notifications"
	"github.com/mrcode/nightscout-therapy/internal/patterns"
	"github.com/mrcode/nightscout-therapy/internal/report"
	"github.com/mrcode/nightscout-therapy/internal/telemetry"
	"github.com/mrcode/nightscout-therapy/internal/therapy"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	sourceNightscout = "nightscout"
	sourceFile       = "file"
)

var (
	// ErrNotConfigured is returned when data must come from Nightscout but no URL is set
	ErrNotConfigured = errors.New("nightscout is not configured")
	// ErrInvalidDays is returned for analysis windows outside 1..MaxAnalysisDays
	ErrInvalidDays = fmt.Errorf("analysis days must be between 1 and %d", models.MaxAnalysisDays)
)

// DataSource provides analysis inputs from Nightscout
type DataSource interface {
	GetEntriesDays(ctx context.Context, days int) ([]models.GlucoseEntry, error)
	GetTreatmentsDays(ctx context.Context, days int) ([]models.Treatment, error)
	GetProfile(ctx context.Context) (*models.TherapyProfile, error)
}

// HistoryStore persists runs
type HistoryStore interface {
	Save(ctx context.Context, run *models.AnalysisRun) error
}

// Notifier sends safety warning notifications
type Notifier interface {
	NotifySafety(result *models.AnalysisResult) (bool, error)
}

// Exporter archives runs
type Exporter interface {
	Export(ctx context.Context, run *models.AnalysisRun, png []byte) ([]string, error)
}

// Request selects inputs and side effects for one analysis
type Request struct {
	Days int // 0 uses the configured analysis days

	// Optional input files; anything not given is fetched from Nightscout
	ReadingsFile   string
	ProfileFile    string
	TreatmentsFile string

	ReportPath  string // Write the PNG report here; empty falls back to the configured report dir
	Notify      bool
	Export      bool
	SaveHistory bool

	Location *time.Location // Clock used for hourly buckets; nil uses the timestamps' zone
}

// Run is an analysis run plus what happened to it
type Run struct {
	*models.AnalysisRun
	ReportPath   string
	ExportKeys   []string
	Notified     bool
	HistorySaved bool
}

// Service orchestrates fetching, analysis and the side effects around it
type Service struct {
	settings   *models.Settings
	configPath string

	mu       sync.RWMutex
	source   DataSource
	history  HistoryStore
	notifier Notifier
	exporter Exporter

	newExporter func(ctx context.Context, cfg export.Config) (Exporter, error)
	now         func() time.Time
	log         zerolog.Logger
}

// Option configures a Service
type Option func(*Service)

// WithSource replaces the Nightscout client
func WithSource(src DataSource) Option {
	return func(s *Service) { s.source = src }
}

// WithHistory sets the history store runs are saved to
func WithHistory(h HistoryStore) Option {
	return func(s *Service) { s.history = h }
}

// WithNotifier replaces the desktop notifier
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithExporter sets a ready exporter instead of building one from settings
func WithExporter(e Exporter) Option {
	return func(s *Service) { s.exporter = e }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger replaces the global logger
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithConfigPath makes SaveSettings write to path instead of the default location
func WithConfigPath(path string) Option {
	return func(s *Service) { s.configPath = path }
}

// NewService creates a service for the given settings
func NewService(settings *models.Settings, opts ...Option) *Service {
	s := &Service{
		settings: settings,
		newExporter: func(ctx context.Context, cfg export.Config) (Exporter, error) {
			return export.New(ctx, cfg)
		},
		now: time.Now,
		log: log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = notifications.NewManager(settings)
	}
	if s.source == nil && settings.IsConfigured() {
		s.source = nightscout.NewClientFromSettings(settings)
	}
	return s
}

// analysisDays resolves and checks the requested window
func (s *Service) analysisDays(req Request) (int, error) {
	days := req.Days
	if days == 0 {
		days = s.settings.Clone().AnalysisDays
	}
	if days < 1 || days > models.MaxAnalysisDays {
		return 0, fmt.Errorf("%w, got %d", ErrInvalidDays, days)
	}
	return days, nil
}

type inputs struct {
	readings   []models.GlucoseReading
	profile    *models.TherapyProfile
	treatments []models.Treatment
	source     string
	latest     *models.GlucoseEntry
}

// gather loads inputs from files and fetches whatever is missing from Nightscout
func (s *Service) gather(ctx context.Context, req Request, days int) (*inputs, error) {
	in := &inputs{source: sourceFile}
	var err error

	if req.ReadingsFile != "" {
		if in.readings, err = LoadReadings(req.ReadingsFile); err != nil {
			return nil, err
		}
	}
	if req.ProfileFile != "" {
		if in.profile, err = LoadProfile(req.ProfileFile); err != nil {
			return nil, err
		}
	}
	if req.TreatmentsFile != "" {
		if in.treatments, err = LoadTreatments(req.TreatmentsFile); err != nil {
			return nil, err
		}
	}

	needsSource := req.ReadingsFile == "" || req.ProfileFile == "" || req.TreatmentsFile == ""
	if !needsSource {
		return in, nil
	}

	s.mu.RLock()
	src := s.source
	s.mu.RUnlock()
	if src == nil {
		if req.ReadingsFile == "" || req.ProfileFile == "" {
			return nil, ErrNotConfigured
		}
		// Treatments are optional
		return in, nil
	}

	if req.ReadingsFile == "" {
		in.source = sourceNightscout
		entries, err := src.GetEntriesDays(ctx, days)
		if err != nil {
			return nil, fmt.Errorf("fetching readings: %w", err)
		}
		in.readings = models.EntriesToReadings(entries)
		in.latest = newestEntry(entries)
		s.log.Debug().Int("entries", len(entries)).Int("readings", len(in.readings)).Msg("fetched glucose entries")
	}
	if req.ProfileFile == "" {
		if in.profile, err = src.GetProfile(ctx); err != nil {
			return nil, fmt.Errorf("fetching profile: %w", err)
		}
	}
	if req.TreatmentsFile == "" {
		treatments, err := src.GetTreatmentsDays(ctx, days)
		if err != nil {
			// Treatments only feed the pattern check
			s.log.Warn().Err(err).Msg("fetching treatments failed, continuing without")
		}
		in.treatments = treatments
		s.log.Debug().Int("treatments", len(treatments)).Msg("fetched treatments")
	}
	return in, nil
}

// newestEntry returns the most recent entry carrying a glucose value
func newestEntry(entries []models.GlucoseEntry) *models.GlucoseEntry {
	var newest *models.GlucoseEntry
	for i := range entries {
		e := &entries[i]
		if e.SGV <= 0 {
			continue
		}
		if newest == nil || e.Date > newest.Date {
			newest = e
		}
	}
	return newest
}

// latestReading describes the newest value of the window against the target band
func latestReading(in *inputs, settings *models.Settings) *models.LatestReading {
	entry := in.latest
	if entry == nil {
		if len(in.readings) == 0 {
			return nil
		}
		newest := in.readings[0]
		for _, r := range in.readings[1:] {
			if r.Timestamp.After(newest.Timestamp) {
				newest = r
			}
		}
		e := models.EntryFromReading(newest)
		entry = &e
	}

	return &models.LatestReading{
		Time:   entry.Time().UTC(),
		MgDL:   entry.ValueMgDL(),
		MmolL:  math.Round(entry.ValueMmolL()*10) / 10,
		Trend:  entry.TrendArrow(),
		Status: settings.GetGlucoseStatus(float64(entry.ValueMgDL())),
	}
}

// checkGate applies the minimum-data gate before the engine runs
func checkGate(readings []models.GlucoseReading, days int) error {
	if len(readings) == 0 {
		return therapy.ErrNoData
	}
	if required := therapy.MinimumReadings(days); len(readings) < required {
		return &therapy.InsufficientDataError{Readings: len(readings), Required: required}
	}
	return nil
}

// Analyze runs one analysis and its side effects. A history save error is returned
// with the run after the remaining side effects have run; all other side-effect
// failures are only logged.
func (s *Service) Analyze(ctx context.Context, req Request) (*Run, error) {
	days, err := s.analysisDays(req)
	if err != nil {
		return nil, err
	}

	in, err := s.gather(ctx, req, days)
	if err != nil {
		return nil, err
	}
	if err := checkGate(in.readings, days); err != nil {
		return nil, err
	}

	settings := s.settings.Clone()
	engine := therapy.NewEngine(patterns.NewAnalyzer())
	engine.Location = req.Location

	result, err := engine.Analyze(therapy.Input{
		Readings:     in.readings,
		Profile:      in.profile,
		Thresholds:   settings.Thresholds(),
		AnalysisDays: days,
		Treatments:   in.treatments,
		ElapsedDays:  float64(days),
	})
	if err != nil {
		return nil, err
	}

	run := &Run{AnalysisRun: &models.AnalysisRun{
		ID:           uuid.NewString(),
		CreatedAt:    s.now().UTC(),
		AnalysisDays: days,
		ReadingCount: len(in.readings),
		Thresholds:   settings.Thresholds(),
		Source:       in.source,
		Latest:       latestReading(in, settings),
		Result:       result,
	}}
	logger := s.log.With().Str("run", run.ShortID()).Logger()
	logger.Info().
		Float64("tir", result.Metrics.TimeInRangePct).
		Int("suggestions", len(result.AllAdjustments())).
		Int("warnings", len(result.SafetyWarnings)).
		Msg("analysis complete")

	var saveErr error
	if req.SaveHistory && s.history != nil {
		if err := s.history.Save(ctx, run.AnalysisRun); err != nil {
			saveErr = fmt.Errorf("saving history: %w", err)
			logger.Error().Err(err).Msg("saving history")
		} else {
			run.HistorySaved = true
		}
	}

	if settings.MetricsTextfile != "" {
		collector := telemetry.NewCollector()
		if err := collector.Observe(run.AnalysisRun); err != nil {
			logger.Warn().Err(err).Msg("observing metrics")
		} else if err := collector.WriteTextfile(settings.MetricsTextfile); err != nil {
			logger.Warn().Err(err).Str("path", settings.MetricsTextfile).Msg("writing metrics")
		}
	}

	if req.Notify {
		if sent, err := s.notifier.NotifySafety(result); err != nil {
			logger.Warn().Err(err).Msg("sending safety notification")
		} else {
			run.Notified = sent
		}
	}

	reportPath := req.ReportPath
	if reportPath == "" && settings.ReportDir != "" {
		reportPath = filepath.Join(settings.ReportDir, report.FileName(run.AnalysisRun))
	}

	var png []byte
	if reportPath != "" || req.Export {
		png, err = report.Render(run.AnalysisRun, report.OptionsFromSettings(settings))
		if err != nil {
			logger.Warn().Err(err).Msg("rendering report")
		}
	}
	if reportPath != "" && png != nil {
		if err := report.WriteFile(reportPath, png); err != nil {
			logger.Warn().Err(err).Str("path", reportPath).Msg("writing report")
		} else {
			run.ReportPath = reportPath
		}
	}

	if req.Export {
		keys, err := s.export(ctx, settings, run.AnalysisRun, png)
		if err != nil {
			logger.Warn().Err(err).Msg("exporting run")
		}
		run.ExportKeys = keys
	}

	return run, saveErr
}

func (s *Service) export(ctx context.Context, settings *models.Settings, run *models.AnalysisRun, png []byte) ([]string, error) {
	s.mu.Lock()
	if s.exporter == nil {
		exp, err := s.newExporter(ctx, export.ConfigFromSettings(settings))
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		s.exporter = exp
	}
	exp := s.exporter
	s.mu.Unlock()

	return exp.Export(ctx, run, png)
}

// Ensure the concrete implementations satisfy the service's interfaces
var (
	_ DataSource   = (*nightscout.Client)(nil)
	_ HistoryStore = (*history.Store)(nil)
	_ Notifier     = (*notifications.Manager)(nil)
	_ Exporter     = (*export.S3Exporter)(nil)
)
