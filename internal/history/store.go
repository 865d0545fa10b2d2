// Package history persists analysis runs to SQLite or Postgres
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	"github.com/mrcode/nightscout-therapy/internal/models"
	_ "modernc.org/sqlite" // pure go sqlite driver
)

var (
	// ErrNotFound is returned when no run matches an ID
	ErrNotFound = errors.New("analysis run not found")
	// ErrAmbiguousID is returned when a short ID matches more than one run
	ErrAmbiguousID = errors.New("ambiguous run id")
)

var sqlOpen = sql.Open

type dialect struct {
	name        string
	driver      string
	payloadType string
}

var (
	sqliteDialect   = dialect{name: "sqlite", driver: "sqlite", payloadType: "BLOB"}
	postgresDialect = dialect{name: "postgres", driver: "pgx", payloadType: "JSONB"}
)

// arg returns the n-th (1-based) bind placeholder
func (d dialect) arg(n int) string {
	if d.name == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// Store keeps analysis runs in a single table
type Store struct {
	db      *sql.DB
	dialect dialect
}

// Summary is the list view of a stored run
type Summary struct {
	ID           string             `json:"id" yaml:"id"`
	CreatedAt    time.Time          `json:"createdAt" yaml:"createdAt"`
	AnalysisDays int                `json:"analysisDays" yaml:"analysisDays"`
	ReadingCount int                `json:"readingCount" yaml:"readingCount"`
	TimeInRange  float64            `json:"timeInRange" yaml:"timeInRange"`
	TimeBelow    float64            `json:"timeBelowRange" yaml:"timeBelowRange"`
	TimeAbove    float64            `json:"timeAboveRange" yaml:"timeAboveRange"`
	MeanGlucose  float64            `json:"averageGlucose" yaml:"averageGlucose"`
	CV           float64            `json:"glucoseVariability" yaml:"glucoseVariability"`
	DataQuality  models.DataQuality `json:"dataQuality" yaml:"dataQuality"`
	Suggestions  int                `json:"suggestions" yaml:"suggestions"`
}

// IsPostgresDSN reports whether the DSN selects the Postgres backend
func IsPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Open opens the store for a DSN: postgres:// URLs use pgx, anything else is a SQLite file path
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("history dsn is empty")
	}

	d := sqliteDialect
	if IsPostgresDSN(dsn) {
		d = postgresDialect
	} else if dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}

	db, err := sqlOpen(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.name, err)
	}
	if d.name == "sqlite" {
		// One writer at a time
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.name, err)
	}

	s := &Store{db: db, dialect: d}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Backend returns "sqlite" or "postgres"
func (s *Store) Backend() string { return s.dialect.name }

// Close closes the database
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) ensureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS analysis_runs (
		id TEXT PRIMARY KEY,
		created_at BIGINT NOT NULL,
		analysis_days INTEGER NOT NULL,
		reading_count INTEGER NOT NULL,
		time_in_range DOUBLE PRECISION NOT NULL,
		time_below DOUBLE PRECISION NOT NULL,
		time_above DOUBLE PRECISION NOT NULL,
		mean_glucose DOUBLE PRECISION NOT NULL,
		cv DOUBLE PRECISION NOT NULL,
		data_quality TEXT NOT NULL,
		suggestion_count INTEGER NOT NULL,
		payload %s NOT NULL
	)`, s.dialect.payloadType)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create analysis_runs table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS analysis_runs_created_at ON analysis_runs (created_at)`); err != nil {
		return fmt.Errorf("create analysis_runs index: %w", err)
	}
	return nil
}

// Save stores a run, assigning an ID and creation time when missing
func (s *Store) Save(ctx context.Context, run *models.AnalysisRun) error {
	if run == nil || run.Result == nil {
		return errors.New("cannot save a run without result")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run: %w", err)
	}

	m := run.Result.Metrics
	args := make([]string, 12)
	for i := range args {
		args[i] = s.dialect.arg(i + 1)
	}
	query := fmt.Sprintf(`INSERT INTO analysis_runs (id, created_at, analysis_days, reading_count,
		time_in_range, time_below, time_above, mean_glucose, cv, data_quality, suggestion_count, payload)
		VALUES (%s)`, strings.Join(args, ", "))

	_, err = s.db.ExecContext(ctx, query,
		run.ID, run.CreatedAt.UnixMilli(), run.AnalysisDays, run.ReadingCount,
		m.TimeInRangePct, m.TimeBelowPct, m.TimeAbovePct, m.MeanGlucose, m.CoefficientOfVariationPct,
		string(m.DataQuality), len(run.Result.AllAdjustments()), payload)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Get returns a run by full ID or by an unambiguous ID prefix
func (s *Store) Get(ctx context.Context, id string) (*models.AnalysisRun, error) {
	if id == "" {
		return nil, ErrNotFound
	}

	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM analysis_runs WHERE id = `+s.dialect.arg(1), id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		payload, err = s.getByPrefix(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	var run models.AnalysisRun
	if err := json.Unmarshal(payload, &run); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", id, err)
	}
	return &run, nil
}

func (s *Store) getByPrefix(ctx context.Context, prefix string) ([]byte, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM analysis_runs WHERE id LIKE `+s.dialect.arg(1)+` ESCAPE '\' LIMIT 2`,
		escapeLike(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("select run: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var found [][]byte
	for rows.Next() {
		var p []byte
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		found = append(found, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, prefix)
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousID, prefix)
	}
}

// likeEscaper makes LIKE wildcards in an ID prefix match literally
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// List returns up to limit runs, newest first. A limit of zero or less lists all runs.
func (s *Store) List(ctx context.Context, limit int) ([]Summary, error) {
	query := `SELECT id, created_at, analysis_days, reading_count, time_in_range, time_below,
		time_above, mean_glucose, cv, data_quality, suggestion_count
		FROM analysis_runs ORDER BY created_at DESC, id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ` + s.dialect.arg(1)
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []Summary{}
	for rows.Next() {
		var (
			sum     Summary
			created int64
			quality string
		)
		if err := rows.Scan(&sum.ID, &created, &sum.AnalysisDays, &sum.ReadingCount, &sum.TimeInRange,
			&sum.TimeBelow, &sum.TimeAbove, &sum.MeanGlucose, &sum.CV, &quality, &sum.Suggestions); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		sum.CreatedAt = time.UnixMilli(created).UTC()
		sum.DataQuality = models.DataQuality(quality)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Prune deletes all but the newest keep runs and returns how many were removed
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		return 0, fmt.Errorf("keep must not be negative, got %d", keep)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM analysis_runs WHERE id NOT IN (
		SELECT id FROM analysis_runs ORDER BY created_at DESC, id LIMIT `+s.dialect.arg(1)+`)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}
