package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mrcode/nightscout-therapy/internal/app"
	"github.com/mrcode/nightscout-therapy/internal/history"
	"github.com/mrcode/nightscout-therapy/internal/models"
	"github.com/mrcode/nightscout-therapy/internal/therapy"
)

// execute runs a fresh command tree with args and returns stdout
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

type testEnv struct {
	config   string
	readings string
	profile  string
}

// newTestEnv writes a settings file with a temp history DB plus input files with n readings
func newTestEnv(t *testing.T, n int) testEnv {
	t.Helper()
	dir := t.TempDir()
	env := testEnv{
		config:   filepath.Join(dir, "settings.json"),
		readings: filepath.Join(dir, "readings.json"),
		profile:  filepath.Join(dir, "profile.json"),
	}

	if _, err := execute(t, "--config", env.config, "config", "init",
		"--history-dsn", filepath.Join(dir, "history.db"), "--secret", "hunter2"); err != nil {
		t.Fatalf("config init: %v", err)
	}

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	readings := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		readings = append(readings, map[string]any{
			"value":     120,
			"timestamp": start.Add(time.Duration(i) * 5 * time.Minute).Format(time.RFC3339),
		})
	}
	data, _ := json.Marshal(readings)
	if err := os.WriteFile(env.readings, data, 0600); err != nil {
		t.Fatal(err)
	}

	profile := `{"basal":[{"time":"00:00","value":0.8}],"carbratio":[{"time":"00:00","value":10}],
"target_low":[{"time":"00:00","value":100}],"target_high":[{"time":"00:00","value":120}]}`
	if err := os.WriteFile(env.profile, []byte(profile), 0600); err != nil {
		t.Fatal(err)
	}
	return env
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "nightscout-therapy version "+app.Version) {
		t.Errorf("version output = %q", out)
	}
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	if _, err := execute(t, "--config", path, "config", "init", "--url", "https://ns.example.com",
		"--secret", "hunter2", "--days", "5"); err != nil {
		t.Fatalf("config init: %v", err)
	}

	if _, err := execute(t, "--config", path, "config", "init"); err == nil {
		t.Error("init over an existing file without --force should fail")
	}

	out, err := execute(t, "--config", path, "config", "show", "-o", "json")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	var view map[string]any
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("config show json: %v\n%s", err, out)
	}
	if view["nightscoutUrl"] != "https://ns.example.com" || view["analysisDays"] != float64(5) {
		t.Errorf("view = %v", view)
	}
	if view["apiSecret"] != secretMask {
		t.Errorf("apiSecret = %v, want masked", view["apiSecret"])
	}

	table, err := execute(t, "--config", path, "config", "show")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(table, "hunter2") || !strings.Contains(table, "nightscoutUrl:") {
		t.Errorf("table output = %s", table)
	}
}

func TestConfigInit_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if _, err := execute(t, "--config", path, "config", "init", "--days", "9"); err == nil {
		t.Error("init with 9 analysis days should fail")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("invalid settings should not be written")
	}
}

func TestConfigTest_NotConfigured(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	_, err := execute(t, "--config", path, "config", "test")
	if !errors.Is(err, app.ErrNotConfigured) {
		t.Errorf("config test error = %v, want ErrNotConfigured", err)
	}
}

func TestAnalyzeAndHistory(t *testing.T) {
	env := newTestEnv(t, 288)

	out, err := execute(t, "--config", env.config, "analyze", "--days", "1",
		"--readings", env.readings, "--profile", env.profile, "-o", "json")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	var run models.AnalysisRun
	if err := json.Unmarshal([]byte(out), &run); err != nil {
		t.Fatalf("analyze json: %v\n%s", err, out)
	}
	if run.ReadingCount != 288 || run.Result.Metrics.TimeInRangePct != 100 || run.Source != "file" {
		t.Errorf("run = %+v", run)
	}

	out, err = execute(t, "--config", env.config, "history", "list", "-o", "json")
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	var runs []history.Summary
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("history json: %v\n%s", err, out)
	}
	if len(runs) != 1 || runs[0].ID != run.ID {
		t.Fatalf("history = %+v, want run %s", runs, run.ID)
	}

	out, err = execute(t, "--config", env.config, "history", "show", run.ShortID())
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	if !strings.Contains(out, "Analysis "+run.ShortID()) || !strings.Contains(out, "In range: 100%") {
		t.Errorf("history show output:\n%s", out)
	}

	out, err = execute(t, "--config", env.config, "history", "prune", "--keep", "0")
	if err != nil || !strings.Contains(out, "Removed 1 analyses") {
		t.Errorf("prune = %q, %v", out, err)
	}
}

func TestAnalyze_TableOutput(t *testing.T) {
	env := newTestEnv(t, 288)
	report := filepath.Join(t.TempDir(), "report.png")

	out, err := execute(t, "--config", env.config, "analyze", "--days", "1", "--no-history",
		"--readings", env.readings, "--profile", env.profile, "--report", report)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	for _, want := range []string{"Analysis ", "In range: 100%", "Latest:   120 mg/dL - (normal)", "Safety:", "Report: " + report} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Saved as") {
		t.Error("--no-history run should not be saved")
	}
	if _, err := os.Stat(report); err != nil {
		t.Errorf("report not written: %v", err)
	}
}

func TestAnalyze_InsufficientData(t *testing.T) {
	env := newTestEnv(t, 50)

	_, err := execute(t, "--config", env.config, "analyze", "--days", "7", "--no-history",
		"--readings", env.readings, "--profile", env.profile)
	var ie *therapy.InsufficientDataError
	if !errors.As(err, &ie) {
		t.Fatalf("error = %v, want InsufficientDataError", err)
	}
	if msg := friendlyError(err); !strings.Contains(msg, "50 readings, at least 168") {
		t.Errorf("friendlyError() = %s", msg)
	}
}

func TestAnalyze_BadOutputFormat(t *testing.T) {
	env := newTestEnv(t, 288)
	_, err := execute(t, "--config", env.config, "analyze", "--days", "1", "--no-history",
		"--readings", env.readings, "--profile", env.profile, "-o", "xml")
	if err == nil || !strings.Contains(err.Error(), "unknown output format") {
		t.Errorf("error = %v", err)
	}
}

func TestFriendlyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"no data", therapy.ErrNoData, "no glucose readings"},
		{"profile", &therapy.InvalidProfileError{Field: "basal"}, "incomplete (basal)"},
		{"not configured", fmt.Errorf("wrapped: %w", app.ErrNotConfigured), "config init"},
		{"other", errors.New("boom"), "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := friendlyError(tt.err); !strings.Contains(got, tt.want) {
				t.Errorf("friendlyError() = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestScheduledArgs(t *testing.T) {
	args, err := scheduledArgs(scheduleFlags{days: 3, notify: true}, "")
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(args, " "); got != "analyze --days 3 --notify" {
		t.Errorf("args = %q", got)
	}

	args, err = scheduledArgs(scheduleFlags{export: true}, "settings.json")
	if err != nil {
		t.Fatal(err)
	}
	if len(args) != 4 || args[1] != "--config" || !filepath.IsAbs(args[2]) || args[3] != "--export" {
		t.Errorf("args = %v, want an absolute --config path", args)
	}
}

func TestScheduleEnable_InvalidDays(t *testing.T) {
	if _, err := execute(t, "schedule", "enable", "--days", "9"); err == nil {
		t.Error("schedule enable with 9 days should fail")
	}
}
