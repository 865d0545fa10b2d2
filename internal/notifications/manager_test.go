package notifications

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mrcode/nightscout-therapy/internal/models"
	"github.com/mrcode/nightscout-therapy/internal/therapy"
)

// Test constants
const testMmolUnit = "mmol/L"

type sent struct {
	title   string
	message string
}

func newTestManager(settings *models.Settings) (*Manager, *[]sent, *time.Time) {
	m := NewManager(settings)
	var out []sent
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	m.notify = func(title, message string) error {
		out = append(out, sent{title, message})
		return nil
	}
	m.now = func() time.Time { return now }
	return m, &out, &now
}

func resultWith(warnings ...string) *models.AnalysisResult {
	all := append(warnings, therapy.DisclaimerConsultProvider, therapy.DisclaimerOneChange)
	return &models.AnalysisResult{
		SafetyWarnings: all,
		Metrics:        models.GlycemicMetrics{TimeInRangePct: 48, TimeBelowPct: 7, MeanGlucose: 180},
	}
}

func TestActionableWarnings(t *testing.T) {
	got := ActionableWarnings(resultWith(therapy.WarningHypoRisk))
	if len(got) != 1 || got[0] != therapy.WarningHypoRisk {
		t.Errorf("ActionableWarnings() = %q", got)
	}
	if got := ActionableWarnings(resultWith()); len(got) != 0 {
		t.Errorf("disclaimers alone should not be actionable, got %q", got)
	}
}

func TestManager_NotifySafety(t *testing.T) {
	m, out, _ := newTestManager(models.DefaultSettings())

	ok, err := m.NotifySafety(resultWith(therapy.WarningHypoRisk, therapy.WarningLargeBasal))
	if err != nil || !ok {
		t.Fatalf("NotifySafety() = %v, %v; want sent", ok, err)
	}
	if len(*out) != 1 {
		t.Fatalf("sent %d notifications, want 1", len(*out))
	}
	n := (*out)[0]
	if n.title != "⚠️ 2 therapy safety warnings" {
		t.Errorf("title = %s", n.title)
	}
	if !strings.Contains(n.message, "180 mg/dL") || !strings.Contains(n.message, therapy.WarningLargeBasal) {
		t.Errorf("message = %s", n.message)
	}
	if strings.Contains(n.message, therapy.DisclaimerConsultProvider) {
		t.Error("disclaimers should not be part of the notification")
	}
}

func TestManager_NotifySafety_NothingActionable(t *testing.T) {
	m, out, _ := newTestManager(models.DefaultSettings())

	if ok, _ := m.NotifySafety(resultWith()); ok || len(*out) != 0 {
		t.Error("disclaimer-only result should not notify")
	}
	if ok, _ := m.NotifySafety(nil); ok {
		t.Error("nil result should not notify")
	}
}

func TestManager_NotifySafety_Disabled(t *testing.T) {
	settings := models.DefaultSettings()
	settings.EnableSafetyNotifications = false
	m, out, _ := newTestManager(settings)

	if ok, _ := m.NotifySafety(resultWith(therapy.WarningHypoRisk)); ok || len(*out) != 0 {
		t.Error("disabled notifications should not notify")
	}
}

func TestManager_NotifySafety_Throttle(t *testing.T) {
	settings := models.DefaultSettings()
	settings.RepeatNotifyMinutes = 60
	m, out, now := newTestManager(settings)
	res := resultWith(therapy.WarningHypoRisk)

	_, _ = m.NotifySafety(res)
	*now = now.Add(30 * time.Minute)
	if ok, _ := m.NotifySafety(res); ok {
		t.Error("same warnings within repeat window should be throttled")
	}

	// A different warning set is not throttled
	if ok, _ := m.NotifySafety(resultWith(therapy.WarningExtremeVariability)); !ok {
		t.Error("different warning set should notify")
	}

	*now = now.Add(31 * time.Minute)
	if ok, _ := m.NotifySafety(res); !ok {
		t.Error("same warnings after repeat window should notify again")
	}
	if len(*out) != 3 {
		t.Errorf("sent %d notifications, want 3", len(*out))
	}
}

func TestManager_NotifySafety_OncePerSet(t *testing.T) {
	settings := models.DefaultSettings()
	settings.RepeatNotifyMinutes = 0
	m, out, now := newTestManager(settings)
	res := resultWith(therapy.WarningHypoRisk)

	_, _ = m.NotifySafety(res)
	*now = now.Add(48 * time.Hour)
	_, _ = m.NotifySafety(res)
	if len(*out) != 1 {
		t.Errorf("sent %d notifications, want 1 with repeat disabled", len(*out))
	}

	m.ClearAlertState()
	_, _ = m.NotifySafety(res)
	if len(*out) != 2 {
		t.Errorf("sent %d notifications after ClearAlertState, want 2", len(*out))
	}
}

func TestManager_NotifySafety_Error(t *testing.T) {
	m, _, _ := newTestManager(models.DefaultSettings())
	m.notify = func(string, string) error { return errors.New("no dbus") }

	res := resultWith(therapy.WarningHypoRisk)
	if _, err := m.NotifySafety(res); err == nil {
		t.Fatal("expected error from notifier")
	}

	// A failed send does not start the throttle window
	var calls int
	m.notify = func(string, string) error { calls++; return nil }
	if ok, _ := m.NotifySafety(res); !ok || calls != 1 {
		t.Error("notification should be retried after a failure")
	}
}

func TestManager_formatNotification_MmolL(t *testing.T) {
	settings := models.DefaultSettings()
	settings.Unit = testMmolUnit
	m, _, _ := newTestManager(settings)

	title, message := m.formatNotification(resultWith(), []string{therapy.WarningHypoRisk})
	if title != "⚠️ Therapy safety warning" {
		t.Errorf("title = %s", title)
	}
	if !strings.Contains(message, "10.0 mmol/L") {
		t.Errorf("Message should contain mmol/L value, got: %s", message)
	}
}

func TestManager_UpdateSettings(t *testing.T) {
	settings := models.DefaultSettings()
	manager := NewManager(settings)

	newSettings := models.DefaultSettings()
	newSettings.Unit = testMmolUnit

	manager.UpdateSettings(newSettings)

	if manager.settings.Unit != testMmolUnit {
		t.Errorf("Unit = %s, want %s", manager.settings.Unit, testMmolUnit)
	}
}

func TestManager_UpdateSettings_ResetsThrottle(t *testing.T) {
	settings := models.DefaultSettings()
	settings.RepeatNotifyMinutes = 0
	m, out, _ := newTestManager(settings)
	res := resultWith(therapy.WarningHypoRisk)

	_, _ = m.NotifySafety(res)
	_, _ = m.NotifySafety(res)
	if len(*out) != 1 {
		t.Fatalf("sent %d notifications, want 1", len(*out))
	}

	updated := models.DefaultSettings()
	updated.RepeatNotifyMinutes = 0
	m.UpdateSettings(updated)

	sent, err := m.NotifySafety(res)
	if err != nil || !sent || len(*out) != 2 {
		t.Errorf("after UpdateSettings sent = %v, err = %v, total %d, want a fresh notification", sent, err, len(*out))
	}
}
