// Package notifications handles system notifications for analysis safety warnings
package notifications

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/mrcode/nightscout-therapy/internal/models"
	"github.com/mrcode/nightscout-therapy/internal/therapy"
)

const appName = "Nightscout Therapy"

// Manager sends desktop notifications for safety warnings
type Manager struct {
	settings      *models.Settings
	lastAlertTime map[string]time.Time
	mu            sync.Mutex

	// Swappable for tests
	notify func(title, message string) error
	now    func() time.Time
}

// NewManager creates a new notification manager
func NewManager(settings *models.Settings) *Manager {
	return &Manager{
		settings:      settings,
		lastAlertTime: make(map[string]time.Time),
		notify: func(title, message string) error {
			// Use beeep for cross-platform notifications
			return beeep.Notify(title, message, "")
		},
		now: time.Now,
	}
}

// UpdateSettings updates the settings reference. Changed settings start a fresh
// throttle window, so previously sent warning sets are forgotten.
func (m *Manager) UpdateSettings(settings *models.Settings) {
	m.mu.Lock()
	m.settings = settings
	m.mu.Unlock()
	m.ClearAlertState()
}

// ActionableWarnings returns the safety warnings without the standing disclaimers
func ActionableWarnings(result *models.AnalysisResult) []string {
	var out []string
	for _, w := range result.SafetyWarnings {
		if w == therapy.DisclaimerConsultProvider || w == therapy.DisclaimerOneChange {
			continue
		}
		out = append(out, w)
	}
	return out
}

// NotifySafety notifies about the actionable warnings of a result.
// It reports whether a notification was sent.
func (m *Manager) NotifySafety(result *models.AnalysisResult) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if result == nil || !m.settings.EnableSafetyNotifications {
		return false, nil
	}

	warnings := ActionableWarnings(result)
	if len(warnings) == 0 {
		return false, nil
	}

	// Identical warning sets share a throttle slot
	key := strings.Join(warnings, "\n")
	if lastTime, ok := m.lastAlertTime[key]; ok {
		if m.settings.RepeatNotifyMinutes > 0 {
			repeatDuration := time.Duration(m.settings.RepeatNotifyMinutes) * time.Minute
			if m.now().Sub(lastTime) < repeatDuration {
				return false, nil
			}
		} else {
			// No repeat, only notify once per warning set
			return false, nil
		}
	}

	title, message := m.formatNotification(result, warnings)
	if err := m.notify(title, message); err != nil {
		return false, fmt.Errorf("sending notification: %w", err)
	}

	m.lastAlertTime[key] = m.now()
	return true, nil
}

// formatNotification creates the notification title and message
func (m *Manager) formatNotification(result *models.AnalysisResult, warnings []string) (string, string) {
	title := "⚠️ Therapy safety warning"
	if len(warnings) > 1 {
		title = fmt.Sprintf("⚠️ %d therapy safety warnings", len(warnings))
	}

	var mean string
	if m.settings.Unit == "mmol/L" {
		mean = fmt.Sprintf("%.1f mmol/L", models.ToMmol(result.Metrics.MeanGlucose))
	} else {
		mean = fmt.Sprintf("%.0f mg/dL", result.Metrics.MeanGlucose)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "TIR %.0f%%, below %.0f%%, average %s", result.Metrics.TimeInRangePct, result.Metrics.TimeBelowPct, mean)
	for _, w := range warnings {
		b.WriteString("\n")
		b.WriteString(w)
	}
	return title, b.String()
}

// ClearAlertState forgets all sent warning sets
func (m *Manager) ClearAlertState() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastAlertTime = make(map[string]time.Time)
}

// SendTestNotification sends a test notification
func (m *Manager) SendTestNotification() error {
	return m.notify(appName, "Test notification - safety alerts are working!")
}
