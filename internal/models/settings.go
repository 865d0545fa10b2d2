// Package models contains data structures used throughout the application
package models

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

const appDirName = "nightscout-therapy"

// MaxAnalysisDays bounds the analysis window requested from Nightscout
const MaxAnalysisDays = 7

// Settings contains all application settings
type Settings struct {
	mu sync.RWMutex `json:"-"`

	// Connection settings
	NightscoutURL string `json:"nightscoutUrl"`
	APISecret     string `json:"apiSecret"` // Plain API secret (will be hashed)
	APIToken      string `json:"apiToken"`  // Token-based auth
	UseToken      bool   `json:"useToken"`  // Use token instead of secret

	// Display settings
	Unit string `json:"unit"` // "mg/dL" or "mmol/L"

	// Glucose thresholds (in mg/dL, converted for display)
	TargetLow  int `json:"targetLow"`
	TargetHigh int `json:"targetHigh"`

	// Analysis settings
	AnalysisDays int `json:"analysisDays"` // 1-7

	// Alert settings
	EnableSafetyNotifications bool `json:"enableSafetyNotifications"`
	RepeatNotifyMinutes       int  `json:"repeatNotifyMinutes"` // 0 = notify once per distinct warning set

	// History store: SQLite file path or postgres:// DSN
	HistoryDSN string `json:"historyDsn"`

	// Report settings
	ReportDir          string `json:"reportDir"`
	ReportColorInRange string `json:"reportColorInRange"` // Hex color
	ReportColorHigh    string `json:"reportColorHigh"`
	ReportColorLow     string `json:"reportColorLow"`

	// Export settings (S3 or S3-compatible)
	ExportBucket    string `json:"exportBucket"`
	ExportRegion    string `json:"exportRegion"`
	ExportEndpoint  string `json:"exportEndpoint"`
	ExportPrefix    string `json:"exportPrefix"`
	ExportPathStyle bool   `json:"exportPathStyle"`

	// Prometheus textfile collector output, empty disables
	MetricsTextfile string `json:"metricsTextfile"`
}

// DefaultSettings returns settings with default values
func DefaultSettings() *Settings {
	return &Settings{
		NightscoutURL: "",
		APISecret:     "",
		APIToken:      "",
		UseToken:      false,
		Unit:          "mg/dL",

		TargetLow:  70,
		TargetHigh: 180,

		AnalysisDays: 7,

		EnableSafetyNotifications: true,
		RepeatNotifyMinutes:       720,

		HistoryDSN: "",

		ReportDir:          "",
		ReportColorInRange: "#4ade80", // Green
		ReportColorHigh:    "#facc15", // Yellow
		ReportColorLow:     "#ef4444", // Red

		ExportRegion: "us-east-1",
		ExportPrefix: "therapy-reports",
	}
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	appDir := filepath.Join(configDir, appDirName)
	if err := os.MkdirAll(appDir, 0750); err != nil {
		return "", err
	}

	return appDir, nil
}

// GetConfigPath returns the full path to the config file
func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "settings.json"), nil
}

// Load loads settings from the default config path
func (s *Settings) Load() error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	return s.LoadFrom(path)
}

// LoadFrom loads settings from the given file, keeping defaults if it does not exist
func (s *Settings) LoadFrom(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(path) //nolint:gosec // Config path is chosen by the user
	if err != nil {
		if os.IsNotExist(err) {
			// Use defaults if file doesn't exist
			s.copySettingsFields(DefaultSettings())
			return nil
		}
		return err
	}

	if err := json.Unmarshal(data, s); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	return nil
}

// Save saves settings to the default config path
func (s *Settings) Save() error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	return s.SaveTo(path)
}

// SaveTo writes settings to the given file
func (s *Settings) SaveTo(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Clone creates a copy of the settings
func (s *Settings) Clone() *Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Create a new Settings struct with copied values (not the mutex)
	clone := &Settings{}
	clone.copySettingsFields(s)
	return clone
}

// Update updates settings from another Settings object
func (s *Settings) Update(other *Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	s.copySettingsFields(other)
}

// copySettingsFields copies all fields from other to s, excluding the mutex
// The caller must hold the necessary locks on s and other (if other is shared)
func (s *Settings) copySettingsFields(other *Settings) {
	s.NightscoutURL = other.NightscoutURL
	s.APISecret = other.APISecret
	s.APIToken = other.APIToken
	s.UseToken = other.UseToken
	s.Unit = other.Unit
	s.TargetLow = other.TargetLow
	s.TargetHigh = other.TargetHigh
	s.AnalysisDays = other.AnalysisDays
	s.EnableSafetyNotifications = other.EnableSafetyNotifications
	s.RepeatNotifyMinutes = other.RepeatNotifyMinutes
	s.HistoryDSN = other.HistoryDSN
	s.ReportDir = other.ReportDir
	s.ReportColorInRange = other.ReportColorInRange
	s.ReportColorHigh = other.ReportColorHigh
	s.ReportColorLow = other.ReportColorLow
	s.ExportBucket = other.ExportBucket
	s.ExportRegion = other.ExportRegion
	s.ExportEndpoint = other.ExportEndpoint
	s.ExportPrefix = other.ExportPrefix
	s.ExportPathStyle = other.ExportPathStyle
	s.MetricsTextfile = other.MetricsTextfile
}

// IsConfigured returns true if minimum required settings are set
func (s *Settings) IsConfigured() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.NightscoutURL != ""
}

// Validate checks the settings for values the analysis cannot work with
func (s *Settings) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.TargetLow <= 0 || s.TargetHigh <= s.TargetLow {
		return fmt.Errorf("invalid target range %d-%d", s.TargetLow, s.TargetHigh)
	}
	if s.AnalysisDays < 1 || s.AnalysisDays > MaxAnalysisDays {
		return fmt.Errorf("analysis days must be between 1 and %d, got %d", MaxAnalysisDays, s.AnalysisDays)
	}
	if s.RepeatNotifyMinutes < 0 {
		return fmt.Errorf("repeat notify minutes must not be negative")
	}
	return nil
}

// Thresholds returns the configured target band
func (s *Settings) Thresholds() Thresholds {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Thresholds{Low: float64(s.TargetLow), High: float64(s.TargetHigh)}
}

// GetGlucoseStatus returns the status string for a glucose value
func (s *Settings) GetGlucoseStatus(mgdl float64) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch {
	case mgdl < float64(s.TargetLow):
		return "low"
	case mgdl > float64(s.TargetHigh):
		return "high"
	default:
		return "normal"
	}
}

// DefaultHistoryDSN returns the SQLite file used when no history DSN is configured
func DefaultHistoryDSN() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}
