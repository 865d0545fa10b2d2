// Package app provides the main application logic
package app

import (
	"context"
	"fmt"

	"github.com/mrcode/nightscout-therapy/internal/models"
	"github.com/mrcode/nightscout-therapy/internal/nightscout"
	"github.com/mrcode/nightscout-therapy/internal/notifications"
)

// Version is the application version, overridden at build time via -ldflags
var Version = "1.0.0"

// GetSettings returns a copy of the current settings
func (s *Service) GetSettings() *models.Settings {
	return s.settings.Clone()
}

// SaveSettings validates, applies and persists the provided settings
func (s *Service) SaveSettings(settings *models.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	s.settings.Update(settings)

	// Save to disk
	var err error
	if s.configPath != "" {
		err = s.settings.SaveTo(s.configPath)
	} else {
		err = s.settings.Save()
	}
	if err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}

	// Reinitialize client
	s.mu.Lock()
	if s.settings.IsConfigured() {
		if _, ok := s.source.(*nightscout.Client); ok || s.source == nil {
			s.source = nightscout.NewClientFromSettings(s.settings)
		}
	}
	// Export target may have changed
	s.exporter = nil
	s.mu.Unlock()

	// Update notification manager
	if m, ok := s.notifier.(*notifications.Manager); ok {
		m.UpdateSettings(s.settings)
	}

	s.log.Debug().Str("url", s.settings.Clone().NightscoutURL).Msg("settings saved")
	return nil
}

// TestConnection tests the Nightscout connection with the given credentials
func (s *Service) TestConnection(ctx context.Context, url, secret, token string, useToken bool) error {
	client := nightscout.NewClient(url, secret, token, useToken)
	return client.TestConnection(ctx)
}

// SendTestNotification sends a test notification
func (s *Service) SendTestNotification() error {
	m, ok := s.notifier.(*notifications.Manager)
	if !ok {
		return fmt.Errorf("notifier does not support test notifications")
	}
	return m.SendTestNotification()
}

// IsConfigured returns true if Nightscout is configured
func (s *Service) IsConfigured() bool {
	return s.settings.IsConfigured()
}
