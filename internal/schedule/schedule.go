// Package schedule installs a daily background analysis job across platforms
package schedule

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mrcode/nightscout-therapy/internal/models"
)

const (
	appName = "nightscout-therapy"

	// OS constants
	osLinux   = "linux"
	osWindows = "windows"
	osDarwin  = "darwin"
)

var (
	goos       = runtime.GOOS
	executable = os.Executable
	runCommand = func(name string, args ...string) error {
		return exec.Command(name, args...).Run()
	}
)

// Job describes the recurring analysis run
type Job struct {
	At   string   // "HH:MM" local time
	Args []string // arguments passed to the executable, e.g. analyze --notify
}

// clock returns the hour and minute of the job
func (j Job) clock() (int, int, error) {
	minutes, err := models.ParseClock(j.At)
	if err != nil {
		return 0, 0, err
	}
	return minutes / 60, minutes % 60, nil
}

// IsEnabled checks if the daily job is installed
func IsEnabled() (bool, error) {
	switch goos {
	case osLinux:
		return isEnabledLinux()
	case osWindows:
		return isEnabledWindows()
	case osDarwin:
		return isEnabledMacOS()
	default:
		return false, fmt.Errorf("unsupported platform: %s", goos)
	}
}

// Enable installs (or replaces) the daily job
func Enable(job Job) error {
	hour, minute, err := job.clock()
	if err != nil {
		return err
	}
	execPath, err := executable()
	if err != nil {
		return err
	}

	switch goos {
	case osLinux:
		return enableLinux(execPath, job.Args, hour, minute)
	case osWindows:
		return enableWindows(execPath, job.Args, hour, minute)
	case osDarwin:
		return enableMacOS(execPath, job.Args, hour, minute)
	default:
		return fmt.Errorf("unsupported platform: %s", goos)
	}
}

// Disable removes the daily job
func Disable() error {
	switch goos {
	case osLinux:
		return disableLinux()
	case osWindows:
		return disableWindows()
	case osDarwin:
		return disableMacOS()
	default:
		return fmt.Errorf("unsupported platform: %s", goos)
	}
}

// Linux implementation using a systemd user timer
func getSystemdDir() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "systemd", "user"), nil
}

func isEnabledLinux() (bool, error) {
	dir, err := getSystemdDir()
	if err != nil {
		return false, err
	}
	_, err = os.Stat(filepath.Join(dir, appName+".timer"))
	return err == nil, nil
}

func enableLinux(execPath string, args []string, hour, minute int) error {
	dir, err := getSystemdDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	service := fmt.Sprintf(`[Unit]
Description=Nightscout therapy analysis

[Service]
Type=oneshot
ExecStart=%s
`, quoteCommand(execPath, args))

	timer := fmt.Sprintf(`[Unit]
Description=Daily Nightscout therapy analysis

[Timer]
OnCalendar=*-*-* %02d:%02d:00
Persistent=true

[Install]
WantedBy=timers.target
`, hour, minute)

	if err := os.WriteFile(filepath.Join(dir, appName+".service"), []byte(service), 0600); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, appName+".timer"), []byte(timer), 0600); err != nil {
		return err
	}

	if err := runCommand("systemctl", "--user", "daemon-reload"); err != nil {
		return fmt.Errorf("systemctl daemon-reload: %w", err)
	}
	if err := runCommand("systemctl", "--user", "enable", "--now", appName+".timer"); err != nil {
		return fmt.Errorf("enable timer: %w", err)
	}
	return nil
}

func disableLinux() error {
	dir, err := getSystemdDir()
	if err != nil {
		return err
	}

	// The timer may never have been started
	_ = runCommand("systemctl", "--user", "disable", "--now", appName+".timer")

	for _, name := range []string{appName + ".timer", appName + ".service"} {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// Windows implementation using the task scheduler
func isEnabledWindows() (bool, error) {
	err := runCommand("schtasks", "/Query", "/TN", appName)
	return err == nil, nil
}

func enableWindows(execPath string, args []string, hour, minute int) error {
	//nolint:gosec // G204: execPath comes from os.Executable(), not user input
	return runCommand("schtasks", "/Create",
		"/SC", "DAILY",
		"/TN", appName,
		"/TR", quoteCommand(execPath, args),
		"/ST", fmt.Sprintf("%02d:%02d", hour, minute),
		"/F")
}

func disableWindows() error {
	err := runCommand("schtasks", "/Delete", "/TN", appName, "/F")
	if err != nil && strings.Contains(err.Error(), "cannot find") {
		return nil
	}
	return err
}

// macOS implementation using LaunchAgents
func getMacOSLaunchAgentPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "Library", "LaunchAgents", "com."+appName+".plist"), nil
}

func isEnabledMacOS() (bool, error) {
	path, err := getMacOSLaunchAgentPath()
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	return err == nil, nil
}

func enableMacOS(execPath string, args []string, hour, minute int) error {
	path, err := getMacOSLaunchAgentPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}

	var programArgs strings.Builder
	for _, a := range append([]string{execPath}, args...) {
		fmt.Fprintf(&programArgs, "        <string>%s</string>\n", xmlEscape(a))
	}

	content := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>com.%s</string>
    <key>ProgramArguments</key>
    <array>
%s    </array>
    <key>StartCalendarInterval</key>
    <dict>
        <key>Hour</key>
        <integer>%d</integer>
        <key>Minute</key>
        <integer>%d</integer>
    </dict>
    <key>RunAtLoad</key>
    <false/>
</dict>
</plist>
`, appName, programArgs.String(), hour, minute)

	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return err
	}

	// Reload so a replaced job picks up the new time
	//nolint:gosec // G204: path comes from getMacOSLaunchAgentPath(), not user input
	_ = runCommand("launchctl", "unload", path)
	//nolint:gosec // G204: path comes from getMacOSLaunchAgentPath(), not user input
	return runCommand("launchctl", "load", path)
}

func disableMacOS() error {
	path, err := getMacOSLaunchAgentPath()
	if err != nil {
		return err
	}

	// Unload the agent first (ignore errors as the file may not be loaded)
	//nolint:gosec // G204: path comes from getMacOSLaunchAgentPath(), not user input
	_ = runCommand("launchctl", "unload", path)

	err = os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// quoteCommand joins an executable and its arguments, quoting anything with spaces
func quoteCommand(execPath string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	for _, p := range append([]string{execPath}, args...) {
		if strings.ContainsAny(p, " \t\"") {
			p = `"` + strings.ReplaceAll(p, `"`, `\"`) + `"`
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, " ")
}

func xmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}
