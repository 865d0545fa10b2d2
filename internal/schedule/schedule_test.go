package schedule

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type recorder struct {
	calls []string
	fail  map[string]error
}

func (r *recorder) run(name string, args ...string) error {
	call := strings.Join(append([]string{name}, args...), " ")
	r.calls = append(r.calls, call)
	for prefix, err := range r.fail {
		if strings.HasPrefix(call, prefix) {
			return err
		}
	}
	return nil
}

// withPlatform fakes the OS, the executable path and command execution for one test
func withPlatform(t *testing.T, osName string) *recorder {
	t.Helper()
	rec := &recorder{fail: map[string]error{}}

	oldGOOS, oldExec, oldRun := goos, executable, runCommand
	goos = osName
	executable = func() (string, error) { return "/opt/ns therapy/nightscout-therapy", nil }
	runCommand = rec.run
	t.Cleanup(func() {
		goos, executable, runCommand = oldGOOS, oldExec, oldRun
	})

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	return rec
}

func TestLinuxTimer(t *testing.T) {
	rec := withPlatform(t, osLinux)

	if enabled, _ := IsEnabled(); enabled {
		t.Fatal("job should not be enabled yet")
	}
	if err := Enable(Job{At: "6:30", Args: []string{"analyze", "--notify"}}); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	if enabled, _ := IsEnabled(); !enabled {
		t.Error("job should be enabled")
	}

	dir := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "systemd", "user")
	service, err := os.ReadFile(filepath.Join(dir, appName+".service"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(service), `ExecStart="/opt/ns therapy/nightscout-therapy" analyze --notify`) {
		t.Errorf("service unit:\n%s", service)
	}
	timer, err := os.ReadFile(filepath.Join(dir, appName+".timer"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(timer), "OnCalendar=*-*-* 06:30:00") {
		t.Errorf("timer unit:\n%s", timer)
	}

	want := []string{"systemctl --user daemon-reload", "systemctl --user enable --now nightscout-therapy.timer"}
	if strings.Join(rec.calls, "|") != strings.Join(want, "|") {
		t.Errorf("calls = %v, want %v", rec.calls, want)
	}

	if err := Disable(); err != nil {
		t.Fatalf("Disable() error = %v", err)
	}
	if enabled, _ := IsEnabled(); enabled {
		t.Error("job should be disabled")
	}
	if _, err := os.Stat(filepath.Join(dir, appName+".service")); !os.IsNotExist(err) {
		t.Error("service unit should be removed")
	}

	// Disabling twice is fine
	if err := Disable(); err != nil {
		t.Errorf("second Disable() error = %v", err)
	}
}

func TestLinuxTimer_SystemctlFailure(t *testing.T) {
	rec := withPlatform(t, osLinux)
	rec.fail["systemctl --user enable"] = errors.New("no user session")

	err := Enable(Job{At: "07:00", Args: []string{"analyze"}})
	if err == nil || !strings.Contains(err.Error(), "enable timer") {
		t.Errorf("Enable() error = %v", err)
	}
}

func TestMacOSLaunchAgent(t *testing.T) {
	rec := withPlatform(t, osDarwin)

	if err := Enable(Job{At: "21:05", Args: []string{"analyze", "--days", "7"}}); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}

	path := filepath.Join(os.Getenv("HOME"), "Library", "LaunchAgents", "com."+appName+".plist")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	plist := string(data)
	for _, want := range []string{
		"<string>/opt/ns therapy/nightscout-therapy</string>",
		"<string>--days</string>",
		"<key>Hour</key>\n        <integer>21</integer>",
		"<key>Minute</key>\n        <integer>5</integer>",
	} {
		if !strings.Contains(plist, want) {
			t.Errorf("plist missing %q:\n%s", want, plist)
		}
	}
	if last := rec.calls[len(rec.calls)-1]; last != "launchctl load "+path {
		t.Errorf("last call = %q", last)
	}

	if err := Disable(); err != nil {
		t.Fatalf("Disable() error = %v", err)
	}
	if enabled, _ := IsEnabled(); enabled {
		t.Error("job should be disabled")
	}
}

func TestWindowsTask(t *testing.T) {
	rec := withPlatform(t, osWindows)

	if err := Enable(Job{At: "08:00", Args: []string{"analyze"}}); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	want := `schtasks /Create /SC DAILY /TN nightscout-therapy /TR "/opt/ns therapy/nightscout-therapy" analyze /ST 08:00 /F`
	if len(rec.calls) != 1 || rec.calls[0] != want {
		t.Errorf("calls = %v, want %q", rec.calls, want)
	}

	rec.fail["schtasks /Query"] = errors.New("exit status 1")
	if enabled, _ := IsEnabled(); enabled {
		t.Error("failed query should report disabled")
	}

	rec.fail["schtasks /Delete"] = errors.New("ERROR: The system cannot find the file specified.")
	if err := Disable(); err != nil {
		t.Errorf("Disable() of a missing task error = %v", err)
	}
}

func TestEnable_InvalidTime(t *testing.T) {
	withPlatform(t, osLinux)

	for _, at := range []string{"", "25:00", "07:75", "noon"} {
		if err := Enable(Job{At: at}); err == nil {
			t.Errorf("Enable(%q) should fail", at)
		}
	}
}

func TestUnsupportedPlatform(t *testing.T) {
	withPlatform(t, "plan9")

	if _, err := IsEnabled(); err == nil {
		t.Error("IsEnabled() should fail on plan9")
	}
	if err := Enable(Job{At: "07:00"}); err == nil {
		t.Error("Enable() should fail on plan9")
	}
	if err := Disable(); err == nil {
		t.Error("Disable() should fail on plan9")
	}
}

func TestQuoteCommand(t *testing.T) {
	tests := []struct {
		exec string
		args []string
		want string
	}{
		{"/usr/bin/nt", []string{"analyze"}, "/usr/bin/nt analyze"},
		{"C:\\Program Files\\nt.exe", nil, `"C:\Program Files\nt.exe"`},
		{"/bin/nt", []string{"--config", "/a b/settings.json"}, `/bin/nt --config "/a b/settings.json"`},
	}

	for _, tt := range tests {
		if got := quoteCommand(tt.exec, tt.args); got != tt.want {
			t.Errorf("quoteCommand(%q, %v) = %q, want %q", tt.exec, tt.args, got, tt.want)
		}
	}
}
