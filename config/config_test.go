package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/AngHelll/AutomationFrameworkP/types"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return p
}

func TestNewConfig(t *testing.T) {
	cfg, err := NewConfig(writeConfigFile(t, `
browser:
  kind: chromium
  headless: true
  window_width: 1280
  window_height: 800
wait:
  timeout_ms: 4000
  poll_ms: 200
  page_load_ms: 10000
retry:
  max_attempts: 4
  delay_ms: 250
  backoff_factor: 2
  max_delay_ms: 2000
diagnostics:
  dir: diag-out
  capture_html: true
writer:
  type: file
  filepath: report.json
log_file: run.log
workers: 3
checks:
  - name: login
    url: https://example.com/login
    steps:
      - action: click
        selector: "#go"
      - action: type
        by: name
        selector: user
        text: $.credentials.username
`))
	if err != nil {
		t.Fatalf("NewConfig() returned error: %v", err)
	}

	if cfg.Browser.Kind != BrowserChromium || !cfg.Browser.Headless {
		t.Errorf("browser = %+v; want headless chromium", cfg.Browser)
	}
	if cfg.Wait.Timeout() != 4*time.Second || cfg.Wait.Poll() != 200*time.Millisecond {
		t.Errorf("wait = %+v; want 4s timeout, 200ms poll", cfg.Wait)
	}
	if cfg.Retry.MaxAttempts != 4 || cfg.Retry.Delay() != 250*time.Millisecond {
		t.Errorf("retry = %+v; want 4 attempts at 250ms", cfg.Retry)
	}
	if cfg.Diagnostics.Dir != "diag-out" || !cfg.Diagnostics.CaptureHTML {
		t.Errorf("diagnostics = %+v; want diag-out with html capture", cfg.Diagnostics)
	}
	if cfg.Writer.Type != "file" || cfg.Writer.FilePath != "report.json" {
		t.Errorf("writer = %+v; want the file writer", cfg.Writer)
	}
	if cfg.Workers != 3 {
		t.Errorf("workers = %d; want 3", cfg.Workers)
	}
	if len(cfg.Checks) != 1 {
		t.Fatalf("parsed %d checks; want 1", len(cfg.Checks))
	}
	c := cfg.Checks[0]
	if c.Name != "login" || len(c.Steps) != 2 {
		t.Fatalf("check = %+v; want login with 2 steps", c)
	}
	if c.Steps[0].Action != types.StepActionClick || c.Steps[0].Selector != "#go" {
		t.Errorf("first step = %+v; want click on #go", c.Steps[0])
	}
	if c.Steps[1].Text != "$.credentials.username" {
		t.Errorf("second step text = %q; want the data reference kept verbatim", c.Steps[1].Text)
	}
}

func TestNewConfigDefaults(t *testing.T) {
	cfg, err := NewConfig(writeConfigFile(t, `
checks:
  - name: ping
    url: https://example.com
    steps:
      - action: visible
        selector: body
`))
	if err != nil {
		t.Fatalf("NewConfig() returned error: %v", err)
	}
	if cfg.Browser.Kind != BrowserChromium {
		t.Errorf("default browser kind = %q; want %q", cfg.Browser.Kind, BrowserChromium)
	}
	if cfg.Wait.Timeout() != 10*time.Second || cfg.Wait.Poll() != 250*time.Millisecond {
		t.Errorf("default wait = %+v; want 10s timeout, 250ms poll", cfg.Wait)
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.BackoffFactor != 2 {
		t.Errorf("default retry = %+v; want 3 attempts, factor 2", cfg.Retry)
	}
	if cfg.Diagnostics.Dir != "diagnostics" {
		t.Errorf("default diagnostics dir = %q; want %q", cfg.Diagnostics.Dir, "diagnostics")
	}
	if cfg.Workers != 1 {
		t.Errorf("default workers = %d; want 1", cfg.Workers)
	}
}

func TestNewConfigRejectsUnknownBrowser(t *testing.T) {
	_, err := NewConfig(writeConfigFile(t, `
browser:
  kind: netscape
`))
	if err == nil {
		t.Error("NewConfig() with an unknown browser kind returned nil error")
	}
}

func TestNewConfigMissingFile(t *testing.T) {
	if _, err := NewConfig(filepath.Join(t.TempDir(), "absent.yml")); err == nil {
		t.Error("NewConfig() on a missing file returned nil error")
	}
}
