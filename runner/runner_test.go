package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AngHelll/AutomationFrameworkP/config"
	"github.com/AngHelll/AutomationFrameworkP/diagnostic"
	"github.com/AngHelll/AutomationFrameworkP/driver"
	"github.com/AngHelll/AutomationFrameworkP/report"
	"github.com/AngHelll/AutomationFrameworkP/types"
)

func testConfig(t *testing.T, workers int, checks ...types.Check) *config.Config {
	t.Helper()
	return &config.Config{
		Wait:        config.WaitConfig{TimeoutMS: 150, PollMS: 10, PageLoadMS: 300},
		Retry:       config.RetryConfig{MaxAttempts: 2, BackoffFactor: 1},
		Diagnostics: config.DiagnosticsConfig{Dir: t.TempDir()},
		Workers:     workers,
		Checks:      checks,
	}
}

func collect(rc chan report.Result) []report.Result {
	out := []report.Result{}
	for r := range rc {
		out = append(out, r)
	}
	return out
}

func TestRunExecutesChecks(t *testing.T) {
	m := driver.NewMock()
	m.AddElement(driver.NewMockElement("#go", "Go"))
	m.AddElement(driver.NewMockElement("#msg", "Welcome back"))

	cfg := testConfig(t, 1, types.Check{
		Name: "login",
		URL:  "https://example.com/login",
		Steps: []types.Step{
			{Action: types.StepActionClick, Selector: "#go"},
			{Action: types.StepActionText, Selector: "#msg", Text: "Welcome"},
		},
	})

	rc := make(chan report.Result, 16)
	summary := New(m, cfg).Run(context.Background(), rc)
	results := collect(rc)

	if summary.Total != 1 || summary.Passed != 1 {
		t.Fatalf("summary = %+v; want 1/1 passed", summary)
	}
	if len(results) != 1 {
		t.Fatalf("streamed %d results; want 1", len(results))
	}
	if results[0].Steps != 2 || results[0].Status != report.StatusPassed {
		t.Errorf("result = %+v; want 2 steps passed", results[0])
	}
	if m.Clicks(results[0].Session, "#go") != 1 {
		t.Errorf("clicks = %d; want 1", m.Clicks(results[0].Session, "#go"))
	}
	if m.LiveSessions() != 0 {
		t.Errorf("%d sessions still live after the run; want 0", m.LiveSessions())
	}
}

func TestConcurrentWorkersKeepSessionsDisjoint(t *testing.T) {
	m := driver.NewMock()
	m.AddElement(driver.NewMockElement("#go", "Go"))

	checks := make([]types.Check, 8)
	for i := range checks {
		checks[i] = types.Check{
			Name:  "check",
			URL:   "https://example.com",
			Steps: []types.Step{{Action: types.StepActionClick, Selector: "#go"}},
		}
	}
	cfg := testConfig(t, 2, checks...)

	rc := make(chan report.Result, 16)
	summary := New(m, cfg).Run(context.Background(), rc)
	results := collect(rc)

	if summary.Passed != 8 {
		t.Fatalf("summary = %+v; want 8 passed", summary)
	}

	sessions := map[string]bool{}
	for _, r := range results {
		sessions[r.Session] = true
	}
	if len(sessions) == 0 || len(sessions) > 2 {
		t.Fatalf("run used %d sessions with 2 workers; want 1 or 2", len(sessions))
	}
	// every click must have landed in the session that owns it
	total := 0
	for sid := range sessions {
		total += m.Clicks(sid, "#go")
	}
	if total != 8 {
		t.Errorf("clicks across sessions = %d; want 8", total)
	}
	for _, c := range m.Calls() {
		if c.Op == "newSession" || c.Session == "" {
			continue
		}
		if !sessions[c.Session] {
			t.Errorf("call %s tagged with unknown session %s", c.Op, c.Session)
		}
	}
	if m.LiveSessions() != 0 {
		t.Errorf("%d sessions still live after the run; want 0", m.LiveSessions())
	}
}

func TestRunMarksFailedCheck(t *testing.T) {
	m := driver.NewMock()
	cfg := testConfig(t, 1, types.Check{
		Name:  "broken",
		Steps: []types.Step{{Action: types.StepActionClick, Selector: "#absent"}},
	})

	summary := New(m, cfg).Run(context.Background(), nil)
	if summary.Failed != 1 {
		t.Fatalf("summary = %+v; want 1 failed", summary)
	}

	records, err := diagnostic.ReadRecords(cfg.Diagnostics.Dir)
	if err != nil {
		t.Fatalf("ReadRecords() returned error: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("captured %d diagnostic records; want exactly 1", len(records))
	}
}

func TestAcquireFailureNeverReleases(t *testing.T) {
	m := driver.NewMock()
	m.FailNext("newSession", errors.New("chrome failed to start"))
	cfg := testConfig(t, 1, types.Check{
		Name:  "unreachable",
		Steps: []types.Step{{Action: types.StepActionClick, Selector: "#go"}},
	})

	rc := make(chan report.Result, 4)
	summary := New(m, cfg).Run(context.Background(), rc)
	results := collect(rc)

	if summary.Errors != 1 {
		t.Fatalf("summary = %+v; want 1 error", summary)
	}
	if len(results) != 1 || results[0].Status != report.StatusError {
		t.Fatalf("results = %+v; want one error result", results)
	}
	if got := m.CallCount("quit"); got != 0 {
		t.Errorf("quit calls = %d; want 0 after a failed acquire", got)
	}
}

func TestSessionReplacedOnlyAfterDeath(t *testing.T) {
	m := driver.NewMock()
	m.AddElement(driver.NewMockElement("#go", "Go"))
	m.FailNext("click", &driver.Error{Class: driver.ClassSessionDead, Op: "click", Err: driver.ErrSessionDead})

	cfg := testConfig(t, 1,
		types.Check{Name: "first", Steps: []types.Step{{Action: types.StepActionClick, Selector: "#go"}}},
		types.Check{Name: "second", Steps: []types.Step{{Action: types.StepActionClick, Selector: "#go"}}},
	)

	rc := make(chan report.Result, 4)
	summary := New(m, cfg).Run(context.Background(), rc)
	results := collect(rc)

	if summary.Failed != 1 || summary.Passed != 1 {
		t.Fatalf("summary = %+v; want 1 failed, 1 passed", summary)
	}
	if len(results) != 2 {
		t.Fatalf("streamed %d results; want 2", len(results))
	}
	if results[0].Session == results[1].Session {
		t.Error("dead session was reused for the next check")
	}
	if got := m.CallCount("newSession"); got != 2 {
		t.Errorf("newSession calls = %d; want 2", got)
	}
	if m.LiveSessions() != 0 {
		t.Errorf("%d sessions still live after the run; want 0", m.LiveSessions())
	}
}

func TestDataDrivenTypeStep(t *testing.T) {
	m := driver.NewMock()
	m.AddElement(driver.NewMockElement(`[name="user"]`, ""))

	dataFile := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(dataFile, []byte(`{"credentials": {"username": "qa-bot"}}`), 0644); err != nil {
		t.Fatalf("failed to write data file: %v", err)
	}

	cfg := testConfig(t, 1, types.Check{
		Name:     "login",
		DataFile: dataFile,
		Steps: []types.Step{
			{Action: types.StepActionType, By: driver.ByName, Selector: "user", Text: "$.credentials.username"},
		},
	})

	rc := make(chan report.Result, 4)
	summary := New(m, cfg).Run(context.Background(), rc)
	results := collect(rc)

	if summary.Passed != 1 {
		t.Fatalf("summary = %+v; want 1 passed", summary)
	}
	if got := m.Value(results[0].Session, `[name="user"]`); got != "qa-bot" {
		t.Errorf("typed value = %q; want %q", got, "qa-bot")
	}
}

func TestUnknownActionIsSetupError(t *testing.T) {
	m := driver.NewMock()
	cfg := testConfig(t, 1, types.Check{
		Name:  "typo",
		Steps: []types.Step{{Action: "clcik", Selector: "#go"}},
	})

	rc := make(chan report.Result, 4)
	summary := New(m, cfg).Run(context.Background(), rc)
	results := collect(rc)

	if summary.Errors != 1 {
		t.Fatalf("summary = %+v; want 1 setup error", summary)
	}
	if !strings.Contains(results[0].Error, "clcik") {
		t.Errorf("error = %q; want it to name the unknown action", results[0].Error)
	}
}
