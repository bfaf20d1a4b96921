package wait

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/AngHelll/AutomationFrameworkP/driver"
)

func newMockSession(t *testing.T) *driver.Mock {
	t.Helper()
	m := driver.NewMock()
	if err := m.NewSession(context.Background(), "s1", driver.Options{}); err != nil {
		t.Fatalf("NewSession returned unexpected error: %v", err)
	}
	return m
}

func TestUntilReturnsOnceConditionHolds(t *testing.T) {
	m := newMockSession(t)
	m.AddElement(&driver.MockElement{Query: "#late", Visible: true, Enabled: true, AppearAfter: 3})

	start := time.Now()
	el, err := Until(context.Background(), m, "s1", Present(driver.Locator{By: driver.ByCSS, Value: "#late"}), time.Second, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("Until returned unexpected error: %v", err)
	}
	if el.SessionID != "s1" {
		t.Errorf("element tagged with session %q; want %q", el.SessionID, "s1")
	}
	if got := m.CallCount("findElements"); got != 4 {
		t.Errorf("condition was checked %d times; want 4", got)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Until took %v; expected well below the timeout", elapsed)
	}
}

func TestUntilTimesOut(t *testing.T) {
	m := newMockSession(t)

	timeout := 200 * time.Millisecond
	poll := 40 * time.Millisecond
	start := time.Now()
	_, err := Until(context.Background(), m, "s1", Present(driver.Locator{By: driver.ByCSS, Value: "#never"}), timeout, poll)
	elapsed := time.Since(start)

	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
	if te.Elapsed < timeout-poll {
		t.Errorf("TimeoutError.Elapsed = %v; want at least %v", te.Elapsed, timeout-poll)
	}
	if elapsed > timeout+300*time.Millisecond {
		t.Errorf("Until blocked for %v; want roughly %v", elapsed, timeout)
	}
	if driver.ClassOf(err) != driver.ClassTimedOut {
		t.Errorf("timeout classified as %s; want %s", driver.ClassOf(err), driver.ClassTimedOut)
	}
}

// slowCondition holds, but its check outlasts the wait deadline.
type slowCondition struct {
	delay time.Duration
}

func (c *slowCondition) Check(ctx context.Context, d driver.Driver, sessionID string) (driver.Element, bool, error) {
	time.Sleep(c.delay)
	return driver.Element{ID: "1", SessionID: sessionID}, true, nil
}

func (c *slowCondition) Description() string { return "slow condition" }

func TestUntilKeepsSuccessOfFinalCheck(t *testing.T) {
	m := newMockSession(t)

	// the deadline expires while the check runs; a satisfied result
	// must still win over the timeout
	el, err := Until(context.Background(), m, "s1", &slowCondition{delay: 50 * time.Millisecond}, 10*time.Millisecond, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("Until returned unexpected error: %v", err)
	}
	if el.SessionID != "s1" {
		t.Errorf("element tagged with session %q; want %q", el.SessionID, "s1")
	}
}

func TestUntilSwallowsRecoverableErrors(t *testing.T) {
	m := newMockSession(t)
	m.AddElement(driver.NewMockElement("#btn", "Go"))
	m.FailNext("findElements", &driver.Error{Class: driver.ClassStale, Op: "findElements", Err: driver.ErrStaleElement})

	_, err := Until(context.Background(), m, "s1", Present(driver.Locator{By: driver.ByCSS, Value: "#btn"}), time.Second, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("Until returned unexpected error: %v", err)
	}
	if got := m.CallCount("findElements"); got != 2 {
		t.Errorf("condition was checked %d times; want 2", got)
	}
}

func TestUntilPropagatesUnrecoverableErrors(t *testing.T) {
	m := newMockSession(t)
	m.FailNext("findElements", &driver.Error{Class: driver.ClassSessionDead, Op: "findElements", Err: driver.ErrSessionDead})

	start := time.Now()
	_, err := Until(context.Background(), m, "s1", Present(driver.Locator{By: driver.ByCSS, Value: "#btn"}), time.Second, 5*time.Millisecond)
	if driver.ClassOf(err) != driver.ClassSessionDead {
		t.Fatalf("expected session dead classification, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Until blocked for %v despite unrecoverable error", elapsed)
	}
}

func TestUntilHonorsCanceledContext(t *testing.T) {
	m := newMockSession(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Until(ctx, m, "s1", Present(driver.Locator{By: driver.ByCSS, Value: "#btn"}), time.Second, 5*time.Millisecond)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	var te *TimeoutError
	if errors.As(err, &te) {
		t.Errorf("cancellation must not be reported as a wait timeout")
	}
}

func TestClickableConditions(t *testing.T) {
	m := newMockSession(t)
	m.AddElement(&driver.MockElement{Query: "#hidden", Visible: false, Enabled: true})
	m.AddElement(&driver.MockElement{Query: "#disabled", Visible: true, Enabled: false})
	m.AddElement(driver.NewMockElement("#ready", "Go"))

	tests := []struct {
		name    string
		cond    Condition
		wantErr bool
	}{
		{"hidden element never clickable", Clickable(driver.Locator{By: driver.ByCSS, Value: "#hidden"}), true},
		{"disabled element visible but not clickable", Clickable(driver.Locator{By: driver.ByCSS, Value: "#disabled"}), true},
		{"disabled element still visible", Visible(driver.Locator{By: driver.ByCSS, Value: "#disabled"}), false},
		{"ready element clickable", Clickable(driver.Locator{By: driver.ByCSS, Value: "#ready"}), false},
	}

	for _, tt := range tests {
		_, err := Until(context.Background(), m, "s1", tt.cond, 100*time.Millisecond, 10*time.Millisecond)
		if tt.wantErr && err == nil {
			t.Errorf("%s: expected timeout, got none", tt.name)
		}
		if !tt.wantErr && err != nil {
			t.Errorf("%s: got unexpected error: %v", tt.name, err)
		}
	}
}

func TestTextConditions(t *testing.T) {
	m := newMockSession(t)
	m.AddElement(driver.NewMockElement("#msg", "Welcome back, Ada"))

	loc := driver.Locator{By: driver.ByCSS, Value: "#msg"}
	tests := []struct {
		name    string
		cond    Condition
		wantErr bool
	}{
		{"exact match", TextIs(loc, "Welcome back, Ada"), false},
		{"exact mismatch", TextIs(loc, "Welcome"), true},
		{"contains", TextContains(loc, "back"), false},
		{"regex", TextMatches(loc, regexp.MustCompile(`^Welcome.*Ada$`)), false},
	}

	for _, tt := range tests {
		_, err := Until(context.Background(), m, "s1", tt.cond, 100*time.Millisecond, 10*time.Millisecond)
		if tt.wantErr && err == nil {
			t.Errorf("%s: expected timeout, got none", tt.name)
		}
		if !tt.wantErr && err != nil {
			t.Errorf("%s: got unexpected error: %v", tt.name, err)
		}
	}
}

func TestDocumentReady(t *testing.T) {
	m := newMockSession(t)
	if _, err := Until(context.Background(), m, "s1", DocumentReady(), 100*time.Millisecond, 10*time.Millisecond); err != nil {
		t.Fatalf("Until returned unexpected error: %v", err)
	}
}
