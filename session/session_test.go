package session

import (
	"context"
	"errors"
	"testing"

	"github.com/AngHelll/AutomationFrameworkP/driver"
)

func TestAcquireReleaseLifecycle(t *testing.T) {
	m := driver.NewMock()
	mgr := NewManager(m)
	ctx := context.Background()

	s, err := mgr.Acquire(ctx, driver.Options{Kind: "chromium", Headless: true})
	if err != nil {
		t.Fatalf("Acquire returned unexpected error: %v", err)
	}
	if s.ID() == "" {
		t.Fatalf("session has empty id")
	}
	if got := m.LiveSessions(); got != 1 {
		t.Fatalf("live sessions = %d; want 1", got)
	}

	mgr.Release(ctx, s)
	if got := m.LiveSessions(); got != 0 {
		t.Errorf("live sessions after release = %d; want 0", got)
	}
	if got := m.CallCount("quit"); got != 1 {
		t.Errorf("quit invoked %d times; want 1", got)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	m := driver.NewMock()
	mgr := NewManager(m)
	ctx := context.Background()

	s, err := mgr.Acquire(ctx, driver.Options{})
	if err != nil {
		t.Fatalf("Acquire returned unexpected error: %v", err)
	}

	mgr.Release(ctx, s)
	mgr.Release(ctx, s)
	if got := m.CallCount("quit"); got != 1 {
		t.Errorf("quit invoked %d times after double release; want 1", got)
	}
}

func TestReleaseNilSessionIsNoop(t *testing.T) {
	m := driver.NewMock()
	mgr := NewManager(m)

	mgr.Release(context.Background(), nil)
	if got := m.CallCount("quit"); got != 0 {
		t.Errorf("quit invoked %d times for nil session; want 0", got)
	}
}

func TestAcquireFailureReturnsCreationError(t *testing.T) {
	m := driver.NewMock()
	cause := errors.New("chrome failed to start")
	m.FailNext("newSession", cause)
	mgr := NewManager(m)

	s, err := mgr.Acquire(context.Background(), driver.Options{Kind: "chromium"})
	if s != nil {
		t.Fatalf("Acquire returned a session despite failure")
	}
	var ce *CreationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CreationError, got %v", err)
	}
	if ce.Kind != "chromium" {
		t.Errorf("CreationError.Kind = %q; want %q", ce.Kind, "chromium")
	}
	if !errors.Is(err, cause) {
		t.Errorf("original cause lost from the error chain")
	}
	if got := m.LiveSessions(); got != 0 {
		t.Errorf("live sessions = %d after failed acquire; want 0", got)
	}
}

func TestReleaseSurvivesQuitFailure(t *testing.T) {
	m := driver.NewMock()
	mgr := NewManager(m)
	ctx := context.Background()

	s, err := mgr.Acquire(ctx, driver.Options{})
	if err != nil {
		t.Fatalf("Acquire returned unexpected error: %v", err)
	}
	m.FailNext("quit", errors.New("browser went away"))

	mgr.Release(ctx, s)
	// the session counts as released even though quit failed
	mgr.Release(ctx, s)
	if got := m.CallCount("quit"); got != 1 {
		t.Errorf("quit invoked %d times; want 1", got)
	}
}

func TestSessionsAreDistinct(t *testing.T) {
	m := driver.NewMock()
	mgr := NewManager(m)
	ctx := context.Background()

	a, err := mgr.Acquire(ctx, driver.Options{})
	if err != nil {
		t.Fatalf("Acquire returned unexpected error: %v", err)
	}
	b, err := mgr.Acquire(ctx, driver.Options{})
	if err != nil {
		t.Fatalf("Acquire returned unexpected error: %v", err)
	}
	if a.ID() == b.ID() {
		t.Errorf("two acquired sessions share id %q", a.ID())
	}
	if got := m.LiveSessions(); got != 2 {
		t.Errorf("live sessions = %d; want 2", got)
	}
}
